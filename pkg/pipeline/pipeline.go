// Package pipeline ties learning, interpretation and harvesting of named
// templates to a store.
package pipeline

import (
	"context"
	"fmt"

	"github.com/invopop/jsonschema"
	"golang.org/x/sync/errgroup"

	"github.com/OFFIS-RIT/stencil/internal/metrics"
	"github.com/OFFIS-RIT/stencil/pkg/basis"
	"github.com/OFFIS-RIT/stencil/pkg/digest"
	"github.com/OFFIS-RIT/stencil/pkg/document"
	"github.com/OFFIS-RIT/stencil/pkg/errors"
	"github.com/OFFIS-RIT/stencil/pkg/graph"
	"github.com/OFFIS-RIT/stencil/pkg/harvest"
	"github.com/OFFIS-RIT/stencil/pkg/interpret"
	"github.com/OFFIS-RIT/stencil/pkg/logger"
	"github.com/OFFIS-RIT/stencil/pkg/store"
)

// Client runs the phases of a template against a store.
//
// Phases of one template must not overlap: Learn replaces the stored
// network wholesale, so concurrent calls for the same template lose
// updates. The worker serializes them with a lease lock.
//
// A Client should be created using NewClient.
type Client struct {
	store         store.Store
	interp        interpret.Interpreter
	interpretOpts interpret.Options
	harvestOpts   harvest.Options
	parallelDocs  int
}

// NewClientParams defines the configuration parameters for creating a
// new Client.
//
// Interpreter may be nil for clients that only learn and harvest.
// ParallelDocuments bounds how many documents are parsed into basis
// graphs at once.
type NewClientParams struct {
	Store             store.Store
	Interpreter       interpret.Interpreter
	InterpretOptions  interpret.Options
	HarvestOptions    harvest.Options
	ParallelDocuments int
}

func NewClient(params NewClientParams) (*Client, error) {
	if params.Store == nil {
		return nil, errors.Contractf("pipeline client needs a store")
	}
	parallel := params.ParallelDocuments
	if parallel <= 0 {
		parallel = 4
	}
	return &Client{
		store:         params.Store,
		interp:        params.Interpreter,
		interpretOpts: params.InterpretOptions,
		harvestOpts:   params.HarvestOptions,
		parallelDocs:  parallel,
	}, nil
}

// Template is a loaded basis network together with its decoded graph.
// Name is the template the network is stored under.
type Template struct {
	Name    string
	Network *basis.Network
	Graph   *graph.Graph[basis.Node]
}

// Load returns the latest network of the named template. It fails with
// errors.ErrNotFound for templates that never learned a document.
func (c *Client) Load(ctx context.Context, name string) (*Template, error) {
	hash, ok, err := c.store.GetTemplate(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get template %s: %w", name, err)
	}
	if !ok {
		return nil, errors.Mark(errors.Newf("template %q not found", name), errors.ErrNotFound)
	}

	network, ok, err := c.store.GetBasisNetworkBySubgraphHash(ctx, name, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get network %s: %w", hash.Short(), err)
	}
	if !ok {
		return nil, errors.Mark(errors.Newf("network %s of template %q not found", hash.Short(), name), errors.ErrNotFound)
	}

	g, err := network.Graph()
	if err != nil {
		return nil, fmt.Errorf("failed to decode network %s: %w", hash.Short(), err)
	}
	return &Template{Name: name, Network: network, Graph: g}, nil
}

func (c *Client) loadOrEmpty(ctx context.Context, name string) (*Template, error) {
	t, err := c.Load(ctx, name)
	if errors.Is(err, errors.ErrNotFound) {
		return &Template{Name: name, Network: &basis.Network{Template: name}, Graph: graph.New[basis.Node]()}, nil
	}
	return t, err
}

// LearnResult summarizes a Learn call.
type LearnResult struct {
	Template     string
	SubgraphHash digest.Digest
	Documents    int
	Grafted      int
	Nodes        int
}

// Learn absorbs docs into the template's basis graph and persists the
// result as the template's new head. Documents are absorbed in the given
// order; the result does not depend on it.
func (c *Client) Learn(ctx context.Context, name string, docs []*document.Document) (*Template, *LearnResult, error) {
	if len(docs) == 0 {
		return nil, nil, errors.Contractf("nothing to learn for template %q", name)
	}
	t, err := c.loadOrEmpty(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	donors := make([]*graph.Graph[basis.Node], len(docs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.parallelDocs)
	for i, doc := range docs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			if doc == nil || doc.Root == nil {
				return errors.Parsef("document %d is empty", i)
			}
			g, err := basis.BuildBasis(doc.Root)
			if err != nil {
				return fmt.Errorf("failed to build basis for %s: %w", doc.Source, err)
			}
			donors[i] = g
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	grafted := 0
	for i, donor := range donors {
		n, err := graph.Absorb(t.Graph, donor)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to absorb %s: %w", docs[i].Source, err)
		}
		grafted += n
		logger.Debug("[Learn] absorbed document", "template", name, "source", docs[i].Source, "grafted", n)
	}

	network, err := basis.NewNetwork(name, t.Graph, t.Network.Documents+len(docs))
	if err != nil {
		return nil, nil, err
	}
	if err := c.save(ctx, name, network); err != nil {
		return nil, nil, err
	}
	t.Network = network
	metrics.RecordLearned(name, grafted)

	res := &LearnResult{
		Template:     name,
		SubgraphHash: network.SubgraphHash,
		Documents:    network.Documents,
		Grafted:      grafted,
		Nodes:        len(t.Graph.IDs()),
	}
	logger.Info("[Learn] template updated", "template", name, "documents", res.Documents, "grafted", grafted, "nodes", res.Nodes, "hash", res.SubgraphHash.Short())
	return t, res, nil
}

// LearnJob is Learn for queued jobs. The result of a job is recorded under
// its id, and a redelivered job returns the recorded result and the current
// template without learning its documents again.
func (c *Client) LearnJob(ctx context.Context, jobID, name string, docs []*document.Document) (*Template, *LearnResult, error) {
	if jobID == "" {
		return c.Learn(ctx, name, docs)
	}
	var t *Template
	res, err := store.GetOrCompute(ctx, c.store, store.JobKey(name, jobID), func(ctx context.Context) (*LearnResult, error) {
		learned, res, err := c.Learn(ctx, name, docs)
		t = learned
		return res, err
	})
	if err != nil {
		return nil, nil, err
	}
	if t == nil {
		logger.Info("[Learn] job already learned", "template", name, "job_id", jobID, "documents", res.Documents)
		if t, err = c.Load(ctx, name); err != nil {
			return nil, nil, err
		}
	}
	return t, res, nil
}

func (c *Client) save(ctx context.Context, name string, network *basis.Network) error {
	if err := c.store.SaveBasisNetwork(ctx, name, network.SubgraphHash, network); err != nil {
		return fmt.Errorf("failed to save network: %w", err)
	}
	if err := c.store.SaveTemplate(ctx, name, network.SubgraphHash); err != nil {
		return fmt.Errorf("failed to save template head: %w", err)
	}
	return nil
}

// Interpret runs an interpretation pass over t with docs as the instances
// supplying homologs, then persists the interpreted network under t.Name.
func (c *Client) Interpret(ctx context.Context, t *Template, docs []*document.Document) (*interpret.Report, error) {
	if c.interp == nil {
		return nil, errors.Contractf("pipeline client has no interpreter")
	}
	if t == nil || t.Name == "" {
		return nil, errors.Contractf("template to interpret has no name")
	}

	trees := make([]*graph.Graph[basis.OutputNode], 0, len(docs))
	for _, doc := range docs {
		if doc == nil || doc.Root == nil {
			continue
		}
		tree, err := basis.BuildOutput(doc.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to build output tree for %s: %w", doc.Source, err)
		}
		trees = append(trees, tree)
	}

	report, err := interpret.New(c.interp, c.store, c.interpretOpts).Run(ctx, t.Graph, trees)
	if err != nil {
		return report, err
	}

	network, err := basis.NewNetwork(t.Name, t.Graph, t.Network.Documents)
	if err != nil {
		return report, err
	}
	if err := c.save(ctx, t.Name, network); err != nil {
		return report, err
	}
	t.Network = network
	return report, nil
}

// Process learns docs and interprets the grown template with them.
func (c *Client) Process(ctx context.Context, name string, docs []*document.Document) (*LearnResult, *interpret.Report, error) {
	t, res, err := c.Learn(ctx, name, docs)
	if err != nil {
		return nil, nil, err
	}
	report, err := c.Interpret(ctx, t, docs)
	if err != nil {
		return res, report, err
	}
	return res, report, nil
}

// Harvest extracts the content of doc with the named template and derives
// the JSON Schema of the extracted content.
func (c *Client) Harvest(ctx context.Context, name string, doc *document.Document) (*harvest.Result, *jsonschema.Schema, error) {
	t, err := c.Load(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	res, err := harvest.New(t.Graph, c.harvestOpts).Harvest(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	return res, harvest.Schema(res.Content), nil
}
