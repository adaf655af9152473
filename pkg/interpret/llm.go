package interpret

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/OFFIS-RIT/stencil/internal/metrics"
	"github.com/OFFIS-RIT/stencil/internal/util"
	"github.com/OFFIS-RIT/stencil/pkg/ai"
	"github.com/OFFIS-RIT/stencil/pkg/basis"
	"github.com/OFFIS-RIT/stencil/pkg/digest"
	"github.com/OFFIS-RIT/stencil/pkg/store"
)

type structureResponse struct {
	Recursive          bool     `json:"recursive" jsonschema_description:"Instances of the target node are nested in other instances of the same node"`
	RecursiveAttribute string   `json:"recursive_attribute" jsonschema_description:"Attribute identifying an instance, empty unless recursive"`
	RootValues         []string `json:"root_values" jsonschema_description:"Attribute values marking top-level instances"`
	Rule               string   `json:"rule" jsonschema:"enum=decrement,enum=trim_segment,enum=none" jsonschema_description:"How the parent's value is derived from a child's value"`
	Separator          string   `json:"separator" jsonschema_description:"Path separator for trim_segment"`
	Enumerative        bool     `json:"enumerative" jsonschema_description:"The target node is one item of a list of similar items"`
	Associative        bool     `json:"associative" jsonschema_description:"The children of the target node are fragments of records spread across siblings"`
}

type dataField struct {
	Attribute  string `json:"attribute" jsonschema_description:"One of the candidate attributes"`
	Name       string `json:"name" jsonschema_description:"Semantic field name in snake_case"`
	Peripheral bool   `json:"peripheral" jsonschema_description:"The value belongs to navigation, advertising or boilerplate"`
	URL        bool   `json:"url" jsonschema_description:"The value is a link or resource location"`
}

type dataResponse struct {
	Fields []dataField `json:"fields" jsonschema_description:"Attributes that carry content"`
}

type textResponse struct {
	Name       string `json:"name" jsonschema_description:"Semantic field name in snake_case, empty if the text carries no content"`
	Peripheral bool   `json:"peripheral" jsonschema_description:"The text belongs to navigation, advertising or boilerplate"`
}

type associationResponse struct {
	Groups [][]string `json:"groups" jsonschema_description:"Groups of keys that together form one record"`
}

// LLMOptions configure an LLMInterpreter.
type LLMOptions struct {
	// RequestsPerSecond limits model calls; 0 disables the limit.
	RequestsPerSecond float64 `validate:"gte=0"`
	// MaxPromptTokens bounds the excerpts sent per call.
	MaxPromptTokens int `validate:"gte=0"`
	Retries         int `validate:"gte=0"`
	Backoff         util.Backoff
}

func DefaultLLMOptions() LLMOptions {
	return LLMOptions{
		RequestsPerSecond: 2,
		MaxPromptTokens:   12000,
		Retries:           3,
		Backoff:           util.Backoff{Base: 500 * time.Millisecond, Max: 10 * time.Second},
	}
}

// LLMInterpreter implements Interpreter with structured completions of a
// language model. Answers are cached by prompt, so a deterministic rerun
// issues no model calls.
type LLMInterpreter struct {
	client  ai.GraphAIClient
	cache   store.Cache
	limiter *rate.Limiter
	opts    LLMOptions
}

// NewLLMInterpreter creates an interpreter. cache may be nil.
func NewLLMInterpreter(client ai.GraphAIClient, cache store.Cache, opts LLMOptions) *LLMInterpreter {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &LLMInterpreter{client: client, cache: cache, limiter: limiter, opts: opts}
}

func (l *LLMInterpreter) excerpts(snippets []string) string {
	snippets = ai.FitTokenBudget(snippets, l.opts.MaxPromptTokens)
	var b strings.Builder
	for i, s := range snippets {
		fmt.Fprintf(&b, "--- Excerpt %d ---\n%s\n\n", i+1, s)
	}
	return b.String()
}

// complete asks the model for a JSON answer of type T, going through the
// prompt cache.
func complete[T any](ctx context.Context, l *LLMInterpreter, kind, prompt string) (T, error) {
	compute := func(ctx context.Context) (T, error) {
		metrics.RecordCacheLookup("prompt", false)
		return util.RetryWithBackoff(ctx, l.opts.Retries+1, l.opts.Backoff, func(ctx context.Context) (T, error) {
			var out T
			if err := l.limiter.Wait(ctx); err != nil {
				return out, err
			}
			start := time.Now()
			err := l.client.GenerateCompletionWithFormat(
				ctx,
				kind,
				"Classification of a template position",
				prompt,
				&out,
				ai.WithSystemPrompts(ai.InterpretSystemPrompt),
				ai.WithTemperature(0),
			)
			metrics.RecordInterpreterCall(kind, err, time.Since(start))
			return out, err
		})
	}
	if l.cache == nil {
		return compute(ctx)
	}
	key := "interpret:" + kind + ":" + digest.Of(kind, prompt).String()
	return store.GetOrCompute(ctx, l.cache, key, compute)
}

func (l *LLMInterpreter) ClassifyStructure(ctx context.Context, attributes []string, snippets []string) (StructureVerdict, error) {
	attrs := "none"
	if len(attributes) > 0 {
		attrs = strings.Join(attributes, ", ")
	}
	prompt := fmt.Sprintf(ai.StructurePrompt, attrs, l.excerpts(snippets))
	res, err := complete[structureResponse](ctx, l, "structure", prompt)
	if err != nil {
		return StructureVerdict{}, err
	}

	v := StructureVerdict{Enumerative: res.Enumerative, Associative: res.Associative}
	if res.Recursive && res.RecursiveAttribute != "" && res.Rule != "none" {
		v.Recursive = &basis.Recursive{
			Attribute:  res.RecursiveAttribute,
			RootValues: res.RootValues,
			Rule:       basis.DerivationRule{Kind: basis.RuleKind(res.Rule), Separator: res.Separator},
		}
	}
	return v, nil
}

func (l *LLMInterpreter) ClassifyData(ctx context.Context, attributes []string, snippets []string) ([]basis.Data, error) {
	prompt := fmt.Sprintf(ai.DataPrompt, strings.Join(attributes, ", "), l.excerpts(snippets))
	res, err := complete[dataResponse](ctx, l, "data", prompt)
	if err != nil {
		return nil, err
	}
	out := make([]basis.Data, 0, len(res.Fields))
	for _, f := range res.Fields {
		if f.Attribute == "" || f.Name == "" {
			continue
		}
		out = append(out, basis.Data{
			Name:       f.Name,
			Selector:   basis.Selector{Attribute: f.Attribute},
			Peripheral: f.Peripheral,
			URL:        f.URL,
		})
	}
	return out, nil
}

func (l *LLMInterpreter) ClassifyText(ctx context.Context, snippets []string) (basis.Data, error) {
	prompt := fmt.Sprintf(ai.TextPrompt, l.excerpts(snippets))
	res, err := complete[textResponse](ctx, l, "text", prompt)
	if err != nil {
		return basis.Data{}, err
	}
	return basis.Data{Name: strings.TrimSpace(res.Name), Peripheral: res.Peripheral}, nil
}

func (l *LLMInterpreter) ClassifyAssociations(ctx context.Context, snippets []TaggedSnippet) ([][]string, error) {
	entries := make([]string, len(snippets))
	for i, s := range snippets {
		entries[i] = fmt.Sprintf("--- Key %s ---\n%s\n\n", s.Key, s.Snippet)
	}
	entries = ai.FitTokenBudget(entries, l.opts.MaxPromptTokens)
	prompt := fmt.Sprintf(ai.AssociationPrompt, strings.Join(entries, ""))
	res, err := complete[associationResponse](ctx, l, "associations", prompt)
	if err != nil {
		return nil, err
	}
	return res.Groups, nil
}
