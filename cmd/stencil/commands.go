package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/OFFIS-RIT/stencil/internal/bootstrap"
	"github.com/OFFIS-RIT/stencil/internal/config"
	"github.com/OFFIS-RIT/stencil/internal/util"
	"github.com/OFFIS-RIT/stencil/pkg/document"
	"github.com/OFFIS-RIT/stencil/pkg/loader"
	ioloader "github.com/OFFIS-RIT/stencil/pkg/loader/io"
	"github.com/OFFIS-RIT/stencil/pkg/loader/web"
	"github.com/OFFIS-RIT/stencil/pkg/pipeline"
)

var (
	storePath    string
	envFiles     []string
	outputFormat string
	interpretRun bool
	withSchema   bool
	withNetwork  bool

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "stencil",
		Short: "Learn the structure of HTML documents and harvest their content",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			util.LoadEnv(envFiles...)
			cfg = config.FromEnv()
			if storePath != "" {
				cfg.Store.Adapter = "badger"
				cfg.Store.BadgerPath = storePath
			}
			bootstrap.InitLogger(cfg, "stencil")
			return nil
		},
	}

	learnCmd = &cobra.Command{
		Use:   "learn [template] [file or url...]",
		Short: "Absorb documents into a template, optionally interpreting it",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runLearn,
	}

	harvestCmd = &cobra.Command{
		Use:   "harvest [template] [file or url]",
		Short: "Extract structured content from a document with a learned template",
		Args:  cobra.ExactArgs(2),
		RunE:  runHarvest,
	}

	showCmd = &cobra.Command{
		Use:   "show [template]",
		Short: "Print the stored network of a template",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "badger directory, overrides STORE_ADAPTER and BADGER_PATH")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "env files to load instead of .env")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "output format (json|yaml)")

	learnCmd.Flags().BoolVar(&interpretRun, "interpret", false, "interpret the template after learning")
	harvestCmd.Flags().BoolVar(&withSchema, "schema", false, "include the JSON schema of the result")
	showCmd.Flags().BoolVar(&withNetwork, "network", false, "include the encoded basis graph")

	rootCmd.AddCommand(learnCmd, harvestCmd, showCmd)
}

func runLearn(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, closeFn, err := openPipeline(ctx, interpretRun)
	if err != nil {
		return err
	}
	defer closeFn()

	docs, err := loadDocuments(ctx, cfg.Filter, args[1:])
	if err != nil {
		return err
	}

	t, res, err := client.Learn(ctx, args[0], docs)
	if err != nil {
		return err
	}
	out := map[string]any{
		"template":      res.Template,
		"subgraph_hash": res.SubgraphHash.String(),
		"documents":     res.Documents,
		"grafted":       res.Grafted,
		"nodes":         res.Nodes,
	}
	if interpretRun {
		report, err := client.Interpret(ctx, t, docs)
		if err != nil {
			return err
		}
		resolutions := make(map[string]int, len(report.Resolutions))
		for r, n := range report.Resolutions {
			resolutions[r.String()] = n
		}
		out["resolutions"] = resolutions
		out["cached"] = report.Cached
		out["failed"] = report.Failed
		out["subgraph_hash"] = t.Network.SubgraphHash.String()
	}
	return render(cmd.OutOrStdout(), outputFormat, out)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, closeFn, err := openPipeline(ctx, false)
	if err != nil {
		return err
	}
	defer closeFn()

	docs, err := loadDocuments(ctx, cfg.Filter, args[1:])
	if err != nil {
		return err
	}

	result, schema, err := client.Harvest(ctx, args[0], docs[0])
	if err != nil {
		return err
	}
	if !withSchema {
		return render(cmd.OutOrStdout(), outputFormat, result)
	}
	return render(cmd.OutOrStdout(), outputFormat, map[string]any{
		"result": result,
		"schema": schema,
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, closeFn, err := openPipeline(ctx, false)
	if err != nil {
		return err
	}
	defer closeFn()

	t, err := client.Load(ctx, args[0])
	if err != nil {
		return err
	}
	out := map[string]any{
		"template":      t.Name,
		"subgraph_hash": t.Network.SubgraphHash.String(),
		"documents":     t.Network.Documents,
		"nodes":         len(t.Graph.IDs()),
		"updated_at":    t.Network.UpdatedAt,
	}
	if withNetwork {
		out["network"] = t.Network.Root
	}
	return render(cmd.OutOrStdout(), outputFormat, out)
}

func openPipeline(ctx context.Context, withAI bool) (*pipeline.Client, func(), error) {
	st, err := bootstrap.OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = st.Close() }

	var client *pipeline.Client
	if withAI {
		aiClient, err := bootstrap.NewAIClient(cfg.AI)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		client, err = bootstrap.NewPipeline(cfg, st, aiClient)
	} else {
		client, err = bootstrap.NewPipeline(cfg, st, nil)
	}
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return client, closeFn, nil
}

func loaderFor(path string) loader.DocumentLoader {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return web.NewWebDocumentLoader()
	}
	return ioloader.NewIODocumentLoader()
}

func loadDocuments(ctx context.Context, filter document.Filter, paths []string) ([]*document.Document, error) {
	docs := make([]*document.Document, len(paths))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, path := range paths {
		g.Go(func() error {
			doc, err := loaderFor(path).Load(gCtx, loader.DocumentFile{FilePath: path, Filter: filter})
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", path, err)
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// render writes v as JSON or YAML. YAML keys follow the JSON field names.
func render(w io.Writer, format string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	switch format {
	case "json":
		_, err = fmt.Fprintln(w, string(raw))
		return err
	case "yaml":
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
