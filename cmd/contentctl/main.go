// Command contentctl inspects the content datasets offline: it resolves
// inputs, runs searches, lists modules and checks referential integrity
// without starting the HTTP service.
//
// Usage:
//
//	contentctl resolve "high blood pressure"
//	contentctl resolve --lang es "presión arterial alta"
//	contentctl search --limit 5 diabetes
//	contentctl validate
//	contentctl modules --records
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/app"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/content"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/store"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/tracing"
)

var errDanglingReferences = errors.New("dangling content references found")

type rootOptions struct {
	configPath string
	contentDir string
	logLevel   string
	asJSON     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "contentctl",
		Short:         "Inspect and validate health content datasets",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetupWriter(cmd.ErrOrStderr(), opts.logLevel, "text")
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "configs/development.yaml", "path to config file (empty for defaults)")
	root.PersistentFlags().StringVar(&opts.contentDir, "content", "", "content directory overriding the configured dataset paths")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of text")

	root.AddCommand(
		newResolveCmd(opts),
		newSearchCmd(opts),
		newValidateCmd(opts),
		newModulesCmd(opts),
	)
	return root
}

// load builds an initialized App from the configured dataset.
func load(ctx context.Context, opts *rootOptions) (*app.App, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.contentDir != "" {
		cfg.Content.EntriesPath = filepath.Join(opts.contentDir, "entries.yaml")
		cfg.Content.AliasesPath = filepath.Join(opts.contentDir, "aliases.yaml")
		cfg.Content.CuratedPath = filepath.Join(opts.contentDir, "curated.yaml")
		cfg.Content.ModulesDir = filepath.Join(opts.contentDir, "modules")
	}
	ds, err := app.LoadDataset(ctx, cfg.Content)
	if err != nil {
		return nil, err
	}
	a := app.New(app.Options{Resolver: app.ResolverOptions(cfg)})
	if err := a.Initialize(ds); err != nil {
		return nil, err
	}
	return a, nil
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var lang string
	var explain, strict bool
	cmd := &cobra.Command{
		Use:   "resolve <input>...",
		Short: "Resolve each input to a canonical entry ID",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd.Context(), opts)
			if err != nil {
				return err
			}
			rows := make([]resolveRow, 0, len(args))
			for _, input := range args {
				ctx := cmd.Context()
				var root *tracing.Span
				if explain {
					ctx, root = tracing.StartSpan(ctx, "resolve", "")
				}
				r := resolveRow{Input: input}
				if res, ok := a.Resolve(ctx, input, lang); ok {
					r.Resolution = &res
				}
				if root != nil {
					root.End()
					r.Attempts = root.View().Children
				}
				rows = append(rows, r)
			}

			var unresolved []string
			for _, r := range rows {
				if r.Resolution == nil {
					unresolved = append(unresolved, r.Input)
				}
			}
			if err := printResolutions(cmd.OutOrStdout(), rows, opts.asJSON); err != nil {
				return err
			}
			if strict && len(unresolved) > 0 {
				return fmt.Errorf("%w: %s", apperrors.ErrUnresolved, strings.Join(unresolved, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "language hint, e.g. es or Spanish")
	cmd.Flags().BoolVar(&explain, "explain", false, "list every strategy attempted")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any input is unresolved")
	return cmd
}

type resolveRow struct {
	Input      string              `json:"input"`
	Resolution *content.Resolution `json:"resolution"`
	Attempts   []tracing.View      `json:"attempts,omitempty"`
}

func printResolutions(out io.Writer, rows []resolveRow, asJSON bool) error {
	if asJSON {
		return writeJSON(out, rows)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INPUT\tENTRY ID\tSOURCE\tCONFIDENCE")
	for _, r := range rows {
		if r.Resolution == nil {
			fmt.Fprintf(tw, "%s\t-\tunresolved\t-\n", r.Input)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.Input, r.Resolution.EntryID, r.Resolution.Source, r.Resolution.Confidence)
		}
		for _, v := range r.Attempts {
			fmt.Fprintf(tw, "  %s\thit=%v\t\t\n", strings.TrimPrefix(v.Name, "strategy."), v.Attrs["hit"])
		}
	}
	return tw.Flush()
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var limit int
	var types, categories []string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank entries by relevance to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd.Context(), opts)
			if err != nil {
				return err
			}
			so := store.SearchOptions{Limit: limit}
			for _, t := range types {
				so.Types = append(so.Types, content.EntryType(t))
			}
			for _, c := range categories {
				so.Categories = append(so.Categories, content.Category(c))
			}
			results := a.Search(strings.Join(args, " "), so)

			out := cmd.OutOrStdout()
			if opts.asJSON {
				return writeJSON(out, results)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCORE\tENTRY ID\tNAME")
			for _, r := range results {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", r.Score, r.Entry.EntryID, r.Entry.Name)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of results")
	cmd.Flags().StringSliceVar(&types, "type", nil, "restrict to entry types")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "restrict to categories")
	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load every dataset and report references to missing entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd.Context(), opts)
			if err != nil {
				return err
			}
			report := a.Integrity()

			out := cmd.OutOrStdout()
			if opts.asJSON {
				if err := writeJSON(out, report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "checked %d alias terms and %d curated pairs\n", report.Aliases, report.Curated)
				for _, d := range report.Dangling {
					fmt.Fprintln(out, d.String())
				}
			}
			if !report.OK() {
				return fmt.Errorf("%w: %d", errDanglingReferences, len(report.Dangling))
			}
			if !opts.asJSON {
				fmt.Fprintln(out, "ok")
			}
			return nil
		},
	}
}

func newModulesCmd(opts *rootOptions) *cobra.Command {
	var records bool
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List registered localized modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !records {
				if opts.asJSON {
					return writeJSON(out, a.Modules())
				}
				for _, c := range a.Modules() {
					fmt.Fprintln(out, c)
				}
				return nil
			}

			hits := a.GetAllModuleEntries()
			if opts.asJSON {
				return writeJSON(out, hits)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COMPOSITE ID\tLOCALIZED\tCANONICAL")
			for _, h := range hits {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", h.EntryID, h.Record.Name.Localized.First(), h.Record.Name.Canonical.First())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&records, "records", false, "list every record instead of categories")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
