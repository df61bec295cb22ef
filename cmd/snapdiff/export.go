// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/monadic/snapdiff/internal/clierr"
	"github.com/monadic/snapdiff/pkg/diffapi"
	"github.com/monadic/snapdiff/pkg/render"
	"github.com/monadic/snapdiff/pkg/selection"
)

var (
	exportOutput string
	exportFormat string
	exportMode   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the artifacts of one resource",
	Long: `Export the artifacts of one resource.

export resolves the selection exactly like view does (including the cascade
to the first resource of the listing), waits for the artifacts and writes
them out. The whole run is bounded by --timeout.

Formats:
  html   Self-contained page with the diff or side-by-side view (default)
  json   The selection and the raw artifact bundle
  yaml   Same as json, as YAML

Examples:
  snapdiff export --namespace shop -o shop.html
  snapdiff export --query "namespace=shop&kind=snapshot" --format json
`,
	RunE: runExport,
}

func init() {
	addSelectionFlags(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "-", "Output file (- for stdout)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "html", "Output format: html, json or yaml")
	exportCmd.Flags().StringVar(&exportMode, "mode", "diff", "HTML view mode: diff or side-by-side")
	_ = exportCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return filterPrefix([]string{"html", "json", "yaml"}, toComplete), cobra.ShellCompDirectiveNoFileComp
	})
	rootCmd.AddCommand(exportCmd)
}

// exportDocument is the json and yaml export format.
type exportDocument struct {
	Selection selection.Selection `json:"selection"`
	Bundle    *diffapi.Bundle     `json:"artifacts"`
}

func runExport(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(exportFormat)
	switch format {
	case "html", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %q (want html, json or yaml)", exportFormat)
	}
	mode, err := render.ParseMode(exportMode)
	if err != nil {
		return err
	}

	setup, err := loadViewer(settings)
	if err != nil {
		return err
	}
	state, err := initialState(cmd, setup.catalog)
	if err != nil {
		return err
	}

	log := openSessionLog(cmd, setup.cfg)
	defer log.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), setup.cfg.Timeout)
	defer cancel()

	bundle, sel, err := resolveBundle(ctx, setup.client, state, log)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if exportOutput != "" && exportOutput != "-" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := writeExport(out, format, mode, sel, bundle); err != nil {
		return err
	}
	if out != cmd.OutOrStdout() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%s)\n", exportOutput, sel)
	}
	return nil
}

// resolveBundle runs the viewer model headless until nothing is in flight and
// returns the settled bundle.
func resolveBundle(ctx context.Context, source artifactSource, state selection.State, log *SessionLogger) (*diffapi.Bundle, selection.Selection, error) {
	m := newViewerModel(ctx, source, state, viewerOptions{headless: true, log: log})
	defer m.Close()

	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	)
	final, err := p.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, selection.Selection{}, fmt.Errorf("wait for artifacts: %w", ctxErr)
		}
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil, selection.Selection{}, fmt.Errorf("wait for artifacts: %w", context.Canceled)
		}
		return nil, selection.Selection{}, fmt.Errorf("run export: %w", err)
	}

	fm, ok := final.(ViewerModel)
	if !ok {
		return nil, selection.Selection{}, fmt.Errorf("run export: unexpected model %T", final)
	}
	if err := fm.Err(); err != nil {
		return nil, fm.Selection(), fmt.Errorf("fetch artifacts for %s: %w", fm.Selection(), err)
	}
	bundle, sel := fm.Bundle()
	if bundle == nil {
		cur := fm.Selection()
		if cur.Resource == "" {
			return nil, cur, errors.New(clierr.NothingFound("resources in " + cur.ListKey().String()))
		}
		return nil, cur, fmt.Errorf("no artifacts for %s", cur)
	}
	return bundle, sel, nil
}

func writeExport(w io.Writer, format string, mode render.Mode, sel selection.Selection, b *diffapi.Bundle) error {
	switch format {
	case "html":
		return render.HTML(w, sel.String(), b, mode)
	case "json":
		data, err := json.MarshalIndent(exportDocument{Selection: sel, Bundle: b}, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		data, err := yaml.Marshal(exportDocument{Selection: sel, Bundle: b})
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
