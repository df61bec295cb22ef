// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/monadic/snapdiff/pkg/catalog"
	"github.com/monadic/snapdiff/pkg/render"
	"github.com/monadic/snapdiff/pkg/selection"
)

var (
	selQuery     string
	selNamespace string
	selGroup     string
	selVersion   string
	selKind      string
	selResource  string
	viewMode     string
	viewResume   bool
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Browse snapshot diff artifacts interactively",
	Long: `Browse snapshot diff artifacts interactively.

The five selectors (namespace, group, version, kind, resource) cascade:
changing the group resets version and kind to the group's first entries, and
changing any of the first four reloads the resource list and selects its
first resource. Artifacts reload whenever the selection changes.

The initial selection comes from --query (a URL query string) with the
individual selector flags applied on top. A resource given this way is
fetched right away and replaced by the first listed resource once the
resource list arrives.

Examples:
  # Start from the defaults
  snapdiff view

  # Open a namespace and group
  snapdiff view --query "namespace=shop&group=snapshot.example/v1"

  # Same, with flags
  snapdiff view --namespace shop --group snapshot.example/v1

  # Continue where the last session stopped
  snapdiff view --resume
`,
	RunE: runView,
}

func init() {
	addSelectionFlags(viewCmd)
	viewCmd.Flags().StringVar(&viewMode, "mode", "diff", "Initial view mode: diff or side-by-side")
	viewCmd.Flags().BoolVar(&viewResume, "resume", false, "Start from the selection of the last session")
	rootCmd.AddCommand(viewCmd)
}

// addSelectionFlags registers the selector flags shared by view and export.
func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&selQuery, "query", "", "Initial selection as a URL query (namespace=..&group=..&version=..&kind=..&resource=..)")
	cmd.Flags().StringVar(&selNamespace, "namespace", "", "Namespace")
	cmd.Flags().StringVar(&selGroup, "group", "", "Snapshot group")
	cmd.Flags().StringVar(&selVersion, "version", "", "Group version")
	cmd.Flags().StringVar(&selKind, "kind", "", "Resource kind")
	cmd.Flags().StringVar(&selResource, "resource", "", "Initial resource (reset to the first listed resource)")

	_ = cmd.RegisterFlagCompletionFunc("namespace", completeNamespaces)
	_ = cmd.RegisterFlagCompletionFunc("group", completeGroups)
	_ = cmd.RegisterFlagCompletionFunc("version", completeVersions)
	_ = cmd.RegisterFlagCompletionFunc("kind", completeKinds)
	_ = cmd.RegisterFlagCompletionFunc("mode", completeModes)
}

// selectionQuery merges --query with the selector flags that were set.
// Flags win over query parameters.
func selectionQuery(cmd *cobra.Command, raw string) (url.Values, error) {
	q, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return nil, fmt.Errorf("parse --query: %w", err)
	}
	for flag, value := range map[string]string{
		"namespace": selNamespace,
		"group":     selGroup,
		"version":   selVersion,
		"kind":      selKind,
		"resource":  selResource,
	} {
		if cmd.Flags().Changed(flag) {
			q.Set(flag, value)
		}
	}
	return q, nil
}

// snapshotQuery turns a saved selection back into query parameters.
func snapshotQuery(sel selection.Selection) url.Values {
	return url.Values{
		"namespace": {sel.Namespace},
		"group":     {sel.Group},
		"version":   {sel.Version},
		"kind":      {sel.Kind},
		"resource":  {sel.Resource},
	}
}

// initialState builds the starting selection of view and export.
func initialState(cmd *cobra.Command, cat *catalog.Catalog) (selection.State, error) {
	q, err := selectionQuery(cmd, selQuery)
	if err != nil {
		return selection.State{}, err
	}
	return selection.FromQuery(cat, q), nil
}

func runView(cmd *cobra.Command, args []string) error {
	setup, err := loadViewer(settings)
	if err != nil {
		return err
	}
	mode, err := render.ParseMode(viewMode)
	if err != nil {
		return err
	}

	state, err := initialState(cmd, setup.catalog)
	if err != nil {
		return err
	}
	snapPath := getSnapshotPath()
	if viewResume && selQuery == "" && !anySelectionFlag(cmd) {
		if snap := loadSnapshot(snapPath, setup.cfg.APIURL); snap != nil {
			state = selection.FromQuery(setup.catalog, snapshotQuery(snap.Selection))
			if m, err := render.ParseMode(snap.Mode); err == nil && !cmd.Flags().Changed("mode") {
				mode = m
			}
		}
	}

	log := openSessionLog(cmd, setup.cfg)
	defer func() {
		if path := log.Close(); path != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Session log: %s\n", path)
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	m := newViewerModel(ctx, setup.client, state, viewerOptions{
		mode:   mode,
		apiURL: setup.cfg.APIURL,
		log:    log,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("run viewer: %w", err)
	}
	if fm, ok := finalModel.(ViewerModel); ok {
		fm.Close()
		saveSnapshot(snapPath, setup.cfg.APIURL, fm.Selection(), fm.mode)
	}
	return nil
}

func anySelectionFlag(cmd *cobra.Command) bool {
	for _, f := range []string{"namespace", "group", "version", "kind", "resource"} {
		if cmd.Flags().Changed(f) {
			return true
		}
	}
	return false
}
