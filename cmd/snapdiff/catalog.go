// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/monadic/snapdiff/internal/config"
	"github.com/monadic/snapdiff/pkg/catalog"
)

var catalogOutput string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the supported groups, versions and kinds",
	Long: `Print the effective catalog: the builtin groups, or the file given with
--catalog (SNAPDIFF_CATALOG). The output is itself a valid catalog file.

Examples:
  snapdiff catalog
  snapdiff catalog -o json
  snapdiff catalog > my-catalog.yaml && snapdiff view --catalog my-catalog.yaml
`,
	Args: cobra.NoArgs,
	RunE: runCatalog,
}

func init() {
	catalogCmd.Flags().StringVarP(&catalogOutput, "output", "o", "yaml", "Output format: yaml or json")
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog(settings.GetString(config.KeyCatalog))
	if err != nil {
		return err
	}
	return writeCatalog(cmd.OutOrStdout(), catalogOutput, cat)
}

func writeCatalog(w io.Writer, format string, cat *catalog.Catalog) error {
	switch format {
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cat.File()); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case "json":
		data, err := json.MarshalIndent(cat.File(), "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	default:
		return fmt.Errorf("unknown output format %q (want yaml or json)", format)
	}
}
