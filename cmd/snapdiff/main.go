// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Command snapdiff browses snapshot diff artifacts and serves the API they
// come from.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/monadic/snapdiff/internal/clierr"
	"github.com/monadic/snapdiff/internal/config"
	"github.com/monadic/snapdiff/pkg/catalog"
	"github.com/monadic/snapdiff/pkg/diffapi"
)

var (
	// BuildTag is set during build
	BuildTag = "dev"
	// BuildDate is set during build
	BuildDate = "unknown"
)

// settings is the merged flag, environment and file configuration of the
// running command.
var settings = config.New()

var rootCmd = &cobra.Command{
	Use:   "snapdiff",
	Short: "Browse visual and HTML snapshot diffs",
	Long: `snapdiff - browse visual and HTML snapshot diffs

snapdiff selects a snapshot resource by namespace, group, version, kind and
name, and shows the screenshot and HTML diff artifacts recorded for it.
It provides commands for:

  - Browsing artifacts interactively (view)
  - Exporting the artifacts of one resource as HTML, JSON or YAML (export)
  - Listing the supported groups, versions and kinds (catalog)
  - Running the reference artifact API against a cluster (serve)

Environment Variables:
  SNAPDIFF_API_URL        Base URL of the diff API (default: http://localhost:8082)
  SNAPDIFF_COOKIE         Cookies sent with every request, comma separated
  SNAPDIFF_CATALOG        Path to a catalog YAML file
  KUBECONFIG              Path to kubeconfig file, for serve (default: ~/.kube/config)
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadSettings(cmd)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", clierr.Pretty(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String(config.KeyConfig, "", "Config file (default: $HOME/.snapdiff/config.yaml or .snapdiff/config.yaml)")
	config.AddViewerFlags(rootCmd.PersistentFlags())

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "snapdiff version %s (built %s)\n", BuildTag, BuildDate)
		},
	})

	// Add completion command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion script for snapdiff.

Bash:
  $ source <(snapdiff completion bash)
  # Or add to ~/.bashrc:
  $ snapdiff completion bash >> ~/.bashrc

Zsh:
  $ source <(snapdiff completion zsh)
  # Or install to fpath:
  $ snapdiff completion zsh > "${fpath[1]}/_snapdiff"

Fish:
  $ snapdiff completion fish | source
  # Or install:
  $ snapdiff completion fish > ~/.config/fish/completions/snapdiff.fish

PowerShell:
  PS> snapdiff completion powershell | Out-String | Invoke-Expression
`,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.ExactArgs(1),
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	})
}

// loadSettings binds the flags of cmd, including inherited ones, and merges
// the config file into settings.
func loadSettings(cmd *cobra.Command) error {
	settings = config.New()
	if err := config.BindFlags(settings, cmd.Flags()); err != nil {
		return err
	}
	return config.ReadFile(settings, settings.GetString(config.KeyConfig))
}

// loadCatalog returns the catalog file at path, or the builtin catalog.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(path)
}

// viewerSetup is what view and export need to talk to the API.
type viewerSetup struct {
	cfg     config.Viewer
	client  *diffapi.Client
	catalog *catalog.Catalog
}

func loadViewer(v *viper.Viper) (*viewerSetup, error) {
	cfg, err := config.LoadViewer(v)
	if err != nil {
		return nil, err
	}
	cat, err := loadCatalog(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	client, err := diffapi.New(cfg.APIURL,
		diffapi.WithTimeout(cfg.Timeout),
		diffapi.WithCookies(cfg.Cookies),
	)
	if err != nil {
		return nil, err
	}
	return &viewerSetup{cfg: cfg, client: client, catalog: cat}, nil
}

// openSessionLog starts a session log unless disabled. Failing to create it
// is reported and otherwise ignored.
func openSessionLog(cmd *cobra.Command, cfg config.Viewer) *SessionLogger {
	if cfg.NoLog {
		return nil
	}
	log, err := NewSessionLogger(cfg.LogDir, cmd.Name())
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: session log disabled: %v\n", err)
		return nil
	}
	return log
}

// buildConfig builds a Kubernetes client config
func buildConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig != "" {
		return clientcmd.BuildConfigFromFlags("", kubeconfig)
	}

	// Try in-cluster config first
	cfg, err := rest.InClusterConfig()
	if err == nil {
		return cfg, nil
	}

	// Fall back to kubeconfig
	kubeconfig = os.Getenv("KUBECONFIG")
	if kubeconfig == "" {
		home, _ := os.UserHomeDir()
		kubeconfig = home + "/.kube/config"
	}

	return clientcmd.BuildConfigFromFlags("", kubeconfig)
}
