// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"github.com/monadic/snapdiff/internal/backend"
	"github.com/monadic/snapdiff/internal/config"
	"github.com/monadic/snapdiff/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the snapshot artifact API against a cluster",
	Long: `Run the snapshot artifact API against a cluster.

serve lists namespaces and snapshot resources through the Kubernetes API and
loads the artifacts referenced by each resource's status from --storage-dir,
or from S3 for s3:// URLs when --s3 or --s3-endpoint is set.

Endpoints:
  GET /api/                                             namespaces
  GET /api/{namespace}/{group}/{version}/{kind}         resource names
  GET /api/{namespace}/{group}/{version}/{kind}/{name}  raw resource
  GET /api/.../{name}/artifacts                         artifact bundle
  GET /healthz
  GET /metrics

Examples:
  snapdiff serve --storage-dir /var/lib/snapshots
  snapdiff serve --address 127.0.0.1:9000 --allowed-origins https://ui.example
  snapdiff serve --s3-endpoint http://minio:9000
`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	config.AddServerFlags(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadServer(settings)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cat, err := loadCatalog(settings.GetString(config.KeyCatalog))
	if err != nil {
		return err
	}

	restCfg, err := buildConfig(cfg.Kubeconfig)
	if err != nil {
		return fmt.Errorf("build kube config: %w", err)
	}
	kube, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return fmt.Errorf("create kubernetes client: %w", err)
	}
	dyn, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return fmt.Errorf("create dynamic client: %w", err)
	}

	files, err := storage.NewFile(cfg.StorageDir)
	if err != nil {
		return err
	}
	router := &storage.Router{Fallback: files}
	if cfg.S3 {
		s3, err := storage.NewS3(cmd.Context(), cfg.S3Endpoint)
		if err != nil {
			return err
		}
		router.S3 = s3
	}
	store, err := storage.NewCached(router, cfg.CacheSize)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := backend.New(backend.Options{
		Kube:           kube,
		Dynamic:        dyn,
		Storage:        store,
		Catalog:        cat,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
		Registry:       reg,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting snapdiff serve",
		zap.String("version", BuildTag),
		zap.String("cluster", clusterName(cfg.Kubeconfig)),
		zap.String("storage_dir", files.Root()),
		zap.Int("cache_size", cfg.CacheSize),
		zap.Bool("s3", cfg.S3),
		zap.Strings("groups", cat.Groups()),
	)
	return srv.ListenAndServe(ctx, cfg.Address, cfg.ShutdownTimeout)
}
