// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package config loads snapdiff settings from flags, SNAPDIFF_* environment
// variables and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. SNAPDIFF_API_URL.
const EnvPrefix = "SNAPDIFF"

// Keys
const (
	KeyConfig  = "config"
	KeyAPIURL  = "api-url"
	KeyCatalog = "catalog"
	KeyCookie  = "cookie"
	KeyTimeout = "timeout"
	KeyLogDir  = "log-dir"
	KeyNoLog   = "no-log"

	KeyAddress         = "address"
	KeyStorageDir      = "storage-dir"
	KeyCacheSize       = "cache-size"
	KeyKubeconfig      = "kubeconfig"
	KeyAllowedOrigins  = "allowed-origins"
	KeyShutdownTimeout = "shutdown-timeout"
	KeyS3              = "s3"
	KeyS3Endpoint      = "s3-endpoint"
)

// Defaults
const (
	DefaultAPIURL          = "http://localhost:8082"
	DefaultTimeout         = 30 * time.Second
	DefaultLogDir          = ".snapdiff/logs"
	DefaultAddress         = "0.0.0.0:8082"
	DefaultStorageDir      = "/tmp/snapshots"
	DefaultCacheSize       = 256
	DefaultShutdownTimeout = 10 * time.Second
)

// Viewer holds the settings of the view and export commands.
type Viewer struct {
	APIURL  string
	Catalog string
	Cookies []string
	Timeout time.Duration
	LogDir  string
	NoLog   bool
}

// Server holds the settings of the reference backend.
type Server struct {
	Address         string
	StorageDir      string
	CacheSize       int
	Kubeconfig      string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	// S3 enables reading s3:// status URLs.
	S3              bool
	S3Endpoint      string
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyAPIURL, DefaultAPIURL)
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyLogDir, DefaultLogDir)
	v.SetDefault(KeyAddress, DefaultAddress)
	v.SetDefault(KeyStorageDir, DefaultStorageDir)
	v.SetDefault(KeyCacheSize, DefaultCacheSize)
	v.SetDefault(KeyAllowedOrigins, []string{"*"})
	v.SetDefault(KeyShutdownTimeout, DefaultShutdownTimeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// AddViewerFlags registers the client flags on fs.
func AddViewerFlags(fs *pflag.FlagSet) {
	fs.String(KeyAPIURL, DefaultAPIURL, "Base URL of the snapshot diff API (env SNAPDIFF_API_URL)")
	fs.String(KeyCatalog, "", "Path to a catalog YAML file overriding the builtin groups")
	fs.StringSlice(KeyCookie, nil, "Cookie sent with every request, as name=value (repeatable)")
	fs.Duration(KeyTimeout, DefaultTimeout, "HTTP timeout per request")
	fs.String(KeyLogDir, DefaultLogDir, "Directory for session logs")
	fs.Bool(KeyNoLog, false, "Disable the session log")
}

// AddServerFlags registers the backend flags on fs.
func AddServerFlags(fs *pflag.FlagSet) {
	fs.String(KeyAddress, DefaultAddress, "Listen address")
	fs.String(KeyStorageDir, DefaultStorageDir, "Root directory of stored artifacts")
	fs.Int(KeyCacheSize, DefaultCacheSize, "Number of artifact blobs kept in memory (0 disables the cache)")
	fs.String(KeyKubeconfig, "", "Path to kubeconfig (default: in-cluster, then KUBECONFIG or ~/.kube/config)")
	fs.StringSlice(KeyAllowedOrigins, []string{"*"}, "CORS allowed origins")
	fs.Duration(KeyShutdownTimeout, DefaultShutdownTimeout, "Grace period for in-flight requests on shutdown")
	fs.Bool(KeyS3, false, "Read s3:// artifact URLs with the default AWS credentials")
	fs.String(KeyS3Endpoint, "", "Endpoint of an S3-compatible service (implies --s3)")
}

// BindFlags makes every flag in fs a viper key of the same name.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	if err := v.BindPFlags(fs); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	return nil
}

// ReadFile merges a YAML config file into v. An empty path looks for
// config.yaml in $HOME/.snapdiff and the working directory and tolerates its
// absence; an explicit path must exist.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.snapdiff")
	v.AddConfigPath(".snapdiff")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// LoadViewer reads and validates the client settings.
func LoadViewer(v *viper.Viper) (Viewer, error) {
	cfg := Viewer{
		APIURL:  strings.TrimSpace(v.GetString(KeyAPIURL)),
		Catalog: v.GetString(KeyCatalog),
		Cookies: v.GetStringSlice(KeyCookie),
		Timeout: v.GetDuration(KeyTimeout),
		LogDir:  v.GetString(KeyLogDir),
		NoLog:   v.GetBool(KeyNoLog),
	}
	if cfg.APIURL == "" {
		return cfg, fmt.Errorf("%s must not be empty", KeyAPIURL)
	}
	u, err := url.Parse(cfg.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return cfg, fmt.Errorf("%s %q is not an http(s) URL", KeyAPIURL, cfg.APIURL)
	}
	if cfg.Timeout <= 0 {
		return cfg, fmt.Errorf("%s must be positive, got %s", KeyTimeout, cfg.Timeout)
	}
	if cfg.LogDir == "" {
		cfg.LogDir = DefaultLogDir
	}
	return cfg, nil
}

// LoadServer reads and validates the backend settings.
func LoadServer(v *viper.Viper) (Server, error) {
	cfg := Server{
		Address:         v.GetString(KeyAddress),
		StorageDir:      v.GetString(KeyStorageDir),
		CacheSize:       v.GetInt(KeyCacheSize),
		Kubeconfig:      v.GetString(KeyKubeconfig),
		AllowedOrigins:  v.GetStringSlice(KeyAllowedOrigins),
		ShutdownTimeout: v.GetDuration(KeyShutdownTimeout),
		S3:              v.GetBool(KeyS3),
		S3Endpoint:      strings.TrimSpace(v.GetString(KeyS3Endpoint)),
	}
	if cfg.S3Endpoint != "" {
		u, err := url.Parse(cfg.S3Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return cfg, fmt.Errorf("%s %q is not an http(s) URL", KeyS3Endpoint, cfg.S3Endpoint)
		}
		cfg.S3 = true
	}
	if cfg.Address == "" {
		return cfg, fmt.Errorf("%s must not be empty", KeyAddress)
	}
	if cfg.StorageDir == "" {
		return cfg, fmt.Errorf("%s must not be empty", KeyStorageDir)
	}
	if cfg.CacheSize < 0 {
		return cfg, fmt.Errorf("%s must not be negative, got %d", KeyCacheSize, cfg.CacheSize)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	return cfg, nil
}
