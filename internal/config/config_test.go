// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viewerFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddViewerFlags(fs)
	AddServerFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestDefaults(t *testing.T) {
	v := New()
	require.NoError(t, BindFlags(v, viewerFlags(t)))

	cfg, err := LoadViewer(v)
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultLogDir, cfg.LogDir)
	assert.Empty(t, cfg.Cookies)
	assert.False(t, cfg.NoLog)

	srv, err := LoadServer(v)
	require.NoError(t, err)
	assert.Equal(t, DefaultAddress, srv.Address)
	assert.Equal(t, DefaultCacheSize, srv.CacheSize)
	assert.Equal(t, []string{"*"}, srv.AllowedOrigins)
	assert.False(t, srv.S3)
}

func TestS3EndpointEnablesS3(t *testing.T) {
	t.Setenv("SNAPDIFF_S3_ENDPOINT", "http://minio:9000")

	v := New()
	require.NoError(t, BindFlags(v, viewerFlags(t)))
	srv, err := LoadServer(v)
	require.NoError(t, err)
	assert.True(t, srv.S3)
	assert.Equal(t, "http://minio:9000", srv.S3Endpoint)

	v = New()
	require.NoError(t, BindFlags(v, viewerFlags(t, "--s3-endpoint", "minio:9000")))
	_, err = LoadServer(v)
	assert.ErrorContains(t, err, "s3-endpoint")
}

func TestEnvOverridesDefault(t *testing.T) {
	t.Setenv("SNAPDIFF_API_URL", "https://diff.example.com")
	t.Setenv("SNAPDIFF_TIMEOUT", "5s")

	v := New()
	require.NoError(t, BindFlags(v, viewerFlags(t)))

	cfg, err := LoadViewer(v)
	require.NoError(t, err)
	assert.Equal(t, "https://diff.example.com", cfg.APIURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestFlagOverridesEnv(t *testing.T) {
	t.Setenv("SNAPDIFF_API_URL", "https://diff.example.com")

	v := New()
	fs := viewerFlags(t, "--api-url", "http://127.0.0.1:9000", "--cookie", "a=1", "--cookie", "b=2", "--no-log")
	require.NoError(t, BindFlags(v, fs))

	cfg, err := LoadViewer(v)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.APIURL)
	assert.Equal(t, []string{"a=1", "b=2"}, cfg.Cookies)
	assert.True(t, cfg.NoLog)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api-url: http://from-file:8082\ncache-size: 8\n"), 0o644))

	v := New()
	require.NoError(t, BindFlags(v, viewerFlags(t)))
	require.NoError(t, ReadFile(v, path))

	cfg, err := LoadViewer(v)
	require.NoError(t, err)
	assert.Equal(t, "http://from-file:8082", cfg.APIURL)

	srv, err := LoadServer(v)
	require.NoError(t, err)
	assert.Equal(t, 8, srv.CacheSize)
}

func TestReadFileExplicitMissing(t *testing.T) {
	err := ReadFile(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestReadFileDefaultLocationMissingIsFine(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	assert.NoError(t, ReadFile(New(), ""))
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad scheme", []string{"--api-url", "ftp://x"}, "not an http(s) URL"},
		{"no host", []string{"--api-url", "http://"}, "not an http(s) URL"},
		{"zero timeout", []string{"--timeout", "0s"}, "timeout must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			require.NoError(t, BindFlags(v, viewerFlags(t, tt.args...)))
			_, err := LoadViewer(v)
			assert.ErrorContains(t, err, tt.want)
		})
	}

	v := New()
	require.NoError(t, BindFlags(v, viewerFlags(t, "--cache-size", "-1")))
	_, err := LoadServer(v)
	assert.ErrorContains(t, err, "cache-size")
}
