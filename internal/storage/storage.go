// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package storage reads artifact blobs referenced by snapshot status URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a blob does not exist.
var ErrNotFound = errors.New("blob not found")

// ErrOutsideRoot is returned for URLs that resolve outside the storage root.
var ErrOutsideRoot = errors.New("path escapes storage root")

// Storage retrieves a blob by the URL recorded in a snapshot status.
type Storage interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// File serves blobs from a local directory. URLs may be plain paths
// (absolute, relative to the working directory, or relative to the root) or
// file:// URLs. Every path must stay under the root.
type File struct {
	root string
}

// NewFile returns a file backend rooted at dir.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	return &File{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute storage directory.
func (f *File) Root() string { return f.root }

// Get reads the blob at url.
func (f *File) Get(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := f.resolve(url)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", url, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return data, nil
}

func (f *File) resolve(url string) (string, error) {
	p := strings.TrimPrefix(url, "file://")
	if p == "" {
		return "", fmt.Errorf("empty blob url: %w", ErrNotFound)
	}

	var full string
	switch {
	case filepath.IsAbs(p):
		full = filepath.Clean(p)
	default:
		// Writers record paths joined onto a possibly relative storage dir,
		// so a relative URL is first tried against the working directory.
		if abs, err := filepath.Abs(p); err == nil && f.within(abs) {
			if _, err := os.Stat(abs); err == nil {
				full = abs
			}
		}
		if full == "" {
			full = filepath.Join(f.root, p)
		}
	}

	if !f.within(full) {
		return "", fmt.Errorf("%s: %w", url, ErrOutsideRoot)
	}
	return full, nil
}

func (f *File) within(path string) bool {
	rel, err := filepath.Rel(f.root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
