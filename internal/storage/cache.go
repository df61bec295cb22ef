// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package storage

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached keeps recently read blobs in memory. Failed reads are not cached.
type Cached struct {
	next  Storage
	blobs *lru.Cache[string, []byte]
}

// NewCached wraps next with an LRU of size entries. A size of zero returns
// next unchanged.
func NewCached(next Storage, size int) (Storage, error) {
	if size == 0 {
		return next, nil
	}
	blobs, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create blob cache: %w", err)
	}
	return &Cached{next: next, blobs: blobs}, nil
}

// Get returns the cached blob for url or reads it through.
func (c *Cached) Get(ctx context.Context, url string) ([]byte, error) {
	if data, ok := c.blobs.Get(url); ok {
		return data, nil
	}
	data, err := c.next.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	c.blobs.Add(url, data)
	return data, nil
}

// Len reports how many blobs are cached.
func (c *Cached) Len() int { return c.blobs.Len() }
