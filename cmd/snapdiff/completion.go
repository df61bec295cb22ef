// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/monadic/snapdiff/internal/config"
	"github.com/monadic/snapdiff/pkg/catalog"
)

// Namespace completion cache (avoid repeated API calls during tab-complete)
var (
	cachedNamespaces     []string
	namespaceCacheExpiry time.Time
	namespaceCacheMu     sync.Mutex
)

const namespaceCacheTTL = 3 * time.Second

// completeNamespaces returns the namespaces the configured API reports.
func completeNamespaces(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	namespaceCacheMu.Lock()
	defer namespaceCacheMu.Unlock()

	if time.Now().Before(namespaceCacheExpiry) && len(cachedNamespaces) > 0 {
		return filterPrefix(cachedNamespaces, toComplete), cobra.ShellCompDirectiveNoFileComp
	}

	setup, err := loadViewer(settings)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	// Quick timeout for completion - don't block shell
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	namespaces, err := setup.client.ListNamespaces(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	cachedNamespaces = namespaces
	namespaceCacheExpiry = time.Now().Add(namespaceCacheTTL)

	return filterPrefix(namespaces, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completionCatalog is the catalog selected by --catalog, or the builtin one.
func completionCatalog() *catalog.Catalog {
	cat, err := loadCatalog(settings.GetString(config.KeyCatalog))
	if err != nil {
		return catalog.Default()
	}
	return cat
}

// completeGroups returns the catalog groups.
func completeGroups(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix(completionCatalog().Groups(), toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeVersions returns the versions of --group, or of every group.
func completeVersions(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix(groupValues(cmd, (*catalog.Catalog).SupportedVersions), toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeKinds returns the kinds of --group, or of every group.
func completeKinds(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix(groupValues(cmd, (*catalog.Catalog).SupportedKinds), toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeModes returns the view modes.
func completeModes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix([]string{"diff", "side-by-side"}, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func groupValues(cmd *cobra.Command, of func(*catalog.Catalog, string) []string) []string {
	cat := completionCatalog()
	groups := cat.Groups()
	if g, err := cmd.Flags().GetString("group"); err == nil && g != "" {
		groups = []string{g}
	}

	seen := map[string]bool{}
	var values []string
	for _, g := range groups {
		for _, v := range of(cat, g) {
			if !seen[v] {
				seen[v] = true
				values = append(values, v)
			}
		}
	}
	return values
}

// filterPrefix filters strings by prefix (case-insensitive)
func filterPrefix(items []string, prefix string) []string {
	if prefix == "" {
		return items
	}
	var filtered []string
	lowerPrefix := strings.ToLower(prefix)
	for _, item := range items {
		if strings.HasPrefix(strings.ToLower(item), lowerPrefix) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
