// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package catalog holds the static table of supported snapshot API groups.
//
// The catalog answers two questions for the viewer: which versions and which
// kinds a group serves. It never touches the network. Groups are:
// - Built-in (shipped with snapdiff)
// - User-defined (a YAML file named by the catalog setting)
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry is the versions and kinds served by one API group, in picker order.
type Entry struct {
	Versions []string `yaml:"versions" json:"versions"`
	Kinds    []string `yaml:"kinds" json:"kinds"`
}

// Group is a named catalog entry as it appears in a catalog file.
type Group struct {
	Name     string   `yaml:"name" json:"name"`
	Versions []string `yaml:"versions" json:"versions"`
	Kinds    []string `yaml:"kinds" json:"kinds"`
}

// File is the structure of a catalog file.
type File struct {
	Groups []Group `yaml:"groups" json:"groups"`
}

// Catalog is an immutable, ordered group table.
type Catalog struct {
	order   []string
	entries map[string]Entry
}

// BuiltinGroups are used when no catalog file is configured.
var BuiltinGroups = []Group{
	{
		Name:     "snapshot.example/v1",
		Versions: []string{"v1"},
		Kinds:    []string{"snapshot", "scheduledsnapshot"},
	},
	{
		Name:     "skaffold-snapshot.example/v1",
		Versions: []string{"v1"},
		Kinds:    []string{"snapshot", "scheduledsnapshot"},
	},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(BuiltinGroups)
	if err != nil {
		panic(err)
	}
	return c
}

// New builds a catalog from groups. Group names must be unique and non-empty.
func New(groups []Group) (*Catalog, error) {
	c := &Catalog{
		order:   make([]string, 0, len(groups)),
		entries: make(map[string]Entry, len(groups)),
	}
	for i, g := range groups {
		if g.Name == "" {
			return nil, fmt.Errorf("group %d: name is required", i)
		}
		if _, dup := c.entries[g.Name]; dup {
			return nil, fmt.Errorf("group %q: defined more than once", g.Name)
		}
		c.order = append(c.order, g.Name)
		c.entries[g.Name] = Entry{
			Versions: append([]string(nil), g.Versions...),
			Kinds:    append([]string(nil), g.Kinds...),
		}
	}
	return c, nil
}

// LoadFile reads a catalog file. The file replaces the built-in table.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(f.Groups) == 0 {
		return nil, fmt.Errorf("catalog %s: no groups defined", path)
	}
	return New(f.Groups)
}

// Groups returns group names in catalog order.
func (c *Catalog) Groups() []string {
	return append([]string(nil), c.order...)
}

// SupportedVersions returns the versions of group, or an empty slice for an unknown group.
func (c *Catalog) SupportedVersions(group string) []string {
	e, ok := c.entries[group]
	if !ok {
		return []string{}
	}
	return append([]string{}, e.Versions...)
}

// SupportedKinds returns the kinds of group, or an empty slice for an unknown group.
func (c *Catalog) SupportedKinds(group string) []string {
	e, ok := c.entries[group]
	if !ok {
		return []string{}
	}
	return append([]string{}, e.Kinds...)
}

// Has reports whether group has a catalog entry.
func (c *Catalog) Has(group string) bool {
	_, ok := c.entries[group]
	return ok
}

// File returns the catalog in file form, for printing.
func (c *Catalog) File() File {
	f := File{Groups: make([]Group, 0, len(c.order))}
	for _, name := range c.order {
		e := c.entries[name]
		f.Groups = append(f.Groups, Group{
			Name:     name,
			Versions: append([]string{}, e.Versions...),
			Kinds:    append([]string{}, e.Kinds...),
		})
	}
	return f
}
