// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package selection implements the cascading namespace/group/version/kind/resource
// selection as a reducer.
//
// Every transition returns the next State together with the Effects it implies,
// so callers never depend on the order in which dependent fields are updated.
// Effects name the fetch purposes whose inputs changed; an unchanged selection
// yields no effects.
package selection

import (
	"net/url"
	"strings"

	"github.com/monadic/snapdiff/pkg/catalog"
)

// DefaultNamespace is selected until the user or the query picks another.
const DefaultNamespace = "default"

// Selection identifies one artifact bundle.
type Selection struct {
	Namespace string `json:"namespace"`
	Group     string `json:"group"`
	Version   string `json:"version"`
	Kind      string `json:"kind"`
	Resource  string `json:"resource"`
}

// ListKey is the part of a selection that keys the resource listing.
type ListKey struct {
	Namespace, Group, Version, Kind string
}

// ListKey returns the resource-listing key of s.
func (s Selection) ListKey() ListKey {
	return ListKey{Namespace: s.Namespace, Group: s.Group, Version: s.Version, Kind: s.Kind}
}

// String renders the key as a path, used for logging and request identity.
func (k ListKey) String() string {
	return strings.Join([]string{k.Namespace, k.Group, k.Version, k.Kind}, "/")
}

// String renders the selection as a path.
func (s Selection) String() string {
	return s.ListKey().String() + "/" + s.Resource
}

// Dimension is one axis of the selection.
type Dimension int

const (
	DimNamespace Dimension = iota
	DimGroup
	DimVersion
	DimKind
	DimResource
)

// Dimensions lists every dimension in cascade order.
var Dimensions = []Dimension{DimNamespace, DimGroup, DimVersion, DimKind, DimResource}

// String returns the dimension name, which is also its query parameter.
func (d Dimension) String() string {
	switch d {
	case DimNamespace:
		return "namespace"
	case DimGroup:
		return "group"
	case DimVersion:
		return "version"
	case DimKind:
		return "kind"
	case DimResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Effects is the set of fetch purposes made stale by a transition.
type Effects uint8

const (
	// RefetchResources means (namespace, group, version, kind) changed.
	RefetchResources Effects = 1 << iota
	// RefetchArtifacts means the full selection changed.
	RefetchArtifacts
)

// Has reports whether e includes f.
func (e Effects) Has(f Effects) bool { return e&f != 0 }

// Diff returns the effects of moving from prev to next.
func Diff(prev, next Selection) Effects {
	var e Effects
	if prev.ListKey() != next.ListKey() {
		e |= RefetchResources
	}
	if prev != next {
		e |= RefetchArtifacts
	}
	return e
}

// State is the current selection plus its candidate lists.
// Namespaces and Resources come from the backend; Groups, Versions and Kinds
// come from the catalog.
type State struct {
	Selection

	Namespaces []string
	Groups     []string
	Versions   []string
	Kinds      []string
	Resources  []string

	catalog *catalog.Catalog
}

// New returns the default state: namespace "default" and the first catalog
// group with its first version and kind.
func New(cat *catalog.Catalog) State {
	s := State{
		Selection:  Selection{Namespace: DefaultNamespace},
		Namespaces: []string{DefaultNamespace},
		Groups:     cat.Groups(),
		Resources:  []string{},
		catalog:    cat,
	}
	if len(s.Groups) > 0 {
		s.applyGroup(s.Groups[0])
	}
	return s
}

// FromQuery returns the initial state with the five query parameters applied
// verbatim on top of the defaults. Values are not validated against the
// catalog; an unknown group simply yields empty version and kind lists.
func FromQuery(cat *catalog.Catalog, q url.Values) State {
	s := New(cat)
	if q.Has("namespace") {
		s.Namespace = q.Get("namespace")
	}
	if q.Has("group") {
		s.applyGroup(q.Get("group"))
	}
	if q.Has("version") {
		s.Version = q.Get("version")
	}
	if q.Has("kind") {
		s.Kind = q.Get("kind")
	}
	if q.Has("resource") {
		s.Resource = q.Get("resource")
	}
	return s
}

// ParseQuery is FromQuery for a raw query string; a leading "?" is allowed.
func ParseQuery(cat *catalog.Catalog, raw string) (State, error) {
	q, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return State{}, err
	}
	return FromQuery(cat, q), nil
}

// Catalog returns the catalog the state was derived from.
func (s State) Catalog() *catalog.Catalog {
	return s.catalog
}

// applyGroup assigns g and re-derives versions and kinds from the catalog.
// An empty list leaves the dependent selection empty.
func (s *State) applyGroup(g string) {
	s.Group = g
	s.Versions = s.catalog.SupportedVersions(g)
	s.Version = first(s.Versions)
	s.Kinds = s.catalog.SupportedKinds(g)
	s.Kind = first(s.Kinds)
}

func (s State) transition(mutate func(*State)) (State, Effects) {
	prev := s.Selection
	next := s.clone()
	mutate(&next)
	return next, Diff(prev, next.Selection)
}

// SetNamespace assigns the namespace.
func (s State) SetNamespace(ns string) (State, Effects) {
	return s.transition(func(n *State) { n.Namespace = ns })
}

// SetGroup assigns the group and resets version and kind to the group's first
// catalog entries.
func (s State) SetGroup(g string) (State, Effects) {
	if g == s.Group {
		return s, 0
	}
	return s.transition(func(n *State) { n.applyGroup(g) })
}

// SetVersion assigns the version.
func (s State) SetVersion(v string) (State, Effects) {
	return s.transition(func(n *State) { n.Version = v })
}

// SetKind assigns the kind.
func (s State) SetKind(k string) (State, Effects) {
	return s.transition(func(n *State) { n.Kind = k })
}

// SetResource assigns the resource.
func (s State) SetResource(r string) (State, Effects) {
	return s.transition(func(n *State) { n.Resource = r })
}

// Set dispatches to the setter of d.
func (s State) Set(d Dimension, value string) (State, Effects) {
	switch d {
	case DimNamespace:
		return s.SetNamespace(value)
	case DimGroup:
		return s.SetGroup(value)
	case DimVersion:
		return s.SetVersion(value)
	case DimKind:
		return s.SetKind(value)
	case DimResource:
		return s.SetResource(value)
	default:
		return s, 0
	}
}

// NamespacesSettled replaces the namespace candidates.
func (s State) NamespacesSettled(names []string) State {
	n := s.clone()
	n.Namespaces = append([]string{}, names...)
	return n
}

// ResourcesSettled replaces the resource candidates and selects the first
// resource, or none when the list is empty.
func (s State) ResourcesSettled(names []string) (State, Effects) {
	return s.transition(func(n *State) {
		n.Resources = append([]string{}, names...)
		n.Resource = first(names)
	})
}

// Candidates returns the candidate list of d.
func (s State) Candidates(d Dimension) []string {
	switch d {
	case DimNamespace:
		return s.Namespaces
	case DimGroup:
		return s.Groups
	case DimVersion:
		return s.Versions
	case DimKind:
		return s.Kinds
	case DimResource:
		return s.Resources
	default:
		return nil
	}
}

// Value returns the selected value of d.
func (s State) Value(d Dimension) string {
	switch d {
	case DimNamespace:
		return s.Namespace
	case DimGroup:
		return s.Group
	case DimVersion:
		return s.Version
	case DimKind:
		return s.Kind
	case DimResource:
		return s.Resource
	default:
		return ""
	}
}

// Cycle moves d by delta positions through its candidate list, wrapping
// around. A value missing from the list starts from the first candidate.
func (s State) Cycle(d Dimension, delta int) (State, Effects) {
	cands := s.Candidates(d)
	if len(cands) == 0 {
		return s, 0
	}
	idx := indexOf(cands, s.Value(d))
	if idx < 0 {
		return s.Set(d, cands[0])
	}
	next := ((idx+delta)%len(cands) + len(cands)) % len(cands)
	return s.Set(d, cands[next])
}

func (s State) clone() State {
	n := s
	n.Namespaces = append([]string(nil), s.Namespaces...)
	n.Groups = append([]string(nil), s.Groups...)
	n.Versions = append([]string(nil), s.Versions...)
	n.Kinds = append([]string(nil), s.Kinds...)
	n.Resources = append([]string(nil), s.Resources...)
	return n
}

func first(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[0]
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
