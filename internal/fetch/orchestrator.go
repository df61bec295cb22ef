// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package fetch tracks in-flight requests per purpose and decides which
// results may still be applied.
//
// Each purpose has a generation counter and a cancel func. Begin supersedes
// the outstanding request of the same purpose: it cancels its context and bumps
// the generation. Settle accepts a result only if its ticket carries the
// current generation, so a late response from a superseded request is dropped
// even when its network call succeeded.
//
// An Orchestrator is not safe for concurrent use. It is owned by the UI event
// loop; request goroutines only carry tickets.
package fetch

import (
	"context"
	"fmt"
)

// Purpose is an independent cancellation scope.
type Purpose int

const (
	Namespaces Purpose = iota
	Resources
	Artifacts

	numPurposes
)

// Purposes lists every purpose.
var Purposes = []Purpose{Namespaces, Resources, Artifacts}

func (p Purpose) String() string {
	switch p {
	case Namespaces:
		return "namespaces"
	case Resources:
		return "resources"
	case Artifacts:
		return "artifacts"
	default:
		return fmt.Sprintf("purpose(%d)", int(p))
	}
}

// Ticket identifies one issued request.
type Ticket struct {
	Purpose    Purpose
	Generation uint64
	// Key is the selection the request was issued for.
	Key string
}

func (t Ticket) String() string {
	return fmt.Sprintf("%s#%d[%s]", t.Purpose, t.Generation, t.Key)
}

type slot struct {
	generation uint64
	key        string
	cancel     context.CancelFunc
	pending    bool
}

// Orchestrator owns the generation tokens of every purpose.
type Orchestrator struct {
	parent context.Context
	slots  [numPurposes]slot
	closed bool
}

// New returns an Orchestrator whose request contexts derive from parent.
func New(parent context.Context) *Orchestrator {
	if parent == nil {
		parent = context.Background()
	}
	return &Orchestrator{parent: parent}
}

// Begin supersedes the outstanding request of p and returns the context and
// ticket for a new request keyed by key.
func (o *Orchestrator) Begin(p Purpose, key string) (context.Context, Ticket) {
	s := &o.slots[p]
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	s.key = key

	ctx, cancel := context.WithCancel(o.parent)
	if o.closed {
		cancel()
	}
	s.cancel = cancel
	s.pending = !o.closed

	return ctx, Ticket{Purpose: p, Generation: s.generation, Key: key}
}

// Current reports whether t is the latest request of its purpose.
func (o *Orchestrator) Current(t Ticket) bool {
	if o.closed || t.Purpose < 0 || t.Purpose >= numPurposes {
		return false
	}
	s := o.slots[t.Purpose]
	return s.pending && s.generation == t.Generation && s.key == t.Key
}

// Settle reports whether the result of t may be applied, and releases its
// context. It returns false for superseded, cancelled or already settled
// tickets.
func (o *Orchestrator) Settle(t Ticket) bool {
	if !o.Current(t) {
		return false
	}
	s := &o.slots[t.Purpose]
	s.pending = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return true
}

// Cancel supersedes the outstanding request of p without issuing a new one.
func (o *Orchestrator) Cancel(p Purpose) {
	s := &o.slots[p]
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.pending {
		s.generation++
	}
	s.pending = false
}

// Pending reports whether p has an outstanding request.
func (o *Orchestrator) Pending(p Purpose) bool {
	return o.slots[p].pending
}

// Idle reports whether no purpose has an outstanding request.
func (o *Orchestrator) Idle() bool {
	for _, p := range Purposes {
		if o.Pending(p) {
			return false
		}
	}
	return true
}

// Generation returns the latest generation issued for p.
func (o *Orchestrator) Generation(p Purpose) uint64 {
	return o.slots[p].generation
}

// Close cancels every outstanding request. Later results never settle.
func (o *Orchestrator) Close() {
	for _, p := range Purposes {
		o.Cancel(p)
	}
	o.closed = true
}
