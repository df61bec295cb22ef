// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monadic/snapdiff/internal/fetch"
	"github.com/monadic/snapdiff/pkg/catalog"
	"github.com/monadic/snapdiff/pkg/diffapi"
	"github.com/monadic/snapdiff/pkg/render"
	"github.com/monadic/snapdiff/pkg/selection"
)

const testGroup = "snapshot.example/v1"

// fakeSource answers from fixed tables keyed by ListKey and Selection strings.
type fakeSource struct {
	mu          sync.Mutex
	namespaces  []string
	resources   map[string][]string
	bundles     map[string]*diffapi.Bundle
	listErr     error
	artifactErr error
	calls       []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		namespaces: []string{"default", "shop", "staging"},
		resources: map[string][]string{
			"default/" + testGroup + "/v1/snapshot": {"res-a", "res-b"},
			"shop/" + testGroup + "/v1/snapshot":    {"cart"},
		},
		bundles: map[string]*diffapi.Bundle{
			"default/" + testGroup + "/v1/snapshot/res-a": {DiffAmount: diffapi.Float(0.1234)},
			"default/" + testGroup + "/v1/snapshot/res-b": {DiffAmount: diffapi.Float(0.5)},
			"shop/" + testGroup + "/v1/snapshot/cart":     {HTMLDiffAmount: diffapi.Float(0.02)},
		},
	}
}

func (f *fakeSource) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSource) ListNamespaces(ctx context.Context) ([]string, error) {
	f.record("namespaces")
	return f.namespaces, nil
}

func (f *fakeSource) ListResources(ctx context.Context, key selection.ListKey) ([]string, error) {
	f.record("resources " + key.String())
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.resources[key.String()], nil
}

func (f *fakeSource) GetArtifacts(ctx context.Context, sel selection.Selection) (*diffapi.Bundle, error) {
	f.record("artifacts " + sel.String())
	if f.artifactErr != nil {
		return nil, f.artifactErr
	}
	b, ok := f.bundles[sel.String()]
	if !ok {
		return nil, &diffapi.StatusError{Code: 404}
	}
	return b, nil
}

func testViewerModel(t *testing.T, src artifactSource, state selection.State) ViewerModel {
	t.Helper()
	m := newViewerModel(context.Background(), src, state, viewerOptions{apiURL: "http://api.test"})
	t.Cleanup(m.Close)
	return m
}

// run executes cmd and every command batched under it, returning the
// resulting messages in order. Quit messages are dropped.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	switch msg := msg.(type) {
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, run(c)...)
		}
		return out
	case tea.QuitMsg, nil:
		return nil
	default:
		return []tea.Msg{msg}
	}
}

// deliver feeds msgs to m until no further fetches are produced.
func deliver(m ViewerModel, msgs ...tea.Msg) ViewerModel {
	for len(msgs) > 0 {
		msg := msgs[0]
		msgs = msgs[1:]
		next, cmd := m.Update(msg)
		m = next.(ViewerModel)
		msgs = append(msgs, fetchMsgs(run(cmd))...)
	}
	return m
}

func fetchMsgs(msgs []tea.Msg) []tea.Msg {
	var out []tea.Msg
	for _, msg := range msgs {
		switch msg.(type) {
		case namespacesLoadedMsg, resourcesLoadedMsg, artifactsLoadedMsg:
			out = append(out, msg)
		}
	}
	return out
}

// started returns a model whose startup fetches have all settled.
func started(t *testing.T, src artifactSource) ViewerModel {
	t.Helper()
	m := testViewerModel(t, src, selection.New(catalog.Default()))
	return deliver(m, fetchMsgs(run(m.Init()))...)
}

func TestViewerStartupCascade(t *testing.T) {
	m := started(t, newFakeSource())

	assert.Equal(t, []string{"default", "shop", "staging"}, m.state.Namespaces)
	assert.Equal(t, "v1", m.state.Version)
	assert.Equal(t, "snapshot", m.state.Kind)
	assert.Equal(t, []string{"res-a", "res-b"}, m.state.Resources)
	assert.Equal(t, "res-a", m.state.Resource)

	b, sel := m.Bundle()
	require.NotNil(t, b)
	assert.Equal(t, "res-a", sel.Resource)
	assert.InDelta(t, 0.1234, *b.DiffAmount, 1e-9)
	assert.False(t, m.loading)
	assert.True(t, m.orch.Idle())
}

func TestViewerInitWithResourceFetchesArtifactsImmediately(t *testing.T) {
	src := newFakeSource()
	state, err := selection.ParseQuery(catalog.Default(), "resource=res-b")
	require.NoError(t, err)

	m := testViewerModel(t, src, state)
	assert.True(t, m.loading)

	msgs := fetchMsgs(run(m.Init()))
	require.Len(t, msgs, 3)
	m = deliver(m, msgs...)

	// The first listing resets the resource to its first element.
	assert.Equal(t, "res-a", m.state.Resource)
	_, sel := m.Bundle()
	assert.Equal(t, "res-a", sel.Resource)
	assert.Equal(t, 2, count(src.calls, "artifacts "))
	assert.True(t, m.orch.Idle())
}

func TestViewerOutOfOrderResourceListings(t *testing.T) {
	for _, order := range []string{"reverse", "in-order"} {
		t.Run(order, func(t *testing.T) {
			src := newFakeSource()
			src.resources["ns-1/"+testGroup+"/v1/snapshot"] = []string{"one"}
			src.resources["ns-2/"+testGroup+"/v1/snapshot"] = []string{"two"}
			src.bundles["ns-1/"+testGroup+"/v1/snapshot/one"] = &diffapi.Bundle{}
			src.bundles["ns-2/"+testGroup+"/v1/snapshot/two"] = &diffapi.Bundle{}
			m := started(t, src)

			next, eff := m.state.SetNamespace("ns-1")
			m, cmd1 := m.apply(next, eff)
			r1 := fetchMsgs(run(cmd1))

			next, eff = m.state.SetNamespace("ns-2")
			m, cmd2 := m.apply(next, eff)
			r2 := fetchMsgs(run(cmd2))

			var msgs []tea.Msg
			if order == "reverse" {
				msgs = append(r2, r1...)
			} else {
				msgs = append(r1, r2...)
			}
			m = deliver(m, msgs...)

			assert.Equal(t, "ns-2", m.state.Namespace)
			assert.Equal(t, []string{"two"}, m.state.Resources)
			assert.Equal(t, "two", m.state.Resource)
			_, sel := m.Bundle()
			assert.Equal(t, "two", sel.Resource)
		})
	}
}

func TestViewerIdempotentSetIssuesNothing(t *testing.T) {
	m := started(t, newFakeSource())
	gen := m.orch.Generation(fetch.Artifacts)
	calls := len(m.source.(*fakeSource).calls)

	next, eff := m.state.SetNamespace("default")
	m, cmd := m.apply(next, eff)

	assert.Nil(t, cmd)
	assert.False(t, m.loading)
	assert.Equal(t, gen, m.orch.Generation(fetch.Artifacts))
	assert.Len(t, m.source.(*fakeSource).calls, calls)
}

func TestViewerInFlightArtifactAfterResourceChangeIsDropped(t *testing.T) {
	m := started(t, newFakeSource())
	require.Equal(t, "res-a", m.state.Resource)

	// Refresh res-a, then move to res-b before the refresh lands.
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = next.(ViewerModel)
	staleA := fetchMsgs(run(cmd))
	require.Len(t, staleA, 1)

	m.focus = selection.DimResource
	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m = next.(ViewerModel)
	freshB := fetchMsgs(run(cmd))
	require.Len(t, freshB, 1)
	assert.Equal(t, "res-b", m.state.Resource)

	m = deliver(m, freshB...)
	m = deliver(m, staleA...)

	b, sel := m.Bundle()
	assert.Equal(t, "res-b", sel.Resource)
	assert.InDelta(t, 0.5, *b.DiffAmount, 1e-9)
	assert.False(t, m.loading)
}

func TestViewerEmptyListingCancelsArtifacts(t *testing.T) {
	src := newFakeSource()
	m := started(t, src)
	before, _ := m.Bundle()

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = next.(ViewerModel)
	inflight := fetchMsgs(run(cmd))
	require.True(t, m.loading)

	next2, eff := m.state.SetNamespace("empty")
	m, cmd = m.apply(next2, eff)
	m = deliver(m, fetchMsgs(run(cmd))...)

	assert.Equal(t, "", m.state.Resource)
	assert.Empty(t, m.state.Resources)
	assert.False(t, m.loading)
	assert.False(t, m.orch.Pending(fetch.Artifacts))

	m = deliver(m, inflight...)
	after, _ := m.Bundle()
	assert.Same(t, before, after)
}

func TestViewerArtifactFailureKeepsViewerRunning(t *testing.T) {
	src := newFakeSource()
	src.artifactErr = errors.New("dial tcp: connection refused")
	m := started(t, src)

	assert.Error(t, m.Err())
	assert.False(t, m.loading)
	b, _ := m.Bundle()
	assert.Nil(t, b)
}

func TestViewerArtifactFailureKeepsLastBundle(t *testing.T) {
	src := newFakeSource()
	m := started(t, src)
	good, _ := m.Bundle()
	require.NotNil(t, good)

	src.artifactErr = &diffapi.StatusError{Code: 500}
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = next.(ViewerModel)
	assert.True(t, m.loading)
	m = deliver(m, fetchMsgs(run(cmd))...)

	b, sel := m.Bundle()
	assert.Same(t, good, b)
	assert.Equal(t, "res-a", sel.Resource)
	assert.False(t, m.loading)
	assert.Error(t, m.Err())
}

func TestViewerListingFailureLeavesResources(t *testing.T) {
	src := newFakeSource()
	m := started(t, src)
	good, _ := m.Bundle()

	src.listErr = errors.New("dial tcp: connection refused")
	next, eff := m.state.SetNamespace("shop")
	m, cmd := m.apply(next, eff)
	m = deliver(m, fetchMsgs(run(cmd))...)

	assert.Equal(t, "shop", m.state.Namespace)
	assert.Equal(t, []string{"res-a", "res-b"}, m.state.Resources)
	assert.Equal(t, "res-a", m.state.Resource)
	assert.Equal(t, 1, count(src.calls, "resources shop/"))
	b, _ := m.Bundle()
	assert.Same(t, good, b, "the failed artifact fetch for shop/res-a keeps the bundle")
	assert.False(t, m.loading)
	assert.True(t, m.orch.Idle())
}

func TestViewerListingFailureIgnoredOnceBundleSettles(t *testing.T) {
	src := newFakeSource()
	src.bundles["shop/"+testGroup+"/v1/snapshot/res-a"] = &diffapi.Bundle{DiffAmount: diffapi.Float(0.5)}
	m := started(t, src)

	src.listErr = errors.New("dial tcp: connection refused")
	next, eff := m.state.SetNamespace("shop")
	m, cmd := m.apply(next, eff)
	m = deliver(m, fetchMsgs(run(cmd))...)

	assert.Error(t, m.listErr)
	_, sel := m.Bundle()
	assert.Equal(t, "shop", sel.Namespace)
	assert.NoError(t, m.Err())
}

func TestViewerFocusWraps(t *testing.T) {
	m := testViewerModel(t, newFakeSource(), selection.New(catalog.Default()))
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = next.(ViewerModel)
	assert.Equal(t, selection.DimResource, m.focus)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(ViewerModel)
	assert.Equal(t, selection.DimNamespace, m.focus)
}

func TestViewerGroupCycleCascades(t *testing.T) {
	m := started(t, newFakeSource())
	m.focus = selection.DimGroup

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("l")})
	m = next.(ViewerModel)
	assert.Equal(t, "skaffold-snapshot.example/v1", m.state.Group)
	assert.Equal(t, "v1", m.state.Version)
	assert.Equal(t, "snapshot", m.state.Kind)
	assert.Equal(t, "res-a", m.state.Resource, "resource is kept until the new listing settles")

	m = deliver(m, fetchMsgs(run(cmd))...)
	assert.Equal(t, "", m.state.Resource)
	assert.False(t, m.loading)
}

func TestViewerViewShowsSelectionAndAmount(t *testing.T) {
	m := started(t, newFakeSource())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(ViewerModel)

	out := m.View()
	assert.Contains(t, out, "Namespace")
	assert.Contains(t, out, testGroup)
	assert.Contains(t, out, "res-a")
	assert.Contains(t, out, "12.34%")
	assert.Contains(t, out, "[diff]")
}

func TestViewerViewBeforeReady(t *testing.T) {
	m := testViewerModel(t, newFakeSource(), selection.New(catalog.Default()))
	assert.Contains(t, m.View(), "Initializing")
}

func TestViewerHelpToggle(t *testing.T) {
	m := started(t, newFakeSource())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(ViewerModel)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	m = next.(ViewerModel)
	assert.Contains(t, m.View(), "diff/side-by-side")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	m = next.(ViewerModel)
	assert.NotContains(t, m.View(), "Press ? to close")
}

func TestViewerModeToggle(t *testing.T) {
	m := started(t, newFakeSource())
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	m = next.(ViewerModel)
	assert.Nil(t, cmd)
	assert.Equal(t, render.ModeSideBySide, m.mode)
}

func TestViewerHeadlessQuitsWhenIdle(t *testing.T) {
	src := newFakeSource()
	m := newViewerModel(context.Background(), src, selection.New(catalog.Default()), viewerOptions{headless: true})
	defer m.Close()

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))
	fm := tm.FinalModel(t, teatest.WithFinalTimeout(2*time.Second)).(ViewerModel)

	b, sel := fm.Bundle()
	require.NotNil(t, b)
	assert.Equal(t, "res-a", sel.Resource)
}

func TestViewerJourney(t *testing.T) {
	src := newFakeSource()
	m := testViewerModel(t, src, selection.New(catalog.Default()))

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(100, 40))
	// Wait for the artifacts and the namespace listing ("1/3").
	var seen []byte
	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		seen = append(seen, out...)
		return bytes.Contains(seen, []byte("12.34%")) && bytes.Contains(seen, []byte("1/3"))
	}, teatest.WithDuration(2*time.Second))

	// Namespace is focused: move to "shop".
	tm.Send(tea.KeyMsg{Type: tea.KeyRight})
	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return bytes.Contains(out, []byte("cart"))
	}, teatest.WithDuration(2*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	fm := tm.FinalModel(t, teatest.WithFinalTimeout(2*time.Second)).(ViewerModel)

	assert.Equal(t, "shop", fm.Selection().Namespace)
	assert.Equal(t, "cart", fm.Selection().Resource)
	assert.True(t, fm.orch.Idle())
}

func count(calls []string, prefix string) int {
	n := 0
	for _, c := range calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}
