// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/monadic/snapdiff/internal/fetch"
	"github.com/monadic/snapdiff/pkg/diffapi"
	"github.com/monadic/snapdiff/pkg/render"
	"github.com/monadic/snapdiff/pkg/selection"
)

// artifactSource is the part of the diff API the viewer needs.
type artifactSource interface {
	ListNamespaces(ctx context.Context) ([]string, error)
	ListResources(ctx context.Context, key selection.ListKey) ([]string, error)
	GetArtifacts(ctx context.Context, sel selection.Selection) (*diffapi.Bundle, error)
}

// ViewerModel is the interactive artifact viewer.
//
// All selection changes go through the selection reducer; the effects it
// reports decide which requests the orchestrator issues. Results carry their
// ticket and are applied only if the orchestrator settles it.
type ViewerModel struct {
	state  selection.State
	orch   *fetch.Orchestrator
	source artifactSource
	log    *SessionLogger

	bundle      *diffapi.Bundle
	bundleFor   selection.Selection
	loading     bool
	artifactErr error
	listErr     error

	mode     render.Mode
	focus    selection.Dimension
	helpMode bool
	headless bool
	apiURL   string

	width   int
	height  int
	ready   bool
	spinner spinner.Model
	pane    viewport.Model
	keymap  viewerKeyMap
}

type viewerKeyMap struct {
	NextField key.Binding
	PrevField key.Binding
	PrevValue key.Binding
	NextValue key.Binding
	Mode      key.Binding
	Refresh   key.Binding
	Up        key.Binding
	Down      key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultViewerKeyMap() viewerKeyMap {
	return viewerKeyMap{
		NextField: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		PrevField: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev field")),
		PrevValue: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev value")),
		NextValue: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next value")),
		Mode:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "diff/side-by-side")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "scroll up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "scroll down")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// Messages
type namespacesLoadedMsg struct {
	ticket fetch.Ticket
	names  []string
	err    error
}

type resourcesLoadedMsg struct {
	ticket fetch.Ticket
	key    selection.ListKey
	names  []string
	err    error
}

type artifactsLoadedMsg struct {
	ticket fetch.Ticket
	sel    selection.Selection
	bundle *diffapi.Bundle
	err    error
}

// viewerOptions configures newViewerModel.
type viewerOptions struct {
	mode     render.Mode
	headless bool
	apiURL   string
	log      *SessionLogger
}

func newViewerModel(ctx context.Context, source artifactSource, state selection.State, opts viewerOptions) ViewerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	vp := viewport.New(80, 16)

	return ViewerModel{
		state:    state,
		orch:     fetch.New(ctx),
		source:   source,
		log:      opts.log,
		loading:  state.Resource != "",
		mode:     opts.mode,
		focus:    selection.DimNamespace,
		headless: opts.headless,
		apiURL:   opts.apiURL,
		spinner:  s,
		pane:     vp,
		keymap:   defaultViewerKeyMap(),
	}
}

// Init issues the startup fetches: namespaces once, the resource listing for
// the initial key, and the artifacts when the initial selection names a
// resource.
func (m ViewerModel) Init() tea.Cmd {
	m.log.Section("SESSION")
	m.log.LogSelection(m.state.Selection)

	cmds := []tea.Cmd{m.fetchNamespaces(), m.fetchResources()}
	if m.state.Resource != "" {
		cmds = append(cmds, m.fetchArtifacts())
	}
	if !m.headless {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

func (m ViewerModel) fetchNamespaces() tea.Cmd {
	ctx, ticket := m.orch.Begin(fetch.Namespaces, "")
	m.log.Issued(ticket)
	source := m.source
	return func() tea.Msg {
		names, err := source.ListNamespaces(ctx)
		return namespacesLoadedMsg{ticket: ticket, names: names, err: err}
	}
}

func (m ViewerModel) fetchResources() tea.Cmd {
	listKey := m.state.ListKey()
	ctx, ticket := m.orch.Begin(fetch.Resources, listKey.String())
	m.log.Issued(ticket)
	source := m.source
	return func() tea.Msg {
		names, err := source.ListResources(ctx, listKey)
		return resourcesLoadedMsg{ticket: ticket, key: listKey, names: names, err: err}
	}
}

// fetchArtifacts issues the artifact request. Callers set loading.
func (m ViewerModel) fetchArtifacts() tea.Cmd {
	sel := m.state.Selection
	ctx, ticket := m.orch.Begin(fetch.Artifacts, sel.String())
	m.log.Issued(ticket)
	source := m.source
	return func() tea.Msg {
		b, err := source.GetArtifacts(ctx, sel)
		return artifactsLoadedMsg{ticket: ticket, sel: sel, bundle: b, err: err}
	}
}

// apply installs a reducer result and issues what its effects require.
func (m ViewerModel) apply(next selection.State, eff selection.Effects) (ViewerModel, tea.Cmd) {
	m.state = next
	if eff == 0 {
		return m, nil
	}
	m.log.LogSelection(next.Selection)

	var cmds []tea.Cmd
	if eff.Has(selection.RefetchResources) {
		cmds = append(cmds, m.fetchResources())
	}
	if eff.Has(selection.RefetchArtifacts) {
		if next.Resource == "" {
			m.orch.Cancel(fetch.Artifacts)
			m.loading = false
			m.artifactErr = nil
		} else {
			m.loading = true
			cmds = append(cmds, m.fetchArtifacts())
		}
	}
	return m, tea.Batch(cmds...)
}

// settled reports whether the result for t may be applied, logging drops.
func (m ViewerModel) settled(t fetch.Ticket) bool {
	if m.orch.Settle(t) {
		return true
	}
	m.log.Dropped(t)
	return false
}

// quitIfDone ends a headless run once nothing is outstanding.
func (m ViewerModel) quitIfDone(cmd tea.Cmd) tea.Cmd {
	if m.headless && m.orch.Idle() {
		return tea.Batch(cmd, tea.Quit)
	}
	return cmd
}

func (m ViewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.pane.Width = msg.Width
		m.pane.Height = max(msg.Height-m.chromeHeight(), 3)
		m.refreshPane()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case namespacesLoadedMsg:
		if !m.settled(msg.ticket) {
			return m, m.quitIfDone(nil)
		}
		if msg.err != nil {
			m.log.Failed(msg.ticket, msg.err)
			return m, m.quitIfDone(nil)
		}
		m.log.Settled(msg.ticket, "%d namespaces", len(msg.names))
		m.state = m.state.NamespacesSettled(msg.names)
		return m, m.quitIfDone(nil)

	case resourcesLoadedMsg:
		if !m.settled(msg.ticket) {
			return m, m.quitIfDone(nil)
		}
		if msg.err != nil {
			m.listErr = msg.err
			m.log.Failed(msg.ticket, msg.err)
			return m, m.quitIfDone(nil)
		}
		m.listErr = nil
		m.log.Settled(msg.ticket, "%d resources", len(msg.names))
		next, eff := m.state.ResourcesSettled(msg.names)
		var cmd tea.Cmd
		m, cmd = m.apply(next, eff)
		return m, m.quitIfDone(cmd)

	case artifactsLoadedMsg:
		if !m.settled(msg.ticket) {
			return m, m.quitIfDone(nil)
		}
		m.loading = false
		if msg.err != nil {
			m.artifactErr = msg.err
			m.log.Failed(msg.ticket, msg.err)
			return m, m.quitIfDone(nil)
		}
		m.artifactErr = nil
		m.bundle = msg.bundle
		m.bundleFor = msg.sel
		m.log.Settled(msg.ticket, "bundle %v", msg.bundle.Summarize().Sizes)
		m.refreshPane()
		return m, m.quitIfDone(nil)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m ViewerModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.orch.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.helpMode = !m.helpMode
		return m, nil

	case key.Matches(msg, m.keymap.NextField):
		m.focus = m.stepFocus(1)
		return m, nil

	case key.Matches(msg, m.keymap.PrevField):
		m.focus = m.stepFocus(-1)
		return m, nil

	case key.Matches(msg, m.keymap.NextValue):
		next, eff := m.state.Cycle(m.focus, 1)
		return m.apply(next, eff)

	case key.Matches(msg, m.keymap.PrevValue):
		next, eff := m.state.Cycle(m.focus, -1)
		return m.apply(next, eff)

	case key.Matches(msg, m.keymap.Mode):
		m.mode = m.mode.Toggle()
		m.refreshPane()
		return m, nil

	case key.Matches(msg, m.keymap.Refresh):
		if m.state.Resource == "" {
			return m, nil
		}
		m.loading = true
		return m, m.fetchArtifacts()

	case key.Matches(msg, m.keymap.Up), key.Matches(msg, m.keymap.Down):
		var cmd tea.Cmd
		m.pane, cmd = m.pane.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ViewerModel) stepFocus(delta int) selection.Dimension {
	n := len(selection.Dimensions)
	return selection.Dimension(((int(m.focus)+delta)%n + n) % n)
}

func (m *ViewerModel) refreshPane() {
	m.pane.SetContent(render.Terminal(m.bundle, m.mode, m.pane.Width))
}

// Selection returns the current selection.
func (m ViewerModel) Selection() selection.Selection { return m.state.Selection }

// Bundle returns the last settled bundle and the selection it belongs to.
func (m ViewerModel) Bundle() (*diffapi.Bundle, selection.Selection) { return m.bundle, m.bundleFor }

// Err returns the failure of the latest artifact fetch, or else of the latest
// resource listing when no bundle has settled.
func (m ViewerModel) Err() error {
	if m.artifactErr != nil {
		return m.artifactErr
	}
	if m.bundle == nil {
		return m.listErr
	}
	return nil
}

// Close cancels everything still in flight.
func (m ViewerModel) Close() { m.orch.Close() }

// Styles
var (
	vwHeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	vwLabelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Width(11)
	vwValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	vwFocusStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	vwDimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	vwEmptyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	vwModeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	vwPaneStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderTop(true).BorderForeground(lipgloss.Color("240"))
	vwHelpKeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Width(12)
)

var titleCaser = cases.Title(language.English)

// chromeHeight is the number of lines above and below the artifact pane.
func (m ViewerModel) chromeHeight() int {
	// header, blank, five selectors, blank, status, pane border, footer
	return 2 + len(selection.Dimensions) + 1 + 1 + 1 + 1
}

func (m ViewerModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}
	if m.helpMode {
		return m.renderHelp()
	}

	var b strings.Builder
	header := vwHeaderStyle.Render("snapdiff")
	if m.apiURL != "" {
		header += "  " + vwDimStyle.Render(m.apiURL)
	}
	header += "  " + vwModeStyle.Render("["+m.mode.String()+"]")
	b.WriteString(header + "\n\n")

	for _, d := range selection.Dimensions {
		b.WriteString(m.renderSelector(d) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(m.renderStatus() + "\n")
	b.WriteString(vwPaneStyle.Width(max(m.width, 1)).Render(m.pane.View()) + "\n")
	b.WriteString(vwDimStyle.Render("tab field • ←/→ value • d mode • r refresh • ? help • q quit"))
	return b.String()
}

func (m ViewerModel) renderSelector(d selection.Dimension) string {
	label := vwLabelStyle.Render(titleCaser.String(d.String()))
	value := m.state.Value(d)
	cands := m.state.Candidates(d)

	var shown string
	if value == "" {
		shown = vwEmptyStyle.Render("(none)")
	} else {
		shown = vwValueStyle.Render(value)
	}

	pos := ""
	if idx := indexOf(cands, value); idx >= 0 {
		pos = vwDimStyle.Render(fmt.Sprintf(" %d/%d", idx+1, len(cands)))
	} else if len(cands) > 0 {
		pos = vwDimStyle.Render(fmt.Sprintf(" -/%d", len(cands)))
	}

	line := label + " ‹ " + shown + " ›" + pos
	if d == m.focus {
		return vwFocusStyle.Render("▸ ") + line
	}
	return "  " + line
}

func (m ViewerModel) renderStatus() string {
	switch {
	case m.loading:
		return m.spinner.View() + " Loading artifacts for " + m.state.Selection.String()
	case m.state.Resource == "":
		return vwEmptyStyle.Render("No resource selected")
	case m.bundle != nil:
		return vwDimStyle.Render("Showing " + m.bundleFor.String())
	default:
		return ""
	}
}

func (m ViewerModel) renderHelp() string {
	var b strings.Builder
	b.WriteString(vwHeaderStyle.Render("snapdiff keys") + "\n\n")
	for _, k := range []key.Binding{
		m.keymap.NextField, m.keymap.PrevField, m.keymap.PrevValue, m.keymap.NextValue,
		m.keymap.Mode, m.keymap.Refresh, m.keymap.Up, m.keymap.Down, m.keymap.Help, m.keymap.Quit,
	} {
		h := k.Help()
		b.WriteString("  " + vwHelpKeyStyle.Render(h.Key) + h.Desc + "\n")
	}
	b.WriteString("\n" + vwDimStyle.Render("Press ? to close"))
	return b.String()
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
