// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/monadic/snapdiff/internal/clierr"
	"github.com/monadic/snapdiff/internal/fetch"
	"github.com/monadic/snapdiff/pkg/selection"
)

// SessionLogger records the fetch lifecycle of a viewer session to a file.
// A nil *SessionLogger discards everything.
type SessionLogger struct {
	file      *os.File
	startTime time.Time
	command   string
}

// NewSessionLogger creates <dir>/<command>-<timestamp>.log.
func NewSessionLogger(dir, command string) (*SessionLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02-150405")
	logPath := filepath.Join(dir, fmt.Sprintf("%s-%s.log", command, timestamp))

	file, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	logger := &SessionLogger{
		file:      file,
		startTime: time.Now(),
		command:   command,
	}
	logger.writeHeader()
	return logger, nil
}

func (l *SessionLogger) writeHeader() {
	l.file.WriteString("=" + strings.Repeat("=", 79) + "\n")
	l.file.WriteString(fmt.Sprintf("snapdiff: %s\n", l.command))
	l.file.WriteString(fmt.Sprintf("Started: %s\n", l.startTime.Format(time.RFC3339)))
	l.file.WriteString("=" + strings.Repeat("=", 79) + "\n\n")
}

// Log writes a message to the log file
func (l *SessionLogger) Log(format string, args ...interface{}) {
	if l == nil || l.file == nil {
		return
	}
	timestamp := time.Now().Format("15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	l.file.WriteString(fmt.Sprintf("[%s] %s\n", timestamp, msg))
}

// Section writes a section header
func (l *SessionLogger) Section(title string) {
	if l == nil || l.file == nil {
		return
	}
	l.file.WriteString(fmt.Sprintf("\n--- %s ---\n", title))
}

// LogSelection writes the current selection tuple.
func (l *SessionLogger) LogSelection(sel selection.Selection) {
	l.Log("selection %s", sel)
}

// Issued records a request leaving.
func (l *SessionLogger) Issued(t fetch.Ticket) {
	l.Log("issued  %s", t)
}

// Settled records an applied result.
func (l *SessionLogger) Settled(t fetch.Ticket, format string, args ...interface{}) {
	l.Log("settled %s %s", t, fmt.Sprintf(format, args...))
}

// Dropped records a result discarded because a newer request superseded it.
func (l *SessionLogger) Dropped(t fetch.Ticket) {
	l.Log("dropped %s (stale)", t)
}

// Failed records a swallowed request error with its class.
func (l *SessionLogger) Failed(t fetch.Ticket, err error) {
	l.Log("failed  %s [%s] %v", t, clierr.ClassifyError(err), err)
}

// Close writes the footer, closes the file and returns its path.
func (l *SessionLogger) Close() string {
	if l == nil || l.file == nil {
		return ""
	}

	l.file.WriteString(fmt.Sprintf("\n\nCompleted: %s\n", time.Now().Format(time.RFC3339)))
	l.file.WriteString(fmt.Sprintf("Duration: %s\n", time.Since(l.startTime).Round(time.Millisecond)))

	path := l.file.Name()
	l.file.Close()
	l.file = nil
	return path
}
