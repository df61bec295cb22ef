// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/monadic/snapdiff/pkg/render"
	"github.com/monadic/snapdiff/pkg/selection"
)

// ViewSnapshot is the saved selection of the last view session.
type ViewSnapshot struct {
	Version   string              `json:"version"`
	UpdatedAt time.Time           `json:"updated_at"`
	APIURL    string              `json:"api_url"`
	Selection selection.Selection `json:"selection"`
	Mode      string              `json:"mode"`
}

const snapshotVersion = "1.0"

// snapshotMaxAge bounds how old a snapshot may be and still be resumed.
const snapshotMaxAge = 24 * time.Hour

func getSnapshotPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".snapdiff", "sessions", "view-snapshot.json")
}

// loadSnapshot returns the saved session for apiURL, or nil.
func loadSnapshot(path, apiURL string) *ViewSnapshot {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var snap ViewSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil
	}
	if snap.Version != snapshotVersion || snap.APIURL != apiURL {
		return nil
	}
	if time.Since(snap.UpdatedAt) > snapshotMaxAge {
		return nil
	}
	return &snap
}

func saveSnapshot(path, apiURL string, sel selection.Selection, mode render.Mode) {
	snap := ViewSnapshot{
		Version:   snapshotVersion,
		UpdatedAt: time.Now(),
		APIURL:    apiURL,
		Selection: sel,
		Mode:      mode.String(),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0644)
}
