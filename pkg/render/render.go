// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package render projects an artifact bundle into a visual tree.
//
// Rendering is pure: the same bundle and mode always produce the same output,
// nothing is fetched and nothing is mutated. Missing or malformed fields fall
// back to fixed placeholders and never fail the render.
package render

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Mode selects between the diff view and the baseline/target view.
type Mode int

const (
	ModeDiff Mode = iota
	ModeSideBySide
)

func (m Mode) String() string {
	switch m {
	case ModeDiff:
		return "diff"
	case ModeSideBySide:
		return "side-by-side"
	default:
		return "unknown"
	}
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == ModeDiff {
		return ModeSideBySide
	}
	return ModeDiff
}

// ParseMode parses "diff" or "side-by-side".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "diff":
		return ModeDiff, nil
	case "side-by-side", "sidebyside", "sbs":
		return ModeSideBySide, nil
	default:
		return ModeDiff, fmt.Errorf("unknown view mode %q (want diff or side-by-side)", s)
	}
}

// Placeholders shown instead of absent data.
const (
	NoArtifacts = "No artifacts"
	NoImage     = "No image"
	NoHTMLDiff  = "No HTML diff"
	NoHTML      = "No HTML"
)

// Headings used by every renderer.
const (
	headingScreenshotDiff = "Screenshot diff"
	headingHTMLDiff       = "HTML diff"
	headingBaseline       = "Baseline"
	headingTarget         = "Target"
	headingBaselineHTML   = "Baseline HTML"
	headingTargetHTML     = "Target HTML"
)

// Percent formats a 0..1 fraction as a percentage with two decimals.
func Percent(f float64) string {
	return strconv.FormatFloat(f*100, 'f', 2, 64) + "%"
}

// ImageDiffLabel formats the screenshot diff amount shown above both views.
func ImageDiffLabel(f float64) string { return "Image diff: " + Percent(f) }

// HTMLDiffLabel formats the HTML diff amount.
func HTMLDiffLabel(f float64) string { return "HTML diff: " + Percent(f) }

// DecodeHTML decodes a base64 UTF-8 HTML field. ok is false for absent or
// undecodable input.
func DecodeHTML(b64 string) (src string, ok bool) {
	if b64 == "" {
		return "", false
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// decodeImage decodes a base64 PNG field.
func decodeImage(b64 string) ([]byte, bool) {
	if b64 == "" {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// DataURI returns the data URI of a base64 PNG field, or "" when absent or
// malformed.
func DataURI(b64 string) string {
	if _, ok := decodeImage(b64); !ok {
		return ""
	}
	return "data:image/png;base64," + b64
}
