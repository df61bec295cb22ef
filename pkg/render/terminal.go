// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package render

import (
	"bytes"
	"fmt"
	"image/png"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/monadic/snapdiff/pkg/diffapi"
)

// Styles
var (
	termHeadingStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("141"))
	termAmountStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	termPlaceholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	termImageStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
	termRawStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// minColumnWidth keeps side-by-side columns readable on narrow terminals.
const minColumnWidth = 20

// Terminal renders b in mode as styled text that fits width columns.
// Images are summarized, the HTML diff is shown as Markdown and raw HTML is
// shown as literal text.
func Terminal(b *diffapi.Bundle, mode Mode, width int) string {
	if b == nil {
		return termPlaceholderStyle.Render(NoArtifacts)
	}

	var sb strings.Builder
	if b.DiffAmount != nil {
		sb.WriteString(termAmountStyle.Render(ImageDiffLabel(*b.DiffAmount)))
		sb.WriteString("\n")
	}
	if b.HTMLDiffAmount != nil {
		sb.WriteString(termAmountStyle.Render(HTMLDiffLabel(*b.HTMLDiffAmount)))
		sb.WriteString("\n")
	}
	if b.DiffAmount != nil || b.HTMLDiffAmount != nil {
		sb.WriteString("\n")
	}

	if mode == ModeSideBySide {
		colWidth := width/2 - 1
		if colWidth < minColumnWidth {
			colWidth = minColumnWidth
		}
		left := termColumn(headingBaseline, headingBaselineHTML, b.Baseline, b.BaselineHTML, colWidth)
		right := termColumn(headingTarget, headingTargetHTML, b.Target, b.TargetHTML, colWidth)
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))
		return sb.String()
	}

	sb.WriteString(termHeadingStyle.Render(headingScreenshotDiff))
	sb.WriteString("\n")
	sb.WriteString(ImageSummary(b.ScreenshotDiff))
	sb.WriteString("\n\n")
	sb.WriteString(termHeadingStyle.Render(headingHTMLDiff))
	sb.WriteString("\n")
	sb.WriteString(markdown(b.HTMLDiff, width))
	return sb.String()
}

// ImageSummary describes a base64 PNG field in one line.
func ImageSummary(b64 string) string {
	data, ok := decodeImage(b64)
	if !ok {
		return termPlaceholderStyle.Render(NoImage)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return termImageStyle.Render(fmt.Sprintf("image, %d bytes (not a PNG)", len(data)))
	}
	return termImageStyle.Render(fmt.Sprintf("PNG %d×%d, %d bytes", cfg.Width, cfg.Height, len(data)))
}

func markdown(b64 string, width int) string {
	src, ok := DecodeHTML(b64)
	if !ok || strings.TrimSpace(src) == "" {
		return termPlaceholderStyle.Render(NoHTMLDiff)
	}
	md, err := mdConverter.ConvertString(markupPolicy.Sanitize(src))
	if err != nil || strings.TrimSpace(md) == "" {
		return termPlaceholderStyle.Render(NoHTMLDiff)
	}
	style := termRawStyle
	if width > 0 {
		style = style.Width(width)
	}
	return style.Render(strings.TrimSpace(md))
}

func termColumn(title, htmlTitle, imageB64, htmlB64 string, width int) string {
	var sb strings.Builder
	sb.WriteString(termHeadingStyle.Render(title))
	sb.WriteString("\n")
	sb.WriteString(ImageSummary(imageB64))
	sb.WriteString("\n\n")
	sb.WriteString(termHeadingStyle.Render(htmlTitle))
	sb.WriteString("\n")
	if src, ok := DecodeHTML(htmlB64); ok {
		sb.WriteString(termRawStyle.Render(src))
	} else {
		sb.WriteString(termPlaceholderStyle.Render(NoHTML))
	}
	return lipgloss.NewStyle().Width(width).Render(sb.String())
}
