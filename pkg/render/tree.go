// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/monadic/snapdiff/pkg/diffapi"
)

// markupPolicy cleans HTML diff content before it is rendered as live markup.
var markupPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	return p
}()

// Tree renders b in mode as an HTML node tree rooted at a <section>.
func Tree(b *diffapi.Bundle, mode Mode) *html.Node {
	root := element(atom.Section, "artifacts")
	if b == nil {
		root.AppendChild(placeholder(NoArtifacts))
		return root
	}

	if b.DiffAmount != nil {
		root.AppendChild(paragraph("amount", ImageDiffLabel(*b.DiffAmount)))
	}
	if b.HTMLDiffAmount != nil {
		root.AppendChild(paragraph("amount", HTMLDiffLabel(*b.HTMLDiffAmount)))
	}

	switch mode {
	case ModeSideBySide:
		grid := element(atom.Div, "side-by-side")
		grid.AppendChild(column(headingBaseline, headingBaselineHTML, b.Baseline, b.BaselineHTML))
		grid.AppendChild(column(headingTarget, headingTargetHTML, b.Target, b.TargetHTML))
		root.AppendChild(grid)
	default:
		shot := element(atom.Div, "screenshot-diff")
		shot.AppendChild(heading(atom.H3, headingScreenshotDiff))
		shot.AppendChild(imageNode(b.ScreenshotDiff, headingScreenshotDiff))
		root.AppendChild(shot)

		markup := element(atom.Div, "html-diff")
		markup.AppendChild(heading(atom.H3, headingHTMLDiff))
		markup.AppendChild(liveMarkup(b.HTMLDiff))
		root.AppendChild(markup)
	}
	return root
}

// HTML writes a standalone page containing the tree of b.
func HTML(w io.Writer, title string, b *diffapi.Bundle, mode Mode) error {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html, "")
	head := element(atom.Head, "")
	meta := element(atom.Meta, "")
	meta.Attr = append(meta.Attr, html.Attribute{Key: "charset", Val: "utf-8"})
	head.AppendChild(meta)
	titleNode := element(atom.Title, "")
	titleNode.AppendChild(text(title))
	head.AppendChild(titleNode)
	style := element(atom.Style, "")
	style.AppendChild(text(pageStyle))
	head.AppendChild(style)

	body := element(atom.Body, "")
	body.AppendChild(heading(atom.H1, title))
	body.AppendChild(Tree(b, mode))

	root.AppendChild(head)
	root.AppendChild(body)
	doc.AppendChild(root)

	if err := html.Render(w, doc); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

const pageStyle = `body{font-family:sans-serif;margin:2rem;background:#eff6ff}
.artifacts{background:#fff;padding:1.5rem;border-radius:.5rem}
.amount{color:#4b5563;font-size:.875rem}
.placeholder{color:#6b7280}
.side-by-side{display:grid;grid-template-columns:1fr 1fr;gap:1.5rem}
.html-diff>div,.raw-html{border:1px solid #d1d5db;max-height:24rem;overflow:auto;padding:.5rem}
img{max-width:100%;border:1px solid #d1d5db}`

func column(title, htmlTitle, imageB64, htmlB64 string) *html.Node {
	col := element(atom.Div, strings.ToLower(title))
	col.AppendChild(heading(atom.H3, title))
	col.AppendChild(imageNode(imageB64, title+" screenshot"))
	col.AppendChild(heading(atom.H4, htmlTitle))
	src, ok := DecodeHTML(htmlB64)
	if !ok {
		col.AppendChild(placeholder(NoHTML))
		return col
	}
	pre := element(atom.Pre, "raw-html")
	pre.AppendChild(text(src))
	col.AppendChild(pre)
	return col
}

func imageNode(b64, alt string) *html.Node {
	uri := DataURI(b64)
	if uri == "" {
		return placeholder(NoImage)
	}
	img := element(atom.Img, "")
	img.Attr = append(img.Attr,
		html.Attribute{Key: "src", Val: uri},
		html.Attribute{Key: "alt", Val: alt},
	)
	return img
}

func liveMarkup(b64 string) *html.Node {
	src, ok := DecodeHTML(b64)
	if !ok || strings.TrimSpace(src) == "" {
		return placeholder(NoHTMLDiff)
	}
	container := element(atom.Div, "")
	nodes, err := html.ParseFragment(strings.NewReader(markupPolicy.Sanitize(src)), container)
	if err != nil {
		return placeholder(NoHTMLDiff)
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return container
}

func element(a atom.Atom, class string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	if class != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: class})
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func heading(a atom.Atom, s string) *html.Node {
	h := element(a, "")
	h.AppendChild(text(s))
	return h
}

func paragraph(class, s string) *html.Node {
	p := element(atom.P, class)
	p.AppendChild(text(s))
	return p
}

func placeholder(s string) *html.Node {
	return paragraph("placeholder", s)
}
