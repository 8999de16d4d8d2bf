// Copyright 2026 The Commons Authors
// SPDX-License-Identifier: Apache-2.0

package post

import (
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// markdownInstance is initialized once and reused. The configuration
// (extensions, renderer options) never changes and the goldmark
// instance is safe to share; each Convert call creates its own parse
// state.
var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.DefinitionList,
			),
			goldmark.WithRendererOptions(
				gmhtml.WithHardWraps(),
				renderer.WithNodeRenderers(
					util.Prioritized(&codeBlockRenderer{}, 100),
				),
			),
		)
	})
	return markdownInstance
}

// RenderMarkdown converts GitHub-flavored markdown to the HTML
// fragment used as a message's formatted body. Single newlines become
// <br> (a line break in a post is intentional), raw HTML in the source
// is stripped, and fenced code blocks carry inline styles so the
// fragment needs no stylesheet.
func RenderMarkdown(source string) (string, error) {
	var buffer strings.Builder
	if err := getMarkdown().Convert([]byte(source), &buffer); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return strings.TrimRight(buffer.String(), "\n"), nil
}

// codeBlockRenderer replaces goldmark's default fenced code block
// output with chroma-highlighted HTML.
type codeBlockRenderer struct{}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCode)
}

func (r *codeBlockRenderer) renderFencedCode(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	block := node.(*ast.FencedCodeBlock)
	var code strings.Builder
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		code.Write(segment.Value(source))
	}
	rendered := highlightCode(code.String(), string(block.Language(source)))
	if rendered == "" {
		rendered = "<pre><code>" + html.EscapeString(code.String()) + "</code></pre>\n"
	}
	if _, err := w.WriteString(rendered); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkContinue, nil
}

// htmlFormatter emits <pre> fragments with style attributes instead of
// CSS classes.
var htmlFormatter = chromahtml.New()

// highlightCode returns chroma-highlighted HTML for code, or "" when
// the language is empty or unknown or highlighting fails. The caller
// falls back to an escaped plain block.
func highlightCode(code, language string) string {
	if language == "" {
		return ""
	}
	lexer := lexers.Get(language)
	if lexer == nil {
		return ""
	}
	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return ""
	}
	var buffer strings.Builder
	if err := htmlFormatter.Format(&buffer, styles.Get("monokai"), iterator); err != nil {
		return ""
	}
	return buffer.String()
}
