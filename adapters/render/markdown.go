package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/domain/repositories"
)

const (
	defaultFontSize   = 18.0
	lineHeightFactor  = 1.4
	charWidthFactor   = 0.55
	blockGapFactor    = 0.6
	minContentHeight  = 1.0
	defaultFontFamily = "Inter, Helvetica, Arial, sans-serif"
)

// headingScale mirrors the browser default sizes for h1..h6
var headingScale = [...]float64{2.0, 1.5, 1.25, 1.1, 1.0, 0.9}

// MarkdownRenderer renders markdown/LaTeX content into an SVG data URI.
// Formulas are kept as source text.
type MarkdownRenderer struct {
	md     goldmark.Markdown
	logger *zap.Logger
}

var _ repositories.Renderer = (*MarkdownRenderer)(nil)

// NewMarkdownRenderer creates a renderer with GitHub flavored markdown enabled
func NewMarkdownRenderer(logger *zap.Logger) *MarkdownRenderer {
	return &MarkdownRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithXHTML(), gmhtml.WithHardWraps()),
		),
		logger: logger,
	}
}

// Render converts content to HTML wrapped in an SVG foreignObject and
// estimates the laid out height for the given width
func (r *MarkdownRenderer) Render(ctx context.Context, content string, width float64, opts repositories.RenderOptions) (repositories.RenderResult, error) {
	if err := ctx.Err(); err != nil {
		return repositories.RenderResult{}, err
	}
	if width <= 0 || math.IsNaN(width) || math.IsInf(width, 0) {
		return repositories.RenderResult{}, fmt.Errorf("invalid render width %v", width)
	}
	if !utf8.ValidString(content) {
		return repositories.RenderResult{}, errors.New("content is not valid UTF-8")
	}

	fontSize := opts.FontSize
	if fontSize <= 0 {
		fontSize = defaultFontSize
	}

	source := []byte(content)
	doc := r.md.Parser().Parse(text.NewReader(source))

	var body bytes.Buffer
	if err := r.md.Renderer().Render(&body, source, doc); err != nil {
		return repositories.RenderResult{}, fmt.Errorf("failed to render markdown: %w", err)
	}

	contentWidth := math.Max(width-2*opts.Padding, fontSize)
	height := estimateHeight(doc, source, contentWidth, fontSize) + 2*opts.Padding
	height = math.Ceil(height)

	svg := buildSVG(body.String(), width, height, fontSize, opts)

	r.logger.Debug("Rendered markdown block",
		zap.Int("contentLength", len(content)),
		zap.Float64("width", width),
		zap.Float64("height", height))

	return repositories.RenderResult{
		DataURI: "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg)),
		Height:  height,
	}, nil
}

func buildSVG(body string, width, height, fontSize float64, opts repositories.RenderOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g" viewBox="0 0 %g %g">`, width, height, width, height)
	if opts.BackgroundColor != "" {
		fmt.Fprintf(&b, `<rect width="100%%" height="100%%" rx="8" fill="%s"/>`, html.EscapeString(opts.BackgroundColor))
	}
	fmt.Fprintf(&b, `<foreignObject x="0" y="0" width="%g" height="%g">`, width, height)
	style := fmt.Sprintf("font-family:%s;font-size:%gpx;line-height:%g;padding:%gpx;box-sizing:border-box;width:100%%;",
		defaultFontFamily, fontSize, lineHeightFactor, opts.Padding)
	if opts.TextColor != "" {
		style += "color:" + opts.TextColor + ";"
	}
	fmt.Fprintf(&b, `<div xmlns="http://www.w3.org/1999/xhtml" style="%s">`, html.EscapeString(style))
	b.WriteString(body)
	b.WriteString(`</div></foreignObject></svg>`)
	return b.String()
}

// estimateHeight walks the block nodes and approximates wrapped line counts
func estimateHeight(doc ast.Node, source []byte, width, fontSize float64) float64 {
	var height float64
	blocks := 0

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			scale := headingScale[min(max(node.Level, 1), len(headingScale))-1]
			height += blockHeight(inlineText(node, source), width, fontSize*scale)
			blocks++
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.TextBlock:
			height += blockHeight(inlineText(node, source), width, fontSize)
			blocks++
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines().Len()
			height += float64(max(lines, 1)) * fontSize * lineHeightFactor
			blocks++
			return ast.WalkSkipChildren, nil
		case *east.TableHeader, *east.TableRow:
			cols := max(node.ChildCount(), 1)
			row := 0.0
			for cell := node.FirstChild(); cell != nil; cell = cell.NextSibling() {
				row = math.Max(row, blockHeight(inlineText(cell, source), width/float64(cols), fontSize))
			}
			height += math.Max(row, fontSize*lineHeightFactor)
			blocks++
			return ast.WalkSkipChildren, nil
		case *ast.ThematicBreak:
			height += fontSize
			blocks++
		}
		return ast.WalkContinue, nil
	})

	if blocks > 1 {
		height += float64(blocks-1) * fontSize * blockGapFactor
	}
	return math.Max(height, minContentHeight*fontSize*lineHeightFactor)
}

func blockHeight(content string, width, fontSize float64) float64 {
	perLine := math.Max(math.Floor(width/(fontSize*charWidthFactor)), 1)
	lines := 0
	for _, line := range strings.Split(content, "\n") {
		n := utf8.RuneCountInString(line)
		lines += max(int(math.Ceil(float64(n)/perLine)), 1)
	}
	return float64(lines) * fontSize * lineHeightFactor
}

func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.HardLineBreak() || t.SoftLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
