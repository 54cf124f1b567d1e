package render

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/papantulis/server/domain/repositories"
)

func decodeSVG(t *testing.T, uri string) string {
	t.Helper()
	const prefix = "data:image/svg+xml;base64,"
	if !strings.HasPrefix(uri, prefix) {
		t.Fatalf("Expected SVG data URI, got %q", uri[:min(len(uri), 40)])
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	if err != nil {
		t.Fatalf("Failed to decode data URI: %v", err)
	}
	return string(raw)
}

func TestMarkdownRenderer_Render(t *testing.T) {
	r := NewMarkdownRenderer(zaptest.NewLogger(t))

	result, err := r.Render(context.Background(), "# Photosynthesis\n\nPlants turn **light** into sugar.", 600, repositories.RenderOptions{
		FontSize:        18,
		TextColor:       "#111827",
		BackgroundColor: "#fef3c7",
		Padding:         16,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	svg := decodeSVG(t, result.DataURI)
	for _, want := range []string{"<h1>Photosynthesis</h1>", "<strong>light</strong>", `fill="#fef3c7"`, `width="600"`} {
		if !strings.Contains(svg, want) {
			t.Errorf("Expected SVG to contain %q", want)
		}
	}
	if result.Height <= 32 {
		t.Errorf("Expected height above padding, got %v", result.Height)
	}
}

func TestMarkdownRenderer_HeightGrowsWithContent(t *testing.T) {
	r := NewMarkdownRenderer(zaptest.NewLogger(t))
	ctx := context.Background()

	short, err := r.Render(ctx, "Short line", 350, repositories.RenderOptions{FontSize: 16})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	long, err := r.Render(ctx, strings.Repeat("a long sentence that wraps ", 20), 350, repositories.RenderOptions{FontSize: 16})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	narrow, err := r.Render(ctx, strings.Repeat("a long sentence that wraps ", 20), 200, repositories.RenderOptions{FontSize: 16})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if long.Height <= short.Height {
		t.Errorf("Expected long content to be taller, got %v <= %v", long.Height, short.Height)
	}
	if narrow.Height <= long.Height {
		t.Errorf("Expected narrower block to be taller, got %v <= %v", narrow.Height, long.Height)
	}
}

func TestMarkdownRenderer_KeepsFormulaSource(t *testing.T) {
	r := NewMarkdownRenderer(zaptest.NewLogger(t))

	result, err := r.Render(context.Background(), "Energy: $E = mc^2$", 400, repositories.RenderOptions{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if svg := decodeSVG(t, result.DataURI); !strings.Contains(svg, "$E = mc^2$") {
		t.Error("Expected formula source in output")
	}
}

func TestMarkdownRenderer_Errors(t *testing.T) {
	r := NewMarkdownRenderer(zaptest.NewLogger(t))

	if _, err := r.Render(context.Background(), "text", 0, repositories.RenderOptions{}); err == nil {
		t.Error("Expected error for zero width")
	}
	if _, err := r.Render(context.Background(), "bad \xff utf8", 300, repositories.RenderOptions{}); err == nil {
		t.Error("Expected error for invalid UTF-8")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Render(ctx, "text", 300, repositories.RenderOptions{}); err == nil {
		t.Error("Expected error for cancelled context")
	}
}
