package repositories

import (
	"context"
	"io"

	"github.com/satriahrh/papantulis/server/domain/entities"
)

// Renderer rasterizes markdown/LaTeX content
type Renderer interface {
	Render(ctx context.Context, content string, width float64, opts RenderOptions) (RenderResult, error)
}

// RenderOptions carries the style of the rendered block
type RenderOptions struct {
	FontSize        float64
	TextColor       string
	BackgroundColor string
	Padding         float64
}

// RenderResult is a rasterized block
type RenderResult struct {
	DataURI string
	Height  float64
}

// ImageSearch resolves a query into a single image
type ImageSearch interface {
	Search(ctx context.Context, query string) (ImageResult, error)
}

// ImageResult is an image found by a search
type ImageResult struct {
	ImageURL string `json:"imageUrl"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// AudioPlayer decodes and plays narration. The returned channel is closed
// once playback completed or failed; failures never surface to the caller.
type AudioPlayer interface {
	Play(ctx context.Context, narration Narration) <-chan struct{}
}

// Narration is one playback request
type Narration struct {
	ID           string `json:"narration_id"`
	ElementID    string `json:"element_id,omitempty"`
	Text         string `json:"text,omitempty"`
	AudioDataURL string `json:"audio_data,omitempty"`
}

// Snapshotter rasterizes a region of the board's strokes into PNG bytes
type Snapshotter interface {
	Snapshot(ctx context.Context, region entities.BoundingBox) ([]byte, error)
}

// SnapshotUploader stores a rasterized region and returns a URL for it
type SnapshotUploader interface {
	Upload(ctx context.Context, key string, png []byte) (string, error)
}

// StreamSource opens the generator's element stream
type StreamSource interface {
	Open(ctx context.Context, req StreamRequest) (io.ReadCloser, error)
}

// StreamRequest identifies what the generator should produce
type StreamRequest struct {
	RefinedPrompt  string `json:"refined_prompt"`
	SessionID      string `json:"session_id"`
	ContextSummary string `json:"context_summary"`
}
