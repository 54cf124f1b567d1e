package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/satriahrh/papantulis/server/domain/entities"
	"github.com/satriahrh/papantulis/server/domain/repositories"
)

// MockLLM replays fixed chunks and records every prompt it receives
type MockLLM struct {
	Reply     string
	Chunks    []repositories.TextChunk
	StartErr  error
	mu        sync.Mutex
	prompts   []string
	images    [][]repositories.InlineImage
	generated int
}

func (m *MockLLM) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.generated++
	m.mu.Unlock()
	if m.StartErr != nil {
		return "", m.StartErr
	}
	return m.Reply, nil
}

func (m *MockLLM) GenerateWithImages(ctx context.Context, systemPrompt, prompt string, images []repositories.InlineImage) (string, error) {
	m.mu.Lock()
	m.images = append(m.images, images)
	m.mu.Unlock()
	return m.Generate(ctx, systemPrompt, prompt)
}

func (m *MockLLM) GenerateStream(ctx context.Context, systemPrompt, prompt string) (<-chan repositories.TextChunk, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.StartErr != nil {
		return nil, m.StartErr
	}

	out := make(chan repositories.TextChunk)
	go func() {
		defer close(out)
		for _, c := range m.Chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (m *MockLLM) calls() (prompts []string, generated int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...), m.generated
}

func (m *MockLLM) attachedImages() [][]repositories.InlineImage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]repositories.InlineImage(nil), m.images...)
}

// MockImageSearch returns a fixed image or error
type MockImageSearch struct {
	Result repositories.ImageResult
	Err    error
}

func (m *MockImageSearch) Search(ctx context.Context, query string) (repositories.ImageResult, error) {
	if m.Err != nil {
		return repositories.ImageResult{}, m.Err
	}
	return m.Result, nil
}

// MockTTS streams the same audio for every text
type MockTTS struct {
	Audio [][]byte
	Err   error
}

func (m *MockTTS) ConvertTextToSpeech(ctx context.Context, text string, opts repositories.SpeechOptions) (<-chan []byte, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(chan []byte, len(m.Audio))
	for _, a := range m.Audio {
		out <- a
	}
	close(out)
	return out, nil
}

func (m *MockTTS) AudioMIMEType() string {
	return "audio/mpeg"
}

// recordingWriter collects generator events
type recordingWriter struct {
	events []string
	done   bool
}

func (w *recordingWriter) WriteEvent(data []byte) error {
	w.events = append(w.events, string(data))
	return nil
}

func (w *recordingWriter) WriteDone() error {
	w.done = true
	return nil
}

// MockRenderer renders every block at a fixed height
type MockRenderer struct{}

func (MockRenderer) Render(ctx context.Context, content string, width float64, opts repositories.RenderOptions) (repositories.RenderResult, error) {
	return repositories.RenderResult{DataURI: "data:image/svg+xml;base64,AAAA", Height: 40}, nil
}

// MockSnapshotter returns a fixed PNG
type MockSnapshotter struct{}

func (MockSnapshotter) Snapshot(ctx context.Context, region entities.BoundingBox) ([]byte, error) {
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

// MockUploader hands out a URL per key
type MockUploader struct{}

func (MockUploader) Upload(ctx context.Context, key string, png []byte) (string, error) {
	return "https://cdn.test/" + key, nil
}

// staticSource replies to every request with the same event stream
type staticSource struct {
	body string
	err  error
}

func (s staticSource) Open(ctx context.Context, req repositories.StreamRequest) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

// MockPeers records everything published to a board
type MockPeers struct {
	mu            sync.Mutex
	mutations     []entities.Mutation
	narrations    []repositories.Narration
	notifications []string
}

func (m *MockPeers) Publish(mutation entities.Mutation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations = append(m.mutations, mutation)
}

func (m *MockPeers) Play(ctx context.Context, n repositories.Narration) <-chan struct{} {
	m.mu.Lock()
	m.narrations = append(m.narrations, n)
	m.mu.Unlock()
	done := make(chan struct{})
	close(done)
	return done
}

func (m *MockPeers) Notify(ctx context.Context, level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, level+": "+message)
}

func (m *MockPeers) ops() []entities.MutationOp {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.MutationOp, 0, len(m.mutations))
	for _, mu := range m.mutations {
		out = append(out, mu.Op)
	}
	return out
}

func (m *MockPeers) removedStrokes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, mu := range m.mutations {
		if mu.Op == entities.MutationRemoveStrokes {
			out = append(out, mu.IDs...)
		}
	}
	return out
}

var errQuota = errors.New("quota exceeded")
