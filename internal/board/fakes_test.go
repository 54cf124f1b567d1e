package board

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/satriahrh/papantulis/server/domain/repositories"
)

// MockRenderer renders every block at a fixed height
type MockRenderer struct {
	Height float64
	Err    error
	Delay  time.Duration
}

func (m *MockRenderer) Render(ctx context.Context, content string, width float64, opts repositories.RenderOptions) (repositories.RenderResult, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return repositories.RenderResult{}, ctx.Err()
		}
	}
	if m.Err != nil {
		return repositories.RenderResult{}, m.Err
	}
	return repositories.RenderResult{DataURI: "data:image/svg+xml;base64,AAAA", Height: m.Height}, nil
}

// MockImageSearch returns a fixed result, or blocks until released
type MockImageSearch struct {
	Result  repositories.ImageResult
	Err     error
	Block   chan struct{}
	mu      sync.Mutex
	queries []string
}

func (m *MockImageSearch) Search(ctx context.Context, query string) (repositories.ImageResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return repositories.ImageResult{}, ctx.Err()
		}
	}
	if m.Err != nil {
		return repositories.ImageResult{}, m.Err
	}
	return m.Result, nil
}

// MockAudioPlayer records playback windows to detect overlap
type MockAudioPlayer struct {
	Duration func(n repositories.Narration) time.Duration
	Fail     map[string]bool

	mu         sync.Mutex
	active     int
	overlapped bool
	started    []string
	finished   []string
}

func (m *MockAudioPlayer) Play(ctx context.Context, n repositories.Narration) <-chan struct{} {
	done := make(chan struct{})

	m.mu.Lock()
	m.active++
	if m.active > 1 {
		m.overlapped = true
	}
	m.started = append(m.started, n.ID)
	m.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			m.mu.Lock()
			m.active--
			m.finished = append(m.finished, n.ID)
			m.mu.Unlock()
		}()

		if m.Fail[n.ID] {
			return
		}
		d := time.Millisecond
		if m.Duration != nil {
			d = m.Duration(n)
		}
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
	}()
	return done
}

func (m *MockAudioPlayer) snapshot() (started, finished []string, overlapped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.started...), append([]string(nil), m.finished...), m.overlapped
}

var errRender = errors.New("katex exploded")
