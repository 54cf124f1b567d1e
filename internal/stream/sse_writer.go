package stream

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// SSEWriter writes server-sent events. Every event is flushed immediately
// when the destination supports it.
type SSEWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSSEWriter creates a writer over w
func NewSSEWriter(w io.Writer) *SSEWriter {
	return &SSEWriter{w: w}
}

// WriteEvent sends data as one event, one data line per payload line
func (s *SSEWriter) WriteEvent(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	for _, line := range strings.Split(string(data), "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimSuffix(line, "\r"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	if _, err := io.WriteString(s.w, b.String()); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// WriteDone terminates the stream with the done sentinel
func (s *SSEWriter) WriteDone() error {
	return s.WriteEvent([]byte(DoneSentinel))
}
