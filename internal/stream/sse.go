package stream

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// DoneSentinel is the SSE payload that terminates a generator stream
const DoneSentinel = "[DONE]"

// Framing selects how a byte stream is cut into parser fragments
type Framing string

const (
	// FramingSSE reads server-sent events and feeds each data payload
	FramingSSE Framing = "sse"
	// FramingRaw feeds bytes exactly as they are read
	FramingRaw Framing = "raw"
)

// FragmentReader yields successive text fragments of a stream. Next returns
// io.EOF once the stream is over.
type FragmentReader interface {
	Next() (string, error)
}

// NewFragmentReader picks the reader matching the framing
func NewFragmentReader(r io.Reader, framing Framing) FragmentReader {
	if framing == FramingRaw {
		return NewRawReader(r, 0)
	}
	return NewSSEReader(r)
}

// SSEReader extracts data payloads from a text/event-stream body
type SSEReader struct {
	r    *bufio.Reader
	done bool
}

// NewSSEReader creates a reader over an event stream body
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{r: bufio.NewReader(r)}
}

// Next returns the data of the next event. Multiple data lines of one event
// are joined with a newline. A [DONE] payload ends the stream even if more
// bytes follow.
func (s *SSEReader) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}

	var data []string
	for {
		line, err := s.r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		eof := errors.Is(err, io.EOF)

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if len(data) > 0 {
				return s.dispatch(data)
			}
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}

		if eof {
			if len(data) > 0 {
				return s.dispatch(data)
			}
			s.done = true
			return "", io.EOF
		}
	}
}

func (s *SSEReader) dispatch(data []string) (string, error) {
	payload := strings.Join(data, "\n")
	if strings.TrimSpace(payload) == DoneSentinel {
		s.done = true
		return "", io.EOF
	}
	return payload, nil
}

// RawReader hands out whatever bytes the underlying reader returns
type RawReader struct {
	r   io.Reader
	buf []byte
}

// NewRawReader creates a raw reader with the given read size
func NewRawReader(r io.Reader, size int) *RawReader {
	if size <= 0 {
		size = 4096
	}
	return &RawReader{r: r, buf: make([]byte, size)}
}

// Next returns the next read
func (r *RawReader) Next() (string, error) {
	for {
		n, err := r.r.Read(r.buf)
		if n > 0 {
			return string(r.buf[:n]), nil
		}
		if err != nil {
			return "", err
		}
	}
}
