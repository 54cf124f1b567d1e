// Package stream turns a fragmented generator stream into complete elements.
package stream

// ChunkBuffer accumulates raw text fragments and hands out complete
// top-level {...} spans one at a time.
//
// By default braces are counted purely by character, so an unbalanced brace
// inside a JSON string literal shifts object boundaries. With StringAware
// set, braces inside string literals are skipped and backslash escapes are
// honored.
type ChunkBuffer struct {
	StringAware bool

	buf      []byte
	cursor   int // next byte to scan
	start    int // offset of the open span's first '{' when depth > 0
	depth    int
	inString bool
	escaped  bool
}

// Feed appends a fragment to the buffer
func (b *ChunkBuffer) Feed(fragment string) {
	b.buf = append(b.buf, fragment...)
}

// Next returns the next complete object span. When none is available it
// returns false and keeps any partial trailing object for the next Feed.
func (b *ChunkBuffer) Next() ([]byte, bool) {
	for b.cursor < len(b.buf) {
		c := b.buf[b.cursor]
		if b.depth == 0 {
			if c != '{' {
				b.cursor++
				continue
			}
			// drop anything scanned before the opening brace
			b.buf = append(b.buf[:0], b.buf[b.cursor:]...)
			b.cursor = 0
			b.start = 0
		}

		b.cursor++
		if b.inString {
			switch {
			case b.escaped:
				b.escaped = false
			case c == '\\':
				b.escaped = true
			case c == '"':
				b.inString = false
			}
			continue
		}

		switch c {
		case '{':
			b.depth++
		case '}':
			b.depth--
		case '"':
			b.inString = b.StringAware
		}

		if b.depth == 0 {
			span := make([]byte, b.cursor-b.start)
			copy(span, b.buf[b.start:b.cursor])
			b.buf = append(b.buf[:0], b.buf[b.cursor:]...)
			b.cursor = 0
			b.start = 0
			return span, true
		}
	}

	if b.depth == 0 {
		b.buf = b.buf[:0]
		b.cursor = 0
	}
	return nil, false
}

// Pending returns the number of buffered bytes not yet emitted
func (b *ChunkBuffer) Pending() int {
	return len(b.buf)
}

// InObject reports whether a partial object is buffered
func (b *ChunkBuffer) InObject() bool {
	return b.depth > 0
}

// Reset discards everything buffered
func (b *ChunkBuffer) Reset() {
	b.buf = b.buf[:0]
	b.cursor = 0
	b.start = 0
	b.depth = 0
	b.inString = false
	b.escaped = false
}
