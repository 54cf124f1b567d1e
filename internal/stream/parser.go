package stream

import (
	"github.com/satriahrh/papantulis/server/domain"
	"github.com/satriahrh/papantulis/server/domain/entities"
)

// Result is one extracted object: a decoded element or a decode failure
type Result struct {
	Raw     []byte
	Element entities.StreamElement
	Err     error
}

// ObjectStreamParser emits complete top-level objects from an arbitrarily
// fragmented text stream and decodes each of them independently.
type ObjectStreamParser struct {
	buf ChunkBuffer
}

// NewObjectStreamParser creates an empty parser that counts braces by
// character
func NewObjectStreamParser() *ObjectStreamParser {
	return &ObjectStreamParser{}
}

// NewStringAwareParser creates an empty parser that ignores braces inside
// JSON string literals
func NewStringAwareParser() *ObjectStreamParser {
	return &ObjectStreamParser{buf: ChunkBuffer{StringAware: true}}
}

// Feed appends a fragment and returns every object completed by it
func (p *ObjectStreamParser) Feed(fragment string) []Result {
	p.buf.Feed(fragment)
	return p.Drain()
}

// Drain extracts every complete object currently buffered. A span that fails
// to decode yields a *domain.DecodeError result and does not affect the
// spans after it.
func (p *ObjectStreamParser) Drain() []Result {
	var results []Result
	for {
		raw, ok := p.buf.Next()
		if !ok {
			return results
		}
		el, err := entities.DecodeStreamElement(raw)
		if err != nil {
			results = append(results, Result{
				Raw: raw,
				Err: &domain.DecodeError{Raw: string(raw), Err: err},
			})
			continue
		}
		results = append(results, Result{Raw: raw, Element: el})
	}
}

// Incomplete reports whether a partial object is still buffered
func (p *ObjectStreamParser) Incomplete() bool {
	return p.buf.InObject()
}

// Reset drops any buffered partial object
func (p *ObjectStreamParser) Reset() {
	p.buf.Reset()
}
