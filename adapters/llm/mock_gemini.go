package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/satriahrh/papantulis/server/domain/repositories"
)

// MockLLM is a placeholder model used when no Gemini key is configured.
// It streams a fixed lesson layout in small fragments.
type MockLLM struct {
	FragmentSize int
}

var _ repositories.LargeLanguageModel = (*MockLLM)(nil)

// NewMockLLM creates a new mock model
func NewMockLLM() *MockLLM {
	return &MockLLM{FragmentSize: 24}
}

// Generate echoes the prompt back as a refined prompt
func (m *MockLLM) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	return strings.TrimSpace(prompt), nil
}

// GenerateWithImages echoes the prompt and notes how many images came with it
func (m *MockLLM) GenerateWithImages(ctx context.Context, systemPrompt, prompt string, images []repositories.InlineImage) (string, error) {
	return fmt.Sprintf("%s (with %d image(s))", strings.TrimSpace(prompt), len(images)), nil
}

// GenerateStream streams a canned element array about the prompt
func (m *MockLLM) GenerateStream(ctx context.Context, systemPrompt, prompt string) (<-chan repositories.TextChunk, error) {
	topic := strings.TrimSpace(prompt)
	if topic == "" {
		topic = "the topic"
	}
	topic = strings.ReplaceAll(topic, `"`, `'`)

	reply := fmt.Sprintf(`[
  {"type":"text","content":"**%[1]s**","fontSize":28,"x":50,"y":50,"textColor":"#000000","speakAloud":"Let us look at %[1]s."},
  {"type":"card","content":"%[1]s in one sentence.","fontSize":16,"x":50,"y":150,"width":350,"backgroundColor":"#E3F2FD","speakAloud":"Here is the short version."},
  {"type":"line","x1":50,"y1":130,"x2":650,"y2":130,"color":"#9ca3af","thickness":"s"},
  {"type":"image","search":"%[1]s diagram","x":450,"y":150,"width":250,"speakAloud":"This picture shows %[1]s."}
]`, topic)

	size := m.FragmentSize
	if size <= 0 {
		size = len(reply)
	}

	out := make(chan repositories.TextChunk)
	go func() {
		defer close(out)
		for start := 0; start < len(reply); start += size {
			end := min(start+size, len(reply))
			select {
			case out <- repositories.TextChunk{Text: reply[start:end]}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
