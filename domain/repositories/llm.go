package repositories

import "context"

// LargeLanguageModel abstracts the generator model provider
type LargeLanguageModel interface {
	// Generate takes a system prompt and a user prompt and returns the model's full reply
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
	// GenerateWithImages is Generate with images attached after the prompt text
	GenerateWithImages(ctx context.Context, systemPrompt, prompt string, images []InlineImage) (string, error)
	// GenerateStream returns the reply as incremental text fragments. The channel
	// is closed when the reply ends; a mid-stream failure is delivered as the
	// last chunk with Err set.
	GenerateStream(ctx context.Context, systemPrompt, prompt string) (<-chan TextChunk, error)
}

// TextChunk is one fragment of a streamed model reply
type TextChunk struct {
	Text string
	Err  error
}

// InlineImage is an image sent to the model alongside a prompt
type InlineImage struct {
	MIMEType string
	Data     []byte
}
