package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/papantulis/server/domain/repositories"
)

// GeminiLLM implements the LargeLanguageModel interface using Google's Gemini API
type GeminiLLM struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	temperature     float32
	topP            float32
	maxOutputTokens int
	timeout         time.Duration
	maxAttempts     int
}

var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	config = applyGeminiDefaults(config, logger)

	return &GeminiLLM{
		client:          client,
		logger:          logger,
		model:           config.Model,
		temperature:     config.Temperature,
		topP:            config.TopP,
		maxOutputTokens: config.MaxOutputTokens,
		timeout:         time.Duration(config.TimeoutSeconds) * time.Second,
		maxAttempts:     3,
	}, nil
}

func (g *GeminiLLM) contentConfig(systemPrompt string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		TopP:            genai.Ptr(g.topP),
		MaxOutputTokens: int32(g.maxOutputTokens),
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	return config
}

// Generate returns the full reply for prompt, retrying transient failures
func (g *GeminiLLM) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	return g.generate(ctx, systemPrompt, genai.NewContentFromText(prompt, genai.RoleUser))
}

// GenerateWithImages sends the images as inline parts after the prompt text
func (g *GeminiLLM) GenerateWithImages(ctx context.Context, systemPrompt, prompt string, images []repositories.InlineImage) (string, error) {
	parts := make([]*genai.Part, 0, len(images)+1)
	parts = append(parts, genai.NewPartFromText(prompt))
	for _, img := range images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	return g.generate(ctx, systemPrompt, genai.NewContentFromParts(parts, genai.RoleUser))
}

func (g *GeminiLLM) generate(ctx context.Context, systemPrompt string, content *genai.Content) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{content}
	config := g.contentConfig(systemPrompt)

	var (
		response *genai.GenerateContentResponse
		err      error
	)
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		response, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < g.maxAttempts-1 {
			select {
			case <-time.After(time.Duration(attempt+1) * time.Second):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := responseText(response)
	if text == "" {
		return "", errors.New("model returned no content")
	}

	g.logger.Debug("Generated content",
		zap.String("model", g.model),
		zap.String("responsePreview", preview(text, 50)))
	return text, nil
}

// GenerateStream streams the reply as text fragments
func (g *GeminiLLM) GenerateStream(ctx context.Context, systemPrompt, prompt string) (<-chan repositories.TextChunk, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("prompt is required")
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	config := g.contentConfig(systemPrompt)

	out := make(chan repositories.TextChunk, 16)
	go func() {
		defer close(out)

		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		fragments := 0
		for response, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, config) {
			if err != nil {
				g.logger.Error("Gemini stream failed",
					zap.Int("fragments", fragments),
					zap.Error(err))
				select {
				case out <- repositories.TextChunk{Err: fmt.Errorf("failed to stream content: %w", err)}:
				case <-ctx.Done():
				}
				return
			}

			text := responseText(response)
			if text == "" {
				continue
			}
			fragments++
			select {
			case out <- repositories.TextChunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}

		g.logger.Debug("Gemini stream finished",
			zap.String("model", g.model),
			zap.Int("fragments", fragments))
	}()

	return out, nil
}

func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
