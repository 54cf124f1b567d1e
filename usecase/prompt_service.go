package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/domain/repositories"
)

const (
	// MaxDocumentWords bounds the document context sent for refinement
	MaxDocumentWords = 2000

	contextAudioOnly    = "User provided audio only."
	contextAudio        = "User provided audio"
	contextWithDocument = "User provided audio, and text from a document"
)

// PromptRequest is one spoken learning request
type PromptRequest struct {
	SessionID    string
	Audio        []byte
	Encoding     string
	SampleRate   int
	DocumentText string
	Images       []repositories.InlineImage
}

// PromptResult is the refined prompt handed to the generator
type PromptResult struct {
	RefinedPrompt  string `json:"refined_prompt"`
	SessionID      string `json:"session_id"`
	ContextSummary string `json:"context_summary"`
}

// PromptService turns recorded speech plus optional document context into
// a refined generator prompt
type PromptService struct {
	stt      repositories.SpeechToText
	llm      repositories.LargeLanguageModel
	language *LanguageSetting
	logger   *zap.Logger
}

// NewPromptService creates a new prompt service
func NewPromptService(
	stt repositories.SpeechToText,
	llm repositories.LargeLanguageModel,
	language *LanguageSetting,
	logger *zap.Logger,
) *PromptService {
	return &PromptService{
		stt:      stt,
		llm:      llm,
		language: language,
		logger:   logger,
	}
}

// SpeechToPrompt transcribes the request and, when document text or images
// are present, asks the model to refine it
func (s *PromptService) SpeechToPrompt(ctx context.Context, req PromptRequest) (PromptResult, error) {
	if req.SessionID == "" {
		return PromptResult{}, errors.New("session id is required")
	}
	if len(req.Audio) == 0 {
		return PromptResult{}, errors.New("audio is required")
	}

	transcript, err := s.stt.TranscribeAudio(ctx, req.Audio, repositories.AudioConfig{
		SampleRate: req.SampleRate,
		Encoding:   req.Encoding,
		Language:   s.language.Get(),
	})
	if err != nil {
		return PromptResult{}, fmt.Errorf("transcription failed: %w", err)
	}

	s.logger.Info("Transcription completed",
		zap.String("sessionID", req.SessionID),
		zap.Int("transcriptLength", len(transcript)))

	document := TruncateWords(req.DocumentText, MaxDocumentWords)
	if document == "" && len(req.Images) == 0 {
		return PromptResult{
			RefinedPrompt:  strings.TrimSpace(transcript),
			SessionID:      req.SessionID,
			ContextSummary: contextAudioOnly,
		}, nil
	}

	parts := []string{fmt.Sprintf("User's transcribed speech: %q", transcript)}
	summary := contextAudio
	if document != "" {
		parts = append(parts, "Text from a relevant document:\n---\n"+document+"\n---")
		summary = contextWithDocument
	}

	var refined string
	if len(req.Images) > 0 {
		parts = append(parts, "The user also has the following image(s) open:")
		summary += fmt.Sprintf(", and %d image(s).", len(req.Images))
		refined, err = s.llm.GenerateWithImages(ctx, PromptRefinementSystemPrompt, strings.Join(parts, "\n\n"), req.Images)
	} else {
		refined, err = s.llm.Generate(ctx, PromptRefinementSystemPrompt, strings.Join(parts, "\n\n"))
	}
	if err != nil {
		return PromptResult{}, fmt.Errorf("prompt refinement failed: %w", err)
	}

	refined = strings.TrimSpace(refined)
	if refined == "" {
		refined = strings.TrimSpace(transcript)
	}

	s.logger.Info("Prompt refined",
		zap.String("sessionID", req.SessionID),
		zap.Int("documentWords", len(strings.Fields(document))),
		zap.Int("images", len(req.Images)))

	return PromptResult{
		RefinedPrompt:  refined,
		SessionID:      req.SessionID,
		ContextSummary: summary,
	}, nil
}

// TruncateWords keeps at most n whitespace separated words of text
func TruncateWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		return strings.Join(words[:n], " ")
	}
	return strings.TrimSpace(text)
}
