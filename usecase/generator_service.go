package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/domain/entities"
	"github.com/satriahrh/papantulis/server/domain/repositories"
	"github.com/satriahrh/papantulis/server/internal/stream"
)

const (
	// DefaultResolvedImageWidth is used when the model gave an image no width
	DefaultResolvedImageWidth = 350
	// ImageSearchErrorColor colors the text that replaces an unresolved image
	ImageSearchErrorColor = "#ef4444"
)

// EventWriter receives the generator output as server-sent events
type EventWriter interface {
	WriteEvent(data []byte) error
	WriteDone() error
}

// GeneratorService produces the element stream for a refined prompt: the
// model reply is cut into objects, image searches are resolved and
// narration audio is attached before each element is emitted
type GeneratorService struct {
	llm      repositories.LargeLanguageModel
	search   repositories.ImageSearch
	tts      repositories.TextToSpeech
	language *LanguageSetting
	logger   *zap.Logger
}

// NewGeneratorService creates a new generator service. tts may be nil, in
// which case elements carry their narration text only.
func NewGeneratorService(
	llm repositories.LargeLanguageModel,
	search repositories.ImageSearch,
	tts repositories.TextToSpeech,
	language *LanguageSetting,
	logger *zap.Logger,
) *GeneratorService {
	return &GeneratorService{
		llm:      llm,
		search:   search,
		tts:      tts,
		language: language,
		logger:   logger,
	}
}

// ValidateStreamRequest checks the fields every generator request needs
func ValidateStreamRequest(req repositories.StreamRequest) error {
	if strings.TrimSpace(req.RefinedPrompt) == "" || req.SessionID == "" || req.ContextSummary == "" {
		return errors.New("missing one or more required parameters: refined_prompt, session_id, context_summary")
	}
	return nil
}

// Stream writes one event per generated element followed by the done
// sentinel. A failure after the stream started is written as an
// {"error": ...} event and also returned.
func (s *GeneratorService) Stream(ctx context.Context, req repositories.StreamRequest, w EventWriter) error {
	if err := ValidateStreamRequest(req); err != nil {
		return err
	}

	logger := s.logger.With(zap.String("sessionID", req.SessionID))
	language := s.language.Get()

	chunks, err := s.llm.GenerateStream(ctx, ElementGenerationSystemPrompt, req.RefinedPrompt)
	if err != nil {
		s.writeError(w, err)
		return fmt.Errorf("failed to start generation: %w", err)
	}
	defer func() {
		go func() {
			for range chunks {
			}
		}()
	}()

	// model content carries LaTeX, where unbalanced braces are common
	parser := stream.NewStringAwareParser()
	emitted := 0
	for chunk := range chunks {
		if chunk.Err != nil {
			logger.Error("Generation stream failed", zap.Error(chunk.Err))
			s.writeError(w, chunk.Err)
			return chunk.Err
		}

		for _, result := range parser.Feed(chunk.Text) {
			if result.Err != nil {
				logger.Warn("Skipping undecodable object", zap.Error(result.Err))
				continue
			}

			element := s.enrich(ctx, result.Element, language, logger)
			payload, err := json.Marshal(element)
			if err != nil {
				logger.Warn("Failed to encode element", zap.Error(err))
				continue
			}
			if err := w.WriteEvent(payload); err != nil {
				return err
			}
			emitted++
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	logger.Info("Generation completed", zap.Int("elements", emitted))
	return w.WriteDone()
}

// Open implements repositories.StreamSource by running the generator in
// process and exposing its event stream as a reader
func (s *GeneratorService) Open(ctx context.Context, req repositories.StreamRequest) (io.ReadCloser, error) {
	if err := ValidateStreamRequest(req); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		err := s.Stream(ctx, req, stream.NewSSEWriter(pw))
		pw.CloseWithError(err)
	}()
	return pr, nil
}

func (s *GeneratorService) writeError(w EventWriter, err error) {
	payload, _ := json.Marshal(map[string]string{"error": err.Error()})
	if werr := w.WriteEvent(payload); werr != nil {
		s.logger.Warn("Failed to write error event", zap.Error(werr))
	}
}

func (s *GeneratorService) enrich(ctx context.Context, element entities.StreamElement, language string, logger *zap.Logger) entities.StreamElement {
	if element.Kind == entities.ElementKindImageSearch {
		element = s.resolveImage(ctx, element, logger)
	}

	if s.tts != nil && strings.TrimSpace(element.Narration.SpeakAloud) != "" && element.Narration.AudioDataURL == "" {
		audio, err := s.synthesize(ctx, element.Narration.SpeakAloud, language)
		if err != nil {
			logger.Error("Failed to synthesize narration", zap.Error(err))
		} else {
			element.Narration.AudioDataURL = audio
		}
	}
	return element
}

// resolveImage turns an image search into a sized image, or into a red
// error text when nothing could be found
func (s *GeneratorService) resolveImage(ctx context.Context, element entities.StreamElement, logger *zap.Logger) entities.StreamElement {
	search := element.ImageSearch

	result, err := s.search.Search(ctx, search.Search)
	if err != nil {
		logger.Warn("Image search failed", zap.String("query", search.Search), zap.Error(err))
		return entities.StreamElement{
			Kind: entities.ElementKindText,
			Text: &entities.TextElement{
				X:         search.X,
				Y:         search.Y,
				Content:   fmt.Sprintf("**Error:** Could not find image for '%s'", search.Search),
				TextColor: ImageSearchErrorColor,
			},
			Narration: element.Narration,
		}
	}

	width := float64(DefaultResolvedImageWidth)
	if search.Width != nil && *search.Width > 0 {
		width = *search.Width
	}
	aspect := 1.0
	if result.Width > 0 {
		aspect = float64(result.Height) / float64(result.Width)
	}

	return entities.StreamElement{
		Kind: entities.ElementKindImageResolved,
		ImageResolved: &entities.ImageResolvedElement{
			X:        search.X,
			Y:        search.Y,
			ImageURL: result.ImageURL,
			Width:    width,
			Height:   float64(int(width * aspect)),
		},
		Narration: element.Narration,
	}
}

func (s *GeneratorService) synthesize(ctx context.Context, text, language string) (string, error) {
	audio, err := s.tts.ConvertTextToSpeech(ctx, text, repositories.SpeechOptions{Language: language})
	if err != nil {
		return "", err
	}

	var buf []byte
	for chunk := range audio {
		buf = append(buf, chunk...)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(buf) == 0 {
		return "", errors.New("no audio received")
	}
	return "data:" + s.tts.AudioMIMEType() + ";base64," + base64.StdEncoding.EncodeToString(buf), nil
}
