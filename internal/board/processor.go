// Package board turns a stream of generator elements into ordered canvas
// mutations and ordered narration.
package board

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/domain"
	"github.com/satriahrh/papantulis/server/domain/entities"
	"github.com/satriahrh/papantulis/server/domain/repositories"
)

const (
	DefaultTextWidth      = 600
	DefaultCardWidth      = 350
	DefaultImageHeight    = 250
	DefaultFontSize       = 18
	DefaultLineThickness  = 4
	DefaultTextColor      = "#111827"
	DefaultCardBackground = "#fef3c7"
	DefaultLineColor      = "#111827"
	ErrorColor            = "#ef4444"
	ErrorBackground       = "#fee2e2"
)

var thicknessByClass = map[string]float64{
	"s": 2,
	"m": 4,
	"l": 8,
}

// LineThickness maps a symbolic thickness class to a stroke width
func LineThickness(class string) float64 {
	if w, ok := thicknessByClass[class]; ok {
		return w
	}
	return DefaultLineThickness
}

// FitImage derives the display size of an image with a fixed target height
// from its source aspect ratio. A source without height is treated as square.
func FitImage(targetHeight float64, srcWidth, srcHeight int) (width, height float64) {
	if srcHeight <= 0 || srcWidth <= 0 {
		return targetHeight, targetHeight
	}
	return targetHeight * float64(srcWidth) / float64(srcHeight), targetHeight
}

// Narrator accepts narration requests
type Narrator interface {
	Speak(n repositories.Narration) <-chan struct{}
}

// ProcessorConfig holds the layout defaults of the element processor
type ProcessorConfig struct {
	TextWidth   float64
	CardWidth   float64
	ImageHeight float64
	FontSize    float64
	// WaitForNarration holds back the next element until the narration of
	// the current one finished
	WaitForNarration bool
}

// DefaultProcessorConfig returns the stock layout
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		TextWidth:   DefaultTextWidth,
		CardWidth:   DefaultCardWidth,
		ImageHeight: DefaultImageHeight,
		FontSize:    DefaultFontSize,
	}
}

// Effect is what processing one element did to the board
type Effect struct {
	Mutations []entities.Mutation
	Narration *repositories.Narration
	// Err is the contained failure, if any; the board already shows a
	// fallback for it
	Err error
}

// ElementProcessor applies one decoded element to the canvas
type ElementProcessor struct {
	canvas   repositories.CanvasStore
	renderer repositories.Renderer
	search   repositories.ImageSearch
	narrator Narrator
	config   ProcessorConfig
	logger   *zap.Logger
}

// NewElementProcessor creates a processor. narrator may be nil to disable
// narration.
func NewElementProcessor(
	canvas repositories.CanvasStore,
	renderer repositories.Renderer,
	search repositories.ImageSearch,
	narrator Narrator,
	config ProcessorConfig,
	logger *zap.Logger,
) *ElementProcessor {
	defaults := DefaultProcessorConfig()
	if config.TextWidth <= 0 {
		config.TextWidth = defaults.TextWidth
	}
	if config.CardWidth <= 0 {
		config.CardWidth = defaults.CardWidth
	}
	if config.ImageHeight <= 0 {
		config.ImageHeight = defaults.ImageHeight
	}
	if config.FontSize <= 0 {
		config.FontSize = defaults.FontSize
	}
	return &ElementProcessor{
		canvas:   canvas,
		renderer: renderer,
		search:   search,
		narrator: narrator,
		config:   config,
		logger:   logger,
	}
}

// Process applies element to the canvas. It never panics; failures are
// turned into visible fallback elements and reported in Effect.Err.
func (p *ElementProcessor) Process(ctx context.Context, element entities.StreamElement) (effect Effect) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Element processing panicked",
				zap.String("kind", string(element.Kind)),
				zap.Any("panic", r))
			effect.Err = fmt.Errorf("element processing panicked: %v", r)
		}
	}()

	var elementID string
	switch element.Kind {
	case entities.ElementKindText:
		t := element.Text
		elementID, effect = p.processText(ctx, t.Content, t.X, t.Y, p.widthOr(t.Width, p.config.TextWidth), repositories.RenderOptions{
			FontSize:  p.fontSizeOr(t.FontSize),
			TextColor: colorOr(t.TextColor, DefaultTextColor),
		})
	case entities.ElementKindCard:
		c := element.Card
		elementID, effect = p.processText(ctx, c.Content, c.X, c.Y, p.widthOr(c.Width, p.config.CardWidth), repositories.RenderOptions{
			FontSize:        p.fontSizeOr(c.FontSize),
			TextColor:       colorOr(c.TextColor, DefaultTextColor),
			BackgroundColor: colorOr(c.BackgroundColor, DefaultCardBackground),
			Padding:         16,
		})
	case entities.ElementKindLine:
		elementID, effect = p.processLine(ctx, element.Line)
	case entities.ElementKindImageSearch:
		elementID, effect = p.processImageSearch(ctx, element.ImageSearch)
	case entities.ElementKindImageResolved:
		elementID, effect = p.processImageResolved(ctx, element.ImageResolved)
	default:
		fields := []zap.Field{zap.String("kind", string(element.Kind))}
		if element.Unrecognized != nil {
			fields = append(fields,
				zap.String("type", element.Unrecognized.Type),
				zap.String("error", element.Unrecognized.Error))
		}
		p.logger.Warn("Dropping unrecognized element", fields...)
		return Effect{}
	}

	if effect.Err != nil {
		p.logger.Warn("Element degraded to fallback",
			zap.String("kind", string(element.Kind)),
			zap.String("elementID", elementID),
			zap.Error(effect.Err))
	}

	if elementID != "" && element.Narration.HasAudio() && ctx.Err() == nil {
		effect.Narration = p.narrate(ctx, elementID, element.Narration)
	}
	return effect
}

func (p *ElementProcessor) narrate(ctx context.Context, elementID string, n entities.Narration) *repositories.Narration {
	if p.narrator == nil {
		return nil
	}
	req := repositories.Narration{
		ID:           uuid.NewString(),
		ElementID:    elementID,
		Text:         n.SpeakAloud,
		AudioDataURL: n.AudioDataURL,
	}
	done := p.narrator.Speak(req)
	if p.config.WaitForNarration {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	return &req
}

func (p *ElementProcessor) processText(ctx context.Context, content string, x, y, width float64, opts repositories.RenderOptions) (string, Effect) {
	var effect Effect

	rendered, err := p.renderer.Render(ctx, content, width, opts)
	if ctx.Err() != nil {
		effect.Err = ctx.Err()
		return "", effect
	}
	if err == nil {
		el := entities.CanvasElement{
			ID:      entities.NewElementID(),
			Kind:    entities.CanvasElementImage,
			X:       x,
			Y:       y,
			Width:   width,
			Height:  rendered.Height,
			Content: rendered.DataURI,
			Style: entities.ElementStyle{
				TextColor:       opts.TextColor,
				BackgroundColor: opts.BackgroundColor,
				FontSize:        opts.FontSize,
			},
		}
		return p.add(ctx, el, &effect), effect
	}

	effect.Err = &domain.RenderError{Content: content, Err: err}
	fallback := entities.CanvasElement{
		ID:      entities.NewElementID(),
		Kind:    entities.CanvasElementText,
		X:       x,
		Y:       y,
		Width:   width,
		Content: content,
		Style: entities.ElementStyle{
			TextColor:       ErrorColor,
			BackgroundColor: ErrorBackground,
			FontSize:        opts.FontSize,
			Error:           true,
		},
	}
	return p.add(ctx, fallback, &effect), effect
}

func (p *ElementProcessor) processLine(ctx context.Context, line *entities.LineElement) (string, Effect) {
	var effect Effect
	el := entities.CanvasElement{
		ID:     entities.NewElementID(),
		Kind:   entities.CanvasElementLine,
		X:      math.Min(line.X1, line.X2),
		Y:      math.Min(line.Y1, line.Y2),
		Width:  math.Abs(line.X2 - line.X1),
		Height: math.Abs(line.Y2 - line.Y1),
		Points: []entities.Point{{X: line.X1, Y: line.Y1}, {X: line.X2, Y: line.Y2}},
		Style: entities.ElementStyle{
			StrokeColor: colorOr(line.Color, DefaultLineColor),
			StrokeWidth: LineThickness(line.ThicknessClass),
		},
	}
	return p.add(ctx, el, &effect), effect
}

func (p *ElementProcessor) processImageSearch(ctx context.Context, search *entities.ImageSearchElement) (string, Effect) {
	var effect Effect

	placeholder := entities.CanvasElement{
		ID:      entities.NewElementID(),
		Kind:    entities.CanvasElementText,
		X:       search.X,
		Y:       search.Y,
		Content: fmt.Sprintf("Searching for \"%s\"…", search.Search),
		Style: entities.ElementStyle{
			TextColor:   "#6b7280",
			FontSize:    p.config.FontSize,
			Placeholder: true,
		},
	}
	if p.add(ctx, placeholder, &effect) == "" {
		return "", effect
	}

	// canvas writes after the search must land even if ctx was cancelled
	store := context.WithoutCancel(ctx)

	result, err := p.search.Search(ctx, search.Search)
	if ctx.Err() != nil {
		if delErr := p.canvas.Delete(store, placeholder.ID); delErr != nil {
			p.logger.Error("Failed to remove image placeholder", zap.String("elementID", placeholder.ID), zap.Error(delErr))
		}
		effect.Mutations = append(effect.Mutations, entities.Mutation{Op: entities.MutationDelete, IDs: []string{placeholder.ID}})
		effect.Err = ctx.Err()
		return "", effect
	}
	if err == nil && result.ImageURL == "" {
		err = domain.ErrNotFound
	}
	if err != nil {
		effect.Err = &domain.SearchError{Query: search.Search, Err: err}
		failed := placeholder
		failed.Content = fmt.Sprintf("Could not find image for \"%s\"", search.Search)
		failed.Style = entities.ElementStyle{
			TextColor:       ErrorColor,
			BackgroundColor: ErrorBackground,
			FontSize:        p.config.FontSize,
			Error:           true,
		}
		if updErr := p.canvas.Update(store, failed); updErr != nil {
			effect.Err = errors.Join(effect.Err, fmt.Errorf("failed to mark placeholder failed: %w", updErr))
			return "", effect
		}
		effect.Mutations = append(effect.Mutations, entities.Mutation{Op: entities.MutationUpdate, Element: &failed})
		return failed.ID, effect
	}

	targetHeight := p.config.ImageHeight
	if search.Height != nil && *search.Height > 0 {
		targetHeight = *search.Height
	}
	width, height := FitImage(targetHeight, result.Width, result.Height)

	img := entities.CanvasElement{
		ID:      entities.NewElementID(),
		Kind:    entities.CanvasElementImage,
		X:       search.X,
		Y:       search.Y,
		Width:   width,
		Height:  height,
		Content: result.ImageURL,
	}
	if err := p.canvas.Replace(store, placeholder.ID, img); err != nil {
		effect.Err = fmt.Errorf("failed to replace placeholder: %w", err)
		return "", effect
	}
	effect.Mutations = append(effect.Mutations, entities.Mutation{Op: entities.MutationReplace, Element: &img, PreviousID: placeholder.ID})
	return img.ID, effect
}

func (p *ElementProcessor) processImageResolved(ctx context.Context, image *entities.ImageResolvedElement) (string, Effect) {
	var effect Effect
	el := entities.CanvasElement{
		ID:      entities.NewElementID(),
		Kind:    entities.CanvasElementImage,
		X:       image.X,
		Y:       image.Y,
		Width:   image.Width,
		Height:  image.Height,
		Content: image.ImageURL,
	}
	return p.add(ctx, el, &effect), effect
}

func (p *ElementProcessor) add(ctx context.Context, el entities.CanvasElement, effect *Effect) string {
	if err := p.canvas.Add(context.WithoutCancel(ctx), el); err != nil {
		effect.Err = errors.Join(effect.Err, fmt.Errorf("failed to add element: %w", err))
		return ""
	}
	effect.Mutations = append(effect.Mutations, entities.Mutation{Op: entities.MutationAdd, Element: &el})
	return el.ID
}

func (p *ElementProcessor) widthOr(width *float64, fallback float64) float64 {
	if width != nil && *width > 0 {
		return *width
	}
	return fallback
}

func (p *ElementProcessor) fontSizeOr(size *float64) float64 {
	if size != nil && *size > 0 {
		return *size
	}
	return p.config.FontSize
}

func colorOr(color, fallback string) string {
	if color == "" {
		return fallback
	}
	return color
}
