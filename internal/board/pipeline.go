package board

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/domain"
	"github.com/satriahrh/papantulis/server/domain/entities"
	"github.com/satriahrh/papantulis/server/domain/repositories"
	"github.com/satriahrh/papantulis/server/internal/stream"
)

// PipelineConfig configures one board pipeline
type PipelineConfig struct {
	Framing   stream.Framing
	Processor ProcessorConfig
}

// IngestSummary reports what one ingest did
type IngestSummary struct {
	Elements       int     `json:"elements"`
	DecodeFailures int     `json:"decode_failures"`
	Degraded       int     `json:"degraded"`
	Errors         []error `json:"-"`
}

// EffectHook observes every processed element
type EffectHook func(element entities.StreamElement, effect Effect)

// Pipeline drives a generator stream through parsing, ordered processing
// and ordered narration for a single board
type Pipeline struct {
	processor *ElementProcessor
	queue     *ProcessingQueue
	narration *NarrationQueue
	framing   stream.Framing
	logger    *zap.Logger

	ingestMu sync.Mutex

	mu      sync.Mutex
	hook    EffectHook
	summary *IngestSummary
}

// NewPipeline wires a processor, processing queue and narration queue
// around the board's collaborators
func NewPipeline(
	canvas repositories.CanvasStore,
	renderer repositories.Renderer,
	search repositories.ImageSearch,
	player repositories.AudioPlayer,
	config PipelineConfig,
	logger *zap.Logger,
) *Pipeline {
	if config.Framing == "" {
		config.Framing = stream.FramingSSE
	}

	p := &Pipeline{
		framing: config.Framing,
		logger:  logger,
	}
	p.narration = NewNarrationQueue(player, logger.Named("narration"))
	p.processor = NewElementProcessor(canvas, renderer, search, p.narration, config.Processor, logger.Named("processor"))
	p.queue = NewProcessingQueue(p.handle, logger.Named("queue"))
	return p
}

// SetEffectHook registers a hook called after each element was processed
func (p *Pipeline) SetEffectHook(hook EffectHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hook = hook
}

func (p *Pipeline) handle(ctx context.Context, element entities.StreamElement) {
	effect := p.processor.Process(ctx, element)

	p.mu.Lock()
	hook := p.hook
	if p.summary != nil && effect.Err != nil {
		p.summary.Degraded++
		p.summary.Errors = append(p.summary.Errors, effect.Err)
	}
	p.mu.Unlock()

	if hook != nil {
		hook(element, effect)
	}
}

// Ingest reads r until it ends, feeding every decoded element through the
// processing queue, and returns once the queue drained. Per element and
// mid-stream read failures are contained and reported in the summary; only
// ctx cancellation is returned as an error, after both queues were reset.
func (p *Pipeline) Ingest(ctx context.Context, r io.Reader) (IngestSummary, error) {
	p.ingestMu.Lock()
	defer p.ingestMu.Unlock()

	summary := &IngestSummary{}
	p.mu.Lock()
	p.summary = summary
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.summary = nil
		p.mu.Unlock()
	}()

	snapshot := func() IngestSummary {
		p.mu.Lock()
		defer p.mu.Unlock()
		out := *summary
		out.Errors = append([]error(nil), summary.Errors...)
		return out
	}

	reader := stream.NewFragmentReader(r, p.framing)
	parser := stream.NewObjectStreamParser()

	for {
		if err := ctx.Err(); err != nil {
			p.Reset()
			return snapshot(), err
		}

		fragment, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				p.Reset()
				return snapshot(), ctx.Err()
			}
			netErr := &domain.NetworkError{Op: "read element stream", Err: err}
			p.logger.Warn("Element stream ended with error", zap.Error(netErr))
			p.mu.Lock()
			summary.Errors = append(summary.Errors, netErr)
			p.mu.Unlock()
			break
		}

		for _, result := range parser.Feed(fragment) {
			if result.Err != nil {
				p.logger.Warn("Skipping undecodable object", zap.Error(result.Err))
				p.mu.Lock()
				summary.DecodeFailures++
				summary.Errors = append(summary.Errors, result.Err)
				p.mu.Unlock()
				continue
			}
			p.mu.Lock()
			summary.Elements++
			p.mu.Unlock()
			p.queue.Enqueue(result.Element)
		}
	}

	if parser.Incomplete() {
		p.logger.Debug("Element stream ended inside an object")
	}

	if err := p.queue.Wait(ctx); err != nil {
		p.Reset()
		return snapshot(), err
	}

	out := snapshot()
	p.logger.Info("Ingest finished",
		zap.Int("elements", out.Elements),
		zap.Int("decodeFailures", out.DecodeFailures),
		zap.Int("degraded", out.Degraded))
	return out, nil
}

// IngestFrom opens the generator stream and ingests it. Failing to open the
// stream is reported as domain.ErrStreamUnavailable.
func (p *Pipeline) IngestFrom(ctx context.Context, source repositories.StreamSource, req repositories.StreamRequest) (IngestSummary, error) {
	body, err := source.Open(ctx, req)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("%w: %w", domain.ErrStreamUnavailable, err)
	}
	defer body.Close()

	return p.Ingest(ctx, body)
}

// Reset flushes both queues without running their effects and cancels the
// element and narration in flight
func (p *Pipeline) Reset() {
	elements := p.queue.Reset()
	narrations := p.narration.Reset()
	p.logger.Info("Pipeline reset",
		zap.Int("droppedElements", elements),
		zap.Int("droppedNarrations", narrations))
}

// WaitNarration blocks until every queued narration finished
func (p *Pipeline) WaitNarration(ctx context.Context) error {
	return p.narration.Wait(ctx)
}
