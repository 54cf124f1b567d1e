package repositories

import (
	"context"

	"github.com/satriahrh/papantulis/server/domain/entities"
)

// CanvasStore is the board's element store. Implementations apply each call
// atomically.
type CanvasStore interface {
	Add(ctx context.Context, element entities.CanvasElement) error
	Update(ctx context.Context, element entities.CanvasElement) error
	// Replace deletes oldID and adds element in one step
	Replace(ctx context.Context, oldID string, element entities.CanvasElement) error
	Delete(ctx context.Context, ids ...string) error
	Get(ctx context.Context, id string) (entities.CanvasElement, bool)
}

// StrokeStore is the board's ordered ink stroke collection
type StrokeStore interface {
	Strokes(ctx context.Context) []entities.Stroke
	RemoveStrokes(ctx context.Context, ids ...string) error
}

// Notifier shows a transient banner to the board user
type Notifier interface {
	Notify(ctx context.Context, level, message string)
}
