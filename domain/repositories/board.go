package repositories

import (
	"context"
	"time"

	"github.com/satriahrh/papantulis/server/domain/entities"
)

// BoardRepository defines data access methods for board snapshots
type BoardRepository interface {
	Create(ctx context.Context, board *entities.Board) error
	// GetByID returns domain.ErrNotFound for unknown boards
	GetByID(ctx context.Context, id string) (*entities.Board, error)
	Update(ctx context.Context, board *entities.Board) error
	// ArchiveIdle archives active boards not updated since before
	ArchiveIdle(ctx context.Context, before time.Time) (int64, error)
}
