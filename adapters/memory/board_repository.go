package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/satriahrh/papantulis/server/domain"
	"github.com/satriahrh/papantulis/server/domain/entities"
	"github.com/satriahrh/papantulis/server/domain/repositories"
)

// BoardRepository is an in-memory implementation of repositories.BoardRepository,
// used when no MongoDB is configured
type BoardRepository struct {
	mu     sync.RWMutex
	boards map[string]*entities.Board
}

var _ repositories.BoardRepository = (*BoardRepository)(nil)

// NewBoardRepository creates a new in-memory board repository
func NewBoardRepository() *BoardRepository {
	return &BoardRepository{
		boards: make(map[string]*entities.Board),
	}
}

// Create implements repositories.BoardRepository
func (m *BoardRepository) Create(ctx context.Context, board *entities.Board) error {
	if board == nil {
		return errors.New("board cannot be nil")
	}
	if err := board.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.boards[board.ID]; exists {
		return fmt.Errorf("board %s already exists", board.ID)
	}
	m.boards[board.ID] = clone(board)
	return nil
}

// GetByID implements repositories.BoardRepository
func (m *BoardRepository) GetByID(ctx context.Context, id string) (*entities.Board, error) {
	if id == "" {
		return nil, errors.New("board id cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	board, exists := m.boards[id]
	if !exists {
		return nil, fmt.Errorf("board %s: %w", id, domain.ErrNotFound)
	}
	return clone(board), nil
}

// Update implements repositories.BoardRepository
func (m *BoardRepository) Update(ctx context.Context, board *entities.Board) error {
	if board == nil {
		return errors.New("board cannot be nil")
	}
	if err := board.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.boards[board.ID]
	if !exists {
		return fmt.Errorf("board %s: %w", board.ID, domain.ErrNotFound)
	}

	stored := clone(board)
	stored.CreatedAt = existing.CreatedAt
	m.boards[board.ID] = stored
	return nil
}

// ArchiveIdle implements repositories.BoardRepository
func (m *BoardRepository) ArchiveIdle(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, board := range m.boards {
		if board.Status == entities.BoardStatusActive && board.UpdatedAt.Before(before) {
			board.Archive()
			n++
		}
	}
	return n, nil
}

func clone(b *entities.Board) *entities.Board {
	c := *b
	c.Elements = slices.Clone(b.Elements)
	c.Strokes = make([]entities.Stroke, len(b.Strokes))
	for i, s := range b.Strokes {
		s.Points = slices.Clone(s.Points)
		c.Strokes[i] = s
	}
	for i, e := range c.Elements {
		c.Elements[i].Points = slices.Clone(e.Points)
	}
	return &c
}
