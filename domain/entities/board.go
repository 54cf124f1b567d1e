package entities

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BoardStatus represents the status of a board
type BoardStatus string

const (
	BoardStatusActive   BoardStatus = "active"
	BoardStatusArchived BoardStatus = "archived"
)

// DefaultLanguage is the narration language of a new board
const DefaultLanguage = "en_US"

// Board is the persisted snapshot of one learning canvas
type Board struct {
	ID        string          `json:"id" bson:"_id"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" bson:"updated_at"`
	Status    BoardStatus     `json:"status" bson:"status"`
	Language  string          `json:"language" bson:"language"`
	Elements  []CanvasElement `json:"elements" bson:"elements"`
	Strokes   []Stroke        `json:"strokes" bson:"strokes"`
}

// NewBoard creates an empty active board
func NewBoard() *Board {
	now := time.Now()
	return &Board{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Status:    BoardStatusActive,
		Language:  DefaultLanguage,
		Elements:  make([]CanvasElement, 0),
		Strokes:   make([]Stroke, 0),
	}
}

// Touch updates the last modification timestamp
func (b *Board) Touch() {
	b.UpdatedAt = time.Now()
}

// Archive marks the board as archived
func (b *Board) Archive() {
	b.Status = BoardStatusArchived
	b.Touch()
}

// IsArchived reports whether the board no longer accepts changes
func (b *Board) IsArchived() bool {
	return b.Status == BoardStatusArchived
}

// Validate validates the board data
func (b *Board) Validate() error {
	if b.ID == "" {
		return errors.New("board id is required")
	}
	if b.Status != BoardStatusActive && b.Status != BoardStatusArchived {
		return errors.New("invalid board status")
	}
	return nil
}

// NormalizeLanguage turns browser style tags ("en-US") into the form used
// by narration voices ("en_US").
func NormalizeLanguage(lang string) string {
	return strings.ReplaceAll(strings.TrimSpace(lang), "-", "_")
}
