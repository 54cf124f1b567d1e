package entities

import (
	"errors"

	"github.com/google/uuid"
)

// CanvasElementKind is the kind of a persistent canvas element
type CanvasElementKind string

const (
	CanvasElementText  CanvasElementKind = "text"
	CanvasElementImage CanvasElementKind = "image"
	CanvasElementLine  CanvasElementKind = "line"
)

// ElementStyle holds the visual attributes of a canvas element
type ElementStyle struct {
	TextColor       string  `json:"text_color,omitempty" bson:"text_color,omitempty"`
	BackgroundColor string  `json:"background_color,omitempty" bson:"background_color,omitempty"`
	FontSize        float64 `json:"font_size,omitempty" bson:"font_size,omitempty"`
	StrokeColor     string  `json:"stroke_color,omitempty" bson:"stroke_color,omitempty"`
	StrokeWidth     float64 `json:"stroke_width,omitempty" bson:"stroke_width,omitempty"`
	Placeholder     bool    `json:"placeholder,omitempty" bson:"placeholder,omitempty"`
	Error           bool    `json:"error,omitempty" bson:"error,omitempty"`
}

// CanvasElement is an entity in the shared board store
type CanvasElement struct {
	ID      string            `json:"id" bson:"id"`
	Kind    CanvasElementKind `json:"kind" bson:"kind"`
	X       float64           `json:"x" bson:"x"`
	Y       float64           `json:"y" bson:"y"`
	Width   float64           `json:"width,omitempty" bson:"width,omitempty"`
	Height  float64           `json:"height,omitempty" bson:"height,omitempty"`
	Content string            `json:"content,omitempty" bson:"content,omitempty"`
	Style   ElementStyle      `json:"style" bson:"style"`
	Points  []Point           `json:"points,omitempty" bson:"points,omitempty"`
}

// NewElementID returns a fresh, never reused element id
func NewElementID() string {
	return uuid.NewString()
}

// Validate validates the canvas element
func (e *CanvasElement) Validate() error {
	if e.ID == "" {
		return errors.New("element id is required")
	}
	switch e.Kind {
	case CanvasElementText, CanvasElementImage:
	case CanvasElementLine:
		if len(e.Points) != 2 {
			return errors.New("line element requires exactly two points")
		}
	default:
		return errors.New("invalid element kind")
	}
	return nil
}

// MutationOp is the kind of change applied to the canvas store
type MutationOp string

const (
	MutationAdd     MutationOp = "add"
	MutationUpdate  MutationOp = "update"
	MutationReplace MutationOp = "replace"
	MutationDelete  MutationOp = "delete"
	MutationClear   MutationOp = "clear"
	// MutationRemoveStrokes lists in IDs the strokes taken off the board
	MutationRemoveStrokes MutationOp = "remove_strokes"
)

// Mutation describes one applied change, used for broadcasting to board peers
type Mutation struct {
	Op         MutationOp     `json:"op"`
	Element    *CanvasElement `json:"element,omitempty"`
	PreviousID string         `json:"previous_id,omitempty"`
	IDs        []string       `json:"ids,omitempty"`
}
