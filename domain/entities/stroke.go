package entities

import (
	"errors"
	"math"
)

// Point is a 2-D canvas coordinate
type Point struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// StrokeTool tags how a stroke was drawn
type StrokeTool string

const (
	StrokeToolPen    StrokeTool = "pen"
	StrokeToolEraser StrokeTool = "eraser"
)

// Stroke is one continuous freehand ink path
type Stroke struct {
	ID     string     `json:"id" bson:"id"`
	Points []Point    `json:"points" bson:"points"`
	Tool   StrokeTool `json:"tool" bson:"tool"`
	Color  string     `json:"color,omitempty" bson:"color,omitempty"`
	Width  float64    `json:"width,omitempty" bson:"width,omitempty"`
}

// Validate validates the stroke data
func (s *Stroke) Validate() error {
	if s.ID == "" {
		return errors.New("stroke id is required")
	}
	if len(s.Points) == 0 {
		return errors.New("stroke requires at least one point")
	}
	if s.Tool != StrokeToolPen && s.Tool != StrokeToolEraser {
		return errors.New("invalid stroke tool")
	}
	return nil
}

// BoundingBox is an axis-aligned rectangle
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BoundingBox computes the box from the stroke's point extrema. It is
// recomputed on every call.
func (s Stroke) BoundingBox() BoundingBox {
	if len(s.Points) == 0 {
		return BoundingBox{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range s.Points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// CenterX returns the horizontal center
func (b BoundingBox) CenterX() float64 { return b.X + b.Width/2 }

// CenterY returns the vertical center
func (b BoundingBox) CenterY() float64 { return b.Y + b.Height/2 }

// Union returns the smallest box containing both boxes
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	minX := math.Min(b.X, o.X)
	minY := math.Min(b.Y, o.Y)
	maxX := math.Max(b.X+b.Width, o.X+o.Width)
	maxY := math.Max(b.Y+b.Height, o.Y+o.Height)
	return BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Pad grows the box by margin on every side
func (b BoundingBox) Pad(margin float64) BoundingBox {
	return BoundingBox{
		X:      b.X - margin,
		Y:      b.Y - margin,
		Width:  b.Width + 2*margin,
		Height: b.Height + 2*margin,
	}
}

// UnionBoundingBox returns the envelope of all given strokes
func UnionBoundingBox(strokes []Stroke) BoundingBox {
	if len(strokes) == 0 {
		return BoundingBox{}
	}
	box := strokes[0].BoundingBox()
	for _, s := range strokes[1:] {
		box = box.Union(s.BoundingBox())
	}
	return box
}
