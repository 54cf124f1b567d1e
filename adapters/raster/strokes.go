package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/vector"

	"github.com/satriahrh/papantulis/server/domain/entities"
	"github.com/satriahrh/papantulis/server/domain/repositories"
)

const (
	defaultScale       = 1.0
	defaultStrokeWidth = 3.0
	maxDimension       = 4096
	capSegments        = 16
)

// StrokeSnapshotter rasterizes the ink strokes inside a board region to PNG
type StrokeSnapshotter struct {
	strokes    repositories.StrokeStore
	scale      float64
	background color.Color
	logger     *zap.Logger
}

var _ repositories.Snapshotter = (*StrokeSnapshotter)(nil)

// NewStrokeSnapshotter creates a snapshotter over the board's stroke store.
// scale is the number of pixels per canvas unit, 0 means 1.
func NewStrokeSnapshotter(strokes repositories.StrokeStore, scale float64, logger *zap.Logger) *StrokeSnapshotter {
	if scale <= 0 {
		scale = defaultScale
		logger.Info("Using default snapshot scale", zap.Float64("scale", scale))
	}
	return &StrokeSnapshotter{
		strokes:    strokes,
		scale:      scale,
		background: color.White,
		logger:     logger,
	}
}

// Snapshot draws every stroke intersecting region onto a white canvas of
// the region's size
func (s *StrokeSnapshotter) Snapshot(ctx context.Context, region entities.BoundingBox) ([]byte, error) {
	if region.Width <= 0 || region.Height <= 0 {
		return nil, fmt.Errorf("invalid snapshot region %vx%v", region.Width, region.Height)
	}

	w := int(math.Ceil(region.Width * s.scale))
	h := int(math.Ceil(region.Height * s.scale))
	if w > maxDimension || h > maxDimension {
		return nil, fmt.Errorf("snapshot region %dx%d exceeds %d pixels", w, h, maxDimension)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(s.background), image.Point{}, draw.Src)

	z := vector.NewRasterizer(w, h)
	drawn := 0
	for _, stroke := range s.strokes.Strokes(ctx) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !intersects(stroke.BoundingBox().Pad(stroke.Width), region) {
			continue
		}

		ink := s.background
		if stroke.Tool == entities.StrokeToolPen {
			ink = parseHexColor(stroke.Color)
		}
		width := stroke.Width
		if width <= 0 {
			width = defaultStrokeWidth
		}

		s.drawStroke(z, dst, stroke.Points, region, width*s.scale, image.NewUniform(ink))
		drawn++
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	s.logger.Debug("Rendered stroke snapshot",
		zap.Int("width", w),
		zap.Int("height", h),
		zap.Int("strokes", drawn),
		zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

func (s *StrokeSnapshotter) drawStroke(z *vector.Rasterizer, dst *image.RGBA, points []entities.Point, region entities.BoundingBox, width float64, src image.Image) {
	local := make([][2]float64, len(points))
	for i, p := range points {
		local[i] = [2]float64{(p.X - region.X) * s.scale, (p.Y - region.Y) * s.scale}
	}

	half := width / 2
	fill := func(path [][2]float64) {
		b := dst.Bounds()
		z.Reset(b.Dx(), b.Dy())
		z.DrawOp = draw.Over
		z.MoveTo(float32(path[0][0]), float32(path[0][1]))
		for _, p := range path[1:] {
			z.LineTo(float32(p[0]), float32(p[1]))
		}
		z.ClosePath()
		z.Draw(dst, b, src, image.Point{})
	}

	for i, p := range local {
		fill(circle(p, half))
		if i == 0 {
			continue
		}
		if quad, ok := segment(local[i-1], p, half); ok {
			fill(quad)
		}
	}
}

func circle(c [2]float64, r float64) [][2]float64 {
	path := make([][2]float64, capSegments)
	for i := range path {
		a := 2 * math.Pi * float64(i) / capSegments
		path[i] = [2]float64{c[0] + r*math.Cos(a), c[1] + r*math.Sin(a)}
	}
	return path
}

func segment(a, b [2]float64, half float64) ([][2]float64, bool) {
	dx, dy := b[0]-a[0], b[1]-a[1]
	length := math.Hypot(dx, dy)
	if length == 0 {
		return nil, false
	}
	nx, ny := -dy/length*half, dx/length*half
	return [][2]float64{
		{a[0] + nx, a[1] + ny},
		{b[0] + nx, b[1] + ny},
		{b[0] - nx, b[1] - ny},
		{a[0] - nx, a[1] - ny},
	}, true
}

func intersects(a, b entities.BoundingBox) bool {
	return a.X <= b.X+b.Width && b.X <= a.X+a.Width &&
		a.Y <= b.Y+b.Height && b.Y <= a.Y+a.Height
}

// parseHexColor accepts #rgb and #rrggbb, anything else is black
func parseHexColor(s string) color.Color {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.Black
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.Black
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
