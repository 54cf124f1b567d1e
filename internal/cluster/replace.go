package cluster

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/domain"
	"github.com/satriahrh/papantulis/server/domain/entities"
	"github.com/satriahrh/papantulis/server/domain/repositories"
)

const (
	DefaultEpsilon   = 40
	DefaultMinPoints = 1
	DefaultMargin    = 20
)

// Dispatch stages reported by ClusterDispatchError
const (
	StageSnapshot      = "snapshot"
	StageUpload        = "upload"
	StageInsert        = "insert"
	StageRemoveStrokes = "remove_strokes"
)

// Config holds the clustering parameters
type Config struct {
	Epsilon   float64
	MinPoints int
	Margin    float64
}

// DefaultConfig returns the stock clustering parameters
func DefaultConfig() Config {
	return Config{
		Epsilon:   DefaultEpsilon,
		MinPoints: DefaultMinPoints,
		Margin:    DefaultMargin,
	}
}

// Summary reports the outcome of one clusterAndReplace run
type Summary struct {
	ClustersFound  int      `json:"clusters_found"`
	ClustersFailed int      `json:"clusters_failed"`
	ImageIDs       []string `json:"image_ids,omitempty"`
	Errors         []error  `json:"-"`
}

// Replacer swaps each cluster of pen strokes for a single rasterized image
type Replacer struct {
	canvas      repositories.CanvasStore
	strokes     repositories.StrokeStore
	snapshotter repositories.Snapshotter
	uploader    repositories.SnapshotUploader
	notifier    repositories.Notifier
	config      Config
	logger      *zap.Logger
}

// NewReplacer creates a replacer. notifier may be nil.
func NewReplacer(
	canvas repositories.CanvasStore,
	strokes repositories.StrokeStore,
	snapshotter repositories.Snapshotter,
	uploader repositories.SnapshotUploader,
	notifier repositories.Notifier,
	config Config,
	logger *zap.Logger,
) *Replacer {
	if config.Margin < 0 {
		config.Margin = DefaultMargin
	}
	return &Replacer{
		canvas:      canvas,
		strokes:     strokes,
		snapshotter: snapshotter,
		uploader:    uploader,
		notifier:    notifier,
		config:      config,
		logger:      logger,
	}
}

// Run clusters every stroke currently on the board with the configured
// parameters
func (r *Replacer) Run(ctx context.Context) Summary {
	return r.ClusterAndReplace(ctx, r.strokes.Strokes(ctx), r.config.Epsilon, r.config.MinPoints)
}

// ClusterAndReplace clusters the pen strokes and replaces each cluster with
// an image of its padded region. Each cluster succeeds or fails on its own:
// a failed cluster keeps its strokes and the user is notified.
func (r *Replacer) ClusterAndReplace(ctx context.Context, strokes []entities.Stroke, epsilon float64, minPts int) Summary {
	var (
		boxes   []Box
		byID    = make(map[string]entities.Stroke, len(strokes))
		summary Summary
	)
	for _, s := range strokes {
		if s.Tool != entities.StrokeToolPen || len(s.Points) == 0 {
			continue
		}
		byID[s.ID] = s
		boxes = append(boxes, BoxOf(s))
	}

	clusters := Cluster(boxes, epsilon, minPts)
	summary.ClustersFound = len(clusters)

	r.logger.Info("Clustered strokes",
		zap.Int("strokes", len(boxes)),
		zap.Int("clusters", len(clusters)),
		zap.Float64("epsilon", epsilon),
		zap.Int("minPts", minPts))

	for i, ids := range clusters {
		members := make([]entities.Stroke, 0, len(ids))
		for _, id := range ids {
			members = append(members, byID[id])
		}

		imageID, err := r.dispatch(ctx, ids, members)
		if err != nil {
			summary.ClustersFailed++
			summary.Errors = append(summary.Errors, err)
			r.logger.Warn("Cluster dispatch failed",
				zap.Int("cluster", i),
				zap.Strings("strokeIDs", ids),
				zap.Error(err))
			if r.notifier != nil {
				r.notifier.Notify(context.WithoutCancel(ctx), "error", "Could not process one of your drawings, its strokes were kept")
			}
			continue
		}
		summary.ImageIDs = append(summary.ImageIDs, imageID)
	}

	return summary
}

func (r *Replacer) dispatch(ctx context.Context, ids []string, members []entities.Stroke) (string, error) {
	fail := func(stage string, err error) (string, error) {
		return "", &domain.ClusterDispatchError{StrokeIDs: ids, Stage: stage, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return fail(StageSnapshot, err)
	}

	region := entities.UnionBoundingBox(members).Pad(r.config.Margin)

	png, err := r.snapshotter.Snapshot(ctx, region)
	if err != nil {
		return fail(StageSnapshot, err)
	}

	key := fmt.Sprintf("clusters/%s.png", uuid.NewString())
	url, err := r.uploader.Upload(ctx, key, png)
	if err != nil {
		return fail(StageUpload, err)
	}

	img := entities.CanvasElement{
		ID:      entities.NewElementID(),
		Kind:    entities.CanvasElementImage,
		X:       region.X,
		Y:       region.Y,
		Width:   region.Width,
		Height:  region.Height,
		Content: url,
	}
	store := context.WithoutCancel(ctx)
	if err := r.canvas.Add(store, img); err != nil {
		return fail(StageInsert, err)
	}

	if err := r.strokes.RemoveStrokes(store, ids...); err != nil {
		if delErr := r.canvas.Delete(store, img.ID); delErr != nil {
			r.logger.Error("Failed to roll back cluster image",
				zap.String("elementID", img.ID),
				zap.Error(delErr))
		}
		return fail(StageRemoveStrokes, err)
	}

	r.logger.Debug("Cluster replaced",
		zap.String("elementID", img.ID),
		zap.Int("strokes", len(ids)),
		zap.String("url", url))
	return img.ID, nil
}
