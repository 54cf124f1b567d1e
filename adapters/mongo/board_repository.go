package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/domain"
	"github.com/satriahrh/papantulis/server/domain/entities"
	"github.com/satriahrh/papantulis/server/domain/repositories"
)

// BoardRepository implements repositories.BoardRepository using MongoDB
type BoardRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.BoardRepository = (*BoardRepository)(nil)

// NewBoardRepository creates a new MongoDB board repository
func NewBoardRepository(db *mongo.Database, logger *zap.Logger) *BoardRepository {
	collection := db.Collection("boards")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}}},
		})
		if err != nil {
			logger.Error("Failed to create board indexes", zap.Error(err))
			return
		}
		logger.Info("Board indexes created successfully")
	}()

	return &BoardRepository{
		collection: collection,
		logger:     logger,
	}
}

// Create implements repositories.BoardRepository
func (r *BoardRepository) Create(ctx context.Context, board *entities.Board) error {
	if board == nil {
		return errors.New("board cannot be nil")
	}
	if err := board.Validate(); err != nil {
		return err
	}

	if _, err := r.collection.InsertOne(ctx, board); err != nil {
		r.logger.Error("Failed to create board", zap.Error(err), zap.String("boardID", board.ID))
		return fmt.Errorf("failed to create board: %w", err)
	}

	r.logger.Info("Board created", zap.String("boardID", board.ID))
	return nil
}

// GetByID implements repositories.BoardRepository
func (r *BoardRepository) GetByID(ctx context.Context, id string) (*entities.Board, error) {
	if id == "" {
		return nil, errors.New("board id cannot be empty")
	}

	var board entities.Board
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&board); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("board %s: %w", id, domain.ErrNotFound)
		}
		r.logger.Error("Failed to get board by ID", zap.Error(err), zap.String("boardID", id))
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	return &board, nil
}

// Update implements repositories.BoardRepository
func (r *BoardRepository) Update(ctx context.Context, board *entities.Board) error {
	if board == nil {
		return errors.New("board cannot be nil")
	}
	if err := board.Validate(); err != nil {
		return err
	}

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": board.ID}, board)
	if err != nil {
		r.logger.Error("Failed to update board", zap.Error(err), zap.String("boardID", board.ID))
		return fmt.Errorf("failed to update board: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("board %s: %w", board.ID, domain.ErrNotFound)
	}

	r.logger.Debug("Board updated",
		zap.String("boardID", board.ID),
		zap.Int("elements", len(board.Elements)),
		zap.Int("strokes", len(board.Strokes)))
	return nil
}

// ArchiveIdle implements repositories.BoardRepository
func (r *BoardRepository) ArchiveIdle(ctx context.Context, before time.Time) (int64, error) {
	filter := bson.M{
		"status":     entities.BoardStatusActive,
		"updated_at": bson.M{"$lt": before},
	}
	update := bson.M{"$set": bson.M{
		"status":     entities.BoardStatusArchived,
		"updated_at": time.Now(),
	}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to archive idle boards", zap.Error(err))
		return 0, fmt.Errorf("failed to archive idle boards: %w", err)
	}
	return result.ModifiedCount, nil
}
