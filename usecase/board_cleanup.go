package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/domain/repositories"
)

// BoardCleanupService archives boards nobody touched for a while
type BoardCleanupService struct {
	boardRepo repositories.BoardRepository
	idleAfter time.Duration
	interval  time.Duration
	logger    *zap.Logger
	stopChan  chan struct{}
	now       func() time.Time
}

// NewBoardCleanupService creates a new board cleanup service
func NewBoardCleanupService(boardRepo repositories.BoardRepository, idleAfter, interval time.Duration, logger *zap.Logger) *BoardCleanupService {
	if idleAfter <= 0 {
		idleAfter = 30 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &BoardCleanupService{
		boardRepo: boardRepo,
		idleAfter: idleAfter,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
		now:       time.Now,
	}
}

// Start begins the background cleanup process
func (s *BoardCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Board cleanup service started",
		zap.Duration("idleAfter", s.idleAfter),
		zap.Duration("interval", s.interval))
}

// Stop gracefully stops the cleanup service
func (s *BoardCleanupService) Stop() {
	close(s.stopChan)
	s.logger.Info("Board cleanup service stopped")
}

func (s *BoardCleanupService) cleanupLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// first pass shortly after startup
	initialTimer := time.NewTimer(time.Minute)
	defer initialTimer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-initialTimer.C:
			s.RunCleanup(context.Background())
		case <-ticker.C:
			s.RunCleanup(context.Background())
		}
	}
}

// RunCleanup archives every active board idle for longer than idleAfter
func (s *BoardCleanupService) RunCleanup(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	archived, err := s.boardRepo.ArchiveIdle(ctx, s.now().Add(-s.idleAfter))
	if err != nil {
		s.logger.Error("Failed to archive idle boards", zap.Error(err))
		return 0, err
	}

	s.logger.Info("Board cleanup completed", zap.Int64("archived", archived))
	return archived, nil
}
