package usecase

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/papantulis/server/adapters/memory"
	"github.com/satriahrh/papantulis/server/domain/entities"
)

func TestBoardCleanupService_ArchivesIdleBoards(t *testing.T) {
	repo := memory.NewBoardRepository()
	ctx := context.Background()

	idle := entities.NewBoard()
	idle.UpdatedAt = time.Now().Add(-48 * time.Hour)
	fresh := entities.NewBoard()
	for _, b := range []*entities.Board{idle, fresh} {
		if err := repo.Create(ctx, b); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	service := NewBoardCleanupService(repo, 24*time.Hour, time.Hour, zaptest.NewLogger(t))
	archived, err := service.RunCleanup(ctx)
	if err != nil {
		t.Fatalf("RunCleanup failed: %v", err)
	}
	if archived != 1 {
		t.Errorf("Expected 1 archived board, got %d", archived)
	}

	got, _ := repo.GetByID(ctx, idle.ID)
	if !got.IsArchived() {
		t.Error("Expected the idle board to be archived")
	}
	got, _ = repo.GetByID(ctx, fresh.ID)
	if got.IsArchived() {
		t.Error("Expected the fresh board to stay active")
	}
}

func TestBoardCleanupService_StartStop(t *testing.T) {
	service := NewBoardCleanupService(memory.NewBoardRepository(), 0, 0, zaptest.NewLogger(t))
	service.Start()
	service.Stop()
}
