package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/papantulis/server/adapters/memory"
	"github.com/satriahrh/papantulis/server/domain"
	"github.com/satriahrh/papantulis/server/domain/entities"
	"github.com/satriahrh/papantulis/server/domain/repositories"
)

const boardReply = "data: {\"type\":\"text\",\"x\":40,\"y\":40,\"content\":\"Cells\",\"speakAloud\":\"Cells\"}\n\n" +
	"data: {\"type\":\"line\",\"x1\":40,\"y1\":90,\"x2\":600,\"y2\":90,\"thicknessClass\":\"m\"}\n\n" +
	"data: [DONE]\n\n"

func newTestBoardService(t *testing.T, source repositories.StreamSource) (*BoardService, *memory.BoardRepository) {
	repo := memory.NewBoardRepository()
	language := NewLanguageSetting()
	if _, err := language.Set("fr-FR"); err != nil {
		t.Fatalf("Set language failed: %v", err)
	}
	service := NewBoardService(
		repo,
		MockRenderer{},
		&MockImageSearch{Err: domain.ErrNotFound},
		MockUploader{},
		func(repositories.StrokeStore) repositories.Snapshotter { return MockSnapshotter{} },
		source,
		language,
		DefaultBoardConfig(),
		zaptest.NewLogger(t),
	)
	return service, repo
}

func pen(id string, x, y float64) entities.Stroke {
	return entities.Stroke{
		ID:   id,
		Tool: entities.StrokeToolPen,
		Points: []entities.Point{
			{X: x, Y: y},
			{X: x + 20, Y: y + 20},
		},
	}
}

func TestBoardService_CreateAndGet(t *testing.T) {
	service, _ := newTestBoardService(t, staticSource{})
	ctx := context.Background()

	created, err := service.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Language != "fr_FR" {
		t.Errorf("Expected the current language, got %s", created.Language)
	}

	got, err := service.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("Expected %s, got %s", created.ID, got.ID)
	}

	if _, err := service.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestBoardSession_IngestPublishesAndSaves(t *testing.T) {
	service, repo := newTestBoardService(t, staticSource{body: boardReply})
	ctx := context.Background()

	created, err := service.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	peers := &MockPeers{}
	session, err := service.Open(ctx, created.ID, peers)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer service.Release(created.ID)

	summary, err := session.Ingest(ctx, validRequest())
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if summary.Elements != 2 {
		t.Errorf("Expected 2 elements, got %d", summary.Elements)
	}
	if len(peers.ops()) == 0 {
		t.Error("Expected mutations to be published")
	}

	stored, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(stored.Elements) != 2 {
		t.Errorf("Expected 2 persisted elements, got %d", len(stored.Elements))
	}

	live, err := service.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(live.Elements) != 2 {
		t.Errorf("Expected live content, got %d elements", len(live.Elements))
	}
}

func TestBoardSession_IngestRejectsInvalidRequest(t *testing.T) {
	service, _ := newTestBoardService(t, staticSource{body: boardReply})
	ctx := context.Background()

	created, _ := service.Create(ctx)
	session, err := service.Open(ctx, created.ID, &MockPeers{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer service.Release(created.ID)

	if _, err := session.Ingest(ctx, repositories.StreamRequest{SessionID: "s"}); err == nil {
		t.Error("Expected a validation error")
	}
}

func TestBoardSession_IngestUnavailableSource(t *testing.T) {
	service, _ := newTestBoardService(t, staticSource{err: errQuota})
	ctx := context.Background()

	created, _ := service.Create(ctx)
	session, err := service.Open(ctx, created.ID, &MockPeers{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer service.Release(created.ID)

	_, err = session.Ingest(ctx, validRequest())
	if !errors.Is(err, domain.ErrStreamUnavailable) {
		t.Errorf("Expected ErrStreamUnavailable, got %v", err)
	}
}

func TestBoardSession_ClusterReplacesStrokes(t *testing.T) {
	service, repo := newTestBoardService(t, staticSource{})
	ctx := context.Background()

	created, _ := service.Create(ctx)
	peers := &MockPeers{}
	session, err := service.Open(ctx, created.ID, peers)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer service.Release(created.ID)

	for _, s := range []entities.Stroke{pen("a", 0, 0), pen("b", 30, 0), pen("far", 500, 500)} {
		if err := session.AddStroke(ctx, s); err != nil {
			t.Fatalf("AddStroke failed: %v", err)
		}
	}

	summary := session.Cluster(ctx)
	if summary.ClustersFound != 1 || summary.ClustersFailed != 0 {
		t.Errorf("Expected 1 clean cluster, got %+v", summary)
	}

	stored, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(stored.Strokes) != 1 || stored.Strokes[0].ID != "far" {
		t.Errorf("Expected only the isolated stroke to remain, got %v", stored.Strokes)
	}
	if len(stored.Elements) != 1 || stored.Elements[0].Kind != entities.CanvasElementImage {
		t.Errorf("Expected 1 image element, got %v", stored.Elements)
	}

	if ops := peers.ops(); len(ops) != 2 || ops[0] != entities.MutationAdd || ops[1] != entities.MutationRemoveStrokes {
		t.Fatalf("Expected add then remove_strokes to be published, got %v", ops)
	}
	if removed := peers.removedStrokes(); len(removed) != 2 || removed[0] != "a" || removed[1] != "b" {
		t.Errorf("Expected strokes [a b] to be published as removed, got %v", removed)
	}
}

func TestBoardSession_Clear(t *testing.T) {
	service, repo := newTestBoardService(t, staticSource{body: boardReply})
	ctx := context.Background()

	created, _ := service.Create(ctx)
	peers := &MockPeers{}
	session, err := service.Open(ctx, created.ID, peers)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer service.Release(created.ID)

	if _, err := session.Ingest(ctx, validRequest()); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	session.Clear(ctx)

	stored, _ := repo.GetByID(ctx, created.ID)
	if len(stored.Elements) != 0 {
		t.Errorf("Expected an empty board, got %d elements", len(stored.Elements))
	}
	ops := peers.ops()
	if ops[len(ops)-1] != entities.MutationClear {
		t.Errorf("Expected a clear mutation last, got %v", ops)
	}
}

func TestBoardService_SharedSessionAndRelease(t *testing.T) {
	service, repo := newTestBoardService(t, staticSource{})
	ctx := context.Background()

	created, _ := service.Create(ctx)
	first, err := service.Open(ctx, created.ID, &MockPeers{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	second, err := service.Open(ctx, created.ID, &MockPeers{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if first != second {
		t.Error("Expected both callers to share one session")
	}

	if err := first.AddStroke(ctx, pen("s1", 0, 0)); err != nil {
		t.Fatalf("AddStroke failed: %v", err)
	}

	service.Release(created.ID)
	if stored, _ := repo.GetByID(ctx, created.ID); len(stored.Strokes) != 0 {
		t.Error("Expected no save while a reference is still held")
	}

	service.Release(created.ID)
	stored, _ := repo.GetByID(ctx, created.ID)
	if len(stored.Strokes) != 1 {
		t.Errorf("Expected the stroke to be saved on the last release, got %d", len(stored.Strokes))
	}
}

func TestBoardService_OpenArchived(t *testing.T) {
	service, repo := newTestBoardService(t, staticSource{})
	ctx := context.Background()

	created, _ := service.Create(ctx)
	if _, err := repo.ArchiveIdle(ctx, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("ArchiveIdle failed: %v", err)
	}

	if _, err := service.Open(ctx, created.ID, &MockPeers{}); !errors.Is(err, ErrBoardArchived) {
		t.Errorf("Expected ErrBoardArchived, got %v", err)
	}
}

func TestBoardService_LatestOpenReceivesMutations(t *testing.T) {
	service, _ := newTestBoardService(t, staticSource{})
	ctx := context.Background()

	created, _ := service.Create(ctx)
	oldRoom, newRoom := &MockPeers{}, &MockPeers{}

	session, err := service.Open(ctx, created.ID, oldRoom)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := service.Open(ctx, created.ID, newRoom); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	service.Release(created.ID)
	defer service.Release(created.ID)

	for _, s := range []entities.Stroke{pen("a", 0, 0), pen("b", 30, 0)} {
		if err := session.AddStroke(ctx, s); err != nil {
			t.Fatalf("AddStroke failed: %v", err)
		}
	}
	session.Cluster(ctx)

	if ops := oldRoom.ops(); len(ops) != 0 {
		t.Errorf("Expected nothing for the released room, got %v", ops)
	}
	if ops := newRoom.ops(); len(ops) != 2 || ops[0] != entities.MutationAdd || ops[1] != entities.MutationRemoveStrokes {
		t.Errorf("Expected add then remove_strokes for the current room, got %v", ops)
	}
}

type slowSaveRepository struct {
	*memory.BoardRepository
	saving  chan struct{}
	proceed chan struct{}
}

func (r *slowSaveRepository) Update(ctx context.Context, b *entities.Board) error {
	close(r.saving)
	<-r.proceed
	return r.BoardRepository.Update(ctx, b)
}

func TestBoardService_OpenWaitsForClosingSave(t *testing.T) {
	repo := &slowSaveRepository{
		BoardRepository: memory.NewBoardRepository(),
		saving:          make(chan struct{}),
		proceed:         make(chan struct{}),
	}
	service := NewBoardService(
		repo,
		MockRenderer{},
		&MockImageSearch{Err: domain.ErrNotFound},
		MockUploader{},
		func(repositories.StrokeStore) repositories.Snapshotter { return MockSnapshotter{} },
		staticSource{},
		NewLanguageSetting(),
		DefaultBoardConfig(),
		zaptest.NewLogger(t),
	)
	ctx := context.Background()

	created, _ := service.Create(ctx)
	session, err := service.Open(ctx, created.ID, &MockPeers{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := session.AddStroke(ctx, pen("s1", 0, 0)); err != nil {
		t.Fatalf("AddStroke failed: %v", err)
	}

	released := make(chan struct{})
	go func() {
		service.Release(created.ID)
		close(released)
	}()
	<-repo.saving

	reopened := make(chan *BoardSession, 1)
	go func() {
		s, err := service.Open(ctx, created.ID, &MockPeers{})
		if err != nil {
			t.Errorf("Open failed: %v", err)
		}
		reopened <- s
	}()

	select {
	case <-reopened:
		t.Fatal("Expected Open to wait for the closing save")
	case <-time.After(50 * time.Millisecond):
	}

	close(repo.proceed)
	<-released

	select {
	case s := <-reopened:
		if s == nil {
			t.Fatal("Expected a session")
		}
		if strokes := len(s.Snapshot().Strokes); strokes != 1 {
			t.Errorf("Expected the saved stroke after reopening, got %d", strokes)
		}
		service.Release(created.ID)
	case <-time.After(time.Second):
		t.Fatal("Expected Open to finish after the save")
	}
}
