package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/domain/entities"
	"github.com/satriahrh/papantulis/server/domain/repositories"
	"github.com/satriahrh/papantulis/server/internal/board"
	"github.com/satriahrh/papantulis/server/internal/canvas"
	"github.com/satriahrh/papantulis/server/internal/cluster"
)

// ErrBoardArchived is returned when a live session is requested for an archived board
var ErrBoardArchived = errors.New("board is archived")

// BoardPeers is the outbound side of a live board: everything connected to
// it receives mutations, narration requests and notifications
type BoardPeers interface {
	repositories.AudioPlayer
	repositories.Notifier
	Publish(mutation entities.Mutation)
}

// SnapshotterFactory builds the rasterizer for one board's strokes
type SnapshotterFactory func(strokes repositories.StrokeStore) repositories.Snapshotter

// BoardConfig configures every live board session
type BoardConfig struct {
	Pipeline board.PipelineConfig
	Cluster  cluster.Config
	// SaveTimeout bounds a single snapshot write
	SaveTimeout time.Duration
}

// DefaultBoardConfig returns the stock board configuration
func DefaultBoardConfig() BoardConfig {
	return BoardConfig{
		Pipeline:    board.PipelineConfig{Processor: board.DefaultProcessorConfig()},
		Cluster:     cluster.DefaultConfig(),
		SaveTimeout: 5 * time.Second,
	}
}

// BoardService owns board persistence and the live sessions of open boards
type BoardService struct {
	repo        repositories.BoardRepository
	renderer    repositories.Renderer
	search      repositories.ImageSearch
	uploader    repositories.SnapshotUploader
	snapshotter SnapshotterFactory
	source      repositories.StreamSource
	language    *LanguageSetting
	config      BoardConfig
	logger      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*BoardSession
	closing  map[string]chan struct{}
}

// NewBoardService creates a new board service
func NewBoardService(
	repo repositories.BoardRepository,
	renderer repositories.Renderer,
	search repositories.ImageSearch,
	uploader repositories.SnapshotUploader,
	snapshotter SnapshotterFactory,
	source repositories.StreamSource,
	language *LanguageSetting,
	config BoardConfig,
	logger *zap.Logger,
) *BoardService {
	if config.SaveTimeout <= 0 {
		config.SaveTimeout = DefaultBoardConfig().SaveTimeout
	}
	return &BoardService{
		repo:        repo,
		renderer:    renderer,
		search:      search,
		uploader:    uploader,
		snapshotter: snapshotter,
		source:      source,
		language:    language,
		config:      config,
		logger:      logger,
		sessions:    make(map[string]*BoardSession),
		closing:     make(map[string]chan struct{}),
	}
}

// Create persists a new empty board
func (s *BoardService) Create(ctx context.Context) (*entities.Board, error) {
	b := entities.NewBoard()
	b.Language = s.language.Get()
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create board: %w", err)
	}
	s.logger.Info("Board created", zap.String("boardID", b.ID))
	return b, nil
}

// Get returns the board, with the live content when a session is open
func (s *BoardService) Get(ctx context.Context, id string) (*entities.Board, error) {
	s.mu.Lock()
	session, live := s.sessions[id]
	s.mu.Unlock()
	if live {
		return session.Snapshot(), nil
	}
	return s.repo.GetByID(ctx, id)
}

// Open returns the live session of a board, loading it on first use. Every
// Open must be paired with a Release. The session talks to the peers of the
// latest Open, so a room replacing one that is still closing takes it over.
func (s *BoardService) Open(ctx context.Context, id string, peers BoardPeers) (*BoardSession, error) {
	for {
		s.mu.Lock()
		if session, ok := s.sessions[id]; ok {
			session.refs++
			session.peers.set(peers)
			s.mu.Unlock()
			return session, nil
		}
		closing, ok := s.closing[id]
		s.mu.Unlock()
		if !ok {
			break
		}

		// wait for the final save so the reload sees it
		select {
		case <-closing:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	stored, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored.IsArchived() {
		return nil, ErrBoardArchived
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok {
		session.refs++
		session.peers.set(peers)
		return session, nil
	}

	session := s.newSession(stored, peers)
	session.refs = 1
	s.sessions[id] = session

	s.logger.Info("Board session opened",
		zap.String("boardID", id),
		zap.Int("elements", len(stored.Elements)),
		zap.Int("strokes", len(stored.Strokes)))
	return session, nil
}

// Release drops one reference to a session; the last one stops it and
// saves the board
func (s *BoardService) Release(id string) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	session.refs--
	if session.refs > 0 {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, id)
	closed := make(chan struct{})
	s.closing[id] = closed
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.closing, id)
		s.mu.Unlock()
		close(closed)
	}()

	session.Reset()
	if err := session.Save(context.Background()); err != nil {
		s.logger.Error("Failed to save board on close", zap.String("boardID", id), zap.Error(err))
	}
	s.logger.Info("Board session closed", zap.String("boardID", id))
}

func (s *BoardService) newSession(stored *entities.Board, current BoardPeers) *BoardSession {
	logger := s.logger.With(zap.String("boardID", stored.ID))
	peers := &peerSwitch{peers: current}

	store := canvas.NewStore()
	store.Load(stored)

	session := &BoardSession{
		board:       stored,
		store:       store,
		peers:       peers,
		source:      s.source,
		repo:        s.repo,
		saveTimeout: s.config.SaveTimeout,
		logger:      logger,
	}

	session.pipeline = board.NewPipeline(store, s.renderer, s.search, peers, s.config.Pipeline, logger.Named("pipeline"))
	session.replacer = cluster.NewReplacer(store, store, s.snapshotter(store), s.uploader, peers, s.config.Cluster, logger.Named("cluster"))

	store.Observe(func(m entities.Mutation) {
		session.markDirty()
		peers.Publish(m)
	})
	return session
}

// peerSwitch forwards to whichever peers opened the session last
type peerSwitch struct {
	mu    sync.RWMutex
	peers BoardPeers
}

func (p *peerSwitch) set(peers BoardPeers) {
	p.mu.Lock()
	p.peers = peers
	p.mu.Unlock()
}

func (p *peerSwitch) current() BoardPeers {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.peers
}

func (p *peerSwitch) Publish(mutation entities.Mutation) {
	p.current().Publish(mutation)
}

func (p *peerSwitch) Play(ctx context.Context, narration repositories.Narration) <-chan struct{} {
	return p.current().Play(ctx, narration)
}

func (p *peerSwitch) Notify(ctx context.Context, level, message string) {
	p.current().Notify(ctx, level, message)
}

// BoardSession is the live state of one open board
type BoardSession struct {
	board       *entities.Board
	store       *canvas.Store
	peers       *peerSwitch
	pipeline    *board.Pipeline
	replacer    *cluster.Replacer
	source      repositories.StreamSource
	repo        repositories.BoardRepository
	saveTimeout time.Duration
	logger      *zap.Logger

	refs int

	mu           sync.Mutex
	dirty        bool
	ingestCancel context.CancelFunc
	saveMu       sync.Mutex
}

// ID returns the board id
func (s *BoardSession) ID() string {
	return s.board.ID
}

func (s *BoardSession) markDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Ingest opens the generator stream for req and applies it to the board.
// A newer ingest or a clear cancels the one in progress.
func (s *BoardSession) Ingest(ctx context.Context, req repositories.StreamRequest) (board.IngestSummary, error) {
	if err := ValidateStreamRequest(req); err != nil {
		return board.IngestSummary{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.ingestCancel != nil {
		s.ingestCancel()
	}
	s.ingestCancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		cancel()
		s.ingestCancel = nil
		s.mu.Unlock()
	}()

	summary, err := s.pipeline.IngestFrom(ctx, s.source, req)
	if saveErr := s.Save(ctx); saveErr != nil {
		s.logger.Error("Failed to save board after ingest", zap.Error(saveErr))
	}
	return summary, err
}

// AddStroke records a freehand stroke
func (s *BoardSession) AddStroke(ctx context.Context, stroke entities.Stroke) error {
	if err := s.store.AddStroke(ctx, stroke); err != nil {
		return err
	}
	s.markDirty()
	return nil
}

// Cluster replaces every group of nearby pen strokes with an image
func (s *BoardSession) Cluster(ctx context.Context) cluster.Summary {
	summary := s.replacer.Run(ctx)
	if err := s.Save(ctx); err != nil {
		s.logger.Error("Failed to save board after clustering", zap.Error(err))
	}
	return summary
}

// Clear stops any ingest and narration and empties the board
func (s *BoardSession) Clear(ctx context.Context) {
	s.Reset()
	s.store.Clear(ctx)
	if err := s.Save(ctx); err != nil {
		s.logger.Error("Failed to save board after clear", zap.Error(err))
	}
}

// Reset cancels the running ingest and flushes both queues
func (s *BoardSession) Reset() {
	s.mu.Lock()
	if s.ingestCancel != nil {
		s.ingestCancel()
	}
	s.mu.Unlock()
	s.pipeline.Reset()
}

// Snapshot returns a copy of the board with its live content
func (s *BoardSession) Snapshot() *entities.Board {
	s.mu.Lock()
	b := *s.board
	s.mu.Unlock()
	s.store.SnapshotInto(&b)
	return &b
}

// Save writes the board if anything changed since the last save
func (s *BoardSession) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	dirty := s.dirty
	s.dirty = false
	s.mu.Unlock()
	if !dirty {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.saveTimeout)
	defer cancel()

	snapshot := s.Snapshot()
	snapshot.Touch()
	if err := s.repo.Update(ctx, snapshot); err != nil {
		s.markDirty()
		return fmt.Errorf("failed to save board: %w", err)
	}
	s.mu.Lock()
	s.board.UpdatedAt = snapshot.UpdatedAt
	s.mu.Unlock()
	return nil
}
