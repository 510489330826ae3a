// Package session ties the graph store, live sync, backend client, frame
// loop and tour together around the one graph the user has open.
//
// Every state change goes through a wholesale replace of the store. The
// open graph is tracked with a generation counter so results that arrive
// after the user moved on (a slow fetch, a mutation response, a late push)
// are discarded instead of overwriting the newer graph.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/edumap/pkg/api"
	"github.com/vanderheijden86/edumap/pkg/graph"
	"github.com/vanderheijden86/edumap/pkg/livesync"
	"github.com/vanderheijden86/edumap/pkg/model"
	"github.com/vanderheijden86/edumap/pkg/render"
	"github.com/vanderheijden86/edumap/pkg/tour"
)

var (
	// ErrNoGraph is returned by operations that need an open graph.
	ErrNoGraph = errors.New("session: no graph open")
	// ErrNoUser is returned by mutations when no user id is configured.
	ErrNoUser = errors.New("session: no user id")
	// ErrEmptyText is returned when a mutation is given blank input.
	ErrEmptyText = errors.New("session: empty text")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session: closed")
)

const cacheTimeout = 5 * time.Second

// Backend is the subset of the HTTP client the session drives.
type Backend interface {
	GetGraph(ctx context.Context, graphID string) (model.Snapshot, error)
	Generate(ctx context.Context, req api.GenerateRequest) (api.GraphResult, error)
	Refine(ctx context.Context, graphID, userID, feedback string) (api.GraphResult, error)
	ExpandNode(ctx context.Context, graphID, userID, message string, previous *model.Snapshot) (api.GraphResult, error)
	AddComment(ctx context.Context, graphID, nodeID, text, userID string) (model.Snapshot, error)
	DeleteNode(ctx context.Context, graphID, nodeID, userID string) (model.Snapshot, error)
	Analyze(ctx context.Context, graphID string) (api.Analytics, error)
	Versions(ctx context.Context, graphID string) ([]model.Version, error)
	RestoreVersion(ctx context.Context, versionID string) (model.Snapshot, error)
}

// Cache stores snapshots locally for offline reopening.
type Cache interface {
	Save(ctx context.Context, graphID, title string, snap model.Snapshot) (model.Version, error)
	Latest(ctx context.Context, graphID string) (model.Snapshot, model.Version, error)
}

// Syncer owns the live push connection. *livesync.Session implements it.
type Syncer interface {
	Switch(ctx context.Context, graphID string) error
	Close() error
}

// Config wires a Session. Backend is required; everything else is
// optional.
type Config struct {
	Backend Backend
	Cache   Cache
	// NewSync builds the live connection owner; the handler it receives
	// must be installed as the connection's update handler.
	NewSync     func(onUpdate livesync.UpdateHandler) Syncer
	Loop        *render.FrameLoop
	Tour        *tour.Controller
	UserID      string
	ExportScale int
	Logger      *zap.Logger
	Now         func() time.Time
}

// DetailEvent reports a change to the open node detail view. Closed is set
// when the node disappeared from the graph.
type DetailEvent struct {
	NodeID string
	Node   model.Node
	Closed bool
}

// Session is safe for concurrent use.
type Session struct {
	cfg    Config
	logger *zap.Logger
	store  *graph.Store
	sync   Syncer

	// applyMu serialises replaces so their order matches the order in
	// which the loop and detail view observe them.
	applyMu sync.Mutex

	mu         sync.Mutex
	graphID    string
	title      string
	gen        uint64
	pushed     bool
	detailID   string
	detailOpen bool
	onDetail   func(DetailEvent)
	notice     Notice
	hasNotice  bool
	closed     bool
}

// New returns a session with nothing open.
func New(cfg Config) (*Session, error) {
	if cfg.Backend == nil {
		return nil, errors.New("session: backend is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ExportScale < 1 {
		cfg.ExportScale = render.DefaultExportScale
	}
	s := &Session{
		cfg:    cfg,
		logger: cfg.Logger,
		store:  graph.NewStore(),
	}
	if cfg.NewSync != nil {
		s.sync = cfg.NewSync(s.HandlePush)
	}
	if cfg.Tour != nil && cfg.Loop != nil {
		loop := cfg.Loop
		cfg.Tour.OnHighlight(loop.SetHighlight)
	}
	return s, nil
}

// Store exposes the graph store for read access.
func (s *Session) Store() *graph.Store { return s.store }

// GraphID returns the open graph id, or "".
func (s *Session) GraphID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graphID
}

// Title returns the open graph's title.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *Session) current() (string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graphID, s.gen
}

// begin makes graphID the open graph: it bumps the generation, closes the
// detail view and clears the store.
func (s *Session) begin(graphID, title string) (uint64, error) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	s.gen++
	gen := s.gen
	s.graphID = graphID
	s.title = title
	s.pushed = false
	closedDetail := s.detailOpen
	detailID := s.detailID
	s.detailOpen = false
	s.detailID = ""
	fn := s.onDetail
	s.mu.Unlock()

	s.store.Replace(model.Snapshot{}, graph.SourceFetch)
	if s.cfg.Loop != nil {
		s.cfg.Loop.SetContent(model.Snapshot{})
	}
	if closedDetail && fn != nil {
		fn(DetailEvent{NodeID: detailID, Closed: true})
	}
	return gen, nil
}

// Open makes graphID the open graph. The snapshot fetch and the live
// connection switch run concurrently. When the fetch fails the latest cached
// snapshot is shown instead and a warning notice is raised.
func (s *Session) Open(ctx context.Context, graphID, title string) error {
	if graphID == "" {
		return ErrNoGraph
	}
	s.stopTour()
	gen, err := s.begin(graphID, title)
	if err != nil {
		return err
	}
	s.DismissNotice()

	var snap model.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap, err = s.cfg.Backend.GetGraph(gctx, graphID)
		return err
	})
	if s.sync != nil {
		// The switch uses ctx, not gctx: a failed fetch must not abort the
		// connection to a graph the cache can still show.
		g.Go(func() error {
			if err := s.sync.Switch(ctx, graphID); err != nil {
				s.logger.Warn("live sync unavailable", zap.String("graph_id", graphID), zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		if s.openFromCache(ctx, gen, graphID, title) {
			s.warn("Sin conexión con el servidor; se muestra la última copia local.", err)
			return nil
		}
		s.fail("Error cargando datos del grafo", err)
		return fmt.Errorf("open graph %s: %w", graphID, err)
	}
	s.apply(gen, snap, graph.SourceFetch, true)
	return nil
}

func (s *Session) openFromCache(ctx context.Context, gen uint64, graphID, title string) bool {
	if s.cfg.Cache == nil {
		return false
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
	defer cancel()
	snap, v, err := s.cfg.Cache.Latest(cctx, graphID)
	if err != nil {
		s.logger.Debug("no cached snapshot", zap.String("graph_id", graphID), zap.Error(err))
		return false
	}
	s.logger.Info("opened cached snapshot",
		zap.String("graph_id", graphID), zap.String("version", v.ID), zap.String("created_at", v.CreatedAt))
	return s.apply(gen, snap, graph.SourceFile, true)
}

// Load shows snap as graphID without the backend or the live connection,
// e.g. a snapshot read from disk. It is not cached.
func (s *Session) Load(graphID, title string, snap model.Snapshot) error {
	if graphID == "" {
		return ErrNoGraph
	}
	if err := snap.Validate(); err != nil {
		return err
	}
	s.stopTour()
	gen, err := s.begin(graphID, title)
	if err != nil {
		return err
	}
	s.DismissNotice()
	s.apply(gen, snap, graph.SourceFile, false)
	return nil
}

// HandlePush applies a snapshot delivered by the live connection. It is
// the update handler given to Config.NewSync.
func (s *Session) HandlePush(graphID string, snap model.Snapshot) {
	open, gen := s.current()
	if graphID != open {
		s.logger.Debug("push for a graph that is not open", zap.String("graph_id", graphID))
		return
	}
	s.apply(gen, snap, graph.SourcePush, false)
}

// apply replaces the store with snap when gen is still current, then feeds
// the frame loop, re-resolves the detail view and caches the snapshot.
// With skipIfPushed a push that already landed for this generation wins.
func (s *Session) apply(gen uint64, snap model.Snapshot, src graph.Source, skipIfPushed bool) bool {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		s.logger.Debug("dropping stale snapshot", zap.String("source", string(src)))
		return false
	}
	if skipIfPushed && s.pushed {
		s.mu.Unlock()
		s.logger.Debug("push already newer than snapshot", zap.String("source", string(src)))
		return false
	}
	if src == graph.SourcePush {
		s.pushed = true
	}
	graphID, title := s.graphID, s.title
	s.mu.Unlock()

	if dangling := snap.DanglingEdges(); len(dangling) > 0 {
		s.logger.Debug("snapshot has dangling edges", zap.Int("count", len(dangling)))
	}
	res := s.store.Replace(snap, src)
	if len(res.Dropped) > 0 {
		s.logger.Info("optimistic comments not in snapshot", zap.Int("dropped", len(res.Dropped)))
	}
	if s.cfg.Loop != nil {
		s.cfg.Loop.SetContent(s.store.Snapshot())
	}
	s.reconcileDetail()

	if s.cfg.Cache != nil && src != graph.SourceFile {
		ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
		if _, err := s.cfg.Cache.Save(ctx, graphID, title, snap); err != nil {
			s.logger.Warn("cache snapshot", zap.String("graph_id", graphID), zap.Error(err))
		}
		cancel()
	}
	return true
}

// OnDetail registers the detail view observer. fn must not call Open,
// Close or any mutation.
func (s *Session) OnDetail(fn func(DetailEvent)) {
	s.mu.Lock()
	s.onDetail = fn
	s.mu.Unlock()
}

// OpenDetail opens the detail view on nodeID.
func (s *Session) OpenDetail(nodeID string) (model.Node, error) {
	n, ok := s.store.FindNode(nodeID)
	if !ok {
		return model.Node{}, graph.ErrNodeNotFound
	}
	s.mu.Lock()
	s.detailID = nodeID
	s.detailOpen = true
	s.mu.Unlock()
	return n, nil
}

// OpenDetailAt opens the detail view on the node under screen point
// (sx, sy), as a click on the canvas would.
func (s *Session) OpenDetailAt(sx, sy float64) (model.Node, error) {
	if s.cfg.Loop == nil {
		return model.Node{}, graph.ErrNodeNotFound
	}
	id, ok := s.cfg.Loop.Engine.HitTestScreen(sx, sy)
	if !ok {
		return model.Node{}, graph.ErrNodeNotFound
	}
	return s.OpenDetail(id)
}

// CloseDetail closes the detail view.
func (s *Session) CloseDetail() {
	s.mu.Lock()
	s.detailOpen = false
	s.detailID = ""
	s.mu.Unlock()
}

// Detail returns the node shown in the detail view, resolved against the
// current snapshot.
func (s *Session) Detail() (model.Node, bool) {
	s.mu.Lock()
	id, open := s.detailID, s.detailOpen
	s.mu.Unlock()
	if !open {
		return model.Node{}, false
	}
	return s.store.FindNode(id)
}

// reconcileDetail re-resolves the detail node: it closes the view when the
// node is gone and refreshes it otherwise.
func (s *Session) reconcileDetail() {
	s.mu.Lock()
	id, open, fn := s.detailID, s.detailOpen, s.onDetail
	s.mu.Unlock()
	if !open {
		return
	}

	n, ok := s.store.FindNode(id)
	ev := DetailEvent{NodeID: id, Node: n}
	if !ok {
		s.mu.Lock()
		if s.detailID == id {
			s.detailOpen = false
			s.detailID = ""
		}
		s.mu.Unlock()
		ev = DetailEvent{NodeID: id, Closed: true}
	}
	if fn != nil {
		fn(ev)
	}
}

// StartTour narrates the open graph. It returns false when a tour is
// already running, the graph is empty or no tour controller is configured.
func (s *Session) StartTour() bool {
	if s.cfg.Tour == nil {
		return false
	}
	return s.cfg.Tour.Start(s.store.Snapshot())
}

// StopTour stops a running tour.
func (s *Session) StopTour() { s.stopTour() }

func (s *Session) stopTour() {
	if s.cfg.Tour != nil {
		s.cfg.Tour.Stop()
	}
}

// Close stops the tour, closes the live connection and ignores any result
// still in flight.
func (s *Session) Close() error {
	s.stopTour()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.gen++
	s.mu.Unlock()
	if s.sync != nil {
		return s.sync.Close()
	}
	return nil
}
