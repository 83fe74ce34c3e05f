package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/gridmind/gridmind/internal/core"
	"github.com/gridmind/gridmind/internal/events"
	"github.com/gridmind/gridmind/internal/logging"
	"github.com/gridmind/gridmind/internal/sheet"
	"github.com/gridmind/gridmind/internal/template"
	"github.com/gridmind/gridmind/internal/track"
)

// Session is one open sheet: its grid, cell states, and orchestrator.
type Session struct {
	Grid         *sheet.Grid
	Tracker      *track.Tracker
	Orchestrator *Orchestrator
}

// Service manages open sheets and their persistence. It is safe for
// concurrent use by HTTP handlers.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store      core.SheetStore
	registry   *template.Registry
	dispatcher CompletionDispatcher
	augmenter  SearchAugmenter
	bus        *events.Bus
	logger     *logging.Logger
}

// NewService wires a sheet service. store may be a memory store when
// persistence is not configured.
func NewService(
	store core.SheetStore,
	registry *template.Registry,
	dispatcher CompletionDispatcher,
	augmenter SearchAugmenter,
	bus *events.Bus,
	logger *logging.Logger,
) *Service {
	return &Service{
		sessions:   make(map[string]*Session),
		store:      store,
		registry:   registry,
		dispatcher: dispatcher,
		augmenter:  augmenter,
		bus:        bus,
		logger:     logger,
	}
}

// Create opens a new empty sheet and returns its session. A blank id gets a
// generated UUID.
func (s *Service) Create(id string, rows, cols int) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	grid := sheet.New(id, rows, cols)
	sess := s.wire(grid)

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.logger.Info("sheet created", "sheet_id", id, "rows", rows, "cols", cols)
	return sess
}

// Get returns an open session, loading it from the store when absent.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	snap, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, core.ErrNotFound("sheet", id)
	}

	sess = s.restore(snap)

	s.mu.Lock()
	// Another request may have loaded it concurrently; first one wins.
	if existing, ok := s.sessions[id]; ok {
		sess = existing
	} else {
		s.sessions[id] = sess
	}
	s.mu.Unlock()
	return sess, nil
}

// Open registers a session from an in-memory snapshot without consulting
// the store. An already-open session with the same ID is replaced.
func (s *Service) Open(snap *core.SheetSnapshot) *Session {
	sess := s.restore(snap)
	s.mu.Lock()
	s.sessions[snap.ID] = sess
	s.mu.Unlock()
	return sess
}

func (s *Service) restore(snap *core.SheetSnapshot) *Session {
	grid := sheet.FromSnapshot(snap)
	sess := s.wire(grid)
	for _, cell := range snap.Cells {
		restored := sess.Tracker.Ensure(cell.Ref, cell.Raw)
		cp := cell.Clone()
		if !cp.State.Terminal() {
			// A snapshot taken by an older build may carry transient states;
			// a restored InFlight cell would be stuck forever.
			cp.State = core.CellStateIdle
		}
		*restored = *cp
	}
	return sess
}

// List returns the IDs of open and stored sheets, deduplicated.
func (s *Service) List(ctx context.Context) ([]string, error) {
	stored, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	seen := make(map[string]bool, len(stored))
	ids := make([]string, 0, len(stored)+len(s.sessions))
	for _, id := range stored {
		seen[id] = true
		ids = append(ids, id)
	}
	for id := range s.sessions {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()
	return ids, nil
}

// Save persists a session's current snapshot, including cell results. The
// tracker hands out deep copies, so saving mid-apply neither races with job
// commits nor persists transient processing states.
func (s *Service) Save(ctx context.Context, sess *Session) error {
	snap := sess.Grid.Snapshot(sess.Tracker.Snapshot())
	return s.store.Save(ctx, snap)
}

// Delete cancels a sheet's outstanding work, closes the session, and removes
// the stored snapshot.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.Orchestrator.Close()
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	return s.store.Delete(ctx, id)
}

// Close cancels all outstanding work and releases the store.
func (s *Service) Close() error {
	s.mu.Lock()
	for _, sess := range s.sessions {
		sess.Orchestrator.Close()
	}
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
	return s.store.Close()
}

func (s *Service) wire(grid *sheet.Grid) *Session {
	tracker := track.New(grid.ID(), s.bus)
	return &Session{
		Grid:    grid,
		Tracker: tracker,
		Orchestrator: NewOrchestrator(grid, tracker, s.registry,
			s.dispatcher, s.augmenter, s.bus, s.logger),
	}
}
