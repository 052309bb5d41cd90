package store

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/nidstore/internal/canceled"
	"github.com/roach88/nidstore/internal/chronicle"
	"github.com/roach88/nidstore/internal/ident"
	"github.com/roach88/nidstore/internal/nid"
	"github.com/roach88/nidstore/internal/search"
)

// DefaultName is used when no name is configured.
const DefaultName = "nidstore"

// Store is the running store: identity resolution, merge-writes and
// traversals over a Backend.
//
// Thread-safety model:
//   - Data operations: safe from any goroutine, valid only while running
//   - Start/Stop/Close: safe from any goroutine, idempotent
//   - Visitors: may call back into the Store
//
// INVARIANTS:
//   - Merge is the only path by which stored bytes change
//   - A format error never changes stored bytes
//   - Nids allocated after a restart are above every persisted nid
type Store struct {
	name     string
	open     Opener
	logger   *slog.Logger
	workers  int
	searcher search.Searcher
	canceled *canceled.Stamps

	mu      sync.RWMutex
	current *generation
	closed  bool
}

// generation holds the state of one Start..Stop span.
type generation struct {
	backend  Backend
	registry *ident.Registry
	seq      *nid.Sequence
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithName sets the name reported by Name.
func WithName(name string) Option {
	return func(s *Store) {
		s.name = name
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithWorkers bounds ForEachParallel's concurrency.
// Default: runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(s *Store) {
		s.workers = n
	}
}

// WithSearcher sets the collaborator that answers Search.
func WithSearcher(searcher search.Searcher) Option {
	return func(s *Store) {
		s.searcher = searcher
	}
}

// WithCanceledStamps shares a canceled-stamp registry with the store.
// Default: a new, empty registry.
func WithCanceledStamps(stamps *canceled.Stamps) Option {
	return func(s *Store) {
		s.canceled = stamps
	}
}

// New creates a stopped Store over the backends produced by open.
func New(open Opener, opts ...Option) *Store {
	s := &Store{
		name:     DefaultName,
		open:     open,
		logger:   slog.Default(),
		workers:  runtime.GOMAXPROCS(0),
		canceled: canceled.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	return s
}

// Name returns the user-friendly name of the store.
func (s *Store) Name() string {
	return s.name
}

// Running reports whether the store is started.
func (s *Store) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// Start opens the backend and seeds the nid generator from the highest
// persisted nid. Starting a running store is a no-op.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.current != nil {
		return nil
	}

	backend, err := s.open(ctx)
	if err != nil {
		return fmt.Errorf("start %s: %w", s.name, err)
	}
	last, err := backend.MaxNid(ctx)
	if err != nil {
		backend.Close()
		return fmt.Errorf("start %s: %w", s.name, err)
	}

	seq := nid.NewSequenceAt(last)
	lifetime, cancel := context.WithCancel(context.Background())
	s.current = &generation{
		backend:  backend,
		registry: ident.NewRegistry(backend, seq),
		seq:      seq,
		ctx:      lifetime,
		cancel:   cancel,
	}

	s.logger.Info("store started", "name", s.name, "last_nid", last)
	return nil
}

// Stop cancels in-flight operations, waits for them to return and closes
// the backend. Stopping a stopped store is a no-op.
func (s *Store) Stop() error {
	s.mu.Lock()
	g := s.current
	s.current = nil
	s.mu.Unlock()

	return s.shutdown(g)
}

// Close stops the store permanently. Later calls return nil; every other
// operation returns ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	g := s.current
	s.current = nil
	s.closed = true
	s.mu.Unlock()

	return s.shutdown(g)
}

func (s *Store) shutdown(g *generation) error {
	if g == nil {
		return nil
	}
	g.cancel()
	g.inflight.Wait()
	if err := g.backend.Close(); err != nil {
		return fmt.Errorf("stop %s: %w", s.name, err)
	}
	s.logger.Info("store stopped", "name", s.name, "last_nid", g.seq.Current())
	return nil
}

// begin registers an in-flight operation on the current generation. The
// returned context is canceled when the caller's context is, or when the
// store stops. done must be called when the operation returns.
func (s *Store) begin(ctx context.Context) (*generation, context.Context, func(), error) {
	s.mu.RLock()
	g := s.current
	closed := s.closed
	if g != nil {
		g.inflight.Add(1)
	}
	s.mu.RUnlock()

	if g == nil {
		if closed {
			return nil, ctx, func() {}, ErrClosed
		}
		return nil, ctx, func() {}, ErrNotRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(g.ctx, cancel)
	return g, ctx, func() {
		stop()
		cancel()
		g.inflight.Done()
	}, nil
}

// NidForUUIDs resolves an identity-equivalence-class of uuids to its nid,
// allocating one if none of the uuids is known.
func (s *Store) NidForUUIDs(ctx context.Context, ids ...uuid.UUID) (nid.Nid, error) {
	g, ctx, done, err := s.begin(ctx)
	defer done()
	if err != nil {
		return nid.Unset, err
	}

	n, err := g.registry.Resolve(ctx, ids...)
	if err != nil {
		return nid.Unset, err
	}
	return n, nil
}

// NidForPublicID resolves the uuids of pid.
func (s *Store) NidForPublicID(ctx context.Context, pid ident.PublicID) (nid.Nid, error) {
	return s.NidForUUIDs(ctx, pid...)
}

// Get returns the chronicle stored for n, or nil if there is none.
func (s *Store) Get(ctx context.Context, n nid.Nid) ([]byte, error) {
	g, ctx, done, err := s.begin(ctx)
	defer done()
	if err != nil {
		return nil, err
	}
	return g.backend.Get(ctx, n)
}

// Merge merges data into the chronicle stored for n and returns the
// stored result. patternNid and referencedComponentNid index semantics;
// they are ignored for other kinds.
//
// Versions whose stamp is canceled are pruned. Format errors are detected
// before anything is written.
func (s *Store) Merge(ctx context.Context, n, patternNid, referencedComponentNid nid.Nid, data []byte) ([]byte, error) {
	g, ctx, done, err := s.begin(ctx)
	defer done()
	if err != nil {
		return nil, err
	}

	kind, err := chronicle.KindOf(data)
	if err != nil {
		return nil, fmt.Errorf("merge %s: %w", n, err)
	}
	category, _ := CategoryOf(kind)

	w := Write{
		Nid:                    n,
		Category:               category,
		PatternNid:             nid.None,
		ReferencedComponentNid: nid.None,
	}
	if category == CategorySemantic {
		w.PatternNid = patternNid
		w.ReferencedComponentNid = referencedComponentNid
	}

	merged, err := g.backend.Update(ctx, w, func(stored []byte) ([]byte, error) {
		return chronicle.Merge(stored, data, s.canceled)
	})
	if err != nil {
		return nil, fmt.Errorf("merge %s: %w", n, err)
	}

	s.logger.Debug("chronicle merged",
		"nid", n,
		"category", category,
		"bytes", len(merged))
	return merged, nil
}

// ForEach visits every stored chronicle sequentially.
func (s *Store) ForEach(ctx context.Context, fn Visitor) error {
	g, ctx, done, err := s.begin(ctx)
	defer done()
	if err != nil {
		return err
	}
	return g.backend.ForEach(ctx, fn)
}

// ForEachParallel visits every stored chronicle on up to the configured
// number of workers. Visitation order is unspecified. The first visitor
// error cancels the traversal and is returned.
func (s *Store) ForEachParallel(ctx context.Context, fn Visitor) error {
	g, ctx, done, err := s.begin(ctx)
	defer done()
	if err != nil {
		return err
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)

	scanErr := g.backend.ForEach(egctx, func(data []byte, n nid.Nid) error {
		if err := egctx.Err(); err != nil {
			return err
		}
		eg.Go(func() error {
			return fn(data, n)
		})
		return nil
	})
	if err := eg.Wait(); err != nil {
		return err
	}
	return scanErr
}

// ForEachNid visits every nid of category c.
func (s *Store) ForEachNid(ctx context.Context, c Category, fn NidVisitor) error {
	g, ctx, done, err := s.begin(ctx)
	defer done()
	if err != nil {
		return err
	}
	return g.backend.ForEachNid(ctx, c, fn)
}

// ForEachConceptNid visits every concept nid.
func (s *Store) ForEachConceptNid(ctx context.Context, fn NidVisitor) error {
	return s.ForEachNid(ctx, CategoryConcept, fn)
}

// ForEachPatternNid visits every pattern nid.
func (s *Store) ForEachPatternNid(ctx context.Context, fn NidVisitor) error {
	return s.ForEachNid(ctx, CategoryPattern, fn)
}

// ForEachSemanticNid visits every semantic nid.
func (s *Store) ForEachSemanticNid(ctx context.Context, fn NidVisitor) error {
	return s.ForEachNid(ctx, CategorySemantic, fn)
}

// ForEachStampNid visits every stamp nid.
func (s *Store) ForEachStampNid(ctx context.Context, fn NidVisitor) error {
	return s.ForEachNid(ctx, CategoryStamp, fn)
}

// ForEachSemanticOfPattern visits the semantics of pattern.
func (s *Store) ForEachSemanticOfPattern(ctx context.Context, pattern nid.Nid, fn NidVisitor) error {
	g, ctx, done, err := s.begin(ctx)
	defer done()
	if err != nil {
		return err
	}
	return g.backend.ForEachSemanticOfPattern(ctx, pattern, fn)
}

// ForEachSemanticForComponent visits the semantics that reference component.
func (s *Store) ForEachSemanticForComponent(ctx context.Context, component nid.Nid, fn NidVisitor) error {
	g, ctx, done, err := s.begin(ctx)
	defer done()
	if err != nil {
		return err
	}
	return g.backend.ForEachSemanticForComponent(ctx, component, fn)
}

// ForEachSemanticForComponentOfPattern visits the semantics of pattern
// that reference component.
func (s *Store) ForEachSemanticForComponentOfPattern(ctx context.Context, component, pattern nid.Nid, fn NidVisitor) error {
	g, ctx, done, err := s.begin(ctx)
	defer done()
	if err != nil {
		return err
	}
	return g.backend.ForEachSemanticForComponentOfPattern(ctx, component, pattern, fn)
}

// SemanticNidsOfPattern collects ForEachSemanticOfPattern.
func (s *Store) SemanticNidsOfPattern(ctx context.Context, pattern nid.Nid) ([]nid.Nid, error) {
	return collect(func(fn NidVisitor) error {
		return s.ForEachSemanticOfPattern(ctx, pattern, fn)
	})
}

// SemanticNidsForComponent collects ForEachSemanticForComponent.
func (s *Store) SemanticNidsForComponent(ctx context.Context, component nid.Nid) ([]nid.Nid, error) {
	return collect(func(fn NidVisitor) error {
		return s.ForEachSemanticForComponent(ctx, component, fn)
	})
}

// SemanticNidsForComponentOfPattern collects
// ForEachSemanticForComponentOfPattern.
func (s *Store) SemanticNidsForComponentOfPattern(ctx context.Context, component, pattern nid.Nid) ([]nid.Nid, error) {
	return collect(func(fn NidVisitor) error {
		return s.ForEachSemanticForComponentOfPattern(ctx, component, pattern, fn)
	})
}

func collect(walk func(NidVisitor) error) ([]nid.Nid, error) {
	var out []nid.Nid
	err := walk(func(n nid.Nid) error {
		out = append(out, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Search returns up to maxResults ranked matches for query from the
// configured searcher. Searcher errors are returned unchanged.
func (s *Store) Search(ctx context.Context, query string, maxResults int) ([]search.Result, error) {
	_, ctx, done, err := s.begin(ctx)
	defer done()
	if err != nil {
		return nil, err
	}
	if s.searcher == nil {
		return nil, ErrNoSearcher
	}
	return s.searcher.Search(ctx, query, maxResults)
}

// WriteSequence returns the current write sequence. It increases with
// every successful Merge and never decreases.
func (s *Store) WriteSequence(ctx context.Context) (int64, error) {
	g, ctx, done, err := s.begin(ctx)
	defer done()
	if err != nil {
		return 0, err
	}
	return g.backend.WriteSequence(ctx)
}

// AddCanceledStampNid marks stampNid canceled. Merges that start after it
// returns prune versions written under the stamp.
func (s *Store) AddCanceledStampNid(stampNid nid.Nid) {
	s.canceled.Add(stampNid)
	s.logger.Debug("stamp canceled", "stamp", stampNid)
}

// IsCanceledStampNid reports whether stampNid is canceled.
func (s *Store) IsCanceledStampNid(stampNid nid.Nid) bool {
	return s.canceled.Contains(stampNid)
}

// ResetCaches clears the canceled-stamp registry.
func (s *Store) ResetCaches() {
	s.canceled.Reset()
	s.logger.Debug("caches reset", "name", s.name)
}
