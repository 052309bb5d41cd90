package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nidstore/internal/chronicle"
	"github.com/roach88/nidstore/internal/ident"
	"github.com/roach88/nidstore/internal/nid"
	"github.com/roach88/nidstore/internal/search"
	"github.com/roach88/nidstore/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *MemoryBackend) {
	t.Helper()
	b := NewMemoryBackend()
	s := New(b.Opener(), append([]Option{WithLogger(discardLogger())}, opts...)...)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s, b
}

func TestStore_LifecycleMisuse(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend().Opener(), WithLogger(discardLogger()))

	_, err := s.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNotRunning)
	_, err = s.NidForUUIDs(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotRunning)
	_, err = s.Merge(ctx, 1, nid.None, nid.None, testutil.Concept(1, 1))
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.ErrorIs(t, s.ForEach(ctx, func([]byte, nid.Nid) error { return nil }), ErrNotRunning)
	_, err = s.WriteSequence(ctx)
	assert.ErrorIs(t, err, ErrNotRunning)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Start(ctx), ErrClosed)
	assert.False(t, s.Running())
}

func TestStore_StartStopIdempotent(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	s := New(b.Opener(), WithLogger(discardLogger()))
	defer s.Close()

	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx))
	assert.Equal(t, int64(1), b.Opens())
	assert.True(t, s.Running())

	_, err := s.Merge(ctx, 42, nid.None, nid.None, testutil.Concept(1, 10))
	require.NoError(t, err)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.False(t, s.Running())

	require.NoError(t, s.Start(ctx))
	assert.Equal(t, int64(2), b.Opens())

	data, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, testutil.Concept(1, 10), data)
}

func TestStore_StartOpenError(t *testing.T) {
	boom := errors.New("boom")
	s := New(func(context.Context) (Backend, error) { return nil, boom }, WithLogger(discardLogger()))

	err := s.Start(context.Background())
	require.ErrorIs(t, err, boom)
	assert.False(t, s.Running())
}

func TestStore_Name(t *testing.T) {
	s := New(NewMemoryBackend().Opener())
	assert.Equal(t, DefaultName, s.Name())

	s = New(NewMemoryBackend().Opener(), WithName("terminology"))
	assert.Equal(t, "terminology", s.Name())
}

func TestStore_CancellationScenario(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	const (
		n  nid.Nid = 42
		s1 nid.Nid = 101
		s2 nid.Nid = 102
		s3 nid.Nid = 103
	)

	_, err := s.Merge(ctx, n, nid.None, nid.None, testutil.Concept(1, s2))
	require.NoError(t, err)
	merged, err := s.Merge(ctx, n, nid.None, nid.None, testutil.Concept(1, s1))
	require.NoError(t, err)
	assert.Equal(t, testutil.Concept(1, s1, s2), merged)

	s.AddCanceledStampNid(s1)
	assert.True(t, s.IsCanceledStampNid(s1))

	merged, err = s.Merge(ctx, n, nid.None, nid.None, testutil.Concept(1, s3))
	require.NoError(t, err)
	assert.Equal(t, testutil.Concept(1, s2, s3), merged)

	stored, err := s.Get(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, merged, stored)
}

func TestStore_ResetCaches(t *testing.T) {
	s, _ := newTestStore(t)

	s.AddCanceledStampNid(7)
	s.ResetCaches()
	assert.False(t, s.IsCanceledStampNid(7))
}

func TestStore_SharedCanceledStamps(t *testing.T) {
	s, _ := newTestStore(t)
	other := New(NewMemoryBackend().Opener(), WithCanceledStamps(s.canceled))

	s.AddCanceledStampNid(9)
	assert.True(t, other.IsCanceledStampNid(9))
}

func TestStore_MergeRejectsCorruptInput(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Merge(ctx, 42, nid.None, nid.None, testutil.Concept(1, 10))
	require.NoError(t, err)

	corrupt := testutil.Concept(1, 20)
	corrupt[3] = 9 // declared entry count no longer matches
	_, err = s.Merge(ctx, 42, nid.None, nid.None, corrupt)
	require.Error(t, err)
	assert.True(t, chronicle.IsDataCorruption(err))

	stored, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, testutil.Concept(1, 10), stored)

	seq, err := s.WriteSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
}

func TestStore_MergeRejectsUnknownEncoding(t *testing.T) {
	s, _ := newTestStore(t)

	data := testutil.Concept(1, 10)
	data[9] = 2 // format version byte of the header
	_, err := s.Merge(context.Background(), 42, nid.None, nid.None, data)
	require.Error(t, err)
	assert.True(t, chronicle.IsUnsupportedEncoding(err))
}

func TestStore_MergeKindMismatch(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Merge(ctx, 42, nid.None, nid.None, testutil.Concept(1, 10))
	require.NoError(t, err)

	_, err = s.Merge(ctx, 42, 100, 1, semantic(1, 10))
	require.Error(t, err)
	assert.True(t, chronicle.IsDataCorruption(err))
}

func TestStore_Identity(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	u1, u2, u3, u4 := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	first, err := s.NidForUUIDs(ctx, u1)
	require.NoError(t, err)
	again, err := s.NidForUUIDs(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	pair, err := s.NidForPublicID(ctx, ident.PublicID{u2, u3})
	require.NoError(t, err)
	assert.NotEqual(t, first, pair)
	n2, err := s.NidForUUIDs(ctx, u2)
	require.NoError(t, err)
	n3, err := s.NidForUUIDs(ctx, u3)
	require.NoError(t, err)
	assert.Equal(t, pair, n2)
	assert.Equal(t, pair, n3)

	_, err = s.NidForUUIDs(ctx, u1, u2, u4)
	require.Error(t, err)
	assert.True(t, ident.IsIdentityConflict(err))

	_, err = s.NidForUUIDs(ctx)
	assert.True(t, ident.IsEmptyIdentity(err))
}

func TestStore_NidsResumeAfterRestart(t *testing.T) {
	ctx := context.Background()
	s := New(SQLiteOpener(filepath.Join(t.TempDir(), "test.db")), WithLogger(discardLogger()))
	defer s.Close()

	require.NoError(t, s.Start(ctx))
	first, err := s.NidForUUIDs(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, nid.First, first)

	_, err = s.Merge(ctx, first+10, nid.None, nid.None, testutil.Concept(1, 1))
	require.NoError(t, err)
	require.NoError(t, s.Stop())

	require.NoError(t, s.Start(ctx))
	next, err := s.NidForUUIDs(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, first+11, next)

	seq, err := s.WriteSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
}

func TestStore_CategoryQueries(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	const (
		pattern   nid.Nid = 100
		component nid.Nid = 1
	)

	_, err := s.Merge(ctx, component, pattern, component, testutil.Concept(1, 5))
	require.NoError(t, err)
	_, err = s.Merge(ctx, 11, pattern, component, semantic(1, 5))
	require.NoError(t, err)
	_, err = s.Merge(ctx, 12, pattern, 2, semantic(2, 5))
	require.NoError(t, err)

	ofPattern, err := s.SemanticNidsOfPattern(ctx, pattern)
	require.NoError(t, err)
	assert.ElementsMatch(t, []nid.Nid{11, 12}, ofPattern)

	forComponent, err := s.SemanticNidsForComponent(ctx, component)
	require.NoError(t, err)
	assert.Equal(t, []nid.Nid{11}, forComponent)

	both, err := s.SemanticNidsForComponentOfPattern(ctx, 2, pattern)
	require.NoError(t, err)
	assert.Equal(t, []nid.Nid{12}, both)

	var concepts, semantics, patterns []nid.Nid
	require.NoError(t, s.ForEachConceptNid(ctx, func(n nid.Nid) error {
		concepts = append(concepts, n)
		return nil
	}))
	require.NoError(t, s.ForEachSemanticNid(ctx, func(n nid.Nid) error {
		semantics = append(semantics, n)
		return nil
	}))
	require.NoError(t, s.ForEachPatternNid(ctx, func(n nid.Nid) error {
		patterns = append(patterns, n)
		return nil
	}))
	assert.Equal(t, []nid.Nid{component}, concepts)
	assert.ElementsMatch(t, []nid.Nid{11, 12}, semantics)
	assert.Empty(t, patterns)
}

func TestStore_ForEachParallel(t *testing.T) {
	s, _ := newTestStore(t, WithWorkers(4))
	ctx := context.Background()
	const count = 100

	for i := 0; i < count; i++ {
		_, err := s.Merge(ctx, nid.First+nid.Nid(i), nid.None, nid.None, testutil.Concept(byte(i), 1))
		require.NoError(t, err)
	}

	var visits atomic.Int64
	var mu sync.Mutex
	seen := map[nid.Nid]bool{}
	err := s.ForEachParallel(ctx, func(data []byte, n nid.Nid) error {
		visits.Add(1)
		mu.Lock()
		seen[n] = true
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(count), visits.Load())
	assert.Len(t, seen, count)
}

func TestStore_ForEachParallelError(t *testing.T) {
	s, _ := newTestStore(t, WithWorkers(2))
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := s.Merge(ctx, nid.Nid(i), nid.None, nid.None, testutil.Concept(1, 1))
		require.NoError(t, err)
	}

	boom := errors.New("boom")
	err := s.ForEachParallel(ctx, func(_ []byte, n nid.Nid) error {
		if n == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestStore_VisitorMayCallBack(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.Merge(ctx, 1, nid.None, nid.None, testutil.Concept(1, 1))
	require.NoError(t, err)

	err = s.ForEach(ctx, func(data []byte, n nid.Nid) error {
		_, err := s.Merge(ctx, n, nid.None, nid.None, testutil.Concept(1, 2))
		return err
	})
	require.NoError(t, err)

	stored, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, testutil.Concept(1, 1, 2), stored)
}

func TestStore_WriteSequenceIncreases(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	const writers = 8
	const writes = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			last := int64(-1)
			for i := 0; i < writes; i++ {
				_, err := s.Merge(ctx, nid.Nid(w), nid.None, nid.None, testutil.Concept(1, nid.Nid(i)))
				assert.NoError(t, err)
				seq, err := s.WriteSequence(ctx)
				assert.NoError(t, err)
				assert.Greater(t, seq, last)
				last = seq
			}
		}(w)
	}
	wg.Wait()

	seq, err := s.WriteSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(writers*writes), seq)
}

func TestStore_StopWaitsForInFlight(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		_, err := s.Merge(ctx, nid.Nid(i), nid.None, nid.None, testutil.Concept(1, 1))
		require.NoError(t, err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	result := make(chan error, 1)
	var once sync.Once
	go func() {
		result <- s.ForEach(ctx, func([]byte, nid.Nid) error {
			once.Do(func() { close(entered) })
			<-release
			return nil
		})
	}()
	<-entered

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop() }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while an operation was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-stopped)
	if err := <-result; err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}

	_, err := s.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNotRunning)
}

type failingSearcher struct{ err error }

func (f failingSearcher) Search(context.Context, string, int) ([]search.Result, error) {
	return nil, f.err
}

func TestStore_Search(t *testing.T) {
	ctx := context.Background()

	s, _ := newTestStore(t)
	_, err := s.Search(ctx, "anything", 5)
	assert.ErrorIs(t, err, ErrNoSearcher)

	ix := search.NewIndex()
	ix.Add(search.Document{Nid: 11, ReferencedComponentNid: 1, PatternNid: 100, Text: "chronic kidney disease"})
	ix.Add(search.Document{Nid: 12, ReferencedComponentNid: 2, PatternNid: 100, Text: "acute kidney injury"})
	s, _ = newTestStore(t, WithSearcher(ix))

	results, err := s.Search(ctx, "chronic kidney", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, nid.Nid(11), results[0].Nid)
	assert.Equal(t, nid.Nid(1), results[0].ReferencedComponentNid)

	boom := errors.New("index offline")
	s, _ = newTestStore(t, WithSearcher(failingSearcher{err: boom}))
	_, err = s.Search(ctx, "kidney", 5)
	assert.ErrorIs(t, err, boom)
}
