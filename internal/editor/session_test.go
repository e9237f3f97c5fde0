package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	Title string
	Body  string
}

// memStore is a compare-and-swap in-memory store for notes.
type memStore struct {
	mu      sync.Mutex
	doc     note
	version int64
	saves   int
	failN   int // fail the next N saves
	delay   time.Duration
	err     error
}

func (s *memStore) saver() Saver[note] {
	return func(ctx context.Context, snapshot note, base int64) (int64, error) {
		s.mu.Lock()
		delay := s.delay
		s.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.saves++
		if s.failN > 0 {
			s.failN--
			if s.err != nil {
				return 0, s.err
			}
			return 0, errors.New("store unavailable")
		}
		if base != s.version {
			return 0, fmt.Errorf("stored version %d, got %d: %w", s.version, base, ErrVersionConflict)
		}
		s.doc = snapshot
		s.version++
		return s.version, nil
	}
}

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *memStore) stored() (note, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc, s.version
}

func setTitle(v string) Mutation[note] {
	return Mutation[note]{Name: "set-title", Apply: func(n *note) { n.Title = v }}
}

func setBody(v string) Mutation[note] {
	return Mutation[note]{Name: "set-body", Apply: func(n *note) { n.Body = v }}
}

const quiet = 20 * time.Millisecond

func newTestSession(t *testing.T, store *memStore, opts ...Option[note]) *Session[note] {
	t.Helper()
	opts = append([]Option[note]{WithQuietPeriod[note](quiet)}, opts...)
	s := NewSession(store.saver(), opts...)
	t.Cleanup(s.Close)
	return s
}

func TestSessionCoalescesBurstIntoSingleSave(t *testing.T) {
	store := &memStore{version: 3}
	s := newTestSession(t, store)
	require.NoError(t, s.Seed(note{Title: "draft"}, 3))

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Mutate(setTitle(fmt.Sprintf("title %d", i))))
	}
	require.NoError(t, s.Mutate(setBody("final body")))
	assert.True(t, s.Dirty())

	require.Eventually(t, func() bool {
		return store.saveCount() == 1 && !s.Dirty()
	}, time.Second, time.Millisecond)

	doc, version := store.stored()
	assert.Equal(t, "title 9", doc.Title)
	assert.Equal(t, "final body", doc.Body)
	assert.Equal(t, int64(4), version)
	assert.Equal(t, 1, store.saveCount())
	assert.Equal(t, StateIdle, s.State())
}

func TestSessionSeedNeverArmsTimer(t *testing.T) {
	store := &memStore{}
	s := newTestSession(t, store)
	require.NoError(t, s.Seed(note{Title: "loaded"}, 1))
	require.NoError(t, s.Seed(note{Title: "reloaded"}, 2))

	time.Sleep(4 * quiet)
	assert.Zero(t, store.saveCount())
	assert.False(t, s.Dirty())
	assert.Equal(t, StateIdle, s.State())
}

func TestSessionMutateBeforeSeed(t *testing.T) {
	s := newTestSession(t, &memStore{})
	assert.ErrorIs(t, s.Mutate(setTitle("x")), ErrNotLoaded)
	assert.Equal(t, StateLoading, s.State())
}

func TestSessionCloseCancelsPendingSave(t *testing.T) {
	store := &memStore{}
	s := newTestSession(t, store)
	require.NoError(t, s.Seed(note{}, 0))
	require.NoError(t, s.Mutate(setTitle("never persisted")))

	s.Close()
	time.Sleep(4 * quiet)
	assert.Zero(t, store.saveCount())
	assert.ErrorIs(t, s.Mutate(setTitle("after close")), ErrClosed)
}

func TestSessionVersionConflictSurfacedWithoutRetry(t *testing.T) {
	store := &memStore{version: 7}
	errs := make(chan error, 1)
	s := newTestSession(t, store, WithOnError[note](func(err error) { errs <- err }))
	// Seed with a stale base version so the CAS fails.
	require.NoError(t, s.Seed(note{}, 5))
	require.NoError(t, s.Mutate(setTitle("stale edit")))

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrVersionConflict)
	case <-time.After(time.Second):
		t.Fatal("conflict never reported")
	}

	time.Sleep(4 * quiet)
	assert.Equal(t, 1, store.saveCount(), "conflicts must not auto-retry")
	assert.True(t, s.Dirty())
	assert.Equal(t, StateIdle, s.State())
}

func TestSessionSaveFailureRetriesOnce(t *testing.T) {
	store := &memStore{failN: 5}
	var mu sync.Mutex
	var reported []error
	s := newTestSession(t, store, WithOnError[note](func(err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	}))
	require.NoError(t, s.Seed(note{}, 0))
	require.NoError(t, s.Mutate(setTitle("kept dirty")))

	require.Eventually(t, func() bool { return store.saveCount() == 2 }, time.Second, time.Millisecond)
	time.Sleep(4 * quiet)
	assert.Equal(t, 2, store.saveCount(), "one automatic retry per failure streak")
	assert.True(t, s.Dirty())

	mu.Lock()
	assert.Len(t, reported, 2)
	mu.Unlock()

	// The next mutation starts a fresh attempt.
	store.mu.Lock()
	store.failN = 0
	store.mu.Unlock()
	require.NoError(t, s.Mutate(setTitle("recovered")))
	require.Eventually(t, func() bool { return !s.Dirty() }, time.Second, time.Millisecond)
	doc, _ := store.stored()
	assert.Equal(t, "recovered", doc.Title)
}

func TestSessionFlush(t *testing.T) {
	store := &memStore{}
	s := newTestSession(t, store)
	require.NoError(t, s.Seed(note{}, 0))

	require.NoError(t, s.Flush(context.Background()), "clean flush is a no-op")
	assert.Zero(t, store.saveCount())

	require.NoError(t, s.Mutate(setBody("flushed")))
	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, 1, store.saveCount())
	assert.False(t, s.Dirty())

	time.Sleep(4 * quiet)
	assert.Equal(t, 1, store.saveCount(), "flush cancels the pending timer")
}

func TestSessionSerializesOverlappingSaves(t *testing.T) {
	store := &memStore{delay: 3 * quiet}
	s := newTestSession(t, store)
	require.NoError(t, s.Seed(note{}, 0))

	require.NoError(t, s.Mutate(setTitle("first")))
	time.Sleep(quiet + quiet/2) // first save is now in flight
	require.NoError(t, s.Mutate(setTitle("second")))

	require.Eventually(t, func() bool {
		doc, _ := store.stored()
		return doc.Title == "second" && !s.Dirty()
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, 2, store.saveCount())
	_, version := store.stored()
	assert.Equal(t, int64(2), version)
}

func TestSessionFinalizeRunsBeforeEverySave(t *testing.T) {
	store := &memStore{}
	s := newTestSession(t, store, WithFinalize[note](func(n *note) {
		n.Body = "derived from " + n.Title
	}))
	require.NoError(t, s.Seed(note{}, 0))
	require.NoError(t, s.Mutate(setTitle("abc")))

	require.Eventually(t, func() bool { return !s.Dirty() }, time.Second, time.Millisecond)
	doc, _ := store.stored()
	assert.Equal(t, "derived from abc", doc.Body)
}

func TestSessionObserverReportsOutcomes(t *testing.T) {
	store := &memStore{}
	type obs struct {
		outcome   string
		mutations int
	}
	got := make(chan obs, 4)
	s := newTestSession(t, store, WithObserver[note](func(outcome string, mutations int) {
		got <- obs{outcome, mutations}
	}))
	require.NoError(t, s.Seed(note{}, 0))
	require.NoError(t, s.Mutate(setTitle("a")))
	require.NoError(t, s.Mutate(setTitle("b")))
	require.NoError(t, s.Mutate(setTitle("c")))

	select {
	case o := <-got:
		assert.Equal(t, "ok", o.outcome)
		assert.Equal(t, 3, o.mutations)
	case <-time.After(time.Second):
		t.Fatal("observer never fired")
	}
}

func TestSessionOnSavedReceivesSnapshotAndVersion(t *testing.T) {
	store := &memStore{version: 9}
	type saved struct {
		doc     note
		version int64
	}
	got := make(chan saved, 1)
	s := newTestSession(t, store, WithOnSaved[note](func(doc note, version int64) {
		got <- saved{doc, version}
	}))
	require.NoError(t, s.Seed(note{}, 9))
	require.NoError(t, s.Mutate(setTitle("persisted")))

	select {
	case sv := <-got:
		assert.Equal(t, "persisted", sv.doc.Title)
		assert.Equal(t, int64(10), sv.version)
	case <-time.After(time.Second):
		t.Fatal("onSaved never fired")
	}
}
