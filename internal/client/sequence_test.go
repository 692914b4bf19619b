package client

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type stubSeqSource struct {
	latest int64
	found  bool
	err    error
	gate   chan struct{}
	calls  atomic.Int32
}

func (s *stubSeqSource) LatestSeq(ctx context.Context, _ string) (int64, bool, error) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return 0, false, ctx.Err()
		}
	}
	return s.latest, s.found, s.err
}

func TestResolverEditModeSkipsQuery(t *testing.T) {
	t.Parallel()

	source := &stubSeqSource{latest: 99, found: true}
	r := NewSequenceResolver(source, "highlights", ModeEdit, 7)

	seq, err := r.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if seq != 7 {
		t.Fatalf("expected existing seq 7, got %d", seq)
	}
	if source.calls.Load() != 0 {
		t.Fatalf("expected no query in edit mode")
	}
}

func TestResolverCreateProposesMaxPlusOne(t *testing.T) {
	t.Parallel()

	r := NewSequenceResolver(&stubSeqSource{latest: 41, found: true}, "highlights", ModeCreate, 0)

	seq, err := r.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if seq != 42 {
		t.Fatalf("expected 42, got %d", seq)
	}
}

func TestResolverCreateEmptyCollection(t *testing.T) {
	t.Parallel()

	r := NewSequenceResolver(&stubSeqSource{}, "subscribers", ModeCreate, 0)

	seq, err := r.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if seq != 1 {
		t.Fatalf("expected 1, got %d", seq)
	}
}

func TestResolverPendingWhileReadOutstanding(t *testing.T) {
	t.Parallel()

	source := &stubSeqSource{latest: 5, found: true, gate: make(chan struct{})}
	r := NewSequenceResolver(source, "highlights", ModeCreate, 0)
	r.Start(context.Background())

	if _, state, err := r.Current(); state != SeqPending || !errors.Is(err, ErrSeqPending) {
		t.Fatalf("expected pending state, got %v (%v)", state, err)
	}

	close(source.gate)

	seq, err := r.Wait(context.Background())
	if err != nil || seq != 6 {
		t.Fatalf("expected 6, got %d (%v)", seq, err)
	}
	if _, state, _ := r.Current(); state != SeqReady {
		t.Fatalf("expected ready state, got %v", state)
	}
}

func TestResolverFailureIsDistinguishable(t *testing.T) {
	t.Parallel()

	r := NewSequenceResolver(&stubSeqSource{err: errors.New("offline")}, "highlights", ModeCreate, 0)

	seq, err := r.Wait(context.Background())
	if err == nil {
		t.Fatalf("expected error, got seq %d", seq)
	}
	if seq != 0 {
		t.Fatalf("failed resolution must not propose a seq, got %d", seq)
	}
	if _, state, _ := r.Current(); state != SeqFailed {
		t.Fatalf("expected failed state, got %v", state)
	}
}

func TestResolverQueriesOnce(t *testing.T) {
	t.Parallel()

	source := &stubSeqSource{latest: 1, found: true}
	r := NewSequenceResolver(source, "highlights", ModeCreate, 0)

	for range 3 {
		if _, err := r.Wait(context.Background()); err != nil {
			t.Fatalf("Wait returned error: %v", err)
		}
	}
	if got := source.calls.Load(); got != 1 {
		t.Fatalf("expected a single query, got %d", got)
	}
}

func TestResolverWaitHonoursContext(t *testing.T) {
	t.Parallel()

	source := &stubSeqSource{gate: make(chan struct{})}
	t.Cleanup(func() { close(source.gate) })

	r := NewSequenceResolver(source, "highlights", ModeCreate, 0)
	r.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := r.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
