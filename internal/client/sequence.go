package client

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// Mode tells the resolver whether a form creates a record or edits one.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

// SeqState is the lifecycle of a resolved seq.
type SeqState int

const (
	SeqPending SeqState = iota
	SeqReady
	SeqFailed
)

func (s SeqState) String() string {
	switch s {
	case SeqReady:
		return "ready"
	case SeqFailed:
		return "failed"
	default:
		return "pending"
	}
}

// ErrSeqPending is returned while the latest seq is still being read.
var ErrSeqPending = eris.New("sequence number not yet available")

// LatestSeqSource reads the highest seq in a collection.
type LatestSeqSource interface {
	LatestSeq(ctx context.Context, resource string) (int64, bool, error)
}

// SequenceResolver works out the seq a form should display. In edit mode the record's own
// seq is used without a query. In create mode it reads the latest record and proposes
// max+1, or 1 for an empty collection. The server allocates the final number on save.
type SequenceResolver struct {
	source   LatestSeqSource
	resource string
	mode     Mode

	startOnce sync.Once

	mu    sync.Mutex
	state SeqState
	seq   int64
	err   error
	done  chan struct{}
}

// NewSequenceResolver builds a resolver. existing is the record's seq in edit mode and is
// ignored otherwise.
func NewSequenceResolver(source LatestSeqSource, resource string, mode Mode, existing int64) *SequenceResolver {
	r := &SequenceResolver{
		source:   source,
		resource: resource,
		mode:     mode,
		done:     make(chan struct{}),
	}
	if mode == ModeEdit {
		r.state = SeqReady
		r.seq = existing
		close(r.done)
	}
	return r
}

// Start issues the read in the background. It is a no-op in edit mode and after the first call.
func (r *SequenceResolver) Start(ctx context.Context) {
	if r.mode == ModeEdit {
		return
	}
	r.startOnce.Do(func() { go r.resolve(ctx) })
}

// Current reports the state without blocking. The seq is only meaningful when ready.
func (r *SequenceResolver) Current() (int64, SeqState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case SeqReady:
		return r.seq, SeqReady, nil
	case SeqFailed:
		return 0, SeqFailed, r.err
	default:
		return 0, SeqPending, ErrSeqPending
	}
}

// Wait blocks until the seq is resolved or ctx ends. Start is called if needed.
func (r *SequenceResolver) Wait(ctx context.Context) (int64, error) {
	r.Start(ctx)

	select {
	case <-r.done:
	case <-ctx.Done():
		return 0, eris.Wrap(ctx.Err(), "waiting for sequence number")
	}

	seq, _, err := r.Current()
	return seq, err
}

func (r *SequenceResolver) resolve(ctx context.Context) {
	if r.source == nil {
		r.finish(0, eris.New("no sequence source configured"))
		return
	}

	latest, found, err := r.source.LatestSeq(ctx, r.resource)
	if err != nil {
		r.finish(0, eris.Wrapf(err, "resolving next %s seq", r.resource))
		return
	}
	if !found {
		r.finish(1, nil)
		return
	}
	r.finish(latest+1, nil)
}

func (r *SequenceResolver) finish(seq int64, err error) {
	r.mu.Lock()
	if err != nil {
		r.state = SeqFailed
		r.err = err
	} else {
		r.state = SeqReady
		r.seq = seq
	}
	r.mu.Unlock()
	close(r.done)
}
