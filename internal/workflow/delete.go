// Package workflow holds the delete confirmation flow shared by the admin tools.
package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	applog "parkadmin/app/internal/log"
)

// State is a step of the delete flow.
type State int

const (
	Idle State = iota
	ConfirmPending
	Deleting
	Cancelled
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case ConfirmPending:
		return "confirm-pending"
	case Deleting:
		return "deleting"
	case Cancelled:
		return "cancelled"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Outcome is what a successful batch call reports back.
type Outcome struct {
	Message  string
	Deleted  []string
	Missing  []string
	Warnings []string
}

// Deleter removes every id in one call.
type Deleter interface {
	DeleteMany(ctx context.Context, ids []string) (Outcome, error)
}

// DeleterFunc adapts a function to Deleter.
type DeleterFunc func(ctx context.Context, ids []string) (Outcome, error)

func (f DeleterFunc) DeleteMany(ctx context.Context, ids []string) (Outcome, error) {
	return f(ctx, ids)
}

// Transition is reported to the observer on every state change.
type Transition struct {
	From State
	To   State
	IDs  []string
	// Message is the success text, or the server's error text after a failure.
	Message string
}

var (
	ErrNothingSelected = eris.New("no records selected")
	ErrInvalidState    = eris.New("action not allowed in the current state")
)

// MessageOf extracts a user-facing message from an error. Errors that carry their own
// user message (anything with a UserMessage method) win over the error text.
func MessageOf(err error) string {
	var carrier interface{ UserMessage() string }
	if errors.As(err, &carrier) {
		if msg := carrier.UserMessage(); msg != "" {
			return msg
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// DeleteFlow guards destructive actions behind an explicit confirmation. Confirm issues a
// single batch call for every pending id. A failure stays visible until Dismiss.
type DeleteFlow struct {
	deleter  Deleter
	logger   *logrus.Entry
	observer func(Transition)

	mu          sync.Mutex
	state       State
	ids         []string
	description string
	message     string
}

// Option customises a DeleteFlow.
type Option func(*DeleteFlow)

// WithObserver registers a callback for every transition.
func WithObserver(fn func(Transition)) Option {
	return func(f *DeleteFlow) { f.observer = fn }
}

// WithLogger logs transitions at debug level.
func WithLogger(logger *logrus.Logger) Option {
	return func(f *DeleteFlow) {
		if logger != nil {
			f.logger = applog.Component(logger, "delete-flow")
		}
	}
}

// NewDeleteFlow builds an idle flow around deleter.
func NewDeleteFlow(deleter Deleter, opts ...Option) (*DeleteFlow, error) {
	if deleter == nil {
		return nil, eris.New("deleter is required")
	}

	f := &DeleteFlow{deleter: deleter}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// State reports the current step.
func (f *DeleteFlow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Pending returns the ids awaiting confirmation and their description.
func (f *DeleteFlow) Pending() ([]string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...), f.description
}

// Message is the last success or failure message.
func (f *DeleteFlow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// Request asks for confirmation before deleting ids. Blank and duplicate ids are dropped.
func (f *DeleteFlow) Request(ids []string, description string) error {
	cleaned := uniqueIDs(ids)
	if len(cleaned) == 0 {
		return ErrNothingSelected
	}

	f.mu.Lock()
	if f.state != Idle {
		f.mu.Unlock()
		return eris.Wrapf(ErrInvalidState, "cannot request a delete while %s", f.state)
	}
	f.ids = cleaned
	f.description = description
	f.message = ""
	t := f.moveLocked(ConfirmPending)
	f.mu.Unlock()

	f.emit(t)
	return nil
}

// Cancel abandons the pending delete without calling the server.
func (f *DeleteFlow) Cancel() error {
	f.mu.Lock()
	if f.state != ConfirmPending {
		f.mu.Unlock()
		return eris.Wrapf(ErrInvalidState, "cannot cancel while %s", f.state)
	}
	cancelled := f.moveLocked(Cancelled)
	f.ids = nil
	f.description = ""
	idle := f.moveLocked(Idle)
	f.mu.Unlock()

	f.emit(cancelled)
	f.emit(idle)
	return nil
}

// Confirm runs the batch delete. On success the flow returns to Idle; on failure it stays
// in Failed with the server's message until Dismiss.
func (f *DeleteFlow) Confirm(ctx context.Context) (Outcome, error) {
	f.mu.Lock()
	if f.state != ConfirmPending {
		f.mu.Unlock()
		return Outcome{}, eris.Wrapf(ErrInvalidState, "cannot confirm while %s", f.state)
	}
	ids := append([]string(nil), f.ids...)
	deleting := f.moveLocked(Deleting)
	f.mu.Unlock()
	f.emit(deleting)

	outcome, err := f.deleter.DeleteMany(ctx, ids)

	f.mu.Lock()
	if err != nil {
		f.message = MessageOf(err)
		failed := f.moveLocked(Failed)
		f.mu.Unlock()
		f.emit(failed)
		return Outcome{}, err
	}

	f.message = outcome.Message
	succeeded := f.moveLocked(Succeeded)
	f.ids = nil
	f.description = ""
	idle := f.moveLocked(Idle)
	f.mu.Unlock()

	f.emit(succeeded)
	f.emit(idle)
	return outcome, nil
}

// Dismiss acknowledges a failure and returns to Idle.
func (f *DeleteFlow) Dismiss() error {
	f.mu.Lock()
	if f.state != Failed {
		f.mu.Unlock()
		return eris.Wrapf(ErrInvalidState, "nothing to dismiss while %s", f.state)
	}
	f.ids = nil
	f.description = ""
	idle := f.moveLocked(Idle)
	f.mu.Unlock()

	f.emit(idle)
	return nil
}

func (f *DeleteFlow) moveLocked(to State) Transition {
	t := Transition{From: f.state, To: to, IDs: append([]string(nil), f.ids...), Message: f.message}
	f.state = to
	return t
}

func (f *DeleteFlow) emit(t Transition) {
	if f.logger != nil {
		f.logger.WithFields(logrus.Fields{
			"from":  t.From.String(),
			"to":    t.To.String(),
			"count": len(t.IDs),
		}).Debug("delete flow transition")
	}
	if f.observer != nil {
		f.observer(t)
	}
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
