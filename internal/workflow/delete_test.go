package workflow

import (
	"context"
	"errors"
	"slices"
	"testing"
)

type recordingDeleter struct {
	calls   [][]string
	outcome Outcome
	err     error
}

func (d *recordingDeleter) DeleteMany(_ context.Context, ids []string) (Outcome, error) {
	d.calls = append(d.calls, ids)
	return d.outcome, d.err
}

type serverError struct{ msg string }

func (e serverError) Error() string       { return "server returned 500: " + e.msg }
func (e serverError) UserMessage() string { return e.msg }

func newFlow(t *testing.T, d Deleter) (*DeleteFlow, *[]State) {
	t.Helper()

	var seen []State
	flow, err := NewDeleteFlow(d, WithObserver(func(tr Transition) { seen = append(seen, tr.To) }))
	if err != nil {
		t.Fatalf("NewDeleteFlow returned error: %v", err)
	}
	return flow, &seen
}

func TestNewDeleteFlowRequiresDeleter(t *testing.T) {
	t.Parallel()

	if _, err := NewDeleteFlow(nil); err == nil {
		t.Fatalf("expected error for nil deleter")
	}
}

func TestCancelIssuesNoCall(t *testing.T) {
	t.Parallel()

	d := &recordingDeleter{}
	flow, seen := newFlow(t, d)

	if err := flow.Request([]string{"a"}, "#1 Cleanup"); err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	if flow.State() != ConfirmPending {
		t.Fatalf("expected confirm-pending, got %v", flow.State())
	}
	if err := flow.Cancel(); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}

	if len(d.calls) != 0 {
		t.Fatalf("cancel must not delete, got %d calls", len(d.calls))
	}
	if flow.State() != Idle {
		t.Fatalf("expected idle, got %v", flow.State())
	}
	want := []State{ConfirmPending, Cancelled, Idle}
	if !slices.Equal(*seen, want) {
		t.Fatalf("unexpected transitions %v", *seen)
	}
}

func TestConfirmIssuesSingleBatchCall(t *testing.T) {
	t.Parallel()

	d := &recordingDeleter{outcome: Outcome{Message: "3 highlights deleted", Deleted: []string{"a", "b", "c"}}}
	flow, seen := newFlow(t, d)

	if err := flow.Request([]string{"a", "b", " ", "b", "c"}, "3 records"); err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	outcome, err := flow.Confirm(context.Background())
	if err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}

	if len(d.calls) != 1 {
		t.Fatalf("expected one batch call, got %d", len(d.calls))
	}
	if !slices.Equal(d.calls[0], []string{"a", "b", "c"}) {
		t.Fatalf("unexpected ids %v", d.calls[0])
	}
	if outcome.Message != "3 highlights deleted" || flow.Message() != "3 highlights deleted" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	want := []State{ConfirmPending, Deleting, Succeeded, Idle}
	if !slices.Equal(*seen, want) {
		t.Fatalf("unexpected transitions %v", *seen)
	}
}

func TestFailureWaitsForDismiss(t *testing.T) {
	t.Parallel()

	d := &recordingDeleter{err: serverError{msg: "Deleting highlights failed, please try again later"}}
	flow, seen := newFlow(t, d)

	if err := flow.Request([]string{"a"}, ""); err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	if _, err := flow.Confirm(context.Background()); err == nil {
		t.Fatalf("expected error from Confirm")
	}

	if flow.State() != Failed {
		t.Fatalf("expected failed, got %v", flow.State())
	}
	if flow.Message() != "Deleting highlights failed, please try again later" {
		t.Fatalf("unexpected message %q", flow.Message())
	}
	if err := flow.Request([]string{"b"}, ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state before dismiss, got %v", err)
	}

	if err := flow.Dismiss(); err != nil {
		t.Fatalf("Dismiss returned error: %v", err)
	}
	want := []State{ConfirmPending, Deleting, Failed, Idle}
	if !slices.Equal(*seen, want) {
		t.Fatalf("unexpected transitions %v", *seen)
	}
}

func TestRequestRejectsEmptySelection(t *testing.T) {
	t.Parallel()

	flow, _ := newFlow(t, &recordingDeleter{})

	if err := flow.Request([]string{"", "  "}, ""); !errors.Is(err, ErrNothingSelected) {
		t.Fatalf("expected ErrNothingSelected, got %v", err)
	}
	if flow.State() != Idle {
		t.Fatalf("expected idle, got %v", flow.State())
	}
}

func TestActionsOutOfOrder(t *testing.T) {
	t.Parallel()

	flow, _ := newFlow(t, &recordingDeleter{})

	if _, err := flow.Confirm(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state for confirm, got %v", err)
	}
	if err := flow.Cancel(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state for cancel, got %v", err)
	}
	if err := flow.Dismiss(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state for dismiss, got %v", err)
	}
}

func TestMessageOfFallsBackToErrorText(t *testing.T) {
	t.Parallel()

	if got := MessageOf(errors.New("boom")); got != "boom" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := MessageOf(nil); got != "" {
		t.Fatalf("expected empty message, got %q", got)
	}
}
