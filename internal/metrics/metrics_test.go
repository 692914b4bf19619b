package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCountsImageOperations(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ImageOperation(OpUpload, OutcomeOK)
	c.ImageOperation(OpUpload, OutcomeOK)
	c.ImageOperation(OpDestroy, OutcomeFailed)

	if got := testutil.ToFloat64(c.images.WithLabelValues(OpUpload, OutcomeOK)); got != 2 {
		t.Fatalf("expected two successful uploads, got %v", got)
	}
	if got := testutil.ToFloat64(c.images.WithLabelValues(OpDestroy, OutcomeFailed)); got != 1 {
		t.Fatalf("expected one failed destroy, got %v", got)
	}
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.ObserveRequest("GET", "", 200, 15*time.Millisecond)
	c.SequenceAllocated("highlights")
	c.HookFailed("image-cleanup")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`parkadmin_http_requests_total{method="GET",route="unmatched",status="200"} 1`,
		`parkadmin_sequence_allocations_total{resource="highlights"} 1`,
		`parkadmin_post_commit_hook_failures_total{hook="image-cleanup"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output, got %s", want, body)
		}
	}
}

func TestOrNop(t *testing.T) {
	t.Parallel()

	if _, ok := OrNop(nil).(Nop); !ok {
		t.Fatalf("expected Nop for nil recorder")
	}
	c := NewCollector(prometheus.NewRegistry())
	if OrNop(c) != Recorder(c) {
		t.Fatalf("expected collector to be returned unchanged")
	}
}
