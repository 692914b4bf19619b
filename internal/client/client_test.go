package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api/v1/", WithToken("secret"), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return c
}

func TestNewRejectsNonHTTPURL(t *testing.T) {
	t.Parallel()

	if _, err := New("ftp://example.org"); err == nil {
		t.Fatalf("expected error for ftp scheme")
	}
}

func TestListReadsTotalCountAndSendsToken(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/highlights" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "river" {
			t.Errorf("unexpected query %q", got)
		}
		w.Header().Set("X-Total-Count", "7")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "a", "seq": 3, "title": "River cleanup", "location": "North bank"},
			{"id": "b", "seq": 2, "title": "River walk"},
		})
	})

	page, err := c.List(context.Background(), "highlights", url.Values{"q": {"river"}})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.Total != 7 {
		t.Fatalf("expected total 7, got %d", page.Total)
	}
	if len(page.Records) != 2 || page.Records[0].Seq != 3 || page.Records[0].Location != "North bank" {
		t.Fatalf("unexpected records: %+v", page.Records)
	}
}

func TestLatestSeqQueriesTopRecord(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("_sort") != "seq" || q.Get("_order") != "desc" || q.Get("_start") != "0" || q.Get("_end") != "1" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = w.Write([]byte(`[{"id":"x","seq":41}]`))
	})

	seq, found, err := c.LatestSeq(context.Background(), "press-release")
	if err != nil {
		t.Fatalf("LatestSeq returned error: %v", err)
	}
	if !found || seq != 41 {
		t.Fatalf("expected 41, got %d (found=%v)", seq, found)
	}
}

func TestLatestSeqEmptyCollection(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, found, err := c.LatestSeq(context.Background(), "subscribers")
	if err != nil {
		t.Fatalf("LatestSeq returned error: %v", err)
	}
	if found {
		t.Fatalf("expected empty collection")
	}
}

func TestNextSeq(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/highlights/next-seq" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"resource":"highlights","seq":12}`))
	})

	seq, err := c.NextSeq(context.Background(), "highlights")
	if err != nil {
		t.Fatalf("NextSeq returned error: %v", err)
	}
	if seq != 12 {
		t.Fatalf("expected 12, got %d", seq)
	}
}

func TestDeleteManySendsOneRequest(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/highlights/a,b,c") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"message":"2 highlights deleted","deleted":["a","b"],"missing":["c"]}`))
	})

	result, err := c.DeleteMany(context.Background(), "highlights", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("DeleteMany returned error: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one request, got %d", got)
	}
	if len(result.Deleted) != 2 || len(result.Missing) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDeleteManyRequiresIDs(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Errorf("no request expected")
	})

	if _, err := c.DeleteMany(context.Background(), "highlights", nil); err == nil {
		t.Fatalf("expected error for empty id list")
	}
}

func TestErrorResponseBecomesAPIError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"status":403,"message":"Your account has not been approved yet"}`))
	})

	_, err := c.List(context.Background(), "highlights", nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Message != "Your account has not been approved yet" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestPlainTextErrorBody(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	})

	_, err := c.NextSeq(context.Background(), "highlights")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadGateway || apiErr.Message != "gateway down" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestRecordRowUsesResourceSearchFields(t *testing.T) {
	t.Parallel()

	highlight := Record{Seq: 1, Title: "Tree planting", Location: "East park"}
	if row := highlight.Row("highlights"); len(row.Search) != 1 || row.Search[0] != "East park" {
		t.Fatalf("unexpected highlight row: %+v", row)
	}

	release := Record{Seq: 2, Title: "Budget", Publisher: "City Times"}
	if row := release.Row("press-release"); len(row.Search) != 1 || row.Search[0] != "City Times" {
		t.Fatalf("unexpected press release row: %+v", row)
	}

	subscriber := Record{Seq: 3, Email: "a@b.org"}
	if row := subscriber.Row("subscribers"); row.Title != "a@b.org" {
		t.Fatalf("unexpected subscriber row: %+v", row)
	}
}
