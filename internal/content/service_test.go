package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"parkadmin/app/internal/apperr"
	"parkadmin/app/internal/db"
	"parkadmin/app/internal/listing"
)

type stubImages struct {
	mu        sync.Mutex
	failing   map[string]string
	discarded []string
	discardFn func(url string) error
	onStore   func()
}

func (s *stubImages) Store(_ context.Context, sources []string) ([]string, []string) {
	if s.onStore != nil {
		s.onStore()
	}

	var urls, warnings []string
	for i, source := range sources {
		if reason, ok := s.failing[source]; ok {
			warnings = append(warnings, fmt.Sprintf("image %d: %s", i+1, reason))
			continue
		}
		if strings.HasPrefix(source, "data:") {
			urls = append(urls, "https://res.cloudinary.com/demo/image/upload/v1/highlights/"+strings.TrimPrefix(source, "data:"))
			continue
		}
		urls = append(urls, source)
	}
	return urls, warnings
}

func (s *stubImages) Discard(_ context.Context, urls []string) []error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, url := range urls {
		if s.discardFn != nil {
			if err := s.discardFn(url); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		s.discarded = append(s.discarded, url)
	}
	return errs
}

func setupService(t *testing.T, images ImageStore) Service {
	t.Helper()

	path := filepath.Join(t.TempDir(), "content.db")
	gormDB, err := db.Open(db.Options{Path: path})
	if err != nil {
		t.Fatalf("db.Open returned error: %v", err)
	}

	t.Cleanup(func() {
		if closeErr := db.Close(gormDB); closeErr != nil {
			t.Fatalf("closing database failed: %v", closeErr)
		}
	})

	logger := silentLogger()
	if err := Migrate(context.Background(), gormDB, logger); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	repo, err := NewRepository(gormDB, logger)
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}

	svc, err := NewService(Options{Repository: repo, Images: images, Logger: logger})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	return svc
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func ptr[T any](v T) *T { return &v }

func highlightInput(title string) HighlightInput {
	return HighlightInput{Title: ptr(title), Content: ptr("<p>" + title + "</p>")}
}

func TestNewServiceRequiresRepository(t *testing.T) {
	t.Parallel()

	if _, err := NewService(Options{}); err == nil {
		t.Fatalf("expected error when repository is nil")
	}
}

func TestSequentialCreatesNumberFromOne(t *testing.T) {
	t.Parallel()

	svc := setupService(t, nil)
	ctx := context.Background()

	for want := int64(1); want <= 4; want++ {
		created, err := svc.CreateHighlight(ctx, highlightInput(fmt.Sprintf("Highlight %d", want)))
		if err != nil {
			t.Fatalf("CreateHighlight returned error: %v", err)
		}
		if created.Record.Seq != want {
			t.Fatalf("expected seq %d, got %d", want, created.Record.Seq)
		}
		if created.Record.Status != StatusDraft {
			t.Fatalf("expected default status draft, got %q", created.Record.Status)
		}
	}

	// Each resource keeps its own sequence.
	sub, err := svc.CreateSubscriber(ctx, "first@example.org")
	if err != nil {
		t.Fatalf("CreateSubscriber returned error: %v", err)
	}
	if sub.Seq != 1 {
		t.Fatalf("expected first subscriber seq 1, got %d", sub.Seq)
	}
}

func TestEditPreservesSeq(t *testing.T) {
	t.Parallel()

	svc := setupService(t, nil)
	ctx := context.Background()

	first, err := svc.CreateHighlight(ctx, highlightInput("First"))
	if err != nil {
		t.Fatalf("CreateHighlight returned error: %v", err)
	}
	if _, err := svc.CreateHighlight(ctx, highlightInput("Second")); err != nil {
		t.Fatalf("CreateHighlight returned error: %v", err)
	}

	updated, err := svc.UpdateHighlight(ctx, first.Record.ID, HighlightInput{
		Title:    ptr("Renamed"),
		Location: ptr("Main Hall"),
		Status:   ptr("published"),
		SDG:      ptr([]string{"SDG 4", "SDG 7"}),
	})
	if err != nil {
		t.Fatalf("UpdateHighlight returned error: %v", err)
	}

	if updated.Record.Seq != first.Record.Seq {
		t.Fatalf("expected seq %d to be preserved, got %d", first.Record.Seq, updated.Record.Seq)
	}

	stored, err := svc.GetHighlight(ctx, first.Record.ID)
	if err != nil {
		t.Fatalf("GetHighlight returned error: %v", err)
	}
	if stored.Seq != 1 || stored.Title != "Renamed" || stored.Status != StatusPublished {
		t.Fatalf("unexpected stored highlight: %+v", stored)
	}
	if !stored.CreatedAt.Equal(first.Record.CreatedAt) {
		t.Fatalf("expected createdAt to be preserved")
	}
	if !slices.Equal(stored.SDG, []string{"SDG 4", "SDG 7"}) {
		t.Fatalf("unexpected sdg: %v", stored.SDG)
	}
}

func TestConcurrentCreatesReceiveDistinctSeqs(t *testing.T) {
	t.Parallel()

	svc := setupService(t, nil)
	ctx := context.Background()

	const n = 12
	seqs := make([]int64, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub, err := svc.CreateSubscriber(ctx, fmt.Sprintf("user%d@example.org", i))
			if err != nil {
				errs[i] = err
				return
			}
			seqs[i] = sub.Seq
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("create %d returned error: %v", i, err)
		}
	}

	slices.Sort(seqs)
	for i, seq := range seqs {
		if seq != int64(i+1) {
			t.Fatalf("expected seqs 1..%d without duplicates, got %v", n, seqs)
		}
	}
}

func TestSeqIsNotReusedAfterDeletingNewest(t *testing.T) {
	t.Parallel()

	svc := setupService(t, nil)
	ctx := context.Background()

	var last *Subscriber
	for i := 0; i < 3; i++ {
		sub, err := svc.CreateSubscriber(ctx, fmt.Sprintf("s%d@example.org", i))
		if err != nil {
			t.Fatalf("CreateSubscriber returned error: %v", err)
		}
		last = sub
	}

	if _, err := svc.DeleteSubscribers(ctx, []string{last.ID}); err != nil {
		t.Fatalf("DeleteSubscribers returned error: %v", err)
	}

	next, err := svc.NextSeq(ctx, ResourceSubscribers)
	if err != nil {
		t.Fatalf("NextSeq returned error: %v", err)
	}
	if next != 4 {
		t.Fatalf("expected next seq 4, got %d", next)
	}

	sub, err := svc.CreateSubscriber(ctx, "again@example.org")
	if err != nil {
		t.Fatalf("CreateSubscriber returned error: %v", err)
	}
	if sub.Seq != 4 {
		t.Fatalf("expected seq 4, got %d", sub.Seq)
	}
}

func TestNextSeqOnEmptyCollectionIsOne(t *testing.T) {
	t.Parallel()

	svc := setupService(t, nil)

	next, err := svc.NextSeq(context.Background(), ResourcePressReleases)
	if err != nil {
		t.Fatalf("NextSeq returned error: %v", err)
	}
	if next != 1 {
		t.Fatalf("expected 1, got %d", next)
	}

	if _, err := svc.NextSeq(context.Background(), ResourceCategories); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for categories, got %v", err)
	}
}

func TestBatchDeleteSkipsMissingIDs(t *testing.T) {
	t.Parallel()

	images := &stubImages{}
	svc := setupService(t, images)
	ctx := context.Background()

	in := highlightInput("With images")
	in.Images = ptr([]string{"data:a", "https://example.org/keep.png"})
	created, err := svc.CreateHighlight(ctx, in)
	if err != nil {
		t.Fatalf("CreateHighlight returned error: %v", err)
	}

	missing := uuid.NewString()
	result, err := svc.DeleteHighlights(ctx, []string{created.Record.ID, missing})
	if err != nil {
		t.Fatalf("DeleteHighlights returned error: %v", err)
	}

	if !slices.Equal(result.Deleted, []string{created.Record.ID}) {
		t.Fatalf("unexpected deleted ids: %v", result.Deleted)
	}
	if !slices.Equal(result.Missing, []string{missing}) {
		t.Fatalf("unexpected missing ids: %v", result.Missing)
	}
	if len(images.discarded) != 2 {
		t.Fatalf("expected both images to be handed to cleanup, got %v", images.discarded)
	}

	if _, err := svc.GetHighlight(ctx, created.Record.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected highlight to be gone, got %v", err)
	}
}

func TestBatchDeleteRejectsMalformedAndAllMissing(t *testing.T) {
	t.Parallel()

	svc := setupService(t, nil)
	ctx := context.Background()

	if _, err := svc.DeleteHighlights(ctx, []string{uuid.NewString(), "not-an-id"}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.DeleteHighlights(ctx, []string{uuid.NewString()}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestImageCleanupFailureIsAWarning(t *testing.T) {
	t.Parallel()

	images := &stubImages{discardFn: func(url string) error {
		return errors.New("cdn unavailable")
	}}
	svc := setupService(t, images)
	ctx := context.Background()

	in := highlightInput("Doomed")
	in.Images = ptr([]string{"data:x"})
	created, err := svc.CreateHighlight(ctx, in)
	if err != nil {
		t.Fatalf("CreateHighlight returned error: %v", err)
	}

	result, err := svc.DeleteHighlights(ctx, []string{created.Record.ID})
	if err != nil {
		t.Fatalf("expected delete to succeed despite cleanup failure, got %v", err)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "cdn unavailable") {
		t.Fatalf("expected one cleanup warning, got %v", result.Warnings)
	}
}

func TestImageFailureDoesNotBlockCreate(t *testing.T) {
	t.Parallel()

	images := &stubImages{failing: map[string]string{"data:corrupt": "not a decodable image"}}
	svc := setupService(t, images)
	ctx := context.Background()

	in := highlightInput("Partial")
	in.Images = ptr([]string{"data:good", "data:corrupt"})

	created, err := svc.CreateHighlight(ctx, in)
	if err != nil {
		t.Fatalf("CreateHighlight returned error: %v", err)
	}
	if len(created.Record.Images) != 1 || !strings.HasSuffix(created.Record.Images[0], "/good") {
		t.Fatalf("expected only the good image, got %v", created.Record.Images)
	}
	if len(created.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", created.Warnings)
	}

	stored, err := svc.GetHighlight(ctx, created.Record.ID)
	if err != nil {
		t.Fatalf("GetHighlight returned error: %v", err)
	}
	if len(stored.Images) != 1 {
		t.Fatalf("expected persisted record with one image, got %v", stored.Images)
	}
}

func TestUpdateDiscardsStaleImages(t *testing.T) {
	t.Parallel()

	images := &stubImages{}
	svc := setupService(t, images)
	ctx := context.Background()

	in := highlightInput("Gallery")
	in.Images = ptr([]string{"data:one", "data:two"})
	created, err := svc.CreateHighlight(ctx, in)
	if err != nil {
		t.Fatalf("CreateHighlight returned error: %v", err)
	}

	keep := created.Record.Images[0]
	updated, err := svc.UpdateHighlight(ctx, created.Record.ID, HighlightInput{Images: ptr([]string{keep, "data:three"})})
	if err != nil {
		t.Fatalf("UpdateHighlight returned error: %v", err)
	}

	if len(updated.Record.Images) != 2 || updated.Record.Images[0] != keep {
		t.Fatalf("unexpected images after update: %v", updated.Record.Images)
	}
	if !slices.Equal(images.discarded, []string{created.Record.Images[1]}) {
		t.Fatalf("expected only the dropped image to be discarded, got %v", images.discarded)
	}
}

func TestUpdateDoesNotRestoreConcurrentlyDeletedRecord(t *testing.T) {
	t.Parallel()

	images := &stubImages{}
	svc := setupService(t, images)
	ctx := context.Background()

	created, err := svc.CreateHighlight(ctx, HighlightInput{
		Title:   ptr("Clean-up day"),
		Content: ptr("<p>Bring gloves</p>"),
		Images:  ptr([]string{"data:old.jpg"}),
	})
	if err != nil {
		t.Fatalf("CreateHighlight returned error: %v", err)
	}
	id := created.Record.ID

	// The delete lands while the edit is uploading its new image.
	images.onStore = func() {
		images.onStore = nil
		if _, err := svc.DeleteHighlights(ctx, []string{id}); err != nil {
			t.Errorf("DeleteHighlights returned error: %v", err)
		}
	}

	_, err = svc.UpdateHighlight(ctx, id, HighlightInput{Images: ptr([]string{"data:new.jpg"})})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found after concurrent delete, got %v", err)
	}

	if _, err := svc.GetHighlight(ctx, id); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("deleted highlight came back: %v", err)
	}

	fresh := "https://res.cloudinary.com/demo/image/upload/v1/highlights/new.jpg"
	if !slices.Contains(images.discarded, fresh) {
		t.Fatalf("expected the fresh upload to be discarded, got %v", images.discarded)
	}
}

func TestUpdateSubscriberAfterDeleteIsNotFound(t *testing.T) {
	t.Parallel()

	svc := setupService(t, nil)
	ctx := context.Background()

	sub, err := svc.CreateSubscriber(ctx, "gone@example.org")
	if err != nil {
		t.Fatalf("CreateSubscriber returned error: %v", err)
	}
	if _, err := svc.DeleteSubscribers(ctx, []string{sub.ID}); err != nil {
		t.Fatalf("DeleteSubscribers returned error: %v", err)
	}

	if _, err := svc.UpdateSubscriber(ctx, sub.ID, "back@example.org"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	list, err := svc.ListSubscribers(ctx, Query{})
	if err != nil {
		t.Fatalf("ListSubscribers returned error: %v", err)
	}
	if list.Total != 0 {
		t.Fatalf("expected no subscribers, got %d", list.Total)
	}
}

func TestHighlightValidation(t *testing.T) {
	t.Parallel()

	svc := setupService(t, nil)
	ctx := context.Background()

	cases := map[string]HighlightInput{
		"missing title":    {Content: ptr("<p>x</p>")},
		"missing content":  {Title: ptr("Title")},
		"bad status":       {Title: ptr("Title"), Content: ptr("x"), Status: ptr("archived")},
		"unknown category": {Title: ptr("Title"), Content: ptr("x"), Category: ptr(uuid.NewString())},
		"bad date":         {Title: ptr("Title"), Content: ptr("x"), Date: ptr("31/02/2024")},
	}

	for name, in := range cases {
		if _, err := svc.CreateHighlight(ctx, in); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestUpdateHighlightStatus(t *testing.T) {
	t.Parallel()

	svc := setupService(t, nil)
	ctx := context.Background()

	created, err := svc.CreateHighlight(ctx, highlightInput("Review me"))
	if err != nil {
		t.Fatalf("CreateHighlight returned error: %v", err)
	}

	updated, err := svc.UpdateHighlightStatus(ctx, created.Record.ID, "Rejected")
	if err != nil {
		t.Fatalf("UpdateHighlightStatus returned error: %v", err)
	}
	if updated.Status != StatusRejected {
		t.Fatalf("expected rejected, got %q", updated.Status)
	}

	if _, err := svc.UpdateHighlightStatus(ctx, created.Record.ID, "gone"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.UpdateHighlightStatus(ctx, uuid.NewString(), "draft"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestContentIsSanitized(t *testing.T) {
	t.Parallel()

	svc := setupService(t, nil)

	created, err := svc.CreateHighlight(context.Background(), HighlightInput{
		Title:   ptr("Script"),
		Content: ptr(`<p onclick="x()">Hello<script>alert(1)</script></p>`),
	})
	if err != nil {
		t.Fatalf("CreateHighlight returned error: %v", err)
	}
	if strings.Contains(created.Record.Content, "script") || strings.Contains(created.Record.Content, "onclick") {
		t.Fatalf("expected content to be sanitized, got %q", created.Record.Content)
	}
}

func TestListHighlightsFiltersSortsAndWindows(t *testing.T) {
	t.Parallel()

	svc := setupService(t, nil)
	ctx := context.Background()

	for _, title := range []string{"Alpha", "Beta", "Gamma", "Delta"} {
		if _, err := svc.CreateHighlight(ctx, highlightInput(title)); err != nil {
			t.Fatalf("CreateHighlight returned error: %v", err)
		}
	}
	beta, err := svc.ListHighlights(ctx, Query{Criteria: listing.Criteria{Search: "beta"}})
	if err != nil {
		t.Fatalf("ListHighlights returned error: %v", err)
	}
	if _, err := svc.UpdateHighlightStatus(ctx, beta.Items[0].ID, "published"); err != nil {
		t.Fatalf("UpdateHighlightStatus returned error: %v", err)
	}

	drafts, err := svc.ListHighlights(ctx, Query{
		Criteria: listing.Criteria{Status: "draft"},
		Window:   listing.Window{Start: 0, End: 2},
	})
	if err != nil {
		t.Fatalf("ListHighlights returned error: %v", err)
	}
	if drafts.Total != 3 {
		t.Fatalf("expected 3 drafts in total, got %d", drafts.Total)
	}
	if len(drafts.Items) != 2 || drafts.Items[0].Title != "Delta" || drafts.Items[1].Title != "Gamma" {
		t.Fatalf("unexpected window: %+v", drafts.Items)
	}

	none, err := svc.ListHighlights(ctx, Query{Criteria: listing.Criteria{Status: "draft", Search: "Beta"}})
	if err != nil {
		t.Fatalf("ListHighlights returned error: %v", err)
	}
	if none.Total != 0 {
		t.Fatalf("expected no rows, got %d", none.Total)
	}
}

func TestDeletingCategoryClearsHighlights(t *testing.T) {
	t.Parallel()

	svc := setupService(t, nil)
	ctx := context.Background()

	category, err := svc.CreateCategory(ctx, "Events")
	if err != nil {
		t.Fatalf("CreateCategory returned error: %v", err)
	}
	if _, err := svc.CreateCategory(ctx, " Events "); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected duplicate category conflict, got %v", err)
	}

	in := highlightInput("Tagged")
	in.Category = ptr(category.ID)
	created, err := svc.CreateHighlight(ctx, in)
	if err != nil {
		t.Fatalf("CreateHighlight returned error: %v", err)
	}
	if created.Record.CategoryName != "Events" {
		t.Fatalf("expected category name to be attached, got %q", created.Record.CategoryName)
	}

	if _, err := svc.DeleteCategories(ctx, []string{category.ID}); err != nil {
		t.Fatalf("DeleteCategories returned error: %v", err)
	}

	stored, err := svc.GetHighlight(ctx, created.Record.ID)
	if err != nil {
		t.Fatalf("GetHighlight returned error: %v", err)
	}
	if stored.CategoryID != nil {
		t.Fatalf("expected category to be cleared, got %v", *stored.CategoryID)
	}
}

func TestSubscriberValidation(t *testing.T) {
	t.Parallel()

	svc := setupService(t, nil)
	ctx := context.Background()

	if _, err := svc.CreateSubscriber(ctx, "Reader@Example.org"); err != nil {
		t.Fatalf("CreateSubscriber returned error: %v", err)
	}
	if _, err := svc.CreateSubscriber(ctx, "reader@example.org"); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.CreateSubscriber(ctx, "not-an-email"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.CreateSubscriber(ctx, "  "); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for blank email, got %v", err)
	}
}

func TestPressReleaseImageReplacement(t *testing.T) {
	t.Parallel()

	images := &stubImages{}
	svc := setupService(t, images)
	ctx := context.Background()

	created, err := svc.CreatePressRelease(ctx, PressReleaseInput{
		Title:     ptr("Coverage"),
		Publisher: ptr("Daily News"),
		Date:      ptr("2024-05-01"),
		Link:      ptr("https://news.example.org/story"),
		Image:     ptr("data:cover"),
	})
	if err != nil {
		t.Fatalf("CreatePressRelease returned error: %v", err)
	}
	if created.Record.Image == "" || created.Record.Seq != 1 {
		t.Fatalf("unexpected press release: %+v", created.Record)
	}

	original := created.Record.Image
	updated, err := svc.UpdatePressRelease(ctx, created.Record.ID, PressReleaseInput{Image: ptr("data:new-cover")})
	if err != nil {
		t.Fatalf("UpdatePressRelease returned error: %v", err)
	}
	if updated.Record.Image == original {
		t.Fatalf("expected image to be replaced")
	}
	if !slices.Equal(images.discarded, []string{original}) {
		t.Fatalf("expected old image to be discarded, got %v", images.discarded)
	}

	if _, err := svc.CreatePressRelease(ctx, PressReleaseInput{Title: ptr("No link")}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPressReleaseImageFailureKeepsRecord(t *testing.T) {
	t.Parallel()

	images := &stubImages{failing: map[string]string{"data:huge": "image exceeds 15 MiB"}}
	svc := setupService(t, images)

	created, err := svc.CreatePressRelease(context.Background(), PressReleaseInput{
		Title:     ptr("Coverage"),
		Publisher: ptr("Daily News"),
		Date:      ptr("2024-05-01"),
		Link:      ptr("https://news.example.org/story"),
		Image:     ptr("data:huge"),
	})
	if err != nil {
		t.Fatalf("CreatePressRelease returned error: %v", err)
	}
	if created.Record.Image != "" || len(created.Warnings) != 1 {
		t.Fatalf("expected record without image and one warning, got %+v", created)
	}
}
