package content

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"parkadmin/app/internal/apperr"
	"parkadmin/app/internal/listing"
	"parkadmin/app/internal/metrics"
)

// Service is the content administration API behind the REST handlers.
type Service interface {
	ListHighlights(ctx context.Context, q Query) (ListResult[Highlight], error)
	GetHighlight(ctx context.Context, id string) (*Highlight, error)
	CreateHighlight(ctx context.Context, in HighlightInput) (WriteResult[Highlight], error)
	UpdateHighlight(ctx context.Context, id string, in HighlightInput) (WriteResult[Highlight], error)
	UpdateHighlightStatus(ctx context.Context, id, status string) (*Highlight, error)
	DeleteHighlights(ctx context.Context, ids []string) (DeleteResult, error)

	ListPressReleases(ctx context.Context, q Query) (ListResult[PressRelease], error)
	GetPressRelease(ctx context.Context, id string) (*PressRelease, error)
	CreatePressRelease(ctx context.Context, in PressReleaseInput) (WriteResult[PressRelease], error)
	UpdatePressRelease(ctx context.Context, id string, in PressReleaseInput) (WriteResult[PressRelease], error)
	DeletePressReleases(ctx context.Context, ids []string) (DeleteResult, error)

	ListSubscribers(ctx context.Context, q Query) (ListResult[Subscriber], error)
	GetSubscriber(ctx context.Context, id string) (*Subscriber, error)
	CreateSubscriber(ctx context.Context, email string) (*Subscriber, error)
	UpdateSubscriber(ctx context.Context, id, email string) (*Subscriber, error)
	DeleteSubscribers(ctx context.Context, ids []string) (DeleteResult, error)

	ListCategories(ctx context.Context, q Query) (ListResult[Category], error)
	GetCategory(ctx context.Context, id string) (*Category, error)
	CreateCategory(ctx context.Context, name string) (*Category, error)
	UpdateCategory(ctx context.Context, id, name string) (*Category, error)
	DeleteCategories(ctx context.Context, ids []string) (DeleteResult, error)

	NextSeq(ctx context.Context, resource Resource) (int64, error)
	Ping(ctx context.Context) error
}

// Query is a list request: filter, then sort, then window. A zero Sort selects the
// resource's default order.
type Query struct {
	Criteria listing.Criteria
	Sort     listing.Sort
	Window   listing.Window
}

// ListResult is one window of a filtered list. Total counts the filtered rows before
// windowing.
type ListResult[T any] struct {
	Items []T
	Total int
}

// WriteResult is a committed create or update. Warnings carry image failures that did not
// stop the write.
type WriteResult[T any] struct {
	Record   T
	Warnings []string
}

// DeleteResult reports a batch delete. Missing lists the requested ids that did not exist.
type DeleteResult struct {
	Deleted  []string
	Missing  []string
	Warnings []string
}

// Options wires the service with its collaborators.
type Options struct {
	Repository         *Repository
	Images             ImageStore
	Sanitizer          Sanitizer
	Hooks              []Hook
	Logger             *logrus.Logger
	SentryHub          *sentry.Hub
	Recorder           metrics.Recorder
	MaxImagesPerRecord int
	Now                func() time.Time
}

const defaultMaxImagesPerRecord = 10

type service struct {
	repo      *Repository
	images    ImageStore
	sanitizer Sanitizer
	hooks     []Hook
	logger    *logrus.Logger
	sentryHub *sentry.Hub
	recorder  metrics.Recorder
	maxImages int
	now       func() time.Time
}

var _ Service = (*service)(nil)

// NewService wires the content service. Without an image store only existing http(s) image
// URLs are accepted. Without explicit hooks, orphaned images are discarded after every
// committed delete or update.
func NewService(opts Options) (Service, error) {
	if opts.Repository == nil {
		return nil, eris.New("content repository is required")
	}

	images := opts.Images
	if images == nil {
		images = passthroughImages{}
	}

	sanitizer := opts.Sanitizer
	if sanitizer == nil {
		sanitizer = NewSanitizer()
	}

	hooks := opts.Hooks
	if hooks == nil {
		hooks = []Hook{ImageCleanupHook(images)}
	}

	maxImages := opts.MaxImagesPerRecord
	if maxImages <= 0 {
		maxImages = defaultMaxImagesPerRecord
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &service{
		repo:      opts.Repository,
		images:    images,
		sanitizer: sanitizer,
		hooks:     hooks,
		logger:    opts.Logger,
		sentryHub: opts.SentryHub,
		recorder:  metrics.OrNop(opts.Recorder),
		maxImages: maxImages,
		now:       now,
	}, nil
}

func (s *service) NextSeq(ctx context.Context, resource Resource) (int64, error) {
	if !resource.Sequenced() {
		return 0, apperr.Validationf("%s have no sequence numbers", resource)
	}

	seq, err := s.repo.PeekSeq(ctx, resource)
	if err != nil {
		return 0, s.fail(logrus.Fields{"resource": string(resource)}, err, "Failed to read the next sequence number")
	}

	return seq, nil
}

func (s *service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// SplitIDs turns the comma-joined id path segment of a batch delete into a list.
func SplitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

func parseID(raw, label string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", apperr.Validationf("Invalid %s ID format", label)
	}
	return id.String(), nil
}

// parseIDs validates every id and drops duplicates. One malformed id rejects the batch.
func parseIDs(raw []string, label string) ([]string, error) {
	if len(raw) == 0 {
		return nil, apperr.Validationf("At least one %s ID is required", label)
	}

	ids := make([]string, 0, len(raw))
	for _, item := range raw {
		id, err := parseID(item, label)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// anchor pins relative period filters to the service clock.
func (s *service) anchor(q Query) Query {
	if q.Criteria.Now.IsZero() {
		q.Criteria.Now = s.now()
	}
	return q
}

func listRecords[T any](items []T, view func(T) listing.Row, q Query, fallback listing.Sort) ListResult[T] {
	filtered := listing.Filter(items, view, q.Criteria)

	order := q.Sort
	if order.Field == "" {
		order = fallback
	}
	sorted := listing.SortBy(filtered, view, order)

	return ListResult[T]{Items: listing.Page(sorted, q.Window), Total: len(sorted)}
}

// deleteRecords is the shared batch delete: validate ids, load what exists, delete it,
// then run the post-commit hooks with the images the deleted rows referenced.
func deleteRecords[T any](
	ctx context.Context,
	s *service,
	resource Resource,
	label string,
	rawIDs []string,
	idOf func(T) string,
	imagesOf func(T) []string,
	remove func(ctx context.Context, ids []string) (int64, error),
) (DeleteResult, error) {
	ids, err := parseIDs(rawIDs, label)
	if err != nil {
		return DeleteResult{}, err
	}

	var found []T
	if err := s.repo.FindByIDs(ctx, &found, ids); err != nil {
		return DeleteResult{}, s.fail(logrus.Fields{"resource": string(resource)}, err, "Failed to delete "+label+", please try again later")
	}
	if len(found) == 0 {
		return DeleteResult{}, apperr.NotFound(capitalize(label) + " not found")
	}

	result := DeleteResult{}
	var images []string
	for _, record := range found {
		result.Deleted = append(result.Deleted, idOf(record))
		if imagesOf != nil {
			images = append(images, imagesOf(record)...)
		}
	}
	for _, id := range ids {
		if !slices.Contains(result.Deleted, id) {
			result.Missing = append(result.Missing, id)
		}
	}

	if _, err := remove(ctx, result.Deleted); err != nil {
		return DeleteResult{}, s.fail(logrus.Fields{"resource": string(resource), "ids": result.Deleted}, err, "Failed to delete "+label+", please try again later")
	}

	result.Warnings = s.runHooks(ctx, Event{Kind: EventDeleted, Resource: resource, IDs: result.Deleted, Images: images})

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"resource": string(resource),
			"deleted":  len(result.Deleted),
			"missing":  len(result.Missing),
			"warnings": len(result.Warnings),
		}).Info("records deleted")
	}

	return result, nil
}

// storeImages uploads sources and returns the URLs to persist, the URLs this call created
// in the CDN, and per-image warnings.
func (s *service) storeImages(ctx context.Context, sources []string) (urls, created, warnings []string) {
	if len(sources) == 0 {
		return nil, nil, nil
	}

	urls, warnings = s.images.Store(ctx, sources)
	for _, url := range urls {
		if !slices.Contains(sources, url) {
			created = append(created, url)
		}
	}
	return urls, created, warnings
}

// discardCreated removes images uploaded for a write that then failed.
func (s *service) discardCreated(ctx context.Context, created []string) {
	if len(created) == 0 {
		return
	}
	for _, err := range s.images.Discard(context.WithoutCancel(ctx), created) {
		if err != nil && s.logger != nil {
			s.logger.WithField("error", err.Error()).Warn("discarding images of failed write")
		}
	}
}

// fail records an unexpected error and turns it into an upstream error with a client
// message. Errors that already carry a kind pass through.
func (s *service) fail(fields logrus.Fields, err error, message string) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	if eris.Is(err, ErrDuplicate) {
		return apperr.Wrap(apperr.KindConflict, err, "A record with the same unique value already exists")
	}

	s.recordError(fields, err, message)
	return apperr.Upstream(err, message)
}

func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}

func difference(a, b []string) []string {
	var out []string
	for _, item := range a {
		if !slices.Contains(b, item) {
			out = append(out, item)
		}
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
