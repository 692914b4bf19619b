// Package media moves record images between data URIs submitted by the admin frontend and the
// image CDN.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"parkadmin/app/internal/metrics"
)

// CDN is the hosted image service.
type CDN interface {
	Upload(ctx context.Context, r io.Reader) (Asset, error)
	Destroy(ctx context.Context, publicID string) error
}

// Asset is an uploaded image.
type Asset struct {
	URL      string
	PublicID string
}

var (
	// ErrTooLarge rejects payloads above the configured size.
	ErrTooLarge = eris.New("image is too large")
	// ErrNotImage rejects payloads whose content is not an image.
	ErrNotImage = eris.New("payload is not an image")
	// ErrCorrupt rejects images that do not decode.
	ErrCorrupt = eris.New("image could not be decoded")
	// ErrUnsupportedSource rejects sources that are neither data URIs nor http(s) URLs.
	ErrUnsupportedSource = eris.New("unsupported image source")
	// ErrTimeout marks a CDN call that did not finish in time.
	ErrTimeout = eris.New("image operation timed out")
)

// Options tunes the pipeline. Zero values fall back to the defaults below.
type Options struct {
	Timeout       time.Duration
	Retries       int
	MaxConcurrent int
	MaxBytes      int64
	MaxWidth      int
	Logger        *logrus.Logger
	Recorder      metrics.Recorder
}

const (
	defaultTimeout       = 60 * time.Second
	defaultMaxConcurrent = 5
	defaultMaxBytes      = 15 << 20
	defaultMaxWidth      = 1200
)

// Pipeline validates, resizes and uploads images, and removes them again.
type Pipeline struct {
	cdn      CDN
	opts     Options
	logger   *logrus.Entry
	recorder metrics.Recorder
}

// NewPipeline builds a pipeline in front of cdn.
func NewPipeline(cdn CDN, opts Options) (*Pipeline, error) {
	if cdn == nil {
		return nil, eris.New("image CDN is required")
	}
	if opts.Retries < 0 {
		return nil, eris.Errorf("image retries must not be negative, got %d", opts.Retries)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = defaultMaxWidth
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &Pipeline{
		cdn:      cdn,
		opts:     opts,
		logger:   logger.WithField("component", "media.pipeline"),
		recorder: metrics.OrNop(opts.Recorder),
	}, nil
}

// Store uploads every data URI in sources and keeps http(s) URLs as they are. At most
// MaxConcurrent sources are processed at once and every source is settled: the returned URLs
// are the successes in input order, and each failure becomes one warning.
func (p *Pipeline) Store(ctx context.Context, sources []string) ([]string, []string) {
	urls := make([]string, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(p.opts.MaxConcurrent)

	for i, source := range sources {
		g.Go(func() error {
			urls[i], errs[i] = p.storeOne(ctx, source)
			return nil
		})
	}
	_ = g.Wait()

	var stored, warnings []string
	for i := range sources {
		if errs[i] != nil {
			warnings = append(warnings, fmt.Sprintf("Image %d was not saved: %s", i+1, reason(errs[i])))
			continue
		}
		stored = append(stored, urls[i])
	}

	if len(warnings) > 0 {
		p.logger.WithFields(logrus.Fields{
			"sources":  len(sources),
			"stored":   len(stored),
			"warnings": warnings,
		}).Warn("some images were not stored")
	}

	return stored, warnings
}

func (p *Pipeline) storeOne(ctx context.Context, source string) (string, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return source, nil
	case strings.HasPrefix(source, "data:"):
	default:
		p.recorder.ImageOperation(metrics.OpUpload, metrics.OutcomeRejected)
		return "", ErrUnsupportedSource
	}

	payload, err := p.prepare(source)
	if err != nil {
		p.recorder.ImageOperation(metrics.OpUpload, metrics.OutcomeRejected)
		return "", err
	}

	asset, err := retry(ctx, p, func(callCtx context.Context) (Asset, error) {
		return p.cdn.Upload(callCtx, bytes.NewReader(payload))
	})
	if err != nil {
		p.recorder.ImageOperation(metrics.OpUpload, outcomeOf(err))
		p.logger.WithField("error", err.Error()).Error("image upload failed")
		return "", err
	}

	p.recorder.ImageOperation(metrics.OpUpload, metrics.OutcomeOK)
	return asset.URL, nil
}

// prepare decodes a data URI, checks size and type, and shrinks images wider than MaxWidth.
func (p *Pipeline) prepare(source string) ([]byte, error) {
	_, encoded, found := strings.Cut(source, ",")
	if !found {
		return nil, eris.Wrap(ErrCorrupt, "malformed data URI")
	}

	// Cheap estimate before allocating the decoded payload.
	if int64(len(encoded))*3/4 > p.opts.MaxBytes {
		return nil, ErrTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if err != nil {
			return nil, eris.Wrap(ErrCorrupt, "invalid base64 payload")
		}
	}
	if int64(len(data)) > p.opts.MaxBytes {
		return nil, ErrTooLarge
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, eris.Wrapf(ErrNotImage, "detected %s", mime.String())
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, eris.Wrapf(ErrCorrupt, "decoding %s", mime.String())
	}

	if img.Bounds().Dx() <= p.opts.MaxWidth {
		return data, nil
	}

	return encode(imaging.Resize(img, p.opts.MaxWidth, 0, imaging.Lanczos), mime.Extension())
}

func encode(img image.Image, extension string) ([]byte, error) {
	format, err := imaging.FormatFromExtension(extension)
	if err != nil {
		format = imaging.JPEG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(85)); err != nil {
		return nil, eris.Wrap(err, "encoding resized image")
	}
	return buf.Bytes(), nil
}

// Discard destroys the CDN images behind urls. URLs the CDN does not own are skipped. One
// error is returned per image that could not be removed.
func (p *Pipeline) Discard(ctx context.Context, urls []string) []error {
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(p.opts.MaxConcurrent)

	for _, url := range urls {
		publicID, ok := PublicIDFromURL(url)
		if !ok {
			continue
		}

		g.Go(func() error {
			_, err := retry(ctx, p, func(callCtx context.Context) (struct{}, error) {
				return struct{}{}, p.cdn.Destroy(callCtx, publicID)
			})
			if err != nil {
				p.recorder.ImageOperation(metrics.OpDestroy, outcomeOf(err))
				p.logger.WithFields(logrus.Fields{"public_id": publicID, "error": err.Error()}).Warn("image delete failed")

				mu.Lock()
				errs = append(errs, eris.Wrapf(err, "deleting image %s", publicID))
				mu.Unlock()
				return nil
			}
			p.recorder.ImageOperation(metrics.OpDestroy, metrics.OutcomeOK)
			return nil
		})
	}
	_ = g.Wait()

	return errs
}

// retry runs fn up to Retries+1 times, racing each attempt against Timeout.
func retry[T any](ctx context.Context, p *Pipeline, fn func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)

	for attempt := 0; attempt <= p.opts.Retries; attempt++ {
		value, err := race(ctx, p.opts.Timeout, fn)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return zero, lastErr
}

// race returns fn's result or ErrTimeout, whichever comes first. fn receives a context that
// is cancelled on timeout.
func race[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn(callCtx)
		done <- result{value: value, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-callCtx.Done():
		var zero T
		if ctx.Err() != nil {
			return zero, eris.Wrap(ctx.Err(), "image operation cancelled")
		}
		return zero, eris.Wrapf(ErrTimeout, "after %s", timeout)
	}
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// PublicIDFromURL extracts the CDN public id from a delivery URL: the path after "/upload/",
// without transformation or version segments and without the file extension.
func PublicIDFromURL(raw string) (string, bool) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "", false
	}

	_, rest, found := strings.Cut(raw, "/upload/")
	if !found {
		return "", false
	}
	rest, _, _ = strings.Cut(rest, "?")

	segments := strings.Split(rest, "/")
	for i, segment := range segments {
		if versionSegment.MatchString(segment) {
			segments = segments[i+1:]
			break
		}
	}

	publicID := strings.Join(segments, "/")
	if dot := strings.LastIndex(publicID, "."); dot > strings.LastIndex(publicID, "/") {
		publicID = publicID[:dot]
	}

	if publicID == "" {
		return "", false
	}
	return publicID, true
}

func outcomeOf(err error) string {
	if eris.Is(err, ErrTimeout) {
		return metrics.OutcomeTimeout
	}
	return metrics.OutcomeFailed
}

// reason is the client-facing part of a per-image failure.
func reason(err error) string {
	switch {
	case eris.Is(err, ErrTooLarge):
		return ErrTooLarge.Error()
	case eris.Is(err, ErrNotImage):
		return ErrNotImage.Error()
	case eris.Is(err, ErrCorrupt):
		return ErrCorrupt.Error()
	case eris.Is(err, ErrUnsupportedSource):
		return ErrUnsupportedSource.Error()
	case eris.Is(err, ErrTimeout):
		return ErrTimeout.Error()
	default:
		return "upload failed"
	}
}
