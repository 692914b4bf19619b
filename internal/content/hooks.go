package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// ImageStore moves image sources in and out of the CDN.
//
// Store returns the usable URLs for sources, in order, with one warning per source that
// could not be stored. Sources that already are http(s) URLs come back unchanged. Discard
// removes CDN-owned images and returns one error per image it failed to remove.
type ImageStore interface {
	Store(ctx context.Context, sources []string) (urls []string, warnings []string)
	Discard(ctx context.Context, urls []string) []error
}

// EventKind says what happened to the records in an Event.
type EventKind string

const (
	EventDeleted EventKind = "deleted"
	EventUpdated EventKind = "updated"
)

// Event describes a committed write. Images lists the image URLs the write orphaned.
type Event struct {
	Kind     EventKind
	Resource Resource
	IDs      []string
	Images   []string
}

// Hook runs after a write has committed. Its errors are reported as warnings and never undo
// the write.
type Hook struct {
	Name string
	Run  func(ctx context.Context, event Event) []error
}

// ImageCleanupHook discards the images a committed write left behind.
func ImageCleanupHook(images ImageStore) Hook {
	return Hook{
		Name: "image-cleanup",
		Run: func(ctx context.Context, event Event) []error {
			if images == nil || len(event.Images) == 0 {
				return nil
			}
			return images.Discard(ctx, event.Images)
		},
	}
}

// runHooks executes every hook and converts failures into client warnings. The request
// context's cancellation is dropped so a disconnecting client does not abort cleanup.
func (s *service) runHooks(ctx context.Context, event Event) []string {
	ctx = context.WithoutCancel(ctx)

	var warnings []string
	for _, hook := range s.hooks {
		for _, err := range hook.Run(ctx, event) {
			if err == nil {
				continue
			}
			s.recorder.HookFailed(hook.Name)
			if s.logger != nil {
				s.logger.WithFields(logrus.Fields{
					"hook":     hook.Name,
					"resource": string(event.Resource),
					"kind":     string(event.Kind),
					"error":    err.Error(),
				}).Warn("post-commit hook failed")
			}
			warnings = append(warnings, hookWarning(hook.Name, err))
		}
	}

	return warnings
}

func hookWarning(name string, err error) string {
	return name + ": " + err.Error()
}

type passthroughImages struct{}

// Store keeps http(s) URLs and rejects everything else because no CDN is configured.
func (passthroughImages) Store(_ context.Context, sources []string) ([]string, []string) {
	var urls, warnings []string
	for i, source := range sources {
		if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
			urls = append(urls, source)
			continue
		}
		warnings = append(warnings, fmt.Sprintf("image %d skipped: uploads are not configured", i+1))
	}
	return urls, warnings
}

func (passthroughImages) Discard(context.Context, []string) []error { return nil }
