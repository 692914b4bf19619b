package log

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
	sentrylogrus "github.com/getsentry/sentry-go/logrus"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const sentryFlushTimeout = 2 * time.Second

// SentrySettings configures error reporting. Release defaults to the module version baked
// into the binary.
type SentrySettings struct {
	DSN         string
	Environment string
	Release     string
	ServerName  string
}

// InitSentry connects error-level logrus entries to Sentry and returns a hub for direct
// captures. Without a DSN the hub is nil and flush is a no-op.
func InitSentry(logger *logrus.Logger, settings SentrySettings) (*sentry.Hub, func(), error) {
	if settings.DSN == "" {
		return nil, func() {}, nil
	}

	release := settings.Release
	if release == "" {
		release = buildVersion()
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              settings.DSN,
		Environment:      settings.Environment,
		Release:          release,
		ServerName:       settings.ServerName,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "error initializing sentry client")
	}

	scope := sentry.NewScope()
	scope.SetTag("service", "parkadmin-api")
	hub := sentry.NewHub(client, scope)

	logger.AddHook(sentrylogrus.NewLogHookFromClient([]logrus.Level{
		logrus.ErrorLevel,
		logrus.FatalLevel,
		logrus.PanicLevel,
	}, client))

	return hub, func() { hub.Flush(sentryFlushTimeout) }, nil
}

// CaptureError sends err through the hub bound to ctx, or through fallback when the request
// carries none. Tags only apply to this event.
func CaptureError(ctx context.Context, fallback *sentry.Hub, err error, tags map[string]string) {
	if err == nil {
		return
	}

	hub := fallback
	if ctx != nil {
		if bound := sentry.GetHubFromContext(ctx); bound != nil {
			hub = bound
		}
	}
	if hub == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range tags {
			if value != "" {
				scope.SetTag(key, value)
			}
		}
		hub.CaptureException(err)
	})
}

func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "devel"
	}
	return info.Main.Version
}
