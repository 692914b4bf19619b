package http

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"parkadmin/app/internal/apperr"
	"parkadmin/app/internal/auth"
)

const (
	rateLimitMessage = "Too many requests. Please wait a moment and try again."
	accessMetadata   = "access"
)

func (s *Server) requestIDMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		reqID := uuid.NewString()
		meta := &requestMeta{ID: reqID}
		if req, _ := humachi.Unwrap(ctx); req != nil {
			meta.ClientIP = clientIPFromRequest(req)
		}
		goCtx := withRequestMeta(ctx.Context(), meta)
		ctx = huma.WithContext(ctx, goCtx)
		ctx.SetHeader("X-Request-ID", reqID)

		if hub := sentry.GetHubFromContext(goCtx); hub != nil {
			hub.Scope().SetTag("request_id", reqID)
		}

		next(ctx)
	}
}

func (s *Server) rateLimitMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.rateLimiter == nil {
			next(ctx)
			return
		}

		req, _ := humachi.Unwrap(ctx)
		if req == nil {
			next(ctx)
			return
		}

		ip := clientIPFromRequest(req)
		if meta, ok := requestMetaFrom(ctx.Context()); ok {
			ip = meta.ClientIP
		}
		if s.rateLimiter.Allow(ip) {
			next(ctx)
			return
		}

		if s.logger != nil {
			fields := logrus.Fields{
				"ip":   ip,
				"path": req.URL.Path,
			}
			if requestID := RequestIDFromContext(ctx.Context()); requestID != "" {
				fields["request_id"] = requestID
			}
			s.logger.WithError(eris.New("rate limit exceeded")).WithFields(fields).Warn("request rate limited")
		}

		ctx.SetHeader("Retry-After", "1")
		_ = huma.WriteErr(s.api, ctx, stdhttp.StatusTooManyRequests, rateLimitMessage)
	}
}

func (s *Server) loggingMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()
		next(ctx)
		elapsed := time.Since(start)

		status := ctx.Status()
		if status == 0 {
			status = stdhttp.StatusOK
		}

		route := ""
		if op := ctx.Operation(); op != nil {
			route = op.Path
		}
		s.recorder.ObserveRequest(ctx.Method(), route, status, elapsed)

		if s.logger == nil {
			return
		}

		fields := logrus.Fields{
			"method":      ctx.Method(),
			"status":      status,
			"route":       route,
			"duration_ms": float64(elapsed.Microseconds()) / 1000,
		}

		if req, _ := humachi.Unwrap(ctx); req != nil {
			fields["path"] = req.URL.Path
		}

		if meta, ok := requestMetaFrom(ctx.Context()); ok {
			fields["request_id"] = meta.ID
			fields["client_ip"] = meta.ClientIP
			if meta.UserID != "" {
				fields["user_id"] = meta.UserID
			}
		}

		entry := s.logger.WithFields(fields)
		if status >= 500 {
			entry.Error("request failed")
		} else {
			entry.Info("request completed")
		}
	}
}

func (s *Server) recoveryMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		defer func() {
			if rec := recover(); rec != nil {
				var err error
				switch v := rec.(type) {
				case error:
					err = v
				default:
					err = fmt.Errorf("panic: %v", v)
				}

				s.recordError(ctx.Context(), err, "panic recovered", nil)

				if hub := sentry.GetHubFromContext(ctx.Context()); hub != nil {
					hub.RecoverWithContext(ctx.Context(), rec)
					hub.Flush(2 * time.Second)
				}

				_ = huma.WriteErr(s.api, ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
			}
		}()

		next(ctx)
	}
}

func (s *Server) sentryMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.sentry == nil {
			next(ctx)
			return
		}

		hub := s.sentry.Clone()
		scope := hub.Scope()
		scope.SetTag("http.method", ctx.Method())
		if op := ctx.Operation(); op != nil {
			scope.SetTag("http.route", op.Path)
		}

		goCtx := sentry.SetHubOnContext(ctx.Context(), hub)
		ctx = huma.WithContext(ctx, goCtx)

		defer hub.Flush(2 * time.Second)

		next(ctx)
	}
}

// authMiddleware enforces the access level recorded in each operation's metadata.
// Operations without one require an approved editor.
func (s *Server) authMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		level := accessOf(ctx.Operation())
		if level == auth.AccessPublic {
			next(ctx)
			return
		}

		session, err := s.authenticate(ctx.Context(), ctx.Header("Authorization"))
		if err == nil {
			err = session.Permits(level)
		}
		if err != nil {
			status := statusOf(apperr.KindOf(err))
			_ = huma.WriteErr(s.api, ctx, status, apperr.MessageOf(err, errorFallbackMessage))
			return
		}

		if meta, ok := requestMetaFrom(ctx.Context()); ok {
			meta.UserID = session.UserID
		}
		if hub := sentry.GetHubFromContext(ctx.Context()); hub != nil {
			hub.Scope().SetUser(sentry.User{ID: session.UserID, Email: session.Email})
		}

		next(huma.WithContext(ctx, auth.WithSession(ctx.Context(), session)))
	}
}

func (s *Server) authenticate(ctx context.Context, header string) (auth.Session, error) {
	identity, err := s.verifyBearer(ctx, header)
	if err != nil {
		return auth.Session{}, err
	}
	return s.users.Authenticate(ctx, identity)
}

func (s *Server) verifyBearer(ctx context.Context, header string) (auth.Identity, error) {
	token, ok := auth.BearerToken(header)
	if !ok {
		return auth.Identity{}, apperr.Unauthorized("Access denied. No token provided.")
	}
	if s.verifier == nil {
		return auth.Identity{}, apperr.Unauthorized("Sign-in is not configured on this server")
	}

	identity, err := s.verifier.Verify(ctx, token)
	if err != nil {
		if s.logger != nil {
			fields := logrus.Fields{"error": err.Error()}
			if requestID := RequestIDFromContext(ctx); requestID != "" {
				fields["request_id"] = requestID
			}
			s.logger.WithFields(fields).Warn("rejected bearer token")
		}
		return auth.Identity{}, apperr.Wrap(apperr.KindUnauthorized, err, "Invalid token")
	}

	return identity, nil
}

func accessOf(op *huma.Operation) auth.Access {
	if op == nil || op.Metadata == nil {
		return auth.AccessEditor
	}
	if level, ok := op.Metadata[accessMetadata].(auth.Access); ok {
		return level
	}
	return auth.AccessEditor
}
