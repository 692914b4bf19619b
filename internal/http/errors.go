package http

import (
	"context"
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"parkadmin/app/internal/apperr"
	applog "parkadmin/app/internal/log"
)

const errorFallbackMessage = "Something went wrong, please try again later"

// apiError is the JSON error body every endpoint returns.
type apiError struct {
	Status  int      `json:"status"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func (e *apiError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *apiError) GetStatus() int {
	return e.Status
}

// newAPIError replaces huma's problem+json errors. Schema violations are reported as 400
// like every other rejected input.
func newAPIError(status int, message string, errs ...error) huma.StatusError {
	if status == stdhttp.StatusUnprocessableEntity {
		status = stdhttp.StatusBadRequest
	}

	details := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			details = append(details, err.Error())
		}
	}

	return &apiError{Status: status, Message: message, Errors: details}
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return stdhttp.StatusBadRequest
	case apperr.KindNotFound:
		return stdhttp.StatusNotFound
	case apperr.KindConflict:
		return stdhttp.StatusConflict
	case apperr.KindUnauthorized:
		return stdhttp.StatusUnauthorized
	case apperr.KindForbidden:
		return stdhttp.StatusForbidden
	default:
		return stdhttp.StatusInternalServerError
	}
}

// toHTTPError maps a service error onto the API error body. Unclassified errors are logged
// and reported because the services only return them for programming mistakes.
func (s *Server) toHTTPError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	appErr, ok := apperr.As(err)
	if !ok {
		s.recordError(ctx, err, operation, nil)
		return &apiError{Status: stdhttp.StatusInternalServerError, Message: errorFallbackMessage}
	}

	status := statusOf(appErr.Kind)
	message := appErr.Message
	if message == "" {
		message = stdhttp.StatusText(status)
	}

	return &apiError{Status: status, Message: message}
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if fields != nil {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	applog.CaptureError(ctx, s.sentry, err, map[string]string{"request_id": RequestIDFromContext(ctx)})
}
