package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"agrilog/internal/adapters/exports"
	"agrilog/internal/auth"
	"agrilog/internal/core"
	"agrilog/pkg/domain"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message ErrorMessage `json:"message"`
}

// ErrorMessage describes a failure to the API client.
type ErrorMessage struct {
	Reason string            `json:"reason"`
	Advice string            `json:"advice,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
	Cause  error             `json:"-"`
}

func (e ErrorMessage) String() string {
	lines := []string{e.Reason}
	if e.Advice != "" {
		lines = append(lines, e.Advice)
	}
	if e.Cause != nil {
		lines = append(lines, "caused by: "+e.Cause.Error())
	}
	return strings.Join(lines, "\n")
}

func (e ErrorMessage) Error() string { return e.String() }

func (e ErrorMessage) Unwrap() error { return e.Cause }

// ErrorMessageOption decorates an ErrorMessage.
type ErrorMessageOption func(*ErrorMessage)

// WithAdvice attaches a hint on how to recover.
func WithAdvice(advice string) ErrorMessageOption {
	return func(m *ErrorMessage) {
		if advice != "" {
			m.Advice = advice
		}
	}
}

// WithFields attaches per attribute messages.
func WithFields(fields map[string]string) ErrorMessageOption {
	return func(m *ErrorMessage) {
		if len(fields) > 0 {
			m.Fields = fields
		}
	}
}

// WithError records the underlying error. It is logged, never sent.
func WithError(err error) ErrorMessageOption {
	return func(m *ErrorMessage) {
		if err != nil {
			m.Cause = err
		}
	}
}

// NewErrorMessage builds an echo error carrying an ErrorMessage.
func NewErrorMessage(code int, reason string, opts ...ErrorMessageOption) *echo.HTTPError {
	msg := ErrorMessage{Reason: reason}
	for _, opt := range opts {
		opt(&msg)
	}
	return echo.NewHTTPError(code, msg).SetInternal(msg)
}

// BadRequest is a 400 with the cause attached.
func BadRequest(reason string, err error) *echo.HTTPError {
	return NewErrorMessage(http.StatusBadRequest, reason, WithError(err))
}

// toHTTPError classifies err into the status codes of the API.
func toHTTPError(err error) *echo.HTTPError {
	var (
		he        *echo.HTTPError
		invalid   domain.ValidationError
		violation domain.RuleViolationError
		missing   core.ErrNotFound
	)
	switch {
	case errors.As(err, &he):
		if _, ok := he.Message.(ErrorMessage); ok {
			return he
		}
		return NewErrorMessage(he.Code, fmt.Sprint(he.Message), WithError(he.Internal))
	case errors.As(err, &invalid):
		return NewErrorMessage(
			http.StatusBadRequest, "invalid input",
			WithFields(invalid.Fields), WithError(err),
		)
	case errors.Is(err, core.ErrInvalidCredentials):
		return NewErrorMessage(
			http.StatusUnauthorized, "invalid email or password",
			WithError(err),
		)
	case errors.Is(err, core.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		return NewErrorMessage(
			http.StatusUnauthorized, "authentication required",
			WithAdvice("log in and send the token as 'Authorization: Bearer <token>'"),
			WithError(err),
		)
	case errors.As(err, &missing):
		return NewErrorMessage(
			http.StatusNotFound, fmt.Sprintf("%s not found", strings.ReplaceAll(string(missing.Entity), "_", " ")),
			WithError(err),
		)
	case errors.Is(err, exports.ErrNotFound):
		return NewErrorMessage(http.StatusNotFound, "export not found", WithError(err))
	case errors.Is(err, exports.ErrNotReady):
		return NewErrorMessage(
			http.StatusConflict, "export not ready",
			WithAdvice("poll the export until its status is succeeded"),
			WithError(err),
		)
	case errors.As(err, &violation):
		fields := make(map[string]string)
		for _, v := range violation.Result.Blocking() {
			fields[v.Rule] = v.Message
		}
		return NewErrorMessage(http.StatusConflict, violation.Error(), WithFields(fields), WithError(err))
	case errors.Is(err, core.ErrEmailTaken):
		return NewErrorMessage(
			http.StatusConflict, "email already registered",
			WithFields(map[string]string{"email": "email already registered"}),
			WithError(err),
		)
	case errors.Is(err, exports.ErrQueueFull):
		return NewErrorMessage(
			http.StatusConflict, "export queue is full",
			WithAdvice("retry later"),
			WithError(err),
		)
	case errors.Is(err, exports.ErrUnknownFormat):
		return NewErrorMessage(
			http.StatusBadRequest, "unknown export format",
			WithAdvice("use csv or json"),
			WithError(err),
		)
	}
	return NewErrorMessage(
		http.StatusInternalServerError, "internal server error",
		WithAdvice("ask your system admin."),
		WithError(err),
	)
}

func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		he := toHTTPError(err)
		msg := he.Message.(ErrorMessage)
		if he.Code >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Error(err),
			)
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(he.Code)
		} else {
			werr = c.JSON(he.Code, ErrorResponse{Message: msg})
		}
		if werr != nil {
			logger.Warn("write error response", zap.Error(werr))
		}
	}
}
