// Package httpapi exposes the AgriLog service over a JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"agrilog/internal/adapters/exports"
	"agrilog/internal/auth"
	"agrilog/internal/core"
)

// Exporter is the export worker surface used by the API.
type Exporter interface {
	EnqueueExport(ctx context.Context, in exports.Input) (exports.Record, error)
	GetExport(ownerID, id string) (exports.Record, error)
	DownloadArtifact(ctx context.Context, ownerID, id string, format exports.Format) (exports.Artifact, io.ReadCloser, error)
}

// Config wires the API to its collaborators. Service and Tokens are
// required.
type Config struct {
	Service  *core.Service
	Exports  Exporter
	Tokens   *auth.TokenIssuer
	Logger   *zap.Logger
	Gatherer prometheus.Gatherer
	LogLevel string
}

// New builds the echo instance serving every route of the API.
func New(cfg Config) (*echo.Echo, error) {
	if cfg.Service == nil {
		return nil, errors.New("httpapi: service is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("httpapi: token issuer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	SetLevel(e, cfg.LogLevel)
	e.HTTPErrorHandler = errorHandler(logger)
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	h := &handlers{svc: cfg.Service, exports: cfg.Exports, tokens: cfg.Tokens}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	api.POST("/accounts/register", h.register)
	api.POST("/accounts/login", h.login)

	authed := api.Group("", authenticate(cfg.Tokens, cfg.Service))
	authed.GET("/accounts/profile", h.profile)
	authed.GET("/dashboard", h.dashboard)

	authed.GET("/crop-types", h.listCropTypes)
	authed.POST("/crop-types", h.createCropType)

	authed.GET("/fields", h.listFields)
	authed.POST("/fields", h.createField)
	authed.GET("/fields/:id", h.getField)
	authed.PUT("/fields/:id", h.updateField)
	authed.DELETE("/fields/:id", h.deleteField)
	authed.PUT("/fields/:id/notes", h.updateFieldNotes)
	authed.GET("/fields/:id/treatments", h.listTreatments)
	authed.POST("/fields/:id/treatments", h.recordTreatment)

	authed.GET("/cultivations", h.cultivationHistory)
	authed.GET("/cultivations/slug/:slug", h.getCultivationBySlug)
	authed.GET("/cultivations/:id", h.getCultivation)
	authed.PUT("/cultivations/:id", h.updateCultivation)
	authed.PUT("/cultivations/:id/notes", h.updateCultivationNotes)

	if cfg.Exports != nil {
		authed.POST("/exports", h.enqueueExport)
		authed.GET("/exports/:id", h.getExport)
		authed.GET("/exports/:id/:format", h.downloadExport)
	}
	return e, nil
}

// SetLevel maps a log level name onto echo's own logger.
func SetLevel(e *echo.Echo, level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		e.Logger.SetLevel(log.DEBUG)
	case "info":
		e.Logger.SetLevel(log.INFO)
	case "", "warn":
		e.Logger.SetLevel(log.WARN)
	case "error":
		e.Logger.SetLevel(log.ERROR)
	case "off":
		e.Logger.SetLevel(log.OFF)
	default:
		e.Logger.SetLevel(log.WARN)
		e.Logger.Warnf("unknown log level %q, falling back to warn", level)
	}
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			started := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(started)),
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			logger.Info("request", fields...)
			return nil
		}
	}
}

const userIDKey = "agrilog.user_id"

func authenticate(tokens *auth.TokenIssuer, svc *core.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
				return core.ErrUnauthenticated
			}
			userID, err := tokens.Verify(strings.TrimSpace(token))
			if err != nil {
				return err
			}
			if _, err := svc.GetUser(c.Request().Context(), userID); err != nil {
				if core.IsNotFound(err) {
					return core.ErrUnauthenticated
				}
				return err
			}
			c.Set(userIDKey, userID)
			return next(c)
		}
	}
}

func currentUserID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}
