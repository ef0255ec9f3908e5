package observability

import (
	"context"
	"time"

	"go.uber.org/zap"

	"agrilog/internal/core"
)

var (
	_ core.Tracer        = (*LogTracer)(nil)
	_ core.AuditRecorder = (*AuditLogger)(nil)
)

// LogTracer emits one debug entry per finished span.
type LogTracer struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewLogTracer returns a tracer writing to logger.
func NewLogTracer(logger *zap.Logger) *LogTracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTracer{logger: logger.Named("trace"), now: time.Now}
}

// Start implements core.Tracer.
func (t *LogTracer) Start(ctx context.Context, operation string) (context.Context, core.TraceSpan) {
	return ctx, &logSpan{tracer: t, operation: operation, started: t.now()}
}

type logSpan struct {
	tracer    *LogTracer
	operation string
	started   time.Time
}

func (s *logSpan) End(err error) {
	fields := []zap.Field{
		zap.String("operation", s.operation),
		zap.Time("started_at", s.started.UTC()),
		zap.Duration("duration", s.tracer.now().Sub(s.started)),
	}
	if err != nil {
		fields = append(fields, zap.String("status", OutcomeError), zap.Error(err))
	} else {
		fields = append(fields, zap.String("status", OutcomeSuccess))
	}
	s.tracer.logger.Debug("span", fields...)
}

// AuditLogger writes audit entries as structured info logs.
type AuditLogger struct {
	logger *zap.Logger
}

// NewAuditLogger returns an audit recorder writing to logger.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogger{logger: logger.Named("audit")}
}

// Record implements core.AuditRecorder.
func (a *AuditLogger) Record(_ context.Context, entry core.AuditEntry) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("entity", string(entry.Entity)),
		zap.String("action", string(entry.Action)),
		zap.String("entity_id", entry.EntityID),
		zap.String("actor_id", entry.ActorID),
		zap.String("status", string(entry.Status)),
		zap.Duration("duration", entry.Duration),
		zap.Time("timestamp", entry.Timestamp),
	}
	if entry.Error != "" {
		fields = append(fields, zap.String("error", entry.Error))
		a.logger.Warn("audit", fields...)
		return
	}
	a.logger.Info("audit", fields...)
}
