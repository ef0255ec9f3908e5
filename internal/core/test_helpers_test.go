package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"agrilog/internal/auth"
	"agrilog/pkg/domain"
)

var fixedNow = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

const testPassword = "furrow-and-seed"

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithClock(ClockFunc(func() time.Time { return fixedNow })),
		WithPasswordHasher(auth.NewHasher(bcrypt.MinCost)),
	}
	return NewInMemoryService(nil, append(base, opts...)...)
}

func registerUser(t *testing.T, svc *Service, email string) User {
	t.Helper()
	user, _, err := svc.Register(context.Background(), Registration{
		Email:           email,
		Password:        testPassword,
		PasswordConfirm: testPassword,
	})
	require.NoError(t, err)
	return user
}

func createField(t *testing.T, svc *Service, ownerID, name string, area float64) Field {
	t.Helper()
	field, _, err := svc.CreateField(context.Background(), ownerID, FieldInput{Name: name, AreaSize: area})
	require.NoError(t, err)
	return field
}

func createCrop(t *testing.T, svc *Service, name string) CropType {
	t.Helper()
	crop, _, err := svc.CreateCropType(context.Background(), "", name)
	require.NoError(t, err)
	return crop
}

func sow(t *testing.T, svc *Service, ownerID, fieldID, cropID string, date time.Time) Treatment {
	t.Helper()
	treatment, _, err := svc.RecordTreatment(context.Background(), ownerID, fieldID, TreatmentInput{
		Type:       domain.TreatmentSowing,
		Date:       date,
		CropTypeID: &cropID,
	})
	require.NoError(t, err)
	return treatment
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (l *captureLogger) record(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf("%s:%s %v", level, msg, args))
}

func (l *captureLogger) has(prefix, op string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, call := range l.calls {
		if strings.HasPrefix(call, prefix) && strings.Contains(call, op) {
			return true
		}
	}
	return false
}

func (l *captureLogger) Debug(msg string, args ...any) { l.record("d", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("i", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("w", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("e", msg, args...) }

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			return true
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

type captureTracer struct {
	ended map[string]error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, captureSpan{tracer: c, op: op}
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s captureSpan) End(err error) {
	if s.tracer.ended == nil {
		s.tracer.ended = map[string]error{}
	}
	s.tracer.ended[s.op] = err
}
