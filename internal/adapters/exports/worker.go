// Package exports renders cultivation history exports asynchronously and
// stores the artifacts in the blob store.
package exports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agrilog/internal/blob"
	"agrilog/internal/core"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// DefaultQueueSize bounds pending exports when no size is configured.
const DefaultQueueSize = 32

var (
	// ErrQueueFull is returned when the worker cannot accept another export.
	ErrQueueFull = errors.New("export queue full")
	// ErrNotFound is returned for unknown exports and exports of other owners.
	ErrNotFound = errors.New("export not found")
	// ErrNotReady is returned when downloading from an unfinished export.
	ErrNotReady = errors.New("export not ready")
)

// Artifact is one stored rendition of an export.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Rows        int       `json:"rows"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its artifacts.
type Record struct {
	ID          string             `json:"id"`
	OwnerID     string             `json:"owner_id"`
	Formats     []Format           `json:"formats"`
	Filter      core.HistoryFilter `json:"-"`
	Status      Status             `json:"status"`
	Error       string             `json:"error,omitempty"`
	Artifacts   []Artifact         `json:"artifacts,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	cp := r
	cp.Formats = append([]Format(nil), r.Formats...)
	cp.Artifacts = append([]Artifact(nil), r.Artifacts...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	return cp
}

// Input is an export request.
type Input struct {
	OwnerID string
	Formats []Format
	Filter  core.HistoryFilter
}

// Source supplies the cultivation rows of an export.
type Source interface {
	ExportCultivations(ctx context.Context, ownerID string, filter core.HistoryFilter) ([]core.CultivationSummary, error)
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithQueueSize sets the number of exports that may wait for the worker.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queueSize = n
		}
	}
}

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// Worker executes exports on a single background goroutine.
type Worker struct {
	source    Source
	store     blob.Store
	logger    *zap.Logger
	now       func() time.Time
	queueSize int

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker constructs an export worker. Call Start to begin processing.
func NewWorker(source Source, store blob.Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		source:    source,
		store:     store,
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
		queueSize: DefaultQueueSize,
		jobs:      make(map[string]*Record),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.queue = make(chan string, w.queueSize)
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for the current export to finish.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(w.ctx, id)
		}
	}
}

func (w *Worker) newRecord(in Input) (Record, error) {
	if in.OwnerID == "" {
		return Record{}, core.ErrUnauthenticated
	}
	formats, err := normalizeFormats(in.Formats)
	if err != nil {
		return Record{}, err
	}
	now := w.now()
	return Record{
		ID:        uuid.NewString(),
		OwnerID:   in.OwnerID,
		Formats:   formats,
		Filter:    in.Filter,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// EnqueueExport schedules an export and returns the queued record.
func (w *Worker) EnqueueExport(ctx context.Context, in Input) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	record, err := w.newRecord(in)
	if err != nil {
		return Record{}, err
	}

	w.mu.Lock()
	w.jobs[record.ID] = &record
	queued := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- record.ID:
	default:
		w.mu.Lock()
		delete(w.jobs, record.ID)
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	w.logger.Info("export queued",
		zap.String("export_id", record.ID),
		zap.String("owner_id", record.OwnerID),
		zap.Int("pending", len(w.queue)),
	)
	return queued, nil
}

// Run executes an export synchronously, bypassing the queue.
func (w *Worker) Run(ctx context.Context, in Input) (Record, error) {
	record, err := w.newRecord(in)
	if err != nil {
		return Record{}, err
	}
	w.mu.Lock()
	w.jobs[record.ID] = &record
	w.mu.Unlock()

	w.process(ctx, record.ID)
	out, err := w.GetExport(in.OwnerID, record.ID)
	if err != nil {
		return Record{}, err
	}
	if out.Status == StatusFailed {
		return out, fmt.Errorf("export %s failed: %s", out.ID, out.Error)
	}
	return out, nil
}

// GetExport returns a snapshot of one of the owner's exports.
func (w *Worker) GetExport(ownerID, id string) (Record, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok || record.OwnerID != ownerID {
		return Record{}, ErrNotFound
	}
	return record.copy(), nil
}

// DownloadArtifact opens the stored artifact of a finished export.
func (w *Worker) DownloadArtifact(ctx context.Context, ownerID, id string, format Format) (Artifact, io.ReadCloser, error) {
	record, err := w.GetExport(ownerID, id)
	if err != nil {
		return Artifact{}, nil, err
	}
	if record.Status != StatusSucceeded {
		return Artifact{}, nil, ErrNotReady
	}
	for _, artifact := range record.Artifacts {
		if artifact.Format != format {
			continue
		}
		_, body, err := w.store.Get(ctx, artifact.Key)
		if err != nil {
			return Artifact{}, nil, fmt.Errorf("open artifact %s: %w", artifact.Key, err)
		}
		return artifact, body, nil
	}
	return Artifact{}, nil, ErrNotFound
}

// ArtifactKey is the blob key of an export rendition.
func ArtifactKey(ownerID, exportID string, format Format) string {
	return fmt.Sprintf("exports/%s/%s/cultivations.%s", ownerID, exportID, format.Extension())
}

func (w *Worker) process(ctx context.Context, id string) {
	w.mu.RLock()
	record, ok := w.jobs[id]
	var snapshot Record
	if ok {
		snapshot = record.copy()
	}
	w.mu.RUnlock()
	if !ok {
		return
	}

	w.updateStatus(id, StatusRunning)
	rows, err := w.source.ExportCultivations(ctx, snapshot.OwnerID, snapshot.Filter)
	if err != nil {
		w.fail(id, fmt.Sprintf("load cultivations: %v", err))
		return
	}

	artifacts := make([]Artifact, 0, len(snapshot.Formats))
	for _, format := range snapshot.Formats {
		payload, err := render(format, rows)
		if err != nil {
			w.fail(id, err.Error())
			return
		}
		artifact, err := w.storeArtifact(ctx, snapshot, format, payload, len(rows))
		if err != nil {
			w.fail(id, fmt.Sprintf("store artifact failed: %v", err))
			return
		}
		artifacts = append(artifacts, artifact)
	}
	w.complete(id, artifacts)
}

func (w *Worker) storeArtifact(ctx context.Context, record Record, format Format, payload []byte, rows int) (Artifact, error) {
	key := ArtifactKey(record.OwnerID, record.ID, format)
	info, err := w.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: format.ContentType(),
		Metadata: map[string]string{
			"export_id": record.ID,
			"owner_id":  record.OwnerID,
			"format":    string(format),
			"rows":      strconv.Itoa(rows),
		},
	})
	if err != nil {
		return Artifact{}, err
	}
	artifact := Artifact{
		Key:         key,
		Format:      format,
		ContentType: format.ContentType(),
		SizeBytes:   info.Size,
		Rows:        rows,
		CreatedAt:   w.now(),
	}
	url, err := w.store.PresignURL(ctx, key, blob.SignedURLOptions{Method: "GET"})
	switch {
	case err == nil:
		artifact.URL = url
	case errors.Is(err, blob.ErrUnsupported):
	default:
		w.logger.Warn("presign artifact", zap.String("key", key), zap.Error(err))
	}
	return artifact, nil
}

func (w *Worker) updateStatus(id string, status Status) {
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = ""
		record.UpdatedAt = w.now()
	}
	w.mu.Unlock()
	w.logger.Debug("export status", zap.String("export_id", id), zap.String("status", string(status)))
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := w.now()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Info("export succeeded", zap.String("export_id", id), zap.Int("artifacts", len(artifacts)))
}

func (w *Worker) fail(id, reason string) {
	now := w.now()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Warn("export failed", zap.String("export_id", id), zap.String("reason", reason))
}
