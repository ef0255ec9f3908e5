package core

import (
	"context"
	"time"

	"agrilog/internal/auth"
	"agrilog/internal/infra/persistence/memory"
	"agrilog/pkg/domain"
)

// Service exposes the transactional account and crop operations.
type Service struct {
	store   PersistentStore
	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	hasher  auth.Hasher
}

type nowSetter interface {
	SetNowFunc(func() time.Time)
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	options := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if setter, ok := store.(nowSetter); ok {
		setter.SetNowFunc(options.clock.Now)
	}
	return &Service{
		store:   store,
		clock:   options.clock,
		logger:  options.logger,
		metrics: options.metrics,
		tracer:  options.tracer,
		audit:   options.audit,
		hasher:  options.hasher,
	}
}

// NewInMemoryService creates a service over a fresh in-memory store. A nil
// engine selects the default rule set.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

func (s *Service) now() time.Time {
	return s.clock.Now()
}

// run wraps an operation with tracing, metrics, logging and auditing. fn
// returns the id of the entity it touched, if any.
func (s *Service) run(ctx context.Context, op, actorID string, fn func(context.Context) (string, error)) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	entityID, err := fn(ctx)
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	switch {
	case err != nil && isClientError(err):
		s.logger.Warn("operation rejected", "operation", op, "actor", actorID, "error", err)
	case err != nil:
		s.logger.Error("operation failed", "operation", op, "actor", actorID, "error", err)
	default:
		s.logger.Debug("operation completed", "operation", op, "actor", actorID, "entity_id", entityID, "duration", duration)
	}
	s.recordAudit(ctx, op, actorID, entityID, duration, err)
	return err
}

// mutate runs fn inside a store transaction under run and logs non-blocking violations.
func (s *Service) mutate(ctx context.Context, op, actorID string, fn func(Transaction) (string, error)) (Result, error) {
	var res Result
	err := s.run(ctx, op, actorID, func(ctx context.Context) (string, error) {
		var entityID string
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			entityID, txErr = fn(tx)
			return txErr
		})
		return entityID, err
	})
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityBlock {
			continue
		}
		s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "entity", v.Entity, "entity_id", v.EntityID, "message", v.Message)
	}
	return res, err
}

// read runs fn against a store snapshot under run.
func (s *Service) read(ctx context.Context, op, actorID string, fn func(TransactionView) error) error {
	return s.run(ctx, op, actorID, func(ctx context.Context) (string, error) {
		return "", s.store.View(ctx, fn)
	})
}

type auditTarget struct {
	entity domain.EntityType
	action domain.Action
}

var auditedOperations = map[string]auditTarget{
	"register":                 {domain.EntityUser, domain.ActionCreate},
	"create_crop_type":         {domain.EntityCropType, domain.ActionCreate},
	"create_field":             {domain.EntityField, domain.ActionCreate},
	"update_field":             {domain.EntityField, domain.ActionUpdate},
	"update_field_notes":       {domain.EntityField, domain.ActionUpdate},
	"delete_field":             {domain.EntityField, domain.ActionDelete},
	"record_treatment":         {domain.EntityTreatment, domain.ActionCreate},
	"update_cultivation":       {domain.EntityCultivation, domain.ActionUpdate},
	"update_cultivation_notes": {domain.EntityCultivation, domain.ActionUpdate},
}

func (s *Service) recordAudit(ctx context.Context, op, actorID, entityID string, duration time.Duration, err error) {
	target, ok := auditedOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    target.entity,
		Action:    target.action,
		EntityID:  entityID,
		ActorID:   actorID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}
