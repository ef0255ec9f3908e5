package core

import (
	"fmt"
	"time"

	"agrilog/pkg/domain"
)

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(UniqueEmailRule())
	engine.Register(UniqueCropTypeNameRule())
	engine.Register(UniqueFieldNameRule())
	engine.Register(UniqueSlugRule())
	engine.Register(UniqueSeasonRule())
	engine.Register(CultivationValidityRule(func() time.Time { return time.Now().UTC() }))
	return engine
}

func blockViolation(rule string, entity domain.EntityType, id, format string, args ...any) domain.Violation {
	return domain.Violation{
		Rule:     rule,
		Severity: domain.SeverityBlock,
		Message:  fmt.Sprintf(format, args...),
		Entity:   entity,
		EntityID: id,
	}
}
