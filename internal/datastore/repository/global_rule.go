package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
)

// GlobalRuleRepository handles fleet rule CRUD and evaluation bookkeeping.
type GlobalRuleRepository interface {
	// Rule CRUD
	ListRules(ctx context.Context, organizationID uuid.UUID) ([]entities.GlobalRule, error)
	GetRule(ctx context.Context, id uuid.UUID) (*entities.GlobalRule, error)
	CreateRule(ctx context.Context, rule *entities.GlobalRule) error
	UpdateRule(ctx context.Context, rule *entities.GlobalRule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
	ToggleRule(ctx context.Context, id uuid.UUID, enabled bool) error

	// ListDueForEvaluation returns enabled rules whose evaluation interval
	// has elapsed since their last evaluation (or that have never been
	// evaluated).
	ListDueForEvaluation(ctx context.Context, now time.Time) ([]entities.GlobalRule, error)

	// Evaluation bookkeeping. MarkEvaluated advances last_evaluated_at;
	// MarkTriggered advances last_triggered_at. Both are written only by
	// the rule evaluation engine.
	MarkEvaluated(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkTriggered(ctx context.Context, id uuid.UUID, at time.Time) error
}
