package entities

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GlobalRule is a fleet-wide aggregation rule: it selects a set of devices,
// computes an aggregate over them, and compares the result to a threshold.
// Evaluation bookkeeping (LastEvaluatedAt, LastTriggeredAt) is written only
// by the rule evaluation engine; everything else is owned by rule management.
type GlobalRule struct {
	ID             uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:char(36);not null;index" json:"organization_id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Description    string    `gorm:"size:1000;default:''" json:"description"`

	// Device selection criteria
	SelectorType  string `gorm:"size:50;not null" json:"selector_type"`
	SelectorValue string `gorm:"type:text" json:"selector_value"`

	// Aggregation and condition
	AggregationFunction string          `gorm:"size:100;not null" json:"aggregation_function"`
	AggregationVariable string          `gorm:"size:100;default:''" json:"aggregation_variable"`
	AggregationParams   map[string]any  `gorm:"serializer:json" json:"aggregation_params"`
	Operator            string          `gorm:"size:10;not null" json:"operator"`
	Threshold           decimal.Decimal `gorm:"type:decimal(15,6);not null" json:"threshold"`

	// Evaluation settings
	Enabled            bool   `gorm:"not null;index" json:"enabled"`
	EvaluationInterval string `gorm:"size:50;not null;default:5m" json:"evaluation_interval"`
	CooldownMinutes    int    `gorm:"not null;default:5" json:"cooldown_minutes"`

	// Evaluation bookkeeping
	LastEvaluatedAt *time.Time `json:"last_evaluated_at"`
	LastTriggeredAt *time.Time `json:"last_triggered_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (GlobalRule) TableName() string {
	return "global_rules"
}

// defaultEvaluationInterval is used when a rule's interval string cannot
// be parsed.
const defaultEvaluationInterval = 5 * time.Minute

// EvaluationIntervalDuration parses the rule's evaluation interval.
// Accepts "30s", "5m", "1h", and bare minute counts ("15"); unparseable
// values fall back to five minutes rather than stalling the rule.
func (r *GlobalRule) EvaluationIntervalDuration() time.Duration {
	s := strings.ToLower(strings.TrimSpace(r.EvaluationInterval))
	if s == "" {
		return defaultEvaluationInterval
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Minute
	}
	return defaultEvaluationInterval
}

// DueForEvaluation reports whether the rule's evaluation interval has
// elapsed since its last evaluation. Never-evaluated rules are always due.
func (r *GlobalRule) DueForEvaluation(now time.Time) bool {
	if r.LastEvaluatedAt == nil {
		return true
	}
	return !now.Before(r.LastEvaluatedAt.Add(r.EvaluationIntervalDuration()))
}

// InCooldown reports whether a trigger at now would fall inside the rule's
// cooldown window.
func (r *GlobalRule) InCooldown(now time.Time) bool {
	if r.LastTriggeredAt == nil {
		return false
	}
	cooldown := time.Duration(r.CooldownMinutes) * time.Minute
	return now.Sub(*r.LastTriggeredAt) < cooldown
}

// PercentileParam returns the rule's percentile parameter, or def when
// the parameter is absent or not numeric.
func (r *GlobalRule) PercentileParam(def float64) float64 {
	if r.AggregationParams == nil {
		return def
	}
	v, ok := r.AggregationParams["percentile"]
	if !ok {
		return def
	}
	switch p := v.(type) {
	case float64:
		return p
	case int:
		return float64(p)
	default:
		return def
	}
}
