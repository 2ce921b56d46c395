package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
)

// globalRuleRepository implements GlobalRuleRepository.
type globalRuleRepository struct {
	db *gorm.DB
}

// NewGlobalRuleRepository creates a new GlobalRuleRepository.
func NewGlobalRuleRepository(db *gorm.DB) GlobalRuleRepository {
	return &globalRuleRepository{db: db}
}

// ListRules returns all rules of an organization ordered by creation time.
func (r *globalRuleRepository) ListRules(ctx context.Context, organizationID uuid.UUID) ([]entities.GlobalRule, error) {
	var rules []entities.GlobalRule
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("created_at ASC").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list global rules: %w", err)
	}
	return rules, nil
}

// GetRule returns a single rule by ID.
// Returns ErrGlobalRuleNotFound if the rule does not exist.
func (r *globalRuleRepository) GetRule(ctx context.Context, id uuid.UUID) (*entities.GlobalRule, error) {
	var rule entities.GlobalRule
	if err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGlobalRuleNotFound
		}
		return nil, fmt.Errorf("failed to get global rule %s: %w", id, err)
	}
	return &rule, nil
}

// CreateRule creates a new rule, assigning an ID when absent.
func (r *globalRuleRepository) CreateRule(ctx context.Context, rule *entities.GlobalRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create global rule: %w", err)
	}
	return nil
}

// UpdateRule saves a full rule row.
func (r *globalRuleRepository) UpdateRule(ctx context.Context, rule *entities.GlobalRule) error {
	if rule.ID == uuid.Nil {
		return fmt.Errorf("failed to update global rule: missing rule ID")
	}
	if err := r.db.WithContext(ctx).Save(rule).Error; err != nil {
		return fmt.Errorf("failed to update global rule %s: %w", rule.ID, err)
	}
	return nil
}

// DeleteRule deletes a rule by ID.
func (r *globalRuleRepository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&entities.GlobalRule{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete global rule %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrGlobalRuleNotFound
	}
	return nil
}

// ToggleRule enables or disables a rule.
func (r *globalRuleRepository) ToggleRule(ctx context.Context, id uuid.UUID, enabled bool) error {
	result := r.db.WithContext(ctx).Model(&entities.GlobalRule{}).
		Where("id = ?", id).Update("enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("failed to toggle global rule %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrGlobalRuleNotFound
	}
	return nil
}

// ListDueForEvaluation returns enabled rules whose evaluation interval has
// elapsed. Interval strings are parsed application-side, so this fetches all
// enabled rules and filters; rule counts are small relative to fleets.
func (r *globalRuleRepository) ListDueForEvaluation(ctx context.Context, now time.Time) ([]entities.GlobalRule, error) {
	var rules []entities.GlobalRule
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("created_at ASC").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rules due for evaluation: %w", err)
	}

	due := rules[:0]
	for i := range rules {
		if rules[i].DueForEvaluation(now) {
			due = append(due, rules[i])
		}
	}
	return due, nil
}

// MarkEvaluated advances a rule's last_evaluated_at timestamp.
func (r *globalRuleRepository) MarkEvaluated(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.GlobalRule{}).
		Where("id = ?", id).Update("last_evaluated_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to mark rule %s evaluated: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrGlobalRuleNotFound
	}
	return nil
}

// MarkTriggered advances a rule's last_triggered_at timestamp. The update is
// guarded so the timestamp only moves forward.
func (r *globalRuleRepository) MarkTriggered(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.GlobalRule{}).
		Where("id = ? AND (last_triggered_at IS NULL OR last_triggered_at <= ?)", id, at).
		Update("last_triggered_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to mark rule %s triggered: %w", id, result.Error)
	}
	return nil
}
