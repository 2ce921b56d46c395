package fleet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
	"github.com/sensorvision/sensorvision-go/internal/datastore/repository"
	"github.com/sensorvision/sensorvision-go/internal/logger"
)

// Outcome is the transient result of one rule evaluation.
type Outcome string

const (
	OutcomeBelowThreshold       Outcome = "BELOW_THRESHOLD"
	OutcomeTriggered            Outcome = "TRIGGERED"
	OutcomeSuppressedByCooldown Outcome = "SUPPRESSED_BY_COOLDOWN"
	// OutcomeSkippedDisabled marks an evaluation request for a disabled
	// rule; no aggregation runs and no state is touched.
	OutcomeSkippedDisabled Outcome = "SKIPPED_DISABLED"
)

// TriggerDecision carries everything the alert sink needs when a rule fires.
type TriggerDecision struct {
	Rule            *entities.GlobalRule
	Value           decimal.Decimal
	DeviceCount     int
	AffectedDevices []string
	Severity        entities.AlertSeverity
	Message         string
	TriggeredAt     time.Time
}

// AlertSink receives trigger decisions. Implementations persist the alert
// and fan out notifications; retries for downstream delivery are not the
// engine's concern.
type AlertSink interface {
	Emit(ctx context.Context, decision *TriggerDecision) error
}

const (
	// defaultEvaluationTimeout bounds a single rule evaluation.
	defaultEvaluationTimeout = 30 * time.Second
	// defaultMaxParallel caps concurrent rule evaluations in a sweep.
	defaultMaxParallel = 8
)

// Engine evaluates fleet rules: it resolves the device set, computes the
// aggregate, compares it to the threshold, and applies the cooldown.
//
// Evaluations of different rules run freely in parallel; evaluations of the
// same rule are serialized through a per-rule lock so a scheduled tick and a
// manual tick cannot double-fire inside one cooldown window.
type Engine struct {
	rules      repository.GlobalRuleRepository
	selector   *Selector
	aggregator *Aggregator
	sink       AlertSink
	metrics    *Metrics
	log        logger.Logger

	timeout     time.Duration
	maxParallel int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex // rule ID → evaluation lock

	// now is a hook for tests; defaults to time.Now.
	now func() time.Time
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithEvaluationTimeout bounds each evaluation; on expiry the evaluation is
// aborted with no state mutation and retried on the next tick.
func WithEvaluationTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxParallel caps concurrent evaluations in EvaluateDueRules.
func WithMaxParallel(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxParallel = n
		}
	}
}

// WithMetrics attaches Prometheus collectors to the engine.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a new rule evaluation engine.
func NewEngine(rules repository.GlobalRuleRepository, selector *Selector, aggregator *Aggregator, sink AlertSink, log logger.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		rules:       rules,
		selector:    selector,
		aggregator:  aggregator,
		sink:        sink,
		log:         log,
		timeout:     defaultEvaluationTimeout,
		maxParallel: defaultMaxParallel,
		locks:       make(map[string]*sync.Mutex),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ruleLock returns the mutex serializing evaluations of one rule.
func (e *Engine) ruleLock(id string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	if mu, ok := e.locks[id]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	e.locks[id] = mu
	return mu
}

// EvaluateRule runs one evaluation of the rule.
//
// The persisted bookkeeping advances only on a fully successful pass:
// last_evaluated_at on every completed evaluation, last_triggered_at only
// when the rule fires. A failure at any step (selector, store, sink,
// timeout) leaves both untouched so the next tick retries cleanly.
func (e *Engine) EvaluateRule(ctx context.Context, rule *entities.GlobalRule) (Outcome, error) {
	mu := e.ruleLock(rule.ID.String())
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := e.now()

	// Re-read bookkeeping under the lock: a concurrent evaluation may have
	// advanced the trigger timestamp since the caller loaded the rule.
	current, err := e.rules.GetRule(ctx, rule.ID)
	if err != nil {
		e.metrics.observeError()
		return "", fmt.Errorf("failed to reload rule %s: %w", rule.ID, err)
	}
	rule.Enabled = current.Enabled
	rule.LastEvaluatedAt = current.LastEvaluatedAt
	rule.LastTriggeredAt = current.LastTriggeredAt

	if !rule.Enabled {
		return OutcomeSkippedDisabled, nil
	}

	operator := canonicalName(rule.Operator)
	if !knownOperators[operator] {
		e.metrics.observeError()
		return "", fmt.Errorf("%w: %q", ErrUnknownOperator, rule.Operator)
	}

	devices, err := e.selector.SelectDevices(ctx, rule.OrganizationID, rule.SelectorType, rule.SelectorValue)
	if err != nil {
		e.metrics.observeError()
		return "", fmt.Errorf("failed to select devices for rule %s: %w", rule.ID, err)
	}

	result, err := e.aggregator.ComputeAggregate(ctx, rule, devices)
	if err != nil {
		e.metrics.observeError()
		return "", fmt.Errorf("failed to compute aggregate for rule %s: %w", rule.ID, err)
	}

	now := e.now()
	outcome := OutcomeBelowThreshold
	if compareThreshold(result.Value, operator, rule.Threshold) {
		if rule.InCooldown(now) {
			outcome = OutcomeSuppressedByCooldown
		} else {
			outcome = OutcomeTriggered
			if err := e.fire(ctx, rule, result, now); err != nil {
				e.metrics.observeError()
				return "", err
			}
		}
	}

	if err := e.rules.MarkEvaluated(ctx, rule.ID, now); err != nil {
		e.metrics.observeError()
		return "", fmt.Errorf("failed to record evaluation of rule %s: %w", rule.ID, err)
	}
	rule.LastEvaluatedAt = &now

	e.metrics.observeOutcome(outcome, e.now().Sub(started).Seconds())
	e.log.Debug("rule evaluated",
		logger.String("rule_id", rule.ID.String()),
		logger.String("rule", rule.Name),
		logger.String("outcome", string(outcome)),
		logger.String("value", result.Value.String()),
		logger.Int("device_count", result.DeviceCount))
	return outcome, nil
}

// fire persists the trigger: the alert goes to the sink first, then the
// trigger timestamp advances. If the sink fails nothing is committed and
// the rule fires again on the next tick.
func (e *Engine) fire(ctx context.Context, rule *entities.GlobalRule, result AggregationResult, now time.Time) error {
	severity := determineSeverity(rule.Threshold, result.Value)
	decision := &TriggerDecision{
		Rule:            rule,
		Value:           result.Value,
		DeviceCount:     result.DeviceCount,
		AffectedDevices: result.AffectedDevices,
		Severity:        severity,
		Message:         triggerMessage(rule, result),
		TriggeredAt:     now,
	}

	if err := e.sink.Emit(ctx, decision); err != nil {
		return fmt.Errorf("failed to emit alert for rule %s: %w", rule.ID, err)
	}
	if err := e.rules.MarkTriggered(ctx, rule.ID, now); err != nil {
		return fmt.Errorf("failed to record trigger of rule %s: %w", rule.ID, err)
	}
	rule.LastTriggeredAt = &now

	e.log.Info("fleet rule triggered",
		logger.String("rule_id", rule.ID.String()),
		logger.String("rule", rule.Name),
		logger.String("severity", string(severity)),
		logger.String("value", result.Value.String()),
		logger.Int("affected", len(result.AffectedDevices)))
	return nil
}

// EvaluateDueRules evaluates every enabled rule whose interval has elapsed.
// Rules run in parallel up to the configured limit; a failing rule is
// logged and skipped so one bad rule cannot stall the sweep. Returns the
// number of rules evaluated.
func (e *Engine) EvaluateDueRules(ctx context.Context) (int, error) {
	due, err := e.rules.ListDueForEvaluation(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list due rules: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	e.log.Info("evaluating due fleet rules", logger.Int("count", len(due)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxParallel)
	for i := range due {
		rule := &due[i]
		g.Go(func() error {
			if _, err := e.EvaluateRule(gctx, rule); err != nil {
				e.log.Error("rule evaluation failed",
					logger.String("rule_id", rule.ID.String()),
					logger.String("rule", rule.Name),
					logger.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return len(due), nil
}

// compareThreshold applies the rule operator. EQ and NEQ compare exactly.
func compareThreshold(value decimal.Decimal, operator string, threshold decimal.Decimal) bool {
	cmp := value.Cmp(threshold)
	switch operator {
	case OperatorGT:
		return cmp > 0
	case OperatorGTE:
		return cmp >= 0
	case OperatorLT:
		return cmp < 0
	case OperatorLTE:
		return cmp <= 0
	case OperatorEQ:
		return cmp == 0
	case OperatorNEQ:
		return cmp != 0
	default:
		return false
	}
}

// determineSeverity grades an alert by the relative deviation of the value
// from the threshold: more than 2x the threshold away is CRITICAL, 1x HIGH,
// 0.5x MEDIUM, anything closer LOW. A zero threshold has no scale, so it
// grades MEDIUM.
func determineSeverity(threshold, value decimal.Decimal) entities.AlertSeverity {
	absThreshold := threshold.Abs()
	if absThreshold.IsZero() {
		return entities.SeverityMedium
	}
	ratio := value.Sub(threshold).Abs().DivRound(absThreshold, 4)
	switch {
	case ratio.GreaterThan(decimal.NewFromInt(2)):
		return entities.SeverityCritical
	case ratio.GreaterThan(decimal.NewFromInt(1)):
		return entities.SeverityHigh
	case ratio.GreaterThan(decimal.NewFromFloat(0.5)):
		return entities.SeverityMedium
	default:
		return entities.SeverityLow
	}
}

// operatorSymbol renders an operator for alert messages.
func operatorSymbol(operator string) string {
	switch operator {
	case OperatorGT:
		return ">"
	case OperatorGTE:
		return ">="
	case OperatorLT:
		return "<"
	case OperatorLTE:
		return "<="
	case OperatorEQ:
		return "="
	case OperatorNEQ:
		return "!="
	default:
		return operator
	}
}

func triggerMessage(rule *entities.GlobalRule, result AggregationResult) string {
	return fmt.Sprintf("Fleet rule %q triggered: %s(%s) %s %s (actual: %s, %d devices in scope)",
		rule.Name,
		rule.AggregationFunction,
		rule.AggregationVariable,
		operatorSymbol(rule.Operator),
		rule.Threshold.String(),
		result.Value.String(),
		result.DeviceCount)
}
