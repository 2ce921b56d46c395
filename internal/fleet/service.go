package fleet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
	"github.com/sensorvision/sensorvision-go/internal/logger"
)

const (
	// deviceSetTTL is how long an ad-hoc query may reuse a resolved device
	// set. Rule evaluation always resolves fresh.
	deviceSetTTL = 15 * time.Second

	deviceSetCleanup = time.Minute
)

// Service is the engine's upward-facing surface: device selection, ad-hoc
// fleet aggregates, single-device statistics, and manual rule evaluation.
// Interactive aggregate queries reuse recently resolved device sets so
// repeated dashboard refreshes stay sub-second on large fleets.
type Service struct {
	selector   *Selector
	aggregator *Aggregator
	statistics *Statistics
	engine     *Engine
	metrics    *Metrics
	log        logger.Logger

	deviceSets *gocache.Cache
}

// NewService creates the engine facade.
func NewService(selector *Selector, aggregator *Aggregator, statistics *Statistics, engine *Engine, metrics *Metrics, log logger.Logger) *Service {
	return &Service{
		selector:   selector,
		aggregator: aggregator,
		statistics: statistics,
		engine:     engine,
		metrics:    metrics,
		log:        log,
		deviceSets: gocache.New(deviceSetTTL, deviceSetCleanup),
	}
}

// SelectDevices resolves the device set for the selector criteria.
func (s *Service) SelectDevices(ctx context.Context, organizationID uuid.UUID, selectorType, selectorValue string) ([]entities.Device, error) {
	return s.selector.SelectDevices(ctx, organizationID, selectorType, selectorValue)
}

// ComputeAggregate computes an ad-hoc aggregate for a rule definition
// without touching its evaluation state. Device sets are cached briefly.
func (s *Service) ComputeAggregate(ctx context.Context, rule *entities.GlobalRule) (AggregationResult, error) {
	devices, err := s.cachedDevices(ctx, rule.OrganizationID, rule.SelectorType, rule.SelectorValue)
	if err != nil {
		return AggregationResult{}, err
	}
	s.metrics.observeAdHocQuery()
	return s.aggregator.ComputeAggregate(ctx, rule, devices)
}

// EvaluateRule runs one full evaluation of the rule, with bookkeeping and
// cooldown semantics. Used for manual "evaluate now" calls.
func (s *Service) EvaluateRule(ctx context.Context, rule *entities.GlobalRule) (Outcome, error) {
	return s.engine.EvaluateRule(ctx, rule)
}

// EvaluateDueRules sweeps all rules due for evaluation.
func (s *Service) EvaluateDueRules(ctx context.Context) (int, error) {
	return s.engine.EvaluateDueRules(ctx)
}

// QueryStatistic computes a time-window statistic for one device, bound to
// the current instant.
func (s *Service) QueryStatistic(ctx context.Context, function, deviceExternalID, variable, windowCode string) (decimal.Decimal, error) {
	ec := EvalContext{DeviceExternalID: deviceExternalID, Now: time.Now()}
	return s.statistics.Evaluate(ctx, ec, function, variable, windowCode)
}

func (s *Service) cachedDevices(ctx context.Context, organizationID uuid.UUID, selectorType, selectorValue string) ([]entities.Device, error) {
	key := fmt.Sprintf("%s|%s|%s", organizationID, selectorType, selectorValue)
	if cached, ok := s.deviceSets.Get(key); ok {
		return cached.([]entities.Device), nil
	}
	devices, err := s.selector.SelectDevices(ctx, organizationID, selectorType, selectorValue)
	if err != nil {
		return nil, err
	}
	s.deviceSets.Set(key, devices, gocache.DefaultExpiration)
	return devices, nil
}

// ValidateRule checks a rule definition against the closed catalogs before
// it is persisted. Catalog names match case-insensitively. Metric
// aggregations must name a variable; count and percentage aggregations must
// not rely on one.
func ValidateRule(rule *entities.GlobalRule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("rule name must not be empty")
	}
	function := canonicalName(rule.AggregationFunction)
	if !knownSelectorTypes[canonicalName(rule.SelectorType)] {
		return fmt.Errorf("%w: %q", ErrUnknownSelector, rule.SelectorType)
	}
	if !knownAggregations[function] {
		return fmt.Errorf("%w: %q", ErrUnknownAggregation, rule.AggregationFunction)
	}
	if !knownOperators[canonicalName(rule.Operator)] {
		return fmt.Errorf("%w: %q", ErrUnknownOperator, rule.Operator)
	}
	if metricAggregations[function] {
		if rule.AggregationVariable == "" {
			return fmt.Errorf("%w: %s", ErrMissingVariable, rule.AggregationFunction)
		}
		if _, err := FieldExtractor(rule.AggregationVariable); err != nil {
			return err
		}
	}
	if rule.CooldownMinutes < 0 {
		return fmt.Errorf("cooldown minutes must not be negative")
	}
	if function == AggPercentile {
		p := rule.PercentileParam(defaultPercentile)
		if p <= 0 || p > 100 {
			return fmt.Errorf("percentile parameter must be in (0, 100], got %v", p)
		}
	}
	return nil
}
