package fleet

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
	"github.com/sensorvision/sensorvision-go/internal/datastore/repository"
	"github.com/sensorvision/sensorvision-go/internal/logger"
)

// AggregationResult is the outcome of one fleet aggregation: the aggregate
// value, the total devices considered, and which devices matched or
// contributed a value.
type AggregationResult struct {
	Value           decimal.Decimal `json:"value"`
	DeviceCount     int             `json:"device_count"`
	AffectedDevices []string        `json:"affected_devices"`
}

// emptyResult is returned for any aggregation over an empty device set.
func emptyResult() AggregationResult {
	return AggregationResult{Value: decimal.Zero, DeviceCount: 0, AffectedDevices: []string{}}
}

// Aggregator computes fleet-wide aggregates over a resolved device set.
type Aggregator struct {
	telemetry repository.TelemetryRepository
	alerts    repository.GlobalAlertRepository
	log       logger.Logger

	// now is a hook for tests; defaults to time.Now.
	now func() time.Time
}

// NewAggregator creates a new Aggregator.
func NewAggregator(telemetry repository.TelemetryRepository, alerts repository.GlobalAlertRepository, log logger.Logger) *Aggregator {
	return &Aggregator{
		telemetry: telemetry,
		alerts:    alerts,
		log:       log,
		now:       time.Now,
	}
}

// ComputeAggregate evaluates the rule's aggregation function over the
// device set. Function names match case-insensitively. An empty set
// short-circuits to the zero result for every function. Unknown functions
// and metric aggregations without a variable are hard errors.
func (a *Aggregator) ComputeAggregate(ctx context.Context, rule *entities.GlobalRule, devices []entities.Device) (AggregationResult, error) {
	function := canonicalName(rule.AggregationFunction)
	if !knownAggregations[function] {
		return AggregationResult{}, fmt.Errorf("%w: %q", ErrUnknownAggregation, rule.AggregationFunction)
	}
	if len(devices) == 0 {
		return emptyResult(), nil
	}

	var result AggregationResult
	var err error
	switch function {
	case AggCountDevices:
		result = countResult(devices, allDeviceIDs(devices))
	case AggCountOnline:
		result = countResult(devices, a.partitionOnline(devices, true))
	case AggCountOffline:
		result = countResult(devices, a.partitionOnline(devices, false))
	case AggCountAlerting:
		result, err = a.countAlerting(ctx, rule, devices)
	case AggPercentOnline:
		result = percentResult(devices, a.partitionOnline(devices, true))
	case AggPercentOffline:
		result = percentResult(devices, a.partitionOnline(devices, false))
	default:
		result, err = a.metricAggregate(ctx, function, rule, devices)
	}
	if err != nil {
		return AggregationResult{}, err
	}

	a.log.Debug("fleet aggregate computed",
		logger.String("function", function),
		logger.String("value", result.Value.String()),
		logger.Int("device_count", result.DeviceCount),
		logger.Int("affected", len(result.AffectedDevices)))
	return result, nil
}

// allDeviceIDs returns the external identifiers of every device in the set.
func allDeviceIDs(devices []entities.Device) []string {
	ids := make([]string, len(devices))
	for i := range devices {
		ids[i] = devices[i].ExternalID
	}
	return ids
}

// partitionOnline returns the external IDs of devices whose last-seen
// timestamp is within the online threshold (online=true) or not
// (online=false). Devices never seen count as offline.
func (a *Aggregator) partitionOnline(devices []entities.Device, online bool) []string {
	cutoff := a.now().Add(-onlineThreshold)
	matching := make([]string, 0, len(devices))
	for i := range devices {
		d := &devices[i]
		isOnline := d.LastSeenAt != nil && !d.LastSeenAt.Before(cutoff)
		if isOnline == online {
			matching = append(matching, d.ExternalID)
		}
	}
	return matching
}

func countResult(devices []entities.Device, matching []string) AggregationResult {
	return AggregationResult{
		Value:           decimal.NewFromInt(int64(len(matching))),
		DeviceCount:     len(devices),
		AffectedDevices: matching,
	}
}

// percentResult computes matching/total as a percentage rounded half-up to
// two decimals. The matching subset doubles as the affected-device list.
func percentResult(devices []entities.Device, matching []string) AggregationResult {
	value := decimal.NewFromInt(int64(len(matching)) * 100).
		DivRound(decimal.NewFromInt(int64(len(devices))), percentPlaces)
	return AggregationResult{
		Value:           value,
		DeviceCount:     len(devices),
		AffectedDevices: matching,
	}
}

// countAlerting counts devices with at least one unacknowledged alert.
func (a *Aggregator) countAlerting(ctx context.Context, rule *entities.GlobalRule, devices []entities.Device) (AggregationResult, error) {
	alerting, err := a.alerts.UnacknowledgedDevices(ctx, rule.OrganizationID)
	if err != nil {
		return AggregationResult{}, fmt.Errorf("failed to resolve alerting devices: %w", err)
	}
	matching := make([]string, 0, len(devices))
	for i := range devices {
		if _, ok := alerting[devices[i].ExternalID]; ok {
			matching = append(matching, devices[i].ExternalID)
		}
	}
	return countResult(devices, matching), nil
}

// metricAggregate computes a cross-sectional aggregate over each device's
// latest sample of the rule's variable. Devices without a usable value are
// excluded from the value set but still counted in DeviceCount.
func (a *Aggregator) metricAggregate(ctx context.Context, function string, rule *entities.GlobalRule, devices []entities.Device) (AggregationResult, error) {
	if rule.AggregationVariable == "" {
		return AggregationResult{}, fmt.Errorf("%w: %s", ErrMissingVariable, function)
	}
	extract, err := FieldExtractor(rule.AggregationVariable)
	if err != nil {
		return AggregationResult{}, err
	}

	latest, err := a.telemetry.QueryLatestPerDevice(ctx, allDeviceIDs(devices))
	if err != nil {
		return AggregationResult{}, fmt.Errorf("failed to build latest-value map: %w", err)
	}

	values := make([]decimal.Decimal, 0, len(devices))
	contributing := make([]string, 0, len(devices))
	for i := range devices {
		record, ok := latest[devices[i].ExternalID]
		if !ok {
			continue
		}
		v := extract(&record)
		if !v.Valid {
			continue
		}
		values = append(values, v.Decimal)
		contributing = append(contributing, devices[i].ExternalID)
	}

	// A set with no usable values is not an error: it degrades to the
	// empty-style result while still reporting the full device count.
	value := decimal.Zero
	if len(values) > 0 {
		value = a.applyMetricFunction(function, rule, values)
	}

	return AggregationResult{
		Value:           value,
		DeviceCount:     len(devices),
		AffectedDevices: contributing,
	}, nil
}

func (a *Aggregator) applyMetricFunction(function string, rule *entities.GlobalRule, values []decimal.Decimal) decimal.Decimal {
	switch function {
	case AggSum:
		return statSum(values, Window{})
	case AggAvg:
		return statAvg(values, Window{})
	case AggMin:
		return statMin(values, Window{})
	case AggMax:
		return statMax(values, Window{})
	case AggStddev:
		return statStddev(values, Window{})
	case AggPercentile:
		return percentileNearestRank(values, rule.PercentileParam(defaultPercentile))
	default:
		// Guarded by knownAggregations in ComputeAggregate.
		return decimal.Zero
	}
}

// percentileNearestRank picks the value at index ceil(p/100*N)-1 of the
// ascending-sorted values, clamped to [0, N-1].
func percentileNearestRank(values []decimal.Decimal, percentile float64) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	index := int(math.Ceil(percentile/100*float64(len(sorted)))) - 1
	if index < 0 {
		index = 0
	}
	if index > len(sorted)-1 {
		index = len(sorted) - 1
	}
	return sorted[index]
}
