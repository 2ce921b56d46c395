package fleet

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
)

var aggNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// aggFleet builds five devices: meter-1..3 seen recently (online), meter-4
// seen an hour ago, meter-5 never seen.
func aggFleet() []entities.Device {
	recent := aggNow.Add(-time.Minute)
	stale := aggNow.Add(-time.Hour)
	return []entities.Device{
		{ExternalID: "meter-1", OrganizationID: testOrgID, Active: true, LastSeenAt: &recent},
		{ExternalID: "meter-2", OrganizationID: testOrgID, Active: true, LastSeenAt: &recent},
		{ExternalID: "meter-3", OrganizationID: testOrgID, Active: true, LastSeenAt: &recent},
		{ExternalID: "meter-4", OrganizationID: testOrgID, Active: true, LastSeenAt: &stale},
		{ExternalID: "meter-5", OrganizationID: testOrgID, Active: true},
	}
}

// latestValues maps device IDs to a single latest voltage record.
func latestValues(values map[string]float64) *mockTelemetryRepo {
	records := make(map[string][]entities.TelemetryRecord)
	for id, v := range values {
		records[id] = []entities.TelemetryRecord{
			{DeviceExternalID: id, Timestamp: aggNow.Add(-time.Minute), Voltage: nullDec(v)},
		}
	}
	return &mockTelemetryRepo{records: records}
}

func newAggregator(telemetry *mockTelemetryRepo, alerts *mockAlertRepo) *Aggregator {
	if telemetry == nil {
		telemetry = &mockTelemetryRepo{}
	}
	if alerts == nil {
		alerts = &mockAlertRepo{}
	}
	a := NewAggregator(telemetry, alerts, testLogger())
	a.now = func() time.Time { return aggNow }
	return a
}

func aggRule(function, variable string) *entities.GlobalRule {
	return &entities.GlobalRule{
		OrganizationID:      testOrgID,
		AggregationFunction: function,
		AggregationVariable: variable,
	}
}

func TestAggregator_CountDevices(t *testing.T) {
	t.Parallel()

	a := newAggregator(nil, nil)
	result, err := a.ComputeAggregate(t.Context(), aggRule(AggCountDevices, ""), aggFleet())
	require.NoError(t, err)

	assert.True(t, result.Value.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, 5, result.DeviceCount)
	assert.Len(t, result.AffectedDevices, 5)
}

func TestAggregator_CountOnlineOffline(t *testing.T) {
	t.Parallel()

	a := newAggregator(nil, nil)

	online, err := a.ComputeAggregate(t.Context(), aggRule(AggCountOnline, ""), aggFleet())
	require.NoError(t, err)
	assert.True(t, online.Value.Equal(decimal.NewFromInt(3)))
	assert.ElementsMatch(t, []string{"meter-1", "meter-2", "meter-3"}, online.AffectedDevices)

	offline, err := a.ComputeAggregate(t.Context(), aggRule(AggCountOffline, ""), aggFleet())
	require.NoError(t, err)
	assert.True(t, offline.Value.Equal(decimal.NewFromInt(2)))
	assert.ElementsMatch(t, []string{"meter-4", "meter-5"}, offline.AffectedDevices,
		"stale and never-seen devices both count as offline")
}

func TestAggregator_PercentOnline(t *testing.T) {
	t.Parallel()

	a := newAggregator(nil, nil)
	result, err := a.ComputeAggregate(t.Context(), aggRule(AggPercentOnline, ""), aggFleet())
	require.NoError(t, err)

	assert.Equal(t, "60", result.Value.String())
	assert.Equal(t, 5, result.DeviceCount)
}

func TestAggregator_PercentRounding(t *testing.T) {
	t.Parallel()

	// 1 of 3 online: 33.333... rounds half-up to 33.33.
	recent := aggNow.Add(-time.Minute)
	devices := []entities.Device{
		{ExternalID: "a", OrganizationID: testOrgID, Active: true, LastSeenAt: &recent},
		{ExternalID: "b", OrganizationID: testOrgID, Active: true},
		{ExternalID: "c", OrganizationID: testOrgID, Active: true},
	}

	a := newAggregator(nil, nil)
	result, err := a.ComputeAggregate(t.Context(), aggRule(AggPercentOnline, ""), devices)
	require.NoError(t, err)
	assert.Equal(t, "33.33", result.Value.String())
}

func TestAggregator_CountAlerting(t *testing.T) {
	t.Parallel()

	alerts := &mockAlertRepo{alerting: map[string]struct{}{
		"meter-2": {},
		"meter-4": {},
		"not-in-set": {},
	}}
	a := newAggregator(nil, alerts)

	result, err := a.ComputeAggregate(t.Context(), aggRule(AggCountAlerting, ""), aggFleet())
	require.NoError(t, err)
	assert.True(t, result.Value.Equal(decimal.NewFromInt(2)),
		"alerting devices outside the selected set should not count")
	assert.ElementsMatch(t, []string{"meter-2", "meter-4"}, result.AffectedDevices)
}

func TestAggregator_MetricAvg(t *testing.T) {
	t.Parallel()

	// meter-5 has no telemetry: excluded from values, still counted.
	telemetry := latestValues(map[string]float64{
		"meter-1": 10, "meter-2": 20, "meter-3": 30, "meter-4": 40,
	})
	a := newAggregator(telemetry, nil)

	result, err := a.ComputeAggregate(t.Context(), aggRule(AggAvg, "voltage"), aggFleet())
	require.NoError(t, err)

	assert.True(t, result.Value.Equal(decimal.NewFromInt(25)), "got %s", result.Value)
	assert.Equal(t, 5, result.DeviceCount)
	assert.ElementsMatch(t, []string{"meter-1", "meter-2", "meter-3", "meter-4"}, result.AffectedDevices)
}

func TestAggregator_FunctionNameIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	telemetry := latestValues(map[string]float64{
		"meter-1": 10, "meter-2": 20, "meter-3": 30, "meter-4": 40,
	})
	a := newAggregator(telemetry, nil)

	result, err := a.ComputeAggregate(t.Context(), aggRule("avg", "voltage"), aggFleet())
	require.NoError(t, err)
	assert.True(t, result.Value.Equal(decimal.NewFromInt(25)), "got %s", result.Value)
}

func TestAggregator_MetricSumMinMax(t *testing.T) {
	t.Parallel()

	telemetry := latestValues(map[string]float64{
		"meter-1": 10, "meter-2": 20, "meter-3": 30, "meter-4": 40,
	})
	a := newAggregator(telemetry, nil)

	sum, err := a.ComputeAggregate(t.Context(), aggRule(AggSum, "voltage"), aggFleet())
	require.NoError(t, err)
	assert.True(t, sum.Value.Equal(decimal.NewFromInt(100)))

	min, err := a.ComputeAggregate(t.Context(), aggRule(AggMin, "voltage"), aggFleet())
	require.NoError(t, err)
	assert.True(t, min.Value.Equal(decimal.NewFromInt(10)))

	max, err := a.ComputeAggregate(t.Context(), aggRule(AggMax, "voltage"), aggFleet())
	require.NoError(t, err)
	assert.True(t, max.Value.Equal(decimal.NewFromInt(40)))
}

func TestAggregator_MetricNoUsableValues(t *testing.T) {
	t.Parallel()

	a := newAggregator(&mockTelemetryRepo{}, nil)
	result, err := a.ComputeAggregate(t.Context(), aggRule(AggAvg, "voltage"), aggFleet())
	require.NoError(t, err)

	assert.True(t, result.Value.IsZero())
	assert.Equal(t, 5, result.DeviceCount, "device count reflects the full set even with no values")
	assert.Empty(t, result.AffectedDevices)
}

func TestAggregator_Percentile(t *testing.T) {
	t.Parallel()

	telemetry := latestValues(map[string]float64{
		"meter-1": 10, "meter-2": 20, "meter-3": 30, "meter-4": 40,
	})
	a := newAggregator(telemetry, nil)

	// p95 over 4 values: ceil(0.95*4)-1 = 3 → highest value.
	rule := aggRule(AggPercentile, "voltage")
	result, err := a.ComputeAggregate(t.Context(), rule, aggFleet())
	require.NoError(t, err)
	assert.True(t, result.Value.Equal(decimal.NewFromInt(40)))

	// p50: ceil(0.5*4)-1 = 1 → second-lowest.
	rule.AggregationParams = map[string]any{"percentile": 50.0}
	result, err = a.ComputeAggregate(t.Context(), rule, aggFleet())
	require.NoError(t, err)
	assert.True(t, result.Value.Equal(decimal.NewFromInt(20)))
}

func TestAggregator_EmptyDeviceSet(t *testing.T) {
	t.Parallel()

	a := newAggregator(nil, nil)
	for _, fn := range []string{AggCountDevices, AggCountOnline, AggPercentOnline, AggAvg, AggPercentile} {
		rule := aggRule(fn, "voltage")
		result, err := a.ComputeAggregate(t.Context(), rule, nil)
		require.NoError(t, err, fn)
		assert.True(t, result.Value.IsZero(), fn)
		assert.Equal(t, 0, result.DeviceCount, fn)
		assert.Empty(t, result.AffectedDevices, fn)
	}
}

func TestAggregator_Errors(t *testing.T) {
	t.Parallel()

	a := newAggregator(nil, nil)

	_, err := a.ComputeAggregate(t.Context(), aggRule("MODE", ""), aggFleet())
	assert.ErrorIs(t, err, ErrUnknownAggregation)

	_, err = a.ComputeAggregate(t.Context(), aggRule(AggAvg, ""), aggFleet())
	assert.ErrorIs(t, err, ErrMissingVariable)

	_, err = a.ComputeAggregate(t.Context(), aggRule(AggAvg, "humidity"), aggFleet())
	assert.ErrorIs(t, err, ErrUnknownVariable)
}

func TestPercentileNearestRank_Clamping(t *testing.T) {
	t.Parallel()

	values := []decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(2), decimal.NewFromInt(3)}

	assert.True(t, percentileNearestRank(values, 0.1).Equal(decimal.NewFromInt(1)),
		"tiny percentile clamps to the lowest value")
	assert.True(t, percentileNearestRank(values, 100).Equal(decimal.NewFromInt(3)))
}
