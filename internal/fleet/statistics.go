package fleet

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sensorvision/sensorvision-go/internal/datastore/repository"
	"github.com/sensorvision/sensorvision-go/internal/logger"
)

// EvalContext binds a statistical evaluation to one device at one instant.
// Window boundaries are computed relative to Now, so replayed evaluations
// are reproducible.
type EvalContext struct {
	DeviceExternalID string
	Now              time.Time
}

func (c EvalContext) available() bool {
	return c.DeviceExternalID != "" && !c.Now.IsZero()
}

// statFunc computes one statistic over the filtered, ascending-by-time
// value list fetched for the evaluation.
type statFunc func(values []decimal.Decimal, window Window) decimal.Decimal

// statFuncs is the closed catalog of statistical functions. Names are
// matched case-insensitively.
var statFuncs = map[string]statFunc{
	"avg":           statAvg,
	"movingavg":     statAvg,
	"stddev":        statStddev,
	"sum":           statSum,
	"count":         statCount,
	"mintime":       statMin,
	"maxtime":       statMax,
	"rate":          statRate,
	"percentchange": statPercentChange,
	"median":        statMedian,
}

// StatisticNames returns the canonical statistical function names.
func StatisticNames() []string {
	return []string{"avg", "stddev", "sum", "count", "minTime", "maxTime", "rate", "movingAvg", "percentChange", "median"}
}

// Statistics evaluates time-window statistical functions over a single
// device's telemetry series.
type Statistics struct {
	telemetry repository.TelemetryRepository
	log       logger.Logger
}

// NewStatistics creates a new Statistics service.
func NewStatistics(telemetry repository.TelemetryRepository, log logger.Logger) *Statistics {
	return &Statistics{telemetry: telemetry, log: log}
}

// Evaluate computes a statistical function for the bound device over the
// given window, fetching samples inclusively (a sample stamped at Now is
// part of the window).
func (s *Statistics) Evaluate(ctx context.Context, ec EvalContext, function, variable, windowCode string) (decimal.Decimal, error) {
	return s.evaluate(ctx, ec, function, variable, windowCode, true)
}

// EvaluateHistorical computes a statistical function with exclusive fetch:
// the sample stamped at Now is excluded, for callers comparing the current
// reading against its own history.
func (s *Statistics) EvaluateHistorical(ctx context.Context, ec EvalContext, function, variable, windowCode string) (decimal.Decimal, error) {
	return s.evaluate(ctx, ec, function, variable, windowCode, false)
}

func (s *Statistics) evaluate(ctx context.Context, ec EvalContext, function, variable, windowCode string, inclusive bool) (decimal.Decimal, error) {
	if !ec.available() {
		return decimal.Zero, fmt.Errorf("%w: %s requires a bound device and timestamp", ErrContextUnavailable, function)
	}

	fn, ok := statFuncs[strings.ToLower(strings.TrimSpace(function))]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q (valid: %s)", ErrUnknownStatistic, function,
			strings.Join(StatisticNames(), ", "))
	}

	window, err := ParseWindow(windowCode)
	if err != nil {
		return decimal.Zero, err
	}

	values, err := s.fetchValues(ctx, ec, variable, window, inclusive)
	if err != nil {
		return decimal.Zero, err
	}

	result := fn(values, window)
	s.log.Debug("statistic evaluated",
		logger.String("function", function),
		logger.String("variable", variable),
		logger.String("window", window.Code),
		logger.String("device", ec.DeviceExternalID),
		logger.Int("samples", len(values)),
		logger.String("result", result.String()))
	return result, nil
}

// fetchValues fetches the device's samples for the window and maps them to
// the variable's values in timestamp order. Null and exactly-zero values
// are dropped before any statistic runs.
// TODO: confirm with product whether legitimate zero readings should count;
// the zero filter carries over the store's null-or-zero-means-absent
// convention.
func (s *Statistics) fetchValues(ctx context.Context, ec EvalContext, variable string, window Window, inclusive bool) ([]decimal.Decimal, error) {
	extract, err := FieldExtractor(variable)
	if err != nil {
		return nil, err
	}

	start := window.StartTime(ec.Now)
	end := ec.Now.Add(time.Millisecond)
	if !inclusive {
		end = ec.Now.Add(-time.Millisecond)
	}

	records, err := s.telemetry.QueryRange(ctx, ec.DeviceExternalID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch samples for %s: %w", ec.DeviceExternalID, err)
	}

	values := make([]decimal.Decimal, 0, len(records))
	for i := range records {
		v := extract(&records[i])
		if !v.Valid || v.Decimal.IsZero() {
			continue
		}
		values = append(values, v.Decimal)
	}
	return values, nil
}

func statSum(values []decimal.Decimal, _ Window) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum
}

func statAvg(values []decimal.Decimal, w Window) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return statSum(values, w).DivRound(decimal.NewFromInt(int64(len(values))), statPlaces)
}

// statStddev computes the population standard deviation (divide by n).
func statStddev(values []decimal.Decimal, w Window) decimal.Decimal {
	n := len(values)
	if n < 2 {
		return decimal.Zero
	}
	mean := statAvg(values, w)
	sumSquares := decimal.Zero
	for _, v := range values {
		d := v.Sub(mean)
		sumSquares = sumSquares.Add(d.Mul(d))
	}
	variance := sumSquares.DivRound(decimal.NewFromInt(int64(n)), statPlaces)
	return decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
}

func statCount(values []decimal.Decimal, _ Window) decimal.Decimal {
	return decimal.NewFromInt(int64(len(values)))
}

func statMin(values []decimal.Decimal, _ Window) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	min := values[0]
	for _, v := range values[1:] {
		if v.LessThan(min) {
			min = v
		}
	}
	return min
}

func statMax(values []decimal.Decimal, _ Window) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	max := values[0]
	for _, v := range values[1:] {
		if v.GreaterThan(max) {
			max = v
		}
	}
	return max
}

// statRate returns the change per hour between the oldest and newest
// sample, normalizing sub-hour windows to a per-hour rate.
func statRate(values []decimal.Decimal, w Window) decimal.Decimal {
	if len(values) < 2 {
		return decimal.Zero
	}
	change := values[len(values)-1].Sub(values[0])
	return change.DivRound(decimal.NewFromInt(w.Hours()), statPlaces)
}

func statPercentChange(values []decimal.Decimal, _ Window) decimal.Decimal {
	if len(values) < 2 {
		return decimal.Zero
	}
	first := values[0]
	if first.IsZero() {
		return decimal.Zero
	}
	change := values[len(values)-1].Sub(first)
	return change.DivRound(first, statPlaces).Mul(decimal.NewFromInt(100))
}

func statMedian(values []decimal.Decimal, _ Window) decimal.Decimal {
	n := len(values)
	if n == 0 {
		return decimal.Zero
	}
	sorted := make([]decimal.Decimal, n)
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).DivRound(decimal.NewFromInt(2), statPlaces)
}
