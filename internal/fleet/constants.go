// Package fleet implements the telemetry aggregation and rule-evaluation
// engine: device selection, per-device window statistics, fleet-wide
// aggregation, and the threshold/cooldown rule state machine.
package fleet

import (
	"strings"
	"time"
)

// Selector types define how a rule resolves its device set.
const (
	SelectorOrganization = "ORGANIZATION"
	SelectorTag          = "TAG"
	SelectorGroup        = "GROUP"
	SelectorCustomFilter = "CUSTOM_FILTER"
)

// Aggregation functions. Count and percentage families operate on device
// state; metric families operate on each device's latest sample of the
// rule's variable.
const (
	AggCountDevices   = "COUNT_DEVICES"
	AggCountOnline    = "COUNT_ONLINE"
	AggCountOffline   = "COUNT_OFFLINE"
	AggCountAlerting  = "COUNT_ALERTING"
	AggPercentOnline  = "PERCENT_ONLINE"
	AggPercentOffline = "PERCENT_OFFLINE"
	AggSum            = "SUM"
	AggAvg            = "AVG"
	AggMin            = "MIN"
	AggMax            = "MAX"
	AggStddev         = "STDDEV"
	AggPercentile     = "PERCENTILE"
)

// Comparison operators for rule thresholds.
const (
	OperatorGT  = "GT"
	OperatorGTE = "GTE"
	OperatorLT  = "LT"
	OperatorLTE = "LTE"
	OperatorEQ  = "EQ"
	OperatorNEQ = "NEQ"
)

// Custom filter fields available to CUSTOM_FILTER selectors.
const (
	FilterFieldLocation   = "location"
	FilterFieldStatus     = "status"
	FilterFieldSensorType = "sensorType"
)

// Telemetry variables accepted by the extractor and by metric aggregations.
// Snake-case spellings are accepted as synonyms.
const (
	VariableKwConsumption = "kwConsumption"
	VariableVoltage       = "voltage"
	VariableCurrent       = "current"
	VariablePowerFactor   = "powerFactor"
	VariableFrequency     = "frequency"
)

const (
	// onlineThreshold is how recently a device must have been seen to
	// count as online.
	onlineThreshold = 5 * time.Minute

	// defaultPercentile is used when a PERCENTILE rule carries no
	// percentile parameter.
	defaultPercentile = 95.0

	// percentPlaces is the rounding precision for percentage aggregates.
	percentPlaces = 2

	// statPlaces is the rounding precision for statistical results.
	statPlaces = 10
)

// metricAggregations maps aggregation function names to whether they
// require a target variable.
var metricAggregations = map[string]bool{
	AggSum:        true,
	AggAvg:        true,
	AggMin:        true,
	AggMax:        true,
	AggStddev:     true,
	AggPercentile: true,
}

// knownAggregations is the closed set of aggregation function names.
var knownAggregations = map[string]bool{
	AggCountDevices:   true,
	AggCountOnline:    true,
	AggCountOffline:   true,
	AggCountAlerting:  true,
	AggPercentOnline:  true,
	AggPercentOffline: true,
	AggSum:            true,
	AggAvg:            true,
	AggMin:            true,
	AggMax:            true,
	AggStddev:         true,
	AggPercentile:     true,
}

// knownOperators is the closed set of comparison operators.
var knownOperators = map[string]bool{
	OperatorGT:  true,
	OperatorGTE: true,
	OperatorLT:  true,
	OperatorLTE: true,
	OperatorEQ:  true,
	OperatorNEQ: true,
}

// knownSelectorTypes is the closed set of selector types.
var knownSelectorTypes = map[string]bool{
	SelectorOrganization: true,
	SelectorTag:          true,
	SelectorGroup:        true,
	SelectorCustomFilter: true,
}

// canonicalName upper-cases a catalog name so selector types, aggregation
// functions and operators match case-insensitively, like windows and
// variables do.
func canonicalName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
