package fleet

import "errors"

// Hard configuration errors. These indicate a rule definition that cannot
// be evaluated at all and must surface to the rule author; soft selector
// failures are logged and resolved to empty sets instead.
var (
	ErrInvalidWindow      = errors.New("invalid time window code")
	ErrUnknownVariable    = errors.New("unknown telemetry variable")
	ErrContextUnavailable = errors.New("statistical context unavailable")
	ErrUnknownAggregation = errors.New("unknown aggregation function")
	ErrUnknownStatistic   = errors.New("unknown statistical function")
	ErrUnknownOperator    = errors.New("unknown comparison operator")
	ErrUnknownSelector    = errors.New("unknown selector type")
	ErrMissingVariable    = errors.New("aggregation function requires a variable")
)
