package fleet

// Schema describes the full catalog of aggregation functions, operators,
// selector types, variables, and windows available to rule builders.
type Schema struct {
	Aggregations  []AggregationSchema `json:"aggregations"`
	Statistics    []string            `json:"statistics"`
	Operators     []OperatorSchema    `json:"operators"`
	SelectorTypes []SelectorSchema    `json:"selectorTypes"`
	Variables     []string            `json:"variables"`
	Windows       []string            `json:"windows"`
}

// AggregationSchema describes one aggregation function for the UI.
type AggregationSchema struct {
	Name             string `json:"name"`
	Label            string `json:"label"`
	RequiresVariable bool   `json:"requiresVariable"`
	TakesPercentile  bool   `json:"takesPercentile,omitempty"`
}

// OperatorSchema describes a comparison operator for the UI.
type OperatorSchema struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// SelectorSchema describes a selector type and its expected value format.
type SelectorSchema struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	ValueFormat string `json:"valueFormat"`
}

// GetSchema returns the full rule-builder catalog.
func GetSchema() Schema {
	return Schema{
		Aggregations: []AggregationSchema{
			{Name: AggCountDevices, Label: "Device Count"},
			{Name: AggCountOnline, Label: "Online Device Count"},
			{Name: AggCountOffline, Label: "Offline Device Count"},
			{Name: AggCountAlerting, Label: "Alerting Device Count"},
			{Name: AggPercentOnline, Label: "Online Percentage"},
			{Name: AggPercentOffline, Label: "Offline Percentage"},
			{Name: AggSum, Label: "Sum of Latest Values", RequiresVariable: true},
			{Name: AggAvg, Label: "Average of Latest Values", RequiresVariable: true},
			{Name: AggMin, Label: "Minimum Latest Value", RequiresVariable: true},
			{Name: AggMax, Label: "Maximum Latest Value", RequiresVariable: true},
			{Name: AggStddev, Label: "Std Deviation of Latest Values", RequiresVariable: true},
			{Name: AggPercentile, Label: "Percentile of Latest Values", RequiresVariable: true, TakesPercentile: true},
		},
		Statistics: StatisticNames(),
		Operators: []OperatorSchema{
			{Name: OperatorGT, Symbol: ">"},
			{Name: OperatorGTE, Symbol: ">="},
			{Name: OperatorLT, Symbol: "<"},
			{Name: OperatorLTE, Symbol: "<="},
			{Name: OperatorEQ, Symbol: "="},
			{Name: OperatorNEQ, Symbol: "!="},
		},
		SelectorTypes: []SelectorSchema{
			{Name: SelectorOrganization, Label: "All Devices", ValueFormat: ""},
			{Name: SelectorTag, Label: "By Tag", ValueFormat: "tag name"},
			{Name: SelectorGroup, Label: "By Group", ValueFormat: "numeric group id"},
			{Name: SelectorCustomFilter, Label: "Custom Filter", ValueFormat: "field=value (location, status, sensorType)"},
		},
		Variables: Variables(),
		Windows:   windowCodes(),
	}
}

func windowCodes() []string {
	out := make([]string, 0, len(windowOrder))
	out = append(out, windowOrder...)
	return out
}
