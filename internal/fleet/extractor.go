package fleet

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
)

// Extractor reads one telemetry variable from a record. The result is null
// when the record does not carry the variable.
type Extractor func(*entities.TelemetryRecord) decimal.NullDecimal

// FieldExtractor resolves a variable name to its record accessor.
// Names are matched case-insensitively; snake-case and camel-case spellings
// are synonyms. Returns ErrUnknownVariable for anything else.
func FieldExtractor(variableName string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(variableName)) {
	case "kwconsumption", "kw_consumption":
		return func(r *entities.TelemetryRecord) decimal.NullDecimal { return r.KwConsumption }, nil
	case "voltage":
		return func(r *entities.TelemetryRecord) decimal.NullDecimal { return r.Voltage }, nil
	case "current":
		return func(r *entities.TelemetryRecord) decimal.NullDecimal { return r.Current }, nil
	case "powerfactor", "power_factor":
		return func(r *entities.TelemetryRecord) decimal.NullDecimal { return r.PowerFactor }, nil
	case "frequency":
		return func(r *entities.TelemetryRecord) decimal.NullDecimal { return r.Frequency }, nil
	default:
		return nil, fmt.Errorf("%w: %q (valid: %s)", ErrUnknownVariable, variableName,
			strings.Join(Variables(), ", "))
	}
}

// Variables returns the canonical variable names accepted by the extractor.
func Variables() []string {
	return []string{
		VariableKwConsumption,
		VariableVoltage,
		VariableCurrent,
		VariablePowerFactor,
		VariableFrequency,
	}
}
