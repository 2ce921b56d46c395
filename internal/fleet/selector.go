package fleet

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
	"github.com/sensorvision/sensorvision-go/internal/datastore/repository"
	"github.com/sensorvision/sensorvision-go/internal/logger"
)

// Selector resolves the device set a rule targets, restricted to active
// devices of the rule's organization.
//
// Malformed selector values are soft failures: they resolve to an empty set
// with a warning, never an error, so one misconfigured rule cannot break an
// evaluation sweep. The one exception is a blank custom filter, which falls
// back to the full active organization set.
type Selector struct {
	devices repository.DeviceRepository
	log     logger.Logger
}

// NewSelector creates a new Selector.
func NewSelector(devices repository.DeviceRepository, log logger.Logger) *Selector {
	return &Selector{devices: devices, log: log}
}

// SelectDevices resolves the devices matching the selector criteria. The
// selector type matches case-insensitively. Unknown selector types are hard
// errors; store failures propagate.
func (s *Selector) SelectDevices(ctx context.Context, organizationID uuid.UUID, selectorType, selectorValue string) ([]entities.Device, error) {
	switch canonicalName(selectorType) {
	case SelectorOrganization:
		return s.devices.QueryActive(ctx, organizationID, repository.DeviceQuery{})
	case SelectorTag:
		return s.selectByTag(ctx, organizationID, selectorValue)
	case SelectorGroup:
		return s.selectByGroup(ctx, organizationID, selectorValue)
	case SelectorCustomFilter:
		return s.selectByCustomFilter(ctx, organizationID, selectorValue)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSelector, selectorType)
	}
}

func (s *Selector) selectByTag(ctx context.Context, organizationID uuid.UUID, tag string) ([]entities.Device, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		s.log.Warn("blank tag selector, resolving to empty device set",
			logger.String("organization_id", organizationID.String()))
		return []entities.Device{}, nil
	}
	return s.devices.QueryActive(ctx, organizationID, repository.DeviceQuery{Tag: tag})
}

func (s *Selector) selectByGroup(ctx context.Context, organizationID uuid.UUID, value string) ([]entities.Device, error) {
	groupID, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil {
		s.log.Warn("non-numeric group selector, resolving to empty device set",
			logger.String("organization_id", organizationID.String()),
			logger.String("selector_value", value))
		return []entities.Device{}, nil
	}
	id := uint(groupID)
	return s.devices.QueryActive(ctx, organizationID, repository.DeviceQuery{GroupID: &id})
}

// selectByCustomFilter resolves a single "field=value" expression. A blank
// filter means no restriction and returns the full active organization set;
// a malformed or unsupported filter returns the empty set.
func (s *Selector) selectByCustomFilter(ctx context.Context, organizationID uuid.UUID, expression string) ([]entities.Device, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return s.devices.QueryActive(ctx, organizationID, repository.DeviceQuery{})
	}

	field, value, found := strings.Cut(expression, "=")
	if !found {
		s.log.Warn("custom filter missing '=' separator, resolving to empty device set",
			logger.String("organization_id", organizationID.String()),
			logger.String("expression", expression))
		return []entities.Device{}, nil
	}
	field = strings.TrimSpace(field)
	value = strings.TrimSpace(value)

	switch field {
	case FilterFieldLocation, FilterFieldSensorType:
		return s.devices.QueryActive(ctx, organizationID, repository.DeviceQuery{
			FilterField: field,
			FilterValue: value,
		})
	case FilterFieldStatus:
		status, ok := entities.ParseDeviceStatus(value)
		if !ok {
			s.log.Warn("unknown device status in custom filter, resolving to empty device set",
				logger.String("organization_id", organizationID.String()),
				logger.String("status", value))
			return []entities.Device{}, nil
		}
		return s.devices.QueryActive(ctx, organizationID, repository.DeviceQuery{
			FilterField: field,
			FilterValue: string(status),
		})
	default:
		s.log.Warn("unsupported custom filter field, resolving to empty device set",
			logger.String("organization_id", organizationID.String()),
			logger.String("field", field))
		return []entities.Device{}, nil
	}
}
