package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
)

// GlobalAlertFilter controls alert listing queries.
type GlobalAlertFilter struct {
	RuleID       uuid.UUID
	Acknowledged *bool
	Limit        int
	Offset       int
}

// GlobalAlertRepository persists fired fleet alerts and exposes the
// unacknowledged-device view used by COUNT_ALERTING.
type GlobalAlertRepository interface {
	SaveAlert(ctx context.Context, alert *entities.GlobalAlert) error
	ListAlerts(ctx context.Context, organizationID uuid.UUID, filter GlobalAlertFilter) ([]entities.GlobalAlert, int64, error)

	// AcknowledgeAlert marks an alert acknowledged.
	// Returns ErrGlobalAlertNotFound if the alert does not exist.
	AcknowledgeAlert(ctx context.Context, id uuid.UUID) error

	// UnacknowledgedDevices returns the set of device external identifiers
	// that appear in at least one unacknowledged alert of the organization.
	UnacknowledgedDevices(ctx context.Context, organizationID uuid.UUID) (map[string]struct{}, error)
}
