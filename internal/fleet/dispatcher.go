package fleet

import (
	"context"
	"fmt"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
	"github.com/sensorvision/sensorvision-go/internal/datastore/repository"
	"github.com/sensorvision/sensorvision-go/internal/logger"
)

// NotificationCreator abstracts the notification service for testability.
type NotificationCreator interface {
	CreateAndBroadcast(severity, title, message string) error
}

// AlertDispatcher implements AlertSink: it persists the fired alert and
// pushes a notification. Persistence failures propagate so the engine can
// abort the trigger; notification failures are logged only, since the alert
// row is already the source of truth.
type AlertDispatcher struct {
	alerts       repository.GlobalAlertRepository
	notifCreator NotificationCreator
	log          logger.Logger
}

// NewAlertDispatcher creates a new AlertDispatcher.
func NewAlertDispatcher(alerts repository.GlobalAlertRepository, notifCreator NotificationCreator, log logger.Logger) *AlertDispatcher {
	return &AlertDispatcher{
		alerts:       alerts,
		notifCreator: notifCreator,
		log:          log,
	}
}

// Emit stores the triggered alert and broadcasts a notification.
func (d *AlertDispatcher) Emit(ctx context.Context, decision *TriggerDecision) error {
	alert := &entities.GlobalAlert{
		RuleID:          decision.Rule.ID,
		OrganizationID:  decision.Rule.OrganizationID,
		Message:         decision.Message,
		Severity:        decision.Severity,
		TriggeredValue:  decision.Value,
		DeviceCount:     decision.DeviceCount,
		AffectedDevices: decision.AffectedDevices,
		TriggeredAt:     decision.TriggeredAt,
	}
	if err := d.alerts.SaveAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to persist fleet alert: %w", err)
	}

	if d.notifCreator != nil {
		title := fmt.Sprintf("Fleet alert: %s", decision.Rule.Name)
		if err := d.notifCreator.CreateAndBroadcast(string(decision.Severity), title, decision.Message); err != nil {
			d.log.Error("failed to broadcast fleet alert notification",
				logger.String("rule_id", decision.Rule.ID.String()),
				logger.Error(err))
		}
	}
	return nil
}
