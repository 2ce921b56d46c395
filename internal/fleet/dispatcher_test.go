package fleet

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
)

type mockNotifier struct {
	calls []string
	err   error
}

func (m *mockNotifier) CreateAndBroadcast(severity, title, message string) error {
	m.calls = append(m.calls, title)
	return m.err
}

func testDecision() *TriggerDecision {
	return &TriggerDecision{
		Rule: &entities.GlobalRule{
			ID:             uuid.New(),
			OrganizationID: testOrgID,
			Name:           "high consumption",
		},
		Value:           decimal.NewFromInt(120),
		DeviceCount:     5,
		AffectedDevices: []string{"meter-1", "meter-2"},
		Severity:        entities.SeverityHigh,
		Message:         "threshold exceeded",
		TriggeredAt:     time.Now(),
	}
}

func TestAlertDispatcher_PersistsAndNotifies(t *testing.T) {
	t.Parallel()

	alerts := &mockAlertRepo{}
	notifier := &mockNotifier{}
	d := NewAlertDispatcher(alerts, notifier, testLogger())

	decision := testDecision()
	require.NoError(t, d.Emit(t.Context(), decision))

	require.Len(t, alerts.saved, 1)
	saved := alerts.saved[0]
	assert.Equal(t, decision.Rule.ID, saved.RuleID)
	assert.Equal(t, entities.SeverityHigh, saved.Severity)
	assert.Equal(t, []string{"meter-1", "meter-2"}, saved.AffectedDevices)

	assert.Len(t, notifier.calls, 1)
	assert.Contains(t, notifier.calls[0], "high consumption")
}

func TestAlertDispatcher_NotificationFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	alerts := &mockAlertRepo{}
	notifier := &mockNotifier{err: errors.New("broadcast failed")}
	d := NewAlertDispatcher(alerts, notifier, testLogger())

	assert.NoError(t, d.Emit(t.Context(), testDecision()),
		"notification failure must not abort the trigger")
	assert.Len(t, alerts.saved, 1)
}

func TestAlertDispatcher_NilNotifier(t *testing.T) {
	t.Parallel()

	d := NewAlertDispatcher(&mockAlertRepo{}, nil, testLogger())
	assert.NoError(t, d.Emit(t.Context(), testDecision()))
}
