package fleet

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
	"github.com/sensorvision/sensorvision-go/internal/datastore/repository"
	"github.com/sensorvision/sensorvision-go/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

// mockTelemetryRepo serves a fixed record set per device.
type mockTelemetryRepo struct {
	records map[string][]entities.TelemetryRecord
	err     error
}

func (m *mockTelemetryRepo) QueryRange(_ context.Context, deviceExternalID string, start, end time.Time) ([]entities.TelemetryRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []entities.TelemetryRecord
	for _, r := range m.records[deviceExternalID] {
		if !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockTelemetryRepo) QueryLatestPerDevice(_ context.Context, deviceExternalIDs []string) (map[string]entities.TelemetryRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]entities.TelemetryRecord)
	for _, id := range deviceExternalIDs {
		records := m.records[id]
		if len(records) == 0 {
			continue
		}
		// Newest timestamp wins; ties go to the later row, like the store.
		latest := records[0]
		for _, r := range records[1:] {
			if !r.Timestamp.Before(latest.Timestamp) {
				latest = r
			}
		}
		out[id] = latest
	}
	return out, nil
}

// mockDeviceRepo answers QueryActive calls from a fixed device list,
// applying the same filter semantics as the real repository.
type mockDeviceRepo struct {
	devices []entities.Device
	err     error

	mu      sync.Mutex
	queries []repository.DeviceQuery
}

func (m *mockDeviceRepo) QueryActive(_ context.Context, organizationID uuid.UUID, query repository.DeviceQuery) ([]entities.Device, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	var out []entities.Device
	for i := range m.devices {
		d := m.devices[i]
		if d.OrganizationID != organizationID || !d.Active {
			continue
		}
		if query.Tag != "" && !d.HasTag(query.Tag) {
			continue
		}
		if query.GroupID != nil {
			inGroup := false
			for _, g := range d.Groups {
				if g.ID == *query.GroupID {
					inGroup = true
					break
				}
			}
			if !inGroup {
				continue
			}
		}
		if query.FilterField != "" {
			switch query.FilterField {
			case FilterFieldLocation:
				if d.Location != query.FilterValue {
					continue
				}
			case FilterFieldSensorType:
				if d.SensorType != query.FilterValue {
					continue
				}
			case FilterFieldStatus:
				if string(d.Status) != query.FilterValue {
					continue
				}
			}
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *mockDeviceRepo) GetByExternalID(_ context.Context, externalID string) (*entities.Device, error) {
	for i := range m.devices {
		if m.devices[i].ExternalID == externalID {
			return &m.devices[i], nil
		}
	}
	return nil, repository.ErrDeviceNotFound
}

// mockRuleRepo is an in-memory GlobalRuleRepository.
type mockRuleRepo struct {
	mu    sync.Mutex
	rules map[uuid.UUID]*entities.GlobalRule

	markEvaluatedErr error
	markTriggeredErr error
}

func newMockRuleRepo(rules ...*entities.GlobalRule) *mockRuleRepo {
	m := &mockRuleRepo{rules: make(map[uuid.UUID]*entities.GlobalRule)}
	for _, r := range rules {
		m.rules[r.ID] = r
	}
	return m
}

func (m *mockRuleRepo) ListRules(_ context.Context, organizationID uuid.UUID) ([]entities.GlobalRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.GlobalRule
	for _, r := range m.rules {
		if r.OrganizationID == organizationID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockRuleRepo) GetRule(_ context.Context, id uuid.UUID) (*entities.GlobalRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, repository.ErrGlobalRuleNotFound
	}
	copied := *r
	return &copied, nil
}

func (m *mockRuleRepo) CreateRule(_ context.Context, rule *entities.GlobalRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.ID] = rule
	return nil
}

func (m *mockRuleRepo) UpdateRule(_ context.Context, rule *entities.GlobalRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.ID] = rule
	return nil
}

func (m *mockRuleRepo) DeleteRule(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rules, id)
	return nil
}

func (m *mockRuleRepo) ToggleRule(_ context.Context, id uuid.UUID, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return repository.ErrGlobalRuleNotFound
	}
	r.Enabled = enabled
	return nil
}

func (m *mockRuleRepo) ListDueForEvaluation(_ context.Context, now time.Time) ([]entities.GlobalRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.GlobalRule
	for _, r := range m.rules {
		if r.Enabled && r.DueForEvaluation(now) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockRuleRepo) MarkEvaluated(_ context.Context, id uuid.UUID, at time.Time) error {
	if m.markEvaluatedErr != nil {
		return m.markEvaluatedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return repository.ErrGlobalRuleNotFound
	}
	r.LastEvaluatedAt = &at
	return nil
}

func (m *mockRuleRepo) MarkTriggered(_ context.Context, id uuid.UUID, at time.Time) error {
	if m.markTriggeredErr != nil {
		return m.markTriggeredErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return repository.ErrGlobalRuleNotFound
	}
	r.LastTriggeredAt = &at
	return nil
}

// mockAlertRepo records saved alerts and serves the alerting-device view.
type mockAlertRepo struct {
	mu       sync.Mutex
	saved    []*entities.GlobalAlert
	alerting map[string]struct{}
}

func (m *mockAlertRepo) SaveAlert(_ context.Context, alert *entities.GlobalAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, alert)
	return nil
}

func (m *mockAlertRepo) ListAlerts(_ context.Context, _ uuid.UUID, _ repository.GlobalAlertFilter) ([]entities.GlobalAlert, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.GlobalAlert
	for _, a := range m.saved {
		out = append(out, *a)
	}
	return out, int64(len(out)), nil
}

func (m *mockAlertRepo) AcknowledgeAlert(_ context.Context, _ uuid.UUID) error {
	return nil
}

func (m *mockAlertRepo) UnacknowledgedDevices(_ context.Context, _ uuid.UUID) (map[string]struct{}, error) {
	if m.alerting == nil {
		return map[string]struct{}{}, nil
	}
	return m.alerting, nil
}

// mockSink captures emitted trigger decisions.
type mockSink struct {
	mu        sync.Mutex
	decisions []*TriggerDecision
	err       error
}

func (m *mockSink) Emit(_ context.Context, decision *TriggerDecision) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, decision)
	return nil
}

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.decisions)
}
