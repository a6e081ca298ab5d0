package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tartampluch/go-reminder/internal/engine"
	"github.com/tartampluch/go-reminder/internal/model"
)

// -----------------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------------

// MockClock controls time for deterministic testing.
type MockClock struct {
	CurrentTime time.Time
}

func (m *MockClock) Now() time.Time {
	return m.CurrentTime
}

// fakeAlarms is an in-memory AlarmSource.
type fakeAlarms struct {
	alarms []model.Alarm
}

func (f *fakeAlarms) List() []model.Alarm {
	out := make([]model.Alarm, len(f.alarms))
	copy(out, f.alarms)
	return out
}

func (f *fakeAlarms) Deactivate(id string) bool {
	for i := range f.alarms {
		if f.alarms[i].ID == id {
			f.alarms[i].Active = false
			return true
		}
	}
	return false
}

// fakeEvents is an in-memory EventSource.
type fakeEvents struct {
	events []model.CalendarEvent
}

func (f *fakeEvents) List() []model.CalendarEvent {
	out := make([]model.CalendarEvent, len(f.events))
	copy(out, f.events)
	return out
}

// recordingSink captures emitted notifications in order.
type recordingSink struct {
	items []model.Notification
}

func (s *recordingSink) Add(n model.Notification) string {
	s.items = append(s.items, n)
	return n.ID
}

func (s *recordingSink) ofKind(kind model.SourceKind) []model.Notification {
	var out []model.Notification
	for _, n := range s.items {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func newDispatcher(clock *MockClock, alarms *fakeAlarms, events *fakeEvents, sink *recordingSink) *engine.Dispatcher {
	d := &engine.Dispatcher{
		Clock:  clock,
		Alarms: alarms,
		Events: events,
		Center: sink,
	}
	// Anchor the first window just before the scenario starts so ancient
	// occurrences are not swept in.
	d.RestoreLastTick(clock.CurrentTime)
	return d
}

// -----------------------------------------------------------------------------
// Alarm Promotion
// -----------------------------------------------------------------------------

func TestTick_OneShotAlarmFiresExactlyOnce(t *testing.T) {
	// Scenario: a one-shot 07:30 alarm created at 06:00. The dispatcher ticks
	// every 10 seconds around the trigger instant.
	created := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	clock := &MockClock{CurrentTime: created}
	alarms := &fakeAlarms{alarms: []model.Alarm{{
		ID:        "a1",
		TimeOfDay: model.TimeOfDay{Hour: 7, Minute: 30},
		Label:     "Wake up",
		Active:    true,
		CreatedAt: created,
	}}}
	sink := &recordingSink{}
	d := newDispatcher(clock, alarms, &fakeEvents{}, sink)

	// Before the trigger: nothing.
	clock.CurrentTime = time.Date(2026, 3, 2, 7, 29, 55, 0, time.UTC)
	assert.Equal(t, 0, d.Tick())

	// Window covering 07:30:00.
	clock.CurrentTime = time.Date(2026, 3, 2, 7, 30, 5, 0, time.UTC)
	assert.Equal(t, 1, d.Tick())

	// Subsequent ticks stay silent.
	clock.CurrentTime = time.Date(2026, 3, 2, 7, 30, 15, 0, time.UTC)
	assert.Equal(t, 0, d.Tick())

	require.Len(t, sink.items, 1)
	assert.Equal(t, model.SourceAlarm, sink.items[0].Kind)
	assert.Equal(t, "a1", sink.items[0].SourceID)
	assert.Contains(t, sink.items[0].Message, "Wake up")
	// The notification is stamped with the occurrence instant, not tick time.
	assert.Equal(t, time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC), sink.items[0].CreatedAt)

	// One-shot delivery deactivates the alarm.
	assert.False(t, alarms.alarms[0].Active)
}

func TestTick_RecurringAlarmFiresOnSelectedWeekdays(t *testing.T) {
	// Mon/Wed 07:00 alarm; tick once per day at 08:00 for a week.
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) // Sunday
	clock := &MockClock{CurrentTime: created}
	alarms := &fakeAlarms{alarms: []model.Alarm{{
		ID:        "a1",
		TimeOfDay: model.TimeOfDay{Hour: 7, Minute: 0},
		Weekdays:  []time.Weekday{time.Monday, time.Wednesday},
		Label:     "Standup prep",
		Active:    true,
		CreatedAt: created,
	}}}
	sink := &recordingSink{}
	d := newDispatcher(clock, alarms, &fakeEvents{}, sink)

	total := 0
	for day := 1; day <= 7; day++ {
		clock.CurrentTime = created.AddDate(0, 0, day).Truncate(24 * time.Hour).Add(8 * time.Hour)
		total += d.Tick()
	}

	assert.Equal(t, 2, total, "Monday and Wednesday only")
	for _, n := range sink.items {
		day := n.CreatedAt.Weekday()
		assert.Contains(t, []time.Weekday{time.Monday, time.Wednesday}, day)
	}

	// Recurring alarms stay active after delivery.
	assert.True(t, alarms.alarms[0].Active)
}

func TestTick_MissedTicksAreCaughtUp(t *testing.T) {
	// The process stalls across two daily occurrences; the next tick's
	// window covers both and both are delivered.
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &MockClock{CurrentTime: created}
	alarms := &fakeAlarms{alarms: []model.Alarm{{
		ID:        "a1",
		TimeOfDay: model.TimeOfDay{Hour: 7, Minute: 0},
		Weekdays:  []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday},
		Active:    true,
		CreatedAt: created,
	}}}
	sink := &recordingSink{}
	d := newDispatcher(clock, alarms, &fakeEvents{}, sink)

	clock.CurrentTime = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 3, d.Tick(), "March 2nd, 3rd and 4th 07:00")
}

func TestRestoreLastTick_NeverRewindsAndNeverDuplicates(t *testing.T) {
	// Restoring a stale lastTick behind an already-delivered occurrence must
	// not rewind the window or produce a duplicate.
	created := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	clock := &MockClock{CurrentTime: created}
	alarms := &fakeAlarms{alarms: []model.Alarm{{
		ID:        "a1",
		TimeOfDay: model.TimeOfDay{Hour: 7, Minute: 30},
		Weekdays:  []time.Weekday{time.Monday},
		Active:    true,
		CreatedAt: created,
	}}}
	sink := &recordingSink{}
	d := newDispatcher(clock, alarms, &fakeEvents{}, sink)

	clock.CurrentTime = time.Date(2026, 3, 2, 7, 31, 0, 0, time.UTC)
	require.Equal(t, 1, d.Tick())

	// Attempt to force the window back over the same occurrence.
	d.RestoreLastTick(created)
	assert.Equal(t, time.Date(2026, 3, 2, 7, 31, 0, 0, time.UTC), d.LastTick())

	clock.CurrentTime = time.Date(2026, 3, 2, 7, 32, 0, 0, time.UTC)
	assert.Equal(t, 0, d.Tick())
	assert.Len(t, sink.items, 1)
}

func TestTick_ClockRegressionResetsWindow(t *testing.T) {
	start := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	clock := &MockClock{CurrentTime: start}
	sink := &recordingSink{}
	d := newDispatcher(clock, &fakeAlarms{}, &fakeEvents{}, sink)

	clock.CurrentTime = start.Add(10 * time.Second)
	d.Tick()

	// Clock jumps backwards (NTP correction): the tick is a no-op.
	clock.CurrentTime = start.Add(-time.Hour)
	assert.Equal(t, 0, d.Tick())
	assert.Empty(t, sink.items)

	// Once time moves forward again, dispatch resumes from the new base.
	clock.CurrentTime = start.Add(-time.Hour + 10*time.Second)
	assert.Equal(t, 0, d.Tick())
	assert.Equal(t, start.Add(-time.Hour+10*time.Second), d.LastTick())
}

func TestTick_MalformedAlarmIsSkippedOthersDeliver(t *testing.T) {
	created := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	clock := &MockClock{CurrentTime: created}
	alarms := &fakeAlarms{alarms: []model.Alarm{
		{
			ID:        "broken",
			TimeOfDay: model.TimeOfDay{Hour: 25, Minute: 0}, // invalid
			Active:    true,
			CreatedAt: created,
		},
		{
			ID:        "good",
			TimeOfDay: model.TimeOfDay{Hour: 7, Minute: 0},
			Active:    true,
			CreatedAt: created,
		},
	}}
	sink := &recordingSink{}
	d := newDispatcher(clock, alarms, &fakeEvents{}, sink)

	clock.CurrentTime = time.Date(2026, 3, 2, 7, 0, 30, 0, time.UTC)
	assert.Equal(t, 1, d.Tick())
	require.Len(t, sink.items, 1)
	assert.Equal(t, "good", sink.items[0].SourceID)
}

func TestTick_InactiveAlarmNeverFires(t *testing.T) {
	created := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	clock := &MockClock{CurrentTime: created}
	alarms := &fakeAlarms{alarms: []model.Alarm{{
		ID:        "a1",
		TimeOfDay: model.TimeOfDay{Hour: 7, Minute: 0},
		Active:    false,
		CreatedAt: created,
	}}}
	sink := &recordingSink{}
	d := newDispatcher(clock, alarms, &fakeEvents{}, sink)

	clock.CurrentTime = time.Date(2026, 3, 2, 7, 0, 30, 0, time.UTC)
	assert.Equal(t, 0, d.Tick())
	assert.Empty(t, sink.items)
}

// -----------------------------------------------------------------------------
// Auto-Dismiss
// -----------------------------------------------------------------------------

func TestTick_AutoDismissEmitsFollowUp(t *testing.T) {
	created := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	clock := &MockClock{CurrentTime: created}
	alarms := &fakeAlarms{alarms: []model.Alarm{{
		ID:          "a1",
		TimeOfDay:   model.TimeOfDay{Hour: 7, Minute: 0},
		Weekdays:    []time.Weekday{time.Monday},
		Label:       "Wake up",
		AutoDismiss: true,
		Duration:    60 * time.Second,
		Active:      true,
		CreatedAt:   created,
	}}}
	sink := &recordingSink{}
	d := newDispatcher(clock, alarms, &fakeEvents{}, sink)

	// Fire the alarm.
	clock.CurrentTime = time.Date(2026, 3, 2, 7, 0, 5, 0, time.UTC)
	require.Equal(t, 1, d.Tick())
	assert.Empty(t, sink.ofKind(model.SourceSystem), "dismissal not yet due")

	// Not due yet at +30s.
	clock.CurrentTime = time.Date(2026, 3, 2, 7, 0, 35, 0, time.UTC)
	assert.Equal(t, 0, d.Tick())

	// Due at occurrence + 60s.
	clock.CurrentTime = time.Date(2026, 3, 2, 7, 1, 5, 0, time.UTC)
	assert.Equal(t, 1, d.Tick())

	dismissals := sink.ofKind(model.SourceSystem)
	require.Len(t, dismissals, 1)
	assert.Equal(t, "a1", dismissals[0].SourceID)
	assert.Contains(t, dismissals[0].Message, "Wake up")
	assert.Equal(t, time.Date(2026, 3, 2, 7, 1, 0, 0, time.UTC), dismissals[0].CreatedAt)
}

// -----------------------------------------------------------------------------
// Calendar Reminders
// -----------------------------------------------------------------------------

func TestTick_EventReminderHonorsOffset(t *testing.T) {
	// Scenario: weekly standup Mon/Wed 09:00 with a 10 minute lead time.
	// The reminder fires at 08:50, not at 09:00.
	offset := 10 * time.Minute
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) // Monday
	clock := &MockClock{CurrentTime: time.Date(2026, 3, 2, 8, 49, 50, 0, time.UTC)}
	events := &fakeEvents{events: []model.CalendarEvent{{
		ID:    "e1",
		Title: "Standup",
		Start: start,
		End:   start.Add(15 * time.Minute),
		Recurrence: &model.RecurrenceRule{
			Frequency: model.FreqWeekly,
			Weekdays:  []time.Weekday{time.Monday, time.Wednesday},
		},
		ReminderOffset: &offset,
		CreatedAt:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}}}
	sink := &recordingSink{}
	d := newDispatcher(clock, &fakeAlarms{}, events, sink)

	clock.CurrentTime = time.Date(2026, 3, 2, 8, 50, 5, 0, time.UTC)
	require.Equal(t, 1, d.Tick())

	require.Len(t, sink.items, 1)
	assert.Equal(t, model.SourceCalendar, sink.items[0].Kind)
	assert.Contains(t, sink.items[0].Message, "Standup")
	assert.Equal(t, time.Date(2026, 3, 2, 8, 50, 0, 0, time.UTC), sink.items[0].CreatedAt)

	// The 09:00 start itself produces no second notification.
	clock.CurrentTime = time.Date(2026, 3, 2, 9, 0, 5, 0, time.UTC)
	assert.Equal(t, 0, d.Tick())
}

func TestTick_NonRecurringEventFiresOnce(t *testing.T) {
	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	clock := &MockClock{CurrentTime: start.Add(-time.Hour)}
	events := &fakeEvents{events: []model.CalendarEvent{{
		ID:        "e1",
		Title:     "Dentist",
		Start:     start,
		End:       start.Add(time.Hour),
		CreatedAt: start.Add(-24 * time.Hour),
	}}}
	sink := &recordingSink{}
	d := newDispatcher(clock, &fakeAlarms{}, events, sink)

	// No offset configured on the source itself: due at the start instant.
	clock.CurrentTime = start.Add(5 * time.Second)
	assert.Equal(t, 1, d.Tick())

	clock.CurrentTime = start.Add(time.Minute)
	assert.Equal(t, 0, d.Tick())
	assert.Len(t, sink.items, 1)
}
