package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tartampluch/go-reminder/internal/model"
	"github.com/tartampluch/go-reminder/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "reminder.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	offset := 10 * time.Minute
	until := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	state := store.State{
		Alarms: []model.Alarm{
			{
				ID:          "a1",
				TimeOfDay:   model.TimeOfDay{Hour: 7, Minute: 30},
				Weekdays:    []time.Weekday{time.Monday, time.Friday},
				Label:       "Wake up",
				AutoDismiss: true,
				Duration:    90 * time.Second,
				Active:      true,
				CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			},
			{
				ID:        "a2",
				TimeOfDay: model.TimeOfDay{Hour: 22, Minute: 0},
				Label:     "One shot",
				Active:    false,
				CreatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			},
		},
		Events: []model.CalendarEvent{
			{
				ID:          "e1",
				Title:       "Standup",
				Description: "Daily sync",
				Start:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
				End:         time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC),
				Category:    "work",
				Recurrence: &model.RecurrenceRule{
					Frequency: model.FreqWeekly,
					Weekdays:  []time.Weekday{time.Monday, time.Wednesday},
					Until:     &until,
				},
				ReminderOffset: &offset,
				CreatedAt:      time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
			},
		},
		Notifications: []model.Notification{
			{
				ID:        "n1",
				Kind:      model.SourceAlarm,
				SourceID:  "a1",
				Title:     "Alarm",
				Message:   "Alarm: Wake up",
				CreatedAt: time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC),
				Read:      true,
			},
		},
		LastTick: time.Date(2026, 3, 2, 7, 30, 5, 0, time.UTC),
	}

	require.NoError(t, s.Save(ctx, state))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, state.Alarms, loaded.Alarms)
	assert.Equal(t, state.Events, loaded.Events)
	assert.Equal(t, state.Notifications, loaded.Notifications)
	assert.True(t, state.LastTick.Equal(loaded.LastTick))
}

func TestStoreSaveReplacesSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := store.State{
		Alarms: []model.Alarm{{
			ID:        "a1",
			TimeOfDay: model.TimeOfDay{Hour: 6, Minute: 0},
			Active:    true,
			CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
	}
	require.NoError(t, s.Save(ctx, first))

	second := store.State{
		Alarms: []model.Alarm{{
			ID:        "a2",
			TimeOfDay: model.TimeOfDay{Hour: 8, Minute: 15},
			Active:    true,
			CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		}},
	}
	require.NoError(t, s.Save(ctx, second))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Alarms, 1)
	assert.Equal(t, "a2", loaded.Alarms[0].ID)
}

func TestStoreLoadEmpty(t *testing.T) {
	s := openTestStore(t)

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)

	assert.Empty(t, loaded.Alarms)
	assert.Empty(t, loaded.Events)
	assert.Empty(t, loaded.Notifications)
	assert.True(t, loaded.LastTick.IsZero(), "first run starts with a zero tick")
}

func TestStoreNilOptionalFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	state := store.State{
		Events: []model.CalendarEvent{{
			ID:        "e1",
			Title:     "Dentist",
			Start:     time.Date(2026, 4, 10, 14, 0, 0, 0, time.UTC),
			End:       time.Date(2026, 4, 10, 15, 0, 0, 0, time.UTC),
			CreatedAt: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		}},
	}
	require.NoError(t, s.Save(ctx, state))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Events, 1)
	assert.Nil(t, loaded.Events[0].Recurrence)
	assert.Nil(t, loaded.Events[0].ReminderOffset)
}
