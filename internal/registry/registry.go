// Package registry holds the alarm and calendar event definitions and
// enforces the data-model invariants at the mutation boundary. Registries are
// safe for concurrent use; List returns an atomic snapshot so the dispatcher
// enumerates each registry exactly once per tick.
package registry

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tartampluch/go-reminder/internal/config"
	"github.com/tartampluch/go-reminder/internal/engine"
	"github.com/tartampluch/go-reminder/internal/model"
)

// ErrAlarmNotFound and ErrEventNotFound signal operations on missing
// identifiers. Deletion races with the dispatcher are expected; callers that
// can tolerate them compare with errors.Is.
var (
	ErrAlarmNotFound = errors.New(config.ErrAlarmNotFound)
	ErrEventNotFound = errors.New(config.ErrEventNotFound)
)

// AlarmRegistry owns the alarm definitions.
type AlarmRegistry struct {
	clock    engine.Clock
	onChange func()

	mu     sync.RWMutex
	alarms map[string]model.Alarm
}

// NewAlarmRegistry creates an empty registry. onChange, when non-nil, is
// invoked after every successful mutation (the persistence dirty signal).
func NewAlarmRegistry(clock engine.Clock, onChange func()) *AlarmRegistry {
	return &AlarmRegistry{
		clock:    clock,
		onChange: onChange,
		alarms:   make(map[string]model.Alarm),
	}
}

// Create validates the alarm, assigns an identifier, and activates it.
// Duplicate time/weekday signatures are rejected, matching the behavior of
// desktop alarm panels where two alarms at the same instant are meaningless.
func (r *AlarmRegistry) Create(a model.Alarm) (model.Alarm, error) {
	if err := a.Validate(); err != nil {
		return model.Alarm{}, err
	}

	r.mu.Lock()
	for _, existing := range r.alarms {
		if existing.SameSchedule(&a) {
			r.mu.Unlock()
			return model.Alarm{}, errors.New(config.ErrAlarmDuplicate)
		}
	}

	a.ID = uuid.NewString()
	a.Active = true
	a.CreatedAt = r.clock.Now()
	if a.AutoDismiss && a.Duration <= 0 {
		a.Duration = config.DefaultAlarmDuration
	}
	r.alarms[a.ID] = a
	r.mu.Unlock()

	slog.Info(config.MsgAlarmAdded,
		config.LogKeyComponent, config.CompRegistry,
		config.LogKeyID, a.ID,
		config.LogKeyLabel, a.Label,
	)
	r.changed()
	return a, nil
}

// Update replaces an existing alarm definition, keeping its identifier and
// creation instant.
func (r *AlarmRegistry) Update(a model.Alarm) error {
	if err := a.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	existing, ok := r.alarms[a.ID]
	if !ok {
		r.mu.Unlock()
		return ErrAlarmNotFound
	}
	a.CreatedAt = existing.CreatedAt
	r.alarms[a.ID] = a
	r.mu.Unlock()

	slog.Info(config.MsgAlarmUpdated,
		config.LogKeyComponent, config.CompRegistry,
		config.LogKeyID, a.ID,
	)
	r.changed()
	return nil
}

// Delete removes an alarm. Deleting is the only way a future occurrence
// becomes permanently unreachable.
func (r *AlarmRegistry) Delete(id string) error {
	r.mu.Lock()
	if _, ok := r.alarms[id]; !ok {
		r.mu.Unlock()
		return ErrAlarmNotFound
	}
	delete(r.alarms, id)
	r.mu.Unlock()

	slog.Info(config.MsgAlarmRemoved,
		config.LogKeyComponent, config.CompRegistry,
		config.LogKeyID, id,
	)
	r.changed()
	return nil
}

// Get returns a copy of the alarm with the given identifier.
func (r *AlarmRegistry) Get(id string) (model.Alarm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.alarms[id]
	if !ok {
		return model.Alarm{}, ErrAlarmNotFound
	}
	return a, nil
}

// List returns a snapshot of all alarms, ordered by trigger time then label.
func (r *AlarmRegistry) List() []model.Alarm {
	r.mu.RLock()
	out := make([]model.Alarm, 0, len(r.alarms))
	for _, a := range r.alarms {
		out = append(out, a)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].TimeOfDay, out[j].TimeOfDay
		if ti != tj {
			if ti.Hour != tj.Hour {
				return ti.Hour < tj.Hour
			}
			return ti.Minute < tj.Minute
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Deactivate flips an alarm inactive after its one-shot delivery. It reports
// false when the alarm no longer exists, which the dispatcher treats as a
// benign deletion race.
func (r *AlarmRegistry) Deactivate(id string) bool {
	r.mu.Lock()
	a, ok := r.alarms[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	a.Active = false
	r.alarms[id] = a
	r.mu.Unlock()

	r.changed()
	return true
}

// Restore loads persisted alarms verbatim, bypassing creation-time defaults.
// Used once at startup before the first tick.
func (r *AlarmRegistry) Restore(alarms []model.Alarm) {
	r.mu.Lock()
	for _, a := range alarms {
		if a.ID == "" {
			continue
		}
		r.alarms[a.ID] = a
	}
	r.mu.Unlock()
}

func (r *AlarmRegistry) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}

// CalendarRegistry owns the calendar event definitions.
type CalendarRegistry struct {
	clock    engine.Clock
	onChange func()

	mu     sync.RWMutex
	events map[string]model.CalendarEvent
}

// NewCalendarRegistry creates an empty registry.
func NewCalendarRegistry(clock engine.Clock, onChange func()) *CalendarRegistry {
	return &CalendarRegistry{
		clock:    clock,
		onChange: onChange,
		events:   make(map[string]model.CalendarEvent),
	}
}

// Create validates the event and assigns an identifier. Events created
// without a reminder offset receive the application default so every event
// reminds shortly before it starts.
func (r *CalendarRegistry) Create(e model.CalendarEvent) (model.CalendarEvent, error) {
	if err := e.Validate(); err != nil {
		return model.CalendarEvent{}, err
	}

	e.ID = uuid.NewString()
	e.CreatedAt = r.clock.Now()
	if e.ReminderOffset == nil {
		offset := config.DefaultReminderOffset
		e.ReminderOffset = &offset
	}

	r.mu.Lock()
	r.events[e.ID] = e
	r.mu.Unlock()

	slog.Info(config.MsgEventAdded,
		config.LogKeyComponent, config.CompRegistry,
		config.LogKeyID, e.ID,
		config.LogKeyTitle, e.Title,
	)
	r.changed()
	return e, nil
}

// Update replaces an existing event definition, keeping its identifier and
// creation instant.
func (r *CalendarRegistry) Update(e model.CalendarEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	existing, ok := r.events[e.ID]
	if !ok {
		r.mu.Unlock()
		return ErrEventNotFound
	}
	e.CreatedAt = existing.CreatedAt
	r.events[e.ID] = e
	r.mu.Unlock()

	slog.Info(config.MsgEventUpdated,
		config.LogKeyComponent, config.CompRegistry,
		config.LogKeyID, e.ID,
	)
	r.changed()
	return nil
}

// Delete removes an event.
func (r *CalendarRegistry) Delete(id string) error {
	r.mu.Lock()
	if _, ok := r.events[id]; !ok {
		r.mu.Unlock()
		return ErrEventNotFound
	}
	delete(r.events, id)
	r.mu.Unlock()

	slog.Info(config.MsgEventRemoved,
		config.LogKeyComponent, config.CompRegistry,
		config.LogKeyID, id,
	)
	r.changed()
	return nil
}

// Get returns a copy of the event with the given identifier.
func (r *CalendarRegistry) Get(id string) (model.CalendarEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[id]
	if !ok {
		return model.CalendarEvent{}, ErrEventNotFound
	}
	return e, nil
}

// List returns a snapshot of all events ordered by start instant.
func (r *CalendarRegistry) List() []model.CalendarEvent {
	r.mu.RLock()
	out := make([]model.CalendarEvent, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// OnDate returns the events whose start falls on the given calendar day,
// including occurrences of recurring events.
func (r *CalendarRegistry) OnDate(day time.Time) []model.CalendarEvent {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var out []model.CalendarEvent
	for _, e := range r.List() {
		if e.Recurrence == nil {
			if !e.Start.Before(dayStart) && e.Start.Before(dayEnd) {
				out = append(out, e)
			}
			continue
		}
		occurrences, err := engine.Expand(*e.Recurrence, e.Start, dayStart, dayEnd)
		if err != nil {
			slog.Warn(config.MsgSourceSkipped,
				config.LogKeyComponent, config.CompRegistry,
				config.LogKeySource, e.ID,
				config.LogKeyError, err,
			)
			continue
		}
		if len(occurrences) > 0 {
			out = append(out, e)
		}
	}
	return out
}

// Restore loads persisted events verbatim. Used once at startup.
func (r *CalendarRegistry) Restore(events []model.CalendarEvent) {
	r.mu.Lock()
	for _, e := range events {
		if e.ID == "" {
			continue
		}
		r.events[e.ID] = e
	}
	r.mu.Unlock()
}

func (r *CalendarRegistry) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}
