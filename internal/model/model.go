package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/tartampluch/go-reminder/internal/config"
)

// SourceKind tags a notification with the subsystem that produced it.
// The set is closed: the dispatcher only ever emits alarm and calendar
// kinds; weather and system notifications come from external collaborators.
type SourceKind string

const (
	SourceAlarm    SourceKind = "alarm"
	SourceCalendar SourceKind = "calendar"
	SourceWeather  SourceKind = "weather"
	SourceSystem   SourceKind = "system"
)

// Frequency selects the recurrence pattern of a RecurrenceRule.
type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
)

// RecurrenceRule describes how a calendar event repeats. The anchor instant
// (the event start) supplies the time-of-day; the rule supplies the cadence
// and the optional end condition.
type RecurrenceRule struct {
	Frequency Frequency `json:"frequency"`

	// Weekdays restricts weekly rules to specific days. Required for weekly.
	Weekdays []time.Weekday `json:"weekdays,omitempty"`

	// MonthDay is the day-of-month for monthly rules (1..31). Months that do
	// not contain the day are skipped, not clamped.
	MonthDay int `json:"month_day,omitempty"`

	// Count limits the total number of occurrences. Zero means unbounded.
	Count int `json:"count,omitempty"`

	// Until is an inclusive end date. Nil means unbounded.
	Until *time.Time `json:"until,omitempty"`
}

// Validate checks the rule's internal consistency.
func (r *RecurrenceRule) Validate() error {
	switch r.Frequency {
	case FreqDaily:
	case FreqWeekly:
		if len(r.Weekdays) == 0 {
			return errors.New(config.ErrWeekdaysEmpty)
		}
	case FreqMonthly:
		if r.MonthDay < 1 || r.MonthDay > 31 {
			return errors.New(config.ErrMonthDayRange)
		}
	default:
		return fmt.Errorf("%s: %q", config.ErrFrequencyUnknown, r.Frequency)
	}
	if r.Count < 0 {
		return errors.New(config.ErrCountNegative)
	}
	return nil
}

// TimeOfDay is a wall-clock trigger time with minute granularity.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ParseTimeOfDay parses "HH:MM" into a TimeOfDay.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	t, err := time.Parse(config.TimeOfDayLayout, value)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%s: %w", config.ErrTimeOfDayInvalid, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// String renders the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On anchors the time-of-day to the calendar date of the given instant.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location())
}

// Alarm is a user-defined wake trigger. An empty weekday set makes the alarm
// one-shot: it fires at the next matching time-of-day and is then deactivated
// by the dispatcher. A non-empty set makes it recur on those weekdays until
// deleted.
type Alarm struct {
	ID        string         `json:"id"`
	TimeOfDay TimeOfDay      `json:"time_of_day"`
	Weekdays  []time.Weekday `json:"weekdays,omitempty"`
	Label     string         `json:"label,omitempty"`

	// AutoDismiss arranges a follow-up system notification Duration after
	// the alarm fires.
	AutoDismiss bool          `json:"auto_dismiss"`
	Duration    time.Duration `json:"duration"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// OneShot reports whether the alarm fires once and then deactivates.
func (a *Alarm) OneShot() bool {
	return len(a.Weekdays) == 0
}

// Validate enforces the alarm invariants at the registry boundary.
func (a *Alarm) Validate() error {
	if a.TimeOfDay.Hour < 0 || a.TimeOfDay.Hour > 23 ||
		a.TimeOfDay.Minute < 0 || a.TimeOfDay.Minute > 59 {
		return errors.New(config.ErrTimeOfDayInvalid)
	}
	if a.Duration < 0 {
		return errors.New(config.ErrDurationNegative)
	}
	return nil
}

// SameSchedule reports whether two alarms share the trigger time and weekday
// signature. The registry rejects such duplicates on create.
func (a *Alarm) SameSchedule(other *Alarm) bool {
	if a.TimeOfDay != other.TimeOfDay || len(a.Weekdays) != len(other.Weekdays) {
		return false
	}
	set := make(map[time.Weekday]bool, len(a.Weekdays))
	for _, d := range a.Weekdays {
		set[d] = true
	}
	for _, d := range other.Weekdays {
		if !set[d] {
			return false
		}
	}
	return true
}

// CalendarEvent is a scheduled entry, optionally recurring, optionally
// carrying a reminder lead time.
type CalendarEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// Category is an open, user-defined set. Colors attached to categories
	// are presentation-only and not modeled here.
	Category string `json:"category,omitempty"`

	Recurrence *RecurrenceRule `json:"recurrence,omitempty"`

	// ReminderOffset is how long before Start the reminder notification
	// becomes due. Nil means no lead time; the registry substitutes the
	// application default on create.
	ReminderOffset *time.Duration `json:"reminder_offset,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate enforces the event invariants at the registry boundary.
func (e *CalendarEvent) Validate() error {
	if e.Title == "" {
		return errors.New(config.ErrTitleEmpty)
	}
	if e.End.Before(e.Start) {
		return errors.New(config.ErrEndBeforeStart)
	}
	if e.ReminderOffset != nil && *e.ReminderOffset < 0 {
		return errors.New(config.ErrOffsetNegative)
	}
	if e.Recurrence != nil {
		return e.Recurrence.Validate()
	}
	return nil
}

// Notification is the durable record of a delivered occurrence (or of a
// weather/system event posted directly by a collaborator).
type Notification struct {
	ID   string     `json:"id"`
	Kind SourceKind `json:"kind"`

	// SourceID references the originating alarm or calendar event.
	// Empty for weather and system notifications.
	SourceID string `json:"source_id,omitempty"`

	Title   string `json:"title"`
	Message string `json:"message"`

	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

// ReadState filters notifications by their read flag.
type ReadState string

const (
	ReadStateAll    ReadState = "all"
	ReadStateUnread ReadState = "unread"
	ReadStateRead   ReadState = "read"
)

// Filter narrows a notification listing. The zero value matches everything.
type Filter struct {
	// Kind restricts to one source kind. Empty means all kinds.
	Kind SourceKind

	// ReadState restricts by read flag. Empty behaves like ReadStateAll.
	ReadState ReadState
}

// Matches reports whether the notification passes the filter.
func (f Filter) Matches(n *Notification) bool {
	if f.Kind != "" && n.Kind != f.Kind {
		return false
	}
	switch f.ReadState {
	case ReadStateUnread:
		return !n.Read
	case ReadStateRead:
		return n.Read
	default:
		return true
	}
}
