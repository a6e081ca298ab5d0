package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/tartampluch/go-reminder/internal/config"
	"github.com/tartampluch/go-reminder/internal/model"
)

// rruleWeekdays maps time.Weekday onto the RFC 5545 weekday constants.
var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// ruleOption translates a RecurrenceRule into the backing RFC 5545 options.
// The anchor supplies DTSTART and therefore the time-of-day of every
// occurrence.
func ruleOption(rule model.RecurrenceRule, anchor time.Time) (rrule.ROption, error) {
	opt := rrule.ROption{Dtstart: anchor}

	switch rule.Frequency {
	case model.FreqDaily:
		opt.Freq = rrule.DAILY
	case model.FreqWeekly:
		if len(rule.Weekdays) == 0 {
			return opt, errors.New(config.ErrWeekdaysEmpty)
		}
		opt.Freq = rrule.WEEKLY
		for _, d := range rule.Weekdays {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
		}
	case model.FreqMonthly:
		if rule.MonthDay < 1 || rule.MonthDay > 31 {
			return opt, errors.New(config.ErrMonthDayRange)
		}
		// BYMONTHDAY already skips months lacking the day; no clamping.
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = []int{rule.MonthDay}
	default:
		return opt, fmt.Errorf("%s: %q", config.ErrFrequencyUnknown, rule.Frequency)
	}

	if rule.Count > 0 {
		opt.Count = rule.Count
	}
	if rule.Until != nil {
		opt.Until = *rule.Until
	}

	return opt, nil
}

func newRRule(rule model.RecurrenceRule, anchor time.Time) (*rrule.RRule, error) {
	opt, err := ruleOption(rule, anchor)
	if err != nil {
		return nil, err
	}
	return rrule.NewRRule(opt)
}

// Expand produces the ordered occurrence instants of a recurrence rule that
// fall inside the half-open window [from, to). The result is strictly
// increasing and honors the rule's end condition (count or until date).
// The function is pure; it never consults the real clock.
func Expand(rule model.RecurrenceRule, anchor, from, to time.Time) ([]time.Time, error) {
	if to.Before(from) {
		return nil, errors.New(config.ErrWindowInverted)
	}

	r, err := newRRule(rule, anchor)
	if err != nil {
		return nil, err
	}

	// Between is endpoint-inclusive; trim the upper bound to keep the
	// window half-open.
	raw := r.Between(from, to, true)
	out := raw[:0]
	for _, t := range raw {
		if t.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

// RuleOption returns the RFC 5545 recurrence options backing a rule, for
// callers that serialize it (the ICS feed). The anchor supplies the DTSTART
// context; the options themselves carry no DTSTART line.
func RuleOption(rule model.RecurrenceRule, anchor time.Time) (*rrule.ROption, error) {
	opt, err := ruleOption(rule, anchor)
	if err != nil {
		return nil, err
	}
	if _, err := rrule.NewRRule(opt); err != nil {
		return nil, err
	}
	return &opt, nil
}

// RuleString renders a RecurrenceRule as its bare RFC 5545 RECUR value,
// e.g. "FREQ=WEEKLY;BYDAY=MO,WE". The result is what follows "RRULE:" in an
// iCalendar content line; it never includes a DTSTART prefix.
func RuleString(rule model.RecurrenceRule, anchor time.Time) (string, error) {
	opt, err := RuleOption(rule, anchor)
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// AlarmOccurrences returns the alarm's due instants inside [from, to).
//
// A recurring alarm behaves like a weekly rule over its weekday set, anchored
// to its time-of-day on the creation date. A one-shot alarm has exactly one
// occurrence: the first instant at its time-of-day at or after creation.
func AlarmOccurrences(a *model.Alarm, from, to time.Time) ([]time.Time, error) {
	if to.Before(from) {
		return nil, errors.New(config.ErrWindowInverted)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	if a.OneShot() {
		trigger := a.TimeOfDay.On(a.CreatedAt)
		if trigger.Before(a.CreatedAt) {
			trigger = trigger.AddDate(0, 0, 1)
		}
		if !trigger.Before(from) && trigger.Before(to) {
			return []time.Time{trigger}, nil
		}
		return nil, nil
	}

	rule := model.RecurrenceRule{
		Frequency: model.FreqWeekly,
		Weekdays:  a.Weekdays,
	}
	return Expand(rule, a.TimeOfDay.On(a.CreatedAt), from, to)
}

// ReminderOccurrences returns the instants inside [from, to) at which the
// event's reminder notification becomes due: each occurrence of the event
// start, shifted back by the reminder offset (zero when none is configured).
func ReminderOccurrences(e *model.CalendarEvent, from, to time.Time) ([]time.Time, error) {
	if to.Before(from) {
		return nil, errors.New(config.ErrWindowInverted)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	var offset time.Duration
	if e.ReminderOffset != nil {
		offset = *e.ReminderOffset
	}

	if e.Recurrence == nil {
		due := e.Start.Add(-offset)
		if !due.Before(from) && due.Before(to) {
			return []time.Time{due}, nil
		}
		return nil, nil
	}

	// Shift the window forward by the offset so the expansion still runs
	// over start instants, then shift the results back.
	starts, err := Expand(*e.Recurrence, e.Start, from.Add(offset), to.Add(offset))
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, len(starts))
	for _, s := range starts {
		out = append(out, s.Add(-offset))
	}
	return out, nil
}
