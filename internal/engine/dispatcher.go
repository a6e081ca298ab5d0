package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tartampluch/go-reminder/internal/config"
	"github.com/tartampluch/go-reminder/internal/model"
)

// AlarmSource is the dispatcher's view of the alarm registry. List returns an
// atomic snapshot; Deactivate reports false when the alarm no longer exists.
type AlarmSource interface {
	List() []model.Alarm
	Deactivate(id string) bool
}

// EventSource is the dispatcher's view of the calendar registry.
type EventSource interface {
	List() []model.CalendarEvent
}

// NotificationSink receives the notifications the dispatcher emits.
type NotificationSink interface {
	Add(n model.Notification) string
}

// MessageFormatter renders human-readable notification text. Injecting it
// keeps localization out of the scheduling logic.
type MessageFormatter interface {
	AlarmFired(a model.Alarm) (title, body string)
	AlarmDismissed(a model.Alarm) (title, body string)
	EventReminder(e model.CalendarEvent) (title, body string)
}

// deliveryKey identifies one occurrence of one source. It is the dedup unit
// guaranteeing exactly-once promotion across overlapping tick windows.
type deliveryKey struct {
	sourceID   string
	occurrence int64 // unix nanoseconds
}

// dismissal is a pending auto-dismiss follow-up for a fired alarm.
type dismissal struct {
	alarm model.Alarm
	due   time.Time
}

// Dispatcher promotes due occurrences to notifications, exactly once each.
// All fields must be set before the first Tick; they are not mutated after.
//
// Emitted notifications carry the occurrence instant as CreatedAt, not the
// wall-clock time of the tick that delivered them. Catch-up after a gap then
// yields distinct, correctly ordered timestamps instead of a burst sharing
// the recovery instant.
type Dispatcher struct {
	Clock    Clock
	Alarms   AlarmSource
	Events   EventSource
	Center   NotificationSink
	Messages MessageFormatter // optional; falls back to plain formats

	// Retention bounds the delivery journal. Zero means config.DedupRetention.
	Retention time.Duration

	mu        sync.Mutex
	lastTick  time.Time
	delivered map[deliveryKey]time.Time
	dismissQ  []dismissal
}

// LastTick returns the instant of the most recent completed tick.
// Zero means the dispatcher has never ticked.
func (d *Dispatcher) LastTick() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastTick
}

// RestoreLastTick seeds the tick window after a restart so occurrences
// delivered before shutdown are not replayed.
func (d *Dispatcher) RestoreLastTick(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t.After(d.lastTick) {
		d.lastTick = t
	}
}

// Tick runs one due-detection pass at the clock's current instant. Ticks are
// serialized by an internal mutex; a failure in one source never aborts the
// pass for the others. It returns the number of notifications emitted.
func (d *Dispatcher) Tick() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	log := slog.With(config.LogKeyComponent, config.CompDispatcher)
	started := time.Now()

	now := d.Clock.Now()
	if now.Before(d.lastTick) {
		// A negative-width window is nonsensical; reset and wait for the
		// clock to move forward again.
		log.Warn(config.MsgClockRegressed,
			config.LogKeyWindowFrom, d.lastTick,
			config.LogKeyWindowTo, now,
		)
		d.lastTick = now
		return 0
	}

	// The tick window is (lastTick, now]. The expansion helpers take a
	// half-open [from, to) window, so both bounds shift by one nanosecond.
	from := d.lastTick.Add(time.Nanosecond)
	to := now.Add(time.Nanosecond)

	log.Debug(config.MsgTickStart,
		config.LogKeyWindowFrom, d.lastTick,
		config.LogKeyWindowTo, now,
	)

	if d.delivered == nil {
		d.delivered = make(map[deliveryKey]time.Time)
	}

	delivered := 0
	delivered += d.dispatchAlarms(log, from, to)
	delivered += d.dispatchEvents(log, from, to)
	delivered += d.dispatchDismissals(to)

	d.pruneJournal(log, now)
	d.lastTick = now

	log.Debug(config.MsgTickDone,
		config.LogKeyDelivered, delivered,
		config.LogKeyDuration, time.Since(started).Milliseconds(),
	)
	return delivered
}

func (d *Dispatcher) dispatchAlarms(log *slog.Logger, from, to time.Time) int {
	delivered := 0

	// One snapshot per tick; mutations racing with the tick are picked up
	// by the next one.
	for _, a := range d.Alarms.List() {
		if !a.Active {
			continue
		}

		occurrences, err := AlarmOccurrences(&a, from, to)
		if err != nil {
			log.Warn(config.MsgSourceSkipped,
				config.LogKeySource, a.ID,
				config.LogKeyKind, model.SourceAlarm,
				config.LogKeyError, err,
			)
			continue
		}

		for _, occ := range occurrences {
			key := deliveryKey{sourceID: a.ID, occurrence: occ.UnixNano()}
			if _, done := d.delivered[key]; done {
				continue
			}

			title, body := d.formatAlarm(a)
			d.Center.Add(model.Notification{
				Kind:      model.SourceAlarm,
				SourceID:  a.ID,
				Title:     title,
				Message:   body,
				CreatedAt: occ,
			})
			d.delivered[key] = occ
			delivered++

			log.Info(config.MsgOccurrenceDue,
				config.LogKeySource, a.ID,
				config.LogKeyKind, model.SourceAlarm,
				config.LogKeyOccurrence, occ,
			)

			if a.AutoDismiss {
				duration := a.Duration
				if duration <= 0 {
					duration = config.DefaultAlarmDuration
				}
				d.dismissQ = append(d.dismissQ, dismissal{alarm: a, due: occ.Add(duration)})
			}

			if a.OneShot() {
				// Deactivate reports false when the alarm was deleted
				// mid-tick; the occurrence is simply dropped then.
				if d.Alarms.Deactivate(a.ID) {
					log.Info(config.MsgAlarmOneShot, config.LogKeySource, a.ID)
				}
			}
		}
	}
	return delivered
}

func (d *Dispatcher) dispatchEvents(log *slog.Logger, from, to time.Time) int {
	delivered := 0

	for _, e := range d.Events.List() {
		occurrences, err := ReminderOccurrences(&e, from, to)
		if err != nil {
			log.Warn(config.MsgSourceSkipped,
				config.LogKeySource, e.ID,
				config.LogKeyKind, model.SourceCalendar,
				config.LogKeyError, err,
			)
			continue
		}

		for _, occ := range occurrences {
			key := deliveryKey{sourceID: e.ID, occurrence: occ.UnixNano()}
			if _, done := d.delivered[key]; done {
				continue
			}

			title, body := d.formatReminder(e)
			d.Center.Add(model.Notification{
				Kind:      model.SourceCalendar,
				SourceID:  e.ID,
				Title:     title,
				Message:   body,
				CreatedAt: occ,
			})
			d.delivered[key] = occ
			delivered++

			log.Info(config.MsgOccurrenceDue,
				config.LogKeySource, e.ID,
				config.LogKeyKind, model.SourceCalendar,
				config.LogKeyOccurrence, occ,
			)
		}
	}
	return delivered
}

// dispatchDismissals emits the system follow-up for auto-dismissed alarms
// whose dismiss instant falls inside the tick window.
func (d *Dispatcher) dispatchDismissals(to time.Time) int {
	delivered := 0
	remaining := d.dismissQ[:0]

	for _, dism := range d.dismissQ {
		// A due instant past the window stays queued; anything at or before
		// now is emitted, even if a skipped tick left it behind the window.
		if !dism.due.Before(to) {
			remaining = append(remaining, dism)
			continue
		}

		title, body := d.formatDismiss(dism.alarm)
		d.Center.Add(model.Notification{
			Kind:      model.SourceSystem,
			SourceID:  dism.alarm.ID,
			Title:     title,
			Message:   body,
			CreatedAt: dism.due,
		})
		delivered++

		slog.Info(config.MsgAlarmDismissed,
			config.LogKeyComponent, config.CompDispatcher,
			config.LogKeySource, dism.alarm.ID,
		)
	}
	d.dismissQ = remaining
	return delivered
}

// pruneJournal drops delivery records older than the retention horizon.
// Tick windows can never reach back that far again, so the keys are dead.
func (d *Dispatcher) pruneJournal(log *slog.Logger, now time.Time) {
	retention := d.Retention
	if retention <= 0 {
		retention = config.DedupRetention
	}
	horizon := now.Add(-retention)

	pruned := 0
	for key, occ := range d.delivered {
		if occ.Before(horizon) {
			delete(d.delivered, key)
			pruned++
		}
	}
	if pruned > 0 {
		log.Debug(config.MsgJournalPruned, config.LogKeyPruned, pruned)
	}
}

func (d *Dispatcher) formatAlarm(a model.Alarm) (string, string) {
	if d.Messages != nil {
		return d.Messages.AlarmFired(a)
	}
	if a.Label != "" {
		return config.AppName, fmt.Sprintf(config.FallbackAlarmMsg, a.Label)
	}
	return config.AppName, fmt.Sprintf(config.FallbackAlarmBare, a.TimeOfDay)
}

func (d *Dispatcher) formatDismiss(a model.Alarm) (string, string) {
	if d.Messages != nil {
		return d.Messages.AlarmDismissed(a)
	}
	label := a.Label
	if label == "" {
		label = a.TimeOfDay.String()
	}
	return config.AppName, fmt.Sprintf(config.FallbackDismissMsg, label)
}

func (d *Dispatcher) formatReminder(e model.CalendarEvent) (string, string) {
	if d.Messages != nil {
		return d.Messages.EventReminder(e)
	}
	return config.AppName, fmt.Sprintf(config.FallbackReminderMsg, e.Title)
}
