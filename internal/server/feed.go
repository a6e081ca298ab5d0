package server

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/emersion/go-ical"

	"github.com/tartampluch/go-reminder/internal/config"
	"github.com/tartampluch/go-reminder/internal/engine"
	"github.com/tartampluch/go-reminder/internal/model"
)

// BuildFeed renders the calendar events as an iCalendar document. Events with
// a recurrence rule carry an RRULE so subscribing clients expand occurrences
// themselves. An event whose rule fails to render is skipped, not fatal.
func BuildFeed(clock engine.Clock, events []model.CalendarEvent) ([]byte, error) {
	cal := ical.NewCalendar()

	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, config.ICalCalName)
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	dtStampProp := ical.NewProp(config.PropDTStamp)
	dtStampProp.SetDateTime(clock.Now().UTC())

	for i := range events {
		e := &events[i]

		event := ical.NewEvent()
		event.Props.SetText(config.PropUID, fmt.Sprintf(config.FormatEventUID, e.ID, config.ICalDomain))

		summary := e.Title
		if summary == "" {
			summary = config.FallbackEventUntitled
		}
		event.Props.SetText(config.PropSummary, summary)
		if e.Description != "" {
			event.Props.SetText(config.PropDescription, e.Description)
		}
		if e.Category != "" {
			event.Props.SetText(config.PropCategories, e.Category)
		}

		dtStart := ical.NewProp(config.PropDTStart)
		dtStart.SetDateTime(e.Start.UTC())
		event.Props.Set(dtStart)

		dtEnd := ical.NewProp(config.PropDTEnd)
		dtEnd.SetDateTime(e.End.UTC())
		event.Props.Set(dtEnd)

		if e.Recurrence != nil {
			opt, err := engine.RuleOption(*e.Recurrence, e.Start)
			if err != nil {
				slog.Warn(config.MsgSourceSkipped,
					config.LogKeyComponent, config.CompServer,
					config.LogKeyID, e.ID,
					config.LogKeyError, err,
				)
				continue
			}
			// SetRecurrenceRule emits a RECUR value; TEXT escaping would
			// corrupt the semicolon-separated rule parts.
			event.Props.SetRecurrenceRule(opt)
		}

		event.Props.Set(dtStampProp)
		cal.Children = append(cal.Children, event.Component)
	}

	// Keep the feed well-formed even before the first event exists.
	if len(cal.Children) == 0 {
		return []byte(config.StubVCalendar), nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}
	return buf.Bytes(), nil
}

// Refresh rebuilds the feed from a registry snapshot and swaps it into the
// served cache.
func (s *CalendarServer) Refresh(clock engine.Clock, events []model.CalendarEvent) error {
	data, err := BuildFeed(clock, events)
	if err != nil {
		return err
	}
	s.Update(data)
	return nil
}
