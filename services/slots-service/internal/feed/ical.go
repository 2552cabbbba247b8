// Package feed renders slots and free time as iCalendar (RFC 5545).
package feed

import (
	"io"
	"time"

	"github.com/emersion/go-ical"
)

const productID = "-//Timely//Slots 1.0//EN"

type Event struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
	// Free marks the event TRANSP:TRANSPARENT so calendar clients do not count it as busy.
	Free bool
}

func Write(w io.Writer, name string, events []Event, now time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	if name != "" {
		cal.Props.SetText("X-WR-CALNAME", name)
	}

	stamp := now.UTC()
	for _, e := range events {
		ev := ical.NewEvent()
		ev.Props.SetText(ical.PropUID, e.UID)
		ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		ev.Props.SetDateTime(ical.PropDateTimeStart, e.Start.UTC())
		ev.Props.SetDateTime(ical.PropDateTimeEnd, e.End.UTC())
		if e.Summary != "" {
			ev.Props.SetText(ical.PropSummary, e.Summary)
		}
		if e.Free {
			ev.Props.SetText(ical.PropTransparency, "TRANSPARENT")
		} else {
			ev.Props.SetText(ical.PropTransparency, "OPAQUE")
		}
		cal.Children = append(cal.Children, ev.Component)
	}
	return ical.NewEncoder(w).Encode(cal)
}
