package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "shiftcal/internal/log"
	"shiftcal/internal/shift"
)

const (
	prodID     = "-//shiftcal//shiftcal//EN"
	dateLayout = "20060102"
)

// Generate translates a day sequence of shift tokens into an iCalendar
// document, one VEVENT per working day.
//
//   - startDate is the calendar date of the first token; each subsequent
//     token is one day later, whether or not it produced an event.
//   - tokens is the ordered day sequence, one character per day.
//   - table resolves tokens; a nil or empty table means the compiled-in
//     defaults. Tokens with no definition are warned about and skipped.
//   - loc, if non-nil, is attached to every instant as a TZID parameter and
//     declared once as a VTIMEZONE component. A nil loc produces naive
//     instants with no zone annotation.
//
// Generation is pure and deterministic: no wall-clock reads, no I/O, and the
// same inputs serialize to byte-identical output.
func Generate(startDate time.Time, tokens string, table shift.Table, loc *time.Location) *ical.Calendar {
	if len(table) == 0 {
		table = shift.DefaultTable()
	}

	cal := ical.NewCalendar()
	cal.SetProductId(prodID)

	var tzid string
	if loc != nil {
		tzid = loc.String()
		// Declare the zone once, ahead of the events that reference it.
		tz := &ical.VTimezone{}
		tz.SetProperty("TZID", tzid)
		cal.Components = append(cal.Components, tz)
	}

	date := startDate
	for _, token := range tokens {
		def, err := table.Lookup(token)
		if err != nil {
			appLog.Warn("unknown shift", "token", string(token), "date", date.Format(dateLayout))
		}
		if err == nil && def.Working {
			addEvent(cal, date, def, tzid)
		}
		// The date cursor always advances: off and unknown tokens still
		// consume one day of the sequence.
		date = date.AddDate(0, 0, 1)
	}

	return cal
}

// Serialize renders the document with the CRLF line terminators the calendar
// text format mandates. The library's default is the platform newline, which
// would emit bare LF on unix; all output must go through this function.
func Serialize(cal *ical.Calendar) string {
	return cal.Serialize(ical.WithNewLineWindows)
}

func addEvent(cal *ical.Calendar, date time.Time, def shift.Definition, tzid string) {
	uid := fmt.Sprintf("%s-%s@shiftcal", date.Format(dateLayout), string(def.Token))
	ev := cal.AddEvent(uid)

	if def.Title != "" {
		ev.SetSummary(def.Title)
	}

	endDate := date
	if def.CrossesMidnight() {
		endDate = date.AddDate(0, 0, 1)
	}

	params := []ical.PropertyParameter{
		&ical.KeyValues{Key: "VALUE", Value: []string{"DATE-TIME"}},
	}
	if tzid != "" {
		params = append(params, &ical.KeyValues{Key: "TZID", Value: []string{tzid}})
	}

	ev.SetProperty(ical.ComponentPropertyDtStart, date.Format(dateLayout)+"T"+def.Start.String(), params...)
	ev.SetProperty(ical.ComponentPropertyDtEnd, endDate.Format(dateLayout)+"T"+def.End.String(), params...)
}
