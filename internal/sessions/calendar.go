package sessions

import (
	"time"

	"github.com/scmhub/calendar"
)

// tradingCalendar answers business-day questions for the exchange. Backed
// by the XNYS calendar (holidays included); falls back to a plain
// Mon-Fri check if the calendar cannot be loaded.
type tradingCalendar struct {
	cal      *calendar.Calendar
	loc      *time.Location
	fallback bool
}

func newTradingCalendar() *tradingCalendar {
	cal := calendar.GetCalendar("xnys")
	if cal == nil {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
		return &tradingCalendar{loc: loc, fallback: true}
	}
	return &tradingCalendar{cal: cal, loc: cal.Loc}
}

func (tc *tradingCalendar) isBusinessDay(t time.Time) bool {
	t = t.In(tc.loc)
	if tc.fallback {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return tc.cal.IsBusinessDay(t)
}
