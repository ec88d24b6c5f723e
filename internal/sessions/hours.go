package sessions

import (
	"regexp"
	"strings"
	"time"
)

// Trading-hours descriptions look like
// "20250724:0930-1600;20250725:0930-20250725:1600,1800-2000;20250726:CLOSED".
// Both ';' and ',' separate ranges; the end date is optional and defaults
// to the start date; CLOSED segments are skipped rather than failing the
// whole string.
var hoursRangeRE = regexp.MustCompile(`^(\d{8}):(\d{4})-(?:(\d{8}):)?(\d{4})$`)
var hoursBareRE = regexp.MustCompile(`^(\d{4})-(\d{4})$`)

const hoursStampLayout = "200601021504"

// withinTradingHours reports whether now falls inside any range dated
// today in loc. Ranges are half-open [start, end). A comma range without
// its own date ("...0700-1830,1830-2330") inherits the segment's date.
func withinTradingHours(hours string, now time.Time, loc *time.Location) bool {
	today := now.In(loc).Format("20060102")
	for _, seg := range strings.Split(hours, ";") {
		segDate := ""
		for _, rng := range strings.Split(seg, ",") {
			rng = strings.TrimSpace(rng)
			if strings.HasSuffix(rng, "CLOSED") {
				continue
			}
			var startDate, startClock, endDate, endClock string
			if m := hoursRangeRE.FindStringSubmatch(rng); m != nil {
				startDate, startClock, endDate, endClock = m[1], m[2], m[3], m[4]
				segDate = startDate
			} else if m := hoursBareRE.FindStringSubmatch(rng); m != nil && segDate != "" {
				startDate, startClock, endClock = segDate, m[1], m[2]
			} else {
				continue
			}
			if startDate != today {
				continue
			}
			if endDate == "" {
				endDate = startDate
			}
			start, err := time.ParseInLocation(hoursStampLayout, startDate+startClock, loc)
			if err != nil {
				continue
			}
			end, err := time.ParseInLocation(hoursStampLayout, endDate+endClock, loc)
			if err != nil {
				continue
			}
			if !now.Before(start) && now.Before(end) {
				return true
			}
		}
	}
	return false
}
