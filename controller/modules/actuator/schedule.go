package actuator

import (
	"time"

	"github.com/teambition/rrule-go"
)

// ParseSchedule parses an RRULE string (e.g. "FREQ=HOURLY;INTERVAL=4")
// anchored at now. An empty string means no schedule.
func ParseSchedule(ruleStr string) (*rrule.RRule, error) {
	if ruleStr == "" {
		return nil, nil
	}
	start := time.Now().UTC().Format("20060102T150405Z")
	return rrule.StrToRRule("DTSTART=" + start + ";" + ruleStr)
}

// StartSchedule spawns a goroutine that calls callback on every recurrence
// until quit is closed.
func StartSchedule(rr *rrule.RRule, quit <-chan struct{}, callback func()) {
	if rr == nil {
		return
	}
	go func() {
		for {
			next := rr.After(time.Now(), false)
			if next.IsZero() {
				return
			}
			timer := time.NewTimer(time.Until(next))
			select {
			case <-timer.C:
				callback()
			case <-quit:
				timer.Stop()
				return
			}
		}
	}()
}
