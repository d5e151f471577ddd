package service

import (
	"fmt"
	"time"

	"tireshop_backend/platform/apperr"
)

// SlotCapacity is how many concurrent appointments one half-hour slot holds.
const SlotCapacity = 2

const (
	slotOpenHour = 7
	slotCount    = 24
	slotMinutes  = 30
	dateLayout   = "2006-01-02"
	slotLayout   = "15:04"
)

// SlotTimes returns the bookable half-hour marks, 07:00 through 18:30.
func SlotTimes() []string {
	times := make([]string, 0, slotCount)
	for i := 0; i < slotCount; i++ {
		h := slotOpenHour + (i*slotMinutes)/60
		m := (i * slotMinutes) % 60
		times = append(times, fmt.Sprintf("%02d:%02d", h, m))
	}
	return times
}

func isBookableTime(slotTime string) bool {
	parsed, err := time.Parse(slotLayout, slotTime)
	if err != nil {
		return false
	}
	if parsed.Minute() != 0 && parsed.Minute() != 30 {
		return false
	}
	open := slotOpenHour * 60
	last := open + (slotCount-1)*slotMinutes
	minutes := parsed.Hour()*60 + parsed.Minute()
	return minutes >= open && minutes <= last
}

// validateSlot checks a requested (date, time) pair. Format errors are
// reported before calendar errors so the caller always sees the most
// specific problem first.
func validateSlot(dateStr, slotTime string, now time.Time) (time.Time, error) {
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return time.Time{}, apperr.Validation("date must be in YYYY-MM-DD format")
	}
	if !isBookableTime(slotTime) {
		return time.Time{}, apperr.Validation("time must be a half-hour slot between 07:00 and 18:30")
	}
	if date.Weekday() == time.Sunday {
		return time.Time{}, apperr.Validation("we are closed on Sundays")
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if date.Before(today) {
		return time.Time{}, apperr.Validation("date must be today or later")
	}
	return date, nil
}
