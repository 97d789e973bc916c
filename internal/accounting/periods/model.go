package periods

import "time"

// KeyLayout is the time layout used for monthly period keys.
const KeyLayout = "2006-01"

// PeriodLock marks an accounting period as closed for posting.
type PeriodLock struct {
	PeriodKey string
	LockedBy  int64
	LockedAt  time.Time
}

// Key derives the period key for a posting date.
func Key(date time.Time) string {
	return date.Format(KeyLayout)
}
