package domain

import "time"

// DayLayout is the calendar-day format used for mission generation keys.
const DayLayout = "2006-01-02"

// DayOf returns the calendar day of t in t's location.
func DayOf(t time.Time) string {
	return t.Format(DayLayout)
}

// MissionTemplate is a read-only catalog entry.
type MissionTemplate struct {
	ID          string
	Description string
	XP          int64
}

// MissionInstance is one sampled mission for an account on a given day.
type MissionInstance struct {
	ID          string
	AccountID   string
	Day         string
	Slot        int
	TemplateID  string
	Description string
	XP          int64
	Completed   bool
	CompletedAt *time.Time
}

// MissionState is the stored daily mission set of an account.
type MissionState struct {
	Day      string
	Missions []MissionInstance
}

// Active reports whether the state holds a mission set generated on day.
func (s MissionState) Active(day string) bool {
	return s.Day == day && len(s.Missions) > 0
}
