package domain

import "time"

// ActivityRecord is the append-only history entry for one provider workout.
// (Provider, ExternalID) is the idempotency key.
type ActivityRecord struct {
	ID              string
	Provider        Provider
	ExternalID      int64
	AccountID       string
	ActivityType    string
	Name            string
	DistanceM       float64
	MovingTimeS     int64
	ElevationGainM  float64
	AverageSpeedMPS float64
	StartDateLocal  string
	XPAwarded       int64
	CoinsAwarded    int64
	Bonuses         []string
	CreatedAt       time.Time
}

// LocalDay returns the YYYY-MM-DD prefix of the provider-local start timestamp.
func (r ActivityRecord) LocalDay() string {
	if len(r.StartDateLocal) < len(DayLayout) {
		return ""
	}
	return r.StartDateLocal[:len(DayLayout)]
}

// Cursor models the activity history pagination token.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}
