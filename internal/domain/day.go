// internal/domain/day.go
package domain

import (
	"sort"

	"cloud.google.com/go/civil"
)

// WorkoutKind distinguishes regular sessions from calibration runs.
type WorkoutKind string

const (
	WorkoutNormal      WorkoutKind = "normal"
	WorkoutCalibration WorkoutKind = "calibration"
)

// RestTitle marks a day without a scheduled workout.
const RestTitle = "Rest"

// DayRecord is one scheduled day in a TrainingPlan.
type DayRecord struct {
	Date               civil.Date  `json:"date"`
	Title              string      `json:"title"`
	WorkoutDescription string      `json:"workoutDescription"`
	Tips               []string    `json:"tips,omitempty"`
	WorkoutKind        WorkoutKind `json:"workoutKind,omitempty"`
}

// RestDay returns the rest marker for d.
func RestDay(d civil.Date) DayRecord {
	return DayRecord{
		Date:               d,
		Title:              RestTitle,
		WorkoutDescription: "Rest day",
		WorkoutKind:        WorkoutNormal,
	}
}

// IsRest reports whether the record is a rest marker.
func (r DayRecord) IsRest() bool {
	return r.Title == RestTitle
}

// Clone returns a deep copy of the record.
func (r DayRecord) Clone() DayRecord {
	if r.Tips != nil {
		r.Tips = append([]string(nil), r.Tips...)
	}
	return r
}

// DayList is the canonical date-indexed day list of a plan.
type DayList map[civil.Date]DayRecord

// Dates returns the dates in ascending order.
func (l DayList) Dates() []civil.Date {
	dates := make([]civil.Date, 0, len(l))
	for d := range l {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Sorted returns the records in date order.
func (l DayList) Sorted() []DayRecord {
	out := make([]DayRecord, 0, len(l))
	for _, d := range l.Dates() {
		out = append(out, l[d])
	}
	return out
}

// Clone returns a deep copy of the list.
func (l DayList) Clone() DayList {
	if l == nil {
		return nil
	}
	out := make(DayList, len(l))
	for d, r := range l {
		out[d] = r.Clone()
	}
	return out
}

// DayListOf builds a list from records, keyed by their Date.
func DayListOf(records []DayRecord) DayList {
	out := make(DayList, len(records))
	for _, r := range records {
		out[r.Date] = r.Clone()
	}
	return out
}
