// Package grid derives the Monday-aligned week view of a training plan from
// its canonical day list.
//
// The grid is a value: it is recomputed from the day list whenever it is
// needed and is never patched in place. Building a grid never writes to the
// day list it reads.
package grid

import (
	"alcyxob/run-coach/internal/dates"
	"alcyxob/run-coach/internal/domain"

	"cloud.google.com/go/civil"
)

// SlotKind says what a weekday slot of the grid holds.
type SlotKind string

const (
	SlotScheduled   SlotKind = "scheduled"
	SlotBeforeStart SlotKind = "before_start" // Inert: precedes the plan's first day
	SlotAfterEnd    SlotKind = "after_end"    // Inert: follows the plan's last day
)

// Slot is one weekday cell of a week.
type Slot struct {
	Date civil.Date        `json:"date"`
	Kind SlotKind          `json:"kind"`
	Day  *domain.DayRecord `json:"day,omitempty"` // nil for placeholders
}

// Schedulable reports whether the slot holds a plan day.
func (s Slot) Schedulable() bool {
	return s.Kind == SlotScheduled
}

// Week holds exactly seven slots, Monday first.
type Week struct {
	Index int        `json:"index"`
	Start civil.Date `json:"start"` // Monday of the week
	Slots [7]Slot    `json:"slots"`
}

// RepairKind classifies how the day list violated its invariants.
type RepairKind string

const (
	// RepairMissingDay: a covered date had no record; a rest day was synthesized.
	RepairMissingDay RepairKind = "missing_day"
	// RepairStrayDay: a record lies outside the covered range and was left out.
	RepairStrayDay RepairKind = "stray_day"
)

// Repair records one normalization invariant violation that was repaired.
type Repair struct {
	Date civil.Date `json:"date"`
	Kind RepairKind `json:"kind"`
}

// Grid is the derived week view of a plan.
type Grid struct {
	StartDate civil.Date `json:"startDate"`
	EndDate   civil.Date `json:"endDate"`
	Weeks     []Week     `json:"weeks"`
	Repairs   []Repair   `json:"repairs,omitempty"`
}

// Repaired reports whether building the grid had to repair the day list.
func (g Grid) Repaired() bool {
	return len(g.Repairs) > 0
}

// ForPlan builds the grid covering the plan's full date range.
func ForPlan(p *domain.TrainingPlan) Grid {
	return build(p.Days, p.StartDate, p.EndDate())
}

// ToWeeks builds the grid covering [start, last date in days].
func ToWeeks(days domain.DayList, start civil.Date) Grid {
	end := start.AddDays(-1)
	for d := range days {
		if d.After(end) {
			end = d
		}
	}
	return build(days, start, end)
}

// ToDays collects the day records of every schedulable slot.
func ToDays(weeks []Week) domain.DayList {
	out := domain.DayList{}
	for _, w := range weeks {
		for _, s := range w.Slots {
			if s.Schedulable() && s.Day != nil {
				out[s.Date] = s.Day.Clone()
			}
		}
	}
	return out
}

// Normalize re-derives a grid from its own days. Normalizing an already
// normalized grid yields the same weeks.
func Normalize(g Grid) Grid {
	return build(ToDays(g.Weeks), g.StartDate, g.EndDate)
}

// Week returns the week containing d, if the grid covers it.
func (g Grid) Week(d civil.Date) (Week, bool) {
	if len(g.Weeks) == 0 {
		return Week{}, false
	}
	idx := d.DaysSince(g.Weeks[0].Start)
	if idx < 0 {
		return Week{}, false
	}
	idx /= 7
	if idx >= len(g.Weeks) {
		return Week{}, false
	}
	return g.Weeks[idx], true
}

// Slot returns the slot for d, if the grid covers it.
func (g Grid) Slot(d civil.Date) (Slot, bool) {
	w, ok := g.Week(d)
	if !ok {
		return Slot{}, false
	}
	return w.Slots[d.DaysSince(w.Start)], true
}

// ScheduledDays counts the schedulable slots of the grid.
func (g Grid) ScheduledDays() int {
	n := 0
	for _, w := range g.Weeks {
		for _, s := range w.Slots {
			if s.Schedulable() {
				n++
			}
		}
	}
	return n
}

func build(days domain.DayList, start, end civil.Date) Grid {
	g := Grid{StartDate: start, EndDate: end}
	if end.Before(start) {
		for _, d := range days.Dates() {
			g.Repairs = append(g.Repairs, Repair{Date: d, Kind: RepairStrayDay})
		}
		return g
	}

	gridStart := dates.MondayOf(start)
	numWeeks := end.DaysSince(gridStart)/7 + 1
	g.Weeks = make([]Week, numWeeks)

	for i := range g.Weeks {
		w := &g.Weeks[i]
		w.Index = i
		w.Start = gridStart.AddDays(i * 7)
		for slot := 0; slot < 7; slot++ {
			d := w.Start.AddDays(slot)
			switch {
			case d.Before(start):
				w.Slots[slot] = Slot{Date: d, Kind: SlotBeforeStart}
			case d.After(end):
				w.Slots[slot] = Slot{Date: d, Kind: SlotAfterEnd}
			default:
				rec, ok := days[d]
				if !ok {
					rec = domain.RestDay(d)
					g.Repairs = append(g.Repairs, Repair{Date: d, Kind: RepairMissingDay})
				} else {
					rec = rec.Clone()
					rec.Date = d
				}
				w.Slots[slot] = Slot{Date: d, Kind: SlotScheduled, Day: &rec}
			}
		}
	}

	for _, d := range days.Dates() {
		if d.Before(start) || d.After(end) {
			g.Repairs = append(g.Repairs, Repair{Date: d, Kind: RepairStrayDay})
		}
	}
	return g
}
