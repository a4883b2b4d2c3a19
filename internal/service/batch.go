package service

import (
	"alcyxob/run-coach/internal/domain"
	"fmt"

	"cloud.google.com/go/civil"
)

// applyModifications applies mods to a copy of the plan's days as one batch.
// The plan itself is never touched; on error nothing of the batch survives.
//
// Each source date may appear once and every date written by a cancel, a
// modify or a reschedule target may be claimed by one modification only.
// Clearing the origin of a reschedule yields to any modification that writes
// the same date, which is what makes swaps work. A reschedule may only land
// on a rest day or on a day whose own workout is being moved away.
func applyModifications(plan *domain.TrainingPlan, mods []domain.Modification) (domain.DayList, error) {
	if len(mods) == 0 {
		return nil, fmt.Errorf("empty modification batch")
	}

	sources := make(map[civil.Date]bool, len(mods))
	claimed := make(map[civil.Date]int, len(mods))
	claim := func(d civil.Date, i int) error {
		if j, taken := claimed[d]; taken {
			return fmt.Errorf("modifications %d and %d both write %s", j, i, d)
		}
		claimed[d] = i
		return nil
	}

	for i, m := range mods {
		if !plan.Covers(m.Date) {
			return nil, fmt.Errorf("modification %d: %s is outside the plan", i, m.Date)
		}
		if sources[m.Date] {
			return nil, fmt.Errorf("modification %d: %s is modified twice", i, m.Date)
		}
		sources[m.Date] = true
		if _, ok := plan.Days[m.Date]; !ok {
			return nil, fmt.Errorf("modification %d: no day recorded for %s", i, m.Date)
		}

		switch m.Operation {
		case domain.OpCancel:
			if err := claim(m.Date, i); err != nil {
				return nil, err
			}
		case domain.OpModify:
			if m.After == nil || (m.After.Title == "" && m.After.Description == "") {
				return nil, fmt.Errorf("modification %d: nothing to change on %s", i, m.Date)
			}
			if err := claim(m.Date, i); err != nil {
				return nil, err
			}
		case domain.OpReschedule:
			if m.After == nil || m.After.Date == nil {
				return nil, fmt.Errorf("modification %d: reschedule without target", i)
			}
			target := *m.After.Date
			if target == m.Date {
				return nil, fmt.Errorf("modification %d: %s rescheduled onto itself", i, m.Date)
			}
			if !plan.Covers(target) {
				return nil, fmt.Errorf("modification %d: target %s is outside the plan", i, target)
			}
			if plan.Days[m.Date].IsRest() {
				return nil, fmt.Errorf("modification %d: %s has no workout to move", i, m.Date)
			}
			if err := claim(target, i); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("modification %d: unknown operation %q", i, m.Operation)
		}
	}

	// A reschedule target must be free once the batch is applied.
	for i, m := range mods {
		if m.Operation != domain.OpReschedule {
			continue
		}
		target := *m.After.Date
		if rec, ok := plan.Days[target]; ok && !rec.IsRest() && !movesAway(mods, target) {
			return nil, fmt.Errorf("modification %d: %s already holds %q", i, target, rec.Title)
		}
	}

	days := plan.Days.Clone()
	for _, m := range mods {
		if m.Operation == domain.OpReschedule {
			if _, written := claimed[m.Date]; !written {
				days[m.Date] = domain.RestDay(m.Date)
			}
		}
	}
	for _, m := range mods {
		switch m.Operation {
		case domain.OpCancel:
			days[m.Date] = domain.RestDay(m.Date)
		case domain.OpModify:
			rec := plan.Days[m.Date].Clone()
			overwrite(&rec, m.After)
			days[m.Date] = rec
		case domain.OpReschedule:
			target := *m.After.Date
			rec := plan.Days[m.Date].Clone()
			rec.Date = target
			overwrite(&rec, m.After)
			days[target] = rec
		}
	}
	return days, nil
}

func movesAway(mods []domain.Modification, d civil.Date) bool {
	for _, m := range mods {
		if m.Operation == domain.OpReschedule && m.Date == d {
			return true
		}
	}
	return false
}

func overwrite(rec *domain.DayRecord, after *domain.ModificationTarget) {
	if after == nil {
		return
	}
	if after.Title != "" {
		rec.Title = after.Title
	}
	if after.Description != "" {
		rec.WorkoutDescription = after.Description
	}
}
