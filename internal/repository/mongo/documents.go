package mongo

import (
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/grid"
	"time"

	"cloud.google.com/go/civil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Calendar dates are stored as ISO strings so they sort and index naturally.

type dayDocument struct {
	Date               string   `bson:"date"`
	Title              string   `bson:"title"`
	WorkoutDescription string   `bson:"workoutDescription"`
	Tips               []string `bson:"tips,omitempty"`
	WorkoutKind        string   `bson:"workoutKind,omitempty"`
}

type slotDocument struct {
	Date string       `bson:"date"`
	Kind string       `bson:"kind"`
	Day  *dayDocument `bson:"day,omitempty"`
}

// weekDocument is the persisted grid cache. It is rebuilt from days on every
// write and ignored on read.
type weekDocument struct {
	Index int            `bson:"index"`
	Start string         `bson:"start"`
	Slots []slotDocument `bson:"slots"`
}

type planDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	OwnerID    primitive.ObjectID `bson:"ownerId"`
	Name       string             `bson:"name"`
	StartDate  string             `bson:"startDate"`
	TotalWeeks int                `bson:"totalWeeks"`
	Version    int64              `bson:"version"`
	Days       []dayDocument      `bson:"days"` // Ordered by date
	Weeks      []weekDocument     `bson:"weeks"`
	CreatedAt  time.Time          `bson:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt"`
}

type modificationDocument struct {
	Date              string  `bson:"date"`
	Operation         string  `bson:"operation"`
	BeforeTitle       string  `bson:"beforeTitle"`
	BeforeDescription string  `bson:"beforeDescription,omitempty"`
	HasAfter          bool    `bson:"hasAfter"`
	AfterTitle        string  `bson:"afterTitle,omitempty"`
	AfterDescription  string  `bson:"afterDescription,omitempty"`
	AfterDate         *string `bson:"afterDate,omitempty"`
}

type previewDocument struct {
	ID               string                 `bson:"_id"`
	PlanID           primitive.ObjectID     `bson:"planId"`
	BasisVersion     int64                  `bson:"basisVersion"`
	Modifications    []modificationDocument `bson:"modifications"`
	AssistantMessage string                 `bson:"assistantMessage,omitempty"`
	ExpiresAt        time.Time              `bson:"expiresAt"`
	State            string                 `bson:"state"`
	CreatedAt        time.Time              `bson:"createdAt"`
	ResolvedAt       *time.Time             `bson:"resolvedAt,omitempty"`
}

func toDayDocument(r domain.DayRecord) dayDocument {
	return dayDocument{
		Date:               r.Date.String(),
		Title:              r.Title,
		WorkoutDescription: r.WorkoutDescription,
		Tips:               r.Tips,
		WorkoutKind:        string(r.WorkoutKind),
	}
}

func fromDayDocument(d dayDocument) (domain.DayRecord, error) {
	date, err := civil.ParseDate(d.Date)
	if err != nil {
		return domain.DayRecord{}, err
	}
	return domain.DayRecord{
		Date:               date,
		Title:              d.Title,
		WorkoutDescription: d.WorkoutDescription,
		Tips:               d.Tips,
		WorkoutKind:        domain.WorkoutKind(d.WorkoutKind),
	}, nil
}

func toDayDocuments(days domain.DayList) []dayDocument {
	out := make([]dayDocument, 0, len(days))
	for _, r := range days.Sorted() {
		out = append(out, toDayDocument(r))
	}
	return out
}

func toWeekDocuments(g grid.Grid) []weekDocument {
	out := make([]weekDocument, 0, len(g.Weeks))
	for _, w := range g.Weeks {
		wd := weekDocument{Index: w.Index, Start: w.Start.String(), Slots: make([]slotDocument, 0, 7)}
		for _, s := range w.Slots {
			sd := slotDocument{Date: s.Date.String(), Kind: string(s.Kind)}
			if s.Day != nil {
				day := toDayDocument(*s.Day)
				sd.Day = &day
			}
			wd.Slots = append(wd.Slots, sd)
		}
		out = append(out, wd)
	}
	return out
}

func toPlanDocument(p *domain.TrainingPlan) planDocument {
	return planDocument{
		ID:         p.ID,
		OwnerID:    p.OwnerID,
		Name:       p.Name,
		StartDate:  p.StartDate.String(),
		TotalWeeks: p.TotalWeeks,
		Version:    p.Version,
		Days:       toDayDocuments(p.Days),
		Weeks:      toWeekDocuments(grid.ForPlan(p)),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func fromPlanDocument(doc planDocument) (*domain.TrainingPlan, error) {
	start, err := civil.ParseDate(doc.StartDate)
	if err != nil {
		return nil, err
	}
	days := make(domain.DayList, len(doc.Days))
	for _, d := range doc.Days {
		rec, err := fromDayDocument(d)
		if err != nil {
			return nil, err
		}
		days[rec.Date] = rec
	}
	return &domain.TrainingPlan{
		ID:         doc.ID,
		OwnerID:    doc.OwnerID,
		Name:       doc.Name,
		StartDate:  start,
		TotalWeeks: doc.TotalWeeks,
		Version:    doc.Version,
		Days:       days,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}, nil
}

func toPreviewDocument(p *domain.PreviewSet) previewDocument {
	mods := make([]modificationDocument, 0, len(p.Modifications))
	for _, m := range p.Modifications {
		md := modificationDocument{
			Date:              m.Date.String(),
			Operation:         string(m.Operation),
			BeforeTitle:       m.Before.Title,
			BeforeDescription: m.Before.Description,
		}
		if m.After != nil {
			md.HasAfter = true
			md.AfterTitle = m.After.Title
			md.AfterDescription = m.After.Description
			if m.After.Date != nil {
				s := m.After.Date.String()
				md.AfterDate = &s
			}
		}
		mods = append(mods, md)
	}
	return previewDocument{
		ID:               p.ID,
		PlanID:           p.PlanID,
		BasisVersion:     p.BasisVersion,
		Modifications:    mods,
		AssistantMessage: p.AssistantMessage,
		ExpiresAt:        p.ExpiresAt,
		State:            string(p.State),
		CreatedAt:        p.CreatedAt,
		ResolvedAt:       p.ResolvedAt,
	}
}

func fromPreviewDocument(doc previewDocument) (*domain.PreviewSet, error) {
	mods := make([]domain.Modification, 0, len(doc.Modifications))
	for _, md := range doc.Modifications {
		date, err := civil.ParseDate(md.Date)
		if err != nil {
			return nil, err
		}
		m := domain.Modification{
			Date:      date,
			Operation: domain.Operation(md.Operation),
			Before:    domain.WorkoutSnapshot{Title: md.BeforeTitle, Description: md.BeforeDescription},
		}
		if md.HasAfter {
			m.After = &domain.ModificationTarget{Title: md.AfterTitle, Description: md.AfterDescription}
			if md.AfterDate != nil {
				target, err := civil.ParseDate(*md.AfterDate)
				if err != nil {
					return nil, err
				}
				m.After.Date = &target
			}
		}
		mods = append(mods, m)
	}
	return &domain.PreviewSet{
		ID:               doc.ID,
		PlanID:           doc.PlanID,
		BasisVersion:     doc.BasisVersion,
		Modifications:    mods,
		AssistantMessage: doc.AssistantMessage,
		ExpiresAt:        doc.ExpiresAt,
		State:            domain.PreviewState(doc.State),
		CreatedAt:        doc.CreatedAt,
		ResolvedAt:       doc.ResolvedAt,
	}, nil
}
