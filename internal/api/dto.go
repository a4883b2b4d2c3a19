package api

import (
	"alcyxob/run-coach/internal/dates"
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/grid"
	"alcyxob/run-coach/internal/service"
	"time"
)

// --- Requests ---

type DayRequest struct {
	Date        string   `json:"date" binding:"required"` // YYYY-MM-DD
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Tips        []string `json:"tips"`
	Kind        string   `json:"kind" binding:"omitempty,oneof=normal calibration"`
}

type CreatePlanRequest struct {
	Name       string       `json:"name" binding:"required"`
	StartDate  string       `json:"startDate" binding:"required"` // YYYY-MM-DD
	TotalWeeks int          `json:"totalWeeks" binding:"required,min=1,max=52"`
	Days       []DayRequest `json:"days" binding:"dive"`
}

type ProfileRequest struct {
	DisplayName      string  `json:"displayName"`
	Goal             string  `json:"goal"`
	Experience       string  `json:"experience" binding:"omitempty,oneof=beginner intermediate advanced"`
	WeeklyDistanceKm float64 `json:"weeklyDistanceKm" binding:"min=0"`
	TimeZone         string  `json:"timeZone"`
}

type AssistantRequestBody struct {
	Mode            string `json:"mode" binding:"required,oneof=draft clarification_response commit"`
	Message         string `json:"message"`
	ClarificationID string `json:"clarificationId"`
	OptionID        string `json:"optionId"`
	PreviewID       string `json:"previewId"`
}

type ResolveRequest struct {
	Phrase        string `json:"phrase"`
	Message       string `json:"message"`
	ReferenceDate string `json:"referenceDate"` // YYYY-MM-DD, defaults to today in Timezone
	Timezone      string `json:"timezone"`
}

// --- Responses ---

type DayResponse struct {
	Date        string   `json:"date"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tips        []string `json:"tips,omitempty"`
	Kind        string   `json:"kind,omitempty"`
	Rest        bool     `json:"rest"`
}

type SlotResponse struct {
	Date string       `json:"date"`
	Kind string       `json:"kind"`
	Day  *DayResponse `json:"day,omitempty"`
}

type WeekResponse struct {
	Index int            `json:"index"`
	Start string         `json:"start"`
	Slots []SlotResponse `json:"slots"`
}

type RepairResponse struct {
	Date string `json:"date"`
	Kind string `json:"kind"`
}

type PlanSummaryResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartDate  string    `json:"startDate"`
	EndDate    string    `json:"endDate"`
	TotalWeeks int       `json:"totalWeeks"`
	Version    int64     `json:"version"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type PlanResponse struct {
	PlanSummaryResponse
	Days    []DayResponse    `json:"days"`
	Weeks   []WeekResponse   `json:"weeks"`
	Repairs []RepairResponse `json:"repairs,omitempty"`
}

type ProfileResponse struct {
	UserID           string    `json:"userId"`
	DisplayName      string    `json:"displayName"`
	Goal             string    `json:"goal,omitempty"`
	Experience       string    `json:"experience,omitempty"`
	WeeklyDistanceKm float64   `json:"weeklyDistanceKm"`
	TimeZone         string    `json:"timeZone,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type OptionResponse struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type ClarificationResponse struct {
	ID              string           `json:"clarificationId"`
	Question        string           `json:"question"`
	Options         []OptionResponse `json:"options"`
	OriginalMessage string           `json:"originalMessage"`
	DetectedPhrase  string           `json:"detectedPhrase"`
	State           string           `json:"state"`
	CreatedAt       time.Time        `json:"createdAt"`
}

type WorkoutResponse struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date,omitempty"`
}

type ModificationResponse struct {
	Date      string           `json:"date"`
	Operation string           `json:"operation"`
	Before    WorkoutResponse  `json:"before"`
	After     *WorkoutResponse `json:"after,omitempty"`
}

type PreviewResponse struct {
	ID               string                 `json:"previewId"`
	BasisVersion     int64                  `json:"basisVersion"`
	Modifications    []ModificationResponse `json:"modifications"`
	AssistantMessage string                 `json:"assistantMessage,omitempty"`
	ExpiresAt        time.Time              `json:"expiresAt"`
	State            string                 `json:"state"`
}

type AssistantResponse struct {
	Outcome       string                 `json:"outcome"`
	Message       string                 `json:"message"`
	Clarification *ClarificationResponse `json:"clarification,omitempty"`
	Preview       *PreviewResponse       `json:"preview,omitempty"`
	Plan          *PlanResponse          `json:"plan,omitempty"`
}

type MessageResponse struct {
	Seq       int       `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type ResolutionResponse struct {
	Phrase     string           `json:"phrase"`
	Start      int              `json:"start"`
	End        int              `json:"end"`
	Date       string           `json:"date,omitempty"`
	Ambiguous  bool             `json:"ambiguous"`
	Candidates []OptionResponse `json:"candidates,omitempty"`
}

type ResolveResponse struct {
	ReferenceDate string               `json:"referenceDate"`
	Recognised    bool                 `json:"recognised"`
	Resolutions   []ResolutionResponse `json:"resolutions"`
}

// --- Mappers ---

func MapDayToResponse(d domain.DayRecord) DayResponse {
	return DayResponse{
		Date:        d.Date.String(),
		Title:       d.Title,
		Description: d.WorkoutDescription,
		Tips:        d.Tips,
		Kind:        string(d.WorkoutKind),
		Rest:        d.IsRest(),
	}
}

func MapPlanToSummary(p *domain.TrainingPlan) PlanSummaryResponse {
	return PlanSummaryResponse{
		ID:         p.ID.Hex(),
		Name:       p.Name,
		StartDate:  p.StartDate.String(),
		EndDate:    p.EndDate().String(),
		TotalWeeks: p.TotalWeeks,
		Version:    p.Version,
		UpdatedAt:  p.UpdatedAt,
	}
}

func MapPlansToSummaries(plans []domain.TrainingPlan) []PlanSummaryResponse {
	res := make([]PlanSummaryResponse, len(plans))
	for i := range plans {
		res[i] = MapPlanToSummary(&plans[i])
	}
	return res
}

func MapPlanViewToResponse(v *service.PlanView) *PlanResponse {
	res := &PlanResponse{
		PlanSummaryResponse: MapPlanToSummary(v.Plan),
		Days:                make([]DayResponse, 0, len(v.Plan.Days)),
		Weeks:               make([]WeekResponse, 0, len(v.Grid.Weeks)),
	}
	for _, d := range v.Plan.Days.Sorted() {
		res.Days = append(res.Days, MapDayToResponse(d))
	}
	for _, w := range v.Grid.Weeks {
		res.Weeks = append(res.Weeks, mapWeek(w))
	}
	for _, r := range v.Grid.Repairs {
		res.Repairs = append(res.Repairs, RepairResponse{Date: r.Date.String(), Kind: string(r.Kind)})
	}
	return res
}

func mapWeek(w grid.Week) WeekResponse {
	res := WeekResponse{Index: w.Index, Start: w.Start.String(), Slots: make([]SlotResponse, 0, len(w.Slots))}
	for _, s := range w.Slots {
		slot := SlotResponse{Date: s.Date.String(), Kind: string(s.Kind)}
		if s.Day != nil {
			day := MapDayToResponse(*s.Day)
			slot.Day = &day
		}
		res.Slots = append(res.Slots, slot)
	}
	return res
}

func MapProfileToResponse(p *domain.Profile) ProfileResponse {
	return ProfileResponse{
		UserID:           p.UserID.Hex(),
		DisplayName:      p.DisplayName,
		Goal:             p.Goal,
		Experience:       string(p.Experience),
		WeeklyDistanceKm: p.WeeklyDistanceKm,
		TimeZone:         p.TimeZone,
		UpdatedAt:        p.UpdatedAt,
	}
}

func MapClarificationToResponse(c *domain.ClarificationRequest) *ClarificationResponse {
	if c == nil {
		return nil
	}
	res := &ClarificationResponse{
		ID:              c.ID,
		Question:        c.Question,
		Options:         make([]OptionResponse, 0, len(c.Options)),
		OriginalMessage: c.Context.OriginalMessage,
		DetectedPhrase:  c.Context.DetectedPhrase,
		State:           string(c.State),
		CreatedAt:       c.CreatedAt,
	}
	for _, o := range c.Options {
		res.Options = append(res.Options, OptionResponse{ID: o.ISODate, Label: o.Label})
	}
	return res
}

func MapPreviewToResponse(p *domain.PreviewSet) *PreviewResponse {
	if p == nil {
		return nil
	}
	res := &PreviewResponse{
		ID:               p.ID,
		BasisVersion:     p.BasisVersion,
		Modifications:    make([]ModificationResponse, 0, len(p.Modifications)),
		AssistantMessage: p.AssistantMessage,
		ExpiresAt:        p.ExpiresAt,
		State:            string(p.State),
	}
	for _, m := range p.Modifications {
		mr := ModificationResponse{
			Date:      m.Date.String(),
			Operation: string(m.Operation),
			Before:    WorkoutResponse{Title: m.Before.Title, Description: m.Before.Description},
		}
		if m.After != nil {
			mr.After = &WorkoutResponse{Title: m.After.Title, Description: m.After.Description}
			if m.After.Date != nil {
				mr.After.Date = m.After.Date.String()
			}
		}
		res.Modifications = append(res.Modifications, mr)
	}
	return res
}

func MapReplyToResponse(r *service.AssistantReply) AssistantResponse {
	res := AssistantResponse{
		Outcome:       r.Outcome,
		Message:       r.Message,
		Clarification: MapClarificationToResponse(r.Clarification),
		Preview:       MapPreviewToResponse(r.Preview),
	}
	if r.Plan != nil {
		res.Plan = MapPlanViewToResponse(r.Plan)
	}
	return res
}

func MapMessagesToResponse(msgs []domain.ChatMessage) []MessageResponse {
	res := make([]MessageResponse, len(msgs))
	for i, m := range msgs {
		res[i] = MessageResponse{Seq: m.Seq, Role: string(m.Role), Content: m.Content, CreatedAt: m.CreatedAt}
	}
	return res
}

func MapResolutionToResponse(r dates.Resolution) ResolutionResponse {
	res := ResolutionResponse{Phrase: r.Phrase, Start: r.Start, End: r.End, Ambiguous: r.Ambiguous}
	if r.Ambiguous {
		for _, o := range dates.Options(r) {
			res.Candidates = append(res.Candidates, OptionResponse{ID: o.ISODate, Label: o.Label})
		}
	} else {
		res.Date = r.Date.String()
	}
	return res
}
