package planner

import (
	"context"
	"errors"
	"fmt"

	"alcyxob/run-coach/internal/dates"
	"alcyxob/run-coach/internal/domain"

	"github.com/google/uuid"
)

// dateGuard keeps ambiguous dates from ever reaching the inner planner and
// validates whatever the inner planner answers.
type dateGuard struct {
	inner ModificationPlanner
}

// NewDateGuard wraps inner. Requests whose resolved dates contain an ambiguous
// phrase are answered with a clarification built from that phrase's
// candidates; everything else is forwarded and the answer validated.
func NewDateGuard(inner ModificationPlanner) ModificationPlanner {
	return &dateGuard{inner: inner}
}

func (g *dateGuard) Plan(ctx context.Context, req Request) (*Response, error) {
	switch req.Mode {
	case ModeDraft, ModeClarificationResponse:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, req.Mode)
	}

	if amb, ok := dates.FirstAmbiguous(req.ResolvedDates); ok {
		return ClarificationFor(req, amb), nil
	}

	resp, err := g.inner.Plan(ctx, req)
	if err != nil {
		if errors.Is(err, ErrUpstreamFailure) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	if err := Validate(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ClarificationFor builds a clarification response for an ambiguous resolution.
func ClarificationFor(req Request, amb dates.Resolution) *Response {
	question := dates.Question(amb)
	return &Response{
		Outcome: OutcomeClarification,
		Message: question,
		Clarification: &domain.ClarificationRequest{
			ID:       uuid.NewString(),
			PlanID:   req.Plan.ID,
			Question: question,
			Options:  dates.Options(amb),
			Context: domain.ClarificationContext{
				OriginalMessage: req.Message,
				DetectedPhrase:  amb.Phrase,
				PhraseStart:     amb.Start,
				PhraseEnd:       amb.End,
			},
			State: domain.ClarificationAwaiting,
		},
	}
}
