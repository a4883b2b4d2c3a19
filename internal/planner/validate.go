package planner

import (
	"fmt"

	"alcyxob/run-coach/internal/domain"
)

// Validate checks that a planner response is internally consistent.
// Any problem is reported as ErrUpstreamFailure.
func Validate(resp *Response) error {
	if resp == nil {
		return fmt.Errorf("%w: empty response", ErrUpstreamFailure)
	}
	switch resp.Outcome {
	case OutcomeClarification:
		c := resp.Clarification
		if c == nil || c.ID == "" {
			return fmt.Errorf("%w: clarification without payload", ErrUpstreamFailure)
		}
		if len(c.Options) < 2 {
			return fmt.Errorf("%w: clarification needs at least two options", ErrUpstreamFailure)
		}
	case OutcomePreview:
		p := resp.Preview
		if p == nil || p.ID == "" {
			return fmt.Errorf("%w: preview without payload", ErrUpstreamFailure)
		}
		if len(p.Modifications) == 0 {
			return fmt.Errorf("%w: preview has no modifications", ErrUpstreamFailure)
		}
		if p.ExpiresAt.IsZero() {
			return fmt.Errorf("%w: preview has no expiry", ErrUpstreamFailure)
		}
		for i, m := range p.Modifications {
			if err := validateModification(m); err != nil {
				return fmt.Errorf("%w: modification %d: %v", ErrUpstreamFailure, i, err)
			}
		}
	case OutcomeIntervention, OutcomeInfo:
		if resp.Message == "" {
			return fmt.Errorf("%w: %s without message", ErrUpstreamFailure, resp.Outcome)
		}
	default:
		return fmt.Errorf("%w: unknown outcome %q", ErrUpstreamFailure, resp.Outcome)
	}
	return nil
}

func validateModification(m domain.Modification) error {
	if m.Date.IsZero() {
		return fmt.Errorf("missing date")
	}
	switch m.Operation {
	case domain.OpCancel:
	case domain.OpReschedule:
		if m.After == nil || m.After.Date == nil {
			return fmt.Errorf("reschedule without target date")
		}
	case domain.OpModify:
		if m.After == nil || (m.After.Title == "" && m.After.Description == "") {
			return fmt.Errorf("modify without new title or description")
		}
	default:
		return fmt.Errorf("unknown operation %q", m.Operation)
	}
	return nil
}
