// internal/domain/clarification.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClarificationState tracks the lifecycle of a clarification sub-dialog.
type ClarificationState string

const (
	ClarificationAwaiting   ClarificationState = "awaiting_selection"
	ClarificationResolved   ClarificationState = "resolved"
	ClarificationSuperseded ClarificationState = "superseded"
	ClarificationCancelled  ClarificationState = "cancelled"
)

// ClarificationOption is one candidate date offered to the user.
// The ISO date doubles as the option id.
type ClarificationOption struct {
	ISODate string `json:"isoDate"`
	Label   string `json:"label"`
}

// ClarificationContext keeps what is needed to resume planning once resolved.
type ClarificationContext struct {
	OriginalMessage string `json:"originalMessage"`
	DetectedPhrase  string `json:"detectedPhrase"`
	// Byte span of DetectedPhrase in OriginalMessage, -1 when unknown.
	PhraseStart int `json:"phraseStart"`
	PhraseEnd   int `json:"phraseEnd"`
}

// ClarificationRequest asks the user to pick one date for an ambiguous phrase.
type ClarificationRequest struct {
	ID        string                `json:"clarificationId"`
	PlanID    primitive.ObjectID    `json:"planId"`
	Question  string                `json:"question"`
	Options   []ClarificationOption `json:"options"`
	Context   ClarificationContext  `json:"context"`
	State     ClarificationState    `json:"state"`
	CreatedAt time.Time             `json:"createdAt"`
}

// Option returns the option with the given id.
func (c *ClarificationRequest) Option(id string) (ClarificationOption, bool) {
	for _, o := range c.Options {
		if o.ISODate == id {
			return o, true
		}
	}
	return ClarificationOption{}, false
}
