package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"alcyxob/run-coach/internal/domain"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"
	"go.uber.org/zap"
)

// OpenAIConfig tunes the OpenAI-backed planner.
type OpenAIConfig struct {
	Model           string
	MaxOutputTokens int64
	Timeout         time.Duration
	PreviewTTL      time.Duration
}

type openAIPlanner struct {
	client *openai.Client
	cfg    OpenAIConfig
	now    func() time.Time
	logger *zap.Logger
}

// NewOpenAIPlanner creates a planner that asks an OpenAI model for a
// structured decision. now stamps preview expiry.
func NewOpenAIPlanner(client *openai.Client, cfg OpenAIConfig, now func() time.Time, logger *zap.Logger) ModificationPlanner {
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 2000
	}
	if cfg.PreviewTTL <= 0 {
		cfg.PreviewTTL = 15 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &openAIPlanner{client: client, cfg: cfg, now: now, logger: logger}
}

var decisionSchema = GenerateSchema[decision]()

func (p *openAIPlanner) Plan(ctx context.Context, req Request) (*Response, error) {
	if p.client == nil {
		return nil, fmt.Errorf("%w: openai client is nil", ErrUpstreamFailure)
	}
	if p.cfg.Model == "" {
		return nil, fmt.Errorf("%w: model is empty", ErrUpstreamFailure)
	}
	if req.Mode == ModeCommit {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, req.Mode)
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	input, err := buildInput(req)
	if err != nil {
		return nil, fmt.Errorf("%w: build input: %v", ErrUpstreamFailure, err)
	}

	params := responses.ResponseNewParams{
		Model:           p.cfg.Model,
		MaxOutputTokens: openai.Int(p.cfg.MaxOutputTokens),
		Instructions:    openai.String(plannerInstructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: input,
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "PlanDecision",
					Schema:      decisionSchema,
					Strict:      openai.Bool(true),
					Description: openai.String("Training plan modification decision"),
					Type:        "json_schema",
				},
			},
		},
	}

	resp, err := callWithRetry(ctx, p.client, params)
	if err != nil {
		p.logger.Warn("planner call failed", zap.String("mode", string(req.Mode)), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}

	var d decision
	if err := decodeModelJSON(resp.OutputText(), &d); err != nil {
		return nil, fmt.Errorf("%w: decode decision: %v", ErrUpstreamFailure, err)
	}
	out, err := d.toResponse(req, p.now().UTC(), p.cfg.PreviewTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	p.logger.Debug("planner decided",
		zap.String("mode", string(req.Mode)),
		zap.String("outcome", string(out.Outcome)))
	return out, nil
}

// decision is the strict JSON shape the model must return. Unused fields are
// left empty because strict schemas require every property.
type decision struct {
	Outcome        string                 `json:"outcome" jsonschema:"enum=clarification_required,enum=preview,enum=intervention,enum=info"`
	Message        string                 `json:"message" jsonschema:"description=Short reply shown to the runner"`
	Question       string                 `json:"question" jsonschema:"description=Clarification question; empty unless outcome is clarification_required"`
	DetectedPhrase string                 `json:"detected_phrase" jsonschema:"description=Ambiguous phrase copied verbatim from the message"`
	Options        []decisionOption       `json:"options"`
	Modifications  []decisionModification `json:"modifications"`
}

type decisionOption struct {
	ISODate string `json:"iso_date" jsonschema:"description=YYYY-MM-DD"`
	Label   string `json:"label"`
}

type decisionModification struct {
	Date              string `json:"date" jsonschema:"description=YYYY-MM-DD of the affected plan day"`
	Operation         string `json:"operation" jsonschema:"enum=cancel,enum=reschedule,enum=modify"`
	BeforeTitle       string `json:"before_title"`
	BeforeDescription string `json:"before_description"`
	AfterTitle        string `json:"after_title"`
	AfterDescription  string `json:"after_description"`
	AfterDate         string `json:"after_date" jsonschema:"description=YYYY-MM-DD target for reschedule; empty otherwise"`
}

func (d decision) toResponse(req Request, now time.Time, ttl time.Duration) (*Response, error) {
	out := &Response{Outcome: Outcome(d.Outcome), Message: strings.TrimSpace(d.Message)}

	switch out.Outcome {
	case OutcomeClarification:
		c := &domain.ClarificationRequest{
			ID:       uuid.NewString(),
			PlanID:   req.Plan.ID,
			Question: strings.TrimSpace(d.Question),
			Context: domain.ClarificationContext{
				OriginalMessage: req.Message,
				DetectedPhrase:  d.DetectedPhrase,
				PhraseStart:     -1,
				PhraseEnd:       -1,
			},
			State: domain.ClarificationAwaiting,
		}
		if idx := strings.Index(strings.ToLower(req.Message), strings.ToLower(d.DetectedPhrase)); d.DetectedPhrase != "" && idx >= 0 {
			c.Context.PhraseStart, c.Context.PhraseEnd = idx, idx+len(d.DetectedPhrase)
		}
		for _, o := range d.Options {
			if _, err := civil.ParseDate(o.ISODate); err != nil {
				return nil, fmt.Errorf("clarification option %q: %v", o.ISODate, err)
			}
			c.Options = append(c.Options, domain.ClarificationOption{ISODate: o.ISODate, Label: o.Label})
		}
		if c.Question == "" {
			c.Question = out.Message
		}
		out.Clarification = c

	case OutcomePreview:
		mods := make([]domain.Modification, 0, len(d.Modifications))
		for _, dm := range d.Modifications {
			m, err := dm.toModification()
			if err != nil {
				return nil, err
			}
			mods = append(mods, m)
		}
		out.Preview = &domain.PreviewSet{
			ID:               uuid.NewString(),
			PlanID:           req.Plan.ID,
			BasisVersion:     req.Plan.Version,
			Modifications:    mods,
			AssistantMessage: out.Message,
			ExpiresAt:        now.Add(ttl),
			State:            domain.PreviewHeld,
			CreatedAt:        now,
		}
	}
	return out, nil
}

func (dm decisionModification) toModification() (domain.Modification, error) {
	date, err := civil.ParseDate(dm.Date)
	if err != nil {
		return domain.Modification{}, fmt.Errorf("modification date %q: %v", dm.Date, err)
	}
	m := domain.Modification{
		Date:      date,
		Operation: domain.Operation(dm.Operation),
		Before:    domain.WorkoutSnapshot{Title: dm.BeforeTitle, Description: dm.BeforeDescription},
	}
	if m.Operation == domain.OpCancel {
		return m, nil
	}
	m.After = &domain.ModificationTarget{Title: dm.AfterTitle, Description: dm.AfterDescription}
	if dm.AfterDate != "" {
		target, err := civil.ParseDate(dm.AfterDate)
		if err != nil {
			return domain.Modification{}, fmt.Errorf("modification target %q: %v", dm.AfterDate, err)
		}
		m.After.Date = &target
	}
	return m, nil
}

// promptContext is serialized into the user turn so the model sees the plan
// and the already-resolved dates.
type promptContext struct {
	Mode          Mode                 `json:"mode"`
	Today         string               `json:"today"`
	TimeZone      string               `json:"time_zone"`
	Message       string               `json:"message"`
	ResolvedDates map[string]string    `json:"resolved_dates,omitempty"`
	Clarification *ClarificationAnswer `json:"clarification,omitempty"`
	Profile       *domain.Profile      `json:"profile,omitempty"`
	Plan          PlanSnapshot         `json:"plan"`
}

func buildInput(req Request) ([]responses.ResponseInputItemUnionParam, error) {
	pc := promptContext{
		Mode:          req.Mode,
		Today:         req.ReferenceDate.String(),
		TimeZone:      req.TimeZone,
		Message:       req.Message,
		Clarification: req.Clarification,
		Profile:       req.Profile,
		Plan:          req.Plan,
	}
	for _, r := range req.ResolvedDates {
		if r.Ambiguous {
			continue
		}
		if pc.ResolvedDates == nil {
			pc.ResolvedDates = map[string]string{}
		}
		pc.ResolvedDates[r.Phrase] = r.Date.String()
	}
	payload, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return nil, err
	}

	items := make([]responses.ResponseInputItemUnionParam, 0, len(req.Transcript)+1)
	for _, m := range req.Transcript {
		role := responses.EasyInputMessageRoleUser
		if m.Role == domain.RoleAssistant {
			role = responses.EasyInputMessageRoleAssistant
		}
		items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, role))
	}
	items = append(items, responses.ResponseInputItemParamOfMessage(string(payload), responses.EasyInputMessageRoleUser))
	return items, nil
}

func callWithRetry(ctx context.Context, client *openai.Client, params responses.ResponseNewParams) (*responses.Response, error) {
	const maxRetries = 3
	rateLimitWaitTimes := []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second}
	serverErrorWaitTimes := []time.Duration{1 * time.Second, 3 * time.Second, 8 * time.Second}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := client.Responses.New(ctx, params)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var wait time.Duration
		switch {
		case isStatus(err, 429):
			wait = rateLimitWaitTimes[attempt]
		case isStatus(err, 500, 502, 503, 504):
			wait = serverErrorWaitTimes[attempt]
		default:
			return nil, err
		}
		if attempt == maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}

func isStatus(err error, codes ...int) bool {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range codes {
		if apiErr.StatusCode == c {
			return true
		}
	}
	return false
}

// decodeModelJSON unmarshals JSON from a model response, tolerating leading
// or trailing text around the object.
func decodeModelJSON(outputText string, v any) error {
	s := strings.TrimSpace(outputText)
	if s == "" {
		return errors.New("empty model output")
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in model output")
	}
	return json.Unmarshal([]byte(s[start:end+1]), v)
}
