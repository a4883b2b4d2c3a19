// Package memory provides in-process repositories with the same semantics as
// the MongoDB ones. They back tests and the "memory" storage backend.
package memory

import (
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/repository"
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store bundles every repository over shared state.
type Store struct {
	Plans          *PlanRepository
	Previews       *PreviewRepository
	Clarifications *ClarificationRepository
	Transcripts    *TranscriptRepository
	Profiles       *ProfileRepository
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		Plans:          &PlanRepository{plans: map[primitive.ObjectID]*domain.TrainingPlan{}},
		Previews:       &PreviewRepository{previews: map[string]*domain.PreviewSet{}},
		Clarifications: &ClarificationRepository{reqs: map[string]*domain.ClarificationRequest{}},
		Transcripts:    &TranscriptRepository{logs: map[primitive.ObjectID][]domain.ChatMessage{}},
		Profiles:       &ProfileRepository{profiles: map[primitive.ObjectID]*domain.Profile{}},
	}
}

// Set exposes the store as a repository.Set.
func (s *Store) Set() repository.Set {
	return repository.Set{
		Plans:          s.Plans,
		Previews:       s.Previews,
		Clarifications: s.Clarifications,
		Transcripts:    s.Transcripts,
		Profiles:       s.Profiles,
	}
}

// PlanRepository implements repository.PlanRepository.
type PlanRepository struct {
	mu    sync.Mutex
	plans map[primitive.ObjectID]*domain.TrainingPlan
}

func clonePlan(p *domain.TrainingPlan) *domain.TrainingPlan {
	out := *p
	out.Days = p.Days.Clone()
	return &out
}

func (r *PlanRepository) Create(_ context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	plan.ID = primitive.NewObjectID()
	plan.Version = 1
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	r.plans[plan.ID] = clonePlan(plan)
	return plan.ID, nil
}

func (r *PlanRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePlan(p), nil
}

func (r *PlanRepository) GetByOwner(_ context.Context, ownerID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TrainingPlan
	for _, p := range r.plans {
		if p.OwnerID == ownerID {
			out = append(out, *clonePlan(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *PlanRepository) ListIDs(_ context.Context) ([]primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]primitive.ObjectID, 0, len(r.plans))
	for id := range r.plans {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })
	return ids, nil
}

func (r *PlanRepository) CommitDays(_ context.Context, planID primitive.ObjectID, basisVersion int64, days domain.DayList) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[planID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if p.Version != basisVersion {
		return 0, repository.ErrVersionMismatch
	}
	p.Days = days.Clone()
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	return p.Version, nil
}

// PreviewRepository implements repository.PreviewRepository.
type PreviewRepository struct {
	mu       sync.Mutex
	previews map[string]*domain.PreviewSet
}

func clonePreview(p *domain.PreviewSet) *domain.PreviewSet {
	out := *p
	out.Modifications = append([]domain.Modification(nil), p.Modifications...)
	return &out
}

func (r *PreviewRepository) Create(_ context.Context, preview *domain.PreviewSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.previews[preview.ID]; exists {
		return repository.ErrDuplicate
	}
	for _, p := range r.previews {
		if p.PlanID == preview.PlanID && p.State == domain.PreviewHeld {
			return repository.ErrDuplicate
		}
	}
	preview.State = domain.PreviewHeld
	if preview.CreatedAt.IsZero() {
		preview.CreatedAt = time.Now().UTC()
	}
	r.previews[preview.ID] = clonePreview(preview)
	return nil
}

func (r *PreviewRepository) GetHeld(_ context.Context, planID primitive.ObjectID) (*domain.PreviewSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.previews {
		if p.PlanID == planID && p.State == domain.PreviewHeld {
			return clonePreview(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *PreviewRepository) GetByID(_ context.Context, previewID string) (*domain.PreviewSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.previews[previewID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePreview(p), nil
}

func (r *PreviewRepository) Transition(_ context.Context, previewID string, from, to domain.PreviewState, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.previews[previewID]
	if !ok || p.State != from {
		return repository.ErrStateMismatch
	}
	p.State = to
	resolved := at.UTC()
	p.ResolvedAt = &resolved
	return nil
}

// State returns the stored state of a preview, for assertions.
func (r *PreviewRepository) State(previewID string) (domain.PreviewState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.previews[previewID]
	if !ok {
		return "", false
	}
	return p.State, true
}

// ClarificationRepository implements repository.ClarificationRepository.
type ClarificationRepository struct {
	mu   sync.Mutex
	reqs map[string]*domain.ClarificationRequest
}

func (r *ClarificationRepository) Create(_ context.Context, req *domain.ClarificationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.reqs[req.ID]; exists {
		return repository.ErrDuplicate
	}
	for _, c := range r.reqs {
		if c.PlanID == req.PlanID && c.State == domain.ClarificationAwaiting {
			c.State = domain.ClarificationSuperseded
		}
	}
	req.State = domain.ClarificationAwaiting
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	cp := *req
	cp.Options = append([]domain.ClarificationOption(nil), req.Options...)
	r.reqs[req.ID] = &cp
	return nil
}

func (r *ClarificationRepository) GetAwaiting(_ context.Context, planID primitive.ObjectID) (*domain.ClarificationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.reqs {
		if c.PlanID == planID && c.State == domain.ClarificationAwaiting {
			cp := *c
			cp.Options = append([]domain.ClarificationOption(nil), c.Options...)
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *ClarificationRepository) Transition(_ context.Context, clarificationID string, from, to domain.ClarificationState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.reqs[clarificationID]
	if !ok || c.State != from {
		return repository.ErrStateMismatch
	}
	c.State = to
	return nil
}

// State returns the stored state of a clarification, for assertions.
func (r *ClarificationRepository) State(clarificationID string) (domain.ClarificationState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.reqs[clarificationID]
	if !ok {
		return "", false
	}
	return c.State, true
}

// TranscriptRepository implements repository.TranscriptRepository.
type TranscriptRepository struct {
	mu   sync.Mutex
	logs map[primitive.ObjectID][]domain.ChatMessage
}

func (r *TranscriptRepository) Append(_ context.Context, planID, _ primitive.ObjectID, msgs ...domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log := r.logs[planID]
	for _, m := range msgs {
		m.Seq = len(log)
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		log = append(log, m)
	}
	r.logs[planID] = log
	return nil
}

func (r *TranscriptRepository) Tail(_ context.Context, planID primitive.ObjectID, n int) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.TailOf(r.logs[planID], n), nil
}

// ProfileRepository implements repository.ProfileRepository.
type ProfileRepository struct {
	mu       sync.Mutex
	profiles map[primitive.ObjectID]*domain.Profile
}

func (r *ProfileRepository) Upsert(_ context.Context, profile *domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	profile.UpdatedAt = time.Now().UTC()
	cp := *profile
	r.profiles[profile.UserID] = &cp
	return nil
}

func (r *ProfileRepository) GetByUserID(_ context.Context, userID primitive.ObjectID) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

var (
	_ repository.PlanRepository          = (*PlanRepository)(nil)
	_ repository.PreviewRepository       = (*PreviewRepository)(nil)
	_ repository.ClarificationRepository = (*ClarificationRepository)(nil)
	_ repository.TranscriptRepository    = (*TranscriptRepository)(nil)
	_ repository.ProfileRepository       = (*ProfileRepository)(nil)
)
