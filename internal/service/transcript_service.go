package service

import (
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/repository"
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TranscriptService is the append-only chat log of a plan. The planner's
// context window is a read of the same log, never a copy.
type TranscriptService interface {
	Record(ctx context.Context, planID, ownerID primitive.ObjectID, msgs ...domain.ChatMessage) error
	Window(ctx context.Context, planID primitive.ObjectID) ([]domain.ChatMessage, error)
	History(ctx context.Context, planID primitive.ObjectID) ([]domain.ChatMessage, error)
}

type transcriptService struct {
	repo repository.TranscriptRepository
	tail int
	now  func() time.Time
}

// NewTranscriptService creates a transcript whose Window holds the last tail messages.
func NewTranscriptService(repo repository.TranscriptRepository, tail int, now func() time.Time) TranscriptService {
	if tail <= 0 {
		tail = 20
	}
	if now == nil {
		now = time.Now
	}
	return &transcriptService{repo: repo, tail: tail, now: now}
}

func (s *transcriptService) Record(ctx context.Context, planID, ownerID primitive.ObjectID, msgs ...domain.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	stamped := make([]domain.ChatMessage, 0, len(msgs))
	at := s.now().UTC()
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = at
		}
		stamped = append(stamped, m)
	}
	if len(stamped) == 0 {
		return nil
	}
	if err := s.repo.Append(ctx, planID, ownerID, stamped...); err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

func (s *transcriptService) Window(ctx context.Context, planID primitive.ObjectID) ([]domain.ChatMessage, error) {
	return s.repo.Tail(ctx, planID, s.tail)
}

func (s *transcriptService) History(ctx context.Context, planID primitive.ObjectID) ([]domain.ChatMessage, error) {
	return s.repo.Tail(ctx, planID, 0)
}
