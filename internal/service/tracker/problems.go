package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mpblatz/repeet/internal/catalog"
	"github.com/mpblatz/repeet/internal/domain"
)

// Create adds one problem to the end of the queue.
func (s *Service) Create(ctx context.Context, in domain.NewProblem) (domain.Problem, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Problem{}, err
	}

	b, scope, err := s.backend(ctx)
	if err != nil {
		return domain.Problem{}, err
	}

	p, err := b.Create(ctx, in)
	if err != nil {
		return domain.Problem{}, fmt.Errorf("create problem: %w", err)
	}

	s.log.InfoContext(ctx, "problem created",
		slog.String("scope", scope),
		slog.String("problem_id", p.ID.String()),
		slog.String("name", p.Name),
	)
	return p, nil
}

// CreateBulk adds every item or none of them.
func (s *Service) CreateBulk(ctx context.Context, in []domain.NewProblem) ([]domain.Problem, error) {
	items := make([]domain.NewProblem, len(in))
	for i, item := range in {
		items[i] = item.Normalize()
	}
	if err := domain.ValidateBatch(items); err != nil {
		return nil, err
	}

	b, scope, err := s.backend(ctx)
	if err != nil {
		return nil, err
	}

	created, err := b.CreateBulk(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("create problems: %w", err)
	}

	s.log.InfoContext(ctx, "problems created",
		slog.String("scope", scope),
		slog.Int("count", len(created)),
	)
	return created, nil
}

// ImportList bulk-creates one of the embedded curated lists.
func (s *Service) ImportList(ctx context.Context, name string) ([]domain.Problem, error) {
	items, err := catalog.Lookup(name)
	if err != nil {
		return nil, err
	}
	return s.CreateBulk(ctx, items)
}

// ImportText parses name,difficulty,topic,url lines and bulk-creates them.
func (s *Service) ImportText(ctx context.Context, text string, source string) ([]domain.Problem, error) {
	var src *string
	if trimmed := strings.TrimSpace(source); trimmed != "" {
		src = &trimmed
	}
	items, err := catalog.Parse(strings.NewReader(text), src)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.NewValidationError("text", "no problems found")
	}
	return s.CreateBulk(ctx, items)
}

// Rate records an attempt and reschedules the problem. Ratings of the same
// problem never overlap.
func (s *Service) Rate(ctx context.Context, params domain.RateParams) (domain.Problem, error) {
	if err := params.Validate(); err != nil {
		return domain.Problem{}, err
	}

	b, scope, err := s.backend(ctx)
	if err != nil {
		return domain.Problem{}, err
	}

	unlock := s.locks.Lock(scope + "/" + params.ProblemID.String())
	defer unlock()

	p, err := b.Rate(ctx, params)
	if err != nil {
		return domain.Problem{}, fmt.Errorf("rate problem %s: %w", params.ProblemID, err)
	}

	s.log.InfoContext(ctx, "problem rated",
		slog.String("scope", scope),
		slog.String("problem_id", p.ID.String()),
		slog.Int("rating", params.Rating),
		slog.String("status", p.Status().String()),
	)
	return p, nil
}

// Delete removes a problem and its attempts.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return domain.NewValidationError("problem_id", "required")
	}

	b, scope, err := s.backend(ctx)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(scope + "/" + id.String())
	defer unlock()

	if err := b.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete problem %s: %w", id, err)
	}

	s.log.InfoContext(ctx, "problem deleted",
		slog.String("scope", scope),
		slog.String("problem_id", id.String()),
	)
	return nil
}
