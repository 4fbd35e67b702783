package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mpblatz/repeet/internal/domain"
)

// CheckDailyAudit returns the mastered problem picked for today's retention
// check, or nil. Only the first call of a calendar day draws; later calls
// that day return the same answer.
func (s *Service) CheckDailyAudit(ctx context.Context) (*domain.Problem, error) {
	b, scope, err := s.backend(ctx)
	if err != nil {
		return nil, err
	}
	return s.checkAudit(ctx, b, scope)
}

func (s *Service) checkAudit(ctx context.Context, b Backend, scope string) (*domain.Problem, error) {
	unlock := s.locks.Lock("audit/" + scope)
	defer unlock()

	settings, err := b.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !settings.EnableAudits {
		return nil, nil
	}

	today := s.clock.Today()
	if settings.LastAuditDate != nil && *settings.LastAuditDate == today {
		if settings.AuditProblemID == nil {
			return nil, nil
		}
		p, err := b.Get(ctx, *settings.AuditProblemID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load audit problem: %w", err)
		}
		return &p, nil
	}

	var chosen *domain.Problem
	if s.rand.Float64() < s.auditP {
		mastered, err := b.ListMastered(ctx)
		if err != nil {
			return nil, fmt.Errorf("list mastered: %w", err)
		}
		if len(mastered) > 0 {
			p := mastered[s.rand.IntN(len(mastered))]
			chosen = &p
		}
	}

	settings.LastAuditDate = &today
	settings.AuditProblemID = nil
	if chosen != nil {
		id := chosen.ID
		settings.AuditProblemID = &id
	}
	if err := b.SaveSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("save audit state: %w", err)
	}

	attrs := []any{slog.String("scope", scope), slog.String("date", today.String())}
	if chosen != nil {
		attrs = append(attrs, slog.String("problem_id", chosen.ID.String()))
	}
	s.log.InfoContext(ctx, "daily audit drawn", attrs...)

	return chosen, nil
}
