package tracker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mpblatz/repeet/internal/domain"
)

// GetStats summarizes the caller's problems.
func (s *Service) GetStats(ctx context.Context) (domain.Stats, error) {
	b, _, err := s.backend(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	return s.stats(ctx, b)
}

func (s *Service) stats(ctx context.Context, b Backend) (domain.Stats, error) {
	var all, active []domain.Problem

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all, err = b.ListAll(gctx)
		if err != nil {
			return fmt.Errorf("list all: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		active, err = b.ListActive(gctx)
		if err != nil {
			return fmt.Errorf("list active: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Stats{}, err
	}

	return ComputeStats(all, active), nil
}

// ComputeStats derives the counts from every problem and the review list.
// MasteryRate is 100*mastered/(active+mastered) rounded half up, or 0.
func ComputeStats(all, review []domain.Problem) domain.Stats {
	st := domain.Stats{
		Total:    len(all),
		DueToday: len(review),
	}
	for _, p := range all {
		switch p.Status() {
		case domain.StatusQueued:
			st.Queued++
		case domain.StatusActive:
			st.Active++
		case domain.StatusMastered:
			st.Mastered++
		}
	}
	if denom := st.Active + st.Mastered; denom > 0 {
		st.MasteryRate = (200*st.Mastered + denom) / (2 * denom)
	}
	return st
}
