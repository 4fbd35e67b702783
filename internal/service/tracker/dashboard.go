package tracker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mpblatz/repeet/internal/domain"
)

// LoadDashboard fetches every view of the main screen in parallel from one store.
func (s *Service) LoadDashboard(ctx context.Context) (domain.Dashboard, error) {
	b, scope, err := s.backend(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}

	var d domain.Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		d.Queue, err = b.ListQueued(gctx)
		return wrap("list queued", err)
	})
	g.Go(func() (err error) {
		d.Review, err = b.ListActive(gctx)
		return wrap("list active", err)
	})
	g.Go(func() (err error) {
		d.Mastered, err = b.ListMastered(gctx)
		return wrap("list mastered", err)
	})
	g.Go(func() (err error) {
		d.Stats, err = s.stats(gctx, b)
		return wrap("stats", err)
	})
	g.Go(func() (err error) {
		d.Audit, err = s.checkAudit(gctx, b, scope)
		return wrap("audit", err)
	})

	if err := g.Wait(); err != nil {
		return domain.Dashboard{}, err
	}
	return d, nil
}

func wrap(op string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
