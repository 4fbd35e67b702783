// Package tracker is the single entry point for problem tracking. Every call
// is routed to the remote store when a session is present and to the local
// store otherwise.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	"github.com/mpblatz/repeet/internal/domain"
	"github.com/mpblatz/repeet/internal/service/schedule"
)

// Backend is the problem store contract. The remote and local stores
// implement it identically; only the persistence medium differs.
type Backend interface {
	ListQueued(ctx context.Context) ([]domain.Problem, error)
	ListActive(ctx context.Context) ([]domain.Problem, error)
	ListMastered(ctx context.Context) ([]domain.Problem, error)
	ListAll(ctx context.Context) ([]domain.Problem, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Problem, error)
	Create(ctx context.Context, in domain.NewProblem) (domain.Problem, error)
	CreateBulk(ctx context.Context, in []domain.NewProblem) ([]domain.Problem, error)
	Rate(ctx context.Context, params domain.RateParams) (domain.Problem, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Settings(ctx context.Context) (domain.UserSettings, error)
	SaveSettings(ctx context.Context, settings domain.UserSettings) error
}

// SessionProvider reports the authenticated principal of a call, if any.
type SessionProvider interface {
	Session(ctx context.Context) (uuid.UUID, bool)
}

// SessionFunc adapts an ordinary function to SessionProvider.
type SessionFunc func(ctx context.Context) (uuid.UUID, bool)

func (f SessionFunc) Session(ctx context.Context) (uuid.UUID, bool) { return f(ctx) }

// RemoteResolver returns the remote store bound to userID.
type RemoteResolver func(userID uuid.UUID) Backend

// Random is the source of the audit draw.
type Random interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// DefaultAuditProbability is the chance that a day's first check surfaces an audit.
const DefaultAuditProbability = 0.10

// Options tune the Service. Zero values select the defaults.
type Options struct {
	Clock            schedule.Clock
	AuditProbability float64
	Rand             Random
}

// Service routes problem operations to the store matching the caller's session.
type Service struct {
	local    Backend
	remote   RemoteResolver
	sessions SessionProvider
	clock    schedule.Clock
	auditP   float64
	rand     Random
	locks    *keyedMutex
	log      *slog.Logger
}

// NewService creates a tracker Service. remote may be nil, in which case
// authenticated calls fail with domain.ErrStorageUnavailable.
func NewService(
	log *slog.Logger,
	local Backend,
	remote RemoteResolver,
	sessions SessionProvider,
	opts Options,
) *Service {
	if opts.AuditProbability == 0 {
		opts.AuditProbability = DefaultAuditProbability
	}
	if opts.Rand == nil {
		opts.Rand = globalRand{}
	}
	return &Service{
		local:    local,
		remote:   remote,
		sessions: sessions,
		clock:    opts.Clock,
		auditP:   opts.AuditProbability,
		rand:     opts.Rand,
		locks:    newKeyedMutex(),
		log:      log.With("service", "tracker"),
	}
}

// backend resolves the store for this call. The decision is never cached.
func (s *Service) backend(ctx context.Context) (Backend, string, error) {
	if userID, ok := s.sessions.Session(ctx); ok {
		if s.remote == nil {
			return nil, "", fmt.Errorf("remote store not configured: %w", domain.ErrStorageUnavailable)
		}
		return s.remote(userID), userID.String(), nil
	}
	return s.local, "local", nil
}

// ListQueued returns never-attempted problems in queue order.
func (s *Service) ListQueued(ctx context.Context) ([]domain.Problem, error) {
	b, _, err := s.backend(ctx)
	if err != nil {
		return nil, err
	}
	return b.ListQueued(ctx)
}

// ListActive returns problems under review with their attempts.
func (s *Service) ListActive(ctx context.Context) ([]domain.Problem, error) {
	b, _, err := s.backend(ctx)
	if err != nil {
		return nil, err
	}
	return b.ListActive(ctx)
}

// ListMastered returns mastered problems, most recently mastered first.
func (s *Service) ListMastered(ctx context.Context) ([]domain.Problem, error) {
	b, _, err := s.backend(ctx)
	if err != nil {
		return nil, err
	}
	return b.ListMastered(ctx)
}

// ListAll returns every problem in creation order.
func (s *Service) ListAll(ctx context.Context) ([]domain.Problem, error) {
	b, _, err := s.backend(ctx)
	if err != nil {
		return nil, err
	}
	return b.ListAll(ctx)
}

// Get returns one problem with its attempts.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Problem, error) {
	b, _, err := s.backend(ctx)
	if err != nil {
		return domain.Problem{}, err
	}
	return b.Get(ctx, id)
}

// Today returns the current calendar day as the service sees it.
func (s *Service) Today() civil.Date {
	return s.clock.Today()
}
