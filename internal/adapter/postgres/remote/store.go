// Package remote is the multi-user problem store backed by PostgreSQL.
// A Store is bound to one authenticated user; every row it reads or writes
// is owned by that user.
package remote

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	postgres "github.com/mpblatz/repeet/internal/adapter/postgres"
	"github.com/mpblatz/repeet/internal/adapter/postgres/problem"
	"github.com/mpblatz/repeet/internal/adapter/postgres/settings"
	"github.com/mpblatz/repeet/internal/domain"
	"github.com/mpblatz/repeet/internal/service/schedule"
)

// Factory hands out user-bound stores that share one connection pool.
type Factory struct {
	tx       *postgres.TxManager
	problems *problem.Repo
	settings *settings.Repo
	clock    schedule.Clock
}

// NewFactory creates a Factory over db.
func NewFactory(db postgres.DB, clock schedule.Clock) *Factory {
	return &Factory{
		tx:       postgres.NewTxManager(db),
		problems: problem.New(db),
		settings: settings.New(db),
		clock:    clock,
	}
}

// ForUser returns the store of userID. A store for the nil id refuses every
// call with domain.ErrUnauthenticated.
func (f *Factory) ForUser(userID uuid.UUID) *Store {
	return &Store{
		tx:       f.tx,
		problems: f.problems,
		settings: f.settings,
		clock:    f.clock,
		userID:   userID,
	}
}

// Store implements the problem store contract for one user.
type Store struct {
	tx       *postgres.TxManager
	problems *problem.Repo
	settings *settings.Repo
	clock    schedule.Clock
	userID   uuid.UUID
}

// UserID returns the owner of every problem in the store.
func (s *Store) UserID() uuid.UUID { return s.userID }

func (s *Store) authorize() error {
	if s.userID == uuid.Nil || s.userID == uuid.Max {
		return fmt.Errorf("remote store: %w", domain.ErrUnauthenticated)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// ListQueued returns queued problems by position, without attempts.
func (s *Store) ListQueued(ctx context.Context) ([]domain.Problem, error) {
	if err := s.authorize(); err != nil {
		return nil, err
	}
	out, err := s.problems.List(ctx, s.userID, domain.StatusQueued)
	if err != nil {
		return nil, err
	}
	domain.SortQueued(out)
	return out, nil
}

// ListActive returns every active problem. There is no look-ahead window.
func (s *Store) ListActive(ctx context.Context) ([]domain.Problem, error) {
	if err := s.authorize(); err != nil {
		return nil, err
	}
	out, err := s.listWithAttempts(ctx, domain.StatusActive)
	if err != nil {
		return nil, err
	}
	domain.SortActive(out)
	return out, nil
}

// ListMastered returns mastered problems, most recently mastered first.
func (s *Store) ListMastered(ctx context.Context) ([]domain.Problem, error) {
	if err := s.authorize(); err != nil {
		return nil, err
	}
	out, err := s.listWithAttempts(ctx, domain.StatusMastered)
	if err != nil {
		return nil, err
	}
	domain.SortMastered(out)
	return out, nil
}

// ListAll returns every problem of the user in creation order.
func (s *Store) ListAll(ctx context.Context) ([]domain.Problem, error) {
	if err := s.authorize(); err != nil {
		return nil, err
	}
	out, err := s.listWithAttempts(ctx, "")
	if err != nil {
		return nil, err
	}
	domain.SortAll(out)
	return out, nil
}

// Get returns one problem with its attempts.
// Returns domain.ErrNotFound if the problem does not exist or belongs to another user.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (domain.Problem, error) {
	if err := s.authorize(); err != nil {
		return domain.Problem{}, err
	}
	p, err := s.problems.Get(ctx, s.userID, id)
	if err != nil {
		return domain.Problem{}, err
	}
	if err := s.attachAttempts(ctx, []domain.Problem{p}); err != nil {
		return domain.Problem{}, err
	}
	return p, nil
}

// Settings returns the user's settings, or the defaults when none were saved.
func (s *Store) Settings(ctx context.Context) (domain.UserSettings, error) {
	if err := s.authorize(); err != nil {
		return domain.UserSettings{}, err
	}
	return s.settings.Get(ctx, s.userID)
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create queues one problem at the end of the user's queue.
// Returns domain.ErrValidation if the input is invalid.
func (s *Store) Create(ctx context.Context, in domain.NewProblem) (domain.Problem, error) {
	created, err := s.CreateBulk(ctx, []domain.NewProblem{in})
	if err != nil {
		return domain.Problem{}, err
	}
	return created[0], nil
}

// CreateBulk inserts every item in one transaction with contiguous queue
// positions. A per-user advisory lock serializes position assignment.
func (s *Store) CreateBulk(ctx context.Context, in []domain.NewProblem) ([]domain.Problem, error) {
	if err := s.authorize(); err != nil {
		return nil, err
	}
	items := make([]domain.NewProblem, len(in))
	for i, item := range in {
		items[i] = item.Normalize()
	}
	if err := domain.ValidateBatch(items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []domain.Problem{}, nil
	}

	var created []domain.Problem
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.problems.LockUser(ctx, s.userID); err != nil {
			return err
		}
		next, err := s.problems.NextQueuePosition(ctx, s.userID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		created = make([]domain.Problem, 0, len(items))
		for i, item := range items {
			p := domain.Problem{
				ID:         uuid.New(),
				UserID:     s.userID,
				Name:       item.Name,
				Link:       item.Link,
				Difficulty: item.Difficulty,
				Topic:      item.Topic,
				Source:     item.Source,
				Lifecycle:  domain.Queued{Position: next + i},
				CreatedAt:  now,
				Attempts:   []domain.Attempt{},
			}
			if err := s.problems.Insert(ctx, p); err != nil {
				return err
			}
			created = append(created, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Rate appends an attempt and applies the schedule in one transaction.
// Returns domain.ErrNotFound if the problem does not exist or belongs to another user.
func (s *Store) Rate(ctx context.Context, params domain.RateParams) (domain.Problem, error) {
	if err := s.authorize(); err != nil {
		return domain.Problem{}, err
	}
	if err := params.Validate(); err != nil {
		return domain.Problem{}, err
	}

	var rated domain.Problem
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.problems.GetForUpdate(ctx, s.userID, params.ProblemID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		p, err = schedule.Apply(p, params.Rating, now, s.clock.Today())
		if err != nil {
			return err
		}
		if err := s.problems.UpdateSchedule(ctx, p); err != nil {
			return err
		}

		attempt := domain.Attempt{
			ID:               uuid.New(),
			ProblemID:        p.ID,
			Rating:           params.Rating,
			AttemptedAt:      now,
			Notes:            params.Notes,
			TimeSpentMinutes: params.TimeSpentMinutes,
		}
		if err := s.problems.InsertAttempt(ctx, s.userID, attempt); err != nil {
			return err
		}

		probs := []domain.Problem{p}
		if err := s.attachAttempts(ctx, probs); err != nil {
			return err
		}
		rated = probs[0]
		return nil
	})
	if err != nil {
		return domain.Problem{}, err
	}
	return rated, nil
}

// Delete removes the problem; attempts cascade.
// Returns domain.ErrNotFound if the problem does not exist or belongs to another user.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.authorize(); err != nil {
		return err
	}
	return s.problems.Delete(ctx, s.userID, id)
}

// SaveSettings upserts the user's settings. The user id of us is ignored.
func (s *Store) SaveSettings(ctx context.Context, us domain.UserSettings) error {
	if err := s.authorize(); err != nil {
		return err
	}
	us.UserID = s.userID
	return s.settings.Upsert(ctx, us)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *Store) listWithAttempts(ctx context.Context, status domain.Status) ([]domain.Problem, error) {
	out, err := s.problems.List(ctx, s.userID, status)
	if err != nil {
		return nil, err
	}
	if err := s.attachAttempts(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) attachAttempts(ctx context.Context, probs []domain.Problem) error {
	ids := make([]uuid.UUID, len(probs))
	for i, p := range probs {
		ids[i] = p.ID
	}
	byProblem, err := s.problems.Attempts(ctx, s.userID, ids)
	if err != nil {
		return err
	}
	for i := range probs {
		if attempts, ok := byProblem[probs[i].ID]; ok {
			domain.SortAttempts(attempts)
			probs[i].Attempts = attempts
		}
	}
	return nil
}
