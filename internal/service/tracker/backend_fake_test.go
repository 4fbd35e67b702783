package tracker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/mpblatz/repeet/internal/domain"
	"github.com/mpblatz/repeet/internal/service/schedule"
)

// memBackend is an in-memory Backend used to exercise the facade.
type memBackend struct {
	mu       sync.Mutex
	owner    uuid.UUID
	clock    schedule.Clock
	problems []domain.Problem
	settings *domain.UserSettings

	calls      atomic.Int64
	inRate     atomic.Int64
	overlapped atomic.Bool
	rateHook   func()
}

func newMemBackend(owner uuid.UUID, clock schedule.Clock) *memBackend {
	return &memBackend{owner: owner, clock: clock}
}

func clone(p domain.Problem) domain.Problem {
	p.Attempts = append([]domain.Attempt(nil), p.Attempts...)
	return p
}

func (m *memBackend) filter(status domain.Status, withAttempts bool) []domain.Problem {
	out := []domain.Problem{}
	for _, p := range m.problems {
		if status == "" || p.Status() == status {
			c := clone(p)
			if !withAttempts {
				c.Attempts = nil
			}
			out = append(out, c)
		}
	}
	return out
}

func (m *memBackend) ListQueued(ctx context.Context) ([]domain.Problem, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.filter(domain.StatusQueued, false)
	domain.SortQueued(out)
	return out, nil
}

func (m *memBackend) ListActive(ctx context.Context) ([]domain.Problem, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.filter(domain.StatusActive, true)
	domain.SortActive(out)
	return out, nil
}

func (m *memBackend) ListMastered(ctx context.Context) ([]domain.Problem, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.filter(domain.StatusMastered, true)
	domain.SortMastered(out)
	return out, nil
}

func (m *memBackend) ListAll(ctx context.Context) ([]domain.Problem, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.filter("", true)
	domain.SortAll(out)
	return out, nil
}

func (m *memBackend) Get(ctx context.Context, id uuid.UUID) (domain.Problem, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.problems {
		if p.ID == id {
			return clone(p), nil
		}
	}
	return domain.Problem{}, domain.ErrNotFound
}

func (m *memBackend) nextPosition() int {
	highest := 0
	for _, p := range m.problems {
		if pos := p.QueuePosition(); pos != nil && *pos > highest {
			highest = *pos
		}
	}
	return highest + 1
}

func (m *memBackend) Create(ctx context.Context, in domain.NewProblem) (domain.Problem, error) {
	created, err := m.CreateBulk(ctx, []domain.NewProblem{in})
	if err != nil {
		return domain.Problem{}, err
	}
	return created[0], nil
}

func (m *memBackend) CreateBulk(ctx context.Context, in []domain.NewProblem) ([]domain.Problem, error) {
	m.calls.Add(1)
	if err := domain.ValidateBatch(in); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pos := m.nextPosition()
	out := make([]domain.Problem, 0, len(in))
	for i, item := range in {
		p := domain.Problem{
			ID:         uuid.New(),
			UserID:     m.owner,
			Name:       item.Name,
			Link:       item.Link,
			Difficulty: item.Difficulty,
			Topic:      item.Topic,
			Source:     item.Source,
			Lifecycle:  domain.Queued{Position: pos + i},
			CreatedAt:  m.clock.Now(),
		}
		m.problems = append(m.problems, p)
		out = append(out, clone(p))
	}
	return out, nil
}

func (m *memBackend) Rate(ctx context.Context, params domain.RateParams) (domain.Problem, error) {
	m.calls.Add(1)
	if m.inRate.Add(1) > 1 {
		m.overlapped.Store(true)
	}
	defer m.inRate.Add(-1)
	if m.rateHook != nil {
		m.rateHook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.problems {
		if p.ID != params.ProblemID {
			continue
		}
		now := m.clock.Now()
		next, err := schedule.Apply(p, params.Rating, now, m.clock.Today())
		if err != nil {
			return domain.Problem{}, err
		}
		next.Attempts = append(next.Attempts, domain.Attempt{
			ID:          uuid.New(),
			ProblemID:   p.ID,
			Rating:      params.Rating,
			AttemptedAt: now,
			Notes:       params.Notes,
		})
		m.problems[i] = next
		return clone(next), nil
	}
	return domain.Problem{}, domain.ErrNotFound
}

func (m *memBackend) Delete(ctx context.Context, id uuid.UUID) error {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.problems {
		if p.ID == id {
			m.problems = append(m.problems[:i], m.problems[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memBackend) Settings(ctx context.Context) (domain.UserSettings, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return domain.DefaultUserSettings(m.owner), nil
	}
	return *m.settings, nil
}

func (m *memBackend) SaveSettings(ctx context.Context, settings domain.UserSettings) error {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	settings.UserID = m.owner
	m.settings = &settings
	return nil
}

// fixedRand returns the same draw every time and counts the draws.
type fixedRand struct {
	mu    sync.Mutex
	f     float64
	n     int
	draws int
}

func (r *fixedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draws++
	return r.f
}

func (r *fixedRand) IntN(n int) int {
	if r.n >= n {
		return n - 1
	}
	return r.n
}

func (r *fixedRand) Draws() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draws
}
