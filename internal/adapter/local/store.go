// Package local is the on-device problem store. All problems live in one
// JSON blob that every mutation reads, modifies and writes back whole.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mpblatz/repeet/internal/domain"
	"github.com/mpblatz/repeet/internal/service/schedule"
)

// Blob keys.
const (
	ProblemsKey = "repeet-problems"
	SettingsKey = "repeet-settings"
)

type blobStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Update(ctx context.Context, key string, fn func(old []byte, ok bool) ([]byte, error)) error
}

// Store implements the problem store contract for the local pseudo-user.
type Store struct {
	kv    blobStore
	clock schedule.Clock

	// mu orders callers within this process; kv.Update guards the file
	// against other processes.
	mu sync.RWMutex
}

// New creates a local Store over kv.
func New(kv blobStore, clock schedule.Clock) *Store {
	return &Store{kv: kv, clock: clock}
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// ListQueued returns queued problems by position, without attempts.
func (s *Store) ListQueued(ctx context.Context) ([]domain.Problem, error) {
	out, err := s.list(ctx, domain.StatusQueued)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Attempts = []domain.Attempt{}
	}
	domain.SortQueued(out)
	return out, nil
}

// ListActive returns every active problem. There is no look-ahead window.
func (s *Store) ListActive(ctx context.Context) ([]domain.Problem, error) {
	out, err := s.list(ctx, domain.StatusActive)
	if err != nil {
		return nil, err
	}
	domain.SortActive(out)
	return out, nil
}

// ListMastered returns mastered problems, most recently mastered first.
func (s *Store) ListMastered(ctx context.Context) ([]domain.Problem, error) {
	out, err := s.list(ctx, domain.StatusMastered)
	if err != nil {
		return nil, err
	}
	domain.SortMastered(out)
	return out, nil
}

// ListAll returns every problem in creation order.
func (s *Store) ListAll(ctx context.Context) ([]domain.Problem, error) {
	out, err := s.list(ctx, "")
	if err != nil {
		return nil, err
	}
	domain.SortAll(out)
	return out, nil
}

// Get returns one problem with its attempts.
// Returns domain.ErrNotFound if no problem has that id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (domain.Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.load(ctx)
	if err != nil {
		return domain.Problem{}, err
	}
	i := indexOf(records, id)
	if i < 0 {
		return domain.Problem{}, fmt.Errorf("problem %s: %w", id, domain.ErrNotFound)
	}
	return toDomain(records[i])
}

// Settings returns the saved settings, or the defaults when none were saved.
func (s *Store) Settings(ctx context.Context) (domain.UserSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadSettings(ctx)
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create queues one problem at the end of the queue.
// Returns domain.ErrValidation if the input is invalid.
func (s *Store) Create(ctx context.Context, in domain.NewProblem) (domain.Problem, error) {
	created, err := s.CreateBulk(ctx, []domain.NewProblem{in})
	if err != nil {
		return domain.Problem{}, err
	}
	return created[0], nil
}

// CreateBulk appends every item with contiguous queue positions in one write.
// Nothing is written if any item is invalid.
func (s *Store) CreateBulk(ctx context.Context, in []domain.NewProblem) ([]domain.Problem, error) {
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
	err := s.mutate(ctx, func(records []problemRecord) ([]problemRecord, error) {
		next := nextPosition(records)
		now := s.clock.Now()
		created = make([]domain.Problem, 0, len(items))
		for i, item := range items {
			p := domain.Problem{
				ID:         uuid.New(),
				UserID:     domain.LocalUserID,
				Name:       item.Name,
				Link:       item.Link,
				Difficulty: item.Difficulty,
				Topic:      item.Topic,
				Source:     item.Source,
				Lifecycle:  domain.Queued{Position: next + i},
				CreatedAt:  now,
				Attempts:   []domain.Attempt{},
			}
			records = append(records, fromDomain(p))
			created = append(created, p)
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Rate appends an attempt and applies the schedule in one write.
// Returns domain.ErrNotFound if no problem has that id.
func (s *Store) Rate(ctx context.Context, params domain.RateParams) (domain.Problem, error) {
	if err := params.Validate(); err != nil {
		return domain.Problem{}, err
	}

	var rated domain.Problem
	err := s.mutate(ctx, func(records []problemRecord) ([]problemRecord, error) {
		i := indexOf(records, params.ProblemID)
		if i < 0 {
			return nil, fmt.Errorf("problem %s: %w", params.ProblemID, domain.ErrNotFound)
		}

		p, err := toDomain(records[i])
		if err != nil {
			return nil, fmt.Errorf("decode problem %s: %w: %w", params.ProblemID, domain.ErrStorageUnavailable, err)
		}

		now := s.clock.Now()
		p, err = schedule.Apply(p, params.Rating, now, s.clock.Today())
		if err != nil {
			return nil, err
		}
		p.Attempts = append(p.Attempts, domain.Attempt{
			ID:               uuid.New(),
			ProblemID:        p.ID,
			Rating:           params.Rating,
			AttemptedAt:      now,
			Notes:            params.Notes,
			TimeSpentMinutes: params.TimeSpentMinutes,
		})
		domain.SortAttempts(p.Attempts)
		records[i] = fromDomain(p)
		rated = p
		return records, nil
	})
	if err != nil {
		return domain.Problem{}, err
	}
	return rated, nil
}

// Delete removes the problem together with its attempts.
// Returns domain.ErrNotFound if no problem has that id.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	return s.mutate(ctx, func(records []problemRecord) ([]problemRecord, error) {
		i := indexOf(records, id)
		if i < 0 {
			return nil, fmt.Errorf("problem %s: %w", id, domain.ErrNotFound)
		}
		return append(records[:i], records[i+1:]...), nil
	})
}

// SaveSettings replaces the stored settings. The user id is not persisted.
func (s *Store) SaveSettings(ctx context.Context, settings domain.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(settingsRecord{
		LastAuditDate:  settings.LastAuditDate,
		AuditProblemID: settings.AuditProblemID,
		DailyGoal:      settings.DailyGoal,
		EnableAudits:   settings.EnableAudits,
		Theme:          settings.Theme,
	})
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return s.kv.Put(ctx, SettingsKey, data)
}

// ---------------------------------------------------------------------------
// Blob helpers
// ---------------------------------------------------------------------------

func (s *Store) list(ctx context.Context, status domain.Status) ([]domain.Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Problem, 0, len(records))
	for _, r := range records {
		if status != "" && r.Status != status {
			continue
		}
		p, err := toDomain(r)
		if err != nil {
			return nil, fmt.Errorf("decode problem %s: %w: %w", r.ID, domain.ErrStorageUnavailable, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) load(ctx context.Context) ([]problemRecord, error) {
	data, ok, err := s.kv.Get(ctx, ProblemsKey)
	if err != nil {
		return nil, err
	}
	return decodeProblems(data, ok)
}

// mutate runs fn over the stored problems inside one blob transaction and
// writes back what it returns. Nothing is written when fn fails.
func (s *Store) mutate(ctx context.Context, fn func([]problemRecord) ([]problemRecord, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.kv.Update(ctx, ProblemsKey, func(old []byte, ok bool) ([]byte, error) {
		records, err := decodeProblems(old, ok)
		if err != nil {
			return nil, err
		}
		records, err = fn(records)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(records)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", ProblemsKey, err)
		}
		return data, nil
	})
}

func decodeProblems(data []byte, ok bool) ([]problemRecord, error) {
	if !ok {
		return []problemRecord{}, nil
	}
	var records []problemRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", ProblemsKey, domain.ErrStorageUnavailable, err)
	}
	return records, nil
}

func (s *Store) loadSettings(ctx context.Context) (domain.UserSettings, error) {
	defaults := domain.DefaultUserSettings(domain.LocalUserID)

	data, ok, err := s.kv.Get(ctx, SettingsKey)
	if err != nil {
		return domain.UserSettings{}, err
	}
	if !ok {
		return defaults, nil
	}

	rec := settingsRecord{
		DailyGoal:    defaults.DailyGoal,
		EnableAudits: defaults.EnableAudits,
		Theme:        defaults.Theme,
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.UserSettings{}, fmt.Errorf("decode %s: %w: %w", SettingsKey, domain.ErrStorageUnavailable, err)
	}
	return domain.UserSettings{
		UserID:         domain.LocalUserID,
		LastAuditDate:  rec.LastAuditDate,
		AuditProblemID: rec.AuditProblemID,
		DailyGoal:      rec.DailyGoal,
		EnableAudits:   rec.EnableAudits,
		Theme:          rec.Theme,
	}, nil
}

func indexOf(records []problemRecord, id uuid.UUID) int {
	for i, r := range records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// nextPosition is one past the highest queued position.
func nextPosition(records []problemRecord) int {
	highest := 0
	for _, r := range records {
		if r.Status == domain.StatusQueued && r.QueuePosition != nil && *r.QueuePosition > highest {
			highest = *r.QueuePosition
		}
	}
	return highest + 1
}
