// Package trackertest holds the behavioural suite every problem store must pass.
package trackertest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpblatz/repeet/internal/domain"
	"github.com/mpblatz/repeet/internal/service/schedule"
	"github.com/mpblatz/repeet/internal/service/tracker"
)

// Factory returns an empty store driven by clock.
type Factory func(t *testing.T, clock schedule.Clock) tracker.Backend

// ManualClock is a clock tests move by hand.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Clock() schedule.Clock {
	return schedule.Clock{Location: time.UTC, NowFunc: c.Now}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Run executes the store suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s tracker.Backend, c *ManualClock)
	}{
		{"QueueOrdering", testQueueOrdering},
		{"CreateValidation", testCreateValidation},
		{"BulkContiguous", testBulkContiguous},
		{"BulkAllOrNothing", testBulkAllOrNothing},
		{"BulkEmpty", testBulkEmpty},
		{"RateOffsets", testRateOffsets},
		{"ConsecutiveFives", testConsecutiveFives},
		{"MasteryTerminal", testMasteryTerminal},
		{"RateUnknown", testRateUnknown},
		{"ActiveOrdering", testActiveOrdering},
		{"MasteredOrdering", testMasteredOrdering},
		{"DeleteCascades", testDeleteCascades},
		{"Settings", testSettings},
		{"TwoSumScenario", testTwoSumScenario},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewManualClock(time.Date(2025, 4, 7, 9, 30, 0, 0, time.UTC))
			tt.fn(t, newStore(t, c.Clock()), c)
		})
	}
}

// RunUnauthenticated checks that a store reached without a principal refuses
// every operation with domain.ErrUnauthenticated.
func RunUnauthenticated(t *testing.T, s tracker.Backend) {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()

	calls := []struct {
		name string
		fn   func() error
	}{
		{"ListQueued", func() error { _, err := s.ListQueued(ctx); return err }},
		{"ListActive", func() error { _, err := s.ListActive(ctx); return err }},
		{"ListMastered", func() error { _, err := s.ListMastered(ctx); return err }},
		{"ListAll", func() error { _, err := s.ListAll(ctx); return err }},
		{"Get", func() error { _, err := s.Get(ctx, id); return err }},
		{"Create", func() error {
			_, err := s.Create(ctx, domain.NewProblem{Name: "Two Sum", Difficulty: domain.DifficultyEasy})
			return err
		}},
		{"CreateBulk", func() error {
			_, err := s.CreateBulk(ctx, []domain.NewProblem{{Name: "Two Sum", Difficulty: domain.DifficultyEasy}})
			return err
		}},
		{"Rate", func() error { _, err := s.Rate(ctx, domain.RateParams{ProblemID: id, Rating: 3}); return err }},
		{"Delete", func() error { return s.Delete(ctx, id) }},
		{"Settings", func() error { _, err := s.Settings(ctx); return err }},
		{"SaveSettings", func() error { return s.SaveSettings(ctx, domain.DefaultUserSettings(uuid.Nil)) }},
	}

	for _, c := range calls {
		t.Run(c.name, func(t *testing.T) {
			assert.ErrorIs(t, c.fn(), domain.ErrUnauthenticated)
		})
	}
}

func today(c *ManualClock) civil.Date {
	return civil.DateOf(c.Now())
}

func mustCreate(t *testing.T, s tracker.Backend, name string) domain.Problem {
	t.Helper()
	p, err := s.Create(context.Background(), domain.NewProblem{Name: name, Difficulty: domain.DifficultyMedium})
	require.NoError(t, err)
	return p
}

func mustRate(t *testing.T, s tracker.Backend, c *ManualClock, id uuid.UUID, rating int) domain.Problem {
	t.Helper()
	c.Advance(time.Minute)
	p, err := s.Rate(context.Background(), domain.RateParams{ProblemID: id, Rating: rating})
	require.NoError(t, err)
	return p
}

func assertExclusive(t *testing.T, p domain.Problem) {
	t.Helper()
	switch p.Status() {
	case domain.StatusQueued:
		assert.NotNil(t, p.QueuePosition())
		assert.Nil(t, p.NextReviewDate())
	case domain.StatusActive:
		assert.Nil(t, p.QueuePosition())
		assert.NotNil(t, p.NextReviewDate())
	case domain.StatusMastered:
		assert.Nil(t, p.QueuePosition())
		assert.Nil(t, p.NextReviewDate())
		assert.NotNil(t, p.MasteredAt())
	default:
		t.Fatalf("unexpected status %q", p.Status())
	}
}

func testQueueOrdering(t *testing.T, s tracker.Backend, _ *ManualClock) {
	a := mustCreate(t, s, "A")
	b := mustCreate(t, s, "B")
	c := mustCreate(t, s, "C")

	assert.Less(t, *a.QueuePosition(), *b.QueuePosition())
	assert.Less(t, *b.QueuePosition(), *c.QueuePosition())

	queue, err := s.ListQueued(context.Background())
	require.NoError(t, err)
	require.Len(t, queue, 3)
	for i, want := range []uuid.UUID{a.ID, b.ID, c.ID} {
		assert.Equal(t, want, queue[i].ID)
		assert.Equal(t, domain.StatusQueued, queue[i].Status())
		assert.Empty(t, queue[i].Attempts)
		assertExclusive(t, queue[i])
	}
}

func testCreateValidation(t *testing.T, s tracker.Backend, _ *ManualClock) {
	_, err := s.Create(context.Background(), domain.NewProblem{Name: "", Difficulty: domain.DifficultyEasy})
	assert.ErrorIs(t, err, domain.ErrValidation)

	all, err := s.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testBulkContiguous(t *testing.T, s tracker.Backend, _ *ManualClock) {
	mustCreate(t, s, "first")

	created, err := s.CreateBulk(context.Background(), []domain.NewProblem{
		{Name: "b1", Difficulty: domain.DifficultyEasy},
		{Name: "b2", Difficulty: domain.DifficultyEasy},
		{Name: "b3", Difficulty: domain.DifficultyHard},
		{Name: "b4", Difficulty: domain.DifficultyEasy},
		{Name: "b5", Difficulty: domain.DifficultyEasy},
	})
	require.NoError(t, err)
	require.Len(t, created, 5)
	for i, p := range created {
		assert.Equal(t, 2+i, *p.QueuePosition())
	}

	queue, err := s.ListQueued(context.Background())
	require.NoError(t, err)
	assert.Len(t, queue, 6)
}

func testBulkAllOrNothing(t *testing.T, s tracker.Backend, _ *ManualClock) {
	_, err := s.CreateBulk(context.Background(), []domain.NewProblem{
		{Name: "ok1", Difficulty: domain.DifficultyEasy},
		{Name: "ok2", Difficulty: domain.DifficultyEasy},
		{Name: "", Difficulty: domain.DifficultyEasy},
		{Name: "ok3", Difficulty: domain.DifficultyEasy},
		{Name: "ok4", Difficulty: domain.DifficultyEasy},
		{Name: "ok5", Difficulty: domain.DifficultyEasy},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	all, err := s.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testBulkEmpty(t *testing.T, s tracker.Backend, _ *ManualClock) {
	created, err := s.CreateBulk(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, created)
	assert.Empty(t, created)

	p := mustCreate(t, s, "first")
	assert.Equal(t, 1, *p.QueuePosition())
}

func testRateOffsets(t *testing.T, s tracker.Backend, c *ManualClock) {
	for r := 1; r <= 5; r++ {
		p := mustCreate(t, s, "offset")
		rated := mustRate(t, s, c, p.ID, r)

		assert.Equal(t, domain.StatusActive, rated.Status())
		assert.Equal(t, today(c).AddDays(r), *rated.NextReviewDate(), "rating %d", r)
		assert.Equal(t, 1, rated.AttemptCount)
		assert.Equal(t, r, *rated.LastRating)
		require.Len(t, rated.Attempts, 1)
		assert.Equal(t, r, rated.Attempts[0].Rating)
		assertExclusive(t, rated)
	}
}

func testConsecutiveFives(t *testing.T, s tracker.Backend, c *ManualClock) {
	p := mustCreate(t, s, "streak")

	var streaks []int
	var statuses []domain.Status
	for _, r := range []int{5, 3, 5, 5} {
		p = mustRate(t, s, c, p.ID, r)
		streaks = append(streaks, p.ConsecutiveFives)
		statuses = append(statuses, p.Status())
	}
	assert.Equal(t, []int{1, 0, 1, 2}, streaks)
	assert.Equal(t, []domain.Status{
		domain.StatusActive, domain.StatusActive, domain.StatusActive, domain.StatusMastered,
	}, statuses)
	assert.Equal(t, 4, p.AttemptCount)
	assert.Len(t, p.Attempts, 4)
}

func testMasteryTerminal(t *testing.T, s tracker.Backend, c *ManualClock) {
	p := mustCreate(t, s, "terminal")
	mustRate(t, s, c, p.ID, 5)
	p = mustRate(t, s, c, p.ID, 5)
	require.Equal(t, domain.StatusMastered, p.Status())
	masteredAt := *p.MasteredAt()

	for _, r := range []int{1, 3, 5} {
		p = mustRate(t, s, c, p.ID, r)
		assert.Equal(t, domain.StatusMastered, p.Status())
		assert.True(t, masteredAt.Equal(*p.MasteredAt()))
		assertExclusive(t, p)
	}

	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.AttemptCount)
	assert.Len(t, got.Attempts, 5)
}

func testRateUnknown(t *testing.T, s tracker.Backend, _ *ManualClock) {
	_, err := s.Rate(context.Background(), domain.RateParams{ProblemID: uuid.New(), Rating: 3})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	p := mustCreate(t, s, "bounds")
	_, err = s.Rate(context.Background(), domain.RateParams{ProblemID: p.ID, Rating: 0})
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, got.Status())
	assert.Zero(t, got.AttemptCount)
}

func testActiveOrdering(t *testing.T, s tracker.Backend, c *ManualClock) {
	a := mustCreate(t, s, "a")
	b := mustCreate(t, s, "b")
	d := mustCreate(t, s, "d")

	mustRate(t, s, c, b.ID, 2)
	mustRate(t, s, c, a.ID, 4)
	mustRate(t, s, c, d.ID, 1)

	active, err := s.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, []uuid.UUID{b.ID, a.ID, d.ID}, []uuid.UUID{active[0].ID, active[1].ID, active[2].ID})
	for _, p := range active {
		assert.Len(t, p.Attempts, 1)
	}
}

func testMasteredOrdering(t *testing.T, s tracker.Backend, c *ManualClock) {
	first := mustCreate(t, s, "first")
	second := mustCreate(t, s, "second")

	for _, id := range []uuid.UUID{first.ID, second.ID} {
		mustRate(t, s, c, id, 5)
		mustRate(t, s, c, id, 5)
	}

	mastered, err := s.ListMastered(context.Background())
	require.NoError(t, err)
	require.Len(t, mastered, 2)
	assert.Equal(t, second.ID, mastered[0].ID)
	assert.Equal(t, first.ID, mastered[1].ID)
	assert.Len(t, mastered[0].Attempts, 2)

	active, err := s.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}

func testDeleteCascades(t *testing.T, s tracker.Backend, c *ManualClock) {
	p := mustCreate(t, s, "gone")
	mustRate(t, s, c, p.ID, 3)
	keep := mustCreate(t, s, "kept")

	require.NoError(t, s.Delete(context.Background(), p.ID))

	_, err := s.Get(context.Background(), p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.Delete(context.Background(), p.ID), domain.ErrNotFound)

	all, err := s.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, keep.ID, all[0].ID)
}

func testSettings(t *testing.T, s tracker.Backend, c *ManualClock) {
	ctx := context.Background()

	got, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultDailyGoal, got.DailyGoal)
	assert.True(t, got.EnableAudits)
	assert.Equal(t, domain.DefaultTheme, got.Theme)
	assert.Nil(t, got.LastAuditDate)

	day := today(c)
	id := uuid.New()
	got.LastAuditDate = &day
	got.AuditProblemID = &id
	got.DailyGoal = 7
	got.Theme = "light"
	require.NoError(t, s.SaveSettings(ctx, got))

	again, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, again)

	again.AuditProblemID = nil
	require.NoError(t, s.SaveSettings(ctx, again))
	cleared, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.Nil(t, cleared.AuditProblemID)
}

func testTwoSumScenario(t *testing.T, s tracker.Backend, c *ManualClock) {
	ctx := context.Background()

	p, err := s.Create(ctx, domain.NewProblem{Name: "Two Sum", Difficulty: domain.DifficultyEasy})
	require.NoError(t, err)

	queue, err := s.ListQueued(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, 1, *queue[0].QueuePosition())

	dayD := today(c)
	p = mustRate(t, s, c, p.ID, 4)
	assert.Equal(t, domain.StatusActive, p.Status())
	assert.Equal(t, dayD.AddDays(4), *p.NextReviewDate())
	assert.Equal(t, 0, p.ConsecutiveFives)
	assert.Equal(t, 1, p.AttemptCount)

	c.Advance(4 * 24 * time.Hour)
	p = mustRate(t, s, c, p.ID, 5)
	assert.Equal(t, 1, p.ConsecutiveFives)
	assert.Equal(t, domain.StatusActive, p.Status())

	p = mustRate(t, s, c, p.ID, 5)
	assert.Equal(t, domain.StatusMastered, p.Status())
	assert.NotNil(t, p.MasteredAt())
	assert.Nil(t, p.NextReviewDate())

	mastered, err := s.ListMastered(ctx)
	require.NoError(t, err)
	require.Len(t, mastered, 1)
	assert.Equal(t, p.ID, mastered[0].ID)

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}
