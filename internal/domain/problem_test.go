package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestProblem_LifecycleAccessors(t *testing.T) {
	t.Parallel()

	day := civil.Date{Year: 2025, Month: time.March, Day: 10}
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		lc           Lifecycle
		wantStatus   Status
		wantPosition *int
		wantNext     *civil.Date
		wantMastered *time.Time
	}{
		{"queued", Queued{Position: 4}, StatusQueued, ptr(4), nil, nil},
		{"active", Active{NextReview: day}, StatusActive, nil, &day, nil},
		{"mastered", Mastered{At: at}, StatusMastered, nil, nil, &at},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := Problem{Lifecycle: tt.lc}
			assert.Equal(t, tt.wantStatus, p.Status())
			assert.Equal(t, tt.wantPosition, p.QueuePosition())
			assert.Equal(t, tt.wantNext, p.NextReviewDate())
			assert.Equal(t, tt.wantMastered, p.MasteredAt())
		})
	}
}

func TestLifecycleFromColumns(t *testing.T) {
	t.Parallel()

	day := civil.Date{Year: 2025, Month: time.January, Day: 2}
	at := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)

	lc, err := LifecycleFromColumns(StatusQueued, ptr(2), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Queued{Position: 2}, lc)

	lc, err = LifecycleFromColumns(StatusActive, nil, &day, nil)
	require.NoError(t, err)
	assert.Equal(t, Active{NextReview: day}, lc)

	lc, err = LifecycleFromColumns(StatusMastered, nil, nil, &at)
	require.NoError(t, err)
	assert.Equal(t, Mastered{At: at}, lc)

	_, err = LifecycleFromColumns(StatusQueued, nil, nil, nil)
	assert.Error(t, err)
	_, err = LifecycleFromColumns(StatusActive, ptr(1), nil, nil)
	assert.Error(t, err)
	_, err = LifecycleFromColumns(StatusMastered, nil, nil, nil)
	assert.Error(t, err)
	_, err = LifecycleFromColumns("archived", nil, nil, nil)
	assert.Error(t, err)
}

func TestProblem_LastAttempt(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	_, ok := Problem{}.LastAttempt()
	assert.False(t, ok)

	p := Problem{Attempts: []Attempt{
		{Rating: 2, AttemptedAt: base.Add(2 * time.Hour)},
		{Rating: 4, AttemptedAt: base},
		{Rating: 5, AttemptedAt: base.Add(time.Hour)},
	}}
	last, ok := p.LastAttempt()
	require.True(t, ok)
	assert.Equal(t, 2, last.Rating)
}

func TestAttempts_SameInstantOrderedByID(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	low := uuid.MustParse("10000000-0000-4000-8000-000000000000")
	high := uuid.MustParse("f0000000-0000-4000-8000-000000000000")

	for _, attempts := range [][]Attempt{
		{{ID: low, Rating: 1, AttemptedAt: at}, {ID: high, Rating: 5, AttemptedAt: at}},
		{{ID: high, Rating: 5, AttemptedAt: at}, {ID: low, Rating: 1, AttemptedAt: at}},
	} {
		last, ok := Problem{Attempts: attempts}.LastAttempt()
		require.True(t, ok)
		assert.Equal(t, high, last.ID)

		SortAttempts(attempts)
		assert.Equal(t, []uuid.UUID{low, high}, []uuid.UUID{attempts[0].ID, attempts[1].ID})
	}
}

func TestNewProblem_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      NewProblem
		wantFields []string
	}{
		{"valid", NewProblem{Name: "Two Sum", Difficulty: DifficultyEasy}, nil},
		{"empty name", NewProblem{Name: "  ", Difficulty: DifficultyEasy}, []string{"name"}},
		{"bad difficulty", NewProblem{Name: "Two Sum", Difficulty: "easy"}, []string{"difficulty"}},
		{"both", NewProblem{Difficulty: "x"}, []string{"name", "difficulty"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.input.Validate()
			if tt.wantFields == nil {
				require.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			var fields []string
			for _, fe := range ve.Errors {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestNewProblem_Normalize(t *testing.T) {
	t.Parallel()

	n := NewProblem{
		Name:   "  Two Sum ",
		Link:   ptr("  "),
		Topic:  ptr(" Arrays "),
		Source: nil,
	}.Normalize()

	assert.Equal(t, "Two Sum", n.Name)
	assert.Nil(t, n.Link)
	assert.Equal(t, ptr("Arrays"), n.Topic)
	assert.Nil(t, n.Source)
}

func TestValidateBatch(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateBatch([]NewProblem{
		{Name: "A", Difficulty: DifficultyEasy},
		{Name: "B", Difficulty: DifficultyHard},
	}))

	err := ValidateBatch([]NewProblem{
		{Name: "A", Difficulty: DifficultyEasy},
		{Name: "", Difficulty: DifficultyEasy},
	})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Errors, 1)
	assert.Equal(t, "problems[1].name", ve.Errors[0].Field)

	assert.NoError(t, ValidateBatch(nil))
}

func TestRateParams_Validate(t *testing.T) {
	t.Parallel()

	id := uuid.New()

	require.NoError(t, RateParams{ProblemID: id, Rating: 3}.Validate())
	require.NoError(t, RateParams{ProblemID: id, Rating: 5, TimeSpentMinutes: ptr(0)}.Validate())

	assert.ErrorIs(t, RateParams{ProblemID: id, Rating: 0}.Validate(), ErrValidation)
	assert.ErrorIs(t, RateParams{ProblemID: id, Rating: 6}.Validate(), ErrValidation)
	assert.ErrorIs(t, RateParams{Rating: 3}.Validate(), ErrValidation)
	assert.ErrorIs(t, RateParams{ProblemID: id, Rating: 3, TimeSpentMinutes: ptr(-5)}.Validate(), ErrValidation)
}
