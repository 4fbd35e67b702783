package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpblatz/repeet/internal/domain"
)

// SeedQueuedProblem inserts a queued problem for userID at the next free
// queue position and returns it.
func SeedQueuedProblem(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, name string) domain.Problem {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.New()

	var position int
	err := pool.QueryRow(ctx,
		`INSERT INTO problems (id, user_id, problem_name, difficulty, status, queue_position, created_at)
		 SELECT $1, $2, $3, 'Medium', 'queued',
		        COALESCE(MAX(queue_position), 0) + 1, $4
		 FROM problems WHERE user_id = $2 AND status = 'queued'
		 RETURNING queue_position`,
		id, userID, name, now,
	).Scan(&position)
	if err != nil {
		t.Fatalf("testhelper: seed problem: %v", err)
	}

	return domain.Problem{
		ID:         id,
		UserID:     userID,
		Name:       name,
		Difficulty: domain.DifficultyMedium,
		Lifecycle:  domain.Queued{Position: position},
		CreatedAt:  now,
		Attempts:   []domain.Attempt{},
	}
}
