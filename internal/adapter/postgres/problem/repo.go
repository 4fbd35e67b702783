// Package problem implements problem and attempt persistence using PostgreSQL.
// Every query is scoped by the owning user id.
package problem

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	postgres "github.com/mpblatz/repeet/internal/adapter/postgres"
	"github.com/mpblatz/repeet/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var problemColumns = []string{
	"id", "user_id", "problem_name", "problem_link", "difficulty", "topic", "source",
	"status", "queue_position", "next_review_date", "attempt_count", "consecutive_fives",
	"last_rating", "mastered_at", "created_at",
}

var attemptColumns = []string{
	"id", "problem_id", "rating", "attempted_at", "notes", "time_spent_minutes",
}

// Repo provides problem persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new problem repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// List returns the user's problems without attempts. An empty status selects all.
func (r *Repo) List(ctx context.Context, userID uuid.UUID, status domain.Status) ([]domain.Problem, error) {
	where := sq.Eq{"user_id": userID}
	if status != "" {
		where["status"] = string(status)
	}
	query := psql.Select(problemColumns...).
		From("problems").
		Where(where).
		OrderBy("created_at", "id")

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list problems: %w", err)
	}

	var rows []problemRow
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, sql, args...); err != nil {
		return nil, postgres.MapError(err, "problems of user", userID)
	}
	return toDomainProblems(rows)
}

// Get returns one problem without attempts.
// Returns domain.ErrNotFound if the problem does not exist or belongs to another user.
func (r *Repo) Get(ctx context.Context, userID, id uuid.UUID) (domain.Problem, error) {
	return r.get(ctx, userID, id, false)
}

// GetForUpdate is Get with a row lock held until the surrounding transaction ends.
func (r *Repo) GetForUpdate(ctx context.Context, userID, id uuid.UUID) (domain.Problem, error) {
	return r.get(ctx, userID, id, true)
}

func (r *Repo) get(ctx context.Context, userID, id uuid.UUID, lock bool) (domain.Problem, error) {
	query := psql.Select(problemColumns...).
		From("problems").
		Where(sq.Eq{"id": id, "user_id": userID})
	if lock {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return domain.Problem{}, fmt.Errorf("build get problem: %w", err)
	}

	var row problemRow
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &row, sql, args...); err != nil {
		return domain.Problem{}, postgres.MapError(err, "problem", id)
	}
	return row.toDomain()
}

// Attempts returns the attempts of the given problems keyed by problem id,
// each slice ordered by attempted_at.
func (r *Repo) Attempts(ctx context.Context, userID uuid.UUID, problemIDs []uuid.UUID) (map[uuid.UUID][]domain.Attempt, error) {
	out := make(map[uuid.UUID][]domain.Attempt, len(problemIDs))
	if len(problemIDs) == 0 {
		return out, nil
	}

	query := psql.Select(attemptColumns...).
		From("attempts").
		Where(sq.Eq{"user_id": userID, "problem_id": problemIDs}).
		OrderBy("attempted_at", "id")

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list attempts: %w", err)
	}

	var rows []attemptRow
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, sql, args...); err != nil {
		return nil, postgres.MapError(err, "attempts of user", userID)
	}
	for _, row := range rows {
		out[row.ProblemID] = append(out[row.ProblemID], row.toDomain())
	}
	return out, nil
}

// NextQueuePosition returns one past the user's highest queued position.
// Callers must hold the user lock for the result to stay free.
func (r *Repo) NextQueuePosition(ctx context.Context, userID uuid.UUID) (int, error) {
	sql, args, err := psql.Select("COALESCE(MAX(queue_position), 0) + 1").
		From("problems").
		Where(sq.Eq{"user_id": userID, "status": string(domain.StatusQueued)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build next queue position: %w", err)
	}

	var next int
	if err := postgres.QuerierFromCtx(ctx, r.db).QueryRow(ctx, sql, args...).Scan(&next); err != nil {
		return 0, postgres.MapError(err, "queue of user", userID)
	}
	return next, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// LockUser takes a transaction-scoped advisory lock on userID. It must run
// inside a transaction.
func (r *Repo) LockUser(ctx context.Context, userID uuid.UUID) error {
	const lockSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
	if _, err := postgres.QuerierFromCtx(ctx, r.db).Exec(ctx, lockSQL, userID.String()); err != nil {
		return postgres.MapError(err, "lock user", userID)
	}
	return nil
}

// Insert persists a new problem row. Attempts are not written.
func (r *Repo) Insert(ctx context.Context, p domain.Problem) error {
	row := fromDomain(p)
	sql, args, err := psql.Insert("problems").
		Columns(problemColumns...).
		Values(row.values()...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert problem: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.db).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "problem", p.ID)
	}
	return nil
}

// UpdateSchedule writes the lifecycle and counters of p.
func (r *Repo) UpdateSchedule(ctx context.Context, p domain.Problem) error {
	row := fromDomain(p)
	sql, args, err := psql.Update("problems").
		SetMap(map[string]any{
			"status":            row.Status,
			"queue_position":    row.QueuePosition,
			"next_review_date":  row.NextReviewDate,
			"attempt_count":     row.AttemptCount,
			"consecutive_fives": row.ConsecutiveFives,
			"last_rating":       row.LastRating,
			"mastered_at":       row.MasteredAt,
		}).
		Where(sq.Eq{"id": p.ID, "user_id": p.UserID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update problem: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "problem", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("problem %s: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

// InsertAttempt appends one attempt owned by userID.
func (r *Repo) InsertAttempt(ctx context.Context, userID uuid.UUID, a domain.Attempt) error {
	sql, args, err := psql.Insert("attempts").
		Columns("id", "problem_id", "user_id", "rating", "attempted_at", "notes", "time_spent_minutes").
		Values(a.ID, a.ProblemID, userID, a.Rating, a.AttemptedAt, a.Notes, a.TimeSpentMinutes).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert attempt: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.db).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "attempt", a.ID)
	}
	return nil
}

// Delete removes a problem; its attempts go with it via ON DELETE CASCADE.
// Returns domain.ErrNotFound if no row matched.
func (r *Repo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	sql, args, err := psql.Delete("problems").
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete problem: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "problem", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("problem %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Row mapping
// ---------------------------------------------------------------------------

type problemRow struct {
	ID               uuid.UUID  `db:"id"`
	UserID           uuid.UUID  `db:"user_id"`
	Name             string     `db:"problem_name"`
	Link             *string    `db:"problem_link"`
	Difficulty       string     `db:"difficulty"`
	Topic            *string    `db:"topic"`
	Source           *string    `db:"source"`
	Status           string     `db:"status"`
	QueuePosition    *int       `db:"queue_position"`
	NextReviewDate   *time.Time `db:"next_review_date"`
	AttemptCount     int        `db:"attempt_count"`
	ConsecutiveFives int        `db:"consecutive_fives"`
	LastRating       *int       `db:"last_rating"`
	MasteredAt       *time.Time `db:"mastered_at"`
	CreatedAt        time.Time  `db:"created_at"`
}

func (row problemRow) values() []any {
	return []any{
		row.ID, row.UserID, row.Name, row.Link, row.Difficulty, row.Topic, row.Source,
		row.Status, row.QueuePosition, row.NextReviewDate, row.AttemptCount, row.ConsecutiveFives,
		row.LastRating, row.MasteredAt, row.CreatedAt,
	}
}

func (row problemRow) toDomain() (domain.Problem, error) {
	var next *civil.Date
	if row.NextReviewDate != nil {
		d := civil.DateOf(*row.NextReviewDate)
		next = &d
	}
	var masteredAt *time.Time
	if row.MasteredAt != nil {
		at := row.MasteredAt.UTC()
		masteredAt = &at
	}

	lc, err := domain.LifecycleFromColumns(domain.Status(row.Status), row.QueuePosition, next, masteredAt)
	if err != nil {
		return domain.Problem{}, fmt.Errorf("problem %s: %w: %w", row.ID, domain.ErrStorageUnavailable, err)
	}

	return domain.Problem{
		ID:               row.ID,
		UserID:           row.UserID,
		Name:             row.Name,
		Link:             row.Link,
		Difficulty:       domain.Difficulty(row.Difficulty),
		Topic:            row.Topic,
		Source:           row.Source,
		Lifecycle:        lc,
		AttemptCount:     row.AttemptCount,
		ConsecutiveFives: row.ConsecutiveFives,
		LastRating:       row.LastRating,
		CreatedAt:        row.CreatedAt.UTC(),
		Attempts:         []domain.Attempt{},
	}, nil
}

func toDomainProblems(rows []problemRow) ([]domain.Problem, error) {
	out := make([]domain.Problem, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func fromDomain(p domain.Problem) problemRow {
	var next *time.Time
	if d := p.NextReviewDate(); d != nil {
		t := d.In(time.UTC)
		next = &t
	}
	return problemRow{
		ID:               p.ID,
		UserID:           p.UserID,
		Name:             p.Name,
		Link:             p.Link,
		Difficulty:       string(p.Difficulty),
		Topic:            p.Topic,
		Source:           p.Source,
		Status:           string(p.Status()),
		QueuePosition:    p.QueuePosition(),
		NextReviewDate:   next,
		AttemptCount:     p.AttemptCount,
		ConsecutiveFives: p.ConsecutiveFives,
		LastRating:       p.LastRating,
		MasteredAt:       p.MasteredAt(),
		CreatedAt:        p.CreatedAt,
	}
}

type attemptRow struct {
	ID               uuid.UUID `db:"id"`
	ProblemID        uuid.UUID `db:"problem_id"`
	Rating           int       `db:"rating"`
	AttemptedAt      time.Time `db:"attempted_at"`
	Notes            *string   `db:"notes"`
	TimeSpentMinutes *int      `db:"time_spent_minutes"`
}

func (row attemptRow) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:               row.ID,
		ProblemID:        row.ProblemID,
		Rating:           row.Rating,
		AttemptedAt:      row.AttemptedAt.UTC(),
		Notes:            row.Notes,
		TimeSpentMinutes: row.TimeSpentMinutes,
	}
}
