// Package settings implements the per-user settings singleton using PostgreSQL.
package settings

import (
	"context"
	"errors"
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

// Repo provides settings persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new settings repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

// Get returns the user's settings, or the defaults when none were saved yet.
func (r *Repo) Get(ctx context.Context, userID uuid.UUID) (domain.UserSettings, error) {
	sql, args, err := psql.Select("last_audit_date", "audit_problem_id", "daily_goal", "enable_audits", "theme").
		From("user_settings").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return domain.UserSettings{}, fmt.Errorf("build get settings: %w", err)
	}

	var row settingsRow
	err = pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &row, sql, args...)
	if err != nil {
		mapped := postgres.MapError(err, "user_settings", userID)
		if errors.Is(mapped, domain.ErrNotFound) {
			return domain.DefaultUserSettings(userID), nil
		}
		return domain.UserSettings{}, mapped
	}

	s := domain.UserSettings{
		UserID:         userID,
		AuditProblemID: row.AuditProblemID,
		DailyGoal:      row.DailyGoal,
		EnableAudits:   row.EnableAudits,
		Theme:          row.Theme,
	}
	if row.LastAuditDate != nil {
		d := civil.DateOf(*row.LastAuditDate)
		s.LastAuditDate = &d
	}
	return s, nil
}

// Upsert writes every field of s.
func (r *Repo) Upsert(ctx context.Context, s domain.UserSettings) error {
	var lastAudit *time.Time
	if s.LastAuditDate != nil {
		t := s.LastAuditDate.In(time.UTC)
		lastAudit = &t
	}

	sql, args, err := psql.Insert("user_settings").
		Columns("user_id", "last_audit_date", "audit_problem_id", "daily_goal", "enable_audits", "theme", "updated_at").
		Values(s.UserID, lastAudit, s.AuditProblemID, s.DailyGoal, s.EnableAudits, s.Theme, sq.Expr("now()")).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			last_audit_date = EXCLUDED.last_audit_date,
			audit_problem_id = EXCLUDED.audit_problem_id,
			daily_goal = EXCLUDED.daily_goal,
			enable_audits = EXCLUDED.enable_audits,
			theme = EXCLUDED.theme,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert settings: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.db).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "user_settings", s.UserID)
	}
	return nil
}

type settingsRow struct {
	LastAuditDate  *time.Time `db:"last_audit_date"`
	AuditProblemID *uuid.UUID `db:"audit_problem_id"`
	DailyGoal      int        `db:"daily_goal"`
	EnableAudits   bool       `db:"enable_audits"`
	Theme          string     `db:"theme"`
}
