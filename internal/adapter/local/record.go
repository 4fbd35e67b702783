package local

import (
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	"github.com/mpblatz/repeet/internal/domain"
)

// problemRecord is the serialized form of a problem inside the blob.
type problemRecord struct {
	ID               uuid.UUID         `json:"id"`
	UserID           uuid.UUID         `json:"user_id"`
	ProblemName      string            `json:"problem_name"`
	ProblemLink      *string           `json:"problem_link"`
	Difficulty       domain.Difficulty `json:"difficulty"`
	Topic            *string           `json:"topic"`
	Source           *string           `json:"source"`
	Status           domain.Status     `json:"status"`
	QueuePosition    *int              `json:"queue_position"`
	NextReviewDate   *civil.Date       `json:"next_review_date"`
	AttemptCount     int               `json:"attempt_count"`
	ConsecutiveFives int               `json:"consecutive_fives"`
	LastRating       *int              `json:"last_rating"`
	MasteredAt       *time.Time        `json:"mastered_at"`
	CreatedAt        time.Time         `json:"created_at"`
	Attempts         []attemptRecord   `json:"attempts"`
}

type attemptRecord struct {
	ID               uuid.UUID `json:"id"`
	ProblemID        uuid.UUID `json:"problem_id"`
	Rating           int       `json:"rating"`
	AttemptedAt      time.Time `json:"attempted_at"`
	Notes            *string   `json:"notes"`
	TimeSpentMinutes *int      `json:"time_spent_minutes"`
}

type settingsRecord struct {
	LastAuditDate  *civil.Date `json:"last_audit_date"`
	AuditProblemID *uuid.UUID  `json:"audit_problem_id"`
	DailyGoal      int         `json:"daily_goal"`
	EnableAudits   bool        `json:"enable_audits"`
	Theme          string      `json:"theme"`
}

func toDomain(r problemRecord) (domain.Problem, error) {
	lc, err := domain.LifecycleFromColumns(r.Status, r.QueuePosition, r.NextReviewDate, r.MasteredAt)
	if err != nil {
		return domain.Problem{}, err
	}
	p := domain.Problem{
		ID:               r.ID,
		UserID:           r.UserID,
		Name:             r.ProblemName,
		Link:             r.ProblemLink,
		Difficulty:       r.Difficulty,
		Topic:            r.Topic,
		Source:           r.Source,
		Lifecycle:        lc,
		AttemptCount:     r.AttemptCount,
		ConsecutiveFives: r.ConsecutiveFives,
		LastRating:       r.LastRating,
		CreatedAt:        r.CreatedAt,
		Attempts:         make([]domain.Attempt, 0, len(r.Attempts)),
	}
	for _, a := range r.Attempts {
		p.Attempts = append(p.Attempts, domain.Attempt{
			ID:               a.ID,
			ProblemID:        a.ProblemID,
			Rating:           a.Rating,
			AttemptedAt:      a.AttemptedAt,
			Notes:            a.Notes,
			TimeSpentMinutes: a.TimeSpentMinutes,
		})
	}
	domain.SortAttempts(p.Attempts)
	return p, nil
}

func fromDomain(p domain.Problem) problemRecord {
	r := problemRecord{
		ID:               p.ID,
		UserID:           p.UserID,
		ProblemName:      p.Name,
		ProblemLink:      p.Link,
		Difficulty:       p.Difficulty,
		Topic:            p.Topic,
		Source:           p.Source,
		Status:           p.Status(),
		QueuePosition:    p.QueuePosition(),
		NextReviewDate:   p.NextReviewDate(),
		AttemptCount:     p.AttemptCount,
		ConsecutiveFives: p.ConsecutiveFives,
		LastRating:       p.LastRating,
		MasteredAt:       p.MasteredAt(),
		CreatedAt:        p.CreatedAt,
		Attempts:         make([]attemptRecord, 0, len(p.Attempts)),
	}
	for _, a := range p.Attempts {
		r.Attempts = append(r.Attempts, attemptRecord{
			ID:               a.ID,
			ProblemID:        a.ProblemID,
			Rating:           a.Rating,
			AttemptedAt:      a.AttemptedAt,
			Notes:            a.Notes,
			TimeSpentMinutes: a.TimeSpentMinutes,
		})
	}
	return r
}
