package rest

import (
	"time"

	"github.com/golang-sql/civil"

	"github.com/mpblatz/repeet/internal/domain"
	"github.com/mpblatz/repeet/internal/service/schedule"
)

type createProblemRequest struct {
	Name       string  `json:"name"`
	Link       *string `json:"link"`
	Difficulty string  `json:"difficulty"`
	Source     *string `json:"source"`
	Topic      *string `json:"topic"`
}

func (r createProblemRequest) toDomain() domain.NewProblem {
	d, _ := domain.ParseDifficulty(r.Difficulty)
	return domain.NewProblem{
		Name:       r.Name,
		Link:       r.Link,
		Difficulty: d,
		Source:     r.Source,
		Topic:      r.Topic,
	}
}

type bulkCreateRequest struct {
	Problems []createProblemRequest `json:"problems"`
}

type importTextRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type rateRequest struct {
	Rating           int     `json:"rating"`
	Notes            *string `json:"notes"`
	TimeSpentMinutes *int    `json:"timeSpentMinutes"`
}

type updateSettingsRequest struct {
	DailyGoal    *int    `json:"dailyGoal"`
	EnableAudits *bool   `json:"enableAudits"`
	Theme        *string `json:"theme"`
}

type problemResponse struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Link               *string           `json:"link,omitempty"`
	Difficulty         string            `json:"difficulty"`
	Topic              *string           `json:"topic,omitempty"`
	Source             *string           `json:"source,omitempty"`
	Status             string            `json:"status"`
	QueuePosition      *int              `json:"queuePosition,omitempty"`
	NextReviewDate     *string           `json:"nextReviewDate,omitempty"`
	NextReviewLabel    string            `json:"nextReviewLabel,omitempty"`
	MasteredAt         *time.Time        `json:"masteredAt,omitempty"`
	AttemptCount       int               `json:"attemptCount"`
	ConsecutiveFives   int               `json:"consecutiveFives"`
	LastRating         *int              `json:"lastRating,omitempty"`
	LastAttemptedLabel string            `json:"lastAttemptedLabel,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	Attempts           []attemptResponse `json:"attempts"`
}

type attemptResponse struct {
	ID               string    `json:"id"`
	Rating           int       `json:"rating"`
	AttemptedAt      time.Time `json:"attemptedAt"`
	Notes            *string   `json:"notes,omitempty"`
	TimeSpentMinutes *int      `json:"timeSpentMinutes,omitempty"`
}

type statsResponse struct {
	Total       int `json:"total"`
	Queued      int `json:"queued"`
	Active      int `json:"active"`
	Mastered    int `json:"mastered"`
	DueToday    int `json:"dueToday"`
	MasteryRate int `json:"masteryRate"`
}

type auditResponse struct {
	Problem *problemResponse `json:"problem"`
}

type dashboardResponse struct {
	Today    string            `json:"today"`
	Queue    []problemResponse `json:"queue"`
	Review   []problemResponse `json:"review"`
	Mastered []problemResponse `json:"mastered"`
	Stats    statsResponse     `json:"stats"`
	Audit    *problemResponse  `json:"audit"`
}

type settingsResponse struct {
	DailyGoal      int     `json:"dailyGoal"`
	EnableAudits   bool    `json:"enableAudits"`
	Theme          string  `json:"theme"`
	LastAuditDate  *string `json:"lastAuditDate,omitempty"`
	AuditProblemID *string `json:"auditProblemId,omitempty"`
}

// presenter renders domain values relative to the current day.
type presenter struct {
	today civil.Date
	loc   *time.Location
}

func newPresenter(clock schedule.Clock) presenter {
	loc := clock.Location
	if loc == nil {
		loc = time.UTC
	}
	return presenter{today: clock.Today(), loc: loc}
}

func (p presenter) problem(in domain.Problem) problemResponse {
	out := problemResponse{
		ID:               in.ID.String(),
		Name:             in.Name,
		Link:             in.Link,
		Difficulty:       in.Difficulty.String(),
		Topic:            in.Topic,
		Source:           in.Source,
		Status:           in.Status().String(),
		QueuePosition:    in.QueuePosition(),
		MasteredAt:       in.MasteredAt(),
		AttemptCount:     in.AttemptCount,
		ConsecutiveFives: in.ConsecutiveFives,
		LastRating:       in.LastRating,
		CreatedAt:        in.CreatedAt,
		Attempts:         make([]attemptResponse, 0, len(in.Attempts)),
	}
	if next := in.NextReviewDate(); next != nil {
		s := next.String()
		out.NextReviewDate = &s
		out.NextReviewLabel = schedule.FormatRelative(*next, p.today)
	}
	if last, ok := in.LastAttempt(); ok {
		out.LastAttemptedLabel = schedule.FormatRelative(civil.DateOf(last.AttemptedAt.In(p.loc)), p.today)
	}
	for _, a := range in.Attempts {
		out.Attempts = append(out.Attempts, attemptResponse{
			ID:               a.ID.String(),
			Rating:           a.Rating,
			AttemptedAt:      a.AttemptedAt,
			Notes:            a.Notes,
			TimeSpentMinutes: a.TimeSpentMinutes,
		})
	}
	return out
}

func (p presenter) problems(in []domain.Problem) []problemResponse {
	out := make([]problemResponse, 0, len(in))
	for _, item := range in {
		out = append(out, p.problem(item))
	}
	return out
}

func (p presenter) optional(in *domain.Problem) *problemResponse {
	if in == nil {
		return nil
	}
	out := p.problem(*in)
	return &out
}

func toStatsResponse(s domain.Stats) statsResponse {
	return statsResponse{
		Total:       s.Total,
		Queued:      s.Queued,
		Active:      s.Active,
		Mastered:    s.Mastered,
		DueToday:    s.DueToday,
		MasteryRate: s.MasteryRate,
	}
}

func toSettingsResponse(s domain.UserSettings) settingsResponse {
	out := settingsResponse{
		DailyGoal:    s.DailyGoal,
		EnableAudits: s.EnableAudits,
		Theme:        s.Theme,
	}
	if s.LastAuditDate != nil {
		d := s.LastAuditDate.String()
		out.LastAuditDate = &d
	}
	if s.AuditProblemID != nil {
		id := s.AuditProblemID.String()
		out.AuditProblemID = &id
	}
	return out
}
