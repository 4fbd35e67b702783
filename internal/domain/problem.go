package domain

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
)

// LocalUserID owns every problem kept by the on-device store.
var LocalUserID = uuid.Max

// Lifecycle is the scheduling state of a problem: Queued, Active or Mastered.
// The position and date live only in the variant that needs them.
type Lifecycle interface {
	Status() Status
	lifecycle()
}

// Queued problems have never been rated. Position orders them per user.
type Queued struct {
	Position int
}

// Active problems have been rated at least once and are due on NextReview.
type Active struct {
	NextReview civil.Date
}

// Mastered is terminal. At is the instant the problem first became mastered.
type Mastered struct {
	At time.Time
}

func (Queued) Status() Status   { return StatusQueued }
func (Active) Status() Status   { return StatusActive }
func (Mastered) Status() Status { return StatusMastered }

func (Queued) lifecycle()   {}
func (Active) lifecycle()   {}
func (Mastered) lifecycle() {}

// LifecycleFromColumns rebuilds a Lifecycle from its flattened, nullable form.
func LifecycleFromColumns(status Status, position *int, next *civil.Date, masteredAt *time.Time) (Lifecycle, error) {
	switch status {
	case StatusQueued:
		if position == nil {
			return nil, fmt.Errorf("queued problem without queue position")
		}
		return Queued{Position: *position}, nil
	case StatusActive:
		if next == nil {
			return nil, fmt.Errorf("active problem without next review date")
		}
		return Active{NextReview: *next}, nil
	case StatusMastered:
		if masteredAt == nil {
			return nil, fmt.Errorf("mastered problem without mastered_at")
		}
		return Mastered{At: *masteredAt}, nil
	default:
		return nil, fmt.Errorf("unknown status %q", status)
	}
}

// Problem is a practice item owned by exactly one user.
type Problem struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	Name             string
	Link             *string
	Difficulty       Difficulty
	Topic            *string
	Source           *string
	Lifecycle        Lifecycle
	AttemptCount     int
	ConsecutiveFives int
	LastRating       *int
	CreatedAt        time.Time

	// Attempts is empty for queue listings.
	Attempts []Attempt
}

func (p Problem) Status() Status {
	if p.Lifecycle == nil {
		return ""
	}
	return p.Lifecycle.Status()
}

// QueuePosition returns nil unless the problem is queued.
func (p Problem) QueuePosition() *int {
	if q, ok := p.Lifecycle.(Queued); ok {
		pos := q.Position
		return &pos
	}
	return nil
}

// NextReviewDate returns nil unless the problem is active.
func (p Problem) NextReviewDate() *civil.Date {
	if a, ok := p.Lifecycle.(Active); ok {
		d := a.NextReview
		return &d
	}
	return nil
}

// MasteredAt returns nil unless the problem is mastered.
func (p Problem) MasteredAt() *time.Time {
	if m, ok := p.Lifecycle.(Mastered); ok {
		at := m.At
		return &at
	}
	return nil
}

// LastAttempt returns the attempt with the greatest AttemptedAt, ties going
// to the greater id.
func (p Problem) LastAttempt() (Attempt, bool) {
	if len(p.Attempts) == 0 {
		return Attempt{}, false
	}
	return slices.MaxFunc(p.Attempts, compareAttempts), true
}

// Attempt is one immutable rating event.
type Attempt struct {
	ID               uuid.UUID
	ProblemID        uuid.UUID
	Rating           int
	AttemptedAt      time.Time
	Notes            *string
	TimeSpentMinutes *int
}

// SortAttempts orders attempts by AttemptedAt, then id, ascending. This
// matches ORDER BY attempted_at, id on the uuid column.
func SortAttempts(attempts []Attempt) {
	slices.SortFunc(attempts, compareAttempts)
}

func compareAttempts(a, b Attempt) int {
	return cmp.Or(
		a.AttemptedAt.Compare(b.AttemptedAt),
		bytes.Compare(a.ID[:], b.ID[:]),
	)
}

// NewProblem holds the caller-supplied fields of a problem to create.
type NewProblem struct {
	Name       string
	Link       *string
	Difficulty Difficulty
	Source     *string
	Topic      *string
}

// Normalize trims the text fields and drops empty optional ones.
func (n NewProblem) Normalize() NewProblem {
	n.Name = strings.TrimSpace(n.Name)
	n.Link = trimOrNil(n.Link)
	n.Source = trimOrNil(n.Source)
	n.Topic = trimOrNil(n.Topic)
	return n
}

// Validate checks all fields and collects all errors.
func (n NewProblem) Validate() error {
	var errs []FieldError
	if strings.TrimSpace(n.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	if !n.Difficulty.IsValid() {
		errs = append(errs, FieldError{Field: "difficulty", Message: "must be Easy, Medium or Hard"})
	}
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}

// ValidateBatch validates every item and reports failures with their index.
// An empty batch is valid.
func ValidateBatch(items []NewProblem) error {
	var errs []FieldError
	for i, item := range items {
		if err := item.Validate(); err != nil {
			ve := err.(*ValidationError)
			for _, fe := range ve.Errors {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("problems[%d].%s", i, fe.Field),
					Message: fe.Message,
				})
			}
		}
	}
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}

// RateParams describes a single rating event.
type RateParams struct {
	ProblemID        uuid.UUID
	Rating           int
	Notes            *string
	TimeSpentMinutes *int
}

// Validate checks all fields and collects all errors.
func (r RateParams) Validate() error {
	var errs []FieldError
	if r.ProblemID == uuid.Nil {
		errs = append(errs, FieldError{Field: "problem_id", Message: "required"})
	}
	if !ValidRating(r.Rating) {
		errs = append(errs, FieldError{Field: "rating", Message: "must be between 1 and 5"})
	}
	if r.TimeSpentMinutes != nil && *r.TimeSpentMinutes < 0 {
		errs = append(errs, FieldError{Field: "time_spent_minutes", Message: "must be non-negative"})
	}
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}

func trimOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
