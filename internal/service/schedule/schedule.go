// Package schedule implements the fixed-offset review schedule and the
// queued/active/mastered state machine shared by every problem store.
package schedule

import (
	"time"

	"github.com/golang-sql/civil"

	"github.com/mpblatz/repeet/internal/domain"
)

// MasteryStreak is the number of consecutive top ratings that masters a problem.
const MasteryStreak = 2

// NextReviewDate returns today + rating days.
func NextReviewDate(rating int, today civil.Date) civil.Date {
	return today.AddDays(rating)
}

// Apply returns p as it is after being rated. It does not append the attempt;
// callers persist the attempt and the returned state together.
//
// The first rating always moves a queued problem to active. A top rating
// extends the streak and any other rating resets it; reaching MasteryStreak
// masters the problem, stamped with now. Mastered problems stay mastered.
func Apply(p domain.Problem, rating int, now time.Time, today civil.Date) (domain.Problem, error) {
	if !domain.ValidRating(rating) {
		return p, domain.NewValidationError("rating", "must be between 1 and 5")
	}

	streak := 0
	if rating == domain.MaxRating {
		streak = p.ConsecutiveFives + 1
	}

	switch p.Lifecycle.(type) {
	case domain.Mastered:
		// terminal
	case domain.Queued:
		p.Lifecycle = domain.Active{NextReview: NextReviewDate(rating, today)}
	default:
		if streak >= MasteryStreak {
			p.Lifecycle = domain.Mastered{At: now}
		} else {
			p.Lifecycle = domain.Active{NextReview: NextReviewDate(rating, today)}
		}
	}

	p.ConsecutiveFives = streak
	p.AttemptCount++
	p.LastRating = &rating

	return p, nil
}
