package domain

import (
	"cmp"
	"slices"
	"strings"
)

// Both stores sort through these helpers so their listings match exactly.
// Every ordering falls back to created_at then id, which makes it total.

// SortQueued orders by queue position ascending.
func SortQueued(problems []Problem) {
	slices.SortFunc(problems, func(a, b Problem) int {
		return cmp.Or(
			cmp.Compare(positionOf(a), positionOf(b)),
			tiebreak(a, b),
		)
	})
}

// SortActive orders by the last attempt time ascending, then the last attempt
// rating ascending. Problems without attempts go last.
func SortActive(problems []Problem) {
	slices.SortFunc(problems, func(a, b Problem) int {
		la, okA := a.LastAttempt()
		lb, okB := b.LastAttempt()
		switch {
		case okA && okB:
			return cmp.Or(
				la.AttemptedAt.Compare(lb.AttemptedAt),
				cmp.Compare(la.Rating, lb.Rating),
				tiebreak(a, b),
			)
		case okA:
			return -1
		case okB:
			return 1
		}
		return tiebreak(a, b)
	})
}

// SortMastered orders by mastered_at descending.
func SortMastered(problems []Problem) {
	slices.SortFunc(problems, func(a, b Problem) int {
		ma, mb := a.MasteredAt(), b.MasteredAt()
		if ma != nil && mb != nil {
			if c := mb.Compare(*ma); c != 0 {
				return c
			}
		}
		return tiebreak(a, b)
	})
}

// SortAll orders by created_at ascending.
func SortAll(problems []Problem) {
	slices.SortFunc(problems, tiebreak)
}

func tiebreak(a, b Problem) int {
	return cmp.Or(
		a.CreatedAt.Compare(b.CreatedAt),
		strings.Compare(a.ID.String(), b.ID.String()),
	)
}

func positionOf(p Problem) int {
	if pos := p.QueuePosition(); pos != nil {
		return *pos
	}
	return 0
}
