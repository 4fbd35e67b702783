package domain

import "strings"

// Difficulty is the self-declared difficulty of a practice problem.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

func (d Difficulty) String() string { return string(d) }

func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ParseDifficulty matches s case-insensitively against the known difficulties.
// A blank string yields DifficultyMedium.
func ParseDifficulty(s string) (Difficulty, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DifficultyMedium, true
	}
	for _, d := range []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard} {
		if strings.EqualFold(s, string(d)) {
			return d, true
		}
	}
	return Difficulty(s), false
}

// Status is the flattened lifecycle state of a problem as persisted.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusActive   Status = "active"
	StatusMastered Status = "mastered"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusActive, StatusMastered:
		return true
	}
	return false
}

// Rating bounds for a single attempt.
const (
	MinRating = 1
	MaxRating = 5
)

// ValidRating reports whether r is within MinRating..MaxRating.
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}
