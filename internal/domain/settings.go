package domain

import (
	"github.com/golang-sql/civil"
	"github.com/google/uuid"
)

// Default values for a user that has never saved settings.
const (
	DefaultDailyGoal = 3
	DefaultTheme     = "dark"
)

// UserSettings is the per-user singleton holding audit state and preferences.
type UserSettings struct {
	UserID         uuid.UUID
	LastAuditDate  *civil.Date
	AuditProblemID *uuid.UUID
	DailyGoal      int
	EnableAudits   bool
	Theme          string
}

// DefaultUserSettings returns the settings used before the first save.
func DefaultUserSettings(userID uuid.UUID) UserSettings {
	return UserSettings{
		UserID:       userID,
		DailyGoal:    DefaultDailyGoal,
		EnableAudits: true,
		Theme:        DefaultTheme,
	}
}

// Stats is a summary snapshot of a user's problems.
type Stats struct {
	Total       int
	Queued      int
	Active      int
	Mastered    int
	DueToday    int
	MasteryRate int
}

// Dashboard bundles every view the main screen needs.
type Dashboard struct {
	Queue    []Problem
	Review   []Problem
	Mastered []Problem
	Stats    Stats
	Audit    *Problem
}
