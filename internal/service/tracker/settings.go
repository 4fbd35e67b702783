package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mpblatz/repeet/internal/domain"
)

// Accepted themes.
var themes = []string{"dark", "light"}

// UpdateSettingsInput holds the preferences to change. Nil fields are kept.
type UpdateSettingsInput struct {
	DailyGoal    *int
	EnableAudits *bool
	Theme        *string
}

// Validate checks all fields and collects all errors.
func (i UpdateSettingsInput) Validate() error {
	var errs []domain.FieldError
	if i.DailyGoal != nil && (*i.DailyGoal < 1 || *i.DailyGoal > 50) {
		errs = append(errs, domain.FieldError{Field: "daily_goal", Message: "must be between 1 and 50"})
	}
	if i.Theme != nil {
		if !slices.Contains(themes, strings.ToLower(strings.TrimSpace(*i.Theme))) {
			errs = append(errs, domain.FieldError{Field: "theme", Message: "must be dark or light"})
		}
	}
	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}

// GetSettings returns the caller's settings, defaults included.
func (s *Service) GetSettings(ctx context.Context) (domain.UserSettings, error) {
	b, _, err := s.backend(ctx)
	if err != nil {
		return domain.UserSettings{}, err
	}
	return b.Settings(ctx)
}

// UpdateSettings applies the non-nil fields of input. The audit state is
// left untouched.
func (s *Service) UpdateSettings(ctx context.Context, input UpdateSettingsInput) (domain.UserSettings, error) {
	if err := input.Validate(); err != nil {
		return domain.UserSettings{}, err
	}

	b, scope, err := s.backend(ctx)
	if err != nil {
		return domain.UserSettings{}, err
	}

	// Shares the audit lock so a concurrent draw cannot overwrite the change.
	unlock := s.locks.Lock("audit/" + scope)
	defer unlock()

	settings, err := b.Settings(ctx)
	if err != nil {
		return domain.UserSettings{}, fmt.Errorf("load settings: %w", err)
	}
	if input.DailyGoal != nil {
		settings.DailyGoal = *input.DailyGoal
	}
	if input.EnableAudits != nil {
		settings.EnableAudits = *input.EnableAudits
	}
	if input.Theme != nil {
		settings.Theme = strings.ToLower(strings.TrimSpace(*input.Theme))
	}

	if err := b.SaveSettings(ctx, settings); err != nil {
		return domain.UserSettings{}, fmt.Errorf("save settings: %w", err)
	}

	s.log.InfoContext(ctx, "settings updated", slog.String("scope", scope))
	return settings, nil
}
