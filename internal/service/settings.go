package service

import (
	"context"
	"fmt"

	"github.com/shortlyhq/shortly/internal/models"
)

// SettingsRepository stores the singleton site settings record.
type SettingsRepository interface {
	// Get reads the singleton settings row.
	Get(ctx context.Context) (*models.SiteSettings, error)

	// Update applies a partial update in place. Nil fields are left
	// unchanged.
	Update(ctx context.Context, upd *models.SiteSettingsUpdate) (*models.SiteSettings, error)
}

// SettingsService is the accessor for the mutable policy knobs. It holds no
// business logic beyond validating numeric fields before persisting.
type SettingsService struct {
	repo SettingsRepository
}

func NewSettingsService(repo SettingsRepository) *SettingsService {
	return &SettingsService{
		repo: repo,
	}
}

// Get returns the current site settings.
func (s *SettingsService) Get(ctx context.Context) (*models.SiteSettings, error) {
	const op = "service.SettingsService.Get"

	settings, err := s.repo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get settings: %w", op, err)
	}

	return settings, nil
}

// Update validates and applies a partial settings update. Quota and click
// ceiling fields must be at least 1 when present.
func (s *SettingsService) Update(ctx context.Context, upd *models.SiteSettingsUpdate) (*models.SiteSettings, error) {
	const op = "service.SettingsService.Update"

	for _, field := range []*int64{upd.AnonMaxLinksPerHour, upd.AnonMaxClicks, upd.UserMaxLinksPerHour} {
		if field != nil && *field < 1 {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidSettings)
		}
	}

	settings, err := s.repo.Update(ctx, upd)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to update settings: %w", op, err)
	}

	return settings, nil
}
