package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shortlyhq/shortly/internal/database"
	"github.com/shortlyhq/shortly/internal/models"
)

// settingsRowID is the key of the singleton site settings row. The row is
// seeded by the initial migration and only ever updated in place.
const settingsRowID = "default"

type settingsRecord struct {
	ID                  string `db:"id"`
	SiteName            string `db:"site_name"`
	SiteURL             string `db:"site_url"`
	AllowAnonymous      bool   `db:"allow_anonymous"`
	AnonMaxLinksPerHour int64  `db:"anon_max_links_per_hour"`
	AnonMaxClicks       int64  `db:"anon_max_clicks"`
	UserMaxLinksPerHour int64  `db:"user_max_links_per_hour"`
}

func (r *settingsRecord) ToSiteSettings() *models.SiteSettings {
	return &models.SiteSettings{
		SiteName:            r.SiteName,
		SiteURL:             r.SiteURL,
		AllowAnonymous:      r.AllowAnonymous,
		AnonMaxLinksPerHour: r.AnonMaxLinksPerHour,
		AnonMaxClicks:       r.AnonMaxClicks,
		UserMaxLinksPerHour: r.UserMaxLinksPerHour,
	}
}

// SettingsRepository stores the singleton SiteSettings record.
type SettingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{
		db: db,
	}
}

// Get reads the singleton settings row.
func (r *SettingsRepository) Get(ctx context.Context) (*models.SiteSettings, error) {
	const op = "database.postgres.SettingsRepository.Get"

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rec := new(settingsRecord)
	query := `SELECT * FROM site_settings WHERE id = $1`

	err := r.db.GetContext(ctx, rec, query, settingsRowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrSettingsNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get settings record: %w", op, wrapStorageErr(err))
	}

	return rec.ToSiteSettings(), nil
}

// Update applies a partial update in place and returns the stored settings.
// Nil fields leave the corresponding column unchanged.
func (r *SettingsRepository) Update(ctx context.Context, upd *models.SiteSettingsUpdate) (*models.SiteSettings, error) {
	const op = "database.postgres.SettingsRepository.Update"

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rec := new(settingsRecord)
	query := `UPDATE site_settings
		SET site_name = COALESCE($1, site_name),
			site_url = COALESCE($2, site_url),
			allow_anonymous = COALESCE($3, allow_anonymous),
			anon_max_links_per_hour = COALESCE($4, anon_max_links_per_hour),
			anon_max_clicks = COALESCE($5, anon_max_clicks),
			user_max_links_per_hour = COALESCE($6, user_max_links_per_hour)
		WHERE id = $7
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query,
		upd.SiteName, upd.SiteURL, upd.AllowAnonymous,
		upd.AnonMaxLinksPerHour, upd.AnonMaxClicks, upd.UserMaxLinksPerHour,
		settingsRowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrSettingsNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update settings record: %w", op, wrapStorageErr(err))
	}

	return rec.ToSiteSettings(), nil
}
