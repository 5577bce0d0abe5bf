package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shortlyhq/shortly/internal/database"
	"github.com/shortlyhq/shortly/internal/models"
	"github.com/stretchr/testify/assert"
)

var settingsColumns = []string{
	"id", "site_name", "site_url", "allow_anonymous",
	"anon_max_links_per_hour", "anon_max_clicks", "user_max_links_per_hour",
}

func setupSettingsRepository(t testing.TB) (*SettingsRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}

	db := sqlx.NewDb(mockDB, "sqlmock")
	repo := NewSettingsRepository(db)

	t.Cleanup(func() {
		mockDB.Close()
		db.Close()
	})

	return repo, mock
}

func TestSettingsRepository_Get(t *testing.T) {
	t.Run("settings not found", func(t *testing.T) {
		repo, mock := setupSettingsRepository(t)

		mock.ExpectQuery(`SELECT (.+) FROM site_settings`).
			WithArgs(settingsRowID).
			WillReturnError(sql.ErrNoRows)

		settings, err := repo.Get(context.TODO())

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrSettingsNotFound)
		assert.Nil(t, settings)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupSettingsRepository(t)

		mock.ExpectQuery(`SELECT (.+) FROM site_settings`).
			WithArgs(settingsRowID).
			WillReturnError(errUnknown)

		settings, err := repo.Get(context.TODO())

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, settings)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupSettingsRepository(t)

		rows := sqlmock.NewRows(settingsColumns).
			AddRow(settingsRowID, "Shortly", "http://localhost:8080", true, 3, 10, 50)

		mock.ExpectQuery(`SELECT (.+) FROM site_settings`).
			WithArgs(settingsRowID).
			WillReturnRows(rows)

		settings, err := repo.Get(context.TODO())

		assert.NoError(t, err)
		assert.NotNil(t, settings)
		assert.Equal(t, "Shortly", settings.SiteName)
		assert.True(t, settings.AllowAnonymous)
		assert.Equal(t, int64(3), settings.AnonMaxLinksPerHour)
		assert.Equal(t, int64(10), settings.AnonMaxClicks)
		assert.Equal(t, int64(50), settings.UserMaxLinksPerHour)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSettingsRepository_Update(t *testing.T) {
	anonMax := int64(5)
	upd := &models.SiteSettingsUpdate{AnonMaxLinksPerHour: &anonMax}

	t.Run("settings not found", func(t *testing.T) {
		repo, mock := setupSettingsRepository(t)

		mock.ExpectQuery(`UPDATE site_settings`).
			WillReturnError(sql.ErrNoRows)

		settings, err := repo.Update(context.TODO(), upd)

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrSettingsNotFound)
		assert.Nil(t, settings)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupSettingsRepository(t)

		rows := sqlmock.NewRows(settingsColumns).
			AddRow(settingsRowID, "Shortly", "http://localhost:8080", true, 5, 10, 50)

		mock.ExpectQuery(`UPDATE site_settings`).
			WillReturnRows(rows)

		settings, err := repo.Update(context.TODO(), upd)

		assert.NoError(t, err)
		assert.NotNil(t, settings)
		assert.Equal(t, int64(5), settings.AnonMaxLinksPerHour)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
