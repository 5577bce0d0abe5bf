package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/shortlyhq/shortly/internal/models"
	"github.com/stretchr/testify/mock"
)

var errUnknown = errors.New("unknown error")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultSettings() *models.SiteSettings {
	return &models.SiteSettings{
		SiteName:            "Shortly",
		SiteURL:             "http://localhost:8080",
		AllowAnonymous:      true,
		AnonMaxLinksPerHour: 3,
		AnonMaxClicks:       10,
		UserMaxLinksPerHour: 50,
	}
}

type MockLinkRepository struct {
	mock.Mock
}

func (r *MockLinkRepository) Create(ctx context.Context, link *models.ShortLink) (*models.ShortLink, error) {
	args := r.Called(ctx, link)
	created, _ := args.Get(0).(*models.ShortLink)
	return created, args.Error(1)
}

func (r *MockLinkRepository) GetBySlug(ctx context.Context, slug string) (*models.ShortLink, error) {
	args := r.Called(ctx, slug)
	link, _ := args.Get(0).(*models.ShortLink)
	return link, args.Error(1)
}

func (r *MockLinkRepository) GetByID(ctx context.Context, id string) (*models.ShortLink, error) {
	args := r.Called(ctx, id)
	link, _ := args.Get(0).(*models.ShortLink)
	return link, args.Error(1)
}

func (r *MockLinkRepository) IncrementClicks(ctx context.Context, id string) (int64, error) {
	args := r.Called(ctx, id)
	clicks, _ := args.Get(0).(int64)
	return clicks, args.Error(1)
}

func (r *MockLinkRepository) AppendClickLog(ctx context.Context, entry *models.ClickLogEntry) error {
	args := r.Called(ctx, entry)
	return args.Error(0)
}

func (r *MockLinkRepository) ListClickLogs(ctx context.Context, linkID string, limit int) ([]*models.ClickLogEntry, error) {
	args := r.Called(ctx, linkID, limit)
	entries, _ := args.Get(0).([]*models.ClickLogEntry)
	return entries, args.Error(1)
}

func (r *MockLinkRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.ShortLink, error) {
	args := r.Called(ctx, ownerID)
	links, _ := args.Get(0).([]*models.ShortLink)
	return links, args.Error(1)
}

func (r *MockLinkRepository) ListAll(ctx context.Context) ([]*models.ShortLink, error) {
	args := r.Called(ctx)
	links, _ := args.Get(0).([]*models.ShortLink)
	return links, args.Error(1)
}

func (r *MockLinkRepository) Delete(ctx context.Context, id string) error {
	args := r.Called(ctx, id)
	return args.Error(0)
}

func (r *MockLinkRepository) CountRecentByIP(ctx context.Context, ip string, since time.Time) (int64, error) {
	args := r.Called(ctx, ip, since)
	count, _ := args.Get(0).(int64)
	return count, args.Error(1)
}

func (r *MockLinkRepository) CountRecentByOwner(ctx context.Context, ownerID string, since time.Time) (int64, error) {
	args := r.Called(ctx, ownerID, since)
	count, _ := args.Get(0).(int64)
	return count, args.Error(1)
}

type MockSettingsReader struct {
	mock.Mock
}

func (r *MockSettingsReader) Get(ctx context.Context) (*models.SiteSettings, error) {
	args := r.Called(ctx)
	settings, _ := args.Get(0).(*models.SiteSettings)
	return settings, args.Error(1)
}

type MockSettingsRepository struct {
	mock.Mock
}

func (r *MockSettingsRepository) Get(ctx context.Context) (*models.SiteSettings, error) {
	args := r.Called(ctx)
	settings, _ := args.Get(0).(*models.SiteSettings)
	return settings, args.Error(1)
}

func (r *MockSettingsRepository) Update(ctx context.Context, upd *models.SiteSettingsUpdate) (*models.SiteSettings, error) {
	args := r.Called(ctx, upd)
	settings, _ := args.Get(0).(*models.SiteSettings)
	return settings, args.Error(1)
}
