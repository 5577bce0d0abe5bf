package service

import (
	"context"
	"testing"
	"time"

	"github.com/shortlyhq/shortly/internal/database"
	"github.com/shortlyhq/shortly/internal/models"
	"github.com/shortlyhq/shortly/internal/slug"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func setupLinkService(t testing.TB) (*LinkService, *MockLinkRepository, *MockSettingsReader) {
	t.Helper()

	linksMock := new(MockLinkRepository)
	settingsMock := new(MockSettingsReader)
	logger := discardLogger()

	limiter := NewRateLimiter(linksMock, logger)
	svc := NewLinkService(linksMock, settingsMock, limiter, slug.DefaultLength, logger)

	t.Cleanup(func() {
		linksMock.AssertExpectations(t)
		settingsMock.AssertExpectations(t)
	})

	return svc, linksMock, settingsMock
}

func TestLinkService_Shorten(t *testing.T) {
	ctx := context.Background()
	identity := &models.Identity{ID: "user1", Role: models.RoleUser}

	t.Run("invalid url", func(t *testing.T) {
		svc, _, _ := setupLinkService(t)

		for _, raw := range []string{"", "not a url", "ftp://example.com", "https://", "/relative/path"} {
			link, err := svc.Shorten(ctx, ShortenInput{OriginalURL: raw})

			assert.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidURL)
			assert.Nil(t, link)
		}
	})

	t.Run("settings error", func(t *testing.T) {
		svc, _, settingsMock := setupLinkService(t)

		settingsMock.On("Get", ctx).Once().Return(nil, errUnknown)

		link, err := svc.Shorten(ctx, ShortenInput{OriginalURL: "https://example.com"})

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, link)
	})

	t.Run("anonymous creation disabled", func(t *testing.T) {
		svc, _, settingsMock := setupLinkService(t)

		settings := defaultSettings()
		settings.AllowAnonymous = false
		settingsMock.On("Get", ctx).Once().Return(settings, nil)

		link, err := svc.Shorten(ctx, ShortenInput{OriginalURL: "https://example.com"})

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrAuthRequired)
		assert.Nil(t, link)
	})

	t.Run("custom slug requires identity", func(t *testing.T) {
		svc, _, settingsMock := setupLinkService(t)

		settingsMock.On("Get", ctx).Once().Return(defaultSettings(), nil)

		link, err := svc.Shorten(ctx, ShortenInput{
			OriginalURL: "https://example.com",
			CustomSlug:  "promo",
		})

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrCustomSlugForbidden)
		assert.Nil(t, link)
	})

	t.Run("invalid custom slug", func(t *testing.T) {
		svc, _, settingsMock := setupLinkService(t)

		settingsMock.On("Get", ctx).Once().Return(defaultSettings(), nil)

		link, err := svc.Shorten(ctx, ShortenInput{
			OriginalURL: "https://example.com",
			CustomSlug:  "has spaces",
			Identity:    identity,
		})

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidSlug)
		assert.Nil(t, link)
	})

	t.Run("anonymous rate limited", func(t *testing.T) {
		svc, linksMock, settingsMock := setupLinkService(t)

		settingsMock.On("Get", ctx).Once().Return(defaultSettings(), nil)
		linksMock.On("CountRecentByIP", ctx, "10.0.0.1", mock.Anything).
			Once().
			Return(int64(3), nil)

		link, err := svc.Shorten(ctx, ShortenInput{
			OriginalURL: "https://example.com",
			ClientIP:    "10.0.0.1",
		})

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.Nil(t, link)
	})

	t.Run("authenticated rate limited", func(t *testing.T) {
		svc, linksMock, settingsMock := setupLinkService(t)

		settingsMock.On("Get", ctx).Once().Return(defaultSettings(), nil)
		linksMock.On("CountRecentByOwner", ctx, "user1", mock.Anything).
			Once().
			Return(int64(50), nil)

		link, err := svc.Shorten(ctx, ShortenInput{
			OriginalURL: "https://example.com",
			Identity:    identity,
		})

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.Nil(t, link)
	})

	t.Run("anonymous link gets settings click ceiling", func(t *testing.T) {
		svc, linksMock, settingsMock := setupLinkService(t)

		callerMax := int64(1000)
		expiresAt := time.Now().Add(time.Hour)

		settingsMock.On("Get", ctx).Once().Return(defaultSettings(), nil)
		linksMock.On("CountRecentByIP", ctx, "10.0.0.1", mock.Anything).
			Once().
			Return(int64(0), nil)
		linksMock.On("Create", ctx, mock.MatchedBy(func(link *models.ShortLink) bool {
			return link.OwnerID == nil &&
				link.CreatorIP != nil && *link.CreatorIP == "10.0.0.1" &&
				link.MaxClicks != nil && *link.MaxClicks == 10 &&
				link.ExpiresAt == nil &&
				slug.IsValid(link.Slug)
		})).Once().Return(&models.ShortLink{Slug: "abc123"}, nil)

		link, err := svc.Shorten(ctx, ShortenInput{
			OriginalURL: "https://example.com",
			MaxClicks:   &callerMax,
			ExpiresAt:   &expiresAt,
			ClientIP:    "10.0.0.1",
		})

		assert.NoError(t, err)
		assert.NotNil(t, link)
	})

	t.Run("authenticated link honors caller limits", func(t *testing.T) {
		svc, linksMock, settingsMock := setupLinkService(t)

		maxClicks := int64(25)
		expiresAt := time.Now().Add(time.Hour)

		settingsMock.On("Get", ctx).Once().Return(defaultSettings(), nil)
		linksMock.On("CountRecentByOwner", ctx, "user1", mock.Anything).
			Once().
			Return(int64(0), nil)
		linksMock.On("Create", ctx, mock.MatchedBy(func(link *models.ShortLink) bool {
			return link.OwnerID != nil && *link.OwnerID == "user1" &&
				link.CreatorIP == nil &&
				link.MaxClicks != nil && *link.MaxClicks == 25 &&
				link.ExpiresAt != nil && link.ExpiresAt.Equal(expiresAt)
		})).Once().Return(&models.ShortLink{Slug: "abc123"}, nil)

		link, err := svc.Shorten(ctx, ShortenInput{
			OriginalURL: "https://example.com",
			MaxClicks:   &maxClicks,
			ExpiresAt:   &expiresAt,
			Identity:    identity,
		})

		assert.NoError(t, err)
		assert.NotNil(t, link)
	})

	t.Run("non-positive max clicks means unlimited", func(t *testing.T) {
		svc, linksMock, settingsMock := setupLinkService(t)

		maxClicks := int64(0)

		settingsMock.On("Get", ctx).Once().Return(defaultSettings(), nil)
		linksMock.On("CountRecentByOwner", ctx, "user1", mock.Anything).
			Once().
			Return(int64(0), nil)
		linksMock.On("Create", ctx, mock.MatchedBy(func(link *models.ShortLink) bool {
			return link.MaxClicks == nil
		})).Once().Return(&models.ShortLink{Slug: "abc123"}, nil)

		link, err := svc.Shorten(ctx, ShortenInput{
			OriginalURL: "https://example.com",
			MaxClicks:   &maxClicks,
			Identity:    identity,
		})

		assert.NoError(t, err)
		assert.NotNil(t, link)
	})

	t.Run("custom slug taken", func(t *testing.T) {
		svc, linksMock, settingsMock := setupLinkService(t)

		settingsMock.On("Get", ctx).Once().Return(defaultSettings(), nil)
		linksMock.On("CountRecentByOwner", ctx, "user1", mock.Anything).
			Once().
			Return(int64(0), nil)
		linksMock.On("Create", ctx, mock.Anything).
			Once().
			Return(nil, database.ErrSlugExists)

		link, err := svc.Shorten(ctx, ShortenInput{
			OriginalURL: "https://example.com",
			CustomSlug:  "promo",
			Identity:    identity,
		})

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrSlugExists)
		assert.Nil(t, link)
	})

	t.Run("maximum retries error", func(t *testing.T) {
		svc, linksMock, settingsMock := setupLinkService(t)

		settingsMock.On("Get", ctx).Once().Return(defaultSettings(), nil)
		linksMock.On("CountRecentByOwner", ctx, "user1", mock.Anything).
			Once().
			Return(int64(0), nil)
		linksMock.On("Create", ctx, mock.Anything).
			Times(5).
			Return(nil, database.ErrSlugExists)

		link, err := svc.Shorten(ctx, ShortenInput{
			OriginalURL: "https://example.com",
			Identity:    identity,
		})

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
		assert.Nil(t, link)
	})

	t.Run("success with generated slug", func(t *testing.T) {
		svc, linksMock, settingsMock := setupLinkService(t)

		settingsMock.On("Get", ctx).Once().Return(defaultSettings(), nil)
		linksMock.On("CountRecentByOwner", ctx, "user1", mock.Anything).
			Once().
			Return(int64(0), nil)
		linksMock.On("Create", ctx, mock.MatchedBy(func(link *models.ShortLink) bool {
			return link.ID != "" && len(link.Slug) == slug.DefaultLength
		})).Once().Return(&models.ShortLink{Slug: "abc123", OriginalURL: "https://example.com"}, nil)

		link, err := svc.Shorten(ctx, ShortenInput{
			OriginalURL: "https://example.com",
			Identity:    identity,
		})

		assert.NoError(t, err)
		assert.NotNil(t, link)
		assert.Equal(t, "abc123", link.Slug)
	})
}

func TestLinkService_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("link not found", func(t *testing.T) {
		svc, linksMock, _ := setupLinkService(t)

		linksMock.On("GetBySlug", ctx, "missing").
			Once().
			Return(nil, database.ErrLinkNotFound)

		link, err := svc.Resolve(ctx, "missing", ClickContext{})

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrLinkNotFound)
		assert.Nil(t, link)
	})

	t.Run("expired link", func(t *testing.T) {
		svc, linksMock, _ := setupLinkService(t)

		expiresAt := time.Now().Add(-time.Minute)
		linksMock.On("GetBySlug", ctx, "abc123").
			Once().
			Return(&models.ShortLink{ID: "id1", Slug: "abc123", ExpiresAt: &expiresAt}, nil)

		link, err := svc.Resolve(ctx, "abc123", ClickContext{})

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrLinkExpired)
		assert.Nil(t, link)
	})

	t.Run("expiry wins over exhaustion", func(t *testing.T) {
		svc, linksMock, _ := setupLinkService(t)

		expiresAt := time.Now().Add(-time.Minute)
		maxClicks := int64(10)
		linksMock.On("GetBySlug", ctx, "abc123").
			Once().
			Return(&models.ShortLink{
				ID:        "id1",
				Slug:      "abc123",
				Clicks:    10,
				MaxClicks: &maxClicks,
				ExpiresAt: &expiresAt,
			}, nil)

		link, err := svc.Resolve(ctx, "abc123", ClickContext{})

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrLinkExpired)
		assert.Nil(t, link)
	})

	t.Run("exhausted link", func(t *testing.T) {
		svc, linksMock, _ := setupLinkService(t)

		maxClicks := int64(10)
		linksMock.On("GetBySlug", ctx, "abc123").
			Once().
			Return(&models.ShortLink{ID: "id1", Slug: "abc123", Clicks: 10, MaxClicks: &maxClicks}, nil)

		link, err := svc.Resolve(ctx, "abc123", ClickContext{})

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrLinkExhausted)
		assert.Nil(t, link)
	})

	t.Run("increment race loses final click", func(t *testing.T) {
		svc, linksMock, _ := setupLinkService(t)

		maxClicks := int64(10)
		linksMock.On("GetBySlug", ctx, "abc123").
			Once().
			Return(&models.ShortLink{ID: "id1", Slug: "abc123", Clicks: 9, MaxClicks: &maxClicks}, nil)
		linksMock.On("IncrementClicks", ctx, "id1").
			Once().
			Return(int64(0), database.ErrClickLimitReached)

		link, err := svc.Resolve(ctx, "abc123", ClickContext{})

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrLinkExhausted)
		assert.Nil(t, link)
	})

	t.Run("final click still redirects", func(t *testing.T) {
		svc, linksMock, _ := setupLinkService(t)

		maxClicks := int64(10)
		linksMock.On("GetBySlug", ctx, "abc123").
			Once().
			Return(&models.ShortLink{
				ID:          "id1",
				Slug:        "abc123",
				OriginalURL: "https://example.com",
				Clicks:      9,
				MaxClicks:   &maxClicks,
			}, nil)
		linksMock.On("IncrementClicks", ctx, "id1").
			Once().
			Return(int64(10), nil)
		linksMock.On("AppendClickLog", ctx, mock.Anything).
			Once().
			Return(nil)

		link, err := svc.Resolve(ctx, "abc123", ClickContext{})

		assert.NoError(t, err)
		assert.NotNil(t, link)
		assert.Equal(t, int64(10), link.Clicks)
	})

	t.Run("click log failure does not block redirect", func(t *testing.T) {
		svc, linksMock, _ := setupLinkService(t)

		linksMock.On("GetBySlug", ctx, "abc123").
			Once().
			Return(&models.ShortLink{ID: "id1", Slug: "abc123", OriginalURL: "https://example.com"}, nil)
		linksMock.On("IncrementClicks", ctx, "id1").
			Once().
			Return(int64(1), nil)
		linksMock.On("AppendClickLog", ctx, mock.Anything).
			Once().
			Return(errUnknown)

		link, err := svc.Resolve(ctx, "abc123", ClickContext{})

		assert.NoError(t, err)
		assert.NotNil(t, link)
	})

	t.Run("click context recorded", func(t *testing.T) {
		svc, linksMock, _ := setupLinkService(t)

		linksMock.On("GetBySlug", ctx, "abc123").
			Once().
			Return(&models.ShortLink{ID: "id1", Slug: "abc123", OriginalURL: "https://example.com"}, nil)
		linksMock.On("IncrementClicks", ctx, "id1").
			Once().
			Return(int64(1), nil)
		linksMock.On("AppendClickLog", ctx, mock.MatchedBy(func(entry *models.ClickLogEntry) bool {
			return entry.LinkID == "id1" &&
				entry.Referrer != nil && *entry.Referrer == "https://ref.example" &&
				entry.UserAgent != nil && *entry.UserAgent == "curl/8.0" &&
				entry.IPAddress != nil && *entry.IPAddress == "10.0.0.1"
		})).Once().Return(nil)

		link, err := svc.Resolve(ctx, "abc123", ClickContext{
			Referrer:  "https://ref.example",
			UserAgent: "curl/8.0",
			IP:        "10.0.0.1",
		})

		assert.NoError(t, err)
		assert.NotNil(t, link)
	})

	t.Run("empty click attributes stay null", func(t *testing.T) {
		svc, linksMock, _ := setupLinkService(t)

		linksMock.On("GetBySlug", ctx, "abc123").
			Once().
			Return(&models.ShortLink{ID: "id1", Slug: "abc123", OriginalURL: "https://example.com"}, nil)
		linksMock.On("IncrementClicks", ctx, "id1").
			Once().
			Return(int64(1), nil)
		linksMock.On("AppendClickLog", ctx, mock.MatchedBy(func(entry *models.ClickLogEntry) bool {
			return entry.Referrer == nil && entry.UserAgent == nil && entry.IPAddress == nil
		})).Once().Return(nil)

		link, err := svc.Resolve(ctx, "abc123", ClickContext{})

		assert.NoError(t, err)
		assert.NotNil(t, link)
	})
}

func TestLinkService_Logs(t *testing.T) {
	ctx := context.Background()
	owner := &models.Identity{ID: "user1", Role: models.RoleUser}
	admin := &models.Identity{ID: "admin1", Role: models.RoleAdmin}
	ownerID := "user1"

	t.Run("link not found", func(t *testing.T) {
		svc, linksMock, _ := setupLinkService(t)

		linksMock.On("GetByID", ctx, "missing").
			Once().
			Return(nil, database.ErrLinkNotFound)

		entries, err := svc.Logs(ctx, "missing", owner)

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrLinkNotFound)
		assert.Nil(t, entries)
	})

	t.Run("foreign link reads as not found", func(t *testing.T) {
		svc, linksMock, _ := setupLinkService(t)

		otherID := "user2"
		linksMock.On("GetByID", ctx, "id1").
			Once().
			Return(&models.ShortLink{ID: "id1", OwnerID: &otherID}, nil)

		entries, err := svc.Logs(ctx, "id1", owner)

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrLinkNotFound)
		assert.Nil(t, entries)
	})

	t.Run("admin reads any link", func(t *testing.T) {
		svc, linksMock, _ := setupLinkService(t)

		linksMock.On("GetByID", ctx, "id1").
			Once().
			Return(&models.ShortLink{ID: "id1", OwnerID: &ownerID}, nil)
		linksMock.On("ListClickLogs", ctx, "id1", clickLogLimit).
			Once().
			Return([]*models.ClickLogEntry{{ID: "log1", LinkID: "id1"}}, nil)

		entries, err := svc.Logs(ctx, "id1", admin)

		assert.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("success", func(t *testing.T) {
		svc, linksMock, _ := setupLinkService(t)

		linksMock.On("GetByID", ctx, "id1").
			Once().
			Return(&models.ShortLink{ID: "id1", OwnerID: &ownerID}, nil)
		linksMock.On("ListClickLogs", ctx, "id1", clickLogLimit).
			Once().
			Return([]*models.ClickLogEntry{{ID: "log1", LinkID: "id1"}}, nil)

		entries, err := svc.Logs(ctx, "id1", owner)

		assert.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestLinkService_DeleteOwned(t *testing.T) {
	ctx := context.Background()
	owner := &models.Identity{ID: "user1", Role: models.RoleUser}
	ownerID := "user1"

	t.Run("foreign link reads as not found", func(t *testing.T) {
		svc, linksMock, _ := setupLinkService(t)

		otherID := "user2"
		linksMock.On("GetByID", ctx, "id1").
			Once().
			Return(&models.ShortLink{ID: "id1", OwnerID: &otherID}, nil)

		err := svc.DeleteOwned(ctx, "id1", owner)

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrLinkNotFound)
	})

	t.Run("anonymous link reads as not found", func(t *testing.T) {
		svc, linksMock, _ := setupLinkService(t)

		linksMock.On("GetByID", ctx, "id1").
			Once().
			Return(&models.ShortLink{ID: "id1"}, nil)

		err := svc.DeleteOwned(ctx, "id1", owner)

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrLinkNotFound)
	})

	t.Run("success", func(t *testing.T) {
		svc, linksMock, _ := setupLinkService(t)

		linksMock.On("GetByID", ctx, "id1").
			Once().
			Return(&models.ShortLink{ID: "id1", OwnerID: &ownerID}, nil)
		linksMock.On("Delete", ctx, "id1").
			Once().
			Return(nil)

		err := svc.DeleteOwned(ctx, "id1", owner)

		assert.NoError(t, err)
	})
}

func TestLinkService_AdminDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("link not found", func(t *testing.T) {
		svc, linksMock, _ := setupLinkService(t)

		linksMock.On("Delete", ctx, "missing").
			Once().
			Return(database.ErrLinkNotFound)

		err := svc.AdminDelete(ctx, "missing")

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrLinkNotFound)
	})

	t.Run("success", func(t *testing.T) {
		svc, linksMock, _ := setupLinkService(t)

		linksMock.On("Delete", ctx, "id1").
			Once().
			Return(nil)

		err := svc.AdminDelete(ctx, "id1")

		assert.NoError(t, err)
	})
}
