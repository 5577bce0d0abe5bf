package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shortlyhq/shortly/internal/database"
	"github.com/shortlyhq/shortly/internal/models"
	"github.com/shortlyhq/shortly/internal/slug"
)

// clickLogLimit caps how many log entries a single listing returns.
const clickLogLimit = 100

// LinkRepository defines the storage operations the link service needs.
type LinkRepository interface {
	LinkCounter

	// Create inserts a new link. Returns database.ErrSlugExists when the
	// slug is already taken.
	Create(ctx context.Context, link *models.ShortLink) (*models.ShortLink, error)

	// GetBySlug fetches a link without mutating it.
	GetBySlug(ctx context.Context, slug string) (*models.ShortLink, error)

	// GetByID fetches a link by its opaque identifier.
	GetByID(ctx context.Context, id string) (*models.ShortLink, error)

	// IncrementClicks atomically adds one click and returns the new count.
	// Returns database.ErrClickLimitReached when the ceiling blocks it.
	IncrementClicks(ctx context.Context, id string) (int64, error)

	// AppendClickLog inserts one click log entry.
	AppendClickLog(ctx context.Context, entry *models.ClickLogEntry) error

	// ListClickLogs returns the newest entries for a link.
	ListClickLogs(ctx context.Context, linkID string, limit int) ([]*models.ClickLogEntry, error)

	// ListByOwner returns the owner's links, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*models.ShortLink, error)

	// ListAll returns every link, newest first.
	ListAll(ctx context.Context) ([]*models.ShortLink, error)

	// Delete removes a link and, via cascade, its click logs.
	Delete(ctx context.Context, id string) error
}

// SettingsReader supplies the current policy knobs. Settings are read fresh
// per request rather than cached in process.
type SettingsReader interface {
	Get(ctx context.Context) (*models.SiteSettings, error)
}

// ShortenInput carries one creation request through the policy pipeline.
type ShortenInput struct {
	OriginalURL string
	CustomSlug  string
	MaxClicks   *int64
	ExpiresAt   *time.Time
	Identity    *models.Identity
	ClientIP    string
}

// ClickContext carries the request attributes recorded in the click log.
type ClickContext struct {
	Referrer  string
	UserAgent string
	IP        string
}

// LinkService implements link creation and the redirect state machine.
type LinkService struct {
	links      LinkRepository
	settings   SettingsReader
	limiter    *RateLimiter
	slugLength int
	logger     *slog.Logger
}

func NewLinkService(links LinkRepository, settings SettingsReader, limiter *RateLimiter, slugLength int, logger *slog.Logger) *LinkService {
	return &LinkService{
		links:      links,
		settings:   settings,
		limiter:    limiter,
		slugLength: slugLength,
		logger:     logger,
	}
}

// Shorten validates and creates a new short link.
//
// Checks run in a fixed order so every rejection happens before any
// mutation: target URL, anonymous policy, custom slug permission, custom
// slug shape, rate limit, then the insert whose unique constraint settles
// slug races. Anonymous creations ignore caller limits and get the
// settings-provided click ceiling instead.
func (s *LinkService) Shorten(ctx context.Context, in ShortenInput) (*models.ShortLink, error) {
	const op = "service.LinkService.Shorten"

	if !validTargetURL(in.OriginalURL) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidURL)
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load settings: %w", op, err)
	}

	if in.Identity == nil && !settings.AllowAnonymous {
		return nil, fmt.Errorf("%s: %w", op, ErrAuthRequired)
	}

	if in.CustomSlug != "" {
		if in.Identity == nil {
			return nil, fmt.Errorf("%s: %w", op, ErrCustomSlugForbidden)
		}
		if !slug.IsValid(in.CustomSlug) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidSlug)
		}
	}

	if err := s.limiter.Allow(ctx, in.Identity, in.ClientIP, settings); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	link := &models.ShortLink{
		OriginalURL: in.OriginalURL,
	}

	if in.Identity != nil {
		link.OwnerID = &in.Identity.ID
		if in.MaxClicks != nil && *in.MaxClicks > 0 {
			link.MaxClicks = in.MaxClicks
		}
		link.ExpiresAt = in.ExpiresAt
	} else {
		link.MaxClicks = &settings.AnonMaxClicks
		if in.ClientIP != "" {
			link.CreatorIP = &in.ClientIP
		}
	}

	if in.CustomSlug != "" {
		link.ID = uuid.NewString()
		link.Slug = in.CustomSlug

		created, err := s.links.Create(ctx, link)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to create link: %w", op, err)
		}

		return created, nil
	}

	return s.createWithGeneratedSlug(ctx, link)
}

// createWithGeneratedSlug retries slug generation on collisions. With a
// 26^6 keyspace collisions are rare; the unique constraint stays the only
// arbiter.
func (s *LinkService) createWithGeneratedSlug(ctx context.Context, link *models.ShortLink) (*models.ShortLink, error) {
	const op = "service.LinkService.createWithGeneratedSlug"
	const maxRetries = 5

	for i := 0; i < maxRetries; i++ {
		candidate, err := slug.Generate(s.slugLength)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		link.ID = uuid.NewString()
		link.Slug = candidate

		created, err := s.links.Create(ctx, link)
		if err != nil {
			if errors.Is(err, database.ErrSlugExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to create link: %w", op, err)
		}

		return created, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// Resolve runs the redirect state machine for a slug and, when the link is
// active, performs the click accounting side effect.
//
// Expiry and exhaustion are checked before the increment, so the request
// that pushes clicks to the ceiling still redirects and the next one is the
// first to see ErrLinkExhausted. Click logging is best-effort telemetry: a
// failure is logged and the redirect still succeeds.
func (s *LinkService) Resolve(ctx context.Context, slugParam string, click ClickContext) (*models.ShortLink, error) {
	const op = "service.LinkService.Resolve"

	link, err := s.links.GetBySlug(ctx, slugParam)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to look up slug: %w", op, err)
	}

	if link.Expired(time.Now()) {
		return nil, fmt.Errorf("%s: %w", op, ErrLinkExpired)
	}
	if link.Exhausted() {
		return nil, fmt.Errorf("%s: %w", op, ErrLinkExhausted)
	}

	clicks, err := s.links.IncrementClicks(ctx, link.ID)
	if err != nil {
		// The guard lost a race: another request consumed the final click
		// between the lookup and the increment.
		if errors.Is(err, database.ErrClickLimitReached) {
			return nil, fmt.Errorf("%s: %w", op, ErrLinkExhausted)
		}

		return nil, fmt.Errorf("%s: failed to increment clicks: %w", op, err)
	}
	link.Clicks = clicks

	entry := &models.ClickLogEntry{
		ID:     uuid.NewString(),
		LinkID: link.ID,
	}
	if click.Referrer != "" {
		entry.Referrer = &click.Referrer
	}
	if click.UserAgent != "" {
		entry.UserAgent = &click.UserAgent
	}
	if click.IP != "" {
		entry.IPAddress = &click.IP
	}

	if err := s.links.AppendClickLog(ctx, entry); err != nil {
		s.logger.Error("failed to append click log",
			slog.String("link_id", link.ID),
			slog.Any("err", err),
		)
	}

	return link, nil
}

// OwnerLinks returns the identity's links, newest first.
func (s *LinkService) OwnerLinks(ctx context.Context, identity *models.Identity) ([]*models.ShortLink, error) {
	const op = "service.LinkService.OwnerLinks"

	links, err := s.links.ListByOwner(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list links: %w", op, err)
	}

	return links, nil
}

// Logs returns the newest click log entries for a link the identity owns.
// Admins may read any link's logs. A link owned by someone else reads as
// not found rather than forbidden, matching the lookup-by-ownership shape
// of the listing queries.
func (s *LinkService) Logs(ctx context.Context, linkID string, identity *models.Identity) ([]*models.ClickLogEntry, error) {
	const op = "service.LinkService.Logs"

	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	if !identity.Admin() && !ownedBy(link, identity) {
		return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
	}

	entries, err := s.links.ListClickLogs(ctx, linkID, clickLogLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list click logs: %w", op, err)
	}

	return entries, nil
}

// DeleteOwned removes a link the identity owns. The cascade removes its
// click logs. Links owned by others read as not found.
func (s *LinkService) DeleteOwned(ctx context.Context, linkID string, identity *models.Identity) error {
	const op = "service.LinkService.DeleteOwned"

	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		return fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	if !ownedBy(link, identity) {
		return fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
	}

	if err := s.links.Delete(ctx, linkID); err != nil {
		return fmt.Errorf("%s: failed to delete link: %w", op, err)
	}

	return nil
}

// AdminLinks returns every link in the system, newest first.
func (s *LinkService) AdminLinks(ctx context.Context) ([]*models.ShortLink, error) {
	const op = "service.LinkService.AdminLinks"

	links, err := s.links.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list links: %w", op, err)
	}

	return links, nil
}

// AdminDelete removes any link regardless of ownership.
func (s *LinkService) AdminDelete(ctx context.Context, linkID string) error {
	const op = "service.LinkService.AdminDelete"

	if err := s.links.Delete(ctx, linkID); err != nil {
		return fmt.Errorf("%s: failed to delete link: %w", op, err)
	}

	return nil
}

func ownedBy(link *models.ShortLink, identity *models.Identity) bool {
	return identity != nil && link.OwnerID != nil && *link.OwnerID == identity.ID
}

// validTargetURL accepts only absolute http/https URLs with a host.
func validTargetURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
