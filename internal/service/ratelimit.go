package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shortlyhq/shortly/internal/models"
)

// window is the fixed rolling quota window, evaluated at request time.
const window = time.Hour

// LinkCounter is the slice of the link store the rate limiter needs.
type LinkCounter interface {
	// CountRecentByIP counts anonymous links created from ip at or after since.
	CountRecentByIP(ctx context.Context, ip string, since time.Time) (int64, error)

	// CountRecentByOwner counts links owned by ownerID created at or after since.
	CountRecentByOwner(ctx context.Context, ownerID string, since time.Time) (int64, error)
}

// RateLimiter decides, at creation time, whether the requester may create a
// new link. It re-counts the rolling window on every request instead of
// keeping token buckets: a count query per creation is cheap at this scale
// and the window boundary is exact.
//
// Counting runs concurrently with inserts, so a burst from one identity can
// overshoot the quota by the number of requests in flight. Enforcement is
// eventual, not strict.
type RateLimiter struct {
	links  LinkCounter
	logger *slog.Logger
}

func NewRateLimiter(links LinkCounter, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		links:  links,
		logger: logger,
	}
}

// Allow checks the requester's creation quota against settings. It returns
// ErrAuthRequired when anonymous creation is disabled and no identity is
// present, ErrRateLimited when the window count has reached the quota, and
// nil otherwise.
func (rl *RateLimiter) Allow(ctx context.Context, identity *models.Identity, ip string, settings *models.SiteSettings) error {
	const op = "service.RateLimiter.Allow"

	if identity == nil && !settings.AllowAnonymous {
		return fmt.Errorf("%s: %w", op, ErrAuthRequired)
	}

	since := time.Now().Add(-window)

	if identity != nil {
		count, err := rl.links.CountRecentByOwner(ctx, identity.ID, since)
		if err != nil {
			return fmt.Errorf("%s: failed to count recent links: %w", op, err)
		}

		if count >= settings.UserMaxLinksPerHour {
			return fmt.Errorf("%s: %w", op, ErrRateLimited)
		}

		return nil
	}

	if ip == "" {
		// Without an identifier there is nothing to count against. Known
		// gap: trivially bypassed by omitting forwarding headers.
		rl.logger.Warn("anonymous creation without resolvable ip, skipping rate limit")
		return nil
	}

	count, err := rl.links.CountRecentByIP(ctx, ip, since)
	if err != nil {
		return fmt.Errorf("%s: failed to count recent links: %w", op, err)
	}

	if count >= settings.AnonMaxLinksPerHour {
		return fmt.Errorf("%s: %w", op, ErrRateLimited)
	}

	return nil
}
