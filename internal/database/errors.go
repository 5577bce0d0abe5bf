package database

import "errors"

var (
	// ErrSlugExists is returned when an insert loses the race for a slug.
	// The unique constraint on short_links.slug is the sole arbiter.
	ErrSlugExists = errors.New("slug exists")
	// ErrLinkNotFound is returned when no link matches the given slug or id.
	ErrLinkNotFound = errors.New("link not found")
	// ErrClickLimitReached is returned by IncrementClicks when the link's
	// click ceiling prevents the increment.
	ErrClickLimitReached = errors.New("click limit reached")
	// ErrSettingsNotFound is returned when the site settings row is missing.
	// The row is seeded by migrations, so this indicates a broken schema.
	ErrSettingsNotFound = errors.New("site settings not found")
	// ErrStorageUnavailable is returned when a storage call times out or
	// the database cannot be reached. Callers surface it generically.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
