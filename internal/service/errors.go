package service

import "errors"

var (
	// ErrInvalidURL is returned when the target URL is missing or is not
	// an absolute http/https URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidSlug is returned when a custom slug fails validation.
	ErrInvalidSlug = errors.New("invalid custom slug")
	// ErrAuthRequired is returned when anonymous creation is disabled and
	// the request carries no identity.
	ErrAuthRequired = errors.New("authentication required")
	// ErrCustomSlugForbidden is returned when an anonymous request asks
	// for a custom slug.
	ErrCustomSlugForbidden = errors.New("custom slugs require authentication")
	// ErrRateLimited is returned when the requester has exhausted its
	// creation quota for the current window.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrLinkExpired is returned when a link's expiry timestamp has passed.
	ErrLinkExpired = errors.New("link expired")
	// ErrLinkExhausted is returned when a link has reached its maximum
	// click count. Exhaustion is irreversible.
	ErrLinkExhausted = errors.New("link exhausted")
	// ErrInvalidSettings is returned when a settings update carries an
	// out-of-range value.
	ErrInvalidSettings = errors.New("invalid settings")
	// ErrMaxRetriesExceeded is returned when generated slugs keep colliding.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating slug")
)
