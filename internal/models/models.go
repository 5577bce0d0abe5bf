package models

import "time"

// ShortLink represents a slug-to-URL mapping and its accounting state.
type ShortLink struct {
	// ID is the opaque unique identifier of the link, assigned at creation.
	ID string
	// Slug is the short identifier used in redirect URLs. Unique and immutable.
	Slug string
	// OriginalURL is the redirect target. Always http or https.
	OriginalURL string
	// OwnerID references the creating identity. Nil for anonymous links.
	OwnerID *string
	// CreatorIP is captured for anonymous links and used only for
	// rate-limit lookups.
	CreatorIP *string
	// Clicks counts successful redirects. Monotonically non-decreasing.
	Clicks int64
	// MaxClicks is an optional ceiling. Once Clicks reaches it the link
	// is permanently inert.
	MaxClicks *int64
	// ExpiresAt is an optional absolute expiry. Once passed the link is
	// permanently inert.
	ExpiresAt *time.Time
	// CreatedAt anchors the rate-limit window queries.
	CreatedAt time.Time
}

// Expired reports whether the link's expiry timestamp has passed at now.
func (l *ShortLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// Exhausted reports whether the link has reached its click ceiling.
func (l *ShortLink) Exhausted() bool {
	return l.MaxClicks != nil && l.Clicks >= *l.MaxClicks
}

// ClickLogEntry is an append-only record of a single successful redirect.
type ClickLogEntry struct {
	ID        string
	LinkID    string
	Referrer  *string
	UserAgent *string
	IPAddress *string
	CreatedAt time.Time
}

// SiteSettings is the singleton policy record consumed by the rate limiter
// and the creation path. It is read fresh on every creation request.
type SiteSettings struct {
	SiteName            string
	SiteURL             string
	AllowAnonymous      bool
	AnonMaxLinksPerHour int64
	AnonMaxClicks       int64
	UserMaxLinksPerHour int64
}

// SiteSettingsUpdate is a partial update of SiteSettings. A nil field leaves
// the stored value unchanged; a non-nil field replaces it.
type SiteSettingsUpdate struct {
	SiteName            *string
	SiteURL             *string
	AllowAnonymous      *bool
	AnonMaxLinksPerHour *int64
	AnonMaxClicks       *int64
	UserMaxLinksPerHour *int64
}

// Identity roles as reported by the external identity provider.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity is an authenticated principal returned by the identity provider.
type Identity struct {
	ID   string
	Role string
}

// Admin reports whether the identity carries the admin role.
func (i *Identity) Admin() bool {
	return i != nil && i.Role == RoleAdmin
}
