package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shortlyhq/shortly/internal/database"
	"github.com/shortlyhq/shortly/internal/models"
)

type linkRecord struct {
	ID          string         `db:"id"`
	Slug        string         `db:"slug"`
	OriginalURL string         `db:"original_url"`
	OwnerID     sql.NullString `db:"owner_id"`
	CreatorIP   sql.NullString `db:"creator_ip"`
	Clicks      int64          `db:"clicks"`
	MaxClicks   sql.NullInt64  `db:"max_clicks"`
	ExpiresAt   sql.NullTime   `db:"expires_at"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (r *linkRecord) ToShortLink() *models.ShortLink {
	link := &models.ShortLink{
		ID:          r.ID,
		Slug:        r.Slug,
		OriginalURL: r.OriginalURL,
		Clicks:      r.Clicks,
		CreatedAt:   r.CreatedAt,
	}

	if r.OwnerID.Valid {
		link.OwnerID = &r.OwnerID.String
	}
	if r.CreatorIP.Valid {
		link.CreatorIP = &r.CreatorIP.String
	}
	if r.MaxClicks.Valid {
		link.MaxClicks = &r.MaxClicks.Int64
	}
	if r.ExpiresAt.Valid {
		link.ExpiresAt = &r.ExpiresAt.Time
	}

	return link
}

type clickLogRecord struct {
	ID        string         `db:"id"`
	LinkID    string         `db:"link_id"`
	Referrer  sql.NullString `db:"referrer"`
	UserAgent sql.NullString `db:"user_agent"`
	IPAddress sql.NullString `db:"ip_address"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r *clickLogRecord) ToClickLogEntry() *models.ClickLogEntry {
	entry := &models.ClickLogEntry{
		ID:        r.ID,
		LinkID:    r.LinkID,
		CreatedAt: r.CreatedAt,
	}

	if r.Referrer.Valid {
		entry.Referrer = &r.Referrer.String
	}
	if r.UserAgent.Valid {
		entry.UserAgent = &r.UserAgent.String
	}
	if r.IPAddress.Valid {
		entry.IPAddress = &r.IPAddress.String
	}

	return entry
}

// LinkRepository is the only component permitted to mutate click counts or
// insert and delete short link rows.
type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{
		db: db,
	}
}

// Create inserts a new link. The unique constraint on slug arbitrates
// concurrent inserts; the loser gets database.ErrSlugExists.
func (r *LinkRepository) Create(ctx context.Context, link *models.ShortLink) (*models.ShortLink, error) {
	const op = "database.postgres.LinkRepository.Create"

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rec := new(linkRecord)
	query := `INSERT INTO short_links(id, slug, original_url, owner_id, creator_ip, max_clicks, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query,
		link.ID, link.Slug, link.OriginalURL, link.OwnerID, link.CreatorIP, link.MaxClicks, link.ExpiresAt)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrSlugExists)
		}

		return nil, fmt.Errorf("%s: failed to create link record: %w", op, wrapStorageErr(err))
	}

	return rec.ToShortLink(), nil
}

// GetBySlug fetches a link without touching its click count.
func (r *LinkRepository) GetBySlug(ctx context.Context, slug string) (*models.ShortLink, error) {
	const op = "database.postgres.LinkRepository.GetBySlug"

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rec := new(linkRecord)
	query := `SELECT * FROM short_links WHERE slug = $1`

	err := r.db.GetContext(ctx, rec, query, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get link record: %w", op, wrapStorageErr(err))
	}

	return rec.ToShortLink(), nil
}

// GetByID fetches a link by its opaque identifier.
func (r *LinkRepository) GetByID(ctx context.Context, id string) (*models.ShortLink, error) {
	const op = "database.postgres.LinkRepository.GetByID"

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rec := new(linkRecord)
	query := `SELECT * FROM short_links WHERE id = $1`

	err := r.db.GetContext(ctx, rec, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get link record: %w", op, wrapStorageErr(err))
	}

	return rec.ToShortLink(), nil
}

// IncrementClicks atomically adds one click server-side and returns the
// post-increment count. The guard keeps the count from ever passing
// max_clicks: the increment that reaches the ceiling succeeds, the next one
// gets database.ErrClickLimitReached. A missing id yields ErrLinkNotFound.
func (r *LinkRepository) IncrementClicks(ctx context.Context, id string) (int64, error) {
	const op = "database.postgres.LinkRepository.IncrementClicks"

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var clicks int64
	query := `UPDATE short_links
		SET clicks = clicks + 1
		WHERE id = $1 AND (max_clicks IS NULL OR clicks < max_clicks)
		RETURNING clicks`

	err := r.db.GetContext(ctx, &clicks, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w", op, r.classifyIncrementMiss(ctx, id))
		}

		return 0, fmt.Errorf("%s: failed to increment clicks: %w", op, wrapStorageErr(err))
	}

	return clicks, nil
}

// classifyIncrementMiss distinguishes a deleted link from one whose guard
// blocked the increment.
func (r *LinkRepository) classifyIncrementMiss(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM short_links WHERE id = $1)`, id); err != nil {
		return wrapStorageErr(err)
	}

	if !exists {
		return database.ErrLinkNotFound
	}

	return database.ErrClickLimitReached
}

// CountRecentByIP counts anonymous links created from ip at or after since.
func (r *LinkRepository) CountRecentByIP(ctx context.Context, ip string, since time.Time) (int64, error) {
	const op = "database.postgres.LinkRepository.CountRecentByIP"

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var count int64
	query := `SELECT count(*) FROM short_links
		WHERE creator_ip = $1 AND owner_id IS NULL AND created_at >= $2`

	err := r.db.GetContext(ctx, &count, query, ip, since)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to count recent links: %w", op, wrapStorageErr(err))
	}

	return count, nil
}

// CountRecentByOwner counts links owned by ownerID created at or after since.
func (r *LinkRepository) CountRecentByOwner(ctx context.Context, ownerID string, since time.Time) (int64, error) {
	const op = "database.postgres.LinkRepository.CountRecentByOwner"

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var count int64
	query := `SELECT count(*) FROM short_links
		WHERE owner_id = $1 AND created_at >= $2`

	err := r.db.GetContext(ctx, &count, query, ownerID, since)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to count recent links: %w", op, wrapStorageErr(err))
	}

	return count, nil
}

// AppendClickLog inserts one click log entry. Entries are append-only.
func (r *LinkRepository) AppendClickLog(ctx context.Context, entry *models.ClickLogEntry) error {
	const op = "database.postgres.LinkRepository.AppendClickLog"

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	query := `INSERT INTO click_logs(id, link_id, referrer, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.LinkID, entry.Referrer, entry.UserAgent, entry.IPAddress)
	if err != nil {
		return fmt.Errorf("%s: failed to append click log: %w", op, wrapStorageErr(err))
	}

	return nil
}

// ListClickLogs returns the newest click log entries for a link.
func (r *LinkRepository) ListClickLogs(ctx context.Context, linkID string, limit int) ([]*models.ClickLogEntry, error) {
	const op = "database.postgres.LinkRepository.ListClickLogs"

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var recs []clickLogRecord
	query := `SELECT * FROM click_logs
		WHERE link_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	err := r.db.SelectContext(ctx, &recs, query, linkID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list click logs: %w", op, wrapStorageErr(err))
	}

	entries := make([]*models.ClickLogEntry, 0, len(recs))
	for i := range recs {
		entries = append(entries, recs[i].ToClickLogEntry())
	}

	return entries, nil
}

// ListByOwner returns the owner's links, newest first.
func (r *LinkRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.ShortLink, error) {
	const op = "database.postgres.LinkRepository.ListByOwner"

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var recs []linkRecord
	query := `SELECT * FROM short_links
		WHERE owner_id = $1
		ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &recs, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list links: %w", op, wrapStorageErr(err))
	}

	return toShortLinks(recs), nil
}

// ListAll returns every link, newest first.
func (r *LinkRepository) ListAll(ctx context.Context) ([]*models.ShortLink, error) {
	const op = "database.postgres.LinkRepository.ListAll"

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var recs []linkRecord
	query := `SELECT * FROM short_links ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &recs, query)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list links: %w", op, wrapStorageErr(err))
	}

	return toShortLinks(recs), nil
}

// Delete removes a link. Click logs go with it via the cascade.
func (r *LinkRepository) Delete(ctx context.Context, id string) error {
	const op = "database.postgres.LinkRepository.Delete"

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	query := `DELETE FROM short_links WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: failed to delete link record: %w", op, wrapStorageErr(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
	}

	return nil
}

func toShortLinks(recs []linkRecord) []*models.ShortLink {
	links := make([]*models.ShortLink, 0, len(recs))
	for i := range recs {
		links = append(links, recs[i].ToShortLink())
	}
	return links
}
