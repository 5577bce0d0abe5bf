package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/shortlyhq/shortly/internal/auth"
	"github.com/shortlyhq/shortly/internal/database"
	"github.com/shortlyhq/shortly/internal/models"
	"github.com/shortlyhq/shortly/internal/service"
	"github.com/shortlyhq/shortly/pkg/response"
)

const (
	expiredMsg   = "This link has expired."
	exhaustedMsg = "This link has reached its maximum access count and is no longer available."
)

// handlePing handles health check requests to ensure the server is running.
func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

// handleHome is the landing endpoint and the soft-fail target for unknown
// slugs.
func handleHome(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, response.SuccessResponse("Shortly URL shortener."))
}

// shortenRequest is the creation payload. Anonymous callers may only set
// url; limits they supply are ignored.
type shortenRequest struct {
	URL        string     `json:"url" validate:"required"`
	CustomSlug string     `json:"custom_slug"`
	MaxClicks  *int64     `json:"max_clicks"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// shortenResponse mirrors the creation contract: max_clicks is present even
// when null.
type shortenResponse struct {
	ShortURL  string `json:"short_url"`
	Slug      string `json:"slug"`
	MaxClicks *int64 `json:"max_clicks"`
}

type linkResponse struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	OriginalURL string     `json:"original_url"`
	Clicks      int64      `json:"clicks"`
	MaxClicks   *int64     `json:"max_clicks"`
	ExpiresAt   *time.Time `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toLinkResponse(link *models.ShortLink) linkResponse {
	return linkResponse{
		ID:          link.ID,
		Slug:        link.Slug,
		OriginalURL: link.OriginalURL,
		Clicks:      link.Clicks,
		MaxClicks:   link.MaxClicks,
		ExpiresAt:   link.ExpiresAt,
		CreatedAt:   link.CreatedAt,
	}
}

func toLinkResponses(links []*models.ShortLink) []linkResponse {
	resp := make([]linkResponse, 0, len(links))
	for _, link := range links {
		resp = append(resp, toLinkResponse(link))
	}
	return resp
}

type clickLogResponse struct {
	ID        string    `json:"id"`
	LinkID    string    `json:"link_id"`
	Referrer  *string   `json:"referrer"`
	UserAgent *string   `json:"user_agent"`
	IPAddress *string   `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
}

func toClickLogResponses(entries []*models.ClickLogEntry) []clickLogResponse {
	resp := make([]clickLogResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, clickLogResponse{
			ID:        e.ID,
			LinkID:    e.LinkID,
			Referrer:  e.Referrer,
			UserAgent: e.UserAgent,
			IPAddress: e.IPAddress,
			CreatedAt: e.CreatedAt,
		})
	}
	return resp
}

// handleShorten handles POST requests to create a short link.
//
// Policy rejections happen in a fixed order before any row is written:
// invalid URL (400), anonymous creation disabled (401), anonymous custom
// slug (403), malformed custom slug (400), quota exceeded (429), slug taken
// (409).
func handleShorten(svc LinkService, validate *validator.Validate, baseURL string) http.HandlerFunc {
	const op = "api.http.handleShorten"
	const successMsg = "The URL has been shortened successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req shortenRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		link, err := svc.Shorten(r.Context(), service.ShortenInput{
			OriginalURL: req.URL,
			CustomSlug:  req.CustomSlug,
			MaxClicks:   req.MaxClicks,
			ExpiresAt:   req.ExpiresAt,
			Identity:    auth.IdentityFrom(r.Context()),
			ClientIP:    clientIP(r),
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidURL):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("Invalid URL"))
			case errors.Is(err, service.ErrAuthRequired):
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.ErrorResponse("Authentication required"))
			case errors.Is(err, service.ErrCustomSlugForbidden):
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.ErrorResponse("Custom slugs are only available for logged-in users"))
			case errors.Is(err, service.ErrInvalidSlug):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("Invalid custom slug. Use only letters, numbers, hyphens, and underscores (max 50 chars)."))
			case errors.Is(err, service.ErrRateLimited):
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.ErrorResponse("Rate limit exceeded. Try again later."))
			case errors.Is(err, database.ErrSlugExists):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.ErrorResponse("This custom slug is already taken"))
			case errors.Is(err, database.ErrStorageUnavailable):
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, response.StorageUnavailableResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		linksCreatedTotal.Inc()

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, shortenResponse{
			ShortURL:  fmt.Sprintf("%s/%s", baseURL, link.Slug),
			Slug:      link.Slug,
			MaxClicks: link.MaxClicks,
		}))
	}
}

// handleRedirect handles GET /{slug}.
//
// Unknown slugs soft-fail with a redirect to the home page rather than a
// 404. Expired and exhausted links answer 410 with distinct messages and
// never mutate state.
func handleRedirect(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		link, err := svc.Resolve(r.Context(), slug, service.ClickContext{
			Referrer:  r.Header.Get("Referer"),
			UserAgent: r.Header.Get("User-Agent"),
			IP:        clientIP(r),
		})
		if err != nil {
			switch {
			case errors.Is(err, database.ErrLinkNotFound):
				redirectsTotal.WithLabelValues(outcomeNotFound).Inc()
				http.Redirect(w, r, "/", http.StatusFound)
			case errors.Is(err, service.ErrLinkExpired):
				redirectsTotal.WithLabelValues(outcomeExpired).Inc()
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.ErrorResponse(expiredMsg))
			case errors.Is(err, service.ErrLinkExhausted):
				redirectsTotal.WithLabelValues(outcomeExhausted).Inc()
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.ErrorResponse(exhaustedMsg))
			case errors.Is(err, database.ErrStorageUnavailable):
				redirectsTotal.WithLabelValues(outcomeError).Inc()
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, response.StorageUnavailableResponse)
			default:
				redirectsTotal.WithLabelValues(outcomeError).Inc()
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		redirectsTotal.WithLabelValues(outcomeRedirected).Inc()
		http.Redirect(w, r, link.OriginalURL, http.StatusFound)
	}
}

// handleOwnerLinks handles GET requests for the caller's links.
func handleOwnerLinks(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleOwnerLinks"
	const successMsg = "Links retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		links, err := svc.OwnerLinks(r.Context(), auth.IdentityFrom(r.Context()))
		if err != nil {
			if errors.Is(err, database.ErrStorageUnavailable) {
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, response.StorageUnavailableResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toLinkResponses(links)))
	}
}

// handleDeleteLink handles DELETE requests for a caller-owned link.
func handleDeleteLink(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleDeleteLink"
	const successMsg = "The link was successfully deleted."

	return func(w http.ResponseWriter, r *http.Request) {
		linkID := chi.URLParam(r, "linkID")

		err := svc.DeleteOwned(r.Context(), linkID, auth.IdentityFrom(r.Context()))
		if err != nil {
			switch {
			case errors.Is(err, database.ErrLinkNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			case errors.Is(err, database.ErrStorageUnavailable):
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, response.StorageUnavailableResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg))
	}
}

// handleLinkLogs handles GET requests for a link's click log.
func handleLinkLogs(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleLinkLogs"
	const successMsg = "Click logs retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		linkID := chi.URLParam(r, "linkID")

		entries, err := svc.Logs(r.Context(), linkID, auth.IdentityFrom(r.Context()))
		if err != nil {
			switch {
			case errors.Is(err, database.ErrLinkNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			case errors.Is(err, database.ErrStorageUnavailable):
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, response.StorageUnavailableResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toClickLogResponses(entries)))
	}
}
