package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/shortlyhq/shortly/internal/database"
	"github.com/shortlyhq/shortly/internal/models"
	"github.com/shortlyhq/shortly/internal/service"
	"github.com/shortlyhq/shortly/pkg/response"
)

type settingsResponse struct {
	SiteName            string `json:"site_name"`
	SiteURL             string `json:"site_url"`
	AllowAnonymous      bool   `json:"allow_anonymous"`
	AnonMaxLinksPerHour int64  `json:"anon_max_links_per_hour"`
	AnonMaxClicks       int64  `json:"anon_max_clicks"`
	UserMaxLinksPerHour int64  `json:"user_max_links_per_hour"`
}

func toSettingsResponse(settings *models.SiteSettings) settingsResponse {
	return settingsResponse{
		SiteName:            settings.SiteName,
		SiteURL:             settings.SiteURL,
		AllowAnonymous:      settings.AllowAnonymous,
		AnonMaxLinksPerHour: settings.AnonMaxLinksPerHour,
		AnonMaxClicks:       settings.AnonMaxClicks,
		UserMaxLinksPerHour: settings.UserMaxLinksPerHour,
	}
}

// settingsRequest is a partial update: absent fields leave the stored value
// unchanged.
type settingsRequest struct {
	SiteName            *string `json:"site_name"`
	SiteURL             *string `json:"site_url"`
	AllowAnonymous      *bool   `json:"allow_anonymous"`
	AnonMaxLinksPerHour *int64  `json:"anon_max_links_per_hour"`
	AnonMaxClicks       *int64  `json:"anon_max_clicks"`
	UserMaxLinksPerHour *int64  `json:"user_max_links_per_hour"`
}

// handleAdminLinks handles GET requests for the full link inventory.
func handleAdminLinks(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleAdminLinks"
	const successMsg = "Links retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		links, err := svc.AdminLinks(r.Context())
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

// handleAdminDeleteLink handles DELETE requests for any link.
func handleAdminDeleteLink(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleAdminDeleteLink"
	const successMsg = "The link was successfully deleted."

	return func(w http.ResponseWriter, r *http.Request) {
		linkID := chi.URLParam(r, "linkID")

		err := svc.AdminDelete(r.Context(), linkID)
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

// handleGetSettings handles GET requests for the site settings.
func handleGetSettings(svc SettingsService) http.HandlerFunc {
	const op = "api.http.handleGetSettings"
	const successMsg = "Settings retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := svc.Get(r.Context())
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
		render.JSON(w, r, response.SuccessResponse(successMsg, toSettingsResponse(settings)))
	}
}

// handleUpdateSettings handles PATCH requests applying a partial settings
// update.
func handleUpdateSettings(svc SettingsService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleUpdateSettings"
	const successMsg = "Settings updated successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req settingsRequest

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

		settings, err := svc.Update(r.Context(), &models.SiteSettingsUpdate{
			SiteName:            req.SiteName,
			SiteURL:             req.SiteURL,
			AllowAnonymous:      req.AllowAnonymous,
			AnonMaxLinksPerHour: req.AnonMaxLinksPerHour,
			AnonMaxClicks:       req.AnonMaxClicks,
			UserMaxLinksPerHour: req.UserMaxLinksPerHour,
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidSettings):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("Quota fields must be at least 1."))
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
		render.JSON(w, r, response.SuccessResponse(successMsg, toSettingsResponse(settings)))
	}
}
