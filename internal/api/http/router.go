package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shortlyhq/shortly/internal/auth"
	"github.com/shortlyhq/shortly/internal/models"
	"github.com/shortlyhq/shortly/internal/service"
	"github.com/shortlyhq/shortly/pkg/response"
)

// LinkService defines the link operations the transport layer exposes.
type LinkService interface {
	// Shorten validates and creates a new short link.
	Shorten(ctx context.Context, in service.ShortenInput) (*models.ShortLink, error)

	// Resolve decides redirect / expired / exhausted / not-found for a slug
	// and performs the click accounting side effect when active.
	Resolve(ctx context.Context, slug string, click service.ClickContext) (*models.ShortLink, error)

	// OwnerLinks returns the identity's links, newest first.
	OwnerLinks(ctx context.Context, identity *models.Identity) ([]*models.ShortLink, error)

	// Logs returns the newest click log entries for an owned link.
	Logs(ctx context.Context, linkID string, identity *models.Identity) ([]*models.ClickLogEntry, error)

	// DeleteOwned removes a link the identity owns.
	DeleteOwned(ctx context.Context, linkID string, identity *models.Identity) error

	// AdminLinks returns every link in the system.
	AdminLinks(ctx context.Context) ([]*models.ShortLink, error)

	// AdminDelete removes any link regardless of ownership.
	AdminDelete(ctx context.Context, linkID string) error
}

// SettingsService exposes the mutable policy knobs.
type SettingsService interface {
	Get(ctx context.Context) (*models.SiteSettings, error)
	Update(ctx context.Context, upd *models.SiteSettingsUpdate) (*models.SiteSettings, error)
}

// Authenticator resolves the optional identity attached to a request.
type Authenticator interface {
	Authenticate(r *http.Request) (*models.Identity, error)
}

func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter wires all routes and middleware.
func NewRouter(logger *httplog.Logger, authn Authenticator, linkSvc LinkService, settingsSvc SettingsService, baseURL string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"POST", "GET", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(authenticate(authn))

	r.Get("/", handleHome)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		validate := getValidate()

		r.Get("/ping", handlePing)
		r.Post("/shorten", handleShorten(linkSvc, validate, baseURL))

		r.Group(func(r chi.Router) {
			r.Use(requireIdentity)

			r.Get("/links", handleOwnerLinks(linkSvc))
			r.Delete("/links/{linkID}", handleDeleteLink(linkSvc))
			r.Get("/logs/{linkID}", handleLinkLogs(linkSvc))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireIdentity, requireAdmin)

			r.Get("/links", handleAdminLinks(linkSvc))
			r.Delete("/links/{linkID}", handleAdminDeleteLink(linkSvc))
			r.Get("/settings", handleGetSettings(settingsSvc))
			r.Patch("/settings", handleUpdateSettings(settingsSvc, validate))
		})
	})

	r.Get("/{slug}", handleRedirect(linkSvc))

	return r
}

// authenticate resolves the optional identity once per request. An absent
// Authorization header is an anonymous request; a token that fails
// verification is rejected outright.
func authenticate(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := authn.Authenticate(r)
			if err != nil {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.ErrorResponse("Invalid or expired token."))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.IdentityFrom(r.Context()) == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.ErrorResponse("Authentication required."))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IdentityFrom(r.Context()).Admin() {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.ErrorResponse("Forbidden."))
			return
		}

		next.ServeHTTP(w, r)
	})
}
