package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(RequestContext)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.Health)

		// Protected routes (auth required when an API key is configured)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Get("/wizard", h.GetWizard)
			r.Patch("/wizard/profile", h.PatchProfile)
			r.Post("/wizard/next", h.NextStep)
			r.Post("/wizard/back", h.PrevStep)
			r.Put("/wizard/step", h.JumpStep)
			r.Post("/wizard/reset", h.ResetWizard)

			r.Post("/scan", h.SubmitScan)
			r.Get("/scan", h.ScanStatus)
			r.Delete("/scan", h.ClearScan)

			r.Get("/report", h.GetReport)
			r.Post("/report/export", h.ExportReport)
			r.Post("/report/email", h.EmailReport)

			r.Get("/grants", h.ListGrants)
			r.Get("/grants/search", h.SearchGrants)
			r.Get("/grants/new", h.NewGrants)
			r.Get("/grants/categories", h.GrantCategories)
			r.Get("/grants/{slug}", h.GetGrant)
		})
	})

	return r
}
