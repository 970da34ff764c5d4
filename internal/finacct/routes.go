package finacct

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Open)
	r.Get("/balances", h.Balances)
	r.Get("/{id}", h.Show)
	r.Post("/{id}/deactivate", h.Deactivate)
}
