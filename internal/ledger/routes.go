package ledger

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/entries", h.List)
	r.Get("/entries/{id}", h.Show)
	r.Get("/references/{module}/{id}", h.ByReference)
	r.Get("/activity/{coaID}", h.AccountActivity)
}
