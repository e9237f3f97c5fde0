package catalog

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reference", h.Reference)
	r.Get("/tax-categories", h.ListTaxCategories)
	r.Get("/tax-categories/{id}", h.GetTaxCategory)
	r.Post("/tax-categories", h.CreateTaxCategory)
	r.Patch("/tax-categories/{id}", h.UpdateTaxCategory)
}
