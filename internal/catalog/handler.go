package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-lsm/meridian/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) Reference(w http.ResponseWriter, r *http.Request) {
	ref, err := h.service.Lookup(r.Context())
	if err != nil {
		h.logger.Error("catalog lookup failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ref)
}

func (h *Handler) ListTaxCategories(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	categories, err := h.service.ListTaxCategories(r.Context(), includeInactive)
	if err != nil {
		h.logger.Error("list tax categories failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, categories)
}

func (h *Handler) GetTaxCategory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid tax category id")
		return
	}
	category, err := h.service.GetTaxCategory(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, category)
}

func (h *Handler) CreateTaxCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateTaxCategoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	category, err := h.service.CreateTaxCategory(r.Context(), req)
	if err != nil {
		h.logger.Error("create tax category failed", slog.Any("error", err))
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, category)
}

func (h *Handler) UpdateTaxCategory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid tax category id")
		return
	}
	var req UpdateTaxCategoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	category, err := h.service.UpdateTaxCategory(r.Context(), id, req)
	if err != nil {
		h.logger.Error("update tax category failed", slog.Any("error", err))
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, category)
}

func mapError(err error) error {
	var verr validator.ValidationErrors
	switch {
	case errors.Is(err, ErrNotFound):
		return httpx.ErrNotFound
	case errors.Is(err, ErrDuplicate):
		return httpx.ErrDuplicate
	case errors.As(err, &verr):
		return httpx.ErrValidation
	}
	return err
}
