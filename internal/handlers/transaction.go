package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/moneytrail/apiserver/internal/services"
	"github.com/moneytrail/apiserver/types"
	"github.com/shopspring/decimal"
)

// TransactionHandler serves the income or expense endpoints for one kind.
type TransactionHandler struct {
	service *services.TransactionService
}

func NewTransactionHandler(service *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{service: service}
}

// TransactionRouter registers add/get/downloadexcel/delete routes. Every route
// requires authentication.
func TransactionRouter(r chi.Router, service *services.TransactionService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewTransactionHandler(service)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/add", handler.Add)
		r.Get("/get", handler.List)
		r.Get("/downloadexcel", handler.Download)
		r.Delete("/{id}", handler.Delete)
	})
}

// TransactionRequest accepts both label spellings. Amount may be a JSON
// number or a numeric string.
type TransactionRequest struct {
	Source   string           `json:"source"`
	Category string           `json:"category"`
	Icon     string           `json:"icon"`
	Amount   *decimal.Decimal `json:"amount"`
	Date     string           `json:"date"`
}

func (h *TransactionHandler) Add(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req TransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	label := req.Source
	if h.service.Kind() == types.KindExpense {
		label = req.Category
	}
	tx, err := h.service.Create(r.Context(), user.ID, services.TransactionInput{
		Label:  label,
		Icon:   req.Icon,
		Amount: req.Amount,
		Date:   req.Date,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	items, err := h.service.List(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *TransactionHandler) Download(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	export, err := h.service.Export(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Data)
}

func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.service.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("%s deleted successfully", h.service.Kind())})
}
