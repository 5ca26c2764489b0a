package carthandler

import (
	"b2bcart/internal/middleware"
	"b2bcart/internal/models"
	serviceerrors "b2bcart/internal/service"
	"b2bcart/pkg/lib/logger/sl"
	"b2bcart/pkg/lib/urlparser"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const (
	StatusClientClosedRequest = 499

	importField = "file"
	// multipart framing on top of the file itself
	multipartOverhead = 64 << 10
)

type CartService interface {
	GetCart(ctx context.Context, userId string) (models.CartResponse, error)
	AddItem(ctx context.Context, userId string, productId string, quantity int) (models.CartResponse, error)
	UpdateItem(ctx context.Context, userId string, lineId string, quantity int) (models.CartResponse, error)
	RemoveItem(ctx context.Context, userId string, lineId string) error
	ClearCart(ctx context.Context, userId string) error
	BulkImport(ctx context.Context, userId string, content []byte) (models.BulkImportOutcome, error)
}

type Handler struct {
	log            *slog.Logger
	service        CartService
	validate       *validator.Validate
	maxImportBytes int64
}

func New(log *slog.Logger, service CartService, maxImportBytes int64) *Handler {
	return &Handler{
		log:            log,
		service:        service,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		maxImportBytes: maxImportBytes,
	}
}

type addItemRequest struct {
	ProductId string `json:"productId" validate:"required,max=64"`
	Quantity  *int   `json:"quantity" validate:"required,max=2147483647"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,max=2147483647"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// GET /cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cart.GetCart"
	log := h.log.With("op", op)

	userId, ok := middleware.UserIdFromContext(r.Context())
	if !ok {
		writeJSON(w, log, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	cart, err := h.service.GetCart(r.Context(), userId)
	if err != nil {
		h.writeError(w, log, err)
		return
	}

	writeJSON(w, log, http.StatusOK, cart)
}

// POST /cart/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cart.AddItem"
	log := h.log.With("op", op)

	userId, ok := middleware.UserIdFromContext(r.Context())
	if !ok {
		writeJSON(w, log, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	var req addItemRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	cart, err := h.service.AddItem(r.Context(), userId, req.ProductId, *req.Quantity)
	if err != nil {
		h.writeError(w, log, err)
		return
	}

	writeJSON(w, log, http.StatusCreated, cart)
}

// PATCH /cart/items/{itemId}
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cart.UpdateItem"
	log := h.log.With("op", op)

	userId, ok := middleware.UserIdFromContext(r.Context())
	if !ok {
		writeJSON(w, log, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	itemId, err := urlparser.ParseItemId(r.PathValue("itemId"))
	if err != nil {
		log.Warn("Malformed item id", sl.Err(err))
		writeJSON(w, log, http.StatusNotFound, errorResponse{Error: "Cart item not found"})
		return
	}

	var req updateItemRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	cart, err := h.service.UpdateItem(r.Context(), userId, itemId, *req.Quantity)
	if err != nil {
		h.writeError(w, log, err)
		return
	}

	writeJSON(w, log, http.StatusOK, cart)
}

// DELETE /cart/items/{itemId}
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cart.RemoveItem"
	log := h.log.With("op", op)

	userId, ok := middleware.UserIdFromContext(r.Context())
	if !ok {
		writeJSON(w, log, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	itemId, err := urlparser.ParseItemId(r.PathValue("itemId"))
	if err != nil {
		log.Warn("Malformed item id", sl.Err(err))
		writeJSON(w, log, http.StatusNotFound, errorResponse{Error: "Cart item not found"})
		return
	}

	if err := h.service.RemoveItem(r.Context(), userId, itemId); err != nil {
		h.writeError(w, log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DELETE /cart
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cart.ClearCart"
	log := h.log.With("op", op)

	userId, ok := middleware.UserIdFromContext(r.Context())
	if !ok {
		writeJSON(w, log, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	if err := h.service.ClearCart(r.Context(), userId); err != nil {
		h.writeError(w, log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// POST /cart/bulk-import, multipart field "file"
func (h *Handler) BulkImport(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cart.BulkImport"
	log := h.log.With("op", op)

	userId, ok := middleware.UserIdFromContext(r.Context())
	if !ok {
		writeJSON(w, log, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImportBytes+multipartOverhead)

	file, _, err := r.FormFile(importField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("Import file too large", sl.Err(err))
			writeJSON(w, log, http.StatusRequestEntityTooLarge, errorResponse{Error: "CSV file is too large"})
			return
		}

		log.Warn("Import file missing", sl.Err(err))
		writeJSON(w, log, http.StatusBadRequest, errorResponse{Error: "CSV file is required"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, h.maxImportBytes+1))
	if err != nil {
		log.Error("Cannot read import file", sl.Err(err))
		writeJSON(w, log, http.StatusBadRequest, errorResponse{Error: "Cannot read CSV file"})
		return
	}
	if int64(len(content)) > h.maxImportBytes {
		log.Warn("Import file too large", slog.Int("bytes", len(content)))
		writeJSON(w, log, http.StatusRequestEntityTooLarge, errorResponse{Error: "CSV file is too large"})
		return
	}

	outcome, err := h.service.BulkImport(r.Context(), userId, content)
	if err != nil {
		h.writeError(w, log, err)
		return
	}

	writeJSON(w, log, http.StatusCreated, outcome)
}

// decode reads a closed request body: unknown fields, trailing data and
// non-integer quantities are rejected.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, dst any) bool {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "quantity" {
			log.Warn("Quantity is not an integer", sl.Err(err))
			writeJSON(w, log, http.StatusBadRequest, errorResponse{Error: serviceerrors.ErrInvalidQuantity.Error()})
			return false
		}

		log.Warn("Cannot unmarshal request body", sl.Err(err))
		writeJSON(w, log, http.StatusBadRequest, errorResponse{Error: "Cannot unmarshal request body"})
		return false
	}

	if dec.More() {
		log.Warn("Trailing data after request body")
		writeJSON(w, log, http.StatusBadRequest, errorResponse{Error: "Cannot unmarshal request body"})
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		log.Warn("Failed to validate", sl.Err(err))

		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && verrs[0].Field() == "Quantity" {
			writeJSON(w, log, http.StatusBadRequest, errorResponse{Error: serviceerrors.ErrInvalidQuantity.Error()})
			return false
		}

		writeJSON(w, log, http.StatusBadRequest, errorResponse{Error: "Failed to validate"})
		return false
	}

	return true
}

func (h *Handler) writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, serviceerrors.ErrContextCanceled):
		log.Warn("Context canceled", sl.Err(err))
		writeJSON(w, log, StatusClientClosedRequest, errorResponse{Error: "Context canceled"})
	case errors.Is(err, serviceerrors.ErrDeadlineExceeded):
		log.Warn("Deadline exceeded", sl.Err(err))
		writeJSON(w, log, http.StatusGatewayTimeout, errorResponse{Error: "Deadline exceeded"})
	case errors.Is(err, serviceerrors.ErrInvalidQuantity):
		writeJSON(w, log, http.StatusBadRequest, errorResponse{Error: serviceerrors.ErrInvalidQuantity.Error()})
	case errors.Is(err, serviceerrors.ErrEmptyImport):
		writeJSON(w, log, http.StatusBadRequest, errorResponse{Error: serviceerrors.ErrEmptyImport.Error()})
	case errors.Is(err, serviceerrors.ErrProductNotFound):
		writeJSON(w, log, http.StatusNotFound, errorResponse{Error: "Product not found"})
	case errors.Is(err, serviceerrors.ErrCartItemNotFound):
		writeJSON(w, log, http.StatusNotFound, errorResponse{Error: "Cart item not found"})
	default:
		log.Error("Request failed", sl.Err(err))
		writeJSON(w, log, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("Failed to responde user", sl.Err(err))
	}
}
