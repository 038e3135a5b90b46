package cart

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/validation"
	"github.com/joao-fontenele/shopflow/internal/web"
)

type CartService interface {
	AddItem(ctx context.Context, owner domain.Owner, productID string, quantity int) (*domain.CartLine, error)
	UpdateQuantity(ctx context.Context, owner domain.Owner, lineID string, quantity int) (*domain.CartLine, error)
	RemoveItem(ctx context.Context, owner domain.Owner, lineID string) error
	Clear(ctx context.Context, owner domain.Owner) error
	Merge(ctx context.Context, dst, src domain.Owner) error
	Summary(ctx context.Context, owner domain.Owner) (*Summary, error)
}

const cartPage = "/cart"

type Handler struct {
	service CartService
	logger  *slog.Logger
}

func NewHandler(service CartService, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// Quantity is a pointer so a missing field is rejected instead of being read
// as zero, which would delete the line.
type updateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type cartResponse struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message"`
	ItemCount int              `json:"item_count"`
	Subtotal  string           `json:"subtotal"`
	Tax       string           `json:"tax"`
	Shipping  string           `json:"shipping"`
	Total     string           `json:"total"`
	Deleted   bool             `json:"deleted"`
	Line      *domain.CartLine `json:"line,omitempty"`
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	owner, err := web.OwnerFromRequest(r)
	if err != nil {
		web.WriteJSON(w, h.logger, http.StatusOK, summarize("", []domain.CartLine{}))
		return
	}

	summary, err := h.service.Summary(r.Context(), owner)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "owner", owner.String())
		web.WriteJSON(w, h.logger, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	web.WriteJSON(w, h.logger, http.StatusOK, summary)
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	owner, err := web.OwnerFromRequest(r)
	if err != nil {
		web.WriteError(w, r, h.logger, err, cartPage)
		return
	}

	req := addItemRequest{Quantity: 1}
	if web.IsJSONBody(r) {
		err = web.DecodeJSON(w, r, &req)
	} else {
		req.ProductID = web.FormValue(r, "product_id")
		req.Quantity, err = web.FormInt(r, "quantity", 1)
	}
	if err == nil {
		err = validation.Struct(req)
	}
	if err != nil {
		web.WriteError(w, r, h.logger, err, cartPage)
		return
	}

	line, err := h.service.AddItem(r.Context(), owner, req.ProductID, req.Quantity)
	if err != nil {
		web.WriteError(w, r, h.logger, err, cartPage, "product_id", req.ProductID)
		return
	}

	h.respond(w, r, owner, cartResponse{
		Message: fmt.Sprintf("%s added to your cart", line.ProductName),
		Line:    line,
	})
}

func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	owner, err := web.OwnerFromRequest(r)
	if err != nil {
		web.WriteError(w, r, h.logger, err, cartPage)
		return
	}

	lineID := r.PathValue("id")

	var req updateQuantityRequest
	if web.IsJSONBody(r) {
		err = web.DecodeJSON(w, r, &req)
	} else {
		var quantity int
		if quantity, err = web.RequiredFormInt(r, "quantity"); err == nil {
			req.Quantity = &quantity
		}
	}
	if err == nil {
		err = validation.Struct(req)
	}
	if err != nil {
		web.WriteError(w, r, h.logger, err, cartPage)
		return
	}

	line, err := h.service.UpdateQuantity(r.Context(), owner, lineID, *req.Quantity)
	if err != nil {
		web.WriteError(w, r, h.logger, err, cartPage, "line_id", lineID)
		return
	}

	resp := cartResponse{Message: "Cart updated", Line: line}
	if line == nil {
		resp.Message = "Item removed from your cart"
		resp.Deleted = true
	}
	h.respond(w, r, owner, resp)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	owner, err := web.OwnerFromRequest(r)
	if err != nil {
		web.WriteError(w, r, h.logger, err, cartPage)
		return
	}

	lineID := r.PathValue("id")
	if err := h.service.RemoveItem(r.Context(), owner, lineID); err != nil {
		web.WriteError(w, r, h.logger, err, cartPage, "line_id", lineID)
		return
	}

	h.respond(w, r, owner, cartResponse{Message: "Item removed from your cart", Deleted: true})
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	owner, err := web.OwnerFromRequest(r)
	if err != nil {
		web.WriteError(w, r, h.logger, err, cartPage)
		return
	}

	if err := h.service.Clear(r.Context(), owner); err != nil {
		web.WriteError(w, r, h.logger, err, cartPage)
		return
	}

	h.respond(w, r, owner, cartResponse{Message: "Your cart is now empty"})
}

// HandleMerge moves the anonymous session cart into the signed-in user's cart.
func (h *Handler) HandleMerge(w http.ResponseWriter, r *http.Request) {
	userID, err := web.UserFromRequest(r)
	if err != nil {
		web.WriteError(w, r, h.logger, err, cartPage)
		return
	}
	owner := domain.UserOwner(userID)

	if sessionID := web.SessionFromRequest(r); sessionID != "" {
		if err := h.service.Merge(r.Context(), owner, domain.SessionOwner(sessionID)); err != nil {
			web.WriteError(w, r, h.logger, err, cartPage)
			return
		}
	}

	h.respond(w, r, owner, cartResponse{Message: "Cart restored"})
}

// respond finishes a successful mutation, attaching fresh totals for JSON
// callers and redirecting everyone else back to the cart page.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, owner domain.Owner, resp cartResponse) {
	if !web.WantsJSON(r) {
		web.Redirect(w, r, cartPage, "success", resp.Message)
		return
	}

	summary, err := h.service.Summary(r.Context(), owner)
	if err != nil {
		web.WriteError(w, r, h.logger, err, cartPage)
		return
	}

	resp.Success = true
	resp.ItemCount = summary.ItemCount
	resp.Subtotal = summary.Totals.Subtotal.StringFixed(2)
	resp.Tax = summary.Totals.Tax.StringFixed(2)
	resp.Shipping = summary.Totals.Shipping.StringFixed(2)
	resp.Total = summary.Totals.Total.StringFixed(2)
	web.WriteJSON(w, h.logger, http.StatusOK, resp)
}
