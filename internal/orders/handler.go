package orders

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/web"
)

type OrderService interface {
	Checkout(ctx context.Context, owner domain.Owner, req domain.CheckoutRequest) (*CheckoutResult, error)
	History(ctx context.Context, userID string) ([]domain.Order, error)
	Detail(ctx context.Context, userID, orderID string) (*domain.Order, error)
	CancelOrder(ctx context.Context, userID, orderID string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error)
}

const checkoutPage = "/checkout"

type Handler struct {
	service OrderService
	logger  *slog.Logger
}

func NewHandler(service OrderService, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type orderResponse struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	Order    *domain.Order `json:"order"`
	Warnings []string      `json:"warnings,omitempty"`
}

func checkoutFromForm(r *http.Request) domain.CheckoutRequest {
	return domain.CheckoutRequest{
		Shipping: domain.ShippingDetails{
			FirstName:    web.FormValue(r, "first_name"),
			LastName:     web.FormValue(r, "last_name"),
			Email:        web.FormValue(r, "email"),
			Phone:        web.FormValue(r, "phone"),
			AddressLine1: web.FormValue(r, "address_line1"),
			AddressLine2: web.FormValue(r, "address_line2"),
			City:         web.FormValue(r, "city"),
			State:        web.FormValue(r, "state"),
			PostalCode:   web.FormValue(r, "postal_code"),
			Country:      web.FormValue(r, "country"),
		},
		PaymentMethod: domain.PaymentMethod(web.FormValue(r, "payment_method")),
		CouponCode:    web.FormValue(r, "coupon_code"),
		SaveAddress:   web.FormBool(r, "save_address"),
	}
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	owner, err := web.OwnerFromRequest(r)
	if err != nil {
		web.WriteError(w, r, h.logger, err, checkoutPage)
		return
	}

	var req domain.CheckoutRequest
	if web.IsJSONBody(r) {
		if err := web.DecodeJSON(w, r, &req); err != nil {
			web.WriteError(w, r, h.logger, err, checkoutPage)
			return
		}
	} else {
		req = checkoutFromForm(r)
	}

	result, err := h.service.Checkout(r.Context(), owner, req)
	if err != nil {
		web.WriteError(w, r, h.logger, err, checkoutPage, "owner", owner.String())
		return
	}

	message := fmt.Sprintf("Order placed successfully! Order #%s", result.Order.OrderNumber)
	if !web.WantsJSON(r) {
		level := "success"
		if len(result.Warnings) > 0 {
			level = "warning"
			message += ". " + result.Warnings[0]
		}
		web.Redirect(w, r, "/orders/"+result.Order.ID, level, message)
		return
	}

	web.WriteJSON(w, h.logger, http.StatusCreated, orderResponse{
		Success:  true,
		Message:  message,
		Order:    result.Order,
		Warnings: result.Warnings,
	})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := web.UserFromRequest(r)
	if err != nil {
		web.WriteError(w, r, h.logger, err, "/")
		return
	}

	orders, err := h.service.History(r.Context(), userID)
	if err != nil {
		web.WriteError(w, r, h.logger, err, "/", "user_id", userID)
		return
	}

	h.logger.Info("orders listed", "user_id", userID, "count", len(orders))
	web.WriteJSON(w, h.logger, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := web.UserFromRequest(r)
	if err != nil {
		web.WriteError(w, r, h.logger, err, "/orders")
		return
	}

	id := r.PathValue("id")
	order, err := h.service.Detail(r.Context(), userID, id)
	if err != nil {
		web.WriteError(w, r, h.logger, err, "/orders", "order_id", id)
		return
	}

	web.WriteJSON(w, h.logger, http.StatusOK, order)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	detailPage := "/orders/" + id

	userID, err := web.UserFromRequest(r)
	if err != nil {
		web.WriteError(w, r, h.logger, err, detailPage)
		return
	}

	order, err := h.service.CancelOrder(r.Context(), userID, id)
	if err != nil {
		web.WriteError(w, r, h.logger, err, detailPage, "order_id", id)
		return
	}

	message := fmt.Sprintf("Order #%s has been cancelled", order.OrderNumber)
	if !web.WantsJSON(r) {
		web.Redirect(w, r, detailPage, "success", message)
		return
	}
	web.WriteJSON(w, h.logger, http.StatusOK, orderResponse{Success: true, Message: message, Order: order})
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

// HandleUpdateStatus is the administrative status change. It is not routed
// through the public gateway.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateStatusRequest
	if web.IsJSONBody(r) {
		if err := web.DecodeJSON(w, r, &req); err != nil {
			web.WriteError(w, r, h.logger, err, "/orders/"+id)
			return
		}
	} else {
		req.Status = domain.OrderStatus(web.FormValue(r, "status"))
	}

	order, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		web.WriteError(w, r, h.logger, err, "/orders/"+id, "order_id", id)
		return
	}

	web.WriteJSON(w, h.logger, http.StatusOK, orderResponse{
		Success: true,
		Message: fmt.Sprintf("Order #%s is now %s", order.OrderNumber, order.Status),
		Order:   order,
	})
}
