package api

import (
	"errors"
	"io"
	"net/http"

	"kitstore/internal/models"
	"kitstore/internal/payment"
	"kitstore/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	order, err := h.svc.Orders.CreateOrder(c.Request.Context(), currentUser(c).ID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.svc.Orders.ListOrders(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c, "id")
	if !ok {
		return
	}

	order, err := h.svc.Orders.GetOrder(c.Request.Context(), currentUser(c).ID, orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) getOrderHistory(c *gin.Context) {
	orderID, ok := orderIDParam(c, "id")
	if !ok {
		return
	}

	history, err := h.svc.Orders.GetOrderHistory(c.Request.Context(), currentUser(c).ID, orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) createCheckoutSession(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	resp, err := h.svc.Checkout.CreateCheckoutSession(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// paymentWebhook acknowledges every parseable delivery with 200 so the
// provider does not retry; processing failures only show up in logs.
func (h *Handler) paymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}

	err = h.svc.Payments.HandleWebhook(c.Request.Context(), body, c.GetHeader(payment.SignatureHeader))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, payment.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
	case errors.Is(err, service.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook signature"})
	default:
		h.logger.Error("Error handling webhook", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{
			"received": true,
			"error":    "Error processing webhook, but acknowledged receipt",
		})
	}
}

type simulateFailureRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) simulatePayment(c *gin.Context) {
	order, err := h.svc.Payments.SimulatePaymentSuccess(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Order payment simulated successfully",
		"order":   orderSummary(order),
	})
}

func (h *Handler) simulatePaymentFailure(c *gin.Context) {
	var req simulateFailureRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	order, err := h.svc.Payments.SimulatePaymentFailure(c.Request.Context(), c.Param("orderId"), req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Order payment failure simulated successfully",
		"order":   orderSummary(order),
	})
}

func (h *Handler) testPaymentProvider(c *gin.Context) {
	status, err := h.svc.Checkout.TestProvider(c.Request.Context())
	if err != nil {
		h.logger.Warn("Payment provider check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "Error connecting to payment provider",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, status)
}

func orderSummary(o *models.Order) gin.H {
	return gin.H{
		"id":            o.ID,
		"orderNumber":   o.OrderNumber,
		"status":        o.Status,
		"total":         o.Total,
		"paymentId":     o.PaymentID,
		"failureReason": o.FailureReason,
	}
}

func orderIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return uuid.Nil, false
	}
	return id, true
}
