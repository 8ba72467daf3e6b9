package http

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"marketplace/internal/domain"
	"marketplace/internal/resilience"
	"marketplace/internal/services"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const buyerHeader = "X-Buyer-ID"

type Handler struct {
	orders   *services.OrderService
	payments *services.PaymentService
	health   *resilience.HealthAggregator
}

func NewHandler(orders *services.OrderService, payments *services.PaymentService, health *resilience.HealthAggregator) *Handler {
	return &Handler{orders: orders, payments: payments, health: health}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Use(requestID())

	r.POST("/orders", h.CreateOrder)
	r.GET("/orders/:id", h.GetOrder)
	r.PATCH("/orders/:id/cancel", h.CancelOrder)
	r.PATCH("/orders/:id/ship", h.ShipOrder)
	r.PATCH("/orders/:id/fulfill", h.FulfillOrder)
	r.PATCH("/orders/:id/deliver", h.MarkDelivered)

	r.POST("/payments", h.ProcessPayment)
	r.POST("/refunds", h.ProcessRefund)
	r.POST("/webhooks/:provider", h.Webhook)

	r.GET("/health", h.Health)
}

func (h *Handler) CreateOrder(c *gin.Context) {
	buyerID := c.GetHeader(buyerHeader)
	if buyerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + buyerHeader + " header"})
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items := make([]services.OrderItemRequest, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, services.OrderItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), services.CreateOrderRequest{
		BuyerID:         buyerID,
		Items:           items,
		PaymentMethod:   domain.PaymentMethod(req.PaymentMethod),
		ShippingAddress: req.ShippingAddress.toDomain(),
		BillingAddress:  req.BillingAddress.toDomain(),
	})
	if err != nil {
		// Reservation failure leaves a committed pending order behind;
		// return it with the error so the caller can retry or cancel.
		if order != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "order": order})
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

func (h *Handler) GetOrder(c *gin.Context) {
	buyerID := c.GetHeader(buyerHeader)
	if buyerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + buyerHeader + " header"})
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"), buyerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	buyerID := c.GetHeader(buyerHeader)
	if buyerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + buyerHeader + " header"})
		return
	}

	var req cancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.CancelOrder(c.Request.Context(), c.Param("id"), buyerID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) ProcessPayment(c *gin.Context) {
	buyerID := c.GetHeader(buyerHeader)
	if buyerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + buyerHeader + " header"})
		return
	}

	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payment, err := h.payments.ProcessPayment(c.Request.Context(), req.OrderID, buyerID, req.PaymentDetails)
	if err != nil {
		if payment != nil && errors.Is(err, domain.ErrProviderRejected) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "payment": payment})
			return
		}
		writeError(c, err)
		return
	}
	// A payment still processing settles later via the provider webhook.
	c.JSON(http.StatusCreated, payment)
}

func (h *Handler) ShipOrder(c *gin.Context) {
	order, err := h.orders.ShipOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) FulfillOrder(c *gin.Context) {
	var req fulfillOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.FulfillOrder(c.Request.Context(), c.Param("id"), req.TrackingNumber, req.Carrier)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) MarkDelivered(c *gin.Context) {
	order, err := h.orders.MarkDelivered(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) ProcessRefund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	refund, err := h.payments.ProcessRefund(c.Request.Context(), req.PaymentID, req.Amount, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, refund)
}

// Webhook receives provider callbacks. The raw body is handed to the
// provider untouched: signature verification happens over the exact bytes
// the provider signed.
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	signature := c.GetHeader("X-Webhook-Signature")
	if err := h.payments.HandleWebhook(c.Request.Context(), c.Param("provider"), payload, signature); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			// No state change happened; the provider's own retry policy
			// governs redelivery.
			c.JSON(http.StatusBadRequest, gin.H{"error": "webhook rejected"})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) Health(c *gin.Context) {
	report := h.health.Check(c.Request.Context())
	status := http.StatusOK
	if report.Status != resilience.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInsufficientInventory),
		errors.Is(err, domain.ErrProductUnavailable),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrProviderRejected):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// requestID tags every request so log lines across services correlate.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
