package inventory

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"marketplace/internal/domain"
)

// Handler exposes the ledger to the order service over HTTP.
type Handler struct {
	ledger *Ledger
}

func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/products/:id", h.GetProduct)
	r.GET("/products/:id/stock", h.GetStock)
	r.POST("/products/:id/reserve", h.Reserve)
	r.POST("/products/:id/release", h.Release)
	r.POST("/products/:id/consume", h.Consume)
	r.GET("/health", h.Health)
}

type quantityRequest struct {
	Quantity int64 `json:"quantity" binding:"required,min=1"`
}

func (h *Handler) GetProduct(c *gin.Context) {
	p, err := h.ledger.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) GetStock(c *gin.Context) {
	p, err := h.ledger.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"productId": p.ID,
		"quantity":  p.Quantity,
		"reserved":  p.Reserved,
		"available": p.Available,
	})
}

func (h *Handler) Reserve(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.ledger.Reserve(c.Request.Context(), c.Param("id"), req.Quantity); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "stock reserved"})
}

func (h *Handler) Release(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.ledger.Release(c.Request.Context(), c.Param("id"), req.Quantity); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "stock released"})
}

func (h *Handler) Consume(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.ledger.Consume(c.Request.Context(), c.Param("id"), req.Quantity); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "stock consumed"})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "inventory-service",
		"time":    time.Now().Format(time.RFC3339),
	})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInsufficientInventory):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
