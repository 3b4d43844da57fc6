package api

import (
	"errors"
	"net/http"
	"time"

	"checkout-service/internal/backend"
	"checkout-service/internal/cart"
	"checkout-service/internal/models"
	"checkout-service/internal/phone"
	"checkout-service/internal/pricing"
	"checkout-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	checkout  *service.CheckoutService
	refunds   *service.RefundService
	cart      *cart.Store
	backend   *backend.Client
	rules     pricing.Rules
	jwtSecret string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	checkout *service.CheckoutService,
	refunds *service.RefundService,
	cartStore *cart.Store,
	bc *backend.Client,
	rules pricing.Rules,
	jwtSecret string,
) *Handler {
	return &Handler{
		checkout:  checkout,
		refunds:   refunds,
		cart:      cartStore,
		backend:   bc,
		rules:     rules,
		jwtSecret: jwtSecret,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(Auth(h.jwtSecret))
	{
		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PUT("/cart/items/:productId", h.setCartQuantity)
		v1.DELETE("/cart/items/:productId", h.removeCartItem)
		v1.DELETE("/cart", h.clearCart)

		v1.GET("/wishlist", h.getWishlist)
		v1.POST("/wishlist", h.addWishlistItem)
		v1.DELETE("/wishlist/:productId", h.removeWishlistItem)

		v1.POST("/checkout", h.placeOrder)
		v1.GET("/checkout/:checkoutRequestId/status", h.checkoutStatus)
		v1.DELETE("/checkout/:checkoutRequestId", h.cancelCheckout)
		v1.GET("/transactions", h.listTransactions)

		v1.POST("/orders/:id/refund", h.refundOrder)
		v1.GET("/refunds/:transactionId/status", h.refundStatus)

		admin := v1.Group("/admin")
		admin.Use(RequireAdmin())
		{
			admin.GET("/products/export", h.exportProducts)
			admin.POST("/products/import", h.importProducts)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// getCart returns the cart lines plus the derived summary.
func (h *Handler) getCart(c *gin.Context) {
	userID := c.GetString(ctxUserID)

	items, err := h.cart.Items(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":   items,
		"summary": pricing.Summarize(items, h.rules),
	})
}

type addCartItemRequest struct {
	ProductID string  `json:"product_id" binding:"required"`
	SKU       string  `json:"sku"`
	Name      string  `json:"name" binding:"required"`
	Price     float64 `json:"price" binding:"required,gt=0"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity" binding:"required,min=1"`
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	item := models.CartItem{
		ProductID: req.ProductID,
		SKU:       req.SKU,
		Name:      req.Name,
		Price:     req.Price,
		Image:     req.Image,
		Quantity:  req.Quantity,
	}
	if err := h.cart.AddItem(c.Request.Context(), c.GetString(ctxUserID), item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add item"})
		return
	}

	c.Status(http.StatusNoContent)
}

type setQuantityRequest struct {
	Quantity int `json:"quantity" binding:"min=0"`
}

func (h *Handler) setCartQuantity(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := h.cart.SetQuantity(c.Request.Context(), c.GetString(ctxUserID), c.Param("productId"), req.Quantity)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	if err := h.cart.RemoveItem(c.Request.Context(), c.GetString(ctxUserID), c.Param("productId")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove item"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.cart.Clear(c.Request.Context(), c.GetString(ctxUserID)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear cart"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getWishlist(c *gin.Context) {
	items, err := h.cart.WishlistItems(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read wishlist"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) addWishlistItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	item := models.CartItem{
		ProductID: req.ProductID,
		SKU:       req.SKU,
		Name:      req.Name,
		Price:     req.Price,
		Image:     req.Image,
	}
	if err := h.cart.WishlistAdd(c.Request.Context(), c.GetString(ctxUserID), item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add to wishlist"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeWishlistItem(c *gin.Context) {
	if err := h.cart.WishlistRemove(c.Request.Context(), c.GetString(ctxUserID), c.Param("productId")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove from wishlist"})
		return
	}
	c.Status(http.StatusNoContent)
}

// placeOrder runs the checkout workflow: order submission, STK push, watch.
func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.checkout.PlaceOrder(c.Request.Context(), c.GetString(ctxUserID), c.GetString(ctxToken), &req)
	if err != nil {
		status, msg := checkoutErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

func (h *Handler) checkoutStatus(c *gin.Context) {
	resp, err := h.checkout.Status(c.Request.Context(), c.Param("checkoutRequestId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown checkout request"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// cancelCheckout stops the server-side watch, mirroring the storefront
// closing its payment modal.
func (h *Handler) cancelCheckout(c *gin.Context) {
	h.checkout.CancelWatch(c.Param("checkoutRequestId"))
	c.Status(http.StatusNoContent)
}

func (h *Handler) listTransactions(c *gin.Context) {
	txs, err := h.checkout.Transactions(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h *Handler) refundOrder(c *gin.Context) {
	var req service.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.refunds.Refund(c.Request.Context(), c.GetString(ctxUserID), c.GetString(ctxToken), c.Param("id"), &req)
	if err != nil {
		status, msg := checkoutErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

func (h *Handler) refundStatus(c *gin.Context) {
	resp, err := h.refunds.Status(c.Request.Context(), c.Param("transactionId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown refund transaction"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// checkoutErrorStatus maps the error taxonomy to HTTP responses: validation
// errors are 400s, duplicate submissions 409, backend business errors keep
// their status and message, everything else is a generic 502.
func checkoutErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, phone.ErrInvalid):
		return http.StatusBadRequest, phone.ErrInvalid.Error()
	case errors.Is(err, service.ErrEmptyCart):
		return http.StatusBadRequest, service.ErrEmptyCart.Error()
	case errors.Is(err, service.ErrOrderNotPaid):
		return http.StatusBadRequest, service.ErrOrderNotPaid.Error()
	case errors.Is(err, service.ErrRefundWindowExpired):
		return http.StatusBadRequest, service.ErrRefundWindowExpired.Error()
	case errors.Is(err, service.ErrDuplicateCheckout):
		return http.StatusConflict, service.ErrDuplicateCheckout.Error()
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return status, apiErr.Message
	}

	return http.StatusBadGateway, "payment service is unavailable, please try again"
}
