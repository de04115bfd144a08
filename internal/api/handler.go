package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"kitstore/internal/auth"
	"kitstore/internal/models"
	"kitstore/internal/service"
	"kitstore/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ItemService is the catalog surface used by the handlers
type ItemService interface {
	ListItems(ctx context.Context, filter models.ItemFilter) ([]models.Item, error)
	GetItem(ctx context.Context, number int64) (*models.Item, error)
	CreateItem(ctx context.Context, in service.ItemInput) (*models.Item, error)
	UpdateItem(ctx context.Context, number int64, in service.ItemInput) (*models.Item, error)
	DeleteItem(ctx context.Context, number int64) error
}

type UserService interface {
	GetCurrentUser(ctx context.Context, externalID string) (*models.User, error)
	GetOrCreate(ctx context.Context, id service.Identity) (*models.User, bool, error)
	Resolve(ctx context.Context, id service.Identity) (*models.User, error)
}

type OrderService interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, req *service.CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	GetOrderHistory(ctx context.Context, userID, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
}

type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, user *models.User, req service.CheckoutRequest) (*service.CheckoutResponse, error)
	TestProvider(ctx context.Context) (*service.ProviderStatus, error)
}

type PaymentEventService interface {
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	SimulatePaymentSuccess(ctx context.Context, orderID string) (*models.Order, error)
	SimulatePaymentFailure(ctx context.Context, orderID, reason string) (*models.Order, error)
}

// Services bundles the business layer behind the HTTP API
type Services struct {
	Items    ItemService
	Users    UserService
	Orders   OrderService
	Checkout CheckoutService
	Payments PaymentEventService
}

// Options tune routing and middleware
type Options struct {
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	CatalogAdminOnly   bool
	SimulationEnabled  bool
	// ReadinessChecks are run by /ready; a nil entry is skipped.
	ReadinessChecks map[string]func(context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	svc      Services
	verifier *auth.Verifier
	opts     Options
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, verifier *auth.Verifier, opts Options) *Handler {
	return &Handler{
		svc:      svc,
		verifier: verifier,
		opts:     opts,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))
	router.Use(cors.New(corsConfig(h.opts.CORSAllowedOrigins)))
	if h.opts.RateLimitRPS > 0 {
		router.Use(newIPRateLimiter(h.opts.RateLimitRPS, h.opts.RateLimitBurst).middleware())
	}

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireToken := auth.RequireToken(h.verifier)
	api := router.Group("/api")

	items := api.Group("/items")
	{
		items.GET("", h.listItems)
		items.GET("/:id", h.getItem)

		writers := items.Group("", requireToken)
		if h.opts.CatalogAdminOnly {
			writers.Use(h.resolveUser, requireAdmin)
		}
		writers.POST("", h.createItem)
		writers.PUT("/:id", h.updateItem)
		writers.DELETE("/:id", h.deleteItem)
	}

	my := api.Group("/my", requireToken)
	{
		my.GET("/user", h.getCurrentUser)
		my.POST("/user", h.createCurrentUser)
	}

	orders := api.Group("/orders")
	{
		// Reached by the provider or the simulation page, never with a token.
		orders.POST("/checkout/webhook", h.paymentWebhook)
		orders.GET("/test-payment-provider", h.testPaymentProvider)
		if h.opts.SimulationEnabled {
			orders.POST("/simulate-payment/:orderId", h.simulatePayment)
			orders.POST("/simulate-payment-failure/:orderId", h.simulatePaymentFailure)
		}

		authed := orders.Group("", requireToken, h.resolveUser)
		authed.GET("", h.listOrders)
		authed.POST("", h.createOrder)
		authed.GET("/:id", h.getOrder)
		authed.GET("/:id/history", h.getOrderHistory)
		authed.POST("/checkout/create-checkout-session", h.createCheckoutSession)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports unready when any dependency check fails
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.opts.ReadinessChecks))
	for name := range h.opts.ReadinessChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := gin.H{}
	ready := true
	for _, name := range names {
		check := h.opts.ReadinessChecks[name]
		if check == nil {
			continue
		}
		if err := check(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("check", name), zap.Error(err))
			checks[name] = "unavailable"
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// respondError maps service errors to HTTP statuses; anything unclassified is a 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidState):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	}

	msg, ok := service.Message(err)
	if status == http.StatusInternalServerError || !ok {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": msg})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
