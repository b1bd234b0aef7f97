package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"food-order-service/internal/service"
	"food-order-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// OrderAPI is the order builder as seen by HTTP handlers
type OrderAPI interface {
	CreateOrder(ctx context.Context, req *service.CreateOrderRequest) (*service.CreateOrderResponse, error)
	GetOrder(ctx context.Context, orderID int64) (*service.OrderDetails, error)
}

// PaymentAPI is the payment state machine as seen by HTTP handlers
type PaymentAPI interface {
	Initialize(ctx context.Context, req *service.InitializeRequest) (*service.InitializeResponse, error)
	HandleCallback(ctx context.Context, cb service.CallbackParams) string
	OfflinePayment(ctx context.Context, req *service.OfflinePaymentRequest) (*service.OfflinePaymentResponse, error)
	GetPaymentStatus(ctx context.Context, transactionID string) (*service.PaymentStatusResponse, error)
}

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orderService   OrderAPI
	paymentService PaymentAPI
	jwtSecret      string
	dependencies   map[string]Pinger
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler. An empty jwtSecret disables bearer
// authentication and customerId is read from the request body.
func NewHandler(orderService OrderAPI, paymentService PaymentAPI, jwtSecret string, dependencies map[string]Pinger) *Handler {
	return &Handler{
		orderService:   orderService,
		paymentService: paymentService,
		jwtSecret:      jwtSecret,
		dependencies:   dependencies,
		logger:         util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	registerValidators()

	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		orders := v1.Group("/orders", h.customerIdentity())
		orders.POST("", h.createOrder)
		orders.GET("/:id", h.getOrder)

		payment := v1.Group("/payment")
		payment.POST("/initialize", h.initializePayment)
		payment.GET("/callback/3d-secure", h.paymentCallback)
		payment.POST("/callback/3d-secure", h.paymentCallback)
		payment.GET("/status/:transactionId", h.paymentStatus)
		payment.POST("/offline", h.offlinePayment)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings the database and Redis
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for name, dep := range h.dependencies {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "down"
			ready = false
			continue
		}
		checks[name] = "up"
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

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
