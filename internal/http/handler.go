package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"user-ledger/internal/service"
)

// Handler wires HTTP routes to the user registry. The registry is not safe for
// concurrent use, so every route that touches it holds mu.
type Handler struct {
	mu       sync.Mutex
	registry *service.Registry
	secret   []byte
	tokenTTL time.Duration
	logger   logrus.FieldLogger
}

func NewHandler(registry *service.Registry, secret []byte, tokenTTL time.Duration, logger logrus.FieldLogger) *Handler {
	return &Handler{
		registry: registry,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/login", h.login)
		api.POST("/users", h.register)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}

	authed := api.Group("", h.authMiddleware())
	{
		authed.GET("/users", h.listUsers)
		authed.DELETE("/users/:username", h.removeUser)
		authed.GET("/me", h.me)
		authed.POST("/me/deposit", h.deposit)
		authed.POST("/me/withdraw", h.withdraw)
		authed.POST("/me/items", h.addItem)
		authed.DELETE("/me/items", h.removeItem)
		authed.PUT("/me/password", h.changePassword)
	}
}

// Locked runs fn while holding the registry lock.
func (h *Handler) Locked(fn func(*service.Registry) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.registry)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
