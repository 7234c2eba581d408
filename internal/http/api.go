package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"user-api/internal/auth"
	"user-api/internal/service"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Handler. Exports may be nil, in which case the export
// routes are not registered.
type Options struct {
	Users          service.UserService
	Exports        service.ExportService
	Tokens         *auth.Tokens
	Store          Pinger
	Logger         *logrus.Logger
	RedactPassword bool
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users          service.UserService
	exports        service.ExportService
	tokens         *auth.Tokens
	store          Pinger
	logger         *logrus.Logger
	redactPassword bool
}

func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:          opts.Users,
		exports:        opts.Exports,
		tokens:         opts.Tokens,
		store:          opts.Store,
		logger:         logger,
		redactPassword: opts.RedactPassword,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger))
	router.Use(corsMiddleware())

	router.GET("/health", h.health)
	router.POST("/auth/login", h.login)

	guard := auth.RequireBearer(h.tokens)

	users := router.Group("/user", guard)
	{
		users.POST("", h.createUser)
		users.GET("", h.listUsers)
		users.GET("/:username", h.getUser)
		users.PUT("/:id", h.updateUser)
		users.DELETE("/:id", h.deleteUser)
	}

	if h.exports != nil {
		exports := router.Group("/exports", guard)
		{
			exports.POST("/users", h.exportUsers)
			exports.GET("/users", h.listExports)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
		ExposeHeaders:   []string{requestIDHeader},
		MaxAge:          12 * time.Hour,
	})
}

func (h *Handler) health(c *gin.Context) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.logger.WithField("request_id", requestID(c)).Warnf("health check: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "database unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
