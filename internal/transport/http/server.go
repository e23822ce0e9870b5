package http

import (
	"context"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredoc-server/internal/auth"
	"github.com/vovakirdan/wiredoc-server/internal/config"
	"github.com/vovakirdan/wiredoc-server/internal/core"
	"github.com/vovakirdan/wiredoc-server/internal/documents"
)

// Hub is the part of the relay engine the transport talks to.
type Hub interface {
	RegisterClient(c *core.Client) error
	UnregisterClient(c *core.Client)
	Stats(ctx context.Context) (core.Stats, error)
}

// NewServer builds the HTTP server with the REST API and the WebSocket endpoint.
func NewServer(hub Hub, authService *auth.Service, docs *documents.Service, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(hub, authService, docs, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler mounts the WebSocket endpoint next to the gin router. /ws stays
// outside gin: its response writer refuses to hijack once the upgrade headers
// are written.
func NewHandler(hub Hub, authService *auth.Service, docs *documents.Service, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, authService, WSOptions{
		AuthRequired:       cfg.WSAuthRequired,
		MaxMessageBytes:    cfg.MaxMessageBytes,
		ClientBuffer:       cfg.ClientBuffer,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.AllowedOrigins,
	}, logger))
	mux.Handle("/", NewRouter(hub, authService, docs, cfg, logger))
	return mux
}

// NewRouter registers the REST routes on a fresh gin engine.
func NewRouter(hub Hub, authService *auth.Service, docs *documents.Service, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.AllowedOrigins))

	router.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(authService, hub, logger)
	documentHandlers := NewDocumentHandlers(docs, logger)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)

	protected := api.Group("")
	protected.Use(AuthMiddleware(authService, logger))
	protected.GET("/stats", apiHandlers.Stats)
	protected.GET("/documents", documentHandlers.ListDocuments)
	protected.POST("/documents", documentHandlers.CreateDocument)
	protected.GET("/documents/:id", documentHandlers.GetDocument)
	protected.PATCH("/documents/:id", documentHandlers.UpdateDocument)
	protected.DELETE("/documents/:id", documentHandlers.DeleteDocument)

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
