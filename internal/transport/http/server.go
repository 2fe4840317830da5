package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/streamlink/chatcore/internal/auth"
	"github.com/streamlink/chatcore/internal/config"
	"github.com/streamlink/chatcore/internal/core"
)

// NewServer builds an HTTP server with the websocket endpoint and the operator API.
func NewServer(hub *core.Hub, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(hub, authService, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter builds the gin engine.
func NewRouter(hub *core.Hub, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", healthHandler)
	r.GET("/ws", gin.WrapH(NewWSHandler(hub, cfg, logger)))

	sessions := NewSessionHandlers(hub, cfg.HistoryLimit, logger)
	api := r.Group("/api", LoggerMiddleware(logger), AuthMiddleware(authService, logger))
	{
		api.GET("/sessions", sessions.ListSessions)
		api.GET("/sessions/:sessionId/participants", sessions.Participants)
		api.GET("/sessions/:sessionId/messages", sessions.Messages)
		api.POST("/sessions/:sessionId/notices", sessions.PostNotice)
	}

	return r
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
