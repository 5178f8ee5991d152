package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chatspace/chatspace-server/internal/admission"
	"github.com/chatspace/chatspace-server/internal/config"
	"github.com/chatspace/chatspace-server/internal/core"
)

// NewServer builds the HTTP server: health, session issuance and the
// websocket bridge.
func NewServer(coord *core.Coordinator, tokenCfg *admission.TokenConfig, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	sessions := NewSessionHandlers(tokenCfg, logger)
	router.POST("/api/session", sessions.Create)

	wsHandler := NewWSHandler(coord, tokenCfg, cfg.WSRateLimit, logger)
	router.GET("/ws", gin.WrapH(wsHandler))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
