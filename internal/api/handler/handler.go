package handler

import (
	"nebulalink/backend/internal/auth"
	"nebulalink/backend/internal/chathub"
	"nebulalink/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// Handler wires the HTTP surface to the realtime core.
type Handler struct {
	Hub     *chathub.ManagerService
	Matcher *chathub.MatcherService
	Storage storage.Storage
	Tokens  *auth.TokenManager
}

func NewHandler(hub *chathub.ManagerService, matcher *chathub.MatcherService, s storage.Storage, tokens *auth.TokenManager) *Handler {
	return &Handler{Hub: hub, Matcher: matcher, Storage: s, Tokens: tokens}
}

// RegisterRoutes mounts every route on the engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)

	authed := r.Group("/", h.AuthRequired())
	authed.GET("/user/me", h.Me)
	authed.POST("/queue/join", h.JoinQueue)
	authed.DELETE("/queue/leave", h.LeaveQueue)
	authed.GET("/chat/:roomId/history", h.History)
	authed.GET("/chat/:roomId/partner", h.PartnerInfo)

	r.GET("/ws", h.ServeWebSocket)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
