package handlers

import (
	"context"
	"net/http"
	"time"

	"playroomserver/internal/auth"
	"playroomserver/internal/middlewares"
	"playroomserver/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Check reports whether a backing service is reachable.
type Check func(ctx context.Context) error

// NewRouter builds the gin engine with every route mounted.
func NewRouter(h *Handler, verifier auth.TokenVerifier, allowedOrigins []string, checks map[string]Check) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestID(), utils.RequestLogger(h.Logger))
	router.Use(cors.New(corsConfig(allowedOrigins)))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", func(c *gin.Context) {
		readiness(c, checks, h.Logger)
	})

	authed := middlewares.AuthMiddleware(verifier, h.Logger)
	router.GET("/ws", authed, h.Stream)

	api := router.Group("/api/v1", authed)
	{
		p := api.Group("/profiles")
		p.POST("/parent", h.EnsureParent)
		p.GET("/parent", h.GetParent)
		p.POST("/children", h.CreateChild)
		p.GET("/children", h.ListChildren)
		p.PATCH("/children/:id", h.UpdateChild)
		p.DELETE("/children/:id", h.DeleteChild)
		p.POST("/children/:id/status", h.SetChildStatus)
	}
	{
		r := api.Group("/rooms")
		r.POST("", h.CreateRoom)
		r.POST("/join", h.JoinRoom)
		r.POST("/leave", h.LeaveRoom)
		r.POST("/close", h.CloseRoom)
		r.GET("/current", h.CurrentRoom)
		r.POST("/invite", h.InviteFriends)
		r.POST("/request-to-join", h.RequestToJoin)
		r.POST("/handle-join-request", h.HandleJoinRequest)
		r.GET("/pending-invitations", h.PendingInvitations)
		r.POST("/accept-invitation", h.AcceptInvitation)
		r.POST("/decline-invitation", h.DeclineInvitation)
		r.POST("/:id/start", h.StartRoom)
		r.GET("/:id/participants", h.Participants)
		r.GET("/:id/join-requests", h.JoinRequests)
		r.GET("/:id/scores", h.RoomScores)
	}
	{
		s := api.Group("/sessions")
		s.POST("", h.CreateSession)
		s.GET("/:id", h.GetSession)
		s.PATCH("/:id", h.UpdateSession)
		api.POST("/scores", h.RecordScore)
	}
	{
		f := api.Group("/friends")
		f.GET("", h.ListFriends)
		f.DELETE("/:id", h.RemoveFriend)
		f.POST("/requests", h.SendFriendRequest)
		f.GET("/requests", h.PendingFriendRequests)
		f.POST("/requests/:id/accept", h.AcceptFriendRequest)
		f.POST("/requests/:id/decline", h.DeclineFriendRequest)
	}
	{
		st := api.Group("/stories")
		st.POST("", h.CreateStory)
		st.GET("", h.ListStories)
		st.GET("/:id", h.GetStory)
		st.DELETE("/:id", h.DeleteStory)
	}
	{
		b := api.Group("/billing")
		b.POST("/voice-subscription", h.SaveVoiceSubscription)
		b.GET("/voice-subscription", h.GetVoiceSubscription)
		b.DELETE("/voice-subscription", h.CancelVoiceSubscription)
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", utils.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", utils.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// Credentials cannot be combined with a literal "*".
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func readiness(c *gin.Context, checks map[string]Check, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	result := gin.H{}
	for name, check := range checks {
		if err := check(ctx); err != nil {
			logger.Warn("Readiness check failed", zap.String("check", name), zap.Error(err))
			result[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}
	c.JSON(status, result)
}
