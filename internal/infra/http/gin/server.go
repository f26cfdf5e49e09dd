package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"artisanchat/internal/infra/config"
	"artisanchat/internal/infra/obs"
)

type Handlers struct {
	Auth           AuthHTTP
	User           UserHTTP
	Chat           ChatHTTP
	Portfolio      PortfolioHTTP
	Group          GroupHTTP
	Task           TaskHTTP
	Realtime       gin.HandlerFunc
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	if h.Realtime != nil {
		router.GET("/ws", h.Realtime)
	}

	api := router.Group("/api/v1")
	if h.Auth != nil {
		api.POST("/auth/sessions", h.Auth.CreateSession)
		api.POST("/auth/logout", h.Auth.Logout)
		api.GET("/auth/me", h.Auth.Me)
	}
	if h.User != nil {
		api.POST("/users", h.User.Create)
		api.GET("/users/search", h.User.Search)
		api.GET("/users/:id", h.User.Get)
		api.PUT("/me/profile", h.User.UpdateProfile)
		api.POST("/users/:id/follow", h.User.Follow)
		api.DELETE("/users/:id/follow", h.User.Unfollow)
		api.GET("/users/:id/followers", h.User.Followers)
		api.GET("/users/:id/following", h.User.Following)
		api.GET("/presence", h.User.Presence)
	}
	if h.Chat != nil {
		chatGroup := api.Group("/chats")
		chatGroup.GET("", h.Chat.ListMyConversations)
		chatGroup.POST("/private", h.Chat.CreatePrivate)
		chatGroup.POST("/group", h.Chat.CreateGroup)
		chatGroup.GET("/:id", h.Chat.Get)
		chatGroup.DELETE("/:id", h.Chat.Delete)
		chatGroup.GET("/:id/messages", h.Chat.ListMessages)
		chatGroup.POST("/:id/messages", h.Chat.SendMessage)
		chatGroup.POST("/:id/messages/:messageId/seen", h.Chat.MarkSeen)
		chatGroup.POST("/:id/participants", h.Chat.AddParticipant)
		chatGroup.DELETE("/:id/participants/:userId", h.Chat.RemoveParticipant)
		chatGroup.POST("/:id/admins/:userId", h.Chat.PromoteAdmin)
	}
	if h.Portfolio != nil {
		api.POST("/portfolio", h.Portfolio.Create)
		api.GET("/portfolio/popular", h.Portfolio.Popular)
		api.GET("/portfolio/:id", h.Portfolio.Get)
		api.PUT("/portfolio/:id", h.Portfolio.Update)
		api.DELETE("/portfolio/:id", h.Portfolio.Delete)
		api.POST("/portfolio/:id/like", h.Portfolio.ToggleLike)
		api.POST("/portfolio/:id/comments", h.Portfolio.AddComment)
		api.GET("/users/:id/portfolio", h.Portfolio.ListByOwner)
	}
	if h.Group != nil {
		groupGroup := api.Group("/groups")
		groupGroup.POST("", h.Group.Create)
		groupGroup.GET("", h.Group.List)
		groupGroup.GET("/:id", h.Group.Get)
		groupGroup.PUT("/:id", h.Group.Update)
		groupGroup.POST("/:id/members", h.Group.AddMember)
		groupGroup.DELETE("/:id/members/:userId", h.Group.RemoveMember)
		groupGroup.PUT("/:id/members/:userId/role", h.Group.ChangeRole)
	}
	if h.Task != nil {
		api.POST("/groups/:id/tasks", h.Task.Create)
		api.GET("/groups/:id/tasks", h.Task.ListByGroup)
		taskGroup := api.Group("/tasks")
		taskGroup.GET("/:taskId", h.Task.Get)
		taskGroup.PUT("/:taskId", h.Task.Update)
		taskGroup.DELETE("/:taskId", h.Task.Delete)
		taskGroup.PATCH("/:taskId/status", h.Task.Transition)
		taskGroup.PATCH("/:taskId/assignee", h.Task.Assign)
		taskGroup.POST("/:taskId/comments", h.Task.AddComment)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
