package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/moshaveran/moshaver-backend/internal/handlers"
	"github.com/moshaveran/moshaver-backend/internal/middleware"
)

type RouterConfig struct {
	ChatStreamHandler   *handlers.ChatStreamHandler
	ChatsHandler        *handlers.ChatsHandler
	KnowledgeHandler    *handlers.KnowledgeHandler
	VerificationHandler *handlers.VerificationHandler
	ExpertsHandler      *handlers.ExpertsHandler
	AdminMiddleware     *middleware.AdminTokenMiddleware
	AllowOrigins        []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	allowOrigins := cfg.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Admin-Token"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Auth
		api.POST("/auth/request-code", cfg.VerificationHandler.RequestCode)
		api.POST("/auth/verify", cfg.VerificationHandler.VerifyCode)

		// Chat relay
		api.POST("/chat/stream", cfg.ChatStreamHandler.Stream)
		api.GET("/experts", cfg.ExpertsHandler.List)

		// Chat persistence
		api.POST("/chats", cfg.ChatsHandler.Create)
		api.GET("/chats", cfg.ChatsHandler.List)
		api.GET("/chats/:id/messages", cfg.ChatsHandler.ListMessages)
		api.POST("/chats/:id/messages", cfg.ChatsHandler.AppendMessage)
		api.GET("/chats/:id/tasks", cfg.ChatsHandler.ListTasks)
		api.POST("/feedback", cfg.ChatsHandler.SaveFeedback)
	}

	admin := router.Group("/api/admin")
	admin.Use(cfg.AdminMiddleware.RequireAdmin())
	{
		admin.GET("/knowledge", cfg.KnowledgeHandler.List)
		admin.POST("/knowledge/learn", cfg.KnowledgeHandler.Learn)
		admin.DELETE("/knowledge/:id", cfg.KnowledgeHandler.Delete)
		admin.GET("/knowledge/stats", cfg.KnowledgeHandler.Stats)
	}

	return router
}
