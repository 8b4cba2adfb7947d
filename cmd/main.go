package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/moshaveran/moshaver-backend/internal/db"
	"github.com/moshaveran/moshaver-backend/internal/handlers"
	"github.com/moshaveran/moshaver-backend/internal/logger"
	"github.com/moshaveran/moshaver-backend/internal/middleware"
	"github.com/moshaveran/moshaver-backend/internal/platform/llm"
	"github.com/moshaveran/moshaver-backend/internal/platform/sendgrid"
	"github.com/moshaveran/moshaver-backend/internal/repos"
	"github.com/moshaveran/moshaver-backend/internal/server"
	"github.com/moshaveran/moshaver-backend/internal/services"
	"github.com/moshaveran/moshaver-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	codeTTL := utils.GetEnvAsInt("VERIFICATION_CODE_TTL_SECONDS", 600, log)
	tokenTTL := utils.GetEnvAsInt("SESSION_TOKEN_TTL_SECONDS", 86400, log)
	learningInterval := utils.GetEnvAsInt("LEARNING_INTERVAL_MINUTES", 0, log)
	adminToken := utils.GetEnv("ADMIN_TOKEN", "", log)
	expertsConfig := utils.GetEnv("EXPERTS_CONFIG_PATH", "", log)

	// Postgres. A failed connection is survivable: chat streaming keeps
	// working, learning and task features degrade to no-ops.
	var thePG *gorm.DB
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Warn("Postgres init failed, running without storage", "error", err)
	} else {
		if err := postgresService.AutoMigrateAll(); err != nil {
			log.Warn("Postgres auto migration failed", "error", err)
		}
		thePG = postgresService.DB()
	}

	// Redis (verification codes)
	var rdb *goredis.Client
	if addr := strings.TrimSpace(os.Getenv("REDIS_ADDR")); addr != "" {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:        addr,
			DialTimeout: 5 * time.Second,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn("Redis ping failed, verification codes unavailable", "error", err)
			rdb = nil
		}
		cancel()
	} else {
		log.Warn("REDIS_ADDR not set, verification codes unavailable")
	}

	// Repos
	knowledgeRepo := repos.NewKnowledgeRepo(thePG, log)
	chatRepo := repos.NewChatRepo(thePG, log)
	messageRepo := repos.NewMessageRepo(thePG, log)
	taskRepo := repos.NewTaskRepo(thePG, log)
	feedbackRepo := repos.NewFeedbackRepo(thePG, log)
	userRepo := repos.NewUserRepo(thePG, log)

	// Clients
	llmClient, err := llm.NewClient(log)
	if err != nil {
		log.Error("Could not init LLM client", "error", err)
		os.Exit(1)
	}
	mailClient, err := sendgrid.NewFromEnv(log)
	if err != nil {
		log.Warn("Could not init SendGrid client, verification emails disabled", "error", err)
		mailClient = nil
	}

	// Services
	expertRegistry := services.NewExpertRegistry(log, expertsConfig)
	knowledgeService := services.NewKnowledgeService(thePG, log, knowledgeRepo, chatRepo, messageRepo, services.KeywordClassifier())
	taskService := services.NewTaskService(thePG, log, taskRepo, services.NewKeywordStatusMatcher())
	chatService := services.NewChatService(thePG, log, chatRepo, messageRepo, feedbackRepo, taskService)
	verificationService := services.NewVerificationService(
		log, rdb, mailClient, userRepo, jwtSecretKey,
		time.Duration(codeTTL)*time.Second,
		time.Duration(tokenTTL)*time.Second,
	)

	if learningInterval > 0 {
		knowledgeService.StartWorker(context.Background(), time.Duration(learningInterval)*time.Minute)
		log.Info("Batch learning worker started", "interval_minutes", learningInterval)
	}

	// Handlers
	chatStreamHandler := handlers.NewChatStreamHandler(log, llmClient, knowledgeService, taskService, expertRegistry)
	chatsHandler := handlers.NewChatsHandler(log, chatService, taskService)
	knowledgeHandler := handlers.NewKnowledgeHandler(log, knowledgeService)
	verificationHandler := handlers.NewVerificationHandler(log, verificationService)
	expertsHandler := handlers.NewExpertsHandler(expertRegistry)
	adminMiddleware := middleware.NewAdminTokenMiddleware(log, adminToken)

	// Router
	router := server.NewRouter(server.RouterConfig{
		ChatStreamHandler:   chatStreamHandler,
		ChatsHandler:        chatsHandler,
		KnowledgeHandler:    knowledgeHandler,
		VerificationHandler: verificationHandler,
		ExpertsHandler:      expertsHandler,
		AdminMiddleware:     adminMiddleware,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
