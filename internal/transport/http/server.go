package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "docuchat/internal/app"
	"docuchat/internal/bootstrap"
	"docuchat/internal/cache"
	"docuchat/internal/platform/rabbitmq"
	"docuchat/internal/repository"
	"docuchat/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	documentRepo := repository.NewDocumentRepository(app.MySQL)
	historyRepo := repository.NewHistoryRepository(app.MySQL)
	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	historyLog := appsvc.NewHistoryLog(historyRepo, historyCache)

	documentService := appsvc.NewDocumentService(
		documentRepo,
		app.Gemini,
		app.Registry,
		time.Duration(app.Config.Gemini.PollIntervalSeconds)*time.Second,
		app.Config.Gemini.PollMaxAttempts,
	)

	assembler := appsvc.NewContextAssembler(
		app.Registry,
		historyLog,
		app.Gemini,
		app.Config.Gemini.MaxContextTurns,
	)
	invoker := appsvc.NewModelInvoker(
		app.Gemini,
		app.Config.Gemini.Models,
		time.Duration(app.Config.Gemini.GenerateTimeoutSeconds)*time.Second,
	)
	publisher := rabbitmq.NewChunkPublisher(app.MQConn, app.Config.RabbitMQ.DeliveryQueue)
	chatService := appsvc.NewChatService(
		assembler,
		invoker,
		historyLog,
		app.Registry,
		publisher,
		app.Config.Telegram.MessageLimit,
	)

	documentHandler := handler.NewDocumentHandler(documentService, app.Registry)
	chatHandler := handler.NewChatHandler(chatService)

	v1 := router.Group("/api/v1")
	v1.POST("/documents", documentHandler.Upload)
	v1.GET("/documents", documentHandler.List)

	chatGroup := v1.Group("/chat")
	chatGroup.POST("/query", chatHandler.Query)
	chatGroup.POST("/clear", chatHandler.Clear)
	chatGroup.GET("/history", chatHandler.History)

	return router
}
