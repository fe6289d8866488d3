package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/blocks"
	"messaging-service/internal/config"
	"messaging-service/internal/conversations"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/identity"
	"messaging-service/internal/messages"
	"messaging-service/internal/middleware"
	"messaging-service/internal/movements"
	"messaging-service/internal/notify"
	"messaging-service/internal/observability"
	"messaging-service/internal/store"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownTracing := telemetry.SetupTracing(context.Background(), "messaging-service", cfg.OTLPEndpoint)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	var (
		backing   store.Store
		directory movements.Directory
	)
	switch cfg.StoreBackend {
	case "postgres":
		database, err := db.Connect(cfg.DBDSN)
		if err != nil {
			log.Fatalf("failed to connect to db: %v", err)
		}
		defer database.Close()
		backing = store.NewPostgres(database)
		directory = movements.NewSQLDirectory(database)
	case "memory":
		backing = store.NewMemory()
		directory = movements.NewStaticDirectory()
	default:
		log.Fatalf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	registry := blocks.NewRegistry(backing)
	convs := conversations.NewService(backing, registry, directory)
	filter := messages.NewFilter(cfg.MaxBodyLen, cfg.BannedWords)
	ledger := messages.NewLedger(backing, registry, convs, filter)

	publisher := notify.NewPublisher(cfg.AMQPURL, cfg.NotifyExchange)
	defer publisher.Close()
	emitter := notify.NewEmitter(publisher, cfg.NotifyRoutingKey, "messaging-service")

	verifier := identity.NewJWTVerifier(cfg.JWTSecret)
	hub := ws.NewHub()
	wsHandler := ws.NewHandler(hub, verifier, ledger, convs, cfg.WSAuthTimeout)

	conversationHandler := handlers.NewConversationHandler(convs, hub, cfg.StoreTimeout)
	messageHandler := handlers.NewMessageHandler(ledger, convs, hub, emitter, cfg.StoreTimeout)
	groupHandler := handlers.NewGroupHandler(convs, hub, cfg.StoreTimeout)
	blockHandler := handlers.NewBlockHandler(registry, cfg.StoreTimeout)
	keyHandler := handlers.NewKeyHandler(backing, cfg.StoreTimeout)
	adminHandler := handlers.NewAdminHandler(convs, cfg.AdminToken, cfg.StoreTimeout)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("messaging-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.Auth(verifier)
	writeLimit := middleware.RateLimit(cfg.SendRatePerMin)

	router.GET("/conversations", auth, conversationHandler.List)
	router.POST("/conversations", auth, writeLimit, conversationHandler.Create)
	router.POST("/conversations/:conversation_id/accept", auth, conversationHandler.Accept)
	router.POST("/conversations/:conversation_id/decline", auth, conversationHandler.Decline)
	router.POST("/conversations/:conversation_id/block", auth, conversationHandler.Block)
	router.POST("/conversations/:conversation_id/unblock", auth, conversationHandler.Unblock)

	router.GET("/conversations/:conversation_id/messages", auth, messageHandler.List)
	router.POST("/conversations/:conversation_id/messages", auth, writeLimit, messageHandler.Post)
	router.POST("/conversations/:conversation_id/read", auth, messageHandler.MarkRead)
	router.POST("/messages/:message_id/reactions", auth, writeLimit, messageHandler.ToggleReaction)

	router.POST("/groups", auth, writeLimit, groupHandler.Create)
	router.PATCH("/groups/:group_id", auth, groupHandler.Update)
	router.POST("/groups/:group_id/participants", auth, groupHandler.AddParticipants)
	router.DELETE("/groups/:group_id/participants", auth, groupHandler.RemoveParticipants)

	router.POST("/blocks", auth, blockHandler.Create)
	router.DELETE("/blocks/:identity", auth, blockHandler.Delete)

	router.POST("/keys", auth, keyHandler.Register)
	router.GET("/keys/:identity", auth, keyHandler.Get)

	router.DELETE("/admin/conversations", adminHandler.PurgeConversations)

	router.GET("/ws", wsHandler.Handle)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
