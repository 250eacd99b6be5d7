package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/sahayata/sahayata-api/internal/config"
	"github.com/sahayata/sahayata-api/internal/database"
	"github.com/sahayata/sahayata-api/internal/handler"
	"github.com/sahayata/sahayata-api/internal/middleware"
	"github.com/sahayata/sahayata-api/internal/models"
	"github.com/sahayata/sahayata-api/internal/ratelimit"
	"github.com/sahayata/sahayata-api/internal/repository"
	"github.com/sahayata/sahayata-api/internal/router"
	"github.com/sahayata/sahayata-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Conversation{},
		&models.Message{},
		&models.MessageReaction{},
		&models.MessageRead{},
		&models.MessageHide{},
		&models.Group{},
		&models.GroupMember{},
		&models.GroupPledge{},
		&models.GroupMessage{},
		&models.GroupReadState{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	groupMessageRepo := repository.NewGroupMessageRepository(db)
	groupReadStateRepo := repository.NewGroupReadStateRepository(db)

	limiter := ratelimit.New(
		ratelimit.NewRedisStore(redisClient, cfg.ChannelBase+":rate"),
		ratelimit.Window{Name: "burst", Max: int64(cfg.RateBurstMax), Duration: cfg.RateBurstWindow},
		ratelimit.Window{Name: "sustained", Max: int64(cfg.RateSustainedMax), Duration: cfg.RateSustainedWindow},
	)

	realtimeService := service.NewRealtimeService(redisClient, cfg.ChannelBase, natsConn, logger)

	messageService := service.NewMessageService(messageRepo, conversationRepo, postRepo, userRepo, realtimeService, validate, logger)
	conversationService := service.NewConversationService(conversationRepo, messageRepo, userRepo, realtimeService, logger)
	groupService := service.NewGroupService(groupRepo, realtimeService, validate, logger)
	groupMessageService := service.NewGroupMessageService(groupRepo, groupMessageRepo, groupReadStateRepo, userRepo, limiter, realtimeService, validate, logger)

	realtimeService.BindSenders(messageService, groupMessageService)

	userHandler := handler.NewUserHandler(userRepo, logger)
	messageHandler := handler.NewMessageHandler(messageService, validate, logger)
	conversationHandler := handler.NewConversationHandler(conversationService, messageService, validate, logger)
	groupHandler := handler.NewGroupHandler(groupService, groupMessageService, validate, logger)
	realtimeHandler := handler.NewRealtimeHandler(realtimeService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		UserHandler:         userHandler,
		MessageHandler:      messageHandler,
		ConversationHandler: conversationHandler,
		GroupHandler:        groupHandler,
		RealtimeHandler:     realtimeHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	runCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()
	realtimeService.Start(runCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
