package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"recruitai/interview/internal/config"
	"recruitai/interview/internal/followup"
	_ "recruitai/interview/internal/followup/gemini"
	"recruitai/interview/internal/handlers"
	"recruitai/interview/internal/models"
	"recruitai/interview/internal/orchestrator"
	"recruitai/interview/internal/prompts"
	"recruitai/interview/internal/questionbank"
	questionbankmongo "recruitai/interview/internal/questionbank/mongo"
	"recruitai/interview/internal/repositories"
	"recruitai/interview/internal/routers"
	"recruitai/interview/internal/speech"
	"recruitai/interview/internal/transcript"
	"recruitai/interview/internal/utils"
)

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.PostgresHost, cfg.PostgresUser, cfg.PostgresPassword,
		cfg.PostgresDB, cfg.PostgresPort, cfg.PostgresSSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.InterviewSession{}, &models.TranscriptSegment{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func main() {
	utils.InitLogger()
	logger := utils.GetLogger()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	logger.Info("Configuration loaded",
		zap.String("followUpProvider", cfg.FollowUpProvider))

	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warn("Redis unreachable, completion events disabled", zap.Error(err))
	}

	var bank questionbank.Repository
	mongoCtx, cancelMongo := context.WithTimeout(context.Background(), 10*time.Second)
	mongoRepo, err := questionbankmongo.NewRepo(mongoCtx, cfg.MongoURI)
	cancelMongo()
	if err != nil {
		logger.Fatal("Failed to connect to question bank", zap.Error(err))
	}
	bank = mongoRepo

	script, err := prompts.NewManager()
	if err != nil {
		logger.Fatal("Failed to load interview script", zap.Error(err))
	}

	provider, err := followup.NewProvider(cfg.FollowUpProvider)
	if err != nil {
		logger.Fatal("Failed to initialize follow-up provider", zap.Error(err))
	}

	sessions := &repositories.SessionRepository{DB: db}
	store := transcript.NewStore(db)

	orch := orchestrator.New(orchestrator.Params{
		Config:   cfg,
		Sessions: sessions,
		Store:    store,
		Bank:     bank,
		Speech:   speech.NewHTTPGateway(cfg.SpeechBaseURL),
		FollowUp: provider,
		Script:   script,
		Events:   orchestrator.NewEventPublisher(rdb),
		Logger:   logger,
	})

	sweeper := orchestrator.NewSweeper(sessions, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("Failed to start expiry sweeper", zap.Error(err))
	}

	sessionHandler := handlers.NewSessionHandler(orch, logger)
	wsHandler := handlers.NewWSHandler(orch, logger)
	router := routers.SetupRoutes(sessionHandler, wsHandler)

	// Write timeouts are left unset: long-lived websocket channels share
	// this server with the REST surface.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("Interview engine starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("Interview engine shutting down...")
	sweeper.Stop()
	orch.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	_ = rdb.Close()
}
