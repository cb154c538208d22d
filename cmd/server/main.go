package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"leadmatch/server/config"
	"leadmatch/server/internal/api"
	"leadmatch/server/internal/database"
	"leadmatch/server/internal/matching"
	"leadmatch/server/internal/processor"
	"leadmatch/server/internal/queue"
	"leadmatch/server/internal/scheduler"
	"leadmatch/server/internal/telegram"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Optional .env file for local development
	if err := godotenv.Load(); err == nil {
		logger.Info("Loaded environment from .env")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	dbPath := cfg.Server.DatabasePath
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		logger.WithError(err).Fatal("Failed to create database directory")
	}
	logger.Infof("Using database at: %s", dbPath)

	// Initialize database
	db, err := database.NewDatabase(dbPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	// Run database migrations
	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	// Second handle for the matchmaker's transactional writes
	gormDB, err := database.NewGormDB(dbPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize gorm database")
	}

	dedupWindow := time.Duration(cfg.Matching.DedupWindowDays) * 24 * time.Hour
	engine := matching.NewEngine(dedupWindow, cfg.Matching.StaleLeadMonths)

	telegramService := telegram.NewService(logger)
	if tgConfig, err := db.GetTelegramConfig(); err == nil && tgConfig != nil {
		telegramService.UpdateConfig(tgConfig)
	}

	// Matchmaking pipeline: queue -> matchmaker -> notifications
	propertyQueue := queue.NewPropertyQueue(cfg.Matching.QueueSize, logger)
	matchmaker := processor.NewMatchmaker(gormDB, db, engine, propertyQueue, telegramService, cfg, logger)
	matchmaker.Start()
	defer matchmaker.Stop()
	propertyQueue.Start()
	defer propertyQueue.Close()

	// Periodic rematch sweeps
	rematchScheduler := scheduler.NewScheduler(matchmaker, logger)
	rematchScheduler.Start()
	defer rematchScheduler.Stop()

	// Initialize router
	router := gin.Default()
	router.Use(cors.Default())
	api.SetupRoutes(router, db, engine, propertyQueue, telegramService, dedupWindow)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Infof("Starting server on %s", addr)
	if err := router.Run(addr); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
