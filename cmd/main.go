package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"revintake/internal/clients"
	"revintake/internal/config"
	"revintake/internal/handlers"
	"revintake/internal/middleware"
	"revintake/internal/repository"
	"revintake/internal/service"
	"revintake/internal/storage"
	"revintake/internal/worker"
	"revintake/pkg/database"
	"revintake/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

func main() {
	// Загрузка .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	log.Println("=== Revenue Intake Backend Starting ===")

	// Загрузка конфигурации
	cfg := config.Load()

	// Подключение к PostgreSQL
	db, err := database.Connect(database.Config{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.DBName,
		SSLMode:  cfg.DB.SSLMode,
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	// Подключение к Redis
	redisClient, err := redis.Connect(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	// Автомиграция модели
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Блоб-хранилище вложений
	blobStore, err := storage.NewFileStore(cfg.Attachments.Dir)
	if err != nil {
		log.Fatal("Failed to init attachment store:", err)
	}

	// Инициализация репозиториев и клиентов
	intakeRepo := repository.NewIntakeRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	jiraClient := clients.NewJiraClient(clients.JiraConfig{
		BaseURL:    cfg.Jira.BaseURL,
		Email:      cfg.Jira.Email,
		APIToken:   cfg.Jira.APIToken,
		ProjectKey: cfg.Jira.ProjectKey,
	})
	if cfg.JiraEnabled() {
		log.Printf("Jira integration enabled (project: %s)", cfg.Jira.ProjectKey)
	} else {
		log.Println("Jira integration disabled: credentials not configured")
	}

	// Сервис и хендлеры
	intakeService := service.NewIntakeService(intakeRepo, cacheRepo, jiraClient, blobStore)
	intakeHandler := handlers.NewIntakeHandler(intakeService, cfg.Export.APIKey)

	// Фоновый снапшот бэклога (по умолчанию выключен)
	scheduler := worker.NewScheduler()
	if cfg.Snapshot.Enabled {
		scheduler.AddWorker(worker.NewSnapshotWorker(intakeService, cfg.Snapshot.Interval, cfg.Snapshot.Dir))
		log.Printf("Snapshot Worker enabled (interval: %v)", cfg.Snapshot.Interval)
	}
	go scheduler.Start()
	defer scheduler.Stop()

	// Инициализация Gin
	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
		log.Println("Running in DEBUG mode")
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// CORS для формы и бэклог-вью
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", cfg.App.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Rate limiting (только для продакшена)
	if !cfg.App.Debug {
		limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
		r.Use(middleware.RateLimitMiddleware(limiter))
		log.Printf("Rate limiting enabled: %d req/sec, burst: %d",
			cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	// Приём заявок
	r.POST("/submit", intakeHandler.Submit)

	// API
	api := r.Group("/api")

	api.GET("/intake", intakeHandler.List)
	api.GET("/intake/:id", intakeHandler.Get)
	api.PUT("/intake/:id", intakeHandler.UpdateStatus)
	api.DELETE("/intake/:id", intakeHandler.Delete)
	api.GET("/export", intakeHandler.Export)
	api.GET("/backlog", intakeHandler.Backlog)
	api.PUT("/update_status", intakeHandler.UpdateTriage)

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"services": gin.H{
				"database": "connected",
				"redis":    "connected",
				"jira":     cfg.JiraEnabled(),
			},
		})
	})

	// Системная статистика
	api.GET("/stats", func(c *gin.Context) {
		ctx := c.Request.Context()

		redisStats, _ := redis.GetStats(redisClient)
		intakeCount, _ := intakeService.Count(ctx)

		c.JSON(200, gin.H{
			"database": gin.H{
				"intake_requests": intakeCount,
			},
			"redis": redisStats,
			"workers": gin.H{
				"snapshot_enabled": cfg.Snapshot.Enabled,
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%s", cfg.App.Port)
		log.Printf("API available at http://localhost:%s/api", cfg.App.Port)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start:", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited properly")
}
