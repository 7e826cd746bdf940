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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yourusername/quiznight-api/internal/config"
	"github.com/yourusername/quiznight-api/internal/domain/entity"
	"github.com/yourusername/quiznight-api/internal/handler"
	"github.com/yourusername/quiznight-api/internal/pack"
	pgRepo "github.com/yourusername/quiznight-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/quiznight-api/internal/repository/redis"
	"github.com/yourusername/quiznight-api/internal/service"
	"github.com/yourusername/quiznight-api/internal/service/gamesession"
	ws "github.com/yourusername/quiznight-api/internal/websocket"
	"github.com/yourusername/quiznight-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	teamRepo := pgRepo.NewTeamRepo(db)
	answerRepo := pgRepo.NewAnswerRepo(db)
	actionLogRepo := pgRepo.NewActionLogRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Загружаем пак вопросов
	packStore, err := pack.NewStore(cfg.Pack.Path)
	if err != nil {
		log.Printf("Failed to load question pack: %v", err)
		os.Exit(1)
	}

	// Инициализация WebSocket Hub
	wsHub := ws.NewHub()
	go wsHub.Run()

	wsManager := ws.NewManager(wsHub)

	// Конфигурация игровой сессии
	gameConfig := gamesession.DefaultConfig()
	if cfg.Game.TickIntervalMs > 0 {
		gameConfig.TickInterval = time.Duration(cfg.Game.TickIntervalMs) * time.Millisecond
	}

	// Инициализируем игровую сессию
	gameSession := service.NewGameSession(&gamesession.Dependencies{
		PackStore:     packStore,
		TeamRepo:      teamRepo,
		AnswerRepo:    answerRepo,
		ActionLogRepo: actionLogRepo,
		CacheRepo:     cacheRepo,
		Events:        wsManager,
		Config:        gameConfig,
	})

	gameSession.Recorder().Record(entity.ActionServerStarted, entity.JSONMap{
		"pack": packStore.Meta().Title,
	})

	// Инициализируем обработчики
	wsHandler := handler.NewWSHandler(wsHub, wsManager, gameSession)
	packHandler := handler.NewPackHandler(
		packStore,
		answerRepo,
		actionLogRepo,
		gameSession,
		wsManager,
		cfg.Pack.RulesPath,
		cfg.Pack.LogoPath,
	)

	// Инициализируем роутер Gin
	router := gin.Default()

	// Сервер живет в локальной сети мероприятия за собственным адресом,
	// прокси-заголовкам не доверяем
	if err := router.SetTrustedProxies(nil); err != nil {
		log.Printf("Warning: failed to set trusted proxies: %v", err)
	}

	// Настройка CORS: табло и пульты подключаются с произвольных адресов сети
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}))

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		api.GET("/pack", packHandler.GetPack)
		api.POST("/upload", packHandler.UploadPack)

		api.GET("/rules", packHandler.GetRules)
		api.POST("/rules", packHandler.UpdateRules)

		api.GET("/logo", packHandler.GetLogo)
		api.POST("/upload-logo", packHandler.UploadLogo)

		api.GET("/download-responses", packHandler.DownloadResponses)
		api.GET("/download-log", packHandler.DownloadLog)
		api.GET("/download-ranking", packHandler.DownloadRanking)
	}

	// WebSocket маршрут
	router.GET("/ws", wsHandler.HandleConnection)

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Останавливаем таймер раунда и хаб
	gameSession.Shutdown()
	wsHub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}

	log.Println("Server exited properly")
}
