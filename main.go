package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/pulsewatch/backend/internal/client"
	"github.com/pulsewatch/backend/internal/config"
	"github.com/pulsewatch/backend/internal/db"
	"github.com/pulsewatch/backend/internal/handler"
	"github.com/pulsewatch/backend/internal/service"
)

func main() {
	// .env는 있으면 읽고 없으면 무시 (컨테이너 환경은 env로 주입)
	_ = godotenv.Load()

	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	database := &db.Postgres{Pool: pool}
	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	embeddingClient, err := client.NewEmbeddingClient(cfg.AI)
	if err != nil {
		log.Fatalf("Failed to create embedding client: %v", err)
	}
	generationClient, err := client.NewGenerationClient(cfg.AI)
	if err != nil {
		log.Fatalf("Failed to create generation client: %v", err)
	}

	logClient := client.NewLogSourceClient(cfg.LogSource)
	metricClient := client.NewMetricsClient(cfg.Influx)
	slackClient := client.NewSlackClient(cfg.Slack)

	pipeline := service.NewPipelineService(service.PipelineDeps{
		Projects:     database,
		Summaries:    database,
		Embeddings:   database,
		Metrics:      database,
		Predictions:  database,
		LogClient:    logClient,
		MetricClient: metricClient,
		Notifier:     slackClient,
		Embedder:     embeddingClient,
		Generator:    generationClient,
	}, cfg.Pipeline, cfg.LogSource.MaxPages)

	authService := service.NewAuthService(cfg.Auth)
	pipelineHandler := handler.NewPipelineHandler(pipeline)

	router := gin.Default()
	router.Use(handler.CORSMiddleware(cfg.Server.AllowedOrigins, true))

	router.GET("/ping", handler.Ping)
	router.GET("/", handler.Root)

	api := router.Group("/api/v1")
	api.Use(handler.AuthMiddleware(authService))
	{
		api.GET("/projects/:id/health", pipelineHandler.RunHealthCheck)
		api.POST("/projects/:id/logs/process", pipelineHandler.ProcessLogs)
		api.GET("/projects/:id/predictions", pipelineHandler.ListPredictions)
	}

	if err := router.Run(cfg.Server.Addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
