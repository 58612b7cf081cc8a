package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/bizmatters/warm-ranker/internal/config"
	"github.com/bizmatters/warm-ranker/internal/gateway"
	"github.com/bizmatters/warm-ranker/internal/metrics"
	"github.com/bizmatters/warm-ranker/internal/ranking"

	_ "github.com/bizmatters/warm-ranker/docs" // swagger docs
)

// @title Warm Ranker API
// @version 1.0
// @description Ranks uploaded contact exports against an idea by delegating to an external scorer process.

// @contact.name API Support
// @contact.email support@bizmatters.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// Scorer runs can take minutes when the model is slow
const defaultWriteTimeout = 10 * time.Minute

func main() {
	// Initialize OpenTelemetry
	tp, err := initTracer()
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}

	cfg, err := config.FromEnvironment()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	rankMetrics, err := metrics.NewRankMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	pipeline, err := ranking.New(cfg, ranking.WithMetrics(rankMetrics))
	if err != nil {
		log.Fatalf("Failed to initialize ranking pipeline: %v", err)
	}
	log.Printf(`{"level":"info","message":"Ranking pipeline ready","candidates":"%s","artifact_dir":"%s","max_upload":"%s"}`,
		strings.Join(pipeline.Candidates(), ","), pipeline.ScopeDir(), cfg.MaxUpload)

	handler := gateway.NewHandler(pipeline)
	router := gateway.NewRouter(handler, cfg.CORSOrigins)

	// Swagger documentation (public)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// HTTP server configuration
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	writeTimeout := defaultWriteTimeout
	if cfg.Timeout > 0 {
		writeTimeout = cfg.Timeout + 30*time.Second
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting Warm Ranker API server on port %s\n", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// In-flight requests release their artifacts as their handlers return
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.Printf("Failed to flush traces: %v", err)
	}

	log.Println("Server exited")
}

// initTracer initializes OpenTelemetry tracing
func initTracer() (*trace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)

	return tp, nil
}
