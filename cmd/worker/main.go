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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/suPer8Hu/postcraft/internal/ai"
	"github.com/suPer8Hu/postcraft/internal/config"
	"github.com/suPer8Hu/postcraft/internal/credential"
	"github.com/suPer8Hu/postcraft/internal/db"
	"github.com/suPer8Hu/postcraft/internal/generation"
	"github.com/suPer8Hu/postcraft/internal/metrics"
	"github.com/suPer8Hu/postcraft/internal/prompt"
	"github.com/suPer8Hu/postcraft/internal/store/rabbitmq"
)

func main() {
	cfg := config.Load()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}

	cipher, err := credential.NewCipher(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("cipher: %v", err)
	}

	// same provider set as the API
	reg := ai.NewRegistry()
	ai.RegisterBuiltins(reg, ai.Options{
		HTTPTimeout:      cfg.AIHTTPTimeout,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		AnthropicBaseURL: cfg.AnthropicBaseURL,
		GeminiBaseURL:    cfg.GeminiBaseURL,
		FluxBaseURL:      cfg.BFLBaseURL,
		LMStudioURL:      cfg.LMStudioURL,
		BedrockRegion:    cfg.BedrockRegion,
		FluxPollInterval: cfg.BFLPollInterval,
		FluxMaxAttempts:  cfg.BFLMaxAttempts,
	})

	rec, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	gen := generation.NewGormOrchestrator(gdb, reg, cipher, rec)
	// jobs are already queued here, so no publisher
	jobs := generation.NewJobService(generation.NewJobRepo(gdb), gen, prompt.NewRepo(gdb), nil, rec)

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, rabbitmq.ConsumerConfig{
		Queue:       cfg.RabbitQueue,
		Concurrency: cfg.WorkerConcurrency,
		MaxRetries:  cfg.WorkerMaxRetries,
		RetryDelay:  cfg.WorkerRetryDelay,
	})
	if err != nil {
		log.Fatalf("rabbit: %v", err)
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.WorkerMetricsAddr != "" {
		go serveMetrics(ctx, cfg.WorkerMetricsAddr)
	}

	if err := consumer.Run(ctx, jobs.Run); err != nil {
		log.Fatalf("worker stopped: %v", err)
	}
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("worker metrics listening addr=%s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("[Worker] metrics server: %v", err)
	}
}
