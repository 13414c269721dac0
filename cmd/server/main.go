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
	"github.com/suPer8Hu/postcraft/internal/ai"
	"github.com/suPer8Hu/postcraft/internal/config"
	"github.com/suPer8Hu/postcraft/internal/db"
	"github.com/suPer8Hu/postcraft/internal/httpapi"
	"github.com/suPer8Hu/postcraft/internal/httpapi/handlers"
	"github.com/suPer8Hu/postcraft/internal/media"
	"github.com/suPer8Hu/postcraft/internal/metrics"
	"github.com/suPer8Hu/postcraft/internal/store/rabbitmq"
	"github.com/suPer8Hu/postcraft/internal/store/redisstore"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if os.Getenv("AUTO_MIGRATE") == "1" {
		if err := db.Migrate(gdb); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	reg := ai.NewRegistry()
	ai.RegisterBuiltins(reg, providerOptions(cfg))

	rec, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra := handlers.Infra{Metrics: rec}

	// optional infrastructure: each piece degrades its own endpoints only
	rdb := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := rdb.Ping(pingCtx); err != nil {
		log.Printf("[Server] redis unavailable addr=%s err=%v, token revocation disabled", cfg.RedisAddr, err)
		_ = rdb.Close()
	} else {
		infra.Revoker = rdb
		defer rdb.Close()
	}
	cancel()

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Printf("[Server] rabbitmq unavailable err=%v, async generation disabled", err)
	} else {
		infra.Publisher = pub
		defer pub.Close()
	}

	if cfg.S3Bucket != "" {
		store, err := media.NewS3Store(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Endpoint)
		if err != nil {
			log.Fatalf("s3: %v", err)
		}
		infra.Media = store
	} else {
		log.Printf("[Server] S3_BUCKET not set, media kept in memory")
		infra.Media = media.NewMemoryStore("memory://postcraft")
	}

	h, err := handlers.NewHandler(gdb, cfg, reg, infra)
	if err != nil {
		log.Fatalf("handler: %v", err)
	}
	r := httpapi.NewRouter(h, httpapi.Options{
		CORSOrigins:    cfg.CORSOrigins,
		MaxMultipartMB: cfg.MaxUploadMB,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[Server] graceful shutdown failed: %v", err)
		}
	}()

	log.Printf("server listening addr=%s", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("listen: %v", err)
	}
	log.Printf("server stopped")
}

func providerOptions(cfg config.Config) ai.Options {
	return ai.Options{
		HTTPTimeout:      cfg.AIHTTPTimeout,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		AnthropicBaseURL: cfg.AnthropicBaseURL,
		GeminiBaseURL:    cfg.GeminiBaseURL,
		FluxBaseURL:      cfg.BFLBaseURL,
		LMStudioURL:      cfg.LMStudioURL,
		BedrockRegion:    cfg.BedrockRegion,
		FluxPollInterval: cfg.BFLPollInterval,
		FluxMaxAttempts:  cfg.BFLMaxAttempts,
	}
}
