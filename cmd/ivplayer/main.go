package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sendrec/ivplayer/internal/database"
	"github.com/sendrec/ivplayer/internal/events"
	"github.com/sendrec/ivplayer/internal/geoip"
	"github.com/sendrec/ivplayer/internal/server"
	"github.com/sendrec/ivplayer/internal/session"
	"github.com/sendrec/ivplayer/internal/storage"
	"github.com/sendrec/ivplayer/internal/webhook"
	"golang.org/x/sync/errgroup"
)

const usage = `usage: ivplayer <command> [flags]

commands:
  serve      run the HTTP API and embed player (default)
  simulate   play an interaction file against a virtual clock
  mpv        drive a running mpv instance with an interaction file
`

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}

	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "serve":
		err = serve(ctx)
	case "simulate":
		err = simulate(ctx, args)
	case "mpv":
		err = runMPV(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func serve(ctx context.Context) error {
	port := getEnv("PORT", "8080")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := database.Connect(startCtx, databaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(databaseURL); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("database migrations applied")

	maxUploadBytes := getEnvInt64("MAX_UPLOAD_BYTES", 2*1024*1024*1024)
	store, err := storage.New(startCtx, storage.Config{
		Endpoint:       getEnv("S3_ENDPOINT", "http://localhost:3900"),
		PublicEndpoint: os.Getenv("S3_PUBLIC_ENDPOINT"),
		Bucket:         getEnv("S3_BUCKET", "ivplayer"),
		AccessKey:      os.Getenv("S3_ACCESS_KEY"),
		SecretKey:      os.Getenv("S3_SECRET_KEY"),
		Region:         getEnv("S3_REGION", "eu-central-1"),
		MaxUploadBytes: maxUploadBytes,
	})
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	if err := store.EnsureBucket(startCtx); err != nil {
		return fmt.Errorf("storage bucket check failed: %w", err)
	}

	baseURL := getEnv("BASE_URL", "http://localhost:8080")
	corsOrigins := splitList(os.Getenv("CORS_ORIGINS"))
	bucketOrigins := corsOrigins
	if len(bucketOrigins) == 0 {
		bucketOrigins = []string{baseURL}
	}
	if err := store.SetCORS(startCtx, bucketOrigins); err != nil {
		log.Printf("storage CORS not applied: %v", err)
	}
	log.Println("storage bucket ready")

	geo := geoip.New(os.Getenv("GEOIP_DB_PATH"))
	defer func() { _ = geo.Close() }()

	var mqttPublisher events.Publisher = events.Nop{}
	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		p, err := events.NewMQTT(events.MQTTConfig{
			Broker:      broker,
			ClientID:    getEnv("MQTT_CLIENT_ID", "ivplayer"),
			TopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "ivplayer"),
			QoS:         byte(getEnvInt64("MQTT_QOS", 0)),
		})
		if err != nil {
			log.Printf("interaction events disabled: %v", err)
		} else {
			mqttPublisher = p
			log.Printf("publishing interaction events to %s", broker)
		}
	}

	var webhookPublisher events.Publisher = events.Nop{}
	if url := os.Getenv("WEBHOOK_URL"); url != "" {
		webhookPublisher = webhook.NewPublisher(webhook.New(db.Pool), url, os.Getenv("WEBHOOK_SECRET"))
		log.Printf("forwarding interaction events to %s", url)
	}

	publisher := events.Combine(mqttPublisher, webhookPublisher)
	defer publisher.Close()

	var webFS fs.FS
	if dir := os.Getenv("WEB_DIR"); dir != "" {
		webFS = os.DirFS(dir)
		log.Printf("serving frontend from %s", dir)
	}

	srv := server.New(server.Config{
		DB:               db.Pool,
		Pinger:           db,
		Storage:          store,
		Locator:          geo,
		WebFS:            webFS,
		JWTSecret:        jwtSecret,
		BaseURL:          baseURL,
		MaxUploadBytes:   maxUploadBytes,
		S3PublicEndpoint: os.Getenv("S3_PUBLIC_ENDPOINT"),
		CORSOrigins:      corsOrigins,
		EnableDocs:       getEnv("API_DOCS_ENABLED", "false") == "true",
		Sessions: session.Config{
			Publisher:   publisher,
			IdleTTL:     getEnvDuration("SESSION_IDLE_TTL", session.DefaultIdleTTL),
			MaxSessions: int(getEnvInt64("MAX_SESSIONS", session.DefaultMaxSessions)),
			Speed:       1,
		},
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("ivplayer listening on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return srv.Sessions().Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	log.Println("shutdown complete")
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
