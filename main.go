package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orientachat/internal/api"
	"orientachat/internal/auth"
	"orientachat/internal/config"
	"orientachat/internal/logger"
	"orientachat/internal/redis"
	"orientachat/internal/service/ai"
	"orientachat/internal/service/shell"
	"orientachat/internal/storage"
	"orientachat/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// visitorStore is what the visitor builder and the reset purge need from a backend.
type visitorStore interface {
	shell.KVStore
	worker.Purger
}

func main() {
	cfg, err := config.Load(os.Getenv("ORIENTACHAT_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := logger.Initialize(cfg.Logger); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Get().Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	lg := logger.Get()

	dbType := cfg.BasicConfig.Database
	lg.Info("opening database", zap.String("driver", dbType))
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	// Create the tables: kv_store, feedback
	if err := storage.Migrate(db, dbType); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	feedback, err := storage.NewFeedbackRepository(db)
	if err != nil {
		return fmt.Errorf("init feedback repository: %w", err)
	}

	checks := map[string]api.HealthCheck{
		"database": func(ctx context.Context) error { return db.PingContext(ctx) },
	}

	var rdb *redis.Client
	if cfg.BasicConfig.KVBackend == "redis" {
		rdb, err = redis.NewRedisClient(cfg)
		if err != nil {
			return fmt.Errorf("create redis client: %w", err)
		}
		defer rdb.Close()
		checks["redis"] = rdb.Ping
	}
	store, err := newVisitorStore(cfg.BasicConfig.KVBackend, db, dbType, rdb)
	if err != nil {
		return err
	}

	geminiKey := cfg.SpeechAPIKey()
	if geminiKey == "" {
		return errors.New("speech synthesis needs providers.gemini.api_key")
	}
	geminiClient, err := ai.NewGeminiClient(ctx, geminiKey)
	if err != nil {
		return err
	}
	chats, err := ai.NewChatFactory(ctx, cfg, geminiClient)
	if err != nil {
		return fmt.Errorf("init chat provider: %w", err)
	}
	synth, err := ai.NewGeminiSynthesizer(geminiClient, cfg.Speech.Model, cfg.Speech.Voice)
	if err != nil {
		return fmt.Errorf("init speech synthesizer: %w", err)
	}

	build := func(ctx context.Context, visitorID string) (*shell.Shell, error) {
		return shell.New(ctx, shell.Config{
			VisitorID:        visitorID,
			Chats:            chats,
			Synthesizer:      synth,
			Store:            shell.Namespace(store, visitorID),
			Feedback:         feedback,
			StreamTimeout:    cfg.StreamTimeout(),
			AutoPlayDelay:    cfg.AutoPlayDelay(),
			SynthesisTimeout: cfg.SynthesisTimeout(),
			FeedbackReset:    cfg.FeedbackReset(),
		})
	}
	opts := []worker.Option{
		worker.WithIdleTimeout(cfg.VisitorIdle()),
		worker.WithPurger(store),
	}
	if rdb != nil {
		opts = append(opts, worker.WithInvalidation(worker.NewInvalidator(rdb)))
	}
	visitors := worker.NewManager(build, opts...)
	defer visitors.Close()

	secureCookies := os.Getenv("ORIENTACHAT_SECURE_COOKIES") == "true"
	handlers := api.NewHandler(auth.NewService(0, secureCookies), visitors, checks)

	if cfg.Logger.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	handlers.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("orientachat listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newVisitorStore(backend string, db *sql.DB, dbType string, rdb *redis.Client) (visitorStore, error) {
	switch backend {
	case "memory":
		return shell.NewMemoryStore(), nil
	case "redis":
		return redis.NewKVStore(rdb.Raw(), 0), nil
	default:
		store, err := storage.NewKVStore(db, dbType)
		if err != nil {
			return nil, fmt.Errorf("init kv store: %w", err)
		}
		return store, nil
	}
}
