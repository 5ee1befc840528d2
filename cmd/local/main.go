package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"crewflow/internal/api"
	"crewflow/internal/bot"
	"crewflow/internal/database"
	"crewflow/internal/messaging"
	"crewflow/internal/telegram"
	"crewflow/internal/workflow"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Single-process mode: sqlite on disk, in-memory queue instead of
// RabbitMQ, bot and API in one binary.
type Config struct {
	Root     string  `env:"ROOT" envDefault:"./crewflow"`
	Port     int     `env:"PORT" envDefault:"3001"`
	BotToken string  `env:"BOT_TOKEN,notEmpty,required"`
	AdminIds []int64 `env:"ADMIN_IDS,notEmpty,required"`
}

func createDatabase(root string) *gorm.DB {
	path := filepath.Join(root, "db", "crewflow.db")
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.GetMigrator(db).Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}

func createServer(engine *workflow.Engine, port int) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		api.NewBackendService(engine).AddRoutes(r)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating directory for log file: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(cfg.Root, "crewflow.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(f, os.Stderr))

	slog.Info("starting crewflow", "root", cfg.Root, "port", cfg.Port)

	db := createDatabase(cfg.Root)
	queue := messaging.NewInMemoryQueue()
	client := telegram.NewClient(cfg.BotToken)
	engine := workflow.NewEngine(db, queue, cfg.AdminIds)

	notifier := messaging.NewNotifier(queue, client)
	notifier.Start()

	server := createServer(engine, cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := bot.NewBot(engine, client).Run(ctx, client); err != nil && err != context.Canceled {
			log.Fatalf("bot stopped: %v", err)
		}
	}()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		slog.Info("shutting down bot and notifier")
		cancel()
		notifier.Stop()
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	slog.Info("server stopped")
}
