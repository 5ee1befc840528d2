package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"crewflow/cmd"
	"crewflow/internal/bot"
	"crewflow/internal/database"
	"crewflow/internal/messaging"
	"crewflow/internal/telegram"
	"crewflow/internal/workflow"

	"github.com/caarlos0/env/v11"
)

type BotConfig struct {
	BotToken    string  `env:"BOT_TOKEN,notEmpty,required"`
	AdminIds    []int64 `env:"ADMIN_IDS,notEmpty,required"`
	DatabaseURL string  `env:"DATABASE_URL,notEmpty,required"`
	RabbitMQURL string  `env:"RABBITMQ_URL,notEmpty,required"`
}

func main() {
	log.Println("Starting bot...")

	cmd.LoadEnvFile()

	var cfg BotConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	client := telegram.NewClient(cfg.BotToken)
	engine := workflow.NewEngine(db, publisher, cfg.AdminIds)

	notifier := messaging.NewNotifier(receiver, client)
	notifier.Start()
	defer notifier.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down bot")
		cancel()
	}()

	slog.Info("bot started", "admins", len(cfg.AdminIds))
	if err := bot.NewBot(engine, client).Run(ctx, client); err != nil && err != context.Canceled {
		log.Fatalf("bot stopped: %v", err)
	}

	slog.Info("bot stopped")
}
