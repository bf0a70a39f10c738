package main

import (
	"context"
	"log"

	"givebridge/internal/config"
	"givebridge/internal/devserver"
	"givebridge/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l := logger.New(cfg.Server.Environment)
	defer l.Logger.Sync()

	srv, err := devserver.New(cfg.Server, l)
	if err != nil {
		log.Fatalf("Failed to build devserver: %v", err)
	}

	if err := srv.Run(context.Background()); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
