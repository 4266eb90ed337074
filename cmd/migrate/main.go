package main

import (
	"context"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/tasktree/tasktree/internal/config"
	"github.com/tasktree/tasktree/internal/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	log.WithField("path", cfg.Database.Path).Info("running database migrations")
	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Info("migrations completed")
}
