package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/tasktree/tasktree/internal/api"
	"github.com/tasktree/tasktree/internal/config"
	"github.com/tasktree/tasktree/internal/database"
	"github.com/tasktree/tasktree/internal/events"
	"github.com/tasktree/tasktree/internal/repository"
	"github.com/tasktree/tasktree/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if lvl, err := log.ParseLevel(cfg.Server.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	bus := events.NewBus()
	for _, kind := range []events.Kind{events.TaskAdded, events.TaskUpdated, events.TaskDeleted, events.TaskMoved} {
		k := kind
		bus.Subscribe(k, func(e events.Event) {
			log.WithFields(log.Fields{"event": k.String(), "task_id": e.TaskID}).Debug("task event")
		})
	}

	repo := repository.NewTaskRepository(db)
	svc := service.NewTaskService(repo, bus)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	api.Register(e, svc, db, cfg.Backup.Dir)

	go func() {
		log.WithField("port", cfg.Server.HTTPPort).Info("tasktree server listening")
		if err := e.Start(":" + cfg.Server.HTTPPort); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
