package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/example/ec-admin-sync/internal/app"
	"github.com/example/ec-admin-sync/internal/config"
)

func main() {
	configPath := flag.String("config", getEnv("EC_CONFIG", config.DefaultPath), "path to config.toml")
	envFile := flag.String("env", ".env", "dotenv file loaded before the config")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("[SYNC] could not load env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("[SYNC] invalid configuration")
	}

	logger := newLogger(cfg.Log)
	log := logrus.NewEntry(logger).WithField("service", "ec-admin-sync")

	log.Info("[SYNC] ========================================")
	log.Info("[SYNC] EC Admin - sync client")
	log.Info("[SYNC] ========================================")
	log.WithFields(logrus.Fields{
		"api":      cfg.API.BaseURL,
		"realtime": cfg.Realtime.URL,
		"kafka":    cfg.Realtime.KafkaBrokers,
		"storage":  cfg.Storage.Path,
	}).Info("[SYNC] configuration loaded")

	a, err := app.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("[SYNC] failed to build client")
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.Metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.WithField("addr", cfg.Metrics.Addr).Info("[SYNC] metrics endpoint started")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("[SYNC] metrics server error")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancelInit := context.WithTimeout(ctx, time.Minute)
	err = a.Init(initCtx)
	cancelInit()
	if err != nil {
		_ = a.Dispose()
		log.WithError(err).Fatal("[SYNC] startup failed")
	}

	unsubscribe := logChanges(a, log)
	defer unsubscribe()

	<-ctx.Done()
	log.Info("[SYNC] Shutting down...")

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}
	if err := a.Dispose(); err != nil {
		log.WithError(err).Warn("[SYNC] shutdown incomplete")
	}
}

// logChanges reports store sizes whenever a store changes
func logChanges(a *app.App, log *logrus.Entry) func() {
	unsubs := []func(){
		a.Products.Subscribe(func() { log.WithField("products", a.Products.Len()).Debug("[SYNC] products changed") }),
		a.Orders.Subscribe(func() {
			log.WithFields(logrus.Fields{"orders": a.Orders.Len(), "loading": a.Orders.Loading()}).Debug("[SYNC] orders changed")
		}),
		a.Inventory.Subscribe(func() { log.WithField("inventory", a.Inventory.Len()).Debug("[SYNC] inventory changed") }),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func newLogger(cfg config.Log) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
