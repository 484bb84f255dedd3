package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/quorumai/quorum/internal/config"
	"github.com/quorumai/quorum/internal/consensus"
	"github.com/quorumai/quorum/internal/ensemble"
	"github.com/quorumai/quorum/internal/fallback"
	"github.com/quorumai/quorum/internal/handlers"
	"github.com/quorumai/quorum/internal/metrics"
	"github.com/quorumai/quorum/internal/prompt"
	"github.com/quorumai/quorum/internal/provider/factory"
	"github.com/quorumai/quorum/internal/session"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load()

	table := prompt.DefaultTable()
	if cfg.Personas.Path != "" {
		loaded, err := prompt.LoadTable(cfg.Personas.Path)
		if err != nil {
			log.WithError(err).Fatal("failed to load persona table")
		}
		table = loaded
	}

	registry := factory.Build(cfg, log)
	if registry.Len() == 0 {
		log.Warn("no provider credentials configured, all requests will use fallback")
	}

	var sessions session.Store
	switch cfg.Session.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Session.RedisAddr,
			DB:   cfg.Session.RedisDB,
		})
		sessions = session.NewRedisStore(client, cfg.Session.MaxTurns)
		log.WithField("addr", cfg.Session.RedisAddr).Info("using redis session store")
	default:
		sessions = session.NewMemoryStore(cfg.Session.MaxTurns)
	}

	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(promRegistry)

	orchestrator := ensemble.NewOrchestrator(
		registry,
		prompt.NewBuilder(table, cfg.Session.TailTurns),
		consensus.NewEngine(consensus.DefaultConfig()),
		fallback.New(table, cfg.Fallback.Seed),
		sessions,
		ensemble.NewDispatcher(registry, cfg.Ensemble.MaxConcurrent, collector, log),
		collector,
		log,
	)

	r := gin.New()
	r.Use(gin.Recovery())
	handlers.New(orchestrator, registry, promRegistry, log).Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.WithFields(logrus.Fields{
		"port":      cfg.Server.Port,
		"providers": registry.Len(),
	}).Info("quorum listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server exited")
	}
}
