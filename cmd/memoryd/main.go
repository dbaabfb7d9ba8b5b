// Command memoryd serves the Tarot memory game.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jason-s-yu/arcana-memory/engine"
	"github.com/jason-s-yu/arcana-memory/internal/config"
	"github.com/jason-s-yu/arcana-memory/internal/events"
	"github.com/jason-s-yu/arcana-memory/internal/game"
	"github.com/jason-s-yu/arcana-memory/internal/logging"
	"github.com/jason-s-yu/arcana-memory/internal/results"
	"github.com/jason-s-yu/arcana-memory/internal/server"
	"github.com/jason-s-yu/arcana-memory/internal/session"
	"github.com/sirupsen/logrus"
)

const (
	recentResultsKept = 100
	shutdownTimeout   = 10 * time.Second
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logrus.WithError(err).Fatal("Failed to load .env.")
	}
	cfg, err := config.LoadServer()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration.")
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid logging configuration.")
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("Server stopped.")
	}
}

func run(ctx context.Context, cfg config.Server, log *logrus.Logger) error {
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	recorder, closeRecorder, err := openRecorder(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRecorder()

	var forward events.Forwarder
	if cfg.NATSURL != "" {
		nc, err := events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer nc.Drain()
		forward = events.NewNATSForwarder(nc)
		log.WithField("url", nc.ConnectedUrlRedacted()).Info("Forwarding game events to NATS.")
	}
	bus := events.NewBus(forward, log)

	tokens, err := session.NewTokens(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}

	rules := engine.DefaultHouseRules()
	rules.CPUOpponent = cfg.CPUOpponent
	games := game.NewManager(store, recorder, bus, rules, game.WithLogger(log))

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.New(games, bus, tokens, server.Options{
			MinFlipInterval: cfg.MinFlipInterval,
			AllowedOrigins:  cfg.AllowedOrigins,
			SecureCookie:    cfg.GinMode == gin.ReleaseMode && len(cfg.AllowedOrigins) > 0,
			Logger:          log,
		}).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "cpu": rules.CPUOpponent}).Info("Listening.")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore uses Redis when REDIS_URL is set and process memory otherwise.
func openStore(ctx context.Context, cfg config.Server, log logrus.FieldLogger) (session.Store, func(), error) {
	if cfg.RedisURL == "" {
		mem := session.NewMemoryStore(cfg.SessionTTL)
		done := make(chan struct{})
		go func() {
			t := time.NewTicker(time.Minute)
			defer t.Stop()
			for {
				select {
				case <-done:
					return
				case <-t.C:
					if n := mem.Sweep(); n > 0 {
						log.WithField("expired", n).Debug("Swept sessions.")
					}
				}
			}
		}()
		log.Info("Keeping sessions in memory.")
		return mem, func() { close(done) }, nil
	}

	rdb, err := session.Dial(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info("Keeping sessions in Redis.")
	return session.NewRedisStore(rdb, cfg.SessionTTL), func() { _ = rdb.Close() }, nil
}

// openRecorder uses Postgres when DATABASE_URL is set and process memory otherwise.
func openRecorder(ctx context.Context, cfg config.Server, log logrus.FieldLogger) (results.Recorder, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("Keeping game results in memory.")
		return results.NewMemoryRecorder(recentResultsKept), func() {}, nil
	}
	rec, pool, err := results.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info("Recording game results in Postgres.")
	return rec, pool.Close, nil
}
