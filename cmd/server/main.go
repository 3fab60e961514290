package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/lol-auction-backend/internal/config"
	"github.com/DoyleJ11/lol-auction-backend/internal/httpapi"
	"github.com/DoyleJ11/lol-auction-backend/internal/hub"
	"github.com/DoyleJ11/lol-auction-backend/internal/journal"
	"github.com/DoyleJ11/lol-auction-backend/internal/relay"
	"github.com/DoyleJ11/lol-auction-backend/internal/roster"
	"github.com/DoyleJ11/lol-auction-backend/internal/roster/postgres"
	"github.com/DoyleJ11/lol-auction-backend/internal/roster/sqlite"
	"github.com/DoyleJ11/lol-auction-backend/internal/session"
	"github.com/DoyleJ11/lol-auction-backend/internal/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "auction-server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) (err error) {
	flags := pflag.NewFlagSet("auction-server", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML config file")
	addr := flags.String("addr", "", "listen address, overrides server.addr")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	runID := uuid.NewString()
	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("run_id", runID))

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	j, err := openJournal(ctx, cfg.Redis, runID)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, j.Close()) }()

	h := hub.NewHub(ctx, log)
	defer h.Shutdown()

	var rl *relay.Relay
	if cfg.NATS.Enabled {
		nc, err := relay.Connect(cfg.NATS.URL, "auction-"+runID, log)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Close()
		rl = relay.New(nc, h, cfg.NATS.SubjectPrefix, runID, cfg.Session.ViewerBuffer, log)
	}

	sess, err := session.New(store, h, j, log, session.Options{FetchTimeout: cfg.Session.FetchTimeout})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Session: sess,
			Roster:  store,
			Journal: j,
			Hub:     h,
			Log:     log,
			WS: ws.Options{
				Buffer:         cfg.Session.ViewerBuffer,
				OriginPatterns: cfg.Server.AllowedOrigins,
			},
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		h.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if rl != nil {
		g.Go(func() error { return rl.Run(gctx) })
	}

	return g.Wait()
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func openStore(ctx context.Context, cfg config.StoreConfig) (roster.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.PostgresDSN)
	default:
		return sqlite.Open(ctx, cfg.SQLitePath)
	}
}

// openJournal falls back to an in-process journal when Redis is off.
func openJournal(ctx context.Context, cfg config.RedisConfig, runID string) (journal.Journal, error) {
	if !cfg.Enabled {
		return journal.NewMemory(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return journal.NewRedis(client, runID, cfg.JournalTTL), nil
}
