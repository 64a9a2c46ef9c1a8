package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/api"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/bridge"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/config"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/dispatch"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/platform"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/platform/memory"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/platform/redis"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/publisher"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/receiver"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/sender"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (empty: environment and defaults only)")
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before the config")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("dotenv file not loaded", "path", *envFile, "err", err)
	}

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	level, _ := cfg.Server.Level()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, loader, cfg); err != nil {
		slog.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
	slog.Info("goodbye")
}

func run(ctx context.Context, loader *config.Loader, cfg *config.Config) error {
	// ── Platform channel ─────────────────────────────────────────────────────
	ch, err := drivers(cfg.Platform).Open(ctx, cfg.Platform.Driver)
	if err != nil {
		return err
	}
	defer ch.Close()
	slog.Info("platform channel open", "driver", ch.Name())

	// ── Dispatch path ────────────────────────────────────────────────────────
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	pub := publisher.New()
	dc := dispatch.Config{Workers: cfg.Dispatch.PoolSize(), QueueDepth: cfg.Dispatch.QueueDepth}
	disp := dispatch.New(workCtx, pub, dc)
	reg := receiver.NewRegistry(ch, disp)
	out := sender.New(ch)

	// ── Config-declared receivers + hot reload ───────────────────────────────
	presets := receiver.NewPresetSet(reg)
	if err := presets.Apply(ctx, cfg.Presets()); err != nil {
		slog.Warn("some preset receivers failed to register", "err", err)
	}
	slog.Info("preset receivers applied", "count", len(presets.Handles()))

	loader.OnChange(func(newCfg *config.Config) {
		if err := presets.Apply(context.Background(), newCfg.Presets()); err != nil {
			slog.Warn("hot-reload: preset reconciliation incomplete", "err", err)
			return
		}
		slog.Info("receivers hot-reloaded", "presets", len(newCfg.Receivers))
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	handler := api.New(api.Deps{
		Bridge:   bridge.New(reg, pub, out),
		Registry: reg,
		Events:   pub,
		Sender:   out,
		Platform: ch,
		Queue:    disp,
		Loader:   loader,
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down…")
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	err = g.Wait()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if cerr := reg.Close(closeCtx); cerr != nil {
		slog.Warn("receivers not cleanly unregistered", "err", cerr)
	}
	disp.Shutdown()
	return err
}

// drivers lists the platform channels this binary can open.
func drivers(pc config.PlatformConf) *platform.Drivers {
	d := platform.NewDrivers()
	d.Register("memory", func(context.Context) (platform.Channel, error) {
		return memory.New(), nil
	})
	d.Register("redis", func(ctx context.Context) (platform.Channel, error) {
		client, err := redis.Connect(ctx, redis.Config{
			URL:            pc.Redis.URL,
			RetryAttempts:  pc.Redis.RetryAttempts,
			RetryInterval:  pc.Redis.RetryInterval,
			ConnectTimeout: pc.Redis.ConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		return &ownedRedis{Channel: redis.New(client, redis.WithPrefix(pc.Redis.ChannelPrefix)), client: client}, nil
	})
	return d
}

// ownedRedis closes the client together with the channel.
type ownedRedis struct {
	*redis.Channel
	client *goredis.Client
}

func (o *ownedRedis) Close() error {
	return errors.Join(o.Channel.Close(), o.client.Close())
}
