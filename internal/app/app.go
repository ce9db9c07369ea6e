// Package app assembles the daemon: config, logging, store, collaborators,
// registry, sweep, and the CRUD API, with start/stop ordering and config hot
// reload.
package app

import (
	"context"
	"fmt"

	"assetlink/internal/api"
	"assetlink/internal/assets"
	"assetlink/internal/config"
	"assetlink/internal/metrics"
	"assetlink/internal/pubsub"
	"assetlink/internal/registry"
	"assetlink/internal/relay"
	"assetlink/internal/store"
	logx "assetlink/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger
	met    *metrics.Metrics

	st     store.Store
	src    assets.Source
	pub    *pubsub.Fanout
	action *relay.Action
	reg    *registry.Registry
	sweep  *registry.Sweeper
	api    *api.Server

	watchCancel context.CancelFunc
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Log.Level,
		Console: cfg.Log.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Log.File.Enabled,
			Path:    cfg.Log.File.Path,
		},
	})
	mgr.SetLogger(log.With(logx.String("comp", "config")))
	mgr.SetValidator(func(ctx context.Context, c *config.Config) error {
		return config.Validate(c)
	})

	return &App{
		cfgMgr: mgr,
		logSvc: logSvc,
		log:    log,
		met:    metrics.New(),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgMgr.Get()

	busy, err := cfg.Storage.BusyWait()
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, store.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		DSN:         cfg.Storage.DSN,
		BusyTimeout: busy,
	}, a.log.With(logx.String("comp", "store")))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.st = st

	fetchTimeout, err := cfg.Assets.FetchWait()
	if err != nil {
		return err
	}
	src, err := assets.Open(assets.Config{
		Driver:       cfg.Assets.Driver,
		Addr:         cfg.Assets.Addr,
		KeyPrefix:    cfg.Assets.KeyPrefix,
		FetchTimeout: fetchTimeout,
	}, a.log.With(logx.String("comp", "assets")))
	if err != nil {
		return fmt.Errorf("open asset source: %w", err)
	}
	a.src = src

	pubCfg := pubsub.Config{
		Driver:        cfg.Publisher.Driver,
		Addr:          cfg.Publisher.Addr,
		ChannelPrefix: cfg.Publisher.ChannelPrefix,
	}
	live, err := pubsub.Open(pubCfg, a.log.With(logx.String("comp", "pubsub")))
	if err != nil {
		return fmt.Errorf("open publisher: %w", err)
	}
	var mirror *pubsub.KafkaMirror
	if cfg.Publisher.Kafka.Enabled {
		mirror, err = pubsub.NewKafkaMirror(cfg.Publisher.Kafka.Brokers, cfg.Publisher.Kafka.Topic)
		if err != nil {
			_ = live.Close()
			return fmt.Errorf("open kafka mirror: %w", err)
		}
	}
	a.pub = pubsub.NewFanout(live, mirror, cfg.Publisher.WarnRatePerSec, a.log.With(logx.String("comp", "pubsub")))

	publishTimeout, err := cfg.Publisher.PublishWait()
	if err != nil {
		return err
	}
	a.action = relay.New(relay.Config{
		FetchTimeout:   fetchTimeout,
		PublishTimeout: publishTimeout,
	}, a.src, a.pub, pubCfg.Channel, a.log.With(logx.String("comp", "relay")), a.met)

	a.reg = registry.New(registry.Config{
		DegradedThreshold: cfg.Scheduler.DegradedThreshold,
	}, a.st, a.action, a.log.With(logx.String("comp", "registry")), a.met)
	a.reg.Start(ctx)
	if err := a.reg.LoadAll(ctx); err != nil {
		// An unreachable store at startup is fatal: without recovery we
		// cannot know what should be running.
		return err
	}

	sweepInterval, err := cfg.Scheduler.SweepEvery()
	if err != nil {
		return err
	}
	a.sweep = registry.NewSweeper(a.reg, sweepInterval, a.log.With(logx.String("comp", "sweep")), a.met)
	a.sweep.Start(ctx)

	if cfg.API.IsEnabled() {
		a.api = api.New(api.Config{
			Addr:             cfg.API.Addr,
			CreateRatePerSec: cfg.API.CreateRatePerSec,
		}, a.reg, a.st, a.met, a.log.With(logx.String("comp", "api")))
		a.api.Start(ctx)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	go func() {
		if err := a.cfgMgr.Watch(watchCtx); err != nil {
			a.log.Warn("config watch unavailable", logx.Err(err))
		}
	}()
	go a.applyLoop(watchCtx)

	a.log.Info("assetlink started")
	return nil
}

// applyLoop pushes hot-reloadable settings into running services.
func (a *App) applyLoop(ctx context.Context) {
	sub := a.cfgMgr.Subscribe(4)
	defer a.cfgMgr.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok || cfg == nil {
				return
			}
			a.logSvc.Apply(logx.Config{
				Level:   cfg.Log.Level,
				Console: cfg.Log.ConsoleEnabled(),
				File: logx.FileConfig{
					Enabled: cfg.Log.File.Enabled,
					Path:    cfg.Log.File.Path,
				},
			})
			if d, err := cfg.Scheduler.SweepEvery(); err == nil {
				a.sweep.Apply(d)
			}
			fetch, ferr := cfg.Assets.FetchWait()
			publish, perr := cfg.Publisher.PublishWait()
			if ferr == nil && perr == nil {
				a.action.Apply(relay.Config{FetchTimeout: fetch, PublishTimeout: publish})
			}
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.watchCancel != nil {
		a.watchCancel()
	}
	if a.api != nil {
		a.api.Stop(ctx)
	}
	if a.sweep != nil {
		a.sweep.Stop(ctx)
	}
	if a.reg != nil {
		a.reg.Stop(ctx)
	}
	if a.pub != nil {
		_ = a.pub.Close()
	}
	if a.src != nil {
		_ = a.src.Close()
	}
	if a.st != nil {
		_ = a.st.Close()
	}
	a.log.Info("assetlink stopped")
	_ = a.logSvc.Close()
	return nil
}
