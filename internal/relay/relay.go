// Package relay executes one tick of a persistent task: fetch the bound
// asset's current property values and hand them to the publisher.
package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"assetlink/internal/assets"
	"assetlink/internal/domain"
	"assetlink/internal/metrics"
	"assetlink/internal/pubsub"
	logx "assetlink/pkg/logx"
)

const (
	defaultFetchTimeout   = 3 * time.Second
	defaultPublishTimeout = 3 * time.Second
)

type Config struct {
	FetchTimeout   time.Duration
	PublishTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaultPublishTimeout
	}
	return c
}

// Action is stateless between invocations: everything a tick needs arrives as
// parameters, and nothing about the task is retained.
type Action struct {
	mu  sync.Mutex
	cfg Config

	src     assets.Source
	pub     pubsub.Publisher
	channel func(bindingID string) string
	log     logx.Logger
	met     *metrics.Metrics
}

func New(cfg Config, src assets.Source, pub pubsub.Publisher, channel func(string) string, log logx.Logger, met *metrics.Metrics) *Action {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Action{
		cfg:     cfg.withDefaults(),
		src:     src,
		pub:     pub,
		channel: channel,
		log:     log,
		met:     met,
	}
}

// Apply updates the tick timeouts at runtime.
func (a *Action) Apply(cfg Config) {
	a.mu.Lock()
	a.cfg = cfg.withDefaults()
	a.mu.Unlock()
}

// Run executes one tick. A fetch failure comes back as *domain.FetchError for
// the executor to count; a publish failure is logged, counted, and dropped
// without failing the tick.
func (a *Action) Run(ctx context.Context, t domain.PersistentTask) error {
	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()

	fetchStart := time.Now()
	fctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	values, err := a.src.FetchProperties(fctx, t.AssetID, t.AssetProperties)
	cancel()
	a.met.FetchObserved(time.Since(fetchStart))
	if err != nil {
		var fe *domain.FetchError
		if !errors.As(err, &fe) {
			err = &domain.FetchError{AssetID: t.AssetID, Err: err}
		}
		return err
	}

	res := domain.RelayResult{
		TaskID:     t.ID,
		BindingID:  t.BindingID,
		ContractID: t.ContractID,
		AssetID:    t.AssetID,
		DataType:   t.DataType,
		Values:     values,
		RelayedAt:  time.Now(),
	}

	pubStart := time.Now()
	pctx, cancel := context.WithTimeout(ctx, cfg.PublishTimeout)
	err = a.pub.Publish(pctx, a.channel(t.BindingID), res)
	cancel()
	if err != nil {
		// Best-effort transport: the result is gone, the tick is not.
		a.met.ResultDropped()
		a.log.Debug("relay result dropped",
			logx.String("task", t.ID),
			logx.String("binding", t.BindingID),
			logx.Err(err))
		return nil
	}
	a.met.ResultPublished(time.Since(pubStart))
	return nil
}
