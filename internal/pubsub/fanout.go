package pubsub

import (
	"context"

	"golang.org/x/time/rate"

	"assetlink/internal/domain"
	logx "assetlink/pkg/logx"
)

// Fanout wraps the live publisher with an optional kafka mirror and throttled
// failure logging, so a flapping transport cannot flood the logs at tick rate.
type Fanout struct {
	live   Publisher
	mirror *KafkaMirror
	warn   *rate.Limiter
	log    logx.Logger
}

func NewFanout(live Publisher, mirror *KafkaMirror, warnPerSec int, log logx.Logger) *Fanout {
	if warnPerSec <= 0 {
		warnPerSec = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Fanout{
		live:   live,
		mirror: mirror,
		warn:   rate.NewLimiter(rate.Limit(warnPerSec), warnPerSec),
		log:    log,
	}
}

func (f *Fanout) Publish(ctx context.Context, channel string, res domain.RelayResult) error {
	if f.mirror != nil {
		// Mirror first so a dead live transport doesn't starve the firehose.
		if err := f.mirror.Mirror(ctx, res); err != nil && f.warn.Allow() {
			f.log.Warn("kafka mirror failed", logx.String("binding", res.BindingID), logx.Err(err))
		}
	}
	if err := f.live.Publish(ctx, channel, res); err != nil {
		if f.warn.Allow() {
			f.log.Warn("live publish failed; result dropped", logx.String("channel", channel), logx.Err(err))
		}
		return err
	}
	return nil
}

func (f *Fanout) Close() error {
	if f.mirror != nil {
		_ = f.mirror.Close()
	}
	return f.live.Close()
}
