package publish

import (
	"context"
	"errors"
	"time"

	"github.com/loomworks/loom/internal/quilt"
	"github.com/loomworks/loom/internal/site"
)

// Watch republishes dir whenever its content changes, polling at the
// given interval. Passes are strictly serialized: a new pass never
// starts while a previous one holds an in-flight transaction. After a
// first pass creates the site, subsequent passes update it. A failed
// pass is logged and retried on the next tick; only cancellation and
// unfixable configuration errors end the loop.
func (p *Publisher) Watch(ctx context.Context, dir string, cfg *site.Config, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	for {
		summary, err := p.Run(ctx, dir, cfg)
		switch {
		case err == nil:
			if cfg.ObjectID == "" && summary.SiteID != "" {
				cfg.ObjectID = string(summary.SiteID)
			}
		case fatalWatchError(err):
			return err
		default:
			p.logger.Error("publish pass", dir, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// fatalWatchError reports errors no amount of polling can recover
// from.
func fatalWatchError(err error) bool {
	var tooLarge *quilt.TooLargeError
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &tooLarge)
}
