package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/loomworks/loom/internal/retry"
	"github.com/loomworks/loom/pkg/logger"
)

// BackoffConfig bounds the retry behavior of one client operation.
type BackoffConfig struct {
	MinDelay   time.Duration
	MaxDelay   time.Duration
	MaxRetries int
}

// DefaultBackoff matches the network defaults for idempotent reads.
var DefaultBackoff = BackoffConfig{
	MinDelay:   time.Second,
	MaxDelay:   30 * time.Second,
	MaxRetries: 5,
}

func (c BackoffConfig) strategy() *retry.Backoff {
	return retry.NewBackoff(c.MinDelay, c.MaxDelay, c.MaxRetries)
}

// Client wraps the raw ledger transport with retries, error
// classification, and version-cache maintenance. Only transient
// transport failures are retried; application rejections surface
// immediately because resubmitting with different inputs can
// double-execute side effects.
type Client struct {
	rpc     RPC
	cache   *VersionCache
	backoff BackoffConfig
	logger  logger.Logger
}

func NewClient(rpc RPC, cache *VersionCache, backoff BackoffConfig, log logger.Logger) *Client {
	if log == nil {
		log = &logger.NullLogger{}
	}
	return &Client{rpc: rpc, cache: cache, backoff: backoff, logger: log}
}

// Cache exposes the client's version cache for sharing across
// managers.
func (c *Client) Cache() *VersionCache {
	return c.cache
}

// GetObject fetches an object, retrying transient failures.
func (c *Client) GetObject(ctx context.Context, id ObjectID) (*Object, error) {
	return retry.Do(ctx, c.backoff.strategy(), c.notify("get object"),
		func(ctx context.Context) (*Object, error) {
			return c.rpc.GetObject(ctx, id)
		})
}

// ResolveRef fetches an object's reference and reconciles it against
// the version cache: whichever reports the higher version is used as
// the transaction input. This defends against read replicas that have
// not yet observed our own writes.
func (c *Client) ResolveRef(ctx context.Context, id ObjectID) (ObjectRef, error) {
	obj, err := c.GetObject(ctx, id)
	if err != nil {
		return ObjectRef{}, err
	}
	return c.cache.ChooseLatest(obj.Ref), nil
}

// QueryOwnedObjects lists the objects owned by an address.
func (c *Client) QueryOwnedObjects(ctx context.Context, owner string) ([]ObjectRef, error) {
	return retry.Do(ctx, c.backoff.strategy(), c.notify("query owned objects"),
		func(ctx context.Context) ([]ObjectRef, error) {
			return c.rpc.QueryOwnedObjects(ctx, owner)
		})
}

// ReferenceGasPrice fetches the network's current gas price.
func (c *Client) ReferenceGasPrice(ctx context.Context) (uint64, error) {
	return retry.Do(ctx, c.backoff.strategy(), c.notify("get gas price"),
		func(ctx context.Context) (uint64, error) {
			return c.rpc.ReferenceGasPrice(ctx)
		})
}

// SubmitTransaction submits one batch and waits for its effects. On
// success the version cache absorbs every created or mutated object
// reference. An executed-but-rejected transaction comes back as
// ExecutionError and is never retried.
func (c *Client) SubmitTransaction(ctx context.Context, tx *Transaction) (*TransactionEffects, error) {
	effects, err := retry.Do(ctx, c.backoff.strategy(), c.notify("submit transaction"),
		func(ctx context.Context) (*TransactionEffects, error) {
			return c.rpc.SubmitTransaction(ctx, tx)
		})
	if err != nil {
		return nil, err
	}

	if effects.Status != StatusSuccess {
		return nil, &ExecutionError{Digest: effects.Digest, Status: effects.Status, Reason: effects.Error}
	}

	c.cache.Observe(effects)
	c.logger.Transaction(effects.Digest, len(tx.Calls))
	return effects, nil
}

func (c *Client) notify(operation string) retry.Notify {
	return func(attempt int, delay time.Duration, err error) {
		c.logger.Retry(operation, attempt, delay, err)
	}
}

// FindCreated returns the first created object from the effects, used
// to discover the site object a create_site call produced; create_site
// is the only object-creating call in its batch. Effects missing a
// created object indicate an integration bug.
func FindCreated(effects *TransactionEffects) (ObjectRef, error) {
	if len(effects.Created) == 0 {
		return ObjectRef{}, fmt.Errorf("transaction %s effects report no created objects", effects.Digest)
	}
	return effects.Created[0], nil
}
