package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/flock"

	"fieldsync/internal/ipc"
	"fieldsync/internal/logging"
	"fieldsync/internal/queue"
)

// withLocalQueue loads the queue straight from its store. It refuses when
// another process holds the daemon lock.
func (c *commandContext) withLocalQueue(ctx context.Context, fn func(*queue.Engine) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryRLock()
	if err != nil {
		return fmt.Errorf("check daemon lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w but the queue is locked by another process", errDaemonUnavailable)
	}
	defer lock.Unlock()

	store, err := queue.Open(cfg, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	engine := queue.NewEngine(store, logging.NewNop())
	engine.LoadFromStorage(ctx)
	return fn(engine)
}

// withClientOrLocal prefers the daemon and falls back to the store when no
// daemon is listening.
func (c *commandContext) withClientOrLocal(ctx context.Context, remote func(*ipc.Client) error, local func(*queue.Engine) error) error {
	client, err := c.dialClient()
	if err != nil {
		if errors.Is(err, errDaemonUnavailable) {
			return c.withLocalQueue(ctx, local)
		}
		return err
	}
	defer client.Close()
	return remote(client)
}
