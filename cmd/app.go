// ABOUTME: Shared wiring for all bloom commands
// ABOUTME: Builds the config store, secret queue, managers and remote client

package cmd

import (
	"context"
	"fmt"

	"github.com/bloomapp/bloom/internal/config"
	"github.com/bloomapp/bloom/internal/device"
	"github.com/bloomapp/bloom/internal/events"
	"github.com/bloomapp/bloom/internal/remote"
	"github.com/bloomapp/bloom/internal/secrets"
	"github.com/bloomapp/bloom/internal/session"
)

// app bundles the wired-up subsystems a command works with. Close drains the
// secret-store queue, so queued writes survive short-lived command runs.
type app struct {
	cfg     *config.File
	queue   *secrets.Queue
	bus     *events.Bus
	device  *device.Manager
	client  *remote.Client
	session *session.Manager
}

func newApp() (*app, error) {
	cfg, err := config.Load(config.DefaultDir())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	queue := secrets.NewQueue(secrets.Open())
	bus := events.NewBus()

	dev := device.NewManager(cfg, queue, bus)
	client := remote.New(dev)
	sess := session.NewManager(cfg, queue, client, dev, bus)
	dev.SetSessionInfo(sess)

	if err := dev.Initialize(); err != nil {
		queue.Close()
		return nil, fmt.Errorf("initializing device identity: %w", err)
	}

	return &app{
		cfg:     cfg,
		queue:   queue,
		bus:     bus,
		device:  dev,
		client:  client,
		session: sess,
	}, nil
}

// restore kicks off session restoration and waits for it to settle.
func (a *app) restore(ctx context.Context) error {
	a.session.Initialize(ctx)
	return a.session.AwaitRestoration(ctx)
}

func (a *app) Close() {
	a.device.Close()
	a.queue.Close()
}
