package notify

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/roomservice/pkg/config"
	"go.uber.org/zap"
)

// Dispatcher queues intents on an actor mailbox so request handlers never
// wait for the transport. The actor retries each intent and records the
// outcome.
type Dispatcher struct {
	system *actor.ActorSystem
	pid    *actor.PID
	stats  *Stats
	logger *zap.Logger
}

// Stats counts intent outcomes.
type Stats struct {
	Delivered atomic.Int64
	Failed    atomic.Int64
}

type deliverIntent struct {
	Intent Intent
}

func NewDispatcher(notifier Notifier, cfg config.NotifyConfig, logger *zap.Logger) *Dispatcher {
	logger = logger.Named("notification-dispatcher")
	stats := &Stats{}
	system := actor.NewActorSystem()

	props := actor.PropsFromProducer(func() actor.Actor {
		return &notificationActor{
			notifier: notifier,
			config:   cfg,
			stats:    stats,
			logger:   logger,
		}
	})
	pid := system.Root.Spawn(props)

	return &Dispatcher{
		system: system,
		pid:    pid,
		stats:  stats,
		logger: logger,
	}
}

// Dispatch enqueues the intent and returns immediately.
func (d *Dispatcher) Dispatch(intent Intent) {
	d.system.Root.Send(d.pid, &deliverIntent{Intent: intent})
}

func (d *Dispatcher) Stats() (delivered, failed int64) {
	return d.stats.Delivered.Load(), d.stats.Failed.Load()
}

// Close drains queued intents and stops the actor.
func (d *Dispatcher) Close() error {
	return d.system.Root.PoisonFuture(d.pid).Wait()
}

type notificationActor struct {
	notifier Notifier
	config   config.NotifyConfig
	stats    *Stats
	logger   *zap.Logger
}

func (a *notificationActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		a.logger.Info("Notification actor started")

	case *deliverIntent:
		a.deliver(msg.Intent)

	case *actor.Stopping:
		a.logger.Info("Notification actor stopping")
	}
}

func (a *notificationActor) deliver(intent Intent) {
	attempts := a.config.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout())
		err = a.notifier.Notify(ctx, intent)
		cancel()
		if err == nil {
			a.stats.Delivered.Add(1)
			a.logger.Info("Notification sent",
				zap.String("template", intent.Template()),
				zap.String("order_id", intent.OrderID),
				zap.Int("attempt", attempt))
			return
		}
		a.logger.Warn("Notification attempt failed",
			zap.String("order_id", intent.OrderID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < attempts && a.config.Backoff > 0 {
			time.Sleep(a.config.Backoff * time.Duration(attempt))
		}
	}

	a.stats.Failed.Add(1)
	a.logger.Error("Notification dropped",
		zap.String("template", intent.Template()),
		zap.String("order_id", intent.OrderID),
		zap.Int("attempts", attempts),
		zap.Error(err))
}

func (a *notificationActor) timeout() time.Duration {
	if a.config.Timeout > 0 {
		return a.config.Timeout
	}
	return 5 * time.Second
}
