package notify

import (
	"context"
	"log/slog"
	"sync"
)

// dispatcher runs outbound deliveries on a single worker so a slow Telegram
// call never stalls the monitoring loop, while messages still arrive in the
// order they were raised.
type dispatcher struct {
	ctx    context.Context
	cancel context.CancelFunc
	jobs   chan func(context.Context)
	wg     sync.WaitGroup
	logger *slog.Logger
}

func newDispatcher(parent context.Context, queueSize int, logger *slog.Logger) *dispatcher {
	ctx, cancel := context.WithCancel(parent)
	d := &dispatcher{
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(chan func(context.Context), queueSize),
		logger: logger,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case job := <-d.jobs:
			job(d.ctx)
		}
	}
}

// submit enqueues a delivery without blocking. When the queue is full the
// message is dropped with a warning rather than stalling the caller.
func (d *dispatcher) submit(fn func(context.Context)) {
	select {
	case <-d.ctx.Done():
	case d.jobs <- fn:
	default:
		d.logger.Warn("notification queue full, dropping message")
	}
}

// close stops the worker. Queued but undelivered messages are discarded.
func (d *dispatcher) close() {
	d.cancel()
	d.wg.Wait()
}
