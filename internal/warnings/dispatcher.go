// Package warnings delivers rate limit warning records to their consumers
// without touching the request path. Records are queued on a bounded channel
// and drained by one worker goroutine; a full queue drops the record with a
// log line rather than blocking, and delivery failures are logged, never
// surfaced.
package warnings

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"limitd/internal/models"
)

// Sink delivers one warning record to a destination.
type Sink interface {
	Deliver(ctx context.Context, w models.Warning) error
}

// Dispatcher fans warnings out to its sinks from a background worker.
// Outbound delivery is throttled so a burst of exceeded requests cannot
// amplify into a burst of deliveries.
type Dispatcher struct {
	queue   chan models.Warning
	sinks   []Sink
	limiter *rate.Limiter

	done    chan struct{}
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// NewDispatcher creates a dispatcher with the given queue size and delivery
// rate and starts its worker goroutine.
func NewDispatcher(buffer int, perSecond float64, sinks ...Sink) *Dispatcher {
	d := &Dispatcher{
		queue:   make(chan models.Warning, buffer),
		sinks:   sinks,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		done:    make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Record queues a warning for delivery. It never blocks; when the queue is
// full the warning is dropped and counted in the logs.
func (d *Dispatcher) Record(w models.Warning) {
	select {
	case d.queue <- w:
	default:
		slog.Warn("warning queue full, dropping record",
			"client_id", w.ClientID,
			"path", w.Pathname)
	}
}

// Close stops the worker after draining queued warnings.
func (d *Dispatcher) Close() {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		return
	}
	d.closed = true
	close(d.done)
	d.closeMu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case w := <-d.queue:
			d.deliver(w)
		case <-d.done:
			// Drain what is already queued, then exit.
			for {
				select {
				case w := <-d.queue:
					d.deliver(w)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(w models.Warning) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := d.limiter.Wait(ctx); err != nil {
		slog.Warn("warning delivery throttled out", "client_id", w.ClientID, "error", err)
		return
	}

	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, w); err != nil {
			slog.Warn("warning delivery failed",
				"client_id", w.ClientID,
				"path", w.Pathname,
				"error", err)
		}
	}
}
