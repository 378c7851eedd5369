// AngelaMos | 2026
// dispatcher.go

package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/taskflow-auth/internal/core"
)

type Observer interface {
	AuthEvent(event, outcome string)
	AuditDropped()
	AuditSinkError()
}

type Config struct {
	BufferSize int
	DropIfFull bool
}

// Dispatcher hands entries to a Sink on a single background goroutine so the
// calling request never waits on storage.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
	ch        chan Entry
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

type Option func(*Dispatcher)

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(
	cfg Config,
	sink Sink,
	logger *slog.Logger,
	opts ...Option,
) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		now:    time.Now,
		ch:     make(chan Entry, cfg.BufferSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) Record(ctx context.Context, entry Entry) {
	if d == nil || d.closed.Load() {
		return
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = d.now().UTC()
	}
	info := core.ClientInfoFromContext(ctx)
	if entry.IPAddress == "" {
		entry.IPAddress = info.IPAddress
	}
	if entry.UserAgent == "" {
		entry.UserAgent = info.UserAgent
	}

	if d.observer != nil {
		d.observer.AuthEvent(string(entry.Event), string(entry.Outcome))
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- entry:
		case <-d.done:
		default:
			d.drop(entry)
		}
		return
	}

	select {
	case d.ch <- entry:
	case <-ctx.Done():
		d.drop(entry)
	case <-d.done:
	}
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Close stops accepting entries and blocks until the buffer is drained.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case entry := <-d.ch:
			d.write(entry)
		case <-d.done:
			for {
				select {
				case entry := <-d.ch:
					d.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) write(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.sink.Write(ctx, entry); err != nil {
		if d.observer != nil {
			d.observer.AuditSinkError()
		}
		d.logger.Warn("audit write failed",
			"event", entry.Event,
			"outcome", entry.Outcome,
			"error", err,
		)
	}
}

func (d *Dispatcher) drop(entry Entry) {
	d.dropped.Add(1)
	if d.observer != nil {
		d.observer.AuditDropped()
	}
	d.logger.Debug("audit entry dropped", "event", entry.Event)
}
