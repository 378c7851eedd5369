// AngelaMos | 2026
// dispatcher.go

package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	OutcomeSent      = "sent"
	OutcomeThrottled = "throttled"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)

type Observer interface {
	Delivery(outcome string)
}

type Limiter interface {
	Allow(ctx context.Context, chatID int64) (bool, error)
}

type Config struct {
	BufferSize     int
	PublishTimeout time.Duration
}

// Dispatcher queues code deliveries and publishes them from one goroutine.
// SendCode never waits on Redis.
type Dispatcher struct {
	cfg       Config
	publisher Publisher
	limiter   Limiter
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
	ch        chan Delivery
	done      chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
}

type Option func(*Dispatcher)

func WithLimiter(l Limiter) Option {
	return func(d *Dispatcher) { d.limiter = l }
}

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(
	cfg Config,
	publisher Publisher,
	logger *slog.Logger,
	opts ...Option,
) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		cfg:       cfg,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		ch:        make(chan Delivery, cfg.BufferSize),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// SendCode reports whether the delivery was queued. A false return means the
// buffer was full or the dispatcher is closed.
func (d *Dispatcher) SendCode(
	_ context.Context,
	chatID int64,
	purpose string,
	code string,
	expiresAt time.Time,
) bool {
	if d == nil || d.closed.Load() {
		return false
	}

	delivery := Delivery{
		ChatID:    chatID,
		Kind:      KindVerificationCode,
		Purpose:   purpose,
		Code:      code,
		ExpiresAt: expiresAt,
		QueuedAt:  d.now().UTC(),
	}

	select {
	case d.ch <- delivery:
		return true
	default:
		d.observe(OutcomeDropped)
		d.logger.Warn("delivery queue full", "chat_id", chatID, "purpose", purpose)
		return false
	}
}

// Close stops accepting deliveries and publishes whatever is still queued.
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
		case delivery := <-d.ch:
			d.deliver(delivery)
		case <-d.done:
			for {
				select {
				case delivery := <-d.ch:
					d.deliver(delivery)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(delivery Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.PublishTimeout)
	defer cancel()

	if d.limiter != nil {
		allowed, err := d.limiter.Allow(ctx, delivery.ChatID)
		if err != nil {
			d.observe(OutcomeFailed)
			d.logger.Warn("delivery throttle failed",
				"chat_id", delivery.ChatID,
				"error", err,
			)
			return
		}
		if !allowed {
			d.observe(OutcomeThrottled)
			d.logger.Info("delivery throttled",
				"chat_id", delivery.ChatID,
				"purpose", delivery.Purpose,
			)
			return
		}
	}

	if err := d.publisher.Publish(ctx, delivery); err != nil {
		d.observe(OutcomeFailed)
		d.logger.Warn("delivery publish failed",
			"chat_id", delivery.ChatID,
			"error", err,
		)
		return
	}

	d.observe(OutcomeSent)
}

func (d *Dispatcher) observe(outcome string) {
	if d.observer != nil {
		d.observer.Delivery(outcome)
	}
}
