// AngelaMos | 2026
// notify_test.go

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

type recordingPublisher struct {
	mu        sync.Mutex
	sent      []Delivery
	err       error
	started   chan struct{}
	release   chan struct{}
	startOnce sync.Once
}

func (p *recordingPublisher) Publish(_ context.Context, d Delivery) error {
	if p.started != nil {
		p.startOnce.Do(func() { close(p.started) })
	}
	if p.release != nil {
		<-p.release
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, d)
	return nil
}

func (p *recordingPublisher) deliveries() []Delivery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Delivery(nil), p.sent...)
}

type outcomes struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcomes) Delivery(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = make(map[string]int)
	}
	o.counts[outcome]++
}

func (o *outcomes) get(outcome string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counts[outcome]
}

type denyChat int64

func (d denyChat) Allow(_ context.Context, chatID int64) (bool, error) {
	return chatID != int64(d), nil
}

func TestRedisPublisherPublishesJSON(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, "tgbot:deliveries")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	expires := time.Date(2026, 6, 1, 8, 10, 0, 0, time.UTC)
	pub := NewRedisPublisher(client, "tgbot:deliveries")
	err := pub.Publish(ctx, Delivery{
		ChatID:    4242,
		Kind:      KindVerificationCode,
		Purpose:   "binding",
		Code:      "012345",
		ExpiresAt: expires,
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var got Delivery
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.ChatID != 4242 || got.Code != "012345" || got.Purpose != "binding" {
			t.Fatalf("delivery = %+v", got)
		}
		if !got.ExpiresAt.Equal(expires) {
			t.Fatalf("expires_at = %v", got.ExpiresAt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestDispatcherFlushesOnClose(t *testing.T) {
	pub := &recordingPublisher{}
	obs := &outcomes{}
	d := NewDispatcher(Config{BufferSize: 16}, pub, discardLogger(), WithObserver(obs))

	for i := int64(1); i <= 5; i++ {
		if !d.SendCode(context.Background(), i, "binding", "000111", time.Now().Add(time.Minute)) {
			t.Fatalf("SendCode(%d) was not queued", i)
		}
	}
	d.Close()

	sent := pub.deliveries()
	if len(sent) != 5 {
		t.Fatalf("published %d, want 5", len(sent))
	}
	if sent[0].Kind != KindVerificationCode || sent[0].QueuedAt.IsZero() {
		t.Fatalf("delivery = %+v", sent[0])
	}
	if obs.get(OutcomeSent) != 5 {
		t.Fatalf("sent outcomes = %d", obs.get(OutcomeSent))
	}

	if d.SendCode(context.Background(), 9, "binding", "000111", time.Now()) {
		t.Fatal("closed dispatcher accepted a delivery")
	}
	d.Close()
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	obs := &outcomes{}
	d := NewDispatcher(Config{BufferSize: 1}, pub, discardLogger(), WithObserver(obs))

	ctx := context.Background()
	exp := time.Now().Add(time.Minute)

	if !d.SendCode(ctx, 1, "binding", "111111", exp) {
		t.Fatal("first delivery not queued")
	}
	<-pub.started

	if !d.SendCode(ctx, 2, "binding", "222222", exp) {
		t.Fatal("second delivery should fill the buffer")
	}
	if d.SendCode(ctx, 3, "binding", "333333", exp) {
		t.Fatal("third delivery should be dropped")
	}

	close(pub.release)
	d.Close()

	if got := len(pub.deliveries()); got != 2 {
		t.Fatalf("published %d, want 2", got)
	}
	if obs.get(OutcomeDropped) != 1 {
		t.Fatalf("dropped = %d", obs.get(OutcomeDropped))
	}
}

func TestDispatcherThrottlesAndCountsFailures(t *testing.T) {
	pub := &recordingPublisher{}
	obs := &outcomes{}
	d := NewDispatcher(Config{BufferSize: 4}, pub, discardLogger(),
		WithObserver(obs),
		WithLimiter(denyChat(7)),
	)

	d.SendCode(context.Background(), 7, "login-second-factor", "123456", time.Now())
	d.SendCode(context.Background(), 8, "login-second-factor", "123456", time.Now())
	d.Close()

	if obs.get(OutcomeThrottled) != 1 || obs.get(OutcomeSent) != 1 {
		t.Fatalf("outcomes = %+v", obs.counts)
	}

	failing := &recordingPublisher{err: errors.New("redis down")}
	obs = &outcomes{}
	d = NewDispatcher(Config{BufferSize: 4}, failing, discardLogger(), WithObserver(obs))
	if !d.SendCode(context.Background(), 1, "binding", "123456", time.Now()) {
		t.Fatal("SendCode must queue even when publishing will fail")
	}
	d.Close()

	if obs.get(OutcomeFailed) != 1 {
		t.Fatalf("failed = %d", obs.get(OutcomeFailed))
	}
}

func TestThrottlePerChat(t *testing.T) {
	_, client := newRedis(t)
	th := NewThrottle(client, PerMinute(2, 2), true, discardLogger())
	defer th.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		ok, err := th.Allow(ctx, 100)
		if err != nil || !ok {
			t.Fatalf("attempt %d = %v, %v", i, ok, err)
		}
	}

	ok, err := th.Allow(ctx, 100)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if ok {
		t.Fatal("third delivery within the burst window should be throttled")
	}

	ok, err = th.Allow(ctx, 200)
	if err != nil || !ok {
		t.Fatalf("other chat = %v, %v", ok, err)
	}
}

func TestThrottleFallsBackWhenRedisIsDown(t *testing.T) {
	mr, client := newRedis(t)
	mr.Close()

	th := NewThrottle(client, PerMinute(1, 1), false, discardLogger())
	defer th.Close()

	ctx := context.Background()
	ok, err := th.Allow(ctx, 5)
	if err != nil || !ok {
		t.Fatalf("first = %v, %v", ok, err)
	}

	ok, err = th.Allow(ctx, 5)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if ok {
		t.Fatal("local limiter should throttle the second delivery")
	}
}
