package notify

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homeserve/internal/metrics"
)

type published struct {
	channel string
	event   Event
}

type recordingPublisher struct {
	mu   sync.Mutex
	got  []published
	err  error
	wait chan struct{}
}

func (r *recordingPublisher) Publish(ctx context.Context, channel string, e Event) error {
	if r.wait != nil {
		select {
		case <-r.wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, published{channel: channel, event: e})
	return r.err
}

func (r *recordingPublisher) byChannel() map[string]Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Event, len(r.got))
	for _, p := range r.got {
		out[p.channel] = p.event
	}
	return out
}

type memoryDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (m *memoryDeduper) FirstSeen(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func TestAssignmentCommittedFansOutThreeEvents(t *testing.T) {
	pub := &recordingPublisher{}
	f := NewFanout(pub, nil)

	f.AssignmentCommitted("b1", "p1", "c1")
	f.Wait()

	got := pub.byChannel()
	require.Len(t, got, 3)
	assert.Equal(t, ProviderAssigned, got["provider:p1"].Type)
	assert.Equal(t, "b1", string(got["provider:p1"].BookingID))
	assert.Equal(t, BookingAssigned, got["customer:c1"].Type)
	assert.Equal(t, "c1", string(got["customer:c1"].CustomerID))
	assert.Equal(t, AdminBookingAssigned, got[AdminChannel].Type)
	assert.NotEqual(t, got["provider:p1"].ID, got[AdminChannel].ID)
}

func TestFanoutSwallowsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewWithRegistry(reg)
	require.NoError(t, err)

	pub := &recordingPublisher{err: errors.New("fabric down")}
	f := NewFanout(pub, nil, WithMetrics(rec))

	f.AssignmentCommitted("b1", "p1", "c1")
	f.Wait()

	assert.Len(t, pub.byChannel(), 3)
	expected := `
# HELP notifications_total Published notifications by event type and outcome
# TYPE notifications_total counter
notifications_total{event="adminBookingAssigned",outcome="error"} 1
notifications_total{event="bookingAssigned",outcome="error"} 1
notifications_total{event="providerAssigned",outcome="error"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "notifications_total"))
}

func TestFanoutPublishIsAsync(t *testing.T) {
	pub := &recordingPublisher{wait: make(chan struct{})}
	f := NewFanout(pub, nil, WithTimeout(time.Second))

	done := make(chan struct{})
	go func() {
		f.AssignmentCommitted("b1", "p1", "c1")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("AssignmentCommitted blocked on a slow publisher")
	}
	close(pub.wait)
	f.Wait()
	assert.Len(t, pub.byChannel(), 3)
}

func TestFanoutTimeoutBoundsDelivery(t *testing.T) {
	pub := &recordingPublisher{wait: make(chan struct{})}
	f := NewFanout(pub, nil, WithTimeout(20*time.Millisecond))

	f.Publish(AdminChannel, newEvent(AdminBookingAssigned))
	start := time.Now()
	f.Wait()
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, pub.byChannel())
}

func TestFanoutCloseWhilePublishing(t *testing.T) {
	pub := &recordingPublisher{}
	f := NewFanout(pub, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				f.AssignmentCommitted("b1", "p1", "c1")
				f.ExpiringSoon("p1", 2)
			}
		}()
	}
	f.Close()
	wg.Wait()
	f.Wait()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.LessOrEqual(t, len(pub.got), 8*50*4)
}

func TestFanoutDropsAfterClose(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewWithRegistry(reg)
	require.NoError(t, err)
	pub := &recordingPublisher{}
	f := NewFanout(pub, nil, WithMetrics(rec))

	f.Close()
	f.Publish(AdminChannel, newEvent(AdminBookingAssigned))
	f.Wait()

	assert.Empty(t, pub.byChannel())
	expected := `
# HELP notifications_total Published notifications by event type and outcome
# TYPE notifications_total counter
notifications_total{event="adminBookingAssigned",outcome="dropped"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "notifications_total"))
}

func TestExpiringSoonDeduplicatesPerDay(t *testing.T) {
	pub := &recordingPublisher{}
	f := NewFanout(pub, nil, WithDeduper(&memoryDeduper{}))
	day := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return day }

	f.ExpiringSoon("p1", 2)
	f.Wait()
	f.ExpiringSoon("p1", 2)
	f.Wait()
	require.Len(t, pub.got, 1)
	assert.Equal(t, SubscriptionExpiringSoon, pub.got[0].event.Type)
	assert.Equal(t, 2, pub.got[0].event.DaysLeft)
	assert.Equal(t, "provider:p1", pub.got[0].channel)

	f.now = func() time.Time { return day.AddDate(0, 0, 1) }
	f.ExpiringSoon("p1", 1)
	f.Wait()
	assert.Len(t, pub.got, 2)
}

func TestExpiringSoonPublishesWhenDedupFails(t *testing.T) {
	pub := &recordingPublisher{}
	f := NewFanout(pub, nil, WithDeduper(&memoryDeduper{err: errors.New("redis down")}))

	f.ExpiringSoon("p1", 3)
	f.ExpiringSoon("p1", 3)
	f.Wait()
	assert.Len(t, pub.got, 2, "duplicates are acceptable when dedup is unavailable")
}

func TestMultiPublisherJoinsErrors(t *testing.T) {
	ok := &recordingPublisher{}
	bad1 := &recordingPublisher{err: errors.New("one")}
	bad2 := &recordingPublisher{err: errors.New("two")}
	m := NewMultiPublisher(bad1, ok, bad2)

	err := m.Publish(context.Background(), AdminChannel, newEvent(AdminBookingAssigned))

	require.Error(t, err)
	assert.ErrorContains(t, err, "one")
	assert.ErrorContains(t, err, "two")
	assert.Len(t, ok.got, 1, "a failing publisher must not stop the rest")
}

type fakeSender struct {
	msgs []*messaging.Message
}

func (f *fakeSender) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.msgs = append(f.msgs, m)
	return "projects/x/messages/1", nil
}

func TestFCMPublisherBuildsTopicMessage(t *testing.T) {
	sender := &fakeSender{}
	p := NewFCMPublisher(sender)
	e := newEvent(SubscriptionExpiringSoon)
	e.ProviderID, e.DaysLeft = "p9", 2

	require.NoError(t, p.Publish(context.Background(), ProviderChannel("p9"), e))
	require.Len(t, sender.msgs, 1)
	msg := sender.msgs[0]
	assert.Equal(t, "provider_p9", msg.Topic)
	assert.Equal(t, "subscriptionExpiringSoon", msg.Data["type"])
	assert.Equal(t, "p9", msg.Data["provider_id"])
	assert.Equal(t, "2", msg.Data["days_left"])
	_, hasBooking := msg.Data["booking_id"]
	assert.False(t, hasBooking)
}

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("HOMESERVE_REDIS_ADDR")
	if addr == "" {
		t.Skip("HOMESERVE_REDIS_ADDR not set; skipping Redis tests")
	}
	c := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisPublisherDelivers(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	pub := NewRedisPublisher(client, "test-notifications")

	sub := client.Subscribe(ctx, pub.Channel(AdminChannel))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	e := newEvent(AdminBookingAssigned)
	e.BookingID = "b42"
	require.NoError(t, pub.Publish(ctx, AdminChannel, e))

	select {
	case msg := <-sub.Channel():
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, e.ID, got.ID)
		assert.Equal(t, "b42", string(got.BookingID))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRedisDeduper(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	d := NewRedisDeduper(client, "test-notifications")
	key := "expiry:p1:" + time.Now().Format(time.RFC3339Nano)
	t.Cleanup(func() { client.Del(ctx, "test-notifications:dedup:"+key) })

	first, err := d.FirstSeen(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, first)
	again, err := d.FirstSeen(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, again)
}
