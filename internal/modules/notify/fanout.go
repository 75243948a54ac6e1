// README: Notification fan-out; fire-and-forget delivery that never fails the caller.
package notify

import (
	"context"
	"sync"
	"time"

	"homeserve/internal/logger"
	"homeserve/internal/metrics"
	"homeserve/internal/types"
)

const defaultPublishTimeout = 3 * time.Second

type Fanout struct {
	pub     Publisher
	dedup   Deduper
	log     logger.Logger
	metrics *metrics.Recorder
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type FanoutOption func(*Fanout)

func WithDeduper(d Deduper) FanoutOption { return func(f *Fanout) { f.dedup = d } }

func WithTimeout(d time.Duration) FanoutOption {
	return func(f *Fanout) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithMetrics(rec *metrics.Recorder) FanoutOption { return func(f *Fanout) { f.metrics = rec } }

func NewFanout(pub Publisher, log logger.Logger, opts ...FanoutOption) *Fanout {
	f := &Fanout{pub: pub, log: logger.OrNop(log), timeout: defaultPublishTimeout, now: time.Now}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Publish delivers e in the background. Failures are logged and dropped.
func (f *Fanout) Publish(channel string, e Event) {
	f.spawn(e.Type, func() { f.deliver(channel, e) })
}

// spawn runs fn in the background unless Close has been called.
func (f *Fanout) spawn(t EventType, fn func()) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		f.metrics.Notification(string(t), "dropped")
		f.log.Debugf("notify %s dropped: fan-out closed", t)
		return
	}
	f.wg.Add(1)
	f.mu.Unlock()
	go func() {
		defer f.wg.Done()
		fn()
	}()
}

func (f *Fanout) deliver(channel string, e Event) {
	if f.pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	if err := f.pub.Publish(ctx, channel, e); err != nil {
		f.metrics.Notification(string(e.Type), "error")
		f.log.Warnf("notify %s on %s dropped: %v", e.Type, channel, err)
		return
	}
	f.metrics.Notification(string(e.Type), "ok")
}

// AssignmentCommitted emits the provider, customer and admin events for one assignment.
func (f *Fanout) AssignmentCommitted(bookingID, providerID, customerID types.ID) {
	pe := newEvent(ProviderAssigned)
	pe.BookingID, pe.ProviderID = bookingID, providerID
	f.Publish(ProviderChannel(providerID), pe)

	ce := newEvent(BookingAssigned)
	ce.BookingID, ce.CustomerID = bookingID, customerID
	f.Publish(CustomerChannel(customerID), ce)

	ae := newEvent(AdminBookingAssigned)
	ae.BookingID = bookingID
	f.Publish(AdminChannel, ae)
}

// ExpiringSoon notifies a provider of an upcoming renewal at most once per calendar day
// when a Deduper is configured. Duplicate notices are harmless.
func (f *Fanout) ExpiringSoon(providerID types.ID, daysLeft int) {
	e := newEvent(SubscriptionExpiringSoon)
	e.ProviderID, e.DaysLeft = providerID, daysLeft
	channel := ProviderChannel(providerID)

	f.spawn(e.Type, func() {
		if f.dedup != nil {
			ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
			key := "expiry:" + string(providerID) + ":" + f.now().Format("2006-01-02")
			first, err := f.dedup.FirstSeen(ctx, key, 24*time.Hour)
			cancel()
			if err != nil {
				f.log.Debugf("expiry dedup unavailable for %s: %v", providerID, err)
			} else if !first {
				f.metrics.Notification(string(e.Type), "deduplicated")
				return
			}
		}
		f.deliver(channel, e)
	})
}

// Wait blocks until every in-flight delivery has finished. Callers must not publish
// concurrently with Wait; use Close during shutdown.
func (f *Fanout) Wait() {
	f.wg.Wait()
}

// Close stops accepting new events and drains in-flight deliveries. Events published
// afterwards are dropped. Safe to call while other goroutines are still publishing.
func (f *Fanout) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.wg.Wait()
}
