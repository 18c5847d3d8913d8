// Package metrics keeps in-process counters for engine outcomes.
package metrics

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

type Name string

const (
	OrdersPlaced            Name = "orders_placed"
	OrderTransitions        Name = "order_transitions"
	OrderTransitionConflict Name = "order_transition_conflicts"
	DispatchAssigned        Name = "dispatch_assigned"
	DispatchNoCapacity      Name = "dispatch_no_capacity"
	CouponApplied           Name = "coupon_applied"
	CouponRejected          Name = "coupon_rejected"
	WebhookProcessed        Name = "webhook_processed"
	WebhookDuplicate        Name = "webhook_duplicate"
	WebhookIgnored          Name = "webhook_ignored"
	WebhookInvalidSignature Name = "webhook_invalid_signature"
	RefundSucceeded         Name = "refund_succeeded"
	RefundFailed            Name = "refund_failed"
	PaymentOrphaned         Name = "payment_orphaned"
	GatewayCalls            Name = "gateway_calls"
	GatewayLatencyMs        Name = "gateway_latency_ms_total"
	NotificationsPublished  Name = "notifications_published"
	NotificationsFailed     Name = "notifications_failed"
)

var counters = func() map[Name]*Counter {
	m := make(map[Name]*Counter)
	for _, n := range []Name{
		OrdersPlaced, OrderTransitions, OrderTransitionConflict,
		DispatchAssigned, DispatchNoCapacity,
		CouponApplied, CouponRejected,
		WebhookProcessed, WebhookDuplicate, WebhookIgnored, WebhookInvalidSignature,
		RefundSucceeded, RefundFailed, PaymentOrphaned,
		GatewayCalls, GatewayLatencyMs,
		NotificationsPublished, NotificationsFailed,
	} {
		m[n] = &Counter{}
	}
	return m
}()

// Get returns the counter for name. Unknown names get a detached counter so
// callers never need a nil check.
func Get(name Name) *Counter {
	if c, ok := counters[name]; ok {
		return c
	}
	return &Counter{}
}

func Inc(name Name) {
	Get(name).Inc()
}

// ObserveGateway records one gateway round trip started at t.
func ObserveGateway(t *Timer) {
	Get(GatewayCalls).Inc()
	Get(GatewayLatencyMs).Add(uint64(t.Duration().Milliseconds()))
}

func Snapshot() map[string]uint64 {
	out := make(map[string]uint64, len(counters))
	for n, c := range counters {
		out[string(n)] = c.Load()
	}
	return out
}

// Handler serves the snapshot as JSON with keys in sorted order.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := Snapshot()
		keys := make([]string, 0, len(snap))
		for k := range snap {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		type entry struct {
			Name  string `json:"name"`
			Value uint64 `json:"value"`
		}
		entries := make([]entry, 0, len(keys))
		for _, k := range keys {
			entries = append(entries, entry{Name: k, Value: snap[k]})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"counters": entries})
	})
}
