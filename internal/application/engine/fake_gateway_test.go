package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/concertforge/ticket-engine/internal/domain/services"
)

// fakeGateway is an in-memory stand-in for services.PaymentGateway, grounded in the
// teacher's stripe_service.go wrapper but stripped to the narrow port surface of §6.2.
// It counts Initialize calls per reference so idempotency tests (§8 property 1) can
// assert the gateway was called at most once for a given idempotency key.
type fakeGateway struct {
	mu              sync.Mutex
	initCalls       int32
	initByReference map[string]int
	failInit        bool
	failRefund      bool
	validSignature  bool
	refundID        string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{initByReference: make(map[string]int), validSignature: true, refundID: "refund_1"}
}

func (g *fakeGateway) Initialize(ctx context.Context, req services.InitializeRequest) (services.InitializeResult, error) {
	atomic.AddInt32(&g.initCalls, 1)
	g.mu.Lock()
	g.initByReference[req.Reference]++
	g.mu.Unlock()
	if g.failInit {
		return services.InitializeResult{OK: false}, nil
	}
	return services.InitializeResult{OK: true, AuthorizationURL: "https://pay.example/" + req.Reference, Reference: req.Reference}, nil
}

func (g *fakeGateway) Verify(ctx context.Context, reference string) (services.GatewayVerifyResult, error) {
	return services.GatewayVerifyResult{OK: true, Status: "success"}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, req services.RefundRequest) (services.RefundResult, error) {
	if g.failRefund {
		return services.RefundResult{OK: false}, nil
	}
	return services.RefundResult{OK: true, GatewayRefundID: g.refundID}, nil
}

func (g *fakeGateway) CreateSubaccount(ctx context.Context, req services.CreateSubaccountRequest) (services.CreateSubaccountResult, error) {
	return services.CreateSubaccountResult{OK: true, SubaccountCode: "SUB_1"}, nil
}

func (g *fakeGateway) VerifySignature(rawBody []byte, signature string) bool {
	return g.validSignature
}

func (g *fakeGateway) callCount() int { return int(atomic.LoadInt32(&g.initCalls)) }

// fakeClock is a mutex-guarded Clock whose Now() advances only when Advance is called,
// letting retry-backoff and completion-timestamp assertions stay deterministic.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock { return &fakeClock{now: start} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeAudit records emitted events instead of logging them, so tests can assert on the
// well-defined transition points of §9 without capturing log output.
type fakeAudit struct {
	mu     sync.Mutex
	events []AuditEvent
}

func newFakeAudit() *fakeAudit { return &fakeAudit{} }

func (a *fakeAudit) Emit(_ context.Context, event AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *fakeAudit) count(eventType string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}
