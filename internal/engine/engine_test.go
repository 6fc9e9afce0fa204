package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/magicblock-labs/redline/internal/httppool"
	"github.com/magicblock-labs/redline/internal/rategovernor"
	"github.com/magicblock-labs/redline/internal/rpctypes"
)

// stubBuilder is a minimal RequestBuilder standing in for
// internal/builder's concrete builders: engine tests only care that the
// ten-step sequence in step()/complete() runs end to end, not that a real
// transaction gets assembled.
type stubBuilder struct {
	withSignature bool
}

func (s *stubBuilder) Name() string { return "Stub" }
func (s *stubBuilder) Build(id rpctypes.RequestID) string {
	return `{"jsonrpc":"2.0","id":1,"method":"stub","params":[]}`
}
func (s *stubBuilder) Signature() (rpctypes.Signature, bool) {
	if !s.withSignature {
		return rpctypes.Signature{}, false
	}
	var sig rpctypes.Signature
	sig[0] = 1
	return sig, true
}
func (s *stubBuilder) Accounts() []rpctypes.Address { return nil }
func (s *stubBuilder) Extractor() func(json.RawMessage) (bool, bool) {
	return func(result json.RawMessage) (bool, bool) { return true, true }
}

func okServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"ok"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestRunS1NoSubscriptionsRecordsOneDeliveryPerIteration mirrors spec
// scenario S1: iterations with no account/signature subscriptions produce
// exactly one delivery-latency sample per iteration, keyed by the
// builder's mode name, and no account/signature stats.
func TestRunS1NoSubscriptionsRecordsOneDeliveryPerIteration(t *testing.T) {
	srv := okServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := httppool.New(ctx, srv.URL, 8, httppool.HTTP1, 0)
	if err != nil {
		t.Fatalf("httppool.New: %v", err)
	}

	var progress atomic.Uint64
	const iterations = 200

	deps := Dependencies{
		Builder:  &stubBuilder{},
		Ephem:    pool,
		RateGov:  rategovernor.New(500, 50),
		Progress: &progress,
		Log:      zerolog.Nop(),
	}

	eng := New(ctx, deps)
	eng.Run(ctx, iterations)

	// Completion goroutines race Run's return; give them a moment to drain
	// before reading final stats, the way the orchestrator waits on its
	// WaitGroup before calling Finalize.
	deadline := time.Now().Add(2 * time.Second)
	for {
		stats := eng.Finalize()
		if stats.DeliveryByMode["Stub"].Count == iterations {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("delivery count = %d, want %d", stats.DeliveryByMode["Stub"].Count, iterations)
		}
		time.Sleep(10 * time.Millisecond)
	}

	finalStats := eng.Finalize()
	if finalStats.AccountLatency.Count != 0 {
		t.Fatalf("account latency count = %d, want 0 (no subscriptions configured)", finalStats.AccountLatency.Count)
	}
	if finalStats.SignatureLatency.Count != 0 {
		t.Fatalf("signature latency count = %d, want 0 (no subscriptions configured)", finalStats.SignatureLatency.Count)
	}
	if progress.Load() != iterations {
		t.Fatalf("progress = %d, want %d", progress.Load(), iterations)
	}
}

// TestRunZeroIterationsCompletesImmediately covers the boundary behavior
// "iterations = 0 completes immediately and produces an empty but
// well-formed statistics record".
func TestRunZeroIterationsCompletesImmediately(t *testing.T) {
	srv := okServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	pool, err := httppool.New(ctx, srv.URL, 1, httppool.HTTP1, 0)
	if err != nil {
		t.Fatalf("httppool.New: %v", err)
	}
	var progress atomic.Uint64
	deps := Dependencies{
		Builder:  &stubBuilder{},
		Ephem:    pool,
		RateGov:  rategovernor.New(100, 10),
		Progress: &progress,
		Log:      zerolog.Nop(),
	}
	eng := New(ctx, deps)
	eng.Run(ctx, 0)

	stats := eng.Finalize()
	if stats.DeliveryByMode["Stub"].Count != 0 {
		t.Fatalf("delivery count = %d, want 0", stats.DeliveryByMode["Stub"].Count)
	}
	if progress.Load() != 0 {
		t.Fatalf("progress = %d, want 0", progress.Load())
	}
}

// TestRunStopsOnContextCancellation covers SIGINT-style mid-run
// cancellation (spec scenario S6): canceling ctx partway through Run stops
// issuing new iterations and Finalize still returns a well-formed, partial
// record rather than blocking or panicking.
func TestRunStopsOnContextCancellation(t *testing.T) {
	srv := okServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := httppool.New(ctx, srv.URL, 4, httppool.HTTP1, 0)
	if err != nil {
		t.Fatalf("httppool.New: %v", err)
	}
	var progress atomic.Uint64
	deps := Dependencies{
		Builder:  &stubBuilder{},
		Ephem:    pool,
		RateGov:  rategovernor.New(50, 10),
		Progress: &progress,
		Log:      zerolog.Nop(),
	}
	eng := New(ctx, deps)

	runDone := make(chan struct{})
	go func() {
		eng.Run(ctx, 1_000_000)
		close(runDone)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop within 2s of context cancellation")
	}

	stats := eng.Finalize()
	if stats.DeliveryByMode["Stub"].Count == 0 {
		t.Fatal("expected at least some iterations to have completed before cancellation")
	}
	if progress.Load() == 0 {
		t.Fatal("expected partial progress to be recorded before cancellation")
	}
}
