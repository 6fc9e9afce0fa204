package pulser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/magicblock-labs/redline/internal/httppool"
	"github.com/magicblock-labs/redline/internal/rpctypes"
)

func testAddresses(n int) []rpctypes.Address {
	out := make([]rpctypes.Address, n)
	for i := range out {
		out[i] = rpctypes.NewSigner(uint32(i + 2000)).Pubkey()
	}
	return out
}

func countingPool(t *testing.T, count *int32) *httppool.Pool {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(count, 1)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"` +
			rpctypes.NewSigner(1).Pubkey().String() + `"}`))
	}))
	t.Cleanup(srv.Close)
	pool, err := httppool.New(context.Background(), srv.URL, 1, httppool.HTTP1, 0)
	if err != nil {
		t.Fatalf("httppool.New: %v", err)
	}
	return pool
}

func waitForCount(t *testing.T, counter *int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(counter) >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("fire count did not reach %d in time, got %d", want, atomic.LoadInt32(counter))
}

func TestZeroFrequencyNeverFires(t *testing.T) {
	var fires int32
	pool := countingPool(t, &fires)
	vault := rpctypes.NewSigner(1)
	blockhash := func() rpctypes.Blockhash { return rpctypes.Blockhash{} }
	p := New(vault, testAddresses(2), pool, blockhash, 0, zerolog.Nop())

	for i := 0; i < 10; i++ {
		p.Tick(context.Background())
	}
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&fires) != 0 {
		t.Fatalf("frequency=0 should never fire, got %d fires", fires)
	}
}

func TestTickFiresAtMostOncePerFrequencyWindow(t *testing.T) {
	var fires int32
	pool := countingPool(t, &fires)
	vault := rpctypes.NewSigner(1)
	blockhash := func() rpctypes.Blockhash { return rpctypes.Blockhash{} }
	p := New(vault, testAddresses(2), pool, blockhash, 50*time.Millisecond, zerolog.Nop())

	for i := 0; i < 5; i++ {
		p.Tick(context.Background())
	}
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&fires); got > 1 {
		t.Fatalf("expected at most 1 fire within the frequency window, got %d", got)
	}

	waitForCount(t, &fires, 1)
}

func TestTickWithNoPDAsNeverFires(t *testing.T) {
	var fires int32
	pool := countingPool(t, &fires)
	vault := rpctypes.NewSigner(1)
	blockhash := func() rpctypes.Blockhash { return rpctypes.Blockhash{} }
	p := New(vault, nil, pool, blockhash, time.Millisecond, zerolog.Nop())

	for i := 0; i < 10; i++ {
		p.Tick(context.Background())
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&fires) != 0 {
		t.Fatalf("an empty PDA queue should never fire, got %d fires", fires)
	}
}
