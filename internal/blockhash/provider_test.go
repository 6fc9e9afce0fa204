package blockhash

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/magicblock-labs/redline/internal/httppool"
	"github.com/magicblock-labs/redline/internal/rpctypes"
)

func poolAgainst(t *testing.T, handler http.HandlerFunc) *httppool.Pool {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	pool, err := httppool.New(context.Background(), srv.URL, 1, httppool.HTTP1, 0)
	if err != nil {
		t.Fatalf("httppool.New: %v", err)
	}
	return pool
}

func TestNewSeedsCurrentFromFirstResponse(t *testing.T) {
	pool := poolAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"value":{"blockhash":"11111111111111111111111111111111"}}}`))
	})

	p, err := New(context.Background(), pool, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Current() == (rpctypes.Blockhash{}) {
		t.Fatal("Current() should be populated after New, not the zero value")
	}
}

func TestNewFailsWhenResponseMissesBlockhash(t *testing.T) {
	pool := poolAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"value":{}}}`))
	})

	if _, err := New(context.Background(), pool, zerolog.Nop()); err == nil {
		t.Fatal("New should fail when the seed response has no blockhash")
	}
}

func TestNewFailsOnRPCError(t *testing.T) {
	pool := poolAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"unavailable"}}`))
	})

	if _, err := New(context.Background(), pool, zerolog.Nop()); err == nil {
		t.Fatal("New should surface an RPC-level error from the seed request")
	}
}
