// Package httppool implements the HTTP Connection Pool: a fixed-size set of persistent connections to the ephemeral RPC
// endpoint, each opened on its first request, acquired/released through a
// scoped guard. Grounded on original_source/bencher/src/http.rs's ready/busy
// FIFO-queue algorithm, translated to Go's idiomatic buffered-channel
// semaphore: a channel used as a ready-queue gives the same "pop from
// ready, else wait for the next release" behavior without a manual busy
// list.
package httppool

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// ConnectionType selects HTTP/1.1 or HTTP/2 for every connection in the
// pool.
type ConnectionType string

const (
	HTTP1 ConnectionType = "http1"
	HTTP2 ConnectionType = "http2"
)

// Pool is a fixed-size set of persistent HTTP connections to a single
// endpoint. acquire/release never create or destroy connections; pool size
// is fixed at construction.
type Pool struct {
	url   string
	ready chan *conn
}

type conn struct {
	client *http.Client
	url    string
}

// New builds count persistent HTTP clients for url. No network I/O happens
// here: each client opens its connection on its first request, so an
// unreachable endpoint is not detected by New. maxStreams is accepted but
// not applied to either connection type.
func New(ctx context.Context, url string, count int, connType ConnectionType, maxStreams uint32) (*Pool, error) {
	p := &Pool{url: url, ready: make(chan *conn, count)}
	for i := 0; i < count; i++ {
		c, err := dial(ctx, url, connType, maxStreams)
		if err != nil {
			return nil, fmt.Errorf("httppool: dial connection %d/%d: %w", i+1, count, err)
		}
		p.ready <- c
	}
	return p, nil
}

func dial(ctx context.Context, url string, connType ConnectionType, maxStreams uint32) (*conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	switch connType {
	case HTTP2:
		transport := &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				nc, err := dialer.DialContext(ctx, network, addr)
				if err != nil {
					return nil, err
				}
				setNoDelay(nc)
				return nc, nil
			},
			MaxHeaderListSize: 16 << 20,
		}
		_ = maxStreams // HTTP/2 stream concurrency here is bounded by pool size + concurrency (C4), not per-connection.
		return &conn{client: &http.Client{Transport: transport}, url: url}, nil
	default:
		transport := &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				nc, err := dialer.DialContext(ctx, network, addr)
				if err != nil {
					return nil, err
				}
				setNoDelay(nc)
				return nc, nil
			},
			MaxConnsPerHost:     1,
			MaxIdleConnsPerHost: 1,
			IdleConnTimeout:     0,
			ForceAttemptHTTP2:   false,
		}
		return &conn{client: &http.Client{Transport: transport}, url: url}, nil
	}
}

func setNoDelay(nc net.Conn) {
	if tc, ok := nc.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
}

// Guard is a scoped handle on one pooled connection. Release must be called
// exactly once; it re-enqueues the connection at the tail of the ready
// queue.
type Guard struct {
	pool *Pool
	c    *conn
}

// Acquire pops a ready connection, blocking until one is released or ctx is
// canceled.
func (p *Pool) Acquire(ctx context.Context) (*Guard, error) {
	select {
	case c := <-p.ready:
		return &Guard{pool: p, c: c}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns the connection to the pool. Safe to call at most once per
// guard.
func (g *Guard) Release() {
	g.pool.ready <- g.c
}

// Send posts body as a JSON-RPC request over the guarded connection and
// applies extractor to the response's "result" field. extractor has the
// same shape as internal/rpctypes.Extractor[V]; Send is written against the
// bare function type so any matching extractor (including rpctypes' own)
// is accepted without an import cycle. A transport-level failure is
// returned as an engine-fatal error for the caller to surface; the pool
// itself does not retry or reconnect.
func Send[V any](ctx context.Context, g *Guard, body string, extractor func(result json.RawMessage) (V, bool)) (V, bool, error) {
	var zero V
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.c.url, bytes.NewReader([]byte(body)))
	if err != nil {
		return zero, false, fmt.Errorf("httppool: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.c.client.Do(req)
	if err != nil {
		return zero, false, fmt.Errorf("httppool: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, false, fmt.Errorf("httppool: read response: %w", err)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return zero, false, fmt.Errorf("httppool: parse response: %w", err)
	}
	if envelope.Error != nil {
		return zero, false, fmt.Errorf("httppool: rpc error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}
	if len(envelope.Result) == 0 {
		return zero, false, nil
	}
	v, ok := extractor(envelope.Result)
	return v, ok, nil
}
