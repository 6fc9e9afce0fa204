// Package wsmux implements the WebSocket Pool & Worker: a round-robin pool of long-lived subscription sockets, each driven
// by a dedicated goroutine running the Pending→Active→Completed state
// machine. Grounded on original_source/bencher/src/websocket.rs, using
// github.com/gobwas/ws (+wsutil) for the client handshake and frame I/O the
// way adred-codev-ws_poc/ws/internal/shared/{pump_read,pump_write}.go use it
// server-side.
package wsmux

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"
)

// Subscription is a caller-submitted request to open (or re-arm) a
// subscription on a worker's socket.
type Subscription[V any] struct {
	LocalID uint64
	Payload string
	OneShot bool
	Deliver chan<- Delivery[V]
}

// Delivery is one extracted notification value, correlated by the local id
// the caller used when submitting the Subscription.
type Delivery[V any] struct {
	LocalID uint64
	Value   V
}

// Extractor parses a subscription notification's params.result field.
type Extractor[V any] func(result json.RawMessage) (V, bool)

type pendingSlot[V any] struct {
	sub Subscription[V]
}

// Worker owns exactly one WS connection and four maps: pendingSubs (by
// local id), subscriptions (by remote id), buffered (notifications that
// raced their ack), and completed (remote ids of delivered one-shot
// subscriptions).
type Worker[V any] struct {
	conn      net.Conn
	extractor Extractor[V]
	log       zerolog.Logger

	submit chan Subscription[V]

	pendingSubs   map[uint64]pendingSlot[V]
	subscriptions map[uint64]pendingSlot[V]
	buffered      map[uint64]json.RawMessage
	completed     map[uint64]struct{} // remote ids whose one-shot subscription already delivered
}

// Dial opens a client WS connection to url and starts its worker loop,
// returning the channel used to submit subscriptions. The worker exits when
// ctx is canceled, writing a close frame first.
func Dial[V any](ctx context.Context, url string, extractor Extractor[V], log zerolog.Logger) (chan<- Subscription[V], error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("wsmux: dial %s: %w", url, err)
	}
	var reader io.Reader = conn
	if br != nil && br.Buffered() > 0 {
		reader = io.MultiReader(br, conn)
	}
	w := &Worker[V]{
		conn:          conn,
		extractor:     extractor,
		log:           log.With().Str("component", "wsmux").Str("endpoint", url).Logger(),
		submit:        make(chan Subscription[V], 1),
		pendingSubs:   make(map[uint64]pendingSlot[V]),
		subscriptions: make(map[uint64]pendingSlot[V]),
		buffered:      make(map[uint64]json.RawMessage),
		completed:     make(map[uint64]struct{}),
	}
	go w.run(ctx, reader)
	return w.submit, nil
}

func (w *Worker[V]) run(ctx context.Context, reader io.Reader) {
	defer w.conn.Close()

	frames := make(chan []byte, 8)
	readErrs := make(chan error, 1)
	go func() {
		bufReader := bufio.NewReader(reader)
		for {
			data, op, err := wsutil.ReadServerData(bufReader)
			if err != nil {
				readErrs <- err
				return
			}
			if op != ws.OpText {
				continue
			}
			frames <- data
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = wsutil.WriteClientMessage(w.conn, ws.OpClose, nil)
			return
		case err := <-readErrs:
			w.log.Warn().Err(err).Msg("websocket read failed, worker exiting")
			return
		case frame := <-frames:
			w.handleFrame(frame)
		case sub := <-w.submit:
			if err := wsutil.WriteClientMessage(w.conn, ws.OpText, []byte(sub.Payload)); err != nil {
				w.log.Warn().Err(err).Uint64("local_id", sub.LocalID).Msg("failed to write subscription frame")
				continue
			}
			w.pendingSubs[sub.LocalID] = pendingSlot[V]{sub: sub}
		}
	}
}

func (w *Worker[V]) handleFrame(payload []byte) {
	var ack struct {
		ID     uint64 `json:"id"`
		Result uint64 `json:"result"`
	}
	if json.Unmarshal(payload, &ack) == nil && ack.Result != 0 {
		slot, ok := w.pendingSubs[ack.ID]
		if !ok {
			return
		}
		delete(w.pendingSubs, ack.ID)
		w.subscriptions[ack.Result] = slot
		if buffered, ok := w.buffered[ack.Result]; ok {
			delete(w.buffered, ack.Result)
			w.deliverNotification(ack.Result, buffered)
		}
		return
	}

	var notification struct {
		Params struct {
			Subscription uint64          `json:"subscription"`
			Result       json.RawMessage `json:"result"`
		} `json:"params"`
	}
	if json.Unmarshal(payload, &notification) != nil || notification.Params.Result == nil {
		return
	}
	w.deliverNotification(notification.Params.Subscription, notification.Params.Result)
}

func (w *Worker[V]) deliverNotification(remoteID uint64, result json.RawMessage) {
	if _, done := w.completed[remoteID]; done {
		// A second notification for an already-delivered one-shot
		// subscription (e.g. a retried signature confirmation): drop it
		// explicitly rather than buffering it forever under a remote id
		// nothing will ever re-subscribe to.
		return
	}
	slot, ok := w.subscriptions[remoteID]
	if !ok {
		w.buffered[remoteID] = result
		return
	}
	value, ok := w.extractor(result)
	if !ok {
		return
	}
	select {
	case slot.sub.Deliver <- Delivery[V]{LocalID: slot.sub.LocalID, Value: value}:
	default:
	}
	if slot.sub.OneShot {
		delete(w.subscriptions, remoteID)
		w.completed[remoteID] = struct{}{}
	}
}

// Pool round-robins subscription submission across W worker sockets
//).
type Pool[V any] struct {
	mu      sync.Mutex
	sockets []chan<- Subscription[V]
	next    int
}

// NewPool dials count sockets to url, sharing one extractor across all of
// them.
func NewPool[V any](ctx context.Context, url string, count int, extractor Extractor[V], log zerolog.Logger) (*Pool[V], error) {
	sockets := make([]chan<- Subscription[V], 0, count)
	for i := 0; i < count; i++ {
		submit, err := Dial(ctx, url, extractor, log)
		if err != nil {
			return nil, fmt.Errorf("wsmux: socket %d/%d: %w", i+1, count, err)
		}
		sockets = append(sockets, submit)
	}
	return &Pool[V]{sockets: sockets}, nil
}

// NextConnection returns the next socket's submit channel, round-robin.
func (p *Pool[V]) NextConnection() chan<- Subscription[V] {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.sockets[p.next]
	p.next = (p.next + 1) % len(p.sockets)
	return s
}
