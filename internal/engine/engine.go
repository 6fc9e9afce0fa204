// Package engine implements the Bench Engine: one
// goroutine-owned instance of every C1-C8 component, driving the
// per-iteration step as a sequence of ten numbered sub-steps. Grounded
// primarily on original_source/bencher/src/tps_runner.rs (the
// transaction-producing path) and get_requests.rs (the RPC-only path),
// adapted from Rust's single-threaded cooperative scheduler (tokio
// LocalSet, Rc<RefCell<_>>) to Go's goroutine-per-suspension-point model:
// each completion is its own goroutine rather than a spawn_local future,
// and state that the Rust version protects via single-threaded ownership is
// protected here by the confirmation trackers' own mutexes.
package engine

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/magicblock-labs/redline/internal/builder"
	"github.com/magicblock-labs/redline/internal/confirmation"
	"github.com/magicblock-labs/redline/internal/httppool"
	"github.com/magicblock-labs/redline/internal/pulser"
	"github.com/magicblock-labs/redline/internal/rategovernor"
	"github.com/magicblock-labs/redline/internal/rpctypes"
	"github.com/magicblock-labs/redline/internal/stats"
	"github.com/magicblock-labs/redline/internal/telemetry"
	"github.com/magicblock-labs/redline/internal/wsmux"
)

// ConfirmationTimeout is the per-operation timeout from :
// on expiry the pending entry is dropped and no sample is recorded.
const ConfirmationTimeout = 3 * time.Second

// Dependencies bundles everything an Engine needs, constructed once by the
// Orchestrator and handed to each engine goroutine.
type Dependencies struct {
	Builder   builder.RequestBuilder
	Ephem     *httppool.Pool
	Blockhash func() rpctypes.Blockhash
	RateGov   *rategovernor.Governor
	Pulser    *pulser.Pulser

	AccountSubs   *wsmux.Pool[rpctypes.RequestID] // account_update_extractor yields the embedded id directly
	SignatureSubs *wsmux.Pool[bool]
	AccountEncoding rpctypes.AccountEncoding

	SubscribeToAccounts   bool
	SubscribeToSignatures bool
	PollSignatureStatus   bool
	EnforceTotalSync      bool

	Progress *atomic.Uint64
	Log      zerolog.Logger
}

// Engine owns one goroutine's worth of confirmation trackers and
// per-mode delivery-latency streams; nothing here is touched by any other
// engine.
type Engine struct {
	deps Dependencies
	ctx  context.Context

	deliveryMu sync.Mutex
	delivery   map[string]*confirmation.Tracker[struct{}]

	accountTracker   *confirmation.Tracker[struct{}]
	signatureTracker *confirmation.Tracker[bool]
}

// New constructs an Engine and starts its confirmation drain goroutines.
// ctx governs their lifetime.
func New(ctx context.Context, deps Dependencies) *Engine {
	e := &Engine{
		deps:             deps,
		ctx:              ctx,
		delivery:         make(map[string]*confirmation.Tracker[struct{}]),
		accountTracker:   confirmation.New[struct{}](ctx, 1024),
		signatureTracker: confirmation.New[bool](ctx, 1024),
	}
	return e
}

// SetupAccountSubscriptions opens one multi-shot account subscription per
// address the builder touches, wiring each one's decoded embedded-id
// deliveries into the account confirmation tracker's confirm_by_value
// drain. Called once at engine
// construction, before Run, mirroring the one-time subscription loop in
// original_source/bencher/src/tps_runner.rs's constructor.
func (e *Engine) SetupAccountSubscriptions(ctx context.Context) {
	if e.deps.AccountSubs == nil {
		return
	}
	byValue := make(chan rpctypes.RequestID, 256)
	go confirmation.ByValueDrain(ctx, e.accountTracker, byValue)

	for i, addr := range e.deps.Builder.Accounts() {
		submit := e.deps.AccountSubs.NextConnection()
		deliver := make(chan wsmux.Delivery[rpctypes.RequestID], 16)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case d := <-deliver:
					select {
					case byValue <- d.Value:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
		submit <- wsmux.Subscription[rpctypes.RequestID]{
			LocalID: uint64(i),
			Payload: rpctypes.AccountSubscribe(addr, e.deps.AccountEncoding, rpctypes.RequestID(i)),
			OneShot: false,
			Deliver: deliver,
		}
	}
}

// Run executes `iterations` steps in order, calling Pulser.Tick once per
// iteration first. iterations == 0 returns
// immediately.
func (e *Engine) Run(ctx context.Context, iterations uint64) {
	for i := uint64(0); i < iterations; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}
		e.step(ctx, rpctypes.RequestID(i))
	}
}

func (e *Engine) step(ctx context.Context, id rpctypes.RequestID) {
	if e.deps.Pulser != nil {
		e.deps.Pulser.Tick(ctx)
	}

	guard, err := e.deps.Ephem.Acquire(ctx)
	if err != nil {
		return
	}

	permit, err := e.deps.RateGov.Tick(ctx)
	if err != nil {
		guard.Release()
		return
	}

	body := e.deps.Builder.Build(id)
	name := e.deps.Builder.Name()
	extractor := e.deps.Builder.Extractor()
	signature, hasSignature := e.deps.Builder.Signature()

	tracker := e.deliveryTracker(name)
	tracker.Track(id, nil)

	var accountSyncRx chan struct{}
	var signatureSyncRx chan bool

	if hasSignature && e.deps.SubscribeToAccounts {
		if e.deps.EnforceTotalSync {
			accountSyncRx = make(chan struct{}, 1)
			e.accountTracker.Track(id, accountSyncRx)
		} else {
			e.accountTracker.Track(id, nil)
		}
	}
	if hasSignature && e.deps.SubscribeToSignatures && e.deps.SignatureSubs != nil {
		if e.deps.EnforceTotalSync {
			signatureSyncRx = make(chan bool, 1)
			e.signatureTracker.Track(id, signatureSyncRx)
		} else {
			e.signatureTracker.Track(id, nil)
		}
		submit := e.deps.SignatureSubs.NextConnection()
		deliver := make(chan wsmux.Delivery[bool], 1)
		go forwardSignatureDeliveries(ctx, deliver, e.signatureTracker)
		submit <- wsmux.Subscription[bool]{
			LocalID: uint64(id),
			Payload: rpctypes.SignatureSubscribe(signatureOf(signature), id),
			OneShot: true,
			Deliver: deliver,
		}
	} else if hasSignature && e.deps.PollSignatureStatus {
		if e.deps.EnforceTotalSync {
			signatureSyncRx = make(chan bool, 1)
			e.signatureTracker.Track(id, signatureSyncRx)
		} else {
			e.signatureTracker.Track(id, nil)
		}
		go e.pollSignatureStatus(ctx, id, signature)
	}

	telemetry.IncInFlight()
	go e.complete(ctx, guard, permit, body, id, tracker, accountSyncRx, signatureSyncRx, extractor)

	e.deps.Progress.Add(1)
	telemetry.IncIterations()
}

func signatureOf(sig rpctypes.Signature) rpctypes.Transaction {
	return rpctypes.Transaction{Signatures: [1]rpctypes.Signature{sig}}
}

func forwardSignatureDeliveries(ctx context.Context, deliver <-chan wsmux.Delivery[bool], tracker *confirmation.Tracker[bool]) {
	select {
	case <-ctx.Done():
		return
	case d := <-deliver:
		select {
		case tracker.Publish() <- confirmation.Observation[bool]{ID: rpctypes.RequestID(d.LocalID), Value: d.Value}:
		case <-ctx.Done():
		}
	}
}

// pollSignatureStatus is the HTTP fallback for confirmations.get-signature-status:
// a single getSignatureStatuses poll used when WS signature subscription is
// disabled. It waits briefly for the transaction to land before polling
// once; the confirmation timeout in complete still applies if the status
// never resolves.
func (e *Engine) pollSignatureStatus(ctx context.Context, id rpctypes.RequestID, sig rpctypes.Signature) {
	select {
	case <-time.After(200 * time.Millisecond):
	case <-ctx.Done():
		return
	}
	guard, err := e.deps.Ephem.Acquire(ctx)
	if err != nil {
		return
	}
	defer guard.Release()
	tx := rpctypes.Transaction{Signatures: [1]rpctypes.Signature{sig}}
	ok, present, err := httppool.Send(ctx, guard, rpctypes.GetSignatureStatuses(tx), rpctypes.SignatureStatusExtractorHTTP)
	if err != nil || !present {
		return
	}
	select {
	case e.signatureTracker.Publish() <- confirmation.Observation[bool]{ID: id, Value: ok}:
	case <-ctx.Done():
	}
}

func (e *Engine) deliveryTracker(name string) *confirmation.Tracker[struct{}] {
	e.deliveryMu.Lock()
	defer e.deliveryMu.Unlock()
	t, ok := e.delivery[name]
	if !ok {
		t = confirmation.New[struct{}](e.ctx, 256)
		e.delivery[name] = t
	}
	return t
}

func (e *Engine) complete(
	ctx context.Context,
	guard *httppool.Guard,
	permit *rategovernor.Permit,
	body string,
	id rpctypes.RequestID,
	delivery *confirmation.Tracker[struct{}],
	accountSyncRx chan struct{},
	signatureSyncRx chan bool,
	extractor func(json.RawMessage) (bool, bool),
) {
	defer telemetry.DecInFlight()
	ok, present, err := httppool.Send(ctx, guard, body, extractor)
	guard.Release()
	if err != nil {
		e.deps.Log.Error().Err(err).Uint64("id", uint64(id)).Msg("request failed to be delivered")
	} else if present && !ok {
		e.deps.Log.Warn().Uint64("id", uint64(id)).Msg("request executed but failed")
	}
	select {
	case delivery.Publish() <- confirmation.Observation[struct{}]{ID: id, Value: struct{}{}}:
	case <-ctx.Done():
	}

	if !e.deps.EnforceTotalSync {
		permit.Release()
	}

	timeout := time.NewTimer(ConfirmationTimeout)
	defer timeout.Stop()
	if accountSyncRx != nil {
		select {
		case <-accountSyncRx:
		case <-timeout.C:
			e.accountTracker.Remove(id)
		case <-ctx.Done():
		}
	}
	if signatureSyncRx != nil {
		select {
		case <-signatureSyncRx:
		case <-timeout.C:
			e.signatureTracker.Remove(id)
		case <-ctx.Done():
		}
	}
	if e.deps.EnforceTotalSync {
		permit.Release()
	}
}

// Stats is everything the orchestrator merges across engines.
type Stats struct {
	DeliveryByMode map[string]stats.ObservationsStats
	AccountLatency stats.ObservationsStats
	SignatureLatency stats.ObservationsStats
	ObservedRate   stats.ObservationsStats
}

// Finalize snapshots every stream this engine accumulated.
func (e *Engine) Finalize() Stats {
	e.deliveryMu.Lock()
	byMode := make(map[string]stats.ObservationsStats, len(e.delivery))
	for name, t := range e.delivery {
		byMode[name] = t.Finalize()
	}
	e.deliveryMu.Unlock()

	return Stats{
		DeliveryByMode:   byMode,
		AccountLatency:   e.accountTracker.Finalize(),
		SignatureLatency: e.signatureTracker.Finalize(),
		ObservedRate:     e.deps.RateGov.ObservedRate(),
	}
}
