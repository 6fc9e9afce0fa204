// Package orchestrator implements the Orchestrator (C10): it spawns P
// independent Bench Engines on isolated goroutines, drives a terminal
// progress indicator, merges per-engine statistics through the rules
// internal/stats defines, and writes the final BenchStatistics record.
// Grounded on original_source/bencher/src/main.rs (the
// std::thread::spawn-per-engine fan-out, one tokio current-thread runtime
// each) and original_source/bencher/src/progress.rs (the raw-ANSI terminal
// bar), adapted from Rust's std::thread + LocalSet pairing to a goroutine
// per engine: Go has no ergonomic single-threaded task-set runtime, so each
// engine's in-process state (pending maps, per-mode streams) stays
// goroutine-owned and protected by the confirmation trackers' own mutexes
// rather than literal OS-thread pinning.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/magicblock-labs/redline/internal/blockhash"
	"github.com/magicblock-labs/redline/internal/builder"
	"github.com/magicblock-labs/redline/internal/config"
	"github.com/magicblock-labs/redline/internal/engine"
	"github.com/magicblock-labs/redline/internal/httppool"
	"github.com/magicblock-labs/redline/internal/output"
	"github.com/magicblock-labs/redline/internal/pulser"
	"github.com/magicblock-labs/redline/internal/rategovernor"
	"github.com/magicblock-labs/redline/internal/rpctypes"
	"github.com/magicblock-labs/redline/internal/stats"
	"github.com/magicblock-labs/redline/internal/telemetry"
	"github.com/magicblock-labs/redline/internal/wsmux"
)

// BenchStatistics is the full run record serialized to
// runs/redline-<unix-seconds>.json.
type BenchStatistics struct {
	Config      config.Config `json:"config"`
	Interrupted bool          `json:"interrupted"`
	DurationMs  int64         `json:"duration_ms"`

	RequestStats     map[string]stats.ObservationsStats `json:"request_stats"`
	AccountUpdates   stats.ObservationsStats             `json:"account_update_stats"`
	SignatureConfirm stats.ObservationsStats             `json:"signature_confirmation_stats"`
	ObservedRate     stats.ObservationsStats             `json:"rps"`
}

// Options bundles the run-level knobs not already carried on config.Config:
// where to write output, where to render progress, the vault seed base and
// the optional progress publisher.
type Options struct {
	OutputDir      string
	ProgressWriter io.Writer // defaults to os.Stderr when nil
	VaultSeedBase  uint32    // derives the Transfer Pulser's vault signer
	Publisher      *telemetry.ProgressPublisher // optional; nil disables progress republishing
}

// Run builds cfg.Parallelism independent engines, runs them to completion
// (or until ctx is canceled), merges their statistics, and writes the
// result. Once engines have started, the only error it returns is a failure
// to write the output file: a SIGINT mid-run still yields a written, partial
// BenchStatistics with Interrupted=true, so a canceled run still exits
// cleanly with whatever partial output it collected.
func Run(ctx context.Context, cfg config.Config, opts Options, log zerolog.Logger) (BenchStatistics, string, error) {
	start := time.Now()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if opts.ProgressWriter == nil {
		opts.ProgressWriter = os.Stderr
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "runs"
	}

	telemetry.SetInFlight(0)

	numEngines := int(cfg.Parallelism)
	engines := make([]*engine.Engine, 0, numEngines)
	var progress atomic.Uint64
	total := uint64(numEngines) * cfg.Benchmark.Iterations

	for i := 0; i < numEngines; i++ {
		eng, err := buildEngine(runCtx, cfg, i, opts, &progress, log)
		if err != nil {
			cancel()
			return BenchStatistics{}, "", fmt.Errorf("orchestrator: build engine %d: %w", i, err)
		}
		engines = append(engines, eng)
	}

	renderDone := make(chan struct{})
	go renderProgress(runCtx, opts.ProgressWriter, &progress, total, renderDone)

	if sampler, err := telemetry.NewResourceSampler(); err == nil {
		go sampler.Run(runCtx, time.Second)
		go publishProgress(runCtx, sampler, opts.Publisher, &progress, total, start)
	} else {
		log.Warn().Err(err).Msg("resource sampler unavailable, cpu/rss gauges and progress snapshots disabled")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var engineErrs []error
	for i, eng := range engines {
		wg.Add(1)
		go func(i int, eng *engine.Engine) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					engineErrs = append(engineErrs, fmt.Errorf("engine %d panicked: %v", i, r))
					mu.Unlock()
				}
			}()
			eng.Run(runCtx, cfg.Benchmark.Iterations)
		}(i, eng)
	}
	wg.Wait()
	cancel()
	<-renderDone

	interrupted := ctx.Err() != nil
	for _, err := range engineErrs {
		log.Error().Err(err).Msg("engine terminated abnormally; merging surviving engines' stats")
	}
	if interrupted {
		log.Warn().Uint64("completed", progress.Load()).Uint64("total", total).Msg("run interrupted, writing partial statistics")
	}

	perEngine := make([]engine.Stats, len(engines))
	for i, eng := range engines {
		perEngine[i] = eng.Finalize()
	}
	result := mergeStats(cfg, perEngine, interrupted, time.Since(start))

	path, err := output.Write(opts.OutputDir, time.Now().Unix(), result)
	if err != nil {
		return result, "", fmt.Errorf("orchestrator: write output: %w", err)
	}
	return result, path, nil
}

// mergeStats folds every engine's Stats through internal/stats' merge
// rule, keyed by mode name for the per-mode delivery breakout.
func mergeStats(cfg config.Config, perEngine []engine.Stats, interrupted bool, elapsed time.Duration) BenchStatistics {
	byMode := make(map[string]stats.ObservationsStats)
	var accountUpdates, signatureConfirm, observedRate []stats.ObservationsStats

	for _, e := range perEngine {
		for name, s := range e.DeliveryByMode {
			if existing, ok := byMode[name]; ok {
				byMode[name] = stats.Merge(existing, s)
			} else {
				byMode[name] = s
			}
		}
		accountUpdates = append(accountUpdates, e.AccountLatency)
		signatureConfirm = append(signatureConfirm, e.SignatureLatency)
		observedRate = append(observedRate, e.ObservedRate)
	}

	return BenchStatistics{
		Config:           cfg,
		Interrupted:      interrupted,
		DurationMs:       elapsed.Milliseconds(),
		RequestStats:     byMode,
		AccountUpdates:   stats.MergeAll(stats.KindLatency, accountUpdates),
		SignatureConfirm: stats.MergeAll(stats.KindLatency, signatureConfirm),
		ObservedRate:     stats.MergeAll(stats.KindThroughput, observedRate),
	}
}

// buildEngine wires C1-C8 for one engine: its own HTTP pool, blockhash
// provider, WS subscription pools, rate governor, request builder and
// transfer pulser. Each engine's signer slice is a contiguous
// [index*payers, (index+1)*payers) window of the deterministically derived
// signer set: each engine gets its own contiguous slice of pre-generated
// signer keys, sized payers per engine.
func buildEngine(ctx context.Context, cfg config.Config, index int, opts Options, progress *atomic.Uint64, log zerolog.Logger) (*engine.Engine, error) {
	engineLog := log.With().Int("engine", index).Logger()

	connType := httppool.HTTP1
	if cfg.Connection.HTTPConnectionType == string(httppool.HTTP2) {
		connType = httppool.HTTP2
	}
	ephemPool, err := httppool.New(ctx, cfg.Connection.EphemURL, cfg.Connection.HTTPConnectionsCount, connType, 100)
	if err != nil {
		return nil, fmt.Errorf("ephem pool: %w", err)
	}

	bh, err := blockhash.New(ctx, ephemPool, engineLog)
	if err != nil {
		return nil, fmt.Errorf("blockhash provider: %w", err)
	}

	authority, err := rpctypes.ParseAddress(cfg.Authority)
	if err != nil {
		return nil, fmt.Errorf("authority: %w", err)
	}
	encoding := rpctypes.AccountEncoding(cfg.Data.AccountEncoding)

	signers := make([]rpctypes.Signer, cfg.Payers)
	for i := range signers {
		signers[i] = rpctypes.NewSigner(uint32(index)*uint32(cfg.Payers) + uint32(i))
	}

	reqBuilder := builder.New(cfg.Benchmark.Mode, signers, authority, cfg.Benchmark.AccountsCount, cfg.Data.AccountSize, encoding, bh.Current, cfg.Benchmark.PreflightCheck)

	rateGov := rategovernor.New(cfg.Benchmark.Rate, cfg.Benchmark.Concurrency)

	deps := engine.Dependencies{
		Builder:               reqBuilder,
		Ephem:                 ephemPool,
		Blockhash:              bh.Current,
		RateGov:               rateGov,
		AccountEncoding:       encoding,
		SubscribeToAccounts:   cfg.Confirmations.SubscribeToAccounts,
		SubscribeToSignatures: cfg.Confirmations.SubscribeToSignatures,
		PollSignatureStatus:   cfg.Confirmations.GetSignatureStatus,
		EnforceTotalSync:      cfg.Confirmations.EnforceTotalSync,
		Progress:              progress,
		Log:                   engineLog,
	}

	if cfg.Confirmations.SubscribeToAccounts && cfg.Connection.WSConnectionsCount > 0 {
		wsURL, err := cfg.EphemWSEndpoint()
		if err != nil {
			return nil, fmt.Errorf("ws endpoint: %w", err)
		}
		pool, err := wsmux.NewPool(ctx, wsURL, cfg.Connection.WSConnectionsCount, rpctypes.AccountUpdateExtractor, engineLog)
		if err != nil {
			return nil, fmt.Errorf("account ws pool: %w", err)
		}
		deps.AccountSubs = pool
	}
	if cfg.Confirmations.SubscribeToSignatures && cfg.Connection.WSConnectionsCount > 0 {
		wsURL, err := cfg.EphemWSEndpoint()
		if err != nil {
			return nil, fmt.Errorf("ws endpoint: %w", err)
		}
		pool, err := wsmux.NewPool(ctx, wsURL, cfg.Connection.WSConnectionsCount, rpctypes.SignatureStatusExtractorWS, engineLog)
		if err != nil {
			return nil, fmt.Errorf("signature ws pool: %w", err)
		}
		deps.SignatureSubs = pool
	}

	if cfg.Benchmark.CloneFrequencyMs > 0 {
		p, err := buildPulser(ctx, cfg, index, engineLog, reqBuilder, opts.VaultSeedBase)
		if err != nil {
			return nil, fmt.Errorf("transfer pulser: %w", err)
		}
		deps.Pulser = p
	}

	eng := engine.New(ctx, deps)
	eng.SetupAccountSubscriptions(ctx)

	return eng, nil
}

// buildPulser constructs the Transfer Pulser (C8), which owns its own
// base-chain HTTP connection and blockhash provider, independent from the
// ephemeral endpoint's, mirroring original_source/bencher/src/transfer.rs's
// TransferManager, which dials its own Connection and BlockHashProvider
// against config.connection.chain-url.
func buildPulser(ctx context.Context, cfg config.Config, index int, log zerolog.Logger, reqBuilder builder.RequestBuilder, vaultSeedBase uint32) (*pulser.Pulser, error) {
	chainPool, err := httppool.New(ctx, cfg.Connection.ChainURL, 1, httppool.HTTP2, 100)
	if err != nil {
		return nil, fmt.Errorf("chain pool: %w", err)
	}
	chainBlockhash, err := blockhash.New(ctx, chainPool, log)
	if err != nil {
		return nil, fmt.Errorf("chain blockhash provider: %w", err)
	}
	vault := rpctypes.NewSigner(vaultSeedBase + uint32(index))
	frequency := time.Duration(cfg.Benchmark.CloneFrequencyMs) * time.Millisecond
	return pulser.New(vault, reqBuilder.Accounts(), chainPool, chainBlockhash.Current, frequency, log), nil
}

// renderProgress draws the raw-ANSI spinner/bar original_source/bencher/src/progress.rs
// animates, refreshed every 100ms until ctx is canceled or the run
// completes, whichever comes first. close(done) signals the caller it is
// safe to read the final progress count.
func renderProgress(ctx context.Context, w io.Writer, progress *atomic.Uint64, total uint64, doneCh chan<- struct{}) {
	defer close(doneCh)
	if total == 0 {
		return
	}
	spinner := []byte{'|', '/', '-', '\\'}
	spinIdx := 0
	fmt.Fprint(w, "\x1b[?25l")
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		current := progress.Load()
		if current >= total || ctx.Err() != nil {
			fmt.Fprint(w, "\r\x1b[K\x1b[?25h")
			return
		}
		percent := float64(current) / float64(total) * 100
		const barLen = 80
		filled := int(percent / 100 * barLen)
		if filled > barLen {
			filled = barLen
		}
		fmt.Fprintf(w, "\r %c running redline [%s%s] %5.2f%% (%d/%d)",
			spinner[spinIdx%len(spinner)], repeat('█', filled), repeat('-', barLen-filled), percent, current, total)
		spinIdx++
		select {
		case <-ticker.C:
		case <-ctx.Done():
		}
	}
}

// publishProgress republishes a Snapshot every second for as long as the run
// is active, so an external dashboard watching opts.Publisher's NATS subject
// tracks the same completion/CPU/RSS numbers the terminal progress bar shows.
// A nil publisher makes Publish a no-op, so this still runs harmlessly with
// progress telemetry disabled.
func publishProgress(ctx context.Context, sampler *telemetry.ResourceSampler, publisher *telemetry.ProgressPublisher, progress *atomic.Uint64, total uint64, start time.Time) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cpu, mem := sampler.Current()
			publisher.Publish(telemetry.Snapshot{
				Iterations:  progress.Load(),
				Total:       total,
				CPUPercent:  cpu,
				MemoryMB:    mem,
				ElapsedSecs: time.Since(start).Seconds(),
			})
		}
	}
}

func repeat(r rune, n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]rune, n)
	for i := range out {
		out[i] = r
	}
	return string(out)
}
