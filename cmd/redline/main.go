// Command redline drives the load-generator/latency-measurement harness:
// it loads a TOML run configuration, builds cfg.Parallelism independent
// Bench Engines, runs them to completion (or until SIGINT/SIGTERM), and
// writes the merged BenchStatistics record. Flag parsing, config loading
// and logger construction are the ambient surface; everything past that
// is internal/orchestrator.Run.
package main

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/magicblock-labs/redline/internal/config"
	"github.com/magicblock-labs/redline/internal/orchestrator"
	"github.com/magicblock-labs/redline/internal/shutdown"
	"github.com/magicblock-labs/redline/internal/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "redline.toml", "path to the TOML run configuration")
		outputDir   = flag.String("output-dir", "runs", "directory the final BenchStatistics JSON is written to")
		prettyLogs  = flag.Bool("pretty", isTerminal(os.Stderr), "use a human-readable console log writer instead of JSON")
		logLevel    = flag.String("log-level", "info", "zerolog level: debug, info, warn, error")
		metricsAddr = flag.String("metrics-addr", "", "optional address to serve /metrics on (empty disables it)")
		natsURL     = flag.String("nats-url", "", "optional NATS URL to publish progress snapshots to (empty disables it)")
	)
	flag.Parse()

	log := newLogger(*logLevel, *prettyLogs)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return 1
	}

	broadcaster := shutdown.New()
	defer broadcaster.Shutdown()

	if *metricsAddr != "" {
		go telemetry.ServeMetrics(*metricsAddr, log)
	}
	publisher, err := telemetry.NewProgressPublisher(*natsURL, "redline.progress")
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to nats, progress publishing disabled")
	}
	defer publisher.Close()

	opts := orchestrator.Options{
		OutputDir:     *outputDir,
		VaultSeedBase: 1 << 20,
		Publisher:     publisher,
	}

	result, path, err := orchestrator.Run(broadcaster.Context(), cfg, opts, log)
	if err != nil {
		log.Error().Err(err).Msg("run failed")
		return 1
	}

	log.Info().
		Str("output", path).
		Uint64("observed_rps_avg", uint64(result.ObservedRate.Avg)).
		Bool("interrupted", result.Interrupted).
		Msg("run complete")

	// Exit 0 even on interruption: partial results still count as a
	// completed (not failed) run.
	return 0
}

func newLogger(level string, pretty bool) zerolog.Logger {
	var output io.Writer = os.Stderr
	if pretty {
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(output).With().Timestamp().Str("service", "redline").Logger()
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
