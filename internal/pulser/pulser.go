// Package pulser implements the Transfer Pulser: a
// background, best-effort 1-lamport transfer to a base-chain connection
// that causes the ephemeral system to observe an upstream account change
// and re-clone it, exercising its caching/invalidation path without
// loading the primary endpoint. Grounded on
// original_source/bencher/src/transfer.rs.
package pulser

import (
	"container/list"
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/magicblock-labs/redline/internal/httppool"
	"github.com/magicblock-labs/redline/internal/rpctypes"
)

// Pulser holds a queue of PDAs and a vault signer funded on the base chain.
type Pulser struct {
	vault     rpctypes.Signer
	pdas      *list.List
	pool      *httppool.Pool
	blockhash func() rpctypes.Blockhash
	log       zerolog.Logger

	frequency time.Duration
	last      time.Time
}

// New constructs a Pulser. A zero frequency disables firing entirely (Tick
// becomes a no-op), matching "returns immediately
// unless clone_frequency_ms has elapsed" contract generalized to the
// frequency=0 boundary.
func New(vault rpctypes.Signer, pdas []rpctypes.Address, pool *httppool.Pool, blockhash func() rpctypes.Blockhash, frequency time.Duration, log zerolog.Logger) *Pulser {
	l := list.New()
	for _, pda := range pdas {
		l.PushBack(pda)
	}
	return &Pulser{
		vault:     vault,
		pdas:      l,
		pool:      pool,
		blockhash: blockhash,
		log:       log.With().Str("component", "pulser").Logger(),
		frequency: frequency,
	}
}

// Tick is called once per bench-engine iteration. The first Tick fires;
// later ones fire once frequency has elapsed since the previous fire. On
// fire it dequeues one
// PDA, submits a best-effort 1-lamport transfer, and re-enqueues the PDA at
// the tail. Failures are logged and ignored; they never abort the engine
// loop.
func (p *Pulser) Tick(ctx context.Context) {
	if p.frequency <= 0 || p.pdas.Len() == 0 {
		return
	}
	if time.Since(p.last) < p.frequency {
		return
	}
	p.last = time.Now()

	front := p.pdas.Front()
	pda := front.Value.(rpctypes.Address)
	p.pdas.Remove(front)
	p.pdas.PushBack(pda)

	go p.fire(ctx, pda)
}

func (p *Pulser) fire(ctx context.Context, pda rpctypes.Address) {
	hash := p.blockhash()
	tx := rpctypes.NewSystemTransfer(pda, hash, p.vault)

	guard, err := p.pool.Acquire(ctx)
	if err != nil {
		return
	}
	defer guard.Release()

	_, _, err = httppool.Send(ctx, guard, rpctypes.Transfer(tx), rpctypes.SignatureResponseExtractor)
	if err != nil {
		p.log.Error().Err(err).Str("pda", pda.String()).Msg("failed to pulse transfer to base chain")
	}
}
