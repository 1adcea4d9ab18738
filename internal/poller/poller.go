// Package poller drives the fetch-transform-write cycle on a fixed
// cadence.
package poller

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"nseoptions/internal/chain"
	apperrors "nseoptions/internal/errors"
	"nseoptions/internal/logging"
	"nseoptions/internal/sink"
	"nseoptions/pkg/utils"
)

// Fetcher acquires a fresh payload for a symbol. Implementations fail
// with NetworkError or ParseError; both are retried the same way.
type Fetcher interface {
	OptionChain(ctx context.Context, symbol string) (*chain.Payload, error)
}

// Config holds poll-loop timing and escalation settings.
type Config struct {
	Interval    time.Duration // between cycles
	RetryWait   time.Duration // between fetch attempts within a cycle
	MaxAttempts int           // fetch attempts per cycle
	MaxFailures int           // consecutive failed cycles before giving up
}

// DefaultConfig returns the default poller configuration.
func DefaultConfig() Config {
	return Config{
		Interval:    30 * time.Second,
		RetryWait:   20 * time.Second,
		MaxAttempts: 3,
		MaxFailures: 5,
	}
}

// Poller repeatedly fetches a symbol's chain, transforms it, and hands
// the result to its sinks. Cycles are strictly sequential: a fetch
// completes (or exhausts its retries) before the transform runs, and
// the transform completes before the next wait begins.
type Poller struct {
	fetcher Fetcher
	opts    chain.Options
	cfg     Config
	logger  zerolog.Logger

	sinks   []sink.Sink
	raw     sink.RawWriter
	onCycle func(rows []chain.Row, m chain.Metrics)
	onWait  func(done, total int)
}

// New creates a poller for one symbol/expiry pair.
func New(fetcher Fetcher, opts chain.Options, cfg Config, logger zerolog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 1
	}
	return &Poller{
		fetcher: fetcher,
		opts:    opts,
		cfg:     cfg,
		logger:  logging.WithSymbol(logger, opts.Symbol),
	}
}

// AddSink registers a sink for transformed cycles.
func (p *Poller) AddSink(s sink.Sink) {
	p.sinks = append(p.sinks, s)
}

// SetRawWriter registers a writer for the untransformed payloads.
func (p *Poller) SetRawWriter(w sink.RawWriter) {
	p.raw = w
}

// OnCycle registers a callback invoked after each successful cycle.
func (p *Poller) OnCycle(fn func(rows []chain.Row, m chain.Metrics)) {
	p.onCycle = fn
}

// OnWait registers a per-second progress callback for the inter-cycle
// wait.
func (p *Poller) OnWait(fn func(done, total int)) {
	p.onWait = fn
}

// Run polls until the context is cancelled or the consecutive-failure
// ceiling is hit. The returned error is ctx.Err() on cancellation.
func (p *Poller) Run(ctx context.Context) error {
	failures := 0

	for cycle := 1; ; cycle++ {
		if err := p.runCycle(ctx, cycle); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			p.logger.Warn().
				Err(err).
				Int("cycle", cycle).
				Int("consecutive_failures", failures).
				Msg("Cycle failed")
			if failures >= p.cfg.MaxFailures {
				return apperrors.Wrapf(apperrors.ErrRetriesExhausted,
					"%d consecutive failed cycles, last error: %v", failures, err)
			}
		} else {
			failures = 0
		}

		if err := p.wait(ctx); err != nil {
			return err
		}
	}
}

// RunOnce performs a single fetch-transform pass without sinks.
func (p *Poller) RunOnce(ctx context.Context) ([]chain.Row, chain.Metrics, error) {
	payload, err := p.fetch(ctx)
	if err != nil {
		return nil, chain.Metrics{}, err
	}
	return chain.Transform(payload, p.opts)
}

func (p *Poller) runCycle(ctx context.Context, cycle int) error {
	payload, err := p.fetch(ctx)
	if err != nil {
		return err
	}

	rows, metrics, err := chain.Transform(payload, p.opts)
	if err != nil {
		// Malformed data is as bad as a failed fetch for this cycle;
		// it counts toward the failure ceiling rather than aborting
		// outright, since the next response is usually clean again.
		return err
	}

	if p.raw != nil {
		if err := p.raw.WriteRaw(ctx, payload, metrics); err != nil {
			p.logger.Warn().Err(err).Msg("Raw snapshot failed")
		}
	}
	for _, s := range p.sinks {
		if err := s.Write(ctx, rows, metrics); err != nil {
			p.logger.Warn().Err(err).Msg("Sink write failed")
		}
	}

	if p.onCycle != nil {
		p.onCycle(rows, metrics)
	}
	logging.LogCycle(p.logger, p.opts.Symbol, cycle, len(rows), metrics.PCR.String())
	return nil
}

func (p *Poller) fetch(ctx context.Context) (*chain.Payload, error) {
	return utils.RetryWithResult(ctx,
		utils.FixedRetryConfig(p.cfg.MaxAttempts, p.cfg.RetryWait),
		func() (*chain.Payload, error) {
			return p.fetcher.OptionChain(ctx, p.opts.Symbol)
		})
}

// wait sleeps out the poll interval in one-second segments so the
// progress callback can tick and cancellation stays responsive.
func (p *Poller) wait(ctx context.Context) error {
	total := int(p.cfg.Interval / time.Second)
	if total < 1 {
		total = 1
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for done := 0; done < total; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			done++
			if p.onWait != nil {
				p.onWait(done, total)
			}
		}
	}
	return nil
}
