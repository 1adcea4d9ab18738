package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"nseoptions/internal/chain"
	apperrors "nseoptions/internal/errors"
)

// fakeFetcher replays a scripted sequence of payloads or errors, then
// keeps returning the last entry.
type fakeFetcher struct {
	mu     sync.Mutex
	script []fetchResult
	calls  int
}

type fetchResult struct {
	payload *chain.Payload
	err     error
}

func (f *fakeFetcher) OptionChain(ctx context.Context, symbol string) (*chain.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	f.calls++
	r := f.script[i]
	return r.payload, r.err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memSink records every write it receives.
type memSink struct {
	mu     sync.Mutex
	writes [][]chain.Row
}

func (s *memSink) Write(ctx context.Context, rows []chain.Row, m chain.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, rows)
	return nil
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func goodPayload() *chain.Payload {
	expiry := "26-Aug-2026"
	mk := func(strike float64) chain.Record {
		return chain.Record{
			StrikePrice: strike,
			ExpiryDate:  expiry,
			CE:          &chain.Quote{StrikePrice: strike, ExpiryDate: expiry, OpenInterest: 100, TotalTradedVolume: 10},
			PE:          &chain.Quote{StrikePrice: strike, ExpiryDate: expiry, OpenInterest: 120, TotalTradedVolume: 11},
		}
	}
	return &chain.Payload{
		Records: chain.Records{
			ExpiryDates:     []string{expiry},
			Timestamp:       "26-Aug-2026 15:30:00",
			UnderlyingValue: 24837,
			Data:            []chain.Record{mk(24800), mk(24850), mk(24900)},
		},
	}
}

func testOpts() chain.Options {
	return chain.Options{Symbol: "NIFTY", Expiry: "26-Aug-2026", NStrikes: 2, Multiple: 50}
}

func fastConfig() Config {
	return Config{
		Interval:    time.Second,
		RetryWait:   time.Millisecond,
		MaxAttempts: 3,
		MaxFailures: 2,
	}
}

func TestRunOnce(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{{payload: goodPayload()}}}
	p := New(fetcher, testOpts(), fastConfig(), zerolog.Nop())

	rows, metrics, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("rows = %d, want 3", len(rows))
	}
	if metrics.ATM != 24850 {
		t.Errorf("ATM = %v, want 24850", metrics.ATM)
	}
}

func TestFetchRetriesWithinCycle(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{
		{err: apperrors.NewNetworkError("http://x", 503, nil)},
		{err: apperrors.NewNetworkError("http://x", 503, nil)},
		{payload: goodPayload()},
	}}
	p := New(fetcher, testOpts(), fastConfig(), zerolog.Nop())

	rows, _, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce after retries: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("rows = %d, want 3", len(rows))
	}
	if fetcher.callCount() != 3 {
		t.Errorf("fetch attempts = %d, want 3", fetcher.callCount())
	}
}

func TestRunEscalatesAfterConsecutiveFailures(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{
		{err: apperrors.NewNetworkError("http://x", 503, nil)},
	}}
	cfg := fastConfig()
	cfg.MaxAttempts = 1
	cfg.Interval = time.Second
	p := New(fetcher, testOpts(), cfg, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := p.Run(ctx)
	if !errors.Is(err, apperrors.ErrRetriesExhausted) {
		t.Fatalf("error = %v, want wrapped ErrRetriesExhausted", err)
	}
	if fetcher.callCount() != cfg.MaxFailures {
		t.Errorf("cycles attempted = %d, want %d", fetcher.callCount(), cfg.MaxFailures)
	}
}

func TestRunRecoversBetweenCycles(t *testing.T) {
	// One failed cycle, then success: the failure counter must reset
	// rather than accumulate across the recovery.
	fetcher := &fakeFetcher{script: []fetchResult{
		{err: apperrors.NewNetworkError("http://x", 503, nil)},
		{payload: goodPayload()},
	}}
	cfg := fastConfig()
	cfg.MaxAttempts = 1
	cfg.MaxFailures = 2
	p := New(fetcher, testOpts(), cfg, zerolog.Nop())

	s := &memSink{}
	p.AddSink(s)

	ctx, cancel := context.WithCancel(context.Background())
	p.OnCycle(func(rows []chain.Row, m chain.Metrics) {
		if s.count() >= 2 {
			cancel()
		}
	})

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("poller did not recover in time")
	}

	if s.count() < 2 {
		t.Errorf("sink writes = %d, want >= 2", s.count())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{{payload: goodPayload()}}}
	p := New(fetcher, testOpts(), fastConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	p.OnCycle(func(rows []chain.Row, m chain.Metrics) { cancel() })

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop on cancellation")
	}
}

func TestMalformedDataCountsAsFailedCycle(t *testing.T) {
	bad := goodPayload()
	dup := bad.Records.Data[1]
	bad.Records.Data = append(bad.Records.Data, dup)

	fetcher := &fakeFetcher{script: []fetchResult{{payload: bad}}}
	cfg := fastConfig()
	cfg.MaxAttempts = 1
	cfg.MaxFailures = 2
	p := New(fetcher, testOpts(), cfg, zerolog.Nop())

	s := &memSink{}
	p.AddSink(s)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := p.Run(ctx)
	if !errors.Is(err, apperrors.ErrRetriesExhausted) {
		t.Fatalf("error = %v, want wrapped ErrRetriesExhausted", err)
	}
	if s.count() != 0 {
		t.Errorf("sink writes = %d, want 0 for malformed cycles", s.count())
	}
}

func TestConfigClamping(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{{payload: goodPayload()}}}
	p := New(fetcher, testOpts(), Config{}, zerolog.Nop())

	if p.cfg.Interval != DefaultConfig().Interval {
		t.Errorf("interval = %v, want default %v", p.cfg.Interval, DefaultConfig().Interval)
	}
	if p.cfg.MaxAttempts != 1 || p.cfg.MaxFailures != 1 {
		t.Errorf("clamped attempts/failures = %d/%d, want 1/1", p.cfg.MaxAttempts, p.cfg.MaxFailures)
	}
}
