package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"nseoptions/internal/chain"
	apperrors "nseoptions/internal/errors"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testMetrics(symbol string) chain.Metrics {
	return chain.Metrics{
		Symbol:     symbol,
		Expiry:     "26-Aug-2026",
		Timestamp:  "26-Aug-2026 15:30:00",
		Underlying: 24837,
		ATM:        24850,
		LowStrike:  24750,
		HighStrike: 24950,
		TotOICE:    1000,
		TotOIPE:    1500,
		TotVolCE:   200,
		TotVolPE:   240,
		NearOICE:   400,
		NearOIPE:   500,
		NearVolCE:  80,
		NearVolPE:  90,
		PCR:        chain.Ratio{Value: 1.5, Valid: true},
		NearPCR:    chain.Ratio{Value: 1.25, Valid: true},
	}
}

func testRows() []chain.Row {
	return []chain.Row{
		{Strike: 24800, CE: chain.Leg{OpenInterest: 100, LastPrice: 120.5, ImpliedVolatility: 12.3},
			PE: chain.Leg{OpenInterest: 150, LastPrice: 80.25, ImpliedVolatility: 13.1}},
		{Strike: 24850, CE: chain.Leg{OpenInterest: 90, LastPrice: 95},
			PE: chain.Leg{OpenInterest: 160, LastPrice: 101}},
	}
}

func TestSaveAndGetSnapshot(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	id, err := st.SaveSnapshot(ctx, testRows(), testMetrics("NIFTY"))
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if id == "" {
		t.Fatal("empty snapshot id")
	}

	snaps, err := st.GetSnapshots(ctx, Filter{Symbol: "NIFTY"})
	if err != nil {
		t.Fatalf("GetSnapshots: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(snaps))
	}

	snap := snaps[0]
	if snap.ID != id {
		t.Errorf("id = %q, want %q", snap.ID, id)
	}
	if snap.ATM != 24850 || snap.Underlying != 24837 {
		t.Errorf("strikes round trip: atm=%v underlying=%v", snap.ATM, snap.Underlying)
	}
	if !snap.PCR.Valid || snap.PCR.Value != 1.5 {
		t.Errorf("pcr = %+v, want 1.5 valid", snap.PCR)
	}
	if snap.FetchedAt != "26-Aug-2026 15:30:00" {
		t.Errorf("fetched_at = %q", snap.FetchedAt)
	}
}

func TestIndeterminateRatioStoredAsNull(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	m := testMetrics("NIFTY")
	m.PCR = chain.Ratio{}
	m.NearPCR = chain.Ratio{}
	if _, err := st.SaveSnapshot(ctx, nil, m); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	snaps, err := st.GetSnapshots(ctx, Filter{Symbol: "NIFTY"})
	if err != nil {
		t.Fatalf("GetSnapshots: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(snaps))
	}
	if snaps[0].PCR.Valid || snaps[0].NearPCR.Valid {
		t.Errorf("indeterminate ratios round-tripped as valid: %+v", snaps[0].PCR)
	}
}

func TestGetSnapshotsFilters(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	for _, symbol := range []string{"NIFTY", "NIFTY", "BANKNIFTY"} {
		if _, err := st.SaveSnapshot(ctx, nil, testMetrics(symbol)); err != nil {
			t.Fatalf("SaveSnapshot(%s): %v", symbol, err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"by symbol", Filter{Symbol: "NIFTY"}, 2},
		{"by expiry", Filter{Expiry: "26-Aug-2026"}, 3},
		{"no match", Filter{Symbol: "FINNIFTY"}, 0},
		{"limited", Filter{Limit: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snaps, err := st.GetSnapshots(ctx, tt.filter)
			if err != nil {
				t.Fatalf("GetSnapshots: %v", err)
			}
			if len(snaps) != tt.want {
				t.Errorf("snapshots = %d, want %d", len(snaps), tt.want)
			}
		})
	}
}

func TestLatestSnapshot(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if _, err := st.LatestSnapshot(ctx, "NIFTY"); !errors.Is(err, apperrors.ErrDataNotFound) {
		t.Fatalf("error = %v, want ErrDataNotFound", err)
	}

	if _, err := st.SaveSnapshot(ctx, nil, testMetrics("NIFTY")); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	snap, err := st.LatestSnapshot(ctx, "NIFTY")
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if snap.Symbol != "NIFTY" {
		t.Errorf("symbol = %q", snap.Symbol)
	}
}

func TestGetChainRows(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	rows := testRows()
	// Insert out of order; reads come back strike ascending.
	rows[0], rows[1] = rows[1], rows[0]

	id, err := st.SaveSnapshot(ctx, rows, testMetrics("NIFTY"))
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	stored, err := st.GetChainRows(ctx, id)
	if err != nil {
		t.Fatalf("GetChainRows: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("rows = %d, want 2", len(stored))
	}
	if stored[0].Strike != 24800 || stored[1].Strike != 24850 {
		t.Errorf("strike order = %v, %v", stored[0].Strike, stored[1].Strike)
	}
	if stored[0].LTPCE != 120.5 || stored[0].OIPE != 150 {
		t.Errorf("row figures: %+v", stored[0])
	}
}
