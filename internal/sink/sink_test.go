package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"nseoptions/internal/chain"
)

func sampleRows() []chain.Row {
	return []chain.Row{
		{Strike: 24800, CE: chain.Leg{OpenInterest: 100, LastPrice: 120.5}, PE: chain.Leg{OpenInterest: 150, LastPrice: 80.25}},
		{Strike: 24850, CE: chain.Leg{OpenInterest: 90, LastPrice: 95}, PE: chain.Leg{OpenInterest: 160, LastPrice: 101}},
	}
}

func sampleMetrics() chain.Metrics {
	return chain.Metrics{
		Symbol:     "NIFTY",
		Expiry:     "26-Aug-2026",
		Timestamp:  "26-Aug-2026 15:30:00",
		Underlying: 24837,
		ATM:        24850,
	}
}

func TestCSVHeaderMatchesColumnContract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.csv")
	s := NewCSVSink(path)

	if err := s.Write(context.Background(), sampleRows(), sampleMetrics()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("csv lines = %d, want header + 2 rows", len(records))
	}
	if !reflect.DeepEqual(records[0], chain.Columns()) {
		t.Errorf("header = %v\nwant %v", records[0], chain.Columns())
	}
}

func TestCSVRewritesInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.csv")
	s := NewCSVSink(path)

	if err := s.Write(context.Background(), sampleRows(), sampleMetrics()); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if err := s.Write(context.Background(), sampleRows()[:1], sampleMetrics()); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("csv lines = %d, want header + 1 row after rewrite", len(records))
	}
}

func TestCSVCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "session.csv")
	s := NewCSVSink(path)

	if err := s.Write(context.Background(), sampleRows(), sampleMetrics()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("session file missing: %v", err)
	}
}

func TestJSONSnapshotFile(t *testing.T) {
	dir := t.TempDir()
	s := NewJSONSink(dir, zerolog.Nop())

	if err := s.Write(context.Background(), sampleRows(), sampleMetrics()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	day := time.Now().Format("2006-01-02")
	entries, err := os.ReadDir(filepath.Join(dir, day))
	if err != nil {
		t.Fatalf("per-day directory missing: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(entries))
	}

	name := entries[0].Name()
	if !strings.HasPrefix(name, "NIFTY #") || !strings.HasSuffix(name, ".json") {
		t.Errorf("snapshot name = %q", name)
	}
	if strings.Contains(name, ":") {
		t.Errorf("snapshot name carries colons: %q", name)
	}

	data, err := os.ReadFile(filepath.Join(dir, day, name))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var snap struct {
		Metrics chain.Metrics `json:"metrics"`
		Columns []string      `json:"columns"`
		Rows    []chain.Row   `json:"rows"`
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Metrics.Symbol != "NIFTY" {
		t.Errorf("symbol = %q", snap.Metrics.Symbol)
	}
	if !reflect.DeepEqual(snap.Columns, chain.Columns()) {
		t.Errorf("columns = %v", snap.Columns)
	}
	if len(snap.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(snap.Rows))
	}
}

func TestJSONRawSnapshotSuffix(t *testing.T) {
	dir := t.TempDir()
	s := NewJSONSink(dir, zerolog.Nop())

	payload := &chain.Payload{
		Records: chain.Records{Timestamp: "26-Aug-2026 15:30:00", UnderlyingValue: 24837},
	}
	if err := s.WriteRaw(context.Background(), payload, sampleMetrics()); err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}

	day := time.Now().Format("2006-01-02")
	entries, err := os.ReadDir(filepath.Join(dir, day))
	if err != nil {
		t.Fatalf("per-day directory missing: %v", err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), " raw.json") {
		t.Errorf("raw snapshot not found: %v", entries)
	}
}

type errSink struct{ err error }

func (s errSink) Write(ctx context.Context, rows []chain.Row, m chain.Metrics) error {
	return s.err
}

func TestMultiJoinsErrors(t *testing.T) {
	errA := errors.New("sink a down")
	errB := errors.New("sink b down")

	var wrote int
	ok := sinkFunc(func() { wrote++ })

	m := Multi{errSink{errA}, ok, errSink{errB}}
	err := m.Write(context.Background(), sampleRows(), sampleMetrics())

	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("joined error = %v, want both sink errors", err)
	}
	if wrote != 1 {
		t.Errorf("healthy sink writes = %d, want 1", wrote)
	}
}

// sinkFunc adapts a closure for Multi tests.
type sinkFunc func()

func (f sinkFunc) Write(ctx context.Context, rows []chain.Row, m chain.Metrics) error {
	f()
	return nil
}
