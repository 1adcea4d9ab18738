// Package store provides snapshot persistence for poll cycles.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"nseoptions/internal/chain"
	apperrors "nseoptions/internal/errors"
)

// Store persists per-cycle chain snapshots in SQLite.
type Store struct {
	db *sql.DB
}

// New opens (and initializes if needed) the snapshot database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	-- One row per completed poll cycle
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		expiry TEXT NOT NULL,
		fetched_at TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		underlying REAL NOT NULL,
		atm REAL NOT NULL,
		low_strike REAL NOT NULL,
		high_strike REAL NOT NULL,
		tot_oi_ce REAL NOT NULL,
		tot_oi_pe REAL NOT NULL,
		tot_vol_ce REAL NOT NULL,
		tot_vol_pe REAL NOT NULL,
		near_oi_ce REAL NOT NULL,
		near_oi_pe REAL NOT NULL,
		near_vol_ce REAL NOT NULL,
		near_vol_pe REAL NOT NULL,
		pcr REAL,
		near_pcr REAL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_symbol_time
		ON snapshots(symbol, created_at);

	-- Headline per-strike figures for each snapshot
	CREATE TABLE IF NOT EXISTS chain_rows (
		snapshot_id TEXT NOT NULL,
		strike REAL NOT NULL,
		oi_ce REAL NOT NULL,
		chg_oi_ce REAL NOT NULL,
		vol_ce REAL NOT NULL,
		iv_ce REAL NOT NULL,
		ltp_ce REAL NOT NULL,
		oi_pe REAL NOT NULL,
		chg_oi_pe REAL NOT NULL,
		vol_pe REAL NOT NULL,
		iv_pe REAL NOT NULL,
		ltp_pe REAL NOT NULL,
		PRIMARY KEY (snapshot_id, strike),
		FOREIGN KEY (snapshot_id) REFERENCES snapshots(id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ratioValue renders an indeterminate ratio as SQL NULL.
func ratioValue(r chain.Ratio) interface{} {
	if !r.Valid {
		return nil
	}
	return r.Value
}

// SaveSnapshot stores one transformed cycle and returns the snapshot id.
func (s *Store) SaveSnapshot(ctx context.Context, rows []chain.Row, m chain.Metrics) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", apperrors.Wrap(err, "beginning snapshot transaction")
	}
	defer tx.Rollback()

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (
			id, symbol, expiry, fetched_at, underlying, atm,
			low_strike, high_strike,
			tot_oi_ce, tot_oi_pe, tot_vol_ce, tot_vol_pe,
			near_oi_ce, near_oi_pe, near_vol_ce, near_vol_pe,
			pcr, near_pcr
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, m.Symbol, m.Expiry, m.Timestamp, m.Underlying, m.ATM,
		m.LowStrike, m.HighStrike,
		m.TotOICE, m.TotOIPE, m.TotVolCE, m.TotVolPE,
		m.NearOICE, m.NearOIPE, m.NearVolCE, m.NearVolPE,
		ratioValue(m.PCR), ratioValue(m.NearPCR),
	)
	if err != nil {
		return "", apperrors.Wrap(err, "inserting snapshot")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chain_rows (
			snapshot_id, strike,
			oi_ce, chg_oi_ce, vol_ce, iv_ce, ltp_ce,
			oi_pe, chg_oi_pe, vol_pe, iv_pe, ltp_pe
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", apperrors.Wrap(err, "preparing row insert")
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err = stmt.ExecContext(ctx, id, r.Strike,
			r.CE.OpenInterest, r.CE.ChangeInOI, r.CE.TotalTradedVolume, r.CE.ImpliedVolatility, r.CE.LastPrice,
			r.PE.OpenInterest, r.PE.ChangeInOI, r.PE.TotalTradedVolume, r.PE.ImpliedVolatility, r.PE.LastPrice,
		)
		if err != nil {
			return "", apperrors.Wrapf(err, "inserting chain row %.2f", r.Strike)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", apperrors.Wrap(err, "committing snapshot")
	}
	return id, nil
}

// Snapshot is a persisted cycle summary.
type Snapshot struct {
	ID         string
	Symbol     string
	Expiry     string
	FetchedAt  string
	CreatedAt  time.Time
	Underlying float64
	ATM        float64
	LowStrike  float64
	HighStrike float64
	TotOICE    float64
	TotOIPE    float64
	TotVolCE   float64
	TotVolPE   float64
	NearOICE   float64
	NearOIPE   float64
	NearVolCE  float64
	NearVolPE  float64
	PCR        chain.Ratio
	NearPCR    chain.Ratio
}

// Filter narrows snapshot queries.
type Filter struct {
	Symbol string
	Expiry string
	Limit  int
}

// GetSnapshots returns stored snapshots, newest first.
func (s *Store) GetSnapshots(ctx context.Context, filter Filter) ([]Snapshot, error) {
	query := `
		SELECT id, symbol, expiry, fetched_at, created_at, underlying, atm,
			low_strike, high_strike,
			tot_oi_ce, tot_oi_pe, tot_vol_ce, tot_vol_pe,
			near_oi_ce, near_oi_pe, near_vol_ce, near_vol_pe,
			pcr, near_pcr
		FROM snapshots WHERE 1=1`
	var args []interface{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Expiry != "" {
		query += " AND expiry = ?"
		args = append(args, filter.Expiry)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "querying snapshots")
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var snap Snapshot
		var pcr, nearPCR sql.NullFloat64
		err := rows.Scan(
			&snap.ID, &snap.Symbol, &snap.Expiry, &snap.FetchedAt, &snap.CreatedAt,
			&snap.Underlying, &snap.ATM, &snap.LowStrike, &snap.HighStrike,
			&snap.TotOICE, &snap.TotOIPE, &snap.TotVolCE, &snap.TotVolPE,
			&snap.NearOICE, &snap.NearOIPE, &snap.NearVolCE, &snap.NearVolPE,
			&pcr, &nearPCR,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "scanning snapshot")
		}
		snap.PCR = chain.Ratio{Value: pcr.Float64, Valid: pcr.Valid}
		snap.NearPCR = chain.Ratio{Value: nearPCR.Float64, Valid: nearPCR.Valid}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// LatestSnapshot returns the most recent snapshot for a symbol, or
// ErrDataNotFound when none exists.
func (s *Store) LatestSnapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	snaps, err := s.GetSnapshots(ctx, Filter{Symbol: symbol, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, apperrors.ErrDataNotFound
	}
	return &snaps[0], nil
}

// GetChainRows returns the stored per-strike figures of a snapshot in
// ascending strike order.
func (s *Store) GetChainRows(ctx context.Context, snapshotID string) ([]StoredRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT strike, oi_ce, chg_oi_ce, vol_ce, iv_ce, ltp_ce,
			oi_pe, chg_oi_pe, vol_pe, iv_pe, ltp_pe
		FROM chain_rows WHERE snapshot_id = ? ORDER BY strike`, snapshotID)
	if err != nil {
		return nil, apperrors.Wrap(err, "querying chain rows")
	}
	defer rows.Close()

	var out []StoredRow
	for rows.Next() {
		var r StoredRow
		err := rows.Scan(&r.Strike,
			&r.OICE, &r.ChgOICE, &r.VolCE, &r.IVCE, &r.LTPCE,
			&r.OIPE, &r.ChgOIPE, &r.VolPE, &r.IVPE, &r.LTPPE)
		if err != nil {
			return nil, apperrors.Wrap(err, "scanning chain row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// StoredRow is the persisted subset of a chain row.
type StoredRow struct {
	Strike  float64
	OICE    float64
	ChgOICE float64
	VolCE   float64
	IVCE    float64
	LTPCE   float64
	OIPE    float64
	ChgOIPE float64
	VolPE   float64
	IVPE    float64
	LTPPE   float64
}
