package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"RateKeeper/internal/calculator"
	"RateKeeper/internal/model"

	"github.com/holiman/uint256"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists upkeep history to a SQLite database. Ray values are
// stored exactly as decimal text, with a REAL copy for dashboards.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while the keeper writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS upkeep_runs (
			id               TEXT PRIMARY KEY,
			timestamp        INTEGER NOT NULL,
			outcome          TEXT NOT NULL,
			counter          INTEGER,
			slot             INTEGER,
			window_average   TEXT,
			utilization      TEXT,
			previous_slope1  TEXT,
			proposed_slope1  TEXT,
			utilization_pct  REAL,
			error            TEXT,
			duration_ms      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON upkeep_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS rate_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			kind       TEXT NOT NULL,
			caller     TEXT,
			subject    TEXT,
			old_value  TEXT,
			new_value  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON rate_events(timestamp)`,

		`CREATE TABLE IF NOT EXISTS utilization_samples (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp       INTEGER NOT NULL,
			source          TEXT,
			liquidity_supply TEXT,
			variable_debt   TEXT,
			stable_debt     TEXT,
			utilization     TEXT,
			utilization_pct REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_ts ON utilization_samples(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(run *model.UpkeepRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO upkeep_runs
		(id, timestamp, outcome, counter, slot, window_average, utilization,
		 previous_slope1, proposed_slope1, utilization_pct, error, duration_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.StartedAt.UnixMilli(), string(run.Outcome), int64(run.Counter), run.Slot,
		dec(run.WindowAverage), dec(run.Utilization),
		dec(run.PreviousSlope1), dec(run.ProposedSlope1),
		pct(run.Utilization), run.Error, run.Duration.Milliseconds(),
	)
	return err
}

func (r *SQLiteRecorder) RecordRateEvent(evt *model.RateEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO rate_events
		(timestamp, kind, caller, subject, old_value, new_value)
		VALUES (?,?,?,?,?,?)`,
		evt.At.UnixMilli(), string(evt.Kind), evt.Caller.Hex(), evt.Subject.Hex(),
		dec(evt.Old), dec(evt.New),
	)
	return err
}

func (r *SQLiteRecorder) RecordSample(snap *model.ReserveSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO utilization_samples
		(timestamp, source, liquidity_supply, variable_debt, stable_debt, utilization, utilization_pct)
		VALUES (?,?,?,?,?,?,?)`,
		snap.FetchedAt.UnixMilli(), snap.Source,
		dec(snap.LiquidityTokenSupply), dec(snap.VariableDebt), dec(snap.StableDebt),
		dec(snap.Utilization), pct(snap.Utilization),
	)
	return err
}

func (r *SQLiteRecorder) RecentRuns(limit int) ([]model.UpkeepRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, timestamp, outcome, counter, slot, window_average,
		utilization, previous_slope1, proposed_slope1, error, duration_ms
		FROM upkeep_runs ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []model.UpkeepRun
	for rows.Next() {
		var (
			run                             model.UpkeepRun
			ts, counter, durationMs         int64
			outcome, avg, util, prev, slope string
		)
		if err := rows.Scan(&run.ID, &ts, &outcome, &counter, &run.Slot, &avg,
			&util, &prev, &slope, &run.Error, &durationMs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = time.UnixMilli(ts)
		run.Outcome = model.RunOutcome(outcome)
		run.Counter = uint64(counter)
		run.Duration = time.Duration(durationMs) * time.Millisecond
		run.WindowAverage = parse(avg)
		run.Utilization = parse(util)
		run.PreviousSlope1 = parse(prev)
		run.ProposedSlope1 = parse(slope)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}

func dec(v *uint256.Int) string {
	if v == nil {
		return ""
	}
	return v.Dec()
}

func parse(s string) *uint256.Int {
	if s == "" {
		return nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil
	}
	return v
}

func pct(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	return calculator.ToFloat(v) * 100
}
