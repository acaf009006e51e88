package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/devblac/warden/internal/bridge"
	"github.com/ethereum/go-ethereum/common"
	_ "modernc.org/sqlite"
)

// ErrAlreadyRecorded is returned when an event already has a pending or
// confirmed submission.
var ErrAlreadyRecorded = errors.New("submission already recorded")

// Store wraps SQLite-backed persistence for cursors and submissions.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open initializes a SQLite database and runs minimal schema setup.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one writer; both relay directions share the handle
	db.SetMaxOpenConns(1)
	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	return s.db.PingContext(ctx)
}

func configure(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA synchronous = FULL;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("set pragma %q: %w", p, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	schema := `
CREATE TABLE IF NOT EXISTS cursors (
  chain       TEXT PRIMARY KEY,
  height      INTEGER NOT NULL,
  updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS submissions (
  event_id    TEXT PRIMARY KEY,
  chain       TEXT NOT NULL,
  block       INTEGER NOT NULL,
  log_index   INTEGER NOT NULL,
  tx_hash     TEXT NOT NULL,
  status      TEXT NOT NULL,
  target      TEXT NOT NULL,
  function    TEXT NOT NULL,
  nonce       INTEGER NOT NULL,
  source_tx   TEXT NOT NULL DEFAULT '',
  created_at  INTEGER NOT NULL,
  updated_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS submissions_status ON submissions(status);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertCursor records the last scanned height for a chain. The stored height
// never decreases; a lower height is ignored.
func (s *Store) UpsertCursor(ctx context.Context, chain string, height uint64) error {
	if chain == "" {
		return errors.New("chain required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cursors (chain, height, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(chain) DO UPDATE SET
  height=excluded.height,
  updated_at=excluded.updated_at
WHERE excluded.height > cursors.height;
`, chain, height, s.now().Unix())
	if err != nil {
		return fmt.Errorf("upsert cursor: %w", err)
	}
	return nil
}

// GetCursor retrieves the cursor for a chain.
func (s *Store) GetCursor(ctx context.Context, chain string) (height uint64, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
SELECT height FROM cursors WHERE chain = ?;
`, chain)
	switch err = row.Scan(&height); err {
	case nil:
		return height, true, nil
	case sql.ErrNoRows:
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("get cursor: %w", err)
	}
}

// Cursor is a persisted scan position.
type Cursor struct {
	Chain     string
	Height    uint64
	UpdatedAt time.Time
}

// ListCursors returns every cursor ordered by chain.
func (s *Store) ListCursors(ctx context.Context) ([]Cursor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chain, height, updated_at FROM cursors ORDER BY chain;`)
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	defer rows.Close()

	var out []Cursor
	for rows.Next() {
		var c Cursor
		var updated int64
		if err := rows.Scan(&c.Chain, &c.Height, &updated); err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}
		c.UpdatedAt = time.Unix(updated, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertSubmission stores a submission. A failed record for the same event is
// replaced; a pending or confirmed one is kept and ErrAlreadyRecorded returned.
func (s *Store) InsertSubmission(ctx context.Context, rec bridge.SubmissionRecord) error {
	if rec.TxHash == (common.Hash{}) || rec.Function == "" {
		return errors.New("tx hash and function are required")
	}
	if rec.Status == "" {
		rec.Status = bridge.StatusPending
	}
	now := s.now().Unix()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO submissions (event_id, chain, block, log_index, tx_hash, status, target, function, nonce, source_tx, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(event_id) DO UPDATE SET
  tx_hash=excluded.tx_hash,
  status=excluded.status,
  target=excluded.target,
  function=excluded.function,
  nonce=excluded.nonce,
  source_tx=excluded.source_tx,
  updated_at=excluded.updated_at
WHERE submissions.status = ?;
`, rec.Key.String(), rec.Key.Chain.String(), rec.Key.Block, rec.Key.LogIndex, rec.TxHash.Hex(), string(rec.Status),
		rec.Target.String(), rec.Function, rec.Nonce, hashOrEmpty(rec.SourceTx), now, now, string(bridge.StatusFailed))
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", rec.Key, ErrAlreadyRecorded)
	}
	return nil
}

// GetSubmission returns the record for an event identity.
func (s *Store) GetSubmission(ctx context.Context, id bridge.EventID) (bridge.SubmissionRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, selectSubmission+` WHERE event_id = ?;`, id.String())
	rec, err := scanSubmission(row)
	switch {
	case err == nil:
		return rec, true, nil
	case errors.Is(err, sql.ErrNoRows):
		return bridge.SubmissionRecord{}, false, nil
	default:
		return bridge.SubmissionRecord{}, false, fmt.Errorf("get submission: %w", err)
	}
}

// UpdateSubmissionStatus sets the status of an existing record.
func (s *Store) UpdateSubmissionStatus(ctx context.Context, id bridge.EventID, status bridge.SubmissionStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE submissions SET status = ?, updated_at = ? WHERE event_id = ?;`,
		string(status), s.now().Unix(), id.String())
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update submission %s: not found", id)
	}
	return nil
}

// ListSubmissions returns records ordered by event, optionally filtered by status.
func (s *Store) ListSubmissions(ctx context.Context, status bridge.SubmissionStatus) ([]bridge.SubmissionRecord, error) {
	query := selectSubmission
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY chain, block, log_index;`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []bridge.SubmissionRecord
	for rows.Next() {
		rec, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountSubmissions returns the number of records per status.
func (s *Store) CountSubmissions(ctx context.Context) (map[bridge.SubmissionStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM submissions GROUP BY status;`)
	if err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}
	defer rows.Close()

	out := map[bridge.SubmissionStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[bridge.SubmissionStatus(status)] = n
	}
	return out, rows.Err()
}

const selectSubmission = `
SELECT chain, block, log_index, tx_hash, status, target, function, nonce, source_tx, created_at, updated_at
FROM submissions`

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (bridge.SubmissionRecord, error) {
	var (
		chain, txHash, status, target, function, sourceTx string
		block, nonce                                      uint64
		logIndex                                          uint
		created, updated                                  int64
	)
	if err := row.Scan(&chain, &block, &logIndex, &txHash, &status, &target, &function, &nonce, &sourceTx, &created, &updated); err != nil {
		return bridge.SubmissionRecord{}, err
	}
	chainRole, err := bridge.ParseRole(chain)
	if err != nil {
		return bridge.SubmissionRecord{}, err
	}
	targetRole, err := bridge.ParseRole(target)
	if err != nil {
		return bridge.SubmissionRecord{}, err
	}
	rec := bridge.SubmissionRecord{
		Key:       bridge.EventID{Chain: chainRole, Block: block, LogIndex: logIndex},
		TxHash:    common.HexToHash(txHash),
		Status:    bridge.SubmissionStatus(status),
		Target:    targetRole,
		Function:  function,
		Nonce:     nonce,
		CreatedAt: time.Unix(created, 0).UTC(),
		UpdatedAt: time.Unix(updated, 0).UTC(),
	}
	if sourceTx != "" {
		rec.SourceTx = common.HexToHash(sourceTx)
	}
	return rec, nil
}

func hashOrEmpty(h common.Hash) string {
	if h == (common.Hash{}) {
		return ""
	}
	return h.Hex()
}
