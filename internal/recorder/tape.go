package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// TapeStore holds the trade tape. It is kept apart from the run store: the
// tape is append-heavy and read back in bulk, so it goes through plain
// database/sql with batched transactional writes.
type TapeStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewTapeStore opens (or creates) the tape database under dir.
func NewTapeStore(dir string) (*TapeStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("tape store: dir cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "tape.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureTapeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &TapeStore{db: db}, nil
}

func ensureTapeSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			price INTEGER NOT NULL,
			qty INTEGER NOT NULL,
			buy_trader TEXT NOT NULL,
			sell_trader TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run_tick ON trades(run_id, tick)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// AppendTrades writes a batch in one transaction.
func (s *TapeStore) AppendTrades(records []TradeRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO trades (run_id, tick, price, qty, buy_trader, sell_trader)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, r := range records {
		if _, err := stmt.Exec(r.RunID, r.Tick, r.Price, r.Qty, r.BuyTraderID, r.SellTraderID); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Trades returns a run's tape in insertion order.
func (s *TapeStore) Trades(runID string) ([]TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT run_id, tick, price, qty, buy_trader, sell_trader
		FROM trades WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TradeRecord
	for rows.Next() {
		var r TradeRecord
		if err := rows.Scan(&r.RunID, &r.Tick, &r.Price, &r.Qty, &r.BuyTraderID, &r.SellTraderID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *TapeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
