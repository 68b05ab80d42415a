package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrRunNotFound is returned when a run id is unknown to the store.
var ErrRunNotFound = errors.New("run not found")

// Run statuses as stored.
const (
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

type runModel struct {
	ID           string `gorm:"primaryKey;column:id"`
	Name         string `gorm:"column:name;index"`
	Seed         int64  `gorm:"column:seed"`
	Status       string `gorm:"column:status"`
	StartedAt    time.Time
	FinishedAt   *time.Time
	Config       datatypes.JSON `gorm:"column:config"`
	Summary      datatypes.JSON `gorm:"column:summary"`
	Trades       int64          `gorm:"column:trades"`
	Efficiency   string         `gorm:"column:efficiency"`
	BestStrategy string         `gorm:"column:best_strategy"`
}

func (runModel) TableName() string { return "runs" }

type snapshotModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	RunID       string `gorm:"column:run_id;index"`
	Tick        int64  `gorm:"column:tick"`
	BestBid     int64  `gorm:"column:best_bid"`
	HasBid      bool   `gorm:"column:has_bid"`
	BestAsk     int64  `gorm:"column:best_ask"`
	HasAsk      bool   `gorm:"column:has_ask"`
	BidDepth    int64  `gorm:"column:bid_depth"`
	AskDepth    int64  `gorm:"column:ask_depth"`
	Fundamental int64  `gorm:"column:fundamental"`
}

func (snapshotModel) TableName() string { return "snapshots" }

// RunInfo is the store's view of one run.
type RunInfo struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Seed         int64           `json:"seed"`
	Status       string          `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	Config       json.RawMessage `json:"config,omitempty"`
	Summary      json.RawMessage `json:"summary,omitempty"`
	Trades       int64           `json:"trades"`
	Efficiency   string          `json:"efficiency"`
	BestStrategy string          `json:"best_strategy"`
}

// Store persists run metadata and book snapshots in SQLite via Gorm. The
// high-volume trade tape lives in its own store, see TapeStore.
type Store struct {
	db *gorm.DB
}

// NewStore opens (or creates) the run database under dir.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("recorder store: dir cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "runs.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&runModel{}, &snapshotModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(4)
	return &Store{db: db}, nil
}

// BeginRun registers a run before it starts, storing the resolved config.
func (s *Store) BeginRun(id, name string, seed int64, cfg any) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	row := runModel{
		ID:        id,
		Name:      name,
		Seed:      seed,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
		Config:    datatypes.JSON(raw),
	}
	return s.db.Create(&row).Error
}

// FinalizeRun marks a run done and attaches its summary.
func (s *Store) FinalizeRun(id string, trades int64, efficiency, bestStrategy string, summary any) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res := s.db.Model(&runModel{}).Where("id = ?", id).Updates(map[string]any{
		"status":        RunStatusDone,
		"finished_at":   &now,
		"summary":       datatypes.JSON(raw),
		"trades":        trades,
		"efficiency":    efficiency,
		"best_strategy": bestStrategy,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// FailRun marks a run failed.
func (s *Store) FailRun(id string) error {
	now := time.Now().UTC()
	return s.db.Model(&runModel{}).Where("id = ?", id).Updates(map[string]any{
		"status":      RunStatusFailed,
		"finished_at": &now,
	}).Error
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns() ([]RunInfo, error) {
	var rows []runModel
	if err := s.db.Order("started_at desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	infos := make([]RunInfo, len(rows))
	for i, r := range rows {
		infos[i] = r.info()
	}
	return infos, nil
}

// GetRun returns one run by id.
func (s *Store) GetRun(id string) (RunInfo, error) {
	var row runModel
	err := s.db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RunInfo{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return RunInfo{}, err
	}
	return row.info(), nil
}

// Snapshots returns a run's book snapshots in tick order.
func (s *Store) Snapshots(runID string) ([]SnapshotRecord, error) {
	var rows []snapshotModel
	if err := s.db.Where("run_id = ?", runID).Order("tick asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]SnapshotRecord, len(rows))
	for i, r := range rows {
		out[i] = SnapshotRecord{
			RunID:       r.RunID,
			Tick:        r.Tick,
			BestBid:     r.BestBid,
			HasBid:      r.HasBid,
			BestAsk:     r.BestAsk,
			HasAsk:      r.HasAsk,
			BidDepth:    r.BidDepth,
			AskDepth:    r.AskDepth,
			Fundamental: r.Fundamental,
		}
	}
	return out, nil
}

func (s *Store) saveSnapshot(r SnapshotRecord) error {
	return s.db.Create(&snapshotModel{
		RunID:       r.RunID,
		Tick:        r.Tick,
		BestBid:     r.BestBid,
		HasBid:      r.HasBid,
		BestAsk:     r.BestAsk,
		HasAsk:      r.HasAsk,
		BidDepth:    r.BidDepth,
		AskDepth:    r.AskDepth,
		Fundamental: r.Fundamental,
	}).Error
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r runModel) info() RunInfo {
	return RunInfo{
		ID:           r.ID,
		Name:         r.Name,
		Seed:         r.Seed,
		Status:       r.Status,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		Config:       json.RawMessage(r.Config),
		Summary:      json.RawMessage(r.Summary),
		Trades:       r.Trades,
		Efficiency:   r.Efficiency,
		BestStrategy: r.BestStrategy,
	}
}
