package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	cyclePrefix   = "cycle:"
	cycleIDPrefix = "cycleid:"
	matchPrefix   = "match:"
)

// Log is a durable, append-only record of cycle reports backed by LevelDB.
// Cycle keys sort chronologically. A cycle ID index points at each report's
// key, and each settled match is indexed by demand ID so the latest
// assignment of a demand can be looked up directly.
type Log struct {
	db     *leveldb.DB
	logger *slog.Logger

	closeOnce sync.Once
}

// Open opens or creates the log at path
func Open(path string, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &Log{db: db, logger: logger.With("component", "audit_log")}, nil
}

func cycleKey(r *domain.CycleReport) []byte {
	// Zero-padded nanoseconds keep lexical order equal to time order
	return []byte(fmt.Sprintf("%s%020d:%s", cyclePrefix, r.StartedAt.UnixNano(), r.CycleID))
}

func cycleIDKey(cycleID string) []byte {
	return []byte(cycleIDPrefix + cycleID)
}

func matchKey(demandID string) []byte {
	return []byte(matchPrefix + demandID)
}

// Append writes a report and its match index atomically
func (l *Log) Append(ctx context.Context, report *domain.CycleReport) error {
	if report == nil || report.CycleID == "" {
		return domain.ErrInvalidInput
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal cycle report: %w", err)
	}

	key := cycleKey(report)
	batch := new(leveldb.Batch)
	batch.Put(key, data)
	batch.Put(cycleIDKey(report.CycleID), key)
	for _, m := range report.Matches {
		if m.Error != "" {
			continue
		}
		entry, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal match: %w", err)
		}
		batch.Put(matchKey(m.DemandID), entry)
	}

	if err := l.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to write cycle report: %w", err)
	}
	return nil
}

// Publish satisfies the scheduler's report sink; failures are logged
func (l *Log) Publish(ctx context.Context, report *domain.CycleReport) {
	if err := l.Append(ctx, report); err != nil {
		l.logger.Error("Failed to append cycle report", "cycle_id", report.CycleID, "error", err)
	}
}

// Recent returns up to limit reports, newest first
func (l *Log) Recent(ctx context.Context, limit int) ([]*domain.CycleReport, error) {
	if limit <= 0 {
		return []*domain.CycleReport{}, nil
	}

	iter := l.db.NewIterator(util.BytesPrefix([]byte(cyclePrefix)), nil)
	defer iter.Release()

	reports := make([]*domain.CycleReport, 0, limit)
	for ok := iter.Last(); ok && len(reports) < limit; ok = iter.Prev() {
		var report domain.CycleReport
		if err := json.Unmarshal(iter.Value(), &report); err != nil {
			l.logger.Warn("Skipping corrupt cycle report", "key", string(iter.Key()), "error", err)
			continue
		}
		reports = append(reports, &report)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterator error: %w", err)
	}
	return reports, nil
}

// Get returns the report for a cycle ID through the cycle ID index
func (l *Log) Get(ctx context.Context, cycleID string) (*domain.CycleReport, error) {
	if cycleID == "" {
		return nil, domain.ErrInvalidInput
	}

	key, err := l.db.Get(cycleIDKey(cycleID), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read cycle index: %w", err)
	}

	data, err := l.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read cycle report: %w", err)
	}

	var report domain.CycleReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cycle report: %w", err)
	}
	return &report, nil
}

// MatchFor returns the latest recorded match of a demand
func (l *Log) MatchFor(ctx context.Context, demandID string) (*domain.SettledMatch, error) {
	data, err := l.db.Get(matchKey(demandID), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	var m domain.SettledMatch
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match: %w", err)
	}
	return &m, nil
}

// Close closes the underlying database
func (l *Log) Close() error {
	var err error
	l.closeOnce.Do(func() { err = l.db.Close() })
	return err
}
