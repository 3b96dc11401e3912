// Package journal records mirrored terminal traffic in SQLite.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leonletto/tellersim/internal/dispatch"
)

const (
	defaultBuffer = 1024
	maxBatch      = 128
)

// Record is one journaled frame.
type Record struct {
	ID        int64           `json:"id"`
	Direction string          `json:"direction"`
	ConnID    string          `json:"conn_id,omitempty"`
	Method    string          `json:"method,omitempty"`
	Message   json.RawMessage `json:"message"`
	At        time.Time       `json:"at"`
}

// Journal appends mirrored entries from a background goroutine. Mirror
// never blocks; entries arriving while the buffer is full are dropped and
// counted.
type Journal struct {
	db      *DB
	entries chan dispatch.Entry
	dropped atomic.Int64
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// Open opens (or creates) the journal at path and starts the writer.
func Open(ctx context.Context, path string, buffer int, logger *slog.Logger) (*Journal, error) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	db, err := OpenDB(ctx, path)
	if err != nil {
		return nil, err
	}

	j := &Journal{
		db:      db,
		entries: make(chan dispatch.Entry, buffer),
		logger:  logger.With("component", "journal"),
		done:    make(chan struct{}),
	}
	go j.run()
	return j, nil
}

// OpenReadOnly opens an existing journal for queries without a writer.
func OpenReadOnly(ctx context.Context, path string) (*Journal, error) {
	db, err := OpenDB(ctx, path)
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	close(done)
	return &Journal{db: db, done: done, logger: slog.Default()}, nil
}

// Mirror implements dispatch.Mirror. Entries arriving after Close are
// discarded.
func (j *Journal) Mirror(e dispatch.Entry) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed || j.entries == nil {
		return
	}
	select {
	case j.entries <- e:
	default:
		j.dropped.Add(1)
	}
}

// Dropped returns how many entries were discarded because the buffer was
// full.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

func (j *Journal) run() {
	defer close(j.done)

	batch := make([]dispatch.Entry, 0, maxBatch)
	for e := range j.entries {
		batch = append(batch[:0], e)
	fill:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-j.entries:
				if !ok {
					break fill
				}
				batch = append(batch, next)
			default:
				break fill
			}
		}
		if err := j.write(context.Background(), batch); err != nil {
			j.logger.Error("write journal batch", "entries", len(batch), "error", err)
		}
	}
}

func (j *Journal) write(ctx context.Context, batch []dispatch.Entry) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (direction, conn_id, method, message, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range batch {
		if _, err := stmt.ExecContext(ctx, string(e.Direction), e.ConnID, methodOf(e.Message),
			string(e.Message), e.At.UnixMilli()); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit records, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, direction, conn_id, method, message, created_at FROM messages ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var (
			r       Record
			message string
			at      int64
		)
		if err := rows.Scan(&r.ID, &r.Direction, &r.ConnID, &r.Method, &message, &at); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		r.Message = json.RawMessage(message)
		r.At = time.UnixMilli(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of stored records.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// Close flushes buffered entries and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	first := !j.closed
	j.closed = true
	if first && j.entries != nil {
		close(j.entries)
	}
	j.mu.Unlock()

	<-j.done
	if !first {
		return nil
	}
	if n := j.Dropped(); n > 0 {
		j.logger.Warn("journal dropped entries", "dropped", n)
	}
	return j.db.Close()
}

// methodOf extracts the method name of a request or notification frame.
func methodOf(raw json.RawMessage) string {
	var head struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return ""
	}
	return head.Method
}
