package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Export writes every record at or after since to w as JSON Lines, oldest
// first, and returns how many were written.
func (j *Journal) Export(ctx context.Context, w io.Writer, since time.Time) (int, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, direction, conn_id, method, message, created_at FROM messages WHERE created_at >= ? ORDER BY id ASC`,
		since.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	n := 0
	for rows.Next() {
		var (
			r       Record
			message string
			at      int64
		)
		if err := rows.Scan(&r.ID, &r.Direction, &r.ConnID, &r.Method, &message, &at); err != nil {
			return n, fmt.Errorf("scan message: %w", err)
		}
		r.Message = json.RawMessage(message)
		r.At = time.UnixMilli(at).UTC()
		if err := enc.Encode(r); err != nil {
			return n, fmt.Errorf("encode record %d: %w", r.ID, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	return n, bw.Flush()
}

// ExportFile writes the export to path through a temporary file that is
// renamed into place, so readers never see a partial file.
func (j *Journal) ExportFile(ctx context.Context, path string, since time.Time) (int, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := j.Export(ctx, tmp, since)
	if err != nil {
		_ = tmp.Close()
		return n, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return n, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, fmt.Errorf("rename temp file: %w", err)
	}
	return n, nil
}
