package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ichi-a/geo-shock/internal/classify"
)

// Filter narrows a record query. Nil flags do not filter.
type Filter struct {
	Malicious *bool
	TrapHit   *bool
	Limit     int
}

const recordColumns = `id, created_at, ip_hash, ua, path, bot_type, verification_level, is_honeypot, is_malicious, asn, headers_json`

// Name identifies this sink in logs and metrics.
func (db *DB) Name() string { return "postgres" }

// Insert appends one record. Re-inserting the same id is a no-op.
func (db *DB) Insert(ctx context.Context, r classify.Record) error {
	var headers any
	if len(r.Headers) > 0 {
		headers = r.Headers
	}
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO access_logs (`+recordColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO NOTHING`,
		r.ID, r.Timestamp, r.Fingerprint, nullable(r.UserAgent), r.Path, nullable(r.Label),
		int16(r.Confidence), r.TrapHit, r.Malicious, nullable(r.OriginID), headers)
	if err != nil {
		return fmt.Errorf("insert access log: %w", err)
	}
	return nil
}

// Query returns records created at or after since, plus the number of stored
// rows left out because they could not be decoded. Order is unspecified.
func (db *DB) Query(ctx context.Context, since time.Time, f Filter) ([]classify.Record, int, error) {
	sql, args := buildQuery(since, f)
	rows, err := db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query access logs: %w", err)
	}
	return collectRecords(rows)
}

// Recent returns the newest limit records, newest first. Undecodable rows are
// logged and left out.
func (db *DB) Recent(ctx context.Context, limit int) ([]classify.Record, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+recordColumns+` FROM access_logs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent access logs: %w", err)
	}
	out, skipped, err := collectRecords(rows)
	if skipped > 0 {
		db.logger.Warn("db: skipped malformed access logs", "count", skipped)
	}
	return out, err
}

func buildQuery(since time.Time, f Filter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT ` + recordColumns + ` FROM access_logs WHERE created_at >= $1`)
	args := []any{since}
	if f.Malicious != nil {
		args = append(args, *f.Malicious)
		fmt.Fprintf(&b, ` AND is_malicious = $%d`, len(args))
	}
	if f.TrapHit != nil {
		args = append(args, *f.TrapHit)
		fmt.Fprintf(&b, ` AND is_honeypot = $%d`, len(args))
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, ` ORDER BY created_at DESC LIMIT $%d`, len(args))
	}
	return b.String(), args
}

var errMalformed = errors.New("malformed access log")

// rowSource is the part of pgx.Rows that collectRecords reads.
type rowSource interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

func collectRecords(rows rowSource) ([]classify.Record, int, error) {
	defer rows.Close()
	var (
		out     []classify.Record
		skipped int
	)
	for rows.Next() {
		r, err := scanRecord(rows)
		if errors.Is(err, errMalformed) {
			skipped++
			continue
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("scan access log: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, skipped, err
	}
	return out, skipped, nil
}

// scanRecord reads one row. headers_json and verification_level are decoded
// here rather than by the driver so a bad value drops only its own row.
func scanRecord(rows rowSource) (classify.Record, error) {
	var (
		r                 classify.Record
		id                uuid.UUID
		ua, label, origin *string
		level             int16
		headers           []byte
	)
	if err := rows.Scan(&id, &r.Timestamp, &r.Fingerprint, &ua, &r.Path, &label,
		&level, &r.TrapHit, &r.Malicious, &origin, &headers); err != nil {
		return r, err
	}
	r.Confidence = classify.Confidence(level)
	if !r.Confidence.Valid() {
		return r, fmt.Errorf("%w: verification_level %d", errMalformed, level)
	}
	if len(headers) > 0 && string(headers) != "null" {
		if err := json.Unmarshal(headers, &r.Headers); err != nil {
			return r, fmt.Errorf("%w: headers_json: %v", errMalformed, err)
		}
	}
	r.ID = id
	r.UserAgent = deref(ua)
	r.Label = deref(label)
	r.OriginID = deref(origin)
	return r, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
