package db

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ichi-a/geo-shock/internal/classify"
)

func TestBuildQuery(t *testing.T) {
	since := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	yes, no := true, false

	sql, args := buildQuery(since, Filter{})
	assert.Equal(t, `SELECT `+recordColumns+` FROM access_logs WHERE created_at >= $1`, sql)
	assert.Equal(t, []any{since}, args)

	sql, args = buildQuery(since, Filter{Malicious: &yes, TrapHit: &no, Limit: 50})
	assert.Contains(t, sql, `AND is_malicious = $2 AND is_honeypot = $3 ORDER BY created_at DESC LIMIT $4`)
	assert.Equal(t, []any{since, true, false, 50}, args)

	sql, args = buildQuery(since, Filter{TrapHit: &yes})
	assert.Contains(t, sql, `AND is_honeypot = $2`)
	assert.NotContains(t, sql, `is_malicious =`)
	assert.Len(t, args, 2)
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	assert.Equal(t, "x", *nullable("x"))
	assert.Equal(t, "", deref(nil))
}

type fakeRows struct {
	rows    [][]any
	pos     int
	scanErr error
	closed  bool
}

func (f *fakeRows) Next() bool {
	f.pos++
	return f.pos <= len(f.rows)
}

func (f *fakeRows) Scan(dest ...any) error {
	if f.scanErr != nil {
		return f.scanErr
	}
	for i, v := range f.rows[f.pos-1] {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

func (f *fakeRows) Err() error { return nil }
func (f *fakeRows) Close()     { f.closed = true }

func row(level int16, headers string) []any {
	ua := "GPTBot/1.0"
	var raw []byte
	if headers != "" {
		raw = []byte(headers)
	}
	return []any{uuid.New(), time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), "abc123", &ua, "/",
		(*string)(nil), level, false, false, (*string)(nil), raw}
}

func TestCollectRecordsSkipsMalformedRows(t *testing.T) {
	rows := &fakeRows{rows: [][]any{
		row(1, `{"accept":"*/*"}`),
		row(2, `["not","a","map"]`),
		row(9, ""),
		row(0, "null"),
	}}

	out, skipped, err := collectRecords(rows)
	require.NoError(t, err)
	assert.True(t, rows.closed)
	assert.Equal(t, 2, skipped)
	require.Len(t, out, 2)
	assert.Equal(t, classify.IdentityMatch, out[0].Confidence)
	assert.Equal(t, map[string]string{"accept": "*/*"}, out[0].Headers)
	assert.Equal(t, "GPTBot/1.0", out[0].UserAgent)
	assert.Nil(t, out[1].Headers)
}

func TestCollectRecordsScanError(t *testing.T) {
	rows := &fakeRows{rows: [][]any{row(1, "")}, scanErr: errors.New("conn reset")}
	_, _, err := collectRecords(rows)
	assert.ErrorContains(t, err, "conn reset")
}
