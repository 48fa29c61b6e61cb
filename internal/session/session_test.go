package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ichi-a/geo-shock/internal/classify"
)

var t0 = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

func rec(fp string, at time.Duration, path string) classify.Record {
	return classify.Record{ID: uuid.New(), Fingerprint: fp, Timestamp: t0.Add(at), Path: path}
}

func TestBuildSplitsOnGapAboveThreshold(t *testing.T) {
	b := Builder{Gap: 30 * time.Minute}
	sessions, skipped := b.Build([]classify.Record{
		rec("a", 45*time.Minute, "/c"),
		rec("a", 0, "/a"),
		rec("a", 50*time.Minute, "/d"),
		rec("a", 10*time.Minute, "/b"),
	})

	require.Len(t, sessions, 2)
	assert.Zero(t, skipped)
	assert.Equal(t, []string{"/c", "/d"}, sessions[0].Paths)
	assert.Equal(t, []time.Time{t0.Add(45 * time.Minute), t0.Add(50 * time.Minute)}, sessions[0].Timestamps)
	assert.Equal(t, []string{"/a", "/b"}, sessions[1].Paths)
	assert.Equal(t, 10, sessions[1].DurationMinutes)
}

func TestBuildGapEqualToThresholdStaysTogether(t *testing.T) {
	b := Builder{Gap: 30 * time.Minute}
	sessions, _ := b.Build([]classify.Record{
		rec("a", 0, "/"),
		rec("a", 30*time.Minute, "/articles"),
	})
	require.Len(t, sessions, 1)
	assert.Equal(t, 30, sessions[0].DurationMinutes)
}

func TestBuildOrdersByMostRecentActivity(t *testing.T) {
	b := Builder{Gap: 30 * time.Minute}
	sessions, _ := b.Build([]classify.Record{
		rec("early", 0, "/"),
		rec("late", 2*time.Hour, "/"),
		rec("middle", time.Hour, "/"),
	})
	require.Len(t, sessions, 3)
	assert.Equal(t, "late", sessions[0].Fingerprint)
	assert.Equal(t, "middle", sessions[1].Fingerprint)
	assert.Equal(t, "early", sessions[2].Fingerprint)
}

func TestBuildAggregatesFlags(t *testing.T) {
	first := rec("a", 0, "/")
	first.Label = "GPTBot"
	first.OriginID = "8075"
	first.UserAgent = "GPTBot/1.2"
	trap := rec("a", time.Minute, "/hidden-trap/a1")
	trap.TrapHit = true
	probe := rec("a", 90*time.Second, "/.env")
	probe.Malicious = true
	probe.Label = "ConfigProbe"

	sessions, _ := Builder{Gap: 30 * time.Minute}.Build([]classify.Record{probe, trap, first})
	require.Len(t, sessions, 1)
	s := sessions[0]
	assert.Equal(t, "GPTBot", s.Label)
	assert.Equal(t, "8075", s.OriginID)
	assert.Equal(t, "GPTBot/1.2", s.UserAgent)
	assert.True(t, s.Malicious)
	assert.Equal(t, 1, s.TrapHits)
	assert.Equal(t, 2, s.DurationMinutes)
}

func TestBuildSkipsUnusableRecords(t *testing.T) {
	bad := rec("a", 0, "/")
	bad.Timestamp = time.Time{}
	anon := rec("", 0, "/")

	sessions, skipped := Builder{Gap: 30 * time.Minute}.Build([]classify.Record{bad, anon, rec("b", 0, "/")})
	assert.Len(t, sessions, 1)
	assert.Equal(t, 2, skipped)
}

func TestBuildEveryRecordInExactlyOneSession(t *testing.T) {
	var records []classify.Record
	for i := 0; i < 20; i++ {
		records = append(records, rec("a", time.Duration(i*i)*time.Minute, "/"))
		records = append(records, rec("b", time.Duration(i*7)*time.Minute, "/"))
	}
	sessions, _ := Builder{Gap: 30 * time.Minute}.Build(records)

	total := 0
	for _, s := range sessions {
		total += len(s.Paths)
		for i := 1; i < len(s.Timestamps); i++ {
			assert.False(t, s.Timestamps[i].Before(s.Timestamps[i-1]))
			assert.LessOrEqual(t, s.Timestamps[i].Sub(s.Timestamps[i-1]), 30*time.Minute)
		}
	}
	assert.Equal(t, len(records), total)
}
