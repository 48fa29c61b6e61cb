package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ichi-a/geo-shock/internal/classify"
)

func TestSummarize(t *testing.T) {
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	at := since.Add(time.Hour)
	records := []classify.Record{
		{Timestamp: at, Label: "GPTBot", OriginID: "AS8075"},
		{Timestamp: at, Label: "GPTBot", OriginID: "8075"},
		{Timestamp: at, OriginID: "16509", TrapHit: true},
		{Timestamp: at, OriginID: "64512"},
		{Timestamp: at},
		{Timestamp: since.Add(-time.Minute), Label: "ClaudeBot"},
	}
	s := Summarize(records, since, classify.NewOriginTable(classify.DefaultRules().Origins))

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 2, s.TotalBots)
	assert.Equal(t, 1, s.HoneypotHits)
	assert.Equal(t, map[string]int{"GPTBot": 2, HumanLabel: 3}, s.BotCounts)

	if assert.Len(t, s.Origins, 3) {
		assert.Equal(t, "8075", s.Origins[0].ASN)
		assert.Equal(t, 2, s.Origins[0].Count)
		assert.Equal(t, "16509", s.Origins[1].ASN)
		assert.Equal(t, "cloud", s.Origins[1].Category)
		assert.Equal(t, OriginCount{ASN: "64512", Category: "other", Count: 1}, s.Origins[2])
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, time.Time{}, classify.NewOriginTable(nil))
	assert.NotNil(t, s.BotCounts)
	assert.NotNil(t, s.Origins)
	assert.Zero(t, s.Total)
}

func TestWindows(t *testing.T) {
	// Thursday
	now := time.Date(2026, 4, 9, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC), WeekStart(now))
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), MonthStart(now))

	sunday := time.Date(2026, 4, 5, 0, 0, 1, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC), WeekStart(sunday))

	// Week crossing a month boundary.
	assert.Equal(t, time.Date(2026, 3, 29, 0, 0, 0, 0, time.UTC), WeekStart(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)))
}

func TestCountLevels(t *testing.T) {
	l := CountLevels([]classify.Record{
		{Confidence: classify.Unclassified, TrapHit: true},
		{Confidence: classify.IdentityMatch, Label: "GPTBot"},
		{Confidence: classify.Verified},
		{Confidence: classify.Verified},
	})
	assert.Equal(t, 4, l.Total)
	assert.Equal(t, 3, l.ConfirmedBots)
	assert.Equal(t, 1, l.Unknown)
	assert.Equal(t, 0, l.ByLevel[classify.OriginCorroborated])
	assert.Equal(t, 2, l.ByLevel[classify.Verified])
	assert.Equal(t, 1, l.HoneypotHits)
	assert.Equal(t, map[string]int{"GPTBot": 1, HumanLabel: 3}, l.BotCounts)
}
