package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/worktrack/internal/activity"
)

var (
	productive = activity.Classification{Category: activity.CategoryProductive, Productive: true, Confidence: 0.9}
	social     = activity.Classification{Category: activity.CategorySocial, Productive: false, Confidence: 0.9}
	neutral    = activity.Classification{Category: activity.CategoryNeutral, Productive: true, Confidence: 0.5}
)

func at(h, m int) time.Time {
	return time.Date(2026, time.March, 2, h, m, 0, 0, time.UTC)
}

func TestBucketStart_AlignsToHour(t *testing.T) {
	a := New(at(9, 17), time.Hour, time.UTC)
	assert.Equal(t, at(9, 0), a.Start())
	assert.Equal(t, at(10, 0), a.NextBoundary())
	assert.Equal(t, at(13, 0), a.BucketStart(at(13, 59)))
}

func TestBucketStart_SubHourBuckets(t *testing.T) {
	a := New(at(9, 17), 15*time.Minute, time.UTC)
	assert.Equal(t, at(9, 15), a.Start())
	assert.Equal(t, at(9, 30), a.NextBoundary())
}

func TestNew_InvalidBucketFallsBack(t *testing.T) {
	a := New(at(9, 17), 7*time.Minute, time.UTC)
	assert.Equal(t, at(9, 0), a.Start())
	assert.False(t, ValidBucketSize(7*time.Minute))
	assert.False(t, ValidBucketSize(0))
	assert.True(t, ValidBucketSize(30*time.Minute))
}

func TestRecord_AccumulatesPerName(t *testing.T) {
	a := New(at(9, 0), time.Hour, time.UTC)
	a.Record("vscode", productive, 10*time.Minute)
	a.Record("vscode", productive, 5*time.Minute)
	a.Record("reddit.com", social, 3*time.Minute)
	a.RecordIdle(2 * time.Minute)

	live := a.Live(at(9, 20))
	assert.InDelta(t, 20, live.TotalMinutes, 1e-9)
	assert.InDelta(t, 18, live.ActiveMinutes, 1e-9)
	assert.InDelta(t, 15, live.ProductiveMinutes, 1e-9)
	assert.InDelta(t, 3, live.UnproductiveMinutes, 1e-9)

	top := a.Top(0)
	require.Len(t, top, 2)
	assert.Equal(t, "vscode", top[0].Name)
	assert.InDelta(t, 15, top[0].Minutes, 1e-9)
	assert.Equal(t, activity.CategorySocial, top[1].Category)
}

func TestRecord_IgnoresNonPositive(t *testing.T) {
	a := New(at(9, 0), time.Hour, time.UTC)
	a.Record("vscode", productive, 0)
	a.RecordIdle(-time.Minute)
	assert.True(t, a.Empty())
}

func TestRollover_EmitsAndResets(t *testing.T) {
	a := New(at(9, 0), time.Hour, time.UTC)
	a.Record("vscode", productive, 40*time.Minute)
	a.Record("youtube.com", social, 10*time.Minute)
	a.RecordIdle(10 * time.Minute)

	s, ok := a.Rollover(at(10, 0))
	require.True(t, ok)
	assert.Equal(t, at(9, 0), s.BucketStart)
	assert.Equal(t, at(10, 0), s.BucketEnd)
	assert.Equal(t, 9, s.Hour())
	assert.InDelta(t, 60, s.TotalMinutes, 1e-9)
	// dominant category is productive: 50/60 * 100 * 1.2 = 100
	assert.Equal(t, 100, s.ProductivityScore)
	require.Len(t, s.TopActivities, 2)
	assert.Equal(t, "vscode", s.TopActivities[0].Name)
	assert.Contains(t, s.Narrative, "Excellent")
	assert.Contains(t, s.Narrative, "Most productive: vscode (40 mins)")
	assert.Contains(t, s.Narrative, "Main distraction: youtube.com (10 mins)")

	// Counters reset for the next bucket.
	assert.True(t, a.Empty())
	assert.Equal(t, at(10, 0), a.Start())
	assert.Empty(t, a.Top(0))

	// Next bucket is independent of the previous one.
	a.Record("reddit.com", social, 30*time.Minute)
	a.RecordIdle(30 * time.Minute)
	s2, ok := a.Rollover(at(11, 0))
	require.True(t, ok)
	assert.InDelta(t, 60, s2.TotalMinutes, 1e-9)
	assert.InDelta(t, 0, s2.ProductiveMinutes, 1e-9)
	assert.Equal(t, 35, s2.ProductivityScore)
	require.Len(t, s2.TopActivities, 1)
	assert.NotContains(t, s2.Narrative, "Most productive")
}

func TestRollover_IdempotentForSameBoundary(t *testing.T) {
	a := New(at(9, 0), time.Hour, time.UTC)
	a.Record("vscode", productive, 30*time.Minute)

	_, ok := a.Rollover(at(10, 0))
	require.True(t, ok)

	_, ok = a.Rollover(at(10, 0))
	assert.False(t, ok)
	_, ok = a.Rollover(at(10, 30))
	assert.False(t, ok)
	assert.True(t, a.Empty())
}

func TestRollover_NoBoundaryNoEmit(t *testing.T) {
	a := New(at(9, 0), time.Hour, time.UTC)
	a.Record("vscode", productive, 30*time.Minute)

	_, ok := a.Rollover(at(9, 59))
	assert.False(t, ok)
	assert.False(t, a.Empty())
}

func TestRollover_EmptyBucketAdvancesWithoutEmitting(t *testing.T) {
	a := New(at(9, 0), time.Hour, time.UTC)
	_, ok := a.Rollover(at(10, 0))
	assert.False(t, ok)
	assert.Equal(t, at(10, 0), a.Start())
}

func TestFlush_PartialBucket(t *testing.T) {
	a := New(at(9, 0), time.Hour, time.UTC)
	a.Record("Finder", neutral, 5*time.Minute)

	s, ok := a.Flush(at(9, 5))
	require.True(t, ok)
	assert.Equal(t, at(9, 5), s.BucketEnd)
	assert.Equal(t, 100, s.ProductivityScore)

	_, ok = a.Flush(at(9, 5))
	assert.False(t, ok, "second flush has nothing to emit")
}

func TestNarrative_Bands(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{95, "Excellent productivity at 95%."},
		{65, "Good productivity at 65%."},
		{45, "Moderate productivity at 45%."},
		{10, "Low productivity at 10%."},
	}
	for _, tc := range tests {
		n := Narrative(activity.Summary{BucketStart: at(14, 0), ProductivityScore: tc.score})
		assert.Contains(t, n, "Hour 14:00 summary - ")
		assert.Contains(t, n, tc.want)
	}
}
