package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/worktrack/internal/activity"
	"github.com/blackwell-systems/worktrack/internal/aggregate"
	"github.com/blackwell-systems/worktrack/internal/idle"
	"github.com/blackwell-systems/worktrack/internal/source"
)

func newSampler(start time.Time, src source.ActivitySource) (*Sampler, *idle.Detector) {
	det := idle.NewDetector(idle.DefaultThreshold)
	det.Reset(start)
	return NewSampler(start, det, src, nil, aggregate.New(start, time.Hour, time.UTC), 3), det
}

func app(name string) source.ActivitySource {
	return source.Static(activity.Observation{Kind: activity.KindApplication, Name: name})
}

func TestSampler_MeasuresElapsedTime(t *testing.T) {
	s, _ := newSampler(nineAM, app("iTerm2"))

	// A delayed tick is accounted in full.
	res := s.Tick(context.Background(), nineAM.Add(25*time.Second))
	assert.Equal(t, TickActive, res.State)
	assert.Equal(t, 25*time.Second, res.Elapsed)

	res = s.Tick(context.Background(), nineAM.Add(35*time.Second))
	assert.Equal(t, 10*time.Second, res.Elapsed)

	snap := s.Snapshot()
	assert.Equal(t, 35*time.Second, snap.TotalActive)
}

func TestSampler_ClockGoingBackwardsAddsNothing(t *testing.T) {
	s, _ := newSampler(nineAM, app("iTerm2"))
	s.Tick(context.Background(), nineAM.Add(time.Minute))
	res := s.Tick(context.Background(), nineAM.Add(30*time.Second))
	assert.Zero(t, res.Elapsed)
	assert.Equal(t, time.Minute, s.Snapshot().TotalActive)
}

func TestSampler_SplitsAtBucketBoundary(t *testing.T) {
	start := time.Date(2026, time.March, 2, 9, 59, 50, 0, time.UTC)
	s, _ := newSampler(start, app("Slack"))

	res := s.Tick(context.Background(), start.Add(30*time.Second))
	require.Len(t, res.Summaries, 1)
	sum := res.Summaries[0]
	assert.InDelta(t, 10.0/60, sum.TotalMinutes, 1e-9, "only the pre-boundary slice lands in the closed bucket")

	top := s.Snapshot().TopActivities
	require.Len(t, top, 1)
	assert.InDelta(t, 20.0/60, top[0].Minutes, 1e-9)
}

func TestSampler_LongGapClosesEachNonEmptyBucket(t *testing.T) {
	s, det := newSampler(nineAM.Add(30*time.Minute), app("Slack"))
	det.Reset(nineAM.Add(3 * time.Hour)) // keep the gap active

	res := s.Tick(context.Background(), nineAM.Add(2*time.Hour+15*time.Minute))
	require.Len(t, res.Summaries, 2)
	assert.Equal(t, 9, res.Summaries[0].Hour())
	assert.Equal(t, 10, res.Summaries[1].Hour())
	assert.InDelta(t, 30, res.Summaries[0].TotalMinutes, 1e-9)
	assert.InDelta(t, 60, res.Summaries[1].TotalMinutes, 1e-9)
	assert.Equal(t, 105*time.Minute, s.Snapshot().TotalActive)
}

func TestSampler_IdleTickSkipsSource(t *testing.T) {
	calls := 0
	src := source.ActivityFunc(func(context.Context) (activity.Observation, error) {
		calls++
		return activity.Observation{Name: "Code"}, nil
	})
	s, _ := newSampler(nineAM, src)

	res := s.Tick(context.Background(), nineAM.Add(6*time.Minute))
	assert.Equal(t, TickIdle, res.State)
	assert.Zero(t, calls)
	assert.Equal(t, 6*time.Minute, s.Snapshot().TotalIdle)
	assert.Nil(t, s.Snapshot().Current)
}

func TestSampler_SourceError(t *testing.T) {
	boom := errors.New("xdotool: exit status 1")
	s, _ := newSampler(nineAM, source.ActivityFunc(func(context.Context) (activity.Observation, error) {
		return activity.Observation{}, boom
	}))
	res := s.Tick(context.Background(), nineAM.Add(10*time.Second))
	assert.Equal(t, TickUnavailable, res.State)
	assert.ErrorIs(t, res.SourceErr, boom)
	assert.Equal(t, 10*time.Second, s.Snapshot().TotalIdle)

	nilSource, _ := newSampler(nineAM, nil)
	res = nilSource.Tick(context.Background(), nineAM.Add(10*time.Second))
	assert.ErrorIs(t, res.SourceErr, source.ErrNoActiveWindow)
}

func TestSampler_RecentRingKeepsNewest(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e"}
	i := 0
	s, _ := newSampler(nineAM, source.ActivityFunc(func(context.Context) (activity.Observation, error) {
		obs := activity.Observation{Kind: activity.KindWebsite, Name: names[i]}
		i++
		return obs, nil
	}))
	for n := 1; n <= len(names); n++ {
		s.Tick(context.Background(), nineAM.Add(time.Duration(n)*10*time.Second))
	}

	recent := s.Snapshot().Recent
	require.Len(t, recent, 3)
	assert.Equal(t, "c", recent[0].Name)
	assert.Equal(t, "e", recent[2].Name)
}

func TestSampler_LiveScoreUsesDominantCategory(t *testing.T) {
	s, det := newSampler(nineAM, app("Netflix"))
	s.Tick(context.Background(), nineAM.Add(30*time.Minute))
	det.Reset(nineAM) // next tick is idle
	s.Tick(context.Background(), nineAM.Add(60*time.Minute))

	snap := s.Snapshot()
	// 30/60 active, entertainment dominant: 50 * 0.5
	assert.Equal(t, 25, snap.ProductivityScore)
	assert.Equal(t, activity.CategoryEntertainment, snap.Current.Category)
	assert.False(t, snap.Current.Productive)
}

func TestSampler_FinishIsTerminal(t *testing.T) {
	s, _ := newSampler(nineAM, app("Code"))
	s.Tick(context.Background(), nineAM.Add(time.Minute))

	sum, closed, ok := s.Finish(nineAM.Add(90 * time.Second))
	require.True(t, ok)
	assert.Empty(t, closed)
	assert.InDelta(t, 1.5, sum.TotalMinutes, 1e-9, "time since the last tick keeps the last state")

	snap := s.Snapshot()
	assert.Equal(t, nineAM.Add(90*time.Second), snap.EndTime)

	res := s.Tick(context.Background(), nineAM.Add(5*time.Minute))
	assert.Zero(t, res.Elapsed)
	_, _, ok = s.Finish(nineAM.Add(10 * time.Minute))
	assert.False(t, ok)
	assert.Equal(t, 90*time.Second, s.Snapshot().TotalActive)
}

func TestSampler_FinishAfterLongSilenceIsIdle(t *testing.T) {
	s, det := newSampler(nineAM, app("Code"))
	s.Tick(context.Background(), nineAM.Add(10*time.Second))

	// Timers stalled; the stop arrives 40 minutes later with no input.
	stop := nineAM.Add(40 * time.Minute)
	require.True(t, det.IsIdle(stop))
	sum, _, ok := s.Finish(stop)
	require.True(t, ok)

	snap := s.Snapshot()
	assert.Equal(t, 10*time.Second, snap.TotalActive)
	assert.GreaterOrEqual(t, snap.TotalIdle, 35*time.Minute)
	assert.Less(t, sum.ProductivityScore, 100)
	assert.Less(t, snap.ProductivityScore, 100)
}
