package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/blackwell-systems/worktrack/internal/activity"
	"github.com/blackwell-systems/worktrack/internal/classify"
	"github.com/blackwell-systems/worktrack/internal/score"
)

// ClassifyResult is the categorisation of a single name.
type ClassifyResult struct {
	Name       string            `json:"name"`
	Kind       activity.Kind     `json:"type"`
	Category   activity.Category `json:"category"`
	Productive bool              `json:"productive"`
	Confidence float64           `json:"confidence"`
	Multiplier float64           `json:"multiplier"`
}

// BucketHistoryResult holds journaled bucket summaries, newest first.
type BucketHistoryResult struct {
	Buckets []BucketEntry `json:"buckets"`
}

// BucketEntry is a compact view of one closed bucket.
type BucketEntry struct {
	Start             string  `json:"bucket_start"`
	End               string  `json:"bucket_end"`
	Score             int     `json:"productivity_score"`
	ActiveMinutes     float64 `json:"active_minutes"`
	ProductiveMinutes float64 `json:"productive_minutes"`
	IdleMinutes       float64 `json:"idle_minutes"`
	TopActivity       string  `json:"top_activity,omitempty"`
	Narrative         string  `json:"summary"`
}

// SessionsResult holds recent tracking sessions.
type SessionsResult struct {
	Sessions []SessionEntry `json:"sessions"`
}

// SessionEntry summarises one tracking session.
type SessionEntry struct {
	ID            string  `json:"session_id"`
	UserID        string  `json:"user_id"`
	TeamID        string  `json:"team_id,omitempty"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time,omitempty"`
	Running       bool    `json:"running"`
	ActiveMinutes float64 `json:"active_minutes"`
	IdleMinutes   float64 `json:"idle_minutes"`
	Score         int     `json:"productivity_score"`
}

// TodayResult aggregates the buckets recorded since local midnight.
type TodayResult struct {
	Date              string  `json:"date"`
	Buckets           int     `json:"buckets"`
	AverageScore      int     `json:"average_score"`
	Band              string  `json:"band"`
	ActiveMinutes     float64 `json:"active_minutes"`
	ProductiveMinutes float64 `json:"productive_minutes"`
	IdleMinutes       float64 `json:"idle_minutes"`
	TopActivities     []Named `json:"top_activities"`
}

// Named is an activity name with its accumulated minutes.
type Named struct {
	Name    string  `json:"name"`
	Minutes float64 `json:"minutes"`
}

var (
	noArgsSchema   = json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`)
	classifySchema = json.RawMessage(`{"type":"object","properties":{"name":{"type":"string","description":"Application name, host or URL"},"type":{"type":"string","enum":["application","website"],"description":"Observation kind (default application)"}},"required":["name"],"additionalProperties":false}`)
	historySchema  = json.RawMessage(`{"type":"object","properties":{"hours":{"type":"integer","description":"How far back to look (default 24)"},"limit":{"type":"integer","description":"Maximum buckets to return (default 12)"}},"additionalProperties":false}`)
	recentNSchema  = json.RawMessage(`{"type":"object","properties":{"n":{"type":"integer","description":"Number of sessions to return (default 5)"}},"additionalProperties":false}`)
)

// maxTopActivities bounds the activity list in get_today_score.
const maxTopActivities = 5

func addTools(s *Server) {
	s.registerTool(toolDef{
		Name:        "classify_activity",
		Description: "Category, productivity flag and scoring multiplier for an application or website name.",
		InputSchema: classifySchema,
		Handler:     s.handleClassify,
	})
	s.registerTool(toolDef{
		Name:        "get_bucket_history",
		Description: "Recent closed time buckets with productivity score and top activity.",
		InputSchema: historySchema,
		Handler:     s.handleBucketHistory,
	})
	s.registerTool(toolDef{
		Name:        "get_recent_sessions",
		Description: "Last N tracking sessions with active time, idle time and final score.",
		InputSchema: recentNSchema,
		Handler:     s.handleRecentSessions,
	})
	s.registerTool(toolDef{
		Name:        "get_today_score",
		Description: "Today's average productivity score, time totals and most used activities.",
		InputSchema: noArgsSchema,
		Handler:     s.handleToday,
	})
}

func (s *Server) handleClassify(_ context.Context, args json.RawMessage) (any, error) {
	var params struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if params.Name == "" {
		return nil, errors.New("name is required")
	}

	obs := activity.Observation{Kind: activity.KindApplication, Name: params.Name}
	switch activity.Kind(params.Type) {
	case "", activity.KindApplication:
	case activity.KindWebsite:
		obs.Kind = activity.KindWebsite
		obs.URL = params.Name
	default:
		return nil, fmt.Errorf("unknown type %q", params.Type)
	}

	c := classify.Classify(obs)
	return ClassifyResult{
		Name:       params.Name,
		Kind:       obs.Kind,
		Category:   c.Category,
		Productive: c.Productive,
		Confidence: c.Confidence,
		Multiplier: score.Multiplier(c.Category),
	}, nil
}

func (s *Server) handleBucketHistory(ctx context.Context, args json.RawMessage) (any, error) {
	params := struct {
		Hours int `json:"hours"`
		Limit int `json:"limit"`
	}{Hours: 24, Limit: 12}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
	}
	if params.Hours <= 0 {
		params.Hours = 24
	}
	if params.Limit <= 0 {
		params.Limit = 12
	}

	since := s.now().Add(-time.Duration(params.Hours) * time.Hour)
	rows, err := s.journal.ListSummaries(ctx, since, params.Limit)
	if err != nil {
		return nil, err
	}

	result := BucketHistoryResult{Buckets: make([]BucketEntry, 0, len(rows))}
	for _, r := range rows {
		sum := r.Summary
		entry := BucketEntry{
			Start:             sum.BucketStart.Format(time.RFC3339),
			End:               sum.BucketEnd.Format(time.RFC3339),
			Score:             sum.ProductivityScore,
			ActiveMinutes:     sum.ActiveMinutes,
			ProductiveMinutes: sum.ProductiveMinutes,
			IdleMinutes:       sum.IdleMinutes,
			Narrative:         sum.Narrative,
		}
		if len(sum.TopActivities) > 0 {
			entry.TopActivity = sum.TopActivities[0].Name
		}
		result.Buckets = append(result.Buckets, entry)
	}
	return result, nil
}

func (s *Server) handleRecentSessions(ctx context.Context, args json.RawMessage) (any, error) {
	n := 5
	if len(args) > 0 {
		var params struct {
			N *int `json:"n"`
		}
		if err := json.Unmarshal(args, &params); err == nil && params.N != nil && *params.N > 0 {
			n = *params.N
		}
	}

	rows, err := s.journal.ListSessions(ctx, n)
	if err != nil {
		return nil, err
	}

	result := SessionsResult{Sessions: make([]SessionEntry, 0, len(rows))}
	for _, r := range rows {
		entry := SessionEntry{
			ID:            r.ID,
			UserID:        r.UserID,
			TeamID:        r.TeamID,
			StartTime:     r.StartedAt.Format(time.RFC3339),
			Running:       r.EndedAt.IsZero(),
			ActiveMinutes: r.Active.Minutes(),
			IdleMinutes:   r.Idle.Minutes(),
			Score:         r.Score,
		}
		if !r.EndedAt.IsZero() {
			entry.EndTime = r.EndedAt.Format(time.RFC3339)
		}
		result.Sessions = append(result.Sessions, entry)
	}
	return result, nil
}

func (s *Server) handleToday(ctx context.Context, _ json.RawMessage) (any, error) {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	rows, err := s.journal.ListSummaries(ctx, midnight, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("no buckets recorded today")
	}

	result := TodayResult{Date: midnight.Format("2006-01-02"), Buckets: len(rows)}
	minutes := make(map[string]float64)
	total := 0
	for _, r := range rows {
		sum := r.Summary
		total += sum.ProductivityScore
		result.ActiveMinutes += sum.ActiveMinutes
		result.ProductiveMinutes += sum.ProductiveMinutes
		result.IdleMinutes += sum.IdleMinutes
		for _, app := range sum.TopActivities {
			minutes[app.Name] += app.Minutes
		}
	}
	result.AverageScore = total / len(rows)
	result.Band = string(score.BandFor(result.AverageScore))

	for name, m := range minutes {
		result.TopActivities = append(result.TopActivities, Named{Name: name, Minutes: m})
	}
	sort.Slice(result.TopActivities, func(i, j int) bool {
		a, b := result.TopActivities[i], result.TopActivities[j]
		if a.Minutes != b.Minutes {
			return a.Minutes > b.Minutes
		}
		return a.Name < b.Name
	})
	if len(result.TopActivities) > maxTopActivities {
		result.TopActivities = result.TopActivities[:maxTopActivities]
	}
	return result, nil
}
