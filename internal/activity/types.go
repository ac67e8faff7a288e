// Package activity defines the data model shared by the sampler, the
// aggregator and the transmitter.
package activity

import (
	"math"
	"time"
)

// Session identifies the user being tracked. It is supplied once at start and
// never modified; the token is forwarded to the collector as-is.
type Session struct {
	UserID    string
	TeamID    string
	AuthToken string
}

// Kind describes where an observation came from.
type Kind string

const (
	KindApplication Kind = "application"
	KindWebsite     Kind = "website"
	KindBackground  Kind = "background"
	KindUnknown     Kind = "unknown"
)

// Observation is what the user is doing right now, as reported by an
// activity source on a single tick.
type Observation struct {
	Kind Kind   `json:"type"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Category is the productivity bucket an activity falls into.
type Category string

const (
	CategoryProductive    Category = "productive"
	CategorySocial        Category = "social"
	CategoryEntertainment Category = "entertainment"
	CategoryNeutral       Category = "neutral"
	CategoryOther         Category = "other"
)

// Categories lists every category in a stable order.
var Categories = []Category{
	CategoryProductive,
	CategorySocial,
	CategoryEntertainment,
	CategoryNeutral,
	CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryProductive, CategorySocial, CategoryEntertainment, CategoryNeutral, CategoryOther:
		return true
	}
	return false
}

// Classification is the deterministic result of classifying an observation.
type Classification struct {
	Category   Category `json:"category"`
	Productive bool     `json:"productive"`
	Confidence float64  `json:"confidence"`
}

// AppRecord accumulates time spent on one named activity within a bucket.
type AppRecord struct {
	Name       string   `json:"name"`
	Minutes    float64  `json:"time"`
	Productive bool     `json:"productive"`
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
}

// Summary is the immutable record emitted when a bucket closes.
type Summary struct {
	BucketStart         time.Time   `json:"bucket_start"`
	BucketEnd           time.Time   `json:"bucket_end"`
	TotalMinutes        float64     `json:"total_minutes"`
	ActiveMinutes       float64     `json:"active_minutes"`
	IdleMinutes         float64     `json:"idle_minutes"`
	ProductiveMinutes   float64     `json:"productive_minutes"`
	UnproductiveMinutes float64     `json:"unproductive_minutes"`
	ProductivityScore   int         `json:"productivity_score"`
	TopActivities       []AppRecord `json:"apps"`
	Narrative           string      `json:"summary"`
}

// Hour returns the hour of day (0-23) the bucket started in.
func (s Summary) Hour() int {
	return s.BucketStart.Hour()
}

// CurrentActivity pairs the most recent active observation with its classification.
type CurrentActivity struct {
	Observation
	Category   Category `json:"category"`
	Productive bool     `json:"productive"`
}

// Snapshot is a read-only copy of the tracker state handed to update callbacks.
type Snapshot struct {
	StartTime         time.Time
	EndTime           time.Time // zero until stopped
	TotalActive       time.Duration
	TotalIdle         time.Duration
	LastInput         time.Time
	IdleThreshold     time.Duration
	Idle              bool
	ProductivityScore int
	Current           *CurrentActivity
	Recent            []CurrentActivity
	TopActivities     []AppRecord
}

// ActiveHours returns active time in hours rounded to one decimal.
func (s Snapshot) ActiveHours() float64 {
	return roundTenth(s.TotalActive.Hours())
}

// IdleHours returns idle time in hours rounded to one decimal.
func (s Snapshot) IdleHours() float64 {
	return roundTenth(s.TotalIdle.Hours())
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
