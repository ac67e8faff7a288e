package transmit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/worktrack/internal/activity"
)

// Kind selects the collector endpoint a payload is delivered to.
type Kind string

const (
	KindTrack   Kind = "track"
	KindSummary Kind = "summary"
)

// TimeUnit is the unit used for durations on the wire. It is fixed per
// deployment.
type TimeUnit string

const (
	UnitMillis  TimeUnit = "ms"
	UnitMinutes TimeUnit = "minutes"
)

// ParseTimeUnit validates a configured unit string.
func ParseTimeUnit(s string) (TimeUnit, error) {
	switch TimeUnit(s) {
	case UnitMillis, "":
		return UnitMillis, nil
	case UnitMinutes:
		return UnitMinutes, nil
	}
	return "", fmt.Errorf("unknown time unit %q (want ms or minutes)", s)
}

// Convert expresses d in the unit.
func (u TimeUnit) Convert(d time.Duration) float64 {
	if u == UnitMinutes {
		return d.Minutes()
	}
	return float64(d.Milliseconds())
}

// isoLayout matches JavaScript's Date.toISOString output.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

func isoTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// Payload is the JSON body posted to the collector. The bucket fields are
// present only on the hourly-summary variant.
type Payload struct {
	BatchID           string                     `json:"batch_id"`
	UserID            string                     `json:"user_id"`
	TeamID            string                     `json:"team_id"`
	StartTime         string                     `json:"start_time"`
	EndTime           *string                    `json:"end_time"`
	TimeUnit          TimeUnit                   `json:"time_unit"`
	TotalActiveTime   float64                    `json:"total_active_time"`
	TotalIdleTime     float64                    `json:"total_idle_time"`
	ProductivityScore int                        `json:"productivity_score"`
	CurrentActivity   *activity.CurrentActivity  `json:"current_activity"`
	Activities        []activity.CurrentActivity `json:"activities"`

	*BucketFields
}

// BucketFields carries a finalized Summary on the hourly variant.
type BucketFields struct {
	Hour                int                  `json:"hour"`
	BucketStart         string               `json:"bucket_start"`
	BucketEnd           string               `json:"bucket_end"`
	TotalMinutes        float64              `json:"total_minutes"`
	ProductiveMinutes   float64              `json:"productive_minutes"`
	UnproductiveMinutes float64              `json:"unproductive_minutes"`
	BucketScore         int                  `json:"bucket_productivity_score"`
	Apps                []activity.AppRecord `json:"apps"`
	Summary             string               `json:"summary"`
}

// Kind reports which endpoint the payload belongs to.
func (p Payload) Kind() Kind {
	if p.BucketFields != nil {
		return KindSummary
	}
	return KindTrack
}

// MaxActivities is how many recent observations ride along on each payload.
const MaxActivities = 10

// NewPayload builds the wire payload from a tracker snapshot. A non-nil
// summary turns it into the hourly variant.
func NewPayload(sess activity.Session, snap activity.Snapshot, unit TimeUnit, summary *activity.Summary) Payload {
	p := Payload{
		BatchID:           uuid.NewString(),
		UserID:            sess.UserID,
		TeamID:            sess.TeamID,
		StartTime:         isoTime(snap.StartTime),
		TimeUnit:          unit,
		TotalActiveTime:   unit.Convert(snap.TotalActive),
		TotalIdleTime:     unit.Convert(snap.TotalIdle),
		ProductivityScore: snap.ProductivityScore,
		CurrentActivity:   snap.Current,
		Activities:        lastN(snap.Recent, MaxActivities),
	}
	if !snap.EndTime.IsZero() {
		end := isoTime(snap.EndTime)
		p.EndTime = &end
	}
	if summary != nil {
		apps := summary.TopActivities
		if apps == nil {
			apps = []activity.AppRecord{}
		}
		p.BucketFields = &BucketFields{
			Hour:                summary.Hour(),
			BucketStart:         isoTime(summary.BucketStart),
			BucketEnd:           isoTime(summary.BucketEnd),
			TotalMinutes:        summary.TotalMinutes,
			ProductiveMinutes:   summary.ProductiveMinutes,
			UnproductiveMinutes: summary.UnproductiveMinutes,
			BucketScore:         summary.ProductivityScore,
			Apps:                apps,
			Summary:             summary.Narrative,
		}
	}
	return p
}

func lastN(recent []activity.CurrentActivity, n int) []activity.CurrentActivity {
	if len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	out := make([]activity.CurrentActivity, len(recent))
	copy(out, recent)
	return out
}
