package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/worktrack/internal/activity"
)

func TestClassify_Table(t *testing.T) {
	tests := []struct {
		name       string
		obs        activity.Observation
		category   activity.Category
		productive bool
		confidence float64
	}{
		{"github domain", activity.Observation{Kind: activity.KindWebsite, Name: "github.com"}, activity.CategoryProductive, true, ConfidenceListed},
		{"editor", activity.Observation{Kind: activity.KindApplication, Name: "Visual Studio Code"}, activity.CategoryProductive, true, ConfidenceListed},
		{"terminal padded", activity.Observation{Name: "  iTerm2  "}, activity.CategoryProductive, true, ConfidenceListed},
		{"youtube", activity.Observation{Kind: activity.KindWebsite, Name: "youtube.com"}, activity.CategorySocial, false, ConfidenceListed},
		{"reddit", activity.Observation{Kind: activity.KindWebsite, Name: "www.reddit.com"}, activity.CategorySocial, false, ConfidenceListed},
		{"netflix", activity.Observation{Kind: activity.KindWebsite, Name: "netflix.com"}, activity.CategoryEntertainment, false, ConfidenceListed},
		{"steam", activity.Observation{Kind: activity.KindApplication, Name: "Steam"}, activity.CategoryEntertainment, false, ConfidenceListed},
		{"finder", activity.Observation{Kind: activity.KindApplication, Name: "Finder"}, activity.CategoryNeutral, true, ConfidenceNeutral},
		{"calculator", activity.Observation{Kind: activity.KindApplication, Name: "Calculator"}, activity.CategoryNeutral, true, ConfidenceNeutral},
		{"browser heuristic", activity.Observation{Kind: activity.KindApplication, Name: "Google Chrome"}, activity.CategoryProductive, true, ConfidenceHeuristic},
		{"web heuristic", activity.Observation{Kind: activity.KindApplication, Name: "WebKit Inspector"}, activity.CategoryProductive, true, ConfidenceHeuristic},
		{"unmatched", activity.Observation{Kind: activity.KindWebsite, Name: "randomsite.xyz"}, activity.CategoryOther, true, ConfidenceUnknown},
		{"empty name", activity.Observation{Kind: activity.KindUnknown}, activity.CategoryOther, true, ConfidenceUnknown},
		{"background tab", activity.Observation{Kind: activity.KindBackground, Name: "Background Tab"}, activity.CategoryNeutral, true, ConfidenceNeutral},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.obs)
			assert.Equal(t, tc.category, got.Category)
			assert.Equal(t, tc.productive, got.Productive)
			assert.InDelta(t, tc.confidence, got.Confidence, 1e-9)
		})
	}
}

func TestClassify_ProductiveWinsOverUnproductive(t *testing.T) {
	got := Classify(activity.Observation{Name: "YouTube - Visual Studio Code tutorial"})
	assert.Equal(t, activity.CategoryProductive, got.Category)
	assert.True(t, got.Productive)
}

func TestClassify_UnproductiveWinsOverNeutral(t *testing.T) {
	// "netflix" is unproductive, "desktop" is neutral.
	got := Classify(activity.Observation{Name: "Netflix Desktop"})
	assert.Equal(t, activity.CategoryEntertainment, got.Category)
}

func TestClassify_Deterministic(t *testing.T) {
	obs := activity.Observation{Kind: activity.KindWebsite, Name: "twitch.tv", URL: "https://twitch.tv/x"}
	first := Classify(obs)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, Classify(obs))
	}
}

func TestClassify_FallsBackToURL(t *testing.T) {
	got := Classify(activity.Observation{Kind: activity.KindWebsite, URL: "https://docs.google.com/document/d/1"})
	assert.Equal(t, activity.CategoryProductive, got.Category)
}

func TestNew_CustomTable(t *testing.T) {
	c := New([]Tier{
		{Name: "custom", Confidence: 0.8, Patterns: []Pattern{{Match: "ACME CRM", Category: activity.CategoryProductive}}},
	}, nil)

	got := c.Classify(activity.Observation{Name: "acme crm - accounts"})
	assert.Equal(t, activity.CategoryProductive, got.Category)
	assert.InDelta(t, 0.8, got.Confidence, 1e-9)

	// No hints configured, so browsers fall through to other.
	got = c.Classify(activity.Observation{Name: "Firefox"})
	assert.Equal(t, activity.CategoryOther, got.Category)
}

func TestRules_CategoriesValid(t *testing.T) {
	for _, tier := range Rules {
		for _, p := range tier.Patterns {
			assert.Truef(t, p.Category.Valid(), "tier %s pattern %q has invalid category %q", tier.Name, p.Match, p.Category)
			assert.NotEmpty(t, p.Match)
		}
	}
}

func TestIsProductive(t *testing.T) {
	assert.True(t, IsProductive(activity.CategoryProductive))
	assert.True(t, IsProductive(activity.CategoryNeutral))
	assert.True(t, IsProductive(activity.CategoryOther))
	assert.False(t, IsProductive(activity.CategorySocial))
	assert.False(t, IsProductive(activity.CategoryEntertainment))
}

func TestClassify_AmbiguousKeywordsStayUnlisted(t *testing.T) {
	for _, name := range []string{"Epic Hyperspace", "OriginPro", "Audio Mixer", "Shopify Admin", "Medium Priority"} {
		t.Run(name, func(t *testing.T) {
			got := Classify(activity.Observation{Kind: activity.KindApplication, Name: name})
			assert.Equal(t, activity.CategoryOther, got.Category)
			assert.True(t, got.Productive)
		})
	}

	got := Classify(activity.Observation{Kind: activity.KindApplication, Name: "Epic Games Launcher"})
	assert.Equal(t, activity.CategoryEntertainment, got.Category)
	got = Classify(activity.Observation{Kind: activity.KindWebsite, Name: "medium.com"})
	assert.Equal(t, activity.CategorySocial, got.Category)
}
