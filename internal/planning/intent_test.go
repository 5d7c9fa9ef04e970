package planning

import (
	"reflect"
	"testing"
)

func TestDataIntents(t *testing.T) {
	d := NewKeywordDetector(DefaultKeywords())
	tests := []struct {
		name       string
		user       string
		priorReply string
		want       []Intent
	}{
		{"none", "Plan a 3-day trip to Rome", "", nil},
		{"flight", "Find me a FLIGHT please", "", []Intent{IntentFlights}},
		{"ordered", "what's the weather, and any good food or hotel?", "", []Intent{IntentHotels, IntentRestaurants, IntentWeather}},
		{"from prior reply", "yes please", "Shall I look up flights and hotels?", []Intent{IntentFlights, IntentHotels}},
		{"climate", "How is the climate in May?", "", []Intent{IntentWeather}},
		{"accommodation", "Where is good accommodation?", "", []Intent{IntentHotels}},
		{"reply uses narrow sets", "sounds good", "Focus on accommodation, dining or food?", nil},
		{"reply weather", "ok", "The weather should be mild.", []Intent{IntentWeather}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.DataIntents(tt.user, tt.priorReply)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DataIntents(%q, %q) = %v, want %v", tt.user, tt.priorReply, got, tt.want)
			}
		})
	}
}

func TestWantsItinerary(t *testing.T) {
	d := NewKeywordDetector(DefaultKeywords())
	tests := []struct {
		user, reply string
		want        bool
	}{
		{"Plan a 3-day trip to Rome", "", true},
		{"Can you plan my trip?", "", true},
		{"Show me a day by day breakdown", "", true},
		{"hello", "Would you like me to build an itinerary?", true},
		{"What should I pack?", "Light layers.", false},
		{"I want to plan something", "", false},
		{"The trip was great", "Glad to hear it.", false},
		{"hello", "Your trip sounds fun, let's plan it.", false},
	}
	for _, tt := range tests {
		if got := d.WantsItinerary(tt.user, tt.reply); got != tt.want {
			t.Errorf("WantsItinerary(%q, %q) = %v, want %v", tt.user, tt.reply, got, tt.want)
		}
	}
}

func TestDurationHint(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"Plan a 3-day trip to Rome", 3},
		{"we have 5 days", 5},
		{"10days in Japan", 10},
		{"a 1 day stopover", 1},
		{"Day 3 looks busy", 0},
		{"no length given", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := DurationHint(tt.text); got != tt.want {
			t.Errorf("DurationHint(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestCityCode(t *testing.T) {
	tests := map[string]string{
		"Rome":           "ROM",
		"paris, France":  "PAR",
		"New York":       "NEW",
		"  lisbon ":      "LIS",
		"St. Petersburg": "STP",
	}
	for in, want := range tests {
		if got := cityCode(in); got != want {
			t.Errorf("cityCode(%q) = %q, want %q", in, got, want)
		}
	}
}
