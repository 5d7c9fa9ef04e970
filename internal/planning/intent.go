package planning

import (
	"regexp"
	"strconv"
	"strings"
)

// Intent is a data lookup a chat turn asks for.
type Intent string

const (
	IntentFlights     Intent = "flights"
	IntentHotels      Intent = "hotels"
	IntentRestaurants Intent = "restaurants"
	IntentWeather     Intent = "weather"
)

// IntentDetector decides what a chat turn asks for.
type IntentDetector interface {
	// DataIntents returns the lookups requested by the user text or
	// offered in the previous assistant reply, in flights, hotels,
	// restaurants, weather order.
	DataIntents(userText, priorReply string) []Intent
	// WantsItinerary reports whether the exchange asks for an itinerary.
	WantsItinerary(userText, reply string) bool
}

// KeywordDetector matches fixed keyword sets.
type KeywordDetector struct {
	kw Keywords
}

// NewKeywordDetector returns a detector over kw.
func NewKeywordDetector(kw Keywords) *KeywordDetector {
	return &KeywordDetector{kw: kw}
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(text, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

func (d *KeywordDetector) DataIntents(userText, priorReply string) []Intent {
	user, reply := strings.ToLower(userText), strings.ToLower(priorReply)
	var out []Intent
	for _, c := range []struct {
		intent     Intent
		words      []string
		replyWords []string
	}{
		{IntentFlights, d.kw.Flights, d.kw.Reply.Flights},
		{IntentHotels, d.kw.Hotels, d.kw.Reply.Hotels},
		{IntentRestaurants, d.kw.Restaurants, d.kw.Reply.Restaurants},
		{IntentWeather, d.kw.Weather, d.kw.Reply.Weather},
	} {
		if containsAny(user, c.words) || containsAny(reply, c.replyWords) {
			out = append(out, c.intent)
		}
	}
	return out
}

func (d *KeywordDetector) WantsItinerary(userText, reply string) bool {
	if containsAny(strings.ToLower(userText+" "+reply), d.kw.ItineraryTriggers) {
		return true
	}
	user := strings.ToLower(userText)
	return strings.Contains(user, "plan") && strings.Contains(user, "trip")
}

var durationHintRe = regexp.MustCompile(`(?i)\b(\d{1,3})[- ]?days?\b`)

// DurationHint extracts a trip length such as "3-day" or "5 days" from
// text. It returns 0 when there is none.
func DurationHint(text string) int {
	m := durationHintRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
