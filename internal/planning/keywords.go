package planning

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Keywords drives intent detection. Matching is a case-insensitive
// substring test.
type Keywords struct {
	Flights     []string `yaml:"flights"`
	Hotels      []string `yaml:"hotels"`
	Restaurants []string `yaml:"restaurants"`
	Weather     []string `yaml:"weather"`

	// Reply holds the narrower sets matched against the previous assistant
	// reply.
	Reply ReplyKeywords `yaml:"reply"`

	// ItineraryTriggers start generation when found in the user text or the
	// assistant reply.
	ItineraryTriggers []string `yaml:"itinerary_triggers"`

	// HistoryWindow is how many prior messages are sent with a chat turn.
	HistoryWindow int `yaml:"history_window"`
}

// ReplyKeywords are the lookup keywords recognised in an assistant reply.
type ReplyKeywords struct {
	Flights     []string `yaml:"flights"`
	Hotels      []string `yaml:"hotels"`
	Restaurants []string `yaml:"restaurants"`
	Weather     []string `yaml:"weather"`
}

// DefaultKeywords returns the built-in keyword sets.
func DefaultKeywords() Keywords {
	return Keywords{
		Flights:           []string{"flight", "plane"},
		Hotels:            []string{"hotel", "accommodation"},
		Restaurants:       []string{"restaurant", "food"},
		Weather:           []string{"weather", "climate"},
		Reply: ReplyKeywords{
			Flights:     []string{"flight"},
			Hotels:      []string{"hotel"},
			Restaurants: []string{"restaurant"},
			Weather:     []string{"weather"},
		},
		ItineraryTriggers: []string{"itinerary", "schedule", "plan my trip", "day by day", "generate plan"},
		HistoryWindow:     5,
	}
}

// LoadKeywords reads keyword sets from a YAML file. Sets missing from the
// file keep their defaults. An empty path returns the defaults.
func LoadKeywords(path string) (Keywords, error) {
	kw := DefaultKeywords()
	if path == "" {
		return kw, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Keywords{}, fmt.Errorf("read keywords file: %w", err)
	}
	var file Keywords
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Keywords{}, fmt.Errorf("parse keywords file: %w", err)
	}
	merge := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	merge(&kw.Flights, file.Flights)
	merge(&kw.Hotels, file.Hotels)
	merge(&kw.Restaurants, file.Restaurants)
	merge(&kw.Weather, file.Weather)
	merge(&kw.Reply.Flights, file.Reply.Flights)
	merge(&kw.Reply.Hotels, file.Reply.Hotels)
	merge(&kw.Reply.Restaurants, file.Reply.Restaurants)
	merge(&kw.Reply.Weather, file.Reply.Weather)
	merge(&kw.ItineraryTriggers, file.ItineraryTriggers)
	if file.HistoryWindow != 0 {
		kw.HistoryWindow = file.HistoryWindow
	}
	return kw, kw.Validate()
}

// KeywordsFromEnv loads TRIPPLANNER_KEYWORDS_FILE when set.
// TRIPPLANNER_CHAT_HISTORY overrides the history window.
func KeywordsFromEnv() (Keywords, error) {
	kw, err := LoadKeywords(os.Getenv("TRIPPLANNER_KEYWORDS_FILE"))
	if err != nil {
		return Keywords{}, err
	}
	if v := os.Getenv("TRIPPLANNER_CHAT_HISTORY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Keywords{}, fmt.Errorf("TRIPPLANNER_CHAT_HISTORY: %w", err)
		}
		kw.HistoryWindow = n
	}
	return kw, kw.Validate()
}

// Validate checks the keyword configuration.
func (k Keywords) Validate() error {
	if k.HistoryWindow < 0 {
		return errors.New("history_window must not be negative")
	}
	if len(k.ItineraryTriggers) == 0 {
		return errors.New("itinerary_triggers must not be empty")
	}
	return nil
}
