package planning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"tripplanner/internal/domain"
	"tripplanner/internal/gateway"
	"tripplanner/internal/observability"
	"tripplanner/internal/storage"
)

var (
	// ErrNoDestination is returned when the trip has no destination to plan for.
	ErrNoDestination = errors.New("trip has no destination")
	// ErrGenerationInProgress is returned while the trip is already regenerating.
	ErrGenerationInProgress = errors.New("itinerary generation already in progress")
	// ErrGenerationFailed wraps a failure to store the generated itinerary.
	ErrGenerationFailed = errors.New("itinerary generation failed")
)

const (
	// DefaultDuration is used when neither dates nor a hint give a length.
	DefaultDuration = 7
	// MaxDuration caps generated itineraries.
	MaxDuration = 30
)

// Drafter produces raw itinerary text.
type Drafter interface {
	DraftItinerary(ctx context.Context, req gateway.ItineraryRequest) gateway.Result[string]
}

// GenerationStore is the persistence the generator needs.
type GenerationStore interface {
	GetTrip(ctx context.Context, ownerID, tripID string) (domain.Trip, error)
	ReplaceItinerary(ctx context.Context, ownerID, tripID string, days []domain.DayPlan) error
	RecordGeneration(ctx context.Context, rec domain.GenerationRecord) (domain.GenerationRecord, error)
}

// Source tags where a generated itinerary came from.
type Source string

const (
	// SourceParsed is a repaired provider itinerary.
	SourceParsed Source = "parsed"
	// SourceFallback is the built-in template.
	SourceFallback Source = "fallback"
)

// GenerationResult is the itinerary a generation stored.
type GenerationResult struct {
	TripID   string           `json:"trip_id"`
	Source   Source           `json:"source"`
	Reason   string           `json:"reason,omitempty"` // why the template was used
	Duration int              `json:"duration"`
	Days     []domain.DayPlan `json:"days"`
}

// Generator builds itineraries and guards against concurrent regeneration
// of the same trip.
type Generator struct {
	store   GenerationStore
	drafter Drafter
	logger  observability.Logger
	metrics *observability.Metrics

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewGenerator creates a Generator.
func NewGenerator(store GenerationStore, drafter Drafter, logger observability.Logger, metrics *observability.Metrics) *Generator {
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	return &Generator{
		store:    store,
		drafter:  drafter,
		logger:   logger.WithComponent("generator"),
		metrics:  metrics,
		inFlight: make(map[string]struct{}),
	}
}

// begin claims the trip's guard. The returned func releases it.
func (g *Generator) begin(tripID string) (func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[tripID]; busy {
		return nil, false
	}
	g.inFlight[tripID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, tripID)
			g.mu.Unlock()
		})
	}, true
}

// InProgress reports whether the trip is regenerating.
func (g *Generator) InProgress(tripID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inFlight[tripID]
	return busy
}

// Generate regenerates the trip's itinerary and stores it.
func (g *Generator) Generate(ctx context.Context, ownerID, tripID string) (GenerationResult, error) {
	return g.generate(ctx, ownerID, tripID, 0)
}

// generate is Generate with a length hint for trips without dates.
func (g *Generator) generate(ctx context.Context, ownerID, tripID string, hintDays int) (GenerationResult, error) {
	trip, err := g.store.GetTrip(ctx, ownerID, tripID)
	if err != nil {
		return GenerationResult{}, err
	}
	if strings.TrimSpace(trip.Destination) == "" {
		return GenerationResult{}, ErrNoDestination
	}
	release, ok := g.begin(tripID)
	if !ok {
		return GenerationResult{}, ErrGenerationInProgress
	}
	defer release()
	return g.run(ctx, ownerID, tripID, hintDays)
}

// run does the generation with the guard already held.
func (g *Generator) run(ctx context.Context, ownerID, tripID string, hintDays int) (GenerationResult, error) {
	trip, err := g.store.GetTrip(ctx, ownerID, tripID)
	if err != nil {
		return GenerationResult{}, err
	}
	if strings.TrimSpace(trip.Destination) == "" {
		return GenerationResult{}, ErrNoDestination
	}

	duration := Duration(trip, hintDays)
	req := gateway.ItineraryRequest{
		Destination: trip.Destination,
		Duration:    duration,
		Budget:      trip.Budget.StringFixed(2),
		Travelers:   trip.Travelers,
		Interests:   trip.Preferences.Interests,
		TravelStyle: trip.Preferences.TravelStyle,
	}
	if trip.StartDate != nil {
		req.StartDate = trip.StartDate.Format("2006-01-02")
	}

	res := GenerationResult{TripID: tripID, Duration: duration}
	draft := g.drafter.DraftItinerary(ctx, req)
	var parsed []draftDay
	if draft.Fallback {
		res.Reason = draft.Reason
	} else if parsed, err = parseDraft(draft.Data); err != nil {
		res.Reason = err.Error()
	}
	if len(parsed) > 0 {
		res.Source = SourceParsed
		res.Days = repairDays(parsed, trip, duration)
	} else {
		res.Source = SourceFallback
		res.Days = templateDays(trip, duration)
	}

	status := domain.GenerationCompleted
	if res.Source == SourceFallback {
		status = domain.GenerationFallback
	}
	rec := domain.GenerationRecord{OwnerID: ownerID, TripID: tripID, Kind: domain.GenerationItinerary, Status: status}
	rec.Input, _ = json.Marshal(req)
	rec.Output, _ = json.Marshal(map[string]any{"source": res.Source, "days": res.Days})

	if err := g.store.ReplaceItinerary(ctx, ownerID, tripID, res.Days); err != nil {
		rec.Status = domain.GenerationFailed
		rec.Error = err.Error()
		rec.Output = nil
		g.record(ctx, rec)
		return GenerationResult{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	g.record(ctx, rec)
	g.logger.InfoContext(ctx, "itinerary generated", "trip_id", tripID, "days", duration, "source", res.Source)
	return res, nil
}

func (g *Generator) record(ctx context.Context, rec domain.GenerationRecord) {
	g.metrics.RecordGeneration(string(rec.Status))
	if _, err := g.store.RecordGeneration(ctx, rec); err != nil {
		g.logger.WarnContext(ctx, "record generation", "trip_id", rec.TripID, "error", err)
	}
}

// Duration is the itinerary length for trip: whole days between the dates
// rounded up with a minimum of one, else hintDays, else DefaultDuration.
// The result is capped at MaxDuration.
func Duration(trip domain.Trip, hintDays int) int {
	n, ok := trip.DurationDays()
	if !ok && hintDays > 0 {
		n = hintDays
	}
	if n == 0 {
		n = DefaultDuration
	}
	return min(n, MaxDuration)
}

type draftActivity struct {
	Name        string           `json:"name"`
	Type        string           `json:"type"`
	Description string           `json:"description"`
	TimeSlot    string           `json:"time_slot"`
	TimeSlotAlt string           `json:"timeSlot"`
	Duration    float64          `json:"duration"`
	Cost        *decimal.Decimal `json:"cost"`
	Rating      *float64         `json:"rating"`
	Location    domain.Location  `json:"location"`
	BookingURL  string           `json:"booking_url"`
	Images      []string         `json:"images"`
	Tips        []string         `json:"tips"`
}

type draftDay struct {
	Day        int              `json:"day"`
	Date       string           `json:"date"`
	Notes      string           `json:"notes"`
	Budget     *decimal.Decimal `json:"budget"`
	Activities []draftActivity  `json:"activities"`
}

// jsonBlockRe matches fenced JSON code blocks in markdown.
var jsonBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n```")

// parseDraft extracts {"days":[...]} from model output. Fenced JSON blocks
// are tried first, then the first '{' in the text.
func parseDraft(text string) ([]draftDay, error) {
	for _, match := range jsonBlockRe.FindAllStringSubmatch(text, -1) {
		if days, err := decodeDays(match[1]); err == nil {
			return days, nil
		}
	}
	return decodeDays(text)
}

func decodeDays(text string) ([]draftDay, error) {
	i := strings.IndexByte(text, '{')
	if i < 0 {
		return nil, errors.New("no JSON object in draft")
	}
	var doc struct {
		Days []draftDay `json:"days"`
	}
	if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	if len(doc.Days) == 0 {
		return nil, errors.New("draft has no days")
	}
	return doc.Days, nil
}

// dayBudget is floor(budget / duration).
func dayBudget(trip domain.Trip, duration int) decimal.Decimal {
	return trip.Budget.Div(decimal.NewFromInt(int64(duration))).Floor()
}

func dayDate(trip domain.Trip, i int) string {
	if trip.StartDate == nil {
		return ""
	}
	return trip.StartDate.AddDate(0, 0, i).Format("2006-01-02")
}

// repairDays fits provider days to exactly duration days and makes every
// field pass store validation.
func repairDays(parsed []draftDay, trip domain.Trip, duration int) []domain.DayPlan {
	share := dayBudget(trip, duration)
	template := templateDays(trip, duration)
	out := make([]domain.DayPlan, duration)
	for i := range out {
		if i >= len(parsed) {
			out[i] = template[i]
			continue
		}
		d := parsed[i]
		day := domain.DayPlan{
			Day:    i + 1,
			Date:   d.Date,
			Notes:  d.Notes,
			Budget: share,
		}
		if trip.StartDate != nil {
			day.Date = dayDate(trip, i)
		}
		if d.Budget != nil && !d.Budget.IsNegative() {
			day.Budget = *d.Budget
		}
		named := lo.Filter(d.Activities, func(a draftActivity, _ int) bool { return strings.TrimSpace(a.Name) != "" })
		day.Activities = lo.Map(named, func(a draftActivity, _ int) domain.Activity { return repairActivity(a) })
		out[i] = day
	}
	return out
}

func repairActivity(a draftActivity) domain.Activity {
	act := domain.Activity{
		Name:        strings.TrimSpace(a.Name),
		Type:        domain.ActivityType(strings.ToLower(strings.TrimSpace(a.Type))),
		Description: a.Description,
		TimeSlot:    a.TimeSlot,
		Duration:    int(math.Round(a.Duration)),
		Cost:        decimal.Zero,
		Rating:      a.Rating,
		Location:    a.Location,
		BookingURL:  a.BookingURL,
		Images:      a.Images,
		Tips:        a.Tips,
	}
	if act.TimeSlot == "" {
		act.TimeSlot = a.TimeSlotAlt
	}
	if !domain.IsValidActivityType(act.Type) {
		act.Type = domain.ActivityAttraction
	}
	if act.Duration <= 0 {
		act.Duration = 60
	}
	if a.Cost != nil && !a.Cost.IsNegative() {
		act.Cost = *a.Cost
	}
	return act
}

// templateDays is the built-in itinerary: a morning attraction and a lunch
// per day, each costing half the daily share.
func templateDays(trip domain.Trip, duration int) []domain.DayPlan {
	dest := trip.Destination
	share := dayBudget(trip, duration)
	half := share.Div(decimal.NewFromInt(2))
	attraction, meal := 4.5, 4.3

	days := make([]domain.DayPlan, duration)
	for i := range days {
		n := i + 1
		days[i] = domain.DayPlan{
			Day:    n,
			Date:   dayDate(trip, i),
			Notes:  fmt.Sprintf("Day %d focuses on exploring the main attractions and experiencing local culture.", n),
			Budget: share,
			Activities: []domain.Activity{
				{
					Name:        fmt.Sprintf("Explore %s - Day %d", dest, n),
					Type:        domain.ActivityAttraction,
					Description: fmt.Sprintf("Discover the highlights of %s with guided tours and local experiences.", dest),
					TimeSlot:    "09:00-12:00",
					Duration:    180,
					Cost:        half,
					Rating:      &attraction,
					Location:    domain.Location{Name: dest + " City Center", Address: "Main Street, " + dest},
					Tips:        []string{"Bring comfortable walking shoes", "Book tickets in advance"},
				},
				{
					Name:        "Local Restaurant Experience",
					Type:        domain.ActivityMeal,
					Description: "Enjoy authentic local cuisine at a highly-rated restaurant.",
					TimeSlot:    "12:30-14:00",
					Duration:    90,
					Cost:        share.Sub(half),
					Rating:      &meal,
					Location:    domain.Location{Name: "Local Bistro", Address: "Restaurant District, " + dest},
					Tips:        []string{"Try the local specialty", "Reservations recommended"},
				},
			},
		}
	}
	return days
}

var _ GenerationStore = storage.Store(nil)
