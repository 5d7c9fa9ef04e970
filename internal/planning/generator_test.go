package planning

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tripplanner/internal/domain"
	"tripplanner/internal/gateway"
	"tripplanner/internal/observability"
	"tripplanner/internal/storage"
)

func newGenerator(store storage.Store, a Drafter) *Generator {
	return NewGenerator(store, a, observability.Discard(), observability.NewMetrics(observability.DefaultMetricsConfig()))
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		hint       int
		want       int
	}{
		{"dates", "2024-03-15", "2024-03-18", 0, 3},
		{"dates win over hint", "2024-03-15", "2024-03-18", 9, 3},
		{"hint", "", "", 5, 5},
		{"default", "", "", 0, DefaultDuration},
		{"capped", "", "", 90, MaxDuration},
		{"end before start", "2024-03-18", "2024-03-15", 0, DefaultDuration},
		{"same day", "2024-03-15", "2024-03-15", 0, 1},
		{"same day ignores hint", "2024-03-15", "2024-03-15", 4, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var trip domain.Trip
			if tt.start != "" {
				trip.StartDate, trip.EndDate = date(tt.start), date(tt.end)
			}
			if got := Duration(trip, tt.hint); got != tt.want {
				t.Errorf("Duration = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDurationRoundsPartialDaysUp(t *testing.T) {
	start := date("2024-03-15")
	end := start.Add(84 * time.Hour)
	if got := Duration(domain.Trip{StartDate: start, EndDate: &end}, 0); got != 4 {
		t.Errorf("Duration = %d, want 4", got)
	}
}

func TestGenerateFallbackTemplate(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	trip := createTrip(t, store, domain.TripInput{Destination: "Rome", Budget: money("700")})
	gen := newGenerator(store, newAssistant(nil))

	res, err := gen.Generate(ctx, owner, trip.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != SourceFallback || res.Reason == "" {
		t.Errorf("source = %s reason = %q, want fallback with a reason", res.Source, res.Reason)
	}
	assertContiguous(t, res.Days, DefaultDuration)

	day := res.Days[0]
	if !day.Budget.Equal(decimal.NewFromInt(100)) {
		t.Errorf("day budget = %s, want 100", day.Budget)
	}
	if len(day.Activities) != 2 {
		t.Fatalf("activities = %d, want 2", len(day.Activities))
	}
	explore, meal := day.Activities[0], day.Activities[1]
	if explore.Name != "Explore Rome - Day 1" || explore.Type != domain.ActivityAttraction || explore.TimeSlot != "09:00-12:00" || explore.Duration != 180 {
		t.Errorf("first activity = %+v", explore)
	}
	if meal.Name != "Local Restaurant Experience" || meal.Type != domain.ActivityMeal || meal.TimeSlot != "12:30-14:00" || meal.Duration != 90 {
		t.Errorf("second activity = %+v", meal)
	}
	if !explore.Cost.Equal(decimal.NewFromInt(50)) || !meal.Cost.Equal(decimal.NewFromInt(50)) {
		t.Errorf("costs = %s + %s, want 50 + 50", explore.Cost, meal.Cost)
	}

	stored, err := store.GetTrip(ctx, owner, trip.ID)
	if err != nil {
		t.Fatal(err)
	}
	assertContiguous(t, stored.Itinerary, DefaultDuration)

	gens, err := store.ListGenerations(ctx, owner, trip.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(gens) != 1 || gens[0].Status != domain.GenerationFallback || gens[0].Kind != domain.GenerationItinerary {
		t.Errorf("generations = %+v", gens)
	}
}

func TestGenerateFallbackIsDeterministic(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	trip := createTrip(t, store, domain.TripInput{
		Destination: "Kyoto",
		Budget:      money("1000"),
		StartDate:   date("2024-04-01"),
		EndDate:     date("2024-04-04"),
	})
	gen := newGenerator(store, newAssistant(nil))

	first, err := gen.Generate(ctx, owner, trip.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := gen.Generate(ctx, owner, trip.ID)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := json.Marshal(first.Days)
	b, _ := json.Marshal(second.Days)
	if string(a) != string(b) {
		t.Errorf("fallback itineraries differ:\n%s\n%s", a, b)
	}
	if first.Days[2].Date != "2024-04-03" {
		t.Errorf("day 3 date = %q, want 2024-04-03", first.Days[2].Date)
	}
	// floor(1000 / 3)
	if !first.Days[0].Budget.Equal(decimal.NewFromInt(333)) {
		t.Errorf("day budget = %s, want 333", first.Days[0].Budget)
	}
}

func TestGenerateRepairsParsedDraft(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	trip := createTrip(t, store, domain.TripInput{
		Destination: "Lisbon",
		Budget:      money("300"),
		StartDate:   date("2024-05-01"),
		EndDate:     date("2024-05-04"),
	})
	a := newAssistant(nil)
	a.draft = draftText("Here is your plan!\n```json\n" + `{"days":[
	  {"day":4,"notes":"Old town","budget":-1,"activities":[
	    {"name":"Alfama walk","type":"sightseeing","duration":0,"cost":-5,"timeSlot":"10:00-12:00"},
	    {"name":"  ","type":"meal","duration":60,"cost":10},
	    {"name":"Pasteis de Belem","type":"MEAL","duration":30,"cost":"4.50","rating":4.8}
	  ]},
	  {"day":9,"notes":"Belem","budget":80,"activities":[{"name":"Tower","type":"attraction","duration":90,"cost":12}]}
	]}` + "\n```\nEnjoy!")
	gen := newGenerator(store, a)

	res, err := gen.Generate(ctx, owner, trip.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != SourceParsed {
		t.Fatalf("source = %s (%s), want parsed", res.Source, res.Reason)
	}
	assertContiguous(t, res.Days, 3)

	d1 := res.Days[0]
	if d1.Date != "2024-05-01" || d1.Notes != "Old town" {
		t.Errorf("day 1 = %+v", d1)
	}
	if !d1.Budget.Equal(decimal.NewFromInt(100)) {
		t.Errorf("day 1 budget = %s, want floor share 100", d1.Budget)
	}
	if len(d1.Activities) != 2 {
		t.Fatalf("day 1 activities = %+v, want unnamed activity dropped", d1.Activities)
	}
	walk := d1.Activities[0]
	if walk.Type != domain.ActivityAttraction || walk.Duration != 60 || !walk.Cost.IsZero() || walk.TimeSlot != "10:00-12:00" {
		t.Errorf("repaired activity = %+v", walk)
	}
	pastry := d1.Activities[1]
	if pastry.Type != domain.ActivityMeal || !pastry.Cost.Equal(decimal.RequireFromString("4.5")) || pastry.Rating == nil || *pastry.Rating != 4.8 {
		t.Errorf("second activity = %+v", pastry)
	}
	if !res.Days[1].Budget.Equal(decimal.NewFromInt(80)) {
		t.Errorf("day 2 budget = %s, want provider value 80", res.Days[1].Budget)
	}
	if res.Days[2].Activities[0].Name != "Explore Lisbon - Day 3" || res.Days[2].Date != "2024-05-03" {
		t.Errorf("padded day = %+v", res.Days[2])
	}

	gens, _ := store.ListGenerations(ctx, owner, trip.ID)
	if len(gens) != 1 || gens[0].Status != domain.GenerationCompleted {
		t.Errorf("generations = %+v", gens)
	}
}

func TestGenerateTrimsExtraDays(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	trip := createTrip(t, store, domain.TripInput{
		Destination: "Oslo",
		StartDate:   date("2024-06-01"),
		EndDate:     date("2024-06-03"),
	})
	a := newAssistant(nil)
	a.draft = draftText(`{"days":[{"activities":[{"name":"A","type":"tour","duration":30,"cost":1}]},{"activities":[]},{"activities":[]},{"activities":[]}]}`)
	res, err := newGenerator(store, a).Generate(ctx, owner, trip.ID)
	if err != nil {
		t.Fatal(err)
	}
	assertContiguous(t, res.Days, 2)
	if res.Days[0].Activities[0].Type != domain.ActivityTour {
		t.Errorf("activity = %+v", res.Days[0].Activities[0])
	}
}

func TestGenerateMalformedDraftFallsBack(t *testing.T) {
	for name, text := range map[string]string{
		"prose":      "I can't do that right now.",
		"no days":    `{"days":[]}`,
		"broken":     `{"days":[{"day":1,`,
		"wrong type": `{"days":"soon"}`,
	} {
		t.Run(name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			trip := createTrip(t, store, domain.TripInput{Destination: "Rome"})
			a := newAssistant(nil)
			a.draft = draftText(text)
			res, err := newGenerator(store, a).Generate(context.Background(), owner, trip.ID)
			if err != nil {
				t.Fatal(err)
			}
			if res.Source != SourceFallback || res.Reason == "" {
				t.Errorf("result = %+v, want fallback with reason", res)
			}
			assertContiguous(t, res.Days, DefaultDuration)
		})
	}
}

func TestGenerateErrors(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	gen := newGenerator(store, newAssistant(nil))

	empty := createTrip(t, store, domain.TripInput{})
	if _, err := gen.Generate(ctx, owner, empty.ID); !errors.Is(err, ErrNoDestination) {
		t.Errorf("no destination: err = %v", err)
	}
	if _, err := gen.Generate(ctx, owner, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing trip: err = %v", err)
	}
	trip := createTrip(t, store, domain.TripInput{Destination: "Rome"})
	if _, err := gen.Generate(ctx, "someone-else", trip.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("other owner: err = %v", err)
	}
}

// failingReplace rejects itinerary writes.
type failingReplace struct {
	storage.Store
}

func (failingReplace) ReplaceItinerary(context.Context, string, string, []domain.DayPlan) error {
	return errors.New("disk full")
}

func TestGenerateStoreFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()
	trip := createTrip(t, mem, domain.TripInput{Destination: "Rome"})
	gen := newGenerator(failingReplace{mem}, newAssistant(nil))

	if _, err := gen.Generate(ctx, owner, trip.ID); !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
	gens, _ := mem.ListGenerations(ctx, owner, trip.ID)
	if len(gens) != 1 || gens[0].Status != domain.GenerationFailed || gens[0].Error == "" {
		t.Errorf("generations = %+v", gens)
	}
	if gen.InProgress(trip.ID) {
		t.Error("guard still held after failure")
	}
}

func TestConcurrentGenerateSameTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	trip := createTrip(t, store, domain.TripInput{Destination: "Rome", Budget: money("500")})

	started := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	a := newAssistant(nil)
	a.draft = func(context.Context, gateway.ItineraryRequest) gateway.Result[string] {
		once.Do(func() { close(started) })
		<-unblock
		return gateway.Result[string]{Kind: gateway.KindGenerativeItinerary, Fallback: true, Reason: "credentials_missing"}
	}
	gen := newGenerator(store, a)

	done := make(chan error, 1)
	go func() {
		_, err := gen.Generate(ctx, owner, trip.ID)
		done <- err
	}()
	<-started

	if !gen.InProgress(trip.ID) {
		t.Error("InProgress = false during generation")
	}
	if _, err := gen.Generate(ctx, owner, trip.ID); !errors.Is(err, ErrGenerationInProgress) {
		t.Errorf("second Generate err = %v, want ErrGenerationInProgress", err)
	}
	close(unblock)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	trips, err := store.ListTrips(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	assertContiguous(t, trips[0].Itinerary, DefaultDuration)
	seen := map[int]bool{}
	for _, d := range trips[0].Itinerary {
		if seen[d.Day] {
			t.Errorf("day %d appears twice", d.Day)
		}
		seen[d.Day] = true
	}

	if _, err := gen.Generate(ctx, owner, trip.ID); err != nil {
		t.Errorf("Generate after release: %v", err)
	}
}
