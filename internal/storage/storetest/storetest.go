// Package storetest holds behavioural tests shared by every storage.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tripplanner/internal/domain"
	"tripplanner/internal/storage"
)

// Factory returns a fresh, empty store for one test.
type Factory func(t *testing.T) storage.Store

// Run executes the shared suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateTripDefaults", func(t *testing.T) { testCreateTripDefaults(t, newStore(t)) })
	t.Run("TripValidation", func(t *testing.T) { testTripValidation(t, newStore(t)) })
	t.Run("OwnerScoping", func(t *testing.T) { testOwnerScoping(t, newStore(t)) })
	t.Run("UpdateTripMerges", func(t *testing.T) { testUpdateTripMerges(t, newStore(t)) })
	t.Run("ListTripsNewestFirst", func(t *testing.T) { testListTripsNewestFirst(t, newStore(t)) })
	t.Run("ReplaceItinerary", func(t *testing.T) { testReplaceItinerary(t, newStore(t)) })
	t.Run("ReplaceItineraryRejectsInvalid", func(t *testing.T) { testReplaceItineraryRejectsInvalid(t, newStore(t)) })
	t.Run("DeleteTripCascades", func(t *testing.T) { testDeleteTripCascades(t, newStore(t)) })
	t.Run("ShareID", func(t *testing.T) { testShareID(t, newStore(t)) })
	t.Run("TripStats", func(t *testing.T) { testTripStats(t, newStore(t)) })
	t.Run("AppendCreatesSession", func(t *testing.T) { testAppendCreatesSession(t, newStore(t)) })
	t.Run("MessageOrdering", func(t *testing.T) { testMessageOrdering(t, newStore(t)) })
	t.Run("ConcurrentAppends", func(t *testing.T) { testConcurrentAppends(t, newStore(t)) })
	t.Run("RecentMessages", func(t *testing.T) { testRecentMessages(t, newStore(t)) })
	t.Run("DeleteSession", func(t *testing.T) { testDeleteSession(t, newStore(t)) })
	t.Run("Profiles", func(t *testing.T) { testProfiles(t, newStore(t)) })
	t.Run("Generations", func(t *testing.T) { testGenerations(t, newStore(t)) })
}

// NewProfile creates a profile for tests that need an owner.
func NewProfile(t *testing.T, s storage.Store, email string) domain.Profile {
	t.Helper()
	p, err := s.CreateProfile(context.Background(), domain.Profile{Email: email, DisplayName: email})
	if err != nil {
		t.Fatalf("create profile %s: %v", email, err)
	}
	return p
}

func date(y int, m time.Month, d int) *time.Time {
	v := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &v
}

func sampleDays(n int) []domain.DayPlan {
	days := make([]domain.DayPlan, n)
	for i := range days {
		rating := 4.5
		days[i] = domain.DayPlan{
			Day:    (i + 1) * 10, // deliberately not 1..N
			Date:   fmt.Sprintf("2024-03-%02d", 15+i),
			Notes:  fmt.Sprintf("day %d", i+1),
			Budget: decimal.NewFromInt(100),
			Activities: []domain.Activity{
				{
					Name:     fmt.Sprintf("Morning %d", i+1),
					Type:     domain.ActivityAttraction,
					TimeSlot: "09:00-12:00",
					Duration: 180,
					Cost:     decimal.NewFromInt(25),
					Rating:   &rating,
					Location: domain.Location{Name: "Forum", Address: "Via dei Fori", Lat: 41.89, Lng: 12.48},
					Tips:     []string{"Arrive early"},
				},
				{
					Name:     fmt.Sprintf("Lunch %d", i+1),
					Type:     domain.ActivityMeal,
					TimeSlot: "12:30-14:00",
					Duration: 90,
					Cost:     decimal.RequireFromString("30.50"),
				},
			},
		}
	}
	return days
}

func testCreateTripDefaults(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner := NewProfile(t, s, "a@example.com")

	zero := decimal.Zero
	trip, err := s.CreateTrip(ctx, owner.ID, domain.TripInput{Budget: &zero, Travelers: 1})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	if trip.ID == "" {
		t.Fatal("expected trip id")
	}
	if trip.Status != domain.TripStatusPlanning {
		t.Errorf("status = %q, want planning", trip.Status)
	}
	if trip.Title != domain.DefaultTripTitle {
		t.Errorf("title = %q, want %q", trip.Title, domain.DefaultTripTitle)
	}
	if len(trip.Itinerary) != 0 {
		t.Errorf("expected empty itinerary, got %d days", len(trip.Itinerary))
	}

	got, err := s.GetTrip(ctx, owner.ID, trip.ID)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	if !got.Budget.IsZero() || got.Travelers != 1 || len(got.Itinerary) != 0 {
		t.Errorf("unexpected stored trip: %+v", got)
	}
}

func testTripValidation(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner := NewProfile(t, s, "v@example.com")

	neg := decimal.NewFromInt(-1)
	cases := []struct {
		name string
		in   domain.TripInput
	}{
		{"negative budget", domain.TripInput{Budget: &neg}},
		{"negative travelers", domain.TripInput{Travelers: -2}},
		{"bad status", domain.TripInput{Status: "archived"}},
		{"reversed dates", domain.TripInput{StartDate: date(2024, 3, 20), EndDate: date(2024, 3, 10)}},
	}
	for _, tc := range cases {
		if _, err := s.CreateTrip(ctx, owner.ID, tc.in); !errors.Is(err, storage.ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", tc.name, err)
		}
	}

	if _, err := s.CreateTrip(ctx, "", domain.TripInput{}); !errors.Is(err, storage.ErrNotAuthenticated) {
		t.Errorf("empty owner: err = %v, want ErrNotAuthenticated", err)
	}
}

func testOwnerScoping(t *testing.T, s storage.Store) {
	ctx := context.Background()
	alice := NewProfile(t, s, "alice@example.com")
	bob := NewProfile(t, s, "bob@example.com")

	trip, err := s.CreateTrip(ctx, alice.ID, domain.TripInput{Destination: "Rome"})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	if _, err := s.GetTrip(ctx, bob.ID, trip.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("bob get: err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteTrip(ctx, bob.ID, trip.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("bob delete: err = %v, want ErrNotFound", err)
	}
	if err := s.ReplaceItinerary(ctx, bob.ID, trip.ID, sampleDays(1)); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("bob replace: err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetTrip(ctx, alice.ID, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing trip: err = %v, want ErrNotFound", err)
	}
	trips, err := s.ListTrips(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list bob: %v", err)
	}
	if len(trips) != 0 {
		t.Errorf("bob sees %d trips", len(trips))
	}
	if _, err := s.ListTrips(ctx, ""); !errors.Is(err, storage.ErrNotAuthenticated) {
		t.Errorf("list without owner: err = %v, want ErrNotAuthenticated", err)
	}
}

func testUpdateTripMerges(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner := NewProfile(t, s, "u@example.com")
	budget := decimal.NewFromInt(1500)
	trip, err := s.CreateTrip(ctx, owner.ID, domain.TripInput{
		Title:       "Italy",
		Destination: "Rome",
		Budget:      &budget,
		Travelers:   2,
		Preferences: domain.Preferences{TravelStyle: "relaxed", Interests: []string{"food", "history"}},
	})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}

	dest := "Florence"
	start, end := date(2024, 5, 1), date(2024, 5, 4)
	updated, err := s.UpdateTrip(ctx, owner.ID, trip.ID, domain.TripPatch{Destination: &dest, StartDate: start, EndDate: end})
	if err != nil {
		t.Fatalf("update trip: %v", err)
	}
	if updated.Destination != "Florence" || updated.Title != "Italy" || updated.Travelers != 2 {
		t.Errorf("unexpected merge result: %+v", updated)
	}
	if !updated.Budget.Equal(budget) {
		t.Errorf("budget = %s, want %s", updated.Budget, budget)
	}
	if updated.UpdatedAt.Before(trip.UpdatedAt) {
		t.Errorf("updated_at went backwards")
	}

	got, err := s.GetTrip(ctx, owner.ID, trip.ID)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	if got.StartDate == nil || !got.StartDate.Equal(*start) {
		t.Errorf("start date = %v, want %v", got.StartDate, start)
	}
	if days, ok := got.DurationDays(); !ok || days != 3 {
		t.Errorf("duration = %d/%v, want 3", days, ok)
	}
	if len(got.Preferences.Interests) != 2 || got.Preferences.TravelStyle != "relaxed" {
		t.Errorf("preferences lost: %+v", got.Preferences)
	}

	bad := 0
	if _, err := s.UpdateTrip(ctx, owner.ID, trip.ID, domain.TripPatch{Travelers: &bad}); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("travelers=0: err = %v, want ErrValidation", err)
	}
}

func testListTripsNewestFirst(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner := NewProfile(t, s, "l@example.com")
	var ids []string
	for i := 0; i < 3; i++ {
		trip, err := s.CreateTrip(ctx, owner.ID, domain.TripInput{Title: fmt.Sprintf("trip %d", i)})
		if err != nil {
			t.Fatalf("create trip %d: %v", i, err)
		}
		ids = append(ids, trip.ID)
	}
	trips, err := s.ListTrips(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list trips: %v", err)
	}
	if len(trips) != 3 {
		t.Fatalf("expected 3 trips, got %d", len(trips))
	}
	for i, trip := range trips {
		if want := ids[len(ids)-1-i]; trip.ID != want {
			t.Errorf("trips[%d] = %s, want %s", i, trip.ID, want)
		}
	}
}

func testReplaceItinerary(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner := NewProfile(t, s, "r@example.com")
	trip, err := s.CreateTrip(ctx, owner.ID, domain.TripInput{Destination: "Rome"})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}

	if err := s.ReplaceItinerary(ctx, owner.ID, trip.ID, sampleDays(4)); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	days := sampleDays(3)
	days[1].Activities = nil // an empty day is valid
	if err := s.ReplaceItinerary(ctx, owner.ID, trip.ID, days); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	got, err := s.GetTrip(ctx, owner.ID, trip.ID)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	if len(got.Itinerary) != 3 {
		t.Fatalf("expected 3 days, got %d", len(got.Itinerary))
	}
	for i, d := range got.Itinerary {
		if d.Day != i+1 {
			t.Errorf("day[%d].Day = %d, want %d", i, d.Day, i+1)
		}
		if d.Notes != days[i].Notes {
			t.Errorf("day[%d] notes = %q, want %q", i, d.Notes, days[i].Notes)
		}
		if len(d.Activities) != len(days[i].Activities) {
			t.Fatalf("day[%d] has %d activities, want %d", i, len(d.Activities), len(days[i].Activities))
		}
		for j, a := range d.Activities {
			want := days[i].Activities[j]
			if a.Name != want.Name || a.Type != want.Type || a.Duration != want.Duration {
				t.Errorf("day[%d] activity[%d] = %+v, want %+v", i, j, a, want)
			}
			if !a.Cost.Equal(want.Cost) {
				t.Errorf("day[%d] activity[%d] cost = %s, want %s", i, j, a.Cost, want.Cost)
			}
		}
	}
	first := got.Itinerary[0].Activities[0]
	if first.Rating == nil || *first.Rating != 4.5 {
		t.Errorf("rating lost: %v", first.Rating)
	}
	if first.Location.Name != "Forum" || first.Location.Lat != 41.89 {
		t.Errorf("location lost: %+v", first.Location)
	}
	if len(first.Tips) != 1 || first.Tips[0] != "Arrive early" {
		t.Errorf("tips lost: %v", first.Tips)
	}
}

func testReplaceItineraryRejectsInvalid(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner := NewProfile(t, s, "ri@example.com")
	trip, err := s.CreateTrip(ctx, owner.ID, domain.TripInput{Destination: "Rome"})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	if err := s.ReplaceItinerary(ctx, owner.ID, trip.ID, sampleDays(2)); err != nil {
		t.Fatalf("replace: %v", err)
	}

	bad := sampleDays(1)
	bad[0].Activities[0].Duration = 0
	if err := s.ReplaceItinerary(ctx, owner.ID, trip.ID, bad); !errors.Is(err, storage.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	got, err := s.GetTrip(ctx, owner.ID, trip.ID)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	if len(got.Itinerary) != 2 {
		t.Errorf("rejected replace changed itinerary: %d days", len(got.Itinerary))
	}
}

func testDeleteTripCascades(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner := NewProfile(t, s, "d@example.com")
	trip, err := s.CreateTrip(ctx, owner.ID, domain.TripInput{Destination: "Rome"})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	if err := s.ReplaceItinerary(ctx, owner.ID, trip.ID, sampleDays(2)); err != nil {
		t.Fatalf("replace: %v", err)
	}
	msg, err := s.AppendMessage(ctx, owner.ID, domain.MessageInput{TripID: trip.ID, Role: domain.RoleUser, Content: "hello"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := s.DeleteTrip(ctx, owner.ID, trip.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetTrip(ctx, owner.ID, trip.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("get after delete: err = %v, want ErrNotFound", err)
	}
	sess, err := s.GetSession(ctx, owner.ID, msg.SessionID)
	if err != nil {
		t.Fatalf("session should survive trip deletion: %v", err)
	}
	if sess.TripID != "" {
		t.Errorf("session still linked to deleted trip %s", sess.TripID)
	}
}

func testShareID(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner := NewProfile(t, s, "s@example.com")
	trip, err := s.CreateTrip(ctx, owner.ID, domain.TripInput{Destination: "Lisbon"})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	if _, err := s.GetTripByShareID(ctx, "abc"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown share: err = %v, want ErrNotFound", err)
	}
	share := "share-123"
	if _, err := s.UpdateTrip(ctx, owner.ID, trip.ID, domain.TripPatch{ShareID: &share}); err != nil {
		t.Fatalf("set share id: %v", err)
	}
	got, err := s.GetTripByShareID(ctx, share)
	if err != nil {
		t.Fatalf("get shared: %v", err)
	}
	if got.ID != trip.ID {
		t.Errorf("shared trip = %s, want %s", got.ID, trip.ID)
	}
}

func testTripStats(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner := NewProfile(t, s, "st@example.com")
	for i, b := range []int64{100, 200, 600} {
		budget := decimal.NewFromInt(b)
		in := domain.TripInput{Budget: &budget}
		if i == 0 {
			in.Status = domain.TripStatusCompleted
		}
		if _, err := s.CreateTrip(ctx, owner.ID, in); err != nil {
			t.Fatalf("create trip: %v", err)
		}
	}
	st, err := s.TripStats(ctx, owner.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalTrips != 3 || st.Completed != 1 || st.Upcoming != 2 || st.CreatedThisMonth != 3 {
		t.Errorf("unexpected counts: %+v", st)
	}
	if !st.TotalBudget.Equal(decimal.NewFromInt(900)) {
		t.Errorf("total budget = %s, want 900", st.TotalBudget)
	}
	if !st.AverageBudget.Equal(decimal.NewFromInt(300)) {
		t.Errorf("average budget = %s, want 300", st.AverageBudget)
	}
}

func testAppendCreatesSession(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner := NewProfile(t, s, "c@example.com")
	trip, err := s.CreateTrip(ctx, owner.ID, domain.TripInput{Destination: "Rome"})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}

	msg, err := s.AppendMessage(ctx, owner.ID, domain.MessageInput{
		TripID:  trip.ID,
		Role:    domain.RoleUser,
		Content: "Plan a 3-day trip to Rome",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if msg.SessionID == "" || msg.Type != domain.MessageText || msg.Seq != 1 {
		t.Errorf("unexpected message: %+v", msg)
	}
	sess, err := s.GetSession(ctx, owner.ID, msg.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.TripID != trip.ID {
		t.Errorf("session trip = %q, want %q", sess.TripID, trip.ID)
	}
	if sess.Title != "Plan a 3-day trip to Rome..." {
		t.Errorf("session title = %q", sess.Title)
	}

	if _, err := s.AppendMessage(ctx, owner.ID, domain.MessageInput{SessionID: "missing", Role: domain.RoleUser, Content: "x"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing session: err = %v, want ErrNotFound", err)
	}
	if _, err := s.AppendMessage(ctx, "", domain.MessageInput{Role: domain.RoleUser, Content: "x"}); !errors.Is(err, storage.ErrNotAuthenticated) {
		t.Errorf("no owner: err = %v, want ErrNotAuthenticated", err)
	}
	if _, err := s.AppendMessage(ctx, owner.ID, domain.MessageInput{SessionID: msg.SessionID, Role: "system", Content: "x"}); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("bad role: err = %v, want ErrValidation", err)
	}
}

func testMessageOrdering(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner := NewProfile(t, s, "o@example.com")
	sess, err := s.CreateSession(ctx, owner.ID, "", "ordering")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	const n = 25
	for i := 0; i < n; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		in := domain.MessageInput{SessionID: sess.ID, Role: role, Content: fmt.Sprintf("m%02d", i)}
		if i == 3 {
			in.Type = domain.MessageSummary
			in.Metadata = []byte(`{"kind":"weather"}`)
		}
		if _, err := s.AppendMessage(ctx, owner.ID, in); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	msgs, err := s.ListMessages(ctx, owner.ID, sess.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != n {
		t.Fatalf("expected %d messages, got %d", n, len(msgs))
	}
	for i, m := range msgs {
		if want := fmt.Sprintf("m%02d", i); m.Content != want {
			t.Fatalf("msgs[%d] = %q, want %q", i, m.Content, want)
		}
		if i > 0 && m.CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("msgs[%d] created before msgs[%d]", i, i-1)
		}
	}
	if msgs[3].Type != domain.MessageSummary || string(msgs[3].Metadata) != `{"kind":"weather"}` {
		t.Errorf("metadata lost: type=%q meta=%s", msgs[3].Type, msgs[3].Metadata)
	}
}

func testConcurrentAppends(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner := NewProfile(t, s, "cc@example.com")
	sess, err := s.CreateSession(ctx, owner.ID, "", "concurrent")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	const workers, each = 4, 5
	var wg sync.WaitGroup
	errs := make(chan error, workers*each)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				_, err := s.AppendMessage(ctx, owner.ID, domain.MessageInput{
					SessionID: sess.ID, Role: domain.RoleUser, Content: fmt.Sprintf("w%d-%d", w, i),
				})
				if err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent append: %v", err)
	}

	msgs, err := s.ListMessages(ctx, owner.ID, sess.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != workers*each {
		t.Fatalf("expected %d messages, got %d", workers*each, len(msgs))
	}
	seen := make(map[int64]bool)
	for _, m := range msgs {
		if seen[m.Seq] {
			t.Fatalf("duplicate seq %d", m.Seq)
		}
		seen[m.Seq] = true
	}
}

func testRecentMessages(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner := NewProfile(t, s, "rm@example.com")
	var sessionID string
	for i := 0; i < 8; i++ {
		m, err := s.AppendMessage(ctx, owner.ID, domain.MessageInput{SessionID: sessionID, Role: domain.RoleUser, Content: fmt.Sprintf("%d", i)})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		sessionID = m.SessionID
	}
	recent, err := s.RecentMessages(ctx, owner.ID, sessionID, 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 5 {
		t.Fatalf("expected 5 recent messages, got %d", len(recent))
	}
	for i, m := range recent {
		if want := fmt.Sprintf("%d", i+3); m.Content != want {
			t.Errorf("recent[%d] = %q, want %q", i, m.Content, want)
		}
	}
}

func testDeleteSession(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner := NewProfile(t, s, "ds@example.com")
	other := NewProfile(t, s, "other@example.com")
	m, err := s.AppendMessage(ctx, owner.ID, domain.MessageInput{Role: domain.RoleUser, Content: "hi"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	sessions, err := s.ListSessions(ctx, owner.ID)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("list sessions: %v (%d)", err, len(sessions))
	}
	if err := s.DeleteSession(ctx, other.ID, m.SessionID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("foreign delete: err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteSession(ctx, owner.ID, m.SessionID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.ListMessages(ctx, owner.ID, m.SessionID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("list after delete: err = %v, want ErrNotFound", err)
	}
}

func testProfiles(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p, err := s.CreateProfile(ctx, domain.Profile{Email: "Traveler@Example.com", DisplayName: "Traveler", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if p.Plan != domain.PlanFree {
		t.Errorf("plan = %q, want free", p.Plan)
	}
	if _, err := s.CreateProfile(ctx, domain.Profile{Email: "traveler@example.com"}); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("duplicate email: err = %v, want ErrConflict", err)
	}

	got, err := s.GetProfileByEmail(ctx, "TRAVELER@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != p.ID || got.PasswordHash != "hash" {
		t.Errorf("unexpected profile: %+v", got)
	}

	pro := domain.PlanPro
	cust := "cus_123"
	updated, err := s.UpdateProfile(ctx, p.ID, domain.ProfilePatch{Plan: &pro, CustomerID: &cust})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Plan != domain.PlanPro || updated.CustomerID != "cus_123" || updated.DisplayName != "Traveler" {
		t.Errorf("unexpected update: %+v", updated)
	}
	byCustomer, err := s.GetProfileByCustomerID(ctx, "cus_123")
	if err != nil || byCustomer.ID != p.ID {
		t.Errorf("get by customer: %v %+v", err, byCustomer)
	}

	oidcUser, err := s.CreateProfile(ctx, domain.Profile{Email: "sso@example.com", OIDCIssuer: "https://idp", OIDCSubject: "sub-1"})
	if err != nil {
		t.Fatalf("create oidc profile: %v", err)
	}
	byOIDC, err := s.GetProfileByOIDC(ctx, "https://idp", "sub-1")
	if err != nil || byOIDC.ID != oidcUser.ID {
		t.Errorf("get by oidc: %v %+v", err, byOIDC)
	}
	if _, err := s.GetProfile(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing profile: err = %v, want ErrNotFound", err)
	}
}

func testGenerations(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner := NewProfile(t, s, "g@example.com")
	trip, err := s.CreateTrip(ctx, owner.ID, domain.TripInput{Destination: "Rome"})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	for _, st := range []domain.GenerationStatus{domain.GenerationFallback, domain.GenerationCompleted} {
		_, err := s.RecordGeneration(ctx, domain.GenerationRecord{
			OwnerID: owner.ID,
			TripID:  trip.ID,
			Kind:    domain.GenerationItinerary,
			Input:   []byte(`{"destination":"Rome"}`),
			Output:  []byte(`{"days":[]}`),
			Status:  st,
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	recs, err := s.ListGenerations(ctx, owner.ID, trip.ID)
	if err != nil {
		t.Fatalf("list generations: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Status != domain.GenerationCompleted {
		t.Errorf("newest record status = %q, want completed", recs[0].Status)
	}
}
