package planning

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"tripplanner/internal/domain"
	"tripplanner/internal/observability"
	"tripplanner/internal/planning/llm"
	"tripplanner/internal/storage"
)

func newOrchestrator(store storage.Store, a Assistant, opts ...OrchestratorOption) *Orchestrator {
	m := observability.NewMetrics(observability.DefaultMetricsConfig())
	gen := NewGenerator(store, a, observability.Discard(), m)
	opts = append([]OrchestratorOption{WithClock(func() time.Time {
		return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	})}, opts...)
	return NewOrchestrator(store, a, gen, observability.Discard(), m, opts...)
}

func messages(t *testing.T, store storage.Store, sessionID string) []domain.ChatMessage {
	t.Helper()
	msgs, err := store.ListMessages(context.Background(), owner, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	return msgs
}

func TestSendUserTurnPlansTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	trip := createTrip(t, store, domain.TripInput{Destination: "Rome"})
	o := newOrchestrator(store, newAssistant(&stubLLM{reply: "Rome is wonderful in spring."}))

	res, err := o.SendUserTurn(ctx, TurnRequest{OwnerID: owner, TripID: trip.ID, Text: "Plan a 3-day trip to Rome"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Generating || res.Degraded {
		t.Errorf("result = %+v, want generating", res)
	}
	if len(res.Messages) != 3 {
		t.Fatalf("turn appended %d messages, want 3", len(res.Messages))
	}
	o.Wait()

	msgs := messages(t, store, res.SessionID)
	want := []struct {
		role    domain.Role
		content string
	}{
		{domain.RoleUser, "Plan a 3-day trip to Rome"},
		{domain.RoleAssistant, "Rome is wonderful in spring."},
		{domain.RoleAssistant, generatingMessage},
		{domain.RoleAssistant, generatedMessage},
	}
	if len(msgs) != len(want) {
		t.Fatalf("session has %d messages, want %d: %+v", len(msgs), len(want), msgs)
	}
	for i, w := range want {
		if msgs[i].Role != w.role || msgs[i].Content != w.content {
			t.Errorf("message %d = %s %q, want %s %q", i, msgs[i].Role, msgs[i].Content, w.role, w.content)
		}
	}

	stored, err := store.GetTrip(ctx, owner, trip.ID)
	if err != nil {
		t.Fatal(err)
	}
	assertContiguous(t, stored.Itinerary, 3)
	if o.SessionState(res.SessionID) != StateIdle {
		t.Errorf("state = %s, want idle", o.SessionState(res.SessionID))
	}
	if o.Generator().InProgress(trip.ID) {
		t.Error("guard still held after Wait")
	}

	sess, err := store.GetSession(ctx, owner, res.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if sess.TripID != trip.ID || sess.Title != "Plan a 3-day trip to Rome..." {
		t.Errorf("session = %+v", sess)
	}
}

func TestSendUserTurnDataSummaries(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	trip := createTrip(t, store, domain.TripInput{Destination: "rome, italy"})
	o := newOrchestrator(store, newAssistant(&stubLLM{reply: "Enjoy the pasta."}))

	res, err := o.SendUserTurn(ctx, TurnRequest{OwnerID: owner, TripID: trip.ID, Text: "Any good restaurant? How's the weather?"})
	if err != nil {
		t.Fatal(err)
	}
	o.Wait()
	if res.Generating {
		t.Error("lookup turn should not start a generation")
	}

	msgs := messages(t, store, res.SessionID)
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want user, 2 summaries, reply: %+v", len(msgs), msgs)
	}
	for i, kind := range []Intent{IntentRestaurants, IntentWeather} {
		m := msgs[i+1]
		if m.Type != domain.MessageSummary || m.Role != domain.RoleAssistant {
			t.Errorf("message %d = %s/%s, want assistant summary", i+1, m.Role, m.Type)
		}
		var meta struct {
			Kind     Intent `json:"kind"`
			Fallback bool   `json:"fallback"`
		}
		if err := json.Unmarshal(m.Metadata, &meta); err != nil {
			t.Fatalf("metadata: %v", err)
		}
		if meta.Kind != kind || !meta.Fallback {
			t.Errorf("message %d metadata = %+v, want %s fallback", i+1, meta, kind)
		}
		if !strings.Contains(m.Content, "Rome, Italy") {
			t.Errorf("digest header should title-case the destination: %q", m.Content)
		}
		if lines := strings.Count(m.Content, "\n"); lines < 1 || lines > digestSize {
			t.Errorf("digest %q has %d lines", m.Content, lines)
		}
	}
	if msgs[3].Content != "Enjoy the pasta." {
		t.Errorf("reply = %q", msgs[3].Content)
	}

	gens, _ := store.ListGenerations(ctx, owner, trip.ID)
	if len(gens) != 1 || gens[0].Kind != domain.GenerationChat || gens[0].Status != domain.GenerationCompleted {
		t.Errorf("generations = %+v", gens)
	}
}

func TestSendUserTurnFollowsSessionTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	trip := createTrip(t, store, domain.TripInput{Destination: "Paris"})
	o := newOrchestrator(store, newAssistant(&stubLLM{reply: "Sure."}))

	first, err := o.SendUserTurn(ctx, TurnRequest{OwnerID: owner, TripID: trip.ID, Text: "Hello"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := o.SendUserTurn(ctx, TurnRequest{OwnerID: owner, SessionID: first.SessionID, Text: "Find a flight"})
	if err != nil {
		t.Fatal(err)
	}
	o.Wait()
	if second.SessionID != first.SessionID {
		t.Errorf("session changed: %s -> %s", first.SessionID, second.SessionID)
	}
	if len(second.Messages) != 3 || second.Messages[1].Type != domain.MessageSummary {
		t.Fatalf("second turn = %+v, want user, flight summary, reply", second.Messages)
	}
	if !strings.Contains(second.Messages[1].Content, "NYC") || !strings.Contains(second.Messages[1].Content, "Flights to Paris") {
		t.Errorf("flight digest = %q", second.Messages[1].Content)
	}
}

func TestSendUserTurnWithoutTrip(t *testing.T) {
	store := storage.NewMemoryStore()
	o := newOrchestrator(store, newAssistant(nil))

	res, err := o.SendUserTurn(context.Background(), TurnRequest{OwnerID: owner, Text: "Plan a weekend trip with flights"})
	if err != nil {
		t.Fatal(err)
	}
	o.Wait()
	if res.Generating {
		t.Error("generation needs a destination")
	}
	msgs := messages(t, store, res.SessionID)
	if len(msgs) != 2 || msgs[1].Role != domain.RoleAssistant || msgs[1].Content == "" {
		t.Fatalf("messages = %+v, want user and canned reply", msgs)
	}

	again, err := o.SendUserTurn(context.Background(), TurnRequest{OwnerID: owner, Text: "Plan a weekend trip with flights"})
	if err != nil {
		t.Fatal(err)
	}
	if got := messages(t, store, again.SessionID); got[1].Content != msgs[1].Content {
		t.Errorf("canned reply not deterministic: %q vs %q", got[1].Content, msgs[1].Content)
	}
}

func TestSendUserTurnHistoryWindow(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := &stubLLM{reply: "ok"}
	kw := DefaultKeywords()
	kw.HistoryWindow = 2
	o := newOrchestrator(store, newAssistant(p), WithKeywords(kw))

	res, err := o.SendUserTurn(ctx, TurnRequest{OwnerID: owner, Text: "first"})
	if err != nil {
		t.Fatal(err)
	}
	if got := p.lastCall(); len(got) != 2 {
		t.Errorf("first turn sent %d messages, want system and user", len(got))
	}
	for _, text := range []string{"second", "third"} {
		if _, err := o.SendUserTurn(ctx, TurnRequest{OwnerID: owner, SessionID: res.SessionID, Text: text}); err != nil {
			t.Fatal(err)
		}
	}
	got := p.lastCall()
	if len(got) != 4 {
		t.Fatalf("third turn sent %d messages, want system + 2 history + user: %+v", len(got), got)
	}
	if got[1].Content != "second" || got[1].Role != "user" || got[2].Role != "assistant" || got[3].Content != "third" {
		t.Errorf("messages = %+v", got)
	}
}

func TestSendUserTurnSkipsGenerationInProgress(t *testing.T) {
	store := storage.NewMemoryStore()
	trip := createTrip(t, store, domain.TripInput{Destination: "Rome"})
	o := newOrchestrator(store, newAssistant(nil))

	release, ok := o.Generator().begin(trip.ID)
	if !ok {
		t.Fatal("could not claim guard")
	}
	res, err := o.SendUserTurn(context.Background(), TurnRequest{OwnerID: owner, TripID: trip.ID, Text: "plan my trip"})
	release()
	if err != nil {
		t.Fatal(err)
	}
	o.Wait()
	if res.Generating {
		t.Error("turn started a second generation")
	}
	for _, m := range messages(t, store, res.SessionID) {
		if m.Content == generatingMessage {
			t.Error("provisional message appended while generation in progress")
		}
	}
}

// brokenHistory fails history reads.
type brokenHistory struct {
	storage.Store
}

func (brokenHistory) RecentMessages(context.Context, string, string, int) ([]domain.ChatMessage, error) {
	return nil, errors.New("connection reset")
}

func TestSendUserTurnApologizesOnFailure(t *testing.T) {
	mem := storage.NewMemoryStore()
	o := newOrchestrator(brokenHistory{mem}, newAssistant(nil))

	res, err := o.SendUserTurn(context.Background(), TurnRequest{OwnerID: owner, Text: "hello"})
	if err != nil {
		t.Fatalf("turn should succeed, got %v", err)
	}
	if !res.Degraded || len(res.Messages) != 2 || res.Messages[1].Content != apologyMessage {
		t.Errorf("result = %+v, want user message and one apology", res)
	}
	stored := messages(t, mem, res.SessionID)
	if len(stored) != 2 || stored[1].Content != apologyMessage {
		t.Errorf("stored = %+v, want user message and one apology", stored)
	}
}

// gatedLLM holds replies to the text "wait" until release is closed.
type gatedLLM struct {
	stubLLM
	entered chan struct{}
	release chan struct{}
}

func (g *gatedLLM) Complete(ctx context.Context, msgs []llm.Message, opts llm.Options) (*llm.Response, error) {
	if len(msgs) > 0 && msgs[len(msgs)-1].Content == "wait" {
		close(g.entered)
		<-g.release
	}
	return g.stubLLM.Complete(ctx, msgs, opts)
}

func TestSessionStateWithOverlappingTurns(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	gate := &gatedLLM{stubLLM: stubLLM{reply: "Sure."}, entered: make(chan struct{}), release: make(chan struct{})}
	o := newOrchestrator(store, newAssistant(gate))

	first, err := o.SendUserTurn(ctx, TurnRequest{OwnerID: owner, Text: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	sessionID := first.SessionID

	done := make(chan error, 1)
	go func() {
		_, err := o.SendUserTurn(ctx, TurnRequest{OwnerID: owner, SessionID: sessionID, Text: "wait"})
		done <- err
	}()
	<-gate.entered
	if got := o.SessionState(sessionID); got != StateAwaitingReply {
		t.Errorf("state during turn = %s, want %s", got, StateAwaitingReply)
	}

	if _, err := o.SendUserTurn(ctx, TurnRequest{OwnerID: owner, SessionID: sessionID, Text: "hi"}); err != nil {
		t.Fatal(err)
	}
	if got := o.SessionState(sessionID); got != StateAwaitingReply {
		t.Errorf("state after overlapping turn finished = %s, want %s", got, StateAwaitingReply)
	}

	close(gate.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := o.SessionState(sessionID); got != StateIdle {
		t.Errorf("state after all turns = %s, want %s", got, StateIdle)
	}
}

func TestSendUserTurnErrors(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	o := newOrchestrator(store, newAssistant(nil))

	if _, err := o.SendUserTurn(ctx, TurnRequest{Text: "hi"}); !errors.Is(err, storage.ErrNotAuthenticated) {
		t.Errorf("no owner: err = %v", err)
	}
	if _, err := o.SendUserTurn(ctx, TurnRequest{OwnerID: owner, Text: "  "}); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("blank text: err = %v", err)
	}
	if _, err := o.SendUserTurn(ctx, TurnRequest{OwnerID: owner, SessionID: "missing", Text: "hi"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing session: err = %v", err)
	}
	if _, err := o.SendUserTurn(ctx, TurnRequest{OwnerID: owner, TripID: "missing", Text: "hi"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing trip: err = %v", err)
	}
}

func TestTripContext(t *testing.T) {
	if tripContext(nil) != "" {
		t.Error("nil trip should give empty context")
	}
	trip := domain.Trip{
		Title:       "Spring break",
		Destination: "Rome",
		StartDate:   date("2024-03-15"),
		EndDate:     date("2024-03-18"),
		Travelers:   2,
		Preferences: domain.Preferences{TravelStyle: "relaxed", Interests: []string{"art", "food"}},
	}
	got := tripContext(&trip)
	for _, want := range []string{"Destination: Rome", "Dates: 2024-03-15 to 2024-03-18", "Budget: $0.00", "Travelers: 2", "Travel style: relaxed", "Interests: art, food"} {
		if !strings.Contains(got, want) {
			t.Errorf("context %q missing %q", got, want)
		}
	}
}
