package planning

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tripplanner/internal/domain"
	"tripplanner/internal/gateway"
	"tripplanner/internal/observability"
	"tripplanner/internal/planning/llm"
	"tripplanner/internal/storage"
)

const owner = "user-1"

// stubLLM answers every completion with the same text.
type stubLLM struct {
	mu    sync.Mutex
	reply string
	calls [][]llm.Message
}

func (s *stubLLM) Complete(_ context.Context, msgs []llm.Message, _ llm.Options) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, msgs)
	return &llm.Response{Content: s.reply}, nil
}

func (s *stubLLM) StreamComplete(context.Context, []llm.Message, llm.Options) (<-chan llm.StreamEvent, error) {
	return nil, errors.New("not implemented")
}

func (s *stubLLM) Name() string    { return "stub" }
func (s *stubLLM) Available() bool { return true }

// lastCall returns the messages of the most recent chat completion.
func (s *stubLLM) lastCall() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

// assistant is a credential-less gateway whose itinerary drafts can be
// replaced.
type assistant struct {
	*gateway.Gateway
	draft func(ctx context.Context, req gateway.ItineraryRequest) gateway.Result[string]
}

func (a *assistant) DraftItinerary(ctx context.Context, req gateway.ItineraryRequest) gateway.Result[string] {
	if a.draft != nil {
		return a.draft(ctx, req)
	}
	return a.Gateway.DraftItinerary(ctx, req)
}

func newAssistant(p llm.Provider) *assistant {
	opts := []gateway.Option{gateway.WithLogger(observability.Discard())}
	if p != nil {
		opts = append(opts, gateway.WithLLM(p))
	}
	return &assistant{Gateway: gateway.New(gateway.Config{}, opts...)}
}

func draftText(text string) func(context.Context, gateway.ItineraryRequest) gateway.Result[string] {
	return func(context.Context, gateway.ItineraryRequest) gateway.Result[string] {
		return gateway.Result[string]{Kind: gateway.KindGenerativeItinerary, Data: text}
	}
}

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func money(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func createTrip(t *testing.T, store storage.Store, in domain.TripInput) domain.Trip {
	t.Helper()
	trip, err := store.CreateTrip(context.Background(), owner, in)
	if err != nil {
		t.Fatalf("CreateTrip: %v", err)
	}
	return trip
}

func assertContiguous(t *testing.T, days []domain.DayPlan, want int) {
	t.Helper()
	if len(days) != want {
		t.Fatalf("itinerary has %d days, want %d", len(days), want)
	}
	for i, d := range days {
		if d.Day != i+1 {
			t.Errorf("days[%d].Day = %d, want %d", i, d.Day, i+1)
		}
	}
}
