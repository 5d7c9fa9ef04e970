package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tripplanner/internal/planning/llm"
)

const chatSystemPrompt = `You are TravelHelperAI, an expert travel planning assistant.
Provide helpful, personalized travel advice and ask relevant follow-up questions to better understand the traveler's needs.
Focus on budget optimization, safety considerations, local experiences, practical travel tips and real-time considerations such as weather and events.
Keep responses conversational and engaging.`

// ChatRequest is one assistant reply request.
type ChatRequest struct {
	Message string        `json:"message"`
	History []llm.Message `json:"history,omitempty"` // oldest first
	Context string        `json:"context,omitempty"` // trip summary and preferences
}

func (g *Gateway) complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	if g.llm == nil || !g.llm.Available() {
		return "", fmt.Errorf("llm: %w", ErrCredentialsMissing)
	}
	resp, err := g.llm.Complete(ctx, messages, opts)
	if err != nil {
		var se *llm.StatusError
		if errors.As(err, &se) {
			return "", &statusError{Provider: g.llm.Name(), Code: se.StatusCode, Body: se.Body}
		}
		return "", fmt.Errorf("%s: %w: %v", g.llm.Name(), ErrUpstreamUnavailable, err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", malformed(g.llm.Name(), errors.New("empty completion"))
	}
	return text, nil
}

// Chat composes an assistant reply. Without a provider the reply is one of
// three canned answers picked by the message text.
func (g *Gateway) Chat(ctx context.Context, req ChatRequest) Result[string] {
	return fetch(ctx, g, KindGenerativeChat, "", 0, func(ctx context.Context) (string, error) {
		system := chatSystemPrompt
		if req.Context != "" {
			system += "\n\nContext: " + req.Context
		}
		msgs := make([]llm.Message, 0, len(req.History)+2)
		msgs = append(msgs, llm.Message{Role: "system", Content: system})
		msgs = append(msgs, req.History...)
		msgs = append(msgs, llm.Message{Role: "user", Content: req.Message})
		return g.complete(ctx, msgs, llm.Options{})
	}, func() string { return cannedReply(req.Message) })
}

// ItineraryRequest describes the trip an itinerary is drafted for.
type ItineraryRequest struct {
	Destination string   `json:"destination"`
	Duration    int      `json:"duration"` // days
	Budget      string   `json:"budget"`
	Travelers   int      `json:"travelers"`
	StartDate   string   `json:"start_date,omitempty"`
	Interests   []string `json:"interests,omitempty"`
	TravelStyle string   `json:"travel_style,omitempty"`
}

// Prompt renders the itinerary instructions sent to the model.
func (r ItineraryRequest) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a detailed day-by-day travel itinerary for:\n")
	fmt.Fprintf(&b, "- Destination: %s\n", r.Destination)
	fmt.Fprintf(&b, "- Duration: %d days\n", r.Duration)
	if r.StartDate != "" {
		fmt.Fprintf(&b, "- Start date: %s\n", r.StartDate)
	}
	fmt.Fprintf(&b, "- Budget: $%s\n", r.Budget)
	fmt.Fprintf(&b, "- Travelers: %d\n", r.Travelers)
	fmt.Fprintf(&b, "- Interests: %s\n", strings.Join(r.Interests, ", "))
	fmt.Fprintf(&b, "- Travel Style: %s\n\n", r.TravelStyle)
	b.WriteString(`Include daily activities with specific times, restaurant recommendations for each meal, transportation between locations, estimated costs for each activity, and safety tips.

Respond with a single JSON object of this shape and nothing else:
{"days":[{"day":1,"date":"YYYY-MM-DD","notes":"...","budget":0,"activities":[{"name":"...","type":"attraction|experience|tour|rest|meal|transport","description":"...","time_slot":"09:00-12:00","duration":180,"cost":0,"rating":4.5,"location":{"name":"...","address":"...","lat":0,"lng":0},"tips":["..."]}]}]}`)
	return b.String()
}

// DraftItinerary asks the model for an itinerary and returns its raw text.
// The fallback is empty text; callers substitute their own template.
func (g *Gateway) DraftItinerary(ctx context.Context, req ItineraryRequest) Result[string] {
	return fetch(ctx, g, KindGenerativeItinerary, "", 0, func(ctx context.Context) (string, error) {
		msgs := []llm.Message{
			{Role: "system", Content: "You are an expert travel planner that answers in JSON."},
			{Role: "user", Content: req.Prompt()},
		}
		return g.complete(ctx, msgs, llm.Options{JSON: true})
	}, func() string { return "" })
}
