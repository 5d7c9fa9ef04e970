package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tripplanner/internal/domain"
	"tripplanner/internal/observability"
	"tripplanner/internal/storage"
)

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.C:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNone(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestFilterMatch(t *testing.T) {
	trip := Event{Table: TableTrips, OwnerID: "u1"}
	msg := Event{Table: TableChatMessages, OwnerID: "u1", SessionID: "s1"}
	tests := []struct {
		name string
		f    Filter
		ev   Event
		want bool
	}{
		{"own trip", Filter{Table: TableTrips, OwnerID: "u1"}, trip, true},
		{"other owner", Filter{Table: TableTrips, OwnerID: "u2"}, trip, false},
		{"wrong table", Filter{Table: TableChatMessages, OwnerID: "u1", SessionID: "s1"}, trip, false},
		{"own session", Filter{Table: TableChatMessages, OwnerID: "u1", SessionID: "s1"}, msg, true},
		{"other session", Filter{Table: TableChatMessages, OwnerID: "u1", SessionID: "s2"}, msg, false},
	}
	for _, tt := range tests {
		if got := tt.f.Match(tt.ev); got != tt.want {
			t.Errorf("%s: Match = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestHubFanOutAndClose(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe(Filter{Table: TableTrips, OwnerID: "u1"})
	b := hub.Subscribe(Filter{Table: TableTrips, OwnerID: "u2"})
	if hub.Subscribers() != 2 {
		t.Fatalf("subscribers = %d", hub.Subscribers())
	}

	hub.Publish(Event{Table: TableTrips, Type: Insert, OwnerID: "u1"})
	if ev := recv(t, a); ev.Type != Insert || ev.At.IsZero() {
		t.Errorf("event = %+v", ev)
	}
	assertNone(t, b)

	a.Close()
	a.Close()
	if _, ok := <-a.C; ok {
		t.Error("channel should be closed")
	}
	if hub.Subscribers() != 1 {
		t.Errorf("subscribers = %d after close", hub.Subscribers())
	}
	hub.Publish(Event{Table: TableTrips, Type: Insert, OwnerID: "u1"})
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewHub()
	dropped := 0
	hub.OnDrop(func() { dropped++ })
	sub := hub.Subscribe(Filter{Table: TableTrips, OwnerID: "u1"})
	defer sub.Close()
	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(Event{Table: TableTrips, Type: Update, OwnerID: "u1"})
	}
	if dropped != 5 {
		t.Errorf("dropped = %d, want 5", dropped)
	}
}

func TestNotifyingStore(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	store := NewNotifyingStore(storage.NewMemoryStore(), hub)
	trips := hub.Subscribe(Filter{Table: TableTrips, OwnerID: "u1"})
	defer trips.Close()

	trip, err := store.CreateTrip(ctx, "u1", domain.TripInput{Destination: "Rome"})
	if err != nil {
		t.Fatal(err)
	}
	if ev := recv(t, trips); ev.Type != Insert || ev.Record.(domain.Trip).ID != trip.ID {
		t.Errorf("create event = %+v", ev)
	}

	title := "Rome again"
	if _, err := store.UpdateTrip(ctx, "u1", trip.ID, domain.TripPatch{Title: &title}); err != nil {
		t.Fatal(err)
	}
	if ev := recv(t, trips); ev.Type != Update {
		t.Errorf("update event = %+v", ev)
	}

	if err := store.ReplaceItinerary(ctx, "u1", trip.ID, []domain.DayPlan{{Day: 1}}); err != nil {
		t.Fatal(err)
	}
	if ev := recv(t, trips); ev.Type != Update || len(ev.Record.(domain.Trip).Itinerary) != 1 {
		t.Errorf("itinerary event = %+v", ev)
	}

	if _, err := store.CreateTrip(ctx, "u1", domain.TripInput{Travelers: -1}); err == nil {
		t.Fatal("expected validation error")
	}
	assertNone(t, trips)

	msg, err := store.AppendMessage(ctx, "u1", domain.MessageInput{TripID: trip.ID, Role: domain.RoleUser, Content: "hi", Type: domain.MessageText})
	if err != nil {
		t.Fatal(err)
	}
	msgs := hub.Subscribe(Filter{Table: TableChatMessages, OwnerID: "u1", SessionID: msg.SessionID})
	defer msgs.Close()
	if _, err := store.AppendMessage(ctx, "u1", domain.MessageInput{SessionID: msg.SessionID, Role: domain.RoleAssistant, Content: "hello", Type: domain.MessageText}); err != nil {
		t.Fatal(err)
	}
	if ev := recv(t, msgs); ev.Table != TableChatMessages || ev.Record.(domain.ChatMessage).Content != "hello" {
		t.Errorf("message event = %+v", ev)
	}

	if err := store.DeleteTrip(ctx, "u1", trip.ID); err != nil {
		t.Fatal(err)
	}
	if ev := recv(t, trips); ev.Type != Delete {
		t.Errorf("delete event = %+v", ev)
	}
}

func newWSServer(t *testing.T) (*httptest.Server, *NotifyingStore, *Hub) {
	t.Helper()
	hub := NewHub()
	store := NewNotifyingStore(storage.NewMemoryStore(), hub)
	identify := func(r *http.Request) string { return r.Header.Get("X-User") }
	h := NewHandler(hub, store, identify, nil, observability.Discard(), observability.NewMetrics(observability.DefaultMetricsConfig()))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, store, hub
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
}

func TestWebSocketTripEvents(t *testing.T) {
	srv, store, _ := newWSServer(t)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "table=trips"), http.Header{"X-User": {"u1"}})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	trip, err := store.CreateTrip(context.Background(), "u1", domain.TripInput{Destination: "Oslo"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateTrip(context.Background(), "u2", domain.TripInput{Destination: "Bergen"}); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Table  string      `json:"table"`
		Type   string      `json:"type"`
		Record domain.Trip `json:"record"`
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Table != TableTrips || got.Type != Insert || got.Record.ID != trip.ID {
		t.Errorf("event = %+v", got)
	}
}

func TestWebSocketRejections(t *testing.T) {
	srv, store, _ := newWSServer(t)
	other, err := store.CreateSession(context.Background(), "u2", "", "theirs")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		user   string
		query  string
		status int
	}{
		{"anonymous", "", "table=trips", http.StatusUnauthorized},
		{"unknown table", "u1", "table=profiles", http.StatusBadRequest},
		{"missing session", "u1", "table=chat_messages", http.StatusBadRequest},
		{"foreign session", "u1", "table=chat_messages&session_id=" + other.ID, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, tt.query), http.Header{"X-User": {tt.user}})
			if err == nil {
				t.Fatal("expected dial to fail")
			}
			if resp == nil || resp.StatusCode != tt.status {
				t.Fatalf("response = %v, want %d", resp, tt.status)
			}
			var body map[string]string
			_ = json.NewDecoder(resp.Body).Decode(&body)
			if body["error"] == "" {
				t.Error("missing error body")
			}
		})
	}
}
