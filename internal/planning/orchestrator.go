package planning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tripplanner/internal/domain"
	"tripplanner/internal/gateway"
	"tripplanner/internal/observability"
	"tripplanner/internal/planning/llm"
	"tripplanner/internal/storage"
)

const (
	generatingMessage = "Let me generate a detailed itinerary for your trip. This will take a moment as I gather the best recommendations and real-time information..."
	generatedMessage  = "Perfect! I've generated your personalized itinerary. You can view it in the itinerary tab, and feel free to ask me to adjust anything."
	generateFailed    = "I encountered an issue generating your itinerary. Let me help you plan it step by step instead. What type of activities are you most interested in?"
	apologyMessage    = "I apologize, but I'm having trouble connecting to my AI services right now. Let me provide you with some general travel advice instead. Could you tell me more about your destination and travel preferences?"

	// defaultOrigin is the departure airport for flight lookups from chat.
	defaultOrigin = "NYC"

	defaultGenerationTimeout = 2 * time.Minute
)

// Assistant is the provider surface a chat turn uses.
type Assistant interface {
	Drafter
	Chat(ctx context.Context, req gateway.ChatRequest) gateway.Result[string]
	SearchFlights(ctx context.Context, q gateway.FlightQuery) gateway.Result[[]domain.Flight]
	SearchHotels(ctx context.Context, q gateway.HotelQuery) gateway.Result[[]domain.Hotel]
	Restaurants(ctx context.Context, location string) gateway.Result[[]domain.Restaurant]
	Weather(ctx context.Context, location string) gateway.Result[domain.Weather]
}

var _ Assistant = (*gateway.Gateway)(nil)

// SessionState is where a chat session is in its turn cycle.
type SessionState string

const (
	StateIdle          SessionState = "idle"
	StateAwaitingReply SessionState = "awaiting-assistant-reply"
)

// TurnRequest is one user chat turn.
type TurnRequest struct {
	OwnerID   string
	SessionID string // empty starts a new session
	TripID    string
	Text      string
}

// TurnResult is what a turn appended synchronously.
type TurnResult struct {
	SessionID string               `json:"session_id"`
	Messages  []domain.ChatMessage `json:"messages"`
	// Generating is set when an itinerary generation was started.
	Generating bool `json:"generating"`
	// Degraded is set when the reply is the apology message.
	Degraded bool `json:"degraded"`
}

// Orchestrator runs chat turns: data lookups, the assistant reply and
// itinerary generation.
type Orchestrator struct {
	store     storage.Store
	assistant Assistant
	detector  IntentDetector
	generator *Generator
	keywords  Keywords
	logger    observability.Logger
	metrics   *observability.Metrics
	now       func() time.Time

	generationTimeout time.Duration

	mu sync.Mutex
	// inflight counts turns awaiting a reply per session.
	inflight map[string]int
	wg       sync.WaitGroup
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithDetector replaces the keyword detector.
func WithDetector(d IntentDetector) OrchestratorOption {
	return func(o *Orchestrator) { o.detector = d }
}

// WithKeywords sets the keyword sets and history window.
func WithKeywords(kw Keywords) OrchestratorOption {
	return func(o *Orchestrator) { o.keywords = kw }
}

// WithGenerationTimeout bounds detached generations.
func WithGenerationTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.generationTimeout = d }
}

// WithClock overrides the clock used for lookup dates.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an Orchestrator. gen may be shared with the HTTP
// handlers so both paths honour the same regeneration guard.
func NewOrchestrator(store storage.Store, assistant Assistant, gen *Generator, logger observability.Logger, metrics *observability.Metrics, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	o := &Orchestrator{
		store:             store,
		assistant:         assistant,
		generator:         gen,
		keywords:          DefaultKeywords(),
		logger:            logger.WithComponent("orchestrator"),
		metrics:           metrics,
		now:               time.Now,
		generationTimeout: defaultGenerationTimeout,
		inflight:          make(map[string]int),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.detector == nil {
		o.detector = NewKeywordDetector(o.keywords)
	}
	if o.generator == nil {
		o.generator = NewGenerator(store, assistant, logger, metrics)
	}
	return o
}

// Generator returns the itinerary generator the orchestrator uses.
func (o *Orchestrator) Generator() *Generator { return o.generator }

// SessionState reports the session's turn state. A session stays in
// StateAwaitingReply until every overlapping turn on it has finished.
func (o *Orchestrator) SessionState(sessionID string) SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight[sessionID] > 0 {
		return StateAwaitingReply
	}
	return StateIdle
}

func (o *Orchestrator) beginTurn(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inflight[sessionID]++
}

func (o *Orchestrator) endTurn(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight[sessionID] <= 1 {
		delete(o.inflight, sessionID)
		return
	}
	o.inflight[sessionID]--
}

// Wait blocks until every detached generation has finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// turn carries the state of one SendUserTurn call.
type turn struct {
	req     TurnRequest
	userMsg domain.ChatMessage
	tripID  string
	trip    *domain.Trip
	result  *TurnResult
}

func (t *turn) destination() string {
	if t.trip == nil {
		return ""
	}
	return strings.TrimSpace(t.trip.Destination)
}

// SendUserTurn appends the user's message and answers it. Only a failure to
// store the user's message is returned; later failures produce an apology
// message and a successful turn.
func (o *Orchestrator) SendUserTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return TurnResult{}, fmt.Errorf("message text is required: %w", storage.ErrValidation)
	}
	userMsg, err := o.store.AppendMessage(ctx, req.OwnerID, domain.MessageInput{
		SessionID: req.SessionID,
		TripID:    req.TripID,
		Role:      domain.RoleUser,
		Content:   req.Text,
		Type:      domain.MessageText,
	})
	if err != nil {
		return TurnResult{}, err
	}
	res := TurnResult{SessionID: userMsg.SessionID, Messages: []domain.ChatMessage{userMsg}}
	logger := o.logger.With("session_id", userMsg.SessionID)

	o.beginTurn(userMsg.SessionID)
	defer o.endTurn(userMsg.SessionID)

	t := &turn{req: req, userMsg: userMsg, tripID: req.TripID, result: &res}
	reply, err := o.answer(ctx, t)
	if err != nil {
		logger.ErrorContext(ctx, "chat turn failed", "error", err)
		res.Degraded = true
		o.metrics.RecordChatTurn("degraded")
		if _, err := o.appendAssistant(ctx, t, apologyMessage, domain.MessageText, nil); err != nil {
			logger.ErrorContext(ctx, "store apology", "error", err)
		}
		return res, nil
	}
	o.metrics.RecordChatTurn("reply")

	if t.destination() != "" && o.detector.WantsItinerary(req.Text, reply) {
		o.startGeneration(ctx, t)
	}
	return res, nil
}

// answer runs the lookups, composes the reply and stores it.
func (o *Orchestrator) answer(ctx context.Context, t *turn) (string, error) {
	sess, err := o.store.GetSession(ctx, t.req.OwnerID, t.userMsg.SessionID)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if sess.TripID != "" {
		t.tripID = sess.TripID
	}
	if t.tripID != "" {
		trip, err := o.store.GetTrip(ctx, t.req.OwnerID, t.tripID)
		if err != nil {
			return "", fmt.Errorf("load trip: %w", err)
		}
		t.trip = &trip
	}

	window := o.keywords.HistoryWindow
	recent, err := o.store.RecentMessages(ctx, t.req.OwnerID, t.userMsg.SessionID, window+1)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	history := make([]llm.Message, 0, len(recent))
	priorReply := ""
	for _, m := range recent {
		if m.ID == t.userMsg.ID {
			continue
		}
		history = append(history, llm.Message{Role: string(m.Role), Content: m.Content})
		if m.Role == domain.RoleAssistant {
			priorReply = m.Content
		}
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}

	if dest := t.destination(); dest != "" {
		for _, intent := range o.detector.DataIntents(t.req.Text, priorReply) {
			if err := o.lookup(ctx, t, intent); err != nil {
				return "", err
			}
		}
	}

	reply := o.assistant.Chat(ctx, gateway.ChatRequest{
		Message: t.req.Text,
		History: history,
		Context: tripContext(t.trip),
	})
	o.recordChat(ctx, t, reply)
	if _, err := o.appendAssistant(ctx, t, reply.Data, domain.MessageText, nil); err != nil {
		return "", fmt.Errorf("store reply: %w", err)
	}
	return reply.Data, nil
}

// lookup calls the provider for intent and stores a digest when there are
// results.
func (o *Orchestrator) lookup(ctx context.Context, t *turn, intent Intent) error {
	dest := t.destination()
	var (
		content  string
		fallback bool
	)
	switch intent {
	case IntentFlights:
		r := o.assistant.SearchFlights(ctx, gateway.FlightQuery{
			Origin:        defaultOrigin,
			Destination:   cityCode(dest),
			DepartureDate: o.startDate(t.trip),
			Adults:        t.trip.Travelers,
		})
		if len(r.Data) > 0 {
			content, fallback = flightDigest(dest, r.Data), r.Fallback
		}
	case IntentHotels:
		checkIn := o.startDate(t.trip)
		checkOut := o.now().AddDate(0, 0, 7).Format("2006-01-02")
		if t.trip.EndDate != nil {
			checkOut = t.trip.EndDate.Format("2006-01-02")
		}
		r := o.assistant.SearchHotels(ctx, gateway.HotelQuery{CityCode: cityCode(dest), CheckIn: checkIn, CheckOut: checkOut})
		if len(r.Data) > 0 {
			content, fallback = hotelDigest(dest, r.Data), r.Fallback
		}
	case IntentRestaurants:
		r := o.assistant.Restaurants(ctx, dest)
		if len(r.Data) > 0 {
			content, fallback = restaurantDigest(dest, r.Data), r.Fallback
		}
	case IntentWeather:
		r := o.assistant.Weather(ctx, dest)
		if r.Data.Current.Condition != "" || len(r.Data.Forecast) > 0 {
			content, fallback = weatherDigest(dest, r.Data), r.Fallback
		}
	}
	if content == "" {
		return nil
	}
	meta, _ := json.Marshal(map[string]any{"kind": intent, "fallback": fallback})
	if _, err := o.appendAssistant(ctx, t, content, domain.MessageSummary, meta); err != nil {
		return fmt.Errorf("store %s summary: %w", intent, err)
	}
	return nil
}

func (o *Orchestrator) startDate(trip *domain.Trip) string {
	if trip != nil && trip.StartDate != nil {
		return trip.StartDate.Format("2006-01-02")
	}
	return o.now().Format("2006-01-02")
}

// cityCode guesses an IATA city code from the first three letters of the
// city name.
func cityCode(destination string) string {
	city, _, _ := strings.Cut(destination, ",")
	letters := make([]rune, 0, 3)
	for _, r := range strings.ToUpper(strings.TrimSpace(city)) {
		if r >= 'A' && r <= 'Z' {
			letters = append(letters, r)
		}
		if len(letters) == 3 {
			break
		}
	}
	return string(letters)
}

// tripContext summarises the trip for the assistant.
func tripContext(trip *domain.Trip) string {
	if trip == nil {
		return ""
	}
	parts := []string{"Trip: " + trip.Title}
	if trip.Destination != "" {
		parts = append(parts, "Destination: "+trip.Destination)
	}
	if trip.StartDate != nil && trip.EndDate != nil {
		parts = append(parts, fmt.Sprintf("Dates: %s to %s", trip.StartDate.Format("2006-01-02"), trip.EndDate.Format("2006-01-02")))
	}
	parts = append(parts, "Budget: $"+trip.Budget.StringFixed(2), fmt.Sprintf("Travelers: %d", trip.Travelers))
	p := trip.Preferences
	if p.BudgetTier != "" {
		parts = append(parts, "Budget tier: "+p.BudgetTier)
	}
	if p.TravelStyle != "" {
		parts = append(parts, "Travel style: "+p.TravelStyle)
	}
	if len(p.Interests) > 0 {
		parts = append(parts, "Interests: "+strings.Join(p.Interests, ", "))
	}
	if len(p.DietaryRestrictions) > 0 {
		parts = append(parts, "Dietary restrictions: "+strings.Join(p.DietaryRestrictions, ", "))
	}
	if p.AccommodationType != "" {
		parts = append(parts, "Accommodation: "+p.AccommodationType)
	}
	if p.TransportPreference != "" {
		parts = append(parts, "Transport: "+p.TransportPreference)
	}
	return strings.Join(parts, "; ")
}

func (o *Orchestrator) appendAssistant(ctx context.Context, t *turn, content string, typ domain.MessageType, meta json.RawMessage) (domain.ChatMessage, error) {
	msg, err := o.store.AppendMessage(ctx, t.req.OwnerID, domain.MessageInput{
		SessionID: t.userMsg.SessionID,
		Role:      domain.RoleAssistant,
		Content:   content,
		Type:      typ,
		Metadata:  meta,
	})
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if t.result != nil {
		t.result.Messages = append(t.result.Messages, msg)
	}
	return msg, nil
}

// recordChat logs the reply in the generation log when the turn belongs to
// a trip.
func (o *Orchestrator) recordChat(ctx context.Context, t *turn, reply gateway.Result[string]) {
	if t.trip == nil {
		return
	}
	status := domain.GenerationCompleted
	if reply.Fallback {
		status = domain.GenerationFallback
	}
	input, _ := json.Marshal(map[string]string{"message": t.req.Text, "session_id": t.userMsg.SessionID})
	output, _ := json.Marshal(map[string]string{"reply": reply.Data})
	_, err := o.store.RecordGeneration(ctx, domain.GenerationRecord{
		OwnerID: t.req.OwnerID,
		TripID:  t.trip.ID,
		Kind:    domain.GenerationChat,
		Input:   input,
		Output:  output,
		Status:  status,
		Error:   reply.Reason,
	})
	if err != nil {
		o.logger.WarnContext(ctx, "record chat generation", "error", err)
	}
}

// startGeneration posts the provisional message and generates the
// itinerary in the background. It does nothing when the trip is already
// regenerating.
func (o *Orchestrator) startGeneration(ctx context.Context, t *turn) {
	release, ok := o.generator.begin(t.trip.ID)
	if !ok {
		return
	}
	if _, err := o.appendAssistant(ctx, t, generatingMessage, domain.MessageText, nil); err != nil {
		release()
		o.logger.ErrorContext(ctx, "store generating message", "error", err)
		return
	}
	t.result.Generating = true

	bg := *t
	bg.result = nil
	hint := DurationHint(t.req.Text)
	detached := context.WithoutCancel(ctx)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer release()
		ctx, cancel := context.WithTimeout(detached, o.generationTimeout)
		defer cancel()

		text := generatedMessage
		if _, err := o.generator.run(ctx, t.req.OwnerID, t.trip.ID, hint); err != nil {
			o.logger.ErrorContext(ctx, "background generation failed", "trip_id", t.trip.ID, "error", err)
			text = generateFailed
		}
		// The session may have been deleted meanwhile.
		if _, err := o.appendAssistant(ctx, &bg, text, domain.MessageText, nil); err != nil && !errors.Is(err, storage.ErrNotFound) {
			o.logger.ErrorContext(ctx, "store generation outcome", "trip_id", t.trip.ID, "error", err)
		}
	}()
}
