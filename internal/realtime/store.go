package realtime

import (
	"context"

	"tripplanner/internal/domain"
	"tripplanner/internal/storage"
)

// NotifyingStore publishes trip and chat message changes to a Hub after
// they are stored.
type NotifyingStore struct {
	storage.Store
	hub *Hub
}

// NewNotifyingStore wraps s.
func NewNotifyingStore(s storage.Store, hub *Hub) *NotifyingStore {
	return &NotifyingStore{Store: s, hub: hub}
}

var _ storage.Store = (*NotifyingStore)(nil)

func (n *NotifyingStore) tripEvent(typ, ownerID string, record any) {
	n.hub.Publish(Event{Table: TableTrips, Type: typ, OwnerID: ownerID, Record: record})
}

func (n *NotifyingStore) CreateTrip(ctx context.Context, ownerID string, in domain.TripInput) (domain.Trip, error) {
	t, err := n.Store.CreateTrip(ctx, ownerID, in)
	if err == nil {
		n.tripEvent(Insert, ownerID, t)
	}
	return t, err
}

func (n *NotifyingStore) UpdateTrip(ctx context.Context, ownerID, tripID string, patch domain.TripPatch) (domain.Trip, error) {
	t, err := n.Store.UpdateTrip(ctx, ownerID, tripID, patch)
	if err == nil {
		n.tripEvent(Update, ownerID, t)
	}
	return t, err
}

func (n *NotifyingStore) ReplaceItinerary(ctx context.Context, ownerID, tripID string, days []domain.DayPlan) error {
	if err := n.Store.ReplaceItinerary(ctx, ownerID, tripID, days); err != nil {
		return err
	}
	if t, err := n.Store.GetTrip(ctx, ownerID, tripID); err == nil {
		n.tripEvent(Update, ownerID, t)
	}
	return nil
}

func (n *NotifyingStore) DeleteTrip(ctx context.Context, ownerID, tripID string) error {
	if err := n.Store.DeleteTrip(ctx, ownerID, tripID); err != nil {
		return err
	}
	n.tripEvent(Delete, ownerID, map[string]string{"id": tripID})
	return nil
}

func (n *NotifyingStore) AppendMessage(ctx context.Context, ownerID string, in domain.MessageInput) (domain.ChatMessage, error) {
	m, err := n.Store.AppendMessage(ctx, ownerID, in)
	if err == nil {
		n.hub.Publish(Event{Table: TableChatMessages, Type: Insert, OwnerID: ownerID, SessionID: m.SessionID, Record: m})
	}
	return m, err
}
