package domain

import (
	"encoding/json"
	"time"
)

// GenerationKind is what an AI generation produced.
type GenerationKind string

const (
	GenerationItinerary GenerationKind = "itinerary"
	GenerationChat      GenerationKind = "chat"
)

// GenerationStatus is the outcome of an AI generation.
type GenerationStatus string

const (
	GenerationCompleted GenerationStatus = "completed"
	GenerationFallback  GenerationStatus = "fallback"
	GenerationFailed    GenerationStatus = "failed"
)

// GenerationRecord logs one AI generation request and its result.
type GenerationRecord struct {
	ID        string           `json:"id"`
	OwnerID   string           `json:"owner_id"`
	TripID    string           `json:"trip_id,omitempty"`
	Kind      GenerationKind   `json:"kind"`
	Input     json.RawMessage  `json:"input,omitempty"`
	Output    json.RawMessage  `json:"output,omitempty"`
	Status    GenerationStatus `json:"status"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
