package http

import (
	"net/http"

	"tripplanner/internal/domain"
	"tripplanner/internal/planning"
)

// handleChat runs one chat turn. The response carries the user message and
// the assistant reply; a started itinerary generation finishes in the
// background and is announced over the realtime feed.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, userID string) {
	if s.orchestrator == nil {
		s.writeErr(r.Context(), w, http.StatusServiceUnavailable, "chat unavailable", "")
		return
	}
	var req domain.ChatRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	res, err := s.orchestrator.SendUserTurn(r.Context(), planning.TurnRequest{
		OwnerID:   userID,
		SessionID: req.SessionID,
		TripID:    req.TripID,
		Text:      req.Message,
	})
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request, userID string) {
	sessions, err := s.store.ListSessions(r.Context(), userID)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

type sessionResponse struct {
	domain.ChatSessionWithMessages
	State planning.SessionState `json:"state"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	id := r.PathValue("id")
	sess, err := s.store.GetSession(ctx, userID, id)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	msgs, err := s.store.ListMessages(ctx, userID, id)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	resp := sessionResponse{
		ChatSessionWithMessages: domain.ChatSessionWithMessages{ChatSession: sess, Messages: msgs},
		State:                   planning.StateIdle,
	}
	if s.orchestrator != nil {
		resp.State = s.orchestrator.SessionState(id)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.store.DeleteSession(r.Context(), userID, r.PathValue("id")); err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request, userID string) {
	msgs, err := s.store.ListMessages(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}
