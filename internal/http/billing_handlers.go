package http

import (
	"io"
	"net/http"
)

const webhookSignatureHeader = "Stripe-Signature"

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	if s.billing == nil {
		s.writeErr(r.Context(), w, http.StatusServiceUnavailable, "billing unavailable", "")
		return
	}
	writeJSON(w, http.StatusOK, s.billing.Catalog().Plans())
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	if s.billing == nil {
		s.writeErr(ctx, w, http.StatusServiceUnavailable, "billing unavailable", "")
		return
	}
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	sess, err := s.billing.Checkout(ctx, profile)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handlePortal(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	if s.billing == nil {
		s.writeErr(ctx, w, http.StatusServiceUnavailable, "billing unavailable", "")
		return
	}
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	sess, err := s.billing.Portal(ctx, profile)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	if s.billing == nil {
		s.writeErr(ctx, w, http.StatusServiceUnavailable, "billing unavailable", "")
		return
	}
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.billing.Subscription(ctx, profile))
}

// handleWebhook applies a signed payment provider event. The raw body is
// needed for signature verification, so it is read before any decoding.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.billing == nil {
		s.writeErr(ctx, w, http.StatusServiceUnavailable, "billing unavailable", "")
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeErr(ctx, w, http.StatusBadRequest, "failed to read body", err.Error())
		return
	}
	ev, err := s.billing.HandleWebhook(ctx, payload, r.Header.Get(webhookSignatureHeader), s.now())
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"received": ev.Type})
}
