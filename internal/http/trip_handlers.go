package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"tripplanner/internal/billing"
	"tripplanner/internal/domain"
	"tripplanner/internal/export"
)

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request, userID string) {
	trips, err := s.store.ListTrips(r.Context(), userID)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, trips)
}

// handleCreateTrip creates a trip, subject to the plan's monthly quota.
func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request, userID string) {
	var in domain.TripInput
	if !s.decodeJSON(w, r, &in) {
		return
	}
	var (
		trip domain.Trip
		err  error
	)
	if s.billing != nil {
		trip, err = s.billing.CreateTrip(r.Context(), userID, in)
	} else {
		trip, err = s.store.CreateTrip(r.Context(), userID, in)
	}
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/trips/"+trip.ID)
	writeJSON(w, http.StatusCreated, trip)
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request, userID string) {
	trip, err := s.store.GetTrip(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (s *Server) handleUpdateTrip(w http.ResponseWriter, r *http.Request, userID string) {
	var patch domain.TripPatch
	if !s.decodeJSON(w, r, &patch) {
		return
	}
	trip, err := s.store.UpdateTrip(r.Context(), userID, r.PathValue("id"), patch)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (s *Server) handleDeleteTrip(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.store.DeleteTrip(r.Context(), userID, r.PathValue("id")); err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGenerateItinerary regenerates the trip's itinerary and waits for
// the result. A generation already running for the trip yields 409.
func (s *Server) handleGenerateItinerary(w http.ResponseWriter, r *http.Request, userID string) {
	if s.generator == nil {
		s.writeErr(r.Context(), w, http.StatusServiceUnavailable, "itinerary generation unavailable", "")
		return
	}
	res, err := s.generator.Generate(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListGenerations(w http.ResponseWriter, r *http.Request, userID string) {
	tripID := r.PathValue("id")
	if _, err := s.store.GetTrip(r.Context(), userID, tripID); err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	recs, err := s.store.ListGenerations(r.Context(), userID, tripID)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

type shareResponse struct {
	ShareID string `json:"share_id"`
	URL     string `json:"url"`
}

// handleShareTrip gives the trip a public share id. Sharing an already
// shared trip returns the existing link.
func (s *Server) handleShareTrip(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	if !s.allowed(w, r, userID, billing.FeatureSharing) {
		return
	}
	trip, err := s.store.GetTrip(ctx, userID, r.PathValue("id"))
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if trip.ShareID == "" {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")
		trip, err = s.store.UpdateTrip(ctx, userID, trip.ID, domain.TripPatch{ShareID: &id})
		if err != nil {
			s.writeStoreErr(ctx, w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, shareResponse{ShareID: trip.ShareID, URL: s.shareURL(trip.ShareID)})
}

func (s *Server) handleSharedTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := s.store.GetTripByShareID(r.Context(), r.PathValue("shareID"))
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	// The owner is not disclosed to viewers of a shared link.
	trip.OwnerID = ""
	writeJSON(w, http.StatusOK, trip)
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	if !s.allowed(w, r, userID, billing.FeaturePDFExport) {
		return
	}
	trip, err := s.store.GetTrip(ctx, userID, r.PathValue("id"))
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	var opts export.PDFOptions
	if trip.ShareID != "" {
		opts.ShareURL = s.shareURL(trip.ShareID)
	}
	doc, err := export.PDF(trip, opts)
	if err != nil {
		s.writeErr(ctx, w, http.StatusInternalServerError, "failed to render pdf", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, exportName(trip)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (s *Server) handleExportICal(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	trip, err := s.store.GetTrip(ctx, userID, r.PathValue("id"))
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	cal, err := export.ICal(trip, export.ICalOptions{Zones: s.zones, Now: s.now()})
	if err != nil {
		if errors.Is(err, export.ErrUndated) {
			s.writeErr(ctx, w, http.StatusUnprocessableEntity, err.Error(), "set the trip start date to export a calendar")
			return
		}
		s.writeErr(ctx, w, http.StatusInternalServerError, "failed to render calendar", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ics"`, exportName(trip)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(cal))
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request, userID string) {
	stats, err := s.store.TripStats(r.Context(), userID)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// allowed writes 402 and returns false when the user's plan lacks f.
func (s *Server) allowed(w http.ResponseWriter, r *http.Request, userID string, f billing.Feature) bool {
	if s.billing == nil {
		return true
	}
	if err := s.billing.Require(r.Context(), userID, f); err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return false
	}
	return true
}

func (s *Server) shareURL(shareID string) string {
	return strings.TrimRight(s.cfg.PublicURL, "/") + "/shared/" + shareID
}

// exportName is a filename-safe version of the trip title.
func exportName(t domain.Trip) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		default:
			return -1
		}
	}, t.Title)
	if name == "" {
		return "trip"
	}
	return name
}
