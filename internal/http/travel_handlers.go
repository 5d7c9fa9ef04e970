package http

import (
	"fmt"
	"net/http"

	"github.com/samber/lo"

	"tripplanner/internal/gateway"
)

// handleTravel proxies a data lookup to the provider gateway. Query
// parameters are passed through; the first value of each wins. Lookups
// never fail on provider trouble: the response is then the fallback
// payload with fallback set.
func (s *Server) handleTravel(w http.ResponseWriter, r *http.Request, _ string) {
	ctx := r.Context()
	if s.travel == nil {
		s.writeErr(ctx, w, http.StatusServiceUnavailable, "travel lookups unavailable", "")
		return
	}
	kind := gateway.Kind(r.PathValue("kind"))
	if !lo.Contains(gateway.DataKinds, kind) {
		s.writeStoreErr(ctx, w, fmt.Errorf("%q: %w", kind, gateway.ErrUnknownKind))
		return
	}
	params := make(map[string]string, len(r.URL.Query()))
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	res, err := s.travel.Call(ctx, kind, params)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
