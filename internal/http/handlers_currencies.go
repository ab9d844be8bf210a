package http

import (
	"net/http"
)

func (s *Server) handleListCurrencies(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.readContext(r)
	defer cancel()

	list, err := s.svc.Currencies.List(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetCurrency(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.readContext(r)
	defer cancel()

	c, err := s.svc.Currencies.Get(ctx, r.PathValue("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleUpdateRates refreshes the rate table. Provider failures fall back
// to the static table inside the rates service, so only storage errors
// reach the caller.
func (s *Server) handleUpdateRates(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Currencies.UpdateRates(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
