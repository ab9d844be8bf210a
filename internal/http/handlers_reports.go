package http

import (
	"net/http"
)

type draftReportRequest struct {
	UserID  int64 `json:"userId"`
	Year    int   `json:"year"`
	Quarter int   `json:"quarter"`
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.readContext(r)
	defer cancel()

	reports, err := s.svc.Reports.List(ctx, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.readContext(r)
	defer cancel()

	report, err := s.svc.Reports.Get(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDraftReport(w http.ResponseWriter, r *http.Request) {
	var req draftReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.svc.Reports.Draft(r.Context(), req.UserID, req.Year, req.Quarter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.svc.Reports.Submit(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.readContext(r)
	defer cancel()

	summary, err := s.svc.Dashboard.Summary(ctx, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDeadline(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.readContext(r)
	defer cancel()

	info, err := s.svc.Dashboard.Deadline(ctx, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
