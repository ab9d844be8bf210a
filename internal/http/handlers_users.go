package http

import (
	"net/http"

	"taxledger/internal/core"
)

type createUserRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	FullName     string `json:"fullName"`
	BusinessType string `json:"businessType"`
	BaseCurrency string `json:"baseCurrency"`
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.readContext(r)
	defer cancel()

	u, err := s.svc.Users.Get(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := s.svc.Users.Create(r.Context(), core.NewUser{
		Username:     sanitizeInput(req.Username),
		Password:     req.Password,
		FullName:     sanitizeInput(req.FullName),
		BusinessType: core.BusinessType(sanitizeInput(req.BusinessType)),
		BaseCurrency: req.BaseCurrency,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type createCategoryRequest struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	UserID int64  `json:"userId"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.readContext(r)
	defer cancel()

	cats, err := s.svc.Categories.List(ctx, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := s.svc.Categories.Create(r.Context(), core.NewCategory{
		Name:   sanitizeInput(req.Name),
		Type:   core.TransactionType(sanitizeInput(req.Type)),
		UserID: req.UserID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
