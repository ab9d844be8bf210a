package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"taxledger/internal/core"
	"taxledger/internal/services"
)

// createTransactionRequest accepts amount as a JSON string or number. A
// client-supplied convertedAmount is ignored; the server computes it.
type createTransactionRequest struct {
	Date        core.Date       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Type        string          `json:"type"`
	CategoryID  *int64          `json:"categoryId"`
	UserID      int64           `json:"userId"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter, err := parseTransactionFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.readContext(r)
	defer cancel()

	txs, err := s.svc.Transactions.List(ctx, userID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.readContext(r)
	defer cancel()

	tx, err := s.svc.Transactions.Get(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	tx, err := s.svc.Transactions.Create(r.Context(), services.TransactionInput{
		Date:        req.Date,
		Description: sanitizeInput(req.Description),
		Amount:      req.Amount,
		Currency:    req.Currency,
		Type:        core.TransactionType(sanitizeInput(req.Type)),
		CategoryID:  req.CategoryID,
		UserID:      req.UserID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}
