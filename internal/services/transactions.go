package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"taxledger/internal/amqp"
	"taxledger/internal/core"
	"taxledger/internal/log"
	"taxledger/internal/storage"
)

// TransactionInput is what a client supplies. The base-currency value is
// always computed here and never taken from the caller.
type TransactionInput struct {
	Date        core.Date
	Description string
	Amount      decimal.Decimal
	Currency    string
	Type        core.TransactionType
	CategoryID  *int64
	UserID      int64
}

type TransactionService struct {
	store       storage.Store
	publisher   EventPublisher
	invalidator SummaryInvalidator
	logger      *log.Logger
}

func NewTransactionService(store storage.Store, publisher EventPublisher, invalidator SummaryInvalidator, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.Discard()
	}
	return &TransactionService{
		store:       store,
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger.WithComponent(log.ComponentTransaction),
	}
}

func (s *TransactionService) List(ctx context.Context, userID int64, filter core.TransactionFilter) ([]core.Transaction, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, core.NewValidationError("type", "must be income or expense")
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(filter.StartDate.Time) {
		return nil, core.NewValidationError("endDate", "must not be before startDate")
	}
	filter.Currency = core.NormalizeCode(filter.Currency)
	return s.store.GetTransactions(ctx, userID, filter)
}

func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// Create rounds the amount to pennies, converts it into the owner's base
// currency at the current rate and stores the transaction.
func (s *TransactionService) Create(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	nt, err := s.prepare(ctx, in)
	if err != nil {
		return core.Transaction{}, err
	}

	tx, err := s.store.CreateTransaction(ctx, nt)
	if err != nil {
		return core.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "Transaction recorded", log.NewFields().
		WithTransaction(tx.ID, tx.UserID, string(tx.Type), tx.Amount, tx.Currency, tx.ConvertedAmount).
		WithOperation(log.OpCreate).ToSlice()...)

	if s.invalidator != nil {
		s.invalidator.Invalidate(tx.UserID)
	}
	publish(ctx, s.logger, s.publisher, amqp.TransactionCreated, tx.UserID, tx)
	return tx, nil
}

func (s *TransactionService) prepare(ctx context.Context, in TransactionInput) (core.NewTransaction, error) {
	nt := core.NewTransaction{
		Date:        in.Date,
		Description: strings.TrimSpace(in.Description),
		Amount:      core.RoundMoney(in.Amount),
		Currency:    core.NormalizeCode(in.Currency),
		Type:        in.Type,
		CategoryID:  in.CategoryID,
		UserID:      in.UserID,
	}
	if err := nt.Validate(); err != nil {
		return nt, err
	}

	user, err := requireUser(ctx, s.store, in.UserID, "userId")
	if err != nil {
		return nt, err
	}

	if in.CategoryID != nil {
		cat, err := s.store.GetCategory(ctx, *in.CategoryID)
		switch {
		case errors.Is(err, core.ErrNotFound):
			return nt, core.NewValidationError("categoryId", fmt.Sprintf("unknown category %d", *in.CategoryID))
		case err != nil:
			return nt, err
		case cat.UserID != user.ID:
			return nt, core.NewValidationError("categoryId", "belongs to another user")
		case cat.Type != in.Type:
			return nt, core.NewValidationError("categoryId", fmt.Sprintf("is a %s category", cat.Type))
		}
	}

	if _, err := s.store.GetCurrency(ctx, nt.Currency); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nt, core.NewValidationError("currency", "unsupported currency "+nt.Currency)
		}
		return nt, err
	}

	currencies, err := s.store.GetCurrencies(ctx)
	if err != nil {
		return nt, err
	}
	converted, err := core.Convert(nt.Amount, nt.Currency, user.BaseCurrency, core.RatesFrom(currencies))
	if err != nil {
		return nt, err
	}
	nt.ConvertedAmount = core.RoundMoney(converted)
	return nt, nil
}
