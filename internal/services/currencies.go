package services

import (
	"context"

	"taxledger/internal/core"
	"taxledger/internal/rates"
	"taxledger/internal/storage"
)

// RateRefresher is satisfied by *rates.Service.
type RateRefresher interface {
	Refresh(ctx context.Context) (rates.Result, error)
}

type CurrencyService struct {
	store     storage.CurrencyStore
	refresher RateRefresher
}

func NewCurrencyService(store storage.CurrencyStore, refresher RateRefresher) *CurrencyService {
	return &CurrencyService{store: store, refresher: refresher}
}

func (s *CurrencyService) List(ctx context.Context) ([]core.Currency, error) {
	return s.store.GetCurrencies(ctx)
}

func (s *CurrencyService) Get(ctx context.Context, code string) (core.Currency, error) {
	return s.store.GetCurrency(ctx, core.NormalizeCode(code))
}

// UpdateRates refreshes every known rate and returns the resulting table.
func (s *CurrencyService) UpdateRates(ctx context.Context) ([]core.Currency, error) {
	res, err := s.refresher.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return res.Currencies, nil
}
