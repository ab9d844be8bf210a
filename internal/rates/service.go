// Package rates refreshes the stored exchange-rate table from an FX
// provider, falling back to a static table when the provider fails.
package rates

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"taxledger/internal/amqp"
	"taxledger/internal/core"
	"taxledger/internal/log"
	"taxledger/internal/storage"
)

// Source says where the rates of a refresh came from.
type Source string

const (
	SourceProvider Source = "provider"
	SourceFallback Source = "fallback"
)

// Publisher receives the rates.refreshed event.
type Publisher interface {
	Publish(ctx context.Context, evt amqp.Event) error
}

// Result describes one completed refresh.
type Result struct {
	Source     Source          `json:"source"`
	Updated    []string        `json:"updated"`
	Currencies []core.Currency `json:"currencies"`
}

const refreshTimeout = time.Minute

// Service updates stored currencies. Concurrent Refresh calls share one run.
type Service struct {
	store     storage.CurrencyStore
	provider  Provider
	fallback  Table
	publisher Publisher
	logger    *log.Logger
	group     singleflight.Group
}

// NewService wires a refresher. provider and publisher may be nil.
func NewService(store storage.CurrencyStore, provider Provider, fallback Table, publisher Publisher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Discard()
	}
	return &Service{
		store:     store,
		provider:  provider,
		fallback:  fallback,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentRates),
	}
}

// Refresh fetches current rates and writes every stored currency that has
// a quote. Provider failures are absorbed by switching to the fallback
// table; only storage failures are returned.
//
// The shared run is detached from the caller that started it and bounded
// by refreshTimeout. Each caller returns early when its own ctx is done.
func (s *Service) Refresh(ctx context.Context) (Result, error) {
	ch := s.group.DoChan("refresh", func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refresh(runCtx)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		if r.Shared {
			s.logger.DebugContext(ctx, "Joined in-flight rate refresh")
		}
		return r.Val.(Result), nil
	}
}

func (s *Service) refresh(ctx context.Context) (Result, error) {
	table, source := s.latest(ctx)

	currencies, err := s.store.GetCurrencies(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list currencies: %w", err)
	}

	res := Result{Source: source, Updated: []string{}}
	for _, c := range currencies {
		rate, ok := table.Rates[c.Code]
		if !ok {
			continue
		}
		if _, err := s.store.UpdateCurrency(ctx, c.Code, rate); err != nil {
			return Result{}, fmt.Errorf("update %s: %w", c.Code, err)
		}
		res.Updated = append(res.Updated, c.Code)
	}
	sort.Strings(res.Updated)

	res.Currencies, err = s.store.GetCurrencies(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list currencies: %w", err)
	}

	s.logger.InfoContext(ctx, "Exchange rates refreshed",
		log.FieldSource, source,
		log.FieldCount, len(res.Updated),
		log.FieldOperation, log.OpRefresh)
	s.publish(ctx, res)
	return res, nil
}

func (s *Service) latest(ctx context.Context) (Table, Source) {
	if s.provider == nil {
		return s.fallback, SourceFallback
	}
	table, err := s.provider.Latest(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "FX provider failed, using fallback rates", log.FieldError, err)
		return s.fallback, SourceFallback
	}
	return table, SourceProvider
}

func (s *Service) publish(ctx context.Context, res Result) {
	if s.publisher == nil {
		return
	}
	payload := map[string]any{"source": res.Source, "updated": res.Updated}
	evt, err := amqp.NewEvent(amqp.RatesRefreshed, 0, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, evt)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to publish rates event", log.FieldError, err)
	}
}
