package services

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"taxledger/internal/cache"
	"taxledger/internal/core"
	"taxledger/internal/log"
	"taxledger/internal/storage"
)

const (
	summaryCacheSize = 256
	summaryCacheTTL  = time.Minute
)

// DashboardService serves the per-user summary and deadline views. The
// summary is cached per user until a write invalidates it or it expires.
type DashboardService struct {
	store  storage.Store
	cache  *cache.LRUCache[core.Summary]
	now    Clock
	logger *log.Logger
}

func NewDashboardService(store storage.Store, logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.Discard()
	}
	return &DashboardService{
		store:  store,
		cache:  cache.NewLRUCache[core.Summary](summaryCacheSize, summaryCacheTTL),
		now:    utcNow,
		logger: logger.WithComponent(log.ComponentDashboard),
	}
}

// Cache exposes the summary cache so it can be swept by a cache.Manager.
func (s *DashboardService) Cache() *cache.LRUCache[core.Summary] {
	return s.cache
}

func summaryKey(userID int64) string {
	return "summary:" + strconv.FormatInt(userID, 10)
}

// Invalidate implements SummaryInvalidator.
func (s *DashboardService) Invalidate(userID int64) {
	s.cache.Delete(summaryKey(userID))
}

func (s *DashboardService) Summary(ctx context.Context, userID int64) (core.Summary, error) {
	key := summaryKey(userID)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return core.Summary{}, err
	}

	var (
		txs     []core.Transaction
		reports []core.TaxReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.store.GetTransactions(gctx, userID, core.TransactionFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		reports, err = s.store.GetTaxReports(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Summary{}, err
	}

	summary := core.Summarize(txs, reports, s.now())
	s.cache.Set(key, summary)
	s.logger.DebugContext(ctx, "Summary computed", log.FieldUserID, userID, log.FieldCount, len(txs))
	return summary, nil
}

// Deadline returns the next filing deadline for the user.
func (s *DashboardService) Deadline(ctx context.Context, userID int64) (core.DeadlineInfo, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return core.DeadlineInfo{}, err
	}
	reports, err := s.store.GetTaxReports(ctx, userID)
	if err != nil {
		return core.DeadlineInfo{}, err
	}
	return core.UpcomingDeadline(s.now(), reports), nil
}
