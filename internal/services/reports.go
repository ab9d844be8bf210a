package services

import (
	"context"
	"fmt"

	"taxledger/internal/amqp"
	"taxledger/internal/core"
	"taxledger/internal/log"
	"taxledger/internal/storage"
)

type ReportService struct {
	store       storage.Store
	publisher   EventPublisher
	invalidator SummaryInvalidator
	logger      *log.Logger
}

func NewReportService(store storage.Store, publisher EventPublisher, invalidator SummaryInvalidator, logger *log.Logger) *ReportService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReportService{
		store:       store,
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger.WithComponent(log.ComponentReport),
	}
}

func (s *ReportService) List(ctx context.Context, userID int64) ([]core.TaxReport, error) {
	return s.store.GetTaxReports(ctx, userID)
}

func (s *ReportService) Get(ctx context.Context, id int64) (core.TaxReport, error) {
	return s.store.GetTaxReport(ctx, id)
}

// Draft aggregates the user's transactions for the quarter into a new
// draft report. A quarter that already has a submitted or confirmed
// report cannot be drafted again; earlier drafts are left in place.
func (s *ReportService) Draft(ctx context.Context, userID int64, year, quarter int) (core.TaxReport, error) {
	q, err := core.NewTaxQuarter(year, quarter)
	if err != nil {
		return core.TaxReport{}, err
	}
	if _, err := requireUser(ctx, s.store, userID, "userId"); err != nil {
		return core.TaxReport{}, err
	}

	existing, err := s.store.GetTaxReports(ctx, userID)
	if err != nil {
		return core.TaxReport{}, err
	}
	for _, r := range existing {
		if r.Period() == q && r.IsFinal() {
			return core.TaxReport{}, core.NewValidationError("quarter",
				fmt.Sprintf("%s has already been %s (report %d)", q, r.Status, r.ID))
		}
	}

	start, end := q.Start(), q.End()
	txs, err := s.store.GetTransactions(ctx, userID, core.TransactionFilter{StartDate: &start, EndDate: &end})
	if err != nil {
		return core.TaxReport{}, err
	}

	report, err := s.store.CreateTaxReport(ctx, core.DraftReport(userID, q, txs))
	if err != nil {
		return core.TaxReport{}, err
	}

	s.logger.InfoContext(ctx, "Tax report drafted", log.NewFields().
		WithReport(report.ID, userID, q.String(), string(report.Status)).
		WithOperation(log.OpDraft).ToSlice()...)
	s.afterWrite(ctx, amqp.ReportDrafted, report)
	return report, nil
}

// Submit files a draft report with a fresh reference. Reports that were
// already submitted or confirmed are returned unchanged.
func (s *ReportService) Submit(ctx context.Context, id int64) (core.TaxReport, error) {
	report, err := s.store.GetTaxReport(ctx, id)
	if err != nil {
		return core.TaxReport{}, err
	}
	if report.IsFinal() {
		s.logger.DebugContext(ctx, "Report already filed", log.FieldReportID, id, log.FieldReference, report.HMRCReference)
		return report, nil
	}

	ref := core.SubmissionReference(report.Year, report.Quarter)
	report, err = s.store.UpdateTaxReport(ctx, id, core.StatusSubmitted, ref)
	if err != nil {
		return core.TaxReport{}, err
	}

	s.logger.InfoContext(ctx, "Tax report submitted", log.NewFields().
		WithReport(report.ID, report.UserID, report.Period().String(), string(report.Status)).
		WithOperation(log.OpSubmit).ToSlice()...)
	s.afterWrite(ctx, amqp.ReportSubmitted, report)
	return report, nil
}

func (s *ReportService) afterWrite(ctx context.Context, typ amqp.EventType, r core.TaxReport) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(r.UserID)
	}
	publish(ctx, s.logger, s.publisher, typ, r.UserID, r)
}
