// Package importer turns spreadsheets and statement files into ledger
// transactions. A Fetcher loads the source named by a file reference and an
// Extractor (a language model) reads rows out of it. Each row is then
// recorded through the regular transaction service so conversion and
// validation rules apply unchanged.
package importer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"taxledger/internal/amqp"
	"taxledger/internal/core"
	"taxledger/internal/log"
	"taxledger/internal/services"
)

// Import statuses returned to the caller.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Reference schemes understood by ParseRef.
const (
	SchemeGCS    = "gs"
	SchemeSheets = "sheets"
)

// Ref identifies an import source, either gs://bucket/object or
// sheets://spreadsheetId/range.
type Ref struct {
	Scheme string
	Host   string
	Path   string
}

func (r Ref) String() string {
	return r.Scheme + "://" + r.Host + "/" + r.Path
}

// ParseRef validates a file reference.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, core.NewValidationError("fileRef", "is required")
	}
	u, err := url.Parse(s)
	if err != nil {
		return Ref{}, core.NewValidationError("fileRef", "is not a valid reference")
	}
	ref := Ref{Scheme: strings.ToLower(u.Scheme), Host: u.Host, Path: strings.TrimPrefix(u.Path, "/")}
	if ref.Scheme != SchemeGCS && ref.Scheme != SchemeSheets {
		return Ref{}, core.NewValidationError("fileRef", "must start with gs:// or sheets://")
	}
	if ref.Host == "" || ref.Path == "" {
		return Ref{}, core.NewValidationError("fileRef", fmt.Sprintf("must look like %s://<container>/<name>", ref.Scheme))
	}
	return ref, nil
}

// Document is a fetched source. Binary sources fill Data, tabular sources
// fill Rows.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
	Rows     [][]string
}

type Fetcher interface {
	Fetch(ctx context.Context, ref Ref) (Document, error)
}

// Hints give the extractor the user's vocabulary.
type Hints struct {
	BaseCurrency string
	Categories   []core.Category
}

// Row is one transaction read by an extractor. A negative amount with no
// type is read as an expense.
type Row struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
}

type Extractor interface {
	Extract(ctx context.Context, doc Document, hints Hints) ([]Row, error)
}

// TransactionRecorder is satisfied by *services.TransactionService.
type TransactionRecorder interface {
	Create(ctx context.Context, in services.TransactionInput) (core.Transaction, error)
}

// Lookup loads the importing user and their categories.
type Lookup interface {
	GetUser(ctx context.Context, id int64) (core.User, error)
	GetCategories(ctx context.Context, userID int64) ([]core.Category, error)
}

// RowError explains why an extracted row was not recorded.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type Result struct {
	Status   string     `json:"status"`
	Message  string     `json:"message"`
	ImportID string     `json:"importId,omitempty"`
	Imported int        `json:"imported"`
	Skipped  []RowError `json:"skipped,omitempty"`
}

type Service struct {
	fetchers  map[string]Fetcher
	extractor Extractor
	recorder  TransactionRecorder
	lookup    Lookup
	publisher services.EventPublisher
	timeout   time.Duration
	logger    *log.Logger
}

type Option func(*Service)

// WithFetcher registers the fetcher for a reference scheme.
func WithFetcher(scheme string, f Fetcher) Option {
	return func(s *Service) { s.fetchers[scheme] = f }
}

func WithExtractor(e Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

func WithPublisher(p services.EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func NewService(lookup Lookup, recorder TransactionRecorder, logger *log.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Service{
		fetchers: make(map[string]Fetcher),
		recorder: recorder,
		lookup:   lookup,
		timeout:  2 * time.Minute,
		logger:   logger.WithComponent(log.ComponentImport),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether imports are processed or only acknowledged.
func (s *Service) Enabled() bool {
	return s.extractor != nil
}

// Import reads transactions from fileRef and records them for userID.
// Without an extractor the request is only acknowledged.
func (s *Service) Import(ctx context.Context, userID int64, fileRef string) (Result, error) {
	if userID <= 0 {
		return Result{}, core.NewValidationError("userId", "User ID is required")
	}
	if !s.Enabled() {
		return Result{Status: StatusProcessing, Message: "Import started successfully"}, nil
	}

	ref, err := ParseRef(fileRef)
	if err != nil {
		return Result{}, err
	}
	fetcher, ok := s.fetchers[ref.Scheme]
	if !ok {
		return Result{}, core.NewValidationError("fileRef", ref.Scheme+":// sources are not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	importID := uuid.NewString()
	logger := s.logger.With(log.FieldUserID, userID, log.FieldSource, ref.String(), "import_id", importID)
	start := time.Now()

	var (
		doc   Document
		hints Hints
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		doc, err = fetcher.Fetch(gctx, ref)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", ref, err)
		}
		return nil
	})
	g.Go(func() error {
		user, err := s.lookup.GetUser(gctx, userID)
		if errors.Is(err, core.ErrNotFound) {
			return core.NewValidationError("userId", fmt.Sprintf("unknown user %d", userID))
		}
		if err != nil {
			return err
		}
		cats, err := s.lookup.GetCategories(gctx, userID)
		if err != nil {
			return err
		}
		hints = Hints{BaseCurrency: user.BaseCurrency, Categories: cats}
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.WarnContext(ctx, "Import aborted", log.FieldError, err)
		return Result{}, err
	}

	rows, err := s.extractor.Extract(ctx, doc, hints)
	if err != nil {
		logger.ErrorContext(ctx, "Extraction failed", log.FieldError, err)
		return Result{}, fmt.Errorf("extract %s: %w", ref, err)
	}

	res := Result{Status: StatusCompleted, ImportID: importID}
	for i, row := range rows {
		in, err := toInput(row, userID, hints)
		if err == nil {
			_, err = s.recorder.Create(ctx, in)
		}
		if err != nil {
			if !errors.Is(err, core.ErrValidation) {
				return Result{}, fmt.Errorf("record row %d: %w", i+1, err)
			}
			res.Skipped = append(res.Skipped, RowError{Row: i + 1, Error: err.Error()})
			continue
		}
		res.Imported++
	}
	res.Message = fmt.Sprintf("Imported %d of %d transactions", res.Imported, len(rows))

	logger.InfoContext(ctx, "Import completed",
		log.FieldOperation, log.OpImport,
		log.FieldCount, res.Imported,
		"skipped", len(res.Skipped),
		log.FieldDuration, time.Since(start).Milliseconds())

	publishCompleted(ctx, logger, s.publisher, userID, res)
	return res, nil
}

func publishCompleted(ctx context.Context, logger *log.Logger, pub services.EventPublisher, userID int64, res Result) {
	if pub == nil {
		return
	}
	evt, err := amqp.NewEvent(amqp.ImportCompleted, userID, res)
	if err == nil {
		err = pub.Publish(ctx, evt)
	}
	if err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "event_type", amqp.ImportCompleted, log.FieldError, err)
	}
}

// toInput maps an extracted row onto a transaction request. Category names
// are matched case-insensitively against the user's categories of the same
// type; an unmatched name leaves the transaction uncategorised.
func toInput(row Row, userID int64, hints Hints) (services.TransactionInput, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return services.TransactionInput{}, core.NewValidationError("date", err.Error())
	}

	typ := core.TransactionType(strings.ToLower(strings.TrimSpace(row.Type)))
	switch {
	case typ == "" && row.Amount.IsNegative():
		typ = core.Expense
	case typ == "":
		typ = core.Income
	case !typ.IsValid():
		return services.TransactionInput{}, core.NewValidationError("type", "must be income or expense")
	}

	currency := row.Currency
	if strings.TrimSpace(currency) == "" {
		currency = hints.BaseCurrency
	}

	in := services.TransactionInput{
		Date:        date,
		Description: row.Description,
		Amount:      row.Amount.Abs(),
		Currency:    currency,
		Type:        typ,
		UserID:      userID,
	}
	if name := strings.TrimSpace(row.Category); name != "" {
		for _, c := range hints.Categories {
			if c.Type == typ && strings.EqualFold(c.Name, name) {
				id := c.ID
				in.CategoryID = &id
				break
			}
		}
	}
	return in, nil
}
