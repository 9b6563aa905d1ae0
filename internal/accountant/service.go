// Package accountant wires scanning, validation and querying into the flows
// the HTTP server exposes.
package accountant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zombor/bill-tracker/internal/assistant"
	"github.com/zombor/bill-tracker/internal/bill"
	"github.com/zombor/bill-tracker/internal/query"
	"github.com/zombor/bill-tracker/internal/scanning"
	"github.com/zombor/bill-tracker/internal/validation"
)

// PendingTTL is how long an unconfirmed scan and its photo are kept
const PendingTTL = 24 * time.Hour

// ErrInvalid marks a request the caller has to fix
var ErrInvalid = errors.New("invalid request")

// IDGenerator generates unique IDs for bills and extractions
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// ScanResult is shown to the user for review. Nothing has been saved as a
// bill yet.
type ScanResult struct {
	Extracted  bill.Extracted    `json:"extracted"`
	Validation validation.Result `json:"validation"`
	Summary    string            `json:"summary"`
}

// Confirmation is the reviewed and possibly corrected bill the user accepts
type Confirmation struct {
	ExtractionID       string             `json:"extraction_id"`
	VendorName         string             `json:"vendor_name"`
	Category           bill.Category      `json:"category"`
	TotalAmount        *decimal.Decimal   `json:"total_amount"`
	BillDate           *civil.Date        `json:"bill_date"`
	DueDate            *civil.Date        `json:"due_date"`
	BillNumber         string             `json:"bill_number"`
	PaymentStatus      bill.PaymentStatus `json:"payment_status"`
	Subtotal           *decimal.Decimal   `json:"subtotal"`
	TaxAmount          *decimal.Decimal   `json:"tax_amount"`
	BillingPeriodStart *civil.Date        `json:"billing_period_start"`
	BillingPeriodEnd   *civil.Date        `json:"billing_period_end"`
	Notes              string             `json:"notes"`
}

// Answer is the reply to a question together with what was run to get it
type Answer struct {
	Answer string       `json:"answer"`
	Query  query.Query  `json:"query"`
	Result query.Result `json:"result"`
}

// Service handles bill operations
type Service struct {
	db          bill.DB
	scanner     scanning.Scanner
	storage     bill.Storage
	pipeline    *validation.Pipeline
	executor    *query.Executor
	agent       *assistant.Agent
	idGenerator IDGenerator
	timeSource  TimeSource

	mu      sync.Mutex
	pending map[string]pendingScan
}

type pendingScan struct {
	extracted bill.Extracted
	scannedAt time.Time
}

// NewService creates a new Service with UUIDs and the wall clock
func NewService(db bill.DB, scanner scanning.Scanner, storage bill.Storage, gen scanning.Generator, cfg validation.Config) *Service {
	return NewServiceWithDeps(db, scanner, storage, gen, cfg, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing.
// The validation clock is replaced by timeSrc.
func NewServiceWithDeps(db bill.DB, scanner scanning.Scanner, storage bill.Storage, gen scanning.Generator, cfg validation.Config, idGen IDGenerator, timeSrc TimeSource) *Service {
	s := &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		executor:    query.NewExecutor(db),
		agent:       assistant.NewAgent(gen),
		idGenerator: idGen,
		timeSource:  timeSrc,
		pending:     make(map[string]pendingScan),
	}
	cfg.Today = s.today
	s.pipeline = validation.NewPipeline(cfg, db)
	return s
}

func (s *Service) today() civil.Date {
	return civil.DateOf(s.timeSource.Now())
}

// ScanBill stores the photo, extracts its fields and validates them. The
// extraction is held until it is confirmed or rejected.
func (s *Service) ScanBill(ctx context.Context, filename string, data []byte, contentType string) (*ScanResult, error) {
	s.sweepPending()

	id := s.idGenerator.Generate()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, bill.SanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	scanned, err := s.scanner.ScanBill(data, contentType)
	if err != nil {
		slog.Error("Failed to scan bill",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("scanning bill: %w", err)
	}

	extracted := scanned.Extracted(id, savedPath, contentType)
	result := s.pipeline.Validate(ctx, extracted)

	s.mu.Lock()
	s.pending[id] = pendingScan{extracted: extracted, scannedAt: s.timeSource.Now()}
	s.mu.Unlock()

	slog.Info("Scanned bill",
		"extraction_id", id,
		"vendor", extracted.VendorName,
		"valid", result.IsValid,
		"issues", len(result.Issues),
	)

	return &ScanResult{
		Extracted:  extracted,
		Validation: result,
		Summary:    validation.Summary(result),
	}, nil
}

// ConfirmBill saves the reviewed bill. The photo of the extraction it came
// from, if still pending, is attached to it.
func (s *Service) ConfirmBill(ctx context.Context, c Confirmation) (*bill.Bill, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	now := s.timeSource.Now()
	b := &bill.Bill{
		ID:                 s.idGenerator.Generate(),
		ExtractionID:       c.ExtractionID,
		VendorName:         strings.TrimSpace(c.VendorName),
		Category:           c.Category,
		TotalAmount:        c.TotalAmount.Round(2),
		BillDate:           *c.BillDate,
		DueDate:            c.DueDate,
		BillNumber:         strings.TrimSpace(c.BillNumber),
		PaymentStatus:      c.PaymentStatus,
		Subtotal:           c.Subtotal,
		TaxAmount:          c.TaxAmount,
		BillingPeriodStart: c.BillingPeriodStart,
		BillingPeriodEnd:   c.BillingPeriodEnd,
		Notes:              strings.TrimSpace(c.Notes),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if b.Category == "" {
		b.Category = bill.CategoryOther
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = bill.StatusUnpaid
	}
	if b.PaymentStatus == bill.StatusPaid {
		today := civil.DateOf(now)
		b.PaidDate = &today
	}

	if c.ExtractionID != "" {
		if e, ok := s.takePending(c.ExtractionID); ok {
			b.Filename = e.Filename
			b.ContentType = e.ContentType
		} else {
			slog.Warn("Confirming bill without a pending extraction", "extraction_id", c.ExtractionID)
		}
	}

	if err := s.db.SaveBill(ctx, b); err != nil {
		return nil, fmt.Errorf("saving bill to database: %w", err)
	}

	return b, nil
}

func (c Confirmation) validate() error {
	switch {
	case strings.TrimSpace(c.VendorName) == "":
		return fmt.Errorf("%w: vendor name is required", ErrInvalid)
	case c.BillDate == nil:
		return fmt.Errorf("%w: bill date is required", ErrInvalid)
	case c.TotalAmount == nil:
		return fmt.Errorf("%w: total amount is required", ErrInvalid)
	case c.TotalAmount.IsNegative():
		return fmt.Errorf("%w: total amount cannot be negative", ErrInvalid)
	case c.Category != "" && !c.Category.Valid():
		return fmt.Errorf("%w: unknown category %q", ErrInvalid, c.Category)
	case c.PaymentStatus != "" && !c.PaymentStatus.Valid():
		return fmt.Errorf("%w: unknown payment status %q", ErrInvalid, c.PaymentStatus)
	}
	return nil
}

// RejectBill discards a pending extraction and its photo
func (s *Service) RejectBill(ctx context.Context, extractionID string) error {
	e, ok := s.takePending(extractionID)
	if !ok {
		return fmt.Errorf("%w: extraction %s", bill.ErrNotFound, extractionID)
	}

	if err := s.storage.Delete(e.Filename); err != nil {
		slog.Warn("Failed to delete file", "filename", e.Filename, "error", err)
	}
	return nil
}

func (s *Service) takePending(id string) (bill.Extracted, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[id]
	delete(s.pending, id)
	return p.extracted, ok
}

// sweepPending drops scans left unconfirmed for longer than PendingTTL
// along with their photos.
func (s *Service) sweepPending() {
	cutoff := s.timeSource.Now().Add(-PendingTTL)

	var stale []bill.Extracted
	s.mu.Lock()
	for id, p := range s.pending {
		if p.scannedAt.Before(cutoff) {
			stale = append(stale, p.extracted)
			delete(s.pending, id)
		}
	}
	s.mu.Unlock()

	for _, e := range stale {
		slog.Info("Discarding abandoned scan", "extraction_id", e.ID)
		if err := s.storage.Delete(e.Filename); err != nil {
			slog.Warn("Failed to delete file", "filename", e.Filename, "error", err)
		}
	}
}

// GetBill retrieves a bill by ID
func (s *Service) GetBill(ctx context.Context, id string) (*bill.Bill, error) {
	b, err := s.db.GetBill(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	return b, nil
}

// ListBills returns bills matching f, newest first
func (s *Service) ListBills(ctx context.Context, f bill.Filter) ([]bill.Bill, error) {
	bills, err := s.db.ListBills(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	return bills, nil
}

// DeleteBill removes a bill and its photo
func (s *Service) DeleteBill(ctx context.Context, id string) error {
	b, err := s.db.GetBill(ctx, id)
	if err != nil {
		return fmt.Errorf("getting bill for deletion: %w", err)
	}

	if b.Filename != "" {
		if err := s.storage.Delete(b.Filename); err != nil {
			slog.Warn("Failed to delete file", "filename", b.Filename, "error", err)
		}
	}

	if err := s.db.DeleteBill(ctx, id); err != nil {
		return fmt.Errorf("deleting bill from database: %w", err)
	}
	return nil
}

// GetBillFile retrieves the photo for a bill
func (s *Service) GetBillFile(ctx context.Context, id string) ([]byte, string, error) {
	b, err := s.db.GetBill(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("getting bill: %w", err)
	}
	if b.Filename == "" {
		return nil, "", fmt.Errorf("%w: bill %s has no file", bill.ErrNotFound, id)
	}

	data, err := s.storage.Get(b.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting bill file: %w", err)
	}

	return data, b.ContentType, nil
}

// MarkPaid marks every listed bill as paid today. All IDs are checked before
// any bill is updated.
func (s *Service) MarkPaid(ctx context.Context, billIDs []string) ([]*bill.Bill, error) {
	if len(billIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one bill is required", ErrInvalid)
	}

	bills := make([]*bill.Bill, 0, len(billIDs))
	for _, id := range billIDs {
		b, err := s.db.GetBill(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("getting bill %s: %w", id, err)
		}
		bills = append(bills, b)
	}

	now := s.timeSource.Now()
	today := civil.DateOf(now)
	for _, b := range bills {
		if b.PaymentStatus == bill.StatusPaid {
			continue
		}
		b.PaymentStatus = bill.StatusPaid
		b.PaidDate = &today
		b.UpdatedAt = now
		if err := s.db.SaveBill(ctx, b); err != nil {
			return nil, fmt.Errorf("updating bill %s: %w", b.ID, err)
		}
	}

	return bills, nil
}

// Ask answers a free-text question from saved bills only
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalid)
	}

	intent := s.agent.ParseQuestion(ctx, question)
	q := query.Normalize(intent, question, s.today())
	res := s.executor.Execute(ctx, q)

	slog.Info("Answered question",
		"query_type", q.Type,
		"success", res.Success,
		"result_count", res.ResultCount,
	)

	return &Answer{
		Answer: s.agent.Answer(ctx, q, res),
		Query:  q,
		Result: res,
	}, nil
}
