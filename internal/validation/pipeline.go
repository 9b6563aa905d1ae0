package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/zombor/bill-tracker/internal/bill"
)

const suspiciousAgeDays = 365 * 2

var (
	one              = decimal.NewFromInt(1)
	mismatchFloor    = decimal.NewFromInt(10)
	mismatchFraction = decimal.RequireFromString("0.05")
)

// DuplicateChecker looks for an already stored copy of a bill
type DuplicateChecker interface {
	ExistsSimilar(ctx context.Context, vendor, billNumber string, billDate civil.Date) (bool, error)
}

// Pipeline runs schema validation, then semantic validation and duplicate
// detection when the schema passes.
type Pipeline struct {
	cfg  Config
	dups DuplicateChecker
}

// NewPipeline creates a Pipeline. dups may be nil, which skips duplicate
// detection.
func NewPipeline(cfg Config, dups DuplicateChecker) *Pipeline {
	if cfg.Today == nil {
		cfg.Today = DefaultConfig().Today
	}
	return &Pipeline{cfg: cfg, dups: dups}
}

// Validate checks e and returns every finding. It never returns an error.
func (p *Pipeline) Validate(ctx context.Context, e bill.Extracted) Result {
	b := &builder{}

	p.checkSchema(b, e)
	schemaValid := !hasErrors(b.issues)

	semanticValid := false
	if schemaValid {
		before := len(b.issues)
		p.checkSemantics(b, e)
		semanticValid = !hasErrors(b.issues[before:])
		p.checkDuplicate(ctx, b, e)
	}

	return b.build(schemaValid, semanticValid, e.TotalAmount != nil)
}

func (p *Pipeline) checkSchema(b *builder, e bill.Extracted) {
	nothing := e.TotalAmount == nil && !e.HasVendor() && e.BillDate == nil

	switch {
	case nothing:
		// reported once below as an empty extraction
	case e.TotalAmount == nil:
		b.errorf("total_amount", IssueMissing,
			"Total amount is required but was not extracted",
			"Ensure the total amount is clearly visible in the photo")
	case !e.TotalAmount.IsPositive():
		b.errorf("total_amount", IssueInvalidValue,
			"Total amount must be greater than zero",
			"Check if the amount was read correctly")
	}

	if !e.HasVendor() {
		b.warn("vendor", IssueMissing,
			"Vendor name was not extracted",
			"You'll need to enter the vendor name manually")
	}

	if e.BillDate == nil {
		b.warn("bill_date", IssueMissing,
			"Bill date was not extracted",
			"You'll need to enter the bill date manually")
	}

	if e.Confidence < p.cfg.MinConfidence {
		b.warn("confidence_score", IssueLowConfidence,
			fmt.Sprintf("Extraction confidence is low (%.0f%%)", e.Confidence*100),
			"Please review all fields carefully")
	}

	if nothing {
		b.errorf("extraction", IssueEmpty,
			"No meaningful data could be extracted from this image",
			"Please try with a clearer photo")
	}
}

func (p *Pipeline) checkSemantics(b *builder, e bill.Extracted) {
	today := p.cfg.Today()

	if e.BillDate != nil {
		if e.BillDate.After(today.AddDays(p.cfg.FutureDateToleranceDays)) {
			b.warn("bill_date", IssueFutureDate,
				fmt.Sprintf("Bill date (%s) is in the future", e.BillDate),
				"Please verify the date is correct")
		}
		if e.BillDate.Before(today.AddDays(-suspiciousAgeDays)) {
			b.warn("bill_date", IssueSuspiciousDate,
				fmt.Sprintf("Bill date (%s) seems unusually old", e.BillDate),
				"Please verify the date was read correctly")
		}
		if e.DueDate != nil && e.DueDate.Before(*e.BillDate) {
			b.warn("due_date", IssueInconsistent,
				"Due date is before bill date",
				"Please verify both dates")
		}
	}

	if total := e.TotalAmount; total != nil {
		if e.Subtotal != nil && e.TaxAmount != nil {
			expected := e.Subtotal.Add(*e.TaxAmount)
			diff := total.Sub(expected).Abs()
			// rounding noise on small bills is not worth a warning
			if diff.GreaterThan(expected.Abs().Mul(mismatchFraction)) && diff.GreaterThan(mismatchFloor) {
				b.warn("total_amount", IssueInconsistent,
					fmt.Sprintf("Total (%s) doesn't match subtotal + tax (%s)", total.StringFixed(2), expected.StringFixed(2)),
					"Please verify the amounts")
			}
		}

		if total.GreaterThan(p.cfg.MaxAmount) {
			b.warn("total_amount", IssueSuspiciousValue,
				fmt.Sprintf("Amount (%s) seems unusually high", total.StringFixed(2)),
				"Please verify this amount is correct")
		}
		if total.LessThan(one) {
			b.warn("total_amount", IssueSuspiciousValue,
				fmt.Sprintf("Amount (%s) seems unusually low", total.StringFixed(2)),
				"Please verify this amount is correct")
		}
	}

	if e.BillingPeriodStart != nil && e.BillingPeriodEnd != nil && e.BillingPeriodEnd.Before(*e.BillingPeriodStart) {
		b.warn("billing_period", IssueInconsistent,
			"Billing period end is before start",
			"Please verify the billing period")
	}

	if e.HasVendor() && letterRatio(e.VendorName) < 0.3 {
		b.warn("vendor", IssueSuspiciousValue,
			"Vendor name looks unusual (too many numbers/symbols)",
			"Please verify the vendor name")
	}
}

// checkDuplicate is best effort: collaborator failures are logged and
// treated as "no duplicate".
func (p *Pipeline) checkDuplicate(ctx context.Context, b *builder, e bill.Extracted) {
	if p.dups == nil || !e.HasVendor() || e.BillDate == nil || strings.TrimSpace(e.BillNumber) == "" {
		return
	}

	found, err := p.dups.ExistsSimilar(ctx, e.VendorName, e.BillNumber, *e.BillDate)
	if err != nil {
		slog.Debug("Duplicate check failed", "vendor", e.VendorName, "bill_number", e.BillNumber, "error", err)
		return
	}
	if found {
		b.warn("duplicate", IssuePotentialDuplicate,
			fmt.Sprintf("A bill from %s dated %s with number %s may already exist", e.VendorName, e.BillDate, e.BillNumber),
			"Please verify this isn't a duplicate entry")
	}
}

func letterRatio(s string) float64 {
	var total, letters int
	for _, r := range s {
		total++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(letters) / float64(total)
}
