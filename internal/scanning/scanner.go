package scanning

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/zombor/bill-tracker/internal/bill"
)

// BillData is what a model read off a bill photo. Fields the model could
// not read, or returned in an unrecognisable shape, are left empty.
type BillData struct {
	VendorName         string
	BillNumber         string
	BillDate           *civil.Date
	DueDate            *civil.Date
	BillingPeriodStart *civil.Date
	BillingPeriodEnd   *civil.Date
	Subtotal           *decimal.Decimal
	TaxAmount          *decimal.Decimal
	TotalAmount        *decimal.Decimal
	Category           bill.Category
	Confidence         float64
}

// Extracted converts d into an extraction record for validation and review.
// When the model offered no usable category one is guessed from the vendor.
func (d *BillData) Extracted(id, filename, contentType string) bill.Extracted {
	category := d.Category
	if category == "" {
		category = GuessCategory(d.VendorName)
	}

	return bill.Extracted{
		ID:                 id,
		Confidence:         d.Confidence,
		VendorName:         d.VendorName,
		BillNumber:         d.BillNumber,
		BillDate:           d.BillDate,
		DueDate:            d.DueDate,
		BillingPeriodStart: d.BillingPeriodStart,
		BillingPeriodEnd:   d.BillingPeriodEnd,
		Subtotal:           d.Subtotal,
		TaxAmount:          d.TaxAmount,
		TotalAmount:        d.TotalAmount,
		SuggestedCategory:  category,
		Filename:           filename,
		ContentType:        contentType,
	}
}

// Scanner defines the interface for bill scanning operations
type Scanner interface {
	// ScanBill analyzes a bill image/PDF and extracts its fields
	ScanBill(imageData []byte, contentType string) (*BillData, error)
	// Close closes the scanner and releases resources
	Close() error
}

// Generator produces free text for a prompt. It backs question parsing and
// answer phrasing.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
