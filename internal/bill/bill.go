package bill

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Category is the closed set of bill categories
type Category string

const (
	CategoryElectricity Category = "electricity"
	CategoryWater       Category = "water"
	CategoryGas         Category = "gas"
	CategoryInternet    Category = "internet"
	CategoryMobile      Category = "mobile"
	CategoryGroceries   Category = "groceries"
	CategoryMedical     Category = "medical"
	CategoryInsurance   Category = "insurance"
	CategoryRent        Category = "rent"
	CategoryMaintenance Category = "maintenance"
	CategoryFuel        Category = "fuel"
	CategoryOther       Category = "other"
)

// Categories lists every known category in display order
var Categories = []Category{
	CategoryElectricity,
	CategoryWater,
	CategoryGas,
	CategoryInternet,
	CategoryMobile,
	CategoryGroceries,
	CategoryMedical,
	CategoryInsurance,
	CategoryRent,
	CategoryMaintenance,
	CategoryFuel,
	CategoryOther,
}

// ParseCategory matches s against the closed category set, ignoring case.
// It never guesses a close match.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Valid reports whether c is a member of the closed set
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// PaymentStatus tracks whether a bill has been paid
type PaymentStatus string

const (
	StatusUnpaid  PaymentStatus = "unpaid"
	StatusPaid    PaymentStatus = "paid"
	StatusPartial PaymentStatus = "partial"
	StatusOverdue PaymentStatus = "overdue"
)

// Valid reports whether s is a known payment status
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusUnpaid, StatusPaid, StatusPartial, StatusOverdue:
		return true
	}
	return false
}

// Bill is a confirmed bill. It is only created after the user has reviewed
// the extracted fields.
type Bill struct {
	ID                 string           `json:"id"`
	ExtractionID       string           `json:"extraction_id,omitempty"`
	VendorName         string           `json:"vendor_name"`
	Category           Category         `json:"category"`
	TotalAmount        decimal.Decimal  `json:"total_amount"`
	BillDate           civil.Date       `json:"bill_date"`
	DueDate            *civil.Date      `json:"due_date,omitempty"`
	BillNumber         string           `json:"bill_number,omitempty"`
	PaymentStatus      PaymentStatus    `json:"payment_status"`
	PaidDate           *civil.Date      `json:"paid_date,omitempty"`
	Subtotal           *decimal.Decimal `json:"subtotal,omitempty"`
	TaxAmount          *decimal.Decimal `json:"tax_amount,omitempty"`
	BillingPeriodStart *civil.Date      `json:"billing_period_start,omitempty"`
	BillingPeriodEnd   *civil.Date      `json:"billing_period_end,omitempty"`
	Notes              string           `json:"notes,omitempty"`
	Filename           string           `json:"filename,omitempty"`
	ContentType        string           `json:"content_type,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Extracted holds the fields an OCR/LLM pass pulled out of a photo.
// Every field is optional; nothing here is trusted until validated and
// confirmed by the user.
type Extracted struct {
	ID                 string           `json:"id"`
	Confidence         float64          `json:"confidence"`
	VendorName         string           `json:"vendor_name,omitempty"`
	BillNumber         string           `json:"bill_number,omitempty"`
	BillDate           *civil.Date      `json:"bill_date,omitempty"`
	DueDate            *civil.Date      `json:"due_date,omitempty"`
	BillingPeriodStart *civil.Date      `json:"billing_period_start,omitempty"`
	BillingPeriodEnd   *civil.Date      `json:"billing_period_end,omitempty"`
	Subtotal           *decimal.Decimal `json:"subtotal,omitempty"`
	TaxAmount          *decimal.Decimal `json:"tax_amount,omitempty"`
	TotalAmount        *decimal.Decimal `json:"total_amount,omitempty"`
	SuggestedCategory  Category         `json:"suggested_category,omitempty"`
	Filename           string           `json:"filename,omitempty"`
	ContentType        string           `json:"content_type,omitempty"`
}

// HasVendor reports whether a non-blank vendor name was extracted
func (e Extracted) HasVendor() bool {
	return strings.TrimSpace(e.VendorName) != ""
}

// Filter selects bills. Zero-valued fields are unconstrained.
type Filter struct {
	Category      Category
	Vendor        string
	DateFrom      *civil.Date
	DateTo        *civil.Date
	PaymentStatus PaymentStatus
	Limit         int
	Offset        int
}

// Matches reports whether b satisfies every set constraint of f.
// Limit and Offset are not considered.
func (f Filter) Matches(b *Bill) bool {
	if f.Category != "" && b.Category != f.Category {
		return false
	}
	if f.Vendor != "" && !strings.Contains(strings.ToLower(b.VendorName), strings.ToLower(f.Vendor)) {
		return false
	}
	if f.DateFrom != nil && b.BillDate.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && b.BillDate.After(*f.DateTo) {
		return false
	}
	if f.PaymentStatus != "" && b.PaymentStatus != f.PaymentStatus {
		return false
	}
	return true
}
