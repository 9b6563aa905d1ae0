package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/xeipuuv/gojsonschema"

	"github.com/zombor/bill-tracker/internal/bill"
)

var billSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "properties": {
    "vendor_name":          {"type": ["string", "null"]},
    "bill_number":          {"type": ["string", "number", "null"]},
    "bill_date":            {"type": ["string", "null"]},
    "due_date":             {"type": ["string", "null"]},
    "billing_period_start": {"type": ["string", "null"]},
    "billing_period_end":   {"type": ["string", "null"]},
    "subtotal":             {"type": ["number", "string", "null"]},
    "tax_amount":           {"type": ["number", "string", "null"]},
    "total_amount":         {"type": ["number", "string", "null"]},
    "category":             {"type": ["string", "null"]},
    "confidence":           {"type": ["number", "null"]}
  }
}`)

// dateFormats are tried after ISO 8601. Day comes before month.
var dateFormats = []string{
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"02 Jan 2006",
	"02 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

type rawBill struct {
	VendorName         *string  `json:"vendor_name"`
	BillNumber         any      `json:"bill_number"`
	BillDate           *string  `json:"bill_date"`
	DueDate            *string  `json:"due_date"`
	BillingPeriodStart *string  `json:"billing_period_start"`
	BillingPeriodEnd   *string  `json:"billing_period_end"`
	Subtotal           any      `json:"subtotal"`
	TaxAmount          any      `json:"tax_amount"`
	TotalAmount        any      `json:"total_amount"`
	Category           *string  `json:"category"`
	Confidence         *float64 `json:"confidence"`
}

// ExtractJSON pulls the outermost JSON object out of a model response,
// dropping markdown fences and chatter around it.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return "", fmt.Errorf("invalid JSON object in response")
	}

	return text[startIdx : endIdx+1], nil
}

// parseBillJSON parses a model response into BillData. It rejects responses
// whose shape is wrong but never invents values: unreadable dates and amounts
// are left empty for validation to report.
func parseBillJSON(text string) (*BillData, error) {
	text, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	result, err := gojsonschema.Validate(billSchema, gojsonschema.NewStringLoader(text))
	if err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("unexpected response shape: %v", errs)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var raw rawBill
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	data := &BillData{
		VendorName:         strings.TrimSpace(deref(raw.VendorName)),
		BillNumber:         scalarString(raw.BillNumber),
		BillDate:           parseDate(deref(raw.BillDate)),
		DueDate:            parseDate(deref(raw.DueDate)),
		BillingPeriodStart: parseDate(deref(raw.BillingPeriodStart)),
		BillingPeriodEnd:   parseDate(deref(raw.BillingPeriodEnd)),
		Subtotal:           parseAmount(raw.Subtotal),
		TaxAmount:          parseAmount(raw.TaxAmount),
		TotalAmount:        parseAmount(raw.TotalAmount),
	}
	if raw.Confidence != nil {
		data.Confidence = normalizeConfidence(*raw.Confidence)
	}
	if c, ok := bill.ParseCategory(deref(raw.Category)); ok {
		data.Category = c
	}

	return data, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	}
	return ""
}

func parseDate(s string) *civil.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if d, err := civil.ParseDate(s); err == nil {
		return &d
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			d := civil.DateOf(t)
			return &d
		}
	}
	return nil
}

// normalizeConfidence maps a model's confidence onto 0..1. Models sometimes
// answer in percent; anything else out of range counts as no confidence.
func normalizeConfidence(c float64) float64 {
	switch {
	case c >= 0 && c <= 1:
		return c
	case c > 1 && c <= 100:
		return c / 100
	}
	return 0
}

// parseAmount reads a number or a formatted amount such as "Rs. 1,250.50/-".
// A minus sign only counts when it comes before the first digit.
func parseAmount(v any) *decimal.Decimal {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = cleanAmount(t)
	default:
		return nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	d = d.Round(2)
	return &d
}

func cleanAmount(text string) string {
	var b strings.Builder
	seenDigit := false
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
			b.WriteRune(r)
		case r == '.' && seenDigit:
			b.WriteRune(r)
		case r == '-' && !seenDigit && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
