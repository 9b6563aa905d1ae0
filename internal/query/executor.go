package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/bill-tracker/internal/bill"
)

// ErrNoSource is reported when the executor has no record source to read from
var ErrNoSource = errors.New("bill storage is not configured")

// Source is the read-only view of stored bills the executor needs
type Source interface {
	ListBills(ctx context.Context, f bill.Filter) ([]bill.Bill, error)
}

// Executor runs queries against a Source. It holds no state between calls.
type Executor struct {
	source Source
}

// NewExecutor creates an Executor. A nil source is allowed; every query then
// yields a "cannot answer yet" result.
func NewExecutor(source Source) *Executor {
	return &Executor{source: source}
}

// Execute runs q. It never returns an error: failures are folded into a
// Result with Success set to false.
func (e *Executor) Execute(ctx context.Context, q Query) (res Result) {
	if e == nil || e.source == nil {
		return Result{
			Success:      false,
			ErrorMessage: ErrNoSource.Error(),
			Results:      []map[string]any{},
			Description:  "I can't answer questions yet because bill storage isn't configured",
		}
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Query panicked", "query_type", q.Type, "panic", r)
			res = failed(fmt.Errorf("internal error: %v", r))
		}
	}()

	var err error
	switch q.Type {
	case TypeLookup:
		res, err = e.list(ctx, q, "Looking for bills")
	case TypeList:
		res, err = e.list(ctx, q, "Listing bills")
	case TypeAggregate:
		res, err = e.aggregate(ctx, q)
	case TypeExists:
		res, err = e.exists(ctx, q)
	case TypeCompare:
		// TODO: compare has no algorithm of its own yet; decide on
		// period-over-period semantics before growing one.
		res, err = e.aggregate(ctx, q)
	default:
		err = fmt.Errorf("unsupported query type %q", q.Type)
	}
	if err != nil {
		slog.Warn("Query failed", "query_type", q.Type, "error", err)
		return failed(err)
	}
	return res
}

func failed(err error) Result {
	return Result{
		Success:      false,
		ErrorMessage: err.Error(),
		DataFound:    false,
		ResultCount:  0,
		Results:      []map[string]any{},
		Description:  "Query failed: " + err.Error(),
	}
}

func (e *Executor) fetch(ctx context.Context, q Query, limit int) ([]bill.Bill, error) {
	bills, err := e.source.ListBills(ctx, q.filter(limit))
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	bill.SortNewestFirst(bills)
	if len(bills) > limit {
		bills = bills[:limit]
	}
	return bills, nil
}

func (e *Executor) list(ctx context.Context, q Query, verb string) (Result, error) {
	limit := clampLimit(q.Limit)
	bills, err := e.fetch(ctx, q, limit)
	if err != nil {
		return Result{}, err
	}

	results := make([]map[string]any, 0, len(bills))
	for i := range bills {
		results = append(results, Record(&bills[i]))
	}

	parts := append([]string{verb}, filterPhrases(q)...)
	return Result{
		Success:     true,
		DataFound:   len(results) > 0,
		ResultCount: len(results),
		Results:     results,
		Description: strings.Join(parts, " | "),
	}, nil
}

func (e *Executor) exists(ctx context.Context, q Query) (Result, error) {
	bills, err := e.fetch(ctx, q, 1)
	if err != nil {
		return Result{}, err
	}

	found := len(bills) > 0
	answer := "no"
	if found {
		answer = "yes"
	}
	results := []map[string]any{{"exists": found, "answer": answer}}
	count := 0
	if found {
		results = append(results, Record(&bills[0]))
		count = 1
	}

	parts := []string{"Checking if"}
	if q.Category != "" {
		parts = append(parts, string(q.Category)+" bill")
	} else {
		parts = append(parts, "bill")
	}
	if q.PaymentStatus != "" {
		parts = append(parts, "was "+string(q.PaymentStatus))
	}
	if q.Vendor != "" {
		parts = append(parts, "from "+q.Vendor)
	}
	if p := FormatDateRange(q.DateFrom, q.DateTo); p != "" {
		parts = append(parts, p)
	}

	return Result{
		Success:     true,
		DataFound:   found,
		ResultCount: count,
		Results:     results,
		Description: strings.Join(parts, " "),
	}, nil
}

func (e *Executor) aggregate(ctx context.Context, q Query) (Result, error) {
	bills, err := e.fetch(ctx, q, AggregateFetchLimit)
	if err != nil {
		return Result{}, err
	}

	fn := q.Aggregation
	if fn == "" {
		fn = AggregationSum
	}

	parts := []string{"Calculating " + string(fn)}
	if q.Category != "" {
		parts = append(parts, "for "+string(q.Category))
	}
	if q.Vendor != "" {
		parts = append(parts, "from "+q.Vendor)
	}
	if q.PaymentStatus != "" {
		parts = append(parts, "with status "+string(q.PaymentStatus))
	}
	if p := FormatDateRange(q.DateFrom, q.DateTo); p != "" {
		parts = append(parts, p)
	}
	if q.GroupBy != "" {
		parts = append(parts, "grouped by "+string(q.GroupBy))
	}

	if len(bills) == 0 {
		return Result{
			Success:     true,
			DataFound:   false,
			ResultCount: 0,
			Results:     []map[string]any{},
			Description: "No bills found: " + strings.Join(parts, " "),
		}, nil
	}

	amounts := make([]decimal.Decimal, len(bills))
	for i := range bills {
		amounts[i] = bills[i].TotalAmount
	}

	agg := &AggregationResult{
		Function: fn,
		Value:    apply(fn, amounts),
		Count:    len(amounts),
	}

	if q.GroupBy != "" {
		groups := make(map[string][]decimal.Decimal)
		for i := range bills {
			key := groupKey(q.GroupBy, &bills[i])
			groups[key] = append(groups[key], bills[i].TotalAmount)
		}
		agg.GroupBy = q.GroupBy
		agg.Breakdown = make(map[string]decimal.Decimal, len(groups))
		for key, values := range groups {
			agg.Breakdown[key] = apply(fn, values)
		}
	}

	return Result{
		Success:     true,
		DataFound:   true,
		ResultCount: len(bills),
		Results:     []map[string]any{},
		Aggregation: agg,
		Description: strings.Join(parts, " "),
	}, nil
}

// apply runs fn over a non-empty slice of amounts
func apply(fn Aggregation, amounts []decimal.Decimal) decimal.Decimal {
	switch fn {
	case AggregationCount:
		return decimal.NewFromInt(int64(len(amounts)))
	case AggregationAverage:
		return decimal.Sum(amounts[0], amounts[1:]...).Div(decimal.NewFromInt(int64(len(amounts))))
	case AggregationMin:
		return decimal.Min(amounts[0], amounts[1:]...)
	case AggregationMax:
		return decimal.Max(amounts[0], amounts[1:]...)
	default:
		return decimal.Sum(amounts[0], amounts[1:]...)
	}
}

func groupKey(by GroupBy, b *bill.Bill) string {
	switch by {
	case GroupByCategory:
		return string(b.Category)
	case GroupByVendor:
		return b.VendorName
	case GroupByMonth:
		return fmt.Sprintf("%04d-%02d", b.BillDate.Year, int(b.BillDate.Month))
	case GroupByYear:
		return strconv.Itoa(b.BillDate.Year)
	default:
		return "other"
	}
}

// Record flattens a bill into the field map handed to response formatters
func Record(b *bill.Bill) map[string]any {
	var due any
	if b.DueDate != nil {
		due = b.DueDate.String()
	}
	var number any
	if b.BillNumber != "" {
		number = b.BillNumber
	}
	return map[string]any{
		"id":             b.ID,
		"vendor_name":    b.VendorName,
		"category":       string(b.Category),
		"total_amount":   b.TotalAmount.StringFixed(2),
		"bill_date":      b.BillDate.String(),
		"due_date":       due,
		"payment_status": string(b.PaymentStatus),
		"bill_number":    number,
	}
}

// filterPhrases describes the set filters in a fixed order
func filterPhrases(q Query) []string {
	var parts []string
	if q.Category != "" {
		parts = append(parts, "category: "+string(q.Category))
	}
	if q.Vendor != "" {
		parts = append(parts, "vendor: "+q.Vendor)
	}
	if q.PaymentStatus != "" {
		parts = append(parts, "status: "+string(q.PaymentStatus))
	}
	if p := FormatDateRange(q.DateFrom, q.DateTo); p != "" {
		parts = append(parts, p)
	}
	return parts
}
