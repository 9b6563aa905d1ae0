package query

import (
	"math"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/zombor/bill-tracker/internal/bill"
	"github.com/zombor/bill-tracker/internal/timerange"
)

// Intent is the loosely typed set of hints an upstream language model pulls
// out of a question. Any field may be empty or hold garbage.
type Intent struct {
	QueryType     string `json:"query_type"`
	Category      string `json:"category"`
	Vendor        string `json:"vendor"`
	TimeReference string `json:"time_reference"`
	PaymentStatus string `json:"payment_status"`
	Aggregation   string `json:"aggregation"`
	GroupBy       string `json:"group_by"`
	Limit         int    `json:"limit"`
}

// IntentFromMap reads hints out of an arbitrary decoded JSON object. Values of
// the wrong type are dropped.
func IntentFromMap(m map[string]any) Intent {
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}

	in := Intent{
		QueryType:     str("query_type"),
		Category:      str("category"),
		Vendor:        str("vendor"),
		TimeReference: str("time_reference"),
		PaymentStatus: str("payment_status"),
		Aggregation:   str("aggregation"),
		GroupBy:       str("group_by"),
	}

	switch v := m["limit"].(type) {
	case float64:
		if !math.IsNaN(v) && !math.IsInf(v, 0) && v >= math.MinInt32 && v <= math.MaxInt32 {
			in.Limit = int(v)
		}
	case int:
		in.Limit = v
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			in.Limit = n
		}
	}

	return in
}

// Normalize converts hints into a Query. It never fails: anything it does not
// recognise becomes "unset", which widens the answer rather than rejecting
// the question.
func Normalize(in Intent, question string, today civil.Date) Query {
	r := timerange.Resolve(in.TimeReference, today)

	q := Query{
		Type:          normalizeType(in.QueryType),
		Vendor:        strings.TrimSpace(in.Vendor),
		DateFrom:      r.Start,
		DateTo:        r.End,
		PaymentStatus: normalizePaymentStatus(in.PaymentStatus),
		Aggregation:   normalizeAggregation(in.Aggregation),
		GroupBy:       normalizeGroupBy(in.GroupBy),
		Limit:         clampLimit(in.Limit),
		Question:      question,
	}
	if c, ok := bill.ParseCategory(in.Category); ok {
		q.Category = c
	}
	return q
}

func normalizeType(s string) Type {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypeLookup:
		return TypeLookup
	case TypeAggregate:
		return TypeAggregate
	case TypeExists:
		return TypeExists
	case TypeCompare:
		return TypeCompare
	default:
		return TypeList
	}
}

// normalizePaymentStatus checks "unpaid" before "paid": the former contains
// the latter.
func normalizePaymentStatus(s string) bill.PaymentStatus {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return ""
	case strings.Contains(s, "unpaid"), strings.Contains(s, "not paid"):
		return bill.StatusUnpaid
	case strings.Contains(s, "paid") && !strings.Contains(s, "un"):
		return bill.StatusPaid
	case strings.Contains(s, "overdue"):
		return bill.StatusOverdue
	default:
		return ""
	}
}

func normalizeAggregation(s string) Aggregation {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sum", "total":
		return AggregationSum
	case "count", "number":
		return AggregationCount
	case "average", "avg", "mean":
		return AggregationAverage
	case "min", "minimum", "lowest":
		return AggregationMin
	case "max", "maximum", "highest":
		return AggregationMax
	default:
		return ""
	}
}

func normalizeGroupBy(s string) GroupBy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "category", "type":
		return GroupByCategory
	case "vendor", "company":
		return GroupByVendor
	case "month":
		return GroupByMonth
	case "year":
		return GroupByYear
	default:
		return ""
	}
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}
