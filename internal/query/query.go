// Package query answers questions about saved bills from stored data only.
// A Query is built from untrusted hints by Normalize and run by an Executor;
// nothing in this package makes up a value that is not in the record source.
package query

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/zombor/bill-tracker/internal/bill"
)

// Type selects the execution strategy
type Type string

const (
	TypeLookup    Type = "lookup"
	TypeList      Type = "list"
	TypeAggregate Type = "aggregate"
	TypeExists    Type = "exists"
	TypeCompare   Type = "compare"
)

// Aggregation is the function applied over bill amounts
type Aggregation string

const (
	AggregationSum     Aggregation = "sum"
	AggregationCount   Aggregation = "count"
	AggregationAverage Aggregation = "average"
	AggregationMin     Aggregation = "min"
	AggregationMax     Aggregation = "max"
)

// GroupBy is the partition key for a grouped breakdown
type GroupBy string

const (
	GroupByCategory GroupBy = "category"
	GroupByVendor   GroupBy = "vendor"
	GroupByMonth    GroupBy = "month"
	GroupByYear     GroupBy = "year"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	// AggregateFetchLimit is a hard ceiling on how many bills an aggregate
	// reads, independent of Query.Limit.
	AggregateFetchLimit = 1000
)

// Query is a fully typed question. Empty string fields and nil dates mean
// "no constraint on this dimension".
type Query struct {
	Type          Type               `json:"query_type"`
	Category      bill.Category      `json:"category,omitempty"`
	Vendor        string             `json:"vendor,omitempty"`
	DateFrom      *civil.Date        `json:"date_from,omitempty"`
	DateTo        *civil.Date        `json:"date_to,omitempty"`
	PaymentStatus bill.PaymentStatus `json:"payment_status,omitempty"`
	Aggregation   Aggregation        `json:"aggregation,omitempty"`
	GroupBy       GroupBy            `json:"group_by,omitempty"`
	Limit         int                `json:"limit"`
	Question      string             `json:"question"`
}

func (q Query) filter(limit int) bill.Filter {
	return bill.Filter{
		Category:      q.Category,
		Vendor:        q.Vendor,
		DateFrom:      q.DateFrom,
		DateTo:        q.DateTo,
		PaymentStatus: q.PaymentStatus,
		Limit:         limit,
	}
}

// Result is what the executor hands to the response formatter
type Result struct {
	Success      bool               `json:"success"`
	ErrorMessage string             `json:"error_message,omitempty"`
	DataFound    bool               `json:"data_found"`
	ResultCount  int                `json:"result_count"`
	Results      []map[string]any   `json:"results"`
	Aggregation  *AggregationResult `json:"aggregation_result,omitempty"`
	Description  string             `json:"query_description"`
}

// AggregationResult is the outcome of an aggregate query. Value holds the
// function result; for count it is the number of bills. Count is always the
// number of bills aggregated.
type AggregationResult struct {
	Function  Aggregation                `json:"function"`
	Value     decimal.Decimal            `json:"value"`
	Count     int                        `json:"count"`
	GroupBy   GroupBy                    `json:"group_by,omitempty"`
	Breakdown map[string]decimal.Decimal `json:"breakdown,omitempty"`
}
