package query

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/bill-tracker/internal/bill"
)

// mockSource filters an in-memory slice the way a real source would, but
// returns bills in insertion order so the executor has to sort them
type mockSource struct {
	bills   []bill.Bill
	listErr error
	panics  bool
	filters []bill.Filter
}

func (m *mockSource) ListBills(ctx context.Context, f bill.Filter) ([]bill.Bill, error) {
	m.filters = append(m.filters, f)
	if m.panics {
		panic("boom")
	}
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]bill.Bill, 0)
	for i := range m.bills {
		if f.Matches(&m.bills[i]) {
			out = append(out, m.bills[i])
		}
	}
	return out, nil
}

func newBill(id, vendor string, cat bill.Category, amount string, y int, m time.Month, d int) bill.Bill {
	return bill.Bill{
		ID:            id,
		VendorName:    vendor,
		Category:      cat,
		TotalAmount:   decimal.RequireFromString(amount),
		BillDate:      civil.Date{Year: y, Month: m, Day: d},
		PaymentStatus: bill.StatusUnpaid,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var _ = Describe("Executor", func() {
	var (
		ctx      context.Context
		source   *mockSource
		executor *Executor
		q        Query
		result   Result
	)

	BeforeEach(func() {
		ctx = context.Background()
		source = &mockSource{}
		executor = NewExecutor(source)
		q = Query{Limit: DefaultLimit}
	})

	JustBeforeEach(func() {
		result = executor.Execute(ctx, q)
	})

	Describe("list", func() {
		BeforeEach(func() {
			q.Type = TypeList
			source.bills = []bill.Bill{
				newBill("old", "Tata Power", bill.CategoryElectricity, "100", 2024, time.January, 10),
				newBill("new", "Tata Power", bill.CategoryElectricity, "200", 2024, time.March, 10),
				newBill("mid", "Airtel", bill.CategoryInternet, "300", 2024, time.February, 10),
			}
		})

		It("succeeds", func() {
			Expect(result.Success).To(BeTrue())
			Expect(result.ErrorMessage).To(BeEmpty())
		})

		It("orders the newest bill first", func() {
			Expect(result.Results).To(HaveLen(3))
			Expect(result.Results[0]["id"]).To(Equal("new"))
			Expect(result.Results[1]["id"]).To(Equal("mid"))
			Expect(result.Results[2]["id"]).To(Equal("old"))
		})

		It("keeps data_found in step with result_count", func() {
			Expect(result.ResultCount).To(Equal(3))
			Expect(result.DataFound).To(BeTrue())
		})

		It("flattens records for the formatter", func() {
			Expect(result.Results[0]).To(Equal(map[string]any{
				"id":             "new",
				"vendor_name":    "Tata Power",
				"category":       "electricity",
				"total_amount":   "200.00",
				"bill_date":      "2024-03-10",
				"due_date":       nil,
				"payment_status": "unpaid",
				"bill_number":    nil,
			}))
		})

		It("describes the query", func() {
			Expect(result.Description).To(Equal("Listing bills"))
		})

		When("the limit is smaller than the match count", func() {
			BeforeEach(func() { q.Limit = 2 })

			It("truncates after sorting", func() {
				Expect(result.ResultCount).To(Equal(2))
				Expect(result.Results[0]["id"]).To(Equal("new"))
				Expect(result.Results[1]["id"]).To(Equal("mid"))
			})

			It("passes the limit to the source", func() {
				Expect(source.filters[0].Limit).To(Equal(2))
			})
		})

		When("filters are set", func() {
			BeforeEach(func() {
				from := civil.Date{Year: 2024, Month: time.March, Day: 1}
				to := civil.Date{Year: 2024, Month: time.March, Day: 31}
				q.Category = bill.CategoryElectricity
				q.Vendor = "tata"
				q.DateFrom, q.DateTo = &from, &to
			})

			It("applies them conjunctively", func() {
				Expect(result.ResultCount).To(Equal(1))
				Expect(result.Results[0]["id"]).To(Equal("new"))
			})

			It("describes them in a fixed order", func() {
				Expect(result.Description).To(Equal("Listing bills | category: electricity | vendor: tata | in March 2024"))
			})
		})

		When("nothing matches", func() {
			BeforeEach(func() { q.Vendor = "nobody" })

			It("reports no data without failing", func() {
				Expect(result.Success).To(BeTrue())
				Expect(result.DataFound).To(BeFalse())
				Expect(result.ResultCount).To(BeZero())
				Expect(result.Results).To(BeEmpty())
			})
		})
	})

	Describe("lookup", func() {
		BeforeEach(func() {
			q.Type = TypeLookup
			q.PaymentStatus = bill.StatusUnpaid
			source.bills = []bill.Bill{
				newBill("a", "Tata Power", bill.CategoryElectricity, "100", 2024, time.January, 10),
			}
		})

		It("uses list semantics with its own wording", func() {
			Expect(result.ResultCount).To(Equal(1))
			Expect(result.Description).To(Equal("Looking for bills | status: unpaid"))
		})
	})

	Describe("aggregate", func() {
		BeforeEach(func() {
			q.Type = TypeAggregate
			q.Limit = 1
			source.bills = []bill.Bill{
				newBill("a", "Tata Power", bill.CategoryElectricity, "100", 2024, time.March, 2),
				newBill("b", "Airtel", bill.CategoryInternet, "200", 2024, time.March, 20),
				newBill("c", "Tata Power", bill.CategoryElectricity, "300", 2024, time.April, 5),
			}
		})

		When("no aggregation is set", func() {
			It("sums every amount", func() {
				Expect(result.Aggregation).NotTo(BeNil())
				Expect(result.Aggregation.Function).To(Equal(AggregationSum))
				Expect(result.Aggregation.Value.Equal(dec("600"))).To(BeTrue())
				Expect(result.Aggregation.Count).To(Equal(3))
			})

			It("ignores the query limit", func() {
				Expect(result.ResultCount).To(Equal(3))
				Expect(source.filters[0].Limit).To(Equal(AggregateFetchLimit))
			})

			It("reports that data was found", func() {
				Expect(result.DataFound).To(BeTrue())
			})

			It("has no breakdown", func() {
				Expect(result.Aggregation.Breakdown).To(BeNil())
			})
		})

		When("averaging", func() {
			BeforeEach(func() {
				q.Aggregation = AggregationAverage
				q.Vendor = "tata"
			})

			It("returns the arithmetic mean", func() {
				Expect(result.Aggregation.Value.Equal(dec("200"))).To(BeTrue())
				Expect(result.Aggregation.Count).To(Equal(2))
			})

			It("describes the aggregation", func() {
				Expect(result.Description).To(Equal("Calculating average from tata"))
			})
		})

		DescribeTable("functions",
			func(fn Aggregation, expected string) {
				res := NewExecutor(source).Execute(ctx, Query{Type: TypeAggregate, Aggregation: fn})
				Expect(res.Aggregation.Value.Equal(dec(expected))).To(BeTrue())
			},
			Entry("count", AggregationCount, "3"),
			Entry("min", AggregationMin, "100"),
			Entry("max", AggregationMax, "300"),
			Entry("sum", AggregationSum, "600"),
		)

		When("grouping by month", func() {
			BeforeEach(func() { q.GroupBy = GroupByMonth })

			It("combines bills from the same calendar month", func() {
				Expect(result.Aggregation.Breakdown).To(HaveLen(2))
				Expect(result.Aggregation.Breakdown["2024-03"].Equal(dec("300"))).To(BeTrue())
				Expect(result.Aggregation.Breakdown["2024-04"].Equal(dec("300"))).To(BeTrue())
			})

			It("still reports the overall value", func() {
				Expect(result.Aggregation.Value.Equal(dec("600"))).To(BeTrue())
			})

			It("mentions the grouping", func() {
				Expect(result.Description).To(Equal("Calculating sum grouped by month"))
			})
		})

		When("grouping by vendor with max", func() {
			BeforeEach(func() {
				q.GroupBy = GroupByVendor
				q.Aggregation = AggregationMax
			})

			It("applies the same function within each group", func() {
				Expect(result.Aggregation.Breakdown["Tata Power"].Equal(dec("300"))).To(BeTrue())
				Expect(result.Aggregation.Breakdown["Airtel"].Equal(dec("200"))).To(BeTrue())
			})
		})

		When("grouping by category with count", func() {
			BeforeEach(func() {
				q.GroupBy = GroupByCategory
				q.Aggregation = AggregationCount
			})

			It("counts per category", func() {
				Expect(result.Aggregation.Breakdown["electricity"].Equal(dec("2"))).To(BeTrue())
				Expect(result.Aggregation.Breakdown["internet"].Equal(dec("1"))).To(BeTrue())
			})
		})

		When("grouping by year", func() {
			BeforeEach(func() { q.GroupBy = GroupByYear })

			It("keys groups by four digit year", func() {
				Expect(result.Aggregation.Breakdown).To(HaveKey("2024"))
			})
		})

		When("nothing matches", func() {
			BeforeEach(func() { q.Category = bill.CategoryWater })

			It("reports no data and no aggregation", func() {
				Expect(result.Success).To(BeTrue())
				Expect(result.DataFound).To(BeFalse())
				Expect(result.Aggregation).To(BeNil())
			})
		})
	})

	Describe("compare", func() {
		BeforeEach(func() {
			q.Type = TypeCompare
			source.bills = []bill.Bill{
				newBill("a", "Tata Power", bill.CategoryElectricity, "100", 2024, time.March, 2),
				newBill("b", "Tata Power", bill.CategoryElectricity, "50", 2024, time.April, 2),
			}
		})

		It("behaves like aggregate", func() {
			Expect(result.Aggregation).NotTo(BeNil())
			Expect(result.Aggregation.Value.Equal(dec("150"))).To(BeTrue())
		})
	})

	Describe("exists", func() {
		BeforeEach(func() {
			q.Type = TypeExists
			q.Category = bill.CategoryElectricity
		})

		When("no bill matches", func() {
			It("answers no", func() {
				Expect(result.Success).To(BeTrue())
				Expect(result.DataFound).To(BeFalse())
				Expect(result.ResultCount).To(BeZero())
				Expect(result.Results).To(Equal([]map[string]any{{"exists": false, "answer": "no"}}))
			})
		})

		When("a bill matches", func() {
			BeforeEach(func() {
				source.bills = []bill.Bill{
					newBill("a", "Tata Power", bill.CategoryElectricity, "100", 2024, time.March, 2),
				}
			})

			It("answers yes and cites the bill", func() {
				Expect(result.DataFound).To(BeTrue())
				Expect(result.ResultCount).To(Equal(1))
				Expect(result.Results).To(HaveLen(2))
				Expect(result.Results[0]).To(Equal(map[string]any{"exists": true, "answer": "yes"}))
				Expect(result.Results[1]["id"]).To(Equal("a"))
			})

			It("fetches a single record", func() {
				Expect(source.filters[0].Limit).To(Equal(1))
			})

			It("describes the check", func() {
				Expect(result.Description).To(Equal("Checking if electricity bill"))
			})
		})
	})

	Describe("failures", func() {
		BeforeEach(func() { q.Type = TypeList })

		When("the source returns an error", func() {
			BeforeEach(func() { source.listErr = errors.New("disk on fire") })

			It("returns a failed result instead of an error", func() {
				Expect(result.Success).To(BeFalse())
				Expect(result.DataFound).To(BeFalse())
				Expect(result.ResultCount).To(BeZero())
				Expect(result.ErrorMessage).To(ContainSubstring("disk on fire"))
				Expect(result.Description).To(HavePrefix("Query failed: "))
				Expect(result.Description).To(ContainSubstring("disk on fire"))
			})
		})

		When("the source panics", func() {
			BeforeEach(func() { source.panics = true })

			It("recovers into a failed result", func() {
				Expect(result.Success).To(BeFalse())
				Expect(result.ErrorMessage).To(ContainSubstring("boom"))
			})
		})

		When("the query type is unknown", func() {
			BeforeEach(func() { q.Type = Type("delete") })

			It("returns a failed result", func() {
				Expect(result.Success).To(BeFalse())
				Expect(result.ErrorMessage).To(ContainSubstring("unsupported query type"))
			})
		})

		When("there is no source", func() {
			BeforeEach(func() { executor = NewExecutor(nil) })

			It("returns a renderable cannot-answer result", func() {
				Expect(result.Success).To(BeFalse())
				Expect(result.DataFound).To(BeFalse())
				Expect(result.ErrorMessage).To(Equal(ErrNoSource.Error()))
				Expect(result.Description).To(ContainSubstring("can't answer"))
			})
		})
	})
})

var _ = Describe("FormatDateRange", func() {
	d := func(y int, m time.Month, day int) *civil.Date {
		return &civil.Date{Year: y, Month: m, Day: day}
	}

	DescribeTable("phrases",
		func(from, to *civil.Date, expected string) {
			Expect(FormatDateRange(from, to)).To(Equal(expected))
		},
		Entry("same day", d(2024, time.March, 5), d(2024, time.March, 5), "on 05 Mar 2024"),
		Entry("same month", d(2024, time.March, 1), d(2024, time.March, 31), "in March 2024"),
		Entry("same year", d(2024, time.January, 1), d(2024, time.March, 31), "from Jan to Mar 2024"),
		Entry("across years", d(2023, time.December, 1), d(2024, time.February, 29), "from Dec 2023 to Feb 2024"),
		Entry("open end", d(2024, time.March, 5), nil, "from 05 Mar 2024"),
		Entry("open start", nil, d(2024, time.March, 5), "until 05 Mar 2024"),
		Entry("unbounded", nil, nil, ""),
	)
})
