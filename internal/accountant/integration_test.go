package accountant_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"cloud.google.com/go/civil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/shopspring/decimal"

	"github.com/zombor/bill-tracker/internal/accountant"
	"github.com/zombor/bill-tracker/internal/bill"
	"github.com/zombor/bill-tracker/internal/scanning"
	"github.com/zombor/bill-tracker/internal/validation"
)

type stubScanner struct {
	data *scanning.BillData
}

func (s *stubScanner) ScanBill(imageData []byte, contentType string) (*scanning.BillData, error) {
	return s.data, nil
}

func (s *stubScanner) Close() error {
	return nil
}

// stubGenerator answers question parsing with a fixed intent and fails
// answer phrasing, so answers come from the built-in fallback.
type stubGenerator struct {
	intent string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	if bytes.Contains([]byte(prompt), []byte("Extract the intent")) {
		return s.intent, nil
	}
	return "", context.DeadlineExceeded
}

var _ = Describe("Integration", func() {
	var (
		db       *bill.BoltDB
		store    *bill.FileStore
		gen      *stubGenerator
		server   *accountant.Server
		ghServer *ghttp.Server
	)

	BeforeEach(func() {
		dir := GinkgoT().TempDir()

		var err error
		db, err = bill.NewBoltDB(filepath.Join(dir, "test.db"))
		Expect(err).NotTo(HaveOccurred())
		store, err = bill.NewFileStore(filepath.Join(dir, "bills"))
		Expect(err).NotTo(HaveOccurred())

		total := decimal.RequireFromString("1180.00")
		date := civil.DateOf(time.Now())
		scanner := &stubScanner{data: &scanning.BillData{
			VendorName:  "BESCOM",
			BillNumber:  "EB-2024-03",
			BillDate:    &date,
			TotalAmount: &total,
			Confidence:  0.95,
		}}
		gen = &stubGenerator{}

		service := accountant.NewService(db, scanner, store, gen, validation.DefaultConfig())
		server = accountant.NewServer(service, accountant.BasicAuth{})
		ghServer = ghttp.NewServer()
	})

	AfterEach(func() {
		ghServer.Close()
		db.Close()
	})

	send := func(req *http.Request) *http.Response {
		ghServer.AppendHandlers(server.ServeHTTP)
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	scan := func() accountant.ScanResult {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "bill.pdf")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte("%PDF-1.4 ... fake pdf content ..."))
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		req, err := http.NewRequest(http.MethodPost, ghServer.URL()+"/api/bills/scan", body)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", writer.FormDataContentType())

		resp := send(req)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var result accountant.ScanResult
		Expect(json.NewDecoder(resp.Body).Decode(&result)).To(Succeed())
		return result
	}

	postJSON := func(path string, v any) *http.Response {
		data, err := json.Marshal(v)
		Expect(err).NotTo(HaveOccurred())
		req, err := http.NewRequest(http.MethodPost, ghServer.URL()+path, bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		return send(req)
	}

	It("scans, confirms, flags the duplicate and answers questions", func() {
		// --- Step 1: scan ---
		first := scan()
		Expect(first.Validation.IsValid).To(BeTrue())
		Expect(first.Extracted.SuggestedCategory).To(Equal(bill.CategoryElectricity))

		_, err := store.Get(first.Extracted.Filename)
		Expect(err).NotTo(HaveOccurred())

		bills, err := db.ListBills(context.Background(), bill.Filter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(bills).To(BeEmpty())

		// --- Step 2: confirm ---
		resp := postJSON("/api/bills", accountant.Confirmation{
			ExtractionID: first.Extracted.ID,
			VendorName:   first.Extracted.VendorName,
			Category:     first.Extracted.SuggestedCategory,
			TotalAmount:  first.Extracted.TotalAmount,
			BillDate:     first.Extracted.BillDate,
			BillNumber:   first.Extracted.BillNumber,
		})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var saved bill.Bill
		Expect(json.NewDecoder(resp.Body).Decode(&saved)).To(Succeed())

		stored, err := db.GetBill(context.Background(), saved.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Filename).To(Equal(first.Extracted.Filename))

		// --- Step 3: the same bill again ---
		second := scan()
		Expect(second.Validation.Issues).To(ContainElement(HaveField("Type", validation.IssuePotentialDuplicate)))
		Expect(second.Validation.CanProceedWithReview).To(BeTrue())

		// --- Step 4: ask ---
		gen.intent = `{"query_type": "aggregate", "category": "electricity", "time_reference": "this year"}`
		resp = postJSON("/api/questions", map[string]string{"question": "How much did I spend on electricity this year?"})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var answer accountant.Answer
		Expect(json.NewDecoder(resp.Body).Decode(&answer)).To(Succeed())
		Expect(answer.Result.Success).To(BeTrue())
		Expect(answer.Result.Aggregation.Value.StringFixed(2)).To(Equal("1180.00"))
		Expect(answer.Answer).To(ContainSubstring("value: 1180.00"))

		// --- Step 5: pay ---
		resp = postJSON("/api/bills/paid", map[string][]string{"bill_ids": {saved.ID}})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		paid, err := db.GetBill(context.Background(), saved.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(paid.PaymentStatus).To(Equal(bill.StatusPaid))
	})
})
