package accountant

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/zombor/bill-tracker/internal/bill"
)

// maxUploadSize leaves room for full resolution phone photos
const maxUploadSize = int64(50 << 20)

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, bill.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// contentTypeFor trusts the part header unless it is missing or generic,
// then falls back to the file extension.
func contentTypeFor(header string, filename string) string {
	header = strings.ToLower(strings.TrimSpace(header))
	if header != "" && header != "application/octet-stream" {
		return header
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return "application/octet-stream"
}

func (s *Server) handleScanBill(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		msg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			msg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		jsonError(w, msg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		jsonError(w, "No file was selected. Please choose a file to upload.", http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		jsonError(w, "File is too large. Maximum size is 50MB. Please compress or resize your image.", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	result, err := s.service.ScanBill(r.Context(), header.Filename, data, contentTypeFor(header.Header.Get("Content-Type"), header.Filename))
	if err != nil {
		slog.Error("Error scanning bill", "filename", header.Filename, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleConfirmBill(w http.ResponseWriter, r *http.Request) {
	var c Confirmation
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	b, err := s.service.ConfirmBill(r.Context(), c)
	if err != nil {
		slog.Error("Error confirming bill", "error", err)
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleRejectBill(w http.ResponseWriter, r *http.Request) {
	if err := s.service.RejectBill(r.Context(), r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseFilter reads list filters from the query string. Unknown categories
// and statuses are rejected rather than ignored.
func parseFilter(r *http.Request) (bill.Filter, error) {
	v := r.URL.Query()
	f := bill.Filter{Vendor: strings.TrimSpace(v.Get("vendor"))}

	if c := v.Get("category"); c != "" {
		category, ok := bill.ParseCategory(c)
		if !ok {
			return f, errors.New("unknown category")
		}
		f.Category = category
	}
	if st := v.Get("status"); st != "" {
		f.PaymentStatus = bill.PaymentStatus(strings.ToLower(st))
		if !f.PaymentStatus.Valid() {
			return f, errors.New("unknown payment status")
		}
	}
	for key, dst := range map[string]**civil.Date{"from": &f.DateFrom, "to": &f.DateTo} {
		if raw := v.Get(key); raw != "" {
			d, err := civil.ParseDate(raw)
			if err != nil {
				return f, errors.New("dates must be YYYY-MM-DD")
			}
			*dst = &d
		}
	}
	for key, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if raw := v.Get(key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return f, errors.New(key + " must be a non-negative integer")
			}
			*dst = n
		}
	}
	return f, nil
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	bills, err := s.service.ListBills(r.Context(), f)
	if err != nil {
		slog.Error("Error listing bills", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if bills == nil {
		bills = []bill.Bill{}
	}

	writeJSON(w, http.StatusOK, bills)
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	b, err := s.service.GetBill(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(w, "Bill not found", statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleGetBillFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetBillFile(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteBill(r.Context(), r.PathValue("id")); err != nil {
		slog.Error("Error deleting bill", "error", err)
		http.Error(w, "Error deleting bill", statusFor(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BillIDs []string `json:"bill_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	bills, err := s.service.MarkPaid(r.Context(), req.BillIDs)
	if err != nil {
		slog.Error("Error marking bills paid", "error", err)
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, bills)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	answer, err := s.service.Ask(r.Context(), req.Question)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, answer)
}
