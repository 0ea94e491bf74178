package webapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// mockStore implements ReportStore for testing.
type mockStore struct {
	reports map[string]*ReportDetail
	listErr error
	getErr  error
	sumErr  error
}

func newMockStore() *mockStore {
	return &mockStore{reports: make(map[string]*ReportDetail)}
}

func (m *mockStore) addReport(detail *ReportDetail) {
	m.reports[detail.ID] = detail
}

func (m *mockStore) ListReports(sortField, order string) ([]ReportSummary, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	reports := make([]ReportSummary, 0, len(m.reports))
	for _, d := range m.reports {
		reports = append(reports, d.ReportSummary)
	}
	sortReports(reports, sortField, order)
	return reports, nil
}

func (m *mockStore) GetReport(id string) (*ReportDetail, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	d, ok := m.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	return d, nil
}

func (m *mockStore) Summary() (*SummaryResponse, error) {
	if m.sumErr != nil {
		return nil, m.sumErr
	}
	resp := &SummaryResponse{}
	totalIoU := 0.0
	totalDice := 0.0
	totalDuration := 0.0
	totalScored := 0
	totalSamples := 0

	for _, d := range m.reports {
		resp.TotalReports++
		totalSamples += d.SampleCount
		totalScored += d.ScoredCount
		totalIoU += d.MeanIoU
		totalDice += d.MeanDice
		totalDuration += d.Duration
	}

	resp.TotalSamples = totalSamples
	if totalSamples > 0 {
		resp.ScoreRate = float64(totalScored) / float64(totalSamples) * 100.0
	}
	if resp.TotalReports > 0 {
		resp.AvgMeanIoU = totalIoU / float64(resp.TotalReports)
		resp.AvgMeanDice = totalDice / float64(resp.TotalReports)
		resp.AvgDuration = totalDuration / float64(resp.TotalReports)
	}

	return resp, nil
}

func sampleReport(id, dataset, model string, scored, total int, meanIoU float64, ts time.Time) *ReportDetail {
	outcome := "passed"
	if scored < total {
		outcome = "failed"
	}
	meanDice := 2 * meanIoU / (1 + meanIoU)
	return &ReportDetail{
		ReportSummary: ReportSummary{
			ID:          id,
			Dataset:     dataset,
			Model:       model,
			Outcome:     outcome,
			ScoredCount: scored,
			SampleCount: total,
			MeanIoU:     meanIoU,
			MeanDice:    meanDice,
			Findings:    1,
			Duration:    42.5,
			Timestamp:   ts,
		},
		Samples: []SampleResponse{
			{
				ID:       "sample-001",
				Outcome:  "scored",
				IoU:      meanIoU,
				Dice:     meanDice,
				Accuracy: 0.97,
				Duration: 1.2,
				Findings: []FindingResponse{
					{
						Severity: "warning",
						Category: "above-range",
						Message:  "iou 0.98 above expected range [0.30, 0.95]",
						Metric:   "iou",
					},
				},
			},
		},
		BatchFindings: []FindingResponse{},
	}
}

func TestHandleHealth(t *testing.T) {
	store := newMockStore()
	h := NewHandlers(store)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()

	h.HandleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
	if resp.Version == "" {
		t.Error("expected non-empty version")
	}
}

func TestHandleSummaryEmpty(t *testing.T) {
	store := newMockStore()
	h := NewHandlers(store)

	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	rec := httptest.NewRecorder()

	h.HandleSummary(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp SummaryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalReports != 0 {
		t.Errorf("expected 0 reports, got %d", resp.TotalReports)
	}
}

func TestHandleSummaryWithReports(t *testing.T) {
	store := newMockStore()
	ts := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	store.addReport(sampleReport("r1", "roads-val", "unet-v1", 4, 5, 0.62, ts))
	store.addReport(sampleReport("r2", "roads-val", "unet-v2", 5, 5, 0.81, ts.Add(time.Hour)))
	h := NewHandlers(store)

	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	rec := httptest.NewRecorder()

	h.HandleSummary(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp SummaryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalReports != 2 {
		t.Errorf("expected 2 reports, got %d", resp.TotalReports)
	}
	if resp.TotalSamples != 10 {
		t.Errorf("expected 10 samples, got %d", resp.TotalSamples)
	}
	if resp.ScoreRate != 90.0 {
		t.Errorf("expected 90%% score rate, got %.1f", resp.ScoreRate)
	}
}

func TestHandleReportsEmpty(t *testing.T) {
	store := newMockStore()
	h := NewHandlers(store)

	req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	rec := httptest.NewRecorder()

	h.HandleReports(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var reports []ReportSummary
	if err := json.NewDecoder(rec.Body).Decode(&reports); err != nil {
		t.Fatal(err)
	}
	if len(reports) != 0 {
		t.Errorf("expected 0 reports, got %d", len(reports))
	}
}

func TestHandleReportsWithSort(t *testing.T) {
	store := newMockStore()
	ts := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	store.addReport(sampleReport("r1", "roads-val", "unet-v1", 4, 5, 0.81, ts))
	store.addReport(sampleReport("r2", "roads-val", "unet-v2", 5, 5, 0.62, ts.Add(time.Hour)))
	h := NewHandlers(store)

	tests := []struct {
		name    string
		sort    string
		order   string
		firstID string
	}{
		{"default desc", "", "", "r2"},
		{"timestamp asc", "timestamp", "asc", "r1"},
		{"iou desc", "iou", "desc", "r1"},
		{"iou asc", "iou", "asc", "r2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/api/reports"
			if tt.sort != "" || tt.order != "" {
				url += "?"
				if tt.sort != "" {
					url += "sort=" + tt.sort
				}
				if tt.order != "" {
					if tt.sort != "" {
						url += "&"
					}
					url += "order=" + tt.order
				}
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			rec := httptest.NewRecorder()

			h.HandleReports(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}

			var reports []ReportSummary
			if err := json.NewDecoder(rec.Body).Decode(&reports); err != nil {
				t.Fatal(err)
			}
			if len(reports) != 2 {
				t.Fatalf("expected 2 reports, got %d", len(reports))
			}
			if reports[0].ID != tt.firstID {
				t.Errorf("expected first report %q, got %q", tt.firstID, reports[0].ID)
			}
		})
	}
}

func TestHandleReportDetail(t *testing.T) {
	store := newMockStore()
	ts := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	store.addReport(sampleReport("roads-val/unet-v2/20260310T093000Z", "roads-val", "unet-v2", 4, 5, 0.81, ts))

	mux := http.NewServeMux()
	RegisterRoutes(mux, store)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/roads-val/unet-v2/20260310T093000Z", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var detail ReportDetail
	if err := json.NewDecoder(rec.Body).Decode(&detail); err != nil {
		t.Fatal(err)
	}
	if detail.ID != "roads-val/unet-v2/20260310T093000Z" {
		t.Errorf("expected slash-joined id, got %q", detail.ID)
	}
	if len(detail.Samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(detail.Samples))
	}
	if detail.Samples[0].ID != "sample-001" {
		t.Errorf("expected sample id sample-001, got %q", detail.Samples[0].ID)
	}
	if len(detail.Samples[0].Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(detail.Samples[0].Findings))
	}
}

func TestHandleReportDetailNotFound(t *testing.T) {
	store := newMockStore()

	mux := http.NewServeMux()
	RegisterRoutes(mux, store)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/nonexistent", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Code != 404 {
		t.Errorf("expected error code 404, got %d", errResp.Code)
	}
}

func TestHandleReportDetailMissingID(t *testing.T) {
	h := NewHandlers(newMockStore())

	req := httptest.NewRequest(http.MethodGet, "/api/reports/", nil)
	rec := httptest.NewRecorder()
	h.HandleReportDetail(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleReportDetailFallbackPathExtraction(t *testing.T) {
	store := newMockStore()
	ts := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	store.addReport(sampleReport("roads-val/unet-v2/20260310T093000Z", "roads-val", "unet-v2", 5, 5, 0.81, ts))
	h := NewHandlers(store)

	// Direct handler call without the mux, so PathValue is empty and the
	// path fallback must recover the full slash-joined id.
	req := httptest.NewRequest(http.MethodGet, "/api/reports/roads-val/unet-v2/20260310T093000Z", nil)
	rec := httptest.NewRecorder()
	h.HandleReportDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var detail ReportDetail
	if err := json.NewDecoder(rec.Body).Decode(&detail); err != nil {
		t.Fatal(err)
	}
	if detail.ID != "roads-val/unet-v2/20260310T093000Z" {
		t.Errorf("expected full id from path fallback, got %q", detail.ID)
	}
}

func TestCORSMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("no origins configured means no CORS header", func(t *testing.T) {
		handler := CORSMiddleware(inner)
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "http://evil.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("expected no CORS header when no origins configured")
		}
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("allowed origin gets CORS header", func(t *testing.T) {
		handler := CORSMiddleware(inner, "http://localhost:5173")
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
			t.Error("expected CORS header for allowed origin")
		}
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("disallowed origin gets no CORS header", func(t *testing.T) {
		handler := CORSMiddleware(inner, "http://localhost:5173")
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "http://evil.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("expected no CORS header for disallowed origin")
		}
	})

	t.Run("OPTIONS preflight", func(t *testing.T) {
		handler := CORSMiddleware(inner, "http://localhost:5173")
		req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204 for OPTIONS, got %d", rec.Code)
		}
	})
}

func TestRegisterRoutes(t *testing.T) {
	store := newMockStore()
	mux := http.NewServeMux()
	RegisterRoutes(mux, store)

	// Verify health endpoint is wired up.
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /api/health, got %d", rec.Code)
	}

	// Verify summary endpoint is wired up.
	req = httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /api/summary, got %d", rec.Code)
	}

	// Verify reports endpoint is wired up.
	req = httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /api/reports, got %d", rec.Code)
	}
}

func TestSummaryError(t *testing.T) {
	store := newMockStore()
	store.sumErr = fmt.Errorf("boom")
	h := NewHandlers(store)

	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	rec := httptest.NewRecorder()

	h.HandleSummary(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestHandleReportsStoreError(t *testing.T) {
	store := newMockStore()
	store.listErr = fmt.Errorf("list failed")
	h := NewHandlers(store)

	req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	rec := httptest.NewRecorder()
	h.HandleReports(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Code != http.StatusInternalServerError {
		t.Errorf("expected error code 500, got %d", errResp.Code)
	}
}

func TestHandleReportDetailStoreError(t *testing.T) {
	store := newMockStore()
	store.getErr = fmt.Errorf("disk I/O error")

	mux := http.NewServeMux()
	RegisterRoutes(mux, store)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/any-id", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for store error, got %d", rec.Code)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Code != 500 {
		t.Errorf("expected error code 500, got %d", errResp.Code)
	}
}
