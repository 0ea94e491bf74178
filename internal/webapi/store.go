package webapi

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pavise/maskeval/internal/models"
)

// ErrReportNotFound is returned when a report ID does not match any
// stored report.
var ErrReportNotFound = errors.New("report not found")

// ReportStore provides access to evaluation report data.
type ReportStore interface {
	// ListReports returns all reports, sorted by the given field and order.
	ListReports(sortField, order string) ([]ReportSummary, error)
	// GetReport returns a single report with full sample details.
	GetReport(id string) (*ReportDetail, error)
	// Summary returns aggregate metrics across all reports.
	Summary() (*SummaryResponse, error)
}

// FileStore reads report JSON files from a results directory. Reports
// written by maskeval run land either flat or nested per dataset and
// model, so the walk is recursive and IDs are slash-joined relative
// paths without the extension.
type FileStore struct {
	dir string

	mu      sync.RWMutex
	reports map[string]*models.Report
	loaded  bool
	loadErr error
}

// NewFileStore creates a FileStore that reads results from dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		dir:     dir,
		reports: make(map[string]*models.Report),
	}
}

// load reads all report JSON files under the configured directory.
func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = make(map[string]*models.Report)

	if s.dir == "" {
		s.loaded = true
		return nil
	}

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != s.dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var report models.Report
		if err := json.Unmarshal(data, &report); err != nil {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return nil
		}
		id := filepath.ToSlash(strings.TrimSuffix(rel, ".json"))
		s.reports[id] = &report
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			s.loaded = true
			return nil
		}
		s.loadErr = err
		return err
	}

	s.loaded = true
	s.loadErr = nil
	return nil
}

// ensureLoaded loads data if not already loaded.
func (s *FileStore) ensureLoaded() error {
	s.mu.RLock()
	if s.loaded {
		s.mu.RUnlock()
		return nil
	}
	s.mu.RUnlock()
	return s.load()
}

// Reload forces a fresh reload of all report files from disk.
func (s *FileStore) Reload() error {
	return s.load()
}

func reportToSummary(id string, r *models.Report) ReportSummary {
	outcome := "passed"
	if r.Digest.Failed > 0 || hasErrorFinding(r) {
		outcome = "failed"
	}

	return ReportSummary{
		ID:          id,
		Dataset:     r.Dataset,
		Model:       r.Model,
		Outcome:     outcome,
		ScoredCount: r.Digest.Scored,
		SampleCount: r.Digest.TotalSamples,
		MeanIoU:     r.Digest.MeanIoU,
		MeanDice:    r.Digest.MeanDice,
		Findings:    len(r.AllFindings()),
		Duration:    float64(r.Digest.DurationMs) / 1000.0,
		Timestamp:   r.CreatedAt,
	}
}

// hasErrorFinding reports whether the report carries any error-severity
// finding, batch or sample scoped. These fail the run the same way a
// failed sample does.
func hasErrorFinding(r *models.Report) bool {
	for _, f := range r.AllFindings() {
		if f.Severity == models.SeverityError {
			return true
		}
	}
	return false
}

func reportToDetail(id string, r *models.Report) *ReportDetail {
	s := reportToSummary(id, r)
	detail := &ReportDetail{ReportSummary: s}

	for _, sr := range r.Samples {
		resp := SampleResponse{
			ID:        sr.ID,
			Outcome:   string(sr.Status),
			Duration:  float64(sr.DurationMs) / 1000.0,
			FromCache: sr.FromCache,
			Error:     sr.Error,
			Findings:  mapFindings(sr.Findings),
		}
		if sr.Metrics != nil {
			resp.IoU = sr.Metrics.IoU
			resp.Dice = sr.Metrics.Dice
			resp.Accuracy = sr.Metrics.Accuracy
		}
		detail.Samples = append(detail.Samples, resp)
	}
	if detail.Samples == nil {
		detail.Samples = []SampleResponse{}
	}

	detail.BatchFindings = mapFindings(r.Findings)
	return detail
}

func mapFindings(findings []models.Finding) []FindingResponse {
	resp := make([]FindingResponse, 0, len(findings))
	for _, f := range findings {
		resp = append(resp, FindingResponse{
			Severity:       string(f.Severity),
			Category:       f.Category,
			Message:        f.Message,
			Recommendation: f.Recommendation,
			Metric:         f.Metric,
		})
	}
	return resp
}

// ListReports returns all reports sorted by the given field and order.
func (s *FileStore) ListReports(sortField, order string) ([]ReportSummary, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]ReportSummary, 0, len(s.reports))
	for id, r := range s.reports {
		reports = append(reports, reportToSummary(id, r))
	}

	sortReports(reports, sortField, order)
	return reports, nil
}

// GetReport returns a single report with full sample details.
func (s *FileStore) GetReport(id string) (*ReportDetail, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}

	return reportToDetail(id, r), nil
}

// Summary returns aggregate metrics across all reports.
func (s *FileStore) Summary() (*SummaryResponse, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := &SummaryResponse{}
	if len(s.reports) == 0 {
		return resp, nil
	}

	totalIoU := 0.0
	totalDice := 0.0
	totalDuration := 0.0
	totalScored := 0
	totalSamples := 0

	for id, r := range s.reports {
		resp.TotalReports++
		totalSamples += r.Digest.TotalSamples
		totalScored += r.Digest.Scored

		sum := reportToSummary(id, r)
		totalIoU += sum.MeanIoU
		totalDice += sum.MeanDice
		totalDuration += sum.Duration
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

func sortReports(reports []ReportSummary, field, order string) {
	less := func(i, j int) bool {
		switch field {
		case "iou":
			return reports[i].MeanIoU < reports[j].MeanIoU
		case "dice":
			return reports[i].MeanDice < reports[j].MeanDice
		case "duration":
			return reports[i].Duration < reports[j].Duration
		default: // "timestamp" or empty
			return reports[i].Timestamp.Before(reports[j].Timestamp)
		}
	}

	if order == "asc" {
		sort.Slice(reports, less)
	} else {
		sort.Slice(reports, func(i, j int) bool { return less(j, i) })
	}
}

// Ensure FileStore satisfies ReportStore.
var _ ReportStore = (*FileStore)(nil)
