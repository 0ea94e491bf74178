package metrics

import (
	"sort"
	"sync"

	"github.com/pavise/maskeval/internal/models"
)

// Collector accumulates per-sample results from scoring workers. All
// methods are safe for concurrent use, so workers can record results
// directly instead of funneling them through a channel.
type Collector struct {
	mu      sync.Mutex
	samples []models.SampleResult
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Score records a successfully scored sample.
func (c *Collector) Score(id string, m models.SampleMetrics, findings ...models.Finding) {
	c.Add(models.SampleResult{
		ID:       id,
		Status:   models.StatusScored,
		Metrics:  &m,
		Findings: findings,
	})
}

// Fail records a sample whose evaluation failed. The sample still
// counts toward totals but contributes nothing to aggregates.
func (c *Collector) Fail(id string, err error) {
	res := models.SampleResult{
		ID:     id,
		Status: models.StatusFailed,
	}
	if err != nil {
		res.Error = err.Error()
	}
	c.Add(res)
}

// Add records a fully populated sample result.
func (c *Collector) Add(result models.SampleResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, result)
}

// Len returns the number of recorded samples.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

// Samples returns the recorded results sorted by sample ID. Sorting
// makes the output deterministic regardless of worker interleaving.
func (c *Collector) Samples() []models.SampleResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.SampleResult, len(c.samples))
	copy(out, c.samples)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Aggregates computes per-metric aggregates over the scored samples
// recorded so far.
func (c *Collector) Aggregates() map[string]models.Aggregate {
	return Aggregate(c.Samples())
}

// Aggregate computes per-metric aggregates over the scored samples in
// results. Failed samples are skipped, and metrics with no scored
// values are omitted from the map entirely rather than reported as
// zero.
func Aggregate(results []models.SampleResult) map[string]models.Aggregate {
	values := make(map[string][]float64)
	for _, res := range results {
		if res.Status != models.StatusScored || res.Metrics == nil {
			continue
		}
		for _, name := range models.MetricNames() {
			if v, ok := res.Metrics.Value(name); ok {
				values[name] = append(values[name], v)
			}
		}
	}

	aggregates := make(map[string]models.Aggregate, len(values))
	for name, vals := range values {
		aggregates[name] = models.NewAggregate(vals)
	}
	return aggregates
}
