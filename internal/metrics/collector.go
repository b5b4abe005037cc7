// Package metrics aggregates per-task token, cost, and duration
// statistics. Summary figures are recomputed from stored records on
// every request instead of being carried as running totals.
package metrics

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/metalagman/droidagent/internal/agent"
)

// modelPricing is USD per one million tokens.
type modelPricing struct {
	Input  float64
	Output float64
}

var pricingTable = map[string]modelPricing{
	"qwen3-coder:480b":    {Input: 0.50, Output: 1.50},
	"deepseek-v3.2:671b":  {Input: 0.60, Output: 1.80},
	"nemotron-3-nano:30b": {Input: 0.05, Output: 0.15},
}

// EstimateCost returns the linear cost estimate for a model; unknown
// models cost zero.
func EstimateCost(model string, promptTokens, completionTokens int) float64 {
	p, ok := pricingTable[model]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1e6*p.Input + float64(completionTokens)/1e6*p.Output
}

// TokenReduction returns the percentage saved against a baseline token
// estimate; zero when no baseline exists.
func TokenReduction(baselineTokens, actualTokens int) float64 {
	if baselineTokens <= 0 {
		return 0
	}
	return (1 - float64(actualTokens)/float64(baselineTokens)) * 100
}

// EstimateTokens applies the chars-per-token heuristic to a string.
func EstimateTokens(s string, charsPerToken int) int {
	if charsPerToken <= 0 {
		charsPerToken = 4
	}
	return len(s) / charsPerToken
}

// TaskMetrics is one task's aggregate, read-only once recorded.
type TaskMetrics struct {
	TaskID           string        `json:"task_id"`
	Task             string        `json:"task"`
	Model            string        `json:"model"`
	Success          bool          `json:"success"`
	Steps            int           `json:"steps"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	BaselineTokens   int           `json:"baseline_tokens"`
	CostUSD          float64       `json:"cost_usd"`
	Duration         time.Duration `json:"duration_ms"`
	RecordedAt       time.Time     `json:"recorded_at"`
}

// Reduction returns this task's token reduction percentage.
func (m TaskMetrics) Reduction() float64 {
	return TokenReduction(m.BaselineTokens, m.TotalTokens)
}

// Summary is recomputed from all stored records.
type Summary struct {
	Tasks            int           `json:"tasks"`
	Successes        int           `json:"successes"`
	SuccessRate      float64       `json:"success_rate"`
	TotalTokens      int           `json:"total_tokens"`
	TotalCostUSD     float64       `json:"total_cost_usd"`
	AverageDuration  time.Duration `json:"average_duration_ms"`
	AverageReduction float64       `json:"average_reduction_pct"`
}

// Collector records task results into a store.
type Collector struct {
	store *Store
	model string
}

// NewCollector creates a collector recording against the given model's
// pricing.
func NewCollector(store *Store, model string) *Collector {
	return &Collector{store: store, model: model}
}

// Record derives a TaskMetrics from an execution result and persists it.
func (c *Collector) Record(ctx context.Context, result *agent.Result) (TaskMetrics, error) {
	m := TaskMetrics{
		TaskID:           result.TaskID,
		Task:             result.Task,
		Model:            c.model,
		Success:          result.Success,
		Steps:            result.StepCount(),
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,
		BaselineTokens:   result.BaselineTokens,
		CostUSD:          EstimateCost(c.model, result.PromptTokens, result.CompletionTokens),
		Duration:         result.Duration,
		RecordedAt:       time.Now(),
	}
	if err := c.store.Insert(ctx, m); err != nil {
		return TaskMetrics{}, err
	}
	return m, nil
}

// Summary recomputes aggregate statistics from every stored record.
func (c *Collector) Summary(ctx context.Context) (Summary, error) {
	records, err := c.store.List(ctx)
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	s.Tasks = len(records)
	if s.Tasks == 0 {
		return s, nil
	}

	var totalDuration time.Duration
	var reductionSum float64
	var reductionCount int
	for _, m := range records {
		if m.Success {
			s.Successes++
		}
		s.TotalTokens += m.TotalTokens
		s.TotalCostUSD += m.CostUSD
		totalDuration += m.Duration
		if m.BaselineTokens > 0 {
			reductionSum += m.Reduction()
			reductionCount++
		}
	}
	s.SuccessRate = float64(s.Successes) / float64(s.Tasks) * 100
	s.AverageDuration = totalDuration / time.Duration(s.Tasks)
	if reductionCount > 0 {
		s.AverageReduction = reductionSum / float64(reductionCount)
	}
	return s, nil
}

// ExportCSV writes every stored record to w.
func (c *Collector) ExportCSV(ctx context.Context, w io.Writer) error {
	records, err := c.store.List(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{
		"task_id", "task", "model", "success", "steps",
		"prompt_tokens", "completion_tokens", "total_tokens", "baseline_tokens",
		"reduction_pct", "cost_usd", "duration_ms", "recorded_at",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, m := range records {
		row := []string{
			m.TaskID, m.Task, m.Model,
			strconv.FormatBool(m.Success),
			strconv.Itoa(m.Steps),
			strconv.Itoa(m.PromptTokens),
			strconv.Itoa(m.CompletionTokens),
			strconv.Itoa(m.TotalTokens),
			strconv.Itoa(m.BaselineTokens),
			strconv.FormatFloat(m.Reduction(), 'f', 1, 64),
			strconv.FormatFloat(m.CostUSD, 'f', 6, 64),
			strconv.FormatInt(m.Duration.Milliseconds(), 10),
			m.RecordedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
