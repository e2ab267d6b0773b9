// Package biz implements the extraction pipeline (Stages 1-6).
package biz

import (
	"sync"
	"time"

	"github.com/kart-io/memoryx/pkg/observability/metrics"
)

// ExtractionMetrics collects business metrics for the extraction pipeline.
type ExtractionMetrics struct {
	runsTotal  metrics.Counter
	runsErrors metrics.Counter
	runsEmpty  metrics.Counter

	factsExtracted   metrics.Counter
	memoriesAdded    metrics.Counter
	memoriesUpdated  metrics.Counter
	messagesMarked   metrics.Counter
	decisionsDropped metrics.Counter

	stageDuration metrics.Counter // seconds, summed over whole Extract runs (all stages together)

	startTime time.Time
}

var (
	globalExtractionMetrics *ExtractionMetrics
	extractionMetricsOnce   sync.Once
)

// GetExtractionMetrics returns the global extraction metrics instance.
func GetExtractionMetrics() *ExtractionMetrics {
	extractionMetricsOnce.Do(func() {
		m := &ExtractionMetrics{startTime: time.Now()}
		prefix := "memory_extraction"

		m.runsTotal = metrics.NewCounter(prefix+"_runs_total", "Total number of extraction runs.")
		metrics.Register(m.runsTotal)

		m.runsErrors = metrics.NewCounter(prefix+"_runs_errors_total", "Number of extraction runs that failed.")
		metrics.Register(m.runsErrors)

		m.runsEmpty = metrics.NewCounter(prefix+"_runs_empty_total", "Number of extraction runs with no pending messages.")
		metrics.Register(m.runsEmpty)

		m.factsExtracted = metrics.NewCounter(prefix+"_facts_extracted_total", "Total facts produced by Stage 2.")
		metrics.Register(m.factsExtracted)

		m.memoriesAdded = metrics.NewCounter(prefix+"_memories_added_total", "Total memories inserted by Stage 6.")
		metrics.Register(m.memoriesAdded)

		m.memoriesUpdated = metrics.NewCounter(prefix+"_memories_updated_total", "Total memories updated by Stage 6.")
		metrics.Register(m.memoriesUpdated)

		m.messagesMarked = metrics.NewCounter(prefix+"_messages_marked_total", "Total messages flagged extracted.")
		metrics.Register(m.messagesMarked)

		m.decisionsDropped = metrics.NewCounter(prefix+"_decisions_dropped_total", "Decisions dropped for referencing an unknown id or carrying empty text.")
		metrics.Register(m.decisionsDropped)

		m.stageDuration = metrics.NewCounter(prefix+"_stage_duration_seconds_total", "Cumulative seconds spent across all pipeline stages.")
		metrics.Register(m.stageDuration)

		globalExtractionMetrics = m
	})
	return globalExtractionMetrics
}

func (m *ExtractionMetrics) recordRun(stats Stats, err error) {
	m.runsTotal.Inc()
	if err != nil {
		m.runsErrors.Inc()
		return
	}
	if stats.MessagesExtracted == 0 {
		m.runsEmpty.Inc()
	}
	m.factsExtracted.Add(float64(stats.FactsExtracted))
	m.memoriesAdded.Add(float64(stats.MemoriesAdded))
	m.memoriesUpdated.Add(float64(stats.MemoriesUpdated))
	m.messagesMarked.Add(float64(stats.MessagesExtracted))
}

func (m *ExtractionMetrics) recordStageDuration(d time.Duration) {
	m.stageDuration.Add(d.Seconds())
}

func (m *ExtractionMetrics) recordDecisionsDropped(n int) {
	if n > 0 {
		m.decisionsDropped.Add(float64(n))
	}
}
