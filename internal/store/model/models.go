package model

import (
	"time"
)

type RunStatus string

const (
	RunSucceeded  RunStatus = "succeeded"
	RunFailed     RunStatus = "failed"
	RunNoTemplate RunStatus = "no_template"
)

type RunSource string

const (
	SourceAPI   RunSource = "api"
	SourceAgent RunSource = "agent"
	SourceCLI   RunSource = "cli"
)

// Run is one pass of the pattern pipeline, successful or not.
type Run struct {
	ID               string    `db:"id" json:"id"`
	Source           RunSource `db:"source" json:"source"`
	Input            string    `db:"input" json:"input"`
	RequestedPattern string    `db:"requested_pattern" json:"requested_pattern"`
	Pattern          string    `db:"pattern" json:"pattern"`
	Code             string    `db:"code" json:"code"`
	// CodeByModelJSON is the JSON object of per-model answers for fan-out runs.
	CodeByModelJSON string    `db:"code_by_model_json" json:"code_by_model_json,omitempty"`
	Models          string    `db:"models" json:"models"`
	Status          RunStatus `db:"status" json:"status"`
	Error           string    `db:"error" json:"error,omitempty"`
	LatencyMS       int64     `db:"latency_ms" json:"latency_ms"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// DailyStats represents aggregated pipeline runs for a specific day.
type DailyStats struct {
	Date           string  `db:"date" json:"date"`
	TotalRuns      int     `db:"total_runs" json:"total_runs"`
	FailedRuns     int     `db:"failed_runs" json:"failed_runs"`
	AverageLatency float64 `db:"avg_latency" json:"avg_latency"`
}
