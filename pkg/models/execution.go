package models

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the overall state of one pipeline run.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// IsTerminal returns true once the execution can no longer change.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}

// NodeStatus is the per-node sub-state within a run.
type NodeStatus string

const (
	NodeNotStarted NodeStatus = "not_started"
	NodeRunning    NodeStatus = "running"
	NodeSucceeded  NodeStatus = "succeeded"
	NodeFailed     NodeStatus = "failed"
	NodeSkipped    NodeStatus = "skipped"
)

// IsTerminal returns true once the node result can no longer change.
func (s NodeStatus) IsTerminal() bool {
	return s == NodeSucceeded || s == NodeFailed || s == NodeSkipped
}

// NodeResult records the outcome of one node within an execution.
// SkippedBecause names the root-cause node when status is skipped.
type NodeResult struct {
	Status         NodeStatus `json:"status"`
	RowCount       *int64     `json:"row_count,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	SkippedBecause string     `json:"skipped_because,omitempty"`
}

// Execution is one timestamped run of a pipeline. Once FinishedAt is set
// the record is immutable history; runs are superseded, never edited.
type Execution struct {
	ID           uuid.UUID             `json:"id"`
	PipelineID   uuid.UUID             `json:"pipeline_id"`
	Status       ExecutionStatus       `json:"status"`
	StartedAt    time.Time             `json:"started_at"`
	FinishedAt   *time.Time            `json:"finished_at,omitempty"`
	NodeResults  map[string]NodeResult `json:"node_results"`
	ErrorMessage string                `json:"error_message,omitempty"`
}

// ExecutionSummary is the list-view projection of an execution.
type ExecutionSummary struct {
	ID           uuid.UUID       `json:"id"`
	PipelineID   uuid.UUID       `json:"pipeline_id"`
	Status       ExecutionStatus `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}
