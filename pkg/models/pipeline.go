package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NodeKind discriminates the closed set of pipeline node shapes.
type NodeKind string

const (
	NodeSource    NodeKind = "source"
	NodeTransform NodeKind = "transform"
	NodeSink      NodeKind = "sink"
)

// WriteMode governs how a sink write interacts with pre-existing data at
// the target reference.
type WriteMode string

const (
	WriteAppend        WriteMode = "append"
	WriteOverwrite     WriteMode = "overwrite"
	WriteErrorIfExists WriteMode = "error_if_exists"
)

// IsValidWriteMode checks if the given mode is supported.
func IsValidWriteMode(m WriteMode) bool {
	return m == WriteAppend || m == WriteOverwrite || m == WriteErrorIfExists
}

// PipelineNode is a tagged variant over the three node shapes. Kind
// selects which field group applies; nodes carry data only, never
// behavior.
type PipelineNode struct {
	ID   string   `json:"id"`
	Kind NodeKind `json:"kind"`

	// Source fields
	DatasetID       *uuid.UUID `json:"dataset_id,omitempty"` // source and sink
	SelectedColumns []string   `json:"selected_columns,omitempty"`

	// Transform fields
	Prompt        string `json:"prompt,omitempty"`
	GeneratedCode string `json:"generated_code,omitempty"`

	// Sink fields
	TableRef  string    `json:"table_ref,omitempty"`
	WriteMode WriteMode `json:"write_mode,omitempty"`
}

// Validate checks the node's own shape, independent of the graph.
func (n *PipelineNode) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("node id must not be empty")
	}
	switch n.Kind {
	case NodeSource:
		if n.DatasetID == nil {
			return fmt.Errorf("source node %s has no dataset", n.ID)
		}
	case NodeTransform:
		if n.Prompt == "" {
			return fmt.Errorf("transform node %s has no prompt", n.ID)
		}
	case NodeSink:
		if n.DatasetID == nil {
			return fmt.Errorf("sink node %s has no dataset", n.ID)
		}
		if n.TableRef == "" {
			return fmt.Errorf("sink node %s has no target reference", n.ID)
		}
		if !IsValidWriteMode(n.WriteMode) {
			return fmt.Errorf("sink node %s has invalid write mode %q", n.ID, n.WriteMode)
		}
	default:
		return fmt.Errorf("node %s has unknown kind %q", n.ID, n.Kind)
	}
	return nil
}

// PipelineEdge is a directed dependency between two nodes.
type PipelineEdge struct {
	FromNodeID string `json:"from_node_id"`
	ToNodeID   string `json:"to_node_id"`
}

// Pipeline owns its nodes and edges. Saves overwrite the whole graph;
// no node or edge survives a save that omits it.
type Pipeline struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Nodes     []PipelineNode `json:"nodes"`
	Edges     []PipelineEdge `json:"edges"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NodeByID returns the node with the given id, or nil.
func (p *Pipeline) NodeByID(id string) *PipelineNode {
	for i := range p.Nodes {
		if p.Nodes[i].ID == id {
			return &p.Nodes[i]
		}
	}
	return nil
}

// Incoming returns the ids of nodes with an edge into the given node.
func (p *Pipeline) Incoming(nodeID string) []string {
	var from []string
	for _, e := range p.Edges {
		if e.ToNodeID == nodeID {
			from = append(from, e.FromNodeID)
		}
	}
	return from
}

// Outgoing returns the ids of nodes the given node has an edge to.
func (p *Pipeline) Outgoing(nodeID string) []string {
	var to []string
	for _, e := range p.Edges {
		if e.FromNodeID == nodeID {
			to = append(to, e.ToNodeID)
		}
	}
	return to
}

// NodeError attributes a validation problem to a specific node.
type NodeError struct {
	NodeID  string `json:"node_id"`
	Message string `json:"message"`
}

// ValidationResult collects every graph-shape and config problem found in
// one validation pass, so callers can surface all of them at once.
type ValidationResult struct {
	Errors []NodeError `json:"errors"`
}

// Valid reports whether the pipeline passed validation.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Add appends a node-attributed error.
func (r *ValidationResult) Add(nodeID, format string, args ...any) {
	r.Errors = append(r.Errors, NodeError{NodeID: nodeID, Message: fmt.Sprintf(format, args...)})
}

// Summary concatenates every error into one message, suitable for
// storage on a failed execution record.
func (r *ValidationResult) Summary() string {
	parts := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		parts[i] = fmt.Sprintf("node %s: %s", e.NodeID, e.Message)
	}
	return strings.Join(parts, "; ")
}
