// Package archive persists terminal run snapshots. The engine hands a Record
// to the configured Archiver when a run reaches SUCCESS, FAILED or CANCELLED;
// hosts choose where snapshots live.
package archive

import (
	"context"
	"sync"
	"time"
)

// Record is the snapshot of one finished run.
type Record struct {
	// ExecutionID identifies the run
	ExecutionID string `json:"execution_id"`
	// WorkflowID identifies the workflow definition
	WorkflowID string `json:"workflow_id"`
	// Status is the terminal workflow status
	Status string `json:"status"`
	// StartedAt is when the run began
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the run reached its terminal status
	FinishedAt time.Time `json:"finished_at"`
	// NodeStates maps node id to its final state
	NodeStates map[string]string `json:"node_states"`
	// NodeOutputs maps node id to its final output payload
	NodeOutputs map[string]map[string]interface{} `json:"node_outputs,omitempty"`
	// Error is the failure message for FAILED runs
	Error string `json:"error,omitempty"`
	// FailedNodeID is the first fatal node for FAILED runs
	FailedNodeID string `json:"failed_node_id,omitempty"`
}

// Archiver stores terminal run records.
type Archiver interface {
	Archive(ctx context.Context, record Record) error
}

// MemoryArchiver keeps records in memory, keyed by execution id. Intended for
// tests and single-process hosts.
type MemoryArchiver struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryArchiver creates an empty in-memory archiver.
func NewMemoryArchiver() *MemoryArchiver {
	return &MemoryArchiver{records: make(map[string]Record)}
}

// Archive stores the record, replacing any previous record for the same
// execution id.
func (m *MemoryArchiver) Archive(_ context.Context, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ExecutionID] = record
	return nil
}

// Get returns the stored record for an execution id.
func (m *MemoryArchiver) Get(executionID string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[executionID]
	return r, ok
}

// Len returns the number of stored records.
func (m *MemoryArchiver) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
