// Package adapters binds job operations to their providers. Each adapter
// turns a job's params into provider calls, reporting progress through a
// callback that also carries the cooperative cancellation signal: a progress
// error aborts the run.
package adapters

import (
	"context"

	"github.com/google/uuid"
	"github.com/photark-io/photark/internal/db"
)

// ProgressFunc reports execution progress in [0,1] with a human-readable
// message. Returning an error aborts the adapter run; the executor uses
// this to propagate cancellation requests mid-flight.
type ProgressFunc func(progress float64, message string) error

// Adapter executes the operations of one provider.
type Adapter interface {
	Provider() string
	Run(ctx context.Context, job *db.Job, progress ProgressFunc) (map[string]any, error)
}

// RPCCaller executes a single native-rpc operation for an account and
// returns the parsed result. The explorer and the bulk-upload adapter use
// it for metadata operations without going through the job queue.
type RPCCaller interface {
	Call(ctx context.Context, accountID uuid.UUID, operation string, params map[string]any) (map[string]any, error)
}

// Registry maps provider names to adapters.
type Registry map[string]Adapter

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...Adapter) Registry {
	registry := make(Registry, len(adapters))
	for _, a := range adapters {
		registry[a.Provider()] = a
	}
	return registry
}
