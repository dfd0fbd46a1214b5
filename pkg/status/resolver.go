// Package status merges broker-held ephemeral task state with the durable
// experiment record into one coherent status view per run.
package status

import (
	"context"
	"errors"
	"time"

	"github.com/AzuraForge/api/pkg/broker"
	"github.com/AzuraForge/api/pkg/common/logger"
	"github.com/AzuraForge/api/pkg/experiment"
)

// StateUnknown is the degraded status reported when neither the broker nor
// the record store could answer. Status polling stays resilient: lookup
// trouble never propagates as a hard failure.
const StateUnknown = "UNKNOWN"

// View is the reconciled status of one task.
type View struct {
	TaskID  string      `json:"task_id"`
	Status  string      `json:"status"`
	Details interface{} `json:"details,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Terminal reports whether the view's status admits no further progress.
func (v View) Terminal() bool {
	return broker.IsTerminal(v.Status)
}

// RecordFinder is the slice of the record store the resolver needs.
type RecordFinder interface {
	FindByTaskID(ctx context.Context, taskID string) (*experiment.Record, error)
}

type Resolver struct {
	statuses      broker.StatusReader
	records       RecordFinder
	lookupTimeout time.Duration
}

func NewResolver(statuses broker.StatusReader, records RecordFinder, lookupTimeout time.Duration) *Resolver {
	if lookupTimeout <= 0 {
		lookupTimeout = 3 * time.Second
	}
	return &Resolver{statuses: statuses, records: records, lookupTimeout: lookupTimeout}
}

// Resolve returns one coherent status for taskID. While the task is live the
// broker's state and transient metadata pass through verbatim. Once terminal
// the durable record wins when present, because the broker's result cache
// may evict or truncate the final payload; the broker's terminal payload is
// the fallback. Every value crossing this boundary is normalized so no
// error-like object leaks out raw.
func (r *Resolver) Resolve(ctx context.Context, taskID string) View {
	st, err := r.statuses.Status(ctx, taskID)
	if err != nil {
		logger.Log.WithError(err).WithField("task_id", taskID).Warn("Broker status lookup failed")
		return View{TaskID: taskID, Status: StateUnknown, Details: Normalize(err)}
	}

	if !broker.IsTerminal(st.State) {
		view := View{TaskID: taskID, Status: st.State}
		if st.Meta != nil {
			view.Details = Normalize(st.Meta)
		}
		return view
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	record, lookupErr := r.records.FindByTaskID(lookupCtx, taskID)
	if lookupErr == nil && record != nil {
		return viewFromRecord(taskID, record)
	}
	if lookupErr != nil && !errors.Is(lookupErr, experiment.ErrRecordNotFound) {
		logger.Log.WithError(lookupErr).WithField("task_id", taskID).Warn("Record lookup failed, falling back to broker payload")
	}

	view := View{TaskID: taskID, Status: st.State}
	if st.State == broker.StateFailure {
		view.Details = Normalize(st.Result)
	} else {
		view.Result = Normalize(st.Result)
	}
	return view
}

func viewFromRecord(taskID string, record *experiment.Record) View {
	view := View{TaskID: taskID, Status: record.Status}
	if record.Status == broker.StateFailure {
		view.Details = Normalize(map[string]interface{}{
			"message": record.Error,
			"kind":    "TrainingError",
		})
		return view
	}
	if record.Results != nil {
		view.Result = map[string]interface{}(record.Results)
	}
	return view
}
