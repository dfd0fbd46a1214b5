package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/AzuraForge/api/pkg/broker"
	"github.com/AzuraForge/api/pkg/common/events"
	"github.com/AzuraForge/api/pkg/common/logger"
	"github.com/AzuraForge/api/pkg/expansion"
	"github.com/google/uuid"
)

// Reserved top-level configuration keys. They are metadata, not training
// parameters: stripped before expansion and reattached per produced copy.
const (
	keyBatchName    = "batch_name"
	keyBatchID      = "batch_id"
	keyPipelineName = "pipeline_name"
)

const fallbackPipeline = "unknown_pipeline"

// Coordinator fans one submitted configuration out into concrete runs and
// dispatches each to the work queue. Each dispatch is independent: a member
// the queue rejects never rolls back or blocks its siblings.
type Coordinator struct {
	submitter broker.Submitter
	publisher events.Publisher
	now       func() time.Time
}

func NewCoordinator(submitter broker.Submitter, publisher events.Publisher) *Coordinator {
	return &Coordinator{
		submitter: submitter,
		publisher: publisher,
		now:       time.Now,
	}
}

// Submit expands cfg and queues one task per concrete configuration.
// Expansion failures surface synchronously as *expansion.ConfigurationError
// with nothing queued. Queue failures are collected per item.
func (c *Coordinator) Submit(ctx context.Context, cfg expansion.Value) (SubmitResult, error) {
	batchName := c.takeBatchName(&cfg)
	cfg.Delete(keyBatchID)

	concrete, err := expansion.Expand(cfg)
	if err != nil {
		return SubmitResult{}, err
	}

	if len(concrete) == 1 {
		return c.submitSingle(ctx, concrete[0])
	}
	return c.submitBatch(ctx, batchName, concrete)
}

func (c *Coordinator) submitSingle(ctx context.Context, cfg expansion.Value) (SubmitResult, error) {
	// A single run carries no batch identity.
	cfg.Delete(keyBatchID)
	cfg.Delete(keyBatchName)

	pipelineName := pipelineNameOf(cfg)
	taskID, err := c.submitter.Submit(ctx, pipelineName, cfg.Map())
	if err != nil {
		c.emit(ctx, events.TypeSubmissionFailed, map[string]interface{}{
			"pipeline_name": pipelineName,
			"error":         err.Error(),
		})
		return SubmitResult{}, fmt.Errorf("failed to submit experiment: %w", err)
	}

	c.emit(ctx, events.TypeExperimentSubmitted, map[string]interface{}{
		"task_id":       taskID,
		"pipeline_name": pipelineName,
	})

	return SubmitResult{
		Message: "Experiment submitted to worker.",
		TaskID:  taskID,
	}, nil
}

func (c *Coordinator) submitBatch(ctx context.Context, batchName string, concrete []expansion.Value) (SubmitResult, error) {
	batchID := uuid.New().String()

	result := SubmitResult{
		BatchID:   batchID,
		BatchName: batchName,
		TaskIDs:   make([]string, 0, len(concrete)),
	}

	var lastPipeline string
	for i, cfg := range concrete {
		cfg.Set(keyBatchID, expansion.Scalar(batchID))
		cfg.Set(keyBatchName, expansion.Scalar(batchName))

		// The pipeline name is read per member: expansion may have produced
		// different values across the batch.
		pipelineName := pipelineNameOf(cfg)
		lastPipeline = pipelineName

		taskID, err := c.submitter.Submit(ctx, pipelineName, cfg.Map())
		if err != nil {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"batch_id": batchID,
				"index":    i,
			}).Error("Batch member submission failed")
			result.Failures = append(result.Failures, SubmissionFailure{Index: i, Message: err.Error()})
			c.emit(ctx, events.TypeSubmissionFailed, map[string]interface{}{
				"batch_id":      batchID,
				"pipeline_name": pipelineName,
				"index":         i,
				"error":         err.Error(),
			})
			continue
		}
		result.TaskIDs = append(result.TaskIDs, taskID)
		c.emit(ctx, events.TypeExperimentSubmitted, map[string]interface{}{
			"task_id":       taskID,
			"pipeline_name": pipelineName,
			"batch_id":      batchID,
		})
	}

	c.emit(ctx, events.TypeBatchCreated, map[string]interface{}{
		"batch_id":      batchID,
		"batch_name":    batchName,
		"pipeline_name": lastPipeline,
		"submitted":     len(result.TaskIDs),
		"failed":        len(result.Failures),
	})

	result.Message = fmt.Sprintf("%d experiments submitted to worker.", len(result.TaskIDs))
	return result, nil
}

func pipelineNameOf(cfg expansion.Value) string {
	if v, ok := cfg.Get(keyPipelineName); ok {
		if s, ok := v.ScalarValue().(string); ok && s != "" {
			return s
		}
	}
	return fallbackPipeline
}

func (c *Coordinator) takeBatchName(cfg *expansion.Value) string {
	if v, ok := cfg.Get(keyBatchName); ok {
		cfg.Delete(keyBatchName)
		if s, ok := v.ScalarValue().(string); ok && s != "" {
			return s
		}
	}
	return fmt.Sprintf("batch-%s", c.now().UTC().Format("20060102-150405"))
}

// emit publishes a lifecycle event without letting event-bus trouble affect
// the submission it describes.
func (c *Coordinator) emit(ctx context.Context, eventType string, data map[string]interface{}) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, eventType, data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("Failed to publish lifecycle event")
	}
}
