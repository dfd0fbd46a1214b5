package broker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/AzuraForge/api/pkg/common/config"
	"github.com/AzuraForge/api/pkg/common/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const resultKeyPrefix = "celery-task-meta-"

// CeleryClient speaks the Celery wire protocol over Redis: submissions are
// protocol-v2 messages pushed onto the worker queue, status lookups read the
// result backend key the worker maintains per task.
type CeleryClient struct {
	rdb      *redis.Client
	queue    string
	taskName string
	origin   string
}

func NewCeleryClient(rdb *redis.Client, cfg *config.Config) *CeleryClient {
	hostname, _ := os.Hostname()
	return &CeleryClient{
		rdb:      rdb,
		queue:    cfg.BrokerQueue,
		taskName: cfg.BrokerTaskName,
		origin:   fmt.Sprintf("api@%s", hostname),
	}
}

func (c *CeleryClient) Submit(ctx context.Context, pipelineName string, cfgMap map[string]interface{}) (string, error) {
	taskID := uuid.New().String()

	message, err := encodeTaskMessage(taskID, c.taskName, c.queue, c.origin, pipelineName, cfgMap)
	if err != nil {
		return "", err
	}

	if err := c.rdb.LPush(ctx, c.queue, message).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"task_id":  taskID,
		"pipeline": pipelineName,
		"queue":    c.queue,
	}).Info("Task submitted to worker queue")

	return taskID, nil
}

func (c *CeleryClient) Status(ctx context.Context, taskID string) (TaskStatus, error) {
	raw, err := c.rdb.Get(ctx, resultKeyPrefix+taskID).Bytes()
	if err == redis.Nil {
		// Celery reports tasks it has never heard of as PENDING.
		return TaskStatus{TaskID: taskID, State: StatePending}, nil
	}
	if err != nil {
		return TaskStatus{}, fmt.Errorf("failed to read task state: %w", err)
	}
	return decodeTaskMeta(taskID, raw)
}

// encodeTaskMessage builds a Celery protocol-v2 queue message. The body is
// the standard (args, kwargs, embed) triple, base64 wrapped in the transport
// envelope the Redis transport expects.
func encodeTaskMessage(taskID, taskName, queue, origin, pipelineName string, cfgMap map[string]interface{}) (string, error) {
	kwargs := map[string]interface{}{
		"pipeline_name": pipelineName,
		"config":        cfgMap,
	}
	body, err := json.Marshal([]interface{}{
		[]interface{}{},
		kwargs,
		map[string]interface{}{"callbacks": nil, "errbacks": nil, "chain": nil, "chord": nil},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal task body: %w", err)
	}

	kwargsRepr, _ := json.Marshal(kwargs)
	envelope := map[string]interface{}{
		"body":             base64.StdEncoding.EncodeToString(body),
		"content-encoding": "utf-8",
		"content-type":     "application/json",
		"headers": map[string]interface{}{
			"lang":       "py",
			"task":       taskName,
			"id":         taskID,
			"root_id":    taskID,
			"parent_id":  nil,
			"group":      nil,
			"argsrepr":   "()",
			"kwargsrepr": string(kwargsRepr),
			"origin":     origin,
		},
		"properties": map[string]interface{}{
			"correlation_id": taskID,
			"reply_to":       uuid.New().String(),
			"delivery_mode":  2,
			"delivery_info":  map[string]interface{}{"exchange": "", "routing_key": queue},
			"priority":       0,
			"body_encoding":  "base64",
			"delivery_tag":   uuid.New().String(),
		},
	}

	message, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task envelope: %w", err)
	}
	return string(message), nil
}

// decodeTaskMeta parses a result-backend entry into a TaskStatus. Progress
// metadata and terminal results share the "result" field in the backend
// schema; which one it is depends on the state.
func decodeTaskMeta(taskID string, raw []byte) (TaskStatus, error) {
	var meta struct {
		Status    string      `json:"status"`
		Result    interface{} `json:"result"`
		Traceback *string     `json:"traceback"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return TaskStatus{}, fmt.Errorf("malformed task state for %s: %w", taskID, err)
	}

	status := TaskStatus{TaskID: taskID, State: meta.Status}
	if IsTerminal(meta.Status) {
		status.Result = meta.Result
		return status, nil
	}
	if m, ok := meta.Result.(map[string]interface{}); ok {
		status.Meta = m
	}
	return status, nil
}
