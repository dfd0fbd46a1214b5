package experiment

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/AzuraForge/api/pkg/expansion"
)

type fakeSubmitter struct {
	calls   []submitCall
	failAt  map[int]error
	nextSeq int
}

type submitCall struct {
	pipeline string
	config   map[string]interface{}
}

func (f *fakeSubmitter) Submit(_ context.Context, pipeline string, config map[string]interface{}) (string, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, submitCall{pipeline: pipeline, config: config})
	if err, ok := f.failAt[idx]; ok {
		return "", err
	}
	f.nextSeq++
	return fmt.Sprintf("task-%d", f.nextSeq), nil
}

func decode(t *testing.T, raw string) expansion.Value {
	t.Helper()
	v, err := expansion.DecodeConfig([]byte(raw))
	if err != nil {
		t.Fatalf("failed to decode config: %v", err)
	}
	return v
}

func TestSubmitSingleConfig(t *testing.T) {
	sub := &fakeSubmitter{}
	coord := NewCoordinator(sub, nil)

	result, err := coord.Submit(context.Background(), decode(t, `{"pipeline_name": "p", "epochs": 50}`))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.TaskID != "task-1" {
		t.Errorf("unexpected task id: %q", result.TaskID)
	}
	if result.BatchID != "" || result.BatchName != "" || len(result.TaskIDs) != 0 {
		t.Errorf("single submission must not carry batch identity: %+v", result)
	}
	if len(sub.calls) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(sub.calls))
	}
	if sub.calls[0].pipeline != "p" {
		t.Errorf("unexpected pipeline: %q", sub.calls[0].pipeline)
	}
	if _, ok := sub.calls[0].config["batch_id"]; ok {
		t.Error("dispatched config must not contain batch_id")
	}
	if _, ok := sub.calls[0].config["batch_name"]; ok {
		t.Error("dispatched config must not contain batch_name")
	}
}

func TestSubmitBatch(t *testing.T) {
	sub := &fakeSubmitter{}
	coord := NewCoordinator(sub, nil)

	cfg := decode(t, `{"pipeline_name": "p", "batch_name": "sweep-1", "training_params": {"lr": "0.1,0.01", "epochs": 50}}`)
	result, err := coord.Submit(context.Background(), cfg)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if result.BatchID == "" {
		t.Fatal("expected a batch id")
	}
	if result.BatchName != "sweep-1" {
		t.Errorf("unexpected batch name: %q", result.BatchName)
	}
	if len(result.TaskIDs) != 2 {
		t.Fatalf("expected 2 task ids, got %d", len(result.TaskIDs))
	}
	if result.TaskIDs[0] != "task-1" || result.TaskIDs[1] != "task-2" {
		t.Errorf("task ids out of order: %v", result.TaskIDs)
	}

	wantLR := []float64{0.1, 0.01}
	for i, call := range sub.calls {
		if call.config["batch_id"] != result.BatchID {
			t.Errorf("dispatch %d: batch_id not stamped", i)
		}
		if call.config["batch_name"] != "sweep-1" {
			t.Errorf("dispatch %d: batch_name not stamped", i)
		}
		params := call.config["training_params"].(map[string]interface{})
		if params["lr"] != wantLR[i] {
			t.Errorf("dispatch %d: expected lr %v, got %v", i, wantLR[i], params["lr"])
		}
	}
}

func TestSubmitBatchPartialFailure(t *testing.T) {
	sub := &fakeSubmitter{failAt: map[int]error{1: errors.New("queue unavailable")}}
	coord := NewCoordinator(sub, nil)

	cfg := decode(t, `{"pipeline_name": "p", "lr": "0.1,0.01,0.001"}`)
	result, err := coord.Submit(context.Background(), cfg)
	if err != nil {
		t.Fatalf("partial failure must not abort the batch: %v", err)
	}

	if len(result.TaskIDs) != 2 {
		t.Errorf("expected 2 queued tasks, got %d", len(result.TaskIDs))
	}
	if len(result.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(result.Failures))
	}
	if result.Failures[0].Index != 1 {
		t.Errorf("expected failure at index 1, got %d", result.Failures[0].Index)
	}
	if len(sub.calls) != 3 {
		t.Errorf("every member must be attempted, got %d dispatches", len(sub.calls))
	}
}

func TestSubmitBatchExpandsPipelineName(t *testing.T) {
	sub := &fakeSubmitter{}
	coord := NewCoordinator(sub, nil)

	cfg := decode(t, `{"pipeline_name": "stock_predictor,weather_forecaster", "epochs": 50}`)
	result, err := coord.Submit(context.Background(), cfg)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if len(result.TaskIDs) != 2 {
		t.Fatalf("expected 2 task ids, got %d", len(result.TaskIDs))
	}

	wantPipelines := []string{"stock_predictor", "weather_forecaster"}
	for i, call := range sub.calls {
		if call.pipeline != wantPipelines[i] {
			t.Errorf("dispatch %d: expected pipeline %q, got %q", i, wantPipelines[i], call.pipeline)
		}
		if call.config["pipeline_name"] != wantPipelines[i] {
			t.Errorf("dispatch %d: dispatched config carries pipeline %v, dispatched under %q",
				i, call.config["pipeline_name"], call.pipeline)
		}
	}
}

func TestSubmitExpansionFailureQueuesNothing(t *testing.T) {
	sub := &fakeSubmitter{}
	coord := NewCoordinator(sub, nil)

	_, err := coord.Submit(context.Background(), decode(t, `{"pipeline_name": "p", "lr": []}`))
	var cfgErr *expansion.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(sub.calls) != 0 {
		t.Errorf("nothing may be queued on expansion failure, got %d dispatches", len(sub.calls))
	}
}

func TestSubmitDefaultsBatchName(t *testing.T) {
	sub := &fakeSubmitter{}
	coord := NewCoordinator(sub, nil)

	result, err := coord.Submit(context.Background(), decode(t, `{"pipeline_name": "p", "lr": "1,2"}`))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.BatchName == "" {
		t.Fatal("expected a generated batch name")
	}
}

func TestSubmitSingleFailure(t *testing.T) {
	sub := &fakeSubmitter{failAt: map[int]error{0: errors.New("queue unavailable")}}
	coord := NewCoordinator(sub, nil)

	_, err := coord.Submit(context.Background(), decode(t, `{"pipeline_name": "p"}`))
	if err == nil {
		t.Fatal("expected submission error")
	}
}
