package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AzuraForge/api/pkg/broker"
	"github.com/AzuraForge/api/pkg/catalog"
	"github.com/AzuraForge/api/pkg/common/config"
	"github.com/AzuraForge/api/pkg/expansion"
	"github.com/AzuraForge/api/pkg/experiment"
	"github.com/AzuraForge/api/pkg/relay"
	"github.com/AzuraForge/api/pkg/serving"
	"github.com/AzuraForge/api/pkg/status"
	"github.com/gorilla/mux"
)

type fakeSubmitter struct {
	result experiment.SubmitResult
	err    error
	got    expansion.Value
}

func (f *fakeSubmitter) Submit(_ context.Context, cfg expansion.Value) (experiment.SubmitResult, error) {
	f.got = cfg
	return f.result, f.err
}

type fakeRecords struct {
	records map[string]*experiment.Record
}

func (f *fakeRecords) FindByID(_ context.Context, id string) (*experiment.Record, error) {
	record, ok := f.records[id]
	if !ok {
		return nil, experiment.ErrRecordNotFound
	}
	return record, nil
}

func (f *fakeRecords) ListOrderedByCreatedDesc(context.Context, int) ([]experiment.Record, error) {
	out := make([]experiment.Record, 0, len(f.records))
	for _, record := range f.records {
		out = append(out, *record)
	}
	return out, nil
}

type fakeResolver struct {
	view status.View
}

func (f *fakeResolver) Resolve(context.Context, string) status.View { return f.view }

type fakeScorer struct {
	prediction float64
	err        error
}

func (f *fakeScorer) Predict(context.Context, string, map[string]float64) (float64, error) {
	return f.prediction, f.err
}

func newTestRouter(t *testing.T, h *Handlers) *mux.Router {
	t.Helper()
	router := mux.NewRouter()
	Register(router, h, relay.NewHandler(nil, nil, config.Load()))
	return router
}

func newHandlers(t *testing.T, submitter Submitter, records Records, resolver Resolver, scorer Scorer) *Handlers {
	t.Helper()
	cat, err := catalog.NewCatalog(t.TempDir())
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}
	return NewHandlers(submitter, records, resolver, cat, scorer)
}

func TestCreateExperimentAccepted(t *testing.T) {
	submitter := &fakeSubmitter{result: experiment.SubmitResult{Message: "Experiment submitted to worker.", TaskID: "task-1"}}
	router := newTestRouter(t, newHandlers(t, submitter, &fakeRecords{}, &fakeResolver{}, &fakeScorer{}))

	body := bytes.NewBufferString(`{"pipeline_name": "p", "epochs": 50}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/experiments", body))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var got experiment.SubmitResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if got.TaskID != "task-1" {
		t.Errorf("unexpected task id: %q", got.TaskID)
	}
	if keys := submitter.got.Keys(); len(keys) != 2 {
		t.Errorf("expected decoded config to reach the coordinator, got keys %v", keys)
	}
}

func TestCreateExperimentRejectsBadJSON(t *testing.T) {
	router := newTestRouter(t, newHandlers(t, &fakeSubmitter{}, &fakeRecords{}, &fakeResolver{}, &fakeScorer{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/experiments", bytes.NewBufferString(`{broken`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	assertErrorCode(t, rec, "INVALID_CONFIG")
}

func TestCreateExperimentConfigurationError(t *testing.T) {
	submitter := &fakeSubmitter{err: &expansion.ConfigurationError{Path: "lr", Reason: "empty value list"}}
	router := newTestRouter(t, newHandlers(t, submitter, &fakeRecords{}, &fakeResolver{}, &fakeScorer{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/experiments", bytes.NewBufferString(`{"lr": []}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	assertErrorCode(t, rec, "INVALID_CONFIG")
}

func TestCreateExperimentSubmissionFailure(t *testing.T) {
	submitter := &fakeSubmitter{err: errors.New("queue unavailable")}
	router := newTestRouter(t, newHandlers(t, submitter, &fakeRecords{}, &fakeResolver{}, &fakeScorer{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/experiments", bytes.NewBufferString(`{"a": 1}`)))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	assertErrorCode(t, rec, "SUBMISSION_FAILED")
}

func TestGetExperimentNotFound(t *testing.T) {
	router := newTestRouter(t, newHandlers(t, &fakeSubmitter{}, &fakeRecords{}, &fakeResolver{}, &fakeScorer{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/experiments/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	assertErrorCode(t, rec, "EXPERIMENT_NOT_FOUND")
}

func TestTaskStatusAlwaysResponds(t *testing.T) {
	resolver := &fakeResolver{view: status.View{TaskID: "t1", Status: broker.StateProgress, Details: map[string]interface{}{"epoch": 1}}}
	router := newTestRouter(t, newHandlers(t, &fakeSubmitter{}, &fakeRecords{}, resolver, &fakeScorer{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/t1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view status.View
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if view.Status != broker.StateProgress {
		t.Errorf("unexpected status: %s", view.Status)
	}
}

func TestPredictModelNotFound(t *testing.T) {
	scorer := &fakeScorer{err: serving.ErrModelUnavailable}
	router := newTestRouter(t, newHandlers(t, &fakeSubmitter{}, &fakeRecords{}, &fakeResolver{}, scorer))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/predict/e1", bytes.NewBufferString(`{"features": {"x1": 1}}`)))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	assertErrorCode(t, rec, "MODEL_NOT_FOUND")
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, newHandlers(t, &fakeSubmitter{}, &fakeRecords{}, &fakeResolver{}, &fakeScorer{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if body.ErrorCode != want {
		t.Errorf("expected error code %s, got %s", want, body.ErrorCode)
	}
}
