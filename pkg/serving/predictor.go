// Package serving answers predictions from the model weights a completed
// experiment stored in its durable record.
package serving

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/AzuraForge/api/pkg/broker"
	"github.com/AzuraForge/api/pkg/experiment"
	lru "github.com/hashicorp/golang-lru/v2"
)

var ErrModelUnavailable = errors.New("no servable model for experiment")

// RecordSource is the slice of the record store the predictor needs.
type RecordSource interface {
	FindByID(ctx context.Context, id string) (*experiment.Record, error)
}

type model struct {
	kind         string
	featureNames []string
	bias         float64
	coefficients []float64
}

// Predictor serves predictions from experiment records, keeping parsed
// models in a bounded LRU cache keyed by experiment id. The cache lifetime
// is the predictor's own; nothing is held in package globals.
type Predictor struct {
	records RecordSource
	cache   *lru.Cache[string, model]
}

func NewPredictor(records RecordSource, cacheSize int) (*Predictor, error) {
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[string, model](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Predictor{records: records, cache: cache}, nil
}

// Predict scores one feature vector with the model of the given experiment.
func (p *Predictor) Predict(ctx context.Context, experimentID string, features map[string]float64) (float64, error) {
	m, err := p.load(ctx, experimentID)
	if err != nil {
		return 0, err
	}

	sum := m.bias
	for i, name := range m.featureNames {
		value, ok := features[name]
		if !ok {
			return 0, fmt.Errorf("missing feature %q", name)
		}
		sum += m.coefficients[i] * value
	}
	if m.kind == "logistic" {
		return sigmoid(sum), nil
	}
	return sum, nil
}

func (p *Predictor) load(ctx context.Context, experimentID string) (model, error) {
	if cached, ok := p.cache.Get(experimentID); ok {
		return cached, nil
	}

	record, err := p.records.FindByID(ctx, experimentID)
	if err != nil {
		if errors.Is(err, experiment.ErrRecordNotFound) {
			return model{}, ErrModelUnavailable
		}
		return model{}, err
	}
	if record.Status != broker.StateSuccess {
		return model{}, fmt.Errorf("%w: experiment is %s", ErrModelUnavailable, record.Status)
	}

	m, err := modelFromResults(map[string]interface{}(record.Results))
	if err != nil {
		return model{}, err
	}
	p.cache.Add(experimentID, m)
	return m, nil
}

// modelFromResults extracts the model section the worker writes into the
// record's results: {"model": {"type", "feature_names", "weights": {"bias",
// "coefficients"}}}.
func modelFromResults(results map[string]interface{}) (model, error) {
	raw, ok := results["model"].(map[string]interface{})
	if !ok {
		return model{}, ErrModelUnavailable
	}

	m := model{kind: "linear"}
	if kind, ok := raw["type"].(string); ok && kind != "" {
		m.kind = kind
	}
	for _, name := range toSlice(raw["feature_names"]) {
		s, ok := name.(string)
		if !ok {
			return model{}, fmt.Errorf("%w: malformed feature names", ErrModelUnavailable)
		}
		m.featureNames = append(m.featureNames, s)
	}

	weights, ok := raw["weights"].(map[string]interface{})
	if !ok {
		return model{}, fmt.Errorf("%w: missing weights", ErrModelUnavailable)
	}
	m.bias = toFloat(weights["bias"])
	for _, c := range toSlice(weights["coefficients"]) {
		m.coefficients = append(m.coefficients, toFloat(c))
	}

	if len(m.featureNames) == 0 || len(m.featureNames) != len(m.coefficients) {
		return model{}, fmt.Errorf("%w: feature/coefficient mismatch", ErrModelUnavailable)
	}
	return m, nil
}

func toSlice(v interface{}) []interface{} {
	s, _ := v.([]interface{})
	return s
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	default:
		return 0
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
