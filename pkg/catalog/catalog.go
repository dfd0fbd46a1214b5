// Package catalog discovers the training pipelines installed on the
// platform and their default configurations.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/AzuraForge/api/pkg/common/logger"
	"gopkg.in/yaml.v3"
)

var ErrPipelineNotFound = errors.New("pipeline not found in the catalog")

// Pipeline is one installed pipeline and the configuration a submission
// starts from when the client omits a value.
type Pipeline struct {
	Name          string                 `json:"name"`
	DefaultConfig map[string]interface{} `json:"default_config"`
}

// Catalog loads pipeline definitions from a directory of YAML files, one
// file per pipeline, named <pipeline>.yaml.
type Catalog struct {
	dir string

	mu        sync.RWMutex
	pipelines map[string]Pipeline
}

func NewCatalog(dir string) (*Catalog, error) {
	c := &Catalog{dir: dir, pipelines: map[string]Pipeline{}}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload rescans the catalog directory. A missing directory is an empty
// catalog, not an error; a single unreadable file is skipped and logged.
func (c *Catalog) Reload() error {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		entries = nil
	} else if err != nil {
		return fmt.Errorf("failed to read catalog dir: %w", err)
	}

	pipelines := map[string]Pipeline{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		pipeline, err := loadPipeline(filepath.Join(c.dir, name))
		if err != nil {
			logger.Log.WithError(err).WithField("file", name).Warn("Skipping unreadable pipeline definition")
			continue
		}
		pipelines[pipeline.Name] = pipeline
	}

	c.mu.Lock()
	c.pipelines = pipelines
	c.mu.Unlock()
	return nil
}

func loadPipeline(path string) (Pipeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, err
	}
	var defaults map[string]interface{}
	if err := yaml.Unmarshal(raw, &defaults); err != nil {
		return Pipeline{}, fmt.Errorf("invalid pipeline config: %w", err)
	}

	name := strings.TrimSuffix(strings.TrimSuffix(filepath.Base(path), ".yaml"), ".yml")
	if n, ok := defaults["pipeline_name"].(string); ok && n != "" {
		name = n
	}
	return Pipeline{Name: name, DefaultConfig: defaults}, nil
}

// List returns every pipeline sorted by name.
func (c *Catalog) List() []Pipeline {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Pipeline, 0, len(c.pipelines))
	for _, pipeline := range c.pipelines {
		out = append(out, pipeline)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Catalog) Get(name string) (Pipeline, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pipeline, ok := c.pipelines[name]
	if !ok {
		return Pipeline{}, ErrPipelineNotFound
	}
	return pipeline, nil
}
