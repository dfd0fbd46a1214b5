package expansion

import (
	"fmt"
	"strconv"
	"strings"
)

// ConfigurationError reports a malformed expansion input. Nothing is
// dispatched when Expand fails with it.
type ConfigurationError struct {
	Path   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration at %q: %s", e.Path, e.Reason)
}

// Axis is one varying leaf: a dotted path and the ordered alternatives it
// expands into. Axes are collected depth first, top to bottom within each
// mapping level, so enumeration is deterministic for a given input.
type Axis struct {
	Path   string
	Values []interface{}
}

// Expand turns one configuration into the ordered set of concrete
// configurations it describes. A configuration with no varying leaves comes
// back as a single-element slice equal to the input, which also makes Expand
// idempotent on its own output. With varying leaves present, the result is
// the Cartesian product of all axes in odometer order: the last-discovered
// axis varies fastest.
func Expand(cfg Value) ([]Value, error) {
	axes, err := CollectAxes(cfg)
	if err != nil {
		return nil, err
	}
	if len(axes) == 0 {
		return []Value{cfg.Clone()}, nil
	}

	total := 1
	for _, axis := range axes {
		total *= len(axis.Values)
	}

	out := make([]Value, 0, total)
	for i := 0; i < total; i++ {
		concrete := cfg.Clone()
		rem := i
		for a := len(axes) - 1; a >= 0; a-- {
			axis := axes[a]
			pick := axis.Values[rem%len(axis.Values)]
			rem /= len(axis.Values)
			if err := setPath(&concrete, strings.Split(axis.Path, "."), pick); err != nil {
				return nil, err
			}
		}
		out = append(out, concrete)
	}
	return out, nil
}

// CollectAxes walks the tree and returns every varying leaf in first-seen
// order. An empty sequence leaf is rejected: no tuple can be formed from it.
func CollectAxes(cfg Value) ([]Axis, error) {
	var axes []Axis
	if err := collectAxes(cfg, nil, &axes); err != nil {
		return nil, err
	}
	return axes, nil
}

func collectAxes(v Value, prefix []string, axes *[]Axis) error {
	switch v.Kind() {
	case KindMapping:
		for _, key := range v.Keys() {
			child, _ := v.Get(key)
			if err := collectAxes(child, append(prefix, key), axes); err != nil {
				return err
			}
		}
		return nil

	case KindSequence:
		path := strings.Join(prefix, ".")
		items := v.Items()
		if len(items) == 0 {
			return &ConfigurationError{Path: path, Reason: "empty value list"}
		}
		values, allScalar := scalarItems(items)
		if !allScalar || len(items) == 1 {
			// A single-element list and a list of structured values are
			// static; they pass through untouched.
			return nil
		}
		*axes = append(*axes, Axis{Path: path, Values: values})
		return nil

	case KindScalar:
		s, ok := v.ScalarValue().(string)
		if !ok || !strings.Contains(s, ",") {
			return nil
		}
		*axes = append(*axes, Axis{
			Path:   strings.Join(prefix, "."),
			Values: parseCommaList(s),
		})
		return nil
	}
	return nil
}

func scalarItems(items []Value) ([]interface{}, bool) {
	values := make([]interface{}, 0, len(items))
	for _, item := range items {
		if item.Kind() != KindScalar {
			return nil, false
		}
		values = append(values, item.ScalarValue())
	}
	return values, true
}

// parseCommaList splits a comma separated string into scalar alternatives.
// Each item is trimmed and parsed as a number independently; an item that is
// not numeric stays text, so mixed lists like "0.01,auto" are legal.
func parseCommaList(s string) []interface{} {
	parts := strings.Split(s, ",")
	values := make([]interface{}, 0, len(parts))
	for _, part := range parts {
		values = append(values, parseScalarItem(strings.TrimSpace(part)))
	}
	return values
}

func parseScalarItem(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func setPath(root *Value, path []string, value interface{}) error {
	if root.Kind() != KindMapping {
		return &ConfigurationError{Path: strings.Join(path, "."), Reason: "path does not traverse a mapping"}
	}
	key := path[0]
	if len(path) == 1 {
		root.Set(key, Scalar(value))
		return nil
	}
	child, ok := root.Get(key)
	if !ok {
		return &ConfigurationError{Path: strings.Join(path, "."), Reason: "path not found"}
	}
	if err := setPath(&child, path[1:], value); err != nil {
		return err
	}
	root.Set(key, child)
	return nil
}
