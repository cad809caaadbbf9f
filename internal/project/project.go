// Package project loads work items and their dependencies from JSON or YAML
// project documents and turns them into scheduling parameters.
package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	yaml "go.yaml.in/yaml/v3"

	"github.com/joshharrison/ganttloom/internal/cpm"
	"github.com/joshharrison/ganttloom/internal/dates"
)

// Project is a document holding one project's schedule inputs.
type Project struct {
	Name         string           `json:"name,omitempty"`
	Today        *dates.Date      `json:"today,omitempty"`
	WorkItems    []cpm.WorkItem   `json:"workItems"`
	Dependencies []cpm.Dependency `json:"dependencies"`
}

// Options controls how a document is read.
type Options struct {
	// Path is a gjson path selecting the project inside a larger document,
	// e.g. "data.project". Empty means the whole document.
	Path string
}

// Load reads a project from a .json, .yaml or .yml file.
func Load(path string, opts Options) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}
	p, err := Parse(data, formatOf(path), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a project document. format is "json" or "yaml".
func Parse(data []byte, format string, opts Options) (*Project, error) {
	if format == "yaml" {
		var err error
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, err
		}
	}

	if opts.Path != "" {
		if !gjson.ValidBytes(data) {
			return nil, fmt.Errorf("invalid JSON document")
		}
		res := gjson.GetBytes(data, opts.Path)
		if !res.Exists() {
			return nil, fmt.Errorf("path %q not found in document", opts.Path)
		}
		if !res.IsObject() {
			return nil, fmt.Errorf("path %q does not select an object", opts.Path)
		}
		data = []byte(res.Raw)
	}

	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse project: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the document for problems that would make it unusable:
// missing or duplicate ids, negative durations and unknown dependency types.
// Dependencies on unknown items are allowed; the scheduler drops them.
func (p *Project) Validate() error {
	seen := make(map[string]bool, len(p.WorkItems))
	for i, wi := range p.WorkItems {
		if strings.TrimSpace(wi.ID) == "" {
			return fmt.Errorf("workItems[%d]: id is required", i)
		}
		if seen[wi.ID] {
			return fmt.Errorf("workItems[%d]: duplicate id %q", i, wi.ID)
		}
		seen[wi.ID] = true
		if wi.DurationDays != nil && *wi.DurationDays < 0 {
			return fmt.Errorf("workItems[%d] (%s): durationDays must not be negative", i, wi.ID)
		}
	}
	for i, dep := range p.Dependencies {
		if _, err := cpm.ParseDependencyType(dep.DependencyType); err != nil {
			return fmt.Errorf("dependencies[%d]: %w", i, err)
		}
	}
	return nil
}

// Params builds scheduling parameters for the project.
func (p *Project) Params(mode cpm.Mode, anchor string, today dates.Date) cpm.ScheduleParams {
	return cpm.ScheduleParams{
		Mode:             mode,
		WorkItems:        p.WorkItems,
		Dependencies:     p.Dependencies,
		Today:            today,
		AnchorWorkItemID: anchor,
	}
}

// TodayOr returns the document's reference date, or fallback if it has none.
func (p *Project) TodayOr(fallback dates.Date) dates.Date {
	if p.Today != nil {
		return *p.Today
	}
	return fallback
}

// AddDependency appends dep unless an identical edge already exists.
// It reports whether the edge was added.
func (p *Project) AddDependency(dep cpm.Dependency) bool {
	for _, d := range p.Dependencies {
		if d == dep {
			return false
		}
	}
	p.Dependencies = append(p.Dependencies, dep)
	return true
}

// Save writes the project back in the format implied by path. When
// opts.Path is set the project replaces only that part of the existing
// document and everything around it is kept.
func (p *Project) Save(path string, opts Options) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}
	if opts.Path != "" {
		if data, err = embed(path, opts.Path, data); err != nil {
			return err
		}
	}
	if formatOf(path) == "yaml" {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("re-decode project: %w", err)
		}
		if data, err = yaml.Marshal(v); err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// embed splices the project JSON into the document at path under the gjson
// path sel and returns the whole document as indented JSON.
func embed(path, sel string, project []byte) ([]byte, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}
	if formatOf(path) == "yaml" {
		if doc, err = yamlToJSON(doc); err != nil {
			return nil, err
		}
	}
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("%s: invalid JSON document", path)
	}
	doc, err = sjson.SetRawBytes(doc, sel, project)
	if err != nil {
		return nil, fmt.Errorf("set %q: %w", sel, err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, doc, "", "  "); err != nil {
		return nil, fmt.Errorf("indent document: %w", err)
	}
	return out.Bytes(), nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	}
	return "json"
}

// yamlToJSON converts a YAML document to JSON so both formats share one
// decoder and gjson can address either.
func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	j, err := json.Marshal(normalizeYAML(v))
	if err != nil {
		return nil, fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, nil
}

// normalizeYAML ensures all map keys are strings and dates are plain
// strings so the result can be JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	case time.Time:
		return dates.FromTime(x).String()
	default:
		return in
	}
}
