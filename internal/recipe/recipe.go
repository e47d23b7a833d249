// Package recipe loads YAML files describing the pipeline steps to apply to
// every input file in a batch run.
//
//	dedupe: true
//	fill_missing: true
//	filter: "age > 30"
//	rename: {age: Age}
//	format: xlsx
//	archive: true
//
// Steps always run in the order dedupe, fill_missing, filter, rename, and
// the result is converted to format.
package recipe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/JonMunkholm/sweeper/internal/core"
	"github.com/JonMunkholm/sweeper/internal/filter"
	"github.com/JonMunkholm/sweeper/internal/table"
)

// Recipe is the on-disk representation of a batch pipeline.
type Recipe struct {
	Dedupe      bool              `yaml:"dedupe,omitempty"`
	FillMissing bool              `yaml:"fill_missing,omitempty"`
	Filter      string            `yaml:"filter,omitempty"`
	Rename      map[string]string `yaml:"rename,omitempty"`
	Format      string            `yaml:"format,omitempty"`
	Archive     bool              `yaml:"archive,omitempty"`
}

// Load reads and validates a recipe file.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recipe: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse decodes and validates a recipe. Unknown keys are rejected so that a
// misspelt step is not silently skipped.
func Parse(data []byte) (*Recipe, error) {
	var r Recipe
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing recipe: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Marshal encodes r as YAML.
func (r *Recipe) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshaling recipe: %w", err)
	}
	return data, nil
}

// Validate checks everything that can be checked without a table. Column
// names in the filter are resolved only when it runs.
func (r *Recipe) Validate() error {
	var errs []string

	if r.Format != "" {
		if _, err := table.ParseFormat(r.Format); err != nil {
			errs = append(errs, fmt.Sprintf("format: %v", err))
		}
	}

	if strings.TrimSpace(r.Filter) != "" {
		if _, err := filter.Tokenize(r.Filter); err != nil {
			errs = append(errs, fmt.Sprintf("filter: %v", err))
		}
	}

	targets := make(map[string]string, len(r.Rename))
	for _, from := range slices.Sorted(maps.Keys(r.Rename)) {
		to := strings.TrimSpace(r.Rename[from])
		switch {
		case strings.TrimSpace(from) == "":
			errs = append(errs, "rename: blank source column")
		case to == "":
			errs = append(errs, fmt.Sprintf("rename: blank target for %q", from))
		case targets[to] != "":
			errs = append(errs, fmt.Sprintf("rename: %q and %q both map to %q", targets[to], from, to))
		default:
			targets[to] = from
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Target returns the export format, CSV when none is set.
func (r *Recipe) Target() table.Format {
	f, err := table.ParseFormat(r.Format)
	if err != nil || r.Format == "" {
		return table.FormatCSV
	}
	return f
}

// Steps names the enabled steps in run order.
func (r *Recipe) Steps() []string {
	var steps []string
	if r.Dedupe {
		steps = append(steps, "dedupe")
	}
	if r.FillMissing {
		steps = append(steps, "fill_missing")
	}
	if strings.TrimSpace(r.Filter) != "" {
		steps = append(steps, "filter")
	}
	if len(r.Rename) > 0 {
		steps = append(steps, "rename")
	}
	return steps
}

// Pipeline is the subset of *core.Service a recipe drives.
type Pipeline interface {
	RemoveDuplicates(ctx context.Context, sessionID, fileID string) (core.StepResult, error)
	FillMissing(ctx context.Context, sessionID, fileID string) (core.StepResult, error)
	Filter(ctx context.Context, sessionID, fileID, expression string) (core.StepResult, error)
	Rename(ctx context.Context, sessionID, fileID string, mapping map[string]string) (core.StepResult, error)
	Convert(ctx context.Context, sessionID, fileID string, format table.Format) (core.ExportRecord, error)
}

// Apply runs the recipe's steps on one file and converts it. It stops at the
// first failing step; earlier steps stay applied.
func (r *Recipe) Apply(ctx context.Context, p Pipeline, sessionID, fileID string) (core.ExportRecord, error) {
	if r.Dedupe {
		if _, err := p.RemoveDuplicates(ctx, sessionID, fileID); err != nil {
			return core.ExportRecord{}, err
		}
	}
	if r.FillMissing {
		if _, err := p.FillMissing(ctx, sessionID, fileID); err != nil {
			return core.ExportRecord{}, err
		}
	}
	if strings.TrimSpace(r.Filter) != "" {
		if _, err := p.Filter(ctx, sessionID, fileID, r.Filter); err != nil {
			return core.ExportRecord{}, err
		}
	}
	if len(r.Rename) > 0 {
		if _, err := p.Rename(ctx, sessionID, fileID, r.Rename); err != nil {
			return core.ExportRecord{}, err
		}
	}
	return p.Convert(ctx, sessionID, fileID, r.Target())
}
