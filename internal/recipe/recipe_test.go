package recipe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sweeper/internal/core"
	"github.com/JonMunkholm/sweeper/internal/table"
)

const full = `
dedupe: true
fill_missing: true
filter: "age > 30"
rename:
  age: Age
format: Excel
archive: true
`

func TestParse(t *testing.T) {
	r, err := Parse([]byte(full))
	require.NoError(t, err)

	assert.True(t, r.Dedupe)
	assert.True(t, r.FillMissing)
	assert.Equal(t, "age > 30", r.Filter)
	assert.Equal(t, map[string]string{"age": "Age"}, r.Rename)
	assert.True(t, r.Archive)
	assert.Equal(t, table.FormatXLSX, r.Target())
	assert.Equal(t, []string{"dedupe", "fill_missing", "filter", "rename"}, r.Steps())
}

func TestParseEmpty(t *testing.T) {
	r, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, r.Steps())
	assert.Equal(t, table.FormatCSV, r.Target())
}

func TestParseUnknownKey(t *testing.T) {
	_, err := Parse([]byte("dedup: true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dedup")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		r    Recipe
		want []string
	}{
		{"bad format", Recipe{Format: "pdf"}, []string{"format"}},
		{"bad filter", Recipe{Filter: "age > 'open"}, []string{"filter"}},
		{"blank target", Recipe{Rename: map[string]string{"a": " "}}, []string{`blank target for "a"`}},
		{"duplicate target", Recipe{Rename: map[string]string{"a": "x", "b": "x"}}, []string{`"a" and "b" both map to "x"`}},
		{"collects all", Recipe{Format: "pdf", Filter: "a ; b"}, []string{"format", "filter"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			require.Error(t, err)
			for _, want := range tt.want {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(full), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "age > 30", r.Filter)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	r, err := Parse([]byte(full))
	require.NoError(t, err)

	data, err := r.Marshal()
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, r, again)
}

type fakePipeline struct {
	calls   []string
	failOn  string
	format  table.Format
	mapping map[string]string
}

func (f *fakePipeline) step(name string) (core.StepResult, error) {
	f.calls = append(f.calls, name)
	if name == f.failOn {
		return core.StepResult{}, errors.New(name + " failed")
	}
	return core.StepResult{}, nil
}

func (f *fakePipeline) RemoveDuplicates(context.Context, string, string) (core.StepResult, error) {
	return f.step("dedupe")
}

func (f *fakePipeline) FillMissing(context.Context, string, string) (core.StepResult, error) {
	return f.step("fill_missing")
}

func (f *fakePipeline) Filter(context.Context, string, string, string) (core.StepResult, error) {
	return f.step("filter")
}

func (f *fakePipeline) Rename(_ context.Context, _, _ string, mapping map[string]string) (core.StepResult, error) {
	f.mapping = mapping
	return f.step("rename")
}

func (f *fakePipeline) Convert(_ context.Context, _, _ string, format table.Format) (core.ExportRecord, error) {
	f.format = format
	f.calls = append(f.calls, "convert")
	return core.ExportRecord{Format: format}, nil
}

func TestApply(t *testing.T) {
	r, err := Parse([]byte(full))
	require.NoError(t, err)

	p := &fakePipeline{}
	rec, err := r.Apply(context.Background(), p, "s", "f")
	require.NoError(t, err)
	assert.Equal(t, []string{"dedupe", "fill_missing", "filter", "rename", "convert"}, p.calls)
	assert.Equal(t, table.FormatXLSX, rec.Format)
	assert.Equal(t, map[string]string{"age": "Age"}, p.mapping)
}

func TestApplyStopsAtFailure(t *testing.T) {
	r, err := Parse([]byte(full))
	require.NoError(t, err)

	p := &fakePipeline{failOn: "filter"}
	_, err = r.Apply(context.Background(), p, "s", "f")
	require.Error(t, err)
	assert.Equal(t, []string{"dedupe", "fill_missing", "filter"}, p.calls)
}

func TestApplyOnlyConverts(t *testing.T) {
	p := &fakePipeline{}
	_, err := (&Recipe{}).Apply(context.Background(), p, "s", "f")
	require.NoError(t, err)
	assert.Equal(t, []string{"convert"}, p.calls)
	assert.Equal(t, table.FormatCSV, p.format)
}
