package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/JonMunkholm/sweeper/internal/filter"
	"github.com/JonMunkholm/sweeper/internal/history"
	"github.com/JonMunkholm/sweeper/internal/logging"
	"github.com/JonMunkholm/sweeper/internal/table"
)

// stepFunc computes a file's next table. It must not modify t.
type stepFunc func(t *table.Table) (*table.Table, StepResult, error)

// transform applies fn to a file's current table. The table is replaced only
// when fn succeeds, so a failed step leaves the file as it was. label is
// shown in the file's step list; detail goes to history, which is shared
// storage and must not carry cell values.
func (s *Service) transform(ctx context.Context, sessionID, fileID string, action history.Action, label, detail string, fn stepFunc) (StepResult, error) {
	var res StepResult
	var name string
	found := false

	err := s.withSession(sessionID, func(sess *Session) error {
		f, err := sess.file(fileID)
		if err != nil {
			return err
		}
		name, found = f.name, true

		next, r, err := fn(f.table)
		if err != nil {
			return fmt.Errorf("%s %s: %w", action, f.name, err)
		}
		f.table = next
		f.steps = append(f.steps, stepLabel(action, label))
		r.File = f.info()
		res = r
		return nil
	})
	if !found {
		return StepResult{}, err
	}

	e := history.Event{
		SessionID:    sessionID,
		FileName:     name,
		Action:       action,
		RowsAffected: res.RowsAffected,
		Status:       history.StatusOK,
		Detail:       detail,
	}
	if err != nil {
		code := MapError(err).Code
		logging.WithFields(ctx, "session_id", sessionID, "file", name).
			Info("step failed", "action", action, "code", code, "detail", detail)
		// The error text may quote the expression, so only its code is kept.
		e.Status = history.StatusFailed
		e.Detail = strings.TrimSpace(detail + " (" + code + ")")
	}
	s.record(ctx, e)
	return res, err
}

func stepLabel(action history.Action, detail string) string {
	if detail == "" {
		return string(action)
	}
	return string(action) + ": " + detail
}

// RemoveDuplicates drops repeated rows, keeping first occurrences.
func (s *Service) RemoveDuplicates(ctx context.Context, sessionID, fileID string) (StepResult, error) {
	return s.transform(ctx, sessionID, fileID, history.ActionDedupe, "", "", func(t *table.Table) (*table.Table, StepResult, error) {
		next, removed := table.RemoveDuplicates(t)
		return next, StepResult{RowsAffected: removed}, nil
	})
}

// FillMissing replaces missing numeric cells with their column mean.
func (s *Service) FillMissing(ctx context.Context, sessionID, fileID string) (StepResult, error) {
	return s.transform(ctx, sessionID, fileID, history.ActionFillMissing, "", "", func(t *table.Table) (*table.Table, StepResult, error) {
		next, filled := table.FillMissingNumeric(t)
		affected := 0
		for _, name := range filled {
			i := t.ColumnIndex(name)
			for _, v := range t.Column(i) {
				if table.IsMissing(v) {
					affected++
				}
			}
		}
		return next, StepResult{RowsAffected: affected, Columns: filled}, nil
	})
}

// Filter keeps the rows matching expression. History records only the
// expression's shape, with literals masked.
func (s *Service) Filter(ctx context.Context, sessionID, fileID, expression string) (StepResult, error) {
	return s.transform(ctx, sessionID, fileID, history.ActionFilter, expression, filter.Shape(expression), func(t *table.Table) (*table.Table, StepResult, error) {
		next, err := table.FilterRows(t, expression)
		if err != nil {
			return nil, StepResult{}, err
		}
		return next, StepResult{RowsAffected: t.Len() - next.Len()}, nil
	})
}

// Rename renames columns by mapping. Unknown source names are ignored.
func (s *Service) Rename(ctx context.Context, sessionID, fileID string, mapping map[string]string) (StepResult, error) {
	desc := describeMapping(mapping)
	return s.transform(ctx, sessionID, fileID, history.ActionRename, desc, desc, func(t *table.Table) (*table.Table, StepResult, error) {
		next, err := table.RenameColumns(t, mapping)
		if err != nil {
			return nil, StepResult{}, err
		}
		var renamed []string
		for i, name := range t.Columns {
			if next.Columns[i] != name {
				renamed = append(renamed, next.Columns[i])
			}
		}
		return next, StepResult{Columns: renamed}, nil
	})
}

func describeMapping(mapping map[string]string) string {
	pairs := make([]string, 0, len(mapping))
	for _, k := range slices.Sorted(maps.Keys(mapping)) {
		pairs = append(pairs, k+"="+mapping[k])
	}
	return strings.Join(pairs, ", ")
}
