package core

import (
	"context"
	"slices"

	"github.com/bwmarrin/snowflake"

	"github.com/JonMunkholm/sweeper/internal/archive"
	"github.com/JonMunkholm/sweeper/internal/history"
	"github.com/JonMunkholm/sweeper/internal/table"
)

// Convert serializes a file's current table to format and keeps the result
// for download. Converting the same file again replaces its earlier export
// in the same position. A failed convert drops the earlier export, so the
// session never offers a download that no longer matches the file.
func (s *Service) Convert(ctx context.Context, sessionID, fileID string, format table.Format) (ExportRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Upload.Timeout)
	defer cancel()

	var rec ExportRecord
	var name string
	var rows int
	found := false

	err := s.withSession(sessionID, func(sess *Session) error {
		f, err := sess.file(fileID)
		if err != nil {
			return err
		}
		name, rows, found = f.name, f.table.Len(), true

		var data []byte
		var mime string
		err = s.limiter.Do(ctx, func() error {
			var xerr error
			data, mime, xerr = table.Export(f.table, format)
			return xerr
		})
		if err != nil {
			sess.dropExport(f.id)
			return err
		}

		rec = ExportRecord{
			ID:        s.ids.Generate(),
			FileID:    f.id,
			Name:      table.OutputName(f.name, format),
			Format:    format,
			MIMEType:  mime,
			Size:      len(data),
			Data:      data,
			CreatedAt: s.now(),
		}
		sess.putExport(rec)
		return nil
	})
	if !found {
		return ExportRecord{}, err
	}

	s.record(ctx, outcome(history.Event{
		SessionID:    sessionID,
		FileName:     name,
		Action:       history.ActionConvert,
		RowsAffected: rows,
		Detail:       string(format),
	}, err))
	if err != nil {
		return ExportRecord{}, err
	}
	return rec, nil
}

// Exports lists the session's exports in accumulation order.
func (s *Service) Exports(sessionID string) ([]ExportRecord, error) {
	var recs []ExportRecord
	err := s.withSession(sessionID, func(sess *Session) error {
		recs = slices.Clone(sess.exports)
		return nil
	})
	return recs, err
}

// Export returns one export including its bytes.
func (s *Service) Export(sessionID string, exportID snowflake.ID) (ExportRecord, error) {
	var rec ExportRecord
	err := s.withSession(sessionID, func(sess *Session) error {
		i := slices.IndexFunc(sess.exports, func(r ExportRecord) bool { return r.ID == exportID })
		if i < 0 {
			return ErrExportNotFound
		}
		rec = sess.exports[i]
		return nil
	})
	return rec, err
}

// Package zips every export in accumulation order. With nothing converted
// yet it fails with archive.ErrEmptyPackage.
func (s *Service) Package(ctx context.Context, sessionID string) (Bundle, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Upload.Timeout)
	defer cancel()

	var entries []archive.Entry
	err := s.withSession(sessionID, func(sess *Session) error {
		entries = make([]archive.Entry, len(sess.exports))
		for i, rec := range sess.exports {
			entries[i] = archive.Entry{Name: rec.Name, Data: rec.Data}
		}
		return nil
	})
	if err != nil {
		return Bundle{}, err
	}

	var data []byte
	err = s.limiter.Do(ctx, func() error {
		var perr error
		data, perr = archive.Package(entries)
		return perr
	})

	s.record(ctx, outcome(history.Event{
		SessionID:    sessionID,
		FileName:     archive.PackageName,
		Action:       history.ActionPackage,
		RowsAffected: len(entries),
	}, err))
	if err != nil {
		return Bundle{}, err
	}

	return Bundle{
		Name:     archive.PackageName,
		MIMEType: archive.MIMEType,
		Files:    len(entries),
		Data:     data,
	}, nil
}
