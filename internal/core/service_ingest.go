package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sweeper/internal/history"
	"github.com/JonMunkholm/sweeper/internal/logging"
	"github.com/JonMunkholm/sweeper/internal/table"
)

// Ingest parses each file and appends the ones that parse to the session in
// the given order. A file that fails is reported in its FileOutcome and
// skipped; the returned error is reserved for problems with the request as
// a whole.
func (s *Service) Ingest(ctx context.Context, sessionID string, files []UploadedFile) (IngestReport, error) {
	if len(files) == 0 {
		return IngestReport{}, ErrNoFiles
	}
	if limit := s.cfg.Upload.MaxFiles; len(files) > limit {
		return IngestReport{}, fmt.Errorf("%w: got %d, limit is %d", ErrTooManyFiles, len(files), limit)
	}
	if _, err := s.Session(sessionID); err != nil {
		return IngestReport{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Upload.Timeout)
	defer cancel()

	log := logging.WithFields(ctx, "session_id", sessionID)
	report := IngestReport{Files: make([]FileOutcome, len(files))}
	parsed := make([]*workingFile, len(files))

	// Parse outside the session lock so reads of the session stay responsive.
	for i, f := range files {
		report.Files[i].Name = f.Name
		wf, err := s.parseUpload(ctx, f)
		if err != nil {
			log.Info("file rejected", "file", f.Name, "error", err)
			report.Files[i].Err = err
			continue
		}
		parsed[i] = wf
	}

	err := s.withSession(sessionID, func(sess *Session) error {
		for i, wf := range parsed {
			if wf == nil {
				continue
			}
			sess.files = append(sess.files, wf)
			info := wf.info()
			report.Files[i].File = &info
		}
		return nil
	})
	if err != nil {
		return IngestReport{}, err
	}

	for i, out := range report.Files {
		e := history.Event{SessionID: sessionID, FileName: out.Name, Action: history.ActionIngest}
		if out.File != nil {
			e.RowsAffected = out.File.Rows
		}
		s.record(ctx, outcome(e, report.Files[i].Err))
	}

	log.Info("files ingested", "accepted", report.Accepted(), "rejected", len(files)-report.Accepted())
	return report, nil
}

func (s *Service) parseUpload(ctx context.Context, f UploadedFile) (*workingFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := int64(len(f.Data))
	if size > s.cfg.Upload.MaxFileSize {
		return nil, fmt.Errorf("%s: %w (%d bytes, limit %d)", f.Name, ErrFileTooLarge, size, s.cfg.Upload.MaxFileSize)
	}
	format, err := table.CheckFormat(f.Name)
	if err != nil {
		return nil, err
	}

	var t *table.Table
	err = s.limiter.Do(ctx, func() error {
		var perr error
		t, perr = table.Parse(f.Name, f.Data)
		return perr
	})
	if err != nil {
		return nil, err
	}

	return &workingFile{
		id:         uuid.New().String(),
		name:       f.Name,
		size:       size,
		format:     format,
		uploadedAt: s.now(),
		table:      t,
	}, nil
}

// RemoveFile drops a file and any export built from it.
func (s *Service) RemoveFile(ctx context.Context, sessionID, fileID string) error {
	var name string
	err := s.withSession(sessionID, func(sess *Session) error {
		f, err := sess.removeFile(fileID)
		if err != nil {
			return err
		}
		name = f.name
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, history.Event{SessionID: sessionID, FileName: name, Action: history.ActionRemove})
	return nil
}
