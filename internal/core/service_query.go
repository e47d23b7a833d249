package core

import (
	"github.com/JonMunkholm/sweeper/internal/table"
)

// Files lists the session's files in upload order.
func (s *Service) Files(sessionID string) ([]FileInfo, error) {
	var infos []FileInfo
	err := s.withSession(sessionID, func(sess *Session) error {
		infos = make([]FileInfo, len(sess.files))
		for i, f := range sess.files {
			infos[i] = f.info()
		}
		return nil
	})
	return infos, err
}

// File describes one working file.
func (s *Service) File(sessionID, fileID string) (FileInfo, error) {
	var info FileInfo
	err := s.withSession(sessionID, func(sess *Session) error {
		f, err := sess.file(fileID)
		if err != nil {
			return err
		}
		info = f.info()
		return nil
	})
	return info, err
}

// Table returns a copy of a file's current table.
func (s *Service) Table(sessionID, fileID string) (*table.Table, error) {
	var t *table.Table
	err := s.withSession(sessionID, func(sess *Session) error {
		f, err := sess.file(fileID)
		if err != nil {
			return err
		}
		t = f.table.Clone()
		return nil
	})
	return t, err
}

// Preview returns the first rows of a file. rows <= 0 uses the configured
// default.
func (s *Service) Preview(sessionID, fileID string, rows int) (Preview, error) {
	if rows <= 0 {
		rows = s.cfg.Upload.PreviewRows
	}

	var p Preview
	err := s.withSession(sessionID, func(sess *Session) error {
		f, err := sess.file(fileID)
		if err != nil {
			return err
		}
		p = Preview{
			File:  f.info(),
			Kinds: table.Kinds(f.table),
			Head:  table.Head(f.table, rows),
		}
		return nil
	})
	return p, err
}

// Describe returns per-column summary statistics.
func (s *Service) Describe(sessionID, fileID string) ([]table.ColumnStats, error) {
	var stats []table.ColumnStats
	err := s.withSession(sessionID, func(sess *Session) error {
		f, err := sess.file(fileID)
		if err != nil {
			return err
		}
		stats = table.Describe(f.table)
		return nil
	})
	return stats, err
}
