package core

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/sweeper/internal/table"
)

// Session is one user's working set: uploaded files in upload order and the
// exports built from them.
type Session struct {
	ID        string
	CreatedAt time.Time

	lastSeen atomic.Int64 // unix nanoseconds

	mu      sync.Mutex
	closed  bool
	files   []*workingFile
	exports []ExportRecord
}

type workingFile struct {
	id         string
	name       string
	size       int64
	format     table.Format
	uploadedAt time.Time
	steps      []string
	table      *table.Table
}

func newSession(id string, now time.Time) *Session {
	sess := &Session{ID: id, CreatedAt: now}
	sess.touch(now)
	return sess
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) idle(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastSeen()) > ttl
}

// close drops all contents. Caller holds mu.
func (s *Session) close() {
	s.closed = true
	s.files = nil
	s.exports = nil
}

func (s *Session) file(id string) (*workingFile, error) {
	for _, f := range s.files {
		if f.id == id {
			return f, nil
		}
	}
	return nil, ErrFileNotFound
}

func (s *Session) removeFile(id string) (*workingFile, error) {
	i := slices.IndexFunc(s.files, func(f *workingFile) bool { return f.id == id })
	if i < 0 {
		return nil, ErrFileNotFound
	}
	f := s.files[i]
	s.files = slices.Delete(s.files, i, i+1)
	s.dropExport(id)
	return f, nil
}

func (s *Session) dropExport(fileID string) {
	s.exports = slices.DeleteFunc(s.exports, func(r ExportRecord) bool { return r.FileID == fileID })
}

// putExport replaces the file's previous export in place, or appends.
func (s *Session) putExport(rec ExportRecord) {
	i := slices.IndexFunc(s.exports, func(r ExportRecord) bool { return r.FileID == rec.FileID })
	if i < 0 {
		s.exports = append(s.exports, rec)
		return
	}
	s.exports[i] = rec
}

func (f *workingFile) info() FileInfo {
	return FileInfo{
		ID:         f.id,
		Name:       f.name,
		Size:       f.size,
		Format:     f.format,
		Rows:       f.table.Len(),
		Columns:    slices.Clone(f.table.Columns),
		Steps:      slices.Clone(f.steps),
		UploadedAt: f.uploadedAt,
	}
}
