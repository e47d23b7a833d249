package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sweeper/internal/core"
)

const (
	// multipartMemory is how much of a multipart body is kept in memory
	// before spilling to temporary files.
	multipartMemory = 32 << 20

	// maxJSONBody bounds the body of the JSON step requests.
	maxJSONBody = 1 << 20
)

type outcomeResponse struct {
	Name  string         `json:"name"`
	File  *core.FileInfo `json:"file,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

type ingestResponse struct {
	Accepted int               `json:"accepted"`
	Rejected int               `json:"rejected"`
	Files    []outcomeResponse `json:"files"`
}

// handleUpload ingests every file in the multipart "files" field. Files that
// fail to parse are reported individually; the rest are kept.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sessionID")
	up := s.cfg.Upload

	r.Body = http.MaxBytesReader(w, r.Body, up.MaxFileSize*int64(up.MaxFiles)+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(w, r, core.ErrFileTooLarge, 0)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), 0)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}

	files := make([]core.UploadedFile, 0, len(headers))
	for _, h := range headers {
		data, err := readPart(h, up.MaxFileSize)
		if err != nil {
			respondError(w, r, err, http.StatusBadRequest)
			return
		}
		files = append(files, core.UploadedFile{Name: h.Filename, Data: data})
	}

	report, err := s.service.Ingest(withClient(r.Context(), r), sid, files)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	resp := ingestResponse{Files: make([]outcomeResponse, len(report.Files))}
	for i, out := range report.Files {
		resp.Files[i] = outcomeResponse{Name: out.Name, File: out.File}
		if out.Err != nil {
			body := errorBody(out.Err)
			resp.Files[i].Error = &body
			resp.Rejected++
		} else {
			resp.Accepted++
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// readPart reads at most limit+1 bytes so oversize files are still reported
// as too large by the service rather than truncated.
func readPart(h *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", h.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", h.Filename, err)
	}
	return data, nil
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.service.Files(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleFilePreview(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.Preview(
		chi.URLParam(r, "sessionID"),
		chi.URLParam(r, "fileID"),
		parseIntParam(r, "rows", 0),
	)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

func (s *Server) handleFileStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Describe(chi.URLParam(r, "sessionID"), chi.URLParam(r, "fileID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"columns": stats})
}

func (s *Server) handleRemoveFile(w http.ResponseWriter, r *http.Request) {
	err := s.service.RemoveFile(withClient(r.Context(), r), chi.URLParam(r, "sessionID"), chi.URLParam(r, "fileID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDedupe(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.RemoveDuplicates(withClient(r.Context(), r), chi.URLParam(r, "sessionID"), chi.URLParam(r, "fileID"))
	s.respondStep(w, r, res, err)
}

func (s *Server) handleFillMissing(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.FillMissing(withClient(r.Context(), r), chi.URLParam(r, "sessionID"), chi.URLParam(r, "fileID"))
	s.respondStep(w, r, res, err)
}

type filterRequest struct {
	Expression string `json:"expression"`
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}
	res, err := s.service.Filter(withClient(r.Context(), r), chi.URLParam(r, "sessionID"), chi.URLParam(r, "fileID"), req.Expression)
	s.respondStep(w, r, res, err)
}

type renameRequest struct {
	Mapping map[string]string `json:"mapping"`
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}
	res, err := s.service.Rename(withClient(r.Context(), r), chi.URLParam(r, "sessionID"), chi.URLParam(r, "fileID"), req.Mapping)
	s.respondStep(w, r, res, err)
}

func (s *Server) respondStep(w http.ResponseWriter, r *http.Request, res core.StepResult, err error) {
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
