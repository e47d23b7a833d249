package web

import (
	"mime"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sweeper/internal/core"
	"github.com/JonMunkholm/sweeper/internal/table"
)

type convertRequest struct {
	Format string `json:"format"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}
	format, err := table.ParseFormat(req.Format)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	rec, err := s.service.Convert(withClient(r.Context(), r), chi.URLParam(r, "sessionID"), chi.URLParam(r, "fileID"), format)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusCreated, rec)
}

func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	recs, err := s.service.Exports(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"exports": recs})
}

func (s *Server) handleDownloadExport(w http.ResponseWriter, r *http.Request) {
	id, err := snowflake.ParseString(chi.URLParam(r, "exportID"))
	if err != nil {
		respondError(w, r, core.ErrExportNotFound, 0)
		return
	}
	rec, err := s.service.Export(chi.URLParam(r, "sessionID"), id)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeDownload(w, rec.Name, rec.MIMEType, rec.Data)
}

func (s *Server) handleDownloadArchive(w http.ResponseWriter, r *http.Request) {
	bundle, err := s.service.Package(withClient(r.Context(), r), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeDownload(w, bundle.Name, bundle.MIMEType, bundle.Data)
}

func writeDownload(w http.ResponseWriter, name, mimeType string, data []byte) {
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
