package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tomek7667/devconsole/internal/configdoc"
	"go.uber.org/zap"
)

// saveConfigRequest carries either field edits for a structured document or
// the complete raw text. Raw wins when both are present.
type saveConfigRequest struct {
	Fields map[string]string `json:"fields,omitempty"`
	Raw    *string           `json:"raw,omitempty"`
}

func (s *Server) addConfigRoutes(r chi.Router) {
	r.Route("/config", func(r chi.Router) {
		r.Get("/dirs", s.handleConfigDirs)
		r.Get("/files", s.handleConfigFiles)
		r.Get("/file", s.handleReadConfig)
		r.Put("/file", s.handleSaveConfig)
	})
}

func queryPath(r *http.Request) (string, error) {
	p := r.URL.Query().Get("path")
	if p == "" {
		return "", fmt.Errorf("%w: missing path query parameter", errBadRequest)
	}
	return p, nil
}

func (s *Server) handleConfigDirs(w http.ResponseWriter, r *http.Request) {
	dirs, err := s.editor.Dirs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dirs)
}

func (s *Server) handleConfigFiles(w http.ResponseWriter, r *http.Request) {
	dir, err := queryPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	files, err := s.editor.Files(r.Context(), dir)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleReadConfig(w http.ResponseWriter, r *http.Request) {
	path, err := queryPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	doc, err := s.editor.Open(r.Context(), path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	path, err := queryPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req saveConfigRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var doc *configdoc.Document
	switch {
	case req.Raw != nil:
		doc, err = s.editor.SaveRaw(r.Context(), path, *req.Raw)
	case req.Fields != nil:
		doc, err = s.editor.SaveFields(r.Context(), path, req.Fields)
	default:
		err = fmt.Errorf("%w: either fields or raw is required", errBadRequest)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Info("config saved", zap.String("path", path), zap.Bool("structured", doc.Structured))
	writeJSON(w, http.StatusOK, doc)
}
