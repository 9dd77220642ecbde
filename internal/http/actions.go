package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tomek7667/devconsole/internal/backend"
	"github.com/tomek7667/devconsole/internal/domain"
	"github.com/tomek7667/devconsole/internal/rescache"
	"go.uber.org/zap"
)

type uninstallRequest struct {
	Source domain.ToolSource `json:"source"`
	Name   string            `json:"name"`
}

type proxyRequest struct {
	Proxy    *string `json:"proxy"`
	Registry *string `json:"registry"`
}

type createProjectRequest struct {
	Template string `json:"template"`
	Name     string `json:"name"`
	Path     string `json:"path"`
}

func (s *Server) addActionRoutes(r chi.Router) {
	r.Post("/processes/{pid}/kill", s.handleKill)
	r.Post("/packages/uninstall", s.handleUninstall)
	r.Get("/orphans", passthrough[[]domain.OrphanDependency](s, backend.CmdScanOrphans))
	r.Get("/templates", passthrough[[]domain.ProjectTemplate](s, backend.CmdListTemplates))
	r.Post("/projects", s.handleCreateProject)
	r.Get("/update", passthrough[domain.UpdateInfo](s, backend.CmdCheckUpdate))
	r.Get("/system", passthrough[domain.SystemInfo](s, backend.CmdScanSystem))
	r.Get("/volumes", passthrough[[]domain.Volume](s, backend.CmdScanVolumes))
	r.Get("/proxies", passthrough[[]domain.ProxyConfig](s, backend.CmdGetProxyConfigs))
	r.Put("/proxies/{tool}", s.handleSetProxy)
}

// passthrough serves an argument-less command, decoded into T so that a
// malformed backend reply surfaces here instead of in the browser.
func passthrough[T any](s *Server, cmd backend.Command) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := backend.Call[T](r.Context(), s.inv, cmd, nil)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.ParseInt(chi.URLParam(r, "pid"), 10, 32)
	if err != nil || pid <= 0 {
		writeError(w, fmt.Errorf("%w: invalid pid %q", errBadRequest, chi.URLParam(r, "pid")))
		return
	}
	if _, err := s.inv.Invoke(r.Context(), backend.CmdTerminateProcess, backend.Args{"pid": pid}); err != nil {
		writeError(w, err)
		return
	}
	s.log.Info("process terminated", zap.Int64("pid", pid))
	s.invalidate(rescache.KindPorts, rescache.KindProcesses)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUninstall(w http.ResponseWriter, r *http.Request) {
	var req uninstallRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	args := backend.Args{"source": string(req.Source), "name": req.Name}
	if _, err := s.inv.Invoke(r.Context(), backend.CmdUninstallPackage, args); err != nil {
		writeError(w, err)
		return
	}
	s.log.Info("package uninstalled", zap.String("source", string(req.Source)), zap.String("name", req.Name))
	s.invalidate(rescache.KindTools, rescache.KindCaches)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	args := backend.Args{"template": req.Template, "name": req.Name, "path": req.Path}
	out, err := backend.Call[string](r.Context(), s.inv, backend.CmdCreateProject, args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"output": out})
}

func (s *Server) handleSetProxy(w http.ResponseWriter, r *http.Request) {
	var req proxyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tool := chi.URLParam(r, "tool")
	args := backend.Args{"tool": tool}
	if req.Proxy != nil {
		args["proxy"] = *req.Proxy
	}
	if req.Registry != nil {
		args["registry"] = *req.Registry
	}
	cfg, err := backend.Call[domain.ProxyConfig](r.Context(), s.inv, backend.CmdSetProxyConfig, args)
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Info("proxy settings changed", zap.String("tool", tool))
	writeJSON(w, http.StatusOK, cfg)
}
