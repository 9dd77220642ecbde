package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tomek7667/devconsole/internal/rescache"
	"go.uber.org/zap"
)

// resourceView is a cached collection as served to the dashboard. Error
// carries a failed refresh while the last known items keep displaying.
type resourceView struct {
	rescache.Snapshot
	Stale   bool   `json:"stale"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) addResourceRoutes(r chi.Router) {
	r.Get("/resources", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.cache.StatusAll())
	})
	r.Get("/resources/{kind}", s.handleGetResource)
	r.Post("/resources/{kind}/refresh", s.handleRefreshResource)
	r.Post("/resources/{kind}/invalidate", s.handleInvalidateResource)
}

func (s *Server) view(kind rescache.Kind, refreshErr error) (resourceView, error) {
	snap, err := s.cache.Get(kind)
	if err != nil {
		return resourceView{}, err
	}
	stale, _ := s.cache.IsStaleDefault(kind)
	v := resourceView{Snapshot: snap, Stale: stale, Loading: s.loading.Active(kind)}
	if refreshErr != nil {
		v.Error = refreshErr.Error()
	}
	return v, nil
}

// handleGetResource serves the cached collection, refreshing it first when
// it is stale and no other refresh of the same kind is running.
func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	kind, err := rescache.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	var refreshErr error
	if stale, _ := s.cache.IsStaleDefault(kind); stale && s.loading.Begin(kind) {
		_, _, refreshErr = s.cache.RefreshIfStale(r.Context(), kind)
		s.loading.End(kind)
	}
	v, err := s.view(kind, refreshErr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRefreshResource(w http.ResponseWriter, r *http.Request) {
	kind, err := rescache.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.loading.Begin(kind) {
		writeError(w, errRefreshInFlight)
		return
	}
	_, err = s.cache.Refresh(r.Context(), kind)
	s.loading.End(kind)
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := s.view(kind, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleInvalidateResource(w http.ResponseWriter, r *http.Request) {
	kind, err := rescache.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.cache.Invalidate(kind); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// invalidate marks kinds stale after an action changed them.
func (s *Server) invalidate(kinds ...rescache.Kind) {
	for _, k := range kinds {
		if err := s.cache.Invalidate(k); err != nil {
			s.log.Warn("invalidate failed", zap.String("kind", string(k)), zap.Error(err))
		}
	}
}
