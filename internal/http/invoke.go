package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tomek7667/devconsole/internal/backend"
)

// addInvokeRoute exposes the command bridge so that a remote backend can
// drive this process. An empty body means no arguments.
func (s *Server) addInvokeRoute(r chi.Router) {
	r.Post(strings.TrimPrefix(backend.InvokePath, "/api")+"{command}", func(w http.ResponseWriter, r *http.Request) {
		cmd, err := backend.ParseCommand(chi.URLParam(r, "command"))
		if err != nil {
			writeError(w, err)
			return
		}
		var req backend.InvokeRequest
		if err := decodeBody(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
			writeError(w, err)
			return
		}
		raw, err := s.inv.Invoke(r.Context(), cmd, req.Args)
		if err != nil {
			writeError(w, err)
			return
		}
		writeRaw(w, http.StatusOK, raw)
	})
}
