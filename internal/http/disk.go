package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/tomek7667/devconsole/internal/backend"
	"github.com/tomek7667/devconsole/internal/drill"
	"github.com/tomek7667/devconsole/internal/metrics"
)

const (
	defaultSessionLimit = 64
	defaultSessionTTL   = 30 * time.Minute
	rootLabel           = "Disk Usage"
)

// diskSession is one browser tab's drill-down through disk usage.
type diskSession struct {
	id  string
	mu  sync.Mutex
	nav *drill.Navigator
}

type diskView struct {
	ID         string        `json:"id"`
	Depth      int           `json:"depth"`
	AtRoot     bool          `json:"atRoot"`
	Frames     []drill.Frame `json:"frames"`
	Breadcrumb []string      `json:"breadcrumb"`
	Rows       []drill.Row   `json:"rows"`
}

// view must be called with mu held.
func (d *diskSession) view() diskView {
	v := diskView{
		ID:         d.id,
		Depth:      d.nav.Depth(),
		AtRoot:     d.nav.AtRoot(),
		Frames:     d.nav.Frames(),
		Breadcrumb: d.nav.Breadcrumb(rootLabel),
		Rows:       drill.SortedBySize(d.nav.Listing()),
	}
	if v.Frames == nil {
		v.Frames = []drill.Frame{}
	}
	if v.Rows == nil {
		v.Rows = []drill.Row{}
	}
	return v
}

// sessionStore keeps disk sessions in a bounded LRU; idle sessions expire.
type sessionStore struct {
	lru   *expirable.LRU[string, *diskSession]
	count atomic.Int64
}

func newSessionStore(limit int, ttl time.Duration) *sessionStore {
	if limit <= 0 {
		limit = defaultSessionLimit
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	st := &sessionStore{}
	// onEvict runs under the LRU lock, so it only touches the counter.
	st.lru = expirable.NewLRU[string, *diskSession](limit, func(string, *diskSession) {
		metrics.SetDiskSessions(int(st.count.Add(-1)))
	}, ttl)
	return st
}

func (st *sessionStore) create(inv backend.Invoker) (*diskSession, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	sess := &diskSession{
		id:  hex.EncodeToString(buf),
		nav: drill.New(drill.BackendFetcher{Invoker: inv}),
	}
	metrics.SetDiskSessions(int(st.count.Add(1)))
	st.lru.Add(sess.id, sess)
	return sess, nil
}

// get returns the session and refreshes its expiry.
func (st *sessionStore) get(id string) (*diskSession, error) {
	sess, ok := st.lru.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errSessionNotFound, id)
	}
	st.lru.Add(id, sess)
	return sess, nil
}

func (st *sessionStore) remove(id string) bool {
	return st.lru.Remove(id)
}

func (st *sessionStore) len() int {
	return st.lru.Len()
}

func (st *sessionStore) purge() {
	st.lru.Purge()
}

type descendRequest struct {
	Label string `json:"label"`
	ID    string `json:"id"`
}

type jumpRequest struct {
	Index *int `json:"index"`
}

func (s *Server) addDiskRoutes(r chi.Router) {
	r.Route("/disk/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateDiskSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.withDiskSession(func(_ *http.Request, _ *diskSession) error { return nil }))
			r.Delete("/", s.handleDeleteDiskSession)
			r.Post("/descend", s.withDiskSession(func(r *http.Request, d *diskSession) error {
				var req descendRequest
				if err := decodeBody(r, &req); err != nil {
					return err
				}
				if req.ID == "" {
					return fmt.Errorf("%w: id is required", errBadRequest)
				}
				if req.Label == "" {
					req.Label = req.ID
				}
				return d.nav.Descend(r.Context(), req.Label, req.ID)
			}))
			r.Post("/ascend", s.withDiskSession(func(r *http.Request, d *diskSession) error {
				return d.nav.Ascend(r.Context())
			}))
			r.Post("/reset", s.withDiskSession(func(r *http.Request, d *diskSession) error {
				return d.nav.Reset(r.Context())
			}))
			r.Post("/jump", s.withDiskSession(func(r *http.Request, d *diskSession) error {
				var req jumpRequest
				if err := decodeBody(r, &req); err != nil {
					return err
				}
				if req.Index == nil {
					return fmt.Errorf("%w: index is required", errBadRequest)
				}
				return d.nav.JumpTo(r.Context(), *req.Index)
			}))
		})
	})
}

func (s *Server) handleCreateDiskSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.create(s.inv)
	if err != nil {
		writeError(w, err)
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.nav.Reset(r.Context()); err != nil {
		s.sessions.remove(sess.id)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.view())
}

func (s *Server) handleDeleteDiskSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.remove(chi.URLParam(r, "id")) {
		writeError(w, fmt.Errorf("%w: %s", errSessionNotFound, chi.URLParam(r, "id")))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// withDiskSession runs op on the session under its lock and replies with
// the resulting view. A failed op replies with the error; the navigator has
// already restored its previous state.
func (s *Server) withDiskSession(op func(*http.Request, *diskSession) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.get(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if err := op(r, sess); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess.view())
	}
}
