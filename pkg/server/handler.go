package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/derive/internal/errors"
	"github.com/vango-dev/derive/internal/scenario"
	"github.com/vango-dev/derive/internal/snapshot"
)

// WriteRequest is the body of PUT /nodes/{name}.
type WriteRequest struct {
	Value *float64 `json:"value"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Scenario string `json:"scenario"`
	Clock    uint64 `json:"clock"`
	Stats    Stats  `json:"stats"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := healthResponse{
		Status:   "ok",
		Scenario: s.graph.Name(),
		Clock:    s.graph.Runtime().Clock(),
	}
	s.mu.Unlock()
	resp.Stats = s.Stats()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	states := s.graph.States()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, states)
}

// handleReadNode evaluates the node first, so the returned state is current.
func (s *Server) handleReadNode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.graph.Read(name); err != nil {
		writeError(w, err)
		return
	}
	st, err := s.graph.State(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleWriteNode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var body WriteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if body.Value == nil {
		badRequest(w, "Missing value")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kind, ok := s.graph.Kind(name)
	if !ok {
		writeError(w, errors.Newf(errors.CodeUnknownNode, "Unknown node %q", name))
		return
	}

	var err error
	if kind == scenario.KindWritable {
		err = s.graph.Write(name, *body.Value)
	} else {
		err = s.graph.Set(name, *body.Value)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	s.stats.writes.Add(1)

	if err := s.graph.Flush(); err != nil {
		s.logger.Warn("flush after write failed", "node", name, "error", err)
		writeError(w, err)
		return
	}

	st, _ := s.graph.State(name)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDestroyNode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.graph.Destroy(name); err != nil {
		writeError(w, err)
		return
	}
	if eff, ok := s.watches[name]; ok {
		eff.Dispose()
		delete(s.watches, name)
	}

	st, _ := s.graph.State(name)
	s.hub.Broadcast(Message{Type: MessageDestroyed, Node: &st})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := s.hub.upgrade(w, r)
	if err != nil {
		s.logger.Debug("watch upgrade failed", "error", err)
		return
	}

	// The initial states are queued under mu, so no change published in
	// between can be missed or arrive first.
	s.mu.Lock()
	states := s.graph.States()
	initial := make([]Message, 0, len(states))
	for i := range states {
		if states[i].Kind == scenario.KindEffect {
			continue
		}
		initial = append(initial, Message{Type: MessageState, Node: &states[i]})
	}
	c := s.hub.add(conn, initial)
	s.mu.Unlock()

	s.logger.Debug("watch client connected", "remote", r.RemoteAddr)
	s.hub.serve(c)
	s.logger.Debug("watch client disconnected", "remote", r.RemoteAddr)
}

type snapshotResponse struct {
	Key   string `json:"key"`
	Clock uint64 `json:"clock"`
	Nodes int    `json:"nodes"`
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	keys, err := s.config.Store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"keys": keys})
}

func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	s.mu.Lock()
	snap := snapshot.Take(s.graph)
	s.mu.Unlock()

	if err := s.config.Store.Save(r.Context(), key, snap); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshotResponse{Key: key, Clock: snap.Clock, Nodes: len(snap.Nodes)})
}

func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	snap, err := s.config.Store.Load(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Nodes the graph lacks are reported after the rest is restored.
	restoreErr := snapshot.Restore(s.graph, snap)
	if err := s.graph.Flush(); err != nil {
		writeError(w, err)
		return
	}
	if restoreErr != nil {
		writeError(w, restoreErr)
		return
	}
	writeJSON(w, http.StatusOK, s.graph.States())
}
