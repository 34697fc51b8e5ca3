// Package admin exposes an executor.Executor over HTTP: live stats, pool
// reconfiguration, shutdown, and a websocket feed pushing stats at a fixed
// interval. This surface is operational tooling, not part of the core
// library contract — an application embeds it only if it wants a
// dashboard.
package admin

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/nullstacklabs/execpool/pkg/audit"
	"github.com/nullstacklabs/execpool/pkg/executor"
)

// Server wraps an *executor.Executor with an HTTP admin surface.
//
// Server also implements audit.Sink: pass it to an audit.Chain's sink list
// (alongside a postgres.Store or search.Index) to push lifecycle events to
// every connected websocket client the instant they're recorded, rather
// than waiting for the next ticker-driven stats frame.
type Server struct {
	pool *executor.Executor

	upgrader websocket.Upgrader
	wsMu     sync.RWMutex
	wsConns  map[*websocket.Conn]chan interface{}

	pushInterval time.Duration
}

// New builds a Server for pool. pushInterval controls how often connected
// websocket clients receive a fresh stats frame; 0 defaults to 500ms.
func New(pool *executor.Executor, pushInterval time.Duration) *Server {
	if pushInterval <= 0 {
		pushInterval = 500 * time.Millisecond
	}
	return &Server{
		pool: pool,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		wsConns:      make(map[*websocket.Conn]chan interface{}),
		pushInterval: pushInterval,
	}
}

// Router builds the mux.Router exposing the admin surface. Mount it under
// a path prefix of the caller's choosing, or serve it standalone.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/pool/min", s.handleSetMin).Methods(http.MethodPost)
	r.HandleFunc("/pool/max", s.handleSetMax).Methods(http.MethodPost)
	r.HandleFunc("/pool/keepalive", s.handleSetKeepAlive).Methods(http.MethodPost)
	r.HandleFunc("/shutdown", s.handleShutdown).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.handleWebSocket)
	return r
}

// stats is the JSON shape returned by GET /stats and pushed over /ws.
type stats struct {
	PoolSize   uint32 `json:"pool_size"`
	ActiveCount uint32 `json:"active_count"`
	MinSize    uint32 `json:"min_size"`
	MaxSize    uint32 `json:"max_size"`
	KeepAliveSeconds float64 `json:"keep_alive_seconds"`
	Shutdown   bool   `json:"shutdown"`
}

func (s *Server) snapshot() stats {
	return stats{
		PoolSize:         s.pool.GetPoolSize(),
		ActiveCount:      s.pool.GetActiveCount(),
		MinSize:          s.pool.GetMinPoolSize(),
		MaxSize:          s.pool.GetMaxPoolSize(),
		KeepAliveSeconds: s.pool.GetKeepAliveTime().Seconds(),
		Shutdown:         s.pool.IsShutdown(),
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, s.snapshot())
}

type sizeRequest struct {
	Size uint32 `json:"size"`
}

func (s *Server) handleSetMin(w http.ResponseWriter, r *http.Request) {
	var req sizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, err, http.StatusBadRequest)
		return
	}
	if !s.pool.SetMinPoolSize(req.Size) {
		sendError(w, errRejected, http.StatusConflict)
		return
	}
	sendJSON(w, s.snapshot())
}

func (s *Server) handleSetMax(w http.ResponseWriter, r *http.Request) {
	var req sizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, err, http.StatusBadRequest)
		return
	}
	if !s.pool.SetMaxPoolSize(req.Size) {
		sendError(w, errRejected, http.StatusConflict)
		return
	}
	sendJSON(w, s.snapshot())
}

type keepAliveRequest struct {
	Seconds float64 `json:"seconds"`
}

func (s *Server) handleSetKeepAlive(w http.ResponseWriter, r *http.Request) {
	var req keepAliveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, err, http.StatusBadRequest)
		return
	}
	d := time.Duration(req.Seconds * float64(time.Second))
	if !s.pool.SetKeepAliveTime(d) {
		sendError(w, errRejected, http.StatusConflict)
		return
	}
	sendJSON(w, s.snapshot())
}

type shutdownRequest struct {
	ASAP bool `json:"asap"`
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	var req shutdownRequest
	// A body-less POST is a valid drain shutdown request, so a decode
	// failure here is not an error — it just leaves ASAP false.
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.pool.Shutdown(req.ASAP)
	sendJSON(w, s.snapshot())
}

// wsEvent is the frame shape pushed to websocket clients by Append, distinct
// from the periodic stats snapshot so a dashboard can tell the two apart.
type wsEvent struct {
	Kind   string `json:"kind"`
	Type   string `json:"event_type"`
	Detail string `json:"detail"`
}

// Append implements audit.Sink. It fans the record out to every connected
// websocket client's clientChan; a client whose buffer is full (16 frames)
// has the event dropped rather than blocking, since a Sink must not stall
// the audit.Chain.Record call that invoked it.
func (s *Server) Append(r audit.Record) {
	frame := wsEvent{Kind: "event", Type: r.TypeName(), Detail: r.Detail}

	s.wsMu.RLock()
	defer s.wsMu.RUnlock()
	for _, ch := range s.wsConns {
		select {
		case ch <- frame:
		default:
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	clientChan := make(chan interface{}, 16)
	s.wsMu.Lock()
	s.wsConns[conn] = clientChan
	s.wsMu.Unlock()

	defer func() {
		s.wsMu.Lock()
		delete(s.wsConns, conn)
		s.wsMu.Unlock()
		close(clientChan)
		conn.Close()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(s.snapshot()); err != nil {
				return
			}
		case msg := <-clientChan:
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func sendJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

var errRejected = httpError("request rejected: pool is not running, or the new value is out of range")

type httpError string

func (e httpError) Error() string { return string(e) }
