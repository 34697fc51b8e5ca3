package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nullstacklabs/execpool/pkg/audit"
	"github.com/nullstacklabs/execpool/pkg/executor"
)

func TestHandleStatsReflectsPoolState(t *testing.T) {
	pool := executor.NewFixedPool(3)
	defer pool.Close()
	pool.PrestartAllMinThreads()

	srv := New(pool, 0)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats failed: %v", err)
	}
	defer resp.Body.Close()

	var s stats
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decoding stats failed: %v", err)
	}
	if s.PoolSize != 3 {
		t.Errorf("expected pool_size 3, got %d", s.PoolSize)
	}
	if s.MaxSize != 3 {
		t.Errorf("expected max_size 3, got %d", s.MaxSize)
	}
}

func TestHandleSetMaxResizesPool(t *testing.T) {
	pool := executor.NewFixedPool(2)
	defer pool.Close()

	srv := New(pool, 0)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(sizeRequest{Size: 5})
	resp, err := http.Post(ts.URL+"/pool/max", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /pool/max failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", resp.StatusCode)
	}
	if got := pool.GetMaxPoolSize(); got != 5 {
		t.Errorf("expected max pool size 5 after resize, got %d", got)
	}
}

func TestHandleSetMaxRejectsBelowCurrentMin(t *testing.T) {
	pool := executor.New(4, 4, time.Minute)
	defer pool.Close()

	srv := New(pool, 0)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(sizeRequest{Size: 1})
	resp, err := http.Post(ts.URL+"/pool/max", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /pool/max failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 Conflict for max below min, got %d", resp.StatusCode)
	}
}

func TestHandleShutdownStopsAcceptingWork(t *testing.T) {
	pool := executor.NewFixedPool(1)
	defer pool.Close()

	srv := New(pool, 0)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(shutdownRequest{ASAP: true})
	resp, err := http.Post(ts.URL+"/shutdown", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /shutdown failed: %v", err)
	}
	defer resp.Body.Close()

	if !pool.IsShutdown() {
		t.Error("expected pool to report shutdown after POST /shutdown")
	}
	if pool.Submit(executor.FuncTask(func() {})) {
		t.Error("expected Submit to be rejected after shutdown")
	}
}

func TestAppendBroadcastsEventToConnectedWebsocketClients(t *testing.T) {
	pool := executor.NewFixedPool(1)
	defer pool.Close()

	srv := New(pool, time.Hour) // long ticker interval so only Append produces a frame
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()

	// give handleWebSocket's registration a moment to land before Append runs.
	time.Sleep(20 * time.Millisecond)

	srv.Append(audit.Record{Type: executor.EventWorkerSpawned, Detail: "worker 7"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame wsEvent
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("expected a broadcast event frame, got error: %v", err)
	}
	if frame.Kind != "event" || frame.Type != "worker_spawned" || frame.Detail != "worker 7" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}
