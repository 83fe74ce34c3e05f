package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gridmind/gridmind/internal/core"
	"github.com/gridmind/gridmind/internal/events"
)

// readSSEEvent reads one "event:"/"data:" pair from the stream.
func readSSEEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var eventType, data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading sse stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && eventType != "":
			return eventType, data
		}
	}
}

func TestSSEStreamsCellEvents(t *testing.T) {
	h := newTestHarness(t)
	srv := httptest.NewServer(h.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect sse: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	eventType, _ := readSSEEvent(t, reader)
	if eventType != "connected" {
		t.Fatalf("expected connected handshake, got %q", eventType)
	}

	h.bus.Publish(events.NewCellStateChangedEvent("sheet-1",
		core.CellRef{Row: 2, Col: "B"}, core.CellStateQueued, ""))

	eventType, data := readSSEEvent(t, reader)
	if eventType != events.TypeCellStateChanged {
		t.Fatalf("expected cell state event, got %q", eventType)
	}
	if !strings.Contains(data, "sheet-1") || !strings.Contains(data, "queued") {
		t.Errorf("unexpected event payload %s", data)
	}
}

func TestSSESheetFilter(t *testing.T) {
	h := newTestHarness(t)
	srv := httptest.NewServer(h.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events?sheet=mine", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect sse: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	if eventType, _ := readSSEEvent(t, reader); eventType != "connected" {
		t.Fatalf("expected connected handshake, got %q", eventType)
	}

	ref := core.CellRef{Row: 0, Col: "A"}
	h.bus.Publish(events.NewCellStateChangedEvent("other", ref, core.CellStateQueued, ""))
	h.bus.Publish(events.NewCellStateChangedEvent("mine", ref, core.CellStateQueued, ""))

	// The "other" sheet's event is filtered out; the first event through is
	// the one for "mine".
	_, data := readSSEEvent(t, reader)
	if !strings.Contains(data, `"mine"`) {
		t.Errorf("expected filtered stream to carry only mine, got %s", data)
	}
}
