package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventStreamDispatchesTerminated(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.WriteJSON(TerminatedEvent{Type: EventTerminated, SessionID: "sess_dead"})
		// An unrelated frame type must be ignored, not dispatched.
		conn.WriteJSON(TerminatedEvent{Type: "session_created", SessionID: "sess_new"})
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	terminated := make(chan string, 4)
	stream := NewEventStream(wsURL(srv), nil, func(sessionID string) { terminated <- sessionID })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stream.Run(ctx)

	select {
	case id := <-terminated:
		assert.Equal(t, "sess_dead", id)
	case <-time.After(5 * time.Second):
		t.Fatal("terminated event never dispatched")
	}

	select {
	case id := <-terminated:
		t.Fatalf("unexpected dispatch for %s", id)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestEventStreamReconnectsQuicklyAfterDrop(t *testing.T) {
	var connCount int64
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&connCount, 1)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// Each connection delivers one event, then drops.
		conn.WriteJSON(TerminatedEvent{
			Type:      EventTerminated,
			SessionID: fmt.Sprintf("sess_drop_%d", n),
		})
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	terminated := make(chan string, 8)
	stream := NewEventStream(wsURL(srv), nil, func(sessionID string) { terminated <- sessionID })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stream.Run(ctx)

	// Each drop follows a successful connection, so the backoff stays at
	// its one-second floor: five reconnects fit well inside the deadline,
	// where an ever-doubling backoff would need over fifteen seconds.
	deadline := time.After(8 * time.Second)
	for i := 1; i <= 5; i++ {
		select {
		case id := <-terminated:
			assert.Equal(t, fmt.Sprintf("sess_drop_%d", i), id)
		case <-deadline:
			t.Fatalf("only %d of 5 events before deadline", i-1)
		}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}
