package registry

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/TermDeck/backend/internal/providers"
)

func newTestLocal() *Local {
	configs := providers.NewStaticSource(
		providers.Provider{ID: "cfg-1", Name: "Alpha", Enabled: true},
		providers.Provider{ID: "cfg-off", Name: "Disabled", Enabled: false},
	)
	return NewLocal(configs, nil)
}

func TestLocalCreateAndList(t *testing.T) {
	l := newTestLocal()
	ctx := context.Background()

	sess, err := l.CreateSession(ctx, CreateRequest{
		SessionID: "sess_local_1",
		ConfigID:  "cfg-1",
	})
	require.NoError(t, err)
	defer l.CloseSession(ctx, sess.SessionID)

	assert.Equal(t, "sess_local_1", sess.SessionID)
	assert.True(t, sess.Running)
	assert.Contains(t, sess.Name, "Terminal")
	assert.False(t, sess.AgentMode)

	sessions, err := l.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess_local_1", sessions[0].SessionID)
}

func TestLocalCreateValidatesConfig(t *testing.T) {
	l := newTestLocal()
	ctx := context.Background()

	_, err := l.CreateSession(ctx, CreateRequest{SessionID: "sess_x", ConfigID: "cfg-off"})
	assert.ErrorIs(t, err, ErrConfigUnavailable)

	_, err = l.CreateSession(ctx, CreateRequest{SessionID: "sess_x", ConfigID: ""})
	assert.ErrorIs(t, err, ErrConfigUnavailable)
}

func TestLocalCreateRejectsDuplicateID(t *testing.T) {
	l := newTestLocal()
	ctx := context.Background()

	sess, err := l.CreateSession(ctx, CreateRequest{SessionID: "sess_dup", ConfigID: "cfg-1"})
	require.NoError(t, err)
	defer l.CloseSession(ctx, sess.SessionID)

	_, err = l.CreateSession(ctx, CreateRequest{SessionID: "sess_dup", ConfigID: "cfg-1"})
	assert.Error(t, err)
}

func TestLocalCloseIsIdempotent(t *testing.T) {
	l := newTestLocal()
	ctx := context.Background()

	sess, err := l.CreateSession(ctx, CreateRequest{SessionID: "sess_close", ConfigID: "cfg-1"})
	require.NoError(t, err)

	require.NoError(t, l.CloseSession(ctx, sess.SessionID))
	require.NoError(t, l.CloseSession(ctx, sess.SessionID))
	require.NoError(t, l.CloseSession(ctx, "sess_never_existed"))

	sessions, err := l.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestLocalWriteAndRead(t *testing.T) {
	l := newTestLocal()
	ctx := context.Background()

	sess, err := l.CreateSession(ctx, CreateRequest{SessionID: "sess_io", ConfigID: "cfg-1"})
	require.NoError(t, err)
	defer l.CloseSession(ctx, sess.SessionID)

	require.NoError(t, l.Write(sess.SessionID, []byte("echo termdeck_marker\n")))

	deadline := time.After(5 * time.Second)
	var output []byte
	for {
		chunk, err := l.Read(sess.SessionID)
		require.NoError(t, err)
		output = append(output, chunk...)
		if bytes.Contains(output, []byte("termdeck_marker")) {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("marker not seen in output: %q", output)
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestLocalSwitchProvider(t *testing.T) {
	l := newTestLocal()
	ctx := context.Background()

	sess, err := l.CreateSession(ctx, CreateRequest{SessionID: "sess_sw", ConfigID: "cfg-1"})
	require.NoError(t, err)
	defer l.CloseSession(ctx, sess.SessionID)

	assert.ErrorIs(t, l.SwitchProvider(ctx, sess.SessionID, "cfg-off"), ErrConfigUnavailable)
	assert.ErrorIs(t, l.SwitchProvider(ctx, "sess_ghost", "cfg-1"), ErrSessionNotFound)
}

func TestLocalAgentSessionRequiresWorkDir(t *testing.T) {
	l := newTestLocal()

	_, err := l.CreateAgentSession(context.Background(), CreateAgentRequest{
		SessionID: "sess_agent",
		ConfigID:  "cfg-1",
	})
	assert.ErrorIs(t, err, ErrConfigUnavailable)
}

func TestLocalTerminatedCallback(t *testing.T) {
	l := newTestLocal()
	ctx := context.Background()

	terminated := make(chan string, 1)
	l.OnTerminated(func(sessionID string) { terminated <- sessionID })

	sess, err := l.CreateSession(ctx, CreateRequest{SessionID: "sess_exit", ConfigID: "cfg-1"})
	require.NoError(t, err)

	require.NoError(t, l.Write(sess.SessionID, []byte("exit\n")))

	select {
	case id := <-terminated:
		assert.Equal(t, "sess_exit", id)
	case <-time.After(5 * time.Second):
		t.Fatal("terminated callback never fired")
	}
}

func TestLocalCloseDoesNotFireCallback(t *testing.T) {
	l := newTestLocal()
	ctx := context.Background()

	terminated := make(chan string, 1)
	l.OnTerminated(func(sessionID string) { terminated <- sessionID })

	sess, err := l.CreateSession(ctx, CreateRequest{SessionID: "sess_kill", ConfigID: "cfg-1"})
	require.NoError(t, err)
	require.NoError(t, l.CloseSession(ctx, sess.SessionID))

	select {
	case id := <-terminated:
		t.Fatalf("unexpected terminated callback for %s", id)
	case <-time.After(500 * time.Millisecond):
	}
}
