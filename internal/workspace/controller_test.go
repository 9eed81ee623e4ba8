package workspace

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/TermDeck/backend/internal/providers"
	"github.com/GriffinCanCode/TermDeck/backend/internal/registry"
)

// fakeClient is an in-memory registry.Client with scriptable failures.
type fakeClient struct {
	sessions []registry.Session

	listErr   error
	createErr error
	closeErr  error
	switchErr error

	createCalls []registry.CreateRequest
	closeCalls  []string
	switchCalls []string
}

func (f *fakeClient) ListSessions(ctx context.Context) ([]registry.Session, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]registry.Session(nil), f.sessions...), nil
}

func (f *fakeClient) CreateSession(ctx context.Context, req registry.CreateRequest) (*registry.Session, error) {
	f.createCalls = append(f.createCalls, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	name := req.Name
	if name == "" {
		name = "Terminal"
	}
	sess := registry.Session{
		SessionID: req.SessionID,
		ConfigID:  req.ConfigID,
		Name:      name,
		WorkDir:   req.WorkDir,
		Running:   true,
		CreatedAt: time.Now(),
	}
	f.sessions = append(f.sessions, sess)
	return &sess, nil
}

func (f *fakeClient) CreateAgentSession(ctx context.Context, req registry.CreateAgentRequest) (*registry.Session, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	sess := registry.Session{
		SessionID: req.SessionID,
		ConfigID:  req.ConfigID,
		Name:      req.Name,
		WorkDir:   req.WorkDir,
		Running:   true,
		AgentMode: true,
		CreatedAt: time.Now(),
	}
	f.sessions = append(f.sessions, sess)
	return &sess, nil
}

func (f *fakeClient) CloseSession(ctx context.Context, sessionID string) error {
	f.closeCalls = append(f.closeCalls, sessionID)
	if f.closeErr != nil {
		return f.closeErr
	}
	for i, s := range f.sessions {
		if s.SessionID == sessionID {
			f.sessions = append(f.sessions[:i], f.sessions[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeClient) SwitchProvider(ctx context.Context, sessionID, configID string) error {
	f.switchCalls = append(f.switchCalls, sessionID+":"+configID)
	return f.switchErr
}

func newTestController(client *fakeClient) *Controller {
	configs := providers.NewStaticSource(
		providers.Provider{ID: "cfg-1", Name: "Alpha", Enabled: true},
		providers.Provider{ID: "cfg-2", Name: "Beta", Enabled: true},
		providers.Provider{ID: "cfg-off", Name: "Disabled", Enabled: false},
	)
	store := NewStore("default")
	history := NewLedger(100)
	return NewController(store, history, client, configs, nil, nil)
}

func session(id, configID string) registry.Session {
	return registry.Session{
		SessionID: id,
		ConfigID:  configID,
		Name:      "Terminal",
		Running:   true,
		CreatedAt: time.Now(),
	}
}

func TestReconcileAdoptsAndDrops(t *testing.T) {
	client := &fakeClient{sessions: []registry.Session{
		session("sess_b", "cfg-1"),
		session("sess_c", "cfg-2"),
	}}
	c := newTestController(client)

	// Local view believes in A and B; registry says B and C.
	c.Store().AddTab(Tab{SessionID: "sess_a", ConfigID: "cfg-1", Running: true}, "")
	c.Store().AddTab(Tab{SessionID: "sess_b", ConfigID: "cfg-1", Running: true}, "")

	require.NoError(t, c.Reconcile(context.Background()))

	tabs := c.Store().Tabs()
	require.Len(t, tabs, 2)
	assert.Equal(t, "sess_b", tabs[0].SessionID)
	assert.Equal(t, "sess_c", tabs[1].SessionID)
	assert.Equal(t, "Alpha", tabs[0].ConfigName)
	assert.True(t, c.Store().Initialized())
}

func TestReconcileEmptyRegistryEmptiesStore(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(client)
	c.Store().AddTab(Tab{SessionID: "sess_a", ConfigID: "cfg-1"}, "")

	require.NoError(t, c.Reconcile(context.Background()))
	assert.Empty(t, c.Store().Tabs())
	assert.Empty(t, c.Store().ActiveSessionID())
}

func TestReconcileFailureLeavesStoreUntouched(t *testing.T) {
	client := &fakeClient{listErr: registry.ErrTransport}
	c := newTestController(client)
	c.Store().AddTab(Tab{SessionID: "sess_a", ConfigID: "cfg-1", Running: true}, "")
	require.True(t, c.Store().SetActive("sess_a"))
	before := c.Store().Snapshot()

	err := c.Reconcile(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrTransport)

	after := c.Store().Snapshot()
	assert.Equal(t, before.Tabs, after.Tabs)
	assert.Equal(t, before.ActiveSessionID, after.ActiveSessionID)
	assert.Equal(t, before.TabGroups, after.TabGroups)
	assert.False(t, after.Initialized)
}

func TestReconcileActivatesFirstTabWhenNoneActive(t *testing.T) {
	client := &fakeClient{sessions: []registry.Session{session("sess_a", "cfg-1")}}
	c := newTestController(client)

	require.NoError(t, c.Reconcile(context.Background()))
	assert.Equal(t, "sess_a", c.Store().ActiveSessionID())
}

func TestCreateTerminal(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(client)

	tab, err := c.CreateTerminal(context.Background(), CreateOptions{
		ConfigID: "cfg-1",
		WorkDir:  "/tmp",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(tab.SessionID, "sess_"))
	assert.Equal(t, "Alpha", tab.ConfigName)
	assert.True(t, tab.Running)

	// The new tab is adopted and becomes active.
	assert.Equal(t, tab.SessionID, c.Store().ActiveSessionID())
	require.Len(t, client.createCalls, 1)
	assert.Equal(t, tab.SessionID, client.createCalls[0].SessionID)
}

func TestCreateTerminalDisabledProvider(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(client)

	_, err := c.CreateTerminal(context.Background(), CreateOptions{ConfigID: "cfg-off"})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	// Validation happens before any remote call.
	assert.Empty(t, client.createCalls)

	_, err = c.CreateTerminal(context.Background(), CreateOptions{ConfigID: "cfg-unknown"})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestCreateTerminalRemoteFailureAddsNoTab(t *testing.T) {
	client := &fakeClient{createErr: registry.ErrTransport}
	c := newTestController(client)

	_, err := c.CreateTerminal(context.Background(), CreateOptions{ConfigID: "cfg-1"})
	require.Error(t, err)
	assert.Empty(t, c.Store().Tabs())
}

func TestCreateAgentTerminal(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(client)

	tab, err := c.CreateAgentTerminal(context.Background(), AgentCreateOptions{
		ConfigID: "cfg-1",
		WorkDir:  "/repo",
	})
	require.NoError(t, err)
	assert.True(t, tab.AgentMode)
	assert.Equal(t, "/repo", tab.WorkDir)

	// WorkDir is mandatory for agent sessions.
	_, err = c.CreateAgentTerminal(context.Background(), AgentCreateOptions{ConfigID: "cfg-1"})
	assert.Error(t, err)
}

func TestCloseTabRemovesAndRecordsHistory(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(client)
	tab, err := c.CreateTerminal(context.Background(), CreateOptions{ConfigID: "cfg-1", WorkDir: "/tmp"})
	require.NoError(t, err)

	require.NoError(t, c.CloseTab(context.Background(), tab.SessionID))

	assert.Empty(t, c.Store().Tabs())
	assert.Equal(t, []string{tab.SessionID}, client.closeCalls)

	entries := c.History().List()
	require.Len(t, entries, 1)
	assert.Equal(t, tab.SessionID, entries[0].SessionID)
	assert.True(t, entries[0].ExitedNormally)
	assert.True(t, strings.HasPrefix(entries[0].ID, "hist_"))
}

func TestCloseTabIsIdempotent(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(client)
	tab, err := c.CreateTerminal(context.Background(), CreateOptions{ConfigID: "cfg-1"})
	require.NoError(t, err)

	require.NoError(t, c.CloseTab(context.Background(), tab.SessionID))
	require.NoError(t, c.CloseTab(context.Background(), tab.SessionID))

	// The second close never reaches the registry and adds no history.
	assert.Len(t, client.closeCalls, 1)
	assert.Equal(t, 1, c.History().Len())
}

func TestCloseTabRemovesDespiteRemoteFailure(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(client)
	tab, err := c.CreateTerminal(context.Background(), CreateOptions{ConfigID: "cfg-1"})
	require.NoError(t, err)

	client.closeErr = registry.ErrTransport
	require.NoError(t, c.CloseTab(context.Background(), tab.SessionID))

	assert.Empty(t, c.Store().Tabs())
	assert.Equal(t, 1, c.History().Len())
}

func TestCloseTabAfterBackendTerminationRecordsOnce(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(client)
	tab, err := c.CreateTerminal(context.Background(), CreateOptions{ConfigID: "cfg-1"})
	require.NoError(t, err)

	c.HandleTerminated(tab.SessionID)
	require.NoError(t, c.CloseTab(context.Background(), tab.SessionID))

	// The termination already produced the history entry; dismissing the
	// dead tab must not add a second one or touch the registry again.
	assert.Empty(t, c.Store().Tabs())
	entries := c.History().List()
	require.Len(t, entries, 1)
	assert.Equal(t, tab.SessionID, entries[0].SessionID)
	assert.False(t, entries[0].ExitedNormally)
	assert.Empty(t, client.closeCalls)
}

func TestClearAllSkipsTerminatedTabs(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(client)
	live, err := c.CreateTerminal(context.Background(), CreateOptions{ConfigID: "cfg-1"})
	require.NoError(t, err)
	dead, err := c.CreateTerminal(context.Background(), CreateOptions{ConfigID: "cfg-2"})
	require.NoError(t, err)

	c.HandleTerminated(dead.SessionID)
	c.ClearAll(context.Background())

	assert.Empty(t, c.Store().Tabs())
	// One close for the live tab; the dead one was only removed.
	assert.Equal(t, []string{live.SessionID}, client.closeCalls)

	entries := c.History().List()
	require.Len(t, entries, 2)
	for _, e := range entries {
		switch e.SessionID {
		case live.SessionID:
			assert.True(t, e.ExitedNormally)
		case dead.SessionID:
			assert.False(t, e.ExitedNormally)
		default:
			t.Fatalf("unexpected history entry for %s", e.SessionID)
		}
	}
}

func TestHandleTerminatedKeepsTabNotRunning(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(client)
	tab, err := c.CreateTerminal(context.Background(), CreateOptions{ConfigID: "cfg-1"})
	require.NoError(t, err)

	c.HandleTerminated(tab.SessionID)

	// The tab stays so trailing output remains inspectable.
	got, ok := c.Store().Get(tab.SessionID)
	require.True(t, ok)
	assert.False(t, got.Running)

	entries := c.History().List()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].ExitedNormally)

	// Duplicate events append nothing.
	c.HandleTerminated(tab.SessionID)
	assert.Equal(t, 1, c.History().Len())

	// Unknown sessions are ignored.
	c.HandleTerminated("sess_unknown")
	assert.Equal(t, 1, c.History().Len())
}

func TestSwitchProvider(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(client)
	tab, err := c.CreateTerminal(context.Background(), CreateOptions{ConfigID: "cfg-1"})
	require.NoError(t, err)

	require.NoError(t, c.SwitchProvider(context.Background(), tab.SessionID, "cfg-2"))

	got, _ := c.Store().Get(tab.SessionID)
	assert.Equal(t, "cfg-2", got.ConfigID)
	assert.Equal(t, "Beta", got.ConfigName)
	// Same session, same process.
	assert.Equal(t, tab.SessionID, got.SessionID)
}

func TestSwitchProviderGuards(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(client)
	tab, err := c.CreateTerminal(context.Background(), CreateOptions{ConfigID: "cfg-1"})
	require.NoError(t, err)

	err = c.SwitchProvider(context.Background(), "sess_unknown", "cfg-2")
	assert.ErrorIs(t, err, ErrTabNotFound)

	err = c.SwitchProvider(context.Background(), tab.SessionID, "cfg-off")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Empty(t, client.switchCalls)
}

func TestSwitchProviderRemoteFailureLeavesTab(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(client)
	tab, err := c.CreateTerminal(context.Background(), CreateOptions{ConfigID: "cfg-1"})
	require.NoError(t, err)

	client.switchErr = errors.New("switch rejected")
	require.Error(t, c.SwitchProvider(context.Background(), tab.SessionID, "cfg-2"))

	got, _ := c.Store().Get(tab.SessionID)
	assert.Equal(t, "cfg-1", got.ConfigID)
}

func TestRestoreCreatesFreshSession(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(client)
	tab, err := c.CreateTerminal(context.Background(), CreateOptions{
		ConfigID: "cfg-1",
		Name:     "Build",
		WorkDir:  "/repo",
	})
	require.NoError(t, err)
	require.NoError(t, c.CloseTab(context.Background(), tab.SessionID))

	entry := c.History().List()[0]
	restored, err := c.Restore(context.Background(), entry.ID)
	require.NoError(t, err)

	// Same template, brand-new session identity.
	assert.Equal(t, "cfg-1", restored.ConfigID)
	assert.Equal(t, "Build", restored.Name)
	assert.Equal(t, "/repo", restored.WorkDir)
	assert.NotEqual(t, tab.SessionID, restored.SessionID)
}

func TestRestoreGuards(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(client)

	_, err := c.Restore(context.Background(), "hist_missing")
	assert.ErrorIs(t, err, ErrHistoryNotFound)

	tab, err := c.CreateTerminal(context.Background(), CreateOptions{ConfigID: "cfg-2"})
	require.NoError(t, err)
	require.NoError(t, c.CloseTab(context.Background(), tab.SessionID))
	entry := c.History().List()[0]

	// Disable the entry's configuration; restore must fail without
	// issuing any create call.
	c.Configs().(*providers.StaticSource).Replace([]providers.Provider{
		{ID: "cfg-2", Name: "Beta", Enabled: false},
	})
	callsBefore := len(client.createCalls)

	_, err = c.Restore(context.Background(), entry.ID)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Len(t, client.createCalls, callsBefore)
}

func TestClearAllClosesEverythingIndependently(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(client)
	for i := 0; i < 3; i++ {
		_, err := c.CreateTerminal(context.Background(), CreateOptions{ConfigID: "cfg-1"})
		require.NoError(t, err)
	}

	// Every close fails remotely; the sweep must still finish.
	client.closeErr = registry.ErrTransport
	c.ClearAll(context.Background())

	assert.Empty(t, c.Store().Tabs())
	assert.Empty(t, c.Store().ActiveSessionID())
	assert.Len(t, client.closeCalls, 3)
	assert.Equal(t, 3, c.History().Len())
}

func TestLifecycleScenario(t *testing.T) {
	client := &fakeClient{}
	c := newTestController(client)
	ctx := context.Background()

	require.NoError(t, c.Reconcile(ctx))

	a, err := c.CreateTerminal(ctx, CreateOptions{ConfigID: "cfg-1", Name: "A"})
	require.NoError(t, err)
	b, err := c.CreateTerminal(ctx, CreateOptions{ConfigID: "cfg-2", Name: "B"})
	require.NoError(t, err)
	assert.Equal(t, b.SessionID, c.Store().ActiveSessionID())

	// A ends on its own; B is closed by the user. The registry drops A's
	// record once its process exits.
	client.sessions = client.sessions[1:]
	c.HandleTerminated(a.SessionID)
	require.NoError(t, c.CloseTab(ctx, b.SessionID))

	got, ok := c.Store().Get(a.SessionID)
	require.True(t, ok)
	assert.False(t, got.Running)
	assert.Equal(t, a.SessionID, c.Store().ActiveSessionID())

	entries := c.History().List()
	require.Len(t, entries, 2)
	assert.Equal(t, b.SessionID, entries[0].SessionID)
	assert.True(t, entries[0].ExitedNormally)
	assert.False(t, entries[1].ExitedNormally)

	// A later reconcile sweeps the dead tab out.
	require.NoError(t, c.Reconcile(ctx))
	assert.Empty(t, c.Store().Tabs())
}
