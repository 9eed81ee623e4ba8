package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/TermDeck/backend/internal/logging"
	"github.com/GriffinCanCode/TermDeck/backend/internal/providers"
	"github.com/GriffinCanCode/TermDeck/backend/internal/registry"
	"github.com/GriffinCanCode/TermDeck/backend/internal/shared/id"
)

var (
	// ErrProviderUnavailable indicates the target configuration is unknown
	// or disabled locally. Raised before any remote call is issued.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrTabNotFound indicates the session ID is not in the store.
	ErrTabNotFound = errors.New("tab not found")

	// ErrHistoryNotFound indicates the ledger has no such entry.
	ErrHistoryNotFound = errors.New("history entry not found")
)

// Metrics records workspace-level measurements. Satisfied by
// *monitoring.Metrics; a nil value disables recording.
type Metrics interface {
	RecordSessionCreated(agentMode bool)
	RecordSessionClosed(reason string)
	RecordProviderSwitch()
	RecordReconciliation(outcome string)
	SetTabsOpen(count int)
	SetHistorySize(count int)
}

type nopMetrics struct{}

func (nopMetrics) RecordSessionCreated(bool)   {}
func (nopMetrics) RecordSessionClosed(string)  {}
func (nopMetrics) RecordProviderSwitch()       {}
func (nopMetrics) RecordReconciliation(string) {}
func (nopMetrics) SetTabsOpen(int)             {}
func (nopMetrics) SetHistorySize(int)          {}

// Controller is the operation layer between UI intents and the session
// registry. Remote calls happen without holding store locks; on success the
// store and ledger are mutated through their atomic methods.
type Controller struct {
	store   *Store
	history *Ledger
	client  registry.Client
	configs providers.Source
	logger  *logging.Logger
	metrics Metrics
}

// NewController wires the lifecycle controller. metrics may be nil.
func NewController(store *Store, history *Ledger, client registry.Client, configs providers.Source, logger *logging.Logger, metrics Metrics) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Controller{
		store:   store,
		history: history,
		client:  client,
		configs: configs,
		logger:  logger.Named("workspace"),
		metrics: metrics,
	}
}

// Store exposes the underlying store to the rendering layer.
func (c *Controller) Store() *Store {
	return c.store
}

// History exposes the history ledger to the rendering layer.
func (c *Controller) History() *Ledger {
	return c.history
}

// Configs exposes the provider configuration source.
func (c *Controller) Configs() providers.Source {
	return c.configs
}

// CreateOptions parameterizes a plain terminal create.
type CreateOptions struct {
	ConfigID string
	Name     string
	WorkDir  string
	GroupID  string
}

// AgentCreateOptions parameterizes an agent terminal create. WorkDir is
// mandatory.
type AgentCreateOptions struct {
	ConfigID string
	WorkDir  string
	Name     string
	GroupID  string
	Agent    registry.AgentOptions
}

// Reconcile merges the registry's authoritative session list into the
// store. The registry's answer replaces the tab list wholesale: sessions
// the store did not know are adopted, tabs the registry no longer reports
// are dropped, and an empty registry empties the store. A transport failure
// leaves the store exactly as it was.
func (c *Controller) Reconcile(ctx context.Context) error {
	sessions, err := c.client.ListSessions(ctx)
	if err != nil {
		c.metrics.RecordReconciliation("failed")
		return fmt.Errorf("reconciliation aborted: %w", err)
	}

	tabs := make([]Tab, 0, len(sessions))
	for _, s := range sessions {
		name, _ := providers.Name(c.configs, s.ConfigID)
		tabs = append(tabs, tabFromSession(s, name))
	}

	c.store.SetTabs(tabs)
	if c.store.ActiveSessionID() == "" && len(tabs) > 0 {
		c.store.SetActive(tabs[0].SessionID)
	}

	c.metrics.RecordReconciliation("ok")
	c.metrics.SetTabsOpen(len(tabs))
	c.logger.Info("reconciled workspace", zap.Int("sessions", len(tabs)))
	return nil
}

// CreateTerminal creates a plain terminal session and adds its tab. The
// registry's response is authoritative for name and workdir, not the
// request. On failure no partial tab is added.
func (c *Controller) CreateTerminal(ctx context.Context, opts CreateOptions) (*Tab, error) {
	if !providers.IsEnabled(c.configs, opts.ConfigID) {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, opts.ConfigID)
	}

	sessionID := id.NewSessionID().String()
	sess, err := c.client.CreateSession(ctx, registry.CreateRequest{
		SessionID: sessionID,
		ConfigID:  opts.ConfigID,
		Name:      opts.Name,
		WorkDir:   opts.WorkDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return c.adoptCreated(*sess, opts.GroupID), nil
}

// CreateAgentTerminal creates a session pre-wired to run an interactive
// agent command. WorkDir is validated before any remote call.
func (c *Controller) CreateAgentTerminal(ctx context.Context, opts AgentCreateOptions) (*Tab, error) {
	if !providers.IsEnabled(c.configs, opts.ConfigID) {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, opts.ConfigID)
	}
	if opts.WorkDir == "" {
		return nil, errors.New("agent session requires a working directory")
	}

	sessionID := id.NewSessionID().String()
	sess, err := c.client.CreateAgentSession(ctx, registry.CreateAgentRequest{
		SessionID: sessionID,
		ConfigID:  opts.ConfigID,
		WorkDir:   opts.WorkDir,
		Options:   opts.Agent,
		Name:      opts.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent session: %w", err)
	}

	return c.adoptCreated(*sess, opts.GroupID), nil
}

func (c *Controller) adoptCreated(sess registry.Session, groupID string) *Tab {
	name, _ := providers.Name(c.configs, sess.ConfigID)
	tab := tabFromSession(sess, name)

	c.store.AddTab(tab, groupID)
	c.store.SetActive(tab.SessionID)

	c.metrics.RecordSessionCreated(tab.AgentMode)
	c.metrics.SetTabsOpen(len(c.store.Tabs()))
	c.logger.Info("session created",
		zap.String("session_id", tab.SessionID),
		zap.String("config_id", tab.ConfigID),
		zap.Bool("agent_mode", tab.AgentMode))
	return &tab
}

// CloseTab closes a session at the user's request. The tab is removed
// locally whether or not the remote close succeeds: once the user asked to
// close, the view must not keep showing the tab. A failed remote close at
// worst orphans the session until the next reconciliation. Closing a tab
// the store does not know is a no-op.
func (c *Controller) CloseTab(ctx context.Context, sessionID string) error {
	tab, ok := c.store.Get(sessionID)
	if !ok {
		return nil
	}

	// A tab the backend already terminated was recorded by HandleTerminated;
	// dismissing it now only removes the tab, it is not a second close.
	if !tab.Running {
		c.store.RemoveTab(sessionID)
		c.metrics.SetTabsOpen(len(c.store.Tabs()))
		return nil
	}

	if err := c.client.CloseSession(ctx, sessionID); err != nil {
		c.logger.Warn("remote close failed, removing tab anyway",
			zap.String("session_id", sessionID), zap.Error(err))
	}

	c.history.Append(c.entryFor(tab, true))
	c.store.RemoveTab(sessionID)

	c.metrics.RecordSessionClosed("user")
	c.metrics.SetTabsOpen(len(c.store.Tabs()))
	c.metrics.SetHistorySize(c.history.Len())
	return nil
}

// HandleTerminated reacts to the backend reporting a session ended on its
// own. The tab stays in the store marked not-running so trailing output
// remains inspectable; only a user close or a later reconciliation removes
// it. Duplicate or unknown events are ignored.
func (c *Controller) HandleTerminated(sessionID string) {
	tab, ok := c.store.Get(sessionID)
	if !ok || !tab.Running {
		return
	}

	c.store.UpdateTab(sessionID, func(t *Tab) { t.Running = false })
	c.history.Append(c.entryFor(tab, false))

	c.metrics.RecordSessionClosed("backend")
	c.metrics.SetHistorySize(c.history.Len())
	c.logger.Info("session terminated by backend", zap.String("session_id", sessionID))
}

// SwitchProvider re-routes a live session through another configuration.
// The process and session ID are unchanged. On failure the tab is left as
// it was.
func (c *Controller) SwitchProvider(ctx context.Context, sessionID, configID string) error {
	if _, ok := c.store.Get(sessionID); !ok {
		return fmt.Errorf("%w: %s", ErrTabNotFound, sessionID)
	}
	if !providers.IsEnabled(c.configs, configID) {
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, configID)
	}

	if err := c.client.SwitchProvider(ctx, sessionID, configID); err != nil {
		return fmt.Errorf("failed to switch provider: %w", err)
	}

	name, _ := providers.Name(c.configs, configID)
	c.store.UpdateTab(sessionID, func(t *Tab) {
		t.ConfigID = configID
		t.ConfigName = name
	})

	c.metrics.RecordProviderSwitch()
	c.logger.Info("provider switched",
		zap.String("session_id", sessionID),
		zap.String("config_id", configID))
	return nil
}

// Restore creates a fresh session from a history entry. The entry is a
// template only: the new session gets a brand-new ID. Restoring fails fast
// when the entry's configuration is no longer enabled, without issuing any
// create call.
func (c *Controller) Restore(ctx context.Context, historyID string) (*Tab, error) {
	entry, ok := c.history.Get(historyID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHistoryNotFound, historyID)
	}
	if !providers.IsEnabled(c.configs, entry.ConfigID) {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, entry.ConfigID)
	}

	return c.CreateTerminal(ctx, CreateOptions{
		ConfigID: entry.ConfigID,
		Name:     entry.Name,
		WorkDir:  entry.WorkDir,
	})
}

// ClearAll closes every known tab. Each close is attempted independently:
// a failing close never aborts the loop, and every tab produces its own
// history entry. The store ends empty with no active tab.
func (c *Controller) ClearAll(ctx context.Context) {
	for _, tab := range c.store.Tabs() {
		// Already-terminated tabs have their history entry; just remove them.
		if tab.Running {
			if err := c.client.CloseSession(ctx, tab.SessionID); err != nil {
				c.logger.Warn("close failed during clear-all",
					zap.String("session_id", tab.SessionID), zap.Error(err))
			}
			c.history.Append(c.entryFor(tab, true))
			c.metrics.RecordSessionClosed("user")
		}
		c.store.RemoveTab(tab.SessionID)
	}

	c.metrics.SetTabsOpen(0)
	c.metrics.SetHistorySize(c.history.Len())
	c.logger.Info("workspace cleared")
}

func (c *Controller) entryFor(tab Tab, exitedNormally bool) HistoryEntry {
	return HistoryEntry{
		ID:             id.NewHistoryID().String(),
		SessionID:      tab.SessionID,
		Name:           tab.Name,
		ConfigID:       tab.ConfigID,
		ConfigName:     tab.ConfigName,
		WorkDir:        tab.WorkDir,
		CreatedAt:      tab.CreatedAt,
		ClosedAt:       time.Now(),
		ExitedNormally: exitedNormally,
	}
}
