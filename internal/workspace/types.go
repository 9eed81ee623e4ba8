package workspace

import (
	"time"

	"github.com/GriffinCanCode/TermDeck/backend/internal/registry"
)

// Tab is the local projection of a registry session plus UI-only fields.
type Tab struct {
	SessionID  string    `json:"session_id"`
	ConfigID   string    `json:"config_id"`
	ConfigName string    `json:"config_name,omitempty"`
	Name       string    `json:"name"`
	WorkDir    string    `json:"work_dir,omitempty"`
	Running    bool      `json:"running"`
	AgentMode  bool      `json:"agent_mode"`
	CreatedAt  time.Time `json:"created_at"`
}

// tabFromSession projects a registry session into a Tab. ConfigName is
// resolved by the caller; a deleted configuration leaves it empty rather
// than failing.
func tabFromSession(s registry.Session, configName string) Tab {
	return Tab{
		SessionID:  s.SessionID,
		ConfigID:   s.ConfigID,
		ConfigName: configName,
		Name:       s.Name,
		WorkDir:    s.WorkDir,
		Running:    s.Running,
		AgentMode:  s.AgentMode,
		CreatedAt:  s.CreatedAt,
	}
}

// HistoryEntry records a closed session with enough metadata to recreate an
// equivalent one. Entries are templates, never session identities: restoring
// always produces a brand-new session ID.
type HistoryEntry struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	Name           string    `json:"name"`
	ConfigID       string    `json:"config_id"`
	ConfigName     string    `json:"config_name,omitempty"`
	WorkDir        string    `json:"work_dir,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	ClosedAt       time.Time `json:"closed_at"`
	ExitedNormally bool      `json:"exited_normally"`
}

// PanelState holds the UI panel visibility flags.
type PanelState struct {
	SidebarOpen bool `json:"sidebar_open"`
	DrawerOpen  bool `json:"drawer_open"`
}

// Snapshot is an immutable copy of the store state handed to observers.
// Revision increases by one per mutation, so observers can detect skipped
// (coalesced) updates.
type Snapshot struct {
	Revision        uint64            `json:"revision"`
	Tabs            []Tab             `json:"tabs"`
	ActiveSessionID string            `json:"active_session_id,omitempty"`
	TabGroups       map[string]string `json:"tab_groups"`
	Groups          []string          `json:"groups"`
	ActiveGroupID   string            `json:"active_group_id"`
	Panels          PanelState        `json:"panels"`
	Initialized     bool              `json:"initialized"`
}
