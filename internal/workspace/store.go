package workspace

import (
	"sync"
)

// Store holds the observable workspace state: the ordered tab list, the
// active-tab pointer, group assignments, and panel visibility. Every public
// mutation is atomic: tabs, group map, and active pointer change under one
// lock, so readers never observe a dangling active ID or a tab without a
// group entry.
//
// The Store never talks to the registry. It is a cache owned by the
// workspace view; the Controller keeps it honest.
type Store struct {
	mu sync.RWMutex

	tabs        []Tab
	active      string // empty means no active tab
	tabGroups   map[string]string
	groups      []string
	activeGroup string
	defaultID   string
	panels      PanelState
	initialized bool

	revision    uint64
	subscribers map[uint64]chan Snapshot
	nextSubID   uint64
}

// NewStore creates an empty store with the given default group ID. The
// default group always exists and cannot be removed.
func NewStore(defaultGroupID string) *Store {
	if defaultGroupID == "" {
		defaultGroupID = "default"
	}
	return &Store{
		tabGroups:   make(map[string]string),
		groups:      []string{defaultGroupID},
		activeGroup: defaultGroupID,
		defaultID:   defaultGroupID,
		subscribers: make(map[uint64]chan Snapshot),
	}
}

// DefaultGroupID returns the ID of the always-present default group.
func (s *Store) DefaultGroupID() string {
	return s.defaultID
}

// SetTabs replaces the tab list wholesale. Used by reconciliation.
// Group memberships survive for tabs that are still present; new tabs land
// in the default group. An active pointer to a vanished tab is cleared.
func (s *Store) SetTabs(tabs []Tab) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make(map[string]string, len(tabs))
	activeSurvives := false
	for _, t := range tabs {
		if g, ok := s.tabGroups[t.SessionID]; ok {
			groups[t.SessionID] = g
		} else {
			groups[t.SessionID] = s.defaultID
		}
		if t.SessionID == s.active {
			activeSurvives = true
		}
	}

	s.tabs = append([]Tab(nil), tabs...)
	s.tabGroups = groups
	if !activeSurvives {
		s.active = ""
	}
	s.initialized = true

	s.notifyLocked()
}

// AddTab appends a tab and records its group membership. An empty groupID
// pins the tab to the currently active group. Membership is fixed here;
// later group switches do not move existing tabs.
func (s *Store) AddTab(tab Tab, groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if groupID == "" {
		groupID = s.activeGroup
	}
	if !s.groupExistsLocked(groupID) {
		groupID = s.defaultID
	}

	s.tabs = append(s.tabs, tab)
	s.tabGroups[tab.SessionID] = groupID

	s.notifyLocked()
}

// RemoveTab removes a tab and its group membership in one step. If the tab
// was active, the most recently added remaining tab becomes active, or no
// tab if none remain.
func (s *Store) RemoveTab(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(sessionID)
	if idx < 0 {
		return false
	}

	s.tabs = append(s.tabs[:idx], s.tabs[idx+1:]...)
	delete(s.tabGroups, sessionID)

	if s.active == sessionID {
		if n := len(s.tabs); n > 0 {
			s.active = s.tabs[n-1].SessionID
		} else {
			s.active = ""
		}
	}

	s.notifyLocked()
	return true
}

// UpdateTab applies mutate to the tab with the given session ID. Missing
// tabs are a no-op: a stale update racing a removal must not fail. The
// session ID itself is immutable; mutate cannot change it.
func (s *Store) UpdateTab(sessionID string, mutate func(*Tab)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(sessionID)
	if idx < 0 {
		return false
	}

	tab := s.tabs[idx]
	mutate(&tab)
	tab.SessionID = sessionID
	s.tabs[idx] = tab

	s.notifyLocked()
	return true
}

// SetActive points the active-tab marker at an existing tab, or clears it
// when sessionID is empty. Pointing at an unknown tab is refused.
func (s *Store) SetActive(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != "" && s.indexLocked(sessionID) < 0 {
		return false
	}

	s.active = sessionID
	s.notifyLocked()
	return true
}

// ActiveSessionID returns the active tab's session ID, or empty.
func (s *Store) ActiveSessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Get returns a copy of the tab with the given session ID.
func (s *Store) Get(sessionID string) (Tab, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(sessionID)
	if idx < 0 {
		return Tab{}, false
	}
	return s.tabs[idx], true
}

// Tabs returns a copy of the full ordered tab list.
func (s *Store) Tabs() []Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Tab(nil), s.tabs...)
}

// AddGroup registers a group ID. Adding an existing group is a no-op.
func (s *Store) AddGroup(groupID string) {
	if groupID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.groupExistsLocked(groupID) {
		return
	}
	s.groups = append(s.groups, groupID)
	s.notifyLocked()
}

// RemoveGroup deletes a group; its members fall back to the default group.
// The default group cannot be removed.
func (s *Store) RemoveGroup(groupID string) bool {
	if groupID == s.defaultID {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i, g := range s.groups {
		if g == groupID {
			s.groups = append(s.groups[:i], s.groups[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return false
	}

	for sessionID, g := range s.tabGroups {
		if g == groupID {
			s.tabGroups[sessionID] = s.defaultID
		}
	}
	if s.activeGroup == groupID {
		s.activeGroup = s.defaultID
	}

	s.notifyLocked()
	return true
}

// AssignGroup moves an existing tab to another group.
func (s *Store) AssignGroup(sessionID, groupID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(sessionID) < 0 || !s.groupExistsLocked(groupID) {
		return false
	}

	s.tabGroups[sessionID] = groupID
	s.notifyLocked()
	return true
}

// SetActiveGroup switches the displayed group. Purely local: no registry
// call, reflected in the tab bar immediately.
func (s *Store) SetActiveGroup(groupID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.groupExistsLocked(groupID) {
		return false
	}

	s.activeGroup = groupID
	s.notifyLocked()
	return true
}

// ActiveGroupID returns the currently displayed group.
func (s *Store) ActiveGroupID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeGroup
}

// CurrentGroupTabs returns the tabs belonging to the active group, in tab
// order. A tab with no explicit membership counts as default-group.
func (s *Store) CurrentGroupTabs() []Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tabs []Tab
	for _, t := range s.tabs {
		group, ok := s.tabGroups[t.SessionID]
		if !ok {
			group = s.defaultID
		}
		if group == s.activeGroup {
			tabs = append(tabs, t)
		}
	}
	return tabs
}

// SetSidebarOpen toggles the sidebar panel flag.
func (s *Store) SetSidebarOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panels.SidebarOpen = open
	s.notifyLocked()
}

// SetDrawerOpen toggles the drawer panel flag.
func (s *Store) SetDrawerOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panels.DrawerOpen = open
	s.notifyLocked()
}

// Initialized reports whether the store has completed its first
// reconciliation.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Snapshot returns an immutable copy of the full state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers an observer. The returned channel carries coalesced
// snapshots: a slow reader sees the latest revision, never a torn state.
// The cancel function must be called to release the subscription.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subID := s.nextSubID
	s.nextSubID++

	ch := make(chan Snapshot, 1)
	s.subscribers[subID] = ch
	ch <- s.snapshotLocked()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, subID)
	}
	return ch, cancel
}

func (s *Store) indexLocked(sessionID string) int {
	for i, t := range s.tabs {
		if t.SessionID == sessionID {
			return i
		}
	}
	return -1
}

func (s *Store) groupExistsLocked(groupID string) bool {
	for _, g := range s.groups {
		if g == groupID {
			return true
		}
	}
	return false
}

func (s *Store) snapshotLocked() Snapshot {
	groups := make(map[string]string, len(s.tabGroups))
	for k, v := range s.tabGroups {
		groups[k] = v
	}
	return Snapshot{
		Revision:        s.revision,
		Tabs:            append([]Tab(nil), s.tabs...),
		ActiveSessionID: s.active,
		TabGroups:       groups,
		Groups:          append([]string(nil), s.groups...),
		ActiveGroupID:   s.activeGroup,
		Panels:          s.panels,
		Initialized:     s.initialized,
	}
}

// notifyLocked bumps the revision and pushes the new snapshot to every
// subscriber, replacing any undelivered older snapshot.
func (s *Store) notifyLocked() {
	s.revision++
	snap := s.snapshotLocked()

	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
