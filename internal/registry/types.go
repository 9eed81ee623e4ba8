// Package registry is the boundary to the session registry: the external
// owner of running PTY processes. Everything local is a cache of what this
// boundary reports; the workspace reconciles against it, never the reverse.
package registry

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTransport indicates the registry backend is unreachable. Operations
	// failing with this error leave local state untouched.
	ErrTransport = errors.New("session registry unreachable")

	// ErrSessionNotFound indicates the registry does not know the session.
	// Close paths treat this as success (idempotent close).
	ErrSessionNotFound = errors.New("session not found")

	// ErrConfigUnavailable indicates the target configuration is unknown or
	// disabled on the backend.
	ErrConfigUnavailable = errors.New("configuration unknown or disabled")
)

// Session is the registry's authoritative record of a PTY session.
type Session struct {
	SessionID string    `json:"session_id"`
	ConfigID  string    `json:"config_id"`
	Name      string    `json:"name"`
	WorkDir   string    `json:"work_dir,omitempty"`
	Running   bool      `json:"running"`
	AgentMode bool      `json:"agent_mode"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentOptions configures the interactive agent command an agent session
// launches on start. Set at creation, immutable afterwards.
type AgentOptions struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// CreateRequest is the wire shape of a plain session create.
type CreateRequest struct {
	SessionID string `json:"session_id"`
	ConfigID  string `json:"config_id"`
	Name      string `json:"name,omitempty"`
	WorkDir   string `json:"work_dir,omitempty"`
}

// CreateAgentRequest is the wire shape of an agent session create.
// WorkDir is mandatory: the agent needs a project root.
type CreateAgentRequest struct {
	SessionID string       `json:"session_id"`
	ConfigID  string       `json:"config_id"`
	WorkDir   string       `json:"work_dir"`
	Options   AgentOptions `json:"options"`
	Name      string       `json:"name,omitempty"`
}

// Client is the asynchronous command surface of the session registry.
// Implementations: HTTPClient (remote backend) and Local (embedded PTYs).
type Client interface {
	// ListSessions returns every session alive on the backend. Idempotent
	// and side-effect free.
	ListSessions(ctx context.Context) ([]Session, error)

	// CreateSession starts a new plain terminal. The session ID must be
	// pre-generated by the caller; a collision is a caller bug.
	CreateSession(ctx context.Context, req CreateRequest) (*Session, error)

	// CreateAgentSession starts a terminal pre-wired to run an interactive
	// agent command in req.WorkDir.
	CreateAgentSession(ctx context.Context, req CreateAgentRequest) (*Session, error)

	// CloseSession requests termination. Safe to call on an already-dead
	// session.
	CloseSession(ctx context.Context, sessionID string) error

	// SwitchProvider reconfigures a live session's upstream routing without
	// restarting the process.
	SwitchProvider(ctx context.Context, sessionID, configID string) error
}

// TerminatedEvent is the unsolicited notification that a session ended on
// its own, delivered outside any request/response pair.
type TerminatedEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// EventTerminated is the wire value of TerminatedEvent.Type.
const EventTerminated = "session_terminated"
