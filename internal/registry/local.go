package registry

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TermDeck/backend/internal/logging"
	"github.com/GriffinCanCode/TermDeck/backend/internal/providers"
)

const defaultAgentCommand = "claude"

// Local is an embedded, in-process session registry that spawns real PTYs.
// It is used when no remote backend address is configured (dev mode) and as
// the backend double in integration tests. It implements the same boundary
// as the remote registry, including idempotent close.
type Local struct {
	sessions     sync.Map // map[string]*localSession
	configs      providers.Source
	logger       *logging.Logger
	termMu       sync.RWMutex
	onTerminated func(sessionID string)
}

type localSession struct {
	meta Session

	cmd  *exec.Cmd
	ptmx *os.File

	outputBuf *Buffer

	mu     sync.RWMutex
	closed bool
	// killed marks a close that was requested through the boundary, as
	// opposed to the process exiting on its own.
	killed bool
}

// NewLocal creates an embedded registry. The provider source validates
// config IDs on create and switch, matching remote backend behavior.
func NewLocal(configs providers.Source, logger *logging.Logger) *Local {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Local{
		configs: configs,
		logger:  logger.Named("registry.local"),
	}
}

// OnTerminated registers the callback invoked when a session's process
// exits on its own. Mirrors the remote registry's unsolicited event stream.
func (l *Local) OnTerminated(fn func(sessionID string)) {
	l.termMu.Lock()
	l.onTerminated = fn
	l.termMu.Unlock()
}

// ListSessions returns every live session.
func (l *Local) ListSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	l.sessions.Range(func(_, value interface{}) bool {
		s := value.(*localSession)
		s.mu.RLock()
		meta := s.meta
		meta.Running = !s.closed
		s.mu.RUnlock()
		sessions = append(sessions, meta)
		return true
	})
	return sessions, nil
}

// CreateSession spawns a shell in a new PTY.
func (l *Local) CreateSession(ctx context.Context, req CreateRequest) (*Session, error) {
	if err := l.validateConfig(req.ConfigID); err != nil {
		return nil, err
	}
	if _, exists := l.sessions.Load(req.SessionID); exists {
		return nil, fmt.Errorf("session ID already in use: %s", req.SessionID)
	}

	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	name := req.Name
	if name == "" {
		name = fmt.Sprintf("Terminal %s", shortID(req.SessionID))
	}

	cmd := exec.Command(shell)
	return l.spawn(req.SessionID, req.ConfigID, name, req.WorkDir, false, cmd, nil)
}

// CreateAgentSession spawns the agent command in a new PTY. WorkDir is
// mandatory: the agent needs a project root.
func (l *Local) CreateAgentSession(ctx context.Context, req CreateAgentRequest) (*Session, error) {
	if req.WorkDir == "" {
		return nil, fmt.Errorf("%w: agent session requires work_dir", ErrConfigUnavailable)
	}
	if err := l.validateConfig(req.ConfigID); err != nil {
		return nil, err
	}
	if _, exists := l.sessions.Load(req.SessionID); exists {
		return nil, fmt.Errorf("session ID already in use: %s", req.SessionID)
	}

	command := req.Options.Command
	if command == "" {
		command = defaultAgentCommand
	}

	name := req.Name
	if name == "" {
		name = fmt.Sprintf("Agent %s", shortID(req.SessionID))
	}

	cmd := exec.Command(command, req.Options.Args...)
	return l.spawn(req.SessionID, req.ConfigID, name, req.WorkDir, true, cmd, req.Options.Env)
}

func (l *Local) spawn(sessionID, configID, name, workDir string, agentMode bool, cmd *exec.Cmd, extraEnv map[string]string) (*Session, error) {
	if workDir != "" {
		cmd.Dir = workDir
	}

	cmd.Env = append(os.Environ(), "TERM=xterm-256color", "TERMDECK_CONFIG_ID="+configID)
	for key, value := range extraEnv {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 24, Cols: 80})
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	session := &localSession{
		meta: Session{
			SessionID: sessionID,
			ConfigID:  configID,
			Name:      name,
			WorkDir:   workDir,
			Running:   true,
			AgentMode: agentMode,
			CreatedAt: time.Now(),
		},
		cmd:       cmd,
		ptmx:      ptmx,
		outputBuf: NewBuffer(1024 * 1024),
	}

	l.sessions.Store(sessionID, session)

	go l.readOutput(session)
	go l.monitorProcess(session)

	l.logger.Info("session started",
		zap.String("session_id", sessionID),
		zap.String("config_id", configID),
		zap.Bool("agent_mode", agentMode))

	meta := session.meta
	return &meta, nil
}

// readOutput continuously drains the PTY into the session's ring buffer.
func (l *Local) readOutput(session *localSession) {
	buf := make([]byte, 4096)
	for {
		n, err := session.ptmx.Read(buf)
		if n > 0 {
			session.outputBuf.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// monitorProcess waits for the process to exit and fires the terminated
// callback unless the exit was requested through CloseSession.
func (l *Local) monitorProcess(session *localSession) {
	session.cmd.Wait()

	session.mu.Lock()
	alreadyClosed := session.closed
	killed := session.killed
	session.closed = true
	session.meta.Running = false
	sessionID := session.meta.SessionID
	session.mu.Unlock()

	session.ptmx.Close()

	if alreadyClosed || killed {
		return
	}

	l.logger.Info("session exited on its own", zap.String("session_id", sessionID))

	l.termMu.RLock()
	fn := l.onTerminated
	l.termMu.RUnlock()
	if fn != nil {
		fn(sessionID)
	}
}

// CloseSession terminates a session. Closing an unknown or already-dead
// session is a no-op success.
func (l *Local) CloseSession(ctx context.Context, sessionID string) error {
	value, ok := l.sessions.Load(sessionID)
	if !ok {
		return nil
	}

	session := value.(*localSession)

	session.mu.Lock()
	if session.closed {
		session.mu.Unlock()
		l.sessions.Delete(sessionID)
		return nil
	}
	session.closed = true
	session.killed = true
	session.meta.Running = false
	session.mu.Unlock()

	if session.cmd.Process != nil {
		session.cmd.Process.Kill()
	}
	session.ptmx.Close()

	l.sessions.Delete(sessionID)

	l.logger.Info("session closed", zap.String("session_id", sessionID))
	return nil
}

// SwitchProvider re-routes a live session by updating its config binding.
// The process keeps running; the proxy picks up the new route on the next
// request through it.
func (l *Local) SwitchProvider(ctx context.Context, sessionID, configID string) error {
	if err := l.validateConfig(configID); err != nil {
		return err
	}

	value, ok := l.sessions.Load(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	session := value.(*localSession)

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.closed {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	session.meta.ConfigID = configID
	return nil
}

// Write sends input to a session's PTY.
func (l *Local) Write(sessionID string, input []byte) error {
	session, err := l.liveSession(sessionID)
	if err != nil {
		return err
	}
	_, err = session.ptmx.Write(input)
	return err
}

// Read drains buffered output from a session.
func (l *Local) Read(sessionID string) ([]byte, error) {
	value, ok := l.sessions.Load(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return value.(*localSession).outputBuf.ReadAll(), nil
}

// Resize changes a session's terminal dimensions.
func (l *Local) Resize(sessionID string, cols, rows int) error {
	session, err := l.liveSession(sessionID)
	if err != nil {
		return err
	}
	return pty.Setsize(session.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

func (l *Local) liveSession(sessionID string) (*localSession, error) {
	value, ok := l.sessions.Load(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	session := value.(*localSession)
	session.mu.RLock()
	closed := session.closed
	session.mu.RUnlock()

	if closed {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return session, nil
}

func (l *Local) validateConfig(configID string) error {
	if configID == "" {
		return fmt.Errorf("%w: empty config ID", ErrConfigUnavailable)
	}
	if l.configs == nil {
		return nil
	}
	if !providers.IsEnabled(l.configs, configID) {
		return fmt.Errorf("%w: %s", ErrConfigUnavailable, configID)
	}
	return nil
}

func shortID(sessionID string) string {
	if len(sessionID) <= 8 {
		return sessionID
	}
	return sessionID[len(sessionID)-8:]
}
