package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TermDeck/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TermDeck/backend/internal/logging"
	"github.com/GriffinCanCode/TermDeck/backend/internal/workspace"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Server binds to loopback; the renderer owns the origin
	},
}

const writeTimeout = 10 * time.Second

// Handler streams workspace state to the rendering layer. Every store
// revision is pushed as a full snapshot; slow clients receive coalesced
// updates rather than a backlog.
type Handler struct {
	store   *workspace.Store
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a workspace state stream handler. metrics may be nil.
func NewHandler(store *workspace.Store, logger *logging.Logger, metrics *monitoring.Metrics) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		store:   store,
		logger:  logger.Named("ws"),
		metrics: metrics,
	}
}

type frame struct {
	Type     string              `json:"type"`
	Snapshot *workspace.Snapshot `json:"snapshot,omitempty"`
}

// HandleConnection upgrades the request and streams snapshots until the
// client disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	connID := uuid.NewString()
	logger := h.logger.With(zap.String("conn_id", connID))
	logger.Info("client connected", zap.String("remote", conn.RemoteAddr().String()))
	defer logger.Info("client disconnected")

	snapshots, cancel := h.store.Subscribe()
	defer cancel()

	// Reader goroutine: forwards pings to the writer loop and unblocks it
	// on disconnect. All writes happen on the loop below; gorilla forbids
	// concurrent writers.
	done := make(chan struct{})
	pings := make(chan struct{}, 1)
	go func() {
		defer close(done)
		for {
			var msg frame
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == "ping" {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(frame{Type: "workspace", Snapshot: &snap}); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-pings:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(frame{Type: "pong"}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
