package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TermDeck/backend/internal/logging"
)

// EventStream subscribes to the remote registry's unsolicited notification
// feed over a websocket. Frames are dispatched from a single goroutine, so
// handlers never race with each other.
type EventStream struct {
	url          string
	logger       *logging.Logger
	onTerminated func(sessionID string)
}

// NewEventStream creates a subscriber for the websocket feed at url.
// onTerminated is invoked for every session_terminated frame.
func NewEventStream(url string, logger *logging.Logger, onTerminated func(sessionID string)) *EventStream {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &EventStream{
		url:          url,
		logger:       logger.Named("registry.events"),
		onTerminated: onTerminated,
	}
}

// Run connects and dispatches events until ctx is canceled, reconnecting
// with capped exponential backoff on any failure.
func (s *EventStream) Run(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		connected, err := s.readLoop(ctx)
		if err != nil {
			s.logger.Warn("event stream disconnected", zap.Error(err))
		}
		if connected {
			// A successful connection resets the backoff so a later drop
			// is not penalized for failures hours ago.
			backoff = time.Second
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// readLoop returns whether the dial succeeded, so the caller can distinguish
// a dropped connection from a backend that never answered.
func (s *EventStream) readLoop(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	s.logger.Info("event stream connected", zap.String("url", s.url))

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, err
		}
		s.dispatch(data)
	}
}

func (s *EventStream) dispatch(data []byte) {
	var event TerminatedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn("unparseable event frame", zap.Error(err))
		return
	}

	switch event.Type {
	case EventTerminated:
		if event.SessionID == "" {
			s.logger.Warn("terminated event without session_id")
			return
		}
		if s.onTerminated != nil {
			s.onTerminated(event.SessionID)
		}
	default:
		s.logger.Debug("ignoring event", zap.String("type", event.Type))
	}
}
