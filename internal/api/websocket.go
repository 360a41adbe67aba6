package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/image-inspector/backend/internal/logger"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypePong      = "pong"
	MsgTypeError     = "error"
	// Scan events use session.EventBatch and session.EventFinished.
)

const wsWriteTimeout = 10 * time.Second

// WSMessage is the envelope for every websocket message.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSErrorResponse is the payload of an error message.
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// LiveHandlerImpl forwards session events to websocket clients.
type LiveHandlerImpl struct {
	sessionMgr SessionManager
	upgrader   websocket.Upgrader
	log        *zap.Logger
}

// NewLiveHandler creates a websocket handler for scan events
func NewLiveHandler(sessionMgr SessionManager, log *zap.Logger) LiveHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LiveHandlerImpl{
		sessionMgr: sessionMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		log: log,
	}
}

// HandleScanSocket upgrades to a websocket and pushes the session's batch
// and finished events until the client leaves or the session is removed.
func (h *LiveHandlerImpl) HandleScanSocket(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	events, cancel, err := h.sessionMgr.Subscribe(id)
	if err != nil {
		return scanError(err, id)
	}
	defer cancel()

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}
	defer ws.Close()

	log := h.log.With(zap.String("session", logger.ShortID(id)))
	log.Debug("websocket client connected")

	text, _ := h.sessionMgr.StatusText(id)
	h.send(ws, WSMessage{
		Type:    MsgTypeConnected,
		ID:      id,
		Payload: mustJSON(scanStatus{ScanSession: sess, StatusText: text, Progress: sess.Progress()}),
	})

	// The reader only reports pings and disconnects; all writes happen below.
	pings := make(chan struct{}, 1)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg WSMessage
			if err := ws.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug("websocket read failed", zap.Error(err))
				}
				return
			}
			if msg.Type == MsgTypePing {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				h.send(ws, errorMessage(id, "session closed", "SESSION_CLOSED"))
				return nil
			}
			if err := h.send(ws, WSMessage{Type: ev.Type, ID: id, Payload: mustJSON(ev)}); err != nil {
				return nil
			}
		case <-pings:
			h.send(ws, WSMessage{Type: MsgTypePong, ID: id})
		case <-closed:
			log.Debug("websocket client disconnected")
			return nil
		}
	}
}

func (h *LiveHandlerImpl) send(ws *websocket.Conn, msg WSMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := ws.WriteJSON(msg); err != nil {
		h.log.Debug("websocket write failed", zap.String("type", msg.Type), zap.Error(err))
		return err
	}
	return nil
}

func errorMessage(id, message, code string) WSMessage {
	return WSMessage{
		Type:    MsgTypeError,
		ID:      id,
		Payload: mustJSON(WSErrorResponse{Message: message, Code: code}),
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
