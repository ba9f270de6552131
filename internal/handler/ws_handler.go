package handler

import (
	"net/http"

	"memo-server/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	manager  *websocket.Manager
	upgrader ws.Upgrader
	logger   *zap.Logger
}

func NewWebSocketHandler(manager *websocket.Manager, readBufferSize, writeBufferSize int, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		upgrader: ws.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
		},
		logger: logger,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Info("failed to upgrade websocket connection", zap.Error(err))
		return
	}

	client := websocket.NewClient(uuid.New().String(), conn, h.manager)
	if !h.manager.Register(client) {
		conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseTryAgainLater, "too many connections"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// WebSocketMessageHandler answers messages sent by connected pages.
type WebSocketMessageHandler struct {
	manager *websocket.Manager
	logger  *zap.Logger
}

func NewWebSocketMessageHandler(manager *websocket.Manager, logger *zap.Logger) *WebSocketMessageHandler {
	return &WebSocketMessageHandler{
		manager: manager,
		logger:  logger,
	}
}

func (h *WebSocketMessageHandler) HandleWebSocketMessage(client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypePing:
		pong, err := websocket.NewMessage(websocket.TypePong, nil)
		if err != nil {
			return err
		}
		return h.manager.SendToClient(client.ID, pong)

	default:
		h.logger.Debug("unknown websocket message type", zap.String("type", string(msg.Type)))
	}

	return nil
}
