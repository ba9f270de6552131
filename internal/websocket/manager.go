package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"memo-server/internal/domain"

	"go.uber.org/zap"
)

type ClientMessage struct {
	Client  *Client
	Message []byte
}

// Manager fans memo change events out to every connected browser.
type Manager struct {
	clients        map[string]*Client
	clientsMutex   sync.RWMutex
	HandleMessage  chan *ClientMessage
	done           chan struct{}
	closeOnce      sync.Once
	maxConns       int
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	messageHandler MessageHandler
	logger         *zap.Logger
}

type MessageHandler interface {
	HandleWebSocketMessage(client *Client, msg *Message) error
}

func NewManager(maxConns int, writeWait, pongWait, pingPeriod time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		clients:       make(map[string]*Client),
		HandleMessage: make(chan *ClientMessage),
		done:          make(chan struct{}),
		maxConns:      maxConns,
		writeWait:     writeWait,
		pongWait:      pongWait,
		pingPeriod:    pingPeriod,
		logger:        logger,
	}
}

func (m *Manager) SetMessageHandler(handler MessageHandler) {
	m.messageHandler = handler
}

// Run processes inbound client messages until Close is called.
func (m *Manager) Run() {
	for {
		select {
		case clientMsg := <-m.HandleMessage:
			m.processMessage(clientMsg)

		case <-m.done:
			return
		}
	}
}

// Close stops Run and disconnects every client.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.closeAll()
	})
}

// Done is closed once the manager shuts down.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Register adds client to the broadcast set. It reports false, with
// client.Send closed, when the manager is shut down or full.
func (m *Manager) Register(client *Client) bool {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	select {
	case <-m.done:
		close(client.Send)
		return false
	default:
	}

	if m.maxConns > 0 && len(m.clients) >= m.maxConns {
		m.logger.Warn("max websocket connections reached", zap.Int("max", m.maxConns))
		close(client.Send)
		return false
	}

	m.clients[client.ID] = client
	m.logger.Debug("websocket client registered", zap.String("client_id", client.ID))
	return true
}

func (m *Manager) Unregister(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		close(client.Send)
		m.logger.Debug("websocket client unregistered", zap.String("client_id", client.ID))
	}
}

func (m *Manager) closeAll() {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	for id, client := range m.clients {
		delete(m.clients, id)
		close(client.Send)
	}
}

func (m *Manager) processMessage(clientMsg *ClientMessage) {
	var msg Message
	if err := json.Unmarshal(clientMsg.Message, &msg); err != nil {
		m.logger.Debug("error unmarshaling websocket message", zap.Error(err))
		return
	}

	if m.messageHandler != nil {
		if err := m.messageHandler.HandleWebSocketMessage(clientMsg.Client, &msg); err != nil {
			m.logger.Warn("error handling websocket message", zap.Error(err))
		}
	}
}

// Broadcast queues message for every client. Clients whose send buffer is
// full are dropped.
func (m *Manager) Broadcast(message *Message) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	var slow []*Client

	m.clientsMutex.RLock()
	for _, client := range m.clients {
		select {
		case client.Send <- messageBytes:
		default:
			slow = append(slow, client)
		}
	}
	m.clientsMutex.RUnlock()

	for _, client := range slow {
		m.logger.Info("websocket send buffer full, closing connection", zap.String("client_id", client.ID))
		m.Unregister(client)
	}

	return nil
}

func (m *Manager) BroadcastMemoEvent(msgType MessageType, memo *domain.Memo) error {
	msg, err := NewMemoEventMessage(msgType, memo)
	if err != nil {
		return err
	}
	return m.Broadcast(msg)
}

func (m *Manager) SendToClient(clientID string, message *Message) error {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	client, exists := m.clients[clientID]
	if !exists {
		return nil
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case client.Send <- messageBytes:
	default:
		m.logger.Info("websocket send buffer full", zap.String("client_id", clientID))
	}

	return nil
}

func (m *Manager) ConnectionCount() int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	return len(m.clients)
}
