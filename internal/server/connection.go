package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/rockpapercrane/internal/loop"
	"github.com/lox/rockpapercrane/internal/session"
	"github.com/lox/rockpapercrane/internal/sessionid"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn      *websocket.Conn
	server    *Server
	send      chan *Message
	playerID  string
	channelID string
	bot       bool
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, server *Server, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:   conn,
		server: server,
		send:   make(chan *Message, 256),
		logger: logger.WithPrefix("conn"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client without blocking.
func (c *Connection) SendMessage(msg *Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn("Connection send buffer full, closing connection", "player", c.GetPlayer())
		_ = c.Close() // Ignore close errors
		return ErrConnectionClosed
	}
}

// authenticate associates this connection with a player
func (c *Connection) authenticate(playerID, channelID string, bot bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = playerID
	c.channelID = channelID
	c.bot = bot
}

// GetPlayer returns the associated player ID
func (c *Connection) GetPlayer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// GetChannel returns the channel the player joined from
func (c *Connection) GetChannel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channelID
}

// IsBot reports whether the connection authenticated as a bot
func (c *Connection) IsBot() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bot
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var (
	ErrConnectionClosed = errors.New("connection closed")
)

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }() // Ignore close errors during cleanup

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return
		}
	}
}

// handleMessage dispatches one request from the client.
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "player", c.GetPlayer(), "requestId", msg.RequestID)
	svc := c.server.service

	switch msg.Type {
	case MessageTypeAuth:
		if data, ok := decodePayload[AuthData](c, msg); ok {
			c.handleAuth(msg.RequestID, data)
		}

	case MessageTypeList:
		c.handleList(msg.RequestID)

	case MessageTypeChallenge:
		data, ok := decodePayload[ChallengeData](c, msg)
		if !ok {
			return
		}
		c.runSessionCommand(msg, "", func(player string) (session.Snapshot, error) {
			c.logger.Info("Challenge request", "player", player, "opponent", data.OpponentID)
			return svc.CreateChallenge(c.ctx, player, data.OpponentID, c.GetChannel())
		})

	case MessageTypeRespond:
		data, ok := decodePayload[RespondData](c, msg)
		if !ok {
			return
		}
		c.runSessionCommand(msg, data.SessionID, func(player string) (session.Snapshot, error) {
			c.logger.Info("Respond request", "player", player, "session", data.SessionID, "accept", data.Accept)
			return svc.Respond(c.ctx, data.SessionID, player, data.Accept)
		})

	case MessageTypeChoose, MessageTypeUpgrade:
		data, ok := decodePayload[ChoiceData](c, msg)
		if !ok {
			return
		}
		submit := svc.SubmitChoice
		if msg.Type == MessageTypeUpgrade {
			submit = svc.SubmitUpgrade
		}
		c.runSessionCommand(msg, data.SessionID, func(player string) (session.Snapshot, error) {
			// The item stays out of the log until the round resolves
			c.logger.Info("Choice request", "player", player, "session", data.SessionID, "kind", msg.Type)
			return submit(c.ctx, data.SessionID, player, data.Item)
		})

	case MessageTypeRematch:
		data, ok := decodePayload[RematchData](c, msg)
		if !ok {
			return
		}
		c.runSessionCommand(msg, data.SessionID, func(player string) (session.Snapshot, error) {
			c.logger.Info("Rematch request", "player", player, "previous", data.SessionID)
			return c.server.rematch(c.ctx, data.SessionID, player)
		})

	default:
		c.sendError(msg.RequestID, CodeUnknownMessageType, "Unknown message type: "+msg.Type.String())
	}
}

// decodePayload unmarshals the payload of msg, answering with
// invalid_message when it does not fit T.
func decodePayload[T any](c *Connection, msg *Message) (T, bool) {
	var data T
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.sendError(msg.RequestID, CodeInvalidMessage, "Failed to parse "+msg.Type.String()+" data")
		return data, false
	}
	return data, true
}

// runSessionCommand runs fn for the authenticated player and replies with
// the resulting snapshot or the error that stopped it. Commands on an
// existing game carry sessionID; a malformed one is answered with
// session_not_found without reaching the registry.
func (c *Connection) runSessionCommand(msg *Message, sessionID string, fn func(player string) (session.Snapshot, error)) {
	player, ok := c.requirePlayer(msg.RequestID)
	if !ok {
		return
	}
	if msg.Type != MessageTypeChallenge {
		if err := sessionid.Validate(sessionID); err != nil {
			c.logger.Debug("Rejecting malformed session ID", "player", player, "session", sessionID, "error", err)
			c.sendEngineError(msg.RequestID, session.ErrSessionNotFound)
			return
		}
	}
	snap, err := fn(player)
	if err != nil {
		c.sendEngineError(msg.RequestID, err)
		return
	}
	c.sendSession(msg.RequestID, snap)
}

// sendError sends an error message to the client
func (c *Connection) sendError(requestID, code, message string) {
	errorMsg, err := Reply(requestID, MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}

	_ = c.SendMessage(errorMsg) // Ignore send errors during error handling
}

// sendEngineError reports an engine error to the player who caused it.
func (c *Connection) sendEngineError(requestID string, err error) {
	var engineErr *session.Error
	switch {
	case errors.As(err, &engineErr):
		c.sendError(requestID, string(engineErr.Code), engineErr.Message)
	case errors.Is(err, loop.ErrClosed), errors.Is(err, context.Canceled):
		c.sendError(requestID, CodeUnavailable, "The game server is shutting down")
	default:
		c.logger.Error("Unexpected engine failure", "player", c.GetPlayer(), "error", err)
		c.sendError(requestID, string(session.CodeInternal), "Something went wrong, please try again")
	}
}

func (c *Connection) sendSession(requestID string, snap session.Snapshot) {
	response, err := Reply(requestID, MessageTypeSession, SessionData{
		Session: snap,
		Text:    c.server.formatter.FormatSnapshot(snap),
	})
	if err != nil {
		c.logger.Error("Failed to create session message", "error", err)
		return
	}
	_ = c.SendMessage(response) // Ignore send errors
}

// requirePlayer returns the authenticated player or reports an error.
func (c *Connection) requirePlayer(requestID string) (string, bool) {
	playerID := c.GetPlayer()
	if playerID == "" {
		c.sendError(requestID, CodeNotAuthenticated, "Must authenticate first")
		return "", false
	}
	return playerID, true
}

func (c *Connection) handleAuth(requestID string, data AuthData) {
	c.logger.Info("Auth request", "player", data.PlayerID, "channel", data.ChannelID, "bot", data.Bot)

	if data.PlayerID == "" {
		c.sendError(requestID, CodeInvalidAuth, "Player ID required")
		return
	}
	if current := c.GetPlayer(); current != "" {
		c.sendError(requestID, CodeInvalidAuth, "Already authenticated as "+current)
		return
	}

	c.authenticate(data.PlayerID, data.ChannelID, data.Bot)
	if data.Bot {
		c.server.directory.Connect(data.PlayerID)
	}

	response, _ := Reply(requestID, MessageTypeAuthResponse, AuthResponseData{
		Success:  true,
		PlayerID: data.PlayerID,
	})
	_ = c.SendMessage(response) // Ignore send errors
}

func (c *Connection) handleList(requestID string) {
	playerID, ok := c.requirePlayer(requestID)
	if !ok {
		return
	}

	sessions, err := c.server.service.ActiveFor(c.ctx, playerID)
	if err != nil {
		c.sendEngineError(requestID, err)
		return
	}
	if sessions == nil {
		sessions = []session.Snapshot{}
	}

	response, _ := Reply(requestID, MessageTypeSessionList, SessionListData{Sessions: sessions})
	_ = c.SendMessage(response) // Ignore send errors
}
