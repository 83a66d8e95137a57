// Package client talks to the rock paper crane WebSocket server.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lox/rockpapercrane/internal/server" // Reuse message types
	"github.com/lox/rockpapercrane/internal/session"
)

// RemoteError is an error reply from the server.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// EventHandler is a function that handles incoming events
type EventHandler func(*server.Message)

// Client represents a WebSocket client for the game server
type Client struct {
	serverURL string
	conn      *websocket.Conn
	send      chan *server.Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	connected bool
	playerID  string
	closeOnce sync.Once

	pending       map[string]chan *server.Message
	eventHandlers map[server.MessageType][]EventHandler
}

// NewClient creates a new WebSocket client
func NewClient(serverURL string, logger *log.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		serverURL:     serverURL,
		send:          make(chan *server.Message, 256),
		logger:        logger.WithPrefix("client"),
		ctx:           ctx,
		cancel:        cancel,
		pending:       make(map[string]chan *server.Message),
		eventHandlers: make(map[server.MessageType][]EventHandler),
	}
}

// websocketURL normalises http(s) URLs and a missing path to the /ws
// endpoint.
func websocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server URL scheme %q", u.Scheme)
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

// Connect establishes a WebSocket connection to the server
func (c *Client) Connect(timeout time.Duration) error {
	target, err := websocketURL(c.serverURL)
	if err != nil {
		return err
	}
	c.logger.Info("Connecting to server", "url", target)

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = timeout

	conn, _, err := dialer.Dial(target, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readPump()
	go c.writePump()

	c.logger.Info("Connected to server")
	return nil
}

// Disconnect closes the WebSocket connection
func (c *Client) Disconnect() error {
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.conn != nil {
			_ = c.conn.Close() // Ignore close errors during shutdown
			c.connected = false
		}

		c.logger.Info("Disconnected from server")
	})
	return nil
}

// Done is closed once the client has been disconnected.
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SendMessage sends a message to the server
func (c *Client) SendMessage(msg *server.Message) error {
	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		return fmt.Errorf("send buffer full")
	}
}

// readPump handles incoming messages from the server
func (c *Client) readPump() {
	defer func() { _ = c.Disconnect() }()

	for {
		var msg server.Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.logger.Debug("Received message", "type", msg.Type, "requestId", msg.RequestID)
		c.handleMessage(&msg)
	}
}

const (
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// writePump owns all writes to the socket, keeping it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
			return
		}
	}
}

// handleMessage routes replies to their waiting request and everything
// else to the registered handlers. Handlers run on the read goroutine, in
// the order messages arrived.
func (c *Client) handleMessage(msg *server.Message) {
	if waiter := c.takeWaiter(msg.RequestID); waiter != nil {
		waiter <- msg
		return
	}

	c.mu.RLock()
	handlers := c.eventHandlers[msg.Type]
	c.mu.RUnlock()

	if len(handlers) == 0 {
		c.logger.Debug("No handler for message type", "type", msg.Type)
	}
	for _, handler := range handlers {
		handler(msg)
	}
}

// takeWaiter removes and returns the channel of the request with the given
// ID, or nil when nobody is waiting for it.
func (c *Client) takeWaiter(requestID string) chan *server.Message {
	if requestID == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	waiter := c.pending[requestID]
	delete(c.pending, requestID)
	return waiter
}

// AddEventHandler adds an event handler for a specific message type
func (c *Client) AddEventHandler(messageType server.MessageType, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.eventHandlers[messageType] = append(c.eventHandlers[messageType], handler)
}

// Request sends a message and waits for the reply carrying the same
// request ID. Error replies are returned as *RemoteError.
func (c *Client) Request(ctx context.Context, messageType server.MessageType, data any) (*server.Message, error) {
	msg, err := server.NewMessage(messageType, data)
	if err != nil {
		return nil, err
	}
	msg.RequestID = uuid.NewString()

	waiter := make(chan *server.Message, 1)
	c.mu.Lock()
	c.pending[msg.RequestID] = waiter
	c.mu.Unlock()

	defer c.takeWaiter(msg.RequestID)

	if err := c.SendMessage(msg); err != nil {
		return nil, err
	}

	select {
	case reply := <-waiter:
		if reply.Type == server.MessageTypeError {
			var data server.ErrorData
			if err := json.Unmarshal(reply.Data, &data); err != nil {
				return nil, fmt.Errorf("decode error reply: %w", err)
			}
			return nil, &RemoteError{Code: data.Code, Message: data.Message}
		}
		return reply, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for %s reply: %w", messageType, ctx.Err())
	case <-c.ctx.Done():
		return nil, fmt.Errorf("connection closed while waiting for %s reply", messageType)
	}
}

// Auth identifies the player towards the server.
func (c *Client) Auth(ctx context.Context, playerID, channelID string) error {
	data, err := call[server.AuthResponseData](ctx, c, server.MessageTypeAuth, server.AuthData{
		PlayerID:  playerID,
		ChannelID: channelID,
	})
	if err != nil {
		return err
	}
	if !data.Success {
		return fmt.Errorf("authentication failed: %s", data.Error)
	}

	c.mu.Lock()
	c.playerID = data.PlayerID
	c.mu.Unlock()
	return nil
}

// GetPlayerID returns the authenticated player
func (c *Client) GetPlayerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// call sends a request and decodes the reply payload into T.
func call[T any](ctx context.Context, c *Client, messageType server.MessageType, data any) (T, error) {
	var out T
	reply, err := c.Request(ctx, messageType, data)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(reply.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s reply: %w", messageType, err)
	}
	return out, nil
}

func (c *Client) sessionRequest(ctx context.Context, messageType server.MessageType, data any) (session.Snapshot, error) {
	payload, err := call[server.SessionData](ctx, c, messageType, data)
	return payload.Session, err
}

// Challenge invites opponent to a game.
func (c *Client) Challenge(ctx context.Context, opponent string) (session.Snapshot, error) {
	return c.sessionRequest(ctx, server.MessageTypeChallenge, server.ChallengeData{OpponentID: opponent})
}

// Respond accepts or declines a challenge.
func (c *Client) Respond(ctx context.Context, sessionID string, accept bool) (session.Snapshot, error) {
	return c.sessionRequest(ctx, server.MessageTypeRespond, server.RespondData{SessionID: sessionID, Accept: accept})
}

// Choose submits a hidden choice for the current round.
func (c *Client) Choose(ctx context.Context, sessionID, item string) (session.Snapshot, error) {
	return c.sessionRequest(ctx, server.MessageTypeChoose, server.ChoiceData{SessionID: sessionID, Item: item})
}

// Upgrade picks the base item to upgrade after winning a round.
func (c *Client) Upgrade(ctx context.Context, sessionID, item string) (session.Snapshot, error) {
	return c.sessionRequest(ctx, server.MessageTypeUpgrade, server.ChoiceData{SessionID: sessionID, Item: item})
}

// Rematch asks for a new game against the opponent of a finished one.
func (c *Client) Rematch(ctx context.Context, sessionID string) (session.Snapshot, error) {
	return c.sessionRequest(ctx, server.MessageTypeRematch, server.RematchData{SessionID: sessionID})
}

// List returns the player's live sessions.
func (c *Client) List(ctx context.Context) ([]session.Snapshot, error) {
	data, err := call[server.SessionListData](ctx, c, server.MessageTypeList, struct{}{})
	return data.Sessions, err
}
