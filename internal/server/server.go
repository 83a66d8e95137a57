// Package server exposes the session engine over WebSocket. It stands in for
// the chat platform: JSON requests become registry operations and every
// session event is rendered and pushed to both participants.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/lox/rockpapercrane/internal/registry"
	"github.com/lox/rockpapercrane/internal/render"
	"github.com/lox/rockpapercrane/internal/session"
)

// Server represents the WebSocket server
type Server struct {
	addr        string
	upgrader    websocket.Upgrader
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	logger      *log.Logger
	mu          sync.RWMutex
	ctx         context.Context

	service   *registry.Service
	directory *BotDirectory
	formatter *render.Formatter
	history   *history
}

// NewServer creates a new WebSocket server in front of service.
func NewServer(addr string, service *registry.Service, directory *BotDirectory, logger *log.Logger) *Server {
	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Any origin may connect, the server has no browser UI
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger.WithPrefix("server"),
		service:     service,
		directory:   directory,
		formatter:   render.NewFormatter(render.PlainOptions()),
		history:     newHistory(),
		ctx:         context.Background(),
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start subscribes to session events and starts the connection hub. Run
// calls it; tests that bring their own listener call it directly.
func (s *Server) Start(ctx context.Context) error {
	err := s.service.Do(ctx, func(r *registry.Registry) error {
		r.Events().Subscribe(s)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribe to session events: %w", err)
	}
	s.ctx = ctx
	go s.run(ctx)
	return nil
}

// Run serves WebSocket clients until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Starting WebSocket server", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", s.addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.detach()
		s.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// detach stops event delivery from the registry. The loop may already be
// gone during shutdown, in which case there is nothing left to detach from.
func (s *Server) detach() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.service.Do(ctx, func(r *registry.Registry) error {
		r.Events().Unsubscribe(s)
		return nil
	})
	if err != nil {
		s.logger.Debug("Skipping event unsubscribe", "error", err)
	}
}

// Stop closes every client connection.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.connections {
		_ = conn.Close() // Ignore close errors during shutdown
	}
}

// run handles connection lifecycle
func (s *Server) run(ctx context.Context) {
	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.connections[conn] = true
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client connected", "total", total)

		case conn := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.connections[conn]; ok {
				delete(s.connections, conn)
				if conn.IsBot() {
					s.directory.Disconnect(conn.GetPlayer())
				}
				_ = conn.Close() // Ignore close errors during unregistration
			}
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client disconnected", "player", conn.GetPlayer(), "total", total)

		case <-ctx.Done():
			return
		}
	}
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s, s.logger)
	select {
	case s.register <- client:
	case <-s.ctx.Done():
		_ = client.Close()
		return
	}
	client.Start()

	go func() {
		<-client.ctx.Done()
		select {
		case s.unregister <- client:
		case <-s.ctx.Done():
		}
	}()
}

// handleHealth reports liveness and how many players are signed in.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK %d players", len(s.ConnectedPlayers())) // Ignore write errors for health check
}

// OnEvent implements session.EventSubscriber. It runs on the event loop, so
// it only queues messages and never blocks.
func (s *Server) OnEvent(event session.Event) {
	snap := event.Snapshot()
	if completed, ok := event.(session.GameCompleted); ok {
		s.history.remember(completed.Session)
	}

	msg, err := NewMessage(MessageTypeEvent, EventData{
		Kind:    event.EventType(),
		Text:    s.formatter.FormatEvent(event),
		Session: snap,
	})
	if err != nil {
		s.logger.Error("Failed to encode event", "type", event.EventType(), "error", err)
		return
	}
	s.SendToParticipants(snap, msg)
}

// SendToParticipants sends msg to every connection of both players.
func (s *Server) SendToParticipants(snap session.Snapshot, msg *Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for conn := range s.connections {
		if !snap.Has(conn.GetPlayer()) {
			continue
		}
		if err := conn.SendMessage(msg); err != nil {
			s.logger.Error("Failed to send message to client", "error", err, "player", conn.GetPlayer())
			continue
		}
		count++
	}

	s.logger.Debug("Sent message to participants", "session", snap.ID, "type", msg.Type, "recipients", count)
}

// ConnectedPlayers returns the IDs of signed-in connections.
func (s *Server) ConnectedPlayers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var players []string
	for conn := range s.connections {
		if playerID := conn.GetPlayer(); playerID != "" {
			players = append(players, playerID)
		}
	}

	return players
}

// rematch starts a new game from the last finished game with sessionID.
func (s *Server) rematch(ctx context.Context, sessionID, requester string) (session.Snapshot, error) {
	var snap session.Snapshot
	err := s.service.Do(ctx, func(r *registry.Registry) error {
		previous, ok := s.history.lookup(sessionID)
		if !ok {
			if _, err := r.Get(sessionID); err == nil {
				return session.ErrWrongPhase
			}
			return session.ErrSessionNotFound
		}

		var err error
		snap, err = r.Rematch(previous, requester)
		if err != nil {
			return err
		}
		s.history.forget(previous)
		return nil
	})
	return snap, err
}
