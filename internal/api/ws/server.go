// Package wsapi serves the chat socket protocol on top of a responder.
package wsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"genai-chat-client/internal/models"
	"genai-chat-client/internal/schema"
	"genai-chat-client/internal/service/responder"
)

const defaultWriteTimeout = 10 * time.Second

type Server struct {
	responders   responder.Factory
	validator    *schema.Validator
	upgrader     websocket.Upgrader
	writeTimeout time.Duration

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewServer(responders responder.Factory) *Server {
	return &Server{
		responders: responders,
		validator:  schema.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // local development backend
			},
		},
		writeTimeout: defaultWriteTimeout,
		conns:        make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request and answers chat messages until the client
// goes away. Messages on one connection are answered one at a time.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	logger := log.With().Str("connId", connID).Str("remote", r.RemoteAddr).Logger()

	s.track(conn)
	defer s.untrack(conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	logger.Info().Int("active", s.Active()).Msg("Chat client connected")
	rsp := s.responders()

	emit := func(ev models.Event) error {
		if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
		return conn.WriteJSON(ev)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("Chat client read error")
			}
			logger.Info().Msg("Chat client disconnected")
			return
		}

		var req models.ChatRequest
		err = json.Unmarshal(data, &req)
		if err == nil {
			err = s.validator.ValidateRequest(req)
		}
		if err != nil {
			logger.Warn().Err(err).Msg("Invalid chat request")
			if werr := emit(models.NewTextEvent(models.EventErrorMessage, "Invalid request: "+err.Error())); werr != nil {
				return
			}
			continue
		}

		logger.Info().Int("length", len(req.Message)).Msg("Chat message received")
		if err := rsp.Respond(ctx, req.Message, emit); err != nil {
			logger.Error().Err(err).Msg("Responder failed")
			s.closeConn(conn, websocket.CloseGoingAway, "")
			return
		}
	}
}

// Active returns the number of open client connections.
func (s *Server) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// CloseAll sends a going-away close to every client. Hijacked connections are
// not covered by http.Server.Shutdown.
func (s *Server) CloseAll() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		s.closeConn(c, websocket.CloseGoingAway, "server shutdown")
	}
}

func (s *Server) closeConn(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}

func (s *Server) track(conn *websocket.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}
