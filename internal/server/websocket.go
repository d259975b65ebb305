package server

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/racer/internal/core/observability/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The page and the bridge are usually served from different ports.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := s.auth.Authenticate(r)
	if err != nil {
		s.logger.Warn("Rejected websocket client",
			log.String("remote_addr", r.RemoteAddr),
			log.Error(err))
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	// The slot is taken before the upgrade and handed back on any failure.
	if int(atomic.AddInt64(&s.clientCount, 1)) > s.config.MaxClients {
		atomic.AddInt64(&s.clientCount, -1)
		s.logger.Warn("Maximum clients reached, rejecting connection",
			log.String("remote_addr", r.RemoteAddr))
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		atomic.AddInt64(&s.clientCount, -1)
		s.logger.Warn("Websocket upgrade failed", log.Error(err))
		return
	}

	session := &ClientSession{
		ID:          uuid.NewString(),
		UserID:      userID,
		ConnectedAt: time.Now(),
		LastSeen:    time.Now().Unix(),
		Active:      1,
		conn:        conn,
		send:        make(chan []byte, max(s.config.SendBufferSize, 1)),
	}
	s.clients.Store(session.ID, session)

	s.logger.Info("Client connected",
		log.String("client_id", session.ID),
		log.String("remote_addr", conn.RemoteAddr().String()),
		log.Int64("total_clients", atomic.LoadInt64(&s.clientCount)))

	go s.writePump(session)
	s.readPump(session)
}

// readPump decodes commands until the connection fails. Invalid commands are
// logged and skipped.
func (s *Server) readPump(session *ClientSession) {
	clientLogger := s.logger.With(log.String("client_id", session.ID))
	defer func() {
		s.clients.Delete(session.ID)
		atomic.AddInt64(&s.clientCount, -1)
		session.close()
		_ = session.conn.Close()

		clientLogger.Info("Client disconnected",
			log.Int64("total_clients", atomic.LoadInt64(&s.clientCount)))
	}()

	if s.config.MaxMessageSize > 0 {
		session.conn.SetReadLimit(s.config.MaxMessageSize)
	}
	session.conn.SetPongHandler(func(string) error {
		session.touch()
		return nil
	})

	for {
		_, data, err := session.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				clientLogger.Warn("Failed to receive message", log.Error(err))
			}
			return
		}
		session.touch()

		cmd, err := DecodeCommand(data)
		if err != nil {
			clientLogger.Debug("Ignoring command", log.Error(err))
			continue
		}
		cmd.ClientID = session.ID

		select {
		case s.commands <- cmd:
		default:
			clientLogger.Warn("Command buffer full, dropping command",
				log.String("action", cmd.Action),
				log.String("key", cmd.Key))
		}
	}
}

// writePump owns all writes to the connection.
func (s *Server) writePump(session *ClientSession) {
	ticker := time.NewTicker(s.pingInterval())
	defer func() {
		ticker.Stop()
		_ = session.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-session.send:
			_ = session.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if !ok {
				_ = session.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := session.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Debug("Failed to send message",
					log.String("client_id", session.ID),
					log.Error(err))
				return
			}
		case <-ticker.C:
			_ = session.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := session.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) pingInterval() time.Duration {
	if s.config.HealthCheckInterval > 0 {
		return s.config.HealthCheckInterval / 2
	}
	return 10 * time.Second
}
