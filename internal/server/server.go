package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/racer/internal/core/events/bus"
	"github.com/zeusync/racer/internal/core/observability/log"
)

// Server bridges a race session to browser clients over websocket. It never
// touches the session: inbound commands go out through Commands and outbound
// notifications come in through Broadcast.
type Server struct {
	// Client management
	clients     sync.Map // map[string]*ClientSession
	clientCount int64    // atomic

	commands chan Command

	// Server state
	running int32 // atomic bool
	closed  int32 // atomic bool

	// Configuration and logging
	config  Config
	logger  log.Log
	auth    Authenticator
	metrics http.Handler
	status  func() any

	httpServer *http.Server
	listener   net.Listener

	// Background workers
	workerGroup sync.WaitGroup
	stopChan    chan struct{}
}

// Config holds server configuration
type Config struct {
	ListenAddr string `yaml:"listenAddr"`
	MaxClients int    `yaml:"maxClients"`

	// Message settings
	MaxMessageSize    int64         `yaml:"maxMessageSize"`
	SendBufferSize    int           `yaml:"sendBufferSize"`
	CommandBufferSize int           `yaml:"commandBufferSize"`
	WriteTimeout      time.Duration `yaml:"writeTimeout"`

	// Health monitoring
	HealthCheckInterval time.Duration `yaml:"healthCheckInterval"`
	ClientTimeout       time.Duration `yaml:"clientTimeout"`
	ShutdownTimeout     time.Duration `yaml:"shutdownTimeout"`

	// Token, when set, is required from every websocket client.
	Token string `yaml:"token"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		ListenAddr:          "127.0.0.1:8080",
		MaxClients:          64,
		MaxMessageSize:      4 * 1024,
		SendBufferSize:      256,
		CommandBufferSize:   128,
		WriteTimeout:        5 * time.Second,
		HealthCheckInterval: 15 * time.Second,
		ClientTimeout:       time.Minute,
		ShutdownTimeout:     5 * time.Second,
	}
}

func (c Config) Validate() error {
	switch {
	case c.ListenAddr == "":
		return fmt.Errorf("%w: listen address is empty", ErrInvalidConfig)
	case c.MaxClients <= 0:
		return fmt.Errorf("%w: maxClients must be positive", ErrInvalidConfig)
	case c.WriteTimeout <= 0:
		return fmt.Errorf("%w: writeTimeout must be positive", ErrInvalidConfig)
	case c.SendBufferSize <= 0 || c.CommandBufferSize <= 0:
		return fmt.Errorf("%w: buffer sizes must be positive", ErrInvalidConfig)
	case c.HealthCheckInterval <= 0 || c.ClientTimeout <= 0:
		return fmt.Errorf("%w: health check interval and client timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// ClientSession represents a connected websocket client
type ClientSession struct {
	ID          string
	UserID      string
	ConnectedAt time.Time
	LastSeen    int64 // atomic unix timestamp
	Active      int32 // atomic bool

	conn   *websocket.Conn
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// enqueue never blocks; it reports false when the buffer is full or the
// session is gone.
func (c *ClientSession) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *ClientSession) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	atomic.StoreInt32(&c.Active, 0)
	close(c.send)
}

func (c *ClientSession) touch() {
	atomic.StoreInt64(&c.LastSeen, time.Now().Unix())
}

// Frame is one server to client message.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	TS   int64  `json:"ts"`
}

type Option func(*Server)

func WithAuthenticator(a Authenticator) Option {
	return func(s *Server) { s.auth = a }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithStatus adds fn's result to /healthz. fn is called from HTTP goroutines.
func WithStatus(fn func() any) Option {
	return func(s *Server) { s.status = fn }
}

// SetStatus replaces the /healthz status source. Call it before Start.
func (s *Server) SetStatus(fn func() any) { s.status = fn }

// NewServer creates a new websocket bridge
func NewServer(config Config, logger log.Log, opts ...Option) *Server {
	if logger == nil {
		logger = log.Nop()
	}
	server := &Server{
		config:   config,
		logger:   logger.With(log.String("component", "server")),
		commands: make(chan Command, max(config.CommandBufferSize, 1)),
		auth:     TokenAuth{Token: config.Token},
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(server)
	}

	server.logger.Info("Server created",
		log.String("listen_addr", config.ListenAddr),
		log.Int("max_clients", config.MaxClients))

	return server
}

// Commands delivers client commands to the simulation loop.
func (s *Server) Commands() <-chan Command { return s.commands }

// Start starts the server
func (s *Server) Start(_ context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}

	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	s.logger.Info("Starting server")

	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to create listener", log.Error(err))
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Server listening",
		log.String("addr", listener.Addr().String()))

	s.startWorkers()

	s.workerGroup.Add(1)
	go func() {
		defer s.workerGroup.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", log.Error(err))
		}
	}()

	s.logger.Info("Server started successfully")

	return nil
}

// Addr is the bound address once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping server")

	close(s.stopChan)

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	// Disconnect all clients
	s.clients.Range(func(_, value any) bool {
		if session, ok := value.(*ClientSession); ok {
			session.close()
		}
		return true
	})

	s.stopWorkers()

	s.logger.Info("Server stopped")

	return err
}

// Close closes the server and releases all resources
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil // Already closed
	}

	s.logger.Info("Closing server")

	if atomic.LoadInt32(&s.running) == 1 {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		_ = s.Stop(ctx)
	}

	s.logger.Info("Server closed")

	return nil
}

// Broadcast serializes one notification and queues it for every client.
// Clients whose buffer is full are disconnected.
func (s *Server) Broadcast(topic string, data any) error {
	payload, err := json.Marshal(Frame{Type: topic, Data: data, TS: time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}

	s.clients.Range(func(_, value any) bool {
		session := value.(*ClientSession)
		if !session.enqueue(payload) && atomic.LoadInt32(&session.Active) == 1 {
			s.logger.Warn("Dropping slow client",
				log.String("client_id", session.ID),
				log.String("topic", topic))
			session.close()
		}
		return true
	})
	return nil
}

// Bind forwards every topic published on sub to the clients.
func (s *Server) Bind(sub bus.Subscriber, topics ...string) error {
	for _, topic := range topics {
		if _, err := sub.Subscribe(topic, func(e bus.Event) error {
			return s.Broadcast(e.Type(), e.Data())
		}); err != nil {
			return fmt.Errorf("bind %s: %w", topic, err)
		}
	}
	return nil
}

// GetStats returns server statistics
func (s *Server) GetStats() Stats {
	return Stats{
		ClientCount:     atomic.LoadInt64(&s.clientCount),
		Running:         atomic.LoadInt32(&s.running) == 1,
		PendingCommands: len(s.commands),
	}
}

// Stats contains server statistics
type Stats struct {
	ClientCount     int64 `json:"clients"`
	Running         bool  `json:"running"`
	PendingCommands int   `json:"pendingCommands"`
}

// startWorkers starts background worker goroutines
func (s *Server) startWorkers() {
	s.workerGroup.Add(1)

	// Health monitor
	go func() {
		defer s.workerGroup.Done()
		s.healthMonitor()
	}()
}

// stopWorkers stops background worker goroutines
func (s *Server) stopWorkers() {
	s.workerGroup.Wait()
}

// healthMonitor monitors client liveness
func (s *Server) healthMonitor() {
	s.logger.Debug("Health monitor started")

	ticker := time.NewTicker(s.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthChecks()
		case <-s.stopChan:
			s.logger.Debug("Health monitor stopped")
			return
		}
	}
}

// performHealthChecks disconnects clients that stopped answering pings
func (s *Server) performHealthChecks() {
	now := time.Now().Unix()
	timeoutSeconds := int64(s.config.ClientTimeout.Seconds())

	var disconnected int
	s.clients.Range(func(_, value any) bool {
		session := value.(*ClientSession)
		if now-atomic.LoadInt64(&session.LastSeen) > timeoutSeconds {
			s.logger.Info("Disconnecting inactive client",
				log.String("client_id", session.ID))
			session.close()
			disconnected++
		}
		return true
	})

	if disconnected > 0 {
		s.logger.Info("Health check completed",
			log.Int("disconnected_clients", disconnected),
			log.Int64("active_clients", atomic.LoadInt64(&s.clientCount)))
	}
}
