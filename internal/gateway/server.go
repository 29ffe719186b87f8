// Package gateway exposes the HTTP and WebSocket API: chat, session
// management, the bridge webhook, cron job CRUD and a live event feed.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/liteclaw/internal/agent"
	"github.com/nextlevelbuilder/liteclaw/internal/router"
	"github.com/nextlevelbuilder/liteclaw/internal/scheduler"
	"github.com/nextlevelbuilder/liteclaw/internal/store"
)

// Config wires a Server.
type Config struct {
	Host         string
	Port         int
	RateLimitRPM int // chat requests per minute; <=0 disables
}

// Server is the gateway HTTP/WS front end.
type Server struct {
	cfg       Config
	engine    *agent.Engine
	history   store.HistoryStore
	router    *router.Router
	scheduler *scheduler.Scheduler

	limiter  *rate.Limiter // nil when disabled
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*wsClient

	httpServer *http.Server
	mux        *http.ServeMux
}

func NewServer(cfg Config, engine *agent.Engine, history store.HistoryStore, rt *router.Router, sched *scheduler.Scheduler) *Server {
	s := &Server{
		cfg:       cfg,
		engine:    engine,
		history:   history,
		router:    rt,
		scheduler: sched,
		clients:   make(map[string]*wsClient),
	}
	if cfg.RateLimitRPM > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RateLimitRPM)/60.0), cfg.RateLimitRPM)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	// Engine events fan out to every connected WS client.
	engine.SetEventSink(s.broadcast)
	return s
}

// BuildMux creates and caches the HTTP mux with all routes registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /session/create", s.handleSessionCreate)
	mux.HandleFunc("GET /sessions/list", s.handleSessionsList)

	mux.HandleFunc("POST /whatsapp/incoming", s.handleIncoming)

	mux.HandleFunc("POST /cron/jobs", s.handleCronCreate)
	mux.HandleFunc("GET /cron/jobs", s.handleCronList)
	mux.HandleFunc("DELETE /cron/jobs/{id}", s.handleCronDelete)
	mux.HandleFunc("POST /cron/webhook/{id}", s.handleCronWebhook)

	s.mux = mux
	return mux
}

// Start listens until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	slog.Info("gateway starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// wsClient is one connected event-feed consumer.
type wsClient struct {
	conn *websocket.Conn
	send chan wsFrame
}

type wsFrame struct {
	SessionID string      `json:"session_id"`
	Event     agent.Event `json:"event"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan wsFrame, 64)}
	id := uuid.NewString()

	s.mu.Lock()
	s.clients[id] = client
	s.mu.Unlock()
	slog.Info("ws client connected", "id", id)

	defer func() {
		s.mu.Lock()
		delete(s.clients, id)
		s.mu.Unlock()
		close(client.send)
		conn.Close()
		slog.Info("ws client disconnected", "id", id)
	}()

	go func() {
		for frame := range client.send {
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}()

	// Inbound frames are ignored; the read loop only detects close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// broadcast pushes one engine event to every connected client. Slow
// clients drop frames rather than stall the engine.
func (s *Server) broadcast(sessionID string, ev agent.Event) {
	frame := wsFrame{SessionID: sessionID, Event: ev}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		select {
		case c.send <- frame:
		default:
		}
	}
}
