package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/combat-sim/combat-sim/sim"
)

// maxRequestBytes bounds a single request body or websocket message.
const maxRequestBytes = 8 << 20

// Server exposes a compute channel to remote clients on /ws, /simulate and
// /cancel.
type Server struct {
	channel  sim.ComputeChannel
	upgrader websocket.Upgrader
}

// NewServer creates a server in front of channel.
func NewServer(channel sim.ComputeChannel) *Server {
	if channel == nil {
		panic("remote.NewServer: channel must not be nil")
	}
	return &Server{
		channel: channel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/simulate", s.handleSimulate)
	mux.HandleFunc("/cancel", s.handleCancel)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logrus.Infof("engine listening on %s", addr)
	select {
	case err := <-errCh:
		return fmt.Errorf("engine server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("engine server shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req sim.TrialRequest
	if err := decodeStrict(data, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := s.channel.Simulate(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logrus.Warnf("engine server: writing response: %v", err)
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	s.channel.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("engine server: websocket upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	conn.SetReadLimit(maxRequestBytes)
	logrus.Debugf("engine server: websocket client %s connected", conn.RemoteAddr())
	s.serveConn(r.Context(), conn)
}

// serveConn reads messages until the client disconnects. Trials run in their
// own goroutine so cancel messages are read while a trial is in flight.
func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	var writeMu sync.Mutex
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		_ = conn.Close()
	}()

	send := func(msg Message) {
		data, err := json.Marshal(msg)
		if err != nil {
			logrus.Warnf("engine server: encoding %s: %v", msg.Type, err)
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logrus.Debugf("engine server: write: %v", err)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logrus.Debugf("engine server: websocket closed: %v", err)
			return
		}
		var msg Message
		if err := decodeStrict(data, &msg); err != nil {
			send(Message{Type: TypeError, Error: err.Error()})
			continue
		}
		switch msg.Type {
		case TypeSimulate:
			if msg.Request == nil {
				send(Message{Type: TypeError, Error: "simulate message without request"})
				continue
			}
			req := *msg.Request
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := s.channel.Simulate(ctx, req)
				if err != nil {
					send(Message{Type: TypeError, Error: err.Error()})
					return
				}
				send(Message{Type: TypeResult, Response: &resp})
			}()
		case TypeCancel:
			s.channel.Cancel()
		default:
			send(Message{Type: TypeError, Error: fmt.Sprintf("unknown message type %q", msg.Type)})
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}
