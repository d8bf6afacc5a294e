package server

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/cellwatch/internal/analysis"
	"github.com/muurk/cellwatch/internal/capture"
	"github.com/muurk/cellwatch/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin accepts requests without an Origin header, same-origin
// requests and the configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(s.config.AllowedOrigins, "*") || slices.Contains(s.config.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// streamHandler upgrades to a WebSocket and forwards every warning of the
// running live session as a JSON text message. The stream closes when the
// session stops.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	live, ok := s.running()
	if !ok {
		writeError(w, http.StatusNotFound, capture.ErrNoSession)
		return
	}

	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client
		logging.Warn("WebSocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	warnings, cancel := live.Coordinator().Broadcaster().Subscribe(analysis.DefaultSubscriberBuffer)
	remoteAddr := r.RemoteAddr

	s.wg.Add(1)
	s.track(remoteAddr, func() { _ = conn.Close() })
	logging.LogConnection(remoteAddr, "websocket_upgraded")

	defer func() {
		cancel()
		_ = conn.Close()
		s.untrack(remoteAddr)
		s.wg.Done()
		logging.LogConnection(remoteAddr, "websocket_closed")
	}()

	// The reader only handles control frames and notices the peer leaving.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case warning, ok := <-warnings:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "capture stopped")
				_ = conn.WriteMessage(websocket.CloseMessage, msg)
				return
			}
			if err := conn.WriteJSON(warning); err != nil {
				logging.Debug("Failed to send warning", zap.String("remote_addr", remoteAddr), zap.Error(err))
				return
			}
			logging.Debug("Warning sent to stream",
				zap.String("remote_addr", remoteAddr),
				zap.String("analyzer", warning.Analyzer),
			)

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-gone:
			return
		}
	}
}
