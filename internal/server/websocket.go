package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// closeWait bounds the close handshake after the movie ends.
const closeWait = time.Second

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/", http.FileServer(http.FS(s.cfg.Assets)))
	return mux
}

// frameWriter sends each screen as one binary WebSocket message.
type frameWriter struct {
	conn *websocket.Conn
}

func (w frameWriter) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// handleWebSocket handles GET /ws by playing the movie to the browser.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Registered before the upgrade so Shutdown cannot return in between.
	s.wg.Add(1)
	defer s.wg.Done()

	logger := s.sessionLogger(r.RemoteAddr)
	ip := extractIP(r)

	if res := s.limiter.check(ip); !res.Allowed {
		logger.Warn("connection rejected", "reason", res.Reason, "attempts", res.Attempts, "retry_after", res.RetryAfter.Round(time.Second))
		w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Round(time.Second)/time.Second)))
		http.Error(w, res.Reason, http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	// Viewers never send data, but reading is how a close from the
	// browser is noticed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	res := s.run(ctx, frameWriter{conn: conn}, logger)
	if ctx.Err() == nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, res.Reason.String())
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
	}
}
