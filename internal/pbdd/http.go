package pbdd

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/opencode-ai/pbd/internal/dispatcher"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// tokenMessage is what the speech or GUI client sends over /ws/commands.
// Plain text frames are accepted as bare tokens.
type tokenMessage struct {
	Command string `json:"command"`
}

// wsReply is written back for every token.
type wsReply struct {
	Type    string              `json:"type"`
	Outcome *dispatcher.Outcome `json:"outcome,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// httpHandler serves the websocket command stream, status, health, and metrics.
type httpHandler struct {
	server  *Server
	limiter *RateLimiter
	logger  zerolog.Logger
}

func newHTTPHandler(server *Server, limiter *RateLimiter, logger zerolog.Logger) http.Handler {
	h := &httpHandler{server: server, limiter: limiter, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/status", h.handleStatus)
	mux.HandleFunc("/ws/commands", h.handleCommands)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (h *httpHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *httpHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.server.controller.Status())
}

// handleCommands reads command tokens and answers each with its outcome.
// Replies may arrive out of order relative to the tokens when a stop request
// overtakes queued commands.
func (h *httpHandler) handleCommands(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	clientID := "ws-" + uuid.New().String()
	logger := h.logger.With().Str("client", clientID).Logger()
	logger.Info().Msg("command client connected")

	var writeMu sync.Mutex
	write := func(reply wsReply) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return wsjson.Write(ctx, conn, reply)
	}

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				conn.Close(websocket.StatusNormalClosure, "done")
			}
			logger.Info().Msg("command client disconnected")
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		raw := parseToken(data)
		if !h.limiter.Allow(WebsocketTokens) {
			_ = write(wsReply{Type: "error", Error: "rate limit exceeded"})
			continue
		}

		ticket, err := h.server.dispatcher.Submit(raw)
		if err != nil {
			_ = write(wsReply{Type: "error", Error: err.Error()})
			continue
		}
		go func() {
			out, err := ticket.Wait(ctx)
			if err != nil {
				return
			}
			if err := write(wsReply{Type: "outcome", Outcome: &out}); err != nil {
				logger.Debug().Err(err).Msg("failed to write outcome")
			}
		}()
	}
}

// parseToken accepts {"command": "..."} or a bare token.
func parseToken(data []byte) string {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var msg tokenMessage
		if err := json.Unmarshal([]byte(trimmed), &msg); err == nil {
			return msg.Command
		}
	}
	return trimmed
}
