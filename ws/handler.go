package ws

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xtzs123/uniapp-backend/auth"
	"github.com/xtzs123/uniapp-backend/contract"
	"github.com/xtzs123/uniapp-backend/domain"
	"github.com/xtzs123/uniapp-backend/services"
)

// Handler upgrades authenticated clients and runs one synchronous
// receive-process-respond loop per connection.
type Handler struct {
	log        *slog.Logger
	registry   contract.IRegistry
	chat       services.IChatService
	upgrader   websocket.Upgrader
	bufferSize int
}

func NewHandler(log *slog.Logger, registry contract.IRegistry, chat services.IChatService,
	allowedOrigins []string, bufferSize int) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return &Handler{
		log:      log,
		registry: registry,
		chat:     chat,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Non-browser clients send no Origin header.
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin] || allowed["*"]
			},
		},
		bufferSize: bufferSize,
	}
}

// ServeHTTP authenticates the token query parameter before upgrading:
// a bad or non-USER credential is refused without exchanging a single
// frame.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ValidateUserToken(r.URL.Query().Get("token"))
	if err != nil {
		h.log.Warn("Connection refused", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	session := NewSession(h.log, conn, claims.ID, h.bufferSize)
	if replaced := h.registry.Register(claims.ID, session); replaced != nil {
		// Last register wins: the superseded connection is closed so
		// it does not linger as an orphan.
		_ = replaced.Close()
	}
	h.log.Info("Connection established", "user_id", claims.ID, "username", claims.Username, "session_id", session.ID)

	defer func() {
		h.registry.Unregister(claims.ID, session)
		_ = session.Close()
		h.log.Info("Connection closed", "user_id", claims.ID, "session_id", session.ID)
	}()

	ctx := r.Context()
	_ = session.Consume(ctx, domain.NewSystemFrame("connected", "success", time.Now()))
	if err := h.chat.SendConversationList(ctx, claims.ID); err != nil {
		h.log.Warn("Initial conversation list failed", "user_id", claims.ID, "error", err)
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		// Bare-text heartbeats predate the JSON envelope and still get
		// a bare reply.
		trimmed := strings.TrimSpace(string(payload))
		if trimmed == "ping" || trimmed == "heartbeat" {
			_ = session.ConsumeText([]byte("pong"))
			continue
		}

		cmd, err := DecodeCommand(payload)
		if err != nil {
			_ = session.Consume(ctx, domain.NewErrorFrame(err.Error(), time.Now()))
			continue
		}

		// Any failure is reported to this connection only; the loop
		// keeps serving subsequent commands.
		if err := h.chat.Execute(ctx, claims.ID, cmd); err != nil {
			h.log.Debug("Command failed", "user_id", claims.ID, "command", cmd.CommandType(), "error", err)
			_ = session.Consume(ctx, domain.NewErrorFrame(err.Error(), time.Now()))
		}
	}
}
