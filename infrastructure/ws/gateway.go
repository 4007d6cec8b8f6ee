package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"chathub/errors"
	"chathub/runtime"
	"chathub/sink"
)

const sinkBufferSize = 256

// Gateway upgrades HTTP requests to websocket connections and admits them
// as live sessions. The bearer token travels in the `token` query parameter
// because browsers cannot set headers on websocket upgrades.
type Gateway struct {
	// baseCtx spans the server lifetime. The request context cannot carry
	// the pumps because it is canceled as soon as ServeHTTP returns.
	baseCtx  context.Context
	orch     *runtime.Orchestrator
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewGateway(baseCtx context.Context, orch *runtime.Orchestrator, log *slog.Logger) *Gateway {
	return &Gateway{
		baseCtx: baseCtx,
		orch:    orch,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	socketSink := sink.NewSocketSink(sinkBufferSize, g.log)
	session, err := g.orch.Connect(r.Context(), token, socketSink)
	if err != nil {
		g.log.Info("Connection rejected", "reason", errors.Reason(err))
		conn.WriteJSON(ServerEvent{Type: EventError, Reason: errors.Reason(err), Detail: "handshake failed"})
		conn.Close()
		return
	}

	client := NewClient(conn, session, socketSink, g.orch, g.log)
	go client.WritePump(g.baseCtx)
	go client.ReadPump(g.baseCtx)
}
