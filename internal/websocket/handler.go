package websocket

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Handler struct {
	hub      *Hub
	gateway  *Gateway
	logger   *Logger
	upgrader websocket.Upgrader
}

// NewHandler builds the upgrade endpoint. An empty allowedOrigins accepts any origin.
func NewHandler(hub *Hub, gateway *Gateway, logger *Logger, allowedOrigins []string) *Handler {
	return &Handler{
		hub:     hub,
		gateway: gateway,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(r *http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Connect upgrades the request and serves the connection until it closes.
func (h *Handler) Connect(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade failed", "", "", err)
		return
	}

	client := NewClient(conn, c.ClientIP(), h.logger)
	h.hub.Register(client)
	h.logger.Info("connected", "", client.ID)

	ctx := context.WithoutCancel(c.Request.Context())
	go client.WritePump()
	client.ReadPump(ctx, h.gateway)

	h.gateway.Disconnect(ctx, client)
}
