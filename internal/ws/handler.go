package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/conversations"
	"messaging-service/internal/identity"
	"messaging-service/internal/messages"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// Handler upgrades authenticated websocket connections and drives the frame
// loop.
type Handler struct {
	hub         *Hub
	verifier    identity.Verifier
	ledger      *messages.Ledger
	convs       *conversations.Service
	authTimeout time.Duration
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, verifier identity.Verifier, ledger *messages.Ledger, convs *conversations.Service, authTimeout time.Duration) *Handler {
	if authTimeout <= 0 {
		authTimeout = 5 * time.Second
	}
	return &Handler{hub: hub, verifier: verifier, ledger: ledger, convs: convs, authTimeout: authTimeout}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle verifies the access token, upgrades, registers the connection and
// sends the hello acknowledgement. On auth failure or timeout the socket is
// destroyed without an HTTP response.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.Query("access_token")
	who, err := identity.VerifyWithTimeout(ctx, h.verifier, token, h.authTimeout)
	if err != nil {
		destroySocket(c)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	meta := observability.MetaFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		Identity:    who,
		DeviceID:    meta.DeviceID,
		IP:          meta.IP,
		RequestID:   meta.RequestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.Add(who, conn, info)
	observability.IncWSActive()
	observability.IncWSEvent("connect")

	h.hub.Send(who, conn, models.Event{Type: models.EventHello, OK: true})

	go h.readLoop(conn, who)
}

func (h *Handler) readLoop(conn *websocket.Conn, who string) {
	defer func() {
		h.hub.Remove(who, conn)
		observability.DecWSActive()
		observability.IncWSEvent("disconnect")
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("error")
			}
			return
		}

		var frame models.Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("websocket bad frame identity=%s: %v", who, err)
			continue
		}
		h.handleFrame(conn, who, frame)
	}
}

func (h *Handler) handleFrame(conn *websocket.Conn, who string, frame models.Frame) {
	// Frame handling is detached from any HTTP request lifecycle.
	ctx, cancel := requestScope()
	defer cancel()

	switch frame.Type {
	case "ping":
		h.hub.Send(who, conn, models.Event{Type: models.EventPong, TS: time.Now().UnixMilli()})

	case models.EventMessageDelivered:
		if frame.MessageID == "" {
			return
		}
		msg, changed, err := h.ledger.MarkDelivered(ctx, frame.MessageID, who)
		if err != nil {
			log.Printf("mark delivered failed identity=%s message=%s: %v", who, frame.MessageID, err)
			return
		}
		if !changed {
			return
		}
		participants, err := h.convs.Participants(ctx, msg.ConversationID)
		if err != nil {
			return
		}
		observability.IncWSEvent("delivered")
		h.hub.Broadcast(participants, models.Event{
			Type:           models.EventMessageDelivered,
			ConversationID: msg.ConversationID,
			MessageID:      msg.ID,
			By:             who,
		})

	case models.EventConversationRead:
		if frame.ConversationID == "" {
			return
		}
		if err := h.ledger.MarkRead(ctx, frame.ConversationID, who); err != nil {
			log.Printf("mark read failed identity=%s conversation=%s: %v", who, frame.ConversationID, err)
			return
		}
		participants, err := h.convs.Participants(ctx, frame.ConversationID)
		if err != nil {
			return
		}
		observability.IncWSEvent("read")
		h.hub.Broadcast(participants, models.Event{
			Type:           models.EventConversationRead,
			ConversationID: frame.ConversationID,
			By:             who,
			TS:             time.Now().UnixMilli(),
		})

	default:
		log.Printf("websocket unknown frame type=%q identity=%s", frame.Type, who)
	}
}

// destroySocket closes the underlying TCP connection without writing an HTTP
// response, so a failed upgrade leaks nothing about why.
func destroySocket(c *gin.Context) {
	hijacker, ok := c.Writer.(http.Hijacker)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	raw, _, err := hijacker.Hijack()
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	raw.Close()
	c.Abort()
}
