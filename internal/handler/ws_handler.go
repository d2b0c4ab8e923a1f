package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/itstarun264/eventsnap-stream/internal/config"
	"github.com/itstarun264/eventsnap-stream/internal/domain"
	"github.com/itstarun264/eventsnap-stream/internal/hub"
	"github.com/itstarun264/eventsnap-stream/internal/service"
	"github.com/itstarun264/eventsnap-stream/pkg/log"
)

// WSHandler upgrades HTTP connections to WebSocket and dispatches inbound
// messages to the stream service.
type WSHandler struct {
	hub     *hub.Hub
	service service.StreamService
	config  config.WebSocketConfig

	upgrader websocket.Upgrader
}

func NewWSHandler(h *hub.Hub, svc service.StreamService, cfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		config:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Origin checks are enforced at the gateway.
				return true
			},
		},
	}
}

// Handle upgrades the connection and runs the client's pumps. Blocks until
// the connection closes.
func (h *WSHandler) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.config)
	h.hub.Register(client)

	l := log.Ctx(c.Request.Context())
	l.Info().Str(log.FieldClientID, client.ID).Msg("websocket connected")

	go client.WritePump()
	client.ReadPump(h.handleMessage)

	h.service.HandleDisconnect(c.Request.Context(), client)
}

// handleMessage decodes one inbound frame and routes it by its type tag. A
// frame that does not parse, or carries an unknown type, is answered with an
// error message to the sender only.
func (h *WSHandler) handleMessage(client *hub.Client, data []byte) {
	ctx := log.WithLogger(context.Background(), log.L().With().Str(log.FieldClientID, client.ID).Logger())

	var base domain.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid message format"))
		return
	}

	switch base.Type {
	case domain.MsgTypeJoin:
		var msg domain.JoinMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid join message"))
			return
		}
		h.service.HandleJoin(ctx, client, &msg)

	case domain.MsgTypeLeave:
		var msg domain.LeaveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid leave message"))
			return
		}
		h.service.HandleLeave(ctx, client, &msg)

	case domain.MsgTypeStart:
		var msg domain.StartMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid start message"))
			return
		}
		h.service.HandleStart(ctx, client, &msg)

	case domain.MsgTypeStop:
		var msg domain.StopMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid stop message"))
			return
		}
		h.service.HandleStop(ctx, client, &msg)

	case domain.MsgTypeVideoFrame:
		var msg domain.VideoFrameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid video frame"))
			return
		}
		h.service.HandleVideoFrame(ctx, client, &msg)

	case domain.MsgTypeAudioChunk:
		var msg domain.AudioChunkMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			client.SendMessage(domain.NewAckError("invalid audio chunk"))
			return
		}
		h.service.HandleAudioChunk(ctx, client, &msg)

	case domain.MsgTypeAudioPCM:
		var msg domain.AudioPCMMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid audio pcm chunk"))
			return
		}
		h.service.HandleAudioPCM(ctx, client, &msg)

	case domain.MsgTypeReaction:
		var msg domain.ReactionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid reaction"))
			return
		}
		h.service.HandleReaction(ctx, client, &msg)

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown message type: "+base.Type))
	}
}
