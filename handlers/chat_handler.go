package handlers

import (
	"errors"
	"fmt"
	"time"

	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/servimarket/api/models"
	"github.com/servimarket/api/services"
	chatws "github.com/servimarket/api/websocket"
)

type ChatHandler struct {
	chat      *services.ChatService
	dir       *services.DirectoryService
	hub       *chatws.Hub
	jwtSecret string
	log       zerolog.Logger
}

func NewChatHandler(chat *services.ChatService, dir *services.DirectoryService, hub *chatws.Hub, jwtSecret string, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, dir: dir, hub: hub, jwtSecret: jwtSecret, log: log}
}

type ConversationResponse struct {
	ID            uint           `json:"id"`
	LastMessageAt time.Time      `json:"last_message_at"`
	Client        models.Profile `json:"client"`
	Company       models.Profile `json:"company"`
}

func toConversationResponse(conv models.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:            conv.ID,
		LastMessageAt: conv.LastMessageAt,
		Client:        conv.Client.PublicProfile(),
		Company:       conv.Company.PublicProfile(),
	}
}

// StartConversation handles POST /conversations.
func (h *ChatHandler) StartConversation(c *fiber.Ctx) error {
	userID, _, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}

	type Request struct {
		CounterpartID uint `json:"counterpart_id" validate:"required,gt=0"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	initiator, err := h.dir.GetUser(userID)
	if err != nil {
		return errorResponse(c, err)
	}
	conv, err := h.chat.StartConversation(initiator, req.CounterpartID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(toConversationResponse(conv))
}

// ListConversations handles GET /conversations.
func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	userID, _, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}

	convs, err := h.chat.ListConversations(userID)
	if err != nil {
		return errorResponse(c, err)
	}
	out := make([]ConversationResponse, 0, len(convs))
	for _, conv := range convs {
		out = append(out, toConversationResponse(conv))
	}
	return c.JSON(out)
}

// ListMessages handles GET /conversations/:conversationId/messages.
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	userID, _, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}
	conversationID, err := parseUintParam(c, "conversationId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	msgs, err := h.chat.ListMessages(conversationID, userID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(msgs)
}

// MarkRead handles PUT /messages/:messageId/read.
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	userID, _, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}
	messageID, err := parseUintParam(c, "messageId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	msg, err := h.chat.MarkRead(messageID, userID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(msg)
}

type messageEvent struct {
	Type           string    `json:"type"`
	MessageID      uint      `json:"message_id"`
	ConversationID uint      `json:"conversation_id"`
	SenderID       uint      `json:"sender_id"`
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sent_at"`
	Read           bool      `json:"read"`
}

func receivedEvent(m models.Message) messageEvent {
	return messageEvent{
		Type:           "receivedMessage",
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		SentAt:         m.SentAt,
		Read:           m.Read,
	}
}

func errorEvent(message string) fiber.Map {
	return fiber.Map{"type": "error", "message": message}
}

// socketConn is what the event loop needs from a live connection.
type socketConn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

// ServeWs owns one live connection. The first frame must authenticate;
// afterwards the connection is subscribed to its user's channel and
// loops on sendMessage events until the peer goes away.
func (h *ChatHandler) ServeWs(c *websocketcontrib.Conn) {
	h.serveSocket(c)
}

func (h *ChatHandler) serveSocket(conn socketConn) {
	var authMsg struct {
		Type  string `json:"type"`
		Token string `json:"token"`
	}
	if err := conn.ReadJSON(&authMsg); err != nil || authMsg.Type != "auth" {
		_ = conn.WriteJSON(errorEvent("Invalid or missing auth message"))
		conn.Close()
		return
	}

	userID, _, err := h.parseToken(authMsg.Token)
	if err != nil {
		_ = conn.WriteJSON(errorEvent("Invalid token"))
		conn.Close()
		return
	}
	sender, err := h.dir.GetUser(userID)
	if err != nil {
		_ = conn.WriteJSON(errorEvent("Unknown user"))
		conn.Close()
		return
	}

	connID := uuid.NewString()
	session := chatws.NewConnSession(conn)
	h.hub.Register(sender.ID, connID, session)
	h.log.Info().Uint("user_id", sender.ID).Str("conn_id", connID).Msg("websocket client authenticated")
	defer func() {
		h.hub.Unregister(sender.ID, connID)
		conn.Close()
	}()

	for {
		var evt struct {
			Type          string `json:"type"`
			CounterpartID uint   `json:"counterpart_id"`
			Body          string `json:"body"`
		}
		if err := conn.ReadJSON(&evt); err != nil {
			if websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseAbnormalClosure) {
				h.log.Debug().Uint("user_id", sender.ID).Msg("websocket closed")
			} else {
				h.log.Warn().Err(err).Uint("user_id", sender.ID).Msg("websocket read error")
			}
			break
		}
		if evt.Type != "sendMessage" {
			_ = session.WriteJSON(errorEvent("Unsupported event type"))
			continue
		}

		res, err := h.chat.SendMessage(sender, evt.CounterpartID, evt.Body)
		if err != nil {
			// failures go to the sender only; nothing fans out
			_ = session.WriteJSON(errorEvent(err.Error()))
			continue
		}

		payload := receivedEvent(res.Message)
		h.hub.Deliver(res.Recipients, payload)
		// the sender's own connection always gets the ack, delivered or not
		_ = session.WriteJSON(payload)
	}
}

func (h *ChatHandler) parseToken(tokenString string) (uint, models.Role, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil {
		return 0, "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, "", errors.New("invalid token")
	}
	rawID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, "", errors.New("invalid user_id claim")
	}
	rawRole, _ := claims["role"].(string)
	role, err := models.ParseRole(rawRole)
	if err != nil {
		return 0, "", err
	}
	return uint(rawID), role, nil
}
