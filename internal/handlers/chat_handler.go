package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/ToolConnectBack/internal/messaging"
	"github.com/saeid-a/ToolConnectBack/internal/models"
	"github.com/saeid-a/ToolConnectBack/internal/observability"
	"github.com/saeid-a/ToolConnectBack/internal/services"
	chatws "github.com/saeid-a/ToolConnectBack/internal/websocket"
	"github.com/saeid-a/ToolConnectBack/pkg/utils"
)

type chatApplicationService interface {
	messaging.Backend
	FindOrCreate(ctx context.Context, viewer models.Viewer, counterpartProfileID int64) (*models.Conversation, bool, error)
}

type ChatHandler struct {
	service            chatApplicationService
	hub                *chatws.Hub
	feed               messaging.Feed
	jwtSecret          string
	maxAttachmentBytes int64
}

type createConversationRequest struct {
	Role          string `json:"role"`
	CounterpartID int64  `json:"counterpart_id"`
}

func NewChatHandler(
	service chatApplicationService,
	hub *chatws.Hub,
	feed messaging.Feed,
	jwtSecret string,
	maxAttachmentBytes int64,
) *ChatHandler {
	return &ChatHandler{
		service:            service,
		hub:                hub,
		feed:               feed,
		jwtSecret:          jwtSecret,
		maxAttachmentBytes: maxAttachmentBytes,
	}
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	viewer, err := h.viewer(c, c.Query("role"))
	if err != nil {
		return mapChatError(c, err)
	}

	conversations, err := h.service.ListConversations(c.UserContext(), viewer)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{
		"role":          viewer.Role,
		"conversations": conversations,
	})
}

// CreateConversation returns the conversation with the counterpart, creating it if needed.
func (h *ChatHandler) CreateConversation(c *fiber.Ctx) error {
	var req createConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	viewer, err := h.viewer(c, req.Role)
	if err != nil {
		return mapChatError(c, err)
	}
	conversation, created, err := h.service.FindOrCreate(c.UserContext(), viewer, req.CounterpartID)
	if err != nil {
		return mapChatError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"conversation": conversation,
		"created":      created,
	})
}

// LookupConversation reports an existing conversation with the counterpart without creating one.
func (h *ChatHandler) LookupConversation(c *fiber.Ctx) error {
	viewer, err := h.viewer(c, c.Query("role"))
	if err != nil {
		return mapChatError(c, err)
	}

	counterpartID, err := strconv.ParseInt(c.Query("counterpart_id"), 10, 64)
	if err != nil || counterpartID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid counterpart id"})
	}

	conversation, err := h.service.LookupConversation(c.UserContext(), viewer, counterpartID)
	if err == nil {
		return c.JSON(fiber.Map{"conversation": conversation})
	}
	if !errors.Is(err, services.ErrConversationNotFound) {
		return mapChatError(c, err)
	}

	card, err := h.service.Counterpart(c.UserContext(), viewer, counterpartID)
	if err != nil {
		return mapChatError(c, err)
	}
	return c.JSON(fiber.Map{
		"conversation": nil,
		"counterpart":  card,
	})
}

// GetMessages returns the thread in send order and marks the counterpart's messages read.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	viewer, err := h.viewer(c, c.Query("role"))
	if err != nil {
		return mapChatError(c, err)
	}

	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	messages, err := h.service.OpenConversation(c.UserContext(), viewer, conversationID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"messages": messages})
}

// SendMessage appends to an existing conversation. The body is multipart with text and an optional file.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	viewer, err := h.viewer(c, c.FormValue("role", c.Query("role")))
	if err != nil {
		return mapChatError(c, err)
	}

	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	attachment, closeFile, err := h.formAttachment(c)
	if err != nil {
		return mapChatError(c, err)
	}
	defer closeFile()

	message, err := h.service.SendMessage(c.UserContext(), viewer, conversationID, c.FormValue("text"), attachment)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

// SendFirstMessage contacts a profile directly; the conversation is created with the first message.
func (h *ChatHandler) SendFirstMessage(c *fiber.Ctx) error {
	viewer, err := h.viewer(c, c.FormValue("role"))
	if err != nil {
		return mapChatError(c, err)
	}

	counterpartID, err := strconv.ParseInt(c.FormValue("counterpart_id"), 10, 64)
	if err != nil || counterpartID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid counterpart id"})
	}

	attachment, closeFile, err := h.formAttachment(c)
	if err != nil {
		return mapChatError(c, err)
	}
	defer closeFile()

	conversation, message, err := h.service.SendToCounterpart(c.UserContext(), viewer, counterpartID, c.FormValue("text"), attachment)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"conversation": conversation,
		"message":      message,
	})
}

func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	viewer, err := h.viewer(c, c.Query("role"))
	if err != nil {
		return mapChatError(c, err)
	}

	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	updated, err := h.service.MarkRead(c.UserContext(), viewer, conversationID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"marked_read": updated})
}

// Unread returns the unread aggregate for each profile the account holds.
func (h *ChatHandler) Unread(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	account, err := h.service.Account(c.UserContext(), userID)
	if err != nil {
		return mapChatError(c, err)
	}

	badges, err := h.service.UnreadBadges(c.UserContext(), account)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"unread": badges})
}

func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("account_type", claims.AccountType)
	c.Locals("preferred_role", c.Query("role"))
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	userIDStr, _ := conn.Locals("user_id").(string)
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		_ = conn.Close()
		return
	}

	preferred, ok := models.ParseRole(stringLocal(conn.Locals("preferred_role")))
	if !ok {
		preferred, _ = models.ParseRole(stringLocal(conn.Locals("account_type")))
	}

	client := chatws.NewClient(h.hub, conn, userID)
	if err := h.hub.Register(client); err != nil {
		observability.Logger.Warn("websocket rejected", "user_id", userID, "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		_ = conn.Close()
		return
	}

	client.Serve(context.Background(), h.service, h.feed, preferred)
}

func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

// viewer binds the caller to one of its profiles. The requested role falls back to the account type.
func (h *ChatHandler) viewer(c *fiber.Ctx, requested string) (models.Viewer, error) {
	userID, err := parseUserID(c)
	if err != nil {
		return models.Viewer{}, errUnauthenticated
	}

	if strings.TrimSpace(requested) == "" {
		requested, _ = c.Locals("account_type").(string)
	}
	role, ok := models.ParseRole(requested)
	if !ok {
		return models.Viewer{}, services.ErrInvalidInput
	}

	return h.service.ResolveViewer(c.UserContext(), userID, role)
}

// formAttachment opens the optional "file" part. The returned close func is always safe to call.
func (h *ChatHandler) formAttachment(c *fiber.Ctx) (*services.Attachment, func(), error) {
	noop := func() {}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, noop, nil
	}
	if fileHeader.Size <= 0 {
		return nil, noop, errAttachmentEmpty
	}
	if h.maxAttachmentBytes > 0 && fileHeader.Size > h.maxAttachmentBytes {
		return nil, noop, errAttachmentTooLarge
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, noop, err
	}

	return &services.Attachment{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get(fiber.HeaderContentType),
		Body:        file,
		Size:        fileHeader.Size,
	}, func() { _ = file.Close() }, nil
}

var (
	errUnauthenticated    = errors.New("unauthenticated")
	errAttachmentEmpty    = errors.New("attachment is empty")
	errAttachmentTooLarge = errors.New("attachment is too large")
)

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errUnauthenticated):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	case errors.Is(err, errAttachmentEmpty):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "attachment is empty"})
	case errors.Is(err, errAttachmentTooLarge):
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "attachment is too large"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrEmptyMessage):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Message needs text or an attachment"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrRoleUnavailable):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Account has no profile for this role"})
	case errors.Is(err, services.ErrProfileNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
	case errors.Is(err, services.ErrConversationNotFound), errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	case errors.Is(err, services.ErrUploadFailed):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to upload attachment"})
	case errors.Is(err, services.ErrStorageUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage service is not configured"})
	default:
		observability.Logger.ErrorContext(c.UserContext(), "chat request failed", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}

func stringLocal(value any) string {
	s, _ := value.(string)
	return s
}
