package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/saeid-a/ToolConnectBack/internal/middleware"
	"github.com/saeid-a/ToolConnectBack/internal/models"
	"github.com/saeid-a/ToolConnectBack/internal/observability"
	"github.com/saeid-a/ToolConnectBack/internal/services"
	chatws "github.com/saeid-a/ToolConnectBack/internal/websocket"
)

type stubChatService struct {
	viewerErr error

	conversationsResult []models.ConversationSummary
	openResult          []models.ChatMessage
	openErr             error
	lookupResult        *models.Conversation
	lookupErr           error
	card                *models.ParticipantCard
	findResult          *models.Conversation
	findCreated         bool
	sendErr             error
	badges              models.UnreadBadges

	lastRole           models.Role
	lastConversationID int64
	lastCounterpartID  int64
	lastText           string
	lastAttachmentName string
	lastAttachmentBody string
	sendCalls          int
	lastCtx            context.Context
}

func (s *stubChatService) Account(_ context.Context, userID int64) (models.AccountProfiles, error) {
	return models.AccountProfiles{UserID: userID, ClientProfileID: 10, ProviderProfileID: 11}, nil
}

func (s *stubChatService) ResolveViewer(_ context.Context, userID int64, role models.Role) (models.Viewer, error) {
	s.lastRole = role
	if s.viewerErr != nil {
		return models.Viewer{}, s.viewerErr
	}
	profileID := int64(10)
	if role == models.RoleProvider {
		profileID = 11
	}
	return models.Viewer{UserID: userID, Role: role, ProfileID: profileID}, nil
}

func (s *stubChatService) ListConversations(ctx context.Context, _ models.Viewer) ([]models.ConversationSummary, error) {
	s.lastCtx = ctx
	return s.conversationsResult, nil
}

func (s *stubChatService) OpenConversation(_ context.Context, _ models.Viewer, conversationID int64) ([]models.ChatMessage, error) {
	s.lastConversationID = conversationID
	return s.openResult, s.openErr
}

func (s *stubChatService) MarkRead(_ context.Context, _ models.Viewer, conversationID int64) (int64, error) {
	s.lastConversationID = conversationID
	return 3, nil
}

func (s *stubChatService) LookupConversation(_ context.Context, _ models.Viewer, counterpartProfileID int64) (*models.Conversation, error) {
	s.lastCounterpartID = counterpartProfileID
	return s.lookupResult, s.lookupErr
}

func (s *stubChatService) Counterpart(_ context.Context, _ models.Viewer, _ int64) (*models.ParticipantCard, error) {
	if s.card == nil {
		return nil, services.ErrProfileNotFound
	}
	return s.card, nil
}

func (s *stubChatService) FindOrCreate(_ context.Context, _ models.Viewer, counterpartProfileID int64) (*models.Conversation, bool, error) {
	s.lastCounterpartID = counterpartProfileID
	return s.findResult, s.findCreated, nil
}

func (s *stubChatService) SendMessage(_ context.Context, viewer models.Viewer, conversationID int64, text string, attachment *services.Attachment) (*models.ChatMessage, error) {
	s.sendCalls++
	s.lastConversationID = conversationID
	s.recordDraft(text, attachment)
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &models.ChatMessage{ID: 99, ConversationID: conversationID, SenderID: viewer.UserID, MessageText: text}, nil
}

func (s *stubChatService) SendToCounterpart(_ context.Context, viewer models.Viewer, counterpartProfileID int64, text string, attachment *services.Attachment) (*models.Conversation, *models.ChatMessage, error) {
	s.sendCalls++
	s.lastCounterpartID = counterpartProfileID
	s.recordDraft(text, attachment)
	if s.sendErr != nil {
		return nil, nil, s.sendErr
	}
	conversation := &models.Conversation{ID: 6, ClientID: viewer.ProfileID, ProviderID: counterpartProfileID}
	return conversation, &models.ChatMessage{ID: 1, ConversationID: 6, SenderID: viewer.UserID, MessageText: text}, nil
}

func (s *stubChatService) UnreadBadges(_ context.Context, _ models.AccountProfiles) (models.UnreadBadges, error) {
	return s.badges, nil
}

func (s *stubChatService) recordDraft(text string, attachment *services.Attachment) {
	s.lastText = text
	if attachment != nil {
		s.lastAttachmentName = attachment.Filename
		body, _ := io.ReadAll(attachment.Body)
		s.lastAttachmentBody = string(body)
	}
}

func newChatTestApp(service *stubChatService, maxAttachmentBytes int64) *fiber.App {
	handler := NewChatHandler(service, chatws.NewHub(5), nil, "secret", maxAttachmentBytes)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "42")
		c.Locals("account_type", "client")
		return c.Next()
	})
	app.Get("/api/v1/conversations", handler.ListConversations)
	app.Post("/api/v1/conversations", handler.CreateConversation)
	app.Get("/api/v1/conversations/lookup", handler.LookupConversation)
	app.Get("/api/v1/conversations/:id/messages", handler.GetMessages)
	app.Post("/api/v1/conversations/:id/messages", handler.SendMessage)
	app.Post("/api/v1/conversations/:id/read", handler.MarkRead)
	app.Post("/api/v1/messages", handler.SendFirstMessage)
	app.Get("/api/v1/unread", handler.Unread)
	return app
}

func multipartRequest(t *testing.T, target string, fields map[string]string, filename string, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestListConversationsDefaultsToAccountType(t *testing.T) {
	service := &stubChatService{
		conversationsResult: []models.ConversationSummary{
			{
				Conversation: models.Conversation{ID: 5, ClientID: 10, ProviderID: 20},
				Counterpart:  models.ParticipantCard{ProfileID: 20, Role: models.RoleProvider, Name: "Rita"},
				LastMessage: &models.ChatMessage{
					ID:             3,
					ConversationID: 5,
					SenderID:       7,
					MessageText:    "The drill is available",
					CreatedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
				},
				UnreadCount: 2,
			},
		},
	}
	app := newChatTestApp(service, 1024)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastRole != models.RoleClient {
		t.Fatalf("expected client role, got %q", service.lastRole)
	}

	var body struct {
		Role          models.Role                  `json:"role"`
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Role != models.RoleClient || len(body.Conversations) != 1 || body.Conversations[0].UnreadCount != 2 {
		t.Fatalf("unexpected response: %+v", body)
	}
}

func TestListConversationsHonoursRoleQuery(t *testing.T) {
	service := &stubChatService{}
	app := newChatTestApp(service, 1024)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conversations?role=provider", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastRole != models.RoleProvider {
		t.Fatalf("expected provider role, got %q", service.lastRole)
	}
}

func TestChatRejectsUnknownRole(t *testing.T) {
	app := newChatTestApp(&stubChatService{}, 1024)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conversations?role=admin", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestChatMapsMissingProfileToForbidden(t *testing.T) {
	app := newChatTestApp(&stubChatService{viewerErr: services.ErrRoleUnavailable}, 1024)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conversations?role=provider", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestGetMessagesMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "not a participant", err: services.ErrForbidden, want: http.StatusForbidden},
		{name: "unknown conversation", err: services.ErrConversationNotFound, want: http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newChatTestApp(&stubChatService{openErr: tc.err}, 1024)

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conversations/5/messages", nil))
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestGetMessagesRejectsInvalidConversationID(t *testing.T) {
	service := &stubChatService{}
	app := newChatTestApp(service, 1024)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conversations/abc/messages", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if service.lastConversationID != 0 {
		t.Fatal("service must not be called for an invalid id")
	}
}

func TestSendMessagePassesTextAndAttachment(t *testing.T) {
	service := &stubChatService{}
	app := newChatTestApp(service, 1024)

	req := multipartRequest(t, "/api/v1/conversations/5/messages",
		map[string]string{"text": "Invoice attached", "role": "provider"},
		"invoice.pdf", "%PDF-1.4")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastRole != models.RoleProvider {
		t.Fatalf("expected provider role from form, got %q", service.lastRole)
	}
	if service.lastConversationID != 5 || service.lastText != "Invoice attached" {
		t.Fatalf("unexpected draft: conversation=%d text=%q", service.lastConversationID, service.lastText)
	}
	if service.lastAttachmentName != "invoice.pdf" || service.lastAttachmentBody != "%PDF-1.4" {
		t.Fatalf("unexpected attachment: %q %q", service.lastAttachmentName, service.lastAttachmentBody)
	}
}

func TestSendMessageWithoutFileHasNoAttachment(t *testing.T) {
	service := &stubChatService{}
	app := newChatTestApp(service, 1024)

	req := multipartRequest(t, "/api/v1/conversations/5/messages", map[string]string{"text": "hello"}, "", "")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastAttachmentName != "" {
		t.Fatalf("expected no attachment, got %q", service.lastAttachmentName)
	}
}

func TestSendMessageRejectsOversizedAttachment(t *testing.T) {
	service := &stubChatService{}
	app := newChatTestApp(service, 4)

	req := multipartRequest(t, "/api/v1/conversations/5/messages", map[string]string{"text": "big"}, "big.bin", "0123456789")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
	if service.sendCalls != 0 {
		t.Fatal("oversized attachment must not reach the service")
	}
}

func TestSendMessageMapsDraftAndUploadErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "empty draft", err: services.ErrEmptyMessage, want: http.StatusBadRequest},
		{name: "upload failed", err: services.ErrUploadFailed, want: http.StatusBadGateway},
		{name: "no storage", err: services.ErrStorageUnavailable, want: http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newChatTestApp(&stubChatService{sendErr: tc.err}, 1024)

			req := multipartRequest(t, "/api/v1/conversations/5/messages", map[string]string{"text": " "}, "", "")
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestSendFirstMessageCreatesConversation(t *testing.T) {
	service := &stubChatService{}
	app := newChatTestApp(service, 1024)

	req := multipartRequest(t, "/api/v1/messages",
		map[string]string{"text": "Is the mixer free on Friday?", "counterpart_id": "20"}, "", "")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastCounterpartID != 20 {
		t.Fatalf("expected counterpart 20, got %d", service.lastCounterpartID)
	}

	var body struct {
		Conversation models.Conversation `json:"conversation"`
		Message      models.ChatMessage  `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Conversation.ID != 6 || body.Message.ConversationID != 6 {
		t.Fatalf("unexpected response: %+v", body)
	}
}

func TestSendFirstMessageRequiresCounterpart(t *testing.T) {
	service := &stubChatService{}
	app := newChatTestApp(service, 1024)

	req := multipartRequest(t, "/api/v1/messages", map[string]string{"text": "hi"}, "", "")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if service.sendCalls != 0 {
		t.Fatal("service must not be called without a counterpart")
	}
}

func TestCreateConversationDistinguishesExistingFromCreated(t *testing.T) {
	cases := []struct {
		name    string
		created bool
		want    int
	}{
		{name: "created", created: true, want: http.StatusCreated},
		{name: "existing", created: false, want: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubChatService{
				findResult:  &models.Conversation{ID: 5, ClientID: 10, ProviderID: 20},
				findCreated: tc.created,
			}
			app := newChatTestApp(service, 1024)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations",
				strings.NewReader(`{"role":"client","counterpart_id":20}`))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.StatusCode)
			}
			if service.lastCounterpartID != 20 {
				t.Fatalf("expected counterpart 20, got %d", service.lastCounterpartID)
			}
		})
	}
}

func TestLookupConversationWithoutHistoryReturnsCounterpart(t *testing.T) {
	service := &stubChatService{
		lookupErr: services.ErrConversationNotFound,
		card:      &models.ParticipantCard{ProfileID: 20, UserID: 7, Role: models.RoleProvider, Name: "Rita"},
	}
	app := newChatTestApp(service, 1024)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conversations/lookup?counterpart_id=20", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Conversation *models.Conversation    `json:"conversation"`
		Counterpart  *models.ParticipantCard `json:"counterpart"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Conversation != nil {
		t.Fatalf("expected no conversation, got %+v", body.Conversation)
	}
	if body.Counterpart == nil || body.Counterpart.Name != "Rita" {
		t.Fatalf("unexpected counterpart: %+v", body.Counterpart)
	}
}

func TestLookupConversationUnknownCounterpart(t *testing.T) {
	app := newChatTestApp(&stubChatService{lookupErr: services.ErrConversationNotFound}, 1024)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conversations/lookup?counterpart_id=99", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUnreadReturnsBadgesPerRole(t *testing.T) {
	app := newChatTestApp(&stubChatService{badges: models.UnreadBadges{Client: 2, Provider: 5}}, 1024)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/unread", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Unread models.UnreadBadges `json:"unread"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Unread.Client != 2 || body.Unread.Provider != 5 {
		t.Fatalf("unexpected badges: %+v", body.Unread)
	}
}

func TestMarkReadReturnsUpdatedCount(t *testing.T) {
	service := &stubChatService{}
	app := newChatTestApp(service, 1024)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/conversations/5/read", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastConversationID != 5 {
		t.Fatalf("expected conversation 5, got %d", service.lastConversationID)
	}
}

func TestChatRequiresIdentity(t *testing.T) {
	handler := NewChatHandler(&stubChatService{}, chatws.NewHub(5), nil, "secret", 1024)
	app := fiber.New()
	app.Get("/api/v1/conversations", handler.ListConversations)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestWebSocketAuthRequiresUpgrade(t *testing.T) {
	handler := NewChatHandler(&stubChatService{}, chatws.NewHub(5), nil, "secret", 1024)
	app := fiber.New()
	app.Get("/api/v1/ws", handler.WebSocketAuth)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/ws?token=abc", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", resp.StatusCode)
	}
}

func TestChatHandlerPassesRequestScopeToServices(t *testing.T) {
	service := &stubChatService{}
	handler := NewChatHandler(service, chatws.NewHub(5), nil, "secret", 1024)

	app := fiber.New()
	app.Use(requestid.New(), middleware.RequestContext())
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "42")
		c.Locals("account_type", "client")
		c.SetUserContext(observability.WithUserID(c.UserContext(), 42))
		return c.Next()
	})
	app.Get("/api/v1/conversations", handler.ListConversations)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	req.Header.Set(fiber.HeaderXRequestID, "req-123")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastCtx == nil {
		t.Fatal("service was not called")
	}
	if got := service.lastCtx.Value(observability.RequestIDKey); got != "req-123" {
		t.Fatalf("expected request id in service context, got %v", got)
	}
	if got := service.lastCtx.Value(observability.UserIDKey); got != int64(42) {
		t.Fatalf("expected user id in service context, got %v", got)
	}
}
