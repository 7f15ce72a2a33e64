package services

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/ToolConnectBack/internal/models"
	"github.com/saeid-a/ToolConnectBack/internal/repository"
)

type stubAccounts struct {
	byUser map[int64]models.AccountProfiles
}

func (s *stubAccounts) GetAccountProfiles(_ context.Context, userID int64) (models.AccountProfiles, error) {
	account, ok := s.byUser[userID]
	if !ok {
		return models.AccountProfiles{}, pgx.ErrNoRows
	}
	return account, nil
}

type stubClientProfiles struct {
	byID map[int64]*models.ClientProfile
}

func (s *stubClientProfiles) GetByUserID(_ context.Context, userID int64) (*models.ClientProfile, error) {
	for _, profile := range s.byID {
		if profile.UserID == userID {
			return profile, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubClientProfiles) GetByID(_ context.Context, profileID int64) (*models.ClientProfile, error) {
	if profile, ok := s.byID[profileID]; ok {
		return profile, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *stubClientProfiles) CompleteOnboarding(_ context.Context, _ int64, _ repository.ClientOnboardingInput) (*models.ClientProfile, error) {
	return nil, errors.New("not implemented")
}

func (s *stubClientProfiles) UpdatePartial(_ context.Context, _ int64, _ repository.UpdateClientProfileInput) (*models.ClientProfile, error) {
	return nil, pgx.ErrNoRows
}

type stubProviderProfiles struct {
	byID map[int64]*models.ProviderProfile
}

func (s *stubProviderProfiles) GetByUserID(_ context.Context, userID int64) (*models.ProviderProfile, error) {
	for _, profile := range s.byID {
		if profile.UserID == userID {
			return profile, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubProviderProfiles) GetByID(_ context.Context, profileID int64) (*models.ProviderProfile, error) {
	if profile, ok := s.byID[profileID]; ok {
		return profile, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *stubProviderProfiles) List(_ context.Context, _ repository.ProviderListFilter) ([]models.ProviderProfile, int, error) {
	return nil, 0, nil
}

func (s *stubProviderProfiles) CompleteOnboarding(_ context.Context, _ int64, _ repository.ProviderOnboardingInput) (*models.ProviderProfile, error) {
	return nil, errors.New("not implemented")
}

func (s *stubProviderProfiles) UpdatePartial(_ context.Context, _ int64, _ repository.UpdateProviderProfileInput) (*models.ProviderProfile, error) {
	return nil, pgx.ErrNoRows
}

type stubConversationReader struct {
	parties map[int64]*models.ConversationParties
}

func (s *stubConversationReader) GetParties(_ context.Context, conversationID int64) (*models.ConversationParties, error) {
	if parties, ok := s.parties[conversationID]; ok {
		return parties, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *stubConversationReader) ListForProfile(_ context.Context, _ models.Role, _ int64, _ int64) ([]models.ConversationSummary, error) {
	return nil, nil
}

// stubTransactor runs the callback against the non-transactional directory and log.
type stubTransactor struct {
	directory *ConversationDirectory
	log       *MessageLog
	commitErr error
}

func (s *stubTransactor) InTx(_ context.Context, fn func(directory *ConversationDirectory, log *MessageLog) error) error {
	if err := fn(s.directory, s.log); err != nil {
		return err
	}
	return s.commitErr
}

type publishedMessage struct {
	message   models.ChatMessage
	recipient int64
	role      models.Role
}

type stubPublisher struct {
	published []publishedMessage
}

func (s *stubPublisher) PublishMessage(_ context.Context, message models.ChatMessage, recipientUserID int64, recipientRole models.Role) {
	s.published = append(s.published, publishedMessage{message: message, recipient: recipientUserID, role: recipientRole})
}

type chatFixture struct {
	service       *ChatService
	conversations *stubConversationStore
	messages      *stubMessageStore
	objects       *stubObjectStore
	publisher     *stubPublisher
	tx            *stubTransactor
}

// Account 1 holds client profile 10 and provider profile 11; account 2 holds provider profile 20.
func newChatFixture() *chatFixture {
	name := "Sam"
	accounts := &stubAccounts{byUser: map[int64]models.AccountProfiles{
		1: {UserID: 1, ClientProfileID: 10, ProviderProfileID: 11},
		2: {UserID: 2, ProviderProfileID: 20},
	}}
	clients := &stubClientProfiles{byID: map[int64]*models.ClientProfile{
		10: {ID: 10, UserID: 1, Name: &name},
	}}
	providers := &stubProviderProfiles{byID: map[int64]*models.ProviderProfile{
		11: {ID: 11, UserID: 1},
		20: {ID: 20, UserID: 2},
	}}
	reader := &stubConversationReader{parties: map[int64]*models.ConversationParties{
		5: {Conversation: models.Conversation{ID: 5, ClientID: 10, ProviderID: 20}, ClientUserID: 1, ProviderUserID: 2},
	}}

	conversationStore := &stubConversationStore{
		findErrs:   []error{pgx.ErrNoRows},
		insertConv: &models.Conversation{ID: 6, ClientID: 10, ProviderID: 20},
		inserted:   true,
	}
	messageStore := &stubMessageStore{}
	objects := &stubObjectStore{uploadURL: "https://cdn.example/file.pdf"}
	directory := NewConversationDirectory(conversationStore)
	log := NewMessageLog(messageStore, objects)
	tx := &stubTransactor{directory: directory, log: log}
	publisher := &stubPublisher{}

	service := NewChatService(
		tx,
		directory,
		log,
		NewUnreadTracker(&stubUnreadStore{}),
		reader,
		NewProfileService(accounts, clients, providers),
		publisher,
	)
	return &chatFixture{
		service:       service,
		conversations: conversationStore,
		messages:      messageStore,
		objects:       objects,
		publisher:     publisher,
		tx:            tx,
	}
}

func TestResolveViewer(t *testing.T) {
	fixture := newChatFixture()

	viewer, err := fixture.service.ResolveViewer(context.Background(), 1, models.RoleProvider)
	if err != nil {
		t.Fatalf("ResolveViewer: %v", err)
	}
	if viewer.ProfileID != 11 {
		t.Fatalf("expected provider profile 11, got %d", viewer.ProfileID)
	}

	if _, err := fixture.service.ResolveViewer(context.Background(), 2, models.RoleClient); !errors.Is(err, ErrRoleUnavailable) {
		t.Fatalf("expected ErrRoleUnavailable, got %v", err)
	}
}

func TestSendMessagePublishesToCounterpart(t *testing.T) {
	fixture := newChatFixture()
	viewer := models.Viewer{UserID: 1, Role: models.RoleClient, ProfileID: 10}

	message, err := fixture.service.SendMessage(context.Background(), viewer, 5, "Is Saturday ok?", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if message.SenderID != 1 || message.ConversationID != 5 {
		t.Fatalf("unexpected message: %+v", message)
	}
	if len(fixture.publisher.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(fixture.publisher.published))
	}
	published := fixture.publisher.published[0]
	if published.recipient != 2 || published.role != models.RoleProvider {
		t.Fatalf("unexpected recipient: %+v", published)
	}
}

func TestSendMessageRejectsOtherProfileOfSameAccount(t *testing.T) {
	fixture := newChatFixture()
	viewer := models.Viewer{UserID: 1, Role: models.RoleProvider, ProfileID: 11}

	_, err := fixture.service.SendMessage(context.Background(), viewer, 5, "hello", nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if fixture.messages.appendCalls != 0 {
		t.Fatal("expected no append")
	}
}

func TestSendMessageUnknownConversation(t *testing.T) {
	fixture := newChatFixture()
	viewer := models.Viewer{UserID: 1, Role: models.RoleClient, ProfileID: 10}

	if _, err := fixture.service.SendMessage(context.Background(), viewer, 99, "hello", nil); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestSendToCounterpartCreatesConversationOnce(t *testing.T) {
	fixture := newChatFixture()
	viewer := models.Viewer{UserID: 1, Role: models.RoleClient, ProfileID: 10}

	conversation, message, err := fixture.service.SendToCounterpart(context.Background(), viewer, 20, "Need a plumber", nil)
	if err != nil {
		t.Fatalf("SendToCounterpart: %v", err)
	}
	if conversation.ID != 6 || message.ConversationID != 6 {
		t.Fatalf("expected conversation 6, got %+v / %+v", conversation, message)
	}
	if fixture.conversations.insertCalls != 1 {
		t.Fatalf("expected one insert, got %d", fixture.conversations.insertCalls)
	}
	if len(fixture.publisher.published) != 1 || fixture.publisher.published[0].recipient != 2 {
		t.Fatalf("unexpected publishes: %+v", fixture.publisher.published)
	}
}

func TestSendToCounterpartEmptyDraftCreatesNothing(t *testing.T) {
	fixture := newChatFixture()
	viewer := models.Viewer{UserID: 1, Role: models.RoleClient, ProfileID: 10}

	_, _, err := fixture.service.SendToCounterpart(context.Background(), viewer, 20, " ", nil)
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if fixture.conversations.insertCalls != 0 || fixture.conversations.findCalls != 0 {
		t.Fatal("expected no directory calls")
	}
}

func TestSendToCounterpartRejectsOwnProfile(t *testing.T) {
	fixture := newChatFixture()
	viewer := models.Viewer{UserID: 1, Role: models.RoleClient, ProfileID: 10}

	if _, _, err := fixture.service.SendToCounterpart(context.Background(), viewer, 11, "hi me", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSendToCounterpartUnknownProfile(t *testing.T) {
	fixture := newChatFixture()
	viewer := models.Viewer{UserID: 1, Role: models.RoleClient, ProfileID: 10}

	if _, _, err := fixture.service.SendToCounterpart(context.Background(), viewer, 404, "hello", nil); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestSendToCounterpartCommitFailureDiscardsUpload(t *testing.T) {
	fixture := newChatFixture()
	fixture.tx.commitErr = errors.New("commit failed")
	viewer := models.Viewer{UserID: 1, Role: models.RoleClient, ProfileID: 10}

	_, _, err := fixture.service.SendToCounterpart(context.Background(), viewer, 20, "", &Attachment{
		Filename:    "estimate.pdf",
		ContentType: "application/pdf",
		Body:        stringsReader("%PDF"),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(fixture.objects.deletedURLs) != 1 {
		t.Fatalf("expected uploaded object to be discarded, got %v", fixture.objects.deletedURLs)
	}
	if len(fixture.publisher.published) != 0 {
		t.Fatal("expected nothing published")
	}
}

func TestLookupConversationOrdersPairByRole(t *testing.T) {
	fixture := newChatFixture()
	fixture.conversations.findErrs = nil
	fixture.conversations.findResults = []*models.Conversation{{ID: 5, ClientID: 10, ProviderID: 20}}
	viewer := models.Viewer{UserID: 2, Role: models.RoleProvider, ProfileID: 20}

	conversation, err := fixture.service.LookupConversation(context.Background(), viewer, 10)
	if err != nil {
		t.Fatalf("LookupConversation: %v", err)
	}
	if conversation.ID != 5 {
		t.Fatalf("expected conversation 5, got %+v", conversation)
	}
	if fixture.conversations.insertCalls != 0 {
		t.Fatal("lookup must not insert")
	}
}

func TestOpenConversationMarksRead(t *testing.T) {
	fixture := newChatFixture()
	fixture.messages.listResult = []models.ChatMessage{{ID: 1, ConversationID: 5, SenderID: 2}}
	viewer := models.Viewer{UserID: 1, Role: models.RoleClient, ProfileID: 10}

	messages, err := fixture.service.OpenConversation(context.Background(), viewer, 5)
	if err != nil {
		t.Fatalf("OpenConversation: %v", err)
	}
	if len(messages) != 1 || fixture.messages.lastReader != 1 {
		t.Fatalf("expected history and mark-read for reader 1, got %d messages, reader %d", len(messages), fixture.messages.lastReader)
	}
}
