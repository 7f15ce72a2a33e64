package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/saeid-a/ToolConnectBack/internal/models"
	"github.com/saeid-a/ToolConnectBack/internal/repository"
)

type stubMessageStore struct {
	appendErr   error
	appendCalls int
	lastAppend  repository.CreateMessageInput
	listResult  []models.ChatMessage
	markResult  int64
	lastReader  int64
}

func (s *stubMessageStore) Append(_ context.Context, input repository.CreateMessageInput) (*models.ChatMessage, error) {
	s.appendCalls++
	s.lastAppend = input
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	return &models.ChatMessage{
		ID:             int64(100 + s.appendCalls),
		ConversationID: input.ConversationID,
		SenderID:       input.SenderID,
		MessageText:    input.MessageText,
		AttachmentURL:  input.AttachmentURL,
		AttachmentType: input.AttachmentType,
		AttachmentName: input.AttachmentName,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

func (s *stubMessageStore) ListByConversation(_ context.Context, _ int64) ([]models.ChatMessage, error) {
	return s.listResult, nil
}

func (s *stubMessageStore) MarkConversationRead(_ context.Context, _ int64, readerID int64) (int64, error) {
	s.lastReader = readerID
	return s.markResult, nil
}

type stubObjectStore struct {
	uploadURL   string
	uploadErr   error
	deleteErr   error
	lastObject  UploadObject
	lastBody    []byte
	deletedURLs []string
}

func (s *stubObjectStore) Upload(_ context.Context, object UploadObject) (string, error) {
	s.lastObject = object
	if object.Body != nil {
		s.lastBody, _ = io.ReadAll(object.Body)
	}
	return s.uploadURL, s.uploadErr
}

func (s *stubObjectStore) Delete(_ context.Context, fileURL string) error {
	s.deletedURLs = append(s.deletedURLs, fileURL)
	return s.deleteErr
}

func TestAppendRejectsEmptyMessage(t *testing.T) {
	store := &stubMessageStore{}
	log := NewMessageLog(store, &stubObjectStore{})

	_, err := log.Append(context.Background(), AppendInput{ConversationID: 1, SenderID: 2, Text: "  \n "})
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if store.appendCalls != 0 {
		t.Fatal("expected no store call for an empty message")
	}
}

func TestAppendTrimsText(t *testing.T) {
	store := &stubMessageStore{}
	log := NewMessageLog(store, nil)

	message, err := log.Append(context.Background(), AppendInput{ConversationID: 1, SenderID: 2, Text: "  hello  "})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if message.MessageText != "hello" || message.AttachmentURL != nil {
		t.Fatalf("unexpected message: %+v", message)
	}
}

func TestAppendUploadFailureWritesNothing(t *testing.T) {
	store := &stubMessageStore{}
	objects := &stubObjectStore{uploadErr: errors.New("bucket offline")}
	log := NewMessageLog(store, objects)

	_, err := log.Append(context.Background(), AppendInput{
		ConversationID: 1,
		SenderID:       2,
		Text:           "quote attached",
		Attachment:     &Attachment{Filename: "quote.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF")},
	})
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	if store.appendCalls != 0 {
		t.Fatal("expected no message row after upload failure")
	}
}

func TestAppendFileWithoutTextUsesFilename(t *testing.T) {
	store := &stubMessageStore{}
	objects := &stubObjectStore{uploadURL: "https://cdn.example/conversations/1/a.pdf"}
	log := NewMessageLog(store, objects)

	message, err := log.Append(context.Background(), AppendInput{
		ConversationID: 1,
		SenderID:       2,
		Attachment:     &Attachment{Filename: "invoice-march.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF-1.4")},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if message.MessageText != "invoice-march.pdf" {
		t.Fatalf("expected filename as text, got %q", message.MessageText)
	}
	if message.AttachmentType == nil || *message.AttachmentType != models.AttachmentFile {
		t.Fatalf("expected file attachment, got %v", message.AttachmentType)
	}
	if objects.lastObject.Folder != "conversations/1" || !strings.HasSuffix(objects.lastObject.Name, ".pdf") {
		t.Fatalf("unexpected object placement: %+v", objects.lastObject)
	}
	if string(objects.lastBody) != "%PDF-1.4" {
		t.Fatalf("expected body to reach the store, got %q", objects.lastBody)
	}
}

func TestAppendImageMayHaveEmptyText(t *testing.T) {
	store := &stubMessageStore{}
	objects := &stubObjectStore{uploadURL: "https://cdn.example/conversations/1/p.png"}
	log := NewMessageLog(store, objects)

	message, err := log.Append(context.Background(), AppendInput{
		ConversationID: 1,
		SenderID:       2,
		Attachment:     &Attachment{Filename: "photo.png", ContentType: "image/png", Body: bytes.NewReader([]byte{0x89, 'P', 'N', 'G'})},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if message.MessageText != "" {
		t.Fatalf("expected empty text for image, got %q", message.MessageText)
	}
	if *message.AttachmentType != models.AttachmentImage {
		t.Fatalf("expected image attachment, got %q", *message.AttachmentType)
	}
}

func TestAppendSniffsMissingContentType(t *testing.T) {
	store := &stubMessageStore{}
	objects := &stubObjectStore{uploadURL: "https://cdn.example/x.png"}
	log := NewMessageLog(store, objects)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	message, err := log.Append(context.Background(), AppendInput{
		ConversationID: 1,
		SenderID:       2,
		Attachment:     &Attachment{Filename: "upload", Body: bytes.NewReader(png)},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if *message.AttachmentType != models.AttachmentImage {
		t.Fatalf("expected sniffed image, got %q", *message.AttachmentType)
	}
	if objects.lastObject.ContentType != "image/png" {
		t.Fatalf("expected image/png, got %q", objects.lastObject.ContentType)
	}
	if !bytes.Equal(objects.lastBody, png) {
		t.Fatal("sniffing must not consume the body")
	}
}

func TestAppendStoreFailureDeletesUpload(t *testing.T) {
	store := &stubMessageStore{appendErr: errors.New("insert failed")}
	objects := &stubObjectStore{uploadURL: "https://cdn.example/orphan.pdf"}
	log := NewMessageLog(store, objects)

	_, err := log.Append(context.Background(), AppendInput{
		ConversationID: 1,
		SenderID:       2,
		Attachment:     &Attachment{Filename: "a.pdf", ContentType: "application/pdf", Body: strings.NewReader("x")},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(objects.deletedURLs) != 1 || objects.deletedURLs[0] != "https://cdn.example/orphan.pdf" {
		t.Fatalf("expected uploaded object to be deleted, got %v", objects.deletedURLs)
	}
}

func TestAppendAttachmentWithoutStorage(t *testing.T) {
	log := NewMessageLog(&stubMessageStore{}, nil)

	_, err := log.Append(context.Background(), AppendInput{
		ConversationID: 1,
		SenderID:       2,
		Attachment:     &Attachment{Filename: "a.pdf", Body: strings.NewReader("x")},
	})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestMarkAllReadExceptSender(t *testing.T) {
	store := &stubMessageStore{markResult: 3}
	log := NewMessageLog(store, nil)

	affected, err := log.MarkAllReadExceptSender(context.Background(), 5, 8)
	if err != nil {
		t.Fatalf("MarkAllReadExceptSender: %v", err)
	}
	if affected != 3 || store.lastReader != 8 {
		t.Fatalf("unexpected result: affected=%d reader=%d", affected, store.lastReader)
	}
}

func TestClassifyAttachment(t *testing.T) {
	cases := map[string]string{
		"image/jpeg":               models.AttachmentImage,
		"IMAGE/PNG":                models.AttachmentImage,
		"image/webp; q=0.9":        models.AttachmentImage,
		"application/pdf":          models.AttachmentFile,
		"":                         models.AttachmentFile,
		"text/plain; charset=utf8": models.AttachmentFile,
	}
	for contentType, want := range cases {
		if got := ClassifyAttachment(contentType); got != want {
			t.Errorf("ClassifyAttachment(%q) = %q, want %q", contentType, got, want)
		}
	}
}

func stringsReader(value string) io.Reader {
	return strings.NewReader(value)
}
