package services

import (
	"bufio"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/saeid-a/ToolConnectBack/internal/models"
)

// Attachment is a file travelling with a message, before it reaches the object store.
type Attachment struct {
	Filename    string
	ContentType string
	Body        io.Reader
	Size        int64
}

// ClassifyAttachment maps a MIME type to the stored attachment kind.
func ClassifyAttachment(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	if strings.HasPrefix(mediaType, "image/") {
		return models.AttachmentImage
	}
	return models.AttachmentFile
}

// EffectiveMessageText is the text stored for a message: a captionless file falls back to its filename.
func EffectiveMessageText(text string, attachmentType string, filename string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" && attachmentType == models.AttachmentFile {
		return attachmentDisplayName(filename)
	}
	return trimmed
}

// resolveContentType returns the declared type, sniffing the first bytes when none was sent.
// The returned reader must be used in place of the original body.
func (a *Attachment) resolveContentType() (string, io.Reader) {
	declared := strings.TrimSpace(a.ContentType)
	if declared != "" && declared != "application/octet-stream" {
		return declared, a.Body
	}

	buffered := bufio.NewReaderSize(a.Body, 512)
	head, _ := buffered.Peek(512)
	if len(head) == 0 {
		return "application/octet-stream", buffered
	}
	return http.DetectContentType(head), buffered
}

func attachmentObjectName(filename string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if ext == "" {
		ext = ".bin"
	}
	return uuid.NewString() + ext
}

func attachmentDisplayName(filename string) string {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == "/" || name == "" {
		return "attachment"
	}
	return name
}

func attachmentFolder(conversationID int64) string {
	return fmt.Sprintf("conversations/%d", conversationID)
}
