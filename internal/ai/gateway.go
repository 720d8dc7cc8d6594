package ai

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var ErrMissingCredential = errors.New("API key not configured")

const SystemInstruction = "You are a helpful AI assistant. You can analyze documents, images, code, and more. " +
	"When generating code, use markdown format with appropriate language tags. " +
	"When generating HTML code, make sure it's complete and functional."

// SessionHeader tags upstream requests with the chat session they belong to.
const SessionHeader = "X-Session-Id"

type Attachment struct {
	Path     string
	MimeType string
}

type CompletionRequest struct {
	SessionID   string
	Prompt      string
	Attachments []Attachment
}

// Gateway produces a single, complete reply for a prompt.
type Gateway interface {
	CheckCredential() error
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

func checkKey(apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return ErrMissingCredential
	}
	return nil
}

// readAttachment loads the attachment bytes and settles on a MIME type,
// falling back to the extension and then to content sniffing.
func readAttachment(a Attachment) ([]byte, string, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, "", fmt.Errorf("read attachment failed: %w", err)
	}
	mimeType := strings.TrimSpace(a.MimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(a.Path)); byExt != "" {
			mimeType = byExt
		} else {
			mimeType = http.DetectContentType(data)
		}
	}
	if base, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = base
	}
	return data, mimeType, nil
}
