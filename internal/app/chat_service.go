package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopherai-chat/internal/ai"
	"gopherai-chat/internal/model"
	"gopherai-chat/internal/observability"
)

var ErrGatewayCredential = fmt.Errorf("%w: %w", ErrGateway, ai.ErrMissingCredential)

// ChatService runs one chat turn: persist the user message, ask the gateway,
// persist the reply and hand a single frame to the caller.
type ChatService struct {
	conversations *ConversationService
	files         *FileService
	gateway       ai.Gateway
}

type SendMessageInput struct {
	SessionID string
	Message   string
	Files     []string
}

// Frame is the one terminal result of a turn. Exactly one of Content or Err is meaningful.
type Frame struct {
	Content string
	Err     error
}

func NewChatService(conversations *ConversationService, files *FileService, gateway ai.Gateway) *ChatService {
	return &ChatService{
		conversations: conversations,
		files:         files,
		gateway:       gateway,
	}
}

// StreamMessage returns an error only when the turn fails before any frame is
// produced. Once the user message is stored, failures are reported through
// emit as an error frame and StreamMessage returns nil.
//
// The completion and the reply persistence are detached from ctx cancellation:
// a client that goes away does not stop them.
func (s *ChatService) StreamMessage(ctx context.Context, input SendMessageInput, emit func(Frame) error) error {
	if strings.TrimSpace(input.SessionID) == "" {
		return fmt.Errorf("%w: session_id is required", ErrValidation)
	}
	if err := s.gateway.CheckCredential(); err != nil {
		if errors.Is(err, ai.ErrMissingCredential) {
			return ErrGatewayCredential
		}
		return fmt.Errorf("%w: %w", ErrGateway, err)
	}

	attachments, err := s.resolveAttachments(ctx, input.Files)
	if err != nil {
		return err
	}

	if _, err := s.conversations.AppendMessage(ctx, input.SessionID, model.RoleUser, input.Message, input.Files); err != nil {
		return err
	}
	if err := s.conversations.TouchSession(ctx, input.SessionID); err != nil {
		return err
	}

	frame := s.complete(context.WithoutCancel(ctx), input, attachments)
	if err := emit(frame); err != nil {
		observability.FromContext(ctx).Warn("emit chat frame failed", "session_id", input.SessionID, "error", err)
	}
	return nil
}

func (s *ChatService) complete(ctx context.Context, input SendMessageInput, attachments []ai.Attachment) Frame {
	logger := observability.FromContext(ctx)

	reply, err := s.gateway.Complete(ctx, ai.CompletionRequest{
		SessionID:   input.SessionID,
		Prompt:      input.Message,
		Attachments: attachments,
	})
	if err != nil {
		logger.Error("chat completion failed", "session_id", input.SessionID, "error", err)
		return Frame{Err: fmt.Errorf("%w: %w", ErrGateway, err)}
	}

	if _, err := s.conversations.AppendMessage(ctx, input.SessionID, model.RoleAssistant, reply, nil); err != nil {
		logger.Error("persist assistant message failed", "session_id", input.SessionID, "error", err)
		return Frame{Err: err}
	}
	return Frame{Content: reply}
}

// resolveAttachments maps file ids to attachments, dropping ids that are unknown.
func (s *ChatService) resolveAttachments(ctx context.Context, fileIDs []string) ([]ai.Attachment, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	attachments := make([]ai.Attachment, 0, len(fileIDs))
	for _, id := range fileIDs {
		file, err := s.files.Lookup(ctx, id)
		if errors.Is(err, ErrNotFound) {
			observability.FromContext(ctx).Info("skipping unknown attachment", "file_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, ai.Attachment{
			Path:     file.Path,
			MimeType: file.ContentType,
		})
	}
	return attachments, nil
}
