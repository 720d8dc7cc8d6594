package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"gopherai-chat/internal/app"
	"gopherai-chat/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type ChatStreamRequest struct {
	Message   string   `json:"message"`
	SessionID string   `json:"session_id" binding:"required"`
	Files     []string `json:"files"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Stream answers with a text/event-stream body holding exactly one frame:
// {"content": ..., "done": true} or {"error": ...}. Errors raised before the
// user message is stored are plain JSON responses instead.
func (h *ChatHandler) Stream(c *gin.Context) {
	var req ChatStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload: "+err.Error())
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, "stream not supported")
		return
	}

	err := h.chatService.StreamMessage(c.Request.Context(), app.SendMessageInput{
		SessionID: req.SessionID,
		Message:   req.Message,
		Files:     req.Files,
	}, func(frame app.Frame) error {
		payload := gin.H{"content": frame.Content, "done": true}
		if frame.Err != nil {
			_ = c.Error(frame.Err)
			payload = gin.H{"error": frame.Err.Error()}
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		if _, err := c.Writer.Write(encodeFrame(payload)); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		response.FromError(c, err)
	}
}

// encodeFrame renders one SSE data frame. HTML is left unescaped so code
// replies reach the client verbatim.
func encodeFrame(payload gin.H) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)

	out := make([]byte, 0, buf.Len()+8)
	out = append(out, "data: "...)
	out = append(out, bytes.TrimRight(buf.Bytes(), "\n")...)
	out = append(out, "\n\n"...)
	return out
}
