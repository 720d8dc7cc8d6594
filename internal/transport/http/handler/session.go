package handler

import (
	"github.com/gin-gonic/gin"

	"gopherai-chat/internal/app"
	"gopherai-chat/internal/transport/http/response"
)

type SessionHandler struct {
	conversations *app.ConversationService
}

func NewSessionHandler(conversations *app.ConversationService) *SessionHandler {
	return &SessionHandler{conversations: conversations}
}

func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.conversations.ListSessions(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, sessions)
}

func (h *SessionHandler) Create(c *gin.Context) {
	session, err := h.conversations.CreateSession(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, session)
}

func (h *SessionHandler) Messages(c *gin.Context) {
	messages, err := h.conversations.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, messages)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.conversations.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Session deleted"})
}
