package handler

import (
	"log/slog"
	"net/http"

	"smartcity/internal/model"
	"smartcity/internal/service"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatService *service.ChatService
	logger      *slog.Logger
}

func NewChatHandler(chatService *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, logger: logger}
}

func (h *ChatHandler) List(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	chats, err := h.chatService.List(c.Request.Context(), user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.ChatListResponse{Chats: chats, Total: len(chats)})
}

// Open returns the caller's direct chat with another user, creating it when
// it does not exist yet.
func (h *ChatHandler) Open(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	var req model.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	chat, created, err := h.chatService.OpenDirect(c.Request.Context(), user, req.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, chat)
}

func (h *ChatHandler) CreateGroup(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	var req model.CreateGroupChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	chat, err := h.chatService.CreateGroup(c.Request.Context(), user, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

func (h *ChatHandler) Messages(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	messages, err := h.chatService.Messages(c.Request.Context(), user, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.ChatMessagesResponse{Messages: messages, Total: len(messages)})
}

func (h *ChatHandler) Send(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	msg, err := h.chatService.Send(c.Request.Context(), user, id, req.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
