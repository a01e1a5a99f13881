package handler

import (
	"context"
	"log/slog"
	"net/http"

	"smartcity/internal/media"
	"smartcity/internal/model"
	"smartcity/internal/service"

	"github.com/gin-gonic/gin"
)

type PollHandler struct {
	pollService *service.PollService
	uploader    uploader
	logger      *slog.Logger
}

func NewPollHandler(pollService *service.PollService, mediaHost media.Uploader, logger *slog.Logger) *PollHandler {
	return &PollHandler{
		pollService: pollService,
		uploader:    uploader{media: mediaHost, logger: logger},
		logger:      logger,
	}
}

func (h *PollHandler) List(c *gin.Context) {
	h.list(c, h.pollService.List)
}

func (h *PollHandler) ListActive(c *gin.Context) {
	h.list(c, h.pollService.ListActive)
}

func (h *PollHandler) list(c *gin.Context, fetch func(context.Context, *model.User) ([]model.PollView, error)) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	polls, err := fetch(c.Request.Context(), user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.PollListResponse{Polls: polls, Total: len(polls)})
}

func (h *PollHandler) Get(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	poll, err := h.pollService.Get(c.Request.Context(), user, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, poll)
}

// Create takes a multipart form (or JSON) with an optional image.
func (h *PollHandler) Create(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	var req model.CreatePollRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.Options = listField(req.Options)

	image := h.uploader.deferred(c, "image", media.FolderPolls, 1)

	poll, err := h.pollService.Create(c.Request.Context(), user, &req, image)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, poll)
}

func (h *PollHandler) Update(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req model.UpdatePollRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	image := h.uploader.deferred(c, "image", media.FolderPolls, 1)

	poll, err := h.pollService.Update(c.Request.Context(), user, id, &req, image)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, poll)
}

func (h *PollHandler) Delete(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.pollService.Delete(c.Request.Context(), user, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Poll deleted successfully"})
}

func (h *PollHandler) Vote(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req model.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	poll, err := h.pollService.Vote(c.Request.Context(), user, id, req.OptionID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, poll)
}

func (h *PollHandler) RetractVote(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	poll, err := h.pollService.RetractVote(c.Request.Context(), user, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, poll)
}
