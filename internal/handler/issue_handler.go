package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"smartcity/internal/media"
	"smartcity/internal/model"
	"smartcity/internal/service"

	"github.com/gin-gonic/gin"
)

const maxIssueImages = 5

type IssueHandler struct {
	issueService *service.IssueService
	uploader     uploader
	logger       *slog.Logger
}

func NewIssueHandler(issueService *service.IssueService, mediaHost media.Uploader, logger *slog.Logger) *IssueHandler {
	return &IssueHandler{
		issueService: issueService,
		uploader:     uploader{media: mediaHost, logger: logger},
		logger:       logger,
	}
}

func (h *IssueHandler) List(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	issues, err := h.issueService.List(c.Request.Context(), user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.IssueListResponse{Issues: issues, Total: len(issues)})
}

func (h *IssueHandler) Get(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	issue, err := h.issueService.Get(c.Request.Context(), user, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// Create takes a multipart form with up to five images. The location is
// either lat/lng fields or a GeoJSON style "location" array [lng, lat].
func (h *IssueHandler) Create(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	var req model.CreateIssueRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Lat == nil && req.Lng == nil {
		if raw := strings.TrimSpace(c.PostForm("location")); raw != "" {
			var coords []float64
			if err := json.Unmarshal([]byte(raw), &coords); err != nil || len(coords) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "location must be [longitude, latitude]"})
				return
			}
			req.Lng, req.Lat = &coords[0], &coords[1]
		}
	}

	images := h.uploader.deferred(c, "images", media.FolderIssues, maxIssueImages)

	issue, err := h.issueService.Create(c.Request.Context(), user, &req, images)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, issue)
}

func (h *IssueHandler) Update(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	issue, err := h.issueService.Update(c.Request.Context(), user, id, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (h *IssueHandler) Delete(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.issueService.Delete(c.Request.Context(), user, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Issue deleted successfully"})
}

func (h *IssueHandler) Assign(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req model.AssignIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	issue, err := h.issueService.Assign(c.Request.Context(), user, id, req.AssignedTo)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (h *IssueHandler) UpdateStatus(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateIssueStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	issue, err := h.issueService.UpdateStatus(c.Request.Context(), user, id, req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (h *IssueHandler) AddComment(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req model.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	comment, err := h.issueService.AddComment(c.Request.Context(), user, id, req.Text)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}
