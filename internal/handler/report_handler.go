package handler

import (
	"log/slog"
	"net/http"

	"smartcity/internal/media"
	"smartcity/internal/model"
	"smartcity/internal/service"

	"github.com/gin-gonic/gin"
)

const maxReportFiles = 10

type ReportHandler struct {
	reportService *service.ReportService
	uploader      uploader
	logger        *slog.Logger
}

func NewReportHandler(reportService *service.ReportService, mediaHost media.Uploader, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		uploader:      uploader{media: mediaHost, logger: logger},
		logger:        logger,
	}
}

func (h *ReportHandler) List(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	reports, err := h.reportService.List(c.Request.Context(), user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.ReportListResponse{Reports: reports, Total: len(reports)})
}

func (h *ReportHandler) Create(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	var req model.CreateReportRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.RelatedIssues = listField(req.RelatedIssues)

	files := h.uploader.deferred(c, "files", media.FolderReports, maxReportFiles)

	report, err := h.reportService.Create(c.Request.Context(), user, &req, files)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}
