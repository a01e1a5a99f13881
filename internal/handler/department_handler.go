package handler

import (
	"log/slog"
	"net/http"

	"smartcity/internal/model"
	"smartcity/internal/service"

	"github.com/gin-gonic/gin"
)

type DepartmentHandler struct {
	departmentService *service.DepartmentService
	logger            *slog.Logger
}

func NewDepartmentHandler(departmentService *service.DepartmentService, logger *slog.Logger) *DepartmentHandler {
	return &DepartmentHandler{departmentService: departmentService, logger: logger}
}

func (h *DepartmentHandler) List(c *gin.Context) {
	departments, err := h.departmentService.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"departments": departments, "total": len(departments)})
}

func (h *DepartmentHandler) Create(c *gin.Context) {
	admin, ok := sessionUser(c)
	if !ok {
		return
	}

	var req model.CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	dept, err := h.departmentService.Create(c.Request.Context(), admin, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dept)
}
