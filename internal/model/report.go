package model

import (
	"time"

	"github.com/google/uuid"
)

type Report struct {
	ID            uuid.UUID   `json:"id"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Files         []string    `json:"files"`
	CreatedBy     uuid.UUID   `json:"created_by"`
	DepartmentID  uuid.UUID   `json:"department_id"`
	RelatedIssues []uuid.UUID `json:"related_issues"`
	CreatedAt     time.Time   `json:"created_at"`
}

type CreateReportRequest struct {
	Title       string `form:"title" json:"title" binding:"required"`
	Description string `form:"description" json:"description"`
	// RelatedIssues may be repeated fields or a single JSON array.
	RelatedIssues []string `form:"related_issues" json:"related_issues"`
}

type ReportListResponse struct {
	Reports []Report `json:"reports"`
	Total   int      `json:"total"`
}
