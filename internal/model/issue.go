package model

import (
	"time"

	"github.com/google/uuid"
)

type IssueStatus string

const (
	StatusPending    IssueStatus = "Pending"
	StatusAssigned   IssueStatus = "Assigned"
	StatusInProgress IssueStatus = "In Progress"
	StatusResolved   IssueStatus = "Resolved"
)

var statusRank = map[IssueStatus]int{
	StatusPending:    0,
	StatusAssigned:   1,
	StatusInProgress: 2,
	StatusResolved:   3,
}

func (s IssueStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Before reports whether s comes strictly earlier than other in the
// Pending -> Assigned -> In Progress -> Resolved order.
func (s IssueStatus) Before(other IssueStatus) bool {
	return statusRank[s] < statusRank[other]
}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Comment struct {
	ID        uuid.UUID `json:"id"`
	IssueID   uuid.UUID `json:"issue_id"`
	Text      string    `json:"text"`
	PostedBy  uuid.UUID `json:"posted_by"`
	CreatedAt time.Time `json:"created_at"`
}

type Issue struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Images      []string    `json:"images"`
	Location    *Location   `json:"location,omitempty"`
	Status      IssueStatus `json:"status"`
	ReportedBy  uuid.UUID   `json:"reported_by"`
	AssignedTo  *uuid.UUID  `json:"assigned_to,omitempty"`
	AssignedBy  *uuid.UUID  `json:"assigned_by,omitempty"`
	AssignedAt  *time.Time  `json:"assigned_at,omitempty"`
	ResolvedAt  *time.Time  `json:"resolved_at,omitempty"`
	Comments    []Comment   `json:"comments"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IssueFilter narrows Issue listings. Empty fields match everything.
type IssueFilter struct {
	ReportedBy *uuid.UUID
	// AssignedToAny matches issues assigned to any of these users.
	AssignedToAny []uuid.UUID
}

// Request/Response DTOs
type CreateIssueRequest struct {
	Title       string   `form:"title" json:"title" binding:"required"`
	Description string   `form:"description" json:"description" binding:"required"`
	Category    string   `form:"category" json:"category" binding:"required"`
	Lat         *float64 `form:"lat" json:"lat"`
	Lng         *float64 `form:"lng" json:"lng"`
}

type UpdateIssueRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
}

type AssignIssueRequest struct {
	AssignedTo uuid.UUID `json:"assigned_to" binding:"required"`
}

type UpdateIssueStatusRequest struct {
	Status IssueStatus `json:"status" binding:"required"`
}

type AddCommentRequest struct {
	Text string `json:"text" binding:"required,max=2000"`
}

type IssueListResponse struct {
	Issues []Issue `json:"issues"`
	Total  int     `json:"total"`
}
