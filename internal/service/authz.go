package service

import (
	"smartcity/internal/model"

	"github.com/google/uuid"
)

// ownerOrAdmin reports whether user owns the resource or is an admin.
func ownerOrAdmin(user *model.User, ownerID uuid.UUID) bool {
	return user.Role == model.RoleAdmin || user.ID == ownerID
}

// isAssignee reports whether user is the department user the issue is assigned to.
func isAssignee(user *model.User, issue *model.Issue) bool {
	return user.Role == model.RoleDepartment && issue.AssignedTo != nil && *issue.AssignedTo == user.ID
}

// canComment allows the reporter, the assignee and admins to discuss an issue.
func canComment(user *model.User, issue *model.Issue) bool {
	return ownerOrAdmin(user, issue.ReportedBy) || isAssignee(user, issue)
}
