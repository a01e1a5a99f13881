package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"smartcity/internal/model"

	"github.com/google/uuid"
)

type ReportService struct {
	notifying
	reports ReportStore
	issues  IssueStore
}

func NewReportService(reports ReportStore, issues IssueStore, notifier Notifier, logger *slog.Logger) *ReportService {
	return &ReportService{
		notifying: notifying{notifier: notifier, logger: logger},
		reports:   reports,
		issues:    issues,
	}
}

// List returns all reports for admins and the own department's reports for
// department users.
func (s *ReportService) List(ctx context.Context, user *model.User) ([]model.Report, error) {
	switch user.Role {
	case model.RoleAdmin:
		return s.reports.List(ctx, nil)
	case model.RoleDepartment:
		if user.DepartmentID == nil {
			return []model.Report{}, nil
		}
		return s.reports.List(ctx, user.DepartmentID)
	}
	return nil, forbidden("not authorized")
}

// Create files a report for the author's department. files runs after the
// related issues have been checked.
func (s *ReportService) Create(ctx context.Context, user *model.User, req *model.CreateReportRequest, files Upload) (*model.Report, error) {
	if user.Role != model.RoleDepartment {
		return nil, forbidden("not authorized")
	}
	if user.DepartmentID == nil {
		return nil, invalidInput("your account is not linked to a department")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, invalidInput("title is required")
	}

	related, err := parseIDs(req.RelatedIssues)
	if err != nil {
		return nil, err
	}
	missing, err := s.issues.Missing(ctx, related)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, invalidReference("related issue not found: " + missing[0].String())
	}

	report := &model.Report{
		ID:            uuid.New(),
		Title:         title,
		Description:   strings.TrimSpace(req.Description),
		Files:         files.all(ctx),
		CreatedBy:     user.ID,
		DepartmentID:  *user.DepartmentID,
		RelatedIssues: related,
		CreatedAt:     time.Now(),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}

	s.notify(ctx, model.NotificationEvent{
		Type:     model.NotificationReport,
		SenderID: &user.ID,
		EntityID: report.ID,
		Message:  "New department report filed: " + report.Title,
	}, model.Roles(model.RoleAdmin))

	return report, nil
}

// parseIDs parses and deduplicates ids, keeping their order.
func parseIDs(raw []string) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{}, len(raw))
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, invalidInput("invalid issue id: " + s)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
