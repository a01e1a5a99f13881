package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"smartcity/internal/model"
	"smartcity/internal/repository"

	"github.com/google/uuid"
)

type IssueService struct {
	notifying
	issues IssueStore
	users  UserStore
	now    func() time.Time
}

func NewIssueService(issues IssueStore, users UserStore, notifier Notifier, logger *slog.Logger) *IssueService {
	return &IssueService{
		notifying: notifying{notifier: notifier, logger: logger},
		issues:    issues,
		users:     users,
		now:       time.Now,
	}
}

// List returns the issues visible to user: citizens see their own reports,
// department users see issues assigned to anyone in their department, admins
// see everything.
func (s *IssueService) List(ctx context.Context, user *model.User) ([]model.Issue, error) {
	var filter model.IssueFilter
	switch user.Role {
	case model.RoleCitizen:
		filter.ReportedBy = &user.ID
	case model.RoleDepartment:
		assignees, err := s.departmentMembers(ctx, user)
		if err != nil {
			return nil, err
		}
		filter.AssignedToAny = assignees
	case model.RoleAdmin:
	default:
		return nil, forbidden("not authorized")
	}
	return s.issues.List(ctx, filter)
}

func (s *IssueService) Get(ctx context.Context, user *model.User, id uuid.UUID) (*model.Issue, error) {
	issue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.canView(ctx, user, issue)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, forbidden("not authorized to view this issue")
	}
	return issue, nil
}

// Create files a new Pending issue and notifies every admin. images runs
// once the request is known to be valid.
func (s *IssueService) Create(ctx context.Context, user *model.User, req *model.CreateIssueRequest, images Upload) (*model.Issue, error) {
	if user.Role != model.RoleCitizen {
		return nil, forbidden("only citizens can report issues")
	}

	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	category := strings.TrimSpace(req.Category)
	if title == "" || description == "" || category == "" {
		return nil, invalidInput("title, description and category are required")
	}

	location, err := parseLocation(req.Lat, req.Lng)
	if err != nil {
		return nil, err
	}

	now := s.now()
	issue := &model.Issue{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Category:    category,
		Images:      images.all(ctx),
		Location:    location,
		Status:      model.StatusPending,
		ReportedBy:  user.ID,
		Comments:    []model.Comment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, err
	}

	s.notify(ctx, model.NotificationEvent{
		Type:     model.NotificationIssue,
		SenderID: &user.ID,
		EntityID: issue.ID,
		Message:  "New issue reported: " + issue.Title,
	}, model.Roles(model.RoleAdmin))

	return issue, nil
}

// Update edits the descriptive fields. Allowed for the reporter or an admin
// at any status. Status and assignment are left as stored.
func (s *IssueService) Update(ctx context.Context, user *model.User, id uuid.UUID, req *model.UpdateIssueRequest) (*model.Issue, error) {
	fields := []struct {
		in  *string
		out func(*model.Issue) *string
	}{
		{req.Title, func(i *model.Issue) *string { return &i.Title }},
		{req.Description, func(i *model.Issue) *string { return &i.Description }},
		{req.Category, func(i *model.Issue) *string { return &i.Category }},
	}
	for _, f := range fields {
		if f.in != nil && strings.TrimSpace(*f.in) == "" {
			return nil, invalidInput("fields cannot be empty")
		}
	}

	issue, err := s.issues.Mutate(ctx, id, func(issue *model.Issue) error {
		if !ownerOrAdmin(user, issue.ReportedBy) {
			return forbidden("not authorized to edit this issue")
		}
		for _, f := range fields {
			if f.in != nil {
				*f.out(issue) = strings.TrimSpace(*f.in)
			}
		}
		issue.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, s.storeErr(err)
	}
	return issue, nil
}

func (s *IssueService) Delete(ctx context.Context, user *model.User, id uuid.UUID) error {
	issue, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !ownerOrAdmin(user, issue.ReportedBy) {
		return forbidden("not authorized to delete this issue")
	}
	return s.storeErr(s.issues.Delete(ctx, id))
}

// Assign hands the issue to an active department user. Reassignment is
// allowed until work has started.
func (s *IssueService) Assign(ctx context.Context, admin *model.User, id, assigneeID uuid.UUID) (*model.Issue, error) {
	if admin.Role != model.RoleAdmin {
		return nil, forbidden("not authorized")
	}

	issue, err := s.issues.Mutate(ctx, id, func(issue *model.Issue) error {
		assignee, err := s.users.FindByID(ctx, assigneeID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if assignee == nil || assignee.Role != model.RoleDepartment || !assignee.IsActive {
			return invalidReference("invalid department official")
		}
		if issue.Status != model.StatusPending && issue.Status != model.StatusAssigned {
			return invalidInput(fmt.Sprintf("cannot reassign an issue that is %s", issue.Status))
		}

		now := s.now()
		issue.Status = model.StatusAssigned
		issue.AssignedTo = &assignee.ID
		issue.AssignedBy = &admin.ID
		issue.AssignedAt = &now
		issue.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, s.storeErr(err)
	}

	s.notify(ctx, model.NotificationEvent{
		Type:     model.NotificationAssignment,
		SenderID: &admin.ID,
		EntityID: issue.ID,
		Message:  "You've been assigned a new issue: " + issue.Title,
	}, model.Users(assigneeID))

	return issue, nil
}

// UpdateStatus advances an assigned issue. Only the assignee may call it and
// the status only moves forward.
func (s *IssueService) UpdateStatus(ctx context.Context, user *model.User, id uuid.UUID, status model.IssueStatus) (*model.Issue, error) {
	if user.Role != model.RoleDepartment {
		return nil, forbidden("not authorized")
	}
	if status != model.StatusInProgress && status != model.StatusResolved {
		return nil, invalidInput("status must be In Progress or Resolved")
	}

	issue, err := s.issues.Mutate(ctx, id, func(issue *model.Issue) error {
		if !isAssignee(user, issue) {
			return forbidden("not authorized to update this issue")
		}
		if !issue.Status.Before(status) {
			return invalidInput(fmt.Sprintf("cannot move issue from %s to %s", issue.Status, status))
		}

		now := s.now()
		issue.Status = status
		issue.UpdatedAt = now
		if status == model.StatusResolved {
			issue.ResolvedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, s.storeErr(err)
	}

	s.notify(ctx, model.NotificationEvent{
		Type:     model.NotificationStatus,
		SenderID: &user.ID,
		EntityID: issue.ID,
		Message:  "Your issue status has been updated to: " + string(status),
	}, model.Users(issue.ReportedBy))

	return issue, nil
}

// AddComment appends a comment from the reporter, the assignee or an admin
// and notifies the other participants.
func (s *IssueService) AddComment(ctx context.Context, user *model.User, id uuid.UUID, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalidInput("comment text is required")
	}

	issue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canComment(user, issue) {
		return nil, forbidden("not authorized to comment on this issue")
	}

	comment := &model.Comment{
		ID:        uuid.New(),
		IssueID:   issue.ID,
		Text:      text,
		PostedBy:  user.ID,
		CreatedAt: s.now(),
	}
	if err := s.issues.AddComment(ctx, comment); err != nil {
		return nil, err
	}

	audience := model.Users(issue.ReportedBy)
	if issue.AssignedTo != nil {
		audience.UserIDs = append(audience.UserIDs, *issue.AssignedTo)
	}
	s.notify(ctx, model.NotificationEvent{
		Type:     model.NotificationMessage,
		SenderID: &user.ID,
		EntityID: issue.ID,
		Message:  "New comment on issue: " + issue.Title,
	}, audience)

	return comment, nil
}

func (s *IssueService) load(ctx context.Context, id uuid.UUID) (*model.Issue, error) {
	issue, err := s.issues.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeErr(err)
	}
	return issue, nil
}

func (s *IssueService) storeErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("issue")
	}
	return err
}

func (s *IssueService) canView(ctx context.Context, user *model.User, issue *model.Issue) (bool, error) {
	switch user.Role {
	case model.RoleAdmin:
		return true, nil
	case model.RoleCitizen:
		return issue.ReportedBy == user.ID, nil
	case model.RoleDepartment:
		if issue.AssignedTo == nil {
			return false, nil
		}
		members, err := s.departmentMembers(ctx, user)
		if err != nil {
			return false, err
		}
		for _, id := range members {
			if id == *issue.AssignedTo {
				return true, nil
			}
		}
	}
	return false, nil
}

// departmentMembers returns user plus every user sharing their department.
func (s *IssueService) departmentMembers(ctx context.Context, user *model.User) ([]uuid.UUID, error) {
	members := []uuid.UUID{user.ID}
	if user.DepartmentID == nil {
		return members, nil
	}
	ids, err := s.users.ListIDsByDepartment(ctx, *user.DepartmentID)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if id != user.ID {
			members = append(members, id)
		}
	}
	return members, nil
}

func parseLocation(lat, lng *float64) (*model.Location, error) {
	if lat == nil && lng == nil {
		return nil, nil
	}
	if lat == nil || lng == nil {
		return nil, invalidInput("both lat and lng are required for a location")
	}
	if *lat < -90 || *lat > 90 || *lng < -180 || *lng > 180 {
		return nil, invalidInput("location out of range")
	}
	return &model.Location{Lat: *lat, Lng: *lng}, nil
}
