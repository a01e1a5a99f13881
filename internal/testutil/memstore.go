package testutil

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"smartcity/internal/model"
	"smartcity/internal/repository"

	"github.com/google/uuid"
)

// The in-memory stores mirror the Postgres repositories. They copy values in
// and out so callers never share state with the store.

type UserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[uuid.UUID]model.User)}
}

func copyUser(u model.User) model.User {
	if u.DepartmentID != nil {
		id := *u.DepartmentID
		u.DepartmentID = &id
	}
	return u
}

func (s *UserStore) Create(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	user.Username = strings.ToLower(user.Username)
	for _, u := range s.users {
		if u.ID == user.ID || u.Email == user.Email || u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	s.users[user.ID] = copyUser(*user)
	return nil
}

func (s *UserStore) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := copyUser(u)
	return &cp, nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range s.users {
		if u.Email == email {
			cp := copyUser(u)
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *UserStore) ExistsByEmailOrUsername(_ context.Context, email, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email, username = strings.ToLower(email), strings.ToLower(username)
	for _, u := range s.users {
		if u.Email == email || u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *UserStore) List(_ context.Context, excludeID uuid.UUID) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.User{}
	for _, u := range s.users {
		if u.ID != excludeID {
			out = append(out, copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *UserStore) ListActiveIDsByRoles(_ context.Context, roles ...model.Role) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for _, u := range s.users {
		if !u.IsActive {
			continue
		}
		for _, r := range roles {
			if u.Role == r {
				ids = append(ids, u.ID)
				break
			}
		}
	}
	return ids, nil
}

func (s *UserStore) ListIDsByDepartment(_ context.Context, departmentID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for _, u := range s.users {
		if u.DepartmentID != nil && *u.DepartmentID == departmentID {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

func (s *UserStore) UpdateRole(_ context.Context, id uuid.UUID, role model.Role, departmentID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Role = role
	u.DepartmentID = departmentID
	s.users[id] = copyUser(u)
	return nil
}

func (s *UserStore) ToggleActive(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	u.IsActive = !u.IsActive
	s.users[id] = u
	return u.IsActive, nil
}

func (s *UserStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *UserStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

type DepartmentStore struct {
	mu    sync.Mutex
	depts map[uuid.UUID]model.Department
}

func NewDepartmentStore() *DepartmentStore {
	return &DepartmentStore{depts: make(map[uuid.UUID]model.Department)}
}

func (s *DepartmentStore) Create(_ context.Context, dept *model.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.depts {
		if d.Name == dept.Name {
			return repository.ErrDuplicate
		}
	}
	s.depts[dept.ID] = *dept
	return nil
}

func (s *DepartmentStore) FindByID(_ context.Context, id uuid.UUID) (*model.Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.depts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (s *DepartmentStore) List(_ context.Context) ([]model.Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Department{}
	for _, d := range s.depts {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type IssueStore struct {
	mu     sync.Mutex
	issues map[uuid.UUID]model.Issue
}

func NewIssueStore() *IssueStore {
	return &IssueStore{issues: make(map[uuid.UUID]model.Issue)}
}

func copyIssue(i model.Issue) model.Issue {
	i.Images = append([]string{}, i.Images...)
	i.Comments = append([]model.Comment{}, i.Comments...)
	if i.Location != nil {
		loc := *i.Location
		i.Location = &loc
	}
	i.AssignedTo = copyID(i.AssignedTo)
	i.AssignedBy = copyID(i.AssignedBy)
	i.AssignedAt = copyTime(i.AssignedAt)
	i.ResolvedAt = copyTime(i.ResolvedAt)
	return i
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (s *IssueStore) Create(_ context.Context, issue *model.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issues[issue.ID]; ok {
		return repository.ErrDuplicate
	}
	s.issues[issue.ID] = copyIssue(*issue)
	return nil
}

func (s *IssueStore) FindByID(_ context.Context, id uuid.UUID) (*model.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.issues[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := copyIssue(i)
	return &cp, nil
}

func (s *IssueStore) List(_ context.Context, filter model.IssueFilter) ([]model.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Issue{}
	for _, i := range s.issues {
		if filter.ReportedBy != nil && i.ReportedBy != *filter.ReportedBy {
			continue
		}
		if filter.AssignedToAny != nil && !containsID(filter.AssignedToAny, i.AssignedTo) {
			continue
		}
		cp := copyIssue(i)
		cp.Comments = []model.Comment{}
		out = append(out, cp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func containsID(ids []uuid.UUID, id *uuid.UUID) bool {
	if id == nil {
		return false
	}
	for _, v := range ids {
		if v == *id {
			return true
		}
	}
	return false
}

// Mutate runs fn on a copy under the store lock, standing in for the row
// lock the Postgres repository takes.
func (s *IssueStore) Mutate(_ context.Context, id uuid.UUID, fn func(*model.Issue) error) (*model.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.issues[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	working := copyIssue(existing)
	if err := fn(&working); err != nil {
		return nil, err
	}
	working.Comments = existing.Comments
	s.issues[id] = copyIssue(working)
	out := copyIssue(working)
	return &out, nil
}

func (s *IssueStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issues[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.issues, id)
	return nil
}

func (s *IssueStore) AddComment(_ context.Context, comment *model.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.issues[comment.IssueID]
	if !ok {
		return repository.ErrNotFound
	}
	i.Comments = append(append([]model.Comment{}, i.Comments...), *comment)
	s.issues[i.ID] = i
	return nil
}

func (s *IssueStore) Missing(_ context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := s.issues[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (s *IssueStore) CountUnresolved(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, i := range s.issues {
		if i.Status != model.StatusResolved {
			n++
		}
	}
	return n, nil
}

func (s *IssueStore) CountByReporter(_ context.Context, userID uuid.UUID, status *model.IssueStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, i := range s.issues {
		if i.ReportedBy == userID && (status == nil || i.Status == *status) {
			n++
		}
	}
	return n, nil
}

// PollStore serializes Mutate calls with a single lock, standing in for the
// row lock the Postgres repository takes.
type PollStore struct {
	mu    sync.Mutex
	polls map[uuid.UUID]*model.Poll
}

func NewPollStore() *PollStore {
	return &PollStore{polls: make(map[uuid.UUID]*model.Poll)}
}

func (s *PollStore) Create(_ context.Context, poll *model.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.polls[poll.ID]; ok {
		return repository.ErrDuplicate
	}
	s.polls[poll.ID] = poll.Clone()
	return nil
}

func (s *PollStore) FindByID(_ context.Context, id uuid.UUID) (*model.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *PollStore) List(_ context.Context, activeAt *time.Time) ([]model.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Poll{}
	for _, p := range s.polls {
		if activeAt != nil && !p.Deadline.After(*activeAt) {
			continue
		}
		out = append(out, *p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *PollStore) Update(_ context.Context, poll *model.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[poll.ID]
	if !ok {
		return repository.ErrNotFound
	}
	p.Question = poll.Question
	p.Deadline = poll.Deadline
	p.Image = poll.Clone().Image
	return nil
}

func (s *PollStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.polls[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.polls, id)
	return nil
}

func (s *PollStore) CountActive(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.polls {
		if p.Deadline.After(now) {
			n++
		}
	}
	return n, nil
}

func (s *PollStore) Mutate(_ context.Context, id uuid.UUID, fn func(*model.Poll) error) (*model.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	working := p.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	s.polls[id] = working
	return working.Clone(), nil
}

// ErrInjected is returned by NotificationStore for recipients in FailFor.
var ErrInjected = errors.New("injected failure")

type NotificationStore struct {
	mu            sync.Mutex
	notifications []model.Notification
	failFor       map[uuid.UUID]bool
	processed     map[string]bool
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{failFor: make(map[uuid.UUID]bool), processed: make(map[string]bool)}
}

func (s *NotificationStore) IsMessageProcessed(_ context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed[messageID], nil
}

func (s *NotificationStore) MarkMessageProcessed(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[messageID] = true
	return nil
}

// FailFor makes writes for recipient fail with ErrInjected.
func (s *NotificationStore) FailFor(recipient uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFor[recipient] = true
}

func (s *NotificationStore) Create(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[n.RecipientID] {
		return ErrInjected
	}
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *NotificationStore) ListByRecipient(_ context.Context, userID uuid.UUID, limit int) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Notification{}
	for i := len(s.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if s.notifications[i].RecipientID == userID {
			out = append(out, s.notifications[i])
		}
	}
	return out, nil
}

func (s *NotificationStore) UnreadCount(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.notifications {
		if v.RecipientID == userID && !v.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *NotificationStore) MarkAsRead(_ context.Context, id, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id && s.notifications[i].RecipientID == userID {
			s.notifications[i].IsRead = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *NotificationStore) MarkAllAsRead(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].RecipientID == userID {
			s.notifications[i].IsRead = true
		}
	}
	return nil
}

// For returns every notification sent to recipient, oldest first.
func (s *NotificationStore) For(recipient uuid.UUID) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Notification
	for _, n := range s.notifications {
		if n.RecipientID == recipient {
			out = append(out, n)
		}
	}
	return out
}

type ReportStore struct {
	mu      sync.Mutex
	reports []model.Report
}

func NewReportStore() *ReportStore {
	return &ReportStore{}
}

func (s *ReportStore) Create(_ context.Context, report *model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *report
	cp.Files = append([]string{}, report.Files...)
	cp.RelatedIssues = append([]uuid.UUID{}, report.RelatedIssues...)
	s.reports = append(s.reports, cp)
	return nil
}

func (s *ReportStore) List(_ context.Context, departmentID *uuid.UUID) ([]model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Report{}
	for i := len(s.reports) - 1; i >= 0; i-- {
		r := s.reports[i]
		if departmentID != nil && r.DepartmentID != *departmentID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *ReportStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports), nil
}

type ChatStore struct {
	mu       sync.Mutex
	chats    map[uuid.UUID]model.Chat
	direct   map[string]uuid.UUID
	messages map[uuid.UUID][]model.ChatMessage
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		chats:    map[uuid.UUID]model.Chat{},
		direct:   map[string]uuid.UUID{},
		messages: map[uuid.UUID][]model.ChatMessage{},
	}
}

func (s *ChatStore) Create(_ context.Context, chat *model.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !chat.IsGroup && len(chat.Participants) == 2 {
		key := model.DirectKey(chat.Participants[0], chat.Participants[1])
		if _, ok := s.direct[key]; ok {
			return repository.ErrDuplicate
		}
		s.direct[key] = chat.ID
	}
	cp := *chat
	cp.Participants = append([]uuid.UUID{}, chat.Participants...)
	cp.LastMessage = nil
	s.chats[chat.ID] = cp
	return nil
}

// load returns a copy of the chat with its last message. Callers hold mu.
func (s *ChatStore) load(id uuid.UUID) (*model.Chat, bool) {
	c, ok := s.chats[id]
	if !ok {
		return nil, false
	}
	c.Participants = append([]uuid.UUID{}, c.Participants...)
	if msgs := s.messages[id]; len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		c.LastMessage = &last
	}
	return &c, true
}

func (s *ChatStore) FindByID(_ context.Context, id uuid.UUID) (*model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.load(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (s *ChatStore) FindDirect(_ context.Context, a, b uuid.UUID) (*model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.direct[model.DirectKey(a, b)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c, _ := s.load(id)
	return c, nil
}

func (s *ChatStore) ListByParticipant(_ context.Context, userID uuid.UUID) ([]model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Chat{}
	for id, c := range s.chats {
		if !c.HasParticipant(userID) {
			continue
		}
		loaded, _ := s.load(id)
		out = append(out, *loaded)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *ChatStore) AddMessage(_ context.Context, msg *model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[msg.ChatID]
	if !ok {
		return repository.ErrNotFound
	}
	c.UpdatedAt = msg.CreatedAt
	s.chats[msg.ChatID] = c
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], *msg)
	return nil
}

func (s *ChatStore) Messages(_ context.Context, chatID uuid.UUID, limit int) ([]model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[chatID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]model.ChatMessage{}, msgs...), nil
}

// Stores bundles one of each in-memory store.
type Stores struct {
	Users         *UserStore
	Departments   *DepartmentStore
	Issues        *IssueStore
	Polls         *PollStore
	Notifications *NotificationStore
	Reports       *ReportStore
	Chats         *ChatStore
}

func NewStores() *Stores {
	return &Stores{
		Users:         NewUserStore(),
		Departments:   NewDepartmentStore(),
		Issues:        NewIssueStore(),
		Polls:         NewPollStore(),
		Notifications: NewNotificationStore(),
		Reports:       NewReportStore(),
		Chats:         NewChatStore(),
	}
}
