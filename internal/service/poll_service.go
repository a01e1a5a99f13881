package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"smartcity/internal/model"
	"smartcity/internal/repository"
	"smartcity/internal/voting"

	"github.com/google/uuid"
)

type PollService struct {
	notifying
	polls PollStore
	now   func() time.Time
}

func NewPollService(polls PollStore, notifier Notifier, logger *slog.Logger) *PollService {
	return &PollService{
		notifying: notifying{notifier: notifier, logger: logger},
		polls:     polls,
		now:       time.Now,
	}
}

func (s *PollService) List(ctx context.Context, viewer *model.User) ([]model.PollView, error) {
	return s.list(ctx, viewer, nil)
}

// ListActive returns polls whose deadline has not passed.
func (s *PollService) ListActive(ctx context.Context, viewer *model.User) ([]model.PollView, error) {
	now := s.now()
	return s.list(ctx, viewer, &now)
}

func (s *PollService) list(ctx context.Context, viewer *model.User, activeAt *time.Time) ([]model.PollView, error) {
	polls, err := s.polls.List(ctx, activeAt)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]model.PollView, 0, len(polls))
	for i := range polls {
		views = append(views, model.NewPollView(&polls[i], viewer, now))
	}
	return views, nil
}

func (s *PollService) Get(ctx context.Context, viewer *model.User, id uuid.UUID) (*model.PollView, error) {
	poll, err := s.polls.FindByID(ctx, id)
	if err != nil {
		return nil, pollErr(err)
	}
	view := model.NewPollView(poll, viewer, s.now())
	return &view, nil
}

// Create opens a poll and announces it to every citizen. image may be nil.
func (s *PollService) Create(ctx context.Context, admin *model.User, req *model.CreatePollRequest, image Upload) (*model.PollView, error) {
	if admin.Role != model.RoleAdmin {
		return nil, forbidden("not authorized")
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, invalidInput("question is required")
	}
	options, err := normalizeOptions(req.Options)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !req.Deadline.After(now) {
		return nil, invalidInput("deadline must be in the future")
	}

	poll := &model.Poll{
		ID:        uuid.New(),
		Question:  question,
		Image:     image.first(ctx),
		CreatedBy: admin.ID,
		Deadline:  req.Deadline,
		CreatedAt: now,
	}
	for _, text := range options {
		poll.Options = append(poll.Options, model.PollOption{ID: uuid.New(), Text: text, Voters: []uuid.UUID{}})
	}
	if err := s.polls.Create(ctx, poll); err != nil {
		return nil, err
	}

	s.notify(ctx, model.NotificationEvent{
		Type:     model.NotificationPoll,
		SenderID: &admin.ID,
		EntityID: poll.ID,
		Message:  "New poll available: " + poll.Question,
	}, model.Roles(model.RoleCitizen))

	view := model.NewPollView(poll, admin, now)
	return &view, nil
}

// Update changes the question, deadline or image. Votes are untouched; moving
// the deadline into the past closes the poll.
func (s *PollService) Update(ctx context.Context, admin *model.User, id uuid.UUID, req *model.UpdatePollRequest, image Upload) (*model.PollView, error) {
	if admin.Role != model.RoleAdmin {
		return nil, forbidden("not authorized")
	}

	poll, err := s.polls.FindByID(ctx, id)
	if err != nil {
		return nil, pollErr(err)
	}

	if req.Question != nil {
		q := strings.TrimSpace(*req.Question)
		if q == "" {
			return nil, invalidInput("question cannot be empty")
		}
		poll.Question = q
	}
	if req.Deadline != nil {
		if !req.Deadline.After(poll.CreatedAt) {
			return nil, invalidInput("deadline must be after the poll was created")
		}
		poll.Deadline = *req.Deadline
	}
	if url := image.first(ctx); url != nil {
		poll.Image = url
	}

	if err := s.polls.Update(ctx, poll); err != nil {
		return nil, pollErr(err)
	}
	view := model.NewPollView(poll, admin, s.now())
	return &view, nil
}

func (s *PollService) Delete(ctx context.Context, admin *model.User, id uuid.UUID) error {
	if admin.Role != model.RoleAdmin {
		return forbidden("not authorized")
	}
	return pollErr(s.polls.Delete(ctx, id))
}

// Vote records the citizen's choice. Voting for a different option moves
// the vote, voting for the current option again changes nothing.
func (s *PollService) Vote(ctx context.Context, user *model.User, id, optionID uuid.UUID) (*model.PollView, error) {
	if user.Role != model.RoleCitizen {
		return nil, forbidden("only citizens can vote")
	}
	now := s.now()
	poll, err := s.polls.Mutate(ctx, id, func(p *model.Poll) error {
		return voting.Cast(p, user.ID, optionID, now)
	})
	if err != nil {
		return nil, pollErr(err)
	}
	view := model.NewPollView(poll, user, now)
	return &view, nil
}

// RetractVote withdraws the citizen's current vote before the deadline.
func (s *PollService) RetractVote(ctx context.Context, user *model.User, id uuid.UUID) (*model.PollView, error) {
	if user.Role != model.RoleCitizen {
		return nil, forbidden("only citizens can vote")
	}
	now := s.now()
	poll, err := s.polls.Mutate(ctx, id, func(p *model.Poll) error {
		return voting.Retract(p, user.ID, now)
	})
	if err != nil {
		return nil, pollErr(err)
	}
	view := model.NewPollView(poll, user, now)
	return &view, nil
}

func pollErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound("poll")
	case errors.Is(err, voting.ErrNoVote):
		return invalidInput("you have not voted on this poll")
	}
	return err
}

// normalizeOptions trims options and requires at least two distinct,
// non-empty entries.
func normalizeOptions(in []string) ([]string, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, opt := range in {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return nil, invalidInput("options cannot be empty")
		}
		key := strings.ToLower(opt)
		if _, dup := seen[key]; dup {
			return nil, invalidInput("options must be distinct")
		}
		seen[key] = struct{}{}
		out = append(out, opt)
	}
	if len(out) < 2 {
		return nil, invalidInput("a poll needs at least two options")
	}
	return out, nil
}
