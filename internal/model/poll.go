package model

import (
	"time"

	"github.com/google/uuid"
)

type PollOption struct {
	ID     uuid.UUID   `json:"id"`
	Text   string      `json:"text"`
	Votes  int         `json:"votes"`
	Voters []uuid.UUID `json:"voters,omitempty"`
}

type Poll struct {
	ID         uuid.UUID    `json:"id"`
	Question   string       `json:"question"`
	Options    []PollOption `json:"options"`
	Image      *string      `json:"image,omitempty"`
	CreatedBy  uuid.UUID    `json:"created_by"`
	Deadline   time.Time    `json:"deadline"`
	TotalVotes int          `json:"total_votes"`
	CreatedAt  time.Time    `json:"created_at"`
}

// IsActive reports whether the poll still accepts votes at now.
func (p *Poll) IsActive(now time.Time) bool {
	return now.Before(p.Deadline)
}

// VoteOf returns the option the user currently votes for, if any.
func (p *Poll) VoteOf(userID uuid.UUID) (uuid.UUID, bool) {
	for _, opt := range p.Options {
		for _, v := range opt.Voters {
			if v == userID {
				return opt.ID, true
			}
		}
	}
	return uuid.Nil, false
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (p *Poll) Clone() *Poll {
	cp := *p
	cp.Options = make([]PollOption, len(p.Options))
	for i, opt := range p.Options {
		cp.Options[i] = opt
		cp.Options[i].Voters = append([]uuid.UUID{}, opt.Voters...)
	}
	if p.Image != nil {
		img := *p.Image
		cp.Image = &img
	}
	return &cp
}

// PollView is the caller-facing projection of a Poll. Voter sets are only
// included for admins.
type PollView struct {
	Poll
	IsActive bool       `json:"is_active"`
	MyVote   *uuid.UUID `json:"my_vote"`
}

func NewPollView(p *Poll, viewer *User, now time.Time) PollView {
	view := PollView{Poll: *p.Clone(), IsActive: p.IsActive(now)}
	if viewer == nil {
		return view
	}
	if optID, ok := p.VoteOf(viewer.ID); ok {
		view.MyVote = &optID
	}
	if viewer.Role != RoleAdmin {
		for i := range view.Options {
			view.Options[i].Voters = nil
		}
	}
	return view
}

// Request/Response DTOs
type CreatePollRequest struct {
	Question string `form:"question" json:"question" binding:"required"`
	// Options may be repeated fields or a single JSON array.
	Options  []string  `form:"options" json:"options" binding:"required"`
	Deadline time.Time `form:"deadline" json:"deadline" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}

type UpdatePollRequest struct {
	Question *string    `form:"question" json:"question"`
	Deadline *time.Time `form:"deadline" json:"deadline" time_format:"2006-01-02T15:04:05Z07:00"`
}

type VoteRequest struct {
	OptionID uuid.UUID `json:"option_id" binding:"required"`
}

type PollListResponse struct {
	Polls []PollView `json:"polls"`
	Total int        `json:"total"`
}
