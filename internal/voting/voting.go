// Package voting holds the poll vote state transitions. Functions mutate the
// poll in place and leave it untouched when they return an error, so callers
// can run them inside a store transaction and roll back on failure.
//
// Policy: a user holds at most one current vote per poll. Voting for another
// option before the deadline moves the vote; voting again for the same option
// changes nothing.
package voting

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"smartcity/internal/model"
)

var (
	ErrDeadlinePassed = errors.New("poll deadline has passed")
	ErrInvalidOption  = errors.New("invalid option")
	ErrNoVote         = errors.New("no vote to retract")
)

// Cast records userID's vote for optionID, retracting any vote the user
// holds on another option.
func Cast(p *model.Poll, userID, optionID uuid.UUID, now time.Time) error {
	if !p.IsActive(now) {
		return ErrDeadlinePassed
	}

	target := optionIndex(p, optionID)
	if target < 0 {
		return ErrInvalidOption
	}

	current, voterIdx := findVoter(p, userID)
	if current == target {
		return nil
	}
	if current >= 0 {
		removeVoter(p, current, voterIdx)
	}

	opt := &p.Options[target]
	opt.Voters = append(opt.Voters, userID)
	opt.Votes++
	p.TotalVotes++
	return nil
}

// Retract removes userID's current vote.
func Retract(p *model.Poll, userID uuid.UUID, now time.Time) error {
	if !p.IsActive(now) {
		return ErrDeadlinePassed
	}

	current, voterIdx := findVoter(p, userID)
	if current < 0 {
		return ErrNoVote
	}
	removeVoter(p, current, voterIdx)
	return nil
}

// Check verifies that option counts match their voter sets, that the total
// is their sum, and that no user appears twice.
func Check(p *model.Poll) error {
	seen := make(map[uuid.UUID]uuid.UUID)
	sum := 0
	for _, opt := range p.Options {
		if opt.Votes != len(opt.Voters) {
			return fmt.Errorf("option %s: votes %d != voters %d", opt.ID, opt.Votes, len(opt.Voters))
		}
		for _, v := range opt.Voters {
			if prev, dup := seen[v]; dup {
				return fmt.Errorf("user %s voted for both %s and %s", v, prev, opt.ID)
			}
			seen[v] = opt.ID
		}
		sum += opt.Votes
	}
	if sum != p.TotalVotes {
		return fmt.Errorf("total votes %d != sum of options %d", p.TotalVotes, sum)
	}
	return nil
}

func optionIndex(p *model.Poll, optionID uuid.UUID) int {
	for i, opt := range p.Options {
		if opt.ID == optionID {
			return i
		}
	}
	return -1
}

func findVoter(p *model.Poll, userID uuid.UUID) (option, voter int) {
	for i, opt := range p.Options {
		for j, v := range opt.Voters {
			if v == userID {
				return i, j
			}
		}
	}
	return -1, -1
}

func removeVoter(p *model.Poll, option, voter int) {
	opt := &p.Options[option]
	opt.Voters = append(opt.Voters[:voter], opt.Voters[voter+1:]...)
	opt.Votes--
	p.TotalVotes--
}
