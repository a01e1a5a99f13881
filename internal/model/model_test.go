package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseRole(t *testing.T) {
	testCases := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{"admin", RoleAdmin, false},
		{"Admin", RoleAdmin, false},
		{" CITIZEN ", RoleCitizen, false},
		{"Department Official", RoleDepartment, false},
		{"department", RoleDepartment, false},
		{"mayor", "", true},
		{"", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseRole(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRoleValidOnlyCanonical(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleDepartment, RoleCitizen} {
		if !r.Valid() {
			t.Errorf("Expected %q to be valid", r)
		}
	}
	for _, r := range []Role{"Admin", "Department Official", " citizen", ""} {
		if r.Valid() {
			t.Errorf("Expected %q to be rejected", r)
		}
	}
}

func TestIssueStatusOrder(t *testing.T) {
	order := []IssueStatus{StatusPending, StatusAssigned, StatusInProgress, StatusResolved}
	for i := range order {
		for j := range order {
			if got := order[i].Before(order[j]); got != (i < j) {
				t.Errorf("%s.Before(%s) = %v", order[i], order[j], got)
			}
		}
	}
	if IssueStatus("Closed").Valid() {
		t.Error("Expected Closed to be invalid")
	}
}

func TestPollViewHidesVotersFromNonAdmins(t *testing.T) {
	citizen := &User{ID: uuid.New(), Role: RoleCitizen}
	admin := &User{ID: uuid.New(), Role: RoleAdmin}
	optA := uuid.New()

	poll := &Poll{
		ID:         uuid.New(),
		Deadline:   time.Now().Add(time.Hour),
		TotalVotes: 1,
		Options: []PollOption{
			{ID: optA, Text: "A", Votes: 1, Voters: []uuid.UUID{citizen.ID}},
			{ID: uuid.New(), Text: "B"},
		},
	}

	view := NewPollView(poll, citizen, time.Now())
	if !view.IsActive {
		t.Error("Expected poll to be active")
	}
	if view.MyVote == nil || *view.MyVote != optA {
		t.Errorf("Expected my_vote %s, got %v", optA, view.MyVote)
	}
	if view.Options[0].Voters != nil {
		t.Error("Expected voters hidden from citizen")
	}
	if len(poll.Options[0].Voters) != 1 {
		t.Error("Projection must not mutate the poll")
	}

	adminView := NewPollView(poll, admin, time.Now())
	if len(adminView.Options[0].Voters) != 1 {
		t.Error("Expected admin to see voters")
	}
	if adminView.Options[1].Voters == nil {
		t.Error("Expected an empty voter set, not nil, for an option without votes")
	}
	if adminView.MyVote != nil {
		t.Error("Expected no vote for admin")
	}
}
