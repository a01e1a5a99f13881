package service

import (
	"context"
	"time"

	"smartcity/internal/model"

	"golang.org/x/sync/errgroup"
)

type StatsService struct {
	users   UserStore
	issues  IssueStore
	polls   PollStore
	reports ReportStore
	now     func() time.Time
}

func NewStatsService(users UserStore, issues IssueStore, polls PollStore, reports ReportStore) *StatsService {
	return &StatsService{users: users, issues: issues, polls: polls, reports: reports, now: time.Now}
}

func (s *StatsService) Admin(ctx context.Context, admin *model.User) (*model.AdminStats, error) {
	if admin.Role != model.RoleAdmin {
		return nil, forbidden("not authorized")
	}

	stats := &model.AdminStats{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalUsers, err = s.users.Count(gctx)
		return
	})
	g.Go(func() (err error) {
		stats.ActiveIssues, err = s.issues.CountUnresolved(gctx)
		return
	})
	g.Go(func() (err error) {
		stats.ActivePolls, err = s.polls.CountActive(gctx, s.now())
		return
	})
	g.Go(func() (err error) {
		stats.ReportsFiled, err = s.reports.Count(gctx)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// User returns the caller's dashboard counters. The community score starts
// at 50, adds 5 per report and 10 per resolved issue, capped at 100.
func (s *StatsService) User(ctx context.Context, user *model.User) (*model.UserStats, error) {
	stats := &model.UserStats{}
	resolved := model.StatusResolved

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.MyReports, err = s.issues.CountByReporter(gctx, user.ID, nil)
		return
	})
	g.Go(func() (err error) {
		stats.ResolvedIssues, err = s.issues.CountByReporter(gctx, user.ID, &resolved)
		return
	})
	g.Go(func() (err error) {
		stats.ActivePolls, err = s.polls.CountActive(gctx, s.now())
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.CommunityScore = min(100, 50+5*stats.MyReports+10*stats.ResolvedIssues)
	return stats, nil
}
