package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"smartcity/config"
	"smartcity/internal/model"
	"smartcity/internal/service"
	"smartcity/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	stores   *testutil.Stores
	uploader *testutil.Uploader
	limiter  *testutil.Limiter
	router   *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	stores := testutil.NewStores()
	logger := testutil.Logger()
	fanout := service.NewFanOut(stores.Users, stores.Notifications, logger)
	uploader := &testutil.Uploader{Fail: map[string]bool{"broken.jpg": true}}
	limiter := &testutil.Limiter{Limit: 100}

	r := New(Deps{
		Auth:          service.NewAuthService(stores.Users, service.NewTokenService(testutil.TestSecret, time.Hour)),
		Issues:        service.NewIssueService(stores.Issues, stores.Users, fanout, logger),
		Polls:         service.NewPollService(stores.Polls, fanout, logger),
		Users:         service.NewUserService(stores.Users, stores.Departments),
		Departments:   service.NewDepartmentService(stores.Departments),
		Reports:       service.NewReportService(stores.Reports, stores.Issues, fanout, logger),
		Notifications: service.NewNotificationService(stores.Notifications),
		Stats:         service.NewStatsService(stores.Users, stores.Issues, stores.Polls, stores.Reports),
		Chats:         service.NewChatService(stores.Chats, stores.Users, fanout, logger),
		Media:         uploader,
		AuthLimiter:   limiter,
		Cookie:        config.CookieConfig{Name: "token"},
		Logger:        logger,
	})
	return &testServer{stores: stores, uploader: uploader, limiter: limiter, router: r}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, user *model.User) string {
	t.Helper()
	w := s.do(testutil.MakeRequest(http.MethodPost, "/api/auth/login",
		model.LoginRequest{Email: user.Email, Password: testutil.TestPassword}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp model.AuthResponse
	testutil.AssertJSON(t, w, &resp)
	return resp.Token
}

func (s *testServer) notifications(t *testing.T, token string) model.NotificationListResponse {
	t.Helper()
	w := s.do(testutil.MakeRequest(http.MethodGet, "/api/notifications", nil, testutil.Bearer(token)))
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp model.NotificationListResponse
	testutil.AssertJSON(t, w, &resp)
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(testutil.MakeRequest(http.MethodGet, "/health", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestRegisterSetsCookie(t *testing.T) {
	s := newTestServer(t)

	req := testutil.MakeMultipartRequest(t, http.MethodPost, "/api/auth/register",
		map[string][]string{
			"username":   {"newcomer"},
			"email":      {"newcomer@city.test"},
			"password":   {"hunter22"},
			"first_name": {"New"},
		},
		map[string]map[string]string{"avatar": {"me.png": "png"}},
		nil)
	w := s.do(req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	var resp model.AuthResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Token == "" || resp.User.Role != model.RoleCitizen {
		t.Fatalf("Unexpected response %+v", resp)
	}

	cookie := w.Header().Get("Set-Cookie")
	if !strings.Contains(cookie, "token="+resp.Token) || !strings.Contains(cookie, "HttpOnly") {
		t.Errorf("Expected HTTP-only session cookie, got %q", cookie)
	}

	me := testutil.MakeRequest(http.MethodGet, "/api/auth/me", nil, nil)
	me.AddCookie(&http.Cookie{Name: "token", Value: resp.Token})
	w = s.do(me)
	testutil.AssertStatus(t, w, http.StatusOK)
	var user model.User
	testutil.AssertJSON(t, w, &user)
	if user.Profile.Avatar != "https://media.test/user_avatars/me.png" {
		t.Errorf("Expected avatar URL, got %q", user.Profile.Avatar)
	}

	w = s.do(testutil.MakeRequest(http.MethodPost, "/api/auth/register",
		map[string]string{"username": "newcomer", "email": "other@city.test", "password": "hunter22"}, nil))
	testutil.AssertStatus(t, w, http.StatusConflict)

	dup := testutil.MakeMultipartRequest(t, http.MethodPost, "/api/auth/register",
		map[string][]string{
			"username": {"newcomer"},
			"email":    {"third@city.test"},
			"password": {"hunter22"},
		},
		map[string]map[string]string{"avatar": {"dup.png": "png"}},
		nil)
	testutil.AssertStatus(t, s.do(dup), http.StatusConflict)
	if len(s.uploader.Uploads) != 1 {
		t.Errorf("Expected rejected registration to skip the avatar upload, got %v", s.uploader.Uploads)
	}
}

func TestLoginAndLogout(t *testing.T) {
	s := newTestServer(t)
	user := testutil.CreateUser(t, s.stores.Users, "lena", model.RoleCitizen, nil)

	w := s.do(testutil.MakeRequest(http.MethodPost, "/api/auth/login",
		model.LoginRequest{Email: user.Email, Password: "wrong-password"}, nil))
	testutil.AssertError(t, w, http.StatusUnauthorized, "Invalid credentials")

	w = s.do(testutil.MakeRequest(http.MethodPost, "/api/auth/login",
		model.LoginRequest{Email: "nobody@city.test", Password: testutil.TestPassword}, nil))
	testutil.AssertError(t, w, http.StatusUnauthorized, "Invalid credentials")

	token := s.login(t, user)
	w = s.do(testutil.MakeRequest(http.MethodGet, "/api/auth/me", nil, testutil.Bearer(token)))
	testutil.AssertStatus(t, w, http.StatusOK)

	w = s.do(testutil.MakeRequest(http.MethodPost, "/api/auth/logout", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	if cookie := w.Header().Get("Set-Cookie"); !strings.Contains(cookie, "Max-Age=0") {
		t.Errorf("Expected cookie to be cleared, got %q", cookie)
	}
}

func TestLoginRateLimited(t *testing.T) {
	s := newTestServer(t)
	s.limiter.Limit = 2

	body := model.LoginRequest{Email: "x@city.test", Password: "whatever"}
	for i := 0; i < 2; i++ {
		w := s.do(testutil.MakeRequest(http.MethodPost, "/api/auth/login", body, nil))
		testutil.AssertStatus(t, w, http.StatusUnauthorized)
	}
	w := s.do(testutil.MakeRequest(http.MethodPost, "/api/auth/login", body, nil))
	testutil.AssertStatus(t, w, http.StatusTooManyRequests)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/issues", "/api/polls", "/api/notifications", "/api/users/stats"} {
		w := s.do(testutil.MakeRequest(http.MethodGet, path, nil, nil))
		testutil.AssertError(t, w, http.StatusUnauthorized, "not authorized to access this route")
	}
}

func TestDeactivatedUserRejected(t *testing.T) {
	s := newTestServer(t)
	admin := testutil.CreateUser(t, s.stores.Users, "root", model.RoleAdmin, nil)
	citizen := testutil.CreateUser(t, s.stores.Users, "gone", model.RoleCitizen, nil)
	citizenToken := s.login(t, citizen)
	adminToken := s.login(t, admin)

	w := s.do(testutil.MakeRequest(http.MethodPut, "/api/users/"+citizen.ID.String()+"/toggle", nil, testutil.Bearer(adminToken)))
	testutil.AssertStatus(t, w, http.StatusOK)
	var toggled model.ToggleActiveResponse
	testutil.AssertJSON(t, w, &toggled)
	if toggled.IsActive || toggled.Message != "User deactivated successfully" {
		t.Errorf("Unexpected toggle response %+v", toggled)
	}

	w = s.do(testutil.MakeRequest(http.MethodGet, "/api/issues", nil, testutil.Bearer(citizenToken)))
	testutil.AssertError(t, w, http.StatusForbidden, "account is deactivated")

	w = s.do(testutil.MakeRequest(http.MethodPost, "/api/auth/login",
		model.LoginRequest{Email: citizen.Email, Password: testutil.TestPassword}, nil))
	testutil.AssertStatus(t, w, http.StatusForbidden)
}

func TestRoleGates(t *testing.T) {
	s := newTestServer(t)
	citizen := testutil.CreateUser(t, s.stores.Users, "cora", model.RoleCitizen, nil)
	token := s.login(t, citizen)

	testCases := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/users"},
		{http.MethodPost, "/api/polls"},
		{http.MethodPut, "/api/issues/" + uuid.NewString() + "/assign"},
		{http.MethodPut, "/api/issues/" + uuid.NewString() + "/status"},
		{http.MethodGet, "/api/reports"},
		{http.MethodGet, "/api/admin/stats"},
	}
	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := s.do(testutil.MakeRequest(tc.method, tc.path, map[string]string{"status": "Resolved"}, testutil.Bearer(token)))
			testutil.AssertStatus(t, w, http.StatusForbidden)
		})
	}
}

func TestIssueLifecycle(t *testing.T) {
	s := newTestServer(t)
	dept := testutil.CreateDepartment(t, s.stores.Departments, "Roads")
	admin := testutil.CreateUser(t, s.stores.Users, "mayor", model.RoleAdmin, nil)
	official := testutil.CreateUser(t, s.stores.Users, "dora", model.RoleDepartment, &dept.ID)
	citizen := testutil.CreateUser(t, s.stores.Users, "chris", model.RoleCitizen, nil)
	adminToken, officialToken, citizenToken := s.login(t, admin), s.login(t, official), s.login(t, citizen)

	req := testutil.MakeMultipartRequest(t, http.MethodPost, "/api/issues",
		map[string][]string{
			"title":       {"Pothole on Main St"},
			"description": {"Deep enough to lose a bike wheel"},
			"category":    {"roads"},
			"location":    {"[106.8272, -6.1751]"},
		},
		map[string]map[string]string{"images": {"front.jpg": "jpg", "broken.jpg": "jpg"}},
		testutil.Bearer(citizenToken))
	w := s.do(req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	var issue model.Issue
	testutil.AssertJSON(t, w, &issue)
	if issue.Status != model.StatusPending {
		t.Errorf("Expected Pending, got %s", issue.Status)
	}
	if len(issue.Images) != 1 || issue.Images[0] != "https://media.test/issue_images/front.jpg" {
		t.Errorf("Expected failed upload skipped, got %v", issue.Images)
	}
	if issue.Location == nil || issue.Location.Lat != -6.1751 || issue.Location.Lng != 106.8272 {
		t.Errorf("Unexpected location %+v", issue.Location)
	}
	if n := s.notifications(t, adminToken); n.UnreadCount != 1 || n.Notifications[0].Type != model.NotificationIssue {
		t.Errorf("Expected admin notified of new issue, got %+v", n)
	}

	issuePath := "/api/issues/" + issue.ID.String()

	w = s.do(testutil.MakeRequest(http.MethodPut, issuePath+"/status", map[string]string{"status": "Resolved"}, testutil.Bearer(citizenToken)))
	testutil.AssertError(t, w, http.StatusForbidden, "access restricted to: department")

	w = s.do(testutil.MakeRequest(http.MethodPut, issuePath+"/assign", map[string]string{"assigned_to": citizen.ID.String()}, testutil.Bearer(adminToken)))
	testutil.AssertError(t, w, http.StatusBadRequest, "invalid department official")

	w = s.do(testutil.MakeRequest(http.MethodPut, issuePath+"/assign", map[string]string{"assigned_to": official.ID.String()}, testutil.Bearer(adminToken)))
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &issue)
	if issue.Status != model.StatusAssigned || issue.AssignedBy == nil || *issue.AssignedBy != admin.ID {
		t.Errorf("Unexpected assigned issue %+v", issue)
	}
	if n := s.notifications(t, officialToken); n.UnreadCount != 1 || n.Notifications[0].Type != model.NotificationAssignment {
		t.Errorf("Expected official notified of assignment, got %+v", n)
	}

	w = s.do(testutil.MakeRequest(http.MethodGet, "/api/issues", nil, testutil.Bearer(officialToken)))
	testutil.AssertStatus(t, w, http.StatusOK)
	var list model.IssueListResponse
	testutil.AssertJSON(t, w, &list)
	if list.Total != 1 {
		t.Errorf("Expected official to see the assigned issue, got %d", list.Total)
	}

	w = s.do(testutil.MakeRequest(http.MethodPut, issuePath+"/status", map[string]string{"status": "Resolved"}, testutil.Bearer(officialToken)))
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &issue)
	if issue.Status != model.StatusResolved || issue.ResolvedAt == nil {
		t.Errorf("Expected Resolved with resolved_at, got %+v", issue)
	}

	n := s.notifications(t, citizenToken)
	if n.UnreadCount != 1 || n.Notifications[0].Type != model.NotificationStatus {
		t.Fatalf("Expected reporter notified of status, got %+v", n)
	}

	w = s.do(testutil.MakeRequest(http.MethodPatch, "/api/notifications/"+n.Notifications[0].ID.String()+"/read", nil, testutil.Bearer(citizenToken)))
	testutil.AssertStatus(t, w, http.StatusOK)
	if n := s.notifications(t, citizenToken); n.UnreadCount != 0 {
		t.Errorf("Expected notification read, got %d unread", n.UnreadCount)
	}

	w = s.do(testutil.MakeRequest(http.MethodPost, issuePath+"/comments", map[string]string{"text": "Thanks for the fix"}, testutil.Bearer(citizenToken)))
	testutil.AssertStatus(t, w, http.StatusCreated)

	w = s.do(testutil.MakeRequest(http.MethodGet, "/api/issues/"+uuid.NewString(), nil, testutil.Bearer(adminToken)))
	testutil.AssertError(t, w, http.StatusNotFound, "issue not found")

	w = s.do(testutil.MakeRequest(http.MethodGet, "/api/issues/not-a-uuid", nil, testutil.Bearer(adminToken)))
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestPollVoteSwitch(t *testing.T) {
	s := newTestServer(t)
	admin := testutil.CreateUser(t, s.stores.Users, "pam", model.RoleAdmin, nil)
	citizen := testutil.CreateUser(t, s.stores.Users, "vic", model.RoleCitizen, nil)
	adminToken, citizenToken := s.login(t, admin), s.login(t, citizen)

	req := testutil.MakeMultipartRequest(t, http.MethodPost, "/api/polls",
		map[string][]string{
			"question": {"Where should the new park go?"},
			"options":  {"Riverside", "Old quarry"},
			"deadline": {time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)},
		},
		map[string]map[string]string{"image": {"park.png": "png"}},
		testutil.Bearer(adminToken))
	w := s.do(req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	var poll model.PollView
	testutil.AssertJSON(t, w, &poll)
	if len(poll.Options) != 2 || !poll.IsActive || poll.Image == nil {
		t.Fatalf("Unexpected poll %+v", poll)
	}
	if n := s.notifications(t, citizenToken); n.UnreadCount != 1 || n.Notifications[0].Type != model.NotificationPoll {
		t.Errorf("Expected citizen notified of poll, got %+v", n)
	}

	pollPath := "/api/polls/" + poll.ID.String()
	a, b := poll.Options[0].ID, poll.Options[1].ID

	vote := func(option uuid.UUID) model.PollView {
		t.Helper()
		w := s.do(testutil.MakeRequest(http.MethodPost, pollPath+"/vote", map[string]string{"option_id": option.String()}, testutil.Bearer(citizenToken)))
		testutil.AssertStatus(t, w, http.StatusOK)
		var v model.PollView
		testutil.AssertJSON(t, w, &v)
		return v
	}

	v := vote(a)
	if v.Options[0].Votes != 1 || v.TotalVotes != 1 {
		t.Errorf("Expected A=1 total=1, got %+v", v.Options)
	}
	v = vote(b)
	if v.Options[0].Votes != 0 || v.Options[1].Votes != 1 || v.TotalVotes != 1 {
		t.Errorf("Expected A=0 B=1 total=1, got %+v", v.Options)
	}
	if v.MyVote == nil || *v.MyVote != b {
		t.Errorf("Expected my_vote %s, got %v", b, v.MyVote)
	}
	if v.Options[1].Voters != nil {
		t.Error("Expected voters hidden from citizens")
	}

	w = s.do(testutil.MakeRequest(http.MethodGet, pollPath, nil, testutil.Bearer(adminToken)))
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &v)
	if len(v.Options[1].Voters) != 1 || v.Options[1].Voters[0] != citizen.ID {
		t.Errorf("Expected admin to see voters, got %+v", v.Options[1])
	}

	w = s.do(testutil.MakeRequest(http.MethodPost, pollPath+"/vote", map[string]string{"option_id": uuid.NewString()}, testutil.Bearer(citizenToken)))
	testutil.AssertError(t, w, http.StatusBadRequest, "invalid option")

	w = s.do(testutil.MakeRequest(http.MethodPost, pollPath+"/vote", map[string]string{"option_id": a.String()}, testutil.Bearer(adminToken)))
	testutil.AssertStatus(t, w, http.StatusForbidden)

	w = s.do(testutil.MakeRequest(http.MethodDelete, pollPath+"/vote", nil, testutil.Bearer(citizenToken)))
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &v)
	if v.TotalVotes != 0 || v.MyVote != nil {
		t.Errorf("Expected vote retracted, got total=%d my_vote=%v", v.TotalVotes, v.MyVote)
	}
}

func TestPollVoteAfterDeadline(t *testing.T) {
	s := newTestServer(t)
	admin := testutil.CreateUser(t, s.stores.Users, "pat", model.RoleAdmin, nil)
	citizen := testutil.CreateUser(t, s.stores.Users, "val", model.RoleCitizen, nil)
	poll := testutil.CreatePoll(t, s.stores.Polls, admin.ID, time.Now().Add(-time.Minute), "Yes", "No")

	w := s.do(testutil.MakeRequest(http.MethodPost, "/api/polls/"+poll.ID.String()+"/vote",
		map[string]string{"option_id": poll.Options[0].ID.String()}, testutil.Bearer(s.login(t, citizen))))
	testutil.AssertError(t, w, http.StatusBadRequest, "poll deadline has passed")

	stored, err := s.stores.Polls.FindByID(context.Background(), poll.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.TotalVotes != 0 {
		t.Error("Expected poll untouched after deadline")
	}

	w = s.do(testutil.MakeRequest(http.MethodGet, "/api/polls/active", nil, testutil.Bearer(s.login(t, admin))))
	testutil.AssertStatus(t, w, http.StatusOK)
	var list model.PollListResponse
	testutil.AssertJSON(t, w, &list)
	if list.Total != 0 {
		t.Errorf("Expected closed poll excluded from active list, got %d", list.Total)
	}
}

func TestReportsAndStats(t *testing.T) {
	s := newTestServer(t)
	dept := testutil.CreateDepartment(t, s.stores.Departments, "Parks")
	admin := testutil.CreateUser(t, s.stores.Users, "ada", model.RoleAdmin, nil)
	official := testutil.CreateUser(t, s.stores.Users, "otto", model.RoleDepartment, &dept.ID)
	adminToken, officialToken := s.login(t, admin), s.login(t, official)

	issue := &model.Issue{ID: uuid.New(), Title: "Broken bench", Status: model.StatusPending, ReportedBy: uuid.New()}
	if err := s.stores.Issues.Create(context.Background(), issue); err != nil {
		t.Fatal(err)
	}

	related, _ := json.Marshal([]string{issue.ID.String()})
	req := testutil.MakeMultipartRequest(t, http.MethodPost, "/api/reports",
		map[string][]string{"title": {"Monthly parks report"}, "related_issues": {string(related)}},
		map[string]map[string]string{"files": {"summary.pdf": "pdf"}},
		testutil.Bearer(officialToken))
	w := s.do(req)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var report model.Report
	testutil.AssertJSON(t, w, &report)
	if report.DepartmentID != dept.ID || len(report.RelatedIssues) != 1 || len(report.Files) != 1 {
		t.Errorf("Unexpected report %+v", report)
	}

	req = testutil.MakeMultipartRequest(t, http.MethodPost, "/api/reports",
		map[string][]string{"title": {"Bad refs"}, "related_issues": {uuid.NewString()}},
		nil, testutil.Bearer(officialToken))
	testutil.AssertStatus(t, s.do(req), http.StatusBadRequest)

	w = s.do(testutil.MakeRequest(http.MethodGet, "/api/reports", nil, testutil.Bearer(adminToken)))
	testutil.AssertStatus(t, w, http.StatusOK)
	var reports model.ReportListResponse
	testutil.AssertJSON(t, w, &reports)
	if reports.Total != 1 {
		t.Errorf("Expected 1 report, got %d", reports.Total)
	}

	w = s.do(testutil.MakeRequest(http.MethodGet, "/api/admin/stats", nil, testutil.Bearer(adminToken)))
	testutil.AssertStatus(t, w, http.StatusOK)
	var stats model.AdminStats
	testutil.AssertJSON(t, w, &stats)
	if stats.TotalUsers != 2 || stats.ActiveIssues != 1 || stats.ReportsFiled != 1 {
		t.Errorf("Unexpected admin stats %+v", stats)
	}
}

func TestAdminUserManagement(t *testing.T) {
	s := newTestServer(t)
	admin := testutil.CreateUser(t, s.stores.Users, "boss", model.RoleAdmin, nil)
	token := s.login(t, admin)

	w := s.do(testutil.MakeRequest(http.MethodPost, "/api/departments",
		model.CreateDepartmentRequest{Name: "Sanitation"}, testutil.Bearer(token)))
	testutil.AssertStatus(t, w, http.StatusCreated)
	var dept model.Department
	testutil.AssertJSON(t, w, &dept)

	w = s.do(testutil.MakeRequest(http.MethodPost, "/api/users", model.CreateUserRequest{
		Username: "sam", Email: "sam@city.test", Password: "secret1", Role: "department",
	}, testutil.Bearer(token)))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	w = s.do(testutil.MakeRequest(http.MethodPost, "/api/users", model.CreateUserRequest{
		Username: "sam", Email: "sam@city.test", Password: "secret1", Role: "Department Official", DepartmentID: &dept.ID,
	}, testutil.Bearer(token)))
	testutil.AssertStatus(t, w, http.StatusCreated)
	var sam model.User
	testutil.AssertJSON(t, w, &sam)
	if sam.Role != model.RoleDepartment || sam.DepartmentID == nil || *sam.DepartmentID != dept.ID {
		t.Errorf("Unexpected user %+v", sam)
	}

	w = s.do(testutil.MakeRequest(http.MethodPut, "/api/users/"+sam.ID.String()+"/role",
		model.UpdateRoleRequest{Role: "citizen"}, testutil.Bearer(token)))
	testutil.AssertStatus(t, w, http.StatusOK)
	var demoted model.User
	testutil.AssertJSON(t, w, &demoted)
	if demoted.ID != sam.ID || demoted.Role != model.RoleCitizen || demoted.DepartmentID != nil {
		t.Errorf("Expected department cleared, got %+v", demoted)
	}

	w = s.do(testutil.MakeRequest(http.MethodDelete, "/api/users/"+admin.ID.String(), nil, testutil.Bearer(token)))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	w = s.do(testutil.MakeRequest(http.MethodDelete, "/api/users/"+sam.ID.String(), nil, testutil.Bearer(token)))
	testutil.AssertStatus(t, w, http.StatusOK)

	w = s.do(testutil.MakeRequest(http.MethodGet, "/api/users", nil, testutil.Bearer(token)))
	testutil.AssertStatus(t, w, http.StatusOK)
	var list struct {
		Users []model.User `json:"users"`
		Total int          `json:"total"`
	}
	testutil.AssertJSON(t, w, &list)
	if list.Total != 0 {
		t.Errorf("Expected only self, which is excluded, got %d", list.Total)
	}
}

func TestChatConversation(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateUser(t, s.stores.Users, "alice", model.RoleCitizen, nil)
	bob := testutil.CreateUser(t, s.stores.Users, "bob", model.RoleDepartment, nil)
	eve := testutil.CreateUser(t, s.stores.Users, "eve", model.RoleCitizen, nil)
	aliceToken, bobToken, eveToken := s.login(t, alice), s.login(t, bob), s.login(t, eve)

	open := func(token string, other uuid.UUID) *httptest.ResponseRecorder {
		return s.do(testutil.MakeRequest(http.MethodPost, "/api/chats",
			model.CreateChatRequest{UserID: other}, testutil.Bearer(token)))
	}

	w := open(aliceToken, bob.ID)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var chat model.Chat
	testutil.AssertJSON(t, w, &chat)

	w = open(bobToken, alice.ID)
	testutil.AssertStatus(t, w, http.StatusOK)
	var same model.Chat
	testutil.AssertJSON(t, w, &same)
	if same.ID != chat.ID {
		t.Errorf("Expected the existing chat %s, got %s", chat.ID, same.ID)
	}

	testutil.AssertStatus(t, open(aliceToken, alice.ID), http.StatusBadRequest)
	testutil.AssertStatus(t, s.do(testutil.MakeRequest(http.MethodPost, "/api/chats",
		map[string]string{}, testutil.Bearer(aliceToken))), http.StatusBadRequest)

	path := "/api/chats/" + chat.ID.String() + "/messages"
	w = s.do(testutil.MakeRequest(http.MethodPost, path,
		model.SendMessageRequest{Content: "pothole on 5th?"}, testutil.Bearer(aliceToken)))
	testutil.AssertStatus(t, w, http.StatusCreated)

	if got := s.notifications(t, bobToken); len(got.Notifications) != 1 || got.Notifications[0].Type != model.NotificationMessage {
		t.Errorf("Expected bob to get a message notification, got %+v", got.Notifications)
	}
	if got := s.notifications(t, aliceToken); len(got.Notifications) != 0 {
		t.Errorf("Expected no notification for the sender, got %+v", got.Notifications)
	}

	w = s.do(testutil.MakeRequest(http.MethodGet, path, nil, testutil.Bearer(bobToken)))
	testutil.AssertStatus(t, w, http.StatusOK)
	var history model.ChatMessagesResponse
	testutil.AssertJSON(t, w, &history)
	if history.Total != 1 || history.Messages[0].SenderID != alice.ID {
		t.Errorf("Unexpected history %+v", history)
	}

	testutil.AssertStatus(t, s.do(testutil.MakeRequest(http.MethodGet, path, nil, testutil.Bearer(eveToken))), http.StatusForbidden)
	testutil.AssertStatus(t, s.do(testutil.MakeRequest(http.MethodPost, path,
		model.SendMessageRequest{Content: "hi"}, testutil.Bearer(eveToken))), http.StatusForbidden)
	testutil.AssertStatus(t, s.do(testutil.MakeRequest(http.MethodGet,
		"/api/chats/"+uuid.NewString()+"/messages", nil, testutil.Bearer(bobToken))), http.StatusNotFound)

	w = s.do(testutil.MakeRequest(http.MethodPost, "/api/chats/group",
		model.CreateGroupChatRequest{Name: "Ward 3", Users: []uuid.UUID{bob.ID, eve.ID}}, testutil.Bearer(aliceToken)))
	testutil.AssertStatus(t, w, http.StatusCreated)
	var group model.Chat
	testutil.AssertJSON(t, w, &group)
	if !group.IsGroup || group.GroupAdmin == nil || *group.GroupAdmin != alice.ID {
		t.Errorf("Unexpected group %+v", group)
	}

	w = s.do(testutil.MakeRequest(http.MethodGet, "/api/chats", nil, testutil.Bearer(bobToken)))
	testutil.AssertStatus(t, w, http.StatusOK)
	var list model.ChatListResponse
	testutil.AssertJSON(t, w, &list)
	if list.Total != 2 {
		t.Errorf("Expected bob in 2 chats, got %d", list.Total)
	}
}
