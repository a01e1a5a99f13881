package model

type AdminStats struct {
	TotalUsers   int `json:"total_users"`
	ActiveIssues int `json:"active_issues"`
	ActivePolls  int `json:"active_polls"`
	ReportsFiled int `json:"reports_filed"`
}

type UserStats struct {
	MyReports      int `json:"my_reports"`
	ResolvedIssues int `json:"resolved_issues"`
	ActivePolls    int `json:"active_polls"`
	CommunityScore int `json:"community_score"`
}
