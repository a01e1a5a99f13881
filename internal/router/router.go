package router

import (
	"log/slog"

	"smartcity/config"
	"smartcity/internal/handler"
	"smartcity/internal/media"
	"smartcity/internal/middleware"
	"smartcity/internal/model"
	"smartcity/internal/ratelimit"
	"smartcity/internal/service"

	"github.com/gin-gonic/gin"
)

// Deps is everything the HTTP surface needs. AuthLimiter may be nil to
// disable throttling of login and registration.
type Deps struct {
	Auth          *service.AuthService
	Issues        *service.IssueService
	Polls         *service.PollService
	Users         *service.UserService
	Departments   *service.DepartmentService
	Reports       *service.ReportService
	Notifications *service.NotificationService
	Stats         *service.StatsService
	Chats         *service.ChatService
	Media         media.Uploader
	AuthLimiter   ratelimit.Limiter
	Cookie        config.CookieConfig
	CORS          config.CORSConfig
	Logger        *slog.Logger
}

func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Logger), middleware.CORS(d.CORS.AllowedOrigins))

	authHandler := handler.NewAuthHandler(d.Auth, d.Media, d.Cookie, d.Logger)
	issueHandler := handler.NewIssueHandler(d.Issues, d.Media, d.Logger)
	pollHandler := handler.NewPollHandler(d.Polls, d.Media, d.Logger)
	userHandler := handler.NewUserHandler(d.Users, d.Logger)
	departmentHandler := handler.NewDepartmentHandler(d.Departments, d.Logger)
	reportHandler := handler.NewReportHandler(d.Reports, d.Media, d.Logger)
	notificationHandler := handler.NewNotificationHandler(d.Notifications, d.Logger)
	statsHandler := handler.NewStatsHandler(d.Stats, d.Logger)
	chatHandler := handler.NewChatHandler(d.Chats, d.Logger)

	r.GET("/health", handler.Health)

	api := r.Group("/api")
	requireSession := middleware.Authenticate(d.Auth, d.Cookie.Name)
	admin := middleware.RequireRoles(model.RoleAdmin)
	citizen := middleware.RequireRoles(model.RoleCitizen)
	department := middleware.RequireRoles(model.RoleDepartment)

	// Auth routes
	auth := api.Group("/auth")
	{
		limited := func(h gin.HandlerFunc) []gin.HandlerFunc {
			if d.AuthLimiter == nil {
				return []gin.HandlerFunc{h}
			}
			return []gin.HandlerFunc{middleware.RateLimit(d.AuthLimiter, d.Logger), h}
		}
		auth.POST("/register", limited(authHandler.Register)...)
		auth.POST("/login", limited(authHandler.Login)...)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/me", requireSession, authHandler.Me)
	}

	protected := api.Group("", requireSession)

	issues := protected.Group("/issues")
	{
		issues.GET("", issueHandler.List)
		issues.POST("", citizen, issueHandler.Create)
		issues.GET("/:id", issueHandler.Get)
		issues.PUT("/:id", issueHandler.Update)
		issues.DELETE("/:id", issueHandler.Delete)
		issues.PUT("/:id/assign", admin, issueHandler.Assign)
		issues.PUT("/:id/status", department, issueHandler.UpdateStatus)
		issues.POST("/:id/comments", issueHandler.AddComment)
	}

	polls := protected.Group("/polls")
	{
		polls.GET("", pollHandler.List)
		polls.GET("/active", pollHandler.ListActive)
		polls.GET("/:id", pollHandler.Get)
		polls.POST("", admin, pollHandler.Create)
		polls.PUT("/:id", admin, pollHandler.Update)
		polls.DELETE("/:id", admin, pollHandler.Delete)
		polls.POST("/:id/vote", citizen, pollHandler.Vote)
		polls.DELETE("/:id/vote", citizen, pollHandler.RetractVote)
	}

	users := protected.Group("/users")
	{
		users.GET("/stats", statsHandler.User)
		users.GET("", admin, userHandler.List)
		users.POST("", admin, userHandler.Create)
		users.PUT("/:id/role", admin, userHandler.UpdateRole)
		users.PUT("/:id/toggle", admin, userHandler.ToggleActive)
		users.DELETE("/:id", admin, userHandler.Delete)
	}

	departments := protected.Group("/departments")
	{
		departments.GET("", departmentHandler.List)
		departments.POST("", admin, departmentHandler.Create)
	}

	reports := protected.Group("/reports")
	{
		reports.GET("", middleware.RequireRoles(model.RoleDepartment, model.RoleAdmin), reportHandler.List)
		reports.POST("", department, reportHandler.Create)
	}

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.PATCH("/read-all", notificationHandler.MarkAllAsRead)
		notifications.PATCH("/:id/read", notificationHandler.MarkAsRead)
	}

	chats := protected.Group("/chats")
	{
		chats.GET("", chatHandler.List)
		chats.POST("", chatHandler.Open)
		chats.POST("/group", chatHandler.CreateGroup)
		chats.GET("/:id/messages", chatHandler.Messages)
		chats.POST("/:id/messages", chatHandler.Send)
	}

	protected.GET("/admin/stats", admin, statsHandler.Admin)

	return r
}
