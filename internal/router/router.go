package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-classroom-api/internal/config"
	"github.com/noah-isme/gema-classroom-api/internal/handler"
	"github.com/noah-isme/gema-classroom-api/internal/middleware"
	"github.com/noah-isme/gema-classroom-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssignmentHandler        *handler.AssignmentHandler
	StudentAssignmentHandler *handler.StudentAssignmentHandler
	SubmissionHandler        *handler.SubmissionHandler
	GradingHandler           *handler.GradingHandler
	ReportHandler            *handler.AssignmentReportHandler
	GradeBookHandler         *handler.GradeBookHandler
	DashboardHandler         *handler.StudentDashboardHandler
	StudentHandler           *handler.StudentHandler
	NotificationHandler      *handler.NotificationHandler
	ActivityHandler          *handler.ActivityHandler
	HealthProbes             map[string]handler.HealthProbe
	JWTMiddleware            fiber.Handler
	AnswerRateLimit          fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Teacher classroom: authoring and grading
	classroom := app.Group("/api/v2/classroom", jwtMiddleware, middleware.RequireRole("teacher", "admin"))
	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(classroom.Group("/assignments"))
	}
	if deps.GradingHandler != nil {
		deps.GradingHandler.Register(classroom)
	}
	if deps.ReportHandler != nil {
		deps.ReportHandler.Register(classroom)
	}

	// Student attempts
	student := app.Group("/api/v2/student", jwtMiddleware, middleware.RequireRole("student"))
	if deps.StudentAssignmentHandler != nil {
		deps.StudentAssignmentHandler.Register(student.Group("/assignments"))
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(student.Group("/submissions"), deps.AnswerRateLimit)
	}
	if deps.GradeBookHandler != nil {
		student.Get("/grades", deps.GradeBookHandler.List)
	}
	if deps.DashboardHandler != nil {
		deps.DashboardHandler.Register(student)
	}

	// Notifications for any authenticated user
	if deps.NotificationHandler != nil {
		notifications := app.Group("/api/v2/notifications", jwtMiddleware, middleware.WithAuth(func(c *fiber.Ctx) error {
			return c.Next()
		}, middleware.AuthOptions{Role: middleware.AuthRoleAny}))
		deps.NotificationHandler.Register(notifications)
	}

	// Administration: audit log and roster
	admin := app.Group("/api/v2/admin", jwtMiddleware, middleware.RequireRole("admin"))
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(admin.Group("/activities"))
	}
	if deps.StudentHandler != nil {
		deps.StudentHandler.Register(admin.Group("/students"))
	}
}
