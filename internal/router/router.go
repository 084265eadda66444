package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/usst-spm/course-api/internal/config"
	"github.com/usst-spm/course-api/internal/handler"
	"github.com/usst-spm/course-api/internal/middleware"
	"github.com/usst-spm/course-api/internal/models"
	"github.com/usst-spm/course-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssignmentHandler   *handler.AssignmentHandler
	SubmissionHandler   *handler.SubmissionHandler
	GradingHandler      *handler.GradingHandler
	AnnouncementHandler *handler.AnnouncementHandler
	ActivityHandler     *handler.ActivityHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	teacherOnly := middleware.RequireRole(models.RoleTeacher, models.RoleAdmin)
	studentOnly := middleware.RequireRole(models.RoleStudent)

	if deps.AssignmentHandler != nil {
		courses := api.Group("/courses", jwtMiddleware)
		deps.AssignmentHandler.RegisterCourseRoutes(courses)
		if deps.AnnouncementHandler != nil {
			deps.AnnouncementHandler.RegisterCourseRoutes(courses)
		}

		assignments := api.Group("/assignments", jwtMiddleware)
		deps.AssignmentHandler.Register(assignments, teacherOnly)

		if deps.SubmissionHandler != nil {
			deps.SubmissionHandler.Register(assignments, studentOnly, teacherOnly)
		}
	}

	if deps.GradingHandler != nil {
		submissions := api.Group("/submissions", jwtMiddleware)
		deps.GradingHandler.Register(submissions, teacherOnly)

		grades := api.Group("/grades", jwtMiddleware)
		deps.GradingHandler.RegisterStudentRoutes(grades, studentOnly)
	}

	if deps.AnnouncementHandler != nil {
		announcements := api.Group("/announcements", jwtMiddleware)
		deps.AnnouncementHandler.Register(announcements, teacherOnly)
	}

	if deps.ActivityHandler != nil {
		activities := api.Group("/activities", jwtMiddleware, teacherOnly)
		deps.ActivityHandler.Register(activities)
	}
}
