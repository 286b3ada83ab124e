package routes

import (
	"time"

	"learnhub/backend/config"
	"learnhub/backend/controllers"
	"learnhub/backend/middleware"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	authMiddleware := middleware.AuthMiddleware(cfg)
	optionalAuth := middleware.OptionalAuthMiddleware(cfg)
	adminMiddleware := middleware.AdminMiddleware(cfg)

	app.Get("/api/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "OK",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Auth routes
	authController := controllers.NewAuthController(db, cfg)
	app.Post("/api/auth/register", authController.Register)
	app.Post("/api/auth/login", authController.Login)
	app.Get("/api/auth/me", authMiddleware, authController.GetProfile)

	// Courses routes
	coursesController := controllers.NewCoursesController(db, cfg)
	courses := app.Group("/api/courses", authMiddleware)
	courses.Get("/", coursesController.GetCourses)
	courses.Get("/:courseId", coursesController.GetCourseDetails)
	courses.Get("/:courseId/progress", coursesController.GetCourseProgress)
	courses.Get("/:courseId/content/:contentId", coursesController.GetContentItem)
	courses.Post("/:courseId/content/:contentId/progress", coursesController.UpdateProgress)
	courses.Post("/:courseId/content/:contentId/quiz-submit", coursesController.SubmitQuiz)
	courses.Post("/:courseId/content/:contentId/video-interaction", coursesController.VideoInteraction)

	// Course management (instructor/admin; ownership checked in handlers)
	adminCourses := app.Group("/api/admin/courses", authMiddleware)
	adminCourses.Post("/", coursesController.CreateCourse)
	adminCourses.Post("/:courseId/content", coursesController.AddContent)
	adminCourses.Post("/:courseId/content/:contentId/questions", coursesController.AddQuestion)

	// Analytics routes
	analyticsController := controllers.NewAnalyticsController(db, cfg)
	analytics := app.Group("/api/analytics")
	// Ingestion is open so unauthenticated events are stored anonymously.
	analytics.Post("/events", optionalAuth, analyticsController.TrackEvent)
	analytics.Post("/track", optionalAuth, analyticsController.TrackEvent) // legacy client alias
	analytics.Get("/user/events", authMiddleware, analyticsController.GetUserEvents)
	analytics.Get("/user", authMiddleware, analyticsController.GetUserSummary)
	analytics.Get("/export", authMiddleware, analyticsController.ExportUserEvents)
	analytics.Get("/quiz-performance", authMiddleware, analyticsController.GetQuizPerformance)
	analytics.Get("/progress", authMiddleware, analyticsController.GetLearningProgress)
	analytics.Get("/course/:courseId", authMiddleware, analyticsController.GetCourseAnalytics)

	// Admin analytics: the role check runs before any handler query.
	adminController := controllers.NewAdminController(db, cfg)
	admin := analytics.Group("/admin", adminMiddleware)
	admin.Get("/all-users", adminController.GetAllUsers)
	admin.Get("/all-events", adminController.GetAllEvents)
	admin.Get("/summary", adminController.GetSummary)
	admin.Get("/export-all", adminController.ExportAllEvents)
}
