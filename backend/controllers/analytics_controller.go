package controllers

import (
	"bufio"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"learnhub/backend/config"
	"learnhub/backend/middleware"
	"learnhub/backend/models"
	"learnhub/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AnalyticsController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewAnalyticsController(db *gorm.DB, cfg *config.Config) *AnalyticsController {
	return &AnalyticsController{DB: db, Cfg: cfg}
}

// eventInput is the loosely-typed ingestion payload. Every field is
// optional; omitted fields default to their zero value and are never a
// reason to reject the event.
type eventInput struct {
	SessionID          string          `json:"session_id"`
	EventType          string          `json:"event_type"`
	EventName          string          `json:"event_name"`
	Component          string          `json:"component"`
	Description        string          `json:"description"`
	PageURL            string          `json:"page_url"`
	CourseID           string          `json:"course_id"`
	ContentID          string          `json:"content_id"`
	ContentTitle       string          `json:"content_title"`
	ContentType        string          `json:"content_type"`
	CourseTitle        string          `json:"course_title"`
	CourseContext      string          `json:"course_context"`
	Action             string          `json:"action"`
	Score              float64         `json:"score"`
	ProgressPercentage float64         `json:"progress_percentage"`
	TimeSpent          int             `json:"time_spent"`
	ButtonName         string          `json:"button_name"`
	FormName           string          `json:"form_name"`
	Success            bool            `json:"success"`
	EventData          json.RawMessage `json:"event_data"`
	NavigationType     string          `json:"navigation_type"`
	FromPage           string          `json:"from_page"`
	ToPage             string          `json:"to_page"`
	SearchTerm         string          `json:"search_term"`
	SearchResults      int             `json:"search_results"`
	ErrorType          string          `json:"error_type"`
	ErrorMessage       string          `json:"error_message"`
	Origin             string          `json:"origin"`
}

// TrackEvent ingests one clickstream event. The endpoint is open: with a
// valid bearer token the event is attributed to the principal, without one
// it is stored anonymously (NULL user id). The timestamp is always assigned
// server-side.
func (ac *AnalyticsController) TrackEvent(c *fiber.Ctx) error {
	var input eventInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	var userID *uint
	if principal, ok := middleware.GetPrincipal(c); ok {
		uid := principal.UserID
		userID = &uid
	}

	event := models.ClickstreamEvent{
		UserID:             userID,
		SessionID:          input.SessionID,
		EventType:          input.EventType,
		EventName:          models.NormalizeEventName(input.EventName),
		Component:          input.Component,
		Description:        input.Description,
		PageURL:            input.PageURL,
		CourseID:           input.CourseID,
		ContentID:          input.ContentID,
		ContentTitle:       input.ContentTitle,
		ContentType:        input.ContentType,
		CourseTitle:        input.CourseTitle,
		CourseContext:      input.CourseContext,
		Action:             input.Action,
		Score:              input.Score,
		ProgressPercentage: input.ProgressPercentage,
		TimeSpent:          input.TimeSpent,
		ButtonName:         input.ButtonName,
		FormName:           input.FormName,
		Success:            input.Success,
		NavigationType:     input.NavigationType,
		FromPage:           input.FromPage,
		ToPage:             input.ToPage,
		SearchTerm:         input.SearchTerm,
		SearchResults:      input.SearchResults,
		ErrorType:          input.ErrorType,
		ErrorMessage:       input.ErrorMessage,
		IPAddress:          c.IP(),
		UserAgent:          c.Get("User-Agent"),
		Origin:             input.Origin,
		Timestamp:          time.Now().UTC(),
	}
	if len(input.EventData) > 0 {
		event.EventData = string(input.EventData)
	}
	if event.Origin == "" {
		event.Origin = "web"
	}
	if event.SessionID == "" {
		event.SessionID = newSessionID()
	}

	if err := ac.DB.Create(&event).Error; err != nil {
		return utils.InternalServerError(c, "Failed to record event")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Event recorded",
		"id":      event.ID,
	})
}

// GetUserEvents lists the caller's most recent events (up to 100),
// filterable by event name and date range.
func (ac *AnalyticsController) GetUserEvents(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	limit := c.QueryInt("limit", 100)
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	offset := c.QueryInt("offset", 0)

	query := ac.DB.Where("user_id = ?", principal.UserID)
	if eventName := c.Query("eventName"); eventName != "" {
		query = query.Where("event_name = ?", models.NormalizeEventName(eventName))
	}
	if eventType := c.Query("eventType"); eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}
	query, err := applyDateRange(query, c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		return utils.BadRequest(c, "Invalid date format. Use YYYY-MM-DD")
	}

	var events []models.ClickstreamEvent
	if err := query.Order("timestamp DESC").Limit(limit).Offset(offset).Find(&events).Error; err != nil {
		return utils.InternalServerError(c, "Failed to fetch events")
	}

	return c.JSON(fiber.Map{"events": events})
}

// summaryWindow converts a period query value into a trailing day count.
func summaryWindow(period string) int {
	switch period {
	case "7d":
		return 7
	case "90d":
		return 90
	default:
		return 30
	}
}

// GetUserSummary computes the per-user dashboard: windowed event aggregates,
// window-independent per-course completion rollups, and the most recent
// achievement events. Every read recomputes from the store.
func (ac *AnalyticsController) GetUserSummary(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	days := summaryWindow(c.Query("period"))
	since := time.Now().UTC().AddDate(0, 0, -days)

	// MAX(timestamp) comes back as text, so it is scanned as a string and
	// parsed afterwards.
	var totals struct {
		TotalEvents      int64
		TotalTimeSpent   int // minutes of video time
		AverageScore     float64
		CompletedContent int64
		CoursesAccessed  int64
		QuizzesTaken     int64
		LastActivity     sql.NullString
	}

	err := ac.DB.Raw(`
		SELECT
			COUNT(*) AS total_events,
			COALESCE(SUM(CASE WHEN content_type = 'video' THEN time_spent ELSE 0 END) / 60, 0) AS total_time_spent,
			COALESCE(AVG(CASE WHEN event_name = ? THEN score END), 0) AS average_score,
			COUNT(DISTINCT CASE WHEN event_name = ? THEN content_id END) AS completed_content,
			COUNT(DISTINCT CASE WHEN course_id <> '' THEN course_id END) AS courses_accessed,
			COUNT(DISTINCT CASE WHEN event_name = ? THEN content_id END) AS quizzes_taken,
			MAX(timestamp) AS last_activity
		FROM clickstream_events
		WHERE user_id = ? AND timestamp >= ?
	`, models.EventQuizAttempted, models.EventContentCompleted, models.EventQuizAttempted,
		principal.UserID, since).Scan(&totals).Error
	if err != nil {
		return utils.InternalServerError(c, "Failed to fetch analytics data")
	}

	summary := fiber.Map{
		"totalEvents":      totals.TotalEvents,
		"totalTimeSpent":   totals.TotalTimeSpent,
		"averageScore":     round2(totals.AverageScore),
		"completedContent": totals.CompletedContent,
		"coursesAccessed":  totals.CoursesAccessed,
		"quizzesTaken":     totals.QuizzesTaken,
		"lastActivity":     utils.ParseSQLTime(totals.LastActivity),
	}

	// Per-course rollups are window-independent: they reflect the progress
	// table, not the event log.
	var courseRows []struct {
		CourseID         uint
		CourseTitle      string
		TotalContent     int64
		CompletedContent int64
		TimeSpentSeconds int64
		LastAccessed     sql.NullString
		CompletionRate   float64
	}

	err = ac.DB.Raw(`
		SELECT
			c.id AS course_id,
			c.title AS course_title,
			COUNT(cc.id) AS total_content,
			COUNT(CASE WHEN up.completed THEN 1 END) AS completed_content,
			COALESCE(SUM(up.time_spent_seconds), 0) AS time_spent_seconds,
			MAX(up.last_accessed) AS last_accessed,
			CASE WHEN COUNT(cc.id) > 0
				THEN COUNT(CASE WHEN up.completed THEN 1 END) * 100.0 / COUNT(cc.id)
				ELSE 0 END AS completion_rate
		FROM courses c
		LEFT JOIN course_content cc ON cc.course_id = c.id AND cc.deleted_at IS NULL
		LEFT JOIN user_progress up ON up.content_id = cc.id AND up.user_id = ? AND up.deleted_at IS NULL
		WHERE c.is_published = true AND c.deleted_at IS NULL
		GROUP BY c.id, c.title
		ORDER BY c.id
	`, principal.UserID).Scan(&courseRows).Error
	if err != nil {
		return utils.InternalServerError(c, "Failed to fetch analytics data")
	}

	courseProgress := make([]fiber.Map, 0, len(courseRows))
	for _, row := range courseRows {
		courseProgress = append(courseProgress, fiber.Map{
			"course_id":          row.CourseID,
			"course_title":       row.CourseTitle,
			"total_content":      row.TotalContent,
			"completed_content":  row.CompletedContent,
			"time_spent_seconds": row.TimeSpentSeconds,
			"last_accessed":      utils.ParseSQLTime(row.LastAccessed),
			"completion_rate":    row.CompletionRate,
		})
	}

	var achievements []models.ClickstreamEvent
	err = ac.DB.
		Where("user_id = ? AND event_name IN ?", principal.UserID,
			[]string{models.EventContentCompleted, models.EventQuizAttempted, models.EventCourseViewed}).
		Order("timestamp DESC").
		Limit(10).
		Find(&achievements).Error
	if err != nil {
		return utils.InternalServerError(c, "Failed to fetch analytics data")
	}

	return c.JSON(fiber.Map{
		"summary":            summary,
		"courseProgress":     courseProgress,
		"recentAchievements": achievements,
		"period":             strconv.Itoa(days) + "d",
	})
}

// exportBatchSize is how many event rows each export query fetches.
const exportBatchSize = 500

// userExportColumns is the per-user CSV column order.
var userExportColumns = []string{
	"timestamp", "event_type", "event_name", "component", "description",
	"page_url", "course_id", "content_id", "event_data",
	"ip_address", "user_agent", "origin",
}

// ExportUserEvents streams the caller's events as a CSV attachment. Rows are
// written in batches so large exports never materialize fully in memory.
func (ac *AnalyticsController) ExportUserEvents(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	if format := c.Query("format", "csv"); format != "csv" {
		return utils.BadRequest(c, "Unsupported export format")
	}

	query := ac.DB.Model(&models.ClickstreamEvent{}).Where("user_id = ?", principal.UserID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.InternalServerError(c, "Failed to fetch export data")
	}
	if total == 0 {
		return utils.NotFound(c, "No data to export")
	}

	utils.SetCSVAttachment(c, "my_learning_data")

	db := ac.DB
	userID := principal.UserID
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		writer := csv.NewWriter(w)
		writer.Write(userExportColumns)

		// FindInBatches walks the table in primary-key order, which for an
		// append-only log is also insertion order.
		var batch []models.ClickstreamEvent
		result := db.Where("user_id = ?", userID).
			FindInBatches(&batch, exportBatchSize, func(tx *gorm.DB, _ int) error {
				for _, event := range batch {
					writer.Write([]string{
						utils.CSVString(event.Timestamp),
						event.EventType,
						event.EventName,
						event.Component,
						event.Description,
						event.PageURL,
						event.CourseID,
						event.ContentID,
						event.EventData,
						event.IPAddress,
						event.UserAgent,
						event.Origin,
					})
				}
				writer.Flush()
				return nil
			})
		if result.Error != nil {
			// The response is already streaming, so the failure can only be
			// logged; the download ends short.
			log.Printf("Error exporting events for user %d: %v", userID, result.Error)
		}
		writer.Flush()
	})

	return nil
}

// GetQuizPerformance returns the caller's quiz attempt history with summary
// metrics.
func (ac *AnalyticsController) GetQuizPerformance(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var attempts []struct {
		models.QuizAttempt
		QuizTitle   string `json:"quiz_title"`
		CourseTitle string `json:"course_title"`
	}

	err := ac.DB.Raw(`
		SELECT
			qa.*,
			cc.title AS quiz_title,
			c.title AS course_title
		FROM quiz_attempts qa
		JOIN course_content cc ON qa.quiz_content_id = cc.id
		JOIN courses c ON cc.course_id = c.id
		WHERE qa.user_id = ? AND qa.deleted_at IS NULL
		ORDER BY qa.completed_at DESC
	`, principal.UserID).Scan(&attempts).Error
	if err != nil {
		return utils.InternalServerError(c, "Failed to fetch quiz performance")
	}

	totalAttempts := len(attempts)
	averageScore := 0.0
	bestScore := 0.0
	for _, attempt := range attempts {
		averageScore += attempt.Score
		if attempt.Score > bestScore {
			bestScore = attempt.Score
		}
	}
	if totalAttempts > 0 {
		averageScore /= float64(totalAttempts)
	}

	return c.JSON(fiber.Map{
		"attempts": attempts,
		"metrics": fiber.Map{
			"totalAttempts": totalAttempts,
			"averageScore":  round2(averageScore),
			"bestScore":     round2(bestScore),
		},
	})
}

// GetLearningProgress returns the caller's progress rows with titles and
// summary metrics.
func (ac *AnalyticsController) GetLearningProgress(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var rows []struct {
		models.UserProgress
		CourseTitle  string `json:"course_title"`
		ContentTitle string `json:"content_title"`
		ContentType  string `json:"content_type"`
	}

	err := ac.DB.Raw(`
		SELECT
			up.*,
			c.title AS course_title,
			cc.title AS content_title,
			cc.content_type
		FROM user_progress up
		JOIN courses c ON up.course_id = c.id
		JOIN course_content cc ON up.content_id = cc.id
		WHERE up.user_id = ? AND up.deleted_at IS NULL
		ORDER BY up.last_accessed DESC
	`, principal.UserID).Scan(&rows).Error
	if err != nil {
		return utils.InternalServerError(c, "Failed to fetch progress")
	}

	totalContent := len(rows)
	completedContent := 0
	averageProgress := 0.0
	totalTimeSpent := 0
	for _, row := range rows {
		if row.Completed {
			completedContent++
		}
		averageProgress += row.ProgressPercentage
		totalTimeSpent += row.TimeSpentSeconds
	}
	if totalContent > 0 {
		averageProgress /= float64(totalContent)
	}

	return c.JSON(fiber.Map{
		"progress": rows,
		"metrics": fiber.Map{
			"totalContent":     totalContent,
			"completedContent": completedContent,
			"averageProgress":  round2(averageProgress),
			"totalTimeSpent":   totalTimeSpent / 60, // minutes
		},
	})
}

// GetCourseAnalytics returns a per-course event rollup by kind and day.
// Restricted to the course's instructor or an admin.
func (ac *AnalyticsController) GetCourseAnalytics(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	courseID, err := strconv.Atoi(c.Params("courseId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}

	var course models.Course
	if err := ac.DB.First(&course, courseID).Error; err != nil {
		return utils.NotFound(c, "Course not found")
	}
	if course.InstructorID != principal.UserID && !principal.IsAdmin() {
		return utils.Forbidden(c, "Access denied")
	}

	var rollup []struct {
		EventType   string `json:"event_type"`
		EventName   string `json:"event_name"`
		Count       int64  `json:"count"`
		UniqueUsers int64  `json:"unique_users"`
		Date        string `json:"date"`
	}

	err = ac.DB.Raw(`
		SELECT
			event_type,
			event_name,
			COUNT(*) AS count,
			COUNT(DISTINCT user_id) AS unique_users,
			DATE(timestamp) AS date
		FROM clickstream_events
		WHERE course_id = ?
		GROUP BY event_type, event_name, DATE(timestamp)
		ORDER BY date DESC, count DESC
	`, strconv.Itoa(courseID)).Scan(&rollup).Error
	if err != nil {
		return utils.InternalServerError(c, "Failed to fetch course analytics")
	}

	return c.JSON(fiber.Map{
		"course_id":    courseID,
		"course_title": course.Title,
		"analytics":    rollup,
	})
}

// applyDateRange narrows a query to DATE(timestamp) within [start, end].
func applyDateRange(query *gorm.DB, startDate, endDate string) (*gorm.DB, error) {
	if startDate != "" {
		if _, err := time.Parse("2006-01-02", startDate); err != nil {
			return nil, err
		}
		query = query.Where("DATE(timestamp) >= ?", startDate)
	}
	if endDate != "" {
		if _, err := time.Parse("2006-01-02", endDate); err != nil {
			return nil, err
		}
		query = query.Where("DATE(timestamp) <= ?", endDate)
	}
	return query, nil
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
