package controllers

import (
	"bufio"
	"database/sql"
	"encoding/csv"
	"log"
	"time"

	"learnhub/backend/config"
	"learnhub/backend/models"
	"learnhub/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AdminController serves the system-wide analytics surface. Every route it
// backs sits behind the admin middleware, so the role is already verified
// before any query here executes.
type AdminController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewAdminController(db *gorm.DB, cfg *config.Config) *AdminController {
	return &AdminController{DB: db, Cfg: cfg}
}

// GetAllUsers lists every account with its event totals, newest accounts
// first.
func (ac *AdminController) GetAllUsers(c *fiber.Ctx) error {
	// MAX(ce.timestamp) is an aggregate and scans as text.
	var rows []struct {
		ID           uint
		Username     string
		Email        string
		Role         string
		CreatedAt    time.Time
		LastLogin    *time.Time
		TotalEvents  int64
		UniqueEvents int64
		LastActivity sql.NullString
	}

	err := ac.DB.Raw(`
		SELECT
			u.id,
			u.username,
			u.email,
			u.role,
			u.created_at,
			u.last_login,
			COUNT(ce.id) AS total_events,
			COUNT(DISTINCT ce.event_name) AS unique_events,
			MAX(ce.timestamp) AS last_activity
		FROM users u
		LEFT JOIN clickstream_events ce ON ce.user_id = u.id
		WHERE u.deleted_at IS NULL
		GROUP BY u.id, u.username, u.email, u.role, u.created_at, u.last_login
		ORDER BY u.created_at DESC
	`).Scan(&rows).Error
	if err != nil {
		return utils.InternalServerError(c, "Failed to fetch users")
	}

	users := make([]fiber.Map, 0, len(rows))
	for _, row := range rows {
		users = append(users, fiber.Map{
			"id":            row.ID,
			"username":      row.Username,
			"email":         row.Email,
			"role":          row.Role,
			"created_at":    row.CreatedAt,
			"last_login":    row.LastLogin,
			"total_events":  row.TotalEvents,
			"unique_events": row.UniqueEvents,
			"last_activity": utils.ParseSQLTime(row.LastActivity),
		})
	}

	return c.JSON(fiber.Map{"users": users})
}

type adminEventRow struct {
	models.ClickstreamEvent
	Username string `json:"username"`
	Role     string `json:"role"`
}

// GetAllEvents lists events newest first with user profile fields attached,
// paginated and filterable by user, event-name substring and date range.
func (ac *AdminController) GetAllEvents(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	base := ac.DB.Model(&models.ClickstreamEvent{})
	if userID := c.QueryInt("userId", 0); userID > 0 {
		base = base.Where("clickstream_events.user_id = ?", userID)
	}
	if eventName := c.Query("eventName"); eventName != "" {
		base = base.Where("clickstream_events.event_name LIKE ?", "%"+eventName+"%")
	}
	base, err := applyDateRange(base, c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		return utils.BadRequest(c, "Invalid date format. Use YYYY-MM-DD")
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return utils.InternalServerError(c, "Failed to fetch events")
	}

	var events []adminEventRow
	err = base.Session(&gorm.Session{}).
		Select("clickstream_events.*, COALESCE(users.username, '') AS username, COALESCE(users.role, '') AS role").
		Joins("LEFT JOIN users ON users.id = clickstream_events.user_id").
		Order("clickstream_events.timestamp DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Scan(&events).Error
	if err != nil {
		return utils.InternalServerError(c, "Failed to fetch events")
	}

	return utils.Paginate(c, fiber.Map{"events": events}, total, page, limit)
}

// GetSummary returns the system-wide rollup: totals, the 10 most frequent
// event names, and the 20 most recent events with usernames attached.
func (ac *AdminController) GetSummary(c *fiber.Ctx) error {
	var totalUsers, totalEvents int64
	if err := ac.DB.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return utils.InternalServerError(c, "Failed to fetch summary")
	}
	if err := ac.DB.Model(&models.ClickstreamEvent{}).Count(&totalEvents).Error; err != nil {
		return utils.InternalServerError(c, "Failed to fetch summary")
	}

	var topEvents []struct {
		EventName string `json:"event_name"`
		Count     int64  `json:"count"`
	}
	err := ac.DB.Model(&models.ClickstreamEvent{}).
		Select("event_name, COUNT(*) AS count").
		Group("event_name").
		Order("count DESC").
		Limit(10).
		Scan(&topEvents).Error
	if err != nil {
		return utils.InternalServerError(c, "Failed to fetch summary")
	}

	var recentActivity []adminEventRow
	err = ac.DB.Model(&models.ClickstreamEvent{}).
		Select("clickstream_events.*, COALESCE(users.username, '') AS username, COALESCE(users.role, '') AS role").
		Joins("LEFT JOIN users ON users.id = clickstream_events.user_id").
		Order("clickstream_events.timestamp DESC").
		Limit(20).
		Scan(&recentActivity).Error
	if err != nil {
		return utils.InternalServerError(c, "Failed to fetch summary")
	}

	return c.JSON(fiber.Map{
		"summary": fiber.Map{
			"total_users":     totalUsers,
			"total_events":    totalEvents,
			"event_types":     topEvents,
			"recent_activity": recentActivity,
		},
	})
}

// adminExportColumns is the extended all-data CSV column order.
var adminExportColumns = []string{
	"timestamp", "username", "role", "event_type", "event_name", "component",
	"description", "page_url", "course_id", "content_id", "content_title",
	"content_type", "course_title", "action", "score", "progress_percentage",
	"time_spent", "button_name", "form_name", "success", "event_data",
	"navigation_type", "from_page", "to_page", "search_term", "search_results",
	"error_type", "error_message", "session_id", "ip_address", "user_agent", "origin",
}

// ExportAllEvents streams every event as CSV with the extended column set.
func (ac *AdminController) ExportAllEvents(c *fiber.Ctx) error {
	var total int64
	if err := ac.DB.Model(&models.ClickstreamEvent{}).Count(&total).Error; err != nil {
		return utils.InternalServerError(c, "Failed to fetch export data")
	}
	if total == 0 {
		return utils.NotFound(c, "No data to export")
	}

	utils.SetCSVAttachment(c, "all_analytics")

	db := ac.DB
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		writer := csv.NewWriter(w)
		writer.Write(adminExportColumns)

		// Keyset pagination on the event id; FindInBatches cannot track its
		// cursor on a row type that embeds the model.
		lastID := uint(0)
		for {
			var batch []adminEventRow
			err := db.Model(&models.ClickstreamEvent{}).
				Select("clickstream_events.*, COALESCE(users.username, '') AS username, COALESCE(users.role, '') AS role").
				Joins("LEFT JOIN users ON users.id = clickstream_events.user_id").
				Where("clickstream_events.id > ?", lastID).
				Order("clickstream_events.id").
				Limit(exportBatchSize).
				Scan(&batch).Error
			if err != nil {
				log.Printf("Error exporting events: %v", err)
				break
			}
			if len(batch) == 0 {
				break
			}

			for _, row := range batch {
				writer.Write([]string{
					utils.CSVString(row.Timestamp),
					row.Username,
					row.Role,
					row.EventType,
					row.EventName,
					row.Component,
					row.Description,
					row.PageURL,
					row.CourseID,
					row.ContentID,
					row.ContentTitle,
					row.ContentType,
					row.CourseTitle,
					row.Action,
					utils.CSVString(row.Score),
					utils.CSVString(row.ProgressPercentage),
					utils.CSVString(row.TimeSpent),
					row.ButtonName,
					row.FormName,
					utils.CSVString(row.Success),
					row.EventData,
					row.NavigationType,
					row.FromPage,
					row.ToPage,
					row.SearchTerm,
					utils.CSVString(row.SearchResults),
					row.ErrorType,
					row.ErrorMessage,
					row.SessionID,
					row.IPAddress,
					row.UserAgent,
					row.Origin,
				})
			}
			writer.Flush()
			lastID = batch[len(batch)-1].ID
		}
		writer.Flush()
	})

	return nil
}
