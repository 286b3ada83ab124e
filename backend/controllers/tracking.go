package controllers

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"learnhub/backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// trackEvent appends one clickstream row. The timestamp is always assigned
// server-side and the event name is normalized onto the canonical set. A
// persistence failure is logged, never surfaced to the caller: tracking must
// not break the operation it decorates.
func trackEvent(db *gorm.DB, event models.ClickstreamEvent) {
	event.EventName = models.NormalizeEventName(event.EventName)
	event.Timestamp = time.Now().UTC()
	if event.Origin == "" {
		event.Origin = "web"
	}
	if event.SessionID == "" {
		event.SessionID = newSessionID()
	}

	if err := db.Create(&event).Error; err != nil {
		log.Printf("Error tracking event %s: %v", event.EventName, err)
	}
}

func newSessionID() string {
	return uuid.NewString()
}

func trackCourseView(db *gorm.DB, userID uint, course models.Course, c *fiber.Ctx) {
	uid := userID
	trackEvent(db, models.ClickstreamEvent{
		UserID:      &uid,
		EventType:   "Course",
		EventName:   models.EventCourseViewed,
		Component:   "Course",
		Description: "User viewed course: " + course.Title,
		CourseID:    fmt.Sprint(course.ID),
		CourseTitle: course.Title,
		IPAddress:   c.IP(),
		UserAgent:   c.Get("User-Agent"),
	})
}

func trackContentView(db *gorm.DB, userID uint, content models.CourseContent, c *fiber.Ctx) {
	uid := userID
	trackEvent(db, models.ClickstreamEvent{
		UserID:       &uid,
		EventType:    "Content",
		EventName:    models.EventContentViewed,
		Component:    content.ContentType,
		Description:  fmt.Sprintf("User viewed %s: %s", content.ContentType, content.Title),
		CourseID:     fmt.Sprint(content.CourseID),
		ContentID:    fmt.Sprint(content.ID),
		ContentTitle: content.Title,
		ContentType:  content.ContentType,
		IPAddress:    c.IP(),
		UserAgent:    c.Get("User-Agent"),
	})
}

func trackVideoInteraction(db *gorm.DB, userID uint, content models.CourseContent, action string, data interface{}, c *fiber.Ctx) {
	uid := userID
	payload, _ := json.Marshal(data)
	trackEvent(db, models.ClickstreamEvent{
		UserID:       &uid,
		EventType:    "Video",
		EventName:    models.EventVideoInteraction,
		Component:    "Video Player",
		Description:  fmt.Sprintf("Video %s: %s", action, content.Title),
		CourseID:     fmt.Sprint(content.CourseID),
		ContentID:    fmt.Sprint(content.ID),
		ContentTitle: content.Title,
		ContentType:  content.ContentType,
		Action:       action,
		EventData:    string(payload),
		IPAddress:    c.IP(),
		UserAgent:    c.Get("User-Agent"),
	})
}

func trackQuizAttempt(db *gorm.DB, userID uint, content models.CourseContent, attempt models.QuizAttempt, c *fiber.Ctx) {
	uid := userID
	payload, _ := json.Marshal(fiber.Map{
		"score":           attempt.Score,
		"total_questions": attempt.TotalQuestions,
		"correct_answers": attempt.CorrectAnswers,
		"time_taken":      attempt.TimeTakenSeconds,
	})
	trackEvent(db, models.ClickstreamEvent{
		UserID:       &uid,
		EventType:    "Quiz",
		EventName:    models.EventQuizAttempted,
		Component:    "Quiz",
		Description:  "Quiz attempted: " + content.Title,
		CourseID:     fmt.Sprint(content.CourseID),
		ContentID:    fmt.Sprint(content.ID),
		ContentTitle: content.Title,
		ContentType:  content.ContentType,
		Score:        attempt.Score,
		TimeSpent:    attempt.TimeTakenSeconds,
		EventData:    string(payload),
		IPAddress:    c.IP(),
		UserAgent:    c.Get("User-Agent"),
	})
}

func trackContentCompleted(db *gorm.DB, userID uint, progress models.UserProgress, c *fiber.Ctx) {
	uid := userID
	trackEvent(db, models.ClickstreamEvent{
		UserID:             &uid,
		EventType:          "Progress",
		EventName:          models.EventContentCompleted,
		Component:          "Progress Tracker",
		Description:        fmt.Sprintf("Content completed at %.0f%%", progress.ProgressPercentage),
		CourseID:           fmt.Sprint(progress.CourseID),
		ContentID:          fmt.Sprint(progress.ContentID),
		ProgressPercentage: progress.ProgressPercentage,
		TimeSpent:          progress.TimeSpentSeconds,
		IPAddress:          c.IP(),
		UserAgent:          c.Get("User-Agent"),
	})
}

func trackFormSubmission(db *gorm.DB, userID uint, formName, component string, success bool, c *fiber.Ctx) {
	uid := userID
	trackEvent(db, models.ClickstreamEvent{
		UserID:      &uid,
		EventType:   "Form",
		EventName:   models.EventFormSubmitted,
		Component:   component,
		Description: fmt.Sprintf("Form submitted: %s (success=%t)", formName, success),
		FormName:    formName,
		Success:     success,
		IPAddress:   c.IP(),
		UserAgent:   c.Get("User-Agent"),
	})
}
