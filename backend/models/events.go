package models

import (
	"strings"
	"time"
)

// Canonical event names. Ingestion accepts legacy free-text spellings from
// older clients and normalizes them onto this set; unrecognized names are
// stored as sent so no event is ever dropped.
const (
	EventPageViewed       = "page_viewed"
	EventCourseViewed     = "course_viewed"
	EventContentViewed    = "content_viewed"
	EventContentCompleted = "content_completed"
	EventVideoInteraction = "video_interaction"
	EventQuizStarted      = "quiz_started"
	EventQuizAttempted    = "quiz_attempted"
	EventButtonClicked    = "button_clicked"
	EventFormSubmitted    = "form_submitted"
	EventNavigation       = "navigation"
	EventSearchPerformed  = "search_performed"
	EventProgressUpdated  = "progress_updated"
	EventError            = "error_occurred"
	EventSessionStarted   = "session_started"
)

// legacyEventNames maps the spellings the old web client emitted onto the
// canonical names above.
var legacyEventNames = map[string]string{
	"page viewed":       EventPageViewed,
	"course viewed":     EventCourseViewed,
	"content viewed":    EventContentViewed,
	"content completed": EventContentCompleted,
	"quiz started":      EventQuizStarted,
	"quiz attempted":    EventQuizAttempted,
	"quiz completed":    EventQuizAttempted,
	"quiz_completed":    EventQuizAttempted,
	"button clicked":    EventButtonClicked,
	"form submitted":    EventFormSubmitted,
	"search performed":  EventSearchPerformed,
	"progress updated":  EventProgressUpdated,
	"session started":   EventSessionStarted,
}

// NormalizeEventName converts a legacy event name into its canonical form.
func NormalizeEventName(name string) string {
	trimmed := strings.TrimSpace(name)
	if canonical, ok := legacyEventNames[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	// The old client emitted "Video played", "Video paused" and so on with
	// the action embedded in the name.
	if strings.HasPrefix(strings.ToLower(trimmed), "video ") {
		return EventVideoInteraction
	}
	return trimmed
}

// ClickstreamEvent is one row in the append-only interaction log. Rows are
// created on ingestion and never mutated or deleted. UserID is nullable:
// unauthenticated events are stored anonymously rather than attributed to a
// placeholder account.
type ClickstreamEvent struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID      *uint  `gorm:"index" json:"user_id"`
	SessionID   string `json:"session_id"`
	EventType   string `gorm:"not null" json:"event_type"`
	EventName   string `gorm:"not null;index" json:"event_name"`
	Component   string `json:"component"`
	Description string `json:"description"`

	PageURL            string  `json:"page_url"`
	CourseID           string  `json:"course_id"`
	ContentID          string  `json:"content_id"`
	ContentTitle       string  `json:"content_title"`
	ContentType        string  `json:"content_type"`
	CourseTitle        string  `json:"course_title"`
	CourseContext      string  `json:"course_context"`
	Action             string  `json:"action"`
	Score              float64 `json:"score"`
	ProgressPercentage float64 `json:"progress_percentage"`
	TimeSpent          int     `json:"time_spent"`
	ButtonName         string  `json:"button_name"`
	FormName           string  `json:"form_name"`
	Success            bool    `json:"success"`
	EventData          string  `json:"event_data"` // opaque JSON blob
	NavigationType     string  `json:"navigation_type"`
	FromPage           string  `json:"from_page"`
	ToPage             string  `json:"to_page"`
	SearchTerm         string  `json:"search_term"`
	SearchResults      int     `json:"search_results"`
	ErrorType          string  `json:"error_type"`
	ErrorMessage       string  `json:"error_message"`

	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Origin    string    `gorm:"default:web" json:"origin"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
}

func (ClickstreamEvent) TableName() string {
	return "clickstream_events"
}
