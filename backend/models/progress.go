package models

import (
	"time"

	"gorm.io/gorm"
)

// UserProgress keeps the latest state per (user, content) pair. Writes are
// replace-style upserts, so no history survives an update.
type UserProgress struct {
	gorm.Model
	UserID             uint      `gorm:"uniqueIndex:idx_user_content;not null" json:"user_id"`
	CourseID           uint      `gorm:"index;not null" json:"course_id"`
	ContentID          uint      `gorm:"uniqueIndex:idx_user_content;not null" json:"content_id"`
	ProgressPercentage float64   `gorm:"default:0" json:"progress_percentage"`
	Completed          bool      `gorm:"default:false" json:"completed"`
	TimeSpentSeconds   int       `gorm:"default:0" json:"time_spent_seconds"`
	LastAccessed       time.Time `json:"last_accessed"`
}

func (UserProgress) TableName() string {
	return "user_progress"
}

// QuizAttempt rows accumulate; every submission inserts a new one.
type QuizAttempt struct {
	gorm.Model
	UserID           uint      `gorm:"index;not null" json:"user_id"`
	QuizContentID    uint      `gorm:"index;not null" json:"quiz_content_id"`
	Score            float64   `json:"score"`
	TotalQuestions   int       `json:"total_questions"`
	CorrectAnswers   int       `json:"correct_answers"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`
	AnswersData      string    `json:"answers_data"` // JSON of submitted answers
	CompletedAt      time.Time `json:"completed_at"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}
