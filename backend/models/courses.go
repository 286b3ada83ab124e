package models

import "gorm.io/gorm"

type Course struct {
	gorm.Model
	Title           string          `gorm:"not null" json:"title"`
	Description     string          `json:"description"`
	InstructorID    uint            `json:"instructor_id"`
	Category        string          `json:"category"`
	DifficultyLevel string          `gorm:"default:beginner" json:"difficulty_level"` // beginner, intermediate, advanced
	IsPublished     bool            `gorm:"default:false" json:"is_published"`
	Content         []CourseContent `json:"content,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

type CourseContent struct {
	gorm.Model
	CourseID        uint           `gorm:"index;not null" json:"course_id"`
	Title           string         `gorm:"not null" json:"title"`
	ContentType     string         `gorm:"not null" json:"content_type"` // text, video, quiz, interactive
	ContentData     string         `json:"content_data"`                 // opaque JSON blob
	VideoURL        string         `json:"video_url"`
	OrderIndex      int            `gorm:"default:0" json:"order_index"`
	DurationMinutes int            `gorm:"default:0" json:"duration_minutes"`
	Questions       []QuizQuestion `gorm:"foreignKey:ContentID" json:"questions,omitempty"`
}

func (CourseContent) TableName() string {
	return "course_content"
}

const (
	ContentTypeText        = "text"
	ContentTypeVideo       = "video"
	ContentTypeQuiz        = "quiz"
	ContentTypeInteractive = "interactive"
)

type QuizQuestion struct {
	gorm.Model
	ContentID     uint   `gorm:"index;not null" json:"content_id"`
	QuestionText  string `gorm:"not null" json:"question_text"`
	QuestionType  string `gorm:"default:multiple_choice" json:"question_type"`
	Options       string `json:"options"` // JSON array of option strings
	CorrectAnswer string `json:"correct_answer,omitempty"`
	Points        int    `gorm:"default:1" json:"points"`
	OrderIndex    int    `gorm:"default:0" json:"order_index"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}
