package controllers

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"learnhub/backend/config"
	"learnhub/backend/middleware"
	"learnhub/backend/models"
	"learnhub/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CoursesController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewCoursesController(db *gorm.DB, cfg *config.Config) *CoursesController {
	return &CoursesController{DB: db, Cfg: cfg}
}

// GetCourses lists published courses with instructor name, content count and
// the caller's average progress.
func (cc *CoursesController) GetCourses(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var courses []struct {
		ID              uint      `json:"id"`
		Title           string    `json:"title"`
		Description     string    `json:"description"`
		Category        string    `json:"category"`
		DifficultyLevel string    `json:"difficulty_level"`
		CreatedAt       time.Time `json:"created_at"`
		InstructorName  string    `json:"instructor_name"`
		ContentCount    int64     `json:"content_count"`
		UserProgress    float64   `json:"user_progress"`
	}

	err := cc.DB.Raw(`
		SELECT
			c.id,
			c.title,
			c.description,
			c.category,
			c.difficulty_level,
			c.created_at,
			COALESCE(u.first_name || ' ' || u.last_name, '') AS instructor_name,
			(SELECT COUNT(*) FROM course_content cc2 WHERE cc2.course_id = c.id AND cc2.deleted_at IS NULL) AS content_count,
			COALESCE((SELECT AVG(up.progress_percentage) FROM user_progress up
				WHERE up.course_id = c.id AND up.user_id = ? AND up.deleted_at IS NULL), 0) AS user_progress
		FROM courses c
		LEFT JOIN users u ON c.instructor_id = u.id
		WHERE c.is_published = true AND c.deleted_at IS NULL
		ORDER BY c.created_at DESC
	`, principal.UserID).Scan(&courses).Error
	if err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	return c.JSON(fiber.Map{"courses": courses})
}

// GetCourseDetails returns one published course with its ordered content and
// the caller's per-item progress. Viewing a course appends a course_viewed
// event.
func (cc *CoursesController) GetCourseDetails(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	courseID, err := strconv.Atoi(c.Params("courseId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}

	var course models.Course
	if err := cc.DB.Where("is_published = ?", true).First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Course not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	trackCourseView(cc.DB, principal.UserID, course, c)

	var content []struct {
		models.CourseContent
		UserProgress  float64 `json:"user_progress"`
		UserCompleted bool    `json:"user_completed"`
		UserTimeSpent int     `json:"user_time_spent"`
	}

	err = cc.DB.Raw(`
		SELECT
			cc2.*,
			COALESCE(up.progress_percentage, 0) AS user_progress,
			COALESCE(up.completed, false) AS user_completed,
			COALESCE(up.time_spent_seconds, 0) AS user_time_spent
		FROM course_content cc2
		LEFT JOIN user_progress up ON cc2.id = up.content_id AND up.user_id = ? AND up.deleted_at IS NULL
		WHERE cc2.course_id = ? AND cc2.deleted_at IS NULL
		ORDER BY cc2.order_index
	`, principal.UserID, courseID).Scan(&content).Error
	if err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	return c.JSON(fiber.Map{
		"course":  course,
		"content": content,
	})
}

// GetContentItem returns a single content item. Quiz content includes its
// questions with the correct answers stripped.
func (cc *CoursesController) GetContentItem(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	courseID, err := strconv.Atoi(c.Params("courseId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}
	contentID, err := strconv.Atoi(c.Params("contentId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid content ID")
	}

	content, err := cc.loadContent(uint(courseID), uint(contentID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Content not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	trackContentView(cc.DB, principal.UserID, content, c)

	var progress models.UserProgress
	cc.DB.Where("user_id = ? AND content_id = ?", principal.UserID, contentID).First(&progress)

	response := fiber.Map{
		"content":  content,
		"progress": progress,
	}

	if content.ContentType == models.ContentTypeQuiz {
		var questions []models.QuizQuestion
		if err := cc.DB.Where("content_id = ?", contentID).
			Order("order_index").Find(&questions).Error; err != nil {
			return utils.InternalServerError(c, "Could not query database")
		}

		sanitized := make([]fiber.Map, 0, len(questions))
		for _, q := range questions {
			var options []string
			json.Unmarshal([]byte(q.Options), &options)
			sanitized = append(sanitized, fiber.Map{
				"id":            q.ID,
				"question_text": q.QuestionText,
				"question_type": q.QuestionType,
				"options":       options,
				"points":        q.Points,
				"order_index":   q.OrderIndex,
			})
		}
		response["questions"] = sanitized
	}

	return c.JSON(response)
}

// VideoInteraction records a video player event (play, pause, seek, ...).
func (cc *CoursesController) VideoInteraction(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	courseID, err := strconv.Atoi(c.Params("courseId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}
	contentID, err := strconv.Atoi(c.Params("contentId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid content ID")
	}

	var input struct {
		Action    string                 `json:"action"`
		VideoData map[string]interface{} `json:"videoData"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	content, err := cc.loadContent(uint(courseID), uint(contentID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Content not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	trackVideoInteraction(cc.DB, principal.UserID, content, input.Action, input.VideoData, c)

	return c.JSON(fiber.Map{"message": "Video interaction tracked"})
}

// UpdateProgress upserts the caller's progress for one content item. The row
// is replaced, not merged: the latest update wins entirely.
func (cc *CoursesController) UpdateProgress(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	courseID, err := strconv.Atoi(c.Params("courseId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}
	contentID, err := strconv.Atoi(c.Params("contentId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid content ID")
	}

	var input struct {
		ProgressPercentage float64 `json:"progressPercentage"`
		TimeSpent          int     `json:"timeSpent"`
		Completed          bool    `json:"completed"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	if _, err := cc.loadContent(uint(courseID), uint(contentID)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Content not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	progress := models.UserProgress{
		UserID:             principal.UserID,
		CourseID:           uint(courseID),
		ContentID:          uint(contentID),
		ProgressPercentage: input.ProgressPercentage,
		Completed:          input.Completed,
		TimeSpentSeconds:   input.TimeSpent,
		LastAccessed:       time.Now().UTC(),
	}

	if err := upsertProgress(cc.DB, &progress); err != nil {
		return utils.InternalServerError(c, "Could not save progress")
	}

	if input.Completed {
		trackContentCompleted(cc.DB, principal.UserID, progress, c)
	}

	return c.JSON(fiber.Map{"message": "Progress updated successfully"})
}

// upsertProgress inserts or fully replaces the row keyed on
// (user_id, content_id).
func upsertProgress(db *gorm.DB, progress *models.UserProgress) error {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "content_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"course_id", "progress_percentage", "completed",
			"time_spent_seconds", "last_accessed", "updated_at",
		}),
	}).Create(progress).Error
}

// GetCourseProgress lists per-content progress for a course; content without
// a progress row reads as 0% / incomplete.
func (cc *CoursesController) GetCourseProgress(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	courseID, err := strconv.Atoi(c.Params("courseId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}

	var rows []struct {
		ContentID          uint       `json:"content_id"`
		ContentTitle       string     `json:"content_title"`
		ContentType        string     `json:"content_type"`
		ProgressPercentage float64    `json:"progress_percentage"`
		Completed          bool       `json:"completed"`
		TimeSpentSeconds   int        `json:"time_spent_seconds"`
		LastAccessed       *time.Time `json:"last_accessed"`
	}

	err = cc.DB.Raw(`
		SELECT
			cc2.id AS content_id,
			cc2.title AS content_title,
			cc2.content_type,
			COALESCE(up.progress_percentage, 0) AS progress_percentage,
			COALESCE(up.completed, false) AS completed,
			COALESCE(up.time_spent_seconds, 0) AS time_spent_seconds,
			up.last_accessed
		FROM course_content cc2
		LEFT JOIN user_progress up ON cc2.id = up.content_id AND up.user_id = ? AND up.deleted_at IS NULL
		WHERE cc2.course_id = ? AND cc2.deleted_at IS NULL
		ORDER BY cc2.order_index
	`, principal.UserID, courseID).Scan(&rows).Error
	if err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	totalContent := len(rows)
	completedContent := 0
	for _, row := range rows {
		if row.Completed {
			completedContent++
		}
	}
	overallProgress := 0.0
	if totalContent > 0 {
		overallProgress = float64(completedContent) / float64(totalContent) * 100
	}

	return c.JSON(fiber.Map{
		"progress":         rows,
		"overallProgress":  overallProgress,
		"totalContent":     totalContent,
		"completedContent": completedContent,
	})
}

// SubmitQuiz scores a submission against the stored questions, appends a
// QuizAttempt row and upserts a companion progress row marking the content
// complete at the attempt's score.
func (cc *CoursesController) SubmitQuiz(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	courseID, err := strconv.Atoi(c.Params("courseId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}
	contentID, err := strconv.Atoi(c.Params("contentId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid content ID")
	}

	var input struct {
		Answers   map[string]string `json:"answers"` // question id -> submitted answer
		TimeTaken int               `json:"timeTaken"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	content, err := cc.loadContent(uint(courseID), uint(contentID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Content not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	var questions []models.QuizQuestion
	if err := cc.DB.Where("content_id = ?", contentID).
		Order("order_index").Find(&questions).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	correctAnswers := 0
	for _, question := range questions {
		if input.Answers[strconv.Itoa(int(question.ID))] == question.CorrectAnswer {
			correctAnswers++
		}
	}

	totalQuestions := len(questions)
	score := 0.0
	if totalQuestions > 0 {
		score = float64(correctAnswers) / float64(totalQuestions) * 100
	}

	answersJSON, _ := json.Marshal(input.Answers)
	attempt := models.QuizAttempt{
		UserID:           principal.UserID,
		QuizContentID:    uint(contentID),
		Score:            score,
		TotalQuestions:   totalQuestions,
		CorrectAnswers:   correctAnswers,
		TimeTakenSeconds: input.TimeTaken,
		AnswersData:      string(answersJSON),
		CompletedAt:      time.Now().UTC(),
	}

	if err := cc.DB.Create(&attempt).Error; err != nil {
		return utils.InternalServerError(c, "Could not save quiz attempt")
	}

	trackQuizAttempt(cc.DB, principal.UserID, content, attempt, c)

	progress := models.UserProgress{
		UserID:             principal.UserID,
		CourseID:           uint(courseID),
		ContentID:          uint(contentID),
		ProgressPercentage: score,
		Completed:          true,
		TimeSpentSeconds:   input.TimeTaken,
		LastAccessed:       time.Now().UTC(),
	}
	if err := upsertProgress(cc.DB, &progress); err != nil {
		return utils.InternalServerError(c, "Could not save progress")
	}

	return c.JSON(fiber.Map{
		"message":        "Quiz submitted successfully",
		"score":          score,
		"totalQuestions": totalQuestions,
		"correctAnswers": correctAnswers,
		"timeTaken":      input.TimeTaken,
	})
}

// loadContent fetches a content item scoped to its published course.
func (cc *CoursesController) loadContent(courseID, contentID uint) (models.CourseContent, error) {
	var content models.CourseContent
	err := cc.DB.
		Joins("JOIN courses ON courses.id = course_content.course_id AND courses.is_published = ?", true).
		Where("course_content.id = ? AND course_content.course_id = ?", contentID, courseID).
		First(&content).Error
	return content, err
}

// CreateCourse creates a new course owned by the caller. Instructors and
// admins only.
func (cc *CoursesController) CreateCourse(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}
	if principal.Role != models.RoleAdmin && principal.Role != models.RoleInstructor {
		return utils.Forbidden(c, "Instructor access required")
	}

	var course models.Course
	if err := c.BodyParser(&course); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if course.Title == "" {
		return utils.ValidationError(c, map[string]string{"title": "Title is required"})
	}

	course.InstructorID = principal.UserID

	if err := cc.DB.Create(&course).Error; err != nil {
		return utils.InternalServerError(c, "Could not create course")
	}

	return c.JSON(fiber.Map{
		"message": "Course created",
		"course":  course,
	})
}

// AddContent appends a content item to a course the caller owns.
func (cc *CoursesController) AddContent(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	courseID, err := strconv.Atoi(c.Params("courseId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}

	var course models.Course
	if err := cc.DB.First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Course not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}
	if course.InstructorID != principal.UserID && !principal.IsAdmin() {
		return utils.Forbidden(c, "You don't have permission to edit this course")
	}

	var content models.CourseContent
	if err := c.BodyParser(&content); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if content.Title == "" || content.ContentType == "" {
		return utils.ValidationError(c, map[string]string{
			"title":        "Title is required",
			"content_type": "Content type is required",
		})
	}

	content.CourseID = uint(courseID)
	if content.OrderIndex == 0 {
		var count int64
		cc.DB.Model(&models.CourseContent{}).Where("course_id = ?", courseID).Count(&count)
		content.OrderIndex = int(count) + 1
	}

	if err := cc.DB.Create(&content).Error; err != nil {
		return utils.InternalServerError(c, "Could not create content")
	}

	return c.JSON(fiber.Map{
		"message": "Content added",
		"content": content,
	})
}

// AddQuestion appends a quiz question to quiz content the caller owns.
func (cc *CoursesController) AddQuestion(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	courseID, err := strconv.Atoi(c.Params("courseId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}
	contentID, err := strconv.Atoi(c.Params("contentId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid content ID")
	}

	var course models.Course
	if err := cc.DB.First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Course not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}
	if course.InstructorID != principal.UserID && !principal.IsAdmin() {
		return utils.Forbidden(c, "You don't have permission to edit this course")
	}

	var content models.CourseContent
	if err := cc.DB.Where("id = ? AND course_id = ?", contentID, courseID).First(&content).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Content not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}
	if content.ContentType != models.ContentTypeQuiz {
		return utils.BadRequest(c, "Content is not a quiz")
	}

	var input struct {
		QuestionText  string   `json:"question_text"`
		QuestionType  string   `json:"question_type"`
		Options       []string `json:"options"`
		CorrectAnswer string   `json:"correct_answer"`
		Points        int      `json:"points"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	validOption := false
	for _, option := range input.Options {
		if option == input.CorrectAnswer {
			validOption = true
			break
		}
	}
	if !validOption {
		return utils.BadRequest(c, "Correct answer must be one of the options")
	}

	optionsJSON, err := json.Marshal(input.Options)
	if err != nil {
		return utils.InternalServerError(c, "Could not encode options")
	}

	var questionCount int64
	cc.DB.Model(&models.QuizQuestion{}).Where("content_id = ?", contentID).Count(&questionCount)

	question := models.QuizQuestion{
		ContentID:     uint(contentID),
		QuestionText:  input.QuestionText,
		QuestionType:  input.QuestionType,
		Options:       string(optionsJSON),
		CorrectAnswer: input.CorrectAnswer,
		Points:        input.Points,
		OrderIndex:    int(questionCount) + 1,
	}
	if question.QuestionType == "" {
		question.QuestionType = "multiple_choice"
	}
	if question.Points == 0 {
		question.Points = 1
	}

	if err := cc.DB.Create(&question).Error; err != nil {
		return utils.InternalServerError(c, "Could not create question")
	}

	return c.JSON(fiber.Map{
		"message":  "Question added",
		"question": question,
	})
}
