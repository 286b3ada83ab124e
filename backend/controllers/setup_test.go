package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"learnhub/backend/config"
	"learnhub/backend/models"
	"learnhub/backend/routes"
	"learnhub/backend/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
	cfg *config.Config
}

// newTestEnv builds a fiber app with the full route table backed by a
// per-test in-memory database.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := utils.MigrateDB(db); err != nil {
		t.Fatalf("migrate database: %v", err)
	}

	cfg := &config.Config{
		JWTSecret:  "testsecret",
		ServerPort: "8080",
	}

	app := fiber.New()
	routes.SetupRoutes(app, db, cfg)

	return &testEnv{app: app, db: db, cfg: cfg}
}

// createUser inserts a user with the given role and returns it with a valid
// token.
func (env *testEnv) createUser(t *testing.T, username, role string) (models.User, string) {
	t.Helper()

	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	if err := env.db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	token, err := utils.GenerateJWTToken(user.ID, user.Username, user.Role, env.cfg)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	return user, token
}

// createCourseWithContent seeds a published course with one content item.
func (env *testEnv) createCourseWithContent(t *testing.T, instructorID uint, contentType string) (models.Course, models.CourseContent) {
	t.Helper()

	course := models.Course{
		Title:        "Web Development Bootcamp",
		InstructorID: instructorID,
		Category:     "Programming",
		IsPublished:  true,
	}
	if err := env.db.Create(&course).Error; err != nil {
		t.Fatalf("create course: %v", err)
	}

	content := models.CourseContent{
		CourseID:    course.ID,
		Title:       "Lesson One",
		ContentType: contentType,
		OrderIndex:  1,
	}
	if err := env.db.Create(&content).Error; err != nil {
		t.Fatalf("create content: %v", err)
	}

	return course, content
}

func (env *testEnv) addQuestion(t *testing.T, contentID uint, text, correct string, order int) models.QuizQuestion {
	t.Helper()

	options, _ := json.Marshal([]string{"A", "B", "C", "D"})
	question := models.QuizQuestion{
		ContentID:     contentID,
		QuestionText:  text,
		QuestionType:  "multiple_choice",
		Options:       string(options),
		CorrectAnswer: correct,
		Points:        1,
		OrderIndex:    order,
	}
	if err := env.db.Create(&question).Error; err != nil {
		t.Fatalf("create question: %v", err)
	}
	return question
}

// csvResponse captures a streamed CSV download.
type csvResponse struct {
	status      int
	contentType string
	disposition string
	body        string
}

func newCSVRequest(t *testing.T, env *testEnv, target, token string) csvResponse {
	t.Helper()

	req := httptest.NewRequest("GET", target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("GET %s: %v", target, err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s body: %v", target, err)
	}
	return csvResponse{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		disposition: resp.Header.Get("Content-Disposition"),
		body:        string(body),
	}
}

// request performs an HTTP request against the test app and decodes a JSON
// body when out is non-nil.
func (env *testEnv) request(t *testing.T, method, target, token string, body interface{}, out interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, target, err)
		}
	}

	return resp
}
