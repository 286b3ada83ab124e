package controllers_test

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"learnhub/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackEventAnonymous(t *testing.T) {
	env := newTestEnv(t)

	var out struct {
		Message string `json:"message"`
		ID      uint   `json:"id"`
	}
	resp := env.request(t, "POST", "/api/analytics/events", "", map[string]interface{}{
		"event_type": "interaction",
		"event_name": "button_clicked",
		"component":  "Header",
	}, &out)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotZero(t, out.ID)

	var event models.ClickstreamEvent
	require.NoError(t, env.db.First(&event, out.ID).Error)
	assert.Nil(t, event.UserID)
	assert.Equal(t, "button_clicked", event.EventName)
	assert.Equal(t, "web", event.Origin)
	assert.NotEmpty(t, event.SessionID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestTrackEventAttributesPrincipal(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.createUser(t, "alice", models.RoleLearner)

	var out struct {
		ID uint `json:"id"`
	}
	resp := env.request(t, "POST", "/api/analytics/events", token, map[string]interface{}{
		"event_type": "navigation",
		"event_name": "page_viewed",
		"page_url":   "/courses",
	}, &out)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var event models.ClickstreamEvent
	require.NoError(t, env.db.First(&event, out.ID).Error)
	require.NotNil(t, event.UserID)
	assert.Equal(t, user.ID, *event.UserID)
}

func TestTrackEventGarbageTokenStoredAnonymously(t *testing.T) {
	env := newTestEnv(t)

	var out struct {
		ID uint `json:"id"`
	}
	resp := env.request(t, "POST", "/api/analytics/events", "not-a-token", map[string]interface{}{
		"event_type": "interaction",
		"event_name": "button_clicked",
	}, &out)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var event models.ClickstreamEvent
	require.NoError(t, env.db.First(&event, out.ID).Error)
	assert.Nil(t, event.UserID)
}

func TestTrackEventNormalizesLegacyNames(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]string{
		"Quiz completed": models.EventQuizAttempted,
		"Video played":   models.EventVideoInteraction,
		"custom_thing":   "custom_thing",
	}

	for sent, want := range cases {
		var out struct {
			ID uint `json:"id"`
		}
		resp := env.request(t, "POST", "/api/analytics/track", "", map[string]interface{}{
			"event_type": "interaction",
			"event_name": sent,
		}, &out)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var event models.ClickstreamEvent
		require.NoError(t, env.db.First(&event, out.ID).Error)
		assert.Equal(t, want, event.EventName, "event name %q", sent)
	}
}

func TestTrackEventTimestampsAreServerAssigned(t *testing.T) {
	env := newTestEnv(t)

	before := time.Now().UTC()
	var ids []uint
	for i := 0; i < 3; i++ {
		var out struct {
			ID uint `json:"id"`
		}
		env.request(t, "POST", "/api/analytics/events", "", map[string]interface{}{
			"event_type": "interaction",
			"event_name": "button_clicked",
			// A client-sent timestamp must be ignored.
			"timestamp": "1999-01-01T00:00:00Z",
		}, &out)
		ids = append(ids, out.ID)
	}
	after := time.Now().UTC()

	var previous time.Time
	for _, id := range ids {
		var event models.ClickstreamEvent
		require.NoError(t, env.db.First(&event, id).Error)
		assert.False(t, event.Timestamp.Before(before.Truncate(time.Second)))
		assert.False(t, event.Timestamp.After(after.Add(time.Second)))
		assert.False(t, event.Timestamp.Before(previous), "timestamps must not decrease")
		previous = event.Timestamp
	}
}

func TestGetUserEventsFiltersAndLimit(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.createUser(t, "bob", models.RoleLearner)
	other, _ := env.createUser(t, "carol", models.RoleLearner)

	seedEvent(t, env, &user.ID, "button_clicked", time.Now().UTC())
	seedEvent(t, env, &user.ID, "page_viewed", time.Now().UTC())
	seedEvent(t, env, &other.ID, "button_clicked", time.Now().UTC())

	var out struct {
		Events []models.ClickstreamEvent `json:"events"`
	}
	resp := env.request(t, "GET", "/api/analytics/user/events", token, nil, &out)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, out.Events, 2)
	for _, event := range out.Events {
		require.NotNil(t, event.UserID)
		assert.Equal(t, user.ID, *event.UserID)
	}

	out.Events = nil
	env.request(t, "GET", "/api/analytics/user/events?eventName=page_viewed", token, nil, &out)
	require.Len(t, out.Events, 1)
	assert.Equal(t, "page_viewed", out.Events[0].EventName)
}

func TestGetUserSummaryEmptyWindow(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.createUser(t, "dave", models.RoleLearner)

	var out struct {
		Summary struct {
			TotalEvents      int64      `json:"totalEvents"`
			TotalTimeSpent   int        `json:"totalTimeSpent"`
			AverageScore     float64    `json:"averageScore"`
			CompletedContent int64      `json:"completedContent"`
			CoursesAccessed  int64      `json:"coursesAccessed"`
			QuizzesTaken     int64      `json:"quizzesTaken"`
			LastActivity     *time.Time `json:"lastActivity"`
		} `json:"summary"`
		Period string `json:"period"`
	}
	resp := env.request(t, "GET", "/api/analytics/user", token, nil, &out)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "30d", out.Period)
	assert.Zero(t, out.Summary.TotalEvents)
	assert.Zero(t, out.Summary.TotalTimeSpent)
	assert.Zero(t, out.Summary.AverageScore)
	assert.Zero(t, out.Summary.CompletedContent)
	assert.Zero(t, out.Summary.CoursesAccessed)
	assert.Zero(t, out.Summary.QuizzesTaken)
	assert.Nil(t, out.Summary.LastActivity)
}

func TestGetUserSummaryAggregates(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.createUser(t, "erin", models.RoleLearner)
	now := time.Now().UTC()

	// Two quiz attempts on distinct content.
	require.NoError(t, env.db.Create(&models.ClickstreamEvent{
		UserID: &user.ID, EventType: "assessment", EventName: models.EventQuizAttempted,
		ContentID: "10", CourseID: "1", Score: 80, Timestamp: now,
	}).Error)
	require.NoError(t, env.db.Create(&models.ClickstreamEvent{
		UserID: &user.ID, EventType: "assessment", EventName: models.EventQuizAttempted,
		ContentID: "11", CourseID: "1", Score: 90, Timestamp: now,
	}).Error)
	// Two minutes of video.
	require.NoError(t, env.db.Create(&models.ClickstreamEvent{
		UserID: &user.ID, EventType: "video", EventName: models.EventVideoInteraction,
		ContentType: "video", ContentID: "12", CourseID: "2", TimeSpent: 120, Timestamp: now,
	}).Error)
	// A zero-score attempt still participates in the average.
	require.NoError(t, env.db.Create(&models.ClickstreamEvent{
		UserID: &user.ID, EventType: "assessment", EventName: models.EventQuizAttempted,
		ContentID: "14", CourseID: "1", Score: 0, Timestamp: now,
	}).Error)
	// One completion.
	require.NoError(t, env.db.Create(&models.ClickstreamEvent{
		UserID: &user.ID, EventType: "progress", EventName: models.EventContentCompleted,
		ContentID: "12", CourseID: "2", Timestamp: now,
	}).Error)
	// Outside the 7 day window, must not count.
	require.NoError(t, env.db.Create(&models.ClickstreamEvent{
		UserID: &user.ID, EventType: "assessment", EventName: models.EventQuizAttempted,
		ContentID: "13", CourseID: "3", Score: 10, Timestamp: now.AddDate(0, 0, -15),
	}).Error)

	var out struct {
		Summary struct {
			TotalEvents      int64      `json:"totalEvents"`
			TotalTimeSpent   int        `json:"totalTimeSpent"`
			AverageScore     float64    `json:"averageScore"`
			CompletedContent int64      `json:"completedContent"`
			CoursesAccessed  int64      `json:"coursesAccessed"`
			QuizzesTaken     int64      `json:"quizzesTaken"`
			LastActivity     *time.Time `json:"lastActivity"`
		} `json:"summary"`
		Period string `json:"period"`
	}
	resp := env.request(t, "GET", "/api/analytics/user?period=7d", token, nil, &out)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "7d", out.Period)
	assert.Equal(t, int64(5), out.Summary.TotalEvents)
	assert.Equal(t, 2, out.Summary.TotalTimeSpent)
	assert.InDelta(t, 56.67, out.Summary.AverageScore, 0.01) // (80+90+0)/3
	assert.Equal(t, int64(1), out.Summary.CompletedContent)
	assert.Equal(t, int64(2), out.Summary.CoursesAccessed)
	assert.Equal(t, int64(3), out.Summary.QuizzesTaken)
	require.NotNil(t, out.Summary.LastActivity)
	assert.WithinDuration(t, now, *out.Summary.LastActivity, 2*time.Second)
}

func TestExportUserEventsCSVRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.createUser(t, "frank", models.RoleLearner)

	require.NoError(t, env.db.Create(&models.ClickstreamEvent{
		UserID:      &user.ID,
		EventType:   "interaction",
		EventName:   "button_clicked",
		Description: "Clicked, then submitted",
		Timestamp:   time.Now().UTC(),
	}).Error)
	require.NoError(t, env.db.Create(&models.ClickstreamEvent{
		UserID:    &user.ID,
		EventType: "navigation",
		EventName: "page_viewed",
		PageURL:   "/courses/1",
		Timestamp: time.Now().UTC(),
	}).Error)

	req := newCSVRequest(t, env, "/api/analytics/export", token)
	assert.Equal(t, http.StatusOK, req.status)
	assert.Equal(t, "text/csv", req.contentType)
	assert.Contains(t, req.disposition, "attachment")
	assert.Contains(t, req.disposition, "my_learning_data_")

	records, err := csv.NewReader(strings.NewReader(req.body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // header + 2 rows

	assert.Equal(t, "timestamp", records[0][0])
	assert.Equal(t, "Clicked, then submitted", records[1][4])
	assert.Equal(t, "page_viewed", records[2][2])
}

func TestExportUserEventsEmpty(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.createUser(t, "grace", models.RoleLearner)

	resp := env.request(t, "GET", "/api/analytics/export", token, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportUserEventsUnsupportedFormat(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.createUser(t, "heidi", models.RoleLearner)

	resp := env.request(t, "GET", "/api/analytics/export?format=xml", token, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUserRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{
		"/api/analytics/user/events",
		"/api/analytics/user",
		"/api/analytics/export",
		"/api/analytics/quiz-performance",
		"/api/analytics/progress",
	} {
		resp := env.request(t, "GET", target, "", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, target)
	}
}

// seedEvent inserts one event row directly.
func seedEvent(t *testing.T, env *testEnv, userID *uint, eventName string, ts time.Time) models.ClickstreamEvent {
	t.Helper()
	event := models.ClickstreamEvent{
		UserID:    userID,
		SessionID: fmt.Sprintf("session-%d", ts.UnixNano()),
		EventType: "interaction",
		EventName: eventName,
		Origin:    "web",
		Timestamp: ts,
	}
	require.NoError(t, env.db.Create(&event).Error)
	return event
}
