package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SatvikPraveen/SmartCampus-sub000/internal/models"
	"github.com/SatvikPraveen/SmartCampus-sub000/internal/repository"
	"github.com/SatvikPraveen/SmartCampus-sub000/internal/service"
	"github.com/SatvikPraveen/SmartCampus-sub000/pkg/response"
)

func newEnrollmentRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewEnrollmentStore(repository.EnrollmentStoreConfig{})
	courses := repository.NewCourseRepository()
	students := repository.NewStudentRepository()
	terms := repository.NewTermRepository()

	require.NoError(t, courses.Create(models.Course{ID: "c1", Code: "CS101", Title: "Intro", Capacity: 1, MaxWaitlist: 2, Active: true}))
	require.NoError(t, students.Create(models.Student{ID: "s1", Name: "Ada", Email: "ada@campus.edu", Active: true}))
	require.NoError(t, students.Create(models.Student{ID: "s2", Name: "Grace", Email: "grace@campus.edu", Active: true}))
	require.NoError(t, terms.Create(models.Term{ID: "term-1", Semester: models.SemesterFall, Year: 2026, IsActive: true}))

	svc := service.NewEnrollmentService(store, courses, students, terms, nil, nil, nil, zap.NewNop())
	h := NewEnrollmentHandler(svc)

	r := gin.New()
	r.POST("/enrollments", h.Enroll)
	r.POST("/enrollments/waitlist", h.AddToWaitlist)
	r.POST("/enrollments/drop", h.Drop)
	r.GET("/enrollments", h.List)
	r.GET("/courses/:id/seats", h.Seats)
	r.POST("/courses/:id/waitlist/process", h.ProcessWaitlist)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestEnrollmentHandlerEnroll(t *testing.T) {
	r := newEnrollmentRouter(t)

	w := postJSON(t, r, "/enrollments", service.EnrollRequest{StudentID: "s1", CourseID: "c1", TermID: "term-1"})
	require.Equal(t, http.StatusCreated, w.Code)

	// Same student again conflicts.
	w = postJSON(t, r, "/enrollments", service.EnrollRequest{StudentID: "s1", CourseID: "c1", TermID: "term-1"})
	require.Equal(t, http.StatusConflict, w.Code)
	envelope := decodeEnvelope(t, w)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "ALREADY_ENROLLED", envelope.Error.Code)

	// Course of capacity one is now full.
	w = postJSON(t, r, "/enrollments", service.EnrollRequest{StudentID: "s2", CourseID: "c1", TermID: "term-1"})
	require.Equal(t, http.StatusConflict, w.Code)
	envelope = decodeEnvelope(t, w)
	assert.Equal(t, "COURSE_FULL", envelope.Error.Code)
}

func TestEnrollmentHandlerInvalidBody(t *testing.T) {
	r := newEnrollmentRouter(t)

	req, _ := http.NewRequest(http.MethodPost, "/enrollments", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerWaitlistAndDrop(t *testing.T) {
	r := newEnrollmentRouter(t)

	w := postJSON(t, r, "/enrollments", service.EnrollRequest{StudentID: "s1", CourseID: "c1", TermID: "term-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = postJSON(t, r, "/enrollments/waitlist", service.EnrollRequest{StudentID: "s2", CourseID: "c1", TermID: "term-1"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(t, r, "/enrollments/drop", service.DropRequest{StudentID: "s1", CourseID: "c1"})
	require.Equal(t, http.StatusOK, w.Code)

	// The waitlisted student now holds the seat.
	req, _ := http.NewRequest(http.MethodGet, "/courses/c1/seats", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["enrolled"])
	assert.Equal(t, float64(0), data["waitlisted"])
}

func TestEnrollmentHandlerProcessWaitlistBadCount(t *testing.T) {
	r := newEnrollmentRouter(t)

	req, _ := http.NewRequest(http.MethodPost, "/courses/c1/waitlist/process?count=-3", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerList(t *testing.T) {
	r := newEnrollmentRouter(t)

	w := postJSON(t, r, "/enrollments", service.EnrollRequest{StudentID: "s1", CourseID: "c1", TermID: "term-1"})
	require.Equal(t, http.StatusCreated, w.Code)

	req, _ := http.NewRequest(http.MethodGet, "/enrollments?studentId=s1&status=ENROLLED", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	records, ok := envelope.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, records, 1)
}
