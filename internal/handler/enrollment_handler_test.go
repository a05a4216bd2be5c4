package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueridge-hs/registrar-api/internal/dto"
	"github.com/blueridge-hs/registrar-api/internal/models"
	appErrors "github.com/blueridge-hs/registrar-api/pkg/errors"
	"github.com/blueridge-hs/registrar-api/pkg/response"
)

type enrollmentManagerMock struct {
	enrollment *models.Enrollment
	enrollErr  error
	dropErr    error
	details    []models.EnrollmentDetail
	total      int
	listErr    error
	filter     models.EnrollmentFilter
	droppedID  string
}

func (m *enrollmentManagerMock) EnrollOne(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	return m.enrollment, m.enrollErr
}

func (m *enrollmentManagerMock) DropEnrollment(ctx context.Context, enrollmentID string) error {
	m.droppedID = enrollmentID
	return m.dropErr
}

func (m *enrollmentManagerMock) ListEnrollments(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	m.filter = filter
	return m.details, m.total, m.listErr
}

func (m *enrollmentManagerMock) StudentSchedule(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	return m.details, m.listErr
}

func TestEnrollmentHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentManagerMock{
		enrollment: &models.Enrollment{ID: "enr-1", StudentID: "s1", CourseID: "math201", SectionID: "sec-1", Status: models.EnrollmentStatusActive},
	}
	handler := NewEnrollmentHandler(mockSvc)

	payload, _ := json.Marshal(dto.EnrollmentRequest{StudentID: "s1", CourseID: "math201"})
	c, w := newGinContext(http.MethodPost, "/enrollments", payload)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "enr-1", data["id"])
}

func TestEnrollmentHandlerCreateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentManagerMock{
		enrollErr: appErrors.Clone(appErrors.ErrConflict, "student already has an active enrollment in this course"),
	}
	handler := NewEnrollmentHandler(mockSvc)

	payload, _ := json.Marshal(dto.EnrollmentRequest{StudentID: "s1", CourseID: "math201"})
	c, w := newGinContext(http.MethodPost, "/enrollments", payload)

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestEnrollmentHandlerDrop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentManagerMock{}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newGinContext(http.MethodDelete, "/enrollments/enr-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}

	handler.Drop(c)
	// Flush gin's buffered status to the recorder; the engine does this after
	// the handler chain, but the handler is invoked directly here.
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "enr-1", mockSvc.droppedID)
}

func TestEnrollmentHandlerDropNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentManagerMock{dropErr: appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newGinContext(http.MethodDelete, "/enrollments/ghost", nil)
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}

	handler.Drop(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestEnrollmentHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentManagerMock{
		details: []models.EnrollmentDetail{
			{Enrollment: models.Enrollment{ID: "enr-1", StudentID: "s1", Status: models.EnrollmentStatusActive}},
		},
		total: 1,
	}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/enrollments?studentId=s1&status=ACTIVE&page=2&limit=10", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", mockSvc.filter.StudentID)
	assert.Equal(t, models.EnrollmentStatusActive, mockSvc.filter.Status)
	assert.Equal(t, 2, mockSvc.filter.Page)
	assert.Equal(t, 10, mockSvc.filter.PageSize)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 1, envelope.Pagination.TotalCount)
}

func TestEnrollmentHandlerStudentSchedule(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentManagerMock{
		details: []models.EnrollmentDetail{
			{
				Enrollment: models.Enrollment{ID: "enr-1", StudentID: "s1", CourseID: "math201", Status: models.EnrollmentStatusActive},
				CourseCode: "MATH201",
				CourseName: "Calculus I",
				TimeBlock:  models.TimeBlock{DayOfWeek: "MONDAY", StartMinute: 540, EndMinute: 600},
			},
		},
	}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/students/s1/schedule", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}

	handler.StudentSchedule(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	items, ok := envelope.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, items, 1)
}
