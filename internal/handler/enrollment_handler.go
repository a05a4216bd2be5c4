package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/blueridge-hs/registrar-api/internal/dto"
	"github.com/blueridge-hs/registrar-api/internal/models"
	appErrors "github.com/blueridge-hs/registrar-api/pkg/errors"
	"github.com/blueridge-hs/registrar-api/pkg/response"
)

type enrollmentManager interface {
	EnrollOne(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	DropEnrollment(ctx context.Context, enrollmentID string) error
	ListEnrollments(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	StudentSchedule(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
}

// EnrollmentHandler exposes enrollment lifecycle endpoints.
type EnrollmentHandler struct {
	service enrollmentManager
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(service enrollmentManager) *EnrollmentHandler {
	return &EnrollmentHandler{service: service}
}

// Create godoc
// @Summary Enroll a student
// @Description Place a student into the least-loaded conflict-free section of a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.EnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req dto.EnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment payload"))
		return
	}

	enrollment, err := h.service.EnrollOne(c.Request.Context(), req.StudentID, req.CourseID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, enrollment)
}

// Drop godoc
// @Summary Drop an enrollment
// @Description Mark an active enrollment dropped and release its section seat
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	if err := h.service.DropEnrollment(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param courseId query string false "Filter by course"
// @Param sectionId query string false "Filter by section"
// @Param status query string false "Filter by status (ACTIVE, DROPPED, COMPLETED)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	var filter models.EnrollmentFilter
	filter.StudentID = c.Query("studentId")
	filter.CourseID = c.Query("courseId")
	filter.SectionID = c.Query("sectionId")
	filter.Status = models.EnrollmentStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	enrollments, total, err := h.service.ListEnrollments(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// StudentSchedule godoc
// @Summary Student schedule
// @Description Active enrollments with section meeting times for one student
// @Tags Enrollments
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/schedule [get]
func (h *EnrollmentHandler) StudentSchedule(c *gin.Context) {
	schedule, err := h.service.StudentSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}
