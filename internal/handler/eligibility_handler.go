package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blueridge-hs/registrar-api/internal/dto"
	"github.com/blueridge-hs/registrar-api/internal/models"
	appErrors "github.com/blueridge-hs/registrar-api/pkg/errors"
	"github.com/blueridge-hs/registrar-api/pkg/response"
)

type eligibilityService interface {
	CheckEligibility(ctx context.Context, studentID, courseID string) (*models.EligibilityResult, error)
	GetQualifiedCourses(ctx context.Context, studentID string, courseIDs []string) ([]string, error)
	GetUnqualifiedCourses(ctx context.Context, studentID string, courseIDs []string) ([]models.CourseEligibility, error)
}

// EligibilityHandler exposes prerequisite evaluation endpoints.
type EligibilityHandler struct {
	service eligibilityService
}

// NewEligibilityHandler constructs the handler.
func NewEligibilityHandler(service eligibilityService) *EligibilityHandler {
	return &EligibilityHandler{service: service}
}

// Check godoc
// @Summary Check course eligibility
// @Description Evaluate a student's completion history against a course's prerequisites
// @Tags Eligibility
// @Produce json
// @Param id path string true "Student ID"
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/eligibility/{courseId} [get]
func (h *EligibilityHandler) Check(c *gin.Context) {
	result, err := h.service.CheckEligibility(c.Request.Context(), c.Param("id"), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// QualifiedCourses godoc
// @Summary Sweep a candidate course set
// @Description Split candidate courses into qualified and unqualified-with-reason for one student
// @Tags Eligibility
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.QualifiedCoursesRequest true "Candidate course IDs; empty means all active courses"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/qualified-courses [post]
func (h *EligibilityHandler) QualifiedCourses(c *gin.Context) {
	var req dto.QualifiedCoursesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	studentID := c.Param("id")
	qualified, err := h.service.GetQualifiedCourses(c.Request.Context(), studentID, req.CourseIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	unqualified, err := h.service.GetUnqualifiedCourses(c.Request.Context(), studentID, req.CourseIDs)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.QualifiedCoursesResponse{
		Qualified:   qualified,
		Unqualified: unqualified,
	}, nil)
}
