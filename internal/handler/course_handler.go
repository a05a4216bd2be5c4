package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blueridge-hs/registrar-api/internal/models"
	"github.com/blueridge-hs/registrar-api/pkg/response"
)

type prerequisiteResolver interface {
	GetPrerequisiteChain(ctx context.Context, courseID string) ([]models.Course, error)
	DescribeRequirements(ctx context.Context, courseID string) (string, error)
}

// CourseHandler exposes prerequisite graph endpoints for the catalog.
type CourseHandler struct {
	resolver prerequisiteResolver
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(resolver prerequisiteResolver) *CourseHandler {
	return &CourseHandler{resolver: resolver}
}

// PrerequisiteChain godoc
// @Summary Full prerequisite chain
// @Description Returns every transitive prerequisite of a course, earliest first
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/prerequisite-chain [get]
func (h *CourseHandler) PrerequisiteChain(c *gin.Context) {
	chain, err := h.resolver.GetPrerequisiteChain(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, chain, nil)
}

// RequirementsDescription godoc
// @Summary Human-readable requirements
// @Description Renders a course's prerequisite groups as "(A OR B) AND C"
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/requirements/description [get]
func (h *CourseHandler) RequirementsDescription(c *gin.Context) {
	description, err := h.resolver.DescribeRequirements(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"description": description}, nil)
}
