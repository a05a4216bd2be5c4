package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blueridge-hs/registrar-api/internal/dto"
	"github.com/blueridge-hs/registrar-api/internal/middleware"
	"github.com/blueridge-hs/registrar-api/internal/models"
	appErrors "github.com/blueridge-hs/registrar-api/pkg/errors"
	"github.com/blueridge-hs/registrar-api/pkg/response"
)

type batchRunner interface {
	RunBatch(ctx context.Context, req dto.AssignmentBatchRequest) (*models.BatchResult, error)
}

type statsProvider interface {
	Statistics(ctx context.Context) (*models.EnrollmentStatistics, bool, error)
}

// AssignmentHandler exposes the batch assignment engine over HTTP.
type AssignmentHandler struct {
	runner batchRunner
	stats  statsProvider
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(runner batchRunner, stats statsProvider) *AssignmentHandler {
	return &AssignmentHandler{runner: runner, stats: stats}
}

// RunBatch godoc
// @Summary Run a batch assignment
// @Description Assign a roster of students across the course catalog with capacity and conflict checks
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.AssignmentBatchRequest true "Batch parameters; empty studentIds means all active students"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /assignments/batch [post]
func (h *AssignmentHandler) RunBatch(c *gin.Context) {
	var req dto.AssignmentBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}

	result, err := h.runner.RunBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Stats godoc
// @Summary Enrollment statistics
// @Description Aggregate enrollment counts and per-course fill, cached for a short TTL
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /assignments/stats [get]
func (h *AssignmentHandler) Stats(c *gin.Context) {
	stats, cacheHit, err := h.stats.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}
