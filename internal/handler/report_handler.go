package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blueridge-hs/registrar-api/internal/dto"
	"github.com/blueridge-hs/registrar-api/internal/models"
	"github.com/blueridge-hs/registrar-api/internal/service"
	appErrors "github.com/blueridge-hs/registrar-api/pkg/errors"
	"github.com/blueridge-hs/registrar-api/pkg/response"
)

type reportJobService interface {
	CreateJob(ctx context.Context, req dto.ReportRequest, actorID string) (*dto.ReportJobResponse, error)
	GetStatus(ctx context.Context, id string, actorID string, role models.UserRole) (*dto.ReportStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error)
}

// ReportHandler exposes the async report pipeline over HTTP.
type ReportHandler struct {
	service reportJobService
	logger  *zap.Logger
}

// NewReportHandler constructs a report handler.
func NewReportHandler(svc reportJobService, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{service: svc, logger: logger}
}

// GenerateReport godoc
// @Summary Request a report export
// @Description Enqueue an assignment or eligibility report for async generation
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.ReportRequest true "Report parameters"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /reports/assignments [post]
func (h *ReportHandler) GenerateReport(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report payload"))
		return
	}

	job, err := h.service.CreateJob(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, job)
}

// ReportStatus godoc
// @Summary Report job status
// @Description Returns progress and, once finished, the signed download URL
// @Tags Reports
// @Produce json
// @Param id path string true "Report job id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) ReportStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status, err := h.service.GetStatus(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, status, nil)
}

// DownloadByID godoc
// @Summary Download a finished report
// @Description Redirects to the signed artifact URL once the job has finished
// @Tags Reports
// @Param id path string true "Report job id"
// @Success 302
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reports/{id}/download [get]
func (h *ReportHandler) DownloadByID(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status, err := h.service.GetStatus(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	if status.Status != models.ReportStatusFinished || status.ResultURL == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrConflict, "report is not ready for download"))
		return
	}

	c.Redirect(http.StatusFound, *status.ResultURL)
}

// DownloadReport godoc
// @Summary Stream a report artifact
// @Description Serves the generated file for a valid signed token
// @Tags Reports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /export/{token} [get]
func (h *ReportHandler) DownloadReport(c *gin.Context) {
	download, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		h.logger.Error("failed to stat report artifact", zap.Error(err))
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "failed to read report artifact"))
		return
	}

	contentType := "text/csv"
	if download.Format == models.ReportFormatPDF {
		contentType = "application/pdf"
	}
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.Filename),
		"Expires":             download.ExpiresAt.UTC().Format(time.RFC1123),
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, download.File, headers)
}
