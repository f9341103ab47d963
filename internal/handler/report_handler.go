package handler

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/SatvikPraveen/SmartCampus-sub000/internal/middleware"
	"github.com/SatvikPraveen/SmartCampus-sub000/internal/models"
	"github.com/SatvikPraveen/SmartCampus-sub000/internal/service"
	appErrors "github.com/SatvikPraveen/SmartCampus-sub000/pkg/errors"
	"github.com/SatvikPraveen/SmartCampus-sub000/pkg/response"
)

// ReportHandler exposes asynchronous export and statistics endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Submit godoc
// @Summary Queue a roster, waitlist or statistics export
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body service.SubmitReportRequest true "Report payload"
// @Success 202 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Submit(c *gin.Context) {
	var req service.SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	job, err := h.reports.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Get report job status
// @Tags Reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Status(c *gin.Context) {
	job, err := h.reports.GetJob(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a finished export via its signed token
// @Tags Reports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /reports/download/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	file, job, err := h.reports.OpenDownload(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	filename := filepath.Base(file.Name())
	contentType := "text/csv"
	if job.Params.Format == models.ReportFormatPDF {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", contentType)
	http.ServeContent(c.Writer, c.Request, filename, job.CreatedAt, file)
}

// Statistics godoc
// @Summary Report enrollment statistics across the catalog
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /statistics [get]
func (h *ReportHandler) Statistics(c *gin.Context) {
	stats, cacheHit, err := h.reports.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}
