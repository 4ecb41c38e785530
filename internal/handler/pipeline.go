package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pulsewatch/backend/internal/model"
	"github.com/pulsewatch/backend/internal/service"
)

type PipelineHandler struct {
	svc *service.PipelineService
}

func NewPipelineHandler(svc *service.PipelineService) *PipelineHandler {
	return &PipelineHandler{svc: svc}
}

// RunHealthCheck godoc
// @Summary Run predictive health check for a project
// @Tags health
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} model.HealthReportEnvelope
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/projects/{id}/health [get]
func (h *PipelineHandler) RunHealthCheck(c *gin.Context) {
	projectID := c.Param("id")

	report, err := h.svc.RunHealthCheck(c.Request.Context(), projectID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.HealthReportEnvelope{Status: "success", Data: report})
}

// ProcessLogs godoc
// @Summary Ingest and aggregate project logs
// @Tags logs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} model.ProcessLogsEnvelope
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/projects/{id}/logs/process [post]
func (h *PipelineHandler) ProcessLogs(c *gin.Context) {
	projectID := c.Param("id")

	result, err := h.svc.ProcessLogs(c.Request.Context(), projectID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.ProcessLogsEnvelope{Status: "success", Data: result})
}

// ListPredictions godoc
// @Summary List prediction history for a project
// @Tags health
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param limit query int false "Max results (default 20)"
// @Success 200 {object} model.PredictionListEnvelope
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/projects/{id}/predictions [get]
func (h *PipelineHandler) ListPredictions(c *gin.Context) {
	projectID := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	list, err := h.svc.ListPredictions(c.Request.Context(), projectID, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.PredictionListEnvelope{Status: "success", Data: list})
}

// writeError - ConfigurationError 계열만 4xx로 구분, 나머지는 500
func (h *PipelineHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
	case errors.Is(err, service.ErrProjectDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": "project disabled"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
