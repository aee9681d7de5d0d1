package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/patternlens-backend/internal/http/response"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

type ReportHandlerDeps struct {
	Log        *logger.Logger
	Similarity SimilarFinder
	Patterns   PatternEngine
	Attributes AttributeService
}

type ReportHandler struct {
	log        *logger.Logger
	similarity SimilarFinder
	patterns   PatternEngine
	attributes AttributeService
}

func NewReportHandler(deps ReportHandlerDeps) *ReportHandler {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &ReportHandler{
		log:        log.With("handler", "ReportHandler"),
		similarity: deps.Similarity,
		patterns:   deps.Patterns,
		attributes: deps.Attributes,
	}
}

// GET /api/reports/:id/similar
func (h *ReportHandler) Similar(c *gin.Context) {
	reportID, ok := reportIDParam(c)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}
	res, err := h.similarity.FindSimilar(c.Request.Context(), reportID, limit)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/reports/:id/patterns
func (h *ReportHandler) Patterns(c *gin.Context) {
	reportID, ok := reportIDParam(c)
	if !ok {
		return
	}
	res, err := h.patterns.Insights(c.Request.Context(), reportID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"hasPatterns": res.HasPatterns, "insights": res.Insights})
}

// POST /api/reports/:id/extract
func (h *ReportHandler) Extract(c *gin.Context) {
	reportID, ok := reportIDParam(c)
	if !ok {
		return
	}
	res, err := h.attributes.ExtractReport(c.Request.Context(), reportID)
	if err != nil {
		h.log.Warn("extraction failed", "report_id", reportID, "error", err)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"reportId": res.ReportID, "attributes": res.Attributes, "superseded": res.Superseded})
}

// GET /api/reports/:id/attributes
func (h *ReportHandler) Attributes(c *gin.Context) {
	reportID, ok := reportIDParam(c)
	if !ok {
		return
	}
	rows, err := h.attributes.ReportAttributes(c.Request.Context(), reportID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"attributes": rows})
}

type confirmAttributeRequest struct {
	Value string `json:"value"`
}

// PUT /api/reports/:id/attributes/:key
func (h *ReportHandler) ConfirmAttribute(c *gin.Context) {
	reportID, ok := reportIDParam(c)
	if !ok {
		return
	}
	var req confirmAttributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	row, err := h.attributes.ConfirmAttribute(c.Request.Context(), reportID, c.Param("key"), req.Value)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"attribute": row})
}

func reportIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_report_id", errInvalidReportID)
		return uuid.Nil, false
	}
	return id, true
}

// intQuery reads an optional non-negative integer; absent means 0.
func intQuery(c *gin.Context, name string) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		response.RespondError(c, http.StatusBadRequest, "validation_error", errInvalidQuery(name))
		return 0, false
	}
	return n, true
}
