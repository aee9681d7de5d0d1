package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/patternlens-backend/internal/http/response"
	"github.com/yungbote/patternlens-backend/internal/modules/attributes"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

type AttributeHandlerDeps struct {
	Log      *logger.Logger
	Registry SchemaRegistry
	Patterns PatternEngine
	Backfill BackfillRunner
}

type AttributeHandler struct {
	log      *logger.Logger
	registry SchemaRegistry
	patterns PatternEngine
	backfill BackfillRunner
}

func NewAttributeHandler(deps AttributeHandlerDeps) *AttributeHandler {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &AttributeHandler{
		log:      log.With("handler", "AttributeHandler"),
		registry: deps.Registry,
		patterns: deps.Patterns,
		backfill: deps.Backfill,
	}
}

// GET /api/categories
func (h *AttributeHandler) Categories(c *gin.Context) {
	rows, err := h.registry.Categories(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"categories": rows})
}

// GET /api/categories/:key/attributes
func (h *AttributeHandler) CategoryAttributes(c *gin.Context) {
	defs, err := h.registry.DefinitionsFor(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"category": c.Param("key"), "attributes": defs})
}

// GET /api/attributes/:key/distribution
func (h *AttributeHandler) Distribution(c *gin.Context) {
	dist, err := h.patterns.ValueDistribution(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, dist)
}

// POST /api/admin/backfill-attributes
func (h *AttributeHandler) Backfill(c *gin.Context) {
	var req attributes.BackfillRequest
	// an empty body backfills with defaults
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.backfill.Run(c.Request.Context(), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	h.log.Info("attribute backfill finished",
		"processed", res.Processed, "succeeded", res.Succeeded, "skipped", res.Skipped, "failed", res.Failed)
	response.RespondOK(c, res)
}

// DELETE /api/admin/attribute-definitions/:id?cascade=true
func (h *AttributeHandler) DeleteDefinition(c *gin.Context) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", errors.New("invalid definition id"))
		return
	}
	cascade := false
	if raw := strings.TrimSpace(c.Query("cascade")); raw != "" {
		if cascade, err = strconv.ParseBool(raw); err != nil {
			response.RespondError(c, http.StatusBadRequest, "validation_error", errInvalidQuery("cascade"))
			return
		}
	}
	if err := h.registry.DeleteDefinition(c.Request.Context(), id, cascade); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
