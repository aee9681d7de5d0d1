package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/patternlens-backend/internal/http/response"
	"github.com/yungbote/patternlens-backend/internal/modules/search"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

type SearchHandlerDeps struct {
	Log        *logger.Logger
	Classifier IntentClassifier
	Retriever  Retriever
}

type SearchHandler struct {
	log        *logger.Logger
	classifier IntentClassifier
	retriever  Retriever
}

func NewSearchHandler(deps SearchHandlerDeps) *SearchHandler {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &SearchHandler{log: log.With("handler", "SearchHandler"), classifier: deps.Classifier, retriever: deps.Retriever}
}

type searchMetadata struct {
	Intent          *search.Intent `json:"intent"`
	ResultCount     int            `json:"resultCount"`
	ExecutionTime   int64          `json:"executionTime"`
	Path            string         `json:"path"`
	EmbeddingFailed bool           `json:"embeddingFailed"`
	LexicalFallback bool           `json:"lexicalFallback"`
}

// GET /api/search
func (h *SearchHandler) Search(c *gin.Context) {
	start := time.Now()
	filters, err := parseFilters(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}
	filters.Limit = limit

	var (
		res    *search.Result
		intent *search.Intent
	)
	if in, ok := h.classifier.Classify(c.Query("q")); ok {
		intent = &in
		res, err = h.retriever.Retrieve(c.Request.Context(), c.Query("q"), in, filters)
	} else {
		res, err = h.retriever.Recent(c.Request.Context(), filters)
	}
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"results": res.Reports,
		"metadata": searchMetadata{
			Intent:          intent,
			ResultCount:     len(res.Reports),
			ExecutionTime:   time.Since(start).Milliseconds(),
			Path:            res.Path,
			EmbeddingFailed: res.EmbeddingFailed,
			LexicalFallback: res.LexicalFallback,
		},
	})
}

func parseFilters(c *gin.Context) (search.Filters, error) {
	f := search.Filters{
		Category: strings.TrimSpace(c.Query("category")),
		Location: strings.TrimSpace(c.Query("location")),
	}
	if raw := c.Query("tags"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				f.Tags = append(f.Tags, t)
			}
		}
	}
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		from, _, err := parseDate(raw)
		if err != nil {
			return f, errInvalidQuery("from")
		}
		f.From = &from
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		to, dateOnly, err := parseDate(raw)
		if err != nil {
			return f, errInvalidQuery("to")
		}
		if dateOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = &to
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, errInvalidQuery("date range")
	}
	if raw := strings.TrimSpace(c.Query("hasWitnesses")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return f, errInvalidQuery("hasWitnesses")
		}
		f.HasWitnesses = &b
	}
	return f, nil
}

// parseDate accepts YYYY-MM-DD (UTC midnight) or RFC3339.
func parseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	return t, false, err
}
