// backend-go/internal/api/handlers/solve_handler.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/andresuchdata/autopo-dp/backend-go/internal/config"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/repository"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/service"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/solver"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const maxBatchSize = 64

type SolveHandler struct {
	solverService *service.SolverService
}

func NewSolveHandler(solverService *service.SolverService) *SolveHandler {
	return &SolveHandler{solverService: solverService}
}

type batchRequest struct {
	Scenarios []*domain.Scenario `json:"scenarios"`
}

// Solve evaluates a single scenario posted as JSON
func (h *SolveHandler) Solve(c *gin.Context) {
	var sc domain.Scenario
	if err := c.ShouldBindJSON(&sc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scenario: " + err.Error()})
		return
	}

	result, err := h.solverService.Solve(c.Request.Context(), &sc)
	if err != nil {
		respondError(c, err, "failed to solve scenario")
		return
	}

	c.JSON(http.StatusOK, result)
}

// SolveBatch evaluates several independent scenarios
func (h *SolveHandler) SolveBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch: " + err.Error()})
		return
	}
	if len(req.Scenarios) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no scenarios provided"})
		return
	}
	if len(req.Scenarios) > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many scenarios, max " + strconv.Itoa(maxBatchSize)})
		return
	}
	for i, sc := range req.Scenarios {
		if sc == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "scenario " + strconv.Itoa(i) + " is null"})
			return
		}
	}

	results, err := h.solverService.SolveBatch(c.Request.Context(), req.Scenarios)
	if err != nil {
		respondError(c, err, "failed to solve batch")
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

// ListRuns returns persisted runs, newest first
func (h *SolveHandler) ListRuns(c *gin.Context) {
	filter := domain.RunFilter{
		ScenarioHash: c.Query("scenario_hash"),
		Mode:         c.Query("mode"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		filter.Limit = limit
	}

	runs, err := h.solverService.ListRuns(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "failed to list runs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// GetRun returns a single persisted run
func (h *SolveHandler) GetRun(c *gin.Context) {
	run, err := h.solverService.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to fetch run")
		return
	}

	c.JSON(http.StatusOK, run)
}

// GetRunPolicy streams the exported policy CSV of a run
func (h *SolveHandler) GetRunPolicy(c *gin.Context) {
	data, err := h.solverService.RunPolicy(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to fetch run policy")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="policy.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

// ListRunExports lists the exported objects of a run
func (h *SolveHandler) ListRunExports(c *gin.Context) {
	objects, err := h.solverService.RunExports(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to list run exports")
		return
	}

	c.JSON(http.StatusOK, gin.H{"exports": objects, "count": len(objects)})
}

// FlushCache drops cached results, one hash at a time or all at once
func (h *SolveHandler) FlushCache(c *gin.Context) {
	hash := c.Query("hash")
	if err := h.solverService.FlushCache(c.Request.Context(), hash); err != nil {
		respondError(c, err, "failed to flush cache")
		return
	}

	if hash == "" {
		hash = "all"
	}
	c.JSON(http.StatusOK, gin.H{"flushed": hash})
}

func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case solver.IsConfigError(err),
		errors.Is(err, solver.ErrOutOfRange),
		errors.Is(err, config.ErrFileSourceNotAllowed),
		errors.Is(err, service.ErrScenarioTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrRunNotFound),
		errors.Is(err, service.ErrExportNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPersistenceDisabled),
		errors.Is(err, service.ErrExportsDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Msg(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
