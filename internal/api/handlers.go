package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/RishiKendai/plagscan/internal/config"
	"github.com/RishiKendai/plagscan/internal/graph"
	"github.com/RishiKendai/plagscan/internal/models"
	"github.com/RishiKendai/plagscan/internal/plagiarism"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Computer runs one comparison.
type Computer interface {
	Compute(ctx context.Context, req models.CompareRequest) (*models.Report, error)
}

// ReportStore persists run reports.
type ReportStore interface {
	SaveReport(ctx context.Context, report *models.Report) error
	GetReportByRunID(ctx context.Context, runID string) (*models.Report, error)
}

// StatusStore records and reads the current step of a run.
type StatusStore interface {
	plagiarism.StatusReporter
	GetStep(ctx context.Context, runID string) (models.Step, error)
}

// Handler holds dependencies for handlers
type Handler struct {
	cfg        *config.Config
	computer   Computer
	reports    ReportStore
	status     StatusStore
	runSem     chan struct{} // Semaphore for bounded concurrency
	runTimeout time.Duration
}

// NewHandler creates a new handler
func NewHandler(cfg *config.Config, computer Computer, reports ReportStore, status StatusStore) *Handler {
	return &Handler{
		cfg:        cfg,
		computer:   computer,
		reports:    reports,
		status:     status,
		runSem:     make(chan struct{}, cfg.MaxConcurrentRuns),
		runTimeout: cfg.RunTimeout,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

func (h *Handler) Compare(c *gin.Context) {
	var req models.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if err := validateComparePayload(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_CONFIG",
		})
		return
	}

	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	// Acquire semaphore (bounded concurrency)
	ctx := c.Request.Context()
	select {
	case h.runSem <- struct{}{}:
	case <-ctx.Done():
		c.JSON(http.StatusRequestTimeout, ErrorResponse{
			Error: "Request cancelled",
			Code:  "REQUEST_TIMEOUT",
		})
		return
	}

	if err := h.status.ReportStep(ctx, req.RunID, models.StepInit); err != nil {
		log.Warn().Err(err).Str("runId", req.RunID).Msg("Failed to update init status")
	}

	c.JSON(http.StatusAccepted, models.CompareResponse{
		RunID: req.RunID,
		Step:  models.StepInit,
	})

	go h.processRun(req)
}

// processRun executes a run in the background and stores its report.
func (h *Handler) processRun(req models.CompareRequest) {
	defer func() { <-h.runSem }() // Release semaphore

	ctx, cancel := context.WithTimeout(context.Background(), h.runTimeout)
	defer cancel()

	started := time.Now()
	pending := &models.Report{
		RunID:      req.RunID,
		CorpusPath: req.CorpusPath,
		Status:     "pending",
		StartedAt:  started,
	}
	if err := h.reports.SaveReport(ctx, pending); err != nil {
		log.Error().Err(err).Str("runId", req.RunID).Msg("Failed to create pending report")
	}

	report, err := h.computer.Compute(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("runId", req.RunID).Msg("Comparison run failed")
		h.saveFailedReport(req, started, err)
		return
	}

	if err := h.reports.SaveReport(ctx, report); err != nil {
		log.Error().Err(err).Str("runId", req.RunID).Msg("Failed to save report")
		return
	}

	log.Debug().Str("runId", req.RunID).Msg("Comparison run stored")
}

func (h *Handler) saveFailedReport(req models.CompareRequest, started time.Time, runErr error) {
	// The run context may have expired; the failure must still be recorded.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.status.ReportStep(ctx, req.RunID, models.StepFailed); err != nil {
		log.Warn().Err(err).Str("runId", req.RunID).Msg("Failed to update failed status")
	}

	err := h.reports.SaveReport(ctx, &models.Report{
		RunID:      req.RunID,
		CorpusPath: req.CorpusPath,
		Status:     "failed",
		Error:      runErr.Error(),
		StartedAt:  started,
	})
	if err != nil {
		log.Error().Err(err).Str("runId", req.RunID).Msg("Failed to update failed report")
	}
}

func (h *Handler) GetRun(c *gin.Context) {
	report, ok := h.loadReport(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) GetStatus(c *gin.Context) {
	runID := c.Param("runId")

	step, err := h.status.GetStep(c.Request.Context(), runID)
	if err != nil {
		log.Error().Err(err).Str("runId", runID).Msg("Failed to read run status")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to read run status",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, models.StatusResponse{RunID: runID, Step: step})
}

// GetGraph renders the similarity graph of a completed run. The threshold
// query parameter wins over the run's own threshold, which wins over the
// configured one. format=json returns the graph as JSON instead of DOT.
func (h *Handler) GetGraph(c *gin.Context) {
	var override *float64
	if raw := c.Query("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "threshold must be a number within [0, 1]",
				Code:  "INVALID_THRESHOLD",
			})
			return
		}
		override = &v
	}

	report, ok := h.loadReport(c)
	if !ok {
		return
	}
	if report.Status != "completed" {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: fmt.Sprintf("run is %s", report.Status),
			Code:  "RUN_NOT_COMPLETED",
		})
		return
	}

	threshold := 0.0
	for _, t := range []*float64{override, report.GraphThreshold, h.cfg.GraphThreshold} {
		if t != nil {
			threshold = *t
			break
		}
	}

	g := graph.Build(report, threshold)
	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, g)
		return
	}

	var buf bytes.Buffer
	if err := graph.WriteDOT(&buf, g); err != nil {
		_ = c.Error(err)
		return
	}
	c.Data(http.StatusOK, "text/vnd.graphviz; charset=utf-8", buf.Bytes())
}

func (h *Handler) loadReport(c *gin.Context) (*models.Report, bool) {
	runID := c.Param("runId")

	report, err := h.reports.GetReportByRunID(c.Request.Context(), runID)
	if err != nil {
		log.Error().Err(err).Str("runId", runID).Msg("Failed to get report")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to get report",
			Code:  "INTERNAL_ERROR",
		})
		return nil, false
	}
	if report == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "No report found for runId",
			Code:  "RUN_NOT_FOUND",
		})
		return nil, false
	}

	return report, true
}

func validateComparePayload(req models.CompareRequest) error {
	info, err := os.Stat(req.CorpusPath)
	if err != nil {
		return fmt.Errorf("corpusPath is not readable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("corpusPath must be a directory")
	}

	if req.RemovePattern != "" {
		if _, err := plagiarism.CompilePattern(req.RemovePattern); err != nil {
			return err
		}
	}

	if t := req.GraphThreshold; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("graphThreshold must be within [0, 1]")
	}

	return nil
}
