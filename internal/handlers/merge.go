package handlers

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/astrokit/lightcurve-go/internal/config"
	"github.com/astrokit/lightcurve-go/internal/models"
	"github.com/astrokit/lightcurve-go/internal/services"
	"github.com/astrokit/lightcurve-go/internal/utils"
)

// MergeHandler exposes the merge engine over HTTP.
type MergeHandler struct {
	cfg       *config.Config
	logger    *logrus.Logger
	estimator *services.BayesianRateEstimator
	merger    *services.LightCurveMerger
	ulMerger  *services.UpperLimitMerger
}

// NewMergeHandler creates a handler whose estimator is tuned from
// configuration.
func NewMergeHandler(cfg *config.Config, logger *logrus.Logger) *MergeHandler {
	if logger == nil {
		logger = logrus.New()
	}
	estimator := services.NewBayesianRateEstimator()
	if cfg.Estimator.MassTolerance > 0 {
		estimator.MassTolerance = cfg.Estimator.MassTolerance
	}
	if cfg.Estimator.MaxIterations > 0 {
		estimator.MaxIterations = cfg.Estimator.MaxIterations
	}
	return &MergeHandler{
		cfg:       cfg,
		logger:    logger,
		estimator: estimator,
		merger:    services.NewLightCurveMergerWithEstimator(estimator, logger),
		ulMerger:  services.NewUpperLimitMergerWithEstimator(estimator, logger),
	}
}

// statusForError maps the engine's error taxonomy onto HTTP status codes.
// Invalid arguments and inconsistent selections are the caller's fault;
// numerical failures are ours.
func statusForError(err error) int {
	var invalid *utils.InvalidArgumentError
	var inconsistent *utils.ConsistencyError
	if errors.As(err, &invalid) || errors.As(err, &inconsistent) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type mergeLightCurveRequest struct {
	Dataset   *models.Dataset       `json:"dataset" binding:"required"`
	Selection []int                 `json:"selection" binding:"required"`
	Options   services.MergeOptions `json:"options"`
}

type mergeLightCurveResponse struct {
	Outcome   *services.MergeOutcome `json:"outcome"`
	Dataset   *models.Dataset        `json:"dataset"`
	Timestamp time.Time              `json:"timestamp"`
}

// MergeLightCurve handles POST /api/v1/lightcurve/merge.
func (h *MergeHandler) MergeLightCurve(c *gin.Context) {
	var req mergeLightCurveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := req.Dataset.Validate(); err != nil {
		c.JSON(statusForError(err), gin.H{"error": "Invalid dataset", "details": err.Error()})
		return
	}

	opts := req.Options
	if opts.UpperLimitConfidence == 0 {
		opts.UpperLimitConfidence = h.cfg.Merge.UpperLimitConfidence
	}
	if opts.DetectionThreshold == 0 {
		opts.DetectionThreshold = h.cfg.Merge.DetectionThreshold
	}

	outcome, err := h.merger.MergeBins(req.Dataset, req.Selection, opts)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": "Merge failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, mergeLightCurveResponse{
		Outcome:   outcome,
		Dataset:   req.Dataset,
		Timestamp: time.Now(),
	})
}

type mergeUpperLimitsRequest struct {
	Table     *models.UpperLimitTable         `json:"table" binding:"required"`
	Selection []int                           `json:"selection" binding:"required"`
	Options   services.UpperLimitMergeOptions `json:"options"`
}

type mergeUpperLimitsResponse struct {
	Bands     map[string]models.BandMergeResult `json:"bands"`
	Timestamp time.Time                         `json:"timestamp"`
}

// MergeUpperLimits handles POST /api/v1/upperlimits/merge.
func (h *MergeHandler) MergeUpperLimits(c *gin.Context) {
	var req mergeUpperLimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	opts := req.Options
	if opts.Confidence == 0 {
		opts.Confidence = h.cfg.Merge.UpperLimitConfidence
	}
	if opts.DetectionThreshold == 0 {
		opts.DetectionThreshold = h.cfg.Merge.DetectionThreshold
	}

	results, err := h.ulMerger.MergeUpperLimits(req.Table, req.Selection, opts)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": "Upper-limit merge failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, mergeUpperLimitsResponse{
		Bands:     sanitizeBandResults(results),
		Timestamp: time.Now(),
	})
}

// sanitizeBandResults drops NaN rate sentinels, which JSON cannot encode;
// an undetected band keeps is_detected=false with its rate fields omitted.
func sanitizeBandResults(results map[string]models.BandMergeResult) map[string]models.BandMergeResult {
	for band, res := range results {
		if res.Rate != nil && math.IsNaN(*res.Rate) {
			res.Rate, res.RatePos, res.RateNeg = nil, nil, nil
			results[band] = res
		}
	}
	return results
}

type bayesIntervalRequest struct {
	Counts     *float64 `json:"counts" binding:"required"`
	Background float64  `json:"background"`
	Confidence *float64 `json:"confidence" binding:"required"`
}

type bayesIntervalResponse struct {
	Interval  services.BayesInterval `json:"interval"`
	Timestamp time.Time              `json:"timestamp"`
}

// BayesInterval handles POST /api/v1/bayes/interval.
func (h *MergeHandler) BayesInterval(c *gin.Context) {
	var req bayesIntervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	// Counts arrive as a JSON number; the engine takes an integer, so
	// non-integral values are rejected here rather than truncated.
	if *req.Counts != math.Trunc(*req.Counts) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input parameters", "details": "counts must be an integer"})
		return
	}

	interval, err := h.estimator.Interval(int64(*req.Counts), req.Background, *req.Confidence)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": "Interval computation failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, bayesIntervalResponse{
		Interval:  interval,
		Timestamp: time.Now(),
	})
}

// Health handles GET /health.
func (h *MergeHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "lightcurve-merge",
	})
}
