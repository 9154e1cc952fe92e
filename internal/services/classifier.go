package services

import (
	"github.com/google/uuid"

	"github.com/astrokit/lightcurve-go/internal/models"
	"github.com/astrokit/lightcurve-go/internal/utils"
)

// OneSigmaConfidence is the confidence level used for the rate errors of a
// detection (the Gaussian 1-sigma equivalent).
const OneSigmaConfidence = 0.6827

// DefaultUpperLimitConfidence is the confidence level of reported upper
// limits when the caller does not override it (roughly 3 sigma).
const DefaultUpperLimitConfidence = 0.997

// ClassifyOptions configures a classification. A zero UpperLimitConfidence
// falls back to DefaultUpperLimitConfidence and a zero DetectionThreshold
// falls back to the upper-limit confidence.
type ClassifyOptions struct {
	DetectionThreshold   float64 `json:"detection_threshold"`
	UpperLimitConfidence float64 `json:"upper_limit_confidence"`
	ForceRate            bool    `json:"force_rate"`
	ForceUpperLimit      bool    `json:"force_upper_limit"`
}

// BinClassifier decides whether an aggregated selection constitutes a
// detection or must be reported as an upper limit, and converts source
// counts to a physical rate. It is pure: it never touches the dataset the
// aggregate came from.
type BinClassifier struct {
	estimator *BayesianRateEstimator
}

// NewBinClassifier creates a classifier backed by the given estimator, or a
// default estimator when nil.
func NewBinClassifier(estimator *BayesianRateEstimator) *BinClassifier {
	if estimator == nil {
		estimator = NewBayesianRateEstimator()
	}
	return &BinClassifier{estimator: estimator}
}

// Classify builds a merged bin from aggregated totals.
//
// The decision rule: ForceUpperLimit wins, then ForceRate, then the
// selection is a detection iff the lower KBN confidence bound at the
// detection threshold is strictly positive. A detection reports the 1-sigma
// interval converted to a rate; an upper limit reports the upper KBN bound
// at the configured confidence with zero errors.
func (c *BinClassifier) Classify(agg *AggregateResult, opts ClassifyOptions) (*models.MergedBin, error) {
	if agg == nil {
		return nil, utils.NewInvalidArgumentError("aggregate result must not be nil")
	}
	if opts.ForceRate && opts.ForceUpperLimit {
		return nil, utils.NewInvalidArgumentError("forceRate and forceUpperLimit are mutually exclusive")
	}
	if agg.TotalExposure <= 0 {
		return nil, utils.NewInvalidArgumentErrorf("total exposure must be positive, got %g", agg.TotalExposure)
	}

	ulConf := opts.UpperLimitConfidence
	if ulConf == 0 {
		ulConf = DefaultUpperLimitConfidence
	}
	detThresh := opts.DetectionThreshold
	if detThresh == 0 {
		detThresh = ulConf
	}

	isUpperLimit := false
	switch {
	case opts.ForceUpperLimit:
		isUpperLimit = true
	case opts.ForceRate:
		isUpperLimit = false
	default:
		iv, err := c.estimator.Interval(agg.TotalCounts, agg.TotalBackground, detThresh)
		if err != nil {
			return nil, err
		}
		isUpperLimit = iv.Min <= 0
	}

	merged := &models.MergedBin{
		ID:           uuid.New().String(),
		IsUpperLimit: isUpperLimit,
		Bin: models.Bin{
			Time:             agg.Time,
			TimePos:          agg.TimePos,
			TimeNeg:          agg.TimeNeg,
			CountsInSource:   agg.TotalCounts,
			BackgroundCounts: agg.TotalBackground,
			CorrectionFactor: agg.WeightedCorrectionFactor,
			Exposure:         agg.TotalExposure,
		},
	}

	// Counts convert to a physical rate through the exposure-weighted
	// correction factor over the summed exposure.
	scale := agg.WeightedCorrectionFactor / agg.TotalExposure

	if isUpperLimit {
		iv, err := c.estimator.Interval(agg.TotalCounts, agg.TotalBackground, ulConf)
		if err != nil {
			return nil, err
		}
		merged.UpperLimit = iv.Max * scale
		return merged, nil
	}

	iv, err := c.estimator.Interval(agg.TotalCounts, agg.TotalBackground, OneSigmaConfidence)
	if err != nil {
		return nil, err
	}
	merged.Rate = iv.Mean * scale
	merged.RatePos = (iv.Max - iv.Mean) * scale
	merged.RateNeg = (iv.Min - iv.Mean) * scale
	return merged, nil
}
