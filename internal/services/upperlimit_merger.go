package services

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/astrokit/lightcurve-go/internal/models"
	"github.com/astrokit/lightcurve-go/internal/utils"
)

// BandAll selects every canonical band of an upper-limit table.
const BandAll = "all"

// UpperLimitMergeOptions configures a multi-band upper-limit merge. An empty
// Bands list (or one containing BandAll) selects all canonical bands. A zero
// Confidence falls back to DefaultUpperLimitConfidence and a zero
// DetectionThreshold follows Confidence.
type UpperLimitMergeOptions struct {
	DetectionsAsRates  bool     `json:"detections_as_rates"`
	Bands              []string `json:"bands"`
	Confidence         float64  `json:"confidence"`
	DetectionThreshold float64  `json:"detection_threshold"`
}

// UpperLimitMerger merges the selected rows of a catalogue upper-limit table
// independently per energy band. Unlike a light-curve dataset there is no
// single-kind invariant: each band reports its own detection status.
type UpperLimitMerger struct {
	aggregator *BinAggregator
	classifier *BinClassifier
	logger     *logrus.Logger
}

// NewUpperLimitMerger creates a merger with default aggregation and
// classification stages.
func NewUpperLimitMerger(logger *logrus.Logger) *UpperLimitMerger {
	return NewUpperLimitMergerWithEstimator(nil, logger)
}

// NewUpperLimitMergerWithEstimator creates a merger whose classifier uses
// the given estimator (nil for the default tolerances).
func NewUpperLimitMergerWithEstimator(estimator *BayesianRateEstimator, logger *logrus.Logger) *UpperLimitMerger {
	if logger == nil {
		logger = logrus.New()
	}
	return &UpperLimitMerger{
		aggregator: NewBinAggregator(),
		classifier: NewBinClassifier(estimator),
		logger:     logger,
	}
}

// resolveBands expands the requested band list, rejecting names outside the
// canonical vocabulary.
func resolveBands(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return models.CanonicalBands, nil
	}
	for _, band := range requested {
		if band == BandAll {
			return models.CanonicalBands, nil
		}
	}
	for _, band := range requested {
		if !models.IsCanonicalBand(band) {
			return nil, utils.NewInvalidArgumentErrorf("unknown band %q (known bands: %v)", band, models.CanonicalBands)
		}
	}
	return requested, nil
}

// MergeUpperLimits aggregates and classifies the selection once per
// requested band and returns a band-keyed result map. Bands the selected
// rows do not cover are silently skipped. The upper limit is always
// reported, even for detected bands; rate fields are only populated when
// DetectionsAsRates is set, with NaN as the sentinel for undetected bands.
func (m *UpperLimitMerger) MergeUpperLimits(table *models.UpperLimitTable, selection []int, opts UpperLimitMergeOptions) (map[string]models.BandMergeResult, error) {
	if table == nil {
		return nil, utils.NewInvalidArgumentError("upper-limit table must not be nil")
	}
	bands, err := resolveBands(opts.Bands)
	if err != nil {
		return nil, err
	}

	conf := opts.Confidence
	if conf == 0 {
		conf = DefaultUpperLimitConfidence
	}
	detThresh := opts.DetectionThreshold
	if detThresh == 0 {
		detThresh = conf
	}

	results := make(map[string]models.BandMergeResult, len(bands))
	for _, band := range bands {
		agg, ok, err := m.aggregator.AggregateBand(table.Rows, selection, band)
		if err != nil {
			return nil, err
		}
		if !ok {
			m.logger.WithField("band", band).Debug("Band absent from selection, skipped")
			continue
		}

		merged, err := m.classifier.Classify(agg, ClassifyOptions{
			DetectionThreshold:   detThresh,
			UpperLimitConfidence: conf,
		})
		if err != nil {
			return nil, err
		}

		res := models.BandMergeResult{
			Counts:           agg.TotalCounts,
			BGCounts:         agg.TotalBackground,
			CorrectionFactor: agg.WeightedCorrectionFactor,
		}

		if merged.IsUpperLimit {
			res.UpperLimit = merged.UpperLimit
		} else {
			// The band is detected; the limit column is still reported, so
			// recompute it with the classification forced.
			limit, err := m.classifier.Classify(agg, ClassifyOptions{
				UpperLimitConfidence: conf,
				ForceUpperLimit:      true,
			})
			if err != nil {
				return nil, err
			}
			res.UpperLimit = limit.UpperLimit
		}

		if opts.DetectionsAsRates {
			detected := !merged.IsUpperLimit
			rate, ratePos, rateNeg := math.NaN(), math.NaN(), math.NaN()
			if detected {
				rate, ratePos, rateNeg = merged.Rate, merged.RatePos, merged.RateNeg
			}
			res.Rate = &rate
			res.RatePos = &ratePos
			res.RateNeg = &rateNeg
			res.IsDetected = &detected
		}

		results[band] = res
	}
	return results, nil
}
