package services

import (
	"github.com/sirupsen/logrus"

	"github.com/astrokit/lightcurve-go/internal/models"
	"github.com/astrokit/lightcurve-go/internal/utils"
)

// MergeOptions configures a light-curve merge. A zero UpperLimitConfidence
// falls back to DefaultUpperLimitConfidence; a zero DetectionThreshold
// follows the upper-limit confidence. An empty Insert policy behaves like
// InsertNever.
type MergeOptions struct {
	Remove               bool                `json:"remove"`
	Insert               models.InsertPolicy `json:"insert"`
	ForceRate            bool                `json:"force_rate"`
	ForceUpperLimit      bool                `json:"force_upper_limit"`
	UpperLimitConfidence float64             `json:"upper_limit_confidence"`
	DetectionThreshold   float64             `json:"detection_threshold"`
}

// MergeOutcome is what a merge returns to the caller: the classification of
// the merged bin, whether it was committed into the dataset, and the merged
// bin itself.
type MergeOutcome struct {
	IsUpperLimit bool              `json:"is_upper_limit"`
	Inserted     bool              `json:"inserted"`
	Merged       *models.MergedBin `json:"merged"`
}

// LightCurveMerger combines selected bins of a single homogeneous dataset
// into one merged bin, with remove/insert policies that preserve the
// dataset's kind invariant. The dataset is caller-owned and mutated in
// place; removal and insertion only happen after classification succeeds, so
// a failed merge leaves the dataset untouched.
type LightCurveMerger struct {
	aggregator *BinAggregator
	classifier *BinClassifier
	logger     *logrus.Logger
}

// NewLightCurveMerger creates a merger with default aggregation and
// classification stages.
func NewLightCurveMerger(logger *logrus.Logger) *LightCurveMerger {
	return NewLightCurveMergerWithEstimator(nil, logger)
}

// NewLightCurveMergerWithEstimator creates a merger whose classifier uses
// the given estimator (nil for the default tolerances).
func NewLightCurveMergerWithEstimator(estimator *BayesianRateEstimator, logger *logrus.Logger) *LightCurveMerger {
	if logger == nil {
		logger = logrus.New()
	}
	return &LightCurveMerger{
		aggregator: NewBinAggregator(),
		classifier: NewBinClassifier(estimator),
		logger:     logger,
	}
}

// MergeBins aggregates and classifies the selected bins, applies the
// remove/insert policy and returns the outcome.
//
// With Insert == InsertAlwaysCoerce the classifier is forced to the
// dataset's own kind, overriding any caller-supplied force flags; this is
// what guarantees the kind invariant. With InsertIfMatches the bin is only
// committed when its natural classification already matches the dataset.
func (m *LightCurveMerger) MergeBins(ds *models.Dataset, selection []int, opts MergeOptions) (*MergeOutcome, error) {
	if ds == nil {
		return nil, utils.NewInvalidArgumentError("dataset must not be nil")
	}
	switch opts.Insert {
	case models.InsertAlwaysCoerce, models.InsertIfMatches, models.InsertNever, "":
	default:
		return nil, utils.NewInvalidArgumentErrorf("unknown insert policy %q", opts.Insert)
	}

	agg, err := m.aggregator.AggregateBins(ds, selection)
	if err != nil {
		return nil, err
	}

	copts := ClassifyOptions{
		DetectionThreshold:   opts.DetectionThreshold,
		UpperLimitConfidence: opts.UpperLimitConfidence,
		ForceRate:            opts.ForceRate,
		ForceUpperLimit:      opts.ForceUpperLimit,
	}
	if opts.Insert == models.InsertAlwaysCoerce {
		copts.ForceRate = ds.Kind == models.KindDetection
		copts.ForceUpperLimit = ds.Kind == models.KindUpperLimit
	}

	merged, err := m.classifier.Classify(agg, copts)
	if err != nil {
		return nil, err
	}

	insert := false
	switch opts.Insert {
	case models.InsertAlwaysCoerce:
		insert = true
	case models.InsertIfMatches:
		insert = models.KindFor(merged.IsUpperLimit) == ds.Kind
	}

	// Classification is done; from here on the dataset mutations cannot
	// fail, which gives the all-or-nothing removal/insertion contract.
	if opts.Remove {
		ds.RemoveIndices(selection)
	}
	if insert {
		ds.InsertOrdered(merged.Bin)
	}

	m.logger.WithFields(logrus.Fields{
		"kind":           ds.Kind,
		"selected":       len(selection),
		"removed":        opts.Remove,
		"inserted":       insert,
		"is_upper_limit": merged.IsUpperLimit,
	}).Debug("Merged light curve bins")

	return &MergeOutcome{
		IsUpperLimit: merged.IsUpperLimit,
		Inserted:     insert,
		Merged:       merged,
	}, nil
}
