package services

import (
	"github.com/astrokit/lightcurve-go/internal/models"
	"github.com/astrokit/lightcurve-go/internal/utils"
)

// AggregateResult holds the raw countable totals of a bin selection. No
// classification has happened yet; these are the inputs a BinClassifier
// turns into a merged measurement.
type AggregateResult struct {
	TotalCounts              int64   `json:"total_counts"`
	TotalBackground          float64 `json:"total_background"`
	TotalExposure            float64 `json:"total_exposure"`
	WeightedCorrectionFactor float64 `json:"weighted_correction_factor"`

	// Merged time interval as a center and two positive half-widths,
	// spanning the earliest start to the latest stop of the selected bins.
	Time    float64 `json:"time"`
	TimePos float64 `json:"time_pos"`
	TimeNeg float64 `json:"time_neg"`
}

// BinAggregator sums the countable quantities of an explicit row selection.
// Counts are summed as exact integers; the correction factor is
// exposure-weighted.
type BinAggregator struct{}

// NewBinAggregator creates a new aggregator instance.
func NewBinAggregator() *BinAggregator {
	return &BinAggregator{}
}

// validateSelection checks that a selection is non-empty, duplicate-free and
// entirely inside a table of the given size.
func (a *BinAggregator) validateSelection(selection []int, size int) error {
	if len(selection) == 0 {
		return utils.NewInvalidArgumentError("row selection must not be empty")
	}
	seen := make(map[int]struct{}, len(selection))
	for _, idx := range selection {
		if idx < 0 || idx >= size {
			return utils.NewConsistencyErrorf("selected index %d is outside the table (%d rows)", idx, size)
		}
		if _, dup := seen[idx]; dup {
			return utils.NewInvalidArgumentErrorf("selected index %d appears more than once", idx)
		}
		seen[idx] = struct{}{}
	}
	return nil
}

// AggregateBins sums the selected bins of a dataset.
func (a *BinAggregator) AggregateBins(ds *models.Dataset, selection []int) (*AggregateResult, error) {
	if ds == nil {
		return nil, utils.NewInvalidArgumentError("dataset must not be nil")
	}
	if err := a.validateSelection(selection, ds.Len()); err != nil {
		return nil, err
	}

	res := &AggregateResult{}
	var weighted float64
	var start, stop float64
	for i, idx := range selection {
		bin := &ds.Bins[idx]
		if bin.Exposure <= 0 {
			return nil, utils.NewInvalidArgumentErrorf("bin %d has non-positive exposure %g", idx, bin.Exposure)
		}
		if bin.CorrectionFactor <= 0 {
			return nil, utils.NewInvalidArgumentErrorf("bin %d has non-positive correction factor %g", idx, bin.CorrectionFactor)
		}
		res.TotalCounts += bin.CountsInSource
		res.TotalBackground += bin.BackgroundCounts
		res.TotalExposure += bin.Exposure
		weighted += bin.CorrectionFactor * bin.Exposure

		lo := bin.Time - bin.TimeNeg
		hi := bin.Time + bin.TimePos
		if i == 0 || lo < start {
			start = lo
		}
		if i == 0 || hi > stop {
			stop = hi
		}
	}
	res.WeightedCorrectionFactor = weighted / res.TotalExposure
	res.Time = 0.5 * (start + stop)
	res.TimePos = stop - res.Time
	res.TimeNeg = res.Time - start
	return res, nil
}

// AggregateBand sums one energy band over the selected rows of an
// upper-limit table. Rows that do not cover the band contribute nothing; if
// no selected row covers it the band is reported absent (ok == false), which
// the caller treats as a silent skip rather than an error.
func (a *BinAggregator) AggregateBand(rows []models.MultiBandRow, selection []int, band string) (*AggregateResult, bool, error) {
	if err := a.validateSelection(selection, len(rows)); err != nil {
		return nil, false, err
	}

	res := &AggregateResult{}
	var weighted float64
	present := false
	for _, idx := range selection {
		cols := rows[idx].Bands[band]
		if cols == nil {
			continue
		}
		if cols.Exposure <= 0 {
			return nil, false, utils.NewInvalidArgumentErrorf("row %d band %q has non-positive exposure %g", idx, band, cols.Exposure)
		}
		if cols.CorrectionFactor <= 0 {
			return nil, false, utils.NewInvalidArgumentErrorf("row %d band %q has non-positive correction factor %g", idx, band, cols.CorrectionFactor)
		}
		present = true
		res.TotalCounts += cols.CountsInSource
		res.TotalBackground += cols.BackgroundCounts
		res.TotalExposure += cols.Exposure
		weighted += cols.CorrectionFactor * cols.Exposure
	}
	if !present {
		return nil, false, nil
	}
	res.WeightedCorrectionFactor = weighted / res.TotalExposure
	return res, true, nil
}
