package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrokit/lightcurve-go/internal/models"
	"github.com/astrokit/lightcurve-go/internal/utils"
)

func testDataset() *models.Dataset {
	return &models.Dataset{
		Kind: models.KindDetection,
		Bins: []models.Bin{
			{Time: 100, TimePos: 50, TimeNeg: 50, CountsInSource: 3, BackgroundCounts: 0.5, CorrectionFactor: 2, Exposure: 100, Rate: 0.05, RatePos: 0.02, RateNeg: -0.02},
			{Time: 300, TimePos: 50, TimeNeg: 50, CountsInSource: 5, BackgroundCounts: 1.5, CorrectionFactor: 4, Exposure: 300, Rate: 0.03, RatePos: 0.01, RateNeg: -0.01},
			{Time: 500, TimePos: 50, TimeNeg: 50, CountsInSource: 7, BackgroundCounts: 2.0, CorrectionFactor: 3, Exposure: 200, Rate: 0.06, RatePos: 0.02, RateNeg: -0.02},
		},
	}
}

func TestAggregateBinsSelectionValidation(t *testing.T) {
	agg := NewBinAggregator()
	ds := testDataset()

	tests := []struct {
		name        string
		selection   []int
		wantInvalid bool
	}{
		{name: "empty selection", selection: nil, wantInvalid: true},
		{name: "duplicate index", selection: []int{0, 1, 0}, wantInvalid: true},
		{name: "negative index", selection: []int{-1}, wantInvalid: false},
		{name: "index past end", selection: []int{0, 3}, wantInvalid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := agg.AggregateBins(ds, tt.selection)
			require.Error(t, err)
			if tt.wantInvalid {
				var invalid *utils.InvalidArgumentError
				assert.ErrorAs(t, err, &invalid)
			} else {
				var inconsistent *utils.ConsistencyError
				assert.ErrorAs(t, err, &inconsistent)
			}
		})
	}
}

func TestAggregateBinsTotals(t *testing.T) {
	agg := NewBinAggregator()
	ds := testDataset()

	res, err := agg.AggregateBins(ds, []int{0, 1, 2})
	require.NoError(t, err)

	// Counts and exposure are exact sums.
	assert.Equal(t, int64(15), res.TotalCounts)
	assert.Equal(t, 600.0, res.TotalExposure)
	assert.InDelta(t, 4.0, res.TotalBackground, 1e-12)

	// Exposure-weighted correction: (2*100 + 4*300 + 3*200) / 600.
	assert.InDelta(t, 2000.0/600.0, res.WeightedCorrectionFactor, 1e-12)

	// Time span runs from the earliest start (50) to the latest stop (550).
	assert.InDelta(t, 300.0, res.Time, 1e-12)
	assert.InDelta(t, 250.0, res.TimePos, 1e-12)
	assert.InDelta(t, 250.0, res.TimeNeg, 1e-12)
}

func TestAggregateBinsSubset(t *testing.T) {
	agg := NewBinAggregator()
	ds := testDataset()

	res, err := agg.AggregateBins(ds, []int{0, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.TotalCounts)
	assert.Equal(t, 300.0, res.TotalExposure)
	// (2*100 + 3*200) / 300
	assert.InDelta(t, 800.0/300.0, res.WeightedCorrectionFactor, 1e-12)
	// Span 50..550 even though bin 1 is not selected.
	assert.InDelta(t, 300.0, res.Time, 1e-12)
	assert.InDelta(t, 250.0, res.TimePos, 1e-12)
}

func TestAggregateBinsRejectsBadBins(t *testing.T) {
	agg := NewBinAggregator()
	ds := testDataset()
	ds.Bins[1].Exposure = 0

	_, err := agg.AggregateBins(ds, []int{0, 1})
	require.Error(t, err)
	var invalid *utils.InvalidArgumentError
	assert.ErrorAs(t, err, &invalid)
	assert.Contains(t, err.Error(), "bin 1")
}

func testUpperLimitRows() []models.MultiBandRow {
	return []models.MultiBandRow{
		{Bands: map[string]*models.BandColumns{
			models.BandTotal: {CountsInSource: 4, BackgroundCounts: 1, CorrectionFactor: 2, Exposure: 100},
			models.BandSoft:  {CountsInSource: 2, BackgroundCounts: 0.5, CorrectionFactor: 2, Exposure: 100},
		}},
		{Bands: map[string]*models.BandColumns{
			models.BandTotal: {CountsInSource: 6, BackgroundCounts: 2, CorrectionFactor: 4, Exposure: 300},
		}},
	}
}

func TestAggregateBand(t *testing.T) {
	agg := NewBinAggregator()
	rows := testUpperLimitRows()

	res, ok, err := agg.AggregateBand(rows, []int{0, 1}, models.BandTotal)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(10), res.TotalCounts)
	assert.Equal(t, 400.0, res.TotalExposure)
	assert.InDelta(t, 1400.0/400.0, res.WeightedCorrectionFactor, 1e-12)
}

func TestAggregateBandPartialPresence(t *testing.T) {
	agg := NewBinAggregator()
	rows := testUpperLimitRows()

	// Only row 0 carries the soft band; row 1 contributes nothing.
	res, ok, err := agg.AggregateBand(rows, []int{0, 1}, models.BandSoft)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), res.TotalCounts)
	assert.Equal(t, 100.0, res.TotalExposure)
}

func TestAggregateBandAbsent(t *testing.T) {
	agg := NewBinAggregator()
	rows := testUpperLimitRows()

	res, ok, err := agg.AggregateBand(rows, []int{0, 1}, models.BandHard)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, res)
}

func TestAggregateBandSelectionValidation(t *testing.T) {
	agg := NewBinAggregator()
	rows := testUpperLimitRows()

	_, _, err := agg.AggregateBand(rows, []int{0, 5}, models.BandTotal)
	require.Error(t, err)
	var inconsistent *utils.ConsistencyError
	assert.ErrorAs(t, err, &inconsistent)
}
