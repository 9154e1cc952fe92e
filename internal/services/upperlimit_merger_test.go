package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrokit/lightcurve-go/internal/models"
	"github.com/astrokit/lightcurve-go/internal/utils"
)

func upperLimitTable() *models.UpperLimitTable {
	return &models.UpperLimitTable{
		Rows: []models.MultiBandRow{
			{Bands: map[string]*models.BandColumns{
				models.BandTotal: {CountsInSource: 100, BackgroundCounts: 2, CorrectionFactor: 1, Exposure: 100},
				models.BandSoft:  {CountsInSource: 5, BackgroundCounts: 4, CorrectionFactor: 1, Exposure: 100},
			}},
			{Bands: map[string]*models.BandColumns{
				models.BandTotal: {CountsInSource: 100, BackgroundCounts: 3, CorrectionFactor: 1, Exposure: 100},
				models.BandSoft:  {CountsInSource: 5, BackgroundCounts: 4, CorrectionFactor: 1, Exposure: 100},
			}},
		},
	}
}

func TestMergeUpperLimitsAllBands(t *testing.T) {
	m := NewUpperLimitMerger(nil)

	results, err := m.MergeUpperLimits(upperLimitTable(), []int{0, 1}, UpperLimitMergeOptions{})
	require.NoError(t, err)

	// Medium and hard are absent from every row: silently skipped.
	assert.Len(t, results, 2)
	assert.Contains(t, results, models.BandTotal)
	assert.Contains(t, results, models.BandSoft)

	total := results[models.BandTotal]
	assert.Equal(t, int64(200), total.Counts)
	assert.InDelta(t, 5.0, total.BGCounts, 1e-12)
	assert.Greater(t, total.UpperLimit, 0.0)

	// Rate fields are omitted entirely without detectionsAsRates.
	assert.Nil(t, total.Rate)
	assert.Nil(t, total.RatePos)
	assert.Nil(t, total.RateNeg)
	assert.Nil(t, total.IsDetected)
}

func TestMergeUpperLimitsExplicitBands(t *testing.T) {
	m := NewUpperLimitMerger(nil)

	results, err := m.MergeUpperLimits(upperLimitTable(), []int{0, 1}, UpperLimitMergeOptions{
		Bands: []string{models.BandSoft, models.BandHard},
	})
	require.NoError(t, err)

	// Hard is a known band but no selected row covers it.
	assert.Len(t, results, 1)
	assert.Contains(t, results, models.BandSoft)
}

func TestMergeUpperLimitsUnknownBand(t *testing.T) {
	m := NewUpperLimitMerger(nil)

	_, err := m.MergeUpperLimits(upperLimitTable(), []int{0}, UpperLimitMergeOptions{
		Bands: []string{"ultraviolet"},
	})
	require.Error(t, err)
	var invalid *utils.InvalidArgumentError
	assert.ErrorAs(t, err, &invalid)
	assert.Contains(t, err.Error(), "ultraviolet")
}

func TestMergeUpperLimitsDetectionsAsRates(t *testing.T) {
	m := NewUpperLimitMerger(nil)

	results, err := m.MergeUpperLimits(upperLimitTable(), []int{0, 1}, UpperLimitMergeOptions{
		DetectionsAsRates: true,
	})
	require.NoError(t, err)

	// Total band: N=200 over B=5 is a clear detection.
	total := results[models.BandTotal]
	require.NotNil(t, total.IsDetected)
	assert.True(t, *total.IsDetected)
	require.NotNil(t, total.Rate)
	assert.Greater(t, *total.Rate, 0.0)
	assert.Greater(t, *total.RatePos, 0.0)
	assert.Less(t, *total.RateNeg, 0.0)
	// The limit column is reported even for a detected band.
	assert.Greater(t, total.UpperLimit, 0.0)

	// Soft band: N=10 over B=8 is not detected; rates are the NaN sentinel.
	soft := results[models.BandSoft]
	require.NotNil(t, soft.IsDetected)
	assert.False(t, *soft.IsDetected)
	require.NotNil(t, soft.Rate)
	assert.True(t, math.IsNaN(*soft.Rate))
	assert.True(t, math.IsNaN(*soft.RatePos))
	assert.True(t, math.IsNaN(*soft.RateNeg))
	assert.Greater(t, soft.UpperLimit, 0.0)
}

func TestMergeUpperLimitsValidatesSelection(t *testing.T) {
	m := NewUpperLimitMerger(nil)

	t.Run("nil table", func(t *testing.T) {
		_, err := m.MergeUpperLimits(nil, []int{0}, UpperLimitMergeOptions{})
		require.Error(t, err)
		var invalid *utils.InvalidArgumentError
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("empty selection", func(t *testing.T) {
		_, err := m.MergeUpperLimits(upperLimitTable(), nil, UpperLimitMergeOptions{})
		require.Error(t, err)
		var invalid *utils.InvalidArgumentError
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("selection outside table", func(t *testing.T) {
		_, err := m.MergeUpperLimits(upperLimitTable(), []int{0, 7}, UpperLimitMergeOptions{})
		require.Error(t, err)
		var inconsistent *utils.ConsistencyError
		assert.ErrorAs(t, err, &inconsistent)
	})
}
