package models

import (
	"sort"

	"github.com/astrokit/lightcurve-go/internal/utils"
)

// Kind tags a dataset as holding measured rates or upper limits.
type Kind string

const (
	KindDetection  Kind = "detection"
	KindUpperLimit Kind = "upperlimit"
)

// KindFor returns the dataset kind matching a classification outcome.
func KindFor(isUpperLimit bool) Kind {
	if isUpperLimit {
		return KindUpperLimit
	}
	return KindDetection
}

// InsertPolicy controls whether a merged bin is committed back into its dataset.
type InsertPolicy string

const (
	// InsertAlwaysCoerce commits the merged bin, coercing its classification to the dataset's kind.
	InsertAlwaysCoerce InsertPolicy = "coerce"
	// InsertIfMatches commits the merged bin only when its natural classification matches the dataset's kind.
	InsertIfMatches InsertPolicy = "match"
	// InsertNever returns the merged bin to the caller without committing it.
	InsertNever InsertPolicy = "never"
)

// Bin is one time-indexed measurement of a light curve. Time is the bin
// center and TimePos/TimeNeg are positive half-widths of the bin interval.
// The measurement fields are mutually exclusive: a detection carries
// Rate/RatePos/RateNeg (RateNeg negative by convention) and a zero
// UpperLimit, an upper limit carries a positive UpperLimit and zero errors.
type Bin struct {
	Time    float64 `json:"time"`
	TimePos float64 `json:"time_pos"`
	TimeNeg float64 `json:"time_neg"`

	CountsInSource   int64   `json:"counts_in_source"`
	BackgroundCounts float64 `json:"background_counts"`
	CorrectionFactor float64 `json:"correction_factor"`
	Exposure         float64 `json:"exposure"`

	Rate       float64 `json:"rate"`
	RatePos    float64 `json:"rate_pos"`
	RateNeg    float64 `json:"rate_neg"`
	UpperLimit float64 `json:"upper_limit"`
}

// ShapeKind reports which measurement shape the bin carries.
func (b *Bin) ShapeKind() Kind {
	if b.UpperLimit > 0 && b.RatePos == 0 && b.RateNeg == 0 {
		return KindUpperLimit
	}
	return KindDetection
}

// NewDetectionBin builds a detection-shaped bin.
func NewDetectionBin(time, timePos, timeNeg float64, counts int64, background, correction, exposure, rate, ratePos, rateNeg float64) Bin {
	return Bin{
		Time:             time,
		TimePos:          timePos,
		TimeNeg:          timeNeg,
		CountsInSource:   counts,
		BackgroundCounts: background,
		CorrectionFactor: correction,
		Exposure:         exposure,
		Rate:             rate,
		RatePos:          ratePos,
		RateNeg:          rateNeg,
	}
}

// NewUpperLimitBin builds a limit-shaped bin.
func NewUpperLimitBin(time, timePos, timeNeg float64, counts int64, background, correction, exposure, upperLimit float64) Bin {
	return Bin{
		Time:             time,
		TimePos:          timePos,
		TimeNeg:          timeNeg,
		CountsInSource:   counts,
		BackgroundCounts: background,
		CorrectionFactor: correction,
		Exposure:         exposure,
		UpperLimit:       upperLimit,
	}
}

// Dataset is an ordered, time-ascending sequence of bins sharing one
// measurement kind. The kind is fixed at construction; every mutation path
// through the merge engine preserves the bin-shape invariant.
type Dataset struct {
	Kind Kind  `json:"kind"`
	Bins []Bin `json:"bins"`
}

// NewDataset creates an empty dataset of the given kind.
func NewDataset(kind Kind) *Dataset {
	return &Dataset{Kind: kind}
}

// Len returns the number of bins in the dataset.
func (d *Dataset) Len() int {
	return len(d.Bins)
}

// Validate checks that every bin's measurement shape matches the dataset
// kind and that bins are time-ascending.
func (d *Dataset) Validate() error {
	if d.Kind != KindDetection && d.Kind != KindUpperLimit {
		return utils.NewInvalidArgumentErrorf("unknown dataset kind %q", d.Kind)
	}
	for i := range d.Bins {
		if k := d.Bins[i].ShapeKind(); k != d.Kind {
			return utils.NewConsistencyErrorf("bin %d has %s-shaped fields in a %s dataset", i, k, d.Kind)
		}
		if i > 0 && d.Bins[i].Time < d.Bins[i-1].Time {
			return utils.NewConsistencyErrorf("bin %d breaks time ordering (%g after %g)", i, d.Bins[i].Time, d.Bins[i-1].Time)
		}
	}
	return nil
}

// InsertOrdered adds a bin at its time-ordered position.
func (d *Dataset) InsertOrdered(b Bin) {
	i := sort.Search(len(d.Bins), func(j int) bool { return d.Bins[j].Time > b.Time })
	d.Bins = append(d.Bins, Bin{})
	copy(d.Bins[i+1:], d.Bins[i:])
	d.Bins[i] = b
}

// RemoveIndices deletes the bins at the given positions. Indices must
// already be validated against the dataset; duplicates are not allowed.
func (d *Dataset) RemoveIndices(indices []int) {
	sorted := append([]int(nil), indices...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	for _, idx := range sorted {
		d.Bins = append(d.Bins[:idx], d.Bins[idx+1:]...)
	}
}

// LightCurve is a named collection of datasets (for example "PC" holding
// detections and "PCUL" holding upper limits). The caller owns it; the merge
// engine only mutates individual datasets in place on request.
type LightCurve struct {
	Datasets map[string]*Dataset `json:"datasets"`
}

// MergedBin is the transient product of aggregating and classifying a bin
// selection. It is not part of any dataset until a merger commits it; the
// embedded Bin carries the provenance totals it was produced from.
type MergedBin struct {
	ID string `json:"id"`
	Bin
	IsUpperLimit bool `json:"is_upper_limit"`
}
