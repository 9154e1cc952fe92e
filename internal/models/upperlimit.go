package models

// Canonical energy bands of a catalogue upper-limit table.
const (
	BandTotal  = "total"
	BandSoft   = "soft"
	BandMedium = "medium"
	BandHard   = "hard"
)

// CanonicalBands lists every band the upper-limit merger knows about, in
// catalogue order.
var CanonicalBands = []string{BandTotal, BandSoft, BandMedium, BandHard}

// IsCanonicalBand reports whether name is a known energy band.
func IsCanonicalBand(name string) bool {
	for _, b := range CanonicalBands {
		if b == name {
			return true
		}
	}
	return false
}

// BandColumns holds the countable quantities one table row contributes to a
// single energy band.
type BandColumns struct {
	CountsInSource   int64   `json:"counts_in_source"`
	BackgroundCounts float64 `json:"background_counts"`
	CorrectionFactor float64 `json:"correction_factor"`
	Exposure         float64 `json:"exposure"`
}

// MultiBandRow is one selectable record of an upper-limit table. Bands are
// independent and may be partially absent; a missing or nil map entry means
// the row does not cover that band.
type MultiBandRow struct {
	Bands map[string]*BandColumns `json:"bands"`
}

// UpperLimitTable is a catalogue-level table of multi-band rows.
type UpperLimitTable struct {
	Rows []MultiBandRow `json:"rows"`
}

// BandMergeResult is the per-band outcome of an upper-limit merge. Rate,
// RatePos, RateNeg and IsDetected are only populated when the caller asked
// for detections to be reported as rates; they stay nil otherwise.
type BandMergeResult struct {
	UpperLimit       float64  `json:"upper_limit"`
	Counts           int64    `json:"counts"`
	BGCounts         float64  `json:"bg_counts"`
	CorrectionFactor float64  `json:"correction_factor"`
	Rate             *float64 `json:"rate,omitempty"`
	RatePos          *float64 `json:"rate_pos,omitempty"`
	RateNeg          *float64 `json:"rate_neg,omitempty"`
	IsDetected       *bool    `json:"is_detected,omitempty"`
}
