// Package score derives popularity, trust and per-agent compatibility.
//
// The formulas are pure functions; Scorer applies them against a store and
// serializes updates per slug and per (slug, agent) pair.
package score

import (
	"math"
	"time"

	"github.com/scbrown/clicat/internal/model"
)

const (
	// Alpha is the per-sample EWMA weight of a new verification result.
	Alpha = 0.02
	// HalfLife halves the weight of the previous rate for each elapsed
	// period between samples, so old history fades even at low volume.
	HalfLife = 30 * 24 * time.Hour
	// Smoothing is the weight of the previous popularity and trust score.
	Smoothing = 0.7
	// DefaultStaleAfter is the age at which a compatibility record reads as
	// unknown.
	DefaultStaleAfter = 30 * 24 * time.Hour

	// popularityDecades maps 10^7 downloads to a popularity of 100.
	popularityDecades = 7
	maxRecipes        = 4
)

// Trust weights.
const (
	weightPopularity = 0.35
	weightStatus     = 0.30
	weightRecipes    = 0.20
	weightRepository = 0.15
)

// StatusWeight is the trust contribution of a verification status in [0, 1].
func StatusWeight(s model.VerificationStatus) float64 {
	switch s {
	case model.Verified:
		return 1.0
	case model.CommunityCurated:
		return 0.6
	default:
		return 0.2
	}
}

// Popularity maps a usage proxy onto [0, 100] on a log scale.
func Popularity(downloads int64) float64 {
	if downloads <= 0 {
		return 0
	}
	p := 100 * math.Log10(float64(downloads)+1) / popularityDecades
	return round2(math.Min(100, p))
}

// Trust computes the unsmoothed trust score of p from its popularity,
// verification status, install coverage and repository presence.
func Trust(p model.Profile, popularity float64) float64 {
	recipes := math.Min(float64(len(p.Install)), maxRecipes) / maxRecipes
	repo := 0.0
	if p.Repository != "" {
		repo = 1
	}
	t := weightPopularity*popularity/100 +
		weightStatus*StatusWeight(p.Verification) +
		weightRecipes*recipes +
		weightRepository*repo
	return round2(100 * t)
}

// Smooth blends a fresh score into the previous one. A zero previous score
// counts as unscored and is seeded with the fresh value.
func Smooth(prev, fresh float64) float64 {
	if prev == 0 {
		return round2(fresh)
	}
	return round2(Smoothing*prev + (1-Smoothing)*fresh)
}

// CompatUpdate folds one verification sample taken at at into rec. The
// first sample seeds the rate.
func CompatUpdate(rec model.CompatibilityRecord, success bool, at time.Time) model.CompatibilityRecord {
	sample := 0.0
	if success {
		sample = 1
	}
	out := rec
	if rec.Samples == 0 {
		out.SuccessRate = sample
	} else {
		out.SuccessRate = EWMA(rec.SuccessRate, sample, at.Sub(rec.LastVerified))
	}
	out.Samples++
	if at.After(rec.LastVerified) {
		out.LastVerified = at
	}
	out.Status = StatusFor(out.SuccessRate)
	return out
}

// EWMA returns the updated average. The previous value keeps weight
// (1-Alpha), further halved for every HalfLife in elapsed.
func EWMA(prev, sample float64, elapsed time.Duration) float64 {
	keep := 1 - Alpha
	if elapsed > 0 {
		keep *= math.Pow(0.5, float64(elapsed)/float64(HalfLife))
	}
	return keep*prev + (1-keep)*sample
}

// StatusFor maps a smoothed success rate onto a status.
func StatusFor(rate float64) model.CompatStatus {
	switch {
	case rate > 0.9:
		return model.CompatVerified
	case rate >= 0.5:
		return model.CompatPartial
	default:
		return model.CompatBroken
	}
}

// View returns rec as it should be read at now: records older than
// staleAfter read as unknown. The stored record is not changed.
func View(rec model.CompatibilityRecord, now time.Time, staleAfter time.Duration) model.CompatibilityRecord {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if rec.LastVerified.IsZero() || now.Sub(rec.LastVerified) > staleAfter {
		rec.Status = model.CompatUnknown
	}
	return rec
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
