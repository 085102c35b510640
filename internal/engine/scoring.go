package engine

import (
	"strings"

	"github.com/arnabghosh/compute-matcher/internal/domain"
)

const (
	// powerFitUpper is the largest power ratio that still counts as a perfect fit
	powerFitUpper = 1.5
	// powerExcessSlope and powerExcessCap shape the over-provisioning penalty
	powerExcessSlope = 8.0
	powerExcessCap   = 0.5

	locationExact     = 1.0
	locationNoPref    = 0.5
	locationElsewhere = 0.3

	// responseProxyScale converts reputation into a latency proxy. No latency
	// metric exists for resources yet, so reliability stands in for it.
	responseProxyScale = 10.0
)

var energyScores = map[domain.EnergyClass]float64{
	domain.EnergyGreen:     1.0,
	domain.EnergyEfficient: 0.8,
	domain.EnergyStandard:  0.5,
	domain.EnergyLegacy:    0.2,
	domain.EnergyUnknown:   0.5,
}

// Factors holds the normalised sub-scores of a single (demand, resource) pair
type Factors struct {
	Power       float64 `json:"power"`
	Cost        float64 `json:"cost"`
	Reliability float64 `json:"reliability"`
	Location    float64 `json:"location"`
	Energy      float64 `json:"energy"`
	Response    float64 `json:"response"`
}

// Weighted returns the weighted sum of the factors, clamped to [0, 1]
func (f Factors) Weighted(w Weights) float64 {
	total := w.Power*f.Power +
		w.Cost*f.Cost +
		w.Reliability*f.Reliability +
		w.Location*f.Location +
		w.Energy*f.Energy +
		w.Response*f.Response
	return clamp01(total)
}

// Score returns the suitability of r for d in [0, 1]
func Score(d *domain.Demand, r *domain.Resource, w Weights) float64 {
	return Breakdown(d, r, w).Weighted(w)
}

// Breakdown computes every sub-score, each clamped to [0, 1]
func Breakdown(d *domain.Demand, r *domain.Resource, w Weights) Factors {
	return Factors{
		Power:       powerFit(d.RequiredPower, r.ComputationPower),
		Cost:        costEfficiency(r.PricePerUnit, d.MaxPricePerUnit),
		Reliability: reliability(r.Reputation, w.MaxReputation),
		Location:    proximity(d.PreferredLocation, r.Location),
		Energy:      energyProfile(r.EnergyClass),
		Response:    clamp01(r.Reputation / responseProxyScale),
	}
}

func powerFit(required, available float64) float64 {
	if required <= 0 {
		return 1.0
	}
	ratio := available / required
	switch {
	case ratio < 1.0:
		return 0
	case ratio <= powerFitUpper:
		return 1.0
	}
	penalty := (ratio - powerFitUpper) / powerExcessSlope
	if penalty > powerExcessCap {
		penalty = powerExcessCap
	}
	return clamp01(1.0 - penalty)
}

func costEfficiency(price, maxPrice float64) float64 {
	if maxPrice <= 0 {
		return 0
	}
	return clamp01(1.0 - price/maxPrice)
}

func reliability(reputation, maxReputation float64) float64 {
	if maxReputation <= 0 {
		return 0
	}
	return clamp01(reputation / maxReputation)
}

// proximity is a coarse placeholder: no geographic distance is computed
func proximity(preferred, location string) float64 {
	if preferred == "" {
		return locationNoPref
	}
	if strings.EqualFold(preferred, location) {
		return locationExact
	}
	return locationElsewhere
}

func energyProfile(class domain.EnergyClass) float64 {
	if s, ok := energyScores[class]; ok {
		return s
	}
	return energyScores[domain.EnergyUnknown]
}

// clamp01 also maps NaN to 0
func clamp01(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
