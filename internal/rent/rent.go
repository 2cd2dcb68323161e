// Package rent computes a unit's periodic rent from a building policy and
// per-unit overrides. Pure computation, no storage access.
package rent

import (
	"errors"
	"math"
	"strconv"

	directorydomain "github.com/smallbiznis/tenancy/internal/directory/domain"
)

var (
	ErrInvalidArea = errors.New("invalid_area")
	ErrInvalidRate = errors.New("invalid_rate")
)

// Source records which pricing rule produced the total.
type Source string

const (
	SourceManual         Source = "manual"
	SourceUnitOverride   Source = "unit_override"
	SourceFloorOverride  Source = "floor_override"
	SourceBuildingPolicy Source = "building_policy"
)

// Policy is a building's rent formula.
type Policy struct {
	BaseRate          float64
	DecrementPerFloor float64
	GroundMultiplier  float64
	MinRate           float64
	FloorOverrides    map[int]float64
}

// UnitAttributes are the pricing-relevant attributes of a unit.
type UnitAttributes struct {
	Floor       int
	Area        float64
	FlatRent    *int64
	RatePerArea *int64
}

type Breakdown struct {
	BaseRate         float64 `json:"base_rate"`
	FloorAdjustment  float64 `json:"floor_adjustment"`
	GroundMultiplier float64 `json:"ground_multiplier"`
	MinRateApplied   bool    `json:"min_rate_applied"`
}

type Result struct {
	AppliedRate float64   `json:"applied_rate"`
	Total       int64     `json:"total"`
	Source      Source    `json:"source"`
	Breakdown   Breakdown `json:"breakdown"`
}

// Calculate resolves the periodic rent for a unit. Precedence, first match
// wins: flat override on the unit, per-area rate override on the unit, floor
// override from the building policy, building formula. Totals are rounded to
// the nearest whole currency unit.
func Calculate(policy Policy, unit UnitAttributes) (Result, error) {
	if unit.FlatRent != nil {
		if *unit.FlatRent < 0 {
			return Result{}, ErrInvalidRate
		}
		return Result{
			AppliedRate: float64(*unit.FlatRent),
			Total:       *unit.FlatRent,
			Source:      SourceManual,
		}, nil
	}

	if unit.Area <= 0 {
		return Result{}, ErrInvalidArea
	}

	if unit.RatePerArea != nil {
		if *unit.RatePerArea < 0 {
			return Result{}, ErrInvalidRate
		}
		rate := float64(*unit.RatePerArea)
		return Result{
			AppliedRate: rate,
			Total:       round(rate * unit.Area),
			Source:      SourceUnitOverride,
		}, nil
	}

	if override, ok := policy.FloorOverrides[unit.Floor]; ok {
		if override < 0 {
			return Result{}, ErrInvalidRate
		}
		return Result{
			AppliedRate: override,
			Total:       round(override * unit.Area),
			Source:      SourceFloorOverride,
		}, nil
	}

	adjustment := -policy.DecrementPerFloor * float64(maxInt(0, unit.Floor-1))
	rate := policy.BaseRate + adjustment

	multiplier := 1.0
	if unit.Floor == 0 || unit.Floor == 1 {
		multiplier = policy.GroundMultiplier
		if multiplier <= 0 {
			multiplier = 1.0
		}
		rate *= multiplier
	}

	minApplied := false
	if rate < policy.MinRate {
		rate = policy.MinRate
		minApplied = true
	}

	return Result{
		AppliedRate: rate,
		Total:       round(rate * unit.Area),
		Source:      SourceBuildingPolicy,
		Breakdown: Breakdown{
			BaseRate:         policy.BaseRate,
			FloorAdjustment:  adjustment,
			GroundMultiplier: multiplier,
			MinRateApplied:   minApplied,
		},
	}, nil
}

// PolicyFromBuilding converts a directory building row into a Policy.
func PolicyFromBuilding(building *directorydomain.Building) Policy {
	policy := Policy{
		BaseRate:          float64(building.BaseRate),
		DecrementPerFloor: float64(building.DecrementPerFloor),
		GroundMultiplier:  building.GroundMultiplier,
		MinRate:           float64(building.MinRate),
	}
	if len(building.FloorOverrides) > 0 {
		policy.FloorOverrides = make(map[int]float64, len(building.FloorOverrides))
		for key, value := range building.FloorOverrides {
			floor, err := strconv.Atoi(key)
			if err != nil {
				continue
			}
			switch typed := value.(type) {
			case float64:
				policy.FloorOverrides[floor] = typed
			case int64:
				policy.FloorOverrides[floor] = float64(typed)
			case int:
				policy.FloorOverrides[floor] = float64(typed)
			case string:
				parsed, err := strconv.ParseFloat(typed, 64)
				if err == nil {
					policy.FloorOverrides[floor] = parsed
				}
			}
		}
	}
	return policy
}

// AttributesFromUnit converts a directory unit row into UnitAttributes.
func AttributesFromUnit(unit *directorydomain.Unit) UnitAttributes {
	return UnitAttributes{
		Floor:       unit.Floor,
		Area:        unit.Area,
		FlatRent:    unit.FlatRent,
		RatePerArea: unit.RatePerArea,
	}
}

func round(v float64) int64 {
	return int64(math.Round(v))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
