package rent

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestCalculate_FlatOverrideWinsOverEverything(t *testing.T) {
	policy := Policy{
		BaseRate:          500,
		DecrementPerFloor: 10,
		GroundMultiplier:  1.2,
		MinRate:           100,
		FloorOverrides:    map[int]float64{3: 999},
	}
	unit := UnitAttributes{
		Floor:       3,
		Area:        40,
		FlatRent:    int64Ptr(25000),
		RatePerArea: int64Ptr(700),
	}

	result, err := Calculate(policy, unit)
	require.NoError(t, err)
	assert.Equal(t, SourceManual, result.Source)
	assert.Equal(t, int64(25000), result.Total)
}

func TestCalculate_PerAreaOverrideWinsOverFloorOverride(t *testing.T) {
	policy := Policy{
		BaseRate:       500,
		MinRate:        100,
		FloorOverrides: map[int]float64{2: 450},
	}
	unit := UnitAttributes{
		Floor:       2,
		Area:        30,
		RatePerArea: int64Ptr(600),
	}

	result, err := Calculate(policy, unit)
	require.NoError(t, err)
	assert.Equal(t, SourceUnitOverride, result.Source)
	assert.Equal(t, int64(18000), result.Total)
	assert.Equal(t, 600.0, result.AppliedRate)
}

func TestCalculate_FloorOverrideWinsOverFormula(t *testing.T) {
	policy := Policy{
		BaseRate:          500,
		DecrementPerFloor: 10,
		GroundMultiplier:  1.2,
		MinRate:           100,
		FloorOverrides:    map[int]float64{2: 450},
	}
	unit := UnitAttributes{Floor: 2, Area: 40}

	result, err := Calculate(policy, unit)
	require.NoError(t, err)
	assert.Equal(t, SourceFloorOverride, result.Source)
	assert.Equal(t, int64(18000), result.Total)
}

// Building base rate 500/sqm, decrement 10/floor, ground multiplier 1.2,
// floor 3, area 40: adjustment -20, rate 480, total 19200.
func TestCalculate_BuildingFormulaUpperFloor(t *testing.T) {
	policy := Policy{
		BaseRate:          500,
		DecrementPerFloor: 10,
		GroundMultiplier:  1.2,
		MinRate:           100,
	}
	unit := UnitAttributes{Floor: 3, Area: 40}

	result, err := Calculate(policy, unit)
	require.NoError(t, err)
	assert.Equal(t, SourceBuildingPolicy, result.Source)
	assert.Equal(t, -20.0, result.Breakdown.FloorAdjustment)
	assert.Equal(t, 480.0, result.AppliedRate)
	assert.Equal(t, int64(19200), result.Total)
	assert.False(t, result.Breakdown.MinRateApplied)
}

func TestCalculate_GroundMultiplierOnlyAtFloorsZeroAndOne(t *testing.T) {
	policy := Policy{
		BaseRate:          500,
		DecrementPerFloor: 10,
		GroundMultiplier:  1.2,
		MinRate:           100,
	}

	for _, floor := range []int{0, 1} {
		result, err := Calculate(policy, UnitAttributes{Floor: floor, Area: 10})
		require.NoError(t, err)
		assert.Equal(t, 600.0, result.AppliedRate, "floor %d", floor)
		assert.Equal(t, 1.2, result.Breakdown.GroundMultiplier)
	}

	result, err := Calculate(policy, UnitAttributes{Floor: 2, Area: 10})
	require.NoError(t, err)
	assert.Equal(t, 490.0, result.AppliedRate)
	assert.Equal(t, 1.0, result.Breakdown.GroundMultiplier)
}

func TestCalculate_MinRateClampsLargeDecrements(t *testing.T) {
	policy := Policy{
		BaseRate:          500,
		DecrementPerFloor: 100,
		GroundMultiplier:  1.2,
		MinRate:           250,
	}
	// Floor 8: adjustment -700 drives the rate negative; MinRate wins.
	result, err := Calculate(policy, UnitAttributes{Floor: 8, Area: 20})
	require.NoError(t, err)
	assert.Equal(t, 250.0, result.AppliedRate)
	assert.True(t, result.Breakdown.MinRateApplied)
	assert.Equal(t, int64(5000), result.Total)
}

func TestCalculate_ZeroAreaRejectedForRatePaths(t *testing.T) {
	policy := Policy{BaseRate: 500}

	_, err := Calculate(policy, UnitAttributes{Floor: 1, Area: 0})
	assert.ErrorIs(t, err, ErrInvalidArea)

	// Flat override does not consult area at all.
	result, err := Calculate(policy, UnitAttributes{Floor: 1, Area: 0, FlatRent: int64Ptr(12000)})
	require.NoError(t, err)
	assert.Equal(t, int64(12000), result.Total)
}

func TestCalculate_RoundsToNearestWholeUnit(t *testing.T) {
	policy := Policy{BaseRate: 333, GroundMultiplier: 1.0, MinRate: 0}
	result, err := Calculate(policy, UnitAttributes{Floor: 2, Area: 10.5})
	require.NoError(t, err)
	assert.Equal(t, int64(3497), result.Total) // 333 * 10.5 = 3496.5
}

// Property sweep: over a range of floors and areas the formula result always
// respects the MinRate floor, rounds to a whole unit, and never goes negative.
func TestCalculate_FormulaProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		policy := Policy{
			BaseRate:          float64(rng.Intn(2000)),
			DecrementPerFloor: float64(rng.Intn(300)),
			GroundMultiplier:  0.5 + rng.Float64()*2,
			MinRate:           float64(rng.Intn(500)),
		}
		unit := UnitAttributes{
			Floor: rng.Intn(30),
			Area:  1 + rng.Float64()*500,
		}

		result, err := Calculate(policy, unit)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, result.AppliedRate, policy.MinRate)
		assert.GreaterOrEqual(t, result.Total, int64(0))
		assert.Equal(t, round(result.AppliedRate*unit.Area), result.Total)
		if unit.Floor >= 2 {
			assert.Equal(t, 1.0, result.Breakdown.GroundMultiplier)
		}
	}
}

func TestCalculate_FloorAdjustmentMonotonic(t *testing.T) {
	policy := Policy{
		BaseRate:          1000,
		DecrementPerFloor: 25,
		GroundMultiplier:  1.0,
		MinRate:           0,
	}

	previous := math.Inf(1)
	for floor := 1; floor <= 20; floor++ {
		result, err := Calculate(policy, UnitAttributes{Floor: floor, Area: 10})
		require.NoError(t, err)
		assert.LessOrEqual(t, result.AppliedRate, previous)
		previous = result.AppliedRate
	}
}
