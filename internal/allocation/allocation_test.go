package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeClaimLevel(t *testing.T) {
	updateID := uint(7)
	assert.False(t, Scope{KpiID: 1}.ClaimLevel())
	assert.True(t, Scope{KpiID: 1, KpiUpdateID: &updateID}.ClaimLevel())
}

func TestCheckAcceptsWithinCeiling(t *testing.T) {
	assert.NoError(t, Check(100, 0, 50))
	assert.NoError(t, Check(100, 50, 49.99))
}

func TestCheckBoundaryEqualityPasses(t *testing.T) {
	// Landing the total exactly on the ceiling is allowed.
	assert.NoError(t, Check(100, 80, 20))
	assert.NoError(t, Check(0, 0, 0))
}

func TestCheckRejectionPrecision(t *testing.T) {
	// Ceiling T=100, existing E=80: a write of T-E+1 must fail and
	// report available == T-E; a write of exactly T-E must succeed.
	err := Check(100, 80, 21)
	require.Error(t, err)

	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 100.0, exceeded.Ceiling)
	assert.Equal(t, 20.0, exceeded.Available)

	assert.NoError(t, Check(100, 80, 20))
}

func TestCheckEditExclusion(t *testing.T) {
	// Ceiling 100, donor A holds 80 and raises to 95. The caller
	// excludes the row under edit, so alreadyCredited is 0 here and
	// the new value fits.
	assert.NoError(t, Check(100, 0, 95))

	// Same edit without exclusion would wrongly fail.
	assert.Error(t, Check(100, 80, 95))
}

func TestCheckTwoDonorScenario(t *testing.T) {
	// KPI measured total 200; donor A already credited 120.
	err := Check(200, 120, 90)
	require.Error(t, err)

	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 80.0, exceeded.Available)

	// Donor B retries with exactly the remainder; the ledger total
	// then matches the ceiling exactly.
	require.NoError(t, Check(200, 120, 80))
	assert.Equal(t, 0.0, Available(200, 200))
}

func TestCheckOverAllocatedScope(t *testing.T) {
	// A scope already past its ceiling (claim shrank after the credit
	// was written) accepts nothing further.
	err := Check(50, 70, 1)
	require.Error(t, err)

	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, -20.0, exceeded.Available)
}

func TestAvailable(t *testing.T) {
	assert.Equal(t, 20.0, Available(100, 80))
	assert.Equal(t, -20.0, Available(50, 70))
	assert.Equal(t, 0.0, Available(0, 0))
}

func TestExceededErrorMessage(t *testing.T) {
	err := &ExceededError{Ceiling: 100, Available: 12.5}
	assert.Equal(t, "allocation exceeds available credit (available: 12.50)", err.Error())
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "12.50", FormatAmount(12.5))
	assert.Equal(t, "0.00", FormatAmount(0))
	assert.Equal(t, "-20.00", FormatAmount(-20))
	assert.Equal(t, "0.33", FormatAmount(0.333))
}
