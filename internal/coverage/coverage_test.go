package coverage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) *time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	require.NoError(t, err)
	return &parsed
}

func TestComputeEmptyClaims(t *testing.T) {
	r := Compute(nil, []Evidence{{ID: 1, Date: date(t, "2024-05-01")}})
	assert.Equal(t, Report{}, r)
}

func TestCoversPointDate(t *testing.T) {
	tests := []struct {
		name     string
		evidence Evidence
		claimDay string
		want     bool
	}{
		{"exact match", Evidence{Date: date(t, "2024-05-01")}, "2024-05-01", true},
		{"off by one day", Evidence{Date: date(t, "2024-05-02")}, "2024-05-01", false},
		{"no dates at all", Evidence{}, "2024-05-01", false},
		{"same day different clock time", Evidence{Date: timePtr(time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC))}, "2024-05-01", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Covers(tt.evidence, *date(t, tt.claimDay)))
		})
	}
}

func TestCoversRange(t *testing.T) {
	e := Evidence{RangeStart: date(t, "2024-05-01"), RangeEnd: date(t, "2024-05-15")}

	tests := []struct {
		name     string
		claimDay string
		want     bool
	}{
		{"inside range", "2024-05-10", true},
		{"start bound inclusive", "2024-05-01", true},
		{"end bound inclusive", "2024-05-15", true},
		{"after range", "2024-05-20", false},
		{"before range", "2024-04-30", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Covers(e, *date(t, tt.claimDay)))
		})
	}
}

func TestCoversHalfOpenRangeNeverMatches(t *testing.T) {
	// Only one bound set: not a usable range.
	assert.False(t, Covers(Evidence{RangeStart: date(t, "2024-05-01")}, *date(t, "2024-05-10")))
	assert.False(t, Covers(Evidence{RangeEnd: date(t, "2024-05-15")}, *date(t, "2024-05-10")))
}

func TestComputeCounting(t *testing.T) {
	claims := []Claim{
		{ID: 1, Date: date(t, "2024-05-01")},
		{ID: 2, Date: date(t, "2024-05-10")},
		{ID: 3, Date: date(t, "2024-06-01")},
	}
	evidence := []Evidence{
		{ID: 10, Date: date(t, "2024-05-01")},
		{ID: 11, RangeStart: date(t, "2024-05-05"), RangeEnd: date(t, "2024-05-15")},
	}

	r := Compute(claims, evidence)
	assert.Equal(t, 3, r.TotalClaims)
	assert.Equal(t, 2, r.ProvenCount)
	assert.Equal(t, 67, r.Percent)
}

func TestComputeRounding(t *testing.T) {
	claims := []Claim{
		{ID: 1, Date: date(t, "2024-05-01")},
		{ID: 2, Date: date(t, "2024-06-01")},
		{ID: 3, Date: date(t, "2024-07-01")},
	}
	evidence := []Evidence{{ID: 10, Date: date(t, "2024-05-01")}}

	r := Compute(claims, evidence)
	assert.Equal(t, 33, r.Percent)
}

func TestComputeOrderIndependent(t *testing.T) {
	claims := []Claim{
		{ID: 1, Date: date(t, "2024-05-01")},
		{ID: 2, Date: date(t, "2024-05-10")},
		{ID: 3, Date: date(t, "2024-05-20")},
	}
	evidence := []Evidence{
		{ID: 10, Date: date(t, "2024-05-01")},
		{ID: 11, RangeStart: date(t, "2024-05-08"), RangeEnd: date(t, "2024-05-12")},
	}

	want := Compute(claims, evidence)

	reversedClaims := []Claim{claims[2], claims[0], claims[1]}
	reversedEvidence := []Evidence{evidence[1], evidence[0]}
	assert.Equal(t, want, Compute(reversedClaims, reversedEvidence))
}

func TestComputeUndatedClaimNeverProven(t *testing.T) {
	claims := []Claim{
		{ID: 1},
		{ID: 2, Date: date(t, "2024-05-01")},
	}
	evidence := []Evidence{
		{ID: 10, Date: date(t, "2024-05-01")},
		{ID: 11, RangeStart: date(t, "2024-01-01"), RangeEnd: date(t, "2024-12-31")},
	}

	r := Compute(claims, evidence)
	assert.Equal(t, 2, r.TotalClaims)
	assert.Equal(t, 1, r.ProvenCount)
	assert.Equal(t, 50, r.Percent)
}

func TestComputePreciseLinksOnlyApplyToListedClaims(t *testing.T) {
	claims := []Claim{
		{ID: 1, Date: date(t, "2024-05-01")},
		{ID: 2, Date: date(t, "2024-05-01")},
	}
	// Same date as both claims, but precisely linked to claim 1 only.
	evidence := []Evidence{{ID: 10, Date: date(t, "2024-05-01"), ClaimIDs: []uint{1}}}

	r := Compute(claims, evidence)
	assert.Equal(t, 1, r.ProvenCount)
	assert.Equal(t, 50, r.Percent)
}

func TestComputeCoarseLinkAppliesToAllClaims(t *testing.T) {
	claims := []Claim{
		{ID: 1, Date: date(t, "2024-05-01")},
		{ID: 2, Date: date(t, "2024-05-01")},
	}
	evidence := []Evidence{{ID: 10, Date: date(t, "2024-05-01")}}

	r := Compute(claims, evidence)
	assert.Equal(t, 2, r.ProvenCount)
	assert.Equal(t, 100, r.Percent)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
