package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactledger/internal/coverage"
)

func TestEvidenceRecords(t *testing.T) {
	kpiA, kpiB := uint(1), uint(2)

	t.Run("coarse link on the requested KPI matches any claim", func(t *testing.T) {
		rows := []Evidence{{ID: 10, KpiID: &kpiA}}
		recs := evidenceRecords(kpiA, rows)
		require.Len(t, recs, 1)
		assert.Empty(t, recs[0].ClaimIDs)
	})

	t.Run("precise-only link carries its claim ids", func(t *testing.T) {
		rows := []Evidence{{
			ID:    11,
			Links: []EvidenceLink{{EvidenceID: 11, KpiUpdateID: 7}, {EvidenceID: 11, KpiUpdateID: 8}},
		}}
		recs := evidenceRecords(kpiA, rows)
		require.Len(t, recs, 1)
		assert.Equal(t, []uint{7, 8}, recs[0].ClaimIDs)
	})

	t.Run("coarse link on another KPI stays precise here", func(t *testing.T) {
		rows := []Evidence{{
			ID:    12,
			KpiID: &kpiB,
			Links: []EvidenceLink{{EvidenceID: 12, KpiUpdateID: 7}},
		}}
		recs := evidenceRecords(kpiA, rows)
		require.Len(t, recs, 1)
		assert.Equal(t, []uint{7}, recs[0].ClaimIDs)
	})
}

// A record coarsely linked to one KPI and precisely linked into another
// must only prove the linked claim on the second KPI, not all of them.
func TestCrossKpiCoarseEvidenceProvesOnlyLinkedClaims(t *testing.T) {
	kpiA, kpiB := uint(1), uint(2)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	rows := []Evidence{{
		ID:              20,
		KpiID:           &kpiA,
		DateRepresented: &day,
		Links:           []EvidenceLink{{EvidenceID: 20, KpiUpdateID: 7}},
	}}

	claims := []coverage.Claim{
		{ID: 7, Date: &day},
		{ID: 8, Date: &day},
	}
	report := coverage.Compute(claims, evidenceRecords(kpiB, rows))
	assert.Equal(t, 2, report.TotalClaims)
	assert.Equal(t, 1, report.ProvenCount)
	assert.Equal(t, 50, report.Percent)
}
