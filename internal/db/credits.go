package db

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"impactledger/internal/allocation"
)

// ErrScopeOccupied reports a scope-changing edit whose target scope
// already holds another credit row for the same donor. The donor's
// one-row-per-scope shape is kept by updating that row instead.
var ErrScopeOccupied = errors.New("donor already holds a credit in that scope")

// Availability describes how much of a scope's ceiling remains
// creditable. Available may be negative when the scope is already
// over-allocated (e.g. after a claim shrank).
type Availability struct {
	Ceiling         float64 `json:"ceiling"`
	AlreadyCredited float64 `json:"already_credited"`
	Available       float64 `json:"available"`
}

// scopeQuery narrows a DonorCredit query to one tenant-scoped credit
// pool. Metric-level pools match kpi_update_id IS NULL; claim-level
// pools match the exact update id.
func scopeQuery(tx *gorm.DB, userID uint, scope allocation.Scope) *gorm.DB {
	q := tx.Model(&DonorCredit{}).Where("user_id = ? AND kpi_id = ?", userID, scope.KpiID)
	if scope.KpiUpdateID != nil {
		return q.Where("kpi_update_id = ?", *scope.KpiUpdateID)
	}
	return q.Where("kpi_update_id IS NULL")
}

// TotalForScope is the single aggregate both the availability endpoint
// and the write-path validator use, so the two can never disagree.
// excludeCreditID (0 = none) drops the row under edit from the sum.
func TotalForScope(tx *gorm.DB, userID uint, scope allocation.Scope, excludeCreditID uint) (float64, error) {
	q := scopeQuery(tx, userID, scope)
	if excludeCreditID != 0 {
		q = q.Where("id != ?", excludeCreditID)
	}
	var total float64
	err := q.Select("COALESCE(SUM(credited_value), 0)").Scan(&total).Error
	return total, err
}

// CeilingForScope returns the maximum creditable value for a scope:
// the referenced update's value for claim-level scopes, the KPI's live
// measured total for metric-level scopes. A claim-level scope whose
// update does not exist under this tenant and KPI yields
// gorm.ErrRecordNotFound.
func CeilingForScope(tx *gorm.DB, userID uint, scope allocation.Scope) (float64, error) {
	if scope.KpiUpdateID != nil {
		var u KpiUpdate
		err := tx.Where("id = ? AND user_id = ? AND kpi_id = ?", *scope.KpiUpdateID, userID, scope.KpiID).
			First(&u).Error
		if err != nil {
			return 0, err
		}
		return u.Value, nil
	}
	return MeasuredTotal(tx, userID, scope.KpiID)
}

// lockKpi takes the KPI row FOR UPDATE. Every credit write against any
// of the KPI's scopes locks this row first, so concurrent writers of
// the same scope serialize and cannot both pass validation on a stale
// total.
func lockKpi(tx *gorm.DB, userID, kpiID uint) (*Kpi, error) {
	var k Kpi
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", kpiID, userID).
		First(&k).Error
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// AvailabilityForScope answers "how much can still be credited here"
// for display, excluding the credit under edit when one is being
// edited. The write path recomputes the same quantities inside its
// transaction; this read-only variant exists for the UI round-trip.
func AvailabilityForScope(db *gorm.DB, userID uint, scope allocation.Scope, excludeCreditID uint) (*Availability, error) {
	ceiling, err := CeilingForScope(db, userID, scope)
	if err != nil {
		return nil, err
	}
	total, err := TotalForScope(db, userID, scope, excludeCreditID)
	if err != nil {
		return nil, err
	}
	return &Availability{
		Ceiling:         ceiling,
		AlreadyCredited: total,
		Available:       allocation.Available(ceiling, total),
	}, nil
}

// findExistingCredit returns the donor's credit row in the given scope,
// or nil when the donor has none there yet.
func findExistingCredit(tx *gorm.DB, userID, donorID uint, scope allocation.Scope) (*DonorCredit, error) {
	var rows []DonorCredit
	if err := scopeQuery(tx, userID, scope).Where("donor_id = ?", donorID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// scopeMoveBlocked reports whether moving a credit into a scope would
// leave the donor with two rows there. The occupant being the credit
// itself is fine (a no-op move or a pure value edit).
func scopeMoveBlocked(creditID uint, occupant *DonorCredit) bool {
	return occupant != nil && occupant.ID != creditID
}

// CreateCredit attributes credited value to a donor within a scope.
// The read-validate-write sequence runs in one transaction with the
// KPI row locked, so the ceiling invariant holds under concurrent
// writers. A donor holds at most one credit row per scope: creating
// where a row already exists updates that row's value instead of
// adding a second.
func CreateCredit(db *gorm.DB, userID, donorID uint, scope allocation.Scope, value float64) (*DonorCredit, error) {
	var out *DonorCredit
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := lockKpi(tx, userID, scope.KpiID); err != nil {
			return err
		}
		if _, err := getDonor(tx, userID, donorID); err != nil {
			return err
		}

		existing, err := findExistingCredit(tx, userID, donorID, scope)
		if err != nil {
			return err
		}
		excludeID := uint(0)
		if existing != nil {
			excludeID = existing.ID
		}

		ceiling, err := CeilingForScope(tx, userID, scope)
		if err != nil {
			return err
		}
		already, err := TotalForScope(tx, userID, scope, excludeID)
		if err != nil {
			return err
		}
		if err := allocation.Check(ceiling, already, value); err != nil {
			return err
		}

		if existing != nil {
			existing.CreditedValue = value
			existing.FlaggedAt = nil
			if err := tx.Save(existing).Error; err != nil {
				return err
			}
			out = existing
			return nil
		}

		row := &DonorCredit{
			UserID:        userID,
			DonorID:       donorID,
			KpiID:         scope.KpiID,
			KpiUpdateID:   scope.KpiUpdateID,
			CreditedValue: value,
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateCredit changes an existing credit's value and, when
// changeScope is set, moves it to a different update scope within the
// same KPI. Validation excludes the row's own prior value, so a donor
// can always raise their credit as long as the increase fits the
// remaining capacity. A move into a scope where the donor already
// holds a different row returns ErrScopeOccupied.
func UpdateCredit(db *gorm.DB, userID, creditID uint, value float64, kpiUpdateID *uint, changeScope bool) (*DonorCredit, error) {
	var out *DonorCredit
	err := db.Transaction(func(tx *gorm.DB) error {
		var credit DonorCredit
		if err := tx.Where("id = ? AND user_id = ?", creditID, userID).First(&credit).Error; err != nil {
			return err
		}

		if _, err := lockKpi(tx, userID, credit.KpiID); err != nil {
			return err
		}

		if changeScope {
			credit.KpiUpdateID = kpiUpdateID
		}
		scope := allocation.Scope{KpiID: credit.KpiID, KpiUpdateID: credit.KpiUpdateID}

		if changeScope {
			occupant, err := findExistingCredit(tx, userID, credit.DonorID, scope)
			if err != nil {
				return err
			}
			if scopeMoveBlocked(credit.ID, occupant) {
				return ErrScopeOccupied
			}
		}

		ceiling, err := CeilingForScope(tx, userID, scope)
		if err != nil {
			return err
		}
		already, err := TotalForScope(tx, userID, scope, credit.ID)
		if err != nil {
			return err
		}
		if err := allocation.Check(ceiling, already, value); err != nil {
			return err
		}

		credit.CreditedValue = value
		credit.FlaggedAt = nil
		if err := tx.Save(&credit).Error; err != nil {
			return err
		}
		out = &credit
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteCredit removes a credit. Removing a credit can only decrease
// scope totals, so no validation runs.
func DeleteCredit(db *gorm.DB, userID, creditID uint) error {
	res := db.Where("id = ? AND user_id = ?", creditID, userID).Delete(&DonorCredit{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreditSummary is a credit row joined with donor, KPI and update
// context for list endpoints.
type CreditSummary struct {
	ID            uint       `json:"id"`
	DonorID       uint       `json:"donor_id"`
	DonorName     string     `json:"donor_name"`
	KpiID         uint       `json:"kpi_id"`
	KpiTitle      string     `json:"kpi_title"`
	KpiUnit       string     `json:"kpi_unit"`
	KpiUpdateID   *uint      `json:"kpi_update_id"`
	UpdateValue   *float64   `json:"kpi_update_value,omitempty"`
	CreditedValue float64    `json:"credited_value"`
	FlaggedAt     *time.Time `json:"flagged_at,omitempty"`
}

const creditSummarySQL = `
SELECT dc.id, dc.donor_id, d.name AS donor_name,
       dc.kpi_id, k.title AS kpi_title, k.unit AS kpi_unit,
       dc.kpi_update_id, ku.value AS update_value,
       dc.credited_value, dc.flagged_at
FROM donor_credits dc
JOIN donors d ON d.id = dc.donor_id
JOIN kpis k ON k.id = dc.kpi_id
LEFT JOIN kpi_updates ku ON ku.id = dc.kpi_update_id
WHERE dc.user_id = ?`

// ListCreditsForDonor returns all of a tenant's credits for one donor,
// joined with donor/KPI/update summaries. Unknown or cross-tenant
// donors yield gorm.ErrRecordNotFound.
func ListCreditsForDonor(db *gorm.DB, userID, donorID uint) ([]CreditSummary, error) {
	if _, err := getDonor(db, userID, donorID); err != nil {
		return nil, err
	}
	rows := make([]CreditSummary, 0)
	err := db.Raw(creditSummarySQL+` AND dc.donor_id = ? ORDER BY dc.id`, userID, donorID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListCreditsForKpi returns all credits recorded against one KPI,
// metric-level and claim-level alike.
func ListCreditsForKpi(db *gorm.DB, userID, kpiID uint) ([]CreditSummary, error) {
	if _, err := GetKpi(db, userID, kpiID); err != nil {
		return nil, err
	}
	rows := make([]CreditSummary, 0)
	err := db.Raw(creditSummarySQL+` AND dc.kpi_id = ? ORDER BY dc.id`, userID, kpiID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
