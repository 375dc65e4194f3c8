package db

import (
	"time"

	"gorm.io/datatypes"
)

// Initiative is a program or project an organization tracks impact for.
// KPIs and donors hang off an initiative.
type Initiative struct {
	ID uint `gorm:"primaryKey" json:"id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Owner of this initiative (the tenant).
	UserID uint `gorm:"index;not null" json:"-"`

	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `json:"description"`
}

// Kpi is an organization-scoped metric definition. Its measured total
// is always the live sum of its updates' values, never a stored column.
type Kpi struct {
	ID uint `gorm:"primaryKey" json:"id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID       uint `gorm:"index;not null" json:"-"`
	InitiativeID uint `gorm:"index;not null" json:"initiative_id"`

	Title string `gorm:"size:255;not null" json:"title"`

	// Unit of measurement, e.g. "meals served" or "trees planted".
	Unit string `gorm:"size:64" json:"unit"`

	// Category is one of "input", "output", "impact".
	Category string `gorm:"size:16;not null;default:output" json:"category"`
}

// KpiUpdate is a single dated measurement recorded against a KPI (an
// "impact claim" in user-facing text). It is either a point-in-time
// record (DateRepresented only) or an interval record (both range
// bounds set; DateRepresented may still be set as an anchor).
type KpiUpdate struct {
	ID uint `gorm:"primaryKey" json:"id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint `gorm:"index;not null" json:"-"`
	KpiID  uint `gorm:"index;not null" json:"kpi_id"`

	Value float64 `gorm:"not null" json:"value"`

	DateRepresented *time.Time `json:"date_represented,omitempty"`
	DateRangeStart  *time.Time `json:"date_range_start,omitempty"`
	DateRangeEnd    *time.Time `json:"date_range_end,omitempty"`
}

// Evidence is a proof record (report, photo, receipt) with a date or
// date range. It is linked either precisely to specific KPI updates
// via EvidenceLink rows, or coarsely to a whole KPI via KpiID (the
// legacy mode).
type Evidence struct {
	ID uint `gorm:"primaryKey" json:"id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint `gorm:"index;not null" json:"-"`

	// KpiID is the coarse link. Nil when the evidence is only linked
	// through EvidenceLink rows.
	KpiID *uint `gorm:"index" json:"kpi_id,omitempty"`

	// Type describes the evidence artifact, e.g. "report", "photo".
	Type string `gorm:"size:64;not null" json:"type"`

	DateRepresented *time.Time `json:"date_represented,omitempty"`
	DateRangeStart  *time.Time `json:"date_range_start,omitempty"`
	DateRangeEnd    *time.Time `json:"date_range_end,omitempty"`

	// Attributes holds arbitrary key/value pairs (source URL, uploader,
	// file reference) without schema changes.
	Attributes datatypes.JSONMap `gorm:"type:json" json:"attributes,omitempty"`

	Links []EvidenceLink `gorm:"foreignKey:EvidenceID" json:"links,omitempty"`
}

// EvidenceLink ties one Evidence row to one KpiUpdate (precise linkage).
type EvidenceLink struct {
	ID uint `gorm:"primaryKey" json:"-"`

	EvidenceID  uint `gorm:"uniqueIndex:idx_evidence_link_unique,priority:1;not null" json:"-"`
	KpiUpdateID uint `gorm:"uniqueIndex:idx_evidence_link_unique,priority:2;not null" json:"kpi_update_id"`
}

// Donor is a supporter scoped to one initiative.
type Donor struct {
	ID uint `gorm:"primaryKey" json:"id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID       uint `gorm:"index;not null" json:"-"`
	InitiativeID uint `gorm:"index;not null" json:"initiative_id"`

	Name  string `gorm:"size:255;not null" json:"name"`
	Email string `gorm:"size:255" json:"email"`
}

// DonorCredit attributes a portion of measured impact to a donor.
// When KpiUpdateID is nil the credit is metric-level (counted against
// the KPI's measured total); when set it is claim-level (counted
// against that one update's value). A donor holds at most one
// metric-level row per KPI and at most one claim-level row per update;
// edits update the existing row.
type DonorCredit struct {
	ID uint `gorm:"primaryKey" json:"id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID  uint `gorm:"index;not null" json:"-"`
	DonorID uint `gorm:"index;not null" json:"donor_id"`
	KpiID   uint `gorm:"index;not null" json:"kpi_id"`

	KpiUpdateID *uint `gorm:"index" json:"kpi_update_id"`

	CreditedValue float64 `gorm:"not null" json:"credited_value"`

	// FlaggedAt is set by reconciliation when this credit's scope went
	// over its ceiling after a claim shrank or was deleted. Cleared
	// when the scope is back under. Flagged credits stay readable but
	// need owner review.
	FlaggedAt *time.Time `gorm:"index" json:"flagged_at,omitempty"`
}

// CoverageSnapshot stores a periodic per-KPI coverage computation for
// trend charts, filled by the snapshot worker.
type CoverageSnapshot struct {
	ID uint `gorm:"primaryKey" json:"id"`

	UserID      uint      `gorm:"uniqueIndex:idx_coverage_snapshot_unique,priority:1;not null"`
	KpiID       uint      `gorm:"uniqueIndex:idx_coverage_snapshot_unique,priority:2;not null"`
	BucketStart time.Time `gorm:"uniqueIndex:idx_coverage_snapshot_unique,priority:3;not null"` // start of the bucket (UTC)

	TotalClaims int64 `gorm:"not null"`
	ProvenCount int64 `gorm:"not null"`
	Percent     int   `gorm:"not null"`
}
