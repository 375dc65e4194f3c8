package db

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"impactledger/internal/config"
	"impactledger/internal/coverage"
	"impactledger/internal/logger"
)

// ComputeCoverage reads a KPI's updates and applicable evidence and
// derives the live coverage report. The KPI must exist under the
// tenant or gorm.ErrRecordNotFound comes back.
func ComputeCoverage(db *gorm.DB, userID, kpiID uint) (coverage.Report, error) {
	if _, err := GetKpi(db, userID, kpiID); err != nil {
		return coverage.Report{}, err
	}

	updates, err := ListUpdatesForKpi(db, userID, kpiID)
	if err != nil {
		return coverage.Report{}, err
	}
	evidence, err := ListEvidenceForKpi(db, userID, kpiID)
	if err != nil {
		return coverage.Report{}, err
	}

	claims := make([]coverage.Claim, 0, len(updates))
	for _, u := range updates {
		claims = append(claims, coverage.Claim{ID: u.ID, Date: u.DateRepresented})
	}
	return coverage.Compute(claims, evidenceRecords(kpiID, evidence)), nil
}

// evidenceRecords bridges stored evidence rows into coverage records
// for one KPI. A coarse link matches any of that KPI's claims, but
// only for the KPI it actually names: a row whose coarse link points
// at another KPI reaches this one solely through its precise links
// and applies to those claims alone.
func evidenceRecords(kpiID uint, rows []Evidence) []coverage.Evidence {
	records := make([]coverage.Evidence, 0, len(rows))
	for _, e := range rows {
		rec := coverage.Evidence{
			ID:         e.ID,
			Date:       e.DateRepresented,
			RangeStart: e.DateRangeStart,
			RangeEnd:   e.DateRangeEnd,
		}
		if e.KpiID == nil || *e.KpiID != kpiID {
			for _, l := range e.Links {
				rec.ClaimIDs = append(rec.ClaimIDs, l.KpiUpdateID)
			}
		}
		records = append(records, rec)
	}
	return records
}

// runSnapshotOnce records one CoverageSnapshot row per KPI for the
// given bucket. Call with bucketStart = time in UTC truncated to the
// snapshot interval.
func runSnapshotOnce(db *gorm.DB, bucketStart time.Time) error {
	var kpis []Kpi
	if err := db.Select("id", "user_id").Find(&kpis).Error; err != nil {
		return err
	}

	for _, k := range kpis {
		report, err := ComputeCoverage(db, k.UserID, k.ID)
		if err != nil {
			return err
		}

		row := CoverageSnapshot{
			UserID:      k.UserID,
			KpiID:       k.ID,
			BucketStart: bucketStart,
			TotalClaims: int64(report.TotalClaims),
			ProvenCount: int64(report.ProvenCount),
			Percent:     report.Percent,
		}
		var existing CoverageSnapshot
		err = db.Where("user_id = ? AND kpi_id = ? AND bucket_start = ?", k.UserID, k.ID, bucketStart).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = db.Create(&row).Error
		} else if err == nil {
			err = db.Model(&existing).Updates(map[string]interface{}{
				"total_claims": row.TotalClaims,
				"proven_count": row.ProvenCount,
				"percent":      row.Percent,
			}).Error
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ListCoverageSnapshots returns a KPI's snapshot history since the
// cutoff, oldest first.
func ListCoverageSnapshots(db *gorm.DB, userID, kpiID uint, cutoff time.Time) ([]CoverageSnapshot, error) {
	var rows []CoverageSnapshot
	err := db.Where("user_id = ? AND kpi_id = ? AND bucket_start >= ?", userID, kpiID, cutoff).
		Order("bucket_start").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// StartCoverageSnapshotWorker records coverage snapshots for every KPI
// on the configured interval. Buckets are in UTC.
func StartCoverageSnapshotWorker(db *gorm.DB, cfg *config.Config) {
	interval := time.Duration(cfg.SnapshotIntervalMinutes) * time.Minute

	go func() {
		now := time.Now().UTC()
		if err := runSnapshotOnce(db, now.Truncate(interval)); err != nil {
			logger.Error("coverage snapshot failed (startup)", zap.Error(err))
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for t := range ticker.C {
			if err := runSnapshotOnce(db, t.UTC().Truncate(interval)); err != nil {
				logger.Error("coverage snapshot failed", zap.Error(err))
			}
		}
	}()
}
