package db

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"impactledger/internal/allocation"
	"impactledger/internal/config"
	"impactledger/internal/logger"
)

// ReconcileScope re-checks one credit scope after its ceiling may have
// moved (a claim edited, shrunk or deleted) and stamps FlaggedAt on
// the scope's credits when the total exceeds the ceiling, clearing it
// when the scope is back under. This is the post-condition for
// upstream claim writes: a ceiling change never leaves the ledger in a
// silently-violated state.
func ReconcileScope(db *gorm.DB, userID uint, scope allocation.Scope) error {
	ceiling, err := resolveCeiling(CeilingForScope(db, userID, scope))
	if err != nil {
		return err
	}

	total, err := TotalForScope(db, userID, scope, 0)
	if err != nil {
		return err
	}

	if shouldFlag(ceiling, total) {
		now := time.Now()
		return scopeQuery(db, userID, scope).
			Where("flagged_at IS NULL").
			Update("flagged_at", now).Error
	}
	return scopeQuery(db, userID, scope).
		Where("flagged_at IS NOT NULL").
		Update("flagged_at", nil).Error
}

// resolveCeiling folds a missing scope referent into a zero ceiling:
// when the referenced update is gone, nothing is creditable there.
func resolveCeiling(ceiling float64, err error) (float64, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return ceiling, err
}

// shouldFlag is the reconcile decision: a scope's credits carry the
// review flag exactly while their total exceeds the ceiling. Totals
// at or under the ceiling clear any earlier flag.
func shouldFlag(ceiling, total float64) bool {
	return total > ceiling
}

// ReconcileKpi reconciles the metric-level scope and every claim-level
// scope that holds credits under one KPI.
func ReconcileKpi(db *gorm.DB, userID, kpiID uint) error {
	if err := ReconcileScope(db, userID, allocation.Scope{KpiID: kpiID}); err != nil {
		return err
	}

	var updateIDs []uint
	if err := db.Model(&DonorCredit{}).
		Where("user_id = ? AND kpi_id = ? AND kpi_update_id IS NOT NULL", userID, kpiID).
		Distinct("kpi_update_id").
		Pluck("kpi_update_id", &updateIDs).Error; err != nil {
		return err
	}
	for _, id := range updateIDs {
		updateID := id
		if err := ReconcileScope(db, userID, allocation.Scope{KpiID: kpiID, KpiUpdateID: &updateID}); err != nil {
			return err
		}
	}
	return nil
}

// runReconcileOnce sweeps every scope that currently holds credits.
func runReconcileOnce(db *gorm.DB) error {
	type scopeRow struct {
		UserID uint
		KpiID  uint
	}
	var rows []scopeRow
	if err := db.Model(&DonorCredit{}).
		Distinct("user_id", "kpi_id").
		Find(&rows).Error; err != nil {
		return err
	}
	for _, r := range rows {
		if err := ReconcileKpi(db, r.UserID, r.KpiID); err != nil {
			return err
		}
	}
	return nil
}

// StartReconciliationWorker launches a background goroutine that runs
// the ceiling sweep once at startup and then on the configured
// interval. Write paths reconcile affected scopes inline; the sweep
// catches anything that slipped past (crashed requests, manual DB
// edits).
func StartReconciliationWorker(db *gorm.DB, cfg *config.Config) {
	go func() {
		if err := runReconcileOnce(db); err != nil {
			logger.Error("reconciliation sweep failed (startup)", zap.Error(err))
		}

		ticker := time.NewTicker(time.Duration(cfg.ReconcileIntervalHours) * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			if err := runReconcileOnce(db); err != nil {
				logger.Error("reconciliation sweep failed", zap.Error(err))
			}
		}
	}()
}
