package db

import (
	"gorm.io/gorm"
)

// GetKpi loads a KPI owned by the given tenant. Cross-tenant rows come
// back as gorm.ErrRecordNotFound, never as a permission error.
func GetKpi(db *gorm.DB, userID, kpiID uint) (*Kpi, error) {
	var k Kpi
	if err := db.Where("id = ? AND user_id = ?", kpiID, userID).First(&k).Error; err != nil {
		return nil, err
	}
	return &k, nil
}

// ListUpdatesForKpi returns every update (claim) recorded against a
// tenant's KPI.
func ListUpdatesForKpi(db *gorm.DB, userID, kpiID uint) ([]KpiUpdate, error) {
	var updates []KpiUpdate
	if err := db.Where("user_id = ? AND kpi_id = ?", userID, kpiID).
		Order("id").Find(&updates).Error; err != nil {
		return nil, err
	}
	return updates, nil
}

// GetUpdate loads a single update owned by the given tenant.
func GetUpdate(db *gorm.DB, userID, updateID uint) (*KpiUpdate, error) {
	var u KpiUpdate
	if err := db.Where("id = ? AND user_id = ?", updateID, userID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// MeasuredTotal returns the live sum of a KPI's update values — the
// metric-level credit ceiling. Always recomputed from the updates
// table; claims can be added or edited after a credit exists, so this
// is never cached.
func MeasuredTotal(db *gorm.DB, userID, kpiID uint) (float64, error) {
	var total float64
	err := db.Model(&KpiUpdate{}).
		Where("user_id = ? AND kpi_id = ?", userID, kpiID).
		Select("COALESCE(SUM(value), 0)").
		Scan(&total).Error
	return total, err
}
