package db

import (
	"gorm.io/gorm"
)

// ListEvidenceForKpi returns all evidence applicable to a tenant's KPI:
// rows coarsely linked via kpi_id plus rows precisely linked to any of
// the KPI's updates. Link rows are preloaded so coverage can tell the
// two modes apart.
func ListEvidenceForKpi(db *gorm.DB, userID, kpiID uint) ([]Evidence, error) {
	var evidence []Evidence
	err := db.Preload("Links").
		Where("user_id = ?", userID).
		Where(
			"kpi_id = ? OR id IN (?)",
			kpiID,
			db.Model(&EvidenceLink{}).
				Select("evidence_id").
				Where("kpi_update_id IN (?)",
					db.Model(&KpiUpdate{}).Select("id").Where("user_id = ? AND kpi_id = ?", userID, kpiID),
				),
		).
		Order("id").
		Find(&evidence).Error
	if err != nil {
		return nil, err
	}
	return evidence, nil
}

// ListEvidenceForUpdate returns evidence precisely linked to one update.
func ListEvidenceForUpdate(db *gorm.DB, userID, updateID uint) ([]Evidence, error) {
	var evidence []Evidence
	err := db.Preload("Links").
		Where("user_id = ?", userID).
		Where("id IN (?)", db.Model(&EvidenceLink{}).Select("evidence_id").Where("kpi_update_id = ?", updateID)).
		Order("id").
		Find(&evidence).Error
	if err != nil {
		return nil, err
	}
	return evidence, nil
}

// GetEvidence loads a single evidence row owned by the given tenant.
func GetEvidence(db *gorm.DB, userID, evidenceID uint) (*Evidence, error) {
	var e Evidence
	if err := db.Preload("Links").Where("id = ? AND user_id = ?", evidenceID, userID).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// DeleteEvidence removes an evidence row and its precise links.
func DeleteEvidence(db *gorm.DB, userID, evidenceID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", evidenceID, userID).Delete(&Evidence{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("evidence_id = ?", evidenceID).Delete(&EvidenceLink{}).Error
	})
}
