package db

import (
	"gorm.io/gorm"
)

func getDonor(tx *gorm.DB, userID, donorID uint) (*Donor, error) {
	var d Donor
	if err := tx.Where("id = ? AND user_id = ?", donorID, userID).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDonor loads a donor owned by the given tenant.
func GetDonor(db *gorm.DB, userID, donorID uint) (*Donor, error) {
	return getDonor(db, userID, donorID)
}

// ListDonorsForInitiative returns a tenant's donors for one initiative.
func ListDonorsForInitiative(db *gorm.DB, userID, initiativeID uint) ([]Donor, error) {
	var donors []Donor
	if err := db.Where("user_id = ? AND initiative_id = ?", userID, initiativeID).
		Order("id").Find(&donors).Error; err != nil {
		return nil, err
	}
	return donors, nil
}

// DeleteDonor removes a donor and all of their credits. Credit removal
// only ever decreases scope totals, so no validation runs.
func DeleteDonor(db *gorm.DB, userID, donorID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", donorID, userID).Delete(&Donor{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("user_id = ? AND donor_id = ?", userID, donorID).Delete(&DonorCredit{}).Error
	})
}
