package handlers

import (
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "impactledger/internal/db"
)

type createDonorRequest struct {
	InitiativeID uint   `json:"initiative_id" validate:"required"`
	Name         string `json:"name" validate:"required,max=255"`
	Email        string `json:"email" validate:"omitempty,email,max=255"`
}

// CreateDonor handles POST /donors.
func CreateDonor(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		var req createDonorRequest
		if !decodeAndValidate(ctx, &req) {
			return
		}

		var initiative dbpkg.Initiative
		if err := db.Where("id = ? AND user_id = ?", req.InitiativeID, user.ID).First(&initiative).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				errResponse(ctx, fasthttp.StatusBadRequest, "unknown initiative")
				return
			}
			storeErrResponse(ctx, err, "")
			return
		}

		row := &dbpkg.Donor{
			UserID:       user.ID,
			InitiativeID: req.InitiativeID,
			Name:         req.Name,
			Email:        req.Email,
		}
		if err := db.Create(row).Error; err != nil {
			storeErrResponse(ctx, err, "")
			return
		}
		ctx.SetStatusCode(fasthttp.StatusCreated)
		jsonResponse(ctx, row)
	}
}

// ListDonors handles GET /initiatives/{id}/donors.
func ListDonors(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		initiativeID, ok := pathID(ctx, "id")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid initiative id")
			return
		}
		if err := db.Where("id = ? AND user_id = ?", initiativeID, user.ID).First(&dbpkg.Initiative{}).Error; err != nil {
			storeErrResponse(ctx, err, "initiative not found")
			return
		}

		rows, err := dbpkg.ListDonorsForInitiative(db, user.ID, initiativeID)
		if err != nil {
			storeErrResponse(ctx, err, "")
			return
		}
		jsonResponse(ctx, map[string]any{"donors": rows})
	}
}

// DeleteDonor handles DELETE /donors/{id}, cascading to the donor's
// credits.
func DeleteDonor(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		id, ok := pathID(ctx, "id")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid donor id")
			return
		}

		if err := dbpkg.DeleteDonor(db, user.ID, id); err != nil {
			storeErrResponse(ctx, err, "donor not found")
			return
		}
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}
}
