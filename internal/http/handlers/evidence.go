package handlers

import (
	"github.com/valyala/fasthttp"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	dbpkg "impactledger/internal/db"
)

type createEvidenceRequest struct {
	Type            string         `json:"type" validate:"required,max=64"`
	KpiID           *uint          `json:"kpi_id"`
	KpiUpdateIDs    []uint         `json:"kpi_update_ids"`
	DateRepresented string         `json:"date_represented"`
	DateRangeStart  string         `json:"date_range_start"`
	DateRangeEnd    string         `json:"date_range_end"`
	Attributes      map[string]any `json:"attributes"`
}

// CreateEvidence handles POST /evidence. Evidence links either
// coarsely to a whole KPI (kpi_id, the legacy mode) or precisely to
// specific updates (kpi_update_ids); at least one link is required, or
// the record could never prove anything. The precise links may span
// several KPIs on one record; coverage counts the coarse link only
// toward the KPI it names and the precise links only toward their own
// updates.
func CreateEvidence(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		var req createEvidenceRequest
		if !decodeAndValidate(ctx, &req) {
			return
		}
		if req.KpiID == nil && len(req.KpiUpdateIDs) == 0 {
			errResponse(ctx, fasthttp.StatusBadRequest, "kpi_id or kpi_update_ids required")
			return
		}

		rep, ok := parseDate(req.DateRepresented)
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid date_represented (want YYYY-MM-DD)")
			return
		}
		start, ok := parseDate(req.DateRangeStart)
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid date_range_start (want YYYY-MM-DD)")
			return
		}
		end, ok := parseDate(req.DateRangeEnd)
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid date_range_end (want YYYY-MM-DD)")
			return
		}
		if (start == nil) != (end == nil) {
			errResponse(ctx, fasthttp.StatusBadRequest, "date_range_start and date_range_end must be set together")
			return
		}
		if start != nil && end.Before(*start) {
			errResponse(ctx, fasthttp.StatusBadRequest, "date_range_end before date_range_start")
			return
		}

		if req.KpiID != nil {
			if _, err := dbpkg.GetKpi(db, user.ID, *req.KpiID); err != nil {
				if err == gorm.ErrRecordNotFound {
					errResponse(ctx, fasthttp.StatusBadRequest, "unknown kpi")
					return
				}
				storeErrResponse(ctx, err, "")
				return
			}
		}
		for _, updateID := range req.KpiUpdateIDs {
			if _, err := dbpkg.GetUpdate(db, user.ID, updateID); err != nil {
				if err == gorm.ErrRecordNotFound {
					errResponse(ctx, fasthttp.StatusBadRequest, "unknown kpi update")
					return
				}
				storeErrResponse(ctx, err, "")
				return
			}
		}

		attrs := datatypes.JSONMap{}
		for k, v := range req.Attributes {
			attrs[k] = v
		}

		row := &dbpkg.Evidence{
			UserID:          user.ID,
			KpiID:           req.KpiID,
			Type:            req.Type,
			DateRepresented: rep,
			DateRangeStart:  start,
			DateRangeEnd:    end,
			Attributes:      attrs,
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(row).Error; err != nil {
				return err
			}
			for _, updateID := range req.KpiUpdateIDs {
				link := dbpkg.EvidenceLink{EvidenceID: row.ID, KpiUpdateID: updateID}
				if err := tx.Create(&link).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			storeErrResponse(ctx, err, "")
			return
		}

		ctx.SetStatusCode(fasthttp.StatusCreated)
		jsonResponse(ctx, row)
	}
}

// DeleteEvidence handles DELETE /evidence/{id}. Removing evidence only
// lowers coverage; credits are untouched.
func DeleteEvidence(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		id, ok := pathID(ctx, "id")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid evidence id")
			return
		}

		if err := dbpkg.DeleteEvidence(db, user.ID, id); err != nil {
			storeErrResponse(ctx, err, "evidence not found")
			return
		}
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}
}
