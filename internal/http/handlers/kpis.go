package handlers

import (
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "impactledger/internal/db"
)

type createInitiativeRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
}

// CreateInitiative handles POST /initiatives.
func CreateInitiative(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		var req createInitiativeRequest
		if !decodeAndValidate(ctx, &req) {
			return
		}

		row := &dbpkg.Initiative{UserID: user.ID, Name: req.Name, Description: req.Description}
		if err := db.Create(row).Error; err != nil {
			storeErrResponse(ctx, err, "")
			return
		}
		ctx.SetStatusCode(fasthttp.StatusCreated)
		jsonResponse(ctx, row)
	}
}

// ListInitiatives handles GET /initiatives.
func ListInitiatives(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		var rows []dbpkg.Initiative
		if err := db.Where("user_id = ?", user.ID).Order("id").Find(&rows).Error; err != nil {
			storeErrResponse(ctx, err, "")
			return
		}
		jsonResponse(ctx, map[string]any{"initiatives": rows})
	}
}

type createKpiRequest struct {
	InitiativeID uint   `json:"initiative_id" validate:"required"`
	Title        string `json:"title" validate:"required,max=255"`
	Unit         string `json:"unit" validate:"max=64"`
	Category     string `json:"category" validate:"omitempty,oneof=input output impact"`
}

// CreateKpi handles POST /kpis.
func CreateKpi(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		var req createKpiRequest
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

		category := req.Category
		if category == "" {
			category = "output"
		}
		row := &dbpkg.Kpi{
			UserID:       user.ID,
			InitiativeID: req.InitiativeID,
			Title:        req.Title,
			Unit:         req.Unit,
			Category:     category,
		}
		if err := db.Create(row).Error; err != nil {
			storeErrResponse(ctx, err, "")
			return
		}
		ctx.SetStatusCode(fasthttp.StatusCreated)
		jsonResponse(ctx, row)
	}
}

// GetKpi handles GET /kpis/{id}: the KPI row plus its live measured
// total.
func GetKpi(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		kpiID, ok := pathID(ctx, "id")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid kpi id")
			return
		}

		kpi, err := dbpkg.GetKpi(db, user.ID, kpiID)
		if err != nil {
			storeErrResponse(ctx, err, "kpi not found")
			return
		}
		total, err := dbpkg.MeasuredTotal(db, user.ID, kpiID)
		if err != nil {
			storeErrResponse(ctx, err, "")
			return
		}
		jsonResponse(ctx, map[string]any{"kpi": kpi, "measured_total": total})
	}
}

type updatePayload struct {
	Value           float64 `json:"value" validate:"gte=0"`
	DateRepresented string  `json:"date_represented"`
	DateRangeStart  string  `json:"date_range_start"`
	DateRangeEnd    string  `json:"date_range_end"`
}

// parseUpdateDates validates the claim dating rules: a point-in-time
// record (date_represented only) or an interval record (both range
// bounds). On failure it writes the 400 and returns false.
func parseUpdateDates(ctx *fasthttp.RequestCtx, req *updatePayload) (rep, start, end *time.Time, ok bool) {
	rep, ok = parseDate(req.DateRepresented)
	if !ok {
		errResponse(ctx, fasthttp.StatusBadRequest, "invalid date_represented (want YYYY-MM-DD)")
		return nil, nil, nil, false
	}
	start, ok = parseDate(req.DateRangeStart)
	if !ok {
		errResponse(ctx, fasthttp.StatusBadRequest, "invalid date_range_start (want YYYY-MM-DD)")
		return nil, nil, nil, false
	}
	end, ok = parseDate(req.DateRangeEnd)
	if !ok {
		errResponse(ctx, fasthttp.StatusBadRequest, "invalid date_range_end (want YYYY-MM-DD)")
		return nil, nil, nil, false
	}

	if (start == nil) != (end == nil) {
		errResponse(ctx, fasthttp.StatusBadRequest, "date_range_start and date_range_end must be set together")
		return nil, nil, nil, false
	}
	if start != nil && end.Before(*start) {
		errResponse(ctx, fasthttp.StatusBadRequest, "date_range_end before date_range_start")
		return nil, nil, nil, false
	}
	if rep == nil && start == nil {
		errResponse(ctx, fasthttp.StatusBadRequest, "date_represented or a date range is required")
		return nil, nil, nil, false
	}
	return rep, start, end, true
}

// CreateKpiUpdate handles POST /kpis/{id}/updates.
func CreateKpiUpdate(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		kpiID, ok := pathID(ctx, "id")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid kpi id")
			return
		}
		var req updatePayload
		if !decodeAndValidate(ctx, &req) {
			return
		}
		rep, start, end, ok := parseUpdateDates(ctx, &req)
		if !ok {
			return
		}

		if _, err := dbpkg.GetKpi(db, user.ID, kpiID); err != nil {
			storeErrResponse(ctx, err, "kpi not found")
			return
		}

		row := &dbpkg.KpiUpdate{
			UserID:          user.ID,
			KpiID:           kpiID,
			Value:           req.Value,
			DateRepresented: rep,
			DateRangeStart:  start,
			DateRangeEnd:    end,
		}
		if err := db.Create(row).Error; err != nil {
			storeErrResponse(ctx, err, "")
			return
		}

		// The metric ceiling grew; clear any flags that no longer apply.
		if err := dbpkg.ReconcileKpi(db, user.ID, kpiID); err != nil {
			storeErrResponse(ctx, err, "")
			return
		}
		ctx.SetStatusCode(fasthttp.StatusCreated)
		jsonResponse(ctx, row)
	}
}

// UpdateKpiUpdate handles PUT /updates/{id}. Shrinking a claim's value
// can leave existing credits over-ceiling, so the affected scopes are
// reconciled before responding.
func UpdateKpiUpdate(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		id, ok := pathID(ctx, "id")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid update id")
			return
		}
		var req updatePayload
		if !decodeAndValidate(ctx, &req) {
			return
		}
		rep, start, end, ok := parseUpdateDates(ctx, &req)
		if !ok {
			return
		}

		row, err := dbpkg.GetUpdate(db, user.ID, id)
		if err != nil {
			storeErrResponse(ctx, err, "kpi update not found")
			return
		}

		row.Value = req.Value
		row.DateRepresented = rep
		row.DateRangeStart = start
		row.DateRangeEnd = end
		if err := db.Save(row).Error; err != nil {
			storeErrResponse(ctx, err, "")
			return
		}

		if err := dbpkg.ReconcileKpi(db, user.ID, row.KpiID); err != nil {
			storeErrResponse(ctx, err, "")
			return
		}
		jsonResponse(ctx, row)
	}
}

// DeleteKpiUpdate handles DELETE /updates/{id}. Credits scoped to the
// deleted claim are not removed; reconciliation flags them for owner
// review since their ceiling is now gone.
func DeleteKpiUpdate(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		id, ok := pathID(ctx, "id")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid update id")
			return
		}

		row, err := dbpkg.GetUpdate(db, user.ID, id)
		if err != nil {
			storeErrResponse(ctx, err, "kpi update not found")
			return
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&dbpkg.KpiUpdate{}, row.ID).Error; err != nil {
				return err
			}
			return tx.Where("kpi_update_id = ?", row.ID).Delete(&dbpkg.EvidenceLink{}).Error
		})
		if err != nil {
			storeErrResponse(ctx, err, "")
			return
		}

		if err := dbpkg.ReconcileKpi(db, user.ID, row.KpiID); err != nil {
			storeErrResponse(ctx, err, "")
			return
		}
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}
}

// KpiCoverage handles GET /kpis/{id}/coverage: the live proof
// percentage derived from the KPI's claims and evidence.
func KpiCoverage(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		kpiID, ok := pathID(ctx, "id")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid kpi id")
			return
		}

		start := time.Now()
		report, err := dbpkg.ComputeCoverage(db, user.ID, kpiID)
		if err != nil {
			storeErrResponse(ctx, err, "kpi not found")
			return
		}
		coverageComputeSeconds.Observe(time.Since(start).Seconds())

		jsonResponse(ctx, map[string]any{
			"total_claims": report.TotalClaims,
			"proven_count": report.ProvenCount,
			"percent":      report.Percent,
		})
	}
}

// KpiCoverageHistory handles GET /kpis/{id}/coverage/history.
func KpiCoverageHistory(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		kpiID, ok := pathID(ctx, "id")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid kpi id")
			return
		}
		if _, err := dbpkg.GetKpi(db, user.ID, kpiID); err != nil {
			storeErrResponse(ctx, err, "kpi not found")
			return
		}

		days := 7
		if d, ok := queryID(ctx, "days"); ok && d > 0 {
			if d > 90 {
				d = 90
			}
			days = int(d)
		}
		cutoff := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

		rows, err := dbpkg.ListCoverageSnapshots(db, user.ID, kpiID, cutoff)
		if err != nil {
			storeErrResponse(ctx, err, "")
			return
		}

		series := make([]map[string]any, 0, len(rows))
		for _, b := range rows {
			series = append(series, map[string]any{
				"bucket":       b.BucketStart.UTC().Format(time.RFC3339),
				"total_claims": b.TotalClaims,
				"proven_count": b.ProvenCount,
				"percent":      b.Percent,
			})
		}
		jsonResponse(ctx, map[string]any{"series": series})
	}
}
