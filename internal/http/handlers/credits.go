package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"impactledger/internal/allocation"
	dbpkg "impactledger/internal/db"
)

type creditRow struct {
	ID            uint       `json:"id"`
	DonorID       uint       `json:"donor_id"`
	KpiID         uint       `json:"kpi_id"`
	KpiUpdateID   *uint      `json:"kpi_update_id"`
	CreditedValue float64    `json:"credited_value"`
	FlaggedAt     *time.Time `json:"flagged_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toCreditRow(c *dbpkg.DonorCredit) creditRow {
	return creditRow{
		ID:            c.ID,
		DonorID:       c.DonorID,
		KpiID:         c.KpiID,
		KpiUpdateID:   c.KpiUpdateID,
		CreditedValue: c.CreditedValue,
		FlaggedAt:     c.FlaggedAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// writeCreditErr maps write-path ledger errors. Allocation failures
// carry the exact remainder so the client can self-correct without a
// second round-trip; bad scope references fold into 400 rather than
// 404 so writes never probe another tenant's rows.
func writeCreditErr(ctx *fasthttp.RequestCtx, err error, tenant string) {
	var exceeded *allocation.ExceededError
	if errors.As(err, &exceeded) {
		allocationRejectionsTotal.WithLabelValues(tenant).Inc()
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		jsonResponse(ctx, map[string]any{
			"error":     exceeded.Error(),
			"available": exceeded.Available,
		})
		return
	}
	if errors.Is(err, dbpkg.ErrScopeOccupied) {
		errResponse(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		errResponse(ctx, fasthttp.StatusBadRequest, "unknown kpi, kpi update or donor")
		return
	}
	storeErrResponse(ctx, err, "")
}

type createCreditRequest struct {
	DonorID       uint    `json:"donor_id" validate:"required"`
	KpiID         uint    `json:"kpi_id" validate:"required"`
	KpiUpdateID   *uint   `json:"kpi_update_id"`
	CreditedValue float64 `json:"credited_value" validate:"gte=0"`
}

// CreateCredit handles POST /donor-credits.
func CreateCredit(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}

		var req createCreditRequest
		if !decodeAndValidate(ctx, &req) {
			return
		}

		tenant := strconv.Itoa(int(user.ID))
		scope := allocation.Scope{KpiID: req.KpiID, KpiUpdateID: req.KpiUpdateID}
		credit, err := dbpkg.CreateCredit(db, user.ID, req.DonorID, scope, req.CreditedValue)
		if err != nil {
			creditWritesTotal.WithLabelValues(tenant, "create", "rejected").Inc()
			writeCreditErr(ctx, err, tenant)
			return
		}

		creditWritesTotal.WithLabelValues(tenant, "create", "accepted").Inc()
		ctx.SetStatusCode(fasthttp.StatusCreated)
		jsonResponse(ctx, toCreditRow(credit))
	}
}

type updateCreditRequest struct {
	CreditedValue float64 `json:"credited_value" validate:"gte=0"`
	KpiUpdateID   *uint   `json:"kpi_update_id"`
}

// UpdateCredit handles PUT /donor-credits/{id}. The kpi_update_id key
// being present (even as null) moves the credit between claim-level
// and metric-level scopes; absent leaves the scope alone.
func UpdateCredit(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		id, ok := pathID(ctx, "id")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid credit id")
			return
		}

		var req updateCreditRequest
		if !decodeAndValidate(ctx, &req) {
			return
		}
		var raw map[string]json.RawMessage
		_ = json.Unmarshal(ctx.PostBody(), &raw)
		_, changeScope := raw["kpi_update_id"]

		tenant := strconv.Itoa(int(user.ID))
		credit, err := dbpkg.UpdateCredit(db, user.ID, id, req.CreditedValue, req.KpiUpdateID, changeScope)
		if err != nil {
			creditWritesTotal.WithLabelValues(tenant, "update", "rejected").Inc()
			writeCreditErr(ctx, err, tenant)
			return
		}

		creditWritesTotal.WithLabelValues(tenant, "update", "accepted").Inc()
		jsonResponse(ctx, toCreditRow(credit))
	}
}

// DeleteCredit handles DELETE /donor-credits/{id}. Deletion is never
// validated against the ceiling: removing a credit can only decrease
// totals.
func DeleteCredit(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		id, ok := pathID(ctx, "id")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid credit id")
			return
		}

		if err := dbpkg.DeleteCredit(db, user.ID, id); err != nil {
			storeErrResponse(ctx, err, "credit not found")
			return
		}
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}
}

// ListCreditsForDonor handles GET /donor-credits/donor/{donorId}.
func ListCreditsForDonor(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		donorID, ok := pathID(ctx, "donorId")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid donor id")
			return
		}

		rows, err := dbpkg.ListCreditsForDonor(db, user.ID, donorID)
		if err != nil {
			storeErrResponse(ctx, err, "donor not found")
			return
		}
		jsonResponse(ctx, rows)
	}
}

// ListCreditsForKpi handles GET /donor-credits/metric/{kpiId}.
func ListCreditsForKpi(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		kpiID, ok := pathID(ctx, "kpiId")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid kpi id")
			return
		}

		rows, err := dbpkg.ListCreditsForKpi(db, user.ID, kpiID)
		if err != nil {
			storeErrResponse(ctx, err, "kpi not found")
			return
		}
		jsonResponse(ctx, rows)
	}
}

// CreditAvailability handles GET /donor-credits/availability. It
// answers "how much can still be credited" for a scope before the UI
// presents an editor; the write path re-derives the same quantities
// server-side, so this value is advisory only.
func CreditAvailability(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}

		kpiID, ok := queryID(ctx, "kpi_id")
		if !ok || kpiID == 0 {
			errResponse(ctx, fasthttp.StatusBadRequest, "kpi_id required")
			return
		}
		updateID, ok := queryID(ctx, "kpi_update_id")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid kpi_update_id")
			return
		}
		excludeID, ok := queryID(ctx, "exclude_credit_id")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid exclude_credit_id")
			return
		}

		scope := allocation.Scope{KpiID: kpiID}
		if updateID != 0 {
			scope.KpiUpdateID = &updateID
		}

		avail, err := dbpkg.AvailabilityForScope(db, user.ID, scope, excludeID)
		if err != nil {
			storeErrResponse(ctx, err, "kpi or kpi update not found")
			return
		}
		jsonResponse(ctx, avail)
	}
}
