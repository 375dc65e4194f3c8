package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "impactledger/internal/db"
)

func TestWriteCreditErrScopeOccupied(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	writeCreditErr(ctx, dbpkg.ErrScopeOccupied, "1")
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "already holds a credit")
}

func TestWriteCreditErrUnknownReferent(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	writeCreditErr(ctx, gorm.ErrRecordNotFound, "1")
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "unknown kpi")
}
