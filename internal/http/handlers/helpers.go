package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	dbpkg "impactledger/internal/db"
	httpctx "impactledger/internal/http/ctx"
	"impactledger/internal/logger"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// MustUser returns the current user from context, or sends 401 and returns (nil, false).
func MustUser(ctx *fasthttp.RequestCtx) (*dbpkg.User, bool) {
	u, ok := httpctx.UserFromCtx(ctx)
	if !ok {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.SetBodyString("unauthorized")
		return nil, false
	}
	user, ok := u.(*dbpkg.User)
	if !ok || user == nil {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.SetBodyString("unauthorized")
		return nil, false
	}
	return user, true
}

// RequestLogger returns fasthttp middleware that logs method, path, status, duration.
func RequestLogger(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		reqID, _ := httpctx.RequestIDFromCtx(ctx)
		logger.Info("request",
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()),
			zap.Int("status", ctx.Response.StatusCode()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", reqID),
		)
	}
}

func jsonResponse(ctx *fasthttp.RequestCtx, data any) {
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(data)
	ctx.SetBody(body)
}

func errResponse(ctx *fasthttp.RequestCtx, code int, msg string) {
	ctx.SetStatusCode(code)
	ctx.SetBodyString(msg)
}

// storeErrResponse maps a read-path store error: missing or
// cross-tenant rows answer 404, everything else is a 500 with the
// detail kept server-side.
func storeErrResponse(ctx *fasthttp.RequestCtx, err error, notFoundMsg string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		errResponse(ctx, fasthttp.StatusNotFound, notFoundMsg)
		return
	}
	reqID, _ := httpctx.RequestIDFromCtx(ctx)
	logger.Error("store error", zap.Error(err), zap.String("request_id", reqID))
	errResponse(ctx, fasthttp.StatusInternalServerError, "database error")
}

// pathID reads a numeric path parameter set by the router.
func pathID(ctx *fasthttp.RequestCtx, name string) (uint, bool) {
	s, _ := ctx.UserValue(name).(string)
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// queryID reads a numeric query parameter; 0 means absent.
func queryID(ctx *fasthttp.RequestCtx, name string) (uint, bool) {
	s := string(ctx.QueryArgs().Peek(name))
	if s == "" {
		return 0, true
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(n), true
}

// parseDate parses a "YYYY-MM-DD" value; empty input is (nil, true).
func parseDate(s string) (*time.Time, bool) {
	if s == "" {
		return nil, true
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return nil, false
	}
	return &t, true
}

// decodeAndValidate unmarshals the request body into dst and runs
// struct validation. On failure it writes the 400 and returns false.
func decodeAndValidate(ctx *fasthttp.RequestCtx, dst any) bool {
	if err := json.Unmarshal(ctx.PostBody(), dst); err != nil {
		errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		errResponse(ctx, fasthttp.StatusBadRequest, "invalid request: "+err.Error())
		return false
	}
	return true
}
