package middleware

import (
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	httpctx "impactledger/internal/http/ctx"
)

// RequestID assigns every request a UUID (or propagates the caller's
// X-Request-Id) and echoes it on the response for log correlation.
func RequestID(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id := string(ctx.Request.Header.Peek("X-Request-Id"))
		if id == "" {
			id = uuid.NewString()
		}
		httpctx.SetRequestID(ctx, id)
		ctx.Response.Header.Set("X-Request-Id", id)
		next(ctx)
	}
}
