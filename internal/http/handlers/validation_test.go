package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func newRequestCtx(body string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetBody([]byte(body))
	return ctx
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
		want  string
	}{
		{"empty is absent", "", true, ""},
		{"valid date", "2024-05-01", true, "2024-05-01"},
		{"wrong layout", "01-05-2024", false, ""},
		{"garbage", "yesterday", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseDate(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestDecodeAndValidateCreateCredit(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"valid metric-level", `{"donor_id":1,"kpi_id":2,"credited_value":10.5}`, true},
		{"valid claim-level", `{"donor_id":1,"kpi_id":2,"kpi_update_id":3,"credited_value":0}`, true},
		{"missing donor_id", `{"kpi_id":2,"credited_value":10}`, false},
		{"missing kpi_id", `{"donor_id":1,"credited_value":10}`, false},
		{"negative credited_value", `{"donor_id":1,"kpi_id":2,"credited_value":-1}`, false},
		{"not JSON", `donor=1`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newRequestCtx(tt.body)
			var req createCreditRequest
			ok := decodeAndValidate(ctx, &req)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
			}
		})
	}
}

func TestParseUpdateDatesRules(t *testing.T) {
	tests := []struct {
		name string
		req  updatePayload
		ok   bool
	}{
		{"point record", updatePayload{Value: 1, DateRepresented: "2024-05-01"}, true},
		{"interval record", updatePayload{Value: 1, DateRangeStart: "2024-05-01", DateRangeEnd: "2024-05-15"}, true},
		{"interval with anchor", updatePayload{Value: 1, DateRepresented: "2024-05-10", DateRangeStart: "2024-05-01", DateRangeEnd: "2024-05-15"}, true},
		{"no dates at all", updatePayload{Value: 1}, false},
		{"half-open range", updatePayload{Value: 1, DateRangeStart: "2024-05-01"}, false},
		{"inverted range", updatePayload{Value: 1, DateRangeStart: "2024-05-15", DateRangeEnd: "2024-05-01"}, false},
		{"bad date format", updatePayload{Value: 1, DateRepresented: "05/01/2024"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newRequestCtx("")
			_, _, _, ok := parseUpdateDates(ctx, &tt.req)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
			}
		})
	}
}

func TestPathID(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	ctx.SetUserValue("id", "42")
	id, ok := pathID(ctx, "id")
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)

	ctx.SetUserValue("id", "0")
	_, ok = pathID(ctx, "id")
	assert.False(t, ok)

	ctx.SetUserValue("id", "abc")
	_, ok = pathID(ctx, "id")
	assert.False(t, ok)
}

func TestQueryID(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	ctx.QueryArgs().Set("kpi_id", "7")
	id, ok := queryID(ctx, "kpi_id")
	assert.True(t, ok)
	assert.Equal(t, uint(7), id)

	id, ok = queryID(ctx, "missing")
	assert.True(t, ok)
	assert.Equal(t, uint(0), id)

	ctx.QueryArgs().Set("kpi_id", "x")
	_, ok = queryID(ctx, "kpi_id")
	assert.False(t, ok)
}
