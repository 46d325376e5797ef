package router

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(ctx *fasthttp.RequestCtx, status int, v interface{}) {
	ctx.SetContentType("application/json")
	if status != 0 {
		ctx.SetStatusCode(status)
	}
	_ = json.NewEncoder(ctx).Encode(v)
}

// WriteJSONError writes a JSON error response.
func WriteJSONError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	_ = json.NewEncoder(ctx).Encode(map[string]string{"error": message})
}
