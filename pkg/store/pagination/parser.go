package pagination

import (
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
)

func ParsePaginationRequest(ctx *fasthttp.RequestCtx, def int) PaginationRequest {
	req := PaginationRequest{
		Limit:  def,
		Cursor: strings.TrimSpace(string(ctx.QueryArgs().Peek("cursor"))),
	}
	if limStr := string(ctx.QueryArgs().Peek("limit")); limStr != "" {
		if parsed, err := strconv.Atoi(limStr); err == nil {
			req.Limit = ClampLimit(parsed, def)
		}
	}
	return req
}
