package api

import (
	"encoding/json"

	"github.com/valyala/fasthttp"

	"dmfeed/pkg/auth"
	"dmfeed/pkg/router"
)

// PutToken registers the caller's push delivery token.
func (a *API) PutToken(ctx *fasthttp.RequestCtx) {
	var req TokenRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		badRequest(ctx, "invalid token payload")
		return
	}
	t, err := a.store.PutToken(auth.Identity(ctx), req.Token)
	if err != nil {
		writeError(ctx, "put_token", err)
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, TokenResponse{Token: t})
}
