package api

import (
	"errors"

	"github.com/valyala/fasthttp"

	"dmfeed/pkg/blob"
	"dmfeed/pkg/feed"
	"dmfeed/pkg/logger"
	"dmfeed/pkg/router"
	"dmfeed/pkg/store"
	"dmfeed/pkg/store/keys"
)

// statusFor maps typed errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return fasthttp.StatusNotFound
	case errors.Is(err, feed.ErrEmptyMessage),
		errors.Is(err, keys.ErrEmptyID),
		errors.Is(err, blob.ErrEmpty),
		errors.Is(err, blob.ErrInvalidRef):
		return fasthttp.StatusBadRequest
	case errors.Is(err, feed.ErrNotSender):
		return fasthttp.StatusForbidden
	case errors.Is(err, feed.ErrMessageDeleted), errors.Is(err, feed.ErrEditWindowClosed):
		return fasthttp.StatusConflict
	case errors.Is(err, blob.ErrTooLarge):
		return fasthttp.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrClosed):
		return fasthttp.StatusServiceUnavailable
	default:
		return fasthttp.StatusInternalServerError
	}
}

// writeError writes err as JSON. Internal errors are logged and hidden.
func writeError(ctx *fasthttp.RequestCtx, op string, err error) {
	status := statusFor(err)
	if status == fasthttp.StatusInternalServerError {
		logger.Error("request_failed", "op", op, "path", string(ctx.Path()), "error", err)
		router.WriteJSONError(ctx, status, "internal error")
		return
	}
	router.WriteJSONError(ctx, status, err.Error())
}

func badRequest(ctx *fasthttp.RequestCtx, msg string) {
	router.WriteJSONError(ctx, fasthttp.StatusBadRequest, msg)
}
