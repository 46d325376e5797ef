package auth

import (
	"errors"
	"net"
	"strings"

	"github.com/valyala/fasthttp"

	"dmfeed/pkg/logger"
	"dmfeed/pkg/router"
	"dmfeed/pkg/store/keys"
)

// Middleware returns the request gate: request logging, CORS, IP
// whitelist, identity resolution and per-identity rate limiting.
func Middleware(cfg SecConfig) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	limiters := newLimiterPool(cfg.RPS, cfg.Burst)
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			// log request (redacts sensitive headers)
			logger.LogRequestFast(ctx)

			// CORS preflight
			origin := string(ctx.Request.Header.Peek("Origin"))
			if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
				ctx.Response.Header.Set("Access-Control-Allow-Origin", origin)
				ctx.Response.Header.Set("Vary", "Origin")
				ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
				ctx.Response.Header.Set("Access-Control-Max-Age", "600")
				ctx.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type,"+IdentityHeader)
			}
			if string(ctx.Method()) == fasthttp.MethodOptions {
				ctx.SetStatusCode(fasthttp.StatusNoContent)
				return
			}

			// IP whitelist
			if len(cfg.IPWhitelist) > 0 {
				ip := clientIPFast(ctx)
				if !ipWhitelisted(ip, cfg.IPWhitelist) {
					router.WriteJSONError(ctx, fasthttp.StatusForbidden, "forbidden")
					logger.Warn("request_blocked", "reason", "ip_not_whitelisted", "ip", ip, "path", string(ctx.Path()))
					return
				}
			}

			if isPublic(string(ctx.Path()), cfg.Public) {
				next(ctx)
				return
			}

			id, err := resolveIdentity(ctx)
			if err != nil {
				msg := "invalid " + IdentityHeader
				if errors.Is(err, keys.ErrEmptyID) {
					msg = "missing " + IdentityHeader
				}
				router.WriteJSONError(ctx, fasthttp.StatusUnauthorized, msg)
				logger.Warn("request_unidentified", "path", string(ctx.Path()), "remote", ctx.RemoteAddr().String(), "error", err)
				return
			}

			if !limiters.Allow(id) {
				router.WriteJSONError(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded")
				logger.Warn("rate_limited", "identity", id, "path", string(ctx.Path()))
				return
			}

			ctx.SetUserValue(identityKey, id)
			next(ctx)
		}
	}
}

func isPublic(path string, public []string) bool {
	for _, p := range public {
		if path == p || (strings.HasSuffix(p, "/") && strings.HasPrefix(path, p)) {
			return true
		}
	}
	return false
}

func clientIPFast(ctx *fasthttp.RequestCtx) string {
	host := ctx.RemoteAddr().String()
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	return h
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func ipWhitelisted(ip string, list []string) bool {
	for _, w := range list {
		if ip == w {
			return true
		}
	}
	return false
}
