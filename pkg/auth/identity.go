package auth

import (
	"strings"

	"dmfeed/pkg/store/keys"

	"github.com/valyala/fasthttp"
)

// IdentityHeader carries the caller's opaque user id. It is trusted as is;
// verifying it is the job of whatever sits in front of the server.
const IdentityHeader = "X-User-ID"

const identityKey = "identity"

// SecConfig holds request filtering settings.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
	// Public paths skip identity and rate limiting (probes, metrics).
	Public []string
}

// Identity returns the identity resolved by the middleware, or "".
func Identity(ctx *fasthttp.RequestCtx) string {
	v, _ := ctx.UserValue(identityKey).(string)
	return v
}

// resolveIdentity reads and validates the identity header.
func resolveIdentity(ctx *fasthttp.RequestCtx) (string, error) {
	id := strings.TrimSpace(string(ctx.Request.Header.Peek(IdentityHeader)))
	if err := keys.ValidateUserID(id); err != nil {
		return "", err
	}
	return id, nil
}
