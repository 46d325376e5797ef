package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/valyala/fasthttp"

	"dmfeed/pkg/api"
	"dmfeed/pkg/auth"
	"dmfeed/pkg/config/banner"
	"dmfeed/pkg/logger"
)

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	banner.PrintWithEff(a.eff, a.versionString())
}

// secConfig builds the request gate settings from the security section.
func (a *App) secConfig() auth.SecConfig {
	sec := a.eff.Config.Security
	return auth.SecConfig{
		AllowedOrigins: append([]string{}, sec.CORS.AllowedOrigins...),
		RPS:            sec.RateLimit.RPS,
		Burst:          sec.RateLimit.Burst,
		IPWhitelist:    append([]string{}, sec.IPWhitelist...),
		Public:         api.Public,
	}
}

// startHTTP binds the listener and starts the fasthttp server, returning a
// channel that delivers serve errors.
func (a *App) startHTTP(_ context.Context) (<-chan error, error) {
	cfg := a.eff.Config

	const (
		readBufferSize       = 64 * 1024        // 64 KiB read buffer per connection
		bodyMargin           = 64 * 1024        // headroom over the largest upload
		concurrency          = 0                // unlimited concurrency (0 means unlimited in fasthttp)
		readTimeout          = 10 * time.Second // timeout for reading request
		idleTimeout          = 30 * time.Second // max keep-alive idle duration per connection
		maxKeepaliveDuration = 2 * time.Minute  // max duration for keep-alive connection
	)
	// no WriteTimeout: event streams hold their response open
	a.srv = &fasthttp.Server{
		Name:                 "dmfeed",
		Handler:              a.api.Handler(a.secConfig()),
		ReadBufferSize:       readBufferSize,
		MaxRequestBodySize:   int(cfg.Blobs.MaxSize.Int64()) + bodyMargin,
		Concurrency:          concurrency,
		ReduceMemoryUsage:    true, // reduces memory usage at the expense of performance
		ReadTimeout:          readTimeout,
		IdleTimeout:          idleTimeout,
		MaxKeepaliveDuration: maxKeepaliveDuration,
	}

	addr := a.eff.Addr
	if addr == "" {
		addr = cfg.Addr()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	a.lnMu.Lock()
	a.ln = ln
	a.lnMu.Unlock()

	cert, key := cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile
	errCh := make(chan error, 1)
	go func() {
		if cert != "" && key != "" {
			logger.Info("http_listening", "addr", ln.Addr().String(), "tls", true)
			errCh <- a.srv.ServeTLS(ln, cert, key)
			return
		}
		logger.Info("http_listening", "addr", ln.Addr().String(), "tls", false)
		errCh <- a.srv.Serve(ln)
	}()
	return errCh, nil
}
