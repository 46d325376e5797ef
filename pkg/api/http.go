package api

import (
	"net/http"
	"net/http/pprof"
	"runtime"
	"strconv"

	"dmfeed/pkg/auth"
	"dmfeed/pkg/metrics"
	"dmfeed/pkg/router"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	gcPauseTotal = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "dmfeed_gc_pause_total_ns",
			Help: "Total GC pause time in nanoseconds.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.PauseTotalNs)
		},
	)

	heapAlloc = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "dmfeed_heap_alloc_bytes",
			Help: "Current heap allocation in bytes.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.HeapAlloc)
		},
	)
)

func init() {
	prometheus.MustRegister(gcPauseTotal)
	prometheus.MustRegister(heapAlloc)
}

// Public paths skip identity resolution and rate limiting.
var Public = []string{"/healthz", "/metrics", "/debug/pprof/"}

// wrapHTTPHandler wraps an http.Handler to work with fasthttp.
func wrapHTTPHandler(h http.Handler) fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(h)
}

// RegisterRoutes wires all API routes onto the provided router.
func (a *API) RegisterRoutes(r *router.Router) {
	// conversations
	r.GET("/v1/conversations", a.ListConversations)

	// messages
	r.GET("/v1/conversations/{peer}/messages", a.ListMessages)
	r.POST("/v1/conversations/{peer}/messages", a.SendMessage)
	r.PUT("/v1/conversations/{peer}/messages/{id}", a.EditMessage)
	r.DELETE("/v1/conversations/{peer}/messages/{id}", a.DeleteMessage)

	// live subscription
	r.GET("/v1/conversations/{peer}/stream", a.Stream)

	// delivery tokens
	r.PUT("/v1/tokens", a.PutToken)

	// images
	r.POST("/v1/blobs", a.UploadBlob)
	r.GET("/v1/blobs/{id}", a.GetBlob)

	// probes and debug
	r.GET("/healthz", a.Health)
	r.GET("/metrics", wrapHTTPHandler(promhttp.Handler()))
	r.GET("/debug/pprof/", wrapHTTPHandler(http.HandlerFunc(pprof.Index)))
	r.GET("/debug/pprof/profile", wrapHTTPHandler(http.HandlerFunc(pprof.Profile)))
}

// Health reports liveness and the store's readiness.
func (a *API) Health(ctx *fasthttp.RequestCtx) {
	if !a.store.Ready() {
		router.WriteJSON(ctx, fasthttp.StatusServiceUnavailable, HealthResponse{Status: "closing", Version: a.version})
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, HealthResponse{Status: "ok", Version: a.version})
}

// Handler returns the full request pipeline: metrics, the request gate
// and the routes.
func (a *API) Handler(sec auth.SecConfig) fasthttp.RequestHandler {
	r := router.New()
	a.RegisterRoutes(r)
	if len(sec.Public) == 0 {
		sec.Public = Public
	}
	return countRequests(auth.Middleware(sec)(r.Handler))
}

func countRequests(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		next(ctx)
		metrics.HTTPRequests.WithLabelValues(string(ctx.Method()), strconv.Itoa(ctx.Response.StatusCode())).Inc()
	}
}
