package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"dmfeed/pkg/logger"
	"dmfeed/pkg/models"
	"dmfeed/pkg/router"
	"dmfeed/pkg/store/pagination"
)

// Stream serves the live subscription of a conversation as server-sent
// events. Every change produces a "page" event holding the newest messages,
// newest first, the same snapshot a Feed receives. A slow client only ever
// sees the latest snapshot; older undelivered ones are dropped.
func (a *API) Stream(ctx *fasthttp.RequestCtx) {
	_, _, convID, ok := conversation(ctx)
	if !ok {
		return
	}
	limit := pagination.ParsePaginationRequest(ctx, a.pageSize()).Limit

	pages := make(chan []models.Message, 1)
	errs := make(chan error, 1)
	push := func(page []models.Message) {
		for {
			select {
			case pages <- page:
				return
			default:
			}
			select {
			case <-pages:
			default:
			}
		}
	}
	fail := func(err error) {
		select {
		case errs <- err:
		default:
		}
	}

	if !a.track() {
		router.WriteJSONError(ctx, fasthttp.StatusServiceUnavailable, "server shutting down")
		return
	}
	sub, err := a.store.Subscribe(convID, limit, push, fail)
	if err != nil {
		a.streams.Done()
		writeError(ctx, "stream", err)
		return
	}
	logger.Debug("stream_opened", "conversation", convID, "remote", ctx.RemoteAddr().String())

	ctx.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("X-Accel-Buffering", "no")

	heartbeat := a.heartbeat
	done := a.done
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer a.streams.Done()
		defer sub.Close()
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			var err error
			select {
			case page := <-pages:
				err = writeEvent(w, "page", page)
			case e := <-errs:
				err = writeEvent(w, "error", map[string]string{"error": e.Error()})
			case <-ticker.C:
				_, err = w.WriteString(": ping\n\n")
			case <-done:
				return
			}
			if err == nil {
				err = w.Flush()
			}
			if err != nil {
				logger.Debug("stream_closed", "conversation", convID, "error", err)
				return
			}
		}
	})
}

func writeEvent(w *bufio.Writer, event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func (a *API) pageSize() int {
	if a.feedOpts.PageSize > 0 {
		return a.feedOpts.PageSize
	}
	return pagination.MessageDefaultLimit
}
