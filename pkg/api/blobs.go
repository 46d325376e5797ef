package api

import (
	"strings"

	"github.com/valyala/fasthttp"

	"dmfeed/pkg/auth"
	"dmfeed/pkg/router"
)

// UploadBlob stores the raw request body as an image owned by the caller.
func (a *API) UploadBlob(ctx *fasthttp.RequestCtx) {
	if a.blobs == nil {
		router.WriteJSONError(ctx, fasthttp.StatusNotFound, "image uploads are disabled")
		return
	}
	ct := strings.TrimSpace(string(ctx.Request.Header.ContentType()))
	if !strings.HasPrefix(ct, "image/") {
		router.WriteJSONError(ctx, fasthttp.StatusUnsupportedMediaType, "content type must be an image")
		return
	}
	meta, err := a.blobs.Put(auth.Identity(ctx), ct, ctx.PostBody())
	if err != nil {
		writeError(ctx, "upload_blob", err)
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusCreated, BlobResponse{
		Ref:         meta.Ref(),
		ID:          meta.ID,
		ContentType: meta.ContentType,
		Size:        meta.Size,
	})
}

// GetBlob returns an uploaded image.
func (a *API) GetBlob(ctx *fasthttp.RequestCtx) {
	if a.blobs == nil {
		router.WriteJSONError(ctx, fasthttp.StatusNotFound, "image uploads are disabled")
		return
	}
	meta, data, err := a.blobs.Get(blobRef(ctx))
	if err != nil {
		writeError(ctx, "get_blob", err)
		return
	}
	ctx.SetContentType(meta.ContentType)
	ctx.Response.Header.Set("Cache-Control", "private, max-age=31536000, immutable")
	ctx.SetBody(data)
}
