package api

import (
	"encoding/json"
	"strings"

	"github.com/valyala/fasthttp"

	"dmfeed/pkg/auth"
	"dmfeed/pkg/blob"
	"dmfeed/pkg/feed"
	"dmfeed/pkg/models"
	"dmfeed/pkg/router"
	"dmfeed/pkg/store"
	"dmfeed/pkg/store/keys"
	"dmfeed/pkg/store/pagination"
)

// conversation resolves the caller's conversation with the {peer} path
// parameter. Callers can only ever address conversations they take part in.
func conversation(ctx *fasthttp.RequestCtx) (uid, peer, convID string, ok bool) {
	uid = auth.Identity(ctx)
	peer = router.Param(ctx, "peer")
	convID, err := keys.ConversationID(uid, peer)
	if err != nil {
		badRequest(ctx, "invalid peer: "+err.Error())
		return "", "", "", false
	}
	return uid, peer, convID, true
}

// ListMessages returns a page of messages newest first: the newest page
// without a cursor, otherwise the page strictly older than the cursor.
func (a *API) ListMessages(ctx *fasthttp.RequestCtx) {
	_, _, convID, ok := conversation(ctx)
	if !ok {
		return
	}
	qp := pagination.ParsePaginationRequest(ctx, pagination.MessageDefaultLimit)
	cur, err := pagination.DecodeCursor(qp.Cursor)
	if err != nil || (qp.Cursor != "" && cur.MessageID == "") {
		badRequest(ctx, "invalid cursor")
		return
	}

	var msgs []models.Message
	if qp.Cursor == "" {
		msgs, err = a.store.ListNewest(convID, qp.Limit)
	} else {
		msgs, err = a.store.ListBefore(convID, store.Cursor{TS: cur.TS, ID: cur.MessageID}, qp.Limit)
	}
	if err != nil {
		writeError(ctx, "list_messages", err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	resp := models.MessagesResponse{
		Messages: msgs,
		Pagination: models.PaginationResponse{
			Limit:   qp.Limit,
			HasMore: len(msgs) == qp.Limit,
			Count:   len(msgs),
		},
	}
	if resp.Pagination.HasMore {
		oldest := msgs[len(msgs)-1]
		resp.Pagination.NextCursor = pagination.EncodeCursor(pagination.CursorPayload{TS: oldest.Timestamp, MessageID: oldest.ID})
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, resp)
}

// SendMessage stores a message from the caller. An image reference must
// name an uploaded blob.
func (a *API) SendMessage(ctx *fasthttp.RequestCtx) {
	uid, peer, _, ok := conversation(ctx)
	if !ok {
		return
	}
	var req SendRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		badRequest(ctx, "invalid message payload")
		return
	}
	ref := strings.TrimSpace(req.ImageRef)
	if ref != "" {
		if a.blobs == nil {
			badRequest(ctx, "image uploads are disabled")
			return
		}
		if _, err := a.blobs.Stat(ref); err != nil {
			writeError(ctx, "send_message", err)
			return
		}
	}

	w, err := a.writer(uid)
	if err != nil {
		writeError(ctx, "send_message", err)
		return
	}
	m, err := w.Send(ctx, peer, feed.Content{Text: req.Text, ImageRef: ref})
	if err != nil {
		writeError(ctx, "send_message", err)
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusCreated, MessageResponse{Message: m})
}

// EditMessage replaces the text of one of the caller's messages.
func (a *API) EditMessage(ctx *fasthttp.RequestCtx) {
	uid, peer, _, ok := conversation(ctx)
	if !ok {
		return
	}
	id := router.Param(ctx, "id")
	if err := keys.ValidateMessageID(id); err != nil {
		badRequest(ctx, err.Error())
		return
	}
	var req EditRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		badRequest(ctx, "invalid edit payload")
		return
	}

	w, err := a.writer(uid)
	if err != nil {
		writeError(ctx, "edit_message", err)
		return
	}
	m, err := w.Edit(ctx, peer, id, req.Text)
	if err != nil {
		writeError(ctx, "edit_message", err)
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, MessageResponse{Message: m})
}

// DeleteMessage soft-deletes one of the caller's messages.
func (a *API) DeleteMessage(ctx *fasthttp.RequestCtx) {
	uid, peer, _, ok := conversation(ctx)
	if !ok {
		return
	}
	id := router.Param(ctx, "id")
	if err := keys.ValidateMessageID(id); err != nil {
		badRequest(ctx, err.Error())
		return
	}

	w, err := a.writer(uid)
	if err != nil {
		writeError(ctx, "delete_message", err)
		return
	}
	m, err := w.Delete(ctx, peer, id)
	if err != nil {
		writeError(ctx, "delete_message", err)
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, MessageResponse{Message: m})
}

// blobRef turns the {id} path parameter into a reference.
func blobRef(ctx *fasthttp.RequestCtx) string {
	return blob.RefScheme + router.Param(ctx, "id")
}
