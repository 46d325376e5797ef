package api

import (
	"github.com/valyala/fasthttp"

	"dmfeed/pkg/auth"
	"dmfeed/pkg/models"
	"dmfeed/pkg/router"
	"dmfeed/pkg/store/pagination"
)

// ListConversations returns the caller's conversations, most recently
// updated first.
func (a *API) ListConversations(ctx *fasthttp.RequestCtx) {
	uid := auth.Identity(ctx)
	qp := pagination.ParsePaginationRequest(ctx, pagination.ConversationDefaultLimit)
	cur, err := pagination.DecodeCursor(qp.Cursor)
	if err != nil {
		badRequest(ctx, "invalid cursor")
		return
	}

	convs, lastKey, hasMore, err := a.store.ListConversations(uid, cur.IndexKey, qp.Limit)
	if err != nil {
		writeError(ctx, "list_conversations", err)
		return
	}

	resp := models.ConversationsResponse{
		Conversations: convs,
		Pagination: models.PaginationResponse{
			Limit:   qp.Limit,
			HasMore: hasMore,
			Count:   len(convs),
		},
	}
	if hasMore {
		resp.Pagination.NextCursor = pagination.EncodeCursor(pagination.CursorPayload{IndexKey: lastKey})
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, resp)
}
