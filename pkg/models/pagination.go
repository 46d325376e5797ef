package models

type PaginationResponse struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
	Count      int    `json:"count"`
}

type MessagesResponse struct {
	Messages   []Message          `json:"messages"`
	Pagination PaginationResponse `json:"pagination"`
}

type ConversationsResponse struct {
	Conversations []Conversation     `json:"conversations"`
	Pagination    PaginationResponse `json:"pagination"`
}
