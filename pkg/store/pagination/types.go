package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// CursorPayload identifies the last item a client has seen. Message cursors
// carry the ordering pair (timestamp, id); conversation cursors carry the
// raw index key of the last conversation returned.
type CursorPayload struct {
	TS        int64  `json:"ts,omitempty"`
	MessageID string `json:"mid,omitempty"`
	IndexKey  string `json:"ik,omitempty"`
}

func (c CursorPayload) IsZero() bool {
	return c.TS == 0 && c.MessageID == "" && c.IndexKey == ""
}

type PaginationRequest struct {
	Limit  int    `json:"limit,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

func EncodeCursor(payload CursorPayload) string {
	if payload.IsZero() {
		return ""
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeCursor(cursor string) (CursorPayload, error) {
	var cp CursorPayload
	if cursor == "" {
		return cp, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return cp, fmt.Errorf("decode base64: %w", err)
	}
	if err := json.Unmarshal(data, &cp); err != nil {
		return cp, fmt.Errorf("decode cursor JSON: %w", err)
	}
	return cp, nil
}

// ClampLimit applies def when limit is unset and caps it at MaxLimit.
func ClampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
