package keys

import (
	"fmt"
	"strconv"
	"strings"
)

type MessageKeyParts struct {
	ConversationID string
	TS             int64
	MsgID          string
}

func parsePaddedInt(s string, width int) (int64, error) {
	if len(s) == 0 || len(s) > width {
		return 0, fmt.Errorf("length invalid: %s", s)
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return 0, nil
	}
	return strconv.ParseInt(trimmed, 10, 64)
}

// ParseMessageKey splits c:<conv_id>:m:<ts>:<msg_id>.
func ParseMessageKey(key string) (MessageKeyParts, error) {
	m := messageKeyRegexp.FindStringSubmatch(key)
	if m == nil {
		return MessageKeyParts{}, fmt.Errorf("invalid message key: %s", key)
	}
	ts, err := parsePaddedInt(m[2], TSPadWidth)
	if err != nil {
		return MessageKeyParts{}, fmt.Errorf("invalid message key timestamp: %w", err)
	}
	return MessageKeyParts{ConversationID: m[1], TS: ts, MsgID: m[3]}, nil
}

// ParseUserConversationLU returns the conversation id of an
// idx:u:<user_id>:lu:<ts>:<conv_id> key.
func ParseUserConversationLU(key string) (string, int64, error) {
	m := userConversationLURegexp.FindStringSubmatch(key)
	if m == nil {
		return "", 0, fmt.Errorf("invalid user conversation index key: %s", key)
	}
	ts, err := parsePaddedInt(m[2], TSPadWidth)
	if err != nil {
		return "", 0, err
	}
	return m[3], ts, nil
}
