package keys

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ConversationID derives the deterministic id of the two-party conversation
// between a and b. Order of the arguments does not matter.
func ConversationID(a, b string) (string, error) {
	if err := ValidateUserID(a); err != nil {
		return "", err
	}
	if err := ValidateUserID(b); err != nil {
		return "", err
	}
	if a == b {
		return "", fmt.Errorf("conversation needs two distinct participants: %q", a)
	}
	pair := Participants(a, b)
	return strings.Join(pair, ConversationSep), nil
}

// Participants returns a and b sorted ascending.
func Participants(a, b string) []string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair
}

func GenMessageID() string {
	return uuid.NewString()
}

func GenConversationKey(convID string) string {
	return fmt.Sprintf(ConversationKey, convID)
}

func GenMessageKey(convID string, ts int64, msgID string) string {
	return fmt.Sprintf(MessageKey, convID, PadTS(ts), msgID)
}

func GenMessagesPrefix(convID string) string {
	return fmt.Sprintf(MessagesPrefix, convID)
}

func GenMessageIDIndex(convID, msgID string) string {
	return fmt.Sprintf(MessageIDIndex, convID, msgID)
}

func GenTokenKey(userID string) string {
	return fmt.Sprintf(TokenKey, userID)
}

func GenUserConversationRel(userID, convID string) string {
	return fmt.Sprintf(UserConversationRel, userID, convID)
}

func GenUserConversationLU(userID string, updatedAt int64, convID string) string {
	return fmt.Sprintf(UserConversationLU, userID, PadTS(updatedAt), convID)
}

func GenUserConversationsLUPrefix(userID string) string {
	return fmt.Sprintf(UserConversationsLUP, userID)
}

// helpers
func PadTS(ts int64) string {
	return fmt.Sprintf("%0*d", TSPadWidth, ts)
}

// NextPrefix returns the smallest key greater than every key with prefix p.
func NextPrefix(p []byte) []byte {
	out := append([]byte(nil), p...)
	for i := len(out) - 1; i >= 0; i-- {
		out[i]++
		if out[i] != 0 {
			return out[:i+1]
		}
	}
	return nil
}
