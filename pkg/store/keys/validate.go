package keys

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// user ids exclude the conversation separator so a conversation id
	// names exactly one pair.
	userIDRegexp = regexp.MustCompile(`^[A-Za-z0-9.@-]{1,128}$`)
	convIDRegexp = regexp.MustCompile(`^[A-Za-z0-9.@_-]{3,257}$`)
	msgIDRegexp  = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

	messageKeyRegexp         = regexp.MustCompile(`^c:([A-Za-z0-9.@_-]{3,257}):m:([0-9]{20}):([A-Za-z0-9._-]{1,128})$`)
	userConversationLURegexp = regexp.MustCompile(`^idx:u:([A-Za-z0-9.@-]{1,128}):lu:([0-9]{20}):([A-Za-z0-9.@_-]{3,257})$`)
)

var ErrEmptyID = errors.New("empty id")

func ValidateUserID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if !userIDRegexp.MatchString(id) {
		return fmt.Errorf("invalid user id: %q", id)
	}
	return nil
}

func ValidateConversationID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if !convIDRegexp.MatchString(id) {
		return fmt.Errorf("invalid conversation id: %q", id)
	}
	return nil
}

func ValidateMessageID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if !msgIDRegexp.MatchString(id) {
		return fmt.Errorf("invalid message id: %q", id)
	}
	return nil
}
