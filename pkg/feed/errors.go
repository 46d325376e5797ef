package feed

import "errors"

var (
	ErrEmptyMessage     = errors.New("message needs text or an image")
	ErrNoIdentity       = errors.New("no current identity")
	ErrNotOpen          = errors.New("no conversation open")
	ErrNotSender        = errors.New("only the sender may change a message")
	ErrMessageDeleted   = errors.New("message was deleted")
	ErrEditWindowClosed = errors.New("edit window has closed")
	ErrLoadTimeout      = errors.New("older page fetch timed out")
)
