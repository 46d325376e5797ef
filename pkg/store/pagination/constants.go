package pagination

const (
	// MessageDefaultLimit matches the feed's page size
	MessageDefaultLimit = 30

	// ConversationDefaultLimit is the default limit for conversation lists
	ConversationDefaultLimit = 50

	// MaxLimit is the maximum number of items allowed per page
	MaxLimit = 500
)
