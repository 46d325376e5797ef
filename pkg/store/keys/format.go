package keys

const (
	// notation dictionary for key formats:
	// c   = conversation
	// m   = message
	// u   = user
	// lu  = last updated
	// mid = message id lookup
	// tok = delivery token
	// idx = index
	// All segments are separated by ":"; ids never contain ":".

	// primary storage key formats
	ConversationKey = "c:%s"         // c:<conv_id>
	MessageKey      = "c:%s:m:%s:%s" // c:<conv_id>:m:<ts>:<msg_id>
	MessagesPrefix  = "c:%s:m:"      // c:<conv_id>:m:
	TokenKey        = "tok:%s"       // tok:<user_id>

	// indexes
	MessageIDIndex       = "idx:c:%s:mid:%s"   // idx:c:<conv_id>:mid:<msg_id> -> message key
	UserConversationRel  = "idx:u:%s:c:%s"     // idx:u:<user_id>:c:<conv_id> -> padded updated ts
	UserConversationLU   = "idx:u:%s:lu:%s:%s" // idx:u:<user_id>:lu:<updated_ts>:<conv_id>
	UserConversationsLUP = "idx:u:%s:lu:"      // prefix of the above

	// padding width (fixed for lexicographic ordering)
	TSPadWidth = 20

	// separator used when deriving conversation ids from participant ids
	ConversationSep = "_"
)
