package models

// DeliveryToken is a user's registered push delivery token.
type DeliveryToken struct {
	UserID    string `json:"user_id"`
	Token     string `json:"token"`
	UpdatedAt int64  `json:"updated_at"`
}
