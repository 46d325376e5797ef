package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"dmfeed/pkg/logger"
	"dmfeed/pkg/metrics"
	"dmfeed/pkg/models"
	"dmfeed/pkg/store/keys"
)

// PutToken registers token as uid's delivery token, replacing any previous
// one.
func (s *Store) PutToken(uid, token string) (models.DeliveryToken, error) {
	if err := keys.ValidateUserID(uid); err != nil {
		return models.DeliveryToken{}, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return models.DeliveryToken{}, fmt.Errorf("token: %w", keys.ErrEmptyID)
	}
	s.mu.Lock()
	t := models.DeliveryToken{UserID: uid, Token: token, UpdatedAt: s.nextTS()}
	s.mu.Unlock()
	data, err := json.Marshal(t)
	if err != nil {
		return models.DeliveryToken{}, fmt.Errorf("marshal token: %w", err)
	}
	if !s.Ready() {
		return models.DeliveryToken{}, ErrClosed
	}
	if err := s.db.Set([]byte(keys.GenTokenKey(uid)), data, s.writeOpt()); err != nil {
		logger.Error("save_token_failed", "user", uid, "error", err)
		return models.DeliveryToken{}, err
	}
	metrics.StoreWrites.WithLabelValues("put_token").Inc()
	logger.Debug("token_saved", "user", uid)
	return t, nil
}

// GetToken returns uid's delivery token or ErrNotFound.
func (s *Store) GetToken(uid string) (models.DeliveryToken, error) {
	if err := keys.ValidateUserID(uid); err != nil {
		return models.DeliveryToken{}, err
	}
	data, err := s.get(keys.GenTokenKey(uid))
	if err != nil {
		return models.DeliveryToken{}, err
	}
	var t models.DeliveryToken
	if err := json.Unmarshal(data, &t); err != nil {
		return models.DeliveryToken{}, fmt.Errorf("decode token %s: %w", uid, err)
	}
	return t, nil
}
