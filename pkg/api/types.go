package api

import "dmfeed/pkg/models"

type SendRequest struct {
	Text     string `json:"text"`
	ImageRef string `json:"image_ref,omitempty"`
}

type EditRequest struct {
	Text string `json:"text"`
}

type TokenRequest struct {
	Token string `json:"token"`
}

type MessageResponse struct {
	Message models.Message `json:"message"`
}

type TokenResponse struct {
	Token models.DeliveryToken `json:"token"`
}

type BlobResponse struct {
	Ref         string `json:"ref"`
	ID          string `json:"id"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
