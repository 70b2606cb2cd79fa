package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/delivery-dispatch/internal/models"
)

// FCMSink posts notifications to an FCM HTTPv1 endpoint. It satisfies the
// PushSink extension point; device-token resolution belongs to the push
// backend, so the user id rides along as data.
type FCMSink struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

func NewFCMSink(endpoint, key string) *FCMSink {
	return &FCMSink{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (f *FCMSink) Push(userID string, n models.NotificationMessage) error {
	body := map[string]interface{}{
		"message": map[string]interface{}{
			"data": map[string]interface{}{
				"user_id":          userID,
				"notificationType": n.NotificationType,
				"title":            n.Title,
				"body":             n.Message,
			},
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, f.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Key != "" {
		req.Header.Set("Authorization", "Bearer "+f.Key)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("fcm: status %d", resp.StatusCode)
	}
	return nil
}
