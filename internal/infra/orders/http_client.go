package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"advisor-live-chat/internal/domain/ports/adapter"
)

var _ adapter.OrderService = (*HTTPOrderService)(nil)

// HTTPOrderService calls the order subsystem's internal API to flip an
// order to delivered once its live-chat session concluded.
type HTTPOrderService struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPOrderService(baseURL, token string, timeout time.Duration) (*HTTPOrderService, error) {
	if baseURL == "" {
		return nil, errors.New("order service base url empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid order service url: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPOrderService{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (s *HTTPOrderService) MarkDelivered(ctx context.Context, orderID string) error {
	payload := map[string]string{"order_id": orderID}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/internal/orders/delivered", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("mark delivered: order service returned %d", resp.StatusCode)
	}
	return nil
}
