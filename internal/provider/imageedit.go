package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// EditRequest описывает запрос на правку изображения внешним провайдером
type EditRequest struct {
	BaseImageURL string `json:"imageUrl"`
	Description  string `json:"description"`
	EditPrompt   string `json:"prompt"`
	AspectRatio  string `json:"aspectRatio"`
	Model        string `json:"model,omitempty"`
}

// ImageEditor — контракт внешнего сервиса правки изображений. Вызов может
// завершиться ошибкой или таймаутом; повторных попыток на этом уровне нет.
type ImageEditor interface {
	Edit(ctx context.Context, req EditRequest) ([]byte, error)
}

const defaultEditTimeout = 120 * time.Second

// Client — тонкий HTTP-клиент сервиса правки изображений
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

var _ ImageEditor = (*Client)(nil)

// NewClient создаёт клиента провайдера правки изображений
func NewClient(endpoint, apiKey string, timeout time.Duration) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("edit provider endpoint is required")
	}
	if timeout <= 0 {
		timeout = defaultEditTimeout
	}

	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type editResponse struct {
	ImageBase64 string `json:"imageBase64"`
	Error       string `json:"error,omitempty"`
}

// Edit отправляет запрос провайдеру и возвращает байты нового изображения
func (c *Client) Edit(ctx context.Context, req EditRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal edit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build edit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("edit provider request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read edit provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr editResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("edit provider returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("edit provider returned status %d", resp.StatusCode)
	}

	var result editResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to parse edit provider response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("edit provider error: %s", result.Error)
	}
	if result.ImageBase64 == "" {
		return nil, fmt.Errorf("edit provider returned empty image payload")
	}

	data, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode edited image: %w", err)
	}

	log.Printf("[Provider] Правка изображения завершена за %v, получено %d байт", time.Since(started), len(data))
	return data, nil
}
