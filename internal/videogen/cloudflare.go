package videogen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type CloudflareClient struct {
	baseURL    string
	accountID  string
	apiToken   string
	httpClient *http.Client
}

func NewCloudflareClient(baseURL, accountID, apiToken string) *CloudflareClient {
	return &CloudflareClient{
		baseURL:    baseURL,
		accountID:  accountID,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type streamCopyRequest struct {
	URL  string            `json:"url"`
	Meta map[string]string `json:"meta,omitempty"`
}

type streamCopyResponse struct {
	Success bool `json:"success"`
	Result  struct {
		UID string `json:"uid"`
	} `json:"result"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Ingest asks Cloudflare Stream to pull a video from sourceURL and
// returns the hosted video uid.
func (c *CloudflareClient) Ingest(ctx context.Context, sourceURL, name string) (string, error) {
	body, err := json.Marshal(streamCopyRequest{
		URL:  sourceURL,
		Meta: map[string]string{"name": name},
	})
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/client/v4/accounts/%s/stream/copy", c.baseURL, c.accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cloudflare stream copy: %w", err)
	}
	defer resp.Body.Close()

	var out streamCopyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("cloudflare stream copy: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !out.Success {
		msg := "unknown error"
		if len(out.Errors) > 0 {
			msg = out.Errors[0].Message
		}
		return "", fmt.Errorf("cloudflare stream copy: status %d: %s", resp.StatusCode, msg)
	}
	return out.Result.UID, nil
}
