// Package videogen holds the HTTP clients for the external video
// pipeline: Runway renders a clip from a prompt, Cloudflare Stream
// ingests the result for playback.
package videogen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrGenerationFailed is returned when Runway reports a terminal failure
// for a generation task.
var ErrGenerationFailed = errors.New("video generation failed")

const (
	runwayModel    = "gen3a_turbo"
	runwayDuration = 10
	runwayRatio    = "16:9"
	pollInterval   = 5 * time.Second
)

type RunwayClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewRunwayClient(baseURL, apiKey string) *RunwayClient {
	return &RunwayClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type runwayTaskRequest struct {
	PromptText string `json:"promptText"`
	Model      string `json:"model"`
	Duration   int    `json:"duration"`
	Ratio      string `json:"ratio"`
}

type runwayTask struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Output  []string `json:"output"`
	Failure string   `json:"failure"`
}

// Generate submits a prompt and polls until the task reaches a terminal
// state or ctx expires. Returns the URL of the rendered clip.
func (c *RunwayClient) Generate(ctx context.Context, prompt string) (string, error) {
	task, err := c.createTask(ctx, prompt)
	if err != nil {
		return "", err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		t, err := c.getTask(ctx, task.ID)
		if err != nil {
			return "", err
		}
		switch t.Status {
		case "SUCCEEDED":
			if len(t.Output) == 0 {
				return "", fmt.Errorf("%w: task %s succeeded without output", ErrGenerationFailed, t.ID)
			}
			return t.Output[0], nil
		case "FAILED":
			return "", fmt.Errorf("%w: %s", ErrGenerationFailed, t.Failure)
		}
	}
}

func (c *RunwayClient) createTask(ctx context.Context, prompt string) (*runwayTask, error) {
	body, err := json.Marshal(runwayTaskRequest{
		PromptText: prompt,
		Model:      runwayModel,
		Duration:   runwayDuration,
		Ratio:      runwayRatio,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/image_to_video", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("runway create task: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("runway create task: status %d", resp.StatusCode)
	}
	var task runwayTask
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("runway create task: %w", err)
	}
	return &task, nil
}

func (c *RunwayClient) getTask(ctx context.Context, id string) (*runwayTask, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/tasks/"+id, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("runway get task: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("runway get task %s: status %d", id, resp.StatusCode)
	}
	var task runwayTask
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("runway get task: %w", err)
	}
	return &task, nil
}

func (c *RunwayClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}
