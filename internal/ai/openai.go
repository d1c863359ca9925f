package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1/chat/completions"
	defaultModel   = "gpt-4o-mini"
	requestTimeout = 60 * time.Second
)

const systemPrompt = `You are an Eisenhower Matrix task classification expert.

Analyze the submitted task list and judge each item's importance and urgency.

Importance: contribution to long-term goals, growth, core work.
- high (0.7-1.0): core work, direct impact on career/health/finances
- medium (0.4-0.6): useful but not core
- low (0.0-0.3): simple or replaceable chores

Urgency: time pressure, deadline proximity.
- high (0.7-1.0): due today/tomorrow, needs immediate handling
- medium (0.4-0.6): due this week
- low (0.0-0.3): no deadline

Quadrant mapping:
- Q1: importance >= 0.5 AND urgency >= 0.5
- Q2: importance >= 0.5 AND urgency < 0.5
- Q3: importance < 0.5 AND urgency >= 0.5
- Q4: importance < 0.5 AND urgency < 0.5

Use the hints field when present: durationMinutes, issueKey (work
tracker key implies work context), dateHint ("tomorrow" raises urgency).

Respond with JSON only:
{ "items": [ { "id": "...", "importance": 0.0, "urgency": 0.0, "quadrant": "Q1", "confidence": 0.0, "reason": "..." } ] }`

// OpenAIClassifier calls the chat completions API.
type OpenAIClassifier struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewOpenAIClassifier(apiKey, modelName string) *OpenAIClassifier {
	if modelName == "" {
		modelName = defaultModel
	}
	return &OpenAIClassifier{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   modelName,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat respFormat    `json:"response_format"`
	Messages       []chatMessage `json:"messages"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type rawItem struct {
	ID         string  `json:"id"`
	Importance float64 `json:"importance"`
	Urgency    float64 `json:"urgency"`
	Quadrant   string  `json:"quadrant"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func (c *OpenAIClassifier) Classify(ctx context.Context, tasks []ClassifyInput, customPrompt string) ([]ClassifyResult, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	userContent, err := json.Marshal(tasks)
	if err != nil {
		return nil, fmt.Errorf("marshal tasks: %w", err)
	}

	prompt := systemPrompt
	if customPrompt != "" {
		prompt = customPrompt
	}

	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Temperature:    0,
		ResponseFormat: respFormat{Type: "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: string(userContent)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call classifier: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("classifier error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("classifier error: status %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("classifier returned empty response")
	}

	var payload struct {
		Items []rawItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &payload); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if payload.Items == nil {
		return nil, fmt.Errorf("classifier response missing items array")
	}

	return validateResults(tasks, payload.Items)
}
