package aisvc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/tmatias/aigrader/core"
	"github.com/tmatias/aigrader/core/analysis"
)

type (
	chatRequest struct {
		Model       string        `json:"model"`
		Messages    []chatMessage `json:"messages"`
		MaxTokens   int           `json:"max_tokens"`
		Temperature float64       `json:"temperature"`
	}

	chatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	chatResponse struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
)

// service talks to an OpenAI-compatible chat-completions endpoint; local
// model servers exposing the same API work unchanged.
type service struct {
	url         string
	model       string
	apiKey      string
	maxTokens   int
	temperature float64
	client      *http.Client
}

var _ analysis.Completer = (*service)(nil)

func NewService(conf *core.Config) *service {
	return &service{
		url:         conf.AI.URL,
		model:       conf.AI.Model,
		apiKey:      conf.AI.APIKey,
		maxTokens:   conf.AI.MaxTokens,
		temperature: conf.AI.Temperature,
		client:      &http.Client{Timeout: 5 * time.Minute},
	}
}

func (svc *service) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       svc.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   svc.maxTokens,
		Temperature: svc.temperature,
	})
	if err != nil {
		return "", errors.Wrap(err, "encoding completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "building completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	if svc.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+svc.apiKey)
	}

	res, err := svc.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "calling completion API")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", errors.Errorf("completion API returned status %d", res.StatusCode)
	}

	var parsed chatResponse
	if err = json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", errors.Wrap(err, "decoding completion response")
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("completion API returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
