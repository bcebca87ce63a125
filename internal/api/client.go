// Package api submits prompt chunks to an OpenAI-compatible chat-completions
// endpoint and retries transient failures.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/presshq/press/internal/types"
)

const (
	// DefaultBaseURL targets the DeepSeek API.
	DefaultBaseURL = "https://api.deepseek.com"
	// DefaultModel is the chat model requested when none is configured.
	DefaultModel = "deepseek-chat"

	chatCompletionsPath = "/chat/completions"
	defaultTimeout      = 300 * time.Second
	retryDelay          = time.Second

	warningRetryFormat        = "chunk %d/%d attempt failed, retries left %d: %v"
	errorRetriesExhaustedText = "chunk %d/%d failed after %d retries: %w"
)

// TransientError marks a failure worth retrying: a network error or a
// retryable HTTP status (429 or any 5xx).
type TransientError struct {
	Status int
	Err    error
}

func (transientError *TransientError) Error() string {
	if transientError.Status != 0 {
		return fmt.Sprintf("retryable API status %d: %v", transientError.Status, transientError.Err)
	}
	return fmt.Sprintf("request failed: %v", transientError.Err)
}

func (transientError *TransientError) Unwrap() error {
	return transientError.Err
}

// FatalError marks a non-retryable API failure.
type FatalError struct {
	Status int
	Body   string
}

func (fatalError *FatalError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", fatalError.Status, fatalError.Body)
}

// Config carries client construction parameters.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxRetries  int
	Timeout     time.Duration
}

// Client wraps the chat-completions HTTP API.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxRetries  int
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient constructs a Client, applying defaults for unset fields.
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     config.BaseURL,
		apiKey:      config.APIKey,
		model:       config.Model,
		temperature: config.Temperature,
		maxRetries:  config.MaxRetries,
		httpClient:  &http.Client{Timeout: config.Timeout},
		logger:      logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete submits one prompt chunk together with the user prompt and system
// prompt, retrying transient failures up to the configured limit with the
// same payload. The returned RetryState counts the failed attempts consumed
// before the final outcome.
func (client *Client) Complete(ctx context.Context, chunk types.PromptChunk, userPrompt, userSystemPrompt string) (types.AiResponse, types.RetryState, error) {
	payload, payloadError := client.buildPayload(chunk, userPrompt, userSystemPrompt)
	if payloadError != nil {
		return types.AiResponse{}, types.RetryState{MaxRetries: client.maxRetries}, payloadError
	}

	retryState := types.RetryState{MaxRetries: client.maxRetries}
	for {
		responseText, callError := client.call(ctx, payload)
		if callError == nil {
			return types.AiResponse{ChunkIndex: chunk.Index, RawText: responseText}, retryState, nil
		}

		transient, isTransient := callError.(*TransientError)
		if !isTransient {
			return types.AiResponse{}, retryState, callError
		}
		if retryState.AttemptCount >= client.maxRetries {
			return types.AiResponse{}, retryState, fmt.Errorf(errorRetriesExhaustedText, chunk.Index, chunk.Total, client.maxRetries, transient)
		}
		retryState.AttemptCount++
		client.logger.Warn(fmt.Sprintf(warningRetryFormat, chunk.Index, chunk.Total, client.maxRetries-retryState.AttemptCount+1, transient))

		select {
		case <-ctx.Done():
			return types.AiResponse{}, retryState, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

// buildPayload assembles the serialized chat request for one chunk.
func (client *Client) buildPayload(chunk types.PromptChunk, userPrompt, userSystemPrompt string) ([]byte, error) {
	chunkNote := ""
	if chunk.Total > 1 {
		chunkNote = fmt.Sprintf("<chunk_info>This is chunk %d of %d of the code files.</chunk_info> ", chunk.Index, chunk.Total)
	}

	finalUserPrompt := fmt.Sprintf(
		"%s<code_files>%s</code_files> <user_prompt>%s</user_prompt> <important>%s</important>",
		chunkNote, chunk.Content, userPrompt, responseFormatInstructions,
	)
	finalSystemPrompt := fmt.Sprintf(
		"<system_prompt>%s</system_prompt> <user_system_prompt>%s</user_system_prompt>",
		scaffoldSystemPrompt, userSystemPrompt,
	)

	request := chatRequest{
		Model: client.model,
		Messages: []chatMessage{
			{Role: "system", Content: finalSystemPrompt},
			{Role: "user", Content: finalUserPrompt},
		},
		Temperature: client.temperature,
	}
	payload, marshalError := json.Marshal(request)
	if marshalError != nil {
		return nil, fmt.Errorf("marshal request: %w", marshalError)
	}
	return payload, nil
}

// call performs one HTTP round trip, classifying failures as transient or
// fatal.
func (client *Client) call(ctx context.Context, payload []byte) (string, error) {
	request, requestError := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+chatCompletionsPath, bytes.NewReader(payload))
	if requestError != nil {
		return "", fmt.Errorf("create request: %w", requestError)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+client.apiKey)

	response, doError := client.httpClient.Do(request)
	if doError != nil {
		return "", &TransientError{Err: doError}
	}
	defer response.Body.Close()

	bodyBytes, readError := io.ReadAll(response.Body)
	if readError != nil {
		return "", &TransientError{Err: fmt.Errorf("read body: %w", readError)}
	}

	if isRetryableStatus(response.StatusCode) {
		return "", &TransientError{Status: response.StatusCode, Err: fmt.Errorf("%s", string(bodyBytes))}
	}
	if response.StatusCode != http.StatusOK {
		return "", &FatalError{Status: response.StatusCode, Body: string(bodyBytes)}
	}

	var parsed chatResponse
	if unmarshalError := json.Unmarshal(bodyBytes, &parsed); unmarshalError != nil {
		preview := string(bodyBytes)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return "", fmt.Errorf("decode response: %w (body preview: %s)", unmarshalError, preview)
	}
	if parsed.Error.Message != "" {
		return "", &FatalError{Status: response.StatusCode, Body: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return "", &FatalError{Status: response.StatusCode, Body: "no choices in response"}
	}
	return parsed.Choices[0].Message.Content, nil
}

// isRetryableStatus reports whether a status code is worth retrying.
func isRetryableStatus(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode <= 599
}
