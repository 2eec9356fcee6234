package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/jaehyun/paperflow/internal/config"
	"github.com/jaehyun/paperflow/internal/models"
	"github.com/jaehyun/paperflow/pkg/logger"
)

// ReviewVerdict is the structured verdict the model must return. All scores
// are on a 1-5 scale.
type ReviewVerdict struct {
	Decision               string   `json:"decision"`
	OverallScore           int      `json:"overall_score"`
	NoveltyScore           int      `json:"novelty_score"`
	MethodologyScore       int      `json:"methodology_score"`
	ClarityScore           int      `json:"clarity_score"`
	CitationIntegrityScore int      `json:"citation_integrity_score"`
	EditorialSummary       string   `json:"editorial_summary"`
	PeerSummary            string   `json:"peer_summary"`
	MajorIssues            []string `json:"major_issues"`
	MinorIssues            []string `json:"minor_issues"`
	RequiredRevisions      []string `json:"required_revisions"`
	Strengths              []string `json:"strengths"`
}

// ReviewerError carries the classification of a failed model call. Retryable
// errors are rate limits, provider 5xx responses and transport failures;
// everything else (auth, bad request, malformed verdict) fails immediately.
type ReviewerError struct {
	Message     string
	Retryable   bool
	RawResponse json.RawMessage
}

func (e *ReviewerError) Error() string {
	return e.Message
}

// ReviewerClient calls the configured model provider and enforces the
// verdict schema. Each attempt gets its own timeout; transient failures are
// retried with capped exponential backoff.
type ReviewerClient struct {
	config *config.ReviewConfig
}

func NewReviewerClient(cfg *config.ReviewConfig) *ReviewerClient {
	return &ReviewerClient{config: cfg}
}

// Review runs the referee prompt against the provider. On success it returns
// the validated verdict and the provider's raw response for auditing. On
// failure the raw response of the last attempt that produced one is returned
// alongside the error.
func (c *ReviewerClient) Review(ctx context.Context, prompt string) (*ReviewVerdict, json.RawMessage, error) {
	totalAttempts := c.config.MaxRetries + 1
	if totalAttempts < 1 {
		totalAttempts = 1
	}

	var lastRaw json.RawMessage
	var lastErr *ReviewerError

	for attempt := 1; attempt <= totalAttempts; attempt++ {
		verdict, raw, err := c.callOnce(ctx, prompt)
		if err == nil {
			return verdict, raw, nil
		}

		revErr, ok := err.(*ReviewerError)
		if !ok {
			revErr = &ReviewerError{Message: err.Error()}
		}
		if revErr.RawResponse != nil {
			lastRaw = revErr.RawResponse
		}
		lastErr = revErr

		if !revErr.Retryable {
			logger.Warnf("[Reviewer] Attempt %d/%d failed permanently: %s", attempt, totalAttempts, revErr.Message)
			break
		}
		if attempt == totalAttempts {
			logger.Warnf("[Reviewer] Attempt %d/%d failed, retries exhausted: %s", attempt, totalAttempts, revErr.Message)
			break
		}

		delay := RetryDelay(attempt, c.config.RetryBase(), c.config.RetryMax())
		logger.Warnf("[Reviewer] Attempt %d/%d failed (%s), retrying in %s", attempt, totalAttempts, revErr.Message, delay)

		select {
		case <-ctx.Done():
			return nil, lastRaw, &ReviewerError{
				Message:     fmt.Sprintf("review cancelled while waiting to retry: %v", ctx.Err()),
				RawResponse: lastRaw,
			}
		case <-time.After(delay):
		}
	}

	lastErr.RawResponse = lastRaw
	return nil, lastRaw, lastErr
}

// callOnce performs a single provider call under the per-attempt timeout and
// parses the reply into a verdict.
func (c *ReviewerClient) callOnce(ctx context.Context, prompt string) (*ReviewVerdict, json.RawMessage, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout())
	defer cancel()

	var content string
	var raw json.RawMessage
	var err error

	switch c.config.Provider {
	case "anthropic":
		content, raw, err = c.callAnthropic(attemptCtx, prompt)
	case "gemini":
		content, raw, err = c.callGemini(attemptCtx, prompt)
	case "ollama":
		content, raw, err = c.callOllama(attemptCtx, prompt)
	default:
		// openai and OpenAI-compatible endpoints
		content, raw, err = c.callOpenAI(attemptCtx, prompt)
	}
	if err != nil {
		return nil, nil, err
	}

	verdict, err := parseVerdict(content)
	if err != nil {
		return nil, nil, &ReviewerError{
			Message:     err.Error(),
			RawResponse: raw,
		}
	}
	return verdict, raw, nil
}

func (c *ReviewerClient) callOpenAI(ctx context.Context, prompt string) (string, json.RawMessage, error) {
	clientConfig := openai.DefaultConfig(c.config.APIKey)
	if c.config.BaseURL != "" {
		clientConfig.BaseURL = c.config.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil, &ReviewerError{Message: "model returned no choices"}
	}

	raw, _ := json.Marshal(resp)
	return resp.Choices[0].Message.Content, raw, nil
}

func (c *ReviewerClient) callAnthropic(ctx context.Context, prompt string) (string, json.RawMessage, error) {
	opts := []option.RequestOption{option.WithAPIKey(c.config.APIKey)}
	if c.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.config.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", nil, classifyAnthropicError(err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	raw, _ := json.Marshal(resp)
	return content, raw, nil
}

func (c *ReviewerClient) callGemini(ctx context.Context, prompt string) (string, json.RawMessage, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: c.config.APIKey,
	})
	if err != nil {
		return "", nil, &ReviewerError{Message: fmt.Sprintf("Gemini client error: %v", err)}
	}

	resp, err := client.Models.GenerateContent(ctx, c.config.Model, genai.Text(prompt), nil)
	if err != nil {
		return "", nil, classifyGeminiError(err)
	}

	raw, _ := json.Marshal(resp)
	return resp.Text(), raw, nil
}

func (c *ReviewerClient) callOllama(ctx context.Context, prompt string) (string, json.RawMessage, error) {
	baseURL := c.config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", nil, &ReviewerError{Message: fmt.Sprintf("invalid Ollama base URL: %v", err)}
	}
	client := api.NewClient(u, http.DefaultClient)

	var content strings.Builder
	var lastResp api.ChatResponse
	err = client.Chat(ctx, &api.ChatRequest{
		Model: c.config.Model,
		Messages: []api.Message{
			{Role: "user", Content: prompt},
		},
	}, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		lastResp = resp
		return nil
	})
	if err != nil {
		return "", nil, classifyOllamaError(err)
	}

	raw, _ := json.Marshal(lastResp)
	return content.String(), raw, nil
}

// parseVerdict strips an optional markdown code fence, then decodes and
// validates the verdict. Any deviation from the schema is a permanent error.
func parseVerdict(content string) (*ReviewVerdict, error) {
	cleaned := stripCodeFence(content)

	var verdict ReviewVerdict
	if err := json.Unmarshal([]byte(cleaned), &verdict); err != nil {
		return nil, fmt.Errorf("model reply is not valid verdict JSON: %v", err)
	}
	if err := validateVerdict(&verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}

// stripCodeFence removes a single surrounding ```...``` fence, with or
// without a language tag, when the whole reply is fenced.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	body := strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		// drop the language tag line, e.g. ```json
		body = body[idx+1:]
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}

func validateVerdict(v *ReviewVerdict) error {
	if !models.ValidDecision(v.Decision) {
		return fmt.Errorf("verdict has unknown decision %q", v.Decision)
	}

	scores := map[string]int{
		"overall_score":            v.OverallScore,
		"novelty_score":            v.NoveltyScore,
		"methodology_score":        v.MethodologyScore,
		"clarity_score":            v.ClarityScore,
		"citation_integrity_score": v.CitationIntegrityScore,
	}
	for name, score := range scores {
		if score < 1 || score > 5 {
			return fmt.Errorf("verdict %s %d is outside the 1-5 range", name, score)
		}
	}

	if strings.TrimSpace(v.EditorialSummary) == "" {
		return fmt.Errorf("verdict editorial_summary is empty")
	}
	if strings.TrimSpace(v.PeerSummary) == "" {
		return fmt.Errorf("verdict peer_summary is empty")
	}
	return nil
}

func classifyOpenAIError(err error) *ReviewerError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ReviewerError{
			Message:     fmt.Sprintf("model API error (status %d): %s", apiErr.HTTPStatusCode, apiErr.Message),
			Retryable:   retryableStatus(apiErr.HTTPStatusCode),
			RawResponse: rawFromBody(nil, apiErr),
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ReviewerError{
			Message:     fmt.Sprintf("model request failed (status %d): %v", reqErr.HTTPStatusCode, reqErr.Err),
			Retryable:   retryableStatus(reqErr.HTTPStatusCode),
			RawResponse: rawFromBody(reqErr.Body, nil),
		}
	}

	// transport failure or timeout
	return &ReviewerError{
		Message:   fmt.Sprintf("model call failed: %v", err),
		Retryable: true,
	}
}

func classifyAnthropicError(err error) *ReviewerError {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &ReviewerError{
			Message:     fmt.Sprintf("model API error (status %d): %v", apiErr.StatusCode, err),
			Retryable:   retryableStatus(apiErr.StatusCode),
			RawResponse: rawFromBody([]byte(apiErr.RawJSON()), nil),
		}
	}
	return &ReviewerError{
		Message:   fmt.Sprintf("model call failed: %v", err),
		Retryable: true,
	}
}

func classifyGeminiError(err error) *ReviewerError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ReviewerError{
			Message:   fmt.Sprintf("model API error (status %d): %s", apiErr.Code, apiErr.Message),
			Retryable: retryableStatus(apiErr.Code),
		}
	}
	return &ReviewerError{
		Message:   fmt.Sprintf("model call failed: %v", err),
		Retryable: true,
	}
}

func classifyOllamaError(err error) *ReviewerError {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return &ReviewerError{
			Message:   fmt.Sprintf("model API error (status %d): %s", statusErr.StatusCode, statusErr.ErrorMessage),
			Retryable: retryableStatus(statusErr.StatusCode),
		}
	}
	return &ReviewerError{
		Message:   fmt.Sprintf("model call failed: %v", err),
		Retryable: true,
	}
}

// rawFromBody preserves whatever the provider sent for auditing. Non-JSON
// bodies are wrapped so the stored value is always valid JSON.
func rawFromBody(body []byte, apiErr *openai.APIError) json.RawMessage {
	if apiErr != nil {
		wrapped, err := json.Marshal(map[string]any{"error": apiErr})
		if err == nil {
			return wrapped
		}
	}
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	wrapped, err := json.Marshal(map[string]string{"raw_body": string(body)})
	if err != nil {
		return nil
	}
	return wrapped
}
