package openai

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "strings"

    "github.com/sashabaranov/go-openai"

    domai "github.com/bryanwahyu/career-insight/internal/domain/ai"
)

const (
    maxTokens    = 2048
    defaultModel = "gpt-4o-mini"
)

// Client implements ai.Client on top of an OpenAI-compatible chat completions API.
type Client struct {
    *openai.Client
    Model string
}

// NewClient builds a client; baseURL is optional and lets the service talk to any
// OpenAI-compatible gateway.
func NewClient(apiKey, baseURL, model string) *Client {
    cfg := openai.DefaultConfig(apiKey)
    if baseURL != "" {
        cfg.BaseURL = strings.TrimRight(baseURL, "/")
    }
    return &Client{Client: openai.NewClientWithConfig(cfg), Model: model}
}

func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
    model := c.Model
    if model == "" {
        model = defaultModel
    }
    req := openai.ChatCompletionRequest{
        Model: model,
        ResponseFormat: &openai.ChatCompletionResponseFormat{
            Type: openai.ChatCompletionResponseFormatTypeJSONObject,
        },
        Messages: []openai.ChatCompletionMessage{
            {Role: openai.ChatMessageRoleSystem, Content: system},
            {Role: openai.ChatMessageRoleUser, Content: user},
        },
    }
    // For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
    if isReasoningModel(model) {
        req.MaxCompletionTokens = maxTokens
    } else {
        req.MaxTokens = maxTokens
    }

    resp, err := c.CreateChatCompletion(ctx, req)
    if err != nil {
        if isQuotaError(err) {
            return "", fmt.Errorf("%w: %v", domai.ErrQuotaExceeded, err)
        }
        return "", fmt.Errorf("failed to create chat completion: %w", err)
    }
    if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
        return "", domai.ErrEmptyCompletion
    }

    return resp.Choices[0].Message.Content, nil
}

func isReasoningModel(model string) bool {
    for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
        if strings.HasPrefix(model, p) {
            return true
        }
    }
    return false
}

func isQuotaError(err error) bool {
    var apiErr *openai.APIError
    if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
        return true
    }
    var reqErr *openai.RequestError
    return errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests
}
