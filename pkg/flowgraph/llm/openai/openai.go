// Package openai implements llm.Client over the OpenAI Chat Completions API.
//
// The same wire protocol is served by Gemini's OpenAI-compatible endpoint,
// which is the default deployment target (see GeminiBaseURL).
package openai

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	fgerrors "github.com/randalmurphal/codecanvas/pkg/flowgraph/errors"
	"github.com/randalmurphal/codecanvas/pkg/flowgraph/llm"
)

// GeminiBaseURL is Gemini's OpenAI-compatible endpoint.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// DefaultModel is used when neither the client nor the request names one.
const DefaultModel = "gemini-2.5-flash"

// Options configure the client.
type Options struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64

	// MaxRetries is the SDK's own transport retry count. Zero leaves
	// retrying to the workflow's backoff policy.
	MaxRetries int

	HTTPClient *http.Client
}

// Client is an llm.Client backed by openai-go.
type Client struct {
	client *openai.Client
	opts   Options
}

var _ llm.Client = (*Client)(nil)

// New builds a client from option functions.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL: GeminiBaseURL,
		Model:   DefaultModel,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	reqOpts := []option.RequestOption{option.WithMaxRetries(opts.MaxRetries)}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	client := openai.NewClient(reqOpts...)
	return &Client{client: &client, opts: opts}
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, translateError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices returned")
	}
	choice := resp.Choices[0]
	return &llm.CompletionResponse{
		Content: choice.Message.Content,
		Usage: llm.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
		Model:        resp.Model,
		FinishReason: choice.FinishReason,
		Duration:     time.Since(start),
	}, nil
}

// Stream implements llm.Client. The HTTP request is sent on first pull.
func (c *Client) Stream(ctx context.Context, req llm.CompletionRequest) iter.Seq2[llm.StreamChunk, error] {
	return func(yield func(llm.StreamChunk, error) bool) {
		stream := c.client.Chat.Completions.NewStreaming(ctx, c.buildParams(req))
		defer stream.Close()

		for stream.Next() {
			ck := stream.Current()
			chunk := llm.StreamChunk{}
			for _, ch := range ck.Choices {
				chunk.Content += ch.Delta.Content
				if ch.FinishReason != "" {
					chunk.Done = true
				}
			}
			if ck.Usage.TotalTokens > 0 {
				chunk.Usage = &llm.TokenUsage{
					InputTokens:  int(ck.Usage.PromptTokens),
					OutputTokens: int(ck.Usage.CompletionTokens),
					TotalTokens:  int(ck.Usage.TotalTokens),
				}
			}
			if !yield(chunk, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield(llm.StreamChunk{}, translateError(err))
		}
	}
}

func (c *Client) buildParams(req llm.CompletionRequest) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = c.opts.Model
	}
	params := openai.ChatCompletionNewParams{
		Messages:    buildMessages(req),
		Model:       model,
		Temperature: openai.Float(req.Temperature),
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = c.opts.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(maxTokens)
	}
	return params
}

// buildMessages converts llm messages into chat messages. The system prompt
// leads; multimodal user turns become content-part arrays.
func buildMessages(req llm.CompletionRequest) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Text()))
		case llm.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Text()))
		default:
			if len(m.Parts) == 0 {
				messages = append(messages, openai.UserMessage(m.Content))
				continue
			}
			messages = append(messages, openai.UserMessage(buildParts(m.Parts)))
		}
	}
	return messages
}

func buildParts(parts []llm.Part) []openai.ChatCompletionContentPartUnionParam {
	out := make([]openai.ChatCompletionContentPartUnionParam, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case llm.PartImage:
			out = append(out, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: p.DataURI(),
			}))
		default:
			out = append(out, openai.TextContentPart(p.Text))
		}
	}
	return out
}

// translateError maps SDK API errors onto HTTPError so the status code is
// visible to retry classification. Timeouts become TimeoutError.
func translateError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return fgerrors.AsTimeout(err, "openai request")
	}
	msg := strings.TrimSpace(apiErr.Message)
	if msg == "" {
		msg = http.StatusText(apiErr.StatusCode)
	}
	httpErr := &fgerrors.HTTPError{StatusCode: apiErr.StatusCode, Message: msg}
	if apiErr.Request != nil && apiErr.Request.URL != nil {
		httpErr.Endpoint = apiErr.Request.URL.Path
	}
	return fgerrors.ClassifyHTTP(httpErr)
}
