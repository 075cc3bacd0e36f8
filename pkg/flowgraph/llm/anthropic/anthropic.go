// Package anthropic implements llm.Client over the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	fgerrors "github.com/randalmurphal/codecanvas/pkg/flowgraph/errors"
	"github.com/randalmurphal/codecanvas/pkg/flowgraph/llm"
)

// DefaultModel is used when neither the client nor the request names one.
const DefaultModel = "claude-sonnet-4-20250514"

// Options configure the client.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string

	// MaxTokens is required by the API. Default 8192.
	MaxTokens int64

	// MaxRetries is the SDK's own transport retry count.
	MaxRetries int

	HTTPClient *http.Client
}

// Client is an llm.Client backed by anthropic-sdk-go.
type Client struct {
	client *anthropic.Client
	opts   Options
}

var _ llm.Client = (*Client)(nil)

// New builds a client from option functions.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{
		Model:     DefaultModel,
		MaxTokens: 8192,
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
	client := anthropic.NewClient(reqOpts...)
	return &Client{client: &client, opts: opts}
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	resp, err := c.client.Messages.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, translateError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	finishReason := "stop"
	if resp.StopReason != "" {
		finishReason = string(resp.StopReason)
	}
	return &llm.CompletionResponse{
		Content: text.String(),
		Usage: llm.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			TotalTokens:  int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
		Model:        string(resp.Model),
		FinishReason: finishReason,
		Duration:     time.Since(start),
	}, nil
}

// Stream implements llm.Client. Only text deltas produce content.
func (c *Client) Stream(ctx context.Context, req llm.CompletionRequest) iter.Seq2[llm.StreamChunk, error] {
	return func(yield func(llm.StreamChunk, error) bool) {
		stream := c.client.Messages.NewStreaming(ctx, c.buildParams(req))
		defer stream.Close()

		for stream.Next() {
			var chunk llm.StreamChunk
			switch ev := stream.Current().AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok {
					chunk.Content = delta.Text
				}
			case anthropic.MessageDeltaEvent:
				chunk.Usage = &llm.TokenUsage{
					OutputTokens: int(ev.Usage.OutputTokens),
					TotalTokens:  int(ev.Usage.OutputTokens),
				}
			case anthropic.MessageStopEvent:
				chunk.Done = true
			default:
				continue
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

func (c *Client) buildParams(req llm.CompletionRequest) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = c.opts.Model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = c.opts.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   maxTokens,
		Messages:    buildMessages(req.Messages),
		Temperature: anthropic.Float(req.Temperature),
	}

	var system []anthropic.TextBlockParam
	if req.SystemPrompt != "" {
		system = append(system, anthropic.TextBlockParam{Text: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			system = append(system, anthropic.TextBlockParam{Text: m.Text()})
		}
	}
	if len(system) > 0 {
		params.System = system
	}
	return params
}

// buildMessages converts user and assistant turns. System turns are hoisted
// into params.System by buildParams.
func buildMessages(msgs []llm.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			continue
		case llm.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text())))
		default:
			out = append(out, anthropic.NewUserMessage(buildContent(m)...))
		}
	}
	return out
}

func buildContent(m llm.Message) []anthropic.ContentBlockParamUnion {
	if len(m.Parts) == 0 {
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)}
	}
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch p.Type {
		case llm.PartImage:
			blocks = append(blocks, anthropic.NewImageBlockBase64(p.MIMEType, p.Base64()))
		default:
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		}
	}
	return blocks
}

func translateError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return fgerrors.AsTimeout(err, "anthropic request")
	}
	httpErr := &fgerrors.HTTPError{
		StatusCode: apiErr.StatusCode,
		Message:    http.StatusText(apiErr.StatusCode),
	}
	// 529 is Anthropic's overload status.
	if apiErr.StatusCode == 529 {
		httpErr.Message = "overloaded"
	}
	if apiErr.Request != nil && apiErr.Request.URL != nil {
		httpErr.Endpoint = apiErr.Request.URL.Path
	}
	return fgerrors.ClassifyHTTP(httpErr)
}
