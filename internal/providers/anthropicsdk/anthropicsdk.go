// Package anthropicsdk implements providers.Provider against Anthropic's
// official Go SDK, for operators who want the maintained client (retries,
// typed errors, beta header plumbing) instead of the gateway's hand-rolled
// HTTP client in internal/providers/anthropic.go.
package anthropicsdk

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/superbrain/gateway/internal/providers"
)

// Provider wraps anthropic.Client.
type Provider struct {
	client       anthropic.Client
	defaultModel string
}

// New builds a Provider authenticated with apiKey.
func New(apiKey, defaultModel string) *Provider {
	if defaultModel == "" {
		defaultModel = "claude-sonnet-4-5-20250929"
	}
	return &Provider{
		client:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		defaultModel: defaultModel,
	}
}

func (p *Provider) Name() string        { return "anthropic-sdk" }
func (p *Provider) DefaultModel() string { return p.defaultModel }

func (p *Provider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	params := buildParams(model, req)
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropicsdk: chat: %w", err)
	}
	return toChatResponse(msg), nil
}

func (p *Provider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	params := buildParams(model, req)
	stream := p.client.Messages.NewStreaming(ctx, params)

	var content string
	for stream.Next() {
		event := stream.Current()
		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if text := delta.Delta.Text; text != "" {
				content += text
				onChunk(providers.StreamChunk{Content: text})
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropicsdk: stream: %w", err)
	}
	onChunk(providers.StreamChunk{Done: true})

	return &providers.ChatResponse{Content: content, FinishReason: "stop"}, nil
}

func buildParams(model string, req providers.ChatRequest) anthropic.MessageNewParams {
	var messages []anthropic.MessageParam
	var system string
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = m.Content
		case "user":
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: 4096,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

func toChatResponse(msg *anthropic.Message) *providers.ChatResponse {
	resp := &providers.ChatResponse{FinishReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			resp.Content += text.Text
		}
	}
	if msg.Usage.InputTokens > 0 || msg.Usage.OutputTokens > 0 {
		resp.Usage = &providers.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		}
	}
	return resp
}
