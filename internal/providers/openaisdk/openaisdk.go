// Package openaisdk implements providers.Provider against OpenAI's
// official Go SDK v2, as an alternative to the hand-rolled HTTP client in
// internal/providers/openai.go for operators on the primary OpenAI API.
package openaisdk

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/superbrain/gateway/internal/providers"
)

// Provider wraps openai.Client.
type Provider struct {
	client       openai.Client
	defaultModel string
}

// New builds a Provider authenticated with apiKey.
func New(apiKey, defaultModel string) *Provider {
	if defaultModel == "" {
		defaultModel = "gpt-4.1"
	}
	return &Provider{
		client:       openai.NewClient(option.WithAPIKey(apiKey)),
		defaultModel: defaultModel,
	}
}

func (p *Provider) Name() string         { return "openai-sdk" }
func (p *Provider) DefaultModel() string { return p.defaultModel }

func (p *Provider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	params := buildParams(model, req)
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openaisdk: chat: %w", err)
	}
	return toChatResponse(resp), nil
}

func (p *Provider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	params := buildParams(model, req)
	stream := p.client.Chat.Completions.NewStreaming(ctx, params)

	var content string
	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				content += choice.Delta.Content
				onChunk(providers.StreamChunk{Content: choice.Delta.Content})
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openaisdk: stream: %w", err)
	}
	onChunk(providers.StreamChunk{Done: true})

	return &providers.ChatResponse{Content: content, FinishReason: "stop"}, nil
}

func buildParams(model string, req providers.ChatRequest) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "user":
			messages = append(messages, openai.UserMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		}
	}

	return openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
}

func toChatResponse(resp *openai.ChatCompletion) *providers.ChatResponse {
	out := &providers.ChatResponse{FinishReason: "stop"}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.FinishReason = string(resp.Choices[0].FinishReason)
	}
	out.Usage = &providers.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	return out
}
