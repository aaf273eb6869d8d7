// Package geminisdk implements providers.Provider against Google's
// official google.golang.org/genai SDK.
package geminisdk

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/superbrain/gateway/internal/providers"
)

// Provider wraps a genai.Client.
type Provider struct {
	client       *genai.Client
	defaultModel string
}

// New builds a Provider authenticated with apiKey against the Gemini
// Developer API (not Vertex AI).
func New(ctx context.Context, apiKey, defaultModel string) (*Provider, error) {
	if defaultModel == "" {
		defaultModel = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("geminisdk: create client: %w", err)
	}
	return &Provider{client: client, defaultModel: defaultModel}, nil
}

func (p *Provider) Name() string         { return "gemini-sdk" }
func (p *Provider) DefaultModel() string { return p.defaultModel }

func (p *Provider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	contents, sys := buildContents(req)
	cfg := &genai.GenerateContentConfig{}
	if sys != "" {
		cfg.SystemInstruction = genai.NewContentFromText(sys, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("geminisdk: generate: %w", err)
	}
	return toChatResponse(resp), nil
}

func (p *Provider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	contents, sys := buildContents(req)
	cfg := &genai.GenerateContentConfig{}
	if sys != "" {
		cfg.SystemInstruction = genai.NewContentFromText(sys, genai.RoleUser)
	}

	var content string
	for chunk, err := range p.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			return nil, fmt.Errorf("geminisdk: stream: %w", err)
		}
		text := chunk.Text()
		if text != "" {
			content += text
			onChunk(providers.StreamChunk{Content: text})
		}
	}
	onChunk(providers.StreamChunk{Done: true})

	return &providers.ChatResponse{Content: content, FinishReason: "stop"}, nil
}

func buildContents(req providers.ChatRequest) ([]*genai.Content, string) {
	var contents []*genai.Content
	var system string
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = m.Content
		case "user":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		}
	}
	return contents, system
}

func toChatResponse(resp *genai.GenerateContentResponse) *providers.ChatResponse {
	out := &providers.ChatResponse{Content: resp.Text(), FinishReason: "stop"}
	if resp.UsageMetadata != nil {
		out.Usage = &providers.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out
}
