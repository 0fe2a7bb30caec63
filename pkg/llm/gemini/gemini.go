// Package gemini implements llm.Provider on Google's generative-language API
// via google.golang.org/genai.
//
// This is the default storymark backend: it is the only one that exposes a
// thinking-token budget, and it reports the finish-reason / safety-rating /
// token-usage metadata the session layer uses to explain empty completions.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/kverner/storymark/pkg/llm"
)

// Compile-time assertion that Provider satisfies llm.Provider.
var _ llm.Provider = (*Provider)(nil)

const defaultModel = "gemini-2.5-pro"

// Option is a functional option for configuring a [Provider].
type Option func(*Provider)

// WithModel selects the Gemini model. Default: "gemini-2.5-pro".
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// Provider implements llm.Provider for the Gemini API. It is safe for
// concurrent use.
type Provider struct {
	client *genai.Client
	model  string
}

// New constructs a Gemini-backed [Provider]. An empty apiKey falls back to
// the GEMINI_API_KEY / GOOGLE_API_KEY environment variables (SDK behaviour).
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	p := &Provider{client: client, model: defaultModel}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "gemini" }

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	contents, cfg := p.buildRequest(req)

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}

	out := &llm.CompletionResponse{
		Content: resp.Text(),
		Usage:   usageFrom(resp),
	}
	if len(resp.Candidates) > 0 {
		out.FinishReason = normaliseFinish(resp.Candidates[0].FinishReason)
		out.SafetyBlocked = out.FinishReason == llm.FinishSafety
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		out.SafetyBlocked = true
		out.FinishReason = llm.FinishSafety
	}

	if out.Content == "" {
		return nil, &llm.EmptyError{
			FinishReason:  out.FinishReason,
			SafetyBlocked: out.SafetyBlocked,
			Usage:         out.Usage,
		}
	}
	return out, nil
}

// StreamCompletion implements llm.Provider.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	contents, cfg := p.buildRequest(req)

	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)

		var finish string
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, cfg) {
			if err != nil {
				select {
				case ch <- llm.Chunk{FinishReason: llm.FinishError, Text: err.Error()}:
				case <-ctx.Done():
				}
				return
			}

			out := llm.Chunk{Text: resp.Text()}
			if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
				finish = normaliseFinish(resp.Candidates[0].FinishReason)
			}

			if out.Text == "" && finish == "" {
				continue
			}
			select {
			case ch <- out:
			case <-ctx.Done():
				return
			}
		}

		if finish == "" {
			finish = llm.FinishStop
		}
		select {
		case ch <- llm.Chunk{FinishReason: finish}:
		case <-ctx.Done():
		}
	}()

	return ch, nil
}

// buildRequest converts a CompletionRequest into genai contents and config.
func (p *Provider) buildRequest(req llm.CompletionRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	var contents []*genai.Content
	for _, m := range req.Messages {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.Role(role)))
	}

	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Temperature != 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.TopP != 0 {
		cfg.TopP = genai.Ptr(float32(req.TopP))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(req.ThinkingBudget)),
		}
	}
	return contents, cfg
}

// usageFrom extracts token accounting from a response, tolerating absent
// usage metadata.
func usageFrom(resp *genai.GenerateContentResponse) llm.Usage {
	if resp.UsageMetadata == nil {
		return llm.Usage{}
	}
	u := resp.UsageMetadata
	return llm.Usage{
		PromptTokens:     int(u.PromptTokenCount),
		CompletionTokens: int(u.CandidatesTokenCount),
		ThoughtTokens:    int(u.ThoughtsTokenCount),
		TotalTokens:      int(u.TotalTokenCount),
	}
}

// normaliseFinish maps genai finish reasons onto the llm package constants.
func normaliseFinish(fr genai.FinishReason) string {
	switch fr {
	case genai.FinishReasonStop:
		return llm.FinishStop
	case genai.FinishReasonMaxTokens:
		return llm.FinishLength
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist:
		return llm.FinishSafety
	case "":
		return ""
	default:
		return string(fr)
	}
}
