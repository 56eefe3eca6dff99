package providers

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIURL is the public OpenAI API root.
const DefaultOpenAIURL = "https://api.openai.com/v1"

// OpenAIProvider calls OpenAI or any OpenAI-compatible chat endpoint.
type OpenAIProvider struct {
	name    string
	baseURL string
	client  openai.Client
}

// NewOpenAI creates a new OpenAI provider. baseURL overrides the API
// endpoint (pass "" for the default); extra options go to the SDK client.
func NewOpenAI(apiKey, baseURL string, extra ...option.RequestOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	resolvedBase := DefaultOpenAIURL
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
		resolvedBase = baseURL
	}
	opts = append(opts, extra...)
	return &OpenAIProvider{
		name:    "openai",
		baseURL: resolvedBase,
		client:  openai.NewClient(opts...),
	}, nil
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string { return p.name }

// BaseURL returns the API root requests are sent to.
func (p *OpenAIProvider) BaseURL() string { return p.baseURL }

// Complete sends a chat completion request to OpenAI.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Messages: buildOpenAIMessages(req.Messages),
		Model:    req.Model,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*req.MaxTokens))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		ID:       completion.ID,
		Model:    completion.Model,
		Provider: p.name,
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	for i, choice := range completion.Choices {
		resp.Choices = append(resp.Choices, Choice{
			Index: i,
			Message: Message{
				Role:    string(choice.Message.Role),
				Content: choice.Message.Content,
			},
			FinishReason: string(choice.FinishReason),
		})
	}
	return resp, nil
}

// buildOpenAIMessages converts Messages to the openai-go SDK union type.
func buildOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
