package providers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

type fakeBedrock struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeBedrock) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestBedrockProvider_Complete(t *testing.T) {
	fake := &fakeBedrock{body: `{"id":"msg_1","content":[{"type":"text","text":"ps aux"}],"stop_reason":"end_turn","usage":{"input_tokens":30,"output_tokens":4}}`}
	p := newBedrockWithClient(fake, BedrockOptions{Region: "eu-west-1"})

	resp, err := p.Complete(context.Background(), Request{
		Model: "anthropic.claude-3-5-haiku-20241022-v1:0",
		Messages: []Message{
			{Role: RoleSystem, Content: "answer with a command"},
			{Role: RoleUser, Content: "running processes"},
		},
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if resp.Text() != "ps aux" {
		t.Errorf("Text() = %q", resp.Text())
	}
	if resp.Usage.TotalTokens != 34 {
		t.Errorf("TotalTokens = %d", resp.Usage.TotalTokens)
	}

	var sent bedrockAnthropicRequest
	if err := json.Unmarshal(fake.input.Body, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent.System != "answer with a command" {
		t.Errorf("system = %q", sent.System)
	}
	if len(sent.Messages) != 1 || sent.Messages[0].Role != RoleUser {
		t.Errorf("messages = %+v", sent.Messages)
	}
	if sent.MaxTokens != 1024 {
		t.Errorf("max_tokens = %d", sent.MaxTokens)
	}
	if p.BaseURL() != "https://bedrock-runtime.eu-west-1.amazonaws.com" {
		t.Errorf("BaseURL() = %q", p.BaseURL())
	}
}

func TestBedrockProvider_UnsupportedModel(t *testing.T) {
	p := newBedrockWithClient(&fakeBedrock{}, BedrockOptions{})
	_, err := p.Complete(context.Background(), Request{Model: "amazon.titan-text-lite-v1", Messages: []Message{{Role: RoleUser, Content: "x"}}})
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("error = %v", err)
	}
}

func TestBedrockProvider_InvokeError(t *testing.T) {
	errThrottled := errors.New("ThrottlingException")
	p := newBedrockWithClient(&fakeBedrock{err: errThrottled}, BedrockOptions{})
	_, err := p.Complete(context.Background(), Request{Model: "anthropic.claude-3-haiku-20240307-v1:0", Messages: []Message{{Role: RoleUser, Content: "x"}}})
	if !errors.Is(err, errThrottled) {
		t.Fatalf("error = %v", err)
	}
}
