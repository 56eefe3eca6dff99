package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
)

func TestNewOpenAI(t *testing.T) {
	p, err := NewOpenAI("sk-test-key", "")
	if err != nil {
		t.Fatalf("NewOpenAI() returned error: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("Name() = %q, want openai", p.Name())
	}
	if p.BaseURL() != DefaultOpenAIURL {
		t.Errorf("BaseURL() = %q", p.BaseURL())
	}
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	if _, err := NewOpenAI("", ""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-42",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "df -h"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 2, "total_tokens": 22}
		}`))
	}))
	defer srv.Close()

	p, err := NewOpenAI("sk-test-key", srv.URL+"/v1/", option.WithHTTPClient(srv.Client()), option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("NewOpenAI() error: %v", err)
	}
	temp := 0.2
	resp, err := p.Complete(context.Background(), Request{
		Model:       "gpt-4o-mini",
		Temperature: &temp,
		Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "disk space"},
		},
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if resp.Text() != "df -h" {
		t.Errorf("Text() = %q", resp.Text())
	}
	if resp.ID != "chatcmpl-42" || resp.Usage.TotalTokens != 22 {
		t.Errorf("unexpected response %+v", resp)
	}
	if got["model"] != "gpt-4o-mini" {
		t.Errorf("request model = %v", got["model"])
	}
	msgs, _ := got["messages"].([]interface{})
	if len(msgs) != 2 {
		t.Fatalf("request messages = %v", got["messages"])
	}
	first, _ := msgs[0].(map[string]interface{})
	if first["role"] != "system" {
		t.Errorf("first message role = %v", first["role"])
	}
}

func TestBuildOpenAIMessages_UnknownRoleIsUser(t *testing.T) {
	out := buildOpenAIMessages([]Message{{Role: "tool-output", Content: "x"}})
	if len(out) != 1 || out[0].OfUser == nil {
		t.Fatalf("expected a user message, got %+v", out)
	}
}
