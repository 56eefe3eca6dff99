package providers

import "testing"

func TestRequest_Validate(t *testing.T) {
	temp := func(v float64) *float64 { return &v }
	tokens := func(v int) *int { return &v }
	msgs := []Message{{Role: RoleUser, Content: "hi"}}

	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"valid", Request{Model: "m", Messages: msgs}, false},
		{"missing model", Request{Messages: msgs}, true},
		{"no messages", Request{Model: "m"}, true},
		{"temperature too high", Request{Model: "m", Messages: msgs, Temperature: temp(2.5)}, true},
		{"negative temperature", Request{Model: "m", Messages: msgs, Temperature: temp(-1)}, true},
		{"zero max tokens", Request{Model: "m", Messages: msgs, MaxTokens: tokens(0)}, true},
		{"max tokens ok", Request{Model: "m", Messages: msgs, MaxTokens: tokens(256)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResponse_Text(t *testing.T) {
	var nilResp *Response
	if nilResp.Text() != "" {
		t.Error("nil response should have empty text")
	}
	if (&Response{}).Text() != "" {
		t.Error("response without choices should have empty text")
	}
	r := &Response{Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: "echo hi"}}}}
	if r.Text() != "echo hi" {
		t.Errorf("Text() = %q", r.Text())
	}
}
