package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNormalizeFinishReason(t *testing.T) {
	tests := []struct {
		in   string
		want FinishReason
	}{
		{"stop", FinishStop},
		{"tool_calls", FinishToolCall},
		{"function_call", FinishToolCall},
		{"tool_call", FinishToolCall},
		{"length", FinishReason("length")},
		{"", FinishReason("")},
	}
	for _, tt := range tests {
		if got := NormalizeFinishReason(tt.in); got != tt.want {
			t.Errorf("NormalizeFinishReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConvertMessagesToolCall(t *testing.T) {
	msgs := []Message{
		SystemMessage("sys"),
		UserMessage("weather?"),
		{Role: RoleAssistant, ToolCall: &ToolCall{ID: "call_1", Name: "get_current_weather", Arguments: `{"location":"Paris"}`}},
		ToolResultMessage("call_1", "get_current_weather", `{"temperature":"60"}`),
	}

	out := convertMessages(msgs)
	if len(out) != 4 {
		t.Fatalf("got %d messages, want 4", len(out))
	}
	assistant := out[2].OfAssistant
	if assistant == nil {
		t.Fatal("message 2 should be an assistant param")
	}
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(assistant.ToolCalls))
	}
	if got := assistant.ToolCalls[0].Function.Arguments; got != `{"location":"Paris"}` {
		t.Errorf("arguments = %q, raw text should pass through", got)
	}
	if out[3].OfTool == nil {
		t.Error("message 3 should be a tool param")
	}
}

func TestConvertMessagesEmptyArguments(t *testing.T) {
	out := convertMessages([]Message{
		{Role: RoleAssistant, ToolCall: &ToolCall{ID: "c", Name: "get_user_information"}},
	})
	if got := out[0].OfAssistant.ToolCalls[0].Function.Arguments; got != "{}" {
		t.Errorf("arguments = %q, want {}", got)
	}
}

func sseServer(t *testing.T, chunks []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if body["stream"] != true {
			t.Errorf("stream = %v, want true", body["stream"])
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestStreamDeltas(t *testing.T) {
	chunks := []string{
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"},"finish_reason":null}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":null}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
	}
	srv := sseServer(t, chunks)
	defer srv.Close()

	c := NewClient(srv.URL+"/", "test", "test-model")
	stream, err := c.Stream(context.Background(), Request{Messages: []Message{UserMessage("hi")}})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	var content string
	var role Role
	var finish FinishReason
	for {
		d, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if d.Role != "" {
			role = d.Role
		}
		content += d.Content
		if d.FinishReason != "" {
			finish = d.FinishReason
		}
	}

	if role != RoleAssistant {
		t.Errorf("role = %q, want assistant", role)
	}
	if content != "Hello" {
		t.Errorf("content = %q, want Hello", content)
	}
	if finish != FinishStop {
		t.Errorf("finish = %q, want stop", finish)
	}
}

func TestStreamToolCallDeltas(t *testing.T) {
	chunks := []string{
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_current_weather","arguments":""}}]},"finish_reason":null}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"location\":"}}]},"finish_reason":null}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"Paris\"}"}}]},"finish_reason":null}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	}
	srv := sseServer(t, chunks)
	defer srv.Close()

	c := NewClient(srv.URL+"/", "test", "test-model")
	stream, err := c.Stream(context.Background(), Request{
		Messages: []Message{UserMessage("weather in Paris?")},
		Tools: []ToolDef{{
			Name:        "get_current_weather",
			Description: "Get the current weather in a given location",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		}},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	var name, args, id string
	var finish FinishReason
	for {
		d, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if d.ToolCall != nil {
			if d.ToolCall.ID != "" {
				id = d.ToolCall.ID
			}
			name += d.ToolCall.Name
			args += d.ToolCall.Arguments
		}
		if d.FinishReason != "" {
			finish = d.FinishReason
		}
	}

	if id != "call_1" {
		t.Errorf("id = %q, want call_1", id)
	}
	if name != "get_current_weather" {
		t.Errorf("name = %q", name)
	}
	if args != `{"location":"Paris"}` {
		t.Errorf("args = %q", args)
	}
	if finish != FinishToolCall {
		t.Errorf("finish = %q, want tool_call", finish)
	}
}
