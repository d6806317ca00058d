package manager

import (
	"strings"
	"testing"

	"streamd/pkg/types"
)

func TestRenderPrompt(t *testing.T) {
	got, err := RenderPrompt([]types.Message{
		{Role: "system", Content: "Answer in French."},
		{Role: "user", Content: "What is 2+2?"},
		{Role: "assistant", Content: "Quatre."},
		{Role: "tool", Content: "ignored"},
		{Role: "user", Content: "And 3+3?"},
	})
	if err != nil {
		t.Fatalf("RenderPrompt: %v", err)
	}
	want := systemRules +
		"Answer in French.\n" +
		"Question: What is 2+2?\n" +
		"Response: Quatre.\n" +
		"Question: And 3+3?\n" +
		"Response: "
	if got != want {
		t.Fatalf("prompt mismatch:\n got: %q\nwant: %q", got, want)
	}
	if !strings.HasPrefix(got, "System: You are a helpful AI assistant.") {
		t.Fatalf("missing rules block")
	}
}

func TestRenderPrompt_EmptyTranscript(t *testing.T) {
	got, err := RenderPrompt(nil)
	if err != nil {
		t.Fatalf("RenderPrompt: %v", err)
	}
	if got != systemRules+"Response: " {
		t.Fatalf("prompt = %q", got)
	}
}

func TestRenderPromptErrors(t *testing.T) {
	_, err := RenderPrompt([]types.Message{{Role: "user", Content: "\xff"}})
	if !IsPromptFormatting(err) {
		t.Fatalf("invalid utf-8: %v", err)
	}
}
