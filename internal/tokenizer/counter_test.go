package tokenizer

import (
	"strings"
	"testing"

	"github.com/mandalnilabja/chatrelay/internal/types"
)

// wordCounter counts whitespace-separated words so message accounting can be
// tested without loading a BPE encoding.
type wordCounter struct{}

func (wordCounter) CountTokens(text string, model string) (int, error) {
	return len(strings.Fields(text)), nil
}

func TestCountMessages(t *testing.T) {
	tests := []struct {
		name     string
		messages []types.Message
		model    string
		want     int
	}{
		{
			name:     "no messages",
			messages: nil,
			model:    "gpt-4o",
			want:     0,
		},
		{
			name: "single text message",
			messages: []types.Message{
				{Role: "user", Content: types.Content{Text: "hello there friend"}},
			},
			model: "gpt-4o",
			// priming 3 + overhead 3 + role 1 + content 3
			want: 10,
		},
		{
			name: "gpt-3.5 overhead",
			messages: []types.Message{
				{Role: "user", Content: types.Content{Text: "hi"}},
			},
			model: "gpt-3.5-turbo",
			want:  3 + 4 + 1 + 1,
		},
		{
			name: "name field",
			messages: []types.Message{
				{Role: "user", Name: "alice", Content: types.Content{Text: "hi"}},
			},
			model: "gpt-4o",
			want:  3 + 3 + 1 + 1 + 1 + 1,
		},
		{
			name: "multimodal with images",
			messages: []types.Message{
				{Role: "user", Content: types.Content{Parts: []types.ContentPart{
					{Type: types.ContentTypeText, Text: "what is this"},
					{Type: types.ContentTypeImageURL, ImageURL: &types.ImageURL{URL: "data:image/png;base64,AAAA", Detail: "low"}},
					{Type: types.ContentTypeImageURL, ImageURL: &types.ImageURL{URL: "https://example.test/cat.png"}},
				}}},
			},
			model: "gpt-4o",
			want:  3 + 3 + 1 + 3 + 85 + (85 + 4*170),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := countMessages(wordCounter{}, tt.messages, tt.model)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("countMessages() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestImageTokens(t *testing.T) {
	if got := imageTokens(types.ImageURL{Detail: "LOW"}); got != 85 {
		t.Errorf("low detail = %d, want 85", got)
	}
	if got := imageTokens(types.ImageURL{Detail: "high"}); got != 765 {
		t.Errorf("high detail = %d, want 765", got)
	}
}
