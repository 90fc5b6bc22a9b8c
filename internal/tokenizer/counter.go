package tokenizer

import (
	"strings"

	"github.com/mandalnilabja/chatrelay/internal/types"
)

// Overheads from OpenAI's token counting guide.
const (
	messageOverhead    = 3 // <|start|>role<|message|>
	gpt35Overhead      = 4
	replyPrimingTokens = 3 // <|start|>assistant<|message|>
	nameOverhead       = 1

	imageBaseTokens = 85
	imageTileTokens = 170
	// Without image dimensions a high-detail image is assumed to cover 2x2 tiles.
	imageDefaultTiles = 4
)

// textCounter is the part of Tokenizer the message counter needs.
type textCounter interface {
	CountTokens(text string, model string) (int, error)
}

func countMessages(tc textCounter, messages []types.Message, model string) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	overhead := messageOverhead
	if strings.HasPrefix(strings.ToLower(model), "gpt-3.5") {
		overhead = gpt35Overhead
	}

	total := replyPrimingTokens
	for _, msg := range messages {
		n, err := countMessage(tc, msg, model)
		if err != nil {
			return 0, err
		}
		total += n + overhead
	}
	return total, nil
}

func countMessage(tc textCounter, msg types.Message, model string) (int, error) {
	total, err := tc.CountTokens(msg.Role, model)
	if err != nil {
		return 0, err
	}

	if msg.Name != "" {
		n, err := tc.CountTokens(msg.Name, model)
		if err != nil {
			return 0, err
		}
		total += n + nameOverhead
	}

	if msg.Content.Text != "" {
		n, err := tc.CountTokens(msg.Content.Text, model)
		if err != nil {
			return 0, err
		}
		return total + n, nil
	}

	for _, part := range msg.Content.Parts {
		if part.Type != types.ContentTypeText {
			continue
		}
		n, err := tc.CountTokens(part.Text, model)
		if err != nil {
			return 0, err
		}
		total += n
	}
	for _, img := range msg.Content.Images() {
		total += imageTokens(img)
	}
	return total, nil
}

// imageTokens estimates the cost of one image part.
func imageTokens(img types.ImageURL) int {
	if strings.EqualFold(img.Detail, "low") {
		return imageBaseTokens
	}
	return imageBaseTokens + imageDefaultTiles*imageTileTokens
}
