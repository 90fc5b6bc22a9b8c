// Package types defines the relay's request and response bodies and the
// subset of the OpenAI chat-completions wire format it reads.
package types

import "encoding/json"

// Message is a chat message as sent by the client. The relay forwards raw
// message JSON; this type is only decoded to estimate prompt tokens.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content,omitempty"`
	Name    string  `json:"name,omitempty"`
}

// Content is message content that can be a string or an array of parts.
type Content struct {
	Text  string
	Parts []ContentPart
}

// UnmarshalJSON accepts both string and array formats. Anything else
// (null, objects) leaves the content empty.
func (c *Content) UnmarshalJSON(data []byte) error {
	c.Text, c.Parts = "", nil

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.Text = text
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err == nil {
		c.Parts = parts
	}
	return nil
}

// Images returns the image parts of a multimodal message.
func (c Content) Images() []ImageURL {
	var images []ImageURL
	for _, part := range c.Parts {
		if part.Type == ContentTypeImageURL && part.ImageURL != nil {
			images = append(images, *part.ImageURL)
		}
	}
	return images
}

// String returns the text content, concatenating text parts if multimodal.
func (c Content) String() string {
	if c.Text != "" {
		return c.Text
	}
	var result string
	for _, part := range c.Parts {
		if part.Type == ContentTypeText {
			result += part.Text
		}
	}
	return result
}

// ContentPart is a single part of multimodal content.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// Content type constants
const (
	ContentTypeText     = "text"
	ContentTypeImageURL = "image_url"
)

// ImageURL references an image in multimodal content.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"` // "auto", "low", "high"
}
