// Package tokenizer estimates prompt token counts for relayed requests.
// Estimates feed logs, metrics and the audit log; they never gate a request.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/mandalnilabja/chatrelay/internal/types"
)

// Tokenizer counts tokens for chat completion requests.
type Tokenizer interface {
	// CountTokens counts tokens in a text string for a given model.
	CountTokens(text string, model string) (int, error)

	// CountRequest counts prompt tokens for an upstream request.
	CountRequest(req *types.ChatCompletionRequest) (int, error)
}

// Encoding names used by tiktoken.
const (
	EncodingCL100kBase = "cl100k_base" // GPT-4, GPT-3.5-turbo
	EncodingO200kBase  = "o200k_base"  // GPT-4o, o1 models
)

// encodingPrefixes maps model prefixes to encodings, longest prefix first.
var encodingPrefixes = []struct {
	prefix   string
	encoding string
}{
	{"gpt-4o", EncodingO200kBase},
	{"gpt-4.1", EncodingO200kBase},
	{"gpt-3.5", EncodingCL100kBase},
	{"gpt-4", EncodingCL100kBase},
	{"chatgpt", EncodingO200kBase},
	{"o1", EncodingO200kBase},
	{"o3", EncodingO200kBase},
	{"o4", EncodingO200kBase},
}

// resolveEncoding determines the encoding name for a model.
// Unknown models use cl100k_base.
func resolveEncoding(model string) string {
	modelLower := strings.ToLower(model)
	for _, e := range encodingPrefixes {
		if strings.HasPrefix(modelLower, e.prefix) {
			return e.encoding
		}
	}
	return EncodingCL100kBase
}

// loadRetryInterval is how long a failed encoding load is remembered.
// tiktoken-go fetches BPE ranks over the network on first use.
const loadRetryInterval = 5 * time.Minute

// TiktokenTokenizer implements Tokenizer using tiktoken-go.
// Encodings are loaded lazily and shared across requests.
type TiktokenTokenizer struct {
	mu        sync.RWMutex
	encodings map[string]*tiktoken.Tiktoken
	failures  map[string]loadFailure

	load func(name string) (*tiktoken.Tiktoken, error)
	now  func() time.Time
}

type loadFailure struct {
	err error
	at  time.Time
}

// New creates a new TiktokenTokenizer.
func New() *TiktokenTokenizer {
	return &TiktokenTokenizer{
		encodings: make(map[string]*tiktoken.Tiktoken),
		failures:  make(map[string]loadFailure),
		load:      tiktoken.GetEncoding,
		now:       time.Now,
	}
}

// Preload loads the encoding for model so the first request does not pay for it.
func (t *TiktokenTokenizer) Preload(model string) error {
	_, err := t.getEncoding(model)
	return err
}

func (t *TiktokenTokenizer) getEncoding(model string) (*tiktoken.Tiktoken, error) {
	name := resolveEncoding(model)

	t.mu.RLock()
	enc, ok := t.encodings[name]
	failure, failed := t.failures[name]
	t.mu.RUnlock()
	if ok {
		return enc, nil
	}
	if failed && t.now().Sub(failure.at) < loadRetryInterval {
		return nil, failure.err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if enc, ok = t.encodings[name]; ok {
		return enc, nil
	}
	if failure, failed = t.failures[name]; failed && t.now().Sub(failure.at) < loadRetryInterval {
		return nil, failure.err
	}
	enc, err := t.load(name)
	if err != nil {
		err = fmt.Errorf("failed to load encoding %s: %w", name, err)
		t.failures[name] = loadFailure{err: err, at: t.now()}
		return nil, err
	}
	delete(t.failures, name)
	t.encodings[name] = enc
	return enc, nil
}

// CountTokens counts tokens in a text string for a given model.
func (t *TiktokenTokenizer) CountTokens(text string, model string) (int, error) {
	if text == "" {
		return 0, nil
	}
	enc, err := t.getEncoding(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// CountRequest counts prompt tokens for the messages of an upstream request.
func (t *TiktokenTokenizer) CountRequest(req *types.ChatCompletionRequest) (int, error) {
	return countMessages(t, req.DecodeMessages(), req.Model)
}
