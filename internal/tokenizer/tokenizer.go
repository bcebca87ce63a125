// Package tokenizer estimates token counts for prompt content.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates token counts for text content.
type Counter interface {
	Name() string
	CountString(input string) (int, error)
}

const defaultEncodingName = "cl100k_base"

type encodingCounter struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewCounter returns a Counter for the requested model, falling back to the
// default encoding when the model is unknown.
func NewCounter(modelName string) (Counter, error) {
	trimmedModel := strings.TrimSpace(modelName)
	if trimmedModel != "" {
		if encoding, encodingError := tiktoken.EncodingForModel(trimmedModel); encodingError == nil && encoding != nil {
			return encodingCounter{encoding: encoding, name: trimmedModel}, nil
		}
	}
	fallbackEncoding, fallbackError := tiktoken.GetEncoding(defaultEncodingName)
	if fallbackError != nil {
		return nil, fmt.Errorf("initialize fallback tokenizer: %w", fallbackError)
	}
	return encodingCounter{encoding: fallbackEncoding, name: defaultEncodingName}, nil
}

func (counter encodingCounter) Name() string {
	return counter.name
}

func (counter encodingCounter) CountString(input string) (int, error) {
	if counter.encoding == nil {
		return 0, fmt.Errorf("tokenizer encoding not initialized")
	}
	return len(counter.encoding.Encode(input, nil, nil)), nil
}
