package server

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/randalmurphal/codecanvas/pkg/flowgraph/llm"
	"github.com/randalmurphal/codecanvas/pkg/workflow"
)

// Request limits.
const (
	MaxPromptLength = 5000
	MaxImageBytes   = 10 * 1024 * 1024

	// maxBodyBytes bounds the JSON body: a base64 image of MaxImageBytes plus
	// prompt and history.
	maxBodyBytes = 16 * 1024 * 1024
)

var imageMagic = [][]byte{
	{0xFF, 0xD8, 0xFF},       // JPEG
	{0x89, 0x50, 0x4E, 0x47}, // PNG
	{0x47, 0x49, 0x46},       // GIF
}

// GenerateRequest is the JSON body of POST /api/generate.
type GenerateRequest struct {
	Prompt      string           `json:"prompt"`
	Base64Image string           `json:"base64Image,omitempty"`
	Framework   string           `json:"framework,omitempty"`
	History     []HistoryMessage `json:"history,omitempty"`
}

// HistoryMessage is one prior conversation turn.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ValidationError rejects a request before it reaches the workflow.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks the body and converts it to a workflow request.
func (g GenerateRequest) Validate() (workflow.Request, error) {
	prompt := strings.TrimSpace(g.Prompt)
	if prompt == "" {
		return workflow.Request{}, invalid("prompt", "prompt must not be empty")
	}
	if n := utf8.RuneCountInString(prompt); n > MaxPromptLength {
		return workflow.Request{}, invalid("prompt", "prompt must be at most %d characters", MaxPromptLength)
	}

	image, err := decodeImage(g.Base64Image)
	if err != nil {
		return workflow.Request{}, err
	}

	framework, err := workflow.ParseFramework(g.Framework)
	if err != nil {
		return workflow.Request{}, &ValidationError{Field: "framework", Message: err.Error()}
	}

	history := make([]workflow.Turn, 0, len(g.History))
	for i, msg := range g.History {
		role := llm.Role(msg.Role)
		if role != llm.RoleUser && role != llm.RoleAssistant {
			return workflow.Request{}, invalid("history", "history[%d].role must be 'user' or 'assistant'", i)
		}
		history = append(history, workflow.Turn{Role: role, Content: msg.Content})
	}

	return workflow.Request{
		Prompt:    prompt,
		Image:     image,
		Framework: framework,
		History:   history,
	}, nil
}

// decodeImage decodes an optional base64 image. A data URI prefix is
// accepted and stripped.
func decodeImage(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, nil
	}
	if strings.HasPrefix(encoded, "data:") {
		if i := strings.IndexByte(encoded, ','); i >= 0 {
			encoded = encoded[i+1:]
		}
	}
	if base64.StdEncoding.DecodedLen(len(encoded)) > MaxImageBytes+2 {
		return nil, invalid("base64Image", "image too large. Maximum size is 10MB")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, invalid("base64Image", "invalid base64 image data")
	}
	if len(data) > MaxImageBytes {
		return nil, invalid("base64Image", "image too large. Maximum size is 10MB")
	}
	for _, magic := range imageMagic {
		if bytes.HasPrefix(data, magic) {
			return data, nil
		}
	}
	return nil, invalid("base64Image", "invalid image format. Only JPEG, PNG, and GIF are supported")
}
