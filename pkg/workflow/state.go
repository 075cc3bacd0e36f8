// Package workflow is the CodeCanvas generation pipeline: a fixed flowgraph
// that classifies a prompt as chat or code generation, streams the reply from
// a generation client, retries transient code-generation failures with
// backoff, and frames the result as a single CHAT:/CODE:/ERROR: stream.
package workflow

import (
	"fmt"
	"strings"

	fgerrors "github.com/randalmurphal/codecanvas/pkg/flowgraph/errors"
	"github.com/randalmurphal/codecanvas/pkg/flowgraph/llm"
)

// Framework is the target UI framework for generated code.
type Framework string

const (
	FrameworkHTML   Framework = "html"
	FrameworkReact  Framework = "react"
	FrameworkVue    Framework = "vue"
	FrameworkNextJS Framework = "nextjs"
)

// DefaultFramework is used when a request names none.
const DefaultFramework = FrameworkReact

// Frameworks lists the accepted frameworks in display order.
func Frameworks() []Framework {
	return []Framework{FrameworkHTML, FrameworkReact, FrameworkVue, FrameworkNextJS}
}

// ParseFramework validates a framework name. Empty means DefaultFramework.
func ParseFramework(name string) (Framework, error) {
	if name == "" {
		return DefaultFramework, nil
	}
	for _, f := range Frameworks() {
		if string(f) == name {
			return f, nil
		}
	}
	names := make([]string, 0, 4)
	for _, f := range Frameworks() {
		names = append(names, string(f))
	}
	return "", fmt.Errorf("invalid framework. Must be one of: %s", strings.Join(names, ", "))
}

// Intent is the classified purpose of a request.
type Intent string

const (
	IntentChat           Intent = "chat"
	IntentCodeGeneration Intent = "code_generation"
)

// Turn is one prior conversation message. Role is user or assistant.
type Turn struct {
	Role    llm.Role
	Content string
}

// Request is a validated generation request.
type Request struct {
	// ID becomes the run id. Generated when empty.
	ID string

	Prompt    string
	Image     []byte
	Framework Framework
	History   []Turn
}

// State is threaded through the graph for one request. Stages receive it by
// value and return the updated copy.
type State struct {
	Prompt            string
	Image             []byte
	Framework         Framework
	SystemInstruction string

	// History is read-only for every stage.
	History []Turn

	// ModelInputParts is built by prepare_code_prompt.
	ModelInputParts []llm.Part

	// Intent is set once by classify_intent.
	Intent Intent

	// At most one of ChatOutput and CodeOutput is set.
	ChatOutput *llm.Stream
	CodeOutput *llm.Stream

	// ErrorMessage holds the last generation failure.
	ErrorMessage string

	// Err is the failure behind ErrorMessage when a stage produced one.
	// It carries the category providers attach to their errors.
	Err error

	// RetryCount counts retries of generate_code spent so far.
	RetryCount int
}

// NewState builds the initial state for req, composing the system
// instruction from its framework.
func NewState(req Request) State {
	framework := req.Framework
	if framework == "" {
		framework = DefaultFramework
	}
	return State{
		Prompt:            req.Prompt,
		Image:             req.Image,
		Framework:         framework,
		SystemInstruction: SystemInstruction(framework),
		History:           req.History,
	}
}

// HasImage reports whether the request carried an image.
func (s State) HasImage() bool {
	return len(s.Image) > 0
}

// TerminalError returns the user-visible failure text of a terminal state,
// or "" when an output stream was produced. Code-generation failures read
// "An error occurred: <message>"; chat failures are the bare message.
func (s State) TerminalError() string {
	if s.ChatOutput != nil || s.CodeOutput != nil || s.ErrorMessage == "" {
		return ""
	}
	if s.Intent == IntentCodeGeneration {
		return "An error occurred: " + s.ErrorMessage
	}
	return s.ErrorMessage
}

// ErrorCategory classifies the last failure. Err decides when set; a state
// carrying only ErrorMessage is classified by its text.
func (s State) ErrorCategory() fgerrors.Category {
	if s.Err != nil {
		return fgerrors.Categorize(s.Err)
	}
	return fgerrors.CategorizeMessage(s.ErrorMessage)
}

// historyMessages converts History to llm messages in order. Turns with
// other roles are skipped.
func historyMessages(history []Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+1)
	for _, turn := range history {
		switch turn.Role {
		case llm.RoleUser, llm.RoleAssistant:
			msgs = append(msgs, llm.Message{Role: turn.Role, Content: turn.Content})
		}
	}
	return msgs
}
