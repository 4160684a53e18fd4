package domain

import "context"

// Pipeline stages that talk to the chat model.
const (
	StageRoute    = "route"
	StageGenerate = "generate"
	StageValidate = "validate"
	StageCorrect  = "correct"
)

// CompletionRequest is one single-turn exchange: an optional system
// instruction followed by one user message.
type CompletionRequest struct {
	Stage  string
	System string
	Prompt string
	// Schema, when set, is a value whose type describes the expected JSON reply.
	// Providers with structured output constrain the reply to it.
	Schema any
}

// ChatModel completes single-turn prompts.
type ChatModel interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
