package ai

import "context"

// Runtime generates chat completions. The advisory summarizer depends only on
// this interface so hosted and local backends are interchangeable.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers accepted by the advisory_provider setting.
const (
	ProviderNone       = "none"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)
