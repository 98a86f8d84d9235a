// File: api/schemas/llm.go
package schemas

// GenerationOptions tunes a single LLM generation call.
type GenerationOptions struct {
	Temperature     float32
	ForceJSONFormat bool
}

// GenerationRequest is a provider-agnostic prompt pair.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Options      GenerationOptions
}
