package port

import "context"

// TextGenerator produces analysis text from a system and a user prompt.
type TextGenerator interface {
	// Generate returns the model's reply to userPrompt under systemPrompt.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
