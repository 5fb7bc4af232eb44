package models

import "context"

// AIProvider is the text-generation capability used for root-cause analysis.
// Callers depend on this interface, never on a concrete provider.
type AIProvider interface {
	// Analyze turns a structured anomaly prompt into a root-cause narrative.
	Analyze(ctx context.Context, prompt string) (string, error)
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string
}
