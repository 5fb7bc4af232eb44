package factory

import (
	"fmt"

	"github.com/kiranshivaraju/pulsehound/internal/ai/anthropic"
	"github.com/kiranshivaraju/pulsehound/internal/ai/ollama"
	"github.com/kiranshivaraju/pulsehound/internal/ai/openai"
	"github.com/kiranshivaraju/pulsehound/internal/config"
	"github.com/kiranshivaraju/pulsehound/pkg/models"
)

// NewChain constructs the ordered provider list (primary first, then
// fallback) from config. Called once at server startup. An empty chain is
// valid: the dispatcher then aborts analyses without hot-looping.
func NewChain(cfg config.AIConfig) ([]models.AIProvider, error) {
	var chain []models.AIProvider
	for _, name := range cfg.Providers() {
		p, err := newProvider(name, cfg)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
	}
	return chain, nil
}

func newProvider(name string, cfg config.AIConfig) (models.AIProvider, error) {
	switch name {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY")
		}
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		if cfg.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY")
		}
		return anthropic.NewProvider(cfg.Anthropic), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, openai, anthropic", name)
	}
}
