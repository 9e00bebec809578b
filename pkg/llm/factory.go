package llm

import (
	"fmt"

	"github.com/rojolang/jamloop-go/pkg/jam"
)

// FromConfig selects and builds the musician provider named by the
// configuration, so provider choice never leaks into the session loop.
func FromConfig(cfg *jam.Config) (jam.Musician, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, jam.NewConfigError("OPENAI_API_KEY is not set")
		}
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, WithBPM(cfg.BPM)), nil
	case "openrouter":
		if cfg.OpenRouterKey == "" {
			return nil, jam.NewConfigError("OPENROUTER_API_KEY is not set")
		}
		return NewOpenRouter(cfg.OpenRouterKey, cfg.OpenRouterModel, WithBPM(cfg.BPM)), nil
	case "ollama":
		if cfg.OllamaModel == "" {
			return nil, jam.NewConfigError("OLLAMA_MODEL is not set")
		}
		return NewOllama(cfg.OllamaHost, cfg.OllamaModel, WithBPM(cfg.BPM)), nil
	default:
		return nil, jam.NewConfigError(fmt.Sprintf("unknown LLM provider: %s", cfg.Provider))
	}
}
