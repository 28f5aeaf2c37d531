package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrUnavailable marks transport-level failures: the provider could
	// not be reached or answered with a retryable status. Callers decide
	// how many attempts that is worth.
	ErrUnavailable = errors.New("llm provider unavailable")
	// ErrEmptyCompletion is returned when the provider answered but
	// produced no usable text.
	ErrEmptyCompletion = errors.New("llm returned empty completion")
	// ErrMissingAPIKey is returned at client construction time.
	ErrMissingAPIKey = errors.New("api key is required")
)

// Request is one completion call. System is optional.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Client is a minimal completion interface over one provider+model.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Provider() string
	Model() string
}

// ClientConfig selects and configures a provider client.
type ClientConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// NewClient builds a client for the named provider. The API key falls
// back to the provider's conventional environment variable.
func NewClient(cfg ClientConfig) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", "gemini":
		return NewGeminiClient(cfg.Model, resolveKey(cfg.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY"), cfg.BaseURL)
	case "openai":
		return NewOpenAIClient(cfg.Model, resolveKey(cfg.APIKey, "OPENAI_API_KEY"), cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func resolveKey(explicit string, envNames ...string) string {
	if strings.TrimSpace(explicit) != "" {
		return strings.TrimSpace(explicit)
	}
	for _, name := range envNames {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}
