package config

import (
	"errors"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultProvider             = "gemini"
	defaultGeminiModel          = "gemini-2.5-flash"
	defaultOpenAIModel          = "gpt-4o-mini"
	defaultFailingThreshold     = 50.0
	defaultExceptionalThreshold = 90.0
	defaultRetryAttempts        = 3
)

type Settings struct {
	Provider  string            `toml:"provider"`
	Providers ProvidersSettings `toml:"providers"`
	Grading   GradingSettings   `toml:"grading"`
	Logging   LoggingSettings   `toml:"logging"`
}

type ProvidersSettings struct {
	Gemini ProviderSettings `toml:"gemini"`
	OpenAI ProviderSettings `toml:"openai"`
}

type ProviderSettings struct {
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

type GradingSettings struct {
	FailingThreshold     float64 `toml:"failing_threshold"`
	ExceptionalThreshold float64 `toml:"exceptional_threshold"`
	RetryAttempts        int     `toml:"retry_attempts"`
}

type LoggingSettings struct {
	Level string `toml:"level"`
}

func DefaultSettings() Settings {
	return Settings{
		Provider: defaultProvider,
		Providers: ProvidersSettings{
			Gemini: ProviderSettings{Model: defaultGeminiModel},
			OpenAI: ProviderSettings{Model: defaultOpenAIModel},
		},
		Grading: GradingSettings{
			FailingThreshold:     defaultFailingThreshold,
			ExceptionalThreshold: defaultExceptionalThreshold,
			RetryAttempts:        defaultRetryAttempts,
		},
		Logging: LoggingSettings{Level: "info"},
	}
}

// Load reads settings from the default path. A missing or empty file
// yields the defaults; a malformed file is an error.
func Load() (Settings, error) {
	path, err := SettingsPath()
	if err != nil {
		return Settings{}, err
	}
	return LoadFromPath(path)
}

func LoadFromPath(path string) (Settings, error) {
	cfg := DefaultSettings()
	if err := readTOML(path, &cfg); err != nil {
		return Settings{}, err
	}
	return cfg.normalized(), nil
}

func (s Settings) normalized() Settings {
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	if s.Provider == "" {
		s.Provider = defaultProvider
	}
	if strings.TrimSpace(s.Providers.Gemini.Model) == "" {
		s.Providers.Gemini.Model = defaultGeminiModel
	}
	if strings.TrimSpace(s.Providers.OpenAI.Model) == "" {
		s.Providers.OpenAI.Model = defaultOpenAIModel
	}
	if s.Grading.FailingThreshold <= 0 {
		s.Grading.FailingThreshold = defaultFailingThreshold
	}
	if s.Grading.ExceptionalThreshold <= 0 || s.Grading.ExceptionalThreshold <= s.Grading.FailingThreshold {
		s.Grading.ExceptionalThreshold = defaultExceptionalThreshold
	}
	if s.Grading.RetryAttempts < 1 {
		s.Grading.RetryAttempts = defaultRetryAttempts
	}
	if strings.TrimSpace(s.Logging.Level) == "" {
		s.Logging.Level = "info"
	}
	return s
}

// ProviderFor returns the per-provider settings for the named provider.
func (s Settings) ProviderFor(provider string) ProviderSettings {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return s.Providers.OpenAI
	default:
		return s.Providers.Gemini
	}
}

// ProviderNames lists the providers the assistant can switch between.
func ProviderNames() []string {
	return []string{"gemini", "openai"}
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}
