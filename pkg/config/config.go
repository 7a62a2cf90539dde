// Package config provides configuration loading and validation.
//
// Configuration is a flat Settings object loaded once at startup from a YAML
// file plus environment overrides, then passed by reference to the components
// that need it. There is no ambient/global config lookup: anything that wants
// settings receives them explicitly at construction time.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Generation provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
)

// Defaults applied by Load when options are unset. Unset behavior options
// default to disabled/neutral.
const (
	DefaultScrollSpeed      = 3
	DefaultGenerateTimeout  = 8 * time.Second
	DefaultPromptTokenLimit = 512
	DefaultBridgeAddr       = "127.0.0.1:8765"
	DefaultDataDir          = ".feedpilot"
)

// Behavior holds the user-facing automation switches. All options default to
// off; the orchestrator consults them per task.
type Behavior struct {
	AutoScroll    bool `yaml:"auto_scroll"`
	AutoLikes     bool `yaml:"auto_likes"`
	AutoComments  bool `yaml:"auto_comments"`
	ScrollSpeed   int  `yaml:"scroll_speed"` // 1 (slow) to 5 (fast)
	HeartReaction bool `yaml:"heart_reaction"`
}

// Generation configures the text-generation capability.
type Generation struct {
	Provider string `yaml:"provider"` // openai | anthropic | ollama | gemini
	Model    string `yaml:"model"`
	// Host is the server URL for the ollama provider.
	Host string `yaml:"host"`
	// Timeout bounds each external generation call.
	Timeout time.Duration `yaml:"timeout"`
	// PromptTokenLimit caps post text included in prompts.
	PromptTokenLimit int `yaml:"prompt_token_limit"`
}

// Settings is the root configuration object.
type Settings struct {
	Behavior   Behavior   `yaml:"behavior"`
	Generation Generation `yaml:"generation"`
	// BridgeAddr is the local WebSocket address the page script connects to.
	BridgeAddr string `yaml:"bridge_addr"`
	// DataDir holds the SQLite database, event logs, and secrets file.
	DataDir string `yaml:"data_dir"`
}

// Load reads settings from path, applies defaults, and validates. A missing
// file is not an error: it yields pure defaults, matching the "unset options
// default to disabled/neutral" contract.
func Load(path string) (*Settings, error) {
	settings := &Settings{}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No config file; run on defaults.
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	settings.applyDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *Settings) applyDefaults() {
	if s.Behavior.ScrollSpeed == 0 {
		s.Behavior.ScrollSpeed = DefaultScrollSpeed
	}
	if s.Generation.Provider == "" {
		s.Generation.Provider = ProviderOpenAI
	}
	if s.Generation.Timeout == 0 {
		s.Generation.Timeout = DefaultGenerateTimeout
	}
	if s.Generation.PromptTokenLimit == 0 {
		s.Generation.PromptTokenLimit = DefaultPromptTokenLimit
	}
	if s.Generation.Host == "" && s.Generation.Provider == ProviderOllama {
		s.Generation.Host = "http://localhost:11434"
	}
	if s.BridgeAddr == "" {
		s.BridgeAddr = DefaultBridgeAddr
	}
	if s.DataDir == "" {
		s.DataDir = DefaultDataDir
	}
}

// Validate rejects settings that would misbehave at runtime.
func (s *Settings) Validate() error {
	if s.Behavior.ScrollSpeed < 1 || s.Behavior.ScrollSpeed > 5 {
		return fmt.Errorf("invalid scroll_speed %d: must be 1-5", s.Behavior.ScrollSpeed)
	}

	switch strings.ToLower(s.Generation.Provider) {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama, ProviderGemini:
	default:
		return fmt.Errorf("unknown generation provider %q", s.Generation.Provider)
	}

	if s.Generation.Timeout <= 0 {
		return fmt.Errorf("generation timeout must be positive, got %s", s.Generation.Timeout)
	}
	return nil
}

// Save writes the settings back to path as YAML.
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
