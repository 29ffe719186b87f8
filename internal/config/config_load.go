package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:              "LiteClaw",
			Workspace:         "~/.liteclaw/workspace",
			Provider:          "openai",
			Model:             "gpt-4o",
			VisionModel:       "gpt-4o",
			MaxTokens:         8192,
			Temperature:       0.7,
			MaxToolIterations: 20,
			HistoryLimit:      50,
		},
		Gateway: GatewayConfig{
			Host:         "0.0.0.0",
			Port:         18890,
			RateLimitRPM: 20,
		},
		Bridge: BridgeConfig{
			URL: "http://localhost:3000",
		},
		Tools: ToolsConfig{
			Browser: BrowserConfig{Headless: true},
			Shell:   ShellConfig{TimeoutSec: 60},
		},
		Loops: LoopsConfig{
			Heartbeat:    true,
			Subconscious: true,
			Conscious:    true,
		},
		Vision: VisionConfig{
			MaxSteps: 15,
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values; secrets come from env only
// in most deployments.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("LITECLAW_OPENAI_API_KEY", &c.Providers.OpenAI.APIKey)
	envStr("LITECLAW_OPENAI_API_BASE", &c.Providers.OpenAI.APIBase)
	envStr("LITECLAW_OPENROUTER_API_KEY", &c.Providers.OpenRouter.APIKey)
	envStr("LITECLAW_GROQ_API_KEY", &c.Providers.Groq.APIKey)
	envStr("LITECLAW_DEEPSEEK_API_KEY", &c.Providers.DeepSeek.APIKey)
	envStr("LITECLAW_GIPHY_API_KEY", &c.Tools.Giphy.APIKey)
	envStr("LITECLAW_BRAVE_API_KEY", &c.Tools.Search.BraveAPIKey)

	envStr("LITECLAW_PROVIDER", &c.Agent.Provider)
	envStr("LITECLAW_MODEL", &c.Agent.Model)
	envStr("LITECLAW_VISION_MODEL", &c.Agent.VisionModel)
	envStr("LITECLAW_WORKSPACE", &c.Agent.Workspace)

	envStr("LITECLAW_BRIDGE_URL", &c.Bridge.URL)
	if v := os.Getenv("LITECLAW_ALLOWED_NUMBERS"); v != "" {
		c.Bridge.AllowedNumbers = FlexibleStringSlice(strings.Split(v, ","))
	}

	envStr("LITECLAW_HOST", &c.Gateway.Host)
	if v := os.Getenv("LITECLAW_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}

	envStr("LITECLAW_DB_PATH", &c.Database.Path)
}

// ActiveProvider returns the provider config selected by Agent.Provider.
func (c *Config) ActiveProvider() (name string, pc ProviderConfig) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.Agent.Provider {
	case "openrouter":
		return "openrouter", c.Providers.OpenRouter
	case "groq":
		return "groq", c.Providers.Groq
	case "deepseek":
		return "deepseek", c.Providers.DeepSeek
	default:
		return "openai", c.Providers.OpenAI
	}
}
