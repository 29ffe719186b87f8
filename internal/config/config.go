package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON.
// Allow-listed phone numbers are often written as bare numbers.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the LiteClaw gateway.
type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Providers ProvidersConfig `json:"providers"`
	Gateway   GatewayConfig   `json:"gateway"`
	Bridge    BridgeConfig    `json:"bridge"`
	Database  DatabaseConfig  `json:"database"`
	Tools     ToolsConfig     `json:"tools"`
	Loops     LoopsConfig     `json:"loops"`
	Vision    VisionConfig    `json:"vision"`
	mu        sync.RWMutex
}

// AgentConfig holds the conversation engine settings.
type AgentConfig struct {
	Name              string  `json:"name"`      // self tag, e.g. "LiteClaw"
	Workspace         string  `json:"workspace"` // memory files + skills live here
	Provider          string  `json:"provider"`
	Model             string  `json:"model"`
	VisionModel       string  `json:"vision_model"`
	MaxTokens         int     `json:"max_tokens"`
	Temperature       float64 `json:"temperature"`
	MaxToolIterations int     `json:"max_tool_iterations"`
	HistoryLimit      int     `json:"history_limit"` // messages loaded per turn
}

// ProvidersConfig holds credentials for OpenAI-compatible backends.
type ProvidersConfig struct {
	OpenAI     ProviderConfig `json:"openai,omitempty"`
	OpenRouter ProviderConfig `json:"openrouter,omitempty"`
	Groq       ProviderConfig `json:"groq,omitempty"`
	DeepSeek   ProviderConfig `json:"deepseek,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	APIBase string `json:"api_base,omitempty"`
	Model   string `json:"model,omitempty"`
}

// GatewayConfig configures the HTTP API server.
type GatewayConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	RateLimitRPM int    `json:"rate_limit_rpm"` // /chat limiter, 0 disables
}

// BridgeConfig points at the external channel bridge process that owns
// the WhatsApp connection. The gateway only ever POSTs to it.
type BridgeConfig struct {
	URL            string              `json:"url"`
	AllowedNumbers FlexibleStringSlice `json:"allowed_numbers"`
}

// DatabaseConfig configures the sqlite history store.
type DatabaseConfig struct {
	Path string `json:"path"` // sqlite file, default <workspace>/liteclaw.db
}

// ToolsConfig configures individual builtin tools.
type ToolsConfig struct {
	Giphy   GiphyConfig   `json:"giphy,omitempty"`
	Search  SearchConfig  `json:"search,omitempty"`
	Browser BrowserConfig `json:"browser,omitempty"`
	Shell   ShellConfig   `json:"shell,omitempty"`
}

type GiphyConfig struct {
	APIKey string `json:"api_key,omitempty"`
}

// SearchConfig configures the web search tool. DuckDuckGo needs no
// key; a Brave key upgrades search to the Brave API.
type SearchConfig struct {
	BraveAPIKey string `json:"brave_api_key,omitempty"`
}

type BrowserConfig struct {
	Headless bool `json:"headless"`
}

type ShellConfig struct {
	TimeoutSec int `json:"timeout_sec"`
}

// LoopsConfig enables the background reflection loops.
type LoopsConfig struct {
	Heartbeat    bool `json:"heartbeat"`
	Subconscious bool `json:"subconscious"`
	Conscious    bool `json:"conscious"`
}

// VisionConfig configures the desktop vision worker.
type VisionConfig struct {
	Enabled  bool `json:"enabled"`
	MaxSteps int  `json:"max_steps"` // initial step limit per goal
}

// SelfTag returns the reply prefix used to mark the agent's own
// outbound messages, e.g. "[LiteClaw]".
func (c *Config) SelfTag() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return "[" + c.Agent.Name + "]"
}

// WorkspacePath returns the expanded workspace path.
func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ExpandHome(c.Agent.Workspace)
}

// DatabasePath returns the expanded sqlite path, defaulting into the workspace.
func (c *Config) DatabasePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Database.Path != "" {
		return ExpandHome(c.Database.Path)
	}
	return ExpandHome(c.Agent.Workspace) + "/liteclaw.db"
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
