// Package config loads service settings from a JSON file, an optional .env
// file and the process environment, in that order of precedence (last wins).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultPath = "config/config.json"

// Duration is a time.Duration written as a string ("20s") in JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return errors.New("duration must be a string like \"20s\" or a number of seconds")
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

type Config struct {
	ServerAddr        string    `json:"server_addr,omitempty"`
	LogLevel          string    `json:"log_level,omitempty"`
	CORSOriginRegex   string    `json:"cors_origin_regex,omitempty"`
	HeartbeatInterval Duration  `json:"heartbeat_interval,omitempty"`
	TranscriptTTL     Duration  `json:"transcript_ttl,omitempty"`
	DefaultLanguage   string    `json:"default_language,omitempty"`
	DefaultPlatforms  []string  `json:"default_platforms,omitempty"`
	LLM               LLMConfig `json:"llm"`
	WebSearch         WebSearch `json:"web_search"`
	YouTube           YouTube   `json:"youtube"`
}

// LLMConfig 生成模块的模型配置。
type LLMConfig struct {
	Provider        string `json:"provider,omitempty"`
	Model           string `json:"model,omitempty"`
	AgentModel      string `json:"agent_model,omitempty"`
	APIKey          string `json:"api_key,omitempty"`
	BaseURL         string `json:"base_url,omitempty"`
	MaxOutputTokens int    `json:"max_output_tokens,omitempty"`
	MaxSteps        int    `json:"max_steps,omitempty"`
}

type WebSearch struct {
	Enabled           bool    `json:"enabled"`
	Region            string  `json:"region,omitempty"`
	MaxResults        int     `json:"max_results,omitempty"`
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`
}

type YouTube struct {
	Timeout  Duration `json:"timeout,omitempty"`
	MaxTries uint     `json:"max_tries,omitempty"`
}

// Default returns the settings used when no file is present.
func Default() Config {
	return Config{
		ServerAddr:        ":8000",
		LogLevel:          "info",
		CORSOriginRegex:   `https://.*\.vercel\.app|http://localhost:3000`,
		HeartbeatInterval: Duration(20 * time.Second),
		TranscriptTTL:     Duration(10 * time.Minute),
		DefaultLanguage:   "en",
		DefaultPlatforms:  []string{"LinkedIn", "Instagram"},
		LLM: LLMConfig{
			Provider:        "openai",
			Model:           "gpt-4o",
			AgentModel:      "gpt-4o-mini",
			MaxOutputTokens: 500,
			MaxSteps:        12,
		},
		WebSearch: WebSearch{
			Enabled:           true,
			Region:            "wt-wt",
			MaxResults:        5,
			RequestsPerSecond: 1,
		},
		YouTube: YouTube{
			Timeout:  Duration(20 * time.Second),
			MaxTries: 3,
		},
	}
}

// Load reads path over the defaults, then applies .env and environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, err
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv(os.LookupEnv)
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set("OPENAI_API_KEY", &c.LLM.APIKey)
	set("OPENAI_BASE_URL", &c.LLM.BaseURL)
	set("LLM_MODEL", &c.LLM.Model)
	set("LLM_PROVIDER", &c.LLM.Provider)
	set("SERVER_ADDR", &c.ServerAddr)
	set("LOG_LEVEL", &c.LogLevel)
	if v, ok := lookup("WEB_SEARCH_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.WebSearch.Enabled = b
		}
	}
}

// fillDefaults restores zero values a partial file may have left behind.
func (c *Config) fillDefaults() {
	d := Default()
	if c.ServerAddr == "" {
		c.ServerAddr = d.ServerAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.CORSOriginRegex == "" {
		c.CORSOriginRegex = d.CORSOriginRegex
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.TranscriptTTL <= 0 {
		c.TranscriptTTL = d.TranscriptTTL
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = d.DefaultLanguage
	}
	if len(c.DefaultPlatforms) == 0 {
		c.DefaultPlatforms = d.DefaultPlatforms
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = d.LLM.Provider
	}
	if c.LLM.Model == "" {
		c.LLM.Model = d.LLM.Model
	}
	if c.LLM.AgentModel == "" {
		c.LLM.AgentModel = c.LLM.Model
	}
	if c.LLM.MaxOutputTokens <= 0 {
		c.LLM.MaxOutputTokens = d.LLM.MaxOutputTokens
	}
	if c.LLM.MaxSteps <= 0 {
		c.LLM.MaxSteps = d.LLM.MaxSteps
	}
	if c.WebSearch.Region == "" {
		c.WebSearch.Region = d.WebSearch.Region
	}
	if c.WebSearch.MaxResults <= 0 {
		c.WebSearch.MaxResults = d.WebSearch.MaxResults
	}
	if c.WebSearch.RequestsPerSecond <= 0 {
		c.WebSearch.RequestsPerSecond = d.WebSearch.RequestsPerSecond
	}
	if c.YouTube.Timeout <= 0 {
		c.YouTube.Timeout = d.YouTube.Timeout
	}
	if c.YouTube.MaxTries == 0 {
		c.YouTube.MaxTries = d.YouTube.MaxTries
	}
}

func (c Config) Validate() error {
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			return errors.New("openai api key missing; set llm.api_key or OPENAI_API_KEY")
		}
	case "deepseek":
		// DeepSeek 提供 OpenAI 兼容接口，需填写 base_url（例如官方/网关地址）。
		if c.LLM.BaseURL == "" {
			return errors.New("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		if c.LLM.APIKey == "" {
			return errors.New("deepseek api key missing; set llm.api_key or OPENAI_API_KEY")
		}
	case "mock":
	default:
		return fmt.Errorf("llm provider %s not supported", c.LLM.Provider)
	}
	if _, err := regexp.Compile(c.CORSOriginRegex); err != nil {
		return fmt.Errorf("cors_origin_regex: %w", err)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// APIKeyConfigured reports whether a model API key is present.
func (c Config) APIKeyConfigured() bool {
	return c.LLM.APIKey != ""
}

func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q: %w", s, err)
	}
	return l, nil
}
