// Package config provides centralized configuration for the agent.
//
// Values come from the environment and may be overlaid by a YAML file named
// in AGENT_CONFIG. Command-line flags are applied on top by cmd/taskagent.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// AgentEnv holds the agent settings.
type AgentEnv struct {
	// DataRoot is the confinement root (AGENT_DATA_ROOT)
	DataRoot string `yaml:"data_root"`

	// ListenAddr is the HTTP listen address (AGENT_LISTEN_ADDR)
	ListenAddr string `yaml:"listen_addr"`

	// Workers bounds concurrent tasks (AGENT_WORKERS)
	Workers int `yaml:"workers"`

	// LLMBaseURL is the OpenAI-compatible endpoint (AGENT_LLM_BASE_URL)
	LLMBaseURL string `yaml:"llm_base_url"`

	// LLMToken authenticates to the model backend (AIPROXY_TOKEN or AGENT_LLM_TOKEN)
	LLMToken string `yaml:"-"`

	// Model is the chat model name (AGENT_LLM_MODEL)
	Model string `yaml:"model"`

	// LLMTimeout bounds one model call (AGENT_LLM_TIMEOUT)
	LLMTimeout time.Duration `yaml:"llm_timeout"`

	// FetchTimeout bounds outbound HTTP fetches (AGENT_FETCH_TIMEOUT)
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// UserEmail is passed to the data generator (AGENT_USER_EMAIL)
	UserEmail string `yaml:"user_email"`

	// DatagenURL is the default data generator script (AGENT_DATAGEN_URL)
	DatagenURL string `yaml:"datagen_url"`

	// BrowserRender scrapes through a headless browser by default (AGENT_BROWSER_RENDER)
	BrowserRender bool `yaml:"browser_render"`

	// LogLevel is debug, info, warn or error (AGENT_LOG_LEVEL)
	LogLevel string `yaml:"log_level"`
}

const (
	defaultDataRoot   = "/data"
	defaultListenAddr = ":8000"
	defaultWorkers    = 4
	defaultLLMBaseURL = "https://aiproxy.sanand.workers.dev/openai/v1"
	defaultModel      = "gpt-4o-mini"
	defaultDatagenURL = "https://raw.githubusercontent.com/sanand0/tools-in-data-science-public/tds-2025-01/project-1/datagen.py"
)

var (
	env     *AgentEnv
	envErr  error
	envOnce sync.Once
)

// Env returns the singleton configuration.
// Thread-safe, loads once on first call. A broken config file is reported by
// Load; Env falls back to the environment-only values.
func Env() *AgentEnv {
	envOnce.Do(func() {
		env, envErr = load()
	})
	return env
}

// Load returns the configuration and any error from reading the config file.
func Load() (*AgentEnv, error) {
	e := Env()
	return e, envErr
}

// ResetEnv resets the cached environment (for testing).
func ResetEnv() {
	envOnce = sync.Once{}
	env = nil
	envErr = nil
}

func load() (*AgentEnv, error) {
	e := FromEnviron()
	path := os.Getenv("AGENT_CONFIG")
	if path == "" {
		return e, nil
	}
	if err := e.MergeFile(path); err != nil {
		return FromEnviron(), err
	}
	return e, nil
}

// FromEnviron builds the configuration from environment variables only.
func FromEnviron() *AgentEnv {
	token := os.Getenv("AGENT_LLM_TOKEN")
	if token == "" {
		token = os.Getenv("AIPROXY_TOKEN")
	}
	return &AgentEnv{
		DataRoot:      getEnvDefault("AGENT_DATA_ROOT", defaultDataRoot),
		ListenAddr:    getEnvDefault("AGENT_LISTEN_ADDR", defaultListenAddr),
		Workers:       getEnvInt("AGENT_WORKERS", defaultWorkers),
		LLMBaseURL:    getEnvDefault("AGENT_LLM_BASE_URL", defaultLLMBaseURL),
		LLMToken:      token,
		Model:         getEnvDefault("AGENT_LLM_MODEL", defaultModel),
		LLMTimeout:    getEnvDuration("AGENT_LLM_TIMEOUT", 60*time.Second),
		FetchTimeout:  getEnvDuration("AGENT_FETCH_TIMEOUT", 30*time.Second),
		UserEmail:     os.Getenv("AGENT_USER_EMAIL"),
		DatagenURL:    getEnvDefault("AGENT_DATAGEN_URL", defaultDatagenURL),
		BrowserRender: os.Getenv("AGENT_BROWSER_RENDER") == "1",
		LogLevel:      getEnvDefault("AGENT_LOG_LEVEL", "info"),
	}
}

// MergeFile overlays non-zero values from a YAML file.
func (e *AgentEnv) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var file AgentEnv
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	e.merge(&file)
	return e.Validate()
}

func (e *AgentEnv) merge(o *AgentEnv) {
	if o.DataRoot != "" {
		e.DataRoot = o.DataRoot
	}
	if o.ListenAddr != "" {
		e.ListenAddr = o.ListenAddr
	}
	if o.Workers != 0 {
		e.Workers = o.Workers
	}
	if o.LLMBaseURL != "" {
		e.LLMBaseURL = o.LLMBaseURL
	}
	if o.Model != "" {
		e.Model = o.Model
	}
	if o.LLMTimeout != 0 {
		e.LLMTimeout = o.LLMTimeout
	}
	if o.FetchTimeout != 0 {
		e.FetchTimeout = o.FetchTimeout
	}
	if o.UserEmail != "" {
		e.UserEmail = o.UserEmail
	}
	if o.DatagenURL != "" {
		e.DatagenURL = o.DatagenURL
	}
	if o.BrowserRender {
		e.BrowserRender = true
	}
	if o.LogLevel != "" {
		e.LogLevel = o.LogLevel
	}
}

// Validate checks the values the service cannot run without.
func (e *AgentEnv) Validate() error {
	if e.DataRoot == "" {
		return fmt.Errorf("data root is required")
	}
	if e.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", e.Workers)
	}
	return nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}
