// Package config loads switchboard configuration from an optional YAML file
// and SWB_-prefixed environment variables. Environment variables win.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the root configuration for the switchboard server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Call      CallConfig      `koanf:"call"`
	STT       STTConfig       `koanf:"stt"`
	Dialogue  DialogueConfig  `koanf:"dialogue"`
	TTS       TTSConfig       `koanf:"tts"`
	Knowledge KnowledgeConfig `koanf:"knowledge"`
	Guard     GuardConfig     `koanf:"guard"`
	Store     StoreConfig     `koanf:"store"`
}

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Port     int    `koanf:"port"`
	LogLevel string `koanf:"log_level"`
}

// CallConfig holds per-session tunables. These are configuration,
// not protocol: deployments adjust them without code changes.
type CallConfig struct {
	Greeting         string        `koanf:"greeting"`
	SilenceThreshold time.Duration `koanf:"silence_threshold"`
	MaxIdle          time.Duration `koanf:"max_idle"`
	MaxDuration      time.Duration `koanf:"max_duration"`
	HistoryWindow    int           `koanf:"history_window"`
	WordCap          int           `koanf:"word_cap"`
}

// STTConfig configures the speech-to-text provider.
type STTConfig struct {
	APIKey   string `koanf:"api_key"`
	Model    string `koanf:"model"`
	Language string `koanf:"language"`
}

// DialogueConfig configures the dialogue provider.
type DialogueConfig struct {
	APIKey      string  `koanf:"api_key"`
	Model       string  `koanf:"model"`
	Persona     string  `koanf:"persona"`
	Temperature float64 `koanf:"temperature"`
}

// TTSConfig configures the text-to-speech providers.
type TTSConfig struct {
	ElevenLabsKey string `koanf:"elevenlabs_key"`
	VoiceID       string `koanf:"voice_id"`
	OpenAIKey     string `koanf:"openai_key"`
	OpenAIVoice   string `koanf:"openai_voice"`
}

// KnowledgeConfig configures the knowledge lookup service.
type KnowledgeConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
}

// GuardConfig configures dependency timeouts, retries, and circuit breakers.
type GuardConfig struct {
	RequestTimeout time.Duration `koanf:"request_timeout"`
	MaxRetries     int           `koanf:"max_retries"`
	BackoffBase    time.Duration `koanf:"backoff_base"`
	BreakerTrip    int           `koanf:"breaker_trip"`
	BreakerCooloff time.Duration `koanf:"breaker_cooloff"`
}

// StoreConfig configures call-record persistence.
type StoreConfig struct {
	DSN string `koanf:"dsn"`
}

// defaults are applied before the file and environment providers.
var defaults = map[string]any{
	"server.port":            8080,
	"server.log_level":       "info",
	"call.greeting":          "Hi, thanks for calling. How can I help you today?",
	"call.silence_threshold": "3s",
	"call.max_idle":          "20s",
	"call.max_duration":      "30m",
	"call.history_window":    12,
	"call.word_cap":          200,
	"stt.model":              "nova-2-phonecall",
	"stt.language":           "en",
	"dialogue.model":         "gpt-4o-mini",
	"dialogue.temperature":   0.7,
	"dialogue.persona":       "You are a friendly phone agent. Answer in short spoken sentences.",
	"tts.openai_voice":       "alloy",
	"guard.request_timeout":  "5s",
	"guard.max_retries":      2,
	"guard.backoff_base":     "250ms",
	"guard.breaker_trip":     3,
	"guard.breaker_cooloff":  "30s",
	"store.dsn":              "switchboard.db",
}

// Load reads configuration from the given YAML path (skipped when empty or
// missing) and the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults {
		k.Set(key, val)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("SWB_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "SWB_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
